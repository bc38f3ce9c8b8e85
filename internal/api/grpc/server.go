// Package grpc exposes the operational gRPC surface: standard health checking
// and server reflection.
package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"familytree-backend/internal/api/grpc/interceptor"
	"familytree-backend/internal/logger"
	"familytree-backend/internal/security"
)

// ServiceName is the health key reported for the whole backend.
const ServiceName = "familytree.Backend"

type Server struct {
	*grpc.Server
	health *health.Server
}

// NewServer builds a server that reports NOT_SERVING until SetServing(true).
func NewServer(tokens security.TokenManager) *Server {
	auth := interceptor.NewAuthInterceptor(tokens)
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(auth.Unary(), interceptor.LoggingUnary()),
		grpc.ChainStreamInterceptor(auth.Stream(), interceptor.LoggingStream()),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	// Register reflection service for grpcurl
	reflection.Register(s)

	srv := &Server{Server: s, health: hs}
	srv.SetServing(false)
	return srv
}

func (s *Server) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
	logger.Info("gRPC health status changed", "status", st.String())
}

// GracefulStop marks the server NOT_SERVING before draining calls.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
}
