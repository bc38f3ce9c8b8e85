package config

type SecurityLevel int

const (
	SecurityPublic   SecurityLevel = iota // No authentication
	SecurityOptional                      // Access token used when present
	SecurityRefresh                       // Refresh token required
	SecurityAccess                        // Access token required
)

// EndpointSecurityConfig maps route names to their required security level
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Auth
	"auth.login":         SecurityPublic,
	"auth.firebaseLogin": SecurityPublic,
	"auth.refresh":       SecurityRefresh,

	"health": SecurityPublic,

	// Requests
	"requests.submit":  SecurityOptional,
	"requests.list":    SecurityAccess,
	"requests.mine":    SecurityAccess,
	"requests.get":     SecurityAccess,
	"requests.approve": SecurityAccess,
	"requests.reject":  SecurityAccess,
	"requests.record":  SecurityAccess,
	"pending.counts":   SecurityAccess,

	// Published family tree
	"family.list": SecurityAccess,

	// Notifications
	"notifications.list":        SecurityAccess,
	"notifications.unreadCount": SecurityAccess,
	"notifications.read":        SecurityAccess,
	"notifications.readAll":     SecurityAccess,
	"notifications.delete":      SecurityAccess,

	// Admin
	"admin.isAdmin":  SecurityAccess,
	"admin.setRoles": SecurityAccess,

	// Gallery storage; the mock upload/download routes are addressed by opaque token
	"gallery.uploadURL": SecurityAccess,
	"storage.upload":    SecurityPublic,
	"storage.download":  SecurityPublic,

	// Websocket authenticates from the query string
	"ws": SecurityPublic,

	// gRPC full method names; reflection falls through to access
	"/grpc.health.v1.Health/Check": SecurityPublic,
	"/grpc.health.v1.Health/List":  SecurityPublic,
	"/grpc.health.v1.Health/Watch": SecurityPublic,
}

// GetSecurityLevel returns the security level for a given route name
func GetSecurityLevel(route string) SecurityLevel {
	if level, exists := EndpointSecurityConfig[route]; exists {
		return level
	}
	// Default to highest security for unknown endpoints
	return SecurityAccess
}
