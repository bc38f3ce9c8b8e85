package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"familytree-backend/internal/changefeed"
	"familytree-backend/internal/security"
	"familytree-backend/internal/service"
	"familytree-backend/internal/storage"
)

// Dependencies wires the REST and websocket surface to the services.
type Dependencies struct {
	Tokens        security.TokenManager
	Auth          service.AuthService
	Approvals     service.ApprovalService
	Notifications service.NotificationService
	Directory     service.DirectoryService
	Pending       service.PendingCounter
	Gallery       service.GalleryService
	Family        service.FamilyService
	Feed          changefeed.Feed
	Debounce      time.Duration

	// Files backs the local upload/download routes; nil disables them.
	Files         storage.StorageInterface
	AllowedTypes  []string
	MaxFileSizeMB int64

	Ready func() bool
}

// NewRouter registers every route by name; AuthMiddleware resolves the
// security level from that name.
func NewRouter(d Dependencies) *mux.Router {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware)
	router.Use(NewAuthMiddleware(d.Tokens).Handler)

	router.HandleFunc("/healthz", HealthCheck(d.Ready)).Methods(http.MethodGet).Name("health")

	api := router.PathPrefix("/api/v1").Subrouter()

	auth := NewAuthHandler(d.Auth)
	api.HandleFunc("/auth/login", auth.Login).Methods(http.MethodPost).Name("auth.login")
	api.HandleFunc("/auth/refresh", auth.RefreshToken).Methods(http.MethodPost).Name("auth.refresh")
	api.HandleFunc("/auth/firebase-login", auth.FirebaseLogin).Methods(http.MethodPost).Name("auth.firebaseLogin")

	requests := NewRequestHandler(d.Approvals, d.Directory, d.Pending, d.Family)
	api.HandleFunc("/pending-counts", requests.PendingCounts).Methods(http.MethodGet).Name("pending.counts")
	api.HandleFunc("/requests/{kind}", requests.Submit).Methods(http.MethodPost).Name("requests.submit")
	api.HandleFunc("/requests/{kind}", requests.List).Methods(http.MethodGet).Name("requests.list")
	api.HandleFunc("/requests/{kind}/mine", requests.Mine).Methods(http.MethodGet).Name("requests.mine")
	api.HandleFunc("/requests/{kind}/{id}", requests.Get).Methods(http.MethodGet).Name("requests.get")
	api.HandleFunc("/requests/{kind}/{id}/approve", requests.Approve).Methods(http.MethodPost).Name("requests.approve")
	api.HandleFunc("/requests/{kind}/{id}/reject", requests.Reject).Methods(http.MethodPost).Name("requests.reject")
	api.HandleFunc("/requests/{kind}/{id}/record", requests.Record).Methods(http.MethodGet).Name("requests.record")

	family := NewFamilyHandler(d.Family)
	api.HandleFunc("/family-members", family.List).Methods(http.MethodGet).Name("family.list")

	notes := NewNotificationHandler(d.Notifications)
	api.HandleFunc("/notifications", notes.List).Methods(http.MethodGet).Name("notifications.list")
	api.HandleFunc("/notifications/unread-count", notes.UnreadCount).Methods(http.MethodGet).Name("notifications.unreadCount")
	api.HandleFunc("/notifications/read-all", notes.MarkAllRead).Methods(http.MethodPost).Name("notifications.readAll")
	api.HandleFunc("/notifications/{id}/read", notes.MarkRead).Methods(http.MethodPost).Name("notifications.read")
	api.HandleFunc("/notifications/{id}", notes.Delete).Methods(http.MethodDelete).Name("notifications.delete")

	admin := NewAdminHandler(d.Directory)
	api.HandleFunc("/admin/users/{id}/is-admin", admin.IsAdmin).Methods(http.MethodGet).Name("admin.isAdmin")
	api.HandleFunc("/admin/users/{id}/roles", admin.SetRoles).Methods(http.MethodPut).Name("admin.setRoles")

	gallery := NewGalleryHandler(d.Gallery)
	api.HandleFunc("/gallery/upload-url", gallery.UploadURL).Methods(http.MethodPost).Name("gallery.uploadURL")

	if d.Files != nil {
		files := NewStorageHandler(d.Files, d.AllowedTypes, d.MaxFileSizeMB)
		api.HandleFunc("/upload/{token}", files.HandleUpload).Methods(http.MethodPut).Name("storage.upload")
		api.HandleFunc("/download/{key:.+}", files.HandleDownload).Methods(http.MethodGet).Name("storage.download")
	}

	ws := NewWebSocketHandler(d.Tokens, d.Notifications, d.Directory, d.Pending, d.Feed, d.Debounce)
	api.HandleFunc("/ws", ws.HandleWebSocket).Methods(http.MethodGet).Name("ws")

	return router
}
