package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"user-registry/config"
	"user-registry/models"
	"user-registry/services"
	"user-registry/utils"
)

// backupStore is the slice of the registry the backup endpoints need
type backupStore interface {
	FindByID(id string) (*models.User, error)
	GetAll() []*models.User
	Restore(user models.User) (*models.User, error)
}

// IntegrationHandler handles HTTP requests for MinIO integration operations
type IntegrationHandler struct {
	integrationService *services.IntegrationService
	users              backupStore
	reporters          *utils.Reporters
	defaultMinIO       config.MinIOConfig
}

// NewIntegrationHandler creates a new IntegrationHandler. defaults is used by
// the connect endpoint when the request carries no configuration.
func NewIntegrationHandler(integration *services.IntegrationService, users backupStore, reporters *utils.Reporters, defaults config.MinIOConfig) *IntegrationHandler {
	return &IntegrationHandler{
		integrationService: integration,
		users:              users,
		reporters:          reporters,
		defaultMinIO:       defaults,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status    string `json:"status"`
	MinIO     string `json:"minio"`
	Timestamp string `json:"timestamp"`
}

// BackupResponse represents a backup operation response
type BackupResponse struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
	Count   int    `json:"count,omitempty"`
}

// BackupListResponse represents a list of backups response
type BackupListResponse struct {
	Backups []string `json:"backups"`
	Count   int      `json:"count"`
}

// HealthCheck handles GET /api/health
func (h *IntegrationHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	minioStatus := "connected"
	if !h.integrationService.IsConnected() {
		minioStatus = "disconnected"
	} else if err := h.integrationService.HealthCheck(ctx); err != nil {
		minioStatus = "unhealthy: " + err.Error()
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		MinIO:     minioStatus,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (h *IntegrationHandler) requireConnected(w http.ResponseWriter) bool {
	if !h.integrationService.IsConnected() {
		writeError(w, http.StatusServiceUnavailable, "MinIO service not available")
		return false
	}
	return true
}

// BackupUser handles POST /api/backup/users/{id}
func (h *IntegrationHandler) BackupUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireConnected(w) {
		return
	}
	reqID := utils.RequestIDFrom(r.Context())

	user, err := h.users.FindByID(mux.Vars(r)["id"])
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := h.integrationService.BackupUser(ctx, user); err != nil {
		h.reporters.Errors.HandleError(reqID, "BackupUser", err, "failed to backup user")
		writeError(w, http.StatusInternalServerError, "Failed to backup user")
		return
	}

	h.reporters.Audit.LogUserAction(reqID, "BACKUP", user.NationalID, "")

	writeJSON(w, http.StatusOK, BackupResponse{
		Message: "User backed up successfully",
		UserID:  user.NationalID,
	})
}

// BackupAllUsers handles POST /api/backup/users
func (h *IntegrationHandler) BackupAllUsers(w http.ResponseWriter, r *http.Request) {
	if !h.requireConnected(w) {
		return
	}
	reqID := utils.RequestIDFrom(r.Context())

	users := h.users.GetAll()
	if len(users) == 0 {
		writeJSON(w, http.StatusOK, BackupResponse{Message: "No users to backup"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	if err := h.integrationService.BackupAllUsers(ctx, users); err != nil {
		h.reporters.Errors.HandleError(reqID, "BackupAllUsers", err, "failed to backup users")
		writeError(w, http.StatusInternalServerError, "Failed to backup users: "+err.Error())
		return
	}

	h.reporters.Audit.LogUserAction(reqID, "BACKUP_ALL", "", "backed up all users")

	writeJSON(w, http.StatusOK, BackupResponse{
		Message: "All users backed up successfully",
		Count:   len(users),
	})
}

// RestoreUser handles POST /api/restore/users/{id}. The backup is validated
// and inserted like a new registration.
func (h *IntegrationHandler) RestoreUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireConnected(w) {
		return
	}
	reqID := utils.RequestIDFrom(r.Context())
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	backup, err := h.integrationService.RestoreUser(ctx, id)
	if err != nil {
		h.reporters.Errors.HandleError(reqID, "RestoreUser", err, "failed to restore user")
		writeError(w, http.StatusNotFound, "Backup not found or failed to restore")
		return
	}

	user, err := h.users.Restore(*backup)
	if err != nil {
		h.reporters.Errors.HandleError(reqID, "RestoreUser", err, "backup rejected by registry")
		writeRegistryError(w, err)
		return
	}

	h.reporters.Audit.LogUserAction(reqID, "RESTORE", user.NationalID, "")

	writeJSON(w, http.StatusCreated, user)
}

// DeleteBackup handles DELETE /api/backup/users/{id}
func (h *IntegrationHandler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	if !h.requireConnected(w) {
		return
	}
	reqID := utils.RequestIDFrom(r.Context())
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	if err := h.integrationService.DeleteUserBackup(ctx, id); err != nil {
		h.reporters.Errors.HandleError(reqID, "DeleteBackup", err, "failed to delete backup")
		writeError(w, http.StatusInternalServerError, "Failed to delete backup")
		return
	}

	h.reporters.Audit.LogUserAction(reqID, "DELETE_BACKUP", models.NormalizeNationalID(id), "")

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "Backup deleted successfully"})
}

// ListBackups handles GET /api/backup/users
func (h *IntegrationHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if !h.requireConnected(w) {
		return
	}
	reqID := utils.RequestIDFrom(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	backups, err := h.integrationService.ListBackups(ctx)
	if err != nil {
		h.reporters.Errors.HandleError(reqID, "ListBackups", err, "failed to list backups")
		writeError(w, http.StatusInternalServerError, "Failed to list backups")
		return
	}

	writeJSON(w, http.StatusOK, BackupListResponse{
		Backups: backups,
		Count:   len(backups),
	})
}

// ConnectMinIO handles POST /api/integration/connect
func (h *IntegrationHandler) ConnectMinIO(w http.ResponseWriter, r *http.Request) {
	reqID := utils.RequestIDFrom(r.Context())

	cfg := h.defaultMinIO
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		cfg = h.defaultMinIO
	}

	if err := h.integrationService.Connect(cfg); err != nil {
		h.reporters.Errors.HandleError(reqID, "ConnectMinIO", err, "failed to connect to MinIO")
		writeError(w, http.StatusInternalServerError, "Failed to connect to MinIO: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "Connected to MinIO successfully"})
}

// RegisterRoutes registers all integration routes with the router
func (h *IntegrationHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/api/integration/connect", h.ConnectMinIO).Methods("POST")
	router.HandleFunc("/api/backup/users", h.BackupAllUsers).Methods("POST")
	router.HandleFunc("/api/backup/users", h.ListBackups).Methods("GET")
	router.HandleFunc("/api/backup/users/{id}", h.BackupUser).Methods("POST")
	router.HandleFunc("/api/backup/users/{id}", h.DeleteBackup).Methods("DELETE")
	router.HandleFunc("/api/restore/users/{id}", h.RestoreUser).Methods("POST")
}
