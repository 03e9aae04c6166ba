package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"user-registry/models"
	"user-registry/services"
	"user-registry/utils"
)

// UserHandler handles HTTP requests for registry operations
type UserHandler struct {
	registry  services.UserRegistry
	reporters *utils.Reporters
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(registry services.UserRegistry, reporters *utils.Reporters) *UserHandler {
	return &UserHandler{
		registry:  registry,
		reporters: reporters,
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Fields  []models.FieldError `json:"fields,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// CreateUserRequest is the body of POST /api/users; BirthDate is YYYY-MM-DD
type CreateUserRequest struct {
	NationalID string `json:"national_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	BirthDate  string `json:"birth_date"`
}

// UpdateUserRequest is the body of PUT /api/users/{id}
type UpdateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// writeJSON writes JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: http.StatusText(status), Message: message})
}

// writeRegistryError maps registry errors onto HTTP statuses
func writeRegistryError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found")
	case errors.As(err, &verr):
		status := http.StatusUnprocessableEntity
		if errors.Is(err, models.ErrDuplicateID) {
			status = http.StatusConflict
		}
		writeJSON(w, status, ErrorResponse{
			Error:   http.StatusText(status),
			Message: verr.Error(),
			Fields:  verr.Fields,
		})
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// GetAllUsers handles GET /api/users, optionally filtered by ?surname=
func (h *UserHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	reqID := utils.RequestIDFrom(r.Context())

	var users []*models.User
	if fragment := r.URL.Query().Get("surname"); fragment != "" {
		users = services.SortBySurname(h.registry.FindBySurnameFragment(fragment))
		h.reporters.Audit.LogUserAction(reqID, "SEARCH_USERS", "", "surname="+fragment)
	} else {
		users = h.registry.SortedBySurname()
		h.reporters.Audit.LogUserAction(reqID, "LIST_USERS", "", "")
	}

	writeJSON(w, http.StatusOK, users)
}

// GetUserByID handles GET /api/users/{id}
func (h *UserHandler) GetUserByID(w http.ResponseWriter, r *http.Request) {
	reqID := utils.RequestIDFrom(r.Context())
	id := mux.Vars(r)["id"]

	user, err := h.registry.FindByID(id)
	if err != nil {
		h.reporters.Audit.LogUserAction(reqID, "GET_USER_NOT_FOUND", id, err.Error())
		writeRegistryError(w, err)
		return
	}

	h.reporters.Audit.LogUserAction(reqID, "GET_USER", user.NationalID, "")
	writeJSON(w, http.StatusOK, user)
}

// CreateUser handles POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	reqID := utils.RequestIDFrom(r.Context())

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reporters.Errors.HandleError(reqID, "CreateUser", err, "failed to decode request body")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.registry.Create(req.NationalID, req.FirstName, req.LastName, req.BirthDate)
	if err != nil {
		h.reporters.Errors.HandleError(reqID, "CreateUser", err, "validation failed")
		writeRegistryError(w, err)
		return
	}

	h.reporters.Audit.LogUserAction(reqID, "CREATE", user.NationalID, "")
	h.reporters.Notifications.SendNotification(user.NationalID, "WELCOME", "User account created successfully")

	writeJSON(w, http.StatusCreated, user)
}

// UpdateUser handles PUT /api/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	reqID := utils.RequestIDFrom(r.Context())
	id := mux.Vars(r)["id"]

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.reporters.Errors.HandleError(reqID, "UpdateUser", err, "failed to decode request body")
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.registry.Update(id, req.FirstName, req.LastName)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			h.reporters.Audit.LogUserAction(reqID, "UPDATE_USER_NOT_FOUND", id, err.Error())
		} else {
			h.reporters.Errors.HandleError(reqID, "UpdateUser", err, "validation failed")
		}
		writeRegistryError(w, err)
		return
	}

	h.reporters.Audit.LogUserAction(reqID, "UPDATE", user.NationalID, "")
	h.reporters.Notifications.SendNotification(user.NationalID, "PROFILE_UPDATED", "Your profile has been updated")

	writeJSON(w, http.StatusOK, user)
}

// DeleteUser handles DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	reqID := utils.RequestIDFrom(r.Context())
	id := mux.Vars(r)["id"]

	removed, err := h.registry.Delete(id)
	if err != nil {
		h.reporters.Audit.LogUserAction(reqID, "DELETE_USER_NOT_FOUND", id, err.Error())
		writeRegistryError(w, err)
		return
	}

	h.reporters.Audit.LogUserAction(reqID, "DELETE", removed.NationalID, "")
	h.reporters.Notifications.SendNotification(removed.NationalID, "ACCOUNT_DELETED", "User account has been deleted")

	writeJSON(w, http.StatusOK, removed)
}

// RegisterRoutes registers all user routes with the router
func (h *UserHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/users", h.GetAllUsers).Methods("GET")
	router.HandleFunc("/api/users/{id}", h.GetUserByID).Methods("GET")
	router.HandleFunc("/api/users", h.CreateUser).Methods("POST")
	router.HandleFunc("/api/users/{id}", h.UpdateUser).Methods("PUT")
	router.HandleFunc("/api/users/{id}", h.DeleteUser).Methods("DELETE")
}
