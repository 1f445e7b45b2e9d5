package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ayush/auth-gateway/internal/models"
	"github.com/ayush/auth-gateway/internal/validator"
)

const maxBodyBytes = 1 << 20

// Handler holds auth-related HTTP handlers.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register creates a password account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.Register(r.Context(), req); err != nil {
		h.writeServiceError(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusOK, models.MessageResponse{Message: "User registered successfully!"})
}

// Login authenticates with email and password and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.svc.Login(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GoogleLogin exchanges a Google ID token for a bearer token.
func (h *Handler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.GoogleLoginRequest
	if !decode(w, r, &req) {
		return
	}
	resp, err := h.svc.GoogleLogin(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "google login", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// LinkGoogle attaches a Google identity to the authenticated account.
func (h *Handler) LinkGoogle(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req models.GoogleLoginRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.svc.LinkGoogle(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, ErrInvalidIdentityToken) {
			slog.WarnContext(r.Context(), "link google rejected", slog.String("error", err.Error()))
			writeError(w, http.StatusUnauthorized, "Invalid Google token")
			return
		}
		h.writeServiceError(w, r, "link google", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Me returns the currently authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	user, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, r, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListUsers returns all users without password hashes.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

type errorBody struct {
	Error  string                     `json:"error"`
	Fields validator.ValidationErrors `json:"fields,omitempty"`
}

// writeServiceError maps service errors onto the public status codes.
// Unexpected errors are logged and hidden behind a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: verr.Message, Fields: verr.Fields})
	case errors.Is(err, ErrConflict):
		writeError(w, http.StatusBadRequest, "Username or Email already exists!")
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "User not found!")
	case errors.Is(err, ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid password!")
	case errors.Is(err, ErrAccountLink):
		writeError(w, http.StatusConflict, "An account with this email already exists. Sign in with your password and link Google from your account.")
	case errors.Is(err, ErrInvalidIdentityToken):
		slog.WarnContext(r.Context(), op+" rejected", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Google login failed!")
	default:
		slog.ErrorContext(r.Context(), op+" failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "Server Error")
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
