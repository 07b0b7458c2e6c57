package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mindfulmovement/service-session-go/internal/identity"
	"github.com/mindfulmovement/service-session-go/internal/session"
)

// Handler exposes HTTP endpoints for the auth operations.
type Handler struct {
	svc    *Service
	mirror *session.Mirror
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, mirror *session.Mirror, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, mirror: mirror, logger: logger}
}

// RegisterRequest request body for the register endpoint.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Gender   string `json:"gender"`
	Suburb   string `json:"suburb"`
	Reason   string `json:"reason"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid register payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	rec, err := h.svc.Register(r.Context(), RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Gender:   req.Gender,
		Suburb:   req.Suburb,
		Reason:   req.Reason,
	})
	if err != nil {
		h.logger.Debugw("register failed", "err", err)
		var vErr *ValidationError
		switch {
		case errors.As(err, &vErr):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": vErr.Error()})
		case errors.Is(err, identity.ErrEmailInUse):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": "email already in use"})
		case errors.Is(err, identity.ErrWeakPassword):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password too weak"})
		default:
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "registration failed"})
		}
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember *bool  `json:"remember"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	remember := true
	if req.Remember != nil {
		remember = *req.Remember
	}
	rec, err := h.svc.Login(r.Context(), req.Email, req.Password, remember)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		var vErr *ValidationError
		switch {
		case errors.As(err, &vErr):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": vErr.Error()})
		case errors.Is(err, ErrInvalidCredentials):
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrAccountDisabled):
			h.writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrRateLimited):
			h.writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": err.Error()})
		default:
			h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": ErrNetwork.Error()})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout(r.Context())
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// Me returns the current session mirror snapshot.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	rec := h.mirror.Current()
	if rec == nil {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no session"})
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
