package auth

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smartpay/smartpay-api/internal/middleware"
	"github.com/smartpay/smartpay-api/internal/pkg/response"
	"github.com/smartpay/smartpay-api/internal/pkg/validator"
)

// Handler handles auth HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates auth handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Signup handles POST /users/signup
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}

	result, err := h.service.Signup(r.Context(), &req)
	if err != nil {
		var invalid *ValidationError
		switch {
		case errors.As(err, &invalid):
			response.ValidationError(w, invalid.Fields)
		case errors.Is(err, ErrEmailAlreadyExists):
			response.Conflict(w, "EMAIL_EXISTS", "Email already registered")
		default:
			log.Error().Err(err).Msg("Signup failed")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, result)
}

// Login handles POST /users/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid JSON body")
		return
	}
	req.Email = normalizeEmail(req.Email)

	if errs := validator.Validate(&req); errs != nil {
		response.ValidationError(w, errs)
		return
	}

	result, err := h.service.Login(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		default:
			log.Error().Err(err).Msg("Login failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, result)
}

// Logout handles POST /users/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.GetClaims(r.Context())); err != nil {
		log.Error().Err(err).Msg("Logout failed")
		response.InternalError(w)
		return
	}
	response.NoContent(w)
}

// Profile handles GET /users/profile
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	u, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			response.NotFound(w, "ACCOUNT_NOT_FOUND", "Account not found")
			return
		}
		log.Error().Err(err).Msg("Profile lookup failed")
		response.InternalError(w)
		return
	}

	response.OK(w, NewUserResponse(u))
}
