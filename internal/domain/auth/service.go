package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/smartpay/smartpay-api/internal/domain/user"
	"github.com/smartpay/smartpay-api/internal/domain/wallet"
	"github.com/smartpay/smartpay-api/internal/pkg/jwt"
	"github.com/smartpay/smartpay-api/internal/pkg/password"
	"github.com/smartpay/smartpay-api/internal/pkg/revocation"
	"github.com/smartpay/smartpay-api/internal/pkg/validator"
)

// Service handles authentication business logic
type Service struct {
	userRepo   user.Repository
	jwtService *jwt.Service
	revoked    revocation.Store
	loc        *time.Location
	hashCost   int
	now        func() time.Time
}

// NewService creates auth service. loc decides which month a new wallet starts in.
func NewService(userRepo user.Repository, jwtService *jwt.Service, revoked revocation.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		userRepo:   userRepo,
		jwtService: jwtService,
		revoked:    revoked,
		loc:        loc,
		hashCost:   password.DefaultCost,
		now:        time.Now,
	}
}

// SetHashCost overrides the bcrypt cost; tests lower it.
func (s *Service) SetHashCost(cost int) {
	s.hashCost = cost
}

// Signup creates the account and its empty wallet, then signs the user in.
func (s *Service) Signup(ctx context.Context, req *SignupRequest) (*AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if errs := validator.Validate(req); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}
	req.Name = strings.TrimSpace(req.Name)

	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("signup lookup: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyExists
	}

	passwordHash, err := password.HashWithCost(req.Password, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	pinHash, err := password.HashWithCost(req.PIN, s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash pin: %w", err)
	}

	now := s.now().UTC()
	u := &user.User{
		ID:           uuid.New(),
		Name:         req.Name,
		Email:        req.Email,
		MobileNumber: req.MobileNumber,
		PasswordHash: passwordHash,
		PINHash:      pinHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// the unique index catches a concurrent signup that passed the lookup above
	if err := s.userRepo.Create(ctx, u, wallet.PeriodStart(now, s.loc)); err != nil {
		if errors.Is(err, user.ErrEmailAlreadyExists) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, err
	}

	log.Info().Str("user_id", u.ID.String()).Msg("Account created")
	return s.issue(u)
}

func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	u, err := s.userRepo.GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, fmt.Errorf("login lookup: %w", err)
	}
	if u == nil || !password.Verify(req.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *jwt.Claims) error {
	if claims == nil || claims.ID == "" {
		return nil
	}
	if err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAtTime()); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	log.Info().Str("user_id", claims.UserID.String()).Msg("Token revoked")
	return nil
}

// Profile returns the signed-in account
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*user.User, error) {
	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *Service) issue(u *user.User) (*AuthResponse, error) {
	token, err := s.jwtService.GenerateAccessToken(u.ID)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.jwtService.GetAccessTTL().Seconds()),
		User:        NewUserResponse(u),
	}, nil
}
