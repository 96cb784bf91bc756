package service

import (
	"context"
	"fmt"

	"github.com/alexedwards/argon2id"

	"github.com/hookline/tow-bookings/internal/domain"
	"github.com/hookline/tow-bookings/internal/repository"
	"github.com/hookline/tow-bookings/pkg/auth"
	"github.com/hookline/tow-bookings/pkg/config"
	"github.com/hookline/tow-bookings/pkg/logger"
)

type AuthService interface {
	Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.LoginResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error)
	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

type authService struct {
	userRepo repository.UserRepository
	config   *config.Config
}

func NewAuthService(userRepo repository.UserRepository, config *config.Config) AuthService {
	return &authService{userRepo: userRepo, config: config}
}

func (s *authService) Register(ctx context.Context, req *domain.CreateUserRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Self-service registration never grants elevated roles
	if req.Role != domain.RoleCustomer {
		return nil, domain.ValidationError{Field: "role", Msg: "only customer accounts can self-register"}
	}

	existing, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, domain.PersistenceError{Op: "check existing user", Err: err}
	}
	if existing != nil {
		return nil, domain.ConflictError{Resource: "user", Msg: "email already registered"}
	}

	passwordHash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, req, passwordHash)
	if err != nil {
		return nil, domain.PersistenceError{Op: "create user", Err: err}
	}

	// Attach guest bookings made with this email before the account existed
	if linked, err := s.userRepo.LinkBookingsByEmail(ctx, user.ID, user.Email); err != nil {
		logger.WarnContext(ctx, "Failed to link existing bookings", "error", err, "user_id", user.ID)
	} else if linked > 0 {
		logger.InfoContext(ctx, "Linked guest bookings to new account", "user_id", user.ID, "count", linked)
	}

	return s.issueTokens(user)
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, domain.PersistenceError{Op: "find user", Err: err}
	}
	if user == nil {
		return nil, domain.AuthError{Msg: "invalid credentials"}
	}

	valid, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !valid {
		return nil, domain.AuthError{Msg: "invalid credentials"}
	}

	return s.issueTokens(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*domain.LoginResponse, error) {
	claims, err := auth.Parse(refreshToken, s.config.Auth.JWTSecret)
	if err != nil {
		return nil, domain.AuthError{Msg: "invalid refresh token", Err: err}
	}
	if claims.Scope != "refresh" {
		return nil, domain.AuthError{Msg: "invalid token type"}
	}

	user, err := s.userRepo.FindByID(ctx, claims.Sub)
	if err != nil {
		return nil, domain.PersistenceError{Op: "find user", Err: err}
	}
	if user == nil {
		return nil, domain.AuthError{Msg: "user no longer exists"}
	}

	resp, err := s.issueTokens(user)
	if err != nil {
		return nil, err
	}
	// Keep the original refresh token, only the access token rotates
	resp.RefreshToken = refreshToken
	return resp, nil
}

func (s *authService) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, domain.PersistenceError{Op: "find user", Err: err}
	}
	if user == nil {
		return nil, domain.NotFoundError{Resource: "user"}
	}
	return user, nil
}

func (s *authService) issueTokens(user *domain.User) (*domain.LoginResponse, error) {
	scope := scopeForRole(user.Role)

	accessToken, err := auth.NewAccessToken(
		user.ID,
		user.Email,
		user.Role,
		scope,
		s.config.Auth.JWTSecret,
		s.config.Auth.AccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := auth.NewAccessToken(
		user.ID,
		user.Email,
		"refresh",
		"refresh",
		s.config.Auth.JWTSecret,
		s.config.Auth.RefreshTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.Auth.AccessTokenTTL.Seconds()),
		User:         user.ToUserInfo(),
	}, nil
}

func scopeForRole(role string) string {
	switch role {
	case domain.RoleAdmin:
		return "admin:read admin:write bookings:read bookings:write users:read users:write"
	case domain.RoleDispatcher:
		return "dispatch:read dispatch:write bookings:read bookings:write"
	default:
		return "bookings:read bookings:write"
	}
}
