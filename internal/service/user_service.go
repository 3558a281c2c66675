package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"user-service/internal/domain"
	"user-service/internal/repository"
	"user-service/internal/trace"
)

// UserService coordina registro, autenticación y perfil de usuarios.
type UserService struct {
	logger *zap.Logger
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenCodec
	tracer *trace.Tracer
	clock  func() time.Time
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, hasher PasswordHasher, tokens TokenCodec, tracer *trace.Tracer) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hasher == nil {
		hasher = NewBcryptHasher(0)
	}
	if tracer == nil {
		tracer = trace.NewTracer(nil, "", logger)
	}
	return &UserService{
		logger: logger,
		users:  users,
		hasher: hasher,
		tokens: tokens,
		tracer: tracer,
		clock:  time.Now,
	}
}

type RegisterInput struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Address     string
	PhoneNumber string
}

var (
	ErrNotFound           = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrStore              = errors.New("user store failure")
	ErrNotConfigured      = errors.New("user service not configured")
)

func storeError(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}

func (s *UserService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, ErrNotConfigured
	}
	s.tracer.LogEvent(ctx, "Registering new user: "+input.Username, trace.LevelInfo)

	digest, err := s.hasher.Hash(input.Password)
	if err != nil {
		s.tracer.LogEvent(ctx, "Password hashing failed for user: "+input.Username, trace.LevelError)
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock().UTC()
	user := domain.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: digest,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Address:      input.Address,
		PhoneNumber:  input.PhoneNumber,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	saved, err := s.users.Save(ctx, user)
	if err != nil {
		s.tracer.LogEvent(ctx, "User registration failed: "+input.Username, trace.LevelError)
		return domain.User{}, storeError(err)
	}

	s.tracer.LogEvent(ctx, "User registered successfully with ID: "+formatID(saved.ID), trace.LevelInfo)
	return saved, nil
}

// Authenticate devuelve un token firmado si las credenciales son válidas.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (string, error) {
	if s.users == nil || s.tokens == nil {
		return "", ErrNotConfigured
	}
	s.tracer.LogEvent(ctx, "Authenticating user: "+username, trace.LevelInfo)

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.tracer.LogEvent(ctx, "Authentication failed: User not found - "+username, trace.LevelError)
			return "", ErrNotFound
		}
		return "", storeError(err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		s.tracer.LogEvent(ctx, "Authentication failed: Invalid password for user - "+username, trace.LevelError)
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.Username, user.ID, s.clock())
	if err != nil {
		return "", err
	}
	s.tracer.LogEvent(ctx, "User authenticated successfully: "+username, trace.LevelInfo)
	return token, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, ErrNotConfigured
	}
	s.tracer.LogEvent(ctx, "Fetching user by ID: "+formatID(id), trace.LevelInfo)

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.tracer.LogEvent(ctx, "User not found with ID: "+formatID(id), trace.LevelError)
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, storeError(err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	if s.users == nil {
		return nil, ErrNotConfigured
	}
	s.tracer.LogEvent(ctx, "Fetching all users", trace.LevelInfo)

	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	s.tracer.LogEvent(ctx, "Retrieved "+strconv.Itoa(len(users))+" users", trace.LevelInfo)
	return users, nil
}

// Update sólo modifica campos de perfil; id, username y hash se conservan.
func (s *UserService) Update(ctx context.Context, id int64, update domain.UserUpdate) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, ErrNotConfigured
	}
	s.tracer.LogEvent(ctx, "Updating user with ID: "+formatID(id), trace.LevelInfo)

	current, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.tracer.LogEvent(ctx, "User not found with ID: "+formatID(id), trace.LevelError)
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, storeError(err)
	}

	next := update.Apply(current)
	next.UpdatedAt = s.clock().UTC()
	saved, err := s.users.Save(ctx, next)
	if err != nil {
		return domain.User{}, storeError(err)
	}
	s.tracer.LogEvent(ctx, "User updated successfully with ID: "+formatID(id), trace.LevelInfo)
	return saved, nil
}

// ValidateToken nunca falla: cualquier problema con el token es false.
func (s *UserService) ValidateToken(ctx context.Context, token string) bool {
	if strings.TrimSpace(token) == "" {
		s.tracer.LogEvent(ctx, "Token validation failed: Empty or null token", trace.LevelWarn)
		return false
	}
	if s.tokens == nil {
		return false
	}
	if _, ok := s.tokens.Validate(token, s.clock()); !ok {
		s.tracer.LogEvent(ctx, "Token validation failed: invalid or expired token", trace.LevelWarn)
		return false
	}
	s.tracer.LogEvent(ctx, "Token validated successfully", trace.LevelInfo)
	return true
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
