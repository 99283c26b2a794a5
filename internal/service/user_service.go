package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/campus-tf/trove/internal/domain"
	"github.com/campus-tf/trove/internal/metrics"
	"github.com/campus-tf/trove/internal/repository"
)

// UserService handles user account operations.
type UserService struct {
	userRepo repository.UserRepository
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(userRepo repository.UserRepository, m *metrics.Metrics, logger zerolog.Logger) *UserService {
	return &UserService{
		userRepo: userRepo,
		metrics:  m,
		logger:   logger.With().Str("service", "user").Logger(),
	}
}

// RegisterInput contains the data needed to register a new user.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// RegisterOutput contains the result of a registration.
type RegisterOutput struct {
	User *domain.User
}

// Register creates a new user account.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*RegisterOutput, error) {
	if err := s.validateRegisterInput(input); err != nil {
		return nil, err
	}

	// Check if username already exists
	exists, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to check username existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: username '%s'", domain.ErrUserAlreadyExists, input.Username)
	}

	// Check if email already exists
	exists, err = s.userRepo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("email", input.Email).Msg("failed to check email existence")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: email '%s'", domain.ErrUserAlreadyExists, input.Email)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to hash password")
		return nil, fmt.Errorf("%w: failed to hash password", ErrInternalError)
	}

	user := domain.NewUser(input.Username, input.Email, string(passwordHash))

	if err := s.userRepo.Create(ctx, user); err != nil {
		// The existence checks race against concurrent registrations, so a
		// duplicate can still surface here.
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, err
		}
		s.logger.Error().Err(err).Str("username", input.Username).Msg("failed to create user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	if s.metrics != nil {
		s.metrics.UsersRegistered.Inc()
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("user registered")

	return &RegisterOutput{User: user}, nil
}

// Authenticate verifies user credentials and returns the user.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		// Log but don't expose whether username exists
		s.logger.Debug().Str("username", username).Msg("user not found during authentication")
		return nil, domain.ErrInvalidCredentials
	}

	if !user.CanAuthenticate() {
		s.logger.Debug().Str("username", username).Msg("inactive user attempted authentication")
		return nil, domain.ErrUserInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug().Str("username", username).Msg("invalid password during authentication")
		return nil, domain.ErrInvalidCredentials
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Msg("user authenticated")

	return user, nil
}

// GetByID retrieves a user by ID.
func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Int64("user_id", id).Msg("failed to get user")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return user, nil
}

// SetActive sets the active status of a user.
func (s *UserService) SetActive(ctx context.Context, userID int64, isActive bool) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	user.IsActive = isActive

	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Bool("is_active", isActive).
		Msg("user active status updated")

	return nil
}

// List returns users with pagination.
func (s *UserService) List(ctx context.Context, opts repository.ListOptions) (*repository.ListResult[domain.User], error) {
	result, err := s.userRepo.List(ctx, opts)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("%w: %v", ErrInternalError, err)
	}
	return result, nil
}

// Delete removes a user account.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrInternalError, err)
	}

	s.logger.Info().Int64("user_id", userID).Msg("user deleted")
	return nil
}

func (s *UserService) validateRegisterInput(input RegisterInput) error {
	if len(input.Username) < 3 || len(input.Username) > 64 {
		return ErrInvalidUsername
	}
	if _, err := mail.ParseAddress(input.Email); err != nil {
		return ErrInvalidEmail
	}
	if len(input.Password) < 8 {
		return ErrInvalidPassword
	}
	return nil
}
