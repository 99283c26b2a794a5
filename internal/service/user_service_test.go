package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/campus-tf/trove/internal/domain"
)

func newTestUserService(repo *MockUserRepository) *UserService {
	return NewUserService(repo, nil, zerolog.Nop())
}

func TestUserService_Register(t *testing.T) {
	tests := []struct {
		name      string
		input     RegisterInput
		wantErr   error
		setupRepo func(*MockUserRepository)
	}{
		{
			name: "success",
			input: RegisterInput{
				Username: "newuser",
				Email:    "newuser@campus.edu",
				Password: "correct horse battery",
			},
			wantErr: nil,
		},
		{
			name: "username too short",
			input: RegisterInput{
				Username: "ab",
				Email:    "ab@campus.edu",
				Password: "longenough",
			},
			wantErr: ErrInvalidUsername,
		},
		{
			name: "bad email",
			input: RegisterInput{
				Username: "newuser",
				Email:    "not-an-email",
				Password: "longenough",
			},
			wantErr: ErrInvalidEmail,
		},
		{
			name: "password too short",
			input: RegisterInput{
				Username: "newuser",
				Email:    "newuser@campus.edu",
				Password: "short",
			},
			wantErr: ErrInvalidPassword,
		},
		{
			name: "duplicate username",
			input: RegisterInput{
				Username: "existing",
				Email:    "fresh@campus.edu",
				Password: "longenough",
			},
			wantErr: domain.ErrUserAlreadyExists,
			setupRepo: func(m *MockUserRepository) {
				m.addUser("existing")
			},
		},
		{
			name: "duplicate email",
			input: RegisterInput{
				Username: "freshname",
				Email:    "existing@campus.edu",
				Password: "longenough",
			},
			wantErr: domain.ErrUserAlreadyExists,
			setupRepo: func(m *MockUserRepository) {
				m.addUser("existing")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewMockUserRepository()
			if tt.setupRepo != nil {
				tt.setupRepo(repo)
			}
			svc := newTestUserService(repo)

			output, err := svc.Register(context.Background(), tt.input)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if output.User.ID == 0 {
				t.Error("expected user ID to be set")
			}
			if output.User.PasswordHash == tt.input.Password {
				t.Error("password must not be stored in plain text")
			}
			if err := bcrypt.CompareHashAndPassword([]byte(output.User.PasswordHash), []byte(tt.input.Password)); err != nil {
				t.Error("stored hash does not match the password")
			}
			if !output.User.IsActive {
				t.Error("new user should be active")
			}
		})
	}
}

func TestUserService_Authenticate(t *testing.T) {
	ctx := context.Background()
	repo := NewMockUserRepository()
	svc := newTestUserService(repo)

	registered, err := svc.Register(ctx, RegisterInput{
		Username: "student",
		Email:    "student@campus.edu",
		Password: "s3cret-enough",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	t.Run("success", func(t *testing.T) {
		user, err := svc.Authenticate(ctx, "student", "s3cret-enough")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if user.ID != registered.User.ID {
			t.Errorf("wrong user returned: %d", user.ID)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "student", "wrong-password")
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials, got %v", err)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody", "whatever")
		if !errors.Is(err, domain.ErrInvalidCredentials) {
			t.Fatalf("expected invalid credentials, got %v", err)
		}
	})

	t.Run("inactive user", func(t *testing.T) {
		if err := svc.SetActive(ctx, registered.User.ID, false); err != nil {
			t.Fatalf("deactivate failed: %v", err)
		}
		defer func() {
			if err := svc.SetActive(ctx, registered.User.ID, true); err != nil {
				t.Fatalf("reactivate failed: %v", err)
			}
		}()

		_, err := svc.Authenticate(ctx, "student", "s3cret-enough")
		if !errors.Is(err, domain.ErrUserInactive) {
			t.Fatalf("expected inactive error, got %v", err)
		}
	})
}

func TestUserService_GetByID(t *testing.T) {
	ctx := context.Background()
	repo := NewMockUserRepository()
	svc := newTestUserService(repo)
	user := repo.addUser("someone")

	got, err := svc.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Username != "someone" {
		t.Errorf("wrong user: %s", got.Username)
	}

	if _, err := svc.GetByID(ctx, 9999); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}
