package usecases

import (
	"errors"
	"fmt"

	"task-server/apperr"
	"task-server/auth"
	"task-server/entities"
	"task-server/repositories"

	"gorm.io/gorm"
)

const (
	minUsernameLen = 3
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes
	maxPasswordLen = 72
)

// AuthUseCase runs the registration and login flows that hand out session tokens.
type AuthUseCase struct {
	users  repositories.UserRepository
	hasher auth.PasswordHasher
	authn  *auth.Authenticator
}

func NewAuthUseCase(users repositories.UserRepository, hasher auth.PasswordHasher, authn *auth.Authenticator) *AuthUseCase {
	return &AuthUseCase{users: users, hasher: hasher, authn: authn}
}

// Register creates a user and returns it with a fresh session token.
func (uc *AuthUseCase) Register(username, password string) (*entities.User, string, error) {
	if username == "" || password == "" {
		return nil, "", apperr.New(apperr.InvalidInput, "username and password are required")
	}
	if len(username) < minUsernameLen {
		return nil, "", apperr.New(apperr.InvalidInput, fmt.Sprintf("username must be at least %d characters", minUsernameLen))
	}
	if len(password) < minPasswordLen {
		return nil, "", apperr.New(apperr.InvalidInput, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if len(password) > maxPasswordLen {
		return nil, "", apperr.New(apperr.InvalidInput, fmt.Sprintf("password must be at most %d bytes", maxPasswordLen))
	}

	hash, err := uc.hasher.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &entities.User{Username: username, PasswordHash: hash}
	if err := uc.users.Create(user); err != nil {
		return nil, "", err
	}

	token, err := uc.authn.Issue(*user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login checks credentials and returns the user with a fresh session token.
func (uc *AuthUseCase) Login(username, password string) (*entities.User, string, error) {
	if username == "" || password == "" {
		return nil, "", apperr.New(apperr.InvalidInput, "username and password are required")
	}

	user, err := uc.users.GetByUsername(username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", apperr.ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !uc.hasher.Verify(password, user.PasswordHash) {
		return nil, "", apperr.ErrInvalidCredentials
	}

	token, err := uc.authn.Issue(*user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Me returns the account behind p, or nil if it no longer exists.
func (uc *AuthUseCase) Me(p entities.Principal) (*entities.User, error) {
	if p.IsZero() {
		return nil, apperr.ErrUnauthenticated
	}
	user, err := uc.users.GetByID(p.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
