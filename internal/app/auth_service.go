package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dragonfly-id/internal/model"
	"dragonfly-id/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUsernameExists    = errors.New("username already exists")
	ErrEmailExists       = errors.New("email already exists")
	ErrInvalidCredential = errors.New("invalid username or password")
)

type ObserverStore interface {
	Create(observer *model.Observer) error
	GetByUsername(username string) (*model.Observer, error)
	GetByEmail(email string) (*model.Observer, error)
	GetByID(id uint) (*model.Observer, error)
}

type AuthService struct {
	observers     ObserverStore
	jwtSecret     string
	jwtExpiration time.Duration
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
}

type LoginInput struct {
	Username string
	Password string
}

type AuthResult struct {
	Token    string
	Observer *model.Observer
}

func NewAuthService(observers ObserverStore, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		observers:     observers,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (s *AuthService) Register(input RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := strings.TrimSpace(input.Password)

	if username == "" || email == "" || password == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existingByName, err := s.observers.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existingByName != nil {
		return nil, ErrUsernameExists
	}

	existingByEmail, err := s.observers.GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if existingByEmail != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	observer := &model.Observer{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.observers.Create(observer); err != nil {
		return nil, err
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, observer.ID, observer.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Observer: observer}, nil
}

func (s *AuthService) Login(input LoginInput) (*AuthResult, error) {
	username := strings.TrimSpace(input.Username)
	password := strings.TrimSpace(input.Password)
	if username == "" || password == "" {
		return nil, ErrInvalidInput
	}

	observer, err := s.observers.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if observer == nil {
		return nil, ErrInvalidCredential
	}

	if err := bcrypt.CompareHashAndPassword([]byte(observer.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredential
	}

	token, err := jwtutil.GenerateToken(s.jwtSecret, s.jwtExpiration, observer.ID, observer.Username)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, Observer: observer}, nil
}

func (s *AuthService) GetObserverByID(id uint) (*model.Observer, error) {
	if id == 0 {
		return nil, ErrInvalidInput
	}
	return s.observers.GetByID(id)
}
