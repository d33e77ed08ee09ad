package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"chatd/internal/chat"
)

var ErrInvalidToken = errors.New("invalid token")

// ScheduleDeleter is what account deletion needs from the schedule
// store: dropping the user's pending and sent entries.
type ScheduleDeleter interface {
	DeleteBySender(ctx context.Context, sender string) error
}

// Service is the Auth Port: it owns credential hashing, token issuance
// and token validation. Every connection is validated here before it is
// admitted anywhere near the registry.
type Service struct {
	repo      *Repository
	schedules ScheduleDeleter
	jwtSecret string
}

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewService(repo *Repository, schedules ScheduleDeleter, secret string) *Service {
	return &Service{
		repo:      repo,
		schedules: schedules,
		jwtSecret: secret,
	}
}

func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	if req.Username == "" || req.Password == "" {
		return nil, errors.New("username and password are required")
	}
	// The public-room sentinel can never be claimed as a username.
	if req.Username == chat.PublicReceiver {
		return nil, fmt.Errorf("username %q is reserved", req.Username)
	}

	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Username: req.Username,
		Password: string(hashedPwd),
	}
	return s.repo.CreateUser(ctx, u)
}

func (s *Service) Login(ctx context.Context, req *RegisterRequest) (*LoginResponse, error) {
	u, err := s.repo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "chatd",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	})

	ss, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		AccessToken: ss,
		Username:    u.Username,
	}, nil
}

// ValidateToken checks the bearer credential and yields the identity it
// carries.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.Username, nil
}

func (s *Service) SearchUsers(ctx context.Context, query string) ([]User, error) {
	return s.repo.SearchUsers(ctx, query)
}

// DeleteAccount removes the user row and cascades the user's scheduled
// entries so nothing authored by a deleted account ever fires.
func (s *Service) DeleteAccount(ctx context.Context, username string) error {
	if err := s.repo.DeleteUser(ctx, username); err != nil {
		return err
	}
	if s.schedules != nil {
		if err := s.schedules.DeleteBySender(ctx, username); err != nil {
			return fmt.Errorf("delete scheduled entries: %w", err)
		}
	}
	return nil
}
