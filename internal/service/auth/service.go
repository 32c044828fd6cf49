package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/config"
	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveActor      = errors.New("account is disabled")
)

const (
	defaultAccessExpiry  = 24 * time.Hour
	defaultRefreshExpiry = 7 * 24 * time.Hour
)

// Claims carries actor identity inside access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	ActorID uuid.UUID `json:"actor_id"`
	Email   string    `json:"email"`
}

type Service struct {
	actors repository.ActorRepository
	hasher security.PasswordHasher
	cfg    config.JWTConfig
	logger *logger.Logger
}

func NewService(actors repository.ActorRepository, hasher security.PasswordHasher,
	cfg config.JWTConfig, logger *logger.Logger) *Service {
	return &Service{
		actors: actors,
		hasher: hasher,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Service) Login(ctx context.Context, email, password string) (*model.TokenPair, error) {
	actor, err := s.actors.GetByEmail(ctx, email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !actor.Active {
		return nil, ErrInactiveActor
	}
	if err := s.hasher.Compare(actor.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.generateTokens(actor)
}

func (s *Service) Register(ctx context.Context, email, name, password string) (*model.Actor, error) {
	if existing, _ := s.actors.GetByEmail(ctx, email); existing != nil {
		return nil, fmt.Errorf("email already registered")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := time.Now().UTC()
	actor := &model.Actor{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.actors.Create(ctx, actor); err != nil {
		return nil, fmt.Errorf("creating actor: %w", err)
	}

	s.logger.Info("actor registered", "actor_id", actor.ID.String(), "email", email)
	return actor, nil
}

// ValidateToken parses an access token and returns its claims.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return s.parse(token, s.cfg.Secret)
}

// Refresh exchanges a valid refresh token for a new token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	claims, err := s.parse(refreshToken, s.cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	actor, err := s.actors.GetByEmail(ctx, claims.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !actor.Active {
		return nil, ErrInactiveActor
	}
	return s.generateTokens(actor)
}

func (s *Service) generateTokens(actor *model.Actor) (*model.TokenPair, error) {
	access, err := s.sign(actor, s.cfg.Secret, s.accessExpiry())
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, err := s.sign(actor, s.cfg.RefreshSecret, s.refreshExpiry())
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}
	return &model.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(actor *model.Actor, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
		ActorID: actor.ID,
		Email:   actor.Email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func (s *Service) parse(token, secret string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func (s *Service) accessExpiry() time.Duration {
	if s.cfg.ExpiryHours > 0 {
		return time.Duration(s.cfg.ExpiryHours) * time.Hour
	}
	return defaultAccessExpiry
}

func (s *Service) refreshExpiry() time.Duration {
	if s.cfg.RefreshExpiryHours > 0 {
		return time.Duration(s.cfg.RefreshExpiryHours) * time.Hour
	}
	return defaultRefreshExpiry
}
