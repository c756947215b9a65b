package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainUser "github.com/lendledger/lendledger/internal/domain/user"
)

// Role is the API role carried in a token.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserDisabled = errors.New("user is disabled")
)

// Claims are the JWT claims issued by the identity provider.
type Claims struct {
	UserID   string `json:"uid"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller.
type Principal struct {
	UserID   uuid.UUID
	Username string
	Role     Role
}

func (p *Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Service verifies bearer tokens.
type Service struct {
	userRepo domainUser.Repository
	secret   []byte
	issuer   string
	logger   zerolog.Logger
}

// NewService creates an auth service. An empty issuer skips the issuer check.
func NewService(userRepo domainUser.Repository, secret []byte, issuer string, logger zerolog.Logger) *Service {
	return &Service{
		userRepo: userRepo,
		secret:   secret,
		issuer:   issuer,
		logger:   logger.With().Str("service", "auth").Logger(),
	}
}

// Authenticate validates token and resolves the caller. The user must exist
// and be active.
func (s *Service) Authenticate(ctx context.Context, token string) (*Principal, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("missing token: %w", ErrInvalidToken)
	}
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("parsing user id: %w", ErrInvalidToken)
	}

	u, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if u == nil {
		return nil, fmt.Errorf("unknown user: %w", ErrInvalidToken)
	}
	if !u.IsActive() {
		return nil, ErrUserDisabled
	}

	role := claims.Role
	if role == "" {
		role = RoleUser
	}
	return &Principal{UserID: u.UserID, Username: u.Username, Role: role}, nil
}

func (s *Service) parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, opts...)
	if err != nil {
		s.logger.Debug().Err(err).Msg("token rejected")
		return nil, fmt.Errorf("parsing token: %w", ErrInvalidToken)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
