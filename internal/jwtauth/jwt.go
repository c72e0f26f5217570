// Package jwtauth issues and validates the access tokens that carry a
// caller's identity, ledger address, and capability into request handling.
package jwtauth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"certledger/internal/domain"
	domainerrors "certledger/pkg/domain-errors"
)

// Claims are the JWT claims for access tokens.
type Claims struct {
	SubjectID  string `json:"subject_id"`
	Address    string `json:"address"`
	Capability string `json:"capability"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation.
type Service struct {
	signingKey []byte
	issuer     string
	audience   string
	clock      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the timestamp source for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewService(signingKey, issuer, audience string, opts ...Option) *Service {
	s := &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// GenerateAccessToken mints a signed token for the subject.
func (s *Service) GenerateAccessToken(
	subjectID string,
	address domain.Address,
	capability domain.Capability,
	expiresIn time.Duration) (string, error) {
	now := s.clock()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SubjectID:  subjectID,
		Address:    string(address),
		Capability: string(capability),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken parses and verifies a token string.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainerrors.New(domainerrors.CodeUnauthorized, "token has expired")
		}
		return nil, domainerrors.New(domainerrors.CodeUnauthorized, "invalid token")
	}
	if !parsed.Valid {
		return nil, domainerrors.New(domainerrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, domainerrors.New(domainerrors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Identity is the validated caller context handlers work with.
type Identity struct {
	SubjectID  string
	Address    domain.Address
	Capability domain.Capability
}

// IdentityFromToken validates the token and lifts its claims into an
// Identity. Unknown capability strings degrade to recipient.
func (s *Service) IdentityFromToken(tokenString string) (Identity, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		SubjectID:  claims.SubjectID,
		Address:    domain.Address(claims.Address),
		Capability: domain.ParseCapability(claims.Capability),
	}, nil
}
