package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
)

// Token uses. Reset tokens must never pass as session credentials, so the use
// is part of the signed payload and checked on validation.
const (
	UseSession       = "session"
	UsePasswordReset = "password_reset"
)

// Claims is the self-issued token payload: {userId, email, iat, exp} plus the
// token use discriminator.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Use    string `json:"use"`
	jwt.RegisteredClaims
}

// Service mints and validates the service's own HS256 bearer tokens,
// independently verifiable without contacting the identity provider.
type Service struct {
	signingKey []byte
	issuer     string
	sessionTTL time.Duration
	resetTTL   time.Duration
}

func NewService(signingKey string, issuer string, sessionTTL, resetTTL time.Duration) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
	}
}

// GenerateSessionToken mints a 24h session credential for a directory user.
func (s *Service) GenerateSessionToken(userID domain.UserID, email string) (string, error) {
	return s.generate(userID, email, UseSession, s.sessionTTL)
}

// GeneratePasswordResetToken mints a short-lived credential for the password
// reset flow.
func (s *Service) GeneratePasswordResetToken(userID domain.UserID, email string) (string, error) {
	return s.generate(userID, email, UsePasswordReset, s.resetTTL)
}

func (s *Service) generate(userID domain.UserID, email, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID.String(),
		Email:  email,
		Use:    use,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})

	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", err
	}
	return signedToken, nil
}

// ValidateSessionToken validates a token minted by GenerateSessionToken.
func (s *Service) ValidateSessionToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, UseSession)
}

// ValidatePasswordResetToken validates a token minted by
// GeneratePasswordResetToken.
func (s *Service) ValidatePasswordResetToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, UsePasswordReset)
}

func (s *Service) validate(tokenString, use string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	if claims.Use != use {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token not valid for this operation")
	}

	return claims, nil
}

// ExtractUserID validates a session token and returns its subject.
func (s *Service) ExtractUserID(tokenString string) (domain.UserID, error) {
	claims, err := s.ValidateSessionToken(tokenString)
	if err != nil {
		return domain.UserID{}, err
	}
	return domain.ParseUserID(claims.UserID)
}
