package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles password hashing plus JWT generation and validation.
type AuthService struct {
	privateKey      *rsa.PrivateKey
	publicKey       *rsa.PublicKey
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// TokenPair bundles an access token with its refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenClaims carries the business fields middleware reads from a token.
// Role is stored normalized, so consumers can trust it without re-parsing.
type TokenClaims struct {
	UserID             uint   `json:"user_id"`
	Role               Role   `json:"role"`
	EmpID              string `json:"emp_id,omitempty"`
	TokenType          string `json:"token_type"`
	MustChangePassword bool   `json:"must_change_password,omitempty"`
	jwt.RegisteredClaims
}

// NewAuthService parses the PEM key pair and builds the service.
func NewAuthService(privateKeyPEM, publicKeyPEM []byte, accessTTL, refreshTTL time.Duration) (*AuthService, error) {
	if len(privateKeyPEM) == 0 {
		return nil, errors.New("private key pem is required")
	}
	if len(publicKeyPEM) == 0 {
		return nil, errors.New("public key pem is required")
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa private key: %w", err)
	}
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rsa public key: %w", err)
	}

	return &AuthService{
		privateKey:      privateKey,
		publicKey:       publicKey,
		accessTokenTTL:  accessTTL,
		refreshTokenTTL: refreshTTL,
	}, nil
}

// HashPassword produces a bcrypt hash of the password.
func (s *AuthService) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash reports whether the password matches the stored hash.
func (s *AuthService) CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateTokenPair mints an access and a refresh token for the account.
func (s *AuthService) GenerateTokenPair(userID uint, role Role, empID string, mustChangePassword bool) (TokenPair, error) {
	if !role.Valid() {
		return TokenPair{}, fmt.Errorf("invalid role %q", role)
	}

	now := time.Now()

	accessClaims := TokenClaims{
		UserID:             userID,
		Role:               role,
		EmpID:              empID,
		TokenType:          "access",
		MustChangePassword: mustChangePassword,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
		},
	}
	refreshClaims := TokenClaims{
		UserID:    userID,
		Role:      role,
		EmpID:     empID,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.refreshTokenTTL)),
		},
	}

	accessToken, err := s.signClaims(accessClaims)
	if err != nil {
		return TokenPair{}, err
	}
	refreshToken, err := s.signClaims(refreshClaims)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// ValidateToken parses and verifies a JWT.
func (s *AuthService) ValidateToken(tokenString string) (*TokenClaims, error) {
	if tokenString == "" {
		return nil, errors.New("token string is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.publicKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("invalid role claim %q", claims.Role)
	}

	return claims, nil
}

func (s *AuthService) signClaims(claims TokenClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// AccessTokenTTL exposes the access token lifetime.
func (s *AuthService) AccessTokenTTL() time.Duration {
	return s.accessTokenTTL
}

// RefreshTokenTTL exposes the refresh token lifetime.
func (s *AuthService) RefreshTokenTTL() time.Duration {
	return s.refreshTokenTTL
}
