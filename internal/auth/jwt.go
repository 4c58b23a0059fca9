package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles recognised by the dashboard.
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

var (
	ErrInvalidRole  = errors.New("role must be student or teacher")
	ErrInvalidToken = errors.New("invalid token")
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents JWT payload.
type Claims struct {
	Role string `json:"role"`
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 tokens for one issuer.
type Signer struct {
	Key        []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

// NewSigner builds a signer using the wall clock.
func NewSigner(key, issuer string, accessTTL, refreshTTL time.Duration) *Signer {
	return &Signer{Key: []byte(key), Issuer: issuer, AccessTTL: accessTTL, RefreshTTL: refreshTTL, Now: time.Now}
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleStudent || role == RoleTeacher
}

// Issue issues signed access and refresh tokens for subject acting as role.
func (s *Signer) Issue(subject, role string) (TokenPair, error) {
	if !ValidRole(role) {
		return TokenPair{}, ErrInvalidRole
	}
	now := s.Now()
	accessExp := now.Add(s.AccessTTL)
	refreshExp := now.Add(s.RefreshTTL)

	access, err := s.sign(subject, role, "access", now, accessExp)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(subject, role, "refresh", now, refreshExp)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *Signer) sign(subject, role, kind string, now, exp time.Time) (string, error) {
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.Key)
}

// Parse validates an access token and returns its claims.
func (s *Signer) Parse(tokenStr string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.Now),
	}
	if s.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.Issuer))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return s.Key, nil
	}, opts...)
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Kind != "access" {
		return Claims{}, ErrInvalidToken
	}
	if !ValidRole(claims.Role) {
		return Claims{}, ErrInvalidRole
	}
	return *claims, nil
}
