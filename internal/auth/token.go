package auth

import (
	"crypto/hmac"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultTokenTTL is the lifetime of an issued token.
const DefaultTokenTTL = time.Hour

var (
	ErrTokenMalformed        = errors.New("token is malformed")
	ErrTokenInvalidSignature = errors.New("token signature is invalid")
	ErrTokenExpired          = errors.New("token is expired")
)

var ErrEmptySigningKey = errors.New("token signing key must not be empty")

// Claims is the identity payload carried by a token.
// It embeds the registered claims for iat and exp.
type Claims struct {
	jwt.RegisteredClaims
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
}

// TokenService issues and verifies HS256-signed identity tokens.
// It keeps no server-side state.
type TokenService struct {
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
	parser     *jwt.Parser
}

type tokenOptions struct {
	ttl time.Duration
	now func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*tokenOptions)

// WithTTL overrides DefaultTokenTTL.
func WithTTL(ttl time.Duration) TokenOption {
	return func(options *tokenOptions) {
		options.ttl = ttl
	}
}

// WithClock replaces time.Now for issuing and checking expiry.
func WithClock(now func() time.Time) TokenOption {
	return func(options *tokenOptions) {
		options.now = now
	}
}

// NewTokenService creates a TokenService signing with signingKey.
func NewTokenService(signingKey []byte, optionsProto ...TokenOption) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, ErrEmptySigningKey
	}

	options := &tokenOptions{
		ttl: DefaultTokenTTL,
		now: time.Now,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	return &TokenService{
		signingKey: signingKey,
		ttl:        options.ttl,
		now:        options.now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Issue signs userID and userName together with iat = now and exp = now + TTL.
func (s *TokenService) Issue(userID int64, userName string) (string, error) {
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:   userID,
		UserName: userName,
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf(
			"in internal/auth/token.go/Issue(): error while `token.SignedString()` calling: %w",
			err,
		)
	}

	return tokenString, nil
}

// Verify checks the signature and expiry of tokenString and returns its claims.
// The HMAC is checked over the raw header and payload segments before either
// is decoded, so any altered byte of a signed token is ErrTokenInvalidSignature.
// The expiry check is strict: a token is valid only while now is before exp.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: token contains %d segments", ErrTokenMalformed, len(parts))
	}
	expected, err := jwt.SigningMethodHS256.Sign(parts[0]+"."+parts[1], s.signingKey)
	if err != nil {
		return nil, fmt.Errorf(
			"in internal/auth/token.go/Verify(): error while `jwt.SigningMethodHS256.Sign()` calling: %w",
			err,
		)
	}
	// Compared as encoded text: a non-canonical base64 signature decoding to
	// the same bytes is still an altered token.
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, ErrTokenInvalidSignature
	}

	claims := &Claims{}
	_, err = s.parser.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.signingKey, nil
		},
	)
	if err != nil {
		return nil, classifyParseError(err)
	}

	if claims.ExpiresAt == nil || claims.UserID == 0 {
		return nil, ErrTokenMalformed
	}

	if !s.now().Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}

	return claims, nil
}

func classifyParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
