// Package auth provides bearer-token authentication for the shop API:
// a stateless JWT token service and the resolver that turns the
// Authorization header of a request into a trusted identity.
package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/patric-chuzhbe/shop/internal/logger"
	"github.com/patric-chuzhbe/shop/internal/models"
)

type tokenVerifier interface {
	Verify(tokenString string) (*Claims, error)
}

type failureRecorder interface {
	RecordAuthFailure(reason string)
}

type errorResponder func(response http.ResponseWriter, err error)

// Identity is the caller identity taken verbatim from token claims.
// It is not re-checked against the account store.
type Identity struct {
	UserID   int64
	UserName string
}

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// IdentityKey is the context key holding the resolved Identity.
const IdentityKey ContextKey = "identity"

const bearerPrefix = "Bearer "

// Auth resolves request identities and guards protected routes.
type Auth struct {
	tokens    tokenVerifier
	recorder  failureRecorder
	onFailure errorResponder
}

type initOptions struct {
	recorder  failureRecorder
	onFailure errorResponder
}

// InitOption configures Auth.
type InitOption func(*initOptions)

// WithFailureRecorder reports every rejected request to recorder.
func WithFailureRecorder(recorder failureRecorder) InitOption {
	return func(options *initOptions) {
		options.recorder = recorder
	}
}

// WithErrorResponder sets how RequireIdentity writes a rejection.
func WithErrorResponder(responder func(response http.ResponseWriter, err error)) InitOption {
	return func(options *initOptions) {
		options.onFailure = responder
	}
}

// New creates an Auth backed by the given token verifier.
func New(tokens tokenVerifier, optionsProto ...InitOption) *Auth {
	options := &initOptions{
		onFailure: func(response http.ResponseWriter, err error) {
			response.WriteHeader(http.StatusUnauthorized)
		},
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	return &Auth{
		tokens:    tokens,
		recorder:  options.recorder,
		onFailure: options.onFailure,
	}
}

// Resolve extracts the bearer token from header and verifies it.
// It fails with models.ErrNoToken when no token is present and with
// models.ErrInvalidToken when the token is malformed, forged or expired.
func (a *Auth) Resolve(header http.Header) (Identity, error) {
	tokenString := extractBearerToken(header.Get("Authorization"))
	if tokenString == "" {
		return Identity{}, models.ErrNoToken
	}

	claims, err := a.tokens.Verify(tokenString)
	if err != nil {
		logger.Log.Debugln("Error calling the `a.tokens.Verify()`: ", zap.Error(err))
		return Identity{}, models.ErrInvalidToken
	}

	return Identity{
		UserID:   claims.UserID,
		UserName: claims.UserName,
	}, nil
}

// RequireIdentity is an HTTP middleware that rejects requests without a valid
// bearer token and stores the resolved Identity in the request context.
func (a *Auth) RequireIdentity(h http.Handler) http.Handler {
	middleware := func(response http.ResponseWriter, request *http.Request) {
		identity, err := a.Resolve(request.Header)
		if err != nil {
			if a.recorder != nil {
				a.recorder.RecordAuthFailure(failureReason(err))
			}
			a.onFailure(response, err)
			return
		}

		ctx := context.WithValue(request.Context(), IdentityKey, identity)
		h.ServeHTTP(response, request.WithContext(ctx))
	}

	return http.HandlerFunc(middleware)
}

// IdentityFromContext returns the Identity stored by RequireIdentity.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(Identity)
	return identity, ok
}

func extractBearerToken(headerValue string) string {
	headerValue = strings.TrimSpace(headerValue)
	if len(headerValue) < len(bearerPrefix) || !strings.EqualFold(headerValue[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}

	return strings.TrimSpace(headerValue[len(bearerPrefix):])
}

func failureReason(err error) string {
	if appErr, ok := err.(*models.AppError); ok {
		return appErr.Code
	}
	return "unknown"
}
