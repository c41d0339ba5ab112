package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"coopmarket/internal/identity/provider"
	"coopmarket/internal/platform/metrics"
	"coopmarket/internal/transport/http/shared"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/platform/sentinel"
	"coopmarket/pkg/requestcontext"
)

// Directory is the persistent store of user records, viewed through the
// narrow lens the resolver needs. The user feature provides an adapter.
type Directory interface {
	FindByExternalID(ctx context.Context, externalID string) (*Principal, error)
	FindByInternalID(ctx context.Context, id domain.UserID) (*Principal, error)
}

// Strategy authenticates one bearer token variant into a Principal. A request
// authenticates via exactly one strategy: the first in the resolver's
// declared order to accept the token.
type Strategy interface {
	Name() string
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// resolvePrincipal applies the shared directory rules: an unknown identity is
// unauthenticated (never forbidden), an inactive one is forbidden, anything
// else yields the fully populated record.
func resolvePrincipal(p *Principal, err error) (Principal, error) {
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Principal{}, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized: User not found in database")
		}
		return Principal{}, dErrors.Wrap(err, dErrors.CodeInternal, "internal server error")
	}
	if !p.IsActive {
		return Principal{}, dErrors.New(dErrors.CodeForbidden, "Forbidden: User is not active")
	}
	return *p, nil
}

// ProviderStrategy verifies provider-issued ID tokens, then resolves the
// directory record keyed by the external identity.
type ProviderStrategy struct {
	verifier  provider.Verifier
	directory Directory
}

func NewProviderStrategy(verifier provider.Verifier, directory Directory) *ProviderStrategy {
	return &ProviderStrategy{verifier: verifier, directory: directory}
}

func (s *ProviderStrategy) Name() string { return "provider" }

func (s *ProviderStrategy) Authenticate(ctx context.Context, token string) (Principal, error) {
	ident, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return Principal{}, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized: Invalid token")
	}
	return resolvePrincipal(s.directory.FindByExternalID(ctx, ident.SubjectID))
}

// SessionValidator validates self-issued session tokens
// (internal/jwttoken.Service satisfies it).
type SessionValidator interface {
	ExtractUserID(tokenString string) (domain.UserID, error)
}

// SelfIssuedStrategy verifies tokens minted by this service, then resolves
// the directory record by internal ID. The two token variants are never
// cross-validated; each strategy only understands its own.
type SelfIssuedStrategy struct {
	tokens    SessionValidator
	directory Directory
}

func NewSelfIssuedStrategy(tokens SessionValidator, directory Directory) *SelfIssuedStrategy {
	return &SelfIssuedStrategy{tokens: tokens, directory: directory}
}

func (s *SelfIssuedStrategy) Name() string { return "self-issued" }

func (s *SelfIssuedStrategy) Authenticate(ctx context.Context, token string) (Principal, error) {
	userID, err := s.tokens.ExtractUserID(token)
	if err != nil {
		return Principal{}, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized: Invalid token")
	}
	return resolvePrincipal(s.directory.FindByInternalID(ctx, userID))
}

// Resolver turns inbound requests into resolved Principals before any
// protected handler runs. Strategies are tried in declared order per route
// group; resolution is stateless and has no side effects beyond attaching
// the principal to the context.
type Resolver struct {
	strategies []Strategy
	devMode    bool
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewResolver builds a resolver with the given strategy order. An empty
// strategy list means the identity provider is not configured: in
// development mode requests resolve a fixed mock principal, in any other
// mode every protected request fails with a service-unavailable error.
func NewResolver(strategies []Strategy, devMode bool, logger *slog.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{strategies: strategies, devMode: devMode, logger: logger, metrics: m}
}

// DevPrincipal is the fixed principal synthesized by the development-mode
// bypass. It never reaches the directory.
var DevPrincipal = Principal{
	InternalID: domain.UserID{},
	Email:      "dev@example.com",
	Role:       domain.RoleUser,
	IsActive:   true,
}

// Middleware enforces the resolution contract:
// unconfigured+development → mock principal; unconfigured otherwise → 500;
// missing/malformed header → 401; strategy failures → the failure's own
// class, 401 and 403 never conflated.
func (res *Resolver) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if len(res.strategies) == 0 {
				if res.devMode {
					res.logger.WarnContext(ctx, "development mode: using mock authentication",
						"request_id", requestcontext.RequestID(ctx),
					)
					next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, DevPrincipal)))
					return
				}
				res.metrics.IncrementAuthFailure("unavailable")
				res.reject(w, r, dErrors.New(dErrors.CodeUnavailable, "Authentication service not configured"))
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				res.metrics.IncrementAuthFailure("unauthenticated")
				res.reject(w, r, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized: No token provided"))
				return
			}

			var lastErr error
			for _, strategy := range res.strategies {
				principal, err := strategy.Authenticate(ctx, token)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, principal)))
					return
				}
				lastErr = err
				// A forbidden result means the credential was valid but the
				// principal is blocked; trying further strategies would let a
				// deactivated user shop for a path in.
				if dErrors.HasCode(err, dErrors.CodeForbidden) {
					break
				}
			}

			if dErrors.HasCode(lastErr, dErrors.CodeForbidden) {
				res.metrics.IncrementAuthFailure("forbidden")
			} else {
				res.metrics.IncrementAuthFailure("unauthenticated")
			}
			res.reject(w, r, lastErr)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	const bearerPrefix = "Bearer "
	token, ok := strings.CutPrefix(authHeader, bearerPrefix)
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func (res *Resolver) reject(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	res.logger.WarnContext(ctx, "request rejected by identity resolver",
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
		"path", r.URL.Path,
	)
	shared.WriteError(w, err)
}
