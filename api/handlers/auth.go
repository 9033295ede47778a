package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/BaSui01/speechflow/types"
)

// =============================================================================
// Caller-Tier Authentication Middleware
// =============================================================================

// callerContextKey is the context key for the resolved caller context.
type callerContextKey struct{}

// CallerClaims are the JWT claims carried by caller tokens.
type CallerClaims struct {
	Tier    string `json:"tier"`
	ChildID string `json:"child_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthMiddleware resolves the caller tier from a bearer token.
//
// Requests without an Authorization header are served as anonymous
// free-tier callers; only a present-but-invalid token is rejected.
type AuthMiddleware struct {
	secret []byte
	logger *zap.Logger
}

// NewAuthMiddleware creates the middleware. An empty secret disables token
// verification entirely: every caller is treated as anonymous free tier.
func NewAuthMiddleware(secret string, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		secret: []byte(secret),
		logger: logger,
	}
}

// WithCaller attaches a types.CallerContext to the request context.
func (m *AuthMiddleware) WithCaller(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, err := m.resolveCaller(r)
		if err != nil {
			WriteError(w, types.NewError(types.ErrAuthentication, "invalid bearer token").
				WithCause(err).
				WithHTTPStatus(http.StatusUnauthorized), m.logger)
			return
		}

		ctx := context.WithValue(r.Context(), callerContextKey{}, caller)
		next(w, r.WithContext(ctx))
	}
}

// RequireCaller is like WithCaller but rejects anonymous requests.
// Used for operator endpoints such as curriculum prewarm.
func (m *AuthMiddleware) RequireCaller(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			WriteError(w, types.NewError(types.ErrAuthentication, "bearer token required").
				WithHTTPStatus(http.StatusUnauthorized), m.logger)
			return
		}
		m.WithCaller(next)(w, r)
	}
}

// resolveCaller parses the Authorization header into a caller context.
// No header means anonymous free tier, never an error.
func (m *AuthMiddleware) resolveCaller(r *http.Request) (types.CallerContext, error) {
	header := r.Header.Get("Authorization")
	if header == "" || len(m.secret) == 0 {
		return types.DefaultCallerContext(), nil
	}

	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return types.CallerContext{}, types.NewError(types.ErrAuthentication, "authorization header must use the Bearer scheme")
	}

	claims := &CallerClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, types.NewError(types.ErrAuthentication, "unexpected token signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return types.CallerContext{}, err
	}
	if !token.Valid {
		return types.CallerContext{}, types.NewError(types.ErrAuthentication, "token is not valid")
	}

	tier := types.CallerTier(claims.Tier)
	if !tier.Valid() {
		tier = types.TierFree
	}

	return types.CallerContext{
		Tier:      tier,
		ChildID:   claims.ChildID,
		RequestID: r.Header.Get("X-Request-ID"),
	}, nil
}

// CallerFrom extracts the caller context set by WithCaller.
// Returns the anonymous free-tier context when none is present.
func CallerFrom(ctx context.Context) types.CallerContext {
	if caller, ok := ctx.Value(callerContextKey{}).(types.CallerContext); ok {
		return caller
	}
	return types.DefaultCallerContext()
}
