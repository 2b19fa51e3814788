package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/WooodHead/yeep/internal/iam"
	"github.com/WooodHead/yeep/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier checks bearer tokens issued by the external session service.
// Only HS256 is accepted; the subject claim carries the user id.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret []byte) (*TokenVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	return &TokenVerifier{secret: secret}, nil
}

// Verify parses the token and returns the subject (user id).
func (v *TokenVerifier) Verify(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return "", ErrInvalidToken
	}
	return subject, nil
}

var publicPaths = []string{
	"/",
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
}

// withAuth authenticates every non-public request and loads the caller's
// principal (user + resolved grants) into the context. Unauthenticated
// callers get a 404, not a 401: protected resources do not reveal their
// existence.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a.tokens == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			maskNotFound(w)
			return
		}
		userID, err := a.tokens.Verify(token)
		if err != nil {
			maskNotFound(w)
			return
		}

		start := time.Now()
		principal, err := a.svc.Principal(r.Context(), userID)
		obs.ObserveResolution(time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, iam.ErrNotFound) {
				maskNotFound(w)
				return
			}
			writeFail(w, http.StatusInternalServerError, codeInternal, "authentication error")
			return
		}
		if principal.User.Status != iam.UserStatusActive {
			maskNotFound(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(iam.ContextWithPrincipal(r.Context(), principal)))
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
