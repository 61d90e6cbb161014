package authentication

import (
	"fmt"
	"net/http"

	"github.com/The127/ioc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/the127/chunkyard/internal/config"
	"github.com/the127/chunkyard/internal/logging"
	"github.com/the127/chunkyard/internal/middlewares"
	"github.com/the127/chunkyard/internal/services/clock"
	"github.com/the127/chunkyard/internal/utils/apiError"
)

// ApiAuthenticationMiddleware requires a valid bearer token when a secret is
// configured. Without a secret every request passes as anonymous.
func ApiAuthenticationMiddleware(c config.AuthConfig) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if c.Secret == "" {
				ctx := ContextWithCurrentUser(r.Context(), CurrentUser{})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			currentUser, err := getApiCurrentUser(r, c)
			if err != nil {
				logging.Logger.Debugf("rejected request to %s: %s", r.URL.Path, err)
				w.Header().Set("WWW-Authenticate", `Bearer realm="chunkyard"`)
				apiError.HandleHttpError(w, err)
				return
			}

			ctx := ContextWithCurrentUser(r.Context(), *currentUser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func getApiCurrentUser(r *http.Request, c config.AuthConfig) (*CurrentUser, error) {
	tokenStr, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apiError.ErrApiUnauthorized, err)
	}

	scope := middlewares.GetScope(r.Context())
	clockService := ioc.GetDependency[clock.Service](scope)

	token, err := jwt.Parse(
		tokenStr,
		func(token *jwt.Token) (interface{}, error) {
			return []byte(c.Secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clockService.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("parsing jwt: %w: %w", apiError.ErrApiUnauthorized, err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", apiError.ErrApiUnauthorized)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("token has no subject: %w", apiError.ErrApiUnauthorized)
	}

	return &CurrentUser{
		Subject:         subject,
		IsAuthenticated: true,
	}, nil
}
