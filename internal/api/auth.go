package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fastprodman/groupbuy/internal/services/payments"
	"github.com/golang-jwt/jwt/v5"
)

type principalKey struct{}

// claims are issued by the identity service. sub is the user id.
type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var errNoPrincipal = errors.New("missing principal")

// authenticate verifies an HS256 bearer token and stores the principal in
// the request context.
func authenticate(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			var c claims

			_, err := parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
				return secret, nil
			})
			if err != nil || c.Subject == "" {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			p := payments.Principal{UserID: c.Subject, Email: c.Email}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

func principalFrom(ctx context.Context) (payments.Principal, error) {
	p, ok := ctx.Value(principalKey{}).(payments.Principal)
	if !ok {
		return payments.Principal{}, errNoPrincipal
	}

	return p, nil
}
