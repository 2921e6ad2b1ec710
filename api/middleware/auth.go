package middleware

import (
	"context"
	"net/http"

	"github.com/angelmondragon/feeledger/api/responses"
	"github.com/angelmondragon/feeledger/pkg/auth"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

type tokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

// Auth admits requests carrying a valid bearer token and puts the caller's
// identity on the request context and its log fields.
func Auth(verifier tokenVerifier, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			principal, err := verifier.Verify(token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(withPrincipal(r, principal, logg)))
		})
	}
}

func withPrincipal(r *http.Request, p auth.Principal, logg *logger.Logger) context.Context {
	fields := map[string]any{"user_id": p.UserID.String(), "actor_role": string(p.Role)}
	ctx := WithRole(WithUserID(r.Context(), p.UserID.String()), string(p.Role))
	if p.SupplierID != nil {
		ctx = WithSupplierID(ctx, p.SupplierID.String())
		fields["supplier_id"] = p.SupplierID.String()
	}
	if logg != nil {
		ctx = logg.WithFields(ctx, fields)
	}
	return ctx
}
