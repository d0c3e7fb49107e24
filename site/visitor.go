package site

import (
	"net/http"
	"time"

	"github.com/hazyhaar/masukame/idgen"
	"github.com/hazyhaar/masukame/kit"
)

// VisitorCookie carries the visitor id the currency preference is keyed by.
const VisitorCookie = "masukame_visitor"

// Visitor puts the visitor id from the cookie in the request context,
// issuing a new id when the cookie is absent or malformed.
func Visitor(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			if c, err := r.Cookie(VisitorCookie); err == nil && idgen.Visitor.Valid(c.Value) {
				id = c.Value
			}
			if id == "" {
				id = idgen.Visitor.New()
				http.SetCookie(w, &http.Cookie{
					Name:     VisitorCookie,
					Value:    id,
					Path:     "/",
					Expires:  time.Now().AddDate(1, 0, 0),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(kit.WithVisitorID(r.Context(), id)))
		})
	}
}
