package shield

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// FlashCookie holds the message between a post and the page it redirects to.
const FlashCookie = "masukame_flash"

// Flash moves the flash cookie into the request context and expires it.
// Unknown kinds read as errors.
func Flash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(FlashCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: FlashCookie, Path: "/", MaxAge: -1})

		raw, err := url.QueryUnescape(cookie.Value)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		kind, msg, ok := strings.Cut(raw, ":")
		if !ok {
			kind, msg = string(FlashError), raw
		}
		f := &FlashMessage{Kind: FlashError, Message: msg}
		if FlashKind(kind) == FlashSuccess {
			f.Kind = FlashSuccess
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), FlashKey, f)))
	})
}

// SetFlash queues a message for the next page load.
func SetFlash(w http.ResponseWriter, kind FlashKind, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     FlashCookie,
		Value:    url.QueryEscape(string(kind) + ":" + message),
		Path:     "/",
		MaxAge:   10,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Class is the CSS class the site renders the message with.
func (f *FlashMessage) Class() string {
	return "flash flash-" + string(f.Kind)
}
