package site

import (
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	xhtml "golang.org/x/net/html"

	"github.com/hazyhaar/masukame/currency"
	"github.com/hazyhaar/masukame/dom"
	"github.com/hazyhaar/masukame/formcheck"
	"github.com/hazyhaar/masukame/idgen"
	"github.com/hazyhaar/masukame/kit"
	"github.com/hazyhaar/masukame/observability"
	"github.com/hazyhaar/masukame/shield"
)

// handlePage serves an HTML page priced in the visitor's currency. Paths
// with another extension go to the content file server.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	reqPath := path.Clean("/" + r.URL.Path)
	if ext := path.Ext(reqPath); ext != "" && ext != ".html" {
		http.FileServer(http.FS(s.pages.fsys)).ServeHTTP(w, r)
		return
	}

	status := http.StatusOK
	src, ok := s.pages.Lookup(reqPath)
	if !ok {
		status = http.StatusNotFound
		if src, ok = s.pages.Lookup("/404"); !ok {
			http.NotFound(w, r)
			return
		}
	}

	page, err := dom.NewPage(reqPath, src)
	if err != nil {
		shield.GetLogger(r.Context()).Error("site: parse page", "path", reqPath, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	s.conv.RefreshPage(ctx, page)
	code := s.conv.Current(ctx)
	flash := shield.GetFlash(ctx)
	page.Do(func(doc *xhtml.Node) error {
		decorate(doc, reqPath, code, flash, s.cfg.Analytics)
		return nil
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(page.HTML()))
}

// handleCurrency switches the visitor's currency. It reads "currency" from
// a form post or a JSON body.
func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request) {
	var code string
	if wantsJSON(r) {
		var body struct {
			Currency string `json:"currency"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		code = body.Currency
	} else {
		code = r.FormValue("currency")
	}

	ctx := r.Context()
	if !s.conv.SetCurrency(ctx, code) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported currency %q", code))
		return
	}
	next := s.conv.Current(ctx)
	s.logEvent(r, observability.SiteEvent{Type: "currency_changed", Subject: string(next), Success: true})

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"currency": next,
			"symbol":   currency.Symbol(next),
			"rate":     s.conv.Rate(next),
		})
		return
	}
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// handleForm validates a submission against the descriptor derived from
// the page. Failures answer 422 with the field states (JSON) or the form
// re-rendered with its inline messages (HTML). Valid submissions are
// sanitised and relayed to the provider, the outbox catching failures.
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	desc, ok := s.pages.Form(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown form")
		return
	}

	values, err := readValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res := s.validate.ValidateForm(desc, values)
	if !res.Valid {
		if wantsJSON(r) {
			writeJSON(w, http.StatusUnprocessableEntity, res)
			return
		}
		out, err := s.renderInvalid(r, name, values, res)
		if err != nil {
			shield.GetLogger(r.Context()).Error("site: render invalid form", "form", name, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(out))
		return
	}

	ctx := r.Context()
	id := idgen.Submission.New()
	payload := map[string]string{
		"_form":          name,
		"_submission_id": id,
		"_submitted_at":  time.Now().UTC().Format(time.RFC3339),
	}
	for _, f := range desc.Fields {
		if v := strings.TrimSpace(s.clean(values[f.Name])); v != "" {
			payload[f.Name] = v
		}
	}
	body, _ := json.Marshal(payload)

	logger := shield.GetLogger(ctx)
	relay := s.relays[name]
	if relay == nil {
		relay = s.outbox.Handler(name)
	}
	if _, err := relay(ctx, body); err != nil {
		logger.Error("site: form relay failed", "form", name, "submission", id, "error", err)
		s.logEvent(r, observability.SiteEvent{Type: "form_submitted", Subject: name, Success: false})
		if wantsJSON(r) {
			writeError(w, http.StatusBadGateway, "submission could not be delivered")
			return
		}
		shield.SetFlash(w, shield.FlashError, "Your message could not be sent. Please try again later.")
		http.Redirect(w, r, backTo(r), http.StatusSeeOther)
		return
	}

	logger.Info("site: form submitted", "form", name, "submission", id)
	s.logEvent(r, observability.SiteEvent{Type: "form_submitted", Subject: name, Details: `{"id":"` + id + `"}`, Success: true})
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "message": ThankYou})
		return
	}
	shield.SetFlash(w, shield.FlashSuccess, ThankYou)
	http.Redirect(w, r, backTo(r), http.StatusSeeOther)
}

// renderInvalid serves the page holding the form again, the form swapped
// for a copy showing values and field states. The swapped-in form may carry
// prices of its own; the page observer prices them before the page is
// written.
func (s *Server) renderInvalid(r *http.Request, name string, values map[string]string, res formcheck.Result) (string, error) {
	pf := s.pages.forms[name]
	src, ok := s.pages.Lookup(pf.page)
	if !ok {
		return "", fmt.Errorf("site: page %s of form %s missing", pf.page, name)
	}
	frag, err := s.pages.renderForm(name, values, res)
	if err != nil {
		return "", err
	}
	page, err := dom.NewPage(pf.page, src)
	if err != nil {
		return "", err
	}

	ctx := r.Context()
	s.conv.RefreshPage(ctx, page)
	stop := s.conv.Observe(ctx, page)
	n, err := page.Replace(pf.selector, frag)
	stop()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", fmt.Errorf("site: form %s not found on %s", name, pf.page)
	}

	code := s.conv.Current(ctx)
	page.Do(func(doc *xhtml.Node) error {
		decorate(doc, pf.page, code, nil, s.cfg.Analytics)
		return nil
	})
	return page.HTML(), nil
}

// clean strips all markup from a submitted value, keeping plain text.
func (s *Server) clean(v string) string {
	return html.UnescapeString(s.sanitize.Sanitize(v))
}

func readValues(r *http.Request) (map[string]string, error) {
	values := make(map[string]string)
	if wantsJSON(r) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			return nil, fmt.Errorf("invalid JSON body")
		}
		for k, v := range raw {
			if str, ok := v.(string); ok {
				values[k] = str
			}
		}
		return values, nil
	}
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body")
	}
	for k := range r.PostForm {
		values[k] = r.PostForm.Get(k)
	}
	return values, nil
}

// backTo is the same-site page to return to after a post. Anything that
// could leave the host, including protocol-relative paths, falls back to "/".
func backTo(r *http.Request) string {
	u, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || u.Opaque != "" || u.User != nil {
		return "/"
	}
	if u.Scheme != "" || u.Host != "" {
		if u.Host != r.Host {
			return "/"
		}
	}
	p := u.EscapedPath()
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.ContainsRune(u.Path, '\\') {
		return "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

func (s *Server) logEvent(r *http.Request, ev observability.SiteEvent) {
	if s.events == nil {
		return
	}
	ev.VisitorID = kit.GetVisitorID(r.Context())
	s.events.Log(r.Context(), ev)
}
