package site

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hazyhaar/masukame/connectivity"
	"github.com/hazyhaar/masukame/currency"
	"github.com/hazyhaar/masukame/dbopen"
	"github.com/hazyhaar/masukame/idgen"
	"github.com/hazyhaar/masukame/observability"
	"github.com/hazyhaar/masukame/registry"
	"github.com/hazyhaar/masukame/shield"
	"github.com/hazyhaar/masukame/siteconfig"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// provider is a form endpoint double recording every JSON body.
type provider struct {
	mu     sync.Mutex
	bodies []map[string]string
	down   bool
}

func (p *provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	var body map[string]string
	json.NewDecoder(r.Body).Decode(&body)
	p.bodies = append(p.bodies, body)
	w.Write([]byte(`{"ok":true}`))
}

func (p *provider) received() []map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]map[string]string(nil), p.bodies...)
}

type fixture struct {
	srv      *httptest.Server
	provider *provider
	outbox   *Outbox
	events   *observability.EventLogger
	client   *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	prov := &provider{}
	provSrv := httptest.NewServer(prov)
	t.Cleanup(provSrv.Close)

	cfg := siteconfig.Default()
	cfg.Env = siteconfig.Development
	cfg.Forms = siteconfig.FormsConfig{
		Purchase:   provSrv.URL + "/f/purchase",
		Concierge:  provSrv.URL + "/f/concierge",
		Newsletter: "",
	}

	db := dbopen.OpenMemory(t, dbopen.WithSchema(observability.Schema))
	outbox, err := NewOutbox(db)
	if err != nil {
		t.Fatal(err)
	}
	pages, err := LoadPages(DefaultContent())
	if err != nil {
		t.Fatal(err)
	}

	router := connectivity.New(connectivity.WithLogger(quiet))
	router.RegisterTransport(connectivity.StrategyHTTP, connectivity.HTTPFactory())
	if err := router.Apply(connectivity.FormRoutes(cfg.Forms.Endpoints())); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { router.Close() })

	reg := registry.New(cfg, registry.WithLogger(quiet), registry.WithUpdateInterval(10*time.Millisecond))
	t.Cleanup(reg.Destroy)

	events := observability.NewEventLogger(db)
	s := New(Deps{
		Config:      cfg,
		Logger:      quiet,
		Converter:   currency.New(cfg.FallbackRates(), currency.WithLogger(quiet)),
		Registry:    reg,
		Router:      router,
		Outbox:      outbox,
		Pages:       pages,
		Events:      events,
		Maintenance: shield.NewMaintenanceMode(nil, "/healthz"),
		Metrics:     observability.NewRegistry(),
		DB:          db,
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	jar := newJar()
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &fixture{srv: srv, provider: prov, outbox: outbox, events: events, client: client}
}

func (f *fixture) get(t *testing.T, p string) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.Get(f.srv.URL + p)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (f *fixture) postForm(t *testing.T, p string, v url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := f.client.PostForm(f.srv.URL+p, v)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (f *fixture) postJSON(t *testing.T, p, body string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest("POST", f.srv.URL+p, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp, string(out)
}

func TestPage_PricedInUSDByDefault(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/collection")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(body, "From $3,000") || !strings.Contains(body, "$12,000") {
		t.Errorf("USD prices missing:\n%s", body)
	}
	if !strings.Contains(body, `<a href="/collection" class="active">`) {
		t.Errorf("nav link not active:\n%s", body)
	}
	if !strings.Contains(body, `data-ga-id="G-2VFDEPKDDW"`) {
		t.Error("analytics id not exposed")
	}
}

func TestCurrency_SwitchIsPerVisitor(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/") // issues the visitor cookie

	resp, _ := f.postForm(t, "/currency", url.Values{"currency": {"JPY"}})
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status %d", resp.StatusCode)
	}

	_, body := f.get(t, "/collection")
	if !strings.Contains(body, "From Approx. ¥445,500") {
		t.Errorf("JPY price missing:\n%s", body)
	}
	if !strings.Contains(body, "¥1,782,000") || strings.Contains(body, "Approx. ¥1,782,000") {
		t.Errorf("data-show-approx=false not honoured:\n%s", body)
	}
	if !strings.Contains(body, `<option value="JPY" selected="">`) {
		t.Errorf("selector not synced:\n%s", body)
	}

	_, home := f.get(t, "/")
	if !strings.Contains(home, "From Approx. ¥297,000") || !strings.Contains(home, ">POA<") {
		t.Errorf("edition prices:\n%s", home)
	}

	// Another visitor still sees dollars.
	other := newJarClient()
	resp, err := other.Get(f.srv.URL + "/collection")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(b), "From $3,000") {
		t.Error("currency leaked to another visitor")
	}
}

func TestCurrency_Unsupported(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.postForm(t, "/currency", url.Values{"currency": {"GBP"}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d", resp.StatusCode)
	}
	resp, body := f.postJSON(t, "/currency", `{"currency":"EUR"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"symbol":"€"`) {
		t.Fatalf("json switch: %d %s", resp.StatusCode, body)
	}
}

func TestPage_NotFound(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/nowhere")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, "Page not found") {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func validPurchase() url.Values {
	wallet := "0x" + strings.Repeat("ab", 20)
	return url.Values{
		"name":           {"Aiko Tanaka"},
		"email":          {"aiko@example.com"},
		"phone":          {"+81 3 1234 5678"},
		"edition":        {"classic"},
		"wallet":         {wallet},
		"wallet_confirm": {"0x" + strings.ToUpper(wallet[2:])},
		"notes":          {"<b>Gift</b> for R&D <script>alert(1)</script>"},
	}
}

func TestForm_InvalidRendersInlineStates(t *testing.T) {
	f := newFixture(t)
	resp, body := f.postForm(t, "/forms/concierge", url.Values{"email": {"not-an-email"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", resp.StatusCode)
	}
	for _, want := range []string{
		`<div class="form-error">This field is required</div>`,
		`<div class="form-error">Please enter a valid email address</div>`,
		`value="not-an-email"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s in\n%s", want, body)
		}
	}
	if len(f.provider.received()) != 0 {
		t.Error("invalid submission relayed")
	}
}

func TestForm_InvalidPageKeepsVisitorPrices(t *testing.T) {
	f := newFixture(t)
	f.get(t, "/")
	f.postForm(t, "/currency", url.Values{"currency": {"JPY"}})

	resp, body := f.postForm(t, "/forms/purchase", url.Values{"name": {"Aiko"}})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if !strings.Contains(body, `<div class="form-error">This field is required</div>`) || !strings.Contains(body, `value="Aiko"`) {
		t.Errorf("form states missing:\n%s", body)
	}
	// Page heading and the re-rendered form hint are both priced in yen.
	if n := strings.Count(body, "From Approx. ¥297,000"); n != 2 {
		t.Errorf("classic price rendered %d times, want 2:\n%s", n, body)
	}
	if !strings.Contains(body, "From Approx. ¥594,000") || !strings.Contains(body, ">POA<") {
		t.Errorf("form edition prices:\n%s", body)
	}
	if !strings.Contains(body, `<a href="/purchase" class="active">`) || strings.Count(body, `id="purchase-form"`) != 1 {
		t.Errorf("page not decorated or form duplicated:\n%s", body)
	}
}

func TestForm_WalletMismatchJSON(t *testing.T) {
	f := newFixture(t)
	v := validPurchase()
	in := map[string]string{}
	for k := range v {
		in[k] = v.Get(k)
	}
	in["wallet_confirm"] = "0x" + strings.Repeat("cd", 20)
	body, _ := json.Marshal(in)

	resp, out := f.postJSON(t, "/forms/purchase", string(body))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %s", resp.StatusCode, out)
	}
	var res struct {
		Valid  bool `json:"valid"`
		Fields map[string]struct {
			Message string `json:"message"`
		} `json:"fields"`
	}
	json.Unmarshal([]byte(out), &res)
	if res.Valid || res.Fields["wallet_confirm"].Message != "Wallet addresses do not match" {
		t.Fatalf("result = %s", out)
	}
}

func TestForm_ValidIsSanitisedAndRelayed(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest("POST", f.srv.URL+"/forms/purchase", strings.NewReader(validPurchase().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", f.srv.URL+"/purchase")
	resp, err := f.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/purchase" {
		t.Fatalf("status %d location %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	got := f.provider.received()
	if len(got) != 1 {
		t.Fatalf("provider got %d submissions", len(got))
	}
	sub := got[0]
	if sub["_form"] != "purchase" || sub["email"] != "aiko@example.com" || !strings.HasPrefix(sub["_submission_id"], "sub_") {
		t.Errorf("payload = %v", sub)
	}
	if sub["notes"] != "Gift for R&D" {
		t.Errorf("notes not sanitised: %q", sub["notes"])
	}

	// The flash shows on the next page.
	_, body := f.get(t, "/purchase")
	if !strings.Contains(body, `<div class="flash flash-success">`+ThankYou+`</div>`) {
		t.Errorf("flash missing:\n%s", body)
	}
	n, _ := f.events.Count(t.Context(), "form_submitted", time.Now().Add(-time.Minute))
	if n != 1 {
		t.Errorf("events = %d", n)
	}
}

func TestForm_ProviderDownFallsBackToOutbox(t *testing.T) {
	f := newFixture(t)
	f.provider.mu.Lock()
	f.provider.down = true
	f.provider.mu.Unlock()

	resp, _ := f.postForm(t, "/forms/purchase", validPurchase())
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("status %d", resp.StatusCode)
	}
	pending, err := f.outbox.Pending(t.Context(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Form != "purchase" {
		t.Fatalf("outbox = %+v", pending)
	}
}

func TestForm_NoEndpointGoesToOutbox(t *testing.T) {
	f := newFixture(t)
	resp, body := f.postJSON(t, "/forms/newsletter", `{"email":"n@example.com"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, ThankYou) {
		t.Fatalf("status %d: %s", resp.StatusCode, body)
	}
	pending, _ := f.outbox.Pending(t.Context(), 0)
	if len(pending) != 1 || pending[0].Form != "newsletter" {
		t.Fatalf("outbox = %+v", pending)
	}
	if err := f.outbox.Delete(t.Context(), pending[0].ID); err != nil {
		t.Fatal(err)
	}
}

func TestForm_Unknown(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.postForm(t, "/forms/unknown", url.Values{})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestAPI_Registry(t *testing.T) {
	f := newFixture(t)

	_, body := f.get(t, "/api/registry/search?q=1")
	var sr registry.SearchResponse
	json.Unmarshal([]byte(body), &sr)
	if sr.Sculpture == nil || sr.Sculpture.Serial != "001" {
		t.Fatalf("search = %s", body)
	}

	resp, _ := f.get(t, "/api/registry/search")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty query: %d", resp.StatusCode)
	}

	_, body = f.get(t, "/api/registry/statistics")
	if !strings.Contains(body, `"totalMinted":12`) {
		t.Errorf("statistics = %s", body)
	}

	_, body = f.get(t, "/api/registry/transfers/MSK-001")
	if !strings.Contains(body, `"Mint"`) {
		t.Errorf("transfers = %s", body)
	}

	resp, _ = f.postJSON(t, "/api/registry/verify", `{"tokenId":"MSK-001","walletAddress":"0x123"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad wallet: %d", resp.StatusCode)
	}
	resp, body = f.postJSON(t, "/api/registry/verify",
		`{"tokenId":"MSK-001","walletAddress":"0x`+strings.Repeat("ab", 20)+`"}`)
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"verified":true`) {
		t.Errorf("verify: %d %s", resp.StatusCode, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("healthz: %d %s", resp.StatusCode, body)
	}
	f.get(t, "/collection")
	_, metrics := f.get(t, "/metrics")
	if !strings.Contains(metrics, "masukame_http_requests_total") {
		t.Error("http metrics not exported")
	}
}

func TestUpdatesWebsocket(t *testing.T) {
	f := newFixture(t)
	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws/updates"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var u registry.Update
	if err := conn.ReadJSON(&u); err != nil {
		t.Fatal(err)
	}
	if u.Type != "status_update" || u.Data["serial"] != "001" {
		t.Errorf("update = %+v", u)
	}
}

func TestVisitorCookie(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.get(t, "/")
	var id string
	for _, c := range resp.Cookies() {
		if c.Name == VisitorCookie {
			id = c.Value
		}
	}
	if !idgen.Visitor.Valid(id) {
		t.Fatalf("visitor id = %q", id)
	}
	resp, _ = f.get(t, "/")
	for _, c := range resp.Cookies() {
		if c.Name == VisitorCookie {
			t.Fatalf("cookie reissued: %s", c.Value)
		}
	}
	if idgen.Visitor.Valid("vis_nope") || idgen.Visitor.Valid("abc") {
		t.Error("malformed ids accepted")
	}
}

func TestBackTo(t *testing.T) {
	req := httptest.NewRequest("POST", "http://masukame.test/forms/purchase", nil)
	for ref, want := range map[string]string{
		"":                                  "/",
		"http://masukame.test/purchase?x=1": "/purchase?x=1",
		"https://evil.example/phish":        "/",
		"//evil.example":                    "/",
		"/concierge":                        "/concierge",
		"http://masukame.test//evil.com":    "/",
		"http://masukame.test/\\evil.com":   "/",
		"/\\evil.com":                       "/",
		"http://masukame.test":              "/",
		"javascript:alert(1)":               "/",
	} {
		req.Header.Set("Referer", ref)
		if got := backTo(req); got != want {
			t.Errorf("backTo(%q) = %q, want %q", ref, got, want)
		}
	}
}

func TestOutbox_Flush(t *testing.T) {
	db := dbopen.OpenMemory(t)
	ob, err := NewOutbox(db)
	if err != nil {
		t.Fatal(err)
	}
	ctx := t.Context()
	ob.Handler("purchase")(ctx, []byte(`{"_submission_id":"sub_a"}`))
	ob.Handler("concierge")(ctx, []byte(`{"_submission_id":"sub_b"}`))

	var seen []string
	sent, err := ob.Flush(ctx, func(_ context.Context, form string, payload []byte) error {
		seen = append(seen, form)
		if form == "concierge" {
			return errors.New("provider down")
		}
		return nil
	})
	if sent != 1 || err == nil || !strings.Contains(err.Error(), "sub_b") {
		t.Fatalf("sent=%d err=%v", sent, err)
	}
	if len(seen) != 2 {
		t.Errorf("seen = %v", seen)
	}
	left, _ := ob.Pending(ctx, 0)
	if len(left) != 1 || left[0].ID != "sub_b" {
		t.Fatalf("left = %+v", left)
	}
}
