package site

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/masukame/currency"
	"github.com/hazyhaar/masukame/dom"
	"github.com/hazyhaar/masukame/formcheck"
	"github.com/hazyhaar/masukame/shield"
	"github.com/hazyhaar/masukame/siteconfig"
)

//go:embed content
var embedded embed.FS

// DefaultContent returns the bundled pages.
func DefaultContent() fs.FS {
	sub, _ := fs.Sub(embedded, "content")
	return sub
}

// Pages holds the HTML sources of a content tree, keyed by URL path, and
// the form descriptors derived from them.
type Pages struct {
	fsys  fs.FS
	src   map[string]string
	forms map[string]pageForm
}

type pageForm struct {
	desc     formcheck.Form
	html     string // the form element as authored
	page     string // URL path of the page holding it
	selector string
}

// LoadPages reads every .html file of fsys. "index.html" serves "/",
// "collection.html" serves "/collection", "en/index.html" serves "/en".
func LoadPages(fsys fs.FS) (*Pages, error) {
	p := &Pages{fsys: fsys, src: make(map[string]string), forms: make(map[string]pageForm)}
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(name) != ".html" {
			return err
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		src := string(data)
		p.src[urlPath(name)] = src

		doc, err := dom.Parse(src)
		if err != nil {
			return fmt.Errorf("site: parse %s: %w", name, err)
		}
		for _, n := range dom.QuerySelectorAll(doc, "form[data-validate]") {
			if f, ok := formcheck.DeriveForm(n); ok && f.Name != "" {
				sel := `form[action="` + dom.Attr(n, "action") + `"]`
				if id := dom.Attr(n, "id"); id != "" {
					sel = "#" + id
				}
				p.forms[f.Name] = pageForm{desc: f, html: dom.Render(n), page: urlPath(name), selector: sel}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("site: load pages: %w", err)
	}
	return p, nil
}

func urlPath(name string) string {
	name = strings.TrimSuffix(name, ".html")
	switch {
	case name == "index":
		return "/"
	case strings.HasSuffix(name, "/index"):
		return "/" + strings.TrimSuffix(name, "/index")
	}
	return "/" + name
}

// Lookup returns the source of the page served at urlPath.
func (p *Pages) Lookup(urlPath string) (string, bool) {
	if urlPath != "/" {
		urlPath = strings.TrimSuffix(urlPath, "/")
		urlPath = strings.TrimSuffix(urlPath, ".html")
	}
	src, ok := p.src[urlPath]
	return src, ok
}

// Form returns the descriptor of a validating form found in the pages.
func (p *Pages) Form(name string) (formcheck.Form, bool) {
	f, ok := p.forms[name]
	return f.desc, ok
}

// FormNames lists the validating forms found in the pages.
func (p *Pages) FormNames() []string {
	out := make([]string, 0, len(p.forms))
	for name := range p.forms {
		out = append(out, name)
	}
	return out
}

// renderForm returns the authored form with values refilled and the
// validation states of res applied.
func (p *Pages) renderForm(name string, values map[string]string, res formcheck.Result) (string, error) {
	f, ok := p.forms[name]
	if !ok {
		return "", fmt.Errorf("site: unknown form %q", name)
	}
	nodes, err := dom.ParseFragment(nil, f.html)
	if err != nil {
		return "", err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode && n.Data == "form" {
			formcheck.Fill(n, values)
			formcheck.Apply(n, res)
			return dom.Render(n), nil
		}
	}
	return "", fmt.Errorf("site: form %q has no form element", name)
}

// decorate applies the per-request touches to a priced document: active
// nav link, selected currency, flash message and analytics ids.
func decorate(doc *html.Node, reqPath string, code currency.Code, flash *shield.FlashMessage, a siteconfig.AnalyticsConfig) {
	for _, link := range dom.QuerySelectorAll(doc, ".nav-menu a") {
		dom.RemoveClass(link, "active")
		if dom.Attr(link, "href") == reqPath {
			dom.AddClass(link, "active")
		}
	}

	for _, opt := range dom.QuerySelectorAll(doc, ".currency-selector option") {
		if dom.Attr(opt, "value") == string(code) {
			dom.SetAttr(opt, "selected", "")
		} else {
			dom.RemoveAttr(opt, "selected")
		}
	}

	if flash != nil {
		if slot := dom.QuerySelector(doc, ".flash-slot"); slot != nil {
			dom.RemoveChildren(slot)
			slot.AppendChild(dom.NewElement("div", flash.Class(), flash.Message))
		}
	}

	if body := dom.QuerySelector(doc, "body"); body != nil {
		if a.GoogleAnalyticsID != "" {
			dom.SetAttr(body, "data-ga-id", a.GoogleAnalyticsID)
		}
		if a.MetaPixelID != "" {
			dom.SetAttr(body, "data-pixel-id", a.MetaPixelID)
		}
		if a.DebugMode {
			dom.SetAttr(body, "data-analytics-debug", "true")
		}
	}
}
