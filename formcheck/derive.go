package formcheck

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/masukame/dom"
)

const fieldSelector = "input, textarea, select"

// DeriveForm builds descriptors from a form element carrying data-validate:
// the required attribute, type=email, type=tel and data-wallet become rules.
// Fields without a name are skipped. ok is false when node is not a
// validating form.
func DeriveForm(node *html.Node) (Form, bool) {
	if node == nil || node.Data != "form" || !dom.HasAttr(node, "data-validate") {
		return Form{}, false
	}
	form := Form{Name: formName(node)}
	for _, in := range dom.QuerySelectorAll(node, fieldSelector) {
		name := dom.Attr(in, "name")
		if name == "" {
			continue
		}
		form.Fields = append(form.Fields, deriveField(in, name))
	}
	return form, true
}

// DeriveAll returns descriptors for every validating form in doc, keyed by
// form name.
func DeriveAll(doc *html.Node) map[string]Form {
	out := make(map[string]Form)
	for _, n := range dom.QuerySelectorAll(doc, "form[data-validate]") {
		if f, ok := DeriveForm(n); ok && f.Name != "" {
			out[f.Name] = f
		}
	}
	return out
}

func deriveField(in *html.Node, name string) Field {
	f := Field{Name: name}
	if dom.HasAttr(in, "required") {
		f.Rules = append(f.Rules, Rule{Kind: Required})
	}
	switch strings.ToLower(dom.Attr(in, "type")) {
	case "email":
		f.Rules = append(f.Rules, Rule{Kind: Email})
	case "tel":
		f.Rules = append(f.Rules, Rule{Kind: Phone})
	}
	if role := dom.Attr(in, "data-wallet"); role != "" {
		f.Rules = append(f.Rules, Rule{Kind: Wallet})
		f.Wallet = WalletRole(role)
	}
	return f
}

func formName(n *html.Node) string {
	for _, key := range []string{"data-form", "name", "id"} {
		if v := dom.Attr(n, key); v != "" {
			return strings.TrimSuffix(v, "-form")
		}
	}
	return ""
}
