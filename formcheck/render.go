// CLAUDE:SUMMARY Renders mutually exclusive field states (classes + message elements) into form markup.
package formcheck

import (
	"golang.org/x/net/html"

	"github.com/hazyhaar/masukame/dom"
)

var stateClasses = []string{"error", "warning", "success"}

const messageSelector = ".form-error, .form-warning, .form-success"

// Apply renders res into the form element: for each field, the previous
// state is cleared inside its closest .form-group and the new one (class on
// the input plus a message element) is added. Fields outside a .form-group
// are left untouched.
func Apply(formNode *html.Node, res Result) {
	for _, name := range res.Fields {
		in := findField(formNode, name)
		if in == nil {
			continue
		}
		SetFieldState(in, res.States[name])
	}
}

// SetFieldState replaces the displayed state of one input.
func SetFieldState(in *html.Node, st State) {
	group := dom.Closest(in, ".form-group")
	if group == nil {
		return
	}
	clearFieldState(in, group)

	switch st.Status {
	case Error:
		dom.AddClass(in, "error")
		group.AppendChild(dom.NewElement("div", "form-error", st.Message))
	case Warning:
		dom.AddClass(in, "warning")
		msg := dom.NewElement("div", "form-warning", st.Message)
		dom.SetAttr(msg, "style", "color: #f59e0b")
		group.AppendChild(msg)
	case Success:
		dom.AddClass(in, "success")
		if st.Message != "" {
			msg := dom.NewElement("div", "form-success", st.Message)
			dom.SetAttr(msg, "style", "color: #10b981")
			group.AppendChild(msg)
		}
	}
}

// Fill writes submitted values back into the form so a re-rendered form
// keeps what the visitor typed.
func Fill(formNode *html.Node, values map[string]string) {
	for name, val := range values {
		in := findField(formNode, name)
		if in == nil {
			continue
		}
		switch in.Data {
		case "textarea":
			dom.SetText(in, val)
		case "select":
			for _, opt := range dom.QuerySelectorAll(in, "option") {
				if dom.Attr(opt, "value") == val {
					dom.SetAttr(opt, "selected", "")
				} else {
					dom.RemoveAttr(opt, "selected")
				}
			}
		default:
			dom.SetAttr(in, "value", val)
		}
	}
}

func clearFieldState(in, group *html.Node) {
	dom.RemoveClass(in, stateClasses...)
	for _, m := range dom.QuerySelectorAll(group, messageSelector) {
		dom.Detach(m)
	}
}

func findField(formNode *html.Node, name string) *html.Node {
	for _, n := range dom.QuerySelectorAll(formNode, fieldSelector) {
		if dom.Attr(n, "name") == name {
			return n
		}
	}
	return nil
}
