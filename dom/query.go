// CLAUDE:SUMMARY CSS selector subset (tag, .class, #id, [attr], [attr=val], descendant, lists) over x/net/html trees.
// Package dom is the document model the site service renders into: selector
// queries, element mutation helpers, and an observable Page that publishes
// mutation batches to its observers.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// QuerySelectorAll returns all element nodes under root matching selector.
// Supported syntax:
//   - tag: "form", "input"
//   - .class: ".price", ".form-group"
//   - #id: "#contact-form"
//   - tag.class / tag#id
//   - [attr] / [attr=val] / tag[attr="val"]
//   - descendant combinator: "form[data-validate] input"
//   - selector lists: "input, textarea, select"
//
// Results are in document order without duplicates.
func QuerySelectorAll(root *html.Node, selector string) []*html.Node {
	if root == nil {
		return nil
	}
	groups := splitList(selector)
	if len(groups) == 1 {
		return queryDescendant(root, groups[0])
	}

	matched := make(map[*html.Node]bool)
	for _, g := range groups {
		for _, n := range queryDescendant(root, g) {
			matched[n] = true
		}
	}
	var ordered []*html.Node
	walk(root, func(n *html.Node) {
		if matched[n] {
			ordered = append(ordered, n)
		}
	})
	return ordered
}

// QuerySelector returns the first match or nil.
func QuerySelector(root *html.Node, selector string) *html.Node {
	all := QuerySelectorAll(root, selector)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// Matches reports whether n itself matches a single compound selector
// (no combinators).
func Matches(n *html.Node, selector string) bool {
	for _, g := range splitList(selector) {
		if matchesSelector(n, parseSimpleSelector(g)) {
			return true
		}
	}
	return false
}

// Closest walks up from n (inclusive) and returns the first ancestor
// matching selector, or nil.
func Closest(n *html.Node, selector string) *html.Node {
	for cur := n; cur != nil; cur = cur.Parent {
		if Matches(cur, selector) {
			return cur
		}
	}
	return nil
}

func splitList(selector string) []string {
	var groups []string
	for _, g := range strings.Split(selector, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}

func queryDescendant(root *html.Node, selector string) []*html.Node {
	parts := strings.Fields(selector)
	if len(parts) == 0 {
		return nil
	}

	matches := matchSimple(root, parts[0])
	for i := 1; i < len(parts); i++ {
		seen := make(map[*html.Node]bool)
		var next []*html.Node
		for _, parent := range matches {
			for c := parent.FirstChild; c != nil; c = c.NextSibling {
				for _, n := range matchSimple(c, parts[i]) {
					if !seen[n] {
						seen[n] = true
						next = append(next, n)
					}
				}
			}
		}
		matches = next
	}
	return matches
}

func matchSimple(root *html.Node, sel string) []*html.Node {
	m := parseSimpleSelector(sel)
	var results []*html.Node
	walk(root, func(n *html.Node) {
		if matchesSelector(n, m) {
			results = append(results, n)
		}
	})
	return results
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

type simpleSelector struct {
	tag     string
	id      string
	class   string
	attrKey string
	attrVal string
	hasVal  bool
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		attrPart := strings.TrimRight(sel[idx+1:], "]")
		sel = sel[:idx]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
			s.hasVal = true
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, '#'); idx >= 0 {
		s.id = sel[idx+1:]
		sel = sel[:idx]
	}

	if idx := strings.IndexByte(sel, '.'); idx >= 0 {
		s.class = sel[idx+1:]
		sel = sel[:idx]
	}

	s.tag = sel
	return s
}

func matchesSelector(n *html.Node, s simpleSelector) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if s.tag != "" && s.tag != "*" && n.Data != s.tag {
		return false
	}
	if s.id != "" && Attr(n, "id") != s.id {
		return false
	}
	if s.class != "" && !HasClass(n, s.class) {
		return false
	}
	if s.attrKey != "" {
		if !HasAttr(n, s.attrKey) {
			return false
		}
		if s.hasVal && Attr(n, s.attrKey) != s.attrVal {
			return false
		}
	}
	return true
}
