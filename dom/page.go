// CLAUDE:SUMMARY Observable in-memory HTML page: serialised edits publish mutation batches to observers.
package dom

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/hazyhaar/masukame/dom/mutation"
	"github.com/hazyhaar/masukame/idgen"
)

// Page is an HTML document shared between renderers. Structural edits go
// through Insert/Remove/Reset and are published as mutation batches; Do
// grants silent exclusive access for renderers that only rewrite content
// they own (price spans, validation messages).
type Page struct {
	url string

	mu  sync.Mutex
	doc *html.Node
	seq uint64

	obsMu     sync.Mutex
	observers map[int]func(mutation.Batch)
	nextObs   int
}

// NewPage parses src into a Page identified by url.
func NewPage(url, src string) (*Page, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return &Page{url: url, doc: doc, observers: make(map[int]func(mutation.Batch))}, nil
}

// URL returns the page's identifier.
func (p *Page) URL() string { return p.url }

// Do runs fn with exclusive access to the document. No batch is published.
func (p *Page) Do(fn func(doc *html.Node) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.doc)
}

// HTML serialises the current document.
func (p *Page) HTML() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Render(p.doc)
}

// Observe registers fn for every published batch. Observers run on the
// editing goroutine after the document lock is released, so they may call
// back into the page. The returned func unregisters fn.
func (p *Page) Observe(fn func(mutation.Batch)) (cancel func()) {
	p.obsMu.Lock()
	id := p.nextObs
	p.nextObs++
	p.observers[id] = fn
	p.obsMu.Unlock()

	return func() {
		p.obsMu.Lock()
		delete(p.observers, id)
		p.obsMu.Unlock()
	}
}

// Insert parses fragment and appends it to every element matching
// parentSelector. It returns the number of parents that received content.
func (p *Page) Insert(parentSelector, fragment string) (int, error) {
	p.mu.Lock()
	parents := QuerySelectorAll(p.doc, parentSelector)
	var records []mutation.Record
	for _, parent := range parents {
		nodes, err := ParseFragment(parent, fragment)
		if err != nil {
			p.mu.Unlock()
			return 0, fmt.Errorf("dom: insert into %q: %w", parentSelector, err)
		}
		for _, n := range nodes {
			parent.AppendChild(n)
			records = append(records, mutation.Record{
				Op:       mutation.OpInsert,
				XPath:    XPath(parent),
				NodeType: nodeType(n),
				Tag:      n.Data,
				HTML:     Render(n),
			})
		}
	}
	batch := p.stamp(records)
	p.mu.Unlock()

	p.publish(batch)
	return len(parents), nil
}

// Remove detaches every element matching selector and returns how many
// were removed.
func (p *Page) Remove(selector string) int {
	p.mu.Lock()
	matches := QuerySelectorAll(p.doc, selector)
	records := make([]mutation.Record, 0, len(matches))
	for _, n := range matches {
		records = append(records, mutation.Record{
			Op:       mutation.OpRemove,
			XPath:    XPath(n),
			NodeType: nodeType(n),
			Tag:      n.Data,
		})
		Detach(n)
	}
	batch := p.stamp(records)
	p.mu.Unlock()

	p.publish(batch)
	return len(matches)
}

// Replace swaps every element matching selector for the parsed fragment,
// in place. Observers see the removal and the insertion in one batch.
func (p *Page) Replace(selector, fragment string) (int, error) {
	p.mu.Lock()
	matches := QuerySelectorAll(p.doc, selector)
	var records []mutation.Record
	for _, old := range matches {
		parent := old.Parent
		if parent == nil {
			continue
		}
		nodes, err := ParseFragment(parent, fragment)
		if err != nil {
			p.mu.Unlock()
			return 0, fmt.Errorf("dom: replace %q: %w", selector, err)
		}
		records = append(records, mutation.Record{
			Op:       mutation.OpRemove,
			XPath:    XPath(old),
			NodeType: nodeType(old),
			Tag:      old.Data,
		})
		for _, n := range nodes {
			parent.InsertBefore(n, old)
			records = append(records, mutation.Record{
				Op:       mutation.OpInsert,
				XPath:    XPath(parent),
				NodeType: nodeType(n),
				Tag:      n.Data,
				HTML:     Render(n),
			})
		}
		Detach(old)
	}
	batch := p.stamp(records)
	p.mu.Unlock()

	p.publish(batch)
	return len(matches), nil
}

// SetAttr sets an attribute on every element matching selector.
func (p *Page) SetAttr(selector, key, val string) int {
	p.mu.Lock()
	matches := QuerySelectorAll(p.doc, selector)
	records := make([]mutation.Record, 0, len(matches))
	for _, n := range matches {
		records = append(records, mutation.Record{
			Op:       mutation.OpAttr,
			XPath:    XPath(n),
			NodeType: nodeType(n),
			Tag:      n.Data,
			Name:     key,
			Value:    val,
			OldValue: Attr(n, key),
		})
		SetAttr(n, key, val)
	}
	batch := p.stamp(records)
	p.mu.Unlock()

	p.publish(batch)
	return len(matches)
}

// Reset replaces the whole document.
func (p *Page) Reset(src string) error {
	doc, err := Parse(src)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.doc = doc
	batch := p.stamp([]mutation.Record{{Op: mutation.OpDocReset, XPath: "/"}})
	p.mu.Unlock()

	p.publish(batch)
	return nil
}

// stamp builds a batch; caller holds p.mu.
func (p *Page) stamp(records []mutation.Record) mutation.Batch {
	if len(records) == 0 {
		return mutation.Batch{}
	}
	p.seq++
	return mutation.Batch{
		ID:        idgen.New(),
		PageURL:   p.url,
		Seq:       p.seq,
		Records:   records,
		Timestamp: time.Now().UnixMilli(),
	}
}

func (p *Page) publish(b mutation.Batch) {
	if len(b.Records) == 0 {
		return
	}
	p.obsMu.Lock()
	fns := make([]func(mutation.Batch), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.obsMu.Unlock()

	for _, fn := range fns {
		fn(b)
	}
}

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return 1
	case html.TextNode:
		return 3
	case html.CommentNode:
		return 8
	}
	return 0
}
