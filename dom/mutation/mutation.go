// Package mutation defines the records a dom.Page publishes when its
// document changes. Consumers (the currency observer, the websocket relay)
// import this package to react to document edits.
package mutation

// Op is the type of document mutation.
type Op string

const (
	OpInsert   Op = "insert"    // subtree appended (includes serialised HTML)
	OpRemove   Op = "remove"    // subtree detached
	OpText     Op = "text"      // text content replaced
	OpAttr     Op = "attr"      // attribute set
	OpAttrDel  Op = "attr_del"  // attribute removed
	OpDocReset Op = "doc_reset" // entire document replaced
)

// Record is a single document mutation.
type Record struct {
	Op       Op     `json:"op"`
	XPath    string `json:"xpath"`
	NodeType int    `json:"node_type,omitempty"` // 1=element, 3=text, 8=comment
	Tag      string `json:"tag,omitempty"`
	Name     string `json:"name,omitempty"` // attribute name for attr/attr_del
	Value    string `json:"value,omitempty"`
	OldValue string `json:"old_value,omitempty"`
	HTML     string `json:"html,omitempty"` // serialised subtree for insert
}

// Batch is the unit delivered to page observers. One batch = every record
// produced by a single page edit.
type Batch struct {
	ID        string   `json:"id"`
	PageURL   string   `json:"page_url"`
	Seq       uint64   `json:"seq"` // monotonically increasing per page
	Records   []Record `json:"records"`
	Timestamp int64    `json:"timestamp"` // epoch milliseconds
}

// HasInserts reports whether any record in the batch added content.
func (b Batch) HasInserts() bool {
	for _, r := range b.Records {
		if r.Op == OpInsert || r.Op == OpDocReset {
			return true
		}
	}
	return false
}

// Compress folds runs of records that supersede each other:
//   - consecutive attr on the same (xpath, name) keep the last, with the first old_value
//   - consecutive text on the same xpath keep the last
//   - insert/remove/attr_del/doc_reset are never folded
func Compress(records []Record) []Record {
	if len(records) <= 1 {
		return records
	}

	result := make([]Record, 0, len(records))

	for i := 0; i < len(records); i++ {
		rec := records[i]

		switch rec.Op {
		case OpAttr:
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) &&
				records[j].Op == OpAttr &&
				records[j].XPath == rec.XPath &&
				records[j].Name == rec.Name {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			result = append(result, rec)
			i = j - 1

		case OpText:
			firstOld := rec.OldValue
			j := i + 1
			for j < len(records) &&
				records[j].Op == OpText &&
				records[j].XPath == rec.XPath {
				rec = records[j]
				j++
			}
			rec.OldValue = firstOld
			result = append(result, rec)
			i = j - 1

		default:
			result = append(result, rec)
		}
	}

	return result
}
