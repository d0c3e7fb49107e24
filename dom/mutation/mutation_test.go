package mutation

import "testing"

func TestCompress_AttrRun(t *testing.T) {
	in := []Record{
		{Op: OpAttr, XPath: "/html/body/span", Name: "class", Value: "a", OldValue: ""},
		{Op: OpAttr, XPath: "/html/body/span", Name: "class", Value: "b", OldValue: "a"},
		{Op: OpAttr, XPath: "/html/body/span", Name: "class", Value: "c", OldValue: "b"},
	}
	out := Compress(in)
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if out[0].Value != "c" || out[0].OldValue != "" {
		t.Errorf("got value=%q old=%q", out[0].Value, out[0].OldValue)
	}
}

func TestCompress_TextRun(t *testing.T) {
	in := []Record{
		{Op: OpText, XPath: "/p", Value: "1", OldValue: "0"},
		{Op: OpText, XPath: "/p", Value: "2", OldValue: "1"},
		{Op: OpText, XPath: "/q", Value: "x"},
	}
	out := Compress(in)
	if len(out) != 2 {
		t.Fatalf("len = %d, want 2", len(out))
	}
	if out[0].Value != "2" || out[0].OldValue != "0" {
		t.Errorf("first = %+v", out[0])
	}
}

func TestCompress_InsertsKept(t *testing.T) {
	in := []Record{
		{Op: OpInsert, XPath: "/div", HTML: "<b>1</b>"},
		{Op: OpInsert, XPath: "/div", HTML: "<b>2</b>"},
	}
	if out := Compress(in); len(out) != 2 {
		t.Errorf("len = %d, want 2", len(out))
	}
}

func TestBatch_HasInserts(t *testing.T) {
	if (Batch{Records: []Record{{Op: OpAttr}}}).HasInserts() {
		t.Error("attr-only batch reported inserts")
	}
	if !(Batch{Records: []Record{{Op: OpAttr}, {Op: OpInsert}}}).HasInserts() {
		t.Error("insert not detected")
	}
	if !(Batch{Records: []Record{{Op: OpDocReset}}}).HasInserts() {
		t.Error("doc reset should count as new content")
	}
}
