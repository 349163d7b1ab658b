package file_test

import (
	"reflect"
	"testing"

	"github.com/Ricou-IA/baikal-ingest/file"
)

func TestMetaString(t *testing.T) {
	f := &file.File{Metadata: map[string]any{
		"title":  "Quarterly Report",
		"empty":  "",
		"number": 42,
	}}

	if got, ok := f.MetaString("title"); !ok || got != "Quarterly Report" {
		t.Errorf("MetaString(title) = %q, %v", got, ok)
	}
	if _, ok := f.MetaString("empty"); ok {
		t.Error("empty string should not count as present")
	}
	if _, ok := f.MetaString("number"); ok {
		t.Error("non-string should not count as present")
	}
	if _, ok := f.MetaString("missing"); ok {
		t.Error("missing key should not count as present")
	}

	var nilFile *file.File
	if _, ok := nilFile.MetaString("title"); ok {
		t.Error("nil file should not count as present")
	}
}

func TestMetaStrings(t *testing.T) {
	f := &file.File{Metadata: map[string]any{
		"typed":   []string{"proj-1", "proj-2"},
		"decoded": []any{"proj-3"},
		"mixed":   []any{"proj-4", 7},
		"empty":   []any{},
	}}

	if got, ok := f.MetaStrings("typed"); !ok || !reflect.DeepEqual(got, []string{"proj-1", "proj-2"}) {
		t.Errorf("MetaStrings(typed) = %v, %v", got, ok)
	}
	if got, ok := f.MetaStrings("decoded"); !ok || !reflect.DeepEqual(got, []string{"proj-3"}) {
		t.Errorf("MetaStrings(decoded) = %v, %v", got, ok)
	}
	if _, ok := f.MetaStrings("mixed"); ok {
		t.Error("mixed element types should not count as present")
	}
	if _, ok := f.MetaStrings("empty"); ok {
		t.Error("empty list should not count as present")
	}
	if _, ok := f.MetaStrings("missing"); ok {
		t.Error("missing key should not count as present")
	}
}
