package resource

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func user(id any, name string) map[string]any {
	return map[string]any{"id": id, "name": name}
}

func TestMergeCollectionFresh(t *testing.T) {
	s := NewStore()
	items, err := s.MergeCollection([]any{user(1, "A"), user(2, "B")}, "id", false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(items) != 2 || items[0].(map[string]any)["name"] != "A" || items[1].(map[string]any)["name"] != "B" {
		t.Errorf("unexpected items: %v", items)
	}
	want := map[string]int{"1": 0, "2": 1}
	if !reflect.DeepEqual(s.IDs(), want) {
		t.Errorf("expected ids %v, got %v", want, s.IDs())
	}
}

func TestMergeCollectionExtendUpserts(t *testing.T) {
	s := NewStore()
	s.MergeCollection([]any{user(1, "A")}, "id", false)

	items, err := s.MergeCollection([]any{user(1, "A2"), user(3, "C")}, "id", true)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].(map[string]any)["name"] != "A2" {
		t.Errorf("expected in-place replace at 0, got %v", items[0])
	}
	if items[1].(map[string]any)["name"] != "C" {
		t.Errorf("expected C appended, got %v", items[1])
	}
	want := map[string]int{"1": 0, "3": 1}
	if !reflect.DeepEqual(s.IDs(), want) {
		t.Errorf("expected ids %v, got %v", want, s.IDs())
	}
}

func TestMergeCollectionExtendKeepsOrder(t *testing.T) {
	s := NewStore()
	s.MergeCollection([]any{user(1, "A"), user(2, "B"), user(3, "C")}, "id", false)
	s.MergeCollection([]any{user(4, "D"), user(2, "B2")}, "id", true)

	items := s.Items()
	var names []string
	for _, it := range items {
		names = append(names, it.(map[string]any)["name"].(string))
	}
	want := []string{"A", "B2", "C", "D"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}
	if s.IDs()["4"] != 3 {
		t.Errorf("expected new identity at 3, got %d", s.IDs()["4"])
	}
}

func TestMergeCollectionSkipsNil(t *testing.T) {
	s := NewStore()
	items, err := s.MergeCollection([]any{nil, user(1, "A"), nil}, "id", false)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected nil elements skipped, got %d items", len(items))
	}
	if s.IDs()["1"] != 0 {
		t.Errorf("expected identity 1 at 0")
	}
}

func TestMergeCollectionWithoutIdentity(t *testing.T) {
	s := NewStore()
	s.MergeCollection([]any{map[string]any{"name": "x"}, "scalar"}, "id", false)
	if s.Len() != 2 {
		t.Errorf("expected both elements appended, got %d", s.Len())
	}
	if len(s.IDs()) != 0 {
		t.Errorf("expected empty index, got %v", s.IDs())
	}
}

func TestMergeCollectionIdempotent(t *testing.T) {
	s := NewStore()
	in := []any{user(1, "A"), user(2, "B")}
	first, _ := s.MergeCollection(in, "id", false)
	firstIDs := s.IDs()
	second, _ := s.MergeCollection(in, "id", false)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical items, got %v vs %v", first, second)
	}
	if !reflect.DeepEqual(firstIDs, s.IDs()) {
		t.Errorf("expected identical ids, got %v vs %v", firstIDs, s.IDs())
	}
}

func TestMergeCollectionCustomIDField(t *testing.T) {
	s := NewStore()
	s.MergeCollection([]any{map[string]any{"uuid": "a"}, map[string]any{"uuid": "b"}}, "uuid", false)
	s.MergeCollection([]any{map[string]any{"uuid": "a", "v": 2}}, "uuid", true)
	if s.Len() != 2 {
		t.Errorf("expected 2 items, got %d", s.Len())
	}
	if s.Items()[0].(map[string]any)["v"] != 2 {
		t.Error("expected uuid a replaced in place")
	}
}

func TestMergeCollectionRejectsNonArray(t *testing.T) {
	s := NewStore()
	s.MergeCollection([]any{user(1, "A")}, "id", false)

	_, err := s.MergeCollection(map[string]any{"id": 2}, "id", false)
	if !errors.Is(err, ErrNotArray) {
		t.Fatalf("expected ErrNotArray, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected no mutation on rejection, got %d items", s.Len())
	}
}

func TestMergeCollectionTypedSlice(t *testing.T) {
	s := NewStore()
	if _, err := s.MergeCollection([]map[string]any{user(1, "A"), nil}, "id", false); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 item, got %d", s.Len())
	}
}

func TestMergeSingle(t *testing.T) {
	s := NewStore()
	s.MergeSingle(map[string]any{"id": 5, "name": "old", "extra": true}, "id")

	obj, err := s.MergeSingle(map[string]any{"id": 7, "name": "new"}, "id")
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if _, ok := obj["extra"]; ok {
		t.Error("expected previous fields cleared")
	}
	if obj["name"] != "new" {
		t.Errorf("expected name new, got %v", obj["name"])
	}
	if !reflect.DeepEqual(s.IDs(), map[string]int{"7": 0}) {
		t.Errorf("expected identity 7 at 0, got %v", s.IDs())
	}
}

func TestMergeSingleRejectsNonObject(t *testing.T) {
	s := NewStore()
	s.MergeSingle(map[string]any{"id": 1}, "id")
	if _, err := s.MergeSingle([]any{1}, "id"); !errors.Is(err, ErrNotObject) {
		t.Fatalf("expected ErrNotObject, got %v", err)
	}
	if s.Object()["id"] != 1 {
		t.Error("expected no mutation on rejection")
	}
}

func TestClearResetsEverything(t *testing.T) {
	s := NewStore()
	s.MergeCollection([]any{user(1, "A")}, "id", false)
	s.MergeSingle(map[string]any{"id": 2}, "id")
	s.Clear()

	if s.Len() != 0 || len(s.Object()) != 0 || len(s.IDs()) != 0 {
		t.Errorf("expected empty store, got items=%d object=%v ids=%v", s.Len(), s.Object(), s.IDs())
	}
}

func TestSnapshotShapes(t *testing.T) {
	s := NewStore()
	s.MergeCollection([]any{user(1, "A")}, "id", false)

	switch v := s.Snapshot(true).(type) {
	case Collection:
		if len(v.Items) != 1 || v.IDs["1"] != 0 {
			t.Errorf("unexpected collection snapshot %v", v)
		}
	default:
		t.Fatalf("expected Collection, got %T", v)
	}

	if _, ok := s.Snapshot(false).(Single); !ok {
		t.Error("expected Single snapshot")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewStore()
	s.MergeCollection([]any{user(1, "A")}, "id", false)
	items := s.Items()
	items[0] = "mutated"
	if _, ok := s.Items()[0].(map[string]any); !ok {
		t.Error("expected store unaffected by caller mutation")
	}
}

func TestNormalizeNested(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 600_000_000, time.UTC)
	in := map[string]any{
		"at":    ts,
		"ptr":   &ts,
		"list":  []any{ts, "x"},
		"inner": map[string]any{"when": ts},
	}
	out := Normalize(in).(map[string]any)

	want := ts.Unix()
	if out["at"] != want || out["ptr"] != want {
		t.Errorf("expected epoch seconds %d, got %v / %v", want, out["at"], out["ptr"])
	}
	if out["list"].([]any)[0] != want {
		t.Errorf("expected nested slice normalized, got %v", out["list"])
	}
	if out["inner"].(map[string]any)["when"] != want {
		t.Errorf("expected nested map normalized, got %v", out["inner"])
	}
	if _, ok := in["at"].(time.Time); !ok {
		t.Error("expected input left untouched")
	}
}

func TestQueryString(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	q, missing := QueryString(map[string]any{
		"limit": 42,
		"since": ts,
		"q":     "a b",
		"gone":  nil,
	})
	if q != "limit=42&q=a+b&since=1700000000" {
		t.Errorf("unexpected query %q", q)
	}
	if len(missing) != 1 || missing[0] != "gone" {
		t.Errorf("expected gone reported missing, got %v", missing)
	}
}

func TestQueryStringEmpty(t *testing.T) {
	if q, _ := QueryString(nil); q != "" {
		t.Errorf("expected empty query, got %q", q)
	}
}
