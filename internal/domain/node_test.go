package domain

import (
	"testing"
)

func TestMergePropertiesUnion(t *testing.T) {
	old := map[string]any{"a": "1", "b": "2"}
	incoming := map[string]any{"c": "3"}

	merged := MergeProperties(old, incoming)

	if len(merged) != 3 {
		t.Fatalf("expected 3 keys after merge, got %d: %v", len(merged), merged)
	}
	for key, want := range map[string]any{"a": "1", "b": "2", "c": "3"} {
		if merged[key] != want {
			t.Errorf("key %q: expected %v got %v", key, want, merged[key])
		}
	}
}

func TestMergePropertiesIncomingWins(t *testing.T) {
	old := map[string]any{"a": "old", "keep": true}
	incoming := map[string]any{"a": "new"}

	merged := MergeProperties(old, incoming)

	if merged["a"] != "new" {
		t.Fatalf("expected incoming value to win, got %v", merged["a"])
	}
	if merged["keep"] != true {
		t.Fatalf("expected untouched key to survive, got %v", merged["keep"])
	}
}

func TestMergePropertiesDoesNotMutateInputs(t *testing.T) {
	old := map[string]any{"a": "old"}
	incoming := map[string]any{"a": "new"}

	_ = MergeProperties(old, incoming)

	if old["a"] != "old" {
		t.Fatalf("merge mutated the prior version's map: %v", old)
	}
}

func TestMergePropertiesNilInputs(t *testing.T) {
	if merged := MergeProperties(nil, nil); len(merged) != 0 {
		t.Fatalf("expected empty map from nil inputs, got %v", merged)
	}
	merged := MergeProperties(nil, map[string]any{"a": "1"})
	if merged["a"] != "1" {
		t.Fatalf("expected incoming to survive nil prior map, got %v", merged)
	}
}

func TestPropertiesJSONNilMap(t *testing.T) {
	node := Node{}
	raw, err := node.PropertiesJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("expected empty object for nil properties, got %s", raw)
	}
}

func TestPropertiesFromJSONRoundTrip(t *testing.T) {
	properties, err := PropertiesFromJSON([]byte(`{"name":"pump","rating":4.5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if properties["name"] != "pump" {
		t.Errorf("expected name=pump, got %v", properties["name"])
	}
	if properties["rating"] != 4.5 {
		t.Errorf("expected rating=4.5, got %v", properties["rating"])
	}
}

func TestPropertiesFromJSONEmpty(t *testing.T) {
	properties, err := PropertiesFromJSON(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if properties == nil || len(properties) != 0 {
		t.Fatalf("expected empty non-nil map, got %v", properties)
	}
}
