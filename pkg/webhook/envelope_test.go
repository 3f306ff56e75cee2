package webhook

import (
	"encoding/json"
	"testing"
)

func decode(t *testing.T, raw string) interface{} {
	t.Helper()
	var out interface{}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestChangeValue(t *testing.T) {
	value, ok := changeValue(decode(t, `{"entry":[{"changes":[{"value":{"post_id":"1_2","verb":"add"}}]}]}`))
	if !ok || value["post_id"] != "1_2" {
		t.Fatalf("unexpected value %v ok=%v", value, ok)
	}

	value, ok = changeValue(decode(t, `{"object":"page"}`))
	if !ok || len(value) != 0 {
		t.Fatalf("expected empty value for missing path, got %v ok=%v", value, ok)
	}

	value, ok = changeValue(decode(t, `{"entry":[]}`))
	if !ok || len(value) != 0 {
		t.Fatalf("expected empty value for empty entry, got %v", value)
	}

	if _, ok := changeValue(decode(t, `{"entry":[{"changes":[{"value":"text"}]}]}`)); ok {
		t.Fatalf("expected non-object value to be rejected")
	}
}

func TestPostIDFromValue(t *testing.T) {
	cases := []struct {
		value map[string]interface{}
		want  string
	}{
		{map[string]interface{}{"post_id": "123_456"}, "456"},
		{map[string]interface{}{"post_id": "a_b_c"}, "c"},
		{map[string]interface{}{"post_id": "789"}, "789"},
		{map[string]interface{}{"post_id": "123_"}, ""},
		{map[string]interface{}{"post_id": ""}, ""},
		{map[string]interface{}{"post_id": 42.0}, ""},
		{map[string]interface{}{}, ""},
	}
	for _, tc := range cases {
		if got := postIDFromValue(tc.value); got != tc.want {
			t.Fatalf("post_id %v: expected %q, got %q", tc.value["post_id"], tc.want, got)
		}
	}
}

func TestIsDelete(t *testing.T) {
	if !isDelete(map[string]interface{}{"verb": "delete"}) {
		t.Fatalf("expected delete")
	}
	if isDelete(map[string]interface{}{"verb": "add"}) || isDelete(map[string]interface{}{}) {
		t.Fatalf("unexpected delete")
	}
}
