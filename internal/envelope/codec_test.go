package envelope

import (
	"reflect"
	"testing"
)

func TestDecodeMalformedFallsBackToRawText(t *testing.T) {
	for _, raw := range []string{
		"plain text answer",
		"{not json",
		`["a","b"]`,
		`42`,
		`"just a string"`,
	} {
		env := Decode(raw)
		if env.Response != raw {
			t.Fatalf("fallback must preserve raw text, got %q for %q", env.Response, raw)
		}
		if env.Action != "" || env.Params != "" || len(env.Suggestions) != 0 {
			t.Fatalf("fallback must leave other fields empty, got %#v", env)
		}
	}
}

func TestDecodeStructuredPayload(t *testing.T) {
	env := Decode(`{"action":"search","params":"q=chess","response":"hi there","suggestions":["a","b"]}`)
	if env.Action != "search" || env.Params != "q=chess" {
		t.Fatalf("unexpected action/params: %#v", env)
	}
	if env.Response != "hi there" {
		t.Fatalf("unexpected response: %q", env.Response)
	}
	if !reflect.DeepEqual(env.Suggestions, []string{"a", "b"}) {
		t.Fatalf("unexpected suggestions: %#v", env.Suggestions)
	}
}

func TestDecodeMissingFieldsDefaultEmpty(t *testing.T) {
	env := Decode(`{"response":"only this"}`)
	if env.Action != "" || env.Params != "" || len(env.Suggestions) != 0 {
		t.Fatalf("absent fields must default to empty, got %#v", env)
	}
	if env.Response != "only this" {
		t.Fatalf("unexpected response: %q", env.Response)
	}
}

func TestDecodeSuggestionsFromCommaString(t *testing.T) {
	env := Decode(`{"response":"ok","suggestions":"a, b,c"}`)
	if !reflect.DeepEqual(env.Suggestions, []string{"a", "b", "c"}) {
		t.Fatalf("comma string must be split and trimmed, got %#v", env.Suggestions)
	}
}

func TestDecodeSuggestionsEmptyAndUnsupportedShapes(t *testing.T) {
	for _, raw := range []string{
		`{"response":"ok","suggestions":""}`,
		`{"response":"ok","suggestions":[]}`,
		`{"response":"ok","suggestions":", ,"}`,
		`{"response":"ok","suggestions":7}`,
	} {
		env := Decode(raw)
		if len(env.Suggestions) != 0 {
			t.Fatalf("expected empty suggestions for %q, got %#v", raw, env.Suggestions)
		}
		if env.Response != "ok" {
			t.Fatalf("unexpected response for %q: %q", raw, env.Response)
		}
	}
}
