package node

import (
	"errors"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	cases := map[string]string{
		"```json\n[1,2]\n```":       "[1,2]",
		"```\n{\"a\":1}\n```":       `{"a":1}`,
		"```JSON\n{\"a\":1}```":     `{"a":1}`,
		"  plain text  ":            "plain text",
		"```{\"inline\":true}```":   `{"inline":true}`,
	}
	for in, want := range cases {
		if got := StripCodeFence(in); got != want {
			t.Fatalf("StripCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractJSON(t *testing.T) {
	raw := "Sure! Here you go: {\"titles\": [\"a\"]} Hope it helps"
	if got := ExtractJSONObject(raw); got != `{"titles": ["a"]}` {
		t.Fatalf("unexpected object span: %q", got)
	}
	if got := ExtractJSONObject("no json here"); got != "" {
		t.Fatalf("expected empty span, got %q", got)
	}
	if got := ExtractJSONValue(`noise [{"id":1}] tail`); got != `[{"id":1}]` {
		t.Fatalf("unexpected value span: %q", got)
	}
	if got := ExtractJSONValue(`{"items":[1]}`); got != `{"items":[1]}` {
		t.Fatalf("object should win when it starts first: %q", got)
	}
	if !IsValidJSON(`{"a":1}`) || IsValidJSON(`{"a":`) || IsValidJSON("") {
		t.Fatalf("IsValidJSON mismatch")
	}
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	if !IsResponseFormatUnsupportedError(errors.New("400: Unknown parameter: 'response_format'")) {
		t.Fatalf("expected response_format error to be detected")
	}
	if IsResponseFormatUnsupportedError(errors.New("rate limit exceeded")) {
		t.Fatalf("unexpected detection")
	}
	if IsResponseFormatUnsupportedError(nil) {
		t.Fatalf("nil error must not be detected")
	}
}

func TestRuneTruncation(t *testing.T) {
	if got := TruncateByRunes("héllo", 2); got != "hé" {
		t.Fatalf("TruncateByRunes = %q", got)
	}
	if got := TailByRunes("héllo wörld", 5); got != "wörld" {
		t.Fatalf("TailByRunes = %q", got)
	}
	if got := TailByRunes("abc", 10); got != "abc" {
		t.Fatalf("TailByRunes short input = %q", got)
	}
	if got := TailByRunes("abc", 0); got != "" {
		t.Fatalf("TailByRunes zero = %q", got)
	}
}
