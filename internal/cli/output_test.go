package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/benkyo/internal/keyword"
)

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("text"); err != nil || f != OutputText {
		t.Errorf("ParseFormat(text) = %v, %v", f, err)
	}
	if f, err := ParseFormat("json"); err != nil || f != OutputJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWriteMatchesText(t *testing.T) {
	var buf bytes.Buffer
	matches := []keyword.Match{
		{ID: "c1", Snippet: "gradient descent minimizes loss", Source: "ml.pdf", Page: 7, Score: 1.52},
	}
	if err := WriteMatches(&buf, matches, OutputText); err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "ml.pdf (page 7, score 1.52)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "gradient descent minimizes loss") {
		t.Errorf("snippet missing:\n%s", out)
	}
}

func TestWriteMatchesTextEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMatches(&buf, nil, OutputText); err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}
	if !strings.Contains(buf.String(), "No matches.") {
		t.Errorf("unexpected output: %s", buf.String())
	}
}

func TestWriteMatchesJSON(t *testing.T) {
	var buf bytes.Buffer
	matches := []keyword.Match{{ID: "c1", Source: "a.txt", Page: 1, Score: 0.5}}
	if err := WriteMatches(&buf, matches, OutputJSON); err != nil {
		t.Fatalf("WriteMatches: %v", err)
	}
	var out map[string][]keyword.Match
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if len(out["matches"]) != 1 || out["matches"][0].Source != "a.txt" {
		t.Errorf("unexpected JSON %v", out)
	}
}

func TestWriteSources(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSources(&buf, []string{"a.pdf", "b.txt"}, OutputText); err != nil {
		t.Fatalf("WriteSources: %v", err)
	}
	if buf.String() != "a.pdf\nb.txt\n" {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	if err := WriteSources(&buf, nil, OutputText); err != nil {
		t.Fatalf("WriteSources: %v", err)
	}
	if !strings.Contains(buf.String(), "No sources ingested yet.") {
		t.Errorf("unexpected output %q", buf.String())
	}

	buf.Reset()
	if err := WriteSources(&buf, []string{"a.pdf"}, OutputJSON); err != nil {
		t.Fatalf("WriteSources: %v", err)
	}
	var out map[string][]string
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if len(out["sources"]) != 1 {
		t.Errorf("unexpected JSON %v", out)
	}
}
