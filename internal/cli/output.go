// Package cli provides output formatting for the Benkyo command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/hyperjump/benkyo/internal/keyword"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteMatches writes keyword search matches to w in the given format.
func WriteMatches(w io.Writer, matches []keyword.Match, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"matches": matches})
	}
	if len(matches) == 0 {
		fmt.Fprintln(w, "No matches.")
		return nil
	}
	for _, m := range matches {
		fmt.Fprintf(w, "%s (page %d, score %.2f)\n  %s\n", m.Source, m.Page, m.Score, m.Snippet)
	}
	return nil
}

// WriteSources writes the ingested source list to w in the given format.
func WriteSources(w io.Writer, sources []string, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"sources": sources})
	}
	if len(sources) == 0 {
		fmt.Fprintln(w, "No sources ingested yet.")
		return nil
	}
	for _, s := range sources {
		fmt.Fprintln(w, s)
	}
	return nil
}
