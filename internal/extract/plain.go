package extract

import (
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/benkyo/internal/models"
)

// extractPlain treats content as UTF-8 text, yielding a single record at
// page 1. Invalid UTF-8 sequences are replaced with the replacement
// character. Files that are empty after trimming yield no record.
func extractPlain(content []byte) ([]models.Page, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return []models.Page{{Text: text, Number: 1}}, nil
}
