package validation

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var ErrEmptyIntention = errors.New("empty intention text")

// NormalizeIntentionText folds input to NFC so the same spoken phrase typed
// on different keyboards compares and stores identically.
func NormalizeIntentionText(text string) string {
	return norm.NFC.String(text)
}

// ValidateIntentionText requires non-whitespace content.
func ValidateIntentionText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyIntention
	}
	return nil
}
