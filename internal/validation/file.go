package validation

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// FileConstraints defines validation rules for attachments
type FileConstraints struct {
	AllowedMimeTypes map[string]bool
	// AllowedMimePrefix admits every type under it, such as "image/".
	AllowedMimePrefix string
	MaxSize           int64 // 0 means no local limit
}

var (
	// ImageConstraints covers intention images. Any image type is
	// accepted and the file name is not required to carry an extension.
	// Size is not enforced here: oversized payloads are left for the store
	// to reject on submit.
	ImageConstraints = FileConstraints{
		AllowedMimePrefix: "image/",
	}
)

func (c FileConstraints) allows(contentType string) bool {
	if contentType == "" {
		return false
	}
	if c.AllowedMimeTypes[contentType] {
		return true
	}
	return c.AllowedMimePrefix != "" && strings.HasPrefix(contentType, c.AllowedMimePrefix)
}

// ValidateFile checks name and content against one or more constraint sets
// and returns the detected content type. The file must match at least one
// set (OR logic).
func ValidateFile(name string, data []byte, constraints ...FileConstraints) (string, error) {
	if len(constraints) == 0 {
		return "", fmt.Errorf("no file constraints provided")
	}

	var lastErr error
	for _, constraint := range constraints {
		contentType, err := validateAgainstConstraint(name, data, constraint)
		if err == nil {
			return contentType, nil
		}
		lastErr = err
	}

	return "", lastErr
}

func validateAgainstConstraint(name string, data []byte, constraints FileConstraints) (string, error) {
	if constraints.MaxSize > 0 && int64(len(data)) > constraints.MaxSize {
		maxMB := constraints.MaxSize / (1 << 20)
		return "", fmt.Errorf("file too large: maximum size is %d MB", maxMB)
	}

	// Content decides first. The extension only names formats the sniffer
	// does not know, such as SVG or HEIC.
	detectedType := baseType(http.DetectContentType(data))
	if !constraints.allows(detectedType) {
		byName := baseType(mime.TypeByExtension(strings.ToLower(filepath.Ext(name))))
		if !constraints.allows(byName) {
			return "", fmt.Errorf("invalid file type (detected: %s)", detectedType)
		}
		detectedType = byName
	}

	return detectedType, nil
}

func baseType(contentType string) string {
	if i := strings.Index(contentType, ";"); i != -1 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}
