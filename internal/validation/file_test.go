package validation

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		want     string
	}{
		{"png with extension", "vision.png", pngBytes, "image/png"},
		{"png without extension", "blob", pngBytes, "image/png"},
		{"png with misleading extension", "vision.txt", pngBytes, "image/png"},
		{"bmp", "scan.bmp", append([]byte("BM"), bytes.Repeat([]byte{0}, 32)...), "image/bmp"},
		{"svg named by extension", "sigil.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), "image/svg+xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateFile(tt.fileName, tt.data, ImageConstraints)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateImageRejectsOtherContent(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
	}{
		{"text", "notes.txt", []byte("plain text")},
		{"text without extension", "blob", []byte("plain text")},
		{"pdf", "vision.pdf", []byte("%PDF-1.7\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateFile(tt.fileName, tt.data, ImageConstraints)
			assert.Error(t, err)
		})
	}
}

func TestValidateFileEnforcesMaxSize(t *testing.T) {
	constraints := FileConstraints{AllowedMimePrefix: "image/", MaxSize: 16}
	_, err := ValidateFile("vision.png", pngBytes, constraints)
	assert.ErrorContains(t, err, "file too large")
}
