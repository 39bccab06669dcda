package platform

import (
	"bytes"
	"fmt"
	"image/png"
	"net/url"
	"path/filepath"
	"strings"

	"golang.org/x/image/tiff"

	"github.com/berrythewa/clipkeep/internal/types"
)

var (
	pngMagic    = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	tiffMagicLE = []byte{0x49, 0x49, 0x2A, 0x00}
	tiffMagicBE = []byte{0x4D, 0x4D, 0x00, 0x2A}
)

// ImageFormat sniffs PNG or TIFF image bytes. It returns "" otherwise.
func ImageFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, pngMagic):
		return types.ImageFormatPNG
	case bytes.HasPrefix(data, tiffMagicLE), bytes.HasPrefix(data, tiffMagicBE):
		return types.ImageFormatTIFF
	}
	return ""
}

// ToPNG returns data encoded as PNG. PNG input is returned unchanged and
// TIFF input is re-encoded.
func ToPNG(data []byte) ([]byte, error) {
	switch ImageFormat(data) {
	case types.ImageFormatPNG:
		return data, nil
	case types.ImageFormatTIFF:
		img, err := tiff.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode tiff: %w", err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unrecognized image format")
}

// ParseFileURIs reports whether text is made only of file:// URIs, one per
// line, and returns the absolute paths they name.
func ParseFileURIs(text string) ([]string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var paths []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			// text/uri-list comments
			continue
		}
		u, err := url.Parse(line)
		if err != nil || u.Scheme != "file" || u.Path == "" || !filepath.IsAbs(u.Path) {
			return nil, false
		}
		paths = append(paths, u.Path)
	}
	return paths, len(paths) > 0
}

// FileURIs renders paths as a text/uri-list.
func FileURIs(paths []string) string {
	lines := make([]string, 0, len(paths))
	for _, p := range paths {
		if p == "" {
			continue
		}
		lines = append(lines, (&url.URL{Scheme: "file", Path: p}).String())
	}
	return strings.Join(lines, "\n")
}
