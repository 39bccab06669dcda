package format

// ANSI color codes
const (
	Reset     = "\033[0m"
	Bold      = "\033[1m"
	Dim       = "\033[2m"
	Underline = "\033[4m"

	Red        = "\033[31m"
	Green      = "\033[32m"
	Yellow     = "\033[33m"
	Blue       = "\033[34m"
	Magenta    = "\033[35m"
	Cyan       = "\033[36m"
	Gray       = "\033[37m"
	BrightBlue = "\033[94m"
	BrightCyan = "\033[96m"
)

// Options controls formatting behavior
type Options struct {
	UseColors    bool
	UseIcons     bool
	MaxWidth     int  // Max content width (0 = no limit)
	MaxLines     int  // Max content lines (0 = no limit)
	ShowMetadata bool // Show id, source, timestamps
	Compact      bool // Use compact single-line format
}

// DefaultOptions returns sensible defaults
func DefaultOptions() Options {
	return Options{
		UseColors:    true,
		UseIcons:     true,
		MaxWidth:     80,
		MaxLines:     10,
		ShowMetadata: true,
	}
}

// CompactOptions returns options for compact single-line display
func CompactOptions() Options {
	opts := DefaultOptions()
	opts.Compact = true
	opts.ShowMetadata = false
	opts.MaxLines = 1
	return opts
}

// PlainOptions disables colors and icons, for pipes and tests.
func PlainOptions() Options {
	opts := DefaultOptions()
	opts.UseColors = false
	opts.UseIcons = false
	return opts
}

// ContentIcons maps content types to Unicode icons
var ContentIcons = map[string]string{
	"text":  "📝",
	"image": "🖼️",
	"file":  "📎",
	"url":   "🔗",
}

// ContentColors maps content types to colors
var ContentColors = map[string]string{
	"text":  Cyan,
	"image": Magenta,
	"file":  Yellow,
	"url":   Blue,
}

const (
	pinIcon  = "📌"
	lockIcon = "🔒"
)

// ColorizeIf applies color only if useColors is true
func ColorizeIf(text, color string, useColors bool) string {
	if !useColors || text == "" {
		return text
	}
	return color + text + Reset
}

// DimIf applies dim only if useColors is true
func DimIf(text string, useColors bool) string {
	return ColorizeIf(text, Dim, useColors)
}
