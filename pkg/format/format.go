package format

import (
	"fmt"
	"strings"
	"time"

	"github.com/berrythewa/clipkeep/internal/apiclient"
)

// Formatter renders API items for the terminal.
type Formatter struct {
	options Options
	now     func() time.Time
}

// New creates a new formatter with the given options
func New(opts Options) *Formatter {
	return &Formatter{options: opts, now: time.Now}
}

// WithNow fixes the reference time used for relative timestamps.
func (f *Formatter) WithNow(now func() time.Time) *Formatter {
	f.now = now
	return f
}

// FormatItem formats a single item.
func (f *Formatter) FormatItem(item *apiclient.Item) string {
	if item == nil {
		return ColorizeIf("No item", Gray, f.options.UseColors)
	}

	header := f.formatHeader(item)
	if f.options.Compact {
		return header + " " + DimIf(f.preview(item, 50), f.options.UseColors)
	}

	parts := []string{header}
	if f.options.ShowMetadata {
		parts = append(parts, f.formatMetadata(item))
	}
	if body := f.formatBody(item); body != "" {
		parts = append(parts, CreateBox("Content", body, f.options))
	}
	return strings.Join(parts, "\n")
}

// FormatItemList formats a list of items under a title.
func (f *Formatter) FormatItemList(title string, items []apiclient.Item) string {
	if len(items) == 0 {
		return ColorizeIf("No clipboard history", Gray, f.options.UseColors)
	}

	parts := []string{
		ColorizeIf(fmt.Sprintf("%s (%d entries)", title, len(items)), BrightBlue, f.options.UseColors),
		"",
	}
	for i := range items {
		index := DimIf(fmt.Sprintf("[%d]", i+1), f.options.UseColors)
		if f.options.Compact {
			parts = append(parts, index+" "+f.FormatItem(&items[i]))
			continue
		}
		parts = append(parts, index, f.FormatItem(&items[i]))
		if i < len(items)-1 {
			parts = append(parts, CreateSeparator(f.options))
		}
	}
	return strings.Join(parts, "\n")
}

// FormatScreenshots formats the screenshot listing.
func (f *Formatter) FormatScreenshots(shots []apiclient.Screenshot) string {
	if len(shots) == 0 {
		return ColorizeIf("No screenshots", Gray, f.options.UseColors)
	}

	lines := make([]string, 0, len(shots))
	for _, s := range shots {
		line := fmt.Sprintf("%s  %s  %s", s.ID, FormatSize(int64(s.Size)), FormatRelativeTime(s.Timestamp, f.now()))
		if s.SourceApp != nil {
			line += "  " + *s.SourceApp
		}
		if s.IsPinned && f.options.UseIcons {
			line += " " + pinIcon
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// FormatStatus formats the daemon status reply.
func (f *Formatter) FormatStatus(st *apiclient.Status) string {
	parts := []string{
		ColorizeIf("Clipboard daemon", BrightBlue, f.options.UseColors),
		"",
		f.statLine("API version", st.Version),
		f.statLine("Items", fmt.Sprintf("%d", st.ItemCount)),
	}
	if m := st.Monitoring; m != nil {
		state := ColorizeIf("running", Green, f.options.UseColors)
		if !m.IsRunning {
			state = ColorizeIf("stopped", Red, f.options.UseColors)
		}
		parts = append(parts, f.statLine("Monitor", state))
		if m.Incognito {
			parts = append(parts, f.statLine("Incognito", ColorizeIf("on", Yellow, f.options.UseColors)))
		}
		if !m.LastActivity.IsZero() {
			parts = append(parts, f.statLine("Last activity", FormatRelativeTime(m.LastActivity, f.now())))
		}
		if m.ErrorCount > 0 {
			last := ""
			if m.LastError != nil {
				last = " (" + *m.LastError + ")"
			}
			parts = append(parts, f.statLine("Errors", fmt.Sprintf("%d%s", m.ErrorCount, last)))
		}
	}
	return strings.Join(parts, "\n")
}

func (f *Formatter) statLine(label, value string) string {
	if f.options.UseColors {
		return fmt.Sprintf("  %s%s:%s %s", BrightCyan, label, Reset, value)
	}
	return fmt.Sprintf("  %s: %s", label, value)
}

func (f *Formatter) formatHeader(item *apiclient.Item) string {
	var parts []string
	if f.options.UseIcons {
		if icon, ok := ContentIcons[item.Type]; ok {
			parts = append(parts, icon)
		}
	}
	parts = append(parts, ColorizeIf(item.Type, ContentColors[item.Type], f.options.UseColors))
	if f.options.UseIcons {
		if item.IsPinned {
			parts = append(parts, pinIcon)
		}
		if item.IsSensitive {
			parts = append(parts, lockIcon)
		}
	} else {
		if item.IsPinned {
			parts = append(parts, "[pinned]")
		}
		if item.IsSensitive {
			parts = append(parts, "[sensitive]")
		}
	}
	return strings.Join(parts, " ")
}

func (f *Formatter) formatMetadata(item *apiclient.Item) string {
	parts := []string{"ID: " + item.ID}
	if src := item.Source(); src != "" {
		parts = append(parts, "Source: "+src)
	}
	parts = append(parts, "Copied: "+FormatRelativeTime(item.Timestamp, f.now()))
	if item.CharacterCount != nil {
		parts = append(parts, fmt.Sprintf("Characters: %d", *item.CharacterCount))
	}
	return DimIf(strings.Join(parts, " • "), f.options.UseColors)
}

func (f *Formatter) formatBody(item *apiclient.Item) string {
	switch item.Type {
	case "image":
		return "[Image]"
	case "file":
		return strings.Join(strings.Split(item.DisplayText(), ", "), "\n")
	}

	text := item.DisplayText()
	if item.Content != nil {
		text = *item.Content
	}
	text = TruncateLines(text, f.options.MaxLines)
	if f.options.MaxWidth > 0 {
		lines := strings.Split(text, "\n")
		for i, line := range lines {
			lines[i] = TruncateText(line, f.options.MaxWidth)
		}
		text = strings.Join(lines, "\n")
	}
	if item.Type == "url" {
		return ColorizeIf(text, Underline+Blue, f.options.UseColors)
	}
	return text
}

func (f *Formatter) preview(item *apiclient.Item, maxLen int) string {
	if item.Type == "image" {
		return "[Image]"
	}
	text := SingleLine(item.DisplayText())
	if text == "" {
		return "(empty)"
	}
	return TruncateText(text, maxLen)
}
