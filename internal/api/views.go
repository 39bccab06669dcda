package api

import (
	"time"

	"github.com/berrythewa/clipkeep/internal/authgate"
	"github.com/berrythewa/clipkeep/internal/sensitive"
	"github.com/berrythewa/clipkeep/internal/types"
)

// timestampLayout is ISO-8601 with milliseconds.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

type itemSummary struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	Text           *string `json:"text"`
	Timestamp      string  `json:"timestamp"`
	SourceApp      *string `json:"sourceApp"`
	IsPinned       bool    `json:"isPinned"`
	CharacterCount *int    `json:"characterCount"`
	IsSensitive    bool    `json:"isSensitive"`
}

type itemDetail struct {
	itemSummary
	Content       *string `json:"content,omitempty"`
	SourceAppName *string `json:"sourceAppName"`
	SourceAppID   *string `json:"sourceAppId"`
	IsLocked      bool    `json:"isLocked"`
	HasThumbnail  bool    `json:"hasThumbnail"`
}

type screenshot struct {
	ID        string  `json:"id"`
	Timestamp string  `json:"timestamp"`
	SourceApp *string `json:"sourceApp"`
	IsPinned  bool    `json:"isPinned"`
	Size      int     `json:"size"`
	ImageURL  string  `json:"imageUrl"`
}

// locked reports whether item content must be masked.
func locked(item *types.ClipboardItem, gate *authgate.Gate) bool {
	return item.IsSensitive && (gate == nil || !gate.IsUnlocked(item.ID))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func summarize(item *types.ClipboardItem, gate *authgate.Gate) itemSummary {
	s := itemSummary{
		ID:             item.ID,
		Type:           string(item.ContentType),
		Timestamp:      formatTime(item.Timestamp),
		SourceApp:      optional(item.DisplaySource()),
		IsPinned:       item.IsPinned,
		CharacterCount: item.CharacterCount,
		IsSensitive:    item.IsSensitive,
	}
	if item.ContentType != types.TypeImage {
		text := item.TextContent
		if locked(item, gate) {
			text = sensitive.Masked
		}
		s.Text = &text
	}
	return s
}

func summarizeAll(items []*types.ClipboardItem, gate *authgate.Gate) []itemSummary {
	out := make([]itemSummary, 0, len(items))
	for _, item := range items {
		out = append(out, summarize(item, gate))
	}
	return out
}

func detail(item *types.ClipboardItem, gate *authgate.Gate) itemDetail {
	d := itemDetail{
		itemSummary:   summarize(item, gate),
		SourceAppName: optional(item.SourceAppName),
		SourceAppID:   optional(item.SourceApp),
		IsLocked:      locked(item, gate),
		HasThumbnail:  len(item.ThumbnailData) > 0,
	}
	switch item.ContentType {
	case types.TypeText, types.TypeURL:
		content := string(item.Content)
		if d.IsLocked {
			content = sensitive.Masked
		}
		d.Content = &content
	}
	return d
}

func toScreenshot(item *types.ClipboardItem) screenshot {
	return screenshot{
		ID:        item.ID,
		Timestamp: formatTime(item.Timestamp),
		SourceApp: optional(item.DisplaySource()),
		IsPinned:  item.IsPinned,
		Size:      item.Size,
		ImageURL:  "/api/screenshots/" + item.ID + "/image",
	}
}
