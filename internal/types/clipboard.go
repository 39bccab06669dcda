package types

import (
	"time"
)

// ContentType is the fixed classification of a history item.
type ContentType string

const (
	TypeText  ContentType = "text"
	TypeURL   ContentType = "url"
	TypeImage ContentType = "image"
	TypeFile  ContentType = "file"
)

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	switch t {
	case TypeText, TypeURL, TypeImage, TypeFile:
		return true
	}
	return false
}

// ClipboardItem is the unit of persisted history. Size is the byte length
// of Content; items returned by listing queries carry Size but no Content.
type ClipboardItem struct {
	ID             string      `json:"id"`
	Content        []byte      `json:"content,omitempty"`
	Size           int         `json:"size"`
	TextContent    string      `json:"text_content,omitempty"`
	ContentType    ContentType `json:"content_type"`
	Timestamp      time.Time   `json:"timestamp"`
	SourceApp      string      `json:"source_app,omitempty"`
	SourceAppName  string      `json:"source_app_name,omitempty"`
	IsPinned       bool        `json:"is_pinned"`
	CharacterCount *int        `json:"character_count,omitempty"`
	SearchableText string      `json:"searchable_text"`
	IsSensitive    bool        `json:"is_sensitive"`
	ThumbnailData  []byte      `json:"thumbnail_data,omitempty"`
}

// DisplaySource returns the most human readable attribution available.
func (i *ClipboardItem) DisplaySource() string {
	if i.SourceAppName != "" {
		return i.SourceAppName
	}
	return i.SourceApp
}

// Image formats delivered by the OS clipboard.
const (
	ImageFormatPNG  = "png"
	ImageFormatTIFF = "tiff"
)

// Representations is one read of the OS clipboard. Any combination of fields
// may be set at once; the classifier decides which one wins.
type Representations struct {
	Files         []string
	ImagePNG      []byte
	ImageTIFF     []byte
	URL           string
	Text          string
	SourceApp     string
	SourceAppName string
}

// Empty reports whether no representation is present.
func (r *Representations) Empty() bool {
	return r == nil || (len(r.Files) == 0 && len(r.ImagePNG) == 0 && len(r.ImageTIFF) == 0 && r.URL == "" && r.Text == "")
}

// MonitoringStatus is the current state of the clipboard change monitor.
type MonitoringStatus struct {
	IsRunning    bool      `json:"is_running"`
	LastChange   int64     `json:"last_change"`
	LastActivity time.Time `json:"last_activity"`
	ErrorCount   int       `json:"error_count"`
	LastError    string    `json:"last_error"`
}
