package apiclient

import "time"

// Item is a history item as the API renders it.
type Item struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Text           *string   `json:"text"`
	Timestamp      time.Time `json:"timestamp"`
	SourceApp      *string   `json:"sourceApp"`
	IsPinned       bool      `json:"isPinned"`
	CharacterCount *int      `json:"characterCount"`
	IsSensitive    bool      `json:"isSensitive"`

	// Detail fields, only set by Get
	Content       *string `json:"content,omitempty"`
	SourceAppName *string `json:"sourceAppName,omitempty"`
	SourceAppID   *string `json:"sourceAppId,omitempty"`
	IsLocked      bool    `json:"isLocked,omitempty"`
	HasThumbnail  bool    `json:"hasThumbnail,omitempty"`
}

// DisplayText returns the text preview or "" for images.
func (i *Item) DisplayText() string {
	if i.Text == nil {
		return ""
	}
	return *i.Text
}

// Source returns the attribution or "".
func (i *Item) Source() string {
	if i.SourceApp == nil {
		return ""
	}
	return *i.SourceApp
}

// Screenshot is an image item entry.
type Screenshot struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SourceApp *string   `json:"sourceApp"`
	IsPinned  bool      `json:"isPinned"`
	Size      int       `json:"size"`
	ImageURL  string    `json:"imageUrl"`
}

// Health is the health endpoint reply.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Monitoring is the clipboard monitor part of Status.
type Monitoring struct {
	IsRunning    bool      `json:"isRunning"`
	Incognito    bool      `json:"incognito"`
	LastChange   int64     `json:"lastChange"`
	LastActivity time.Time `json:"lastActivity"`
	ErrorCount   int       `json:"errorCount"`
	LastError    *string   `json:"lastError"`
}

// Status is the status endpoint reply.
type Status struct {
	Version    string      `json:"version"`
	ItemCount  int         `json:"itemCount"`
	Monitoring *Monitoring `json:"monitoring,omitempty"`
}

// NewItem is the body of a create call. Type is "text" or "url".
type NewItem struct {
	Content       string `json:"content"`
	Type          string `json:"type,omitempty"`
	SourceAppName string `json:"sourceAppName,omitempty"`
	IsPinned      bool   `json:"isPinned,omitempty"`
	IsSensitive   *bool  `json:"isSensitive,omitempty"`
}

// Created is the reply to a create call.
type Created struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// PasteResult is the reply to the paste calls.
type PasteResult struct {
	Message        string `json:"message"`
	PasteSimulated bool   `json:"pasteSimulated"`
}

// Revealed is the reply to a reveal call.
type Revealed struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	ExpiresAt time.Time `json:"expiresAt"`
}
