package clipboard

import (
	"context"
	"net/mail"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/sensitive"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
)

const (
	// DuplicateWindow suppresses a repeat of the latest text item.
	DuplicateWindow = 2 * time.Second
	// ThumbnailTimeout bounds best-effort thumbnail generation.
	ThumbnailTimeout = 2 * time.Second
)

var allowedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
	"tel":    true,
	"file":   true,
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

var thumbnailExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true, ".heic": true,
}

// Thumbnailer renders a small preview for an image file.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, path string) ([]byte, error)
}

// Classifier turns a clipboard snapshot into at most one history item.
type Classifier struct {
	store       storage.Store
	clock       clock.Clock
	thumbnailer Thumbnailer
	logger      *zap.Logger
	protection  atomic.Bool
}

// ClassifierConfig configures a Classifier. Clock, Thumbnailer and Logger
// are optional.
type ClassifierConfig struct {
	Store               storage.Store
	Clock               clock.Clock
	Thumbnailer         Thumbnailer
	Logger              *zap.Logger
	SensitiveProtection bool
}

func NewClassifier(cfg ClassifierConfig) *Classifier {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c := &Classifier{
		store:       cfg.Store,
		clock:       cfg.Clock,
		thumbnailer: cfg.Thumbnailer,
		logger:      cfg.Logger,
	}
	c.protection.Store(cfg.SensitiveProtection)
	return c
}

// SetSensitiveProtection toggles sensitive-content tagging for new text.
func (c *Classifier) SetSensitiveProtection(enabled bool) {
	c.protection.Store(enabled)
}

// SensitiveProtection reports whether new text is run through the detector.
func (c *Classifier) SensitiveProtection() bool {
	return c.protection.Load()
}

// Classify picks the richest representation in rep, in the order files,
// image, URL, text. It returns nil when nothing should be stored; that is
// never an error.
func (c *Classifier) Classify(ctx context.Context, rep *types.Representations) *types.ClipboardItem {
	if rep.Empty() {
		return nil
	}
	now := c.clock.Now()

	var item *types.ClipboardItem
	switch {
	case len(rep.Files) > 0:
		item = c.fileItem(ctx, rep.Files, now)
	case len(rep.ImagePNG) > 0:
		item = NewItem(types.TypeImage, rep.ImagePNG, "", now)
	case len(rep.ImageTIFF) > 0:
		item = NewItem(types.TypeImage, rep.ImageTIFF, "", now)
	default:
		if u, ok := c.urlCandidate(rep); ok {
			item = NewItem(types.TypeURL, []byte(u), u, now)
		} else {
			item = c.textItem(rep.Text, now)
		}
	}

	if item == nil {
		return nil
	}
	item.SourceApp = rep.SourceApp
	item.SourceAppName = rep.SourceAppName
	return item
}

func (c *Classifier) fileItem(ctx context.Context, paths []string, now time.Time) *types.ClipboardItem {
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}

	item := NewItem(types.TypeFile, []byte(strings.Join(paths, "\n")), strings.Join(names, ", "), now)
	item.ThumbnailData = c.thumbnail(ctx, paths[0])
	return item
}

func (c *Classifier) thumbnail(ctx context.Context, path string) []byte {
	if c.thumbnailer == nil || !thumbnailExts[strings.ToLower(filepath.Ext(path))] {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, ThumbnailTimeout)
	defer cancel()

	data, err := c.thumbnailer.Thumbnail(ctx, path)
	if err != nil {
		c.logger.Debug("Thumbnail skipped", zap.String("path", path), zap.Error(err))
		return nil
	}
	return data
}

// urlCandidate prefers an explicit URL representation and falls back to
// the text when the text itself is a single URL or email address.
func (c *Classifier) urlCandidate(rep *types.Representations) (string, bool) {
	for _, candidate := range []string{rep.URL, rep.Text} {
		s := strings.TrimSpace(candidate)
		if s == "" {
			continue
		}
		if IsURL(s) {
			return s, true
		}
	}
	return "", false
}

func (c *Classifier) textItem(text string, now time.Time) *types.ClipboardItem {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if c.isDuplicate(text, now) {
		c.logger.Debug("Duplicate text suppressed")
		return nil
	}

	item := NewItem(types.TypeText, []byte(text), text, now)
	if c.SensitiveProtection() {
		if rule, ok := sensitive.Detect(text); ok {
			item.IsSensitive = true
			c.logger.Debug("Sensitive content tagged", zap.String("rule", rule))
		}
	}
	return item
}

// isDuplicate compares against the latest stored text item whatever its
// pin state.
func (c *Classifier) isDuplicate(text string, now time.Time) bool {
	if c.store == nil {
		return false
	}
	latest, err := c.store.FetchWhere(storage.OfType(types.TypeText), 1)
	if err != nil {
		c.logger.Warn("Duplicate check failed", zap.Error(err))
		return false
	}
	if len(latest) == 0 {
		return false
	}
	prev := latest[0]
	return prev.TextContent == text && now.Sub(prev.Timestamp) < DuplicateWindow
}

// IsURL reports whether s is a single URL with an allowed scheme or an
// email address.
func IsURL(s string) bool {
	if strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	if emailPattern.MatchString(s) {
		if _, err := mail.ParseAddress(s); err == nil {
			return true
		}
	}

	u, err := url.Parse(s)
	if err != nil || !allowedSchemes[strings.ToLower(u.Scheme)] {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u.Host != ""
	case "mailto", "tel":
		return u.Opaque != "" || u.Path != ""
	default:
		return u.Path != ""
	}
}

// NewItem builds an item with a fresh id and the derived fields computed
// from text. Images get the fixed search string "image".
func NewItem(ct types.ContentType, content []byte, text string, ts time.Time) *types.ClipboardItem {
	item := &types.ClipboardItem{
		ID:          uuid.NewString(),
		Content:     content,
		TextContent: text,
		ContentType: ct,
		Timestamp:   ts.UTC(),
	}

	switch ct {
	case types.TypeImage:
		item.SearchableText = "image"
	case types.TypeFile:
		item.SearchableText = "file " + strings.ToLower(text)
	default:
		item.SearchableText = strings.ToLower(text)
	}

	if ct != types.TypeImage {
		n := len([]rune(text))
		item.CharacterCount = &n
	}
	return item
}
