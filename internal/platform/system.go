package platform

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"

	atotto "github.com/atotto/clipboard"
	"go.uber.org/zap"
	design "golang.design/x/clipboard"

	"github.com/berrythewa/clipkeep/internal/types"
)

// ErrImageUnsupported is returned when the active backend cannot carry images.
var ErrImageUnsupported = errors.New("clipboard backend does not support images")

// backend is the raw clipboard access used by SystemClipboard.
type backend interface {
	name() string
	readText() ([]byte, error)
	readImage() ([]byte, error)
	writeText(data []byte) error
	writeImage(png []byte) error
}

// designBackend uses golang.design/x/clipboard, which can carry PNG images.
type designBackend struct{}

func (designBackend) name() string { return "golang.design" }

func (designBackend) readText() ([]byte, error) { return design.Read(design.FmtText), nil }

func (designBackend) readImage() ([]byte, error) { return design.Read(design.FmtImage), nil }

func (designBackend) writeText(data []byte) error {
	design.Write(design.FmtText, data)
	return nil
}

func (designBackend) writeImage(png []byte) error {
	design.Write(design.FmtImage, png)
	return nil
}

// atottoBackend is the text-only fallback used when the primary backend
// cannot initialise (headless builds, no cgo).
type atottoBackend struct{}

func (atottoBackend) name() string { return "atotto" }

func (atottoBackend) readText() ([]byte, error) {
	text, err := atotto.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read clipboard: %w", err)
	}
	return []byte(text), nil
}

func (atottoBackend) readImage() ([]byte, error) { return nil, nil }

func (atottoBackend) writeText(data []byte) error {
	return atotto.WriteAll(string(data))
}

func (atottoBackend) writeImage([]byte) error { return ErrImageUnsupported }

// changeSource reports copy events from the host, one per ownership change
// of the clipboard.
type changeSource interface {
	name() string
	// Pending returns how many copy events happened since the last call.
	Pending() (int64, error)
	// Flush makes events caused by writes that already returned visible to
	// Pending.
	Flush() error
	Close()
}

// SystemClipboard implements Clipboard on the host clipboard. The change
// counter advances on every copy event reported by the host. Without an
// event source it falls back to a digest of the contents, which cannot see
// a repeated copy of identical content.
type SystemClipboard struct {
	mu      sync.Mutex
	backend backend
	source  changeSource
	apps    AppResolver
	logger  *zap.Logger
	counter int64
	digest  [sha256.Size]byte
	sampled bool
}

// NewSystemClipboard picks the best available backend. apps may be nil.
func NewSystemClipboard(apps AppResolver, logger *zap.Logger) (*SystemClipboard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var b backend = designBackend{}
	if err := design.Init(); err != nil {
		if atotto.Unsupported {
			return nil, fmt.Errorf("no clipboard backend available: %w", err)
		}
		logger.Warn("Falling back to text-only clipboard", zap.Error(err))
		b = atottoBackend{}
	}

	source, err := newChangeSource(logger)
	if err != nil {
		logger.Warn("Copy events unavailable, detecting changes by content", zap.Error(err))
	}

	c := newSystemClipboard(b, source, apps, logger)
	logger.Info("Clipboard backend ready",
		zap.String("backend", b.name()),
		zap.String("change_detection", c.changeDetection()))
	return c, nil
}

// newSystemClipboard builds a clipboard on b. source may be nil.
func newSystemClipboard(b backend, source changeSource, apps AppResolver, logger *zap.Logger) *SystemClipboard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemClipboard{backend: b, source: source, apps: apps, logger: logger}
}

func (c *SystemClipboard) changeDetection() string {
	if c.source != nil {
		return c.source.name()
	}
	return "digest"
}

// ChangeCount returns the copy event counter.
func (c *SystemClipboard) ChangeCount() (int64, error) {
	if c.source != nil {
		n, err := c.source.Pending()
		if err != nil {
			return 0, err
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		c.counter += n
		return c.counter, nil
	}
	return c.digestCount()
}

// digestCount bumps the counter when the contents differ from the previous
// sample.
func (c *SystemClipboard) digestCount() (int64, error) {
	text, image, err := c.sample()
	if err != nil {
		return 0, err
	}

	h := sha256.New()
	h.Write(text)
	h.Write([]byte{0})
	h.Write(image)
	var sum [sha256.Size]byte
	copy(sum[:], h.Sum(nil))

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.sampled || sum != c.digest {
		c.digest = sum
		c.sampled = true
		c.counter++
	}
	return c.counter, nil
}

// Read returns the current clipboard representations. Text made only of
// file:// URIs is reported as a file list.
func (c *SystemClipboard) Read() (*types.Representations, error) {
	text, image, err := c.sample()
	if err != nil {
		return nil, err
	}

	rep := &types.Representations{}
	switch ImageFormat(image) {
	case types.ImageFormatPNG:
		rep.ImagePNG = image
	case types.ImageFormatTIFF:
		rep.ImageTIFF = image
	}

	if files, ok := ParseFileURIs(string(text)); ok {
		rep.Files = files
	} else {
		rep.Text = string(text)
	}

	if c.apps != nil {
		rep.SourceApp, rep.SourceAppName = c.apps.FrontmostApp()
	}
	return rep, nil
}

// Write places item on the clipboard. Once it returns, the copy event the
// write caused is already counted by the next ChangeCount.
func (c *SystemClipboard) Write(item *types.ClipboardItem) error {
	if err := c.write(item); err != nil {
		return err
	}
	if c.source != nil {
		if err := c.source.Flush(); err != nil {
			c.logger.Warn("Failed to sync clipboard events after write", zap.Error(err))
		}
	}
	return nil
}

func (c *SystemClipboard) write(item *types.ClipboardItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch item.ContentType {
	case types.TypeText, types.TypeURL:
		return c.backend.writeText(item.Content)
	case types.TypeFile:
		paths := strings.Split(string(item.Content), "\n")
		return c.backend.writeText([]byte(FileURIs(paths)))
	case types.TypeImage:
		png, err := ToPNG(item.Content)
		if err != nil {
			return err
		}
		return c.backend.writeImage(png)
	default:
		return fmt.Errorf("unsupported content type %q", item.ContentType)
	}
}

// Close releases the event source connection.
func (c *SystemClipboard) Close() {
	if c.source != nil {
		c.source.Close()
	}
}

func (c *SystemClipboard) sample() ([]byte, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text, err := c.backend.readText()
	if err != nil {
		return nil, nil, err
	}
	image, err := c.backend.readImage()
	if err != nil {
		return nil, nil, err
	}
	return text, image, nil
}
