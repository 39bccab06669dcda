package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/berrythewa/clipkeep/internal/apierror"
	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/internal/platform"
	"github.com/berrythewa/clipkeep/internal/sensitive"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/types"
)

const (
	// APIVersion is reported by the health endpoint.
	APIVersion = "1.1"

	listLimit       = 100
	searchLimit     = 100
	screenshotLimit = 50
)

func (s *Server) routes() *router {
	rt := &router{}
	rt.handle("GET", "/api/health", s.health)
	rt.handle("GET", "/api/status", s.status)
	rt.handle("GET", "/api/items", s.listItems)
	rt.handle("POST", "/api/items", s.createItem)
	rt.handle("GET", "/api/items/:id", s.getItem)
	rt.handle("DELETE", "/api/items/:id", s.deleteItem)
	rt.handle("PUT", "/api/items/:id/pin", s.togglePin)
	rt.handle("POST", "/api/items/:id/copy", s.copyItem)
	rt.handle("POST", "/api/items/:id/paste", s.pasteItem)
	rt.handle("POST", "/api/items/:id/reveal", s.revealItem)
	rt.handle("POST", "/api/paste", s.pasteCurrent)
	rt.handle("GET", "/api/search", s.search)
	rt.handle("GET", "/api/screenshots", s.listScreenshots)
	rt.handle("GET", "/api/screenshots/:id/image", s.screenshotImage)
	return rt
}

func (s *Server) health(*Request) (*Response, error) {
	return jsonResponse(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": APIVersion,
	})
}

func (s *Server) status(*Request) (*Response, error) {
	count, err := s.store().Count(nil)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"version":   APIVersion,
		"itemCount": count,
	}
	if s.cfg.Watcher != nil {
		st := s.cfg.Watcher.Status()
		body["monitoring"] = map[string]interface{}{
			"isRunning":    st.IsRunning,
			"incognito":    s.cfg.Watcher.Incognito(),
			"lastChange":   st.LastChange,
			"lastActivity": formatTime(st.LastActivity),
			"errorCount":   st.ErrorCount,
			"lastError":    optional(st.LastError),
		}
	}
	return jsonResponse(http.StatusOK, body)
}

func (s *Server) listItems(*Request) (*Response, error) {
	items := s.cfg.Recorder.Snapshot().Items(listLimit)
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"items": summarizeAll(items, s.cfg.Gate),
	})
}

type createRequest struct {
	Content       *string `json:"content"`
	Type          string  `json:"type"`
	SourceAppName string  `json:"sourceAppName"`
	IsPinned      bool    `json:"isPinned"`
	IsSensitive   *bool   `json:"isSensitive"`
}

func (s *Server) createItem(req *Request) (*Response, error) {
	var body createRequest
	if err := json.Unmarshal(req.Body, &body); err != nil {
		return nil, apierror.BadRequest("invalid JSON body")
	}
	if body.Content == nil || *body.Content == "" {
		return nil, apierror.BadRequest("missing required field: content")
	}

	ct := types.ContentType(strings.ToLower(body.Type))
	switch ct {
	case "":
		ct = types.TypeText
	case types.TypeText, types.TypeURL:
	default:
		return nil, apierror.BadRequest("type must be text or url")
	}

	text := *body.Content
	item := clipboard.NewItem(ct, []byte(text), text, s.clock.Now())
	item.SourceAppName = body.SourceAppName
	item.IsPinned = body.IsPinned
	switch {
	case body.IsSensitive != nil:
		item.IsSensitive = *body.IsSensitive
	case s.cfg.SensitiveProtection && ct == types.TypeText:
		item.IsSensitive = sensitive.IsSensitive(text)
	}

	if err := s.cfg.Recorder.Record(item); err != nil {
		return nil, err
	}
	s.logger.Info("Item created through API", zap.String("id", item.ID), zap.String("type", string(ct)))

	return jsonResponse(http.StatusCreated, map[string]string{
		"id":        item.ID,
		"type":      string(item.ContentType),
		"timestamp": formatTime(item.Timestamp),
		"message":   "Item created",
	})
}

func (s *Server) getItem(req *Request) (*Response, error) {
	item, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, detail(item, s.cfg.Gate))
}

func (s *Server) deleteItem(req *Request) (*Response, error) {
	id, err := itemID(req)
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Recorder.Delete(id); err != nil {
		return nil, notFound(err)
	}
	if s.cfg.Gate != nil {
		s.cfg.Gate.Revoke(id)
	}

	return jsonResponse(http.StatusOK, map[string]string{"message": "Item deleted"})
}

func (s *Server) togglePin(req *Request) (*Response, error) {
	id, err := itemID(req)
	if err != nil {
		return nil, err
	}
	pinned, err := s.cfg.Recorder.TogglePin(id)
	if err != nil {
		return nil, notFound(err)
	}

	message := "Item unpinned"
	if pinned {
		message = "Item pinned"
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"id":       id,
		"isPinned": pinned,
		"message":  message,
	})
}

func (s *Server) copyItem(req *Request) (*Response, error) {
	item, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	if err := s.writeClipboard(item); err != nil {
		return nil, err
	}
	return jsonResponse(http.StatusOK, map[string]string{"message": "Copied to clipboard"})
}

func (s *Server) pasteItem(req *Request) (*Response, error) {
	item, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	if err := s.writeClipboard(item); err != nil {
		return nil, err
	}
	return s.simulatePaste("Copied to clipboard")
}

func (s *Server) pasteCurrent(*Request) (*Response, error) {
	return s.simulatePaste("Clipboard contents")
}

func (s *Server) revealItem(req *Request) (*Response, error) {
	item, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	if item.ContentType != types.TypeText && item.ContentType != types.TypeURL {
		return nil, apierror.BadRequest("only text and url items can be revealed")
	}
	if s.cfg.Gate == nil {
		return nil, errors.New("authentication gate not configured")
	}

	expires := s.cfg.Gate.MarkAuthenticated(item.ID)
	s.logger.Info("Item revealed", zap.String("id", item.ID), zap.Time("expires_at", expires))

	return jsonResponse(http.StatusOK, map[string]string{
		"id":        item.ID,
		"content":   string(item.Content),
		"expiresAt": formatTime(expires),
	})
}

func (s *Server) search(req *Request) (*Response, error) {
	q := strings.TrimSpace(req.Query.Get("q"))
	if q == "" {
		return nil, apierror.BadRequest("missing query parameter: q")
	}

	needle := strings.ToLower(q)
	items, err := s.store().FetchWhere(func(item *types.ClipboardItem) bool {
		return strings.Contains(item.SearchableText, needle)
	}, searchLimit)
	if err != nil {
		return nil, err
	}

	return jsonResponse(http.StatusOK, map[string]interface{}{
		"query": q,
		"count": len(items),
		"items": summarizeAll(items, s.cfg.Gate),
	})
}

func (s *Server) listScreenshots(*Request) (*Response, error) {
	items, err := s.store().FetchWhere(storage.OfType(types.TypeImage), screenshotLimit)
	if err != nil {
		return nil, err
	}

	shots := make([]screenshot, 0, len(items))
	for _, item := range items {
		shots = append(shots, toScreenshot(item))
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{"screenshots": shots})
}

func (s *Server) screenshotImage(req *Request) (*Response, error) {
	item, err := s.lookup(req)
	if err != nil {
		return nil, err
	}
	if item.ContentType != types.TypeImage {
		return nil, apierror.NotFound("screenshot not found")
	}

	png, err := platform.ToPNG(item.Content)
	if err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusOK, ContentType: contentTypePNG, Body: png}, nil
}

func (s *Server) writeClipboard(item *types.ClipboardItem) error {
	if s.cfg.Clipboard == nil {
		return errors.New("clipboard not available")
	}
	if err := s.cfg.Clipboard.Write(item); err != nil {
		return err
	}
	if s.cfg.Watcher != nil {
		s.cfg.Watcher.SyncBaseline()
	}
	return nil
}

func (s *Server) simulatePaste(prefix string) (*Response, error) {
	simulated := s.cfg.Paster != nil && s.cfg.Paster.SimulatePaste()

	message := prefix + " pasted"
	if !simulated {
		message = prefix + " ready, paste simulation unavailable"
	}
	return jsonResponse(http.StatusOK, map[string]interface{}{
		"message":        message,
		"pasteSimulated": simulated,
	})
}

func (s *Server) lookup(req *Request) (*types.ClipboardItem, error) {
	id, err := itemID(req)
	if err != nil {
		return nil, err
	}
	item, err := s.store().FetchByID(id)
	if err != nil {
		return nil, notFound(err)
	}
	return item, nil
}

func (s *Server) store() storage.Store {
	return s.cfg.Recorder.Store()
}

// itemID validates the :id path parameter.
func itemID(req *Request) (string, error) {
	id := req.Params["id"]
	if _, err := uuid.Parse(id); err != nil {
		return "", apierror.BadRequest("invalid item id")
	}
	return id, nil
}

func notFound(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apierror.NotFound("item not found")
	}
	return err
}
