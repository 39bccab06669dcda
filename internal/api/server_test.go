package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/clipkeep/internal/authgate"
	"github.com/berrythewa/clipkeep/internal/clipboard"
	"github.com/berrythewa/clipkeep/internal/history"
	"github.com/berrythewa/clipkeep/internal/retention"
	"github.com/berrythewa/clipkeep/internal/sensitive"
	"github.com/berrythewa/clipkeep/internal/storage"
	"github.com/berrythewa/clipkeep/internal/token"
	"github.com/berrythewa/clipkeep/internal/types"
)

type recordingClipboard struct {
	mu      sync.Mutex
	written []*types.ClipboardItem
}

func (c *recordingClipboard) ChangeCount() (int64, error) { return 0, nil }

func (c *recordingClipboard) Read() (*types.Representations, error) {
	return &types.Representations{}, nil
}

func (c *recordingClipboard) Write(item *types.ClipboardItem) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, item)
	return nil
}

func (c *recordingClipboard) Close() {}

func (c *recordingClipboard) writes() []*types.ClipboardItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*types.ClipboardItem(nil), c.written...)
}

type stubPaster bool

func (p stubPaster) SimulatePaste() bool { return bool(p) }

type stubWatcher struct {
	mu    sync.Mutex
	syncs int
}

func (w *stubWatcher) SyncBaseline() {
	w.mu.Lock()
	w.syncs++
	w.mu.Unlock()
}

func (w *stubWatcher) syncCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.syncs
}

func (w *stubWatcher) Status() types.MonitoringStatus {
	return types.MonitoringStatus{IsRunning: true, LastChange: 7}
}

func (w *stubWatcher) Incognito() bool { return false }

type env struct {
	server    *Server
	tokens    *token.Manager
	token     string
	recorder  *history.Recorder
	clock     *clock.Mock
	clipboard *recordingClipboard
	watcher   *stubWatcher
}

func newEnv(t *testing.T, paster bool) *env {
	t.Helper()

	store, err := storage.NewBoltStorage(storage.StorageConfig{DBPath: filepath.Join(t.TempDir(), "api.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mock := clock.NewMock()
	mock.Set(time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC))

	recorder := history.NewRecorder(store,
		retention.NewEnforcer(store, retention.Policy{MaxItems: 500}, mock, nil),
		history.NewSnapshot(history.DefaultSize), nil)
	recorder.Refresh()

	tokens := token.NewManager(token.NewFileStore(t.TempDir()), nil)
	tok, err := tokens.Token()
	require.NoError(t, err)

	cb := &recordingClipboard{}
	watcher := &stubWatcher{}
	srv := NewServer(ServerConfig{
		Enabled:             true,
		Port:                0,
		ReadTimeout:         2 * time.Second,
		SensitiveProtection: true,
		Recorder:            recorder,
		Tokens:              tokens,
		Gate:                authgate.New(0, mock),
		Clipboard:           cb,
		Paster:              stubPaster(paster),
		Watcher:             watcher,
		Clock:               mock,
	})
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return &env{
		server:    srv,
		tokens:    tokens,
		token:     tok,
		recorder:  recorder,
		clock:     mock,
		clipboard: cb,
		watcher:   watcher,
	}
}

type reply struct {
	status  int
	headers map[string]string
	body    []byte
}

func (r reply) json(t *testing.T) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(r.body, &out), string(r.body))
	return out
}

// raw sends data as-is and reads until the server closes the connection.
func (e *env) raw(t *testing.T, data string) reply {
	t.Helper()

	conn, err := net.Dial("tcp", e.server.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(data))
	require.NoError(t, err)

	all, err := io.ReadAll(conn)
	require.NoError(t, err)

	br := bufio.NewReader(bytes.NewReader(all))
	statusLine, err := br.ReadString('\n')
	require.NoError(t, err)
	parts := strings.SplitN(strings.TrimSpace(statusLine), " ", 3)
	require.Len(t, parts, 3)
	status, err := strconv.Atoi(parts[1])
	require.NoError(t, err)

	headers := map[string]string{}
	for {
		line, err := br.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, _ := strings.Cut(line, ":")
		headers[strings.ToLower(name)] = strings.TrimSpace(value)
	}
	body, err := io.ReadAll(br)
	require.NoError(t, err)

	return reply{status: status, headers: headers, body: body}
}

func (e *env) do(t *testing.T, method, path, tok, body string) reply {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\nHost: localhost\r\n", method, path)
	if tok != "" {
		fmt.Fprintf(&b, "Authorization: Bearer %s\r\n", tok)
	}
	if body != "" {
		fmt.Fprintf(&b, "Content-Type: application/json\r\nContent-Length: %d\r\n", len(body))
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return e.raw(t, b.String())
}

func (e *env) create(t *testing.T, body string) string {
	t.Helper()
	r := e.do(t, "POST", "/api/items", e.token, body)
	require.Equal(t, http.StatusCreated, r.status, string(r.body))
	e.clock.Add(time.Second)
	return r.json(t)["id"].(string)
}

func TestServer_Auth(t *testing.T) {
	e := newEnv(t, false)

	r := e.do(t, "GET", "/api/items", "", "")
	assert.Equal(t, http.StatusUnauthorized, r.status)
	assert.Contains(t, r.json(t), "error")
	assert.Equal(t, "*", r.headers["access-control-allow-origin"])
	assert.Equal(t, "application/json", r.headers["content-type"])
	assert.Equal(t, strconv.Itoa(len(r.body)), r.headers["content-length"])

	r = e.do(t, "GET", "/api/items", "wrong", "")
	assert.Equal(t, http.StatusUnauthorized, r.status)

	r = e.raw(t, "GET /api/items HTTP/1.1\r\nAuthorization: Basic "+e.token+"\r\n\r\n")
	assert.Equal(t, http.StatusUnauthorized, r.status)

	// auth runs before routing
	r = e.do(t, "GET", "/api/unknownpath", "", "")
	assert.Equal(t, http.StatusUnauthorized, r.status)
}

func TestServer_TokenRegeneration(t *testing.T) {
	e := newEnv(t, false)

	r := e.do(t, "GET", "/api/health", e.token, "")
	require.Equal(t, http.StatusOK, r.status)

	fresh, err := e.tokens.Regenerate()
	require.NoError(t, err)

	r = e.do(t, "GET", "/api/health", e.token, "")
	assert.Equal(t, http.StatusUnauthorized, r.status)

	r = e.do(t, "GET", "/api/health", fresh, "")
	assert.Equal(t, http.StatusOK, r.status)
}

func TestServer_Routing(t *testing.T) {
	e := newEnv(t, false)

	r := e.do(t, "GET", "/api/health", e.token, "")
	assert.Equal(t, http.StatusOK, r.status)
	assert.JSONEq(t, `{"status":"ok","version":"1.1"}`, string(r.body))

	r = e.do(t, "GET", "/api/unknownpath", e.token, "")
	assert.Equal(t, http.StatusNotFound, r.status)
	assert.Contains(t, r.json(t), "error")

	r = e.do(t, "DELETE", "/api/health", e.token, "")
	assert.Equal(t, http.StatusMethodNotAllowed, r.status)

	r = e.raw(t, "NONSENSE\r\n\r\n")
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = e.raw(t, "POST /api/items HTTP/1.1\r\nAuthorization: Bearer "+e.token+"\r\nContent-Length: 70000\r\n\r\n")
	assert.Equal(t, http.StatusBadRequest, r.status)
	assert.Equal(t, "request too large", r.json(t)["error"])
}

func TestServer_EmptyList(t *testing.T) {
	e := newEnv(t, false)

	r := e.do(t, "GET", "/api/items", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	assert.JSONEq(t, `{"items":[]}`, string(r.body))
}

func TestServer_CreateAndFetch(t *testing.T) {
	e := newEnv(t, false)

	r := e.do(t, "POST", "/api/items", e.token, `{"content":"hello"}`)
	require.Equal(t, http.StatusCreated, r.status)
	created := r.json(t)
	assert.Equal(t, "text", created["type"])
	assert.Equal(t, "Item created", created["message"])
	assert.Equal(t, "2026-05-01T09:00:00.000Z", created["timestamp"])
	id := created["id"].(string)
	_, err := uuid.Parse(id)
	require.NoError(t, err)

	r = e.do(t, "GET", "/api/items/"+id, e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	got := r.json(t)
	assert.Equal(t, "hello", got["content"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, float64(5), got["characterCount"])
	assert.Equal(t, false, got["isSensitive"])

	r = e.do(t, "GET", "/api/items", e.token, "")
	items := r.json(t)["items"].([]interface{})
	require.Len(t, items, 1)
	summary := items[0].(map[string]interface{})
	assert.Equal(t, id, summary["id"])
	assert.Equal(t, false, summary["isPinned"])
	assert.Nil(t, summary["sourceApp"])
	assert.NotContains(t, summary, "content")
}

func TestServer_CreateValidation(t *testing.T) {
	e := newEnv(t, false)

	for name, body := range map[string]string{
		"missing content": `{"type":"text"}`,
		"empty content":   `{"content":""}`,
		"bad type":        `{"content":"x","type":"image"}`,
		"not json":        `content=hello`,
	} {
		t.Run(name, func(t *testing.T) {
			r := e.do(t, "POST", "/api/items", e.token, body)
			assert.Equal(t, http.StatusBadRequest, r.status)
			assert.NotEmpty(t, r.json(t)["error"])
		})
	}

	id := e.create(t, `{"content":"https://example.com","type":"url","sourceAppName":"Script","isPinned":true}`)
	r := e.do(t, "GET", "/api/items/"+id, e.token, "")
	got := r.json(t)
	assert.Equal(t, "url", got["type"])
	assert.Equal(t, "Script", got["sourceApp"])
	assert.Equal(t, true, got["isPinned"])
}

func TestServer_ItemIDs(t *testing.T) {
	e := newEnv(t, false)

	r := e.do(t, "GET", "/api/items/not-a-uuid", e.token, "")
	assert.Equal(t, http.StatusBadRequest, r.status)

	missing := uuid.NewString()
	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/items/" + missing},
		{"DELETE", "/api/items/" + missing},
		{"PUT", "/api/items/" + missing + "/pin"},
		{"POST", "/api/items/" + missing + "/copy"},
		{"POST", "/api/items/" + missing + "/reveal"},
		{"GET", "/api/screenshots/" + missing + "/image"},
	} {
		r := e.do(t, tc.method, tc.path, e.token, "")
		assert.Equal(t, http.StatusNotFound, r.status, tc.method+" "+tc.path)
	}
}

func TestServer_PinAndDelete(t *testing.T) {
	e := newEnv(t, false)
	id := e.create(t, `{"content":"keep me"}`)

	r := e.do(t, "PUT", "/api/items/"+id+"/pin", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, true, r.json(t)["isPinned"])
	assert.Equal(t, id, r.json(t)["id"])

	r = e.do(t, "PUT", "/api/items/"+id+"/pin", e.token, "")
	assert.Equal(t, false, r.json(t)["isPinned"])

	r = e.do(t, "DELETE", "/api/items/"+id, e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "Item deleted", r.json(t)["message"])

	r = e.do(t, "GET", "/api/items/"+id, e.token, "")
	assert.Equal(t, http.StatusNotFound, r.status)

	r = e.do(t, "GET", "/api/items", e.token, "")
	assert.JSONEq(t, `{"items":[]}`, string(r.body))
}

func TestServer_Search(t *testing.T) {
	e := newEnv(t, false)
	e.create(t, `{"content":"Hello World"}`)
	e.create(t, `{"content":"goodbye"}`)
	e.create(t, `{"content":"say hello"}`)

	r := e.do(t, "GET", "/api/search?q=HELLO", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	body := r.json(t)
	assert.Equal(t, "HELLO", body["query"])
	assert.Equal(t, float64(2), body["count"])
	items := body["items"].([]interface{})
	require.Len(t, items, 2)
	assert.Equal(t, "say hello", items[0].(map[string]interface{})["text"])

	r = e.do(t, "GET", "/api/search", e.token, "")
	assert.Equal(t, http.StatusBadRequest, r.status)

	r = e.do(t, "GET", "/api/search?q=nothing", e.token, "")
	assert.JSONEq(t, `{"query":"nothing","count":0,"items":[]}`, string(r.body))
}

func TestServer_SensitiveMaskingAndReveal(t *testing.T) {
	e := newEnv(t, false)
	secret := "sk-ant-abcdef1234567890"
	id := e.create(t, `{"content":"`+secret+`"}`)
	plain := e.create(t, `{"content":"marked secret","isSensitive":true}`)

	r := e.do(t, "GET", "/api/items/"+id, e.token, "")
	got := r.json(t)
	assert.Equal(t, true, got["isSensitive"])
	assert.Equal(t, true, got["isLocked"])
	assert.Equal(t, sensitive.Masked, got["content"])
	assert.Equal(t, sensitive.Masked, got["text"])

	r = e.do(t, "GET", "/api/items/"+plain, e.token, "")
	assert.Equal(t, true, r.json(t)["isSensitive"])

	r = e.do(t, "POST", "/api/items/"+id+"/reveal", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	revealed := r.json(t)
	assert.Equal(t, secret, revealed["content"])
	assert.Equal(t, "2026-05-01T09:05:02.000Z", revealed["expiresAt"])

	r = e.do(t, "GET", "/api/items/"+id, e.token, "")
	assert.Equal(t, secret, r.json(t)["content"])

	e.clock.Add(authgate.DefaultTimeout)
	r = e.do(t, "GET", "/api/items/"+id, e.token, "")
	assert.Equal(t, sensitive.Masked, r.json(t)["content"])
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

func TestServer_Screenshots(t *testing.T) {
	e := newEnv(t, false)
	data := pngBytes(t)

	shot := clipboard.NewItem(types.TypeImage, data, "", e.clock.Now())
	require.NoError(t, e.recorder.Record(shot))
	textID := e.create(t, `{"content":"not an image"}`)

	r := e.do(t, "GET", "/api/screenshots", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	shots := r.json(t)["screenshots"].([]interface{})
	require.Len(t, shots, 1)
	first := shots[0].(map[string]interface{})
	assert.Equal(t, shot.ID, first["id"])
	assert.Equal(t, "/api/screenshots/"+shot.ID+"/image", first["imageUrl"])
	assert.Equal(t, float64(len(data)), first["size"])

	r = e.do(t, "GET", "/api/screenshots/"+shot.ID+"/image", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, "image/png", r.headers["content-type"])
	assert.Equal(t, "*", r.headers["access-control-allow-origin"])
	assert.Equal(t, data, r.body)

	r = e.do(t, "GET", "/api/screenshots/"+textID+"/image", e.token, "")
	assert.Equal(t, http.StatusNotFound, r.status)

	r = e.do(t, "GET", "/api/items/"+shot.ID, e.token, "")
	detail := r.json(t)
	assert.NotContains(t, detail, "content")
	assert.Nil(t, detail["text"])
}

func TestServer_CopyAndPaste(t *testing.T) {
	e := newEnv(t, false)
	id := e.create(t, `{"content":"to clipboard"}`)

	r := e.do(t, "POST", "/api/items/"+id+"/copy", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	assert.NotEmpty(t, r.json(t)["message"])
	written := e.clipboard.writes()
	require.Len(t, written, 1)
	assert.Equal(t, id, written[0].ID)
	assert.Equal(t, 1, e.watcher.syncCount())

	r = e.do(t, "POST", "/api/items/"+id+"/paste", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, false, r.json(t)["pasteSimulated"])
	assert.Len(t, e.clipboard.writes(), 2)

	r = e.do(t, "POST", "/api/paste", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, false, r.json(t)["pasteSimulated"])

	r = e.do(t, "GET", "/api/items/"+id+"/copy", e.token, "")
	assert.Equal(t, http.StatusMethodNotAllowed, r.status)
}

func TestServer_PasteSimulated(t *testing.T) {
	e := newEnv(t, true)

	r := e.do(t, "POST", "/api/paste", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	assert.Equal(t, true, r.json(t)["pasteSimulated"])
}

func TestServer_Status(t *testing.T) {
	e := newEnv(t, false)
	e.create(t, `{"content":"one"}`)

	r := e.do(t, "GET", "/api/status", e.token, "")
	require.Equal(t, http.StatusOK, r.status)
	body := r.json(t)
	assert.Equal(t, float64(1), body["itemCount"])
	mon := body["monitoring"].(map[string]interface{})
	assert.Equal(t, true, mon["isRunning"])
	assert.Equal(t, float64(7), mon["lastChange"])
}

func TestServer_Lifecycle(t *testing.T) {
	e := newEnv(t, false)
	assert.Equal(t, StateRunning, e.server.State())

	// start while running is a no-op
	addr := e.server.Addr()
	require.NoError(t, e.server.Start())
	assert.Equal(t, addr, e.server.Addr())

	// a second server on the same port fails to bind and stays stopped
	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	clash := NewServer(ServerConfig{Enabled: true, Port: p, Recorder: e.recorder, Tokens: e.tokens})
	assert.Error(t, clash.Start())
	assert.Equal(t, StateStopped, clash.State())
	clash.Stop()

	// an idle connection does not block Stop
	idle, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer idle.Close()

	e.server.Stop()
	e.server.Stop()
	assert.Equal(t, StateStopped, e.server.State())
	assert.Equal(t, "", e.server.Addr())

	_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)

	disabled := NewServer(ServerConfig{Enabled: false, Recorder: e.recorder, Tokens: e.tokens})
	require.NoError(t, disabled.Start())
	assert.Equal(t, StateStopped, disabled.State())
}
