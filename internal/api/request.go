package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
)

// MaxRequestSize bounds everything read from one connection.
const MaxRequestSize = 64 * 1024

var (
	errMalformed = errors.New("malformed request")
	errTooLarge  = errors.New("request too large")
	headerEnd    = []byte("\r\n\r\n")
	knownMethods = map[string]bool{"GET": true, "POST": true, "PUT": true, "DELETE": true, "PATCH": true, "HEAD": true, "OPTIONS": true}
)

// Request is a parsed request. Header names are lower-cased.
type Request struct {
	Method  string
	Path    string
	Version string
	Query   url.Values
	Headers map[string]string
	Body    []byte
	Params  map[string]string
}

// Header returns the value of the named header, case-insensitively.
func (r *Request) Header(name string) string {
	return r.Headers[strings.ToLower(name)]
}

// BearerToken extracts the token of an "Authorization: Bearer <token>"
// header. It returns "" for any other form.
func (r *Request) BearerToken() string {
	auth := strings.TrimSpace(r.Header("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// ParseRequest parses a complete request held in data.
func ParseRequest(data []byte) (*Request, error) {
	head, body, found := bytes.Cut(data, headerEnd)
	if !found {
		return nil, errMalformed
	}

	lines := strings.Split(string(head), "\r\n")
	req, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, err
	}

	req.Headers = make(map[string]string, len(lines)-1)
	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("%w: bad header line", errMalformed)
		}
		req.Headers[strings.ToLower(name)] = strings.TrimSpace(value)
	}

	length, err := contentLength(req.Headers)
	if err != nil {
		return nil, err
	}
	if length >= 0 {
		if len(body) < length {
			return nil, fmt.Errorf("%w: truncated body", errMalformed)
		}
		body = body[:length]
	}
	req.Body = body
	return req, nil
}

func parseRequestLine(line string) (*Request, error) {
	parts := strings.Split(line, " ")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: bad request line", errMalformed)
	}
	method, target, version := parts[0], parts[1], parts[2]

	if !knownMethods[method] || !strings.HasPrefix(version, "HTTP/") || !strings.HasPrefix(target, "/") {
		return nil, fmt.Errorf("%w: bad request line", errMalformed)
	}

	rawPath, rawQuery, _ := strings.Cut(target, "?")
	path, err := url.PathUnescape(rawPath)
	if err != nil {
		return nil, fmt.Errorf("%w: bad path", errMalformed)
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("%w: bad query", errMalformed)
	}

	return &Request{
		Method:  method,
		Path:    path,
		Version: version,
		Query:   query,
	}, nil
}

// contentLength returns -1 when the header is absent.
func contentLength(headers map[string]string) (int, error) {
	raw, ok := headers["content-length"]
	if !ok {
		return -1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad content-length", errMalformed)
	}
	if n > MaxRequestSize {
		return 0, errTooLarge
	}
	return n, nil
}

// readRequest reads from r until a complete request is buffered, the peer
// closes, or the MaxRequestSize buffer is full.
func readRequest(r io.Reader) (*Request, error) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if len(buf)+n > MaxRequestSize {
				return nil, errTooLarge
			}
			buf = append(buf, chunk[:n]...)
			complete, cerr := isComplete(buf)
			if cerr != nil {
				return nil, cerr
			}
			if complete {
				return ParseRequest(buf)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(buf) > 0 {
				// peer half-closed with a partial request
				return nil, errMalformed
			}
			return nil, err
		}
	}
}

// isComplete reports whether buf holds the full head and the body it
// announces.
func isComplete(buf []byte) (bool, error) {
	idx := bytes.Index(buf, headerEnd)
	if idx < 0 {
		return false, nil
	}

	head := string(buf[:idx])
	want := 0
	for _, line := range strings.Split(head, "\r\n")[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "content-length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return false, fmt.Errorf("%w: bad content-length", errMalformed)
		}
		if n > MaxRequestSize {
			return false, errTooLarge
		}
		want = n
	}
	return len(buf)-idx-len(headerEnd) >= want, nil
}
