package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/berrythewa/clipkeep/internal/apierror"
)

const (
	contentTypeJSON = "application/json"
	contentTypePNG  = "image/png"
)

// Response is written once and the connection closed.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

func jsonResponse(status int, v interface{}) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return &Response{Status: status, ContentType: contentTypeJSON, Body: body}, nil
}

func errorResponse(e *apierror.Error) *Response {
	body, err := json.Marshal(e)
	if err != nil {
		body = []byte(`{"error":"internal server error"}`)
	}
	return &Response{Status: e.HTTPCode, ContentType: contentTypeJSON, Body: body}
}

// WriteTo frames the response: status line, headers, blank line, body.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)

	text := http.StatusText(r.Status)
	if text == "" {
		text = "Unknown"
	}
	fmt.Fprintf(bw, "HTTP/1.1 %d %s\r\n", r.Status, text)
	fmt.Fprintf(bw, "Content-Type: %s\r\n", r.ContentType)
	fmt.Fprintf(bw, "Content-Length: %s\r\n", strconv.Itoa(len(r.Body)))
	bw.WriteString("Access-Control-Allow-Origin: *\r\n")
	bw.WriteString("Connection: close\r\n")
	bw.WriteString("\r\n")
	bw.Write(r.Body)

	n := int64(bw.Buffered())
	return n, bw.Flush()
}
