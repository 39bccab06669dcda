package api

import (
	"strings"

	"github.com/berrythewa/clipkeep/internal/apierror"
)

// HandlerFunc serves one routed request.
type HandlerFunc func(req *Request) (*Response, error)

type route struct {
	segments []string
	methods  map[string]HandlerFunc
}

// router matches paths made of literal segments and ":name" parameters.
type router struct {
	routes []*route
}

func (rt *router) handle(method, pattern string, h HandlerFunc) {
	segments := split(pattern)
	for _, r := range rt.routes {
		if equalSegments(r.segments, segments) {
			r.methods[method] = h
			return
		}
	}
	rt.routes = append(rt.routes, &route{
		segments: segments,
		methods:  map[string]HandlerFunc{method: h},
	})
}

// lookup returns the handler for method and path and fills the path
// parameters. Unknown paths give apierror.ErrNotFound and known paths with
// another method apierror.ErrMethodNotAllowed.
func (rt *router) lookup(method, path string) (HandlerFunc, map[string]string, error) {
	segments := split(path)
	for _, r := range rt.routes {
		params, ok := r.match(segments)
		if !ok {
			continue
		}
		h, ok := r.methods[method]
		if !ok {
			return nil, nil, apierror.ErrMethodNotAllowed
		}
		return h, params, nil
	}
	return nil, nil, apierror.ErrNotFound
}

func (r *route) match(segments []string) (map[string]string, bool) {
	if len(segments) != len(r.segments) {
		return nil, false
	}
	params := map[string]string{}
	for i, want := range r.segments {
		if strings.HasPrefix(want, ":") {
			if segments[i] == "" {
				return nil, false
			}
			params[want[1:]] = segments[i]
			continue
		}
		if want != segments[i] {
			return nil, false
		}
	}
	return params, true
}

func split(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func equalSegments(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
