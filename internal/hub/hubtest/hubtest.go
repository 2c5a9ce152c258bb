// Package hubtest provides an in-memory hub.Transport for tests.
package hubtest

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/uc-remote-core/internal/hub"
)

// Route answers one request. n is the 1-based count of calls made to the
// same method and path so far.
type Route func(req hub.Request, n int) (*hub.Response, error)

// Fake is a scripted hub.Transport. Requests with no route get a 404
// fault. Safe for concurrent use.
type Fake struct {
	mu          sync.Mutex
	routes      map[string]Route
	calls       []hub.Request
	counts      map[string]int
	inFlight    int
	maxInFlight int

	// Delay is applied to every request before it is answered. The
	// request fails as unreachable if ctx ends first.
	Delay time.Duration
}

// New returns a Fake with no routes.
func New() *Fake {
	return &Fake{
		routes: make(map[string]Route),
		counts: make(map[string]int),
	}
}

func key(method, path string) string {
	return method + " " + path
}

// Handle installs r for method and path.
func (f *Fake) Handle(method, path string, r Route) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[key(method, path)] = r
}

// JSON answers method and path with 200 and body.
func (f *Fake) JSON(method, path, body string) {
	f.Handle(method, path, func(hub.Request, int) (*hub.Response, error) {
		return &hub.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
	})
}

// OK answers method and path with an empty 200.
func (f *Fake) OK(method, path string) {
	f.JSON(method, path, "")
}

// Status answers method and path with an HTTP fault carrying code.
func (f *Fake) Status(method, path string, code int) {
	f.Handle(method, path, func(req hub.Request, _ int) (*hub.Response, error) {
		return nil, HTTPFault(req, code)
	})
}

// Unreachable fails method and path with a network fault.
func (f *Fake) Unreachable(method, path string) {
	f.Handle(method, path, func(req hub.Request, _ int) (*hub.Response, error) {
		return nil, &hub.Fault{Kind: hub.FaultUnreachable, Method: req.Method, Path: req.Path}
	})
}

// HTTPFault builds the fault a real transport returns for a non-2xx reply.
func HTTPFault(req hub.Request, code int) *hub.Fault {
	return &hub.Fault{Kind: hub.FaultHTTP, Method: req.Method, Path: req.Path, StatusCode: code}
}

// Do implements hub.Transport.
func (f *Fake) Do(ctx context.Context, req hub.Request) (*hub.Response, error) {
	f.mu.Lock()
	k := key(req.Method, req.Path)
	f.calls = append(f.calls, req)
	f.counts[k]++
	n := f.counts[k]
	route := f.routes[k]
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	delay := f.Delay
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, &hub.Fault{Kind: hub.FaultUnreachable, Method: req.Method, Path: req.Path, Err: ctx.Err()}
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &hub.Fault{Kind: hub.FaultUnreachable, Method: req.Method, Path: req.Path, Err: err}
	}

	if route == nil {
		return nil, HTTPFault(req, http.StatusNotFound)
	}
	return route(req, n)
}

// Calls returns every request received, in arrival order.
func (f *Fake) Calls() []hub.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]hub.Request, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many requests hit method and path.
func (f *Fake) Count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[key(method, path)]
}

// Total returns the number of requests received.
func (f *Fake) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// MaxInFlight returns the highest number of concurrent requests seen.
func (f *Fake) MaxInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

// Reset forgets recorded calls but keeps routes.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.counts = make(map[string]int)
	f.maxInFlight = 0
}
