package hub

import (
	"context"
	"encoding/base64"
	"net/url"
)

// Request is one call to the hub API.
type Request struct {
	Method string

	// Path is relative to the API base URL, without a leading slash
	// (for example "activities" or "entities/uc.main.tv/command").
	Path string

	Query url.Values

	// Body is JSON-encoded when non-nil.
	Body any
}

// Response is a successful (2xx) reply.
type Response struct {
	StatusCode int
	Body       []byte
}

// Transport sends requests to a single hub.
//
// Implementations return a *Fault for network failures, non-2xx replies
// and undecodable bodies. They must honour ctx cancellation and must be
// safe for concurrent use.
type Transport interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req Request) (*Response, error)

// Do calls f.
func (f TransportFunc) Do(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// pinUsername is the fixed account the hub's web configurator uses for
// PIN authentication.
const pinUsername = "web-configurator"

// Auth selects how requests are authenticated. Exactly one of APIKey or
// PIN is expected to be set; APIKey wins when both are.
type Auth struct {
	APIKey string
	PIN    string
}

// APIKeyAuth authenticates with a Bearer API key.
func APIKeyAuth(key string) Auth {
	return Auth{APIKey: key}
}

// PINAuth authenticates with HTTP Basic using the web-configurator PIN.
func PINAuth(pin string) Auth {
	return Auth{PIN: pin}
}

// Header returns the Authorization header value, or "" when no
// credential is configured.
func (a Auth) Header() string {
	switch {
	case a.APIKey != "":
		return "Bearer " + a.APIKey
	case a.PIN != "":
		token := base64.StdEncoding.EncodeToString([]byte(pinUsername + ":" + a.PIN))
		return "Basic " + token
	default:
		return ""
	}
}

// TransportFactory builds a Transport for a base URL and credential.
// The credential manager uses it to talk to hubs it has no session for.
type TransportFactory func(baseURL string, auth Auth) (Transport, error)
