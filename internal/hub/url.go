package hub

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeURL turns user input into an API base URL.
//
//	"192.168.1.20"                -> "http://192.168.1.20/api/"
//	"http://remote.lan"           -> "http://remote.lan/api/"
//	"http://remote.lan/"          -> "http://remote.lan/api/"
//	"https://remote.lan/custom"   -> "https://remote.lan/custom/"
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("hub address is empty")
	}

	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing hub address %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("hub address %q has no host", raw)
	}

	switch {
	case u.Path == "" || u.Path == "/":
		u.Path = "/api/"
	case !strings.HasSuffix(u.Path, "/"):
		u.Path += "/"
	}
	u.RawQuery = ""
	u.Fragment = ""

	return u.String(), nil
}

// ConfiguratorURL derives the web configurator address from an API base URL.
func ConfiguratorURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url: %w", err)
	}
	return fmt.Sprintf("%s://%s/configurator/", u.Scheme, u.Host), nil
}

// HostOf returns the host part (without port) of a base URL.
func HostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
