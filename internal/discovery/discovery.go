package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/nerrad567/uc-remote-core/internal/hub"
)

// DefaultTimeout is the collection window used when none is given.
const DefaultTimeout = 3 * time.Second

// Advertisement is one service announcement seen on the network.
type Advertisement struct {
	Address    string
	Port       int
	Name       string
	Attributes map[string]string
}

// Browser produces advertisements until ctx is done.
//
// Browse must return promptly once ctx is done, must not close found, and
// must select on ctx.Done() when sending so it never blocks forever.
type Browser interface {
	Browse(ctx context.Context, found chan<- Advertisement) error
}

// Candidate is a hub that answered discovery but has not been contacted.
type Candidate struct {
	// BaseURL is the normalised API base URL, e.g. http://192.168.1.20:80/api/.
	BaseURL      string    `json:"base_url"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	Name         string    `json:"name"`
	Model        string    `json:"model,omitempty"`
	Firmware     string    `json:"firmware,omitempty"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Logger is the logging interface used by the listener.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Listener turns advertisements into candidates.
type Listener struct {
	browser Browser
	timeout time.Duration
	logger  Logger
	now     func() time.Time
}

// Option configures a Listener.
type Option func(*Listener)

// WithTimeout sets the default collection window.
func WithTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(l *Listener) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewListener creates a listener over browser.
func NewListener(browser Browser, opts ...Option) *Listener {
	l := &Listener{
		browser: browser,
		timeout: DefaultTimeout,
		logger:  noopLogger{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Discover collects candidates for timeout (or the listener default when
// timeout is zero), bounded also by ctx. It returns early if the browser
// finishes before the window closes.
func (l *Listener) Discover(ctx context.Context, timeout time.Duration) []Candidate {
	if timeout <= 0 {
		timeout = l.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found := make(chan Advertisement)
	done := make(chan error, 1)
	go func() {
		done <- l.browser.Browse(ctx, found)
	}()

	seen := make(map[string]bool)
	candidates := []Candidate{}

	for {
		select {
		case ad := <-found:
			c, ok := l.candidate(ad)
			if !ok || seen[c.Host] {
				continue
			}
			seen[c.Host] = true
			candidates = append(candidates, c)
			l.logger.Debug("hub discovered", "host", c.Host, "name", c.Name)

		case err := <-done:
			if err != nil {
				l.logger.Warn("discovery browse failed", "error", err)
			}
			return candidates

		case <-ctx.Done():
			cancel()
			l.drain(found, done)
			l.logger.Debug("discovery window closed", "candidates", len(candidates))
			return candidates
		}
	}
}

// drain discards late advertisements until the browser returns.
func (l *Listener) drain(found <-chan Advertisement, done <-chan error) {
	for {
		select {
		case <-found:
		case err := <-done:
			if err != nil {
				l.logger.Warn("discovery browse failed", "error", err)
			}
			return
		}
	}
}

func (l *Listener) candidate(ad Advertisement) (Candidate, bool) {
	if ad.Address == "" {
		return Candidate{}, false
	}

	hostPort := ad.Address
	if ad.Port > 0 {
		hostPort = net.JoinHostPort(ad.Address, strconv.Itoa(ad.Port))
	}
	baseURL, err := hub.NormalizeURL(hostPort)
	if err != nil {
		l.logger.Debug("ignoring advertisement", "address", ad.Address, "error", err)
		return Candidate{}, false
	}

	name := ad.Attributes["name"]
	if name == "" {
		name = ad.Name
	}

	return Candidate{
		BaseURL:      baseURL,
		Host:         ad.Address,
		Port:         ad.Port,
		Name:         name,
		Model:        ad.Attributes["model"],
		Firmware:     ad.Attributes["ver"],
		DiscoveredAt: l.now(),
	}, true
}

// String renders a candidate for log lines and tables.
func (c Candidate) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.BaseURL)
}
