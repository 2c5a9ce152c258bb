package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/goleak"
)

// ignoreResponder skips the announcement loop of a registered zeroconf
// service; it sleeps through its repetitions and ignores Shutdown.
var ignoreResponder = goleak.IgnoreAnyFunction("github.com/grandcat/zeroconf.(*Server).probe")

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, ignoreResponder)
}

// unit is one "time unit" of the scripted browser.
const unit = 40 * time.Millisecond

type scripted struct {
	at time.Duration
	ad Advertisement
}

// scriptedBrowser emits advertisements at fixed offsets, then keeps
// listening until ctx is done, or returns err straight away.
type scriptedBrowser struct {
	script  []scripted
	err     error
	stopped chan struct{}
}

func newScriptedBrowser(script ...scripted) *scriptedBrowser {
	return &scriptedBrowser{script: script, stopped: make(chan struct{})}
}

func (b *scriptedBrowser) Browse(ctx context.Context, found chan<- Advertisement) error {
	defer close(b.stopped)
	if b.err != nil {
		return b.err
	}

	start := time.Now()
	for _, s := range b.script {
		wait := time.Until(start.Add(s.at))
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil
		}
		select {
		case found <- s.ad:
		case <-ctx.Done():
			return nil
		}
	}
	<-ctx.Done()
	return nil
}

func ad(addr, name string) Advertisement {
	return Advertisement{
		Address:    addr,
		Port:       80,
		Name:       name + "._uc-remote._tcp.local.",
		Attributes: map[string]string{"name": name, "model": "UCR2", "ver": "2.0.1"},
	}
}

func TestDiscover_CollectsAndDeduplicates(t *testing.T) {
	browser := newScriptedBrowser(
		scripted{at: 0, ad: ad("192.168.1.20", "Living Room")},
		scripted{at: unit, ad: ad("192.168.1.21", "Bedroom")},
		scripted{at: unit + unit/2, ad: ad("192.168.1.20", "Living Room")},
	)
	l := NewListener(browser)

	got := l.Discover(context.Background(), 3*unit)

	if len(got) != 2 {
		t.Fatalf("Discover() returned %d candidates, want 2: %v", len(got), got)
	}
	if got[0].Host != "192.168.1.20" || got[1].Host != "192.168.1.21" {
		t.Errorf("hosts = %s, %s", got[0].Host, got[1].Host)
	}
	if got[0].BaseURL != "http://192.168.1.20:80/api/" {
		t.Errorf("BaseURL = %q", got[0].BaseURL)
	}
	if got[0].Name != "Living Room" || got[0].Model != "UCR2" || got[0].Firmware != "2.0.1" {
		t.Errorf("candidate = %+v", got[0])
	}
	if got[0].DiscoveredAt.IsZero() {
		t.Error("DiscoveredAt not set")
	}

	select {
	case <-browser.stopped:
	default:
		t.Error("browser still running after Discover returned")
	}
}

func TestDiscover_HonoursWindow(t *testing.T) {
	browser := newScriptedBrowser(
		scripted{at: 0, ad: ad("10.0.0.1", "Early")},
		scripted{at: 10 * unit, ad: ad("10.0.0.2", "Late")},
	)
	l := NewListener(browser)

	start := time.Now()
	got := l.Discover(context.Background(), 2*unit)
	elapsed := time.Since(start)

	if len(got) != 1 || got[0].Host != "10.0.0.1" {
		t.Errorf("Discover() = %v, want only the early candidate", got)
	}
	if elapsed > 8*unit {
		t.Errorf("Discover() took %v, window was %v", elapsed, 2*unit)
	}
}

func TestDiscover_CallerCancellation(t *testing.T) {
	browser := newScriptedBrowser()
	l := NewListener(browser)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(unit)
		cancel()
	}()

	start := time.Now()
	got := l.Discover(ctx, time.Minute)
	if len(got) != 0 {
		t.Errorf("Discover() = %v, want empty", got)
	}
	if time.Since(start) > 10*unit {
		t.Error("Discover() ignored caller cancellation")
	}
	<-browser.stopped
}

func TestDiscover_BrowserFailureReturnsEmpty(t *testing.T) {
	browser := newScriptedBrowser()
	browser.err = errors.New("no multicast interface")
	l := NewListener(browser)

	got := l.Discover(context.Background(), time.Minute)
	if got == nil || len(got) != 0 {
		t.Errorf("Discover() = %#v, want empty non-nil slice", got)
	}
}

func TestDiscover_DefaultTimeoutAndNameFallback(t *testing.T) {
	browser := newScriptedBrowser(scripted{at: 0, ad: Advertisement{Address: "10.0.0.9", Name: "Remote Two"}})
	l := NewListener(browser, WithTimeout(2*unit))

	got := l.Discover(context.Background(), 0)
	if len(got) != 1 {
		t.Fatalf("Discover() = %v", got)
	}
	if got[0].Name != "Remote Two" || got[0].BaseURL != "http://10.0.0.9/api/" {
		t.Errorf("candidate = %+v", got[0])
	}
}

func TestAdvertisementFromEntry(t *testing.T) {
	entry := zeroconf.NewServiceEntry("Remote Two", DefaultService, DefaultDomain)
	entry.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	entry.Port = 80
	entry.Text = []string{"name=Living Room", "Model=UCR2", "ver=2.0.1", "=junk", "flag"}

	ad, ok := advertisementFromEntry(entry)
	if !ok {
		t.Fatal("advertisementFromEntry() rejected entry")
	}
	if ad.Address != "192.168.1.20" || ad.Port != 80 || ad.Name != "Remote Two" {
		t.Errorf("ad = %+v", ad)
	}
	want := map[string]string{"name": "Living Room", "model": "UCR2", "ver": "2.0.1", "flag": ""}
	for k, v := range want {
		if got, ok := ad.Attributes[k]; !ok || got != v {
			t.Errorf("Attributes[%q] = %q, %v", k, got, ok)
		}
	}
	if len(ad.Attributes) != len(want) {
		t.Errorf("Attributes = %v", ad.Attributes)
	}

	if _, ok := advertisementFromEntry(zeroconf.NewServiceEntry("x", DefaultService, DefaultDomain)); ok {
		t.Error("entry without address accepted")
	}
}

func TestZeroconfBrowser_ShortWindowsReleaseResolver(t *testing.T) {
	if testing.Short() {
		t.Skip("uses multicast")
	}
	server, err := zeroconf.Register("Test Remote", DefaultService, DefaultDomain, 8080,
		[]string{"name=Test Remote", "model=UCR3"}, nil)
	if err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}

	// Windows short enough to close while answers are still arriving.
	l := NewListener(NewZeroconfBrowser("", ""))
	for i := range 200 {
		window := time.Duration(200+(i%15)*200) * time.Microsecond
		l.Discover(context.Background(), window)
	}

	server.Shutdown()
	goleak.VerifyNone(t, ignoreResponder)
}
