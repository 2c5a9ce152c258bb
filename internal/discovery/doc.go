// Package discovery finds hubs on the local network.
//
// Listener.Discover opens a fresh browse for every call, collects
// advertisements for a bounded window, deduplicates them by host and
// returns the candidates. Nothing outlives the call: the browse context is
// cancelled and the browse goroutine is waited for on every exit path.
//
// The event source is the Browser interface. ZeroconfBrowser implements it
// with DNS-SD over multicast (github.com/grandcat/zeroconf) for the
// "_uc-remote._tcp" service; tests substitute a scripted browser.
//
// Discover never returns an error. A browser failure is logged and
// whatever was collected so far (possibly nothing) is returned.
package discovery
