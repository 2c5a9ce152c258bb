package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/nerrad567/uc-remote-core/internal/audit"
	"github.com/nerrad567/uc-remote-core/internal/auth"
	"github.com/nerrad567/uc-remote-core/internal/hub"
)

// fakeAudit is an in-memory audit.Repository.
type fakeAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
	filter  audit.Filter
	listErr error
}

func (f *fakeAudit) Create(_ context.Context, e *audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *e)
	return nil
}

func (f *fakeAudit) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &audit.ListResult{Entries: f.entries, Total: len(f.entries), Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (f *fakeAudit) Entries() []audit.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.Entry(nil), f.entries...)
}

func testAuditServer(t *testing.T) (*Server, *fakeCommander, *fakeAudit) {
	t.Helper()
	srv, _, cmds := testServer(t)
	repo := &fakeAudit{}
	srv.audit = repo
	srv.auditCh = make(chan *audit.Entry, auditChanSize)
	return srv, cmds, repo
}

func TestAudit_CommandsAreQueued(t *testing.T) {
	srv, cmds, _ := testAuditServer(t)
	router := srv.buildRouter()
	tok := token(t, auth.RoleAdmin)

	w := do(t, router, http.MethodPost, "/api/v1/activities/act.tv/start", tok, "")
	if w.Code != http.StatusOK {
		t.Fatalf("start status = %d, body %s", w.Code, w.Body.String())
	}
	resp := decode[CommandResponse](t, w)

	cmds.err = fmt.Errorf("%w: no such dock", hub.ErrNotFound)
	w = do(t, router, http.MethodPut, "/api/v1/docks/nope/charging", tok, `{"enabled":true}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("charging status = %d", w.Code)
	}

	if len(srv.auditCh) != 2 {
		t.Fatalf("queued = %d, want 2", len(srv.auditCh))
	}

	ok := <-srv.auditCh
	if ok.ID != resp.ID || ok.Source != audit.SourceAPI || ok.Subject != "tester" ||
		ok.Kind != "activity_start" || ok.Result != "ok" || ok.Outcome != "sent" || ok.Target != "act.tv" {
		t.Errorf("success entry = %+v", ok)
	}

	failed := <-srv.auditCh
	if failed.Result != "not_found" || failed.Kind != "dock_charging" || failed.Outcome != "" {
		t.Errorf("failure entry = %+v", failed)
	}
}

func TestAudit_DrainWritesRemaining(t *testing.T) {
	srv, _, repo := testAuditServer(t)

	for i := range 3 {
		srv.auditCh <- &audit.Entry{ID: fmt.Sprintf("cmd-%d", i), Kind: "button", Source: audit.SourceAPI, Result: "ok"}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv.drainAuditLog(ctx)

	if got := len(repo.Entries()); got != 3 {
		t.Errorf("written = %d, want 3", got)
	}
}

func TestAudit_NotConfigured(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodPost, "/api/v1/commands/system", token(t, auth.RoleAdmin), `{"command":"STANDBY"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("command status = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/api/v1/audit", token(t, auth.RoleAdmin), "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("audit status = %d, want 503", w.Code)
	}
}

func TestHandleListAudit(t *testing.T) {
	srv, _, repo := testAuditServer(t)
	router := srv.buildRouter()
	repo.entries = []audit.Entry{{ID: "cmd-1", Kind: "ir", Source: audit.SourceMQTT, Result: "ok"}}

	w := do(t, router, http.MethodGet, "/api/v1/audit?kind=ir&source=mqtt&result=ok&limit=10&offset=2", token(t, auth.RoleAdmin), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	res := decode[audit.ListResult](t, w)
	if res.Total != 1 || len(res.Entries) != 1 || res.Entries[0].ID != "cmd-1" {
		t.Errorf("result = %+v", res)
	}
	want := audit.Filter{Kind: "ir", Source: "mqtt", Result: "ok", Limit: 10, Offset: 2}
	if repo.filter != want {
		t.Errorf("filter = %+v, want %+v", repo.filter, want)
	}

	// Only admins read the command history.
	if w := do(t, router, http.MethodGet, "/api/v1/audit", token(t, auth.RoleOperator), ""); w.Code != http.StatusForbidden {
		t.Errorf("operator status = %d, want 403", w.Code)
	}

	repo.listErr = errors.New("disk I/O error")
	if w := do(t, router, http.MethodGet, "/api/v1/audit", token(t, auth.RoleAdmin), ""); w.Code != http.StatusInternalServerError {
		t.Errorf("list error status = %d, want 500", w.Code)
	}
}
