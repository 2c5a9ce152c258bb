package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/uc-remote-core/internal/audit"
	"github.com/nerrad567/uc-remote-core/internal/dispatch"
)

// auditChanSize is the buffer size for the async audit log channel.
// Entries beyond this are dropped (best-effort) to avoid back-pressure on requests.
const auditChanSize = 256

// auditLog enqueues a command for asynchronous write (best-effort).
// If the channel is full the entry is dropped and a warning is logged.
func (s *Server) auditLog(id, subject string, kind dispatch.Kind, res dispatch.Result, err error, at time.Time) {
	if s.audit == nil || s.auditCh == nil {
		return
	}

	entry := audit.NewEntry(audit.SourceAPI, subject, kind, res, err)
	entry.ID = id
	entry.CreatedAt = at

	select {
	case s.auditCh <- entry:
	default:
		s.logger.Warn("audit log channel full, dropping entry",
			"id", id,
			"kind", kind,
		)
	}
}

// drainAuditLog writes queued entries serially until ctx is cancelled, then
// drains what is left.
func (s *Server) drainAuditLog(ctx context.Context) {
	for {
		select {
		case entry := <-s.auditCh:
			s.writeAudit(entry)
		case <-ctx.Done():
			for {
				select {
				case entry := <-s.auditCh:
					s.writeAudit(entry)
				default:
					return
				}
			}
		}
	}
}

func (s *Server) writeAudit(entry *audit.Entry) {
	if err := s.audit.Create(context.Background(), entry); err != nil {
		s.logger.Error("audit log write failed",
			"id", entry.ID,
			"kind", entry.Kind,
			"error", err,
		)
	}
}

// handleListAudit returns paginated command history with optional filters.
//
// Query parameters:
//   - kind: dispatch kind (button, ir, system, dock_charging, activity_start, activity_stop)
//   - source: api or mqtt
//   - result: ok or an error code
//   - limit: max results (default 50, max 200)
//   - offset: pagination offset
func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		writeUnavailable(w, "audit logging not configured")
		return
	}

	q := r.URL.Query()
	filter := audit.Filter{
		Kind:   q.Get("kind"),
		Source: q.Get("source"),
		Result: q.Get("result"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	result, err := s.audit.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit entries", "error", err)
		writeInternalError(w, "failed to list audit entries")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
