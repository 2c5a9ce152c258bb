package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/uc-remote-core/internal/dispatch"
	"github.com/nerrad567/uc-remote-core/internal/hub"
)

// maxRepeat bounds the repeat count accepted from API callers.
const maxRepeat = 20

// buttonRequest is the body of POST /commands/button.
type buttonRequest struct {
	Button   string `json:"button"`
	Activity string `json:"activity,omitempty"`
	HoldMS   int    `json:"hold_ms,omitempty"`
	Repeat   int    `json:"repeat,omitempty"`
}

// irRequest is the body of POST /commands/ir.
type irRequest struct {
	Device string `json:"device"`
	Code   string `json:"code"`
	Dock   string `json:"dock,omitempty"`
	Port   string `json:"port,omitempty"`
	Repeat int    `json:"repeat,omitempty"`
}

// systemRequest is the body of POST /commands/system.
type systemRequest struct {
	Command string `json:"command"`
}

// chargingRequest is the body of PUT /docks/{ref}/charging.
type chargingRequest struct {
	Enabled *bool `json:"enabled"`
}

// CommandResponse is returned by every command endpoint and broadcast on
// the commands channel.
type CommandResponse struct {
	ID        string          `json:"id"`
	Kind      dispatch.Kind   `json:"kind"`
	Result    string          `json:"result"`
	Outcome   string          `json:"outcome,omitempty"`
	Target    string          `json:"target,omitempty"`
	Calls     int             `json:"calls"`
	Attempts  int             `json:"attempts"`
	Subject   string          `json:"subject,omitempty"`
	Completed time.Time       `json:"completed_at"`
	Error     *CommandFailure `json:"error,omitempty"`
}

// CommandFailure describes why a command failed.
type CommandFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleStartActivity(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	s.execute(w, r, dispatch.KindActivityStart, func(ctx context.Context) (dispatch.Result, error) {
		return s.commands.StartActivity(ctx, ref)
	})
}

func (s *Server) handleStopActivity(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	s.execute(w, r, dispatch.KindActivityStop, func(ctx context.Context) (dispatch.Result, error) {
		return s.commands.StopActivity(ctx, ref)
	})
}

func (s *Server) handlePressButton(w http.ResponseWriter, r *http.Request) {
	var req buttonRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Button) == "" {
		writeBadRequest(w, "button is required")
		return
	}
	if !validRepeat(w, req.Repeat) {
		return
	}
	if req.HoldMS < 0 {
		writeBadRequest(w, "hold_ms must not be negative")
		return
	}

	b := dispatch.Button{
		Name:     req.Button,
		Activity: req.Activity,
		Hold:     time.Duration(req.HoldMS) * time.Millisecond,
		Repeat:   req.Repeat,
	}
	s.execute(w, r, dispatch.KindButton, func(ctx context.Context) (dispatch.Result, error) {
		return s.commands.PressButton(ctx, b)
	})
}

func (s *Server) handleSendIR(w http.ResponseWriter, r *http.Request) {
	var req irRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Device == "" || req.Code == "" {
		writeBadRequest(w, "device and code are required")
		return
	}
	if !validRepeat(w, req.Repeat) {
		return
	}

	ir := dispatch.IR{
		Device:  req.Device,
		Command: req.Code,
		Dock:    req.Dock,
		Port:    req.Port,
		Repeat:  req.Repeat,
	}
	s.execute(w, r, dispatch.KindIR, func(ctx context.Context) (dispatch.Result, error) {
		return s.commands.SendIR(ctx, ir)
	})
}

func (s *Server) handleSystemCommand(w http.ResponseWriter, r *http.Request) {
	var req systemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if _, err := hub.ParseSystemCommand(req.Command); err != nil {
		writeBadRequest(w, "unknown system command: "+req.Command)
		return
	}

	s.execute(w, r, dispatch.KindSystem, func(ctx context.Context) (dispatch.Result, error) {
		return s.commands.SendSystem(ctx, req.Command)
	})
}

func (s *Server) handleSetDockCharging(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var req chargingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled is required")
		return
	}

	enabled := *req.Enabled
	s.execute(w, r, dispatch.KindDockCharging, func(ctx context.Context) (dispatch.Result, error) {
		return s.commands.SetDockCharging(ctx, ref, enabled)
	})
}

// execute runs one command under the command timeout, writes the response
// and broadcasts it to WebSocket subscribers.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, kind dispatch.Kind, run func(context.Context) (dispatch.Result, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp := CommandResponse{
		ID:   uuid.NewString(),
		Kind: kind,
	}
	if claims := claimsFromContext(r.Context()); claims != nil {
		resp.Subject = claims.Subject
	}

	res, err := run(ctx)
	resp.Completed = time.Now().UTC()
	resp.Result = hub.ErrorCode(err)
	resp.Attempts = res.Attempts
	resp.Calls = res.Calls
	resp.Target = res.Target
	s.auditLog(resp.ID, resp.Subject, kind, res, err, resp.Completed)

	if err != nil {
		resp.Error = &CommandFailure{Code: resp.Result, Message: err.Error()}
		s.logger.Warn("api command failed",
			"id", resp.ID,
			"kind", kind,
			"subject", resp.Subject,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		s.hub.Broadcast(ChannelCommands, resp)
		writeHubError(w, err)
		return
	}

	resp.Outcome = res.Outcome.String()
	s.logger.Info("api command sent",
		"id", resp.ID,
		"kind", kind,
		"target", res.Target,
		"outcome", resp.Outcome,
		"subject", resp.Subject,
	)
	s.hub.Broadcast(ChannelCommands, resp)
	writeJSON(w, http.StatusOK, resp)
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, ErrCodeBadRequest, "request body too large")
		case errors.Is(err, io.EOF):
			writeBadRequest(w, "request body is required")
		default:
			writeBadRequest(w, "invalid JSON body: "+err.Error())
		}
		return false
	}
	return true
}

func validRepeat(w http.ResponseWriter, n int) bool {
	if n < 0 || n > maxRepeat {
		writeBadRequest(w, "repeat must be between 0 and 20")
		return false
	}
	return true
}
