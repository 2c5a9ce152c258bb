package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/uc-remote-core/internal/model"
)

// listResponse wraps collection responses the same way for every resource.
type listResponse[T any] struct {
	Items      []T    `json:"items"`
	Count      int    `json:"count"`
	Generation uint64 `json:"generation"`
}

func newList[T any](items []T, generation uint64) listResponse[T] {
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{Items: items, Count: len(items), Generation: generation}
}

// snapshot returns the current snapshot, or writes 503 and reports false
// when the session has not completed its first refresh.
func (s *Server) snapshot(w http.ResponseWriter) (model.Snapshot, bool) {
	if !s.state.Ready() {
		writeUnavailable(w, "hub session not initialised")
		return model.Snapshot{}, false
	}
	return s.state.Snapshot(), true
}

// handleGetState returns the whole snapshot.
func (s *Server) handleGetState(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleGetHub returns the hub status section.
func (s *Server) handleGetHub(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	if snap.Hub == nil {
		writeNotFound(w, "hub status not loaded")
		return
	}
	writeJSON(w, http.StatusOK, snap.Hub)
}

func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	items := snap.Activities
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := make([]model.ActivityView, 0, len(items))
		for _, a := range items {
			if strings.EqualFold(string(a.State), state) {
				filtered = append(filtered, a)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, newList(items, snap.Generation))
}

// handleGetActivity looks an activity up by id, then by case-insensitive name.
func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	ref := chi.URLParam(r, "ref")
	if a, found := findActivity(snap.Activities, ref); found {
		writeJSON(w, http.StatusOK, a)
		return
	}
	writeNotFound(w, "activity not found: "+ref)
}

func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newList(snap.Groups, snap.Generation))
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}

	items := snap.Entities
	if activity := r.URL.Query().Get("activity"); activity != "" {
		filtered := make([]model.EntityView, 0, len(items))
		for _, e := range items {
			if e.ParentActivityID == activity {
				filtered = append(filtered, e)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, newList(items, snap.Generation))
}

func (s *Server) handleListDocks(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newList(snap.Docks, snap.Generation))
}

func (s *Server) handleListIRDevices(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newList(snap.IRDevices, snap.Generation))
}

func findActivity(list []model.ActivityView, ref string) (model.ActivityView, bool) {
	for _, a := range list {
		if a.ID == ref {
			return a, true
		}
	}
	for _, a := range list {
		if strings.EqualFold(a.Name, ref) {
			return a, true
		}
	}
	return model.ActivityView{}, false
}
