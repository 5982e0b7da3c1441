package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cuemby/burrow/pkg/events"
	"github.com/cuemby/burrow/pkg/target"
	"github.com/cuemby/burrow/pkg/types"
	"github.com/go-chi/chi/v5"
)

// NodeView is one node as reported by GET /fleet
type NodeView struct {
	ID        string   `json:"id"`
	Ownership string   `json:"ownership"`
	Rooted    bool     `json:"rooted"`
	Total     float64  `json:"total"`
	Used      float64  `json:"used"`
	Free      float64  `json:"free"`
	Staged    []string `json:"staged,omitempty"`
}

// FleetView is the response of GET /fleet
type FleetView struct {
	Nodes []NodeView `json:"nodes"`
	Total float64    `json:"total"`
	Used  float64    `json:"used"`
}

// ProcessView is one running process
type ProcessView struct {
	Operation string   `json:"operation"`
	Args      []string `json:"args,omitempty"`
	Replicas  int      `json:"replicas"`
	StartedAt string   `json:"started_at"`
}

// TargetView is one target with its current phase
type TargetView struct {
	ID       string  `json:"id"`
	Phase    string  `json:"phase"`
	Rooted   bool    `json:"rooted"`
	Level    float64 `json:"level"`
	MinLevel float64 `json:"min_level"`
	Value    float64 `json:"value"`
	MaxValue float64 `json:"max_value"`
}

// ActionView is one action's evaluation
type ActionView struct {
	Name       string `json:"name"`
	Actionable bool   `json:"actionable"`
	Priority   *int   `json:"priority,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.driver.Nodes(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	view := FleetView{Nodes: make([]NodeView, 0, len(nodes))}
	for i := range nodes {
		n := &nodes[i]
		view.Nodes = append(view.Nodes, NodeView{
			ID:        n.ID,
			Ownership: string(n.Ownership),
			Rooted:    n.Rooted,
			Total:     n.TotalCapacity,
			Used:      n.UsedCapacity,
			Free:      n.Free(),
			Staged:    n.Staged,
		})
		view.Total += n.TotalCapacity
		view.Used += n.UsedCapacity
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) listProcesses(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	if _, err := s.driver.Node(r.Context(), nodeID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	procs, err := s.driver.Processes(r.Context(), nodeID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	view := make([]ProcessView, 0, len(procs))
	for _, p := range procs {
		view = append(view, ProcessView{
			Operation: p.Operation,
			Args:      p.Args,
			Replicas:  p.Replicas,
			StartedAt: p.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	targets, err := s.driver.Targets(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	view := make([]TargetView, 0, len(targets))
	for _, t := range targets {
		view = append(view, TargetView{
			ID:       t.ID,
			Phase:    string(target.Classify(t)),
			Rooted:   t.Rooted,
			Level:    t.Level,
			MinLevel: t.MinLevel,
			Value:    t.Value,
			MaxValue: t.MaxValue,
		})
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	account, err := s.driver.Account(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"money":        account.Money,
		"skill":        account.Skill,
		"port_openers": account.PortOpeners,
	})
}

func (s *Server) listActions(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "engine")
	engine, ok := s.engines[name]
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("engine %s: %w", name, types.ErrNotFound))
		return
	}

	s.evalMu.Lock()
	evals, err := engine.Evaluate(r.Context())
	s.evalMu.Unlock()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}

	view := make([]ActionView, 0, len(evals))
	for _, ev := range evals {
		av := ActionView{Name: ev.Action.Name(), Actionable: ev.Actionable}
		if ev.Actionable {
			p := ev.Priority
			av.Priority = &p
		}
		if ev.Err != nil {
			av.Error = ev.Err.Error()
		}
		view = append(view, av)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	s.eventsMu.RLock()
	out := make([]*events.Event, len(s.events))
	copy(out, s.events)
	s.eventsMu.RUnlock()

	writeJSON(w, http.StatusOK, out)
}

func statusFor(err error) int {
	if errors.Is(err, types.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusServiceUnavailable
}
