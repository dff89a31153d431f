package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchmesh/watchmesh/internal/state"
)

type testWire struct {
	Kind    string `json:"kind"`
	Target  string `json:"target"`
	Timeout string `json:"timeout"`
}

type groupWire struct {
	Name      string     `json:"name"`
	Threshold int        `json:"threshold"`
	Mediums   []string   `json:"mediums,omitempty"`
	Tests     []testWire `json:"tests"`
}

type regionWire struct {
	Name      string      `json:"name"`
	Interval  string      `json:"interval"`
	Threshold int         `json:"threshold"`
	Groups    []groupWire `json:"groups"`
}

type configResponse struct {
	Hash    string       `json:"hash"`
	Regions []regionWire `json:"regions"`
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	snap := s.currentSnapshot()
	resp := configResponse{Hash: snap.Hash}
	for _, reg := range snap.Config.Regions {
		rw := regionWire{Name: reg.Name, Interval: reg.Interval.String(), Threshold: reg.Threshold}
		for _, g := range reg.Groups {
			gw := groupWire{Name: g.Name, Threshold: g.Threshold, Mediums: g.Mediums}
			for _, t := range g.Tests {
				gw.Tests = append(gw.Tests, testWire{Kind: string(t.Kind), Target: t.Target, Timeout: t.Timeout.String()})
			}
			rw.Groups = append(rw.Groups, gw)
		}
		resp.Regions = append(resp.Regions, rw)
	}
	writeJSON(w, http.StatusOK, resp)
}

type relayResultWire struct {
	Group  string `json:"group"`
	Status string `json:"status"`
}

type relayPushRequest struct {
	Results []relayResultWire `json:"results"`
}

func (s *Server) handlePostRelay(w http.ResponseWriter, r *http.Request) {
	region := chi.URLParam(r, "region")

	var body relayPushRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	results := make([]state.GroupResult, 0, len(body.Results))
	for _, gr := range body.Results {
		results = append(results, state.GroupResult{Group: gr.Group, Status: gr.Status})
	}

	res := s.agg.Ingest(region, results)
	if res.UnknownRegion {
		http.Error(w, "unknown region", http.StatusNotFound)
		return
	}
	for _, ignored := range res.IgnoredGroups {
		s.log.Warn("ingest referenced unknown group, ignoring", "region", region, "group", ignored)
	}
	for _, inc := range res.NewIncidents {
		s.router.Route(r.Context(), inc)
	}

	w.WriteHeader(http.StatusNoContent)
}

type regionStatusWire struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

type groupStatusWire struct {
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

type incidentWire struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type analyticsResponse struct {
	Regions   []regionStatusWire `json:"regions"`
	Groups    []groupStatusWire  `json:"groups"`
	Incidents []incidentWire     `json:"incidents"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	regions, groups, incidents := s.agg.Snapshot()
	resp := analyticsResponse{}
	for _, reg := range regions {
		resp.Regions = append(resp.Regions, regionStatusWire{Name: reg.Name, Status: string(reg.Status), LastUpdate: reg.LastUpdate})
	}
	for _, g := range groups {
		resp.Groups = append(resp.Groups, groupStatusWire{Name: g.Name, Status: string(g.Status), LastUpdate: g.LastUpdate})
	}
	for _, inc := range incidents {
		resp.Incidents = append(resp.Incidents, incidentWire{Message: inc.Message, Timestamp: inc.Timestamp})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus is the human-oriented summary: same shape as analytics, kept
// as a distinct route on the wire surface.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.handleAnalytics(w, r)
}

type incidentsResponse struct {
	Incidents []incidentWire `json:"incidents"`
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request) {
	incidents := s.agg.Incidents()
	resp := incidentsResponse{}
	for _, inc := range incidents {
		resp.Incidents = append(resp.Incidents, incidentWire{Message: inc.Message, Timestamp: inc.Timestamp})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlertingTest(w http.ResponseWriter, r *http.Request) {
	s.router.Route(r.Context(), state.Incident{
		Subject:   "alerting-test",
		Message:   "test alert fired by operator",
		Kind:      state.IncidentOpened,
		Timestamp: time.Now(),
	})
	w.WriteHeader(http.StatusNoContent)
}
