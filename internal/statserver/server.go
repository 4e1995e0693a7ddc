// Package statserver exposes a running Engine's live counters over HTTP,
// the way entitydb's main.go wires its status endpoint through
// gorilla/mux (apiRouter.HandleFunc("/status", ...)). It serves only
// read-only observability endpoints -- rendering a trace into rectangles
// for a viewer is explicitly out of scope for this engine (spec §1
// Non-goals: "host binding / rendering pipeline").
package statserver

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"statemap/logger"
)

// Stats is the subset of an Engine's counters worth exposing live. It is
// a plain snapshot rather than a reference to an *statemap.Engine so this
// package never needs to import the core engine and take on its
// lifecycle rules.
type Stats struct {
	RunID     string `json:"run_id"`
	RectCount int    `json:"rect_count"`
	Coalesced int64  `json:"coalesced"`
	Elisions  int64  `json:"elisions"`
	Events    int64  `json:"events"`
	Done      bool   `json:"done"`
	Err       string `json:"err,omitempty"`
}

// StatsFunc returns the current snapshot on demand, called once per
// request.
type StatsFunc func() Stats

// New builds a router serving /healthz and /stats. statsFn is called
// fresh on every request to /stats, so it should be cheap and safe for
// concurrent use with whatever is driving the ingest.
func New(statsFn StatsFunc) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}).Methods("GET")

	r.HandleFunc("/stats", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(statsFn()); err != nil {
			logger.Warn("statserver: encoding /stats response: %v", err)
		}
	}).Methods("GET")

	return r
}

// ListenAndServe starts an HTTP server on addr using the router from New.
// It blocks until the server stops or an error occurs.
func ListenAndServe(addr string, statsFn StatsFunc) error {
	logger.Info("statserver: listening on %s", addr)
	return http.ListenAndServe(addr, New(statsFn))
}
