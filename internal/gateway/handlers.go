// Package gateway is the HTTP surface a console UI talks to: result
// snapshots, explicit refresh, mutations, resolved audio URLs, rendered
// scorecards, and a WebSocket watch endpoint for status pushes.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/voxproof/eval-console/internal/audiostore"
	"github.com/voxproof/eval-console/internal/evalapi"
	"github.com/voxproof/eval-console/internal/observability"
	"github.com/voxproof/eval-console/internal/result"
	"github.com/voxproof/eval-console/internal/scorecard"
	"github.com/voxproof/eval-console/internal/tracker"
)

// Gateway wires the tracker, audio resolver and classifier behind HTTP.
type Gateway struct {
	tracker  *tracker.Tracker
	resolver *audiostore.Resolver
	log      zerolog.Logger
}

// New creates a gateway.
func New(tr *tracker.Tracker, resolver *audiostore.Resolver) *Gateway {
	return &Gateway{
		tracker:  tr,
		resolver: resolver,
		log:      observability.GetLogger().With().Str("component", "gateway").Logger(),
	}
}

// Register attaches all gateway routes to the mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /results/{id}", g.handleGetResult)
	mux.HandleFunc("POST /results/{id}/refresh", g.handleRefresh)
	mux.HandleFunc("POST /results/{id}/reevaluate", g.handleReEvaluate)
	mux.HandleFunc("POST /results/delete", g.handleDelete)
	mux.HandleFunc("GET /results/{id}/audio", g.handleAudio)
	mux.HandleFunc("GET /results/{id}/scorecard", g.handleScorecard)
	mux.HandleFunc("GET /results/{id}/watch", g.handleWatch)
}

// handleGetResult returns the tracker's current view of a result, fetching
// it on a cache miss. A one-shot refresh covers unobserved ids; watchers on
// the WebSocket endpoint get continuous polling instead.
func (g *Gateway) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing result id")
		return
	}

	view := g.tracker.Snapshot(id)
	if view.Result == nil || view.Stale {
		g.tracker.Refresh(id)
	}
	writeJSON(w, http.StatusOK, view)
}

// handleRefresh triggers an immediate fetch, bypassing the poll schedule.
func (g *Gateway) handleRefresh(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	g.tracker.Refresh(id)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

// handleReEvaluate restarts evaluation for an existing result.
func (g *Gateway) handleReEvaluate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := g.tracker.ReEvaluate(r.Context(), id); err != nil {
		g.log.Error().Err(err).Str("result_id", id).Msg("re-evaluate failed")
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, g.tracker.Snapshot(id))
}

type deleteRequest struct {
	IDs []string `json:"ids"`
}

// handleDelete bulk-deletes results and invalidates their cache entries.
func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid delete request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "no result ids given")
		return
	}

	if err := g.tracker.Delete(r.Context(), req.IDs); err != nil {
		g.log.Error().Err(err).Int("count", len(req.IDs)).Msg("bulk delete failed")
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(req.IDs)})
}

// handleAudio resolves the playable recording URL for a result.
func (g *Gateway) handleAudio(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	view := g.tracker.Snapshot(id)
	if view.Result == nil {
		writeError(w, http.StatusNotFound, "result not loaded")
		return
	}

	u, err := g.resolver.PlaybackURL(r.Context(), view.Result)
	if err != nil {
		if errors.Is(err, audiostore.ErrNoAudio) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "audio not available",
			})
			return
		}
		g.log.Error().Err(err).Str("result_id", id).Msg("audio resolution failed")
		writeError(w, http.StatusBadGateway, "failed to resolve recording")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

// scorecardResponse is the rendered metric panel for one result.
type scorecardResponse struct {
	ResultID string               `json:"result_id"`
	Status   result.Status        `json:"status"`
	Pending  bool                 `json:"pending"`
	Groups   scorecard.Grouped    `json:"groups"`
	Flat     []scorecard.Rendered `json:"flat"`
}

// handleScorecard returns classified, grouped, rendered metrics. A result
// still evaluating with no scores yet reports pending=true so the UI shows a
// loading indicator instead of an empty panel.
func (g *Gateway) handleScorecard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	view := g.tracker.Snapshot(id)
	if view.Result == nil {
		writeError(w, http.StatusNotFound, "result not loaded")
		return
	}

	res := view.Result
	resp := scorecardResponse{
		ResultID: id,
		Status:   res.Status,
		Pending:  !res.Status.Terminal() && res.MetricScores.Len() == 0,
		Groups:   scorecard.Group(res.MetricScores),
		Flat:     scorecard.Flat(res.MetricScores),
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAPIError maps backend errors onto console responses: backend 404s
// stay 404, everything else is a bad gateway.
func writeAPIError(w http.ResponseWriter, err error) {
	if evalapi.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "result not found")
		return
	}
	msg := err.Error()
	if strings.Contains(msg, "\n") {
		msg = strings.SplitN(msg, "\n", 2)[0]
	}
	writeError(w, http.StatusBadGateway, msg)
}
