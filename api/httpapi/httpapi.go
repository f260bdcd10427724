package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	wsadapter "loyaltykit/adapters/websocket"
	"loyaltykit/analytics"
	"loyaltykit/core"
	"loyaltykit/engine"
	"loyaltykit/ranking"
	"loyaltykit/realtime"
)

const maxEventBody = 1 << 20

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// Standings overrides where rankings read their input (e.g. a StandingsCache).
	// Defaults to the live service.
	Standings engine.StandingsSource
	// Analytics, if set, exposes aggregated metrics.
	Analytics *analytics.AggregationEngine
	// NotificationLimit caps how many queued notifications are returned (default 50).
	NotificationLimit int
}

// NewMux builds an http.Handler exposing the loyalty REST API and WebSocket stream.
// Routes:
//   - POST {prefix}/participants/{id}/{track}/events
//   - GET  {prefix}/participants/{id}/{track}
//   - GET  {prefix}/participants/{id}/profile
//   - PUT  {prefix}/participants/{id}/profile
//   - GET  {prefix}/participants/{id}/notifications?limit=20
//   - GET  {prefix}/rankings/{track}?by=country&key=FR&limit=10
//   - GET  {prefix}/analytics/{period}
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws?participant={id}
func NewMux(svc *engine.Service, hub *realtime.Hub, opts Options) http.Handler {
	if opts.Standings == nil {
		opts.Standings = svc
	}
	if opts.NotificationLimit <= 0 {
		opts.NotificationLimit = 50
	}
	mux := http.NewServeMux()
	route := func(method, path string, h http.HandlerFunc) {
		mux.HandleFunc(method+" "+withPrefix(opts.PathPrefix, path), h)
	}

	route(http.MethodGet, "/healthz", func(w http.ResponseWriter, r *http.Request) {
		healthCheck(w, r, svc)
	})
	if hub != nil {
		mux.Handle(http.MethodGet+" "+withPrefix(opts.PathPrefix, "/ws"), wsadapter.Handler(hub))
	}

	route(http.MethodPost, "/participants/{id}/{track}/events", func(w http.ResponseWriter, r *http.Request) {
		if id, ok := participant(w, r); ok {
			handleIngest(w, r, svc, id, r.PathValue("track"))
		}
	})
	route(http.MethodGet, "/participants/{id}/{track}", func(w http.ResponseWriter, r *http.Request) {
		if id, ok := participant(w, r); ok {
			handleStats(w, r, svc, id, r.PathValue("track"))
		}
	})
	route(http.MethodGet, "/participants/{id}/profile", func(w http.ResponseWriter, r *http.Request) {
		if id, ok := participant(w, r); ok {
			getProfile(w, r, svc, id)
		}
	})
	route(http.MethodPut, "/participants/{id}/profile", func(w http.ResponseWriter, r *http.Request) {
		if id, ok := participant(w, r); ok {
			putProfile(w, r, svc, id)
		}
	})
	route(http.MethodGet, "/participants/{id}/notifications", func(w http.ResponseWriter, r *http.Request) {
		if id, ok := participant(w, r); ok {
			handleNotifications(w, r, svc, id, opts.NotificationLimit)
		}
	})
	route(http.MethodGet, "/rankings/{track}", func(w http.ResponseWriter, r *http.Request) {
		handleRankings(w, r, opts.Standings, r.PathValue("track"))
	})

	if opts.Analytics != nil {
		route(http.MethodGet, "/analytics/{period}", func(w http.ResponseWriter, r *http.Request) {
			period, ok := analytics.ParsePeriod(r.PathValue("period"))
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid_period", "period must be daily, weekly or monthly", nil)
				return
			}
			writeJSON(w, opts.Analytics.GetAllAggregatedData(period))
		})
	}

	var mws []middleware
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		mws = append(mws, rateLimit(opts.RateLimitRPM, opts.RateLimitBurst))
	}
	if len(opts.APIKeys) > 0 {
		mws = append(mws, apiKeyAuth(opts.APIKeys))
	}
	if opts.AllowCORSOrigin != "" {
		mws = append(mws, cors(opts.AllowCORSOrigin))
	}
	return chain(mux, mws...)
}

// participant reads and normalizes the {id} path value, answering 400 when
// it is unusable.
func participant(w http.ResponseWriter, r *http.Request) (core.ParticipantID, bool) {
	id, err := core.NormalizeParticipantID(core.ParticipantID(r.PathValue("id")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_participant", err.Error(), nil)
		return "", false
	}
	return id, true
}

func handleIngest(w http.ResponseWriter, r *http.Request, svc *engine.Service, id core.ParticipantID, rawTrack string) {
	track, err := core.ParseTrack(rawTrack)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_track", err.Error(), nil)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", err.Error(), nil)
		return
	}
	ev, err := core.DecodeEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_event", err.Error(), nil)
		return
	}
	st, err := svc.Ingest(r.Context(), id, track, ev)
	if err != nil {
		if errors.Is(err, engine.ErrIngestFailed) {
			writeError(w, http.StatusInternalServerError, "ingest_failed", err.Error(), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}
	writeJSON(w, st)
}

func handleStats(w http.ResponseWriter, r *http.Request, svc *engine.Service, id core.ParticipantID, rawTrack string) {
	track, err := core.ParseTrack(rawTrack)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
		return
	}
	st, err := svc.Stats(r.Context(), id, track)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, st)
}

func getProfile(w http.ResponseWriter, r *http.Request, svc *engine.Service, id core.ParticipantID) {
	prof, err := svc.Profile(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, prof)
}

// putProfile stores the profile and answers with the normalized copy.
func putProfile(w http.ResponseWriter, r *http.Request, svc *engine.Service, id core.ParticipantID) {
	var prof core.Profile
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&prof); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_profile", err.Error(), nil)
		return
	}
	if err := svc.SetProfile(r.Context(), id, prof); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	getProfile(w, r, svc, id)
}

func handleNotifications(w http.ResponseWriter, r *http.Request, svc *engine.Service, id core.ParticipantID, maxLimit int) {
	limit, ok := queryLimit(r, maxLimit)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
		return
	}
	ns, err := svc.Notifications(r.Context(), id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
		return
	}
	writeJSON(w, map[string]any{"participant": id, "notifications": ns})
}

type rankingResponse struct {
	Track   core.Track        `json:"track"`
	By      ranking.Dimension `json:"by,omitempty"`
	Key     string            `json:"key,omitempty"`
	Entries []ranking.Entry   `json:"entries,omitempty"`
	Groups  []ranking.Group   `json:"groups,omitempty"`
}

func handleRankings(w http.ResponseWriter, r *http.Request, src engine.StandingsSource, rawTrack string) {
	track, err := core.ParseTrack(rawTrack)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error(), nil)
		return
	}
	limit, ok := queryLimit(r, 0)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
		return
	}
	ps, err := src.Standings(r.Context(), track)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "standings_unavailable", err.Error(), nil)
		return
	}

	q := r.URL.Query()
	resp := rankingResponse{Track: track}
	by := q.Get("by")
	if by == "" {
		resp.Entries = ranking.Top(ranking.Aggregate(ps), limit)
		writeJSON(w, resp)
		return
	}
	dim, ok := ranking.ParseDimension(by)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_dimension", "by must be country or city", nil)
		return
	}
	resp.By = dim
	groups := ranking.Partition(ps, dim)
	if key := strings.TrimSpace(q.Get("key")); key != "" {
		if dim == ranking.ByCountry {
			key = strings.ToUpper(key)
		}
		resp.Key = key
		g, _ := ranking.Lookup(groups, key)
		resp.Entries = ranking.Top(g.Entries, limit)
		if resp.Entries == nil {
			resp.Entries = []ranking.Entry{}
		}
		writeJSON(w, resp)
		return
	}
	for i := range groups {
		groups[i].Entries = ranking.Top(groups[i].Entries, limit)
	}
	resp.Groups = groups
	writeJSON(w, resp)
}

// Helpers

// healthCheck verifies the service is working properly
func healthCheck(w http.ResponseWriter, r *http.Request, svc *engine.Service) {
	ctx := r.Context()

	// A read of a participant that never exists exercises the storage path
	// without touching real data.
	_, err := svc.Stats(ctx, core.ParticipantID("healthcheck_probe"), core.TrackBuyer)

	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{
			"storage": "ok",
		},
	}

	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	}

	writeJSON(w, status)
}

// queryLimit reads ?limit=. Absent means def; values above a positive def are clamped.
func queryLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	if def > 0 && n > def {
		n = def
	}
	return n, true
}

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}
