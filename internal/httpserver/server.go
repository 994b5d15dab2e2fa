package httpserver

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/manullamas/adx-agent/internal/agent"
	"github.com/manullamas/adx-agent/internal/config"
	"github.com/manullamas/adx-agent/internal/metrics"
)

// Dependencies holds everything the ops server reads from.
type Dependencies struct {
	Engine *agent.Engine
	Config *config.Config
	Logger *zap.Logger
}

// Server exposes the read-only operational surface of a running agent:
// health, Prometheus metrics, and live game state snapshots. It never
// mutates the engine.
type Server struct {
	engine *agent.Engine
	logger *zap.Logger
}

// NewServer constructs the handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	s := &Server{
		engine: deps.Engine,
		logger: deps.Logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	if deps.Config.Metrics.Enabled {
		mux.Handle(deps.Config.Metrics.Path, metrics.Handler())
	}
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/campaigns", s.handleCampaigns)
	mux.HandleFunc("/campaigns/", s.handleCampaignByID)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleStatus reports the engine snapshot without the per-campaign
// detail.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.engine.Snapshot()
	s.jsonResponse(w, map[string]any{
		"run_id":          st.RunID,
		"day":             st.Day,
		"quality":         st.Quality,
		"ucs_bid":         st.UCSBid,
		"history_records": st.HistoryLen,
		"campaigns":       len(st.Campaigns),
		"performance":     st.Performance,
	})
}

func (s *Server) handleCampaigns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	st := s.engine.Snapshot()

	// ?finalized=true narrows to completed campaigns.
	if v := r.URL.Query().Get("finalized"); v != "" {
		want, err := strconv.ParseBool(v)
		if err != nil {
			s.errorResponse(w, "invalid finalized filter", http.StatusBadRequest)
			return
		}
		filtered := st.Campaigns[:0:0]
		for _, c := range st.Campaigns {
			if c.Finalized == want {
				filtered = append(filtered, c)
			}
		}
		st.Campaigns = filtered
	}

	s.jsonResponse(w, st.Campaigns)
}

func (s *Server) handleCampaignByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/campaigns/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		s.errorResponse(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	for _, c := range s.engine.Snapshot().Campaigns {
		if c.ID == id {
			s.jsonResponse(w, c)
			return
		}
	}
	http.NotFound(w, r)
}

func (s *Server) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
