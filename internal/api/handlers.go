package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/khanglvm/kimo/internal/errs"
	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/personalize"
	"github.com/khanglvm/kimo/internal/search"
	"github.com/khanglvm/kimo/internal/summarize"
)

type errorResponse struct {
	Error string `json:"error"`
}

type rankRequest struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

type rankResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

type trackRequest struct {
	Type       string            `json:"type"`
	URL        string            `json:"url,omitempty"`
	Query      string            `json:"query,omitempty"`
	DurationMS int64             `json:"duration_ms,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type summarizeRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
}

type healthResponse struct {
	Status    string   `json:"status"`
	Storage   bool     `json:"storage"`
	Providers []string `json:"providers"`
	Queued    int      `json:"queued"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"encoding failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return errs.Invalid("malformed request body: %v", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Storage:   s.c.Store.Enabled(),
		Providers: s.c.Aggregator.Providers(),
		Queued:    s.c.Tracker.QueueLen(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	resp, err := s.c.Search(r.Context(), query)
	if err != nil {
		s.log.Warn("search failed", logger.String("query", query), logger.Error(err))
		writeError(w, http.StatusBadGateway, "all search providers failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Results == nil {
		req.Results = []search.Result{}
	}
	writeJSON(w, http.StatusOK, rankResponse{
		Query:   req.Query,
		Results: s.c.Rank(r.Context(), req.Query, req.Results),
	})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	eventType, err := personalize.ParseEventType(req.Type)
	if err == nil {
		err = s.c.Tracker.TrackInteraction(eventType, personalize.InteractionData{
			URL:      req.URL,
			Query:    req.Query,
			Duration: time.Duration(req.DurationMS) * time.Millisecond,
			Metadata: req.Metadata,
		})
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errs.ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSummarize(w http.ResponseWriter, r *http.Request) {
	req, ok := s.summarizeRequest(w, r)
	if !ok {
		return
	}
	opts := summarize.Options{MaxLength: req.MaxLength}
	if req.Strategy != "" {
		opts.Strategy = summarize.ParseStrategy(req.Strategy)
	}
	writeJSON(w, http.StatusOK, s.c.Summaries.Summarize(r.Context(), req.Text, opts))
}

func (s *Server) handleSimplify(w http.ResponseWriter, r *http.Request) {
	req, ok := s.summarizeRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.c.Summaries.Simplify(r.Context(), req.Text))
}

func (s *Server) summarizeRequest(w http.ResponseWriter, r *http.Request) (summarizeRequest, bool) {
	var req summarizeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := s.c.Personalizer.Profile(r.Context(), s.c.Config.Ranking)
	if err != nil {
		if errors.Is(err, errs.ErrStorageUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "history storage unavailable")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
