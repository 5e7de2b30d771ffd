package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/nao1215/trugle/internal/crawler"
	"github.com/nao1215/trugle/internal/database"
	"github.com/nao1215/trugle/internal/query"
	"github.com/nao1215/trugle/internal/service"
	"github.com/nao1215/trugle/internal/truth"
)

// maxCrawlRequestBody caps the size of a POST /api/crawl body.
const maxCrawlRequestBody = 1 << 16

type searchResponse struct {
	Query      string         `json:"query"`
	Results    []query.Result `json:"results"`
	TruthScore int            `json:"truthScore"`
}

// handleSearch never fails on a query string. An unusable limit is logged
// and treated as 0, which returns every match.
func (srv *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			srv.logger.Warn("ignoring invalid search limit", "limit", s)
		} else {
			limit = n
		}
	}

	resp := searchResponse{
		Query:      q,
		Results:    []query.Result{},
		TruthScore: truth.MinScore,
	}
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Results = srv.searcher.SearchN(q, limit)

	score, err := srv.scorer.Score(r.Context(), q)
	if err != nil {
		srv.logger.Warn("failed to score query", "query", q, "error", err)
		score = truth.MinScore
	}
	resp.TruthScore = score

	writeJSON(w, http.StatusOK, resp)
}

type crawlRequest struct {
	Seed     string `json:"seed"`
	MaxPages *int   `json:"maxPages"`
}

type crawlResponse struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

func (srv *Server) handleCrawl(w http.ResponseWriter, r *http.Request) {
	if srv.crawls == nil {
		writeError(w, http.StatusServiceUnavailable, "crawling is disabled")
		return
	}

	var req crawlRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCrawlRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := crawler.Canonicalize(req.Seed); err != nil {
		writeError(w, http.StatusBadRequest, "invalid seed: "+err.Error())
		return
	}
	maxPages := srv.defaultMaxPages
	if req.MaxPages != nil {
		maxPages = *req.MaxPages
	}

	runID, err := srv.crawls.StartCrawl(req.Seed, maxPages)
	switch {
	case errors.Is(err, service.ErrCrawlInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, service.ErrInvalidMaxPages):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		srv.logger.Error("failed to start crawl", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to start crawl")
		return
	}

	srv.logger.Info("crawl requested", "run_id", runID, "seed", req.Seed, "max_pages", maxPages)
	writeJSON(w, http.StatusAccepted, crawlResponse{RunID: runID, Status: "started"})
}

func (srv *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if srv.crawls == nil {
		writeJSON(w, http.StatusOK, service.Status{})
		return
	}
	writeJSON(w, http.StatusOK, srv.crawls.Status())
}

type articlesResponse struct {
	Status   database.Status     `json:"status"`
	Articles []*database.Article `json:"articles"`
}

func (srv *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	if srv.articles == nil {
		writeError(w, http.StatusNotFound, "article tracking is disabled")
		return
	}

	status := database.StatusProcessed
	if s := r.URL.Query().Get("status"); s != "" {
		st, err := database.ParseStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = st
	}

	articles, err := srv.articles.ListByStatus(r.Context(), status)
	if err != nil {
		srv.logger.Error("failed to list articles", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list articles")
		return
	}
	writeJSON(w, http.StatusOK, articlesResponse{Status: status, Articles: articles})
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}
