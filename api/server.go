// Package api exposes the ingest and ask workflows over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/fabfab/tube-agent/chat"
	"github.com/fabfab/tube-agent/ingestion"
	"github.com/fabfab/tube-agent/transcript"
)

type Server struct {
	ingest  *ingestion.Service
	chat    *chat.Service
	logger  *log.Logger
	handler http.Handler
}

type errorResponse struct {
	Error string `json:"error"`
}

type ingestRequest struct {
	URL string `json:"url"`
}

type ingestResponse struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
}

type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
	K         int    `json:"k"`
}

type askResponse struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

type purgeRequest struct {
	VideoID string `json:"videoId"`
}

func New(ingestSvc *ingestion.Service, chatSvc *chat.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{ingest: ingestSvc, chat: chatSvc, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/ingest", s.handleIngest)
	mux.HandleFunc("/v1/ask", s.handleAsk)
	mux.HandleFunc("/v1/purge", s.handlePurge)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be JSON with a url field"})
		return
	}

	result, err := s.ingest.IngestVideo(r.Context(), req.URL)
	if err != nil {
		s.logger.Printf("ingest %s failed: %v", req.URL, err)
		status := http.StatusInternalServerError
		var trErr *transcript.TranscriptionError
		if errors.As(err, &trErr) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{Status: string(result.Status), Chunks: result.Chunks})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be JSON with a question field"})
		return
	}

	resp, err := s.chat.AskWithK(r.Context(), req.SessionID, req.Question, req.K)
	if err != nil {
		s.logger.Printf("ask failed: %v", err)
		status := http.StatusInternalServerError
		var genErr *chat.GenerationError
		if errors.As(err, &genErr) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: resp.Answer, Citations: resp.Citations})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req purgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.VideoID) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "body must be JSON with a videoId field"})
		return
	}

	if err := s.ingest.Purge(r.Context(), req.VideoID); err != nil {
		s.logger.Printf("purge %s failed: %v", req.VideoID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
