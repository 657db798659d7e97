package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/skyrag-assistant/server/internal/agent/model"
	errx "github.com/skyrag-assistant/server/internal/core/error"
	"github.com/skyrag-assistant/server/internal/ingestion"
	logx "github.com/skyrag-assistant/server/pkg/logger"
)

type messageView struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var in model.QueryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	in.Query = strings.TrimSpace(in.Query)
	if in.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "query is required"})
		return
	}
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}

	writeJSON(w, http.StatusOK, s.assistant.Reply(r.Context(), in.SessionID, in.Query))
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	msgs, err := s.assistant.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]messageView, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageView{Role: string(m.Role), Content: m.Content})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeleteMessages(w http.ResponseWriter, r *http.Request) {
	if err := s.assistant.ClearHistory(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUploadDocuments indexes every PDF sent in the multipart "files" field.
func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no files uploaded"})
		return
	}
	// The whole batch is rejected before anything is indexed.
	for _, fh := range files {
		if name := filepath.Base(fh.Filename); !strings.EqualFold(filepath.Ext(name), ".pdf") {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("%s is not a PDF", name)})
			return
		}
	}

	dir, err := os.MkdirTemp("", "uploads-*")
	if err != nil {
		writeError(w, err)
		return
	}
	defer os.RemoveAll(dir)

	results := make([]*ingestion.IndexResult, 0, len(files))
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		path := filepath.Join(dir, name)
		if err := saveUpload(fh, path); err != nil {
			writeError(w, err)
			return
		}

		res, err := s.indexer.IndexPDF(r.Context(), path)
		if err != nil {
			logx.Error().Err(err).Str("file", name).Msg("Indexing failed")
			writeError(w, err)
			return
		}
		if s.metrics != nil {
			s.metrics.IndexedChunks.Add(float64(res.Chunks))
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleResetDocuments(w http.ResponseWriter, r *http.Request) {
	n, err := s.resetter.Clear(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	logx.Info().Int64("deleted", n).Msg("Vector index cleared")
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: r.Method + " not allowed on " + r.URL.Path})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errx.StatusOf(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Warn().Err(err).Msg("Failed to write response")
	}
}
