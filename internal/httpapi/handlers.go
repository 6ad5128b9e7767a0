package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/language"

	"github.com/oMygpt/readitdeep/internal/jobs"
	"github.com/oMygpt/readitdeep/internal/pipeline"
	"github.com/oMygpt/readitdeep/internal/store"
	"github.com/oMygpt/readitdeep/internal/translate"
	"github.com/oMygpt/readitdeep/pkg/log"
)

// ownerID identifies the caller. Authentication happens upstream; the proxy
// forwards the resolved identity in a header.
func ownerID(r *http.Request) string {
	if id := r.Header.Get("X-Owner-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1024)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read upload")
		return
	}

	jobID, err := s.orchestrator.Start(r.Context(), pipeline.Upload{
		Filename: filepath.Base(header.Filename),
		Data:     data,
		OwnerID:  ownerID(r),
	})
	if err != nil {
		if errors.Is(err, pipeline.ErrUnsupportedFileType) {
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	log.Info("Accepted upload %s as job %s", header.Filename, jobID)
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadOwnedJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleRetrigger(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	err := s.orchestrator.Retrigger(r.Context(), jobID, ownerID(r))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, pipeline.ErrNotOwner):
		writeError(w, http.StatusForbidden, "job belongs to another owner")
	case errors.Is(err, pipeline.ErrNotDocument):
		writeError(w, http.StatusConflict, "only document jobs can be retriggered")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	}
}

type translateRequest struct {
	TargetLanguage string `json:"target_language"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "id")

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	target := s.defaultLanguage
	if req.TargetLanguage != "" {
		tag, err := language.Parse(req.TargetLanguage)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid target_language")
			return
		}
		target = tag
	}

	jobID, err := s.translator.Start(r.Context(), documentID, ownerID(r), target)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, translate.ErrNotOwner):
		writeError(w, http.StatusForbidden, "document belongs to another owner")
	case errors.Is(err, translate.ErrDocumentNotReady):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	owner := ownerID(r)
	owned := make([]*jobs.Record, 0, len(records))
	for _, rec := range records {
		if rec.OwnerID == owner {
			owned = append(owned, rec)
		}
	}
	writeJSON(w, http.StatusOK, owned)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (s *Server) assetDir() string {
	return filepath.Join(s.dataDir, "assets")
}

// loadOwnedJob resolves the {id} route param and enforces ownership.
func (s *Server) loadOwnedJob(w http.ResponseWriter, r *http.Request) (*jobs.Record, bool) {
	jobID := chi.URLParam(r, "id")
	rec, err := s.store.Get(r.Context(), jobID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if rec.OwnerID != ownerID(r) {
		writeError(w, http.StatusForbidden, "job belongs to another owner")
		return nil, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
