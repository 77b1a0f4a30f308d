package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/neurotrace/intake/pkg/common/logger"
	"github.com/neurotrace/intake/pkg/extraction"
	"github.com/neurotrace/intake/pkg/gateway/middleware"
	"github.com/neurotrace/intake/pkg/prediction"
	"github.com/neurotrace/intake/pkg/schema"
)

// multipartMemory is the in-memory threshold for parsed multipart bodies.
const multipartMemory = 32 << 20

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/extract", h.handleExtract).Methods(http.MethodPost)
	router.HandleFunc("/schema", h.handleSchema).Methods(http.MethodGet)
	router.HandleFunc("/validate", h.handleValidate).Methods(http.MethodPost)
	router.HandleFunc("/predict", h.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/extractions/{upload_id}", h.handleAudit).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleExtract(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody+1<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		logger.Log.WithError(err).Warn("invalid extraction upload")
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, errMissingFile.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := h.readPart(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	resp, err := h.service.Extract(r.Context(), extraction.Upload{
		Name:      header.Filename,
		MediaType: header.Header.Get("Content-Type"),
		Data:      data,
		Mode:      r.FormValue("mode"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Schema())
}

func (h *HTTPHandler) handleAudit(w http.ResponseWriter, r *http.Request) {
	audit, err := h.service.Audit(r.Context(), mux.Vars(r)["upload_id"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, audit)
}

func (h *HTTPHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	record := make(schema.Record, len(req.Features))
	for k, v := range req.Features {
		record[schema.Key(k)] = v
	}
	problems := schema.ValidateRecord(record, req.Complete)
	if problems == nil {
		problems = []string{}
	}
	missing := record.Missing()
	if missing == nil {
		missing = []schema.Key{}
	}

	writeJSON(w, http.StatusOK, ValidateResponse{
		Valid:         len(problems) == 0,
		Errors:        problems,
		MissingFields: missing,
	})
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody+1<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	var sub prediction.Submission
	if raw := r.FormValue("features"); raw != "" {
		var features map[string]float64
		if err := json.Unmarshal([]byte(raw), &features); err != nil {
			http.Error(w, "features must be a JSON object of numbers", http.StatusBadRequest)
			return
		}
		sub.Features = make(schema.Record, len(features))
		for k, v := range features {
			sub.Features[schema.Key(k)] = v
		}
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		data, err := h.readPart(file)
		if err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		sub.Image = &prediction.Image{Name: header.Filename, Data: data}
	} else if !errors.Is(err, http.ErrMissingFile) {
		http.Error(w, "invalid image part", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Predict(r.Context(), middleware.RequestID(r.Context()), sub)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) readPart(file multipart.File) ([]byte, error) {
	limit := h.maxBody
	if limit <= 0 {
		return io.ReadAll(file)
	}
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("file exceeds %d bytes", limit)
	}
	return data, nil
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var apiErr *prediction.APIError
	switch {
	case IsValidationError(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &apiErr):
		http.Error(w, apiErr.Detail, http.StatusBadRequest)
	case errors.Is(err, prediction.ErrServer), errors.Is(err, prediction.ErrNetwork), errors.Is(err, prediction.ErrInvalidResponse):
		logger.Log.WithError(err).Error("prediction service unavailable")
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		logger.Log.WithError(err).Error("intake request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.WithError(err).Warn("failed to encode response")
	}
}
