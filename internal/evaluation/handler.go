package evaluation

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
)

// UploadField is the multipart form field carrying the run document.
const UploadField = "file"

// DefaultMaxUploadBytes caps run uploads when the handler is given no limit.
const DefaultMaxUploadBytes = 32 << 20

// NotJSONMessage rejects uploads that are not JSON documents.
const NotJSONMessage = "Please upload a valid JSON file."

// Handler provides HTTP handlers for run evaluation.
type Handler struct {
	evaluator *Evaluator
	maxBytes  int64
}

// NewHandler creates a new evaluation handler. maxBytes <= 0 selects
// DefaultMaxUploadBytes.
func NewHandler(e *Evaluator, maxBytes int64) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Handler{evaluator: e, maxBytes: maxBytes}
}

// RegisterRoutes registers evaluation routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/evaluations", h.handleEvaluate)
	mux.HandleFunc("GET /v1/evaluations/recent", h.handleRecent)
}

// Evaluate reads the uploaded run from r and evaluates it.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) (*Report, error) {
	run, err := ReadRun(w, r, h.maxBytes)
	if err != nil {
		return nil, err
	}
	return h.evaluator.Evaluate(r.Context(), run)
}

func (h *Handler) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	report, err := h.Evaluate(w, r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			apperrors.WriteError(w, apperrors.ValidationError("limit must be a non-negative integer").WithDetail("limit", v))
			return
		}
		limit = n
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"evaluations": h.evaluator.Recent(limit),
	})
}

// ReadRun returns the run document from a raw JSON body or from the
// multipart field UploadField. Bodies over maxBytes are rejected.
func ReadRun(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		return readMultipart(r, maxBytes)
	case "", "application/json":
		return readBody(r.Body, maxBytes)
	default:
		return nil, apperrors.InvalidRequestError(NotJSONMessage)
	}
}

func readMultipart(r *http.Request, maxBytes int64) ([]byte, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		if tooLarge(err) {
			return nil, apperrors.PayloadTooLargeError(maxBytes)
		}
		return nil, apperrors.InvalidRequestError("invalid multipart form")
	}

	file, header, err := r.FormFile(UploadField)
	if err != nil {
		return nil, apperrors.InvalidRequestError("missing form field \"" + UploadField + "\"")
	}
	defer file.Close()

	if !isJSONUpload(header.Filename, header.Header.Get("Content-Type")) {
		return nil, apperrors.InvalidRequestError(NotJSONMessage)
	}
	return readBody(file, maxBytes)
}

func readBody(body io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		if tooLarge(err) {
			return nil, apperrors.PayloadTooLargeError(maxBytes)
		}
		return nil, apperrors.InvalidRequestError("failed to read request body")
	}
	if len(data) == 0 {
		return nil, apperrors.InvalidRequestError("request body is empty")
	}
	return data, nil
}

func isJSONUpload(filename, contentType string) bool {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".json")
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// WriteJSON writes v as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are sent; an encoding error cannot be reported.
	_ = json.NewEncoder(w).Encode(v)
}
