package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/baseline"
	"github.com/crsarena/arena-eval/internal/evaluation"
	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
	"github.com/crsarena/arena-eval/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves catalogs, baselines and presentation-shaped reports.
type ReportHandler struct {
	evaluator *evaluation.Evaluator
	eval      *evaluation.Handler
}

// NewReportHandler creates a new report handler.
func NewReportHandler(e *evaluation.Evaluator, maxUploadBytes int64) *ReportHandler {
	return &ReportHandler{
		evaluator: e,
		eval:      evaluation.NewHandler(e, maxUploadBytes),
	}
}

// RegisterRoutes registers read-only catalog routes.
func (h *ReportHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/catalog", h.handleCatalog)
	mux.HandleFunc("GET /v1/baselines", h.handleBaselines)
}

// RegisterEvaluationRoutes registers routes that evaluate an uploaded run.
func (h *ReportHandler) RegisterEvaluationRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/evaluations/compare", h.handleCompare)
	mux.HandleFunc("POST /v1/evaluations/export", h.handleExport)
}

// AspectInfo describes one aspect in the catalog.
type AspectInfo struct {
	Name  annotation.Aspect `json:"name"`
	Label string            `json:"label"`
	Level annotation.Level  `json:"level"`
}

// CatalogResponse lists the fixed aspects, datasets and metrics.
type CatalogResponse struct {
	Aspects  []AspectInfo         `json:"aspects"`
	Datasets []annotation.Dataset `json:"datasets"`
	Metrics  []evaluation.Metric  `json:"metrics"`
}

func (h *ReportHandler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	resp := CatalogResponse{
		Datasets: annotation.Datasets(),
		Metrics:  []evaluation.Metric{evaluation.MetricPearson, evaluation.MetricSpearman},
	}
	for _, a := range annotation.AllAspects() {
		resp.Aspects = append(resp.Aspects, AspectInfo{Name: a, Label: a.Label(), Level: a.Level()})
	}
	evaluation.WriteJSON(w, http.StatusOK, resp)
}

// DatasetBaselines holds the baseline series of one dataset.
type DatasetBaselines struct {
	Dataset   string                     `json:"dataset"`
	Label     string                     `json:"label"`
	Default   string                     `json:"default,omitempty"`
	Baselines []string                   `json:"baselines"`
	Labels    []string                   `json:"labels"`
	Series    map[string]baseline.Series `json:"series"`
}

func (h *ReportHandler) handleBaselines(w http.ResponseWriter, r *http.Request) {
	doc := h.evaluator.Reference().Baselines

	datasets := annotation.Datasets()
	if name := r.URL.Query().Get("dataset"); name != "" {
		ds, ok := annotation.LookupDataset(name)
		if !ok {
			apperrors.WriteError(w, unknownDataset(name))
			return
		}
		datasets = []annotation.Dataset{ds}
	}

	out := make([]DatasetBaselines, 0, len(datasets))
	for _, ds := range datasets {
		def, _ := doc.DefaultName(ds.Name)
		out = append(out, DatasetBaselines{
			Dataset:   ds.Name,
			Label:     ds.Label,
			Default:   def,
			Baselines: doc.Names(ds.Name),
			Labels:    report.ChartLabels(),
			Series:    doc.AllSeries(ds.Name),
		})
	}
	evaluation.WriteJSON(w, http.StatusOK, map[string]any{"datasets": out})
}

func (h *ReportHandler) handleCompare(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	dataset := q.Get("dataset")
	if dataset == "" {
		dataset = annotation.DatasetNames()[0]
	}
	if !annotation.IsRecognized(dataset) {
		apperrors.WriteError(w, unknownDataset(dataset))
		return
	}

	metric := evaluation.MetricPearson
	if v := q.Get("metric"); v != "" {
		m, ok := evaluation.ParseMetric(v)
		if !ok {
			apperrors.WriteError(w, apperrors.ValidationError(fmt.Sprintf("unknown metric %q", v)).WithDetail("metric", v))
			return
		}
		metric = m
	}

	rep, err := h.eval.Evaluate(w, r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	comparison, err := report.Compare(dataset, metric, report.ReportSeries(rep), h.evaluator.Reference().Baselines, q.Get("baseline"))
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}
	evaluation.WriteJSON(w, http.StatusOK, map[string]any{
		"report_id":  rep.ID,
		"labels":     report.ChartLabels(),
		"comparison": comparison,
	})
}

func (h *ReportHandler) handleExport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.eval.Evaluate(w, r)
	if err != nil {
		apperrors.WriteError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, rep); err != nil {
		apperrors.WriteError(w, apperrors.InternalError("export report", err))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="arena-eval-%s.xlsx"`, rep.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func unknownDataset(name string) *apperrors.AppError {
	return apperrors.ValidationError(fmt.Sprintf("unknown dataset %q", name)).WithDetail("dataset", name)
}
