package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/crsarena/arena-eval/internal/annotation"
	"github.com/crsarena/arena-eval/internal/bus"
	"github.com/crsarena/arena-eval/internal/cache"
	"github.com/crsarena/arena-eval/internal/metrics"
	"github.com/crsarena/arena-eval/internal/observability"
	apperrors "github.com/crsarena/arena-eval/internal/pkg/errors"
	"github.com/crsarena/arena-eval/internal/pkg/hash"
	"github.com/crsarena/arena-eval/internal/pkg/logger"
	"github.com/crsarena/arena-eval/internal/pkg/security"
)

// EventSource is the source recorded on published events.
const EventSource = "evaluator"

// Recorder receives evaluation metrics.
type Recorder interface {
	RecordEvaluation(outcome string, d time.Duration)
	RecordFailure(code string)
	RecordMatched(level string, n int)
}

// CompletedPayload is published on bus.TopicEvaluationCompleted.
type CompletedPayload struct {
	ReportID  string     `json:"report_id"`
	RunDigest string     `json:"run_digest"`
	Cached    bool       `json:"cached"`
	Summary   RunSummary `json:"summary"`
}

// FailedPayload is published on bus.TopicEvaluationFailed.
type FailedPayload struct {
	RunDigest string `json:"run_digest"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

// Deps are the optional collaborators of an Evaluator. Nil fields are
// replaced by no-op implementations.
type Deps struct {
	Cache   cache.Cache
	Bus     bus.Bus
	Metrics Recorder
	Recent  *observability.Service
	Log     *logger.Logger
	Tracer  trace.Tracer
}

// Evaluator scores run documents against a shared Reference.
type Evaluator struct {
	ref     *Reference
	cache   cache.Cache
	bus     bus.Bus
	metrics Recorder
	recent  *observability.Service
	log     *logger.Logger
	tracer  trace.Tracer
}

// NewEvaluator creates an evaluator over ref.
func NewEvaluator(ref *Reference, deps Deps) (*Evaluator, error) {
	if ref == nil || ref.Gold == nil {
		return nil, errors.New("evaluator requires a loaded reference")
	}

	e := &Evaluator{
		ref:     ref,
		cache:   deps.Cache,
		bus:     deps.Bus,
		metrics: deps.Metrics,
		recent:  deps.Recent,
		log:     deps.Log,
		tracer:  deps.Tracer,
	}
	if e.cache == nil {
		e.cache = cache.Nop{}
	}
	if e.metrics == nil {
		e.metrics = nopRecorder{}
	}
	if e.log == nil {
		e.log = logger.Discard()
	}
	if e.recent == nil {
		e.recent = observability.NewService(e.log, 0)
	}
	if e.tracer == nil {
		e.tracer = observability.Tracer()
	}
	return e, nil
}

// Reference returns the evaluation context.
func (e *Evaluator) Reference() *Reference {
	return e.ref
}

// Recent returns up to limit recent evaluation outcomes, newest first.
func (e *Evaluator) Recent(limit int) []observability.EvaluationLogEntry {
	return e.recent.Recent(limit)
}

// Evaluate decodes, parses and scores a run document. Reports are cached by
// the digest of the reference and the run content.
func (e *Evaluator) Evaluate(ctx context.Context, run []byte) (*Report, error) {
	start := time.Now()
	runDigest := hash.SHA256(run)

	ctx, span := e.tracer.Start(ctx, "evaluation.Evaluate",
		trace.WithAttributes(
			attribute.String("run.digest", runDigest),
			attribute.Int("run.bytes", len(run)),
		))
	defer span.End()

	log := e.log.WithContext(ctx)
	key := hash.ReportKey(e.ref.Digest, runDigest)

	if report, ok := e.lookup(ctx, key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		e.finish(ctx, report, true, start)
		log.Debug("Evaluation served from cache", "report_id", report.ID, "run_digest", runDigest)
		return report, nil
	}

	report, err := e.evaluate(ctx, run)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.fail(ctx, runDigest, err, start)
		return nil, err
	}

	report.ID = uuid.NewString()
	report.RunDigest = runDigest
	report.ReferenceDigest = e.ref.Digest
	report.CreatedAt = time.Now().UTC()

	e.store(ctx, key, report)
	e.finish(ctx, report, false, start)

	log.WithRun(report.ID).Info("Evaluation completed",
		"run_digest", runDigest,
		"dialogues", report.Summary.Dialogues,
		"turns", report.Summary.Turns,
		"matched_turns", report.Summary.MatchedTurns,
		"matched_dialogues", report.Summary.MatchedDialogues,
		"duration", time.Since(start),
	)
	return report, nil
}

func (e *Evaluator) evaluate(ctx context.Context, run []byte) (*Report, error) {
	_, parseSpan := e.tracer.Start(ctx, "evaluation.Parse")
	records, err := annotation.DecodeRun(run)
	if err != nil {
		parseSpan.End()
		return nil, err
	}
	preds, err := annotation.ParseRun(records)
	parseSpan.End()
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	_, scoreSpan := e.tracer.Start(ctx, "evaluation.Score")
	scores, err := Score(e.ref.Gold, preds)
	scoreSpan.End()
	if err != nil {
		return nil, err
	}

	return &Report{
		Summary:  scores.Summary,
		Turn:     scores.Turn,
		Dialogue: scores.Dialogue,
		Systems:  scores.Systems,
	}, nil
}

func (e *Evaluator) lookup(ctx context.Context, key string) (*Report, bool) {
	data, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.log.WithContext(ctx).Warn("Report cache lookup failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		e.log.WithContext(ctx).Warn("Discarding undecodable cached report", "key", key, "error", err)
		return nil, false
	}
	return &report, true
}

func (e *Evaluator) store(ctx context.Context, key string, report *Report) {
	data, err := json.Marshal(report)
	if err != nil {
		e.log.WithContext(ctx).Warn("Failed to encode report for cache", "report_id", report.ID, "error", err)
		return
	}
	if err := e.cache.Set(ctx, key, data); err != nil {
		e.log.WithContext(ctx).Warn("Failed to cache report", "report_id", report.ID, "error", err)
	}
}

func (e *Evaluator) finish(ctx context.Context, report *Report, cached bool, start time.Time) {
	elapsed := time.Since(start)

	outcome := metrics.OutcomeCompleted
	if cached {
		outcome = metrics.OutcomeCached
	}
	e.metrics.RecordEvaluation(outcome, elapsed)
	if !cached {
		e.metrics.RecordMatched(string(annotation.LevelTurn), report.Summary.MatchedTurns)
		e.metrics.RecordMatched(string(annotation.LevelDialogue), report.Summary.MatchedDialogues)
	}

	e.recent.LogEvaluation(observability.EvaluationLogEntry{
		ReportID:         report.ID,
		RunDigest:        report.RunDigest,
		Outcome:          outcome,
		Dialogues:        report.Summary.Dialogues,
		MatchedTurns:     report.Summary.MatchedTurns,
		MatchedDialogues: report.Summary.MatchedDialogues,
		LatencyMs:        elapsed.Milliseconds(),
	})

	e.publish(ctx, bus.TopicEvaluationCompleted, CompletedPayload{
		ReportID:  report.ID,
		RunDigest: report.RunDigest,
		Cached:    cached,
		Summary:   report.Summary,
	})
}

func (e *Evaluator) fail(ctx context.Context, runDigest string, err error, start time.Time) {
	elapsed := time.Since(start)
	code := apperrors.CodeOf(err)

	e.metrics.RecordEvaluation(metrics.OutcomeFailed, elapsed)
	e.metrics.RecordFailure(code)

	e.recent.LogEvaluation(observability.EvaluationLogEntry{
		RunDigest: runDigest,
		Outcome:   metrics.OutcomeFailed,
		ErrorCode: code,
		LatencyMs: elapsed.Milliseconds(),
	})

	// Messages can quote conv_ids from the upload.
	e.log.WithContext(ctx).Warn("Evaluation failed",
		"run_digest", runDigest,
		"code", code,
		"error", security.SanitizeForLog(err.Error()),
	)

	e.publish(ctx, bus.TopicEvaluationFailed, FailedPayload{
		RunDigest: runDigest,
		Code:      code,
		Message:   err.Error(),
	})
}

func (e *Evaluator) publish(ctx context.Context, topic string, payload any) {
	if e.bus == nil {
		return
	}
	event := bus.NewEvent(topic, EventSource, payload)
	if reqID, ok := logger.RequestIDFromContext(ctx); ok {
		event.CorrelationID = reqID
	}
	if err := e.bus.Publish(ctx, topic, event); err != nil {
		e.log.WithContext(ctx).Warn("Failed to publish evaluation event", "topic", topic, "error", err)
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordEvaluation(string, time.Duration) {}
func (nopRecorder) RecordFailure(string)                   {}
func (nopRecorder) RecordMatched(string, int)              {}
