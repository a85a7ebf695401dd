package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/clearcite/integrity-engine/internal/analysis/ingest"
	"github.com/clearcite/integrity-engine/internal/analysis/recommend"
	"github.com/clearcite/integrity-engine/internal/analysis/score"
	"github.com/clearcite/integrity-engine/internal/analysis/similarity"
	"github.com/clearcite/integrity-engine/internal/corpus"
	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/jobs/runtime"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// OutcomeSink receives terminal analysis outcomes so the submission lifecycle
// can branch on them. The pipeline never touches submission state directly.
type OutcomeSink interface {
	AnalysisCompleted(ctx context.Context, result *domain.AnalysisResult) error
	AnalysisFailed(ctx context.Context, submissionID uuid.UUID, revision int, kind string) error
}

// Pipeline is the document_analysis job handler: extract, match, score,
// recommend, persist. Stage boundaries double as the job's progress updates,
// and the matching stage start is the last point where cancellation can land.
type Pipeline struct {
	documents   repos.DocumentRepo
	results     repos.AnalysisResultRepo
	index       *corpus.Index
	ingestor    *ingest.Ingestor
	engine      *similarity.Engine
	scorer      *score.Scorer
	recommender *recommend.Generator
	sink        OutcomeSink
	log         *logger.Logger
}

func NewPipeline(
	documents repos.DocumentRepo,
	results repos.AnalysisResultRepo,
	index *corpus.Index,
	ingestor *ingest.Ingestor,
	engine *similarity.Engine,
	scorer *score.Scorer,
	recommender *recommend.Generator,
	sink OutcomeSink,
	baseLog *logger.Logger,
) *Pipeline {
	return &Pipeline{
		documents:   documents,
		results:     results,
		index:       index,
		ingestor:    ingestor,
		engine:      engine,
		scorer:      scorer,
		recommender: recommender,
		sink:        sink,
		log:         baseLog.With("component", "AnalysisPipeline"),
	}
}

func (p *Pipeline) JobType() string { return domain.JobTypeDocumentAnalysis }

// Run executes one claimed analysis job to a terminal outcome. It always
// settles the job itself through jc; the returned error is nil unless the
// worker's safety net should take over.
func (p *Pipeline) Run(jc *runtime.Context) error {
	job := jc.Job

	if !jc.Progress(domain.JobExtracting, 15) {
		return nil
	}

	doc, err := p.documents.GetByRevision(jc.Ctx, nil, job.SubmissionID, job.Revision)
	if err != nil {
		return p.fail(jc, err)
	}
	if doc == nil {
		return p.fail(jc, fmt.Errorf("document revision %d not found for submission %s", job.Revision, job.SubmissionID))
	}

	norm, err := p.normalized(doc)
	if err != nil {
		return p.fail(jc, err)
	}
	if err := jc.Ctx.Err(); err != nil {
		return p.fail(jc, err)
	}

	// Last cancel point: a cancellation that lands after this update is
	// rejected by the status guard and the job runs to completion.
	if !jc.Progress(domain.JobMatching, 45) {
		p.log.Info("Job canceled before matching", "job_id", job.ID)
		return nil
	}

	snap, err := p.index.Snapshot()
	if err != nil {
		return p.fail(jc, err)
	}
	spans, err := p.engine.Match(norm, snap)
	if err != nil {
		return p.fail(jc, err)
	}
	if err := jc.Ctx.Err(); err != nil {
		return p.fail(jc, err)
	}

	if !jc.Progress(domain.JobScoring, 80) {
		return nil
	}

	overall, flagged, kept := p.scorer.Score(spans, len(norm.Tokens))
	recs := p.recommender.Recommend(jc.Ctx, kept, snap)

	result, err := p.persist(jc.Ctx, job, doc, overall, flagged, kept, recs)
	if err != nil {
		return p.fail(jc, err)
	}

	if err := p.sink.AnalysisCompleted(p.sinkCtx(jc), result); err != nil {
		p.log.Error("Analysis outcome delivery failed", "job_id", job.ID, "error", err)
	}
	jc.Succeed(result.ID)
	p.log.Info("Analysis complete",
		"job_id", job.ID, "submission_id", job.SubmissionID, "revision", job.Revision,
		"overall", overall, "flagged", flagged, "spans", len(kept))
	return nil
}

// normalized rebuilds the token stream from the text stored at upload time;
// the raw bytes are only re-extracted when that text is missing.
func (p *Pipeline) normalized(doc *domain.Document) (*ingest.NormalizedText, error) {
	if doc.NormalizedText != "" {
		return ingest.Normalize(doc.NormalizedText), nil
	}
	return p.ingestor.Ingest(doc.Content, string(doc.Format))
}

func (p *Pipeline) persist(ctx context.Context, job *domain.AnalysisJob, doc *domain.Document, overall float64, flagged bool, spans []domain.MatchSpan, recs []domain.Recommendation) (*domain.AnalysisResult, error) {
	spanJSON, err := json.Marshal(spans)
	if err != nil {
		return nil, err
	}
	recJSON, err := json.Marshal(recs)
	if err != nil {
		return nil, err
	}

	result := &domain.AnalysisResult{
		ID:              uuid.New(),
		SubmissionID:    job.SubmissionID,
		DocumentID:      doc.ID,
		Revision:        job.Revision,
		Overall:         overall,
		Flagged:         flagged,
		Spans:           datatypes.JSON(spanJSON),
		Recommendations: datatypes.JSON(recJSON),
		ComputedAt:      time.Now(),
	}
	if cerr := p.results.Create(ctx, nil, result); cerr != nil {
		// A reclaimed stale job may find the row already written by its
		// first incarnation. Reuse it; results are append-only per revision.
		existing, gerr := p.results.GetByRevision(ctx, nil, job.SubmissionID, job.Revision)
		if gerr != nil || existing == nil {
			return nil, cerr
		}
		return existing, nil
	}
	return result, nil
}

// fail settles the job and notifies the lifecycle. Deadline expiry is
// surfaced as the timeout kind so callers know a retry may succeed.
func (p *Pipeline) fail(jc *runtime.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", domain.ErrAnalysisTimeout, err)
	}
	kind := domain.ErrorKind(err)
	jc.Fail(kind, err)
	if serr := p.sink.AnalysisFailed(p.sinkCtx(jc), jc.Job.SubmissionID, jc.Job.Revision, kind); serr != nil {
		p.log.Error("Analysis failure delivery failed", "job_id", jc.Job.ID, "error", serr)
	}
	return nil
}

// sinkCtx keeps outcome delivery working after the job context expired.
func (p *Pipeline) sinkCtx(jc *runtime.Context) context.Context {
	if jc.Ctx != nil && jc.Ctx.Err() == nil {
		return jc.Ctx
	}
	return context.Background()
}
