package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/clearcite/integrity-engine/internal/analysis/ingest"
	"github.com/clearcite/integrity-engine/internal/analysis/recommend"
	"github.com/clearcite/integrity-engine/internal/analysis/score"
	"github.com/clearcite/integrity-engine/internal/analysis/similarity"
	"github.com/clearcite/integrity-engine/internal/corpus"
	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/data/repos/testutil"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/jobs"
	"github.com/clearcite/integrity-engine/internal/jobs/runtime"
	"github.com/clearcite/integrity-engine/internal/realtime"
	"github.com/clearcite/integrity-engine/internal/submission"
)

const testShingleSize = 5

type pipeFixture struct {
	jobRepo    repos.AnalysisJobRepo
	resultRepo repos.AnalysisResultRepo
	corpusRepo repos.CorpusRepo
	libRepo    repos.LibraryRepo

	index  *corpus.Index
	svc    *submission.Service
	worker *jobs.Worker

	student *domain.Principal
}

func newPipeFixture(t *testing.T) *pipeFixture {
	t.Helper()
	log := testutil.Logger(t)
	gdb := testutil.DB(t)

	subRepo := repos.NewSubmissionRepo(gdb, log)
	docRepo := repos.NewDocumentRepo(gdb, log)
	resultRepo := repos.NewAnalysisResultRepo(gdb, log)
	jobRepo := repos.NewAnalysisJobRepo(gdb, log)
	corpusRepo := repos.NewCorpusRepo(gdb, log)
	libRepo := repos.NewLibraryRepo(gdb, log)

	index := corpus.NewIndex(corpusRepo, log)
	ingestor := ingest.New(log)
	engine := similarity.NewEngine(testShingleSize, 3, 1, log)
	scorer := score.New(15, 0.5, 0.15)
	recommender := recommend.New(recommend.NewGormStore(libRepo), 4, log)

	enq := jobs.NewEnqueuer(jobRepo, log)
	svc := submission.NewService(log, subRepo, docRepo, resultRepo, ingestor, enq)

	pipeline := NewPipeline(docRepo, resultRepo, index, ingestor, engine, scorer, recommender, svc, log)
	registry := runtime.NewRegistry()
	registry.Register(pipeline)

	return &pipeFixture{
		jobRepo:    jobRepo,
		resultRepo: resultRepo,
		corpusRepo: corpusRepo,
		libRepo:    libRepo,
		index:      index,
		svc:        svc,
		worker:     jobs.NewWorker(jobRepo, registry, realtime.NopBus{}, log, 1, 10*time.Millisecond, 5*time.Second),
		student:    &domain.Principal{UserID: uuid.New(), Role: domain.RoleStudent},
	}
}

func (f *pipeFixture) seedSource(t *testing.T, sourceID, title, text string, tags []string) {
	t.Helper()
	norm := ingest.Normalize(text)
	fps := similarity.Fingerprints(norm, testShingleSize)
	fpJSON, err := json.Marshal(fps)
	require.NoError(t, err)
	tagJSON, err := json.Marshal(tags)
	require.NoError(t, err)
	require.NoError(t, f.corpusRepo.UpsertEntry(context.Background(), nil, &domain.CorpusEntry{
		SourceID:     sourceID,
		SourceType:   domain.SourceJournal,
		Title:        title,
		TopicTags:    datatypes.JSON(tagJSON),
		Fingerprints: datatypes.JSON(fpJSON),
		TokenCount:   len(norm.Tokens),
	}))
}

func (f *pipeFixture) seedWork(t *testing.T, sourceID, title string, tags []string) {
	t.Helper()
	tagJSON, err := json.Marshal(tags)
	require.NoError(t, err)
	require.NoError(t, f.libRepo.UpsertWork(context.Background(), nil, &domain.ReferenceWork{
		SourceID:   sourceID,
		SourceType: domain.SourceJournal,
		Title:      title,
		TopicTags:  datatypes.JSON(tagJSON),
	}))
}

// upload creates a draft submission and its first revision from plain text.
func (f *pipeFixture) upload(t *testing.T, text string) (*domain.Submission, *domain.AnalysisJob) {
	t.Helper()
	ctx := context.Background()
	sub, err := f.svc.Create(ctx, f.student, uuid.New(), "Test Essay")
	require.NoError(t, err)
	_, job, err := f.svc.Upload(ctx, f.student, sub.ID, submission.UploadInput{
		Filename: "essay.txt",
		Format:   "txt",
		Content:  []byte(text),
	})
	require.NoError(t, err)
	return sub, job
}

func words(prefix string, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%02d", prefix, i)
	}
	return strings.Join(out, " ")
}

func TestPipelineFlagsHeavilyCopiedDocument(t *testing.T) {
	t.Parallel()
	f := newPipeFixture(t)
	ctx := context.Background()

	copied := words("copied", 22)
	f.seedSource(t, "src-journal", "On Citation Ethics", copied, []string{"ethics", "citation"})
	require.NoError(t, f.index.Reload(ctx))

	// 100 tokens total, 22 of them copied verbatim: overall 22, threshold 15.
	doc := words("lead", 39) + " " + copied + " " + words("tail", 39)
	sub, job := f.upload(t, doc)

	ran, err := f.worker.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	gotJob, err := f.jobRepo.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobDone, gotJob.Status)
	assert.Equal(t, 100, gotJob.Progress)
	require.NotNil(t, gotJob.ResultID)

	result, err := f.resultRepo.GetByRevision(ctx, nil, sub.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, *gotJob.ResultID, result.ID)
	assert.InDelta(t, 22.0, result.Overall, 1e-9)
	assert.True(t, result.Flagged)

	spans, err := result.SpanList()
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "src-journal", spans[0].SourceID)
	assert.Equal(t, 39, spans[0].StartToken)
	assert.Equal(t, 61, spans[0].EndToken)
	assert.Equal(t, domain.SeverityHigh, spans[0].Severity)

	got, _, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFlagged, got.State)
}

func TestPipelineClearsLightOverlap(t *testing.T) {
	t.Parallel()
	f := newPipeFixture(t)
	ctx := context.Background()

	copied := words("copied", 8)
	f.seedSource(t, "src-minor", "A Minor Source", copied, nil)
	require.NoError(t, f.index.Reload(ctx))

	// 8 of 100 tokens covered: overall 8, under the threshold.
	doc := words("lead", 46) + " " + copied + " " + words("tail", 46)
	sub, _ := f.upload(t, doc)

	ran, err := f.worker.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	result, err := f.resultRepo.GetByRevision(ctx, nil, sub.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.InDelta(t, 8.0, result.Overall, 1e-9)
	assert.False(t, result.Flagged)

	got, _, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateClear, got.State)
}

func TestPipelineOriginalDocumentIsClear(t *testing.T) {
	t.Parallel()
	f := newPipeFixture(t)
	ctx := context.Background()

	f.seedSource(t, "src-other", "Unrelated Source", words("unrelated", 30), nil)
	require.NoError(t, f.index.Reload(ctx))

	sub, _ := f.upload(t, words("original", 60))

	ran, err := f.worker.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	result, err := f.resultRepo.GetByRevision(ctx, nil, sub.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Zero(t, result.Overall)
	assert.False(t, result.Flagged)

	spans, err := result.SpanList()
	require.NoError(t, err)
	assert.Empty(t, spans)
}

func TestPipelineFailsWithoutIndexThenRetries(t *testing.T) {
	t.Parallel()
	f := newPipeFixture(t)
	ctx := context.Background()

	// No Reload: the first run fails with index_unavailable.
	sub, job := f.upload(t, words("essay", 40))

	ran, err := f.worker.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	gotJob, err := f.jobRepo.GetByID(ctx, nil, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, gotJob.Status)
	assert.Equal(t, domain.ErrKindIndexUnavailable, gotJob.ErrorKind)
	assert.True(t, domain.RetryableKind(gotJob.ErrorKind))

	got, _, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateAnalysisFailed, got.State)

	// The corpus comes back; an explicit retry re-analyzes the same revision.
	require.NoError(t, f.index.Reload(ctx))
	retryJob, err := f.svc.Retry(ctx, f.student, sub.ID)
	require.NoError(t, err)
	assert.NotEqual(t, job.ID, retryJob.ID)

	ran, err = f.worker.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	got, result, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateClear, got.State)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Revision)
}

func TestPipelineRecommendsRelatedReading(t *testing.T) {
	t.Parallel()
	f := newPipeFixture(t)
	ctx := context.Background()

	copied := words("copied", 25)
	f.seedSource(t, "src-journal", "On Citation Ethics", copied, []string{"ethics"})
	f.seedWork(t, "src-journal", "On Citation Ethics", []string{"ethics"})
	f.seedWork(t, "lib-reader", "A Guide To Honest Writing", []string{"ethics"})
	f.seedWork(t, "lib-offtopic", "Stellar Astrophysics", []string{"astronomy"})
	require.NoError(t, f.index.Reload(ctx))

	sub, _ := f.upload(t, copied+" "+words("tail", 25))

	ran, err := f.worker.RunOnce(ctx)
	require.NoError(t, err)
	require.True(t, ran)

	result, err := f.resultRepo.GetByRevision(ctx, nil, sub.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, result)

	recs, err := result.RecommendationList()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "A Guide To Honest Writing", recs[0].Title)
}
