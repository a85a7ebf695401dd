package submission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clearcite/integrity-engine/internal/analysis/ingest"
	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/platform/logger"
)

// JobEnqueuer is what the lifecycle needs from the job runner: idempotent
// claim-or-join enqueue per document revision.
type JobEnqueuer interface {
	Enqueue(ctx context.Context, submissionID uuid.UUID, revision int) (*domain.AnalysisJob, error)
}

// Service owns the submission lifecycle. Every mutation is a compare-and-set
// on the current state, so concurrent conflicting commands resolve to
// exactly one winner and the losers get a clean rejection.
type Service struct {
	log         *logger.Logger
	submissions repos.SubmissionRepo
	documents   repos.DocumentRepo
	results     repos.AnalysisResultRepo
	ingestor    *ingest.Ingestor
	enqueuer    JobEnqueuer
}

func NewService(baseLog *logger.Logger, submissions repos.SubmissionRepo, documents repos.DocumentRepo, results repos.AnalysisResultRepo, ingestor *ingest.Ingestor, enqueuer JobEnqueuer) *Service {
	return &Service{
		log:         baseLog.With("service", "SubmissionService"),
		submissions: submissions,
		documents:   documents,
		results:     results,
		ingestor:    ingestor,
		enqueuer:    enqueuer,
	}
}

type UploadInput struct {
	Filename string
	Format   string
	Content  []byte
}

func (s *Service) Create(ctx context.Context, principal *domain.Principal, assignmentID uuid.UUID, title string) (*domain.Submission, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title required", domain.ErrValidation)
	}
	now := time.Now()
	sub := &domain.Submission{
		ID:           uuid.New(),
		StudentID:    principal.UserID,
		AssignmentID: assignmentID,
		Title:        title,
		State:        domain.StateDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.submissions.Create(ctx, nil, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Upload ingests a new document revision and moves Draft -> Analyzing.
// Format and extraction failures reject the upload before any state change;
// no job is created for them.
func (s *Service) Upload(ctx context.Context, principal *domain.Principal, submissionID uuid.UUID, in UploadInput) (*domain.Document, *domain.AnalysisJob, error) {
	sub, err := s.getOwned(ctx, principal, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if sub.State != domain.StateDraft {
		return nil, nil, fmt.Errorf("%w: upload from %s", domain.ErrInvalidStateTransition, sub.State)
	}

	norm, err := s.ingestor.Ingest(in.Content, in.Format)
	if err != nil {
		return nil, nil, err
	}

	maxRev, err := s.documents.MaxRevision(ctx, nil, submissionID)
	if err != nil {
		return nil, nil, err
	}
	format, _ := ingest.ParseFormat(in.Format)
	doc := &domain.Document{
		ID:             uuid.New(),
		SubmissionID:   submissionID,
		Revision:       maxRev + 1,
		Filename:       in.Filename,
		Format:         format,
		Content:        in.Content,
		NormalizedText: norm.Text,
		TokenCount:     len(norm.Tokens),
		CreatedAt:      time.Now(),
	}
	if err := s.documents.Create(ctx, nil, doc); err != nil {
		return nil, nil, err
	}

	ok, err := s.submissions.UpdateStateCAS(ctx, nil, submissionID, domain.StateDraft, domain.StateAnalyzing,
		map[string]interface{}{"current_revision": doc.Revision})
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: submission left draft concurrently", domain.ErrInvalidStateTransition)
	}
	s.appendLog(ctx, submissionID, domain.StateDraft, domain.StateAnalyzing, EventUpload, principal.UserID)

	job, err := s.enqueuer.Enqueue(ctx, submissionID, doc.Revision)
	if err != nil {
		return nil, nil, err
	}
	return doc, job, nil
}

// AnalysisCompleted consumes a finished analysis and branches Analyzing ->
// Clear|Flagged. Results for a superseded revision are ignored so a stale
// job can never clobber the state of a newer upload.
func (s *Service) AnalysisCompleted(ctx context.Context, result *domain.AnalysisResult) error {
	sub, err := s.submissions.GetByID(ctx, nil, result.SubmissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.ErrNotFound
	}
	if sub.CurrentRevision != result.Revision {
		s.log.Info("Ignoring analysis outcome for superseded revision",
			"submission_id", result.SubmissionID, "revision", result.Revision, "current", sub.CurrentRevision)
		return nil
	}

	to := OutcomeState(result.Flagged)
	ok, err := s.submissions.UpdateStateCAS(ctx, nil, sub.ID, domain.StateAnalyzing, to, nil)
	if err != nil {
		return err
	}
	if ok {
		s.appendLog(ctx, sub.ID, domain.StateAnalyzing, to, EventAnalysisDone, uuid.Nil)
	}
	return nil
}

// AnalysisFailed moves Analyzing -> AnalysisFailed for the current revision.
func (s *Service) AnalysisFailed(ctx context.Context, submissionID uuid.UUID, revision int, kind string) error {
	sub, err := s.submissions.GetByID(ctx, nil, submissionID)
	if err != nil {
		return err
	}
	if sub == nil {
		return domain.ErrNotFound
	}
	if sub.CurrentRevision != revision {
		return nil
	}

	ok, err := s.submissions.UpdateStateCAS(ctx, nil, submissionID, domain.StateAnalyzing, domain.StateAnalysisFailed, nil)
	if err != nil {
		return err
	}
	if ok {
		s.log.Warn("Submission analysis failed", "submission_id", submissionID, "revision", revision, "kind", kind)
		s.appendLog(ctx, submissionID, domain.StateAnalyzing, domain.StateAnalysisFailed, EventAnalysisError, uuid.Nil)
	}
	return nil
}

// Retry re-enqueues analysis of the current revision after a failure.
func (s *Service) Retry(ctx context.Context, principal *domain.Principal, submissionID uuid.UUID) (*domain.AnalysisJob, error) {
	sub, err := s.getOwned(ctx, principal, submissionID)
	if err != nil {
		return nil, err
	}
	ok, err := s.submissions.UpdateStateCAS(ctx, nil, submissionID, domain.StateAnalysisFailed, domain.StateAnalyzing, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: retry from %s", domain.ErrInvalidStateTransition, sub.State)
	}
	s.appendLog(ctx, submissionID, domain.StateAnalysisFailed, domain.StateAnalyzing, EventRetry, principal.UserID)
	return s.enqueuer.Enqueue(ctx, submissionID, sub.CurrentRevision)
}

// Submit moves Clear -> Submitted.
func (s *Service) Submit(ctx context.Context, principal *domain.Principal, submissionID uuid.UUID) (*domain.Submission, error) {
	if _, err := s.getOwned(ctx, principal, submissionID); err != nil {
		return nil, err
	}
	return s.simpleTransition(ctx, principal, submissionID, domain.StateClear, EventSubmit)
}

// SubmitAnyway moves Flagged -> Submitted without a new revision.
func (s *Service) SubmitAnyway(ctx context.Context, principal *domain.Principal, submissionID uuid.UUID) (*domain.Submission, error) {
	if _, err := s.getOwned(ctx, principal, submissionID); err != nil {
		return nil, err
	}
	return s.simpleTransition(ctx, principal, submissionID, domain.StateFlagged, EventSubmitAnyway)
}

// Resubmit moves Flagged -> Draft and immediately uploads the new revision,
// which carries the submission on to Analyzing.
func (s *Service) Resubmit(ctx context.Context, principal *domain.Principal, submissionID uuid.UUID, in *UploadInput) (*domain.Document, *domain.AnalysisJob, error) {
	if in == nil || len(in.Content) == 0 {
		return nil, nil, fmt.Errorf("%w: resubmit requires a new document", domain.ErrValidation)
	}
	if _, err := s.getOwned(ctx, principal, submissionID); err != nil {
		return nil, nil, err
	}

	ok, err := s.submissions.UpdateStateCAS(ctx, nil, submissionID, domain.StateFlagged, domain.StateDraft, nil)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: resubmit requires a flagged submission", domain.ErrInvalidStateTransition)
	}
	s.appendLog(ctx, submissionID, domain.StateFlagged, domain.StateDraft, EventResubmit, principal.UserID)

	return s.Upload(ctx, principal, submissionID, *in)
}

// Grade is single-writer: the CAS on Submitted guarantees exactly one of two
// concurrent grade attempts wins; the loser sees AlreadyGraded. The grade
// field is write-once by the same mechanism.
func (s *Service) Grade(ctx context.Context, principal *domain.Principal, submissionID uuid.UUID, grade int) (*domain.Submission, error) {
	if !principal.IsLecturer() {
		return nil, fmt.Errorf("%w: grading requires the lecturer role", domain.ErrUnauthorized)
	}
	if grade < 0 || grade > 100 {
		return nil, fmt.Errorf("%w: grade must be between 0 and 100", domain.ErrValidation)
	}

	sub, err := s.submissions.GetByID(ctx, nil, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}

	now := time.Now()
	ok, err := s.submissions.UpdateStateCAS(ctx, nil, submissionID, domain.StateSubmitted, domain.StateGraded,
		map[string]interface{}{
			"grade":     grade,
			"graded_by": principal.UserID,
			"graded_at": now,
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		current, gerr := s.submissions.GetByID(ctx, nil, submissionID)
		if gerr != nil {
			return nil, gerr
		}
		if current != nil && current.State == domain.StateGraded {
			return nil, domain.ErrAlreadyGraded
		}
		return nil, fmt.Errorf("%w: grade from %s", domain.ErrInvalidStateTransition, sub.State)
	}
	s.appendLog(ctx, submissionID, domain.StateSubmitted, domain.StateGraded, EventGrade, principal.UserID)

	return s.submissions.GetByID(ctx, nil, submissionID)
}

func (s *Service) Get(ctx context.Context, submissionID uuid.UUID) (*domain.Submission, *domain.AnalysisResult, error) {
	sub, err := s.submissions.GetByID(ctx, nil, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, domain.ErrNotFound
	}
	var latest *domain.AnalysisResult
	if sub.CurrentRevision > 0 {
		latest, err = s.results.GetByRevision(ctx, nil, submissionID, sub.CurrentRevision)
		if err != nil {
			return nil, nil, err
		}
	}
	return sub, latest, nil
}

func (s *Service) List(ctx context.Context, search string) ([]*domain.Submission, error) {
	return s.submissions.List(ctx, nil, search)
}

// Results returns the full append-only result history for audit.
func (s *Service) Results(ctx context.Context, submissionID uuid.UUID) ([]*domain.AnalysisResult, error) {
	return s.results.ListBySubmission(ctx, nil, submissionID)
}

func (s *Service) Transitions(ctx context.Context, submissionID uuid.UUID) ([]*domain.SubmissionTransition, error) {
	return s.submissions.ListTransitions(ctx, nil, submissionID)
}

func (s *Service) simpleTransition(ctx context.Context, principal *domain.Principal, submissionID uuid.UUID, from domain.SubmissionState, ev Event) (*domain.Submission, error) {
	to, legal := Next(from, ev)
	if !legal {
		return nil, fmt.Errorf("%w: %s from %s", domain.ErrInvalidStateTransition, ev, from)
	}
	ok, err := s.submissions.UpdateStateCAS(ctx, nil, submissionID, from, to, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, gerr := s.submissions.GetByID(ctx, nil, submissionID)
		if gerr != nil {
			return nil, gerr
		}
		state := domain.SubmissionState("unknown")
		if current != nil {
			state = current.State
		}
		return nil, fmt.Errorf("%w: %s from %s", domain.ErrInvalidStateTransition, ev, state)
	}
	s.appendLog(ctx, submissionID, from, to, ev, principal.UserID)
	return s.submissions.GetByID(ctx, nil, submissionID)
}

// getOwned loads the submission and enforces that a student principal only
// touches their own work. Lecturers can act on any submission.
func (s *Service) getOwned(ctx context.Context, principal *domain.Principal, submissionID uuid.UUID) (*domain.Submission, error) {
	if principal == nil {
		return nil, domain.ErrUnauthorized
	}
	sub, err := s.submissions.GetByID(ctx, nil, submissionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	if principal.Role == domain.RoleStudent && sub.StudentID != principal.UserID {
		return nil, domain.ErrUnauthorized
	}
	return sub, nil
}

func (s *Service) appendLog(ctx context.Context, submissionID uuid.UUID, from, to domain.SubmissionState, ev Event, actor uuid.UUID) {
	tr := &domain.SubmissionTransition{
		SubmissionID: submissionID,
		FromState:    from,
		ToState:      to,
		Event:        string(ev),
		ActorID:      actor,
	}
	if err := s.submissions.AppendTransition(ctx, nil, tr); err != nil {
		s.log.Warn("Transition log append failed", "submission_id", submissionID, "event", ev, "error", err)
	}
}
