package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/http/response"
	"github.com/clearcite/integrity-engine/internal/platform/apierr"
	"github.com/clearcite/integrity-engine/internal/platform/ctxutil"
	"github.com/clearcite/integrity-engine/internal/submission"
)

type SubmissionHandler struct {
	subs *submission.Service
}

func NewSubmissionHandler(subs *submission.Service) *SubmissionHandler {
	return &SubmissionHandler{subs: subs}
}

type createSubmissionRequest struct {
	AssignmentID string `json:"assignment_id" binding:"required"`
	Title        string `json:"title" binding:"required"`
}

// POST /api/submissions
func (h *SubmissionHandler) Create(c *gin.Context) {
	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	assignmentID, err := uuid.Parse(req.AssignmentID)
	if err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_assignment_id", err))
		return
	}

	principal := ctxutil.PrincipalFrom(c.Request.Context())
	sub, err := h.subs.Create(c.Request.Context(), principal, assignmentID, req.Title)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"submission": sub})
}

// GET /api/submissions
func (h *SubmissionHandler) List(c *gin.Context) {
	subs, err := h.subs.List(c.Request.Context(), c.Query("search"))
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submissions": subs})
}

// GET /api/submissions/:id
func (h *SubmissionHandler) Get(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_submission_id", err))
		return
	}
	sub, latest, err := h.subs.Get(c.Request.Context(), submissionID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submission": sub, "latest_result": resultSummary(latest)})
}

type decisionRequest struct {
	Action   string `json:"action" binding:"required"`
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Content  []byte `json:"content"`
}

// POST /api/submissions/:id/decision
// Actions: submit (from Clear), submit_anyway (from Flagged), resubmit (from
// Flagged, carries the replacement document), retry (from AnalysisFailed).
func (h *SubmissionHandler) Decision(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_submission_id", err))
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_request", err))
		return
	}

	ctx := c.Request.Context()
	principal := ctxutil.PrincipalFrom(ctx)

	switch req.Action {
	case "submit":
		sub, err := h.subs.Submit(ctx, principal, submissionID)
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"submission": sub})

	case "submit_anyway":
		sub, err := h.subs.SubmitAnyway(ctx, principal, submissionID)
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"submission": sub})

	case "resubmit":
		doc, job, err := h.subs.Resubmit(ctx, principal, submissionID, &submission.UploadInput{
			Filename: req.Filename,
			Format:   req.Format,
			Content:  req.Content,
		})
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"document_id": doc.ID, "revision": doc.Revision, "job_id": job.ID})

	case "retry":
		job, err := h.subs.Retry(ctx, principal, submissionID)
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
		response.RespondOK(c, gin.H{"job_id": job.ID})

	default:
		response.RespondDomainError(c, apierr.BadRequest("unknown_action", fmt.Errorf("unknown action %q", req.Action)))
	}
}

type gradeRequest struct {
	Grade *int `json:"grade" binding:"required"`
}

// POST /api/submissions/:id/grade
func (h *SubmissionHandler) Grade(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_submission_id", err))
		return
	}
	var req gradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_request", err))
		return
	}

	principal := ctxutil.PrincipalFrom(c.Request.Context())
	sub, err := h.subs.Grade(c.Request.Context(), principal, submissionID, *req.Grade)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submission": sub})
}

// GET /api/submissions/:id/results
func (h *SubmissionHandler) Results(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_submission_id", err))
		return
	}
	results, err := h.subs.Results(c.Request.Context(), submissionID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"results": results})
}

// GET /api/submissions/:id/transitions
func (h *SubmissionHandler) Transitions(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_submission_id", err))
		return
	}
	transitions, err := h.subs.Transitions(c.Request.Context(), submissionID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"transitions": transitions})
}

// resultSummary trims the stored JSON blobs down to what the detail page
// renders: score, flag and span/recommendation counts.
func resultSummary(r *domain.AnalysisResult) gin.H {
	if r == nil {
		return nil
	}
	spans, _ := r.SpanList()
	recs, _ := r.RecommendationList()
	return gin.H{
		"id":              r.ID,
		"revision":        r.Revision,
		"overall":         r.Overall,
		"flagged":         r.Flagged,
		"spans":           spans,
		"recommendations": recs,
		"computed_at":     r.ComputedAt,
	}
}
