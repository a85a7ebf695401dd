package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clearcite/integrity-engine/internal/http/response"
	"github.com/clearcite/integrity-engine/internal/platform/apierr"
	"github.com/clearcite/integrity-engine/internal/platform/ctxutil"
	"github.com/clearcite/integrity-engine/internal/submission"
)

type DocumentHandler struct {
	subs *submission.Service
}

func NewDocumentHandler(subs *submission.Service) *DocumentHandler {
	return &DocumentHandler{subs: subs}
}

type uploadRequest struct {
	SubmissionID string `json:"submission_id" binding:"required"`
	Filename     string `json:"filename"`
	Format       string `json:"format" binding:"required"`
	Content      []byte `json:"content" binding:"required"`
}

// POST /api/documents
// Ingests a new revision for a draft submission and enqueues its analysis.
func (h *DocumentHandler) Upload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_request", err))
		return
	}
	submissionID, err := uuid.Parse(req.SubmissionID)
	if err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_submission_id", err))
		return
	}

	principal := ctxutil.PrincipalFrom(c.Request.Context())
	doc, job, err := h.subs.Upload(c.Request.Context(), principal, submissionID, submission.UploadInput{
		Filename: req.Filename,
		Format:   req.Format,
		Content:  req.Content,
	})
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}

	response.RespondCreated(c, gin.H{
		"document_id": doc.ID,
		"revision":    doc.Revision,
		"job_id":      job.ID,
	})
}
