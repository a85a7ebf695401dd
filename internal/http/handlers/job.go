package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clearcite/integrity-engine/internal/data/repos"
	"github.com/clearcite/integrity-engine/internal/domain"
	"github.com/clearcite/integrity-engine/internal/http/response"
	"github.com/clearcite/integrity-engine/internal/jobs"
	"github.com/clearcite/integrity-engine/internal/platform/apierr"
)

type JobHandler struct {
	repo     repos.AnalysisJobRepo
	results  repos.AnalysisResultRepo
	enqueuer *jobs.Enqueuer
}

func NewJobHandler(repo repos.AnalysisJobRepo, results repos.AnalysisResultRepo, enqueuer *jobs.Enqueuer) *JobHandler {
	return &JobHandler{repo: repo, results: results, enqueuer: enqueuer}
}

// GET /api/jobs/:id
// A finished job carries its result summary inline so pollers don't need a
// second round trip once they see done.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_job_id", err))
		return
	}
	job, err := h.repo.GetByID(c.Request.Context(), nil, jobID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if job == nil {
		response.RespondDomainError(c, apierr.NotFound("job_not_found", fmt.Errorf("job %s not found", jobID)))
		return
	}

	var result *domain.AnalysisResult
	if job.Status == domain.JobDone && job.ResultID != nil {
		result, err = h.results.GetByID(c.Request.Context(), nil, *job.ResultID)
		if err != nil {
			response.RespondDomainError(c, err)
			return
		}
	}
	response.RespondOK(c, gin.H{"job": job, "result": resultSummary(result)})
}

// POST /api/jobs/:id/cancel
// Cancelable only while queued or extracting; later stages run to completion.
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondDomainError(c, apierr.BadRequest("invalid_job_id", err))
		return
	}
	ok, err := h.enqueuer.Cancel(c.Request.Context(), jobID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	if !ok {
		response.RespondDomainError(c, apierr.Conflict("not_cancelable", fmt.Errorf("job %s is past the cancelable window", jobID)))
		return
	}

	job, err := h.repo.GetByID(c.Request.Context(), nil, jobID)
	if err != nil {
		response.RespondDomainError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"job": job})
}
