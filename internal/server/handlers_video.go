package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pastportals/backend/internal/jobs"
)

type VideoHandler struct {
	Jobs    JobTracker
	Limiter echo.MiddlewareFunc
}

type videoRequest struct {
	Prompt string `json:"prompt" validate:"required,max=4000"`
}

func (h *VideoHandler) Register(g *echo.Group) {
	if h.Limiter != nil {
		g.POST("/ai-video/generate", h.generate, h.Limiter)
	} else {
		g.POST("/ai-video/generate", h.generate)
	}
	g.GET("/ai-video/status/:jobId", h.status)
	g.GET("/ai-video/download/:jobId", h.download)
}

// generate submits a job. In async mode the job is still in progress and
// the response is 202; a synchronously failed job answers 500 with its id.
func (h *VideoHandler) generate(c echo.Context) error {
	var req videoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	job, err := h.Jobs.Submit(c.Request().Context(), req.Prompt)
	if err != nil {
		if job.ID != "" {
			return &jobError{jobID: job.ID, err: err}
		}
		return err
	}

	switch job.Status {
	case jobs.StatusFailed:
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: job.Error, JobID: job.ID})
	case jobs.StatusInProgress:
		return c.JSON(http.StatusAccepted, map[string]any{"success": true, "jobId": job.ID, "status": job.Status})
	default:
		return c.JSON(http.StatusOK, map[string]any{"success": true, "jobId": job.ID, "status": job.Status})
	}
}

func (h *VideoHandler) status(c echo.Context) error {
	st, err := h.Jobs.Status(c.Request().Context(), c.Param("jobId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "status": st})
}

func (h *VideoHandler) download(c echo.Context) error {
	path, err := h.Jobs.Result(c.Request().Context(), c.Param("jobId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "videoPath": path})
}
