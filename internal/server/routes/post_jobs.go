package routes

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/mt2n/internal/queue"
	"github.com/OFFIS-RIT/mt2n/internal/server/middleware"
	"github.com/OFFIS-RIT/mt2n/pkg/logger"
)

// CreateJobHandler enqueues an ingestion job for a worker.
func CreateJobHandler(c echo.Context) error {
	type createJobBody struct {
		ConfigPath string `json:"config_path" validate:"required"`
		RunID      string `json:"run_id"`
	}

	type createJobResponse struct {
		Message string `json:"message"`
		JobID   string `json:"job_id,omitempty"`
	}

	data := new(createJobBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, createJobResponse{
			Message: "Invalid request body",
		})
	}

	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, createJobResponse{
			Message: "Invalid request body",
		})
	}

	jobID, err := gonanoid.New()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createJobResponse{
			Message: "Internal server error",
		})
	}

	msg, err := json.Marshal(queue.IngestJobMsg{
		JobID:      jobID,
		ConfigPath: data.ConfigPath,
		RunID:      data.RunID,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, createJobResponse{
			Message: "Internal server error",
		})
	}

	app := c.(*middleware.AppContext).App
	if err := queue.PublishFIFO(app.Queue, queue.IngestQueue, msg); err != nil {
		logger.Error("[Server] Failed to enqueue job", "job_id", jobID, "err", err)
		return c.JSON(http.StatusInternalServerError, createJobResponse{
			Message: "Internal server error",
		})
	}

	logger.Info("[Server] Job enqueued", "job_id", jobID, "config", data.ConfigPath)
	return c.JSON(http.StatusAccepted, createJobResponse{
		Message: "Job enqueued",
		JobID:   jobID,
	})
}
