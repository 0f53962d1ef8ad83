package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/vidfetch/vidfetch/internal/app"
	"github.com/vidfetch/vidfetch/internal/domain"
	"github.com/vidfetch/vidfetch/internal/engine"
	"github.com/vidfetch/vidfetch/internal/notify"
)

type TasksController struct {
	App     *app.Context
	Manager *engine.Manager
}

// Create registers a new pending task from already-resolved format metadata.
func (ctrl *TasksController) Create(c *echo.Context) error {
	var req createTaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request body"})
	}
	if req.URL == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "url is required"})
	}
	if len(req.Formats) == 0 {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "no video formats found"})
	}

	task, err := ctrl.Manager.Create(engine.CreateRequest{
		SourceURL:      req.URL,
		Title:          req.Title,
		Formats:        req.Formats,
		Quality:        domain.Quality(req.Quality),
		PostProcessing: postProcessingKind(req.PostProcessing),
		Headers:        req.Headers,
		Cookies:        req.Cookies,
		OutputPath:     req.OutputPath,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (ctrl *TasksController) Start(c *echo.Context) error {
	err := ctrl.Manager.Start(c.Param("id"))
	switch {
	case err == nil:
		return c.NoContent(http.StatusAccepted)
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrCapacityExceeded):
		// Retryable: the task stays pending.
		return c.JSON(http.StatusTooManyRequests, errorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	}
}

func (ctrl *TasksController) Cancel(c *echo.Context) error {
	err := ctrl.Manager.Cancel(c.Param("id"))
	switch {
	case err == nil:
		return c.NoContent(http.StatusAccepted)
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	}
}

func (ctrl *TasksController) Get(c *echo.Context) error {
	task, err := ctrl.Manager.Get(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, newTaskResponse(task))
}

func (ctrl *TasksController) List(c *echo.Context) error {
	return c.JSON(http.StatusOK, newTaskListResponse(ctrl.Manager.All()))
}

func (ctrl *TasksController) ListActive(c *echo.Context) error {
	return c.JSON(http.StatusOK, newTaskListResponse(ctrl.Manager.Active()))
}

func (ctrl *TasksController) Delete(c *echo.Context) error {
	err := ctrl.Manager.Delete(c.Param("id"))
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	}
}

// Sweep evicts finished tasks older than max_age_hours (default: configured
// retention).
func (ctrl *TasksController) Sweep(c *echo.Context) error {
	maxAge := time.Duration(ctrl.App.Config.Download.RetentionHours) * time.Hour
	if raw := c.QueryParam("max_age_hours"); raw != "" {
		hours, err := strconv.ParseFloat(raw, 64)
		if err != nil || hours < 0 {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid max_age_hours"})
		}
		maxAge = time.Duration(hours * float64(time.Hour))
	}

	removed := ctrl.Manager.Sweep(maxAge)
	return c.JSON(http.StatusOK, sweepResponse{Removed: removed})
}

// Stream pushes progress snapshots for one task as Server-Sent Events until
// the task reaches a terminal status or the client disconnects.
func (ctrl *TasksController) Stream(c *echo.Context) error {
	id := c.Param("id")

	task, err := ctrl.Manager.Get(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	}

	updates := make(chan domain.Progress, 16)
	obs := notify.ObserverFunc(func(p domain.Progress) {
		select {
		case updates <- p:
		default:
			// Slow client: this snapshot is skipped, the next one catches up.
		}
	})
	if err := ctrl.Manager.Subscribe(id, &obs); err != nil {
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	}
	defer ctrl.Manager.Unsubscribe(id, &obs)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(res)

	// Current snapshot first so late subscribers see where the task is.
	snapshot := task.Progress()
	if err := writeEvent(res, snapshot); err != nil {
		return nil
	}
	rc.Flush()
	if snapshot.Status.IsTerminal() {
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-updates:
			if err := writeEvent(res, p); err != nil {
				return nil
			}
			rc.Flush()
			if p.Status.IsTerminal() {
				return nil
			}
		}
	}
}

// History lists the most recently finished transfers from the ledger.
func (ctrl *TasksController) History(c *echo.Context) error {
	if ctrl.App.History == nil {
		return c.JSON(http.StatusOK, []struct{}{})
	}

	entries, err := ctrl.App.History.Recent(50)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, entries)
}

func writeEvent(w io.Writer, p domain.Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func postProcessingKind(raw string) domain.PostProcessingKind {
	switch raw {
	case string(domain.PostProcessAudio):
		return domain.PostProcessAudio
	case string(domain.PostProcessMP4):
		return domain.PostProcessMP4
	default:
		return domain.PostProcessNone
	}
}
