package controllers

import (
	"time"

	"github.com/vidfetch/vidfetch/internal/domain"
)

type createTaskRequest struct {
	URL            string                    `json:"url"`
	Title          string                    `json:"title"`
	Formats        []domain.FormatDescriptor `json:"formats"`
	Quality        string                    `json:"quality"`
	PostProcessing string                    `json:"post_processing"`
	Headers        map[string]string         `json:"headers"`
	Cookies        string                    `json:"cookies"`
	OutputPath     string                    `json:"output_path"`
}

type taskResponse struct {
	ID             string          `json:"id"`
	URL            string          `json:"url"`
	Title          string          `json:"title"`
	OutputPath     string          `json:"output_path"`
	Quality        string          `json:"quality"`
	PostProcessing string          `json:"post_processing"`
	Progress       domain.Progress `json:"progress"`
	CreatedAt      time.Time       `json:"created_at"`
	StartedAt      *time.Time      `json:"started_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type sweepResponse struct {
	Removed int `json:"removed"`
}

func newTaskResponse(t *domain.Task) taskResponse {
	resp := taskResponse{
		ID:             t.ID,
		URL:            t.SourceURL,
		Title:          t.Title,
		OutputPath:     t.OutputPath,
		Quality:        string(t.Quality),
		PostProcessing: string(t.PostProcessing),
		Progress:       t.Progress(),
		CreatedAt:      t.CreatedAt,
	}
	if started := t.StartedAt(); !started.IsZero() {
		resp.StartedAt = &started
	}
	if completed := t.CompletedAt(); !completed.IsZero() {
		resp.CompletedAt = &completed
	}
	return resp
}

func newTaskListResponse(tasks []*domain.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskResponse(t))
	}
	return out
}
