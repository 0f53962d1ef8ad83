package domain

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded indicates admission was refused because the scheduler
// is at its concurrency cap. The task stays pending; the caller may retry.
var ErrCapacityExceeded = errors.New("max concurrent transfers reached")

// ErrNotFound indicates the task id is unknown to the store.
var ErrNotFound = errors.New("task not found")

// ErrNotActive indicates a cancel was issued for a task with no running unit.
var ErrNotActive = errors.New("task is not active")

// ErrToolUnavailable indicates ffmpeg was required but not located at startup.
var ErrToolUnavailable = errors.New("ffmpeg not available")

// ErrNoFormat indicates the selector found no usable format descriptor.
var ErrNoFormat = errors.New("no suitable format found")

// ErrTaskFinished indicates a progress write arrived after the task reached a
// terminal status.
var ErrTaskFinished = errors.New("task already reached a terminal status")

// TransferError is a non-2xx response from the remote host. Fatal to the task.
type TransferError struct {
	StatusCode int
	Reason     string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Reason)
}

// ToolError is a non-zero exit from the external transcoder, carrying the
// tail of its diagnostic output. Fatal for a fetch, warning for post-processing.
type ToolError struct {
	ExitCode int
	Output   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("ffmpeg exited with code %d: %s", e.ExitCode, e.Output)
}

// InvalidTransitionError is returned when a status change does not follow the
// task state machine.
type InvalidTransitionError struct {
	From TaskStatus
	To   TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
