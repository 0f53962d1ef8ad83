package domain

type TaskStatus string

const (
	StatusPending     TaskStatus = "pending"
	StatusStarting    TaskStatus = "starting"
	StatusDownloading TaskStatus = "downloading"
	StatusProcessing  TaskStatus = "processing" // Post-processing (ffmpeg re-encode/extract)
	StatusCompleted   TaskStatus = "completed"
	StatusFailed      TaskStatus = "failed"
	StatusCancelled   TaskStatus = "cancelled"

	// StatusPaused is reserved. No transition enters or leaves it; a pause
	// feature needs its own transition set before this becomes reachable.
	StatusPaused TaskStatus = "paused"
)

func (s TaskStatus) String() string {
	return string(s)
}

// IsActive reports whether a task in this status holds a concurrency slot.
func (s TaskStatus) IsActive() bool {
	return s == StatusStarting || s == StatusDownloading || s == StatusProcessing
}

// IsTerminal reports whether the status permits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// transitions holds the legal edges of the status machine.
var transitions = map[TaskStatus][]TaskStatus{
	StatusPending:     {StatusStarting},
	StatusStarting:    {StatusDownloading, StatusFailed, StatusCancelled},
	StatusDownloading: {StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled},
	StatusProcessing:  {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition reports whether moving from s to next is a legal edge.
func (s TaskStatus) CanTransition(next TaskStatus) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}
