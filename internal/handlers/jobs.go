package handlers

import (
	"context"
	"time"

	"github.com/codebuildervaibhav/segment-transcriber/internal/queue"
	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

// followInterval is how often push handlers read the event bus
const followInterval = 500 * time.Millisecond

// Jobs is the job surface driven by the HTTP layer
type Jobs interface {
	SubmitRequest(sub queue.Submission) string
	Poll(id string) (queue.Status, bool)
	Events() *queue.EventBus
}

// follow delivers the events of one job to emit until a terminal event was
// sent or the job disappears. It also returns when emit fails or ctx ends
func follow(ctx context.Context, jobs Jobs, id string, interval time.Duration, emit func(queue.Event) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq int64
	for {
		for _, e := range jobs.Events().SinceJob(id, seq) {
			seq = e.Seq
			if err := emit(e); err != nil {
				return err
			}
			if e.Terminal() {
				return nil
			}
		}
		st, ok := jobs.Poll(id)
		if !ok {
			return nil
		}
		// The terminal event may have been trimmed from the bus
		if st.Status == types.StatusCompleted || st.Status == types.StatusFailed {
			return emit(closingEvent(st))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// closingEvent rebuilds the terminal event of a finished job from its status
func closingEvent(st queue.Status) queue.Event {
	e := queue.Event{JobID: st.ID, Progress: st.Progress, Message: st.Message}
	if st.Status == types.StatusFailed {
		e.Type = queue.EventTypeError
		e.Error = st.Error
	} else {
		e.Type = queue.EventTypeResult
		e.Transcript = st.Transcript
	}
	return e
}

// frame is the JSON payload pushed to SSE and websocket clients
func frame(e queue.Event) map[string]any {
	switch e.Type {
	case queue.EventTypeResult:
		return map[string]any{"progress": e.Progress, "transcript": e.Transcript}
	case queue.EventTypeError:
		return map[string]any{"progress": e.Progress, "error": e.Error}
	default:
		return map[string]any{"progress": e.Progress, "message": e.Message}
	}
}
