package pipeline

import (
	"context"

	"github.com/google/uuid"
)

// msg is anything routed through the orchestrator's single-consumer queue:
// surface commands, capture notifications, and job completions.
type msg any

// handle tracks one in-flight background job.
type handle struct {
	id     uuid.UUID
	cancel context.CancelFunc
}

// dispatch runs one unit of background work on its own goroutine and posts
// the message built by wrap back into the queue when it terminates. Download,
// transcription, and translation all go through here; they differ only in
// payload and completion type. A nil message from wrap suppresses delivery,
// which is how cancelled downloads vanish without a completion.
func dispatch[T any](o *Orchestrator, run func(ctx context.Context, id uuid.UUID) (T, error), wrap func(id uuid.UUID, result T, err error) msg) handle {
	ctx, cancel := context.WithCancel(o.baseCtx)
	id := uuid.New()
	go func() {
		defer cancel()
		result, err := run(ctx, id)
		if m := wrap(id, result, err); m != nil {
			o.post(m)
		}
	}()
	return handle{id: id, cancel: cancel}
}
