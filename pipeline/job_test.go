package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newLoopless(t *testing.T) *Orchestrator {
	t.Helper()
	o := &Orchestrator{
		msgs:    make(chan msg, 8),
		done:    make(chan struct{}),
		baseCtx: context.Background(),
	}
	t.Cleanup(func() { close(o.done) })
	return o
}

type intDone struct {
	id  uuid.UUID
	n   int
	err error
}

func TestDispatchDeliversCompletion(t *testing.T) {
	o := newLoopless(t)

	h := dispatch(o, func(ctx context.Context, id uuid.UUID) (int, error) {
		return 42, nil
	}, func(id uuid.UUID, n int, err error) msg {
		return intDone{id: id, n: n, err: err}
	})

	select {
	case m := <-o.msgs:
		d, ok := m.(intDone)
		if !ok {
			t.Fatalf("unexpected message %T", m)
		}
		if d.n != 42 || d.err != nil {
			t.Fatalf("completion = %+v", d)
		}
		if d.id != h.id {
			t.Fatal("completion id does not match handle id")
		}
	case <-time.After(time.Second):
		t.Fatal("no completion delivered")
	}
}

func TestDispatchNilMessageSuppressed(t *testing.T) {
	o := newLoopless(t)

	ran := make(chan struct{})
	dispatch(o, func(ctx context.Context, id uuid.UUID) (int, error) {
		close(ran)
		return 0, context.Canceled
	}, func(id uuid.UUID, n int, err error) msg {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return intDone{id: id, n: n, err: err}
	})

	<-ran
	select {
	case m := <-o.msgs:
		t.Fatalf("unexpected message %T", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatchCancelStopsWork(t *testing.T) {
	o := newLoopless(t)

	h := dispatch(o, func(ctx context.Context, id uuid.UUID) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}, func(id uuid.UUID, n int, err error) msg {
		return intDone{id: id, n: n, err: err}
	})
	h.cancel()

	select {
	case m := <-o.msgs:
		d := m.(intDone)
		if !errors.Is(d.err, context.Canceled) {
			t.Fatalf("err = %v, want canceled", d.err)
		}
	case <-time.After(time.Second):
		t.Fatal("no completion delivered")
	}
}

func TestDistinctJobsGetDistinctIDs(t *testing.T) {
	o := newLoopless(t)

	run := func(ctx context.Context, id uuid.UUID) (int, error) { return 0, nil }
	wrap := func(id uuid.UUID, n int, err error) msg { return intDone{id: id} }
	a := dispatch(o, run, wrap)
	b := dispatch(o, run, wrap)
	if a.id == b.id {
		t.Fatal("two dispatches share an id")
	}
	<-o.msgs
	<-o.msgs
}
