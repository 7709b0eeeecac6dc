package bot

import (
	"context"
)

// task is one channel's in-flight response.
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// runTask runs fn as the channel's current task. Any task already holding
// the slot is cancelled and fully drained before fn starts, so at most one
// response per channel is ever in flight and a superseded generation has
// finished rolling back before its successor touches the transcript.
func (r *Registry) runTask(ctx context.Context, key string, fn func(context.Context) error) error {
	taskCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}

	for {
		r.mu.Lock()
		old := r.tasks[key]
		if old == nil {
			r.tasks[key] = t
			r.mu.Unlock()
			break
		}
		r.mu.Unlock()

		old.cancel()
		<-old.done
	}

	defer func() {
		cancel()
		r.mu.Lock()
		if r.tasks[key] == t {
			delete(r.tasks, key)
		}
		r.mu.Unlock()
		close(t.done)
	}()

	return fn(taskCtx)
}
