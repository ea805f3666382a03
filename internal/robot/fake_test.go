package robot

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// recorder captures motor commands and actions in call order.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	fail   map[string]error
	panics map[string]bool
}

func (r *recorder) record(s string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
	if r.panics[s] {
		panic("servo jammed")
	}
	return r.fail[s]
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) Forward(_ context.Context, s int) error {
	return r.record(fmt.Sprintf("forward %d", s))
}
func (r *recorder) Backward(_ context.Context, s int) error {
	return r.record(fmt.Sprintf("backward %d", s))
}
func (r *recorder) Steer(_ context.Context, a int) error { return r.record(fmt.Sprintf("steer %d", a)) }
func (r *recorder) Stop(context.Context) error           { return r.record("stop") }
func (r *recorder) Pan(_ context.Context, a int) error   { return r.record(fmt.Sprintf("pan %d", a)) }
func (r *recorder) Tilt(_ context.Context, a int) error  { return r.record(fmt.Sprintf("tilt %d", a)) }

func (r *recorder) Perform(_ context.Context, action string) error { return r.record(action) }

func noSleep(context.Context, time.Duration) error { return nil }
