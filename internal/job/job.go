// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package job

import (
	"context"
	"time"
)

// Job represents a task that runs at a fixed interval and on demand. Runs never overlap:
// the task is executed by the goroutine that called Start.
type Job struct {
	interval time.Duration
	task     func(context.Context)
	trigger  chan struct{}
}

// New creates a new Job with the given interval and task. An interval of zero disables the
// periodic runs, leaving only triggered ones.
func New(interval time.Duration, task func(context.Context)) *Job {
	return &Job{
		interval: interval,
		task:     task,
		trigger:  make(chan struct{}, 1),
	}
}

// Trigger requests a run as soon as the current one, if any, finished. It never blocks, and
// triggers that arrive while a run is pending are coalesced into that run.
func (j *Job) Trigger() {
	select {
	case j.trigger <- struct{}{}:
	default:
	}
}

// Start executes the job until the context is cancelled.
func (j *Job) Start(ctx context.Context) {
	if j.task == nil || j.interval < 0 {
		return
	}

	var tick <-chan time.Time
	if j.interval > 0 {
		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
		case <-j.trigger:
		}
		if ctx.Err() != nil {
			return
		}
		j.task(ctx)
	}
}
