package dev

import (
	"sync"
	"time"
)

// Scheduler throttles renders: calls arriving within the interval collapse
// into one trailing render.
type Scheduler struct {
	interval time.Duration
	render   func()

	mu      sync.Mutex
	timer   *time.Timer
	last    time.Time
	stopped bool
}

// NewScheduler creates a Scheduler that calls render at most once per
// interval.
func NewScheduler(interval time.Duration, render func()) *Scheduler {
	return &Scheduler{interval: interval, render: render}
}

// RequestRender schedules a render. It never blocks.
func (s *Scheduler) RequestRender() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped || s.timer != nil {
		return
	}

	delay := s.interval - time.Since(s.last)
	if delay < 0 {
		delay = 0
	}
	s.timer = time.AfterFunc(delay, s.fire)
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.last = time.Now()
	s.mu.Unlock()

	s.render()
}

// Stop cancels any pending render. Later requests are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Flush stops the scheduler and performs one last render, waiting out the
// rest of the interval if a render ran recently. It does nothing once the
// scheduler is stopped.
func (s *Scheduler) Flush() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	wait := s.interval - time.Since(s.last)
	s.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	s.mu.Lock()
	s.last = time.Now()
	s.mu.Unlock()
	s.render()
}
