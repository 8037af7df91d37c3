package editor

import "time"

// Task is a scheduled one-shot callback.
type Task interface {
	// Stop cancels the task, reporting whether it had not fired yet.
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

type clockScheduler struct{}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// ClockScheduler schedules on the wall clock.
var ClockScheduler Scheduler = clockScheduler{}
