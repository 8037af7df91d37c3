package editor

import (
	"log/slog"
	"time"
)

// Op names a synchronization operation.
type Op string

const (
	OpAutosave    Op = "autosave"
	OpSave        Op = "save"
	OpDeploy      Op = "deploy"
	OpCleanup     Op = "cleanup"
	OpDeployState Op = "deploy_state"
	OpPause       Op = "pause"
	OpResume      Op = "resume"
	OpUsage       Op = "usage"
)

// Event reports the outcome of an operation. Dropped is set when a failure
// was swallowed instead of being returned to the caller.
type Event struct {
	Op       Op
	GraphID  string
	Err      error
	Dropped  bool
	Duration time.Duration
}

// Emitter receives synchronization events. Emit must not block.
type Emitter interface {
	Emit(e Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(e Event) { f(e) }

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}

// MultiEmitter fans events out to several emitters.
func MultiEmitter(emitters ...Emitter) Emitter {
	return EmitterFunc(func(e Event) {
		for _, em := range emitters {
			em.Emit(e)
		}
	})
}

// LogEmitter writes events to a structured logger. Dropped failures log at
// Debug, returned failures at Warn.
func LogEmitter(logger *slog.Logger) Emitter {
	return EmitterFunc(func(e Event) {
		attrs := []any{"op", e.Op, "graph_id", e.GraphID, "duration", e.Duration}
		switch {
		case e.Err == nil:
			logger.Debug("sync ok", attrs...)
		case e.Dropped:
			logger.Debug("sync failure dropped", append(attrs, "err", e.Err)...)
		default:
			logger.Warn("sync failed", append(attrs, "err", e.Err)...)
		}
	})
}
