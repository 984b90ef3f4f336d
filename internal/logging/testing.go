package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Recorder is a Logger that keeps every entry in memory, for tests.
type Recorder struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewRecorder records entries at TraceLevel and above.
func NewRecorder() *Recorder {
	core, logs := observer.New(TraceLevel)
	return &Recorder{
		Logger: &Logger{zap: zap.New(core)},
		logs:   logs,
	}
}

// Entries returns entries whose message contains msg. An empty msg
// matches everything.
func (r *Recorder) Entries(msg string) []observer.LoggedEntry {
	if msg == "" {
		return r.logs.All()
	}
	return r.logs.FilterMessageSnippet(msg).All()
}

// AtLevel returns entries logged at exactly level.
func (r *Recorder) AtLevel(level zapcore.Level) []observer.LoggedEntry {
	return r.logs.FilterLevelExact(level).All()
}

// ForRun returns entries tagged with the given run id.
func (r *Recorder) ForRun(runID string) []observer.LoggedEntry {
	return r.logs.FilterField(zap.String("run.id", runID)).All()
}

// Field returns the value of key on the first entry containing msg.
func (r *Recorder) Field(msg, key string) (any, bool) {
	for _, e := range r.Entries(msg) {
		if v, ok := e.ContextMap()[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Reset drops recorded entries.
func (r *Recorder) Reset() {
	r.logs.TakeAll()
}
