package metrics

import "time"

// Recorder receives engine observations. Implementations must be safe for
// concurrent use.
type Recorder interface {
	IncEventIngested(phase string)
	IncEventRejected(reason string)
	SetCurrentPhase(phase string)
	SetComparisons(n int)
	SetLinesWritten(n int)
	ObserveReconcileDuration(d time.Duration)
	IncSourceReconnect(source string)
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

func (NoopRecorder) IncEventIngested(string)                {}
func (NoopRecorder) IncEventRejected(string)                {}
func (NoopRecorder) SetCurrentPhase(string)                 {}
func (NoopRecorder) SetComparisons(int)                     {}
func (NoopRecorder) SetLinesWritten(int)                    {}
func (NoopRecorder) ObserveReconcileDuration(time.Duration) {}
func (NoopRecorder) IncSourceReconnect(string)              {}
