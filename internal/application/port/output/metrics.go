package output

import "time"

type MetricsPort interface {
	MissionStarted()
	MissionFinished(outcome string)
	ActionExecuted(kind, outcome string)
	ApprovalRequested()
	OracleAttempt(success bool)
	CycleDuration(d time.Duration)
	EventDropped()
}

type NopMetrics struct{}

func (NopMetrics) MissionStarted()               {}
func (NopMetrics) MissionFinished(string)        {}
func (NopMetrics) ActionExecuted(string, string) {}
func (NopMetrics) ApprovalRequested()            {}
func (NopMetrics) OracleAttempt(bool)            {}
func (NopMetrics) CycleDuration(time.Duration)   {}
func (NopMetrics) EventDropped()                 {}
