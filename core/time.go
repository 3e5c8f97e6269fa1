package core

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Frame stages, in the order they run
const (
	StageContext  = "context"
	StageDevice   = "device"
	StagePipeline = "pipeline"
	StageRecord   = "record"
	StageSubmit   = "submit"
	StageWait     = "wait"
	StageReadback = "readback"
	StageTeardown = "teardown"
)

// StageTiming is how long one stage took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// FrameTimings collects stage durations of a frame.
type FrameTimings struct {
	Stages []StageTiming
	Total  time.Duration

	now   func() time.Time
	start time.Time
	last  time.Time
}

// NewFrameTimings starts the clock.
func NewFrameTimings() *FrameTimings {
	return newFrameTimings(time.Now)
}

func newFrameTimings(now func() time.Time) *FrameTimings {
	t := now()
	return &FrameTimings{
		now:   now,
		start: t,
		last:  t,
	}
}

// Mark closes the running stage under the given name.
func (t *FrameTimings) Mark(stage string) {
	n := t.now()
	t.Stages = append(t.Stages, StageTiming{
		Stage:    stage,
		Duration: n.Sub(t.last),
	})
	t.last = n
	t.Total = n.Sub(t.start)
}

// Get returns the duration of stage, zero if it never ran.
func (t *FrameTimings) Get(stage string) time.Duration {
	for _, s := range t.Stages {
		if s.Stage == stage {
			return s.Duration
		}
	}
	return 0
}

// Fields renders the timings for a log entry.
func (t *FrameTimings) Fields() logrus.Fields {
	f := logrus.Fields{"total": t.Total}
	for _, s := range t.Stages {
		f[s.Stage] = s.Duration
	}
	return f
}
