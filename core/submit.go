package core

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultPollInterval = 50 * time.Millisecond

// Submission is a frame handed to the queue and the fence guarding it.
type Submission struct {
	Fence Object
	Frame *Frame

	dc   *DeviceContext
	cfg  SyncConfiguration
	done bool
}

// Submit creates the frame's fence and submits the command buffer with
// no semaphores. A fence created signaled is reset first.
func (d *DeviceContext) Submit(frame *Frame, cfg SyncConfiguration) (*Submission, error) {
	const op = "core.DeviceContext.Submit"
	if frame == nil || !frame.CommandBuffer.Is(ObjectCommandBuffer) {
		return nil, Errorf(MissingDependencyError, op, "no recorded command buffer")
	}
	if !d.Queue.Is(ObjectQueue) {
		return nil, Errorf(MissingDependencyError, op, "queue is absent")
	}
	drv := d.Driver()

	fence, err := drv.CreateFence(d.Device, cfg.FenceSignaled)
	if err != nil {
		return nil, classify(ResourceCreationFailure, op, err)
	}
	d.Lifecycle().Track(fence, d.Device)

	if cfg.FenceSignaled {
		if err := drv.ResetFence(d.Device, fence); err != nil {
			return nil, classify(SubmissionError, op, err)
		}
	}

	if err := drv.QueueSubmit(d.Queue, SubmitInfo{
		CommandBuffers: []Object{frame.CommandBuffer},
	}, fence); err != nil {
		return nil, classify(SubmissionError, op, err)
	}

	s := &Submission{
		Fence: fence,
		Frame: frame,
		dc:    d,
		cfg:   cfg,
	}
	d.Lifecycle().addSubmission(s)
	d.log().WithField("stage", "submit").Info("frame submitted")
	return s, nil
}

// SubmitAndWait submits frame and blocks until it completes.
func (d *DeviceContext) SubmitAndWait(ctx context.Context, frame *Frame, cfg SyncConfiguration) (*Submission, error) {
	s, err := d.Submit(frame, cfg)
	if err != nil {
		return nil, err
	}
	return s, s.Wait(ctx)
}

// Completed polls the fence without blocking.
func (s *Submission) Completed() (bool, error) {
	if s.done {
		return true, nil
	}
	signaled, err := s.dc.Driver().FenceSignaled(s.dc.Device, s.Fence)
	if err != nil {
		return false, classify(SubmissionError, "core.Submission.Completed", err)
	}
	s.done = signaled
	return signaled, nil
}

// Wait blocks until the fence signals. A zero timeout with a context
// that cannot be cancelled waits in one unbounded call; otherwise the
// wait is cut into poll intervals so the timeout and ctx are honoured.
func (s *Submission) Wait(ctx context.Context) error {
	const op = "core.Submission.Wait"
	if s.done {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	drv := s.dc.Driver()
	timeout := time.Duration(s.cfg.Timeout)
	start := time.Now()

	if timeout == 0 && ctx.Done() == nil {
		if err := drv.WaitForFence(s.dc.Device, s.Fence, Infinite); err != nil {
			return classify(SubmissionError, op, err)
		}
		s.finish(start)
		return nil
	}

	poll := time.Duration(s.cfg.PollInterval)
	if poll <= 0 {
		poll = defaultPollInterval
	}
	for {
		if err := ctx.Err(); err != nil {
			return Wrap(SyncTimeoutError, op, err)
		}
		slice := poll
		if timeout > 0 {
			remaining := timeout - time.Since(start)
			if remaining <= 0 {
				return Errorf(SyncTimeoutError, op, "fence not signaled after %s", timeout)
			}
			if remaining < slice {
				slice = remaining
			}
		}

		err := drv.WaitForFence(s.dc.Device, s.Fence, slice)
		if err == nil {
			s.finish(start)
			return nil
		}
		if !IsKind(err, SyncTimeoutError) {
			return classify(SubmissionError, op, err)
		}
	}
}

func (s *Submission) finish(start time.Time) {
	s.done = true
	s.dc.log().WithFields(logrus.Fields{
		"stage":   "wait",
		"elapsed": time.Since(start),
	}).Info("fence signaled")
}

func (s *Submission) references(obj Object) bool {
	if obj == s.Fence {
		return true
	}
	if s.Frame == nil {
		return false
	}
	for _, ref := range s.Frame.References() {
		if ref == obj {
			return true
		}
	}
	return false
}
