package core

import (
	"sort"

	"github.com/sirupsen/logrus"
)

// releaseRank orders destruction, lower ranks go first.
var releaseRank = map[ObjectKind]int{
	ObjectFence:          0,
	ObjectCommandBuffer:  1,
	ObjectFramebuffer:    2,
	ObjectPipeline:       3,
	ObjectPipelineLayout: 4,
	ObjectShaderModule:   5,
	ObjectBuffer:         6,
	ObjectMemory:         7,
	ObjectSemaphore:      8,
	ObjectImageView:      9,
	ObjectRenderPass:     10,
	ObjectCommandPool:    11,
	ObjectDevice:         12,
	ObjectInstance:       13,
}

// lastFrameRank is the highest rank whose lifetime ends with the frame.
const lastFrameRank = 8

type tracked struct {
	obj      Object
	device   Object
	deps     []Object
	seq      int
	released bool
}

func (t *tracked) dependsOn(obj Object) bool {
	if t.device == obj {
		return true
	}
	for _, dep := range t.deps {
		if dep == obj {
			return true
		}
	}
	return false
}

// Lifecycle owns every object created for a frame and destroys them in
// dependency-safe order. Objects still referenced by a submission whose
// fence has not signaled are never destroyed.
type Lifecycle struct {
	driver Driver
	log    *logrus.Entry

	objects     []*tracked
	submissions []*Submission
	released    []Object
	seq         int
}

// NewLifecycle creates an empty tracker.
func NewLifecycle(driver Driver, log *logrus.Entry) *Lifecycle {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Lifecycle{
		driver: driver,
		log:    log,
	}
}

// Track takes ownership of obj. device is the device it was created
// on and deps are further objects that must outlive it. Absent
// objects are ignored.
func (l *Lifecycle) Track(obj Object, device Object, deps ...Object) {
	if !obj.Valid() || l.find(obj) != nil {
		return
	}
	l.seq++
	l.objects = append(l.objects, &tracked{
		obj:    obj,
		device: device,
		deps:   deps,
		seq:    l.seq,
	})
}

// Live reports whether obj is tracked and not yet released.
func (l *Lifecycle) Live(obj Object) bool {
	return l.find(obj) != nil
}

// Released returns the objects destroyed so far, in order.
func (l *Lifecycle) Released() []Object {
	return append([]Object(nil), l.released...)
}

func (l *Lifecycle) find(obj Object) *tracked {
	for _, t := range l.objects {
		if !t.released && t.obj == obj {
			return t
		}
	}
	return nil
}

func (l *Lifecycle) addSubmission(s *Submission) {
	l.submissions = append(l.submissions, s)
}

// InFlight reports whether any submission has not completed yet.
func (l *Lifecycle) InFlight() (bool, error) {
	for _, s := range l.submissions {
		done, err := s.Completed()
		if err != nil {
			return false, err
		}
		if !done {
			return true, nil
		}
	}
	return false, nil
}

// busy reports whether an unfinished submission still uses obj.
func (l *Lifecycle) busy(obj Object) (bool, error) {
	for _, s := range l.submissions {
		if !s.references(obj) {
			continue
		}
		done, err := s.Completed()
		if err != nil {
			return false, err
		}
		if !done {
			return true, nil
		}
	}
	return false, nil
}

// Release destroys a single object. It is rejected while another live
// object depends on obj or an unfinished submission references it.
func (l *Lifecycle) Release(obj Object) error {
	const op = "core.Lifecycle.Release"
	t := l.find(obj)
	if t == nil {
		return Errorf(MissingDependencyError, op, "%s is not owned or already released", obj.Kind)
	}

	for _, other := range l.objects {
		if other.released || other == t {
			continue
		}
		if other.dependsOn(obj) {
			return Errorf(ResourceInUseError, op, "%s is still used by a live %s", obj.Kind, other.obj.Kind)
		}
	}

	inUse, err := l.busy(obj)
	if err != nil {
		return err
	}
	if inUse {
		return Errorf(ResourceInUseError, op, "%s is referenced by a submission that has not completed", obj.Kind)
	}

	if err := l.driver.Destroy(t.device, obj); err != nil {
		return err
	}
	t.released = true
	l.released = append(l.released, obj)
	l.log.WithField("object", obj.Kind.String()).Debug("released")
	return nil
}

// ReleaseFrame destroys everything whose lifetime ends with the frame:
// fence, command buffers, framebuffer, pipeline, pipeline layout,
// shader modules, vertex buffer and memory, semaphores.
func (l *Lifecycle) ReleaseFrame() error {
	return l.releaseUpTo(lastFrameRank)
}

// Teardown destroys every remaining object, finishing with the
// command pool, the device and the instance.
func (l *Lifecycle) Teardown() error {
	return l.releaseUpTo(len(releaseRank))
}

func (l *Lifecycle) releaseUpTo(maxRank int) error {
	var pending []*tracked
	for _, t := range l.objects {
		if !t.released && rankOf(t.obj.Kind) <= maxRank {
			pending = append(pending, t)
		}
	}

	// nothing goes while the GPU may still read any of it
	for _, t := range pending {
		inUse, err := l.busy(t.obj)
		if err != nil {
			return err
		}
		if inUse {
			return Errorf(ResourceInUseError, "core.Lifecycle.Teardown",
				"%s is referenced by a submission that has not completed", t.obj.Kind)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		ri, rj := rankOf(pending[i].obj.Kind), rankOf(pending[j].obj.Kind)
		if ri != rj {
			return ri < rj
		}
		return pending[i].seq > pending[j].seq
	})

	var firstErr error
	for _, t := range pending {
		if err := l.Release(t.obj); err != nil {
			l.log.WithError(err).WithField("object", t.obj.Kind.String()).Error("release failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func rankOf(kind ObjectKind) int {
	if r, ok := releaseRank[kind]; ok {
		return r
	}
	return len(releaseRank)
}
