// Package nativetest provides an in-memory native backend for tests. It
// counts every acquire and release so lifecycle discipline can be asserted.
package nativetest

import (
	"fmt"
	"sync"

	"github.com/screenpad/screenpad/internal/cerror"
	"github.com/screenpad/screenpad/internal/native"
)

// FakeTarget is the fake's target handle.
type FakeTarget struct {
	ID        int
	Name      string
	Geom      native.Geometry
	destroyed bool
}

// FakeDisplay is the fake's display handle.
type FakeDisplay struct {
	closed bool
}

// FakeSession is the fake's session handle.
type FakeSession struct {
	target  *FakeTarget
	stopped bool
}

// FakeAPI implements native.API entirely in memory.
type FakeAPI struct {
	mu sync.Mutex

	// Failure injection. Errors are returned on every matching call until
	// cleared.
	OpenErr        *cerror.CError
	CapturablesErr *cerror.CError
	GeometryErr    *cerror.CError
	BeforeInputErr *cerror.CError
	StartErr       *cerror.CError
	CaptureErr     *cerror.CError
	MapErr         *cerror.CError

	// NumTargets is how many targets an enumeration yields.
	NumTargets int
	// Frame served by CaptureFrame.
	FrameWidth  uint32
	FrameHeight uint32
	FramePixel  byte

	// Counters.
	OpenCount        int
	CloseCount       int
	EnumerateCount   int
	CloneCount       int
	DestroyCount     int
	StartCount       int
	StopCount        int
	CaptureCount     int
	BeforeInputCount int
	MappedDevices    []string

	// Calls records the order of native calls.
	Calls []string

	targetsCreated int
}

var _ native.API = (*FakeAPI)(nil)

// NewFakeAPI returns a fake serving three 4x2 targets.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		NumTargets:  3,
		FrameWidth:  4,
		FrameHeight: 2,
		FramePixel:  0x40,
	}
}

func (f *FakeAPI) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakeAPI) OpenDisplay() (native.Display, *cerror.CError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("OpenDisplay")
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.OpenCount++
	return &FakeDisplay{}, nil
}

func (f *FakeAPI) CloseDisplay(d native.Display) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CloseDisplay")
	disp := d.(*FakeDisplay)
	if disp.closed {
		panic("nativetest: display closed twice")
	}
	disp.closed = true
	f.CloseCount++
}

func (f *FakeAPI) Capturables(d native.Display, max int) ([]native.Target, *cerror.CError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("Capturables")
	f.EnumerateCount++
	if f.CapturablesErr != nil {
		return nil, f.CapturablesErr
	}
	n := f.NumTargets
	if n > max {
		n = max
	}
	targets := make([]native.Target, 0, n)
	f.targetsCreated += n
	for i := 0; i < n; i++ {
		targets = append(targets, &FakeTarget{
			ID:   i,
			Name: fmt.Sprintf("target-%d", i),
			Geom: native.Geometry{X: 0.25, Y: 0.25, Width: 0.5, Height: 0.5},
		})
	}
	return targets, nil
}

func (f *FakeAPI) CloneTarget(t native.Target) native.Target {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CloneTarget")
	f.CloneCount++
	f.targetsCreated++
	dup := *t.(*FakeTarget)
	dup.destroyed = false
	return &dup
}

func (f *FakeAPI) DestroyTarget(t native.Target) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("DestroyTarget")
	target := t.(*FakeTarget)
	if target.destroyed {
		panic("nativetest: target destroyed twice")
	}
	target.destroyed = true
	f.DestroyCount++
}

func (f *FakeAPI) TargetName(t native.Target) string {
	return t.(*FakeTarget).Name
}

func (f *FakeAPI) TargetGeometry(t native.Target) (native.Geometry, *cerror.CError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("TargetGeometry")
	if f.GeometryErr != nil {
		return native.Geometry{}, f.GeometryErr
	}
	return t.(*FakeTarget).Geom, nil
}

func (f *FakeAPI) BeforeInput(t native.Target) *cerror.CError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("BeforeInput")
	f.BeforeInputCount++
	return f.BeforeInputErr
}

func (f *FakeAPI) StartSession(t native.Target) (native.Session, *cerror.CError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StartSession")
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	f.StartCount++
	return &FakeSession{target: t.(*FakeTarget)}, nil
}

func (f *FakeAPI) CaptureFrame(s native.Session, img *native.Image, captureCursor bool) *cerror.CError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CaptureFrame")
	f.CaptureCount++
	if f.CaptureErr != nil {
		return f.CaptureErr
	}
	need := int(f.FrameWidth) * int(f.FrameHeight) * 4
	if cap(img.Data) < need {
		img.Data = make([]byte, need)
	} else {
		img.Data = img.Data[:need]
	}
	for i := range img.Data {
		img.Data[i] = f.FramePixel
	}
	img.Width = f.FrameWidth
	img.Height = f.FrameHeight
	return nil
}

func (f *FakeAPI) StopSession(s native.Session) *cerror.CError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("StopSession")
	sess := s.(*FakeSession)
	if sess.stopped {
		panic("nativetest: session stopped twice")
	}
	sess.stopped = true
	f.StopCount++
	return nil
}

func (f *FakeAPI) MapDeviceToScreen(d native.Display, deviceName string, pen bool) *cerror.CError {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("MapDeviceToScreen")
	if f.MapErr != nil {
		return f.MapErr
	}
	f.MappedDevices = append(f.MappedDevices, deviceName)
	return nil
}

// CapturesDone returns the capture count; safe to poll from another
// goroutine.
func (f *FakeAPI) CapturesDone() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CaptureCount
}

// DisplaysOpen returns how many display connections are currently open.
func (f *FakeAPI) DisplaysOpen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.OpenCount - f.CloseCount
}

// TargetsAlive returns how many target handles have not been destroyed.
func (f *FakeAPI) TargetsAlive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targetsCreated - f.DestroyCount
}
