package audio

import "sync"

// FakeContext is an in-memory Context for tests. It hands out FakeCapture
// devices and can be told to fail acquisition.
type FakeContext struct {
	AcquireErr error
	StartErr   error

	mu       sync.Mutex
	captures []*FakeCapture
}

func NewFakeContext() *FakeContext { return &FakeContext{} }

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake mic"}}, nil
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ Constraints) (CaptureDevice, error) {
	if f.AcquireErr != nil {
		return nil, f.AcquireErr
	}
	c := &FakeCapture{startErr: f.StartErr}
	f.mu.Lock()
	f.captures = append(f.captures, c)
	f.mu.Unlock()
	return c, nil
}

func (f *FakeContext) Close() {}

// Captures returns every device this context has handed out.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

// FakeCapture records lifecycle calls and lets tests push PCM into the
// registered callback.
type FakeCapture struct {
	startErr error

	mu       sync.Mutex
	cb       DataCallback
	started  bool
	stops    int
	closes   int
}

func (c *FakeCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.started = true
	return nil
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	c.started = false
	c.stops++
	c.mu.Unlock()
}

func (c *FakeCapture) Close() {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
}

func (c *FakeCapture) SetCallback(cb DataCallback) {
	c.mu.Lock()
	c.cb = cb
	c.mu.Unlock()
}

func (c *FakeCapture) ClearCallback() {
	c.mu.Lock()
	c.cb = nil
	c.mu.Unlock()
}

func (c *FakeCapture) DeviceName() string { return "fake mic" }

// Push delivers PCM to the callback as the real device would.
func (c *FakeCapture) Push(pcm []byte) {
	c.mu.Lock()
	cb := c.cb
	c.mu.Unlock()
	if cb != nil {
		cb(pcm, uint32(len(pcm)/2))
	}
}

// Stops reports how many times Stop was called.
func (c *FakeCapture) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}

// Closes reports how many times Close was called.
func (c *FakeCapture) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// CallbackSet reports whether a callback is currently registered.
func (c *FakeCapture) CallbackSet() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cb != nil
}
