package audio

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

const (
	// DefaultQueueSize is the number of capture callbacks that may be
	// buffered between the device thread and the collector.
	DefaultQueueSize = 256
	// DefaultStopTimeout bounds how long Stop waits for the collector to
	// drain before returning what it has.
	DefaultStopTimeout = 2 * time.Second
)

// Capture is the result of one recording.
type Capture struct {
	Samples    []float32 // mono
	SampleRate int
	// Dropped counts device buffers discarded because the queue was full.
	Dropped int
	// Truncated is set when the collector did not finish draining within
	// the stop timeout; Samples then holds whatever had been collected.
	Truncated bool
}

// Recorder captures audio from the default microphone. Device callbacks hand
// copies of each buffer to a bounded queue; a collector goroutine owns the
// growing sample slice.
type Recorder struct {
	ctx        *malgo.AllocatedContext
	sampleRate uint32
	channels   uint32
	queueSize  int

	mu     sync.Mutex
	device *malgo.Device
	col    *collector
}

// NewRecorder creates a new audio recorder. Call Close() when done.
func NewRecorder(sampleRate, channels uint32) (*Recorder, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}

	return &Recorder{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		queueSize:  DefaultQueueSize,
	}, nil
}

// Start begins capturing audio from the default microphone.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.col != nil {
		r.mu.Unlock()
		return fmt.Errorf("already recording")
	}
	col := newCollector(r.queueSize)
	r.col = col
	r.mu.Unlock()

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = r.channels
	deviceCfg.SampleRate = r.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, frameCount uint32) {
			if !col.push(bytesToFloat32(pSample, frameCount*r.channels)) {
				slog.Debug("capture queue full, dropping buffer")
			}
		},
	}

	device, err := malgo.InitDevice(r.ctx.Context, deviceCfg, callbacks)
	if err != nil {
		r.abort(col)
		return fmt.Errorf("initializing capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		r.abort(col)
		return fmt.Errorf("starting capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.mu.Unlock()

	return nil
}

func (r *Recorder) abort(col *collector) {
	col.finish(0)
	r.mu.Lock()
	r.col = nil
	r.mu.Unlock()
}

// Stop ends the capture: the device is torn down first so no callback can
// fire afterwards, then the collector drains the queue and is joined with
// the given timeout. It returns a zero Capture when not recording.
func (r *Recorder) Stop(timeout time.Duration) Capture {
	r.mu.Lock()
	col := r.col
	device := r.device
	r.col = nil
	r.device = nil
	r.mu.Unlock()

	if col == nil {
		return Capture{}
	}
	if device != nil {
		device.Uninit()
	}

	samples, truncated := col.finish(timeout)
	if truncated {
		slog.Warn("capture collector did not stop in time, recording may be truncated", "timeout", timeout)
	}

	if r.channels > 1 {
		samples = (&decoded{samples: samples, channels: int(r.channels)}).mono()
	}

	return Capture{
		Samples:    samples,
		SampleRate: int(r.sampleRate),
		Dropped:    col.droppedCount(),
		Truncated:  truncated,
	}
}

// IsRecording returns whether the recorder is currently capturing audio.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.col != nil
}

// Close releases all audio resources.
func (r *Recorder) Close() error {
	if r.IsRecording() {
		r.Stop(DefaultStopTimeout)
	}

	if r.ctx != nil {
		if err := r.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninitializing audio context: %w", err)
		}
		r.ctx.Free()
		r.ctx = nil
	}

	return nil
}

// collector accumulates capture buffers delivered over a bounded channel.
type collector struct {
	chunks  chan []float32
	stop    chan struct{}
	done    chan struct{}
	dropped atomic.Int64

	mu  sync.Mutex
	buf []float32

	// onAppend, when set, runs before each chunk is appended.
	onAppend func()
}

func newCollector(queueSize int) *collector {
	return newCollectorWithHook(queueSize, nil)
}

func newCollectorWithHook(queueSize int, onAppend func()) *collector {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	c := &collector{
		chunks:   make(chan []float32, queueSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		onAppend: onAppend,
	}
	go c.run()
	return c
}

// push enqueues a chunk without blocking the device thread. It reports
// false when the queue is full and the chunk was dropped.
func (c *collector) push(chunk []float32) bool {
	select {
	case c.chunks <- chunk:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (c *collector) run() {
	defer close(c.done)
	for {
		select {
		case chunk := <-c.chunks:
			c.append(chunk)
		case <-c.stop:
			for {
				select {
				case chunk := <-c.chunks:
					c.append(chunk)
				default:
					return
				}
			}
		}
	}
}

func (c *collector) append(chunk []float32) {
	if c.onAppend != nil {
		c.onAppend()
	}
	c.mu.Lock()
	c.buf = append(c.buf, chunk...)
	c.mu.Unlock()
}

// finish signals stop and waits up to timeout for the drain to complete.
// It returns a copy of the collected samples and whether the wait timed out.
func (c *collector) finish(timeout time.Duration) ([]float32, bool) {
	close(c.stop)

	truncated := false
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-c.done:
		case <-timer.C:
			truncated = true
		}
	} else {
		select {
		case <-c.done:
		default:
			truncated = true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float32, len(c.buf))
	copy(out, c.buf)
	return out, truncated
}

func (c *collector) droppedCount() int {
	return int(c.dropped.Load())
}

// bytesToFloat32 converts raw bytes (little-endian float32) to a float32 slice.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
