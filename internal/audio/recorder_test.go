package audio

import (
	"encoding/binary"
	"math"
	"sync"
	"testing"
	"time"
)

func TestNewRecorderAndClose(t *testing.T) {
	r, err := NewRecorder(16000, 1)
	if err != nil {
		t.Skipf("no audio backend available: %v", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	}()

	if r.sampleRate != 16000 {
		t.Errorf("sampleRate = %d, want 16000", r.sampleRate)
	}
	if r.IsRecording() {
		t.Error("IsRecording() should be false after creation")
	}
}

func TestStopWithoutStart(t *testing.T) {
	r, err := NewRecorder(16000, 1)
	if err != nil {
		t.Skipf("no audio backend available: %v", err)
	}
	defer func() { _ = r.Close() }()

	c := r.Stop(DefaultStopTimeout)
	if c.Samples != nil || c.Truncated || c.Dropped != 0 {
		t.Errorf("Stop() without Start() = %+v, want zero Capture", c)
	}
}

func TestCollectorCollectsInOrder(t *testing.T) {
	c := newCollector(8)
	c.push([]float32{1, 2})
	c.push([]float32{3})
	c.push([]float32{4, 5})

	got, truncated := c.finish(time.Second)
	if truncated {
		t.Error("finish() reported truncation")
	}
	want := []float32{1, 2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if c.droppedCount() != 0 {
		t.Errorf("droppedCount() = %d, want 0", c.droppedCount())
	}
}

func TestCollectorDropsWhenFull(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	entered := make(chan struct{})
	c := newCollectorWithHook(1, func() {
		once.Do(func() { close(entered) })
		<-release
	})

	// First chunk is taken by the collector and parks in the hook.
	c.push([]float32{1})
	<-entered

	// Queue of one: the next push fits, the rest are dropped.
	if !c.push([]float32{2}) {
		t.Fatal("push() into empty queue should succeed")
	}
	for i := 0; i < 3; i++ {
		if c.push([]float32{9}) {
			t.Errorf("push() %d into full queue should fail", i)
		}
	}
	if c.droppedCount() != 3 {
		t.Errorf("droppedCount() = %d, want 3", c.droppedCount())
	}

	close(release)
	got, truncated := c.finish(time.Second)
	if truncated {
		t.Error("finish() reported truncation")
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("collected = %v, want [1 2]", got)
	}
}

func TestCollectorFinishTimesOut(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	c := newCollectorWithHook(4, func() {
		once.Do(func() { close(entered) })
		<-release
	})
	defer close(release)

	c.push([]float32{1})
	<-entered

	start := time.Now()
	got, truncated := c.finish(20 * time.Millisecond)
	if !truncated {
		t.Error("finish() should report truncation while the collector is blocked")
	}
	if time.Since(start) > time.Second {
		t.Error("finish() did not respect its timeout")
	}
	if len(got) != 0 {
		t.Errorf("collected = %v, want nothing yet", got)
	}
}

func TestBytesToFloat32(t *testing.T) {
	values := []float32{0.0, 0.5, -0.5, 1.0, -1.0}
	data := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
	}

	result := bytesToFloat32(data, uint32(len(values)))
	if len(result) != len(values) {
		t.Fatalf("bytesToFloat32() returned %d samples, want %d", len(result), len(values))
	}
	for i, want := range values {
		if result[i] != want {
			t.Errorf("sample[%d] = %f, want %f", i, result[i], want)
		}
	}
}

func TestBytesToFloat32ShortBuffer(t *testing.T) {
	data := make([]byte, 6)
	result := bytesToFloat32(data, 2)
	if len(result) != 1 {
		t.Errorf("bytesToFloat32() with short buffer returned %d samples, want 1", len(result))
	}
}
