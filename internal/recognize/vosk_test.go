package recognize

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func voskModelPath(t *testing.T) string {
	t.Helper()
	path := os.Getenv("GOSTT_TEST_VOSK_MODEL")
	if path == "" {
		path = filepath.Join("..", "..", "models", "vosk-model-small-en-us-0.15")
	}
	if _, err := os.Stat(path); err != nil {
		t.Skipf("vosk model not found at %s", path)
	}
	return path
}

func TestNewVoskMissingModel(t *testing.T) {
	if _, err := NewVosk(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing model dir")
	}
}

func TestVoskSilenceIsUnintelligible(t *testing.T) {
	v, err := NewVosk(voskModelPath(t))
	if err != nil {
		t.Fatalf("NewVosk: %v", err)
	}
	defer v.Close()

	clip := &Clip{Samples: make([]float32, SampleRate)}
	if _, err := v.Recognize(context.Background(), clip); err != ErrUnintelligible {
		t.Errorf("err = %v, want ErrUnintelligible", err)
	}
}

func TestVoskClosed(t *testing.T) {
	v := &Vosk{}
	if _, err := v.Recognize(context.Background(), testClip); err == nil {
		t.Error("expected error from closed recognizer")
	}
	v.Close()
}

func TestPCM16(t *testing.T) {
	got := pcm16([]float32{0, 1, -1, 2, -2, 0.5})
	want := []int16{0, 32767, -32767, 32767, -32767, 16383}
	if len(got) != len(want)*2 {
		t.Fatalf("len = %d, want %d", len(got), len(want)*2)
	}
	for i, w := range want {
		if s := int16(binary.LittleEndian.Uint16(got[i*2:])); s != w {
			t.Errorf("sample %d = %d, want %d", i, s, w)
		}
	}
}
