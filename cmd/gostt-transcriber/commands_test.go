package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chaz8081/gostt-transcriber/internal/audio"
	"github.com/chaz8081/gostt-transcriber/internal/config"
)

func testApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	cfg.StorageDir = t.TempDir()
	return &app{cfg: cfg}
}

func TestRunUnknownCommand(t *testing.T) {
	a := testApp(t)
	if err := a.run(context.Background(), "dance", nil); !errors.Is(err, errUsage) {
		t.Errorf("err = %v, want errUsage", err)
	}
}

func TestRunArgumentChecks(t *testing.T) {
	a := testApp(t)
	cases := [][]string{
		{"analyze"},
		{"recognize", "a.wav", "b.wav"},
		{"models"},
		{"models", "fetch", "tiny"},
		{"score", "only-one.txt"},
		{"transcribe"},
	}
	for _, c := range cases {
		if err := a.run(context.Background(), c[0], c[1:]); !errors.Is(err, errUsage) {
			t.Errorf("%v: err = %v, want errUsage", c, err)
		}
	}
}

func TestCmdScore(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref.txt")
	hyp := filepath.Join(dir, "hyp.txt")
	if err := os.WriteFile(ref, []byte("the quick brown fox"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(hyp, []byte("the quick brown fox"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := cmdScore([]string{ref, hyp}); err != nil {
		t.Errorf("cmdScore: %v", err)
	}
	if err := cmdScore([]string{ref, filepath.Join(dir, "missing.txt")}); err == nil {
		t.Error("expected error for missing transcript")
	}
}

func TestSaveRecordingNeverOverwrites(t *testing.T) {
	a := testApp(t)
	capture := audio.Capture{Samples: make([]float32, 1600), SampleRate: 16000}

	first, err := a.saveRecording(capture)
	if err != nil {
		t.Fatalf("saveRecording: %v", err)
	}
	second, err := a.saveRecording(capture)
	if err != nil {
		t.Fatalf("saveRecording: %v", err)
	}
	if first == second {
		t.Fatalf("second recording reused %s", first)
	}
	for _, p := range []string{first, second} {
		if !strings.HasPrefix(filepath.Base(p), "recording_") {
			t.Errorf("unexpected name %s", p)
		}
		buf, err := audio.Load(p, 16000)
		if err != nil {
			t.Fatalf("Load %s: %v", p, err)
		}
		if len(buf.Samples) != 1600 {
			t.Errorf("%s: %d samples, want 1600", p, len(buf.Samples))
		}
	}
}

func TestWaitForEnter(t *testing.T) {
	done := make(chan struct{})
	go func() {
		waitForEnter(context.Background(), strings.NewReader("\n"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waitForEnter did not return on newline")
	}

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = r.Close(); _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	waitForEnter(ctx, r)
}

func TestCheckCaptureLength(t *testing.T) {
	a := testApp(t)
	a.cfg.AudioSettings.MinDuration = 1

	tests := []struct {
		name    string
		samples int
		wantErr bool
	}{
		{"empty", 0, true},
		{"too short", 8000, true},
		{"exactly min", 16000, false},
		{"long", 48000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.checkCaptureLength(audio.Capture{Samples: make([]float32, tt.samples), SampleRate: 16000})
			if (err != nil) != tt.wantErr {
				t.Errorf("checkCaptureLength() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
