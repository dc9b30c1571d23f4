package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chaz8081/gostt-transcriber/internal/analysis"
	"github.com/chaz8081/gostt-transcriber/internal/audio"
	"github.com/chaz8081/gostt-transcriber/internal/models"
	"github.com/chaz8081/gostt-transcriber/internal/output"
	"github.com/chaz8081/gostt-transcriber/internal/recognize"
	"github.com/chaz8081/gostt-transcriber/internal/transcribe"
)

var errUsage = errors.New("usage")

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "transcribe":
		return a.cmdTranscribe(ctx, args)
	case "analyze":
		return a.cmdAnalyze(ctx, args)
	case "recognize":
		return a.cmdRecognize(ctx, args)
	case "record":
		return a.cmdRecord(ctx, args)
	case "models":
		return a.cmdModels(ctx, args)
	case "score":
		return cmdScore(args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		return errUsage
	}
}

func (a *app) cmdTranscribe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("transcribe", flag.ContinueOnError)
	size := fs.String("model", a.cfg.DefaultModel, "model size: tiny, base, small, medium, large, large-v2")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	return a.transcribeFile(ctx, fs.Arg(0), models.Size(*size))
}

func (a *app) transcribeFile(ctx context.Context, path string, size models.Size) error {
	svc := transcribe.NewService(a.cfg, a.cache, a.device, a.metrics)

	start := time.Now()
	tr, err := svc.Transcribe(ctx, path, size, func(p int) {
		fmt.Fprintf(os.Stderr, "progress: %d%%\n", p)
	})
	if err != nil {
		return err
	}

	slog.Info("transcription complete", "model", tr.Key, "elapsed", time.Since(start).Round(time.Millisecond))
	fmt.Println(tr.Text)
	if tr.Path != "" {
		fmt.Fprintf(os.Stderr, "saved: %s\n", tr.Path)
	}
	return nil
}

func (a *app) cmdAnalyze(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	report, err := analysis.New(a.cfg, a.store, a.metrics).Analyze(ctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Path != "" {
		fmt.Fprintf(os.Stderr, "saved: %s\n", report.Path)
	}
	return nil
}

func (a *app) cmdRecognize(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}

	rc := a.cfg.Recognizer
	var primary, offline recognize.Recognizer
	if rc.Endpoint != "" {
		primary = recognize.NewHosted(rc.Endpoint, rc.APIKey, rc.Model, a.cfg.Language,
			time.Duration(rc.TimeoutSeconds)*time.Second)
	}
	if rc.VoskModelPath != "" {
		v, err := recognize.NewVosk(rc.VoskModelPath)
		if err != nil {
			slog.Warn("offline recognizer unavailable", "path", rc.VoskModelPath, "error", err)
		} else {
			defer v.Close()
			offline = v
		}
	}

	text, err := recognize.NewFallback(rc, primary, offline, a.metrics).RecognizeFile(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func (a *app) cmdRecord(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	size := fs.String("model", a.cfg.DefaultModel, "model size used to transcribe the recording")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return errUsage
	}

	rate := a.cfg.AudioSettings.SampleRate
	recorder, err := audio.NewRecorder(uint32(rate), 1)
	if err != nil {
		return fmt.Errorf("initializing audio recorder: %w", err)
	}
	defer func() { _ = recorder.Close() }()

	if err := recorder.Start(); err != nil {
		return fmt.Errorf("starting recording: %w", err)
	}
	fmt.Fprintln(os.Stderr, "Recording... press Enter to stop.")

	waitForEnter(ctx, os.Stdin)
	capture := recorder.Stop(audio.DefaultStopTimeout)
	a.metrics.RecordCaptureDropped(capture.Dropped)
	if capture.Dropped > 0 {
		slog.Warn("capture dropped buffers", "dropped", capture.Dropped)
	}

	if err := a.checkCaptureLength(capture); err != nil {
		return err
	}

	path, err := a.saveRecording(capture)
	if err != nil {
		return err
	}
	buf := audio.SampleBuffer{Samples: capture.Samples, SampleRate: capture.SampleRate}
	slog.Info("recording saved", "path", path, "duration", buf.Duration().Round(100*time.Millisecond))

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return a.transcribeFile(ctx, path, models.Size(*size))
}

// checkCaptureLength rejects recordings shorter than audio_settings.min_duration.
func (a *app) checkCaptureLength(capture audio.Capture) error {
	if len(capture.Samples) == 0 || capture.SampleRate <= 0 {
		return errors.New("no audio captured")
	}
	seconds := float64(len(capture.Samples)) / float64(capture.SampleRate)
	if minSec := a.cfg.AudioSettings.MinDuration; seconds < minSec {
		return fmt.Errorf("recording too short (%.1fs, min %.1fs)", seconds, minSec)
	}
	return nil
}

// saveRecording writes capture under the audio storage dir as
// recording_<timestamp>.wav, never reusing an existing name.
func (a *app) saveRecording(capture audio.Capture) (string, error) {
	f, err := output.Create(a.cfg.AudioDir(), "recording_"+output.Timestamp(time.Now()), ".wav")
	if err != nil {
		return "", err
	}
	path := f.Name()
	_ = f.Close()

	if err := audio.WriteWAV(path, capture.Samples, capture.SampleRate); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return filepath.Clean(path), nil
}

// waitForEnter returns after a newline on r or when ctx is done.
func waitForEnter(ctx context.Context, r io.Reader) {
	done := make(chan struct{})
	go func() {
		_, _ = bufio.NewReader(r).ReadString('\n')
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (a *app) cmdModels(ctx context.Context, args []string) error {
	if len(args) != 2 || args[0] != "download" {
		return errUsage
	}
	size, err := models.ParseSize(args[1])
	if err != nil {
		return err
	}
	path, err := models.Download(ctx, a.cfg.ModelsDir, size, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("model ready: %s\n", path)
	return nil
}

func cmdScore(args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	res, err := transcribe.ScoreFiles(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Println(res)
	return nil
}
