package recognize

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	vosk "github.com/alphacep/vosk-api/go"
)

// Vosk is an offline recognizer backed by a Vosk model directory.
type Vosk struct {
	mu         sync.Mutex
	model      *vosk.VoskModel
	recognizer *vosk.VoskRecognizer
}

type voskResult struct {
	Text string `json:"text"`
}

// NewVosk loads the Vosk model at modelPath.
func NewVosk(modelPath string) (*Vosk, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("recognize: vosk model not found: %s", modelPath)
	}

	model, err := vosk.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("recognize: loading vosk model: %w", err)
	}

	rec, err := vosk.NewRecognizer(model, float64(SampleRate))
	if err != nil {
		model.Free()
		return nil, fmt.Errorf("recognize: creating vosk recognizer: %w", err)
	}

	return &Vosk{model: model, recognizer: rec}, nil
}

func (v *Vosk) Name() string { return "vosk" }

// Recognize feeds the whole clip as 16-bit PCM and returns the final result.
func (v *Vosk) Recognize(_ context.Context, clip *Clip) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.recognizer == nil {
		return "", fmt.Errorf("recognize: vosk recognizer is closed")
	}

	v.recognizer.AcceptWaveform(pcm16(clip.Samples))
	resultJSON := v.recognizer.FinalResult()
	v.recognizer.Reset()

	var result voskResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return "", fmt.Errorf("recognize: vosk result: %w", err)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", ErrUnintelligible
	}
	return text, nil
}

// Close releases the recognizer and model.
func (v *Vosk) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.recognizer != nil {
		v.recognizer.Free()
		v.recognizer = nil
	}
	if v.model != nil {
		v.model.Free()
		v.model = nil
	}
}

// pcm16 converts float32 [-1, 1] samples to little-endian int16 bytes.
func pcm16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*math.MaxInt16)))
	}
	return out
}
