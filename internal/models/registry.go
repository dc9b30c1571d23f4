// Package models names the whisper.cpp model sizes, where their weights
// live, and the key a loaded model instance is cached under.
package models

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Size is a whisper model size.
type Size string

const (
	Tiny    Size = "tiny"
	Base    Size = "base"
	Small   Size = "small"
	Medium  Size = "medium"
	Large   Size = "large"
	LargeV2 Size = "large-v2"
)

// Sizes lists every supported size, smallest first.
var Sizes = []Size{Tiny, Base, Small, Medium, Large, LargeV2}

const huggingFaceBase = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// ggml weight files per size. "large" tracks the newest large release.
var weights = map[Size]string{
	Tiny:    "ggml-tiny.bin",
	Base:    "ggml-base.bin",
	Small:   "ggml-small.bin",
	Medium:  "ggml-medium.bin",
	Large:   "ggml-large-v3.bin",
	LargeV2: "ggml-large-v2.bin",
}

// ParseSize validates s as a model size. Matching is case-insensitive.
func ParseSize(s string) (Size, error) {
	size := Size(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := weights[size]; !ok {
		return "", fmt.Errorf("models: unknown model size %q (valid: tiny, base, small, medium, large, large-v2)", s)
	}
	return size, nil
}

// FileName returns the ggml weight file name for the size.
func (s Size) FileName() string { return weights[s] }

// URL returns the download URL for the size's weights.
func (s Size) URL() string { return huggingFaceBase + weights[s] }

// PathFor returns where the weights for size are stored under dir.
func PathFor(dir string, size Size) string {
	return filepath.Join(dir, size.FileName())
}

// Device is where a model runs.
type Device string

const (
	CPU Device = "cpu"
	GPU Device = "gpu"
)

// Precision is the compute precision of a loaded model.
type Precision string

const (
	FP32 Precision = "fp32"
	FP16 Precision = "fp16"
)

// Key identifies one loaded model instance.
type Key struct {
	Size      Size
	Device    Device
	Precision Precision
}

// NewKey builds the key for size on device. Half precision is used only on
// an accelerator; there is no user override.
func NewKey(size Size, device Device) Key {
	p := FP32
	if device == GPU {
		p = FP16
	}
	return Key{Size: size, Device: device, Precision: p}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Size, k.Device, k.Precision)
}

// gpuProbe reports whether a CUDA-capable driver is present.
var gpuProbe = probeNVIDIA

// DetectDevice resolves a configured device preference. "auto" (or empty)
// picks gpu when an NVIDIA driver is visible, cpu otherwise.
func DetectDevice(pref string) (Device, error) {
	switch strings.ToLower(pref) {
	case "cpu":
		return CPU, nil
	case "gpu", "cuda":
		return GPU, nil
	case "", "auto":
		if gpuProbe() {
			return GPU, nil
		}
		return CPU, nil
	default:
		return "", fmt.Errorf("models: unknown device %q (valid: auto, cpu, gpu)", pref)
	}
}

func probeNVIDIA() bool {
	if _, err := os.Stat("/proc/driver/nvidia/version"); err == nil {
		return true
	}
	if path, err := exec.LookPath("nvidia-smi"); err == nil {
		return exec.Command(path, "-L").Run() == nil
	}
	return false
}
