package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"
)

// ffmpegTimeout bounds a single ffprobe/ffmpeg invocation.
const ffmpegTimeout = 2 * time.Minute

// decodeFile picks a decoder by file extension.
func decodeFile(path string) (*decoded, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return decodeWAV(path)
	case ".flac":
		return decodeFLAC(path)
	case ".mp3":
		return decodeMP3(path)
	default:
		return decodeFFmpeg(path)
	}
}

func decodeWAV(path string) (*decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	if dec.WavAudioFormat == 3 {
		// IEEE float payloads are not expanded by go-audio; let ffmpeg do it.
		return decodeFFmpeg(path)
	}
	if buf == nil || buf.Format == nil || buf.Format.SampleRate <= 0 || buf.Format.NumChannels <= 0 {
		return nil, errors.New("wav: missing format chunk")
	}
	if len(buf.Data) == 0 {
		return nil, errors.New("wav: no sample data")
	}

	depth := int(dec.BitDepth)
	if depth == 0 {
		depth = buf.SourceBitDepth
	}
	if depth < 8 || depth > 32 {
		return nil, fmt.Errorf("wav: unsupported bit depth %d", depth)
	}

	samples := make([]float32, len(buf.Data))
	if depth == 8 {
		// 8-bit WAV is unsigned.
		for i, s := range buf.Data {
			samples[i] = float32(s-128) / 128.0
		}
	} else {
		scale := float32(int64(1) << (depth - 1))
		for i, s := range buf.Data {
			samples[i] = float32(s) / scale
		}
	}

	return &decoded{
		samples:  samples,
		rate:     buf.Format.SampleRate,
		channels: buf.Format.NumChannels,
	}, nil
}

func decodeFLAC(path string) (*decoded, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("flac: %w", err)
	}
	defer func() { _ = stream.Close() }()

	channels := int(stream.Info.NChannels)
	depth := int(stream.Info.BitsPerSample)
	if channels <= 0 || depth <= 0 || stream.Info.SampleRate == 0 {
		return nil, errors.New("flac: invalid stream info")
	}
	scale := float32(int64(1) << (depth - 1))

	samples := make([]float32, 0, int(stream.Info.NSamples)*channels)
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("flac: frame: %w", err)
		}
		if len(frame.Subframes) < channels {
			return nil, fmt.Errorf("flac: frame has %d subframes, want %d", len(frame.Subframes), channels)
		}
		n := len(frame.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for c := 0; c < channels; c++ {
				samples = append(samples, float32(frame.Subframes[c].Samples[i])/scale)
			}
		}
	}
	if len(samples) == 0 {
		return nil, errors.New("flac: no sample data")
	}

	return &decoded{
		samples:  samples,
		rate:     int(stream.Info.SampleRate),
		channels: channels,
	}, nil
}

// decodeMP3 decodes with go-mp3, which always yields 16-bit stereo.
func decodeMP3(path string) (*decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: read: %w", err)
	}
	if len(raw) < 4 {
		return nil, errors.New("mp3: no sample data")
	}

	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(raw[i*2:]))) / 32768.0
	}

	return &decoded{
		samples:  samples,
		rate:     dec.SampleRate(),
		channels: 2,
	}, nil
}

// probeInfo is the subset of ffprobe output needed to interpret raw PCM.
type probeInfo struct {
	SampleRate int
	Channels   int
}

func ffprobeInfo(ctx context.Context, path string) (probeInfo, error) {
	out, err := exec.CommandContext(ctx, "ffprobe",
		"-v", "error", "-select_streams", "a:0", "-show_streams", "-of", "json", path).Output()
	if err != nil {
		return probeInfo{}, fmt.Errorf("ffprobe: %w", err)
	}

	var ff struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			SampleRate string `json:"sample_rate"`
			Channels   int    `json:"channels"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &ff); err != nil {
		return probeInfo{}, fmt.Errorf("ffprobe: parse: %w", err)
	}
	for _, s := range ff.Streams {
		if s.CodecType != "audio" {
			continue
		}
		rate, _ := strconv.Atoi(s.SampleRate)
		if rate <= 0 || s.Channels <= 0 {
			break
		}
		return probeInfo{SampleRate: rate, Channels: s.Channels}, nil
	}
	return probeInfo{}, errors.New("ffprobe: no audio stream")
}

func decodeFFmpeg(path string) (*decoded, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg is required to decode %s files but was not found in PATH", filepath.Ext(path))
	}

	ctx, cancel := context.WithTimeout(context.Background(), ffmpegTimeout)
	defer cancel()

	info, err := ffprobeInfo(ctx, path)
	if err != nil {
		return nil, err
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffmpeg", "-v", "error", "-nostdin", "-i", path,
		"-vn", "-f", "f32le", "-acodec", "pcm_f32le", "-")
	cmd.Stderr = &stderr
	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	if len(raw) < 4 {
		return nil, errors.New("ffmpeg: no sample data")
	}

	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}

	return &decoded{
		samples:  samples,
		rate:     info.SampleRate,
		channels: info.Channels,
	}, nil
}
