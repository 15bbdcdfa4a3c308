package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// Format identifies a supported audio container
type Format string

const (
	FormatWAV Format = "wav"
	FormatMP3 Format = "mp3"
)

// streamBufferSize is the number of stereo frames pulled from a decoder per call
const streamBufferSize = 4096

// Loader decodes audio files into mono waveforms at a fixed analysis rate
type Loader struct {
	sampleRate int
	quality    int
	logger     *slog.Logger
}

// NewLoader creates a loader that resamples everything to sampleRate
func NewLoader(sampleRate, quality int, logger *slog.Logger) (*Loader, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	if quality < 1 || quality > 64 {
		return nil, fmt.Errorf("resample quality must be between 1 and 64, got %d", quality)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Loader{
		sampleRate: sampleRate,
		quality:    quality,
		logger:     logger,
	}, nil
}

// SampleRate returns the analysis sample rate
func (l *Loader) SampleRate() int {
	return l.sampleRate
}

// Load reads and decodes the file at path
func (l *Loader) Load(path string) (*Waveform, *SourceInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, &DecodeError{Path: path, Err: err}
	}

	w, info, err := l.Decode(data)
	if err != nil {
		var derr *DecodeError
		if errors.As(err, &derr) {
			derr.Path = path
		}
		return nil, nil, err
	}

	l.logger.Debug("Audio decoded",
		slog.String("path", path),
		slog.String("format", string(info.Format)),
		slog.Int("source_sample_rate", info.SampleRate),
		slog.Int("channels", info.Channels),
		slog.Int("samples", len(w.Samples)),
		slog.Float64("duration_seconds", w.Duration()),
	)

	return w, info, nil
}

// LoadReader decodes audio read in full from r
func (l *Loader) LoadReader(r io.Reader) (*Waveform, *SourceInfo, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, &DecodeError{Err: fmt.Errorf("read input: %w", err)}
	}
	return l.Decode(data)
}

// Decode decodes an in-memory WAV or MP3 file
func (l *Loader) Decode(data []byte) (*Waveform, *SourceInfo, error) {
	if len(data) == 0 {
		return nil, nil, &DecodeError{Err: errors.New("empty input")}
	}

	format, err := DetectFormat(data)
	if err != nil {
		return nil, nil, &DecodeError{Err: err}
	}

	var (
		streamer beep.StreamSeekCloser
		bf       beep.Format
	)
	switch format {
	case FormatWAV:
		streamer, bf, err = wav.Decode(bytes.NewReader(data))
	case FormatMP3:
		streamer, bf, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	}
	if err != nil {
		return nil, nil, &DecodeError{Err: fmt.Errorf("%s: %w", format, err)}
	}
	defer streamer.Close()

	if bf.SampleRate <= 0 {
		return nil, nil, &DecodeError{Err: fmt.Errorf("invalid source sample rate: %d", bf.SampleRate)}
	}

	samples, err := l.readMono(streamer, bf.SampleRate, pcmGain(format, bf.Precision))
	if err != nil {
		return nil, nil, &DecodeError{Err: err}
	}

	if len(samples) == 0 {
		return nil, nil, &DecodeError{Err: errors.New("no audio samples found")}
	}

	info := &SourceInfo{
		Format:     format,
		SampleRate: int(bf.SampleRate),
		Channels:   bf.NumChannels,
		Precision:  bf.Precision,
		SizeBytes:  len(data),
	}
	w := &Waveform{Samples: samples, SampleRate: l.sampleRate}
	info.Duration = w.Duration()

	return w, info, nil
}

// pcmGain returns the factor that brings decoded samples back to full scale.
// beep's WAV decoder divides signed 16 and 24 bit PCM by the unsigned range
// (2^n - 1), which leaves them at half amplitude. 8 bit and MP3 are already
// full scale.
func pcmGain(format Format, precision int) float64 {
	if format != FormatWAV {
		return 1
	}

	switch precision {
	case 2:
		return float64(1<<16-1) / (1 << 15)
	case 3:
		return float64(1<<24-1) / (1 << 23)
	default:
		return 1
	}
}

// readMono drains s, resampling to the analysis rate and averaging the two channels.
// beep duplicates mono sources into both channels, so averaging is exact for them.
func (l *Loader) readMono(s beep.Streamer, source beep.SampleRate, gain float64) ([]float64, error) {
	var stream beep.Streamer = s
	if int(source) != l.sampleRate {
		stream = beep.Resample(l.quality, source, beep.SampleRate(l.sampleRate), s)
	}

	buf := make([][2]float64, streamBufferSize)
	samples := make([]float64, 0, streamBufferSize)

	for {
		n, ok := stream.Stream(buf)
		for i := 0; i < n; i++ {
			samples = append(samples, (buf[i][0]+buf[i][1])/2*gain)
		}
		if !ok {
			break
		}
	}

	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("stream audio: %w", err)
	}

	return samples, nil
}

// DetectFormat identifies the container from its leading bytes
func DetectFormat(data []byte) (Format, error) {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return FormatWAV, nil
	}

	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return FormatMP3, nil
	}

	// MPEG audio frame sync: 11 set bits
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return FormatMP3, nil
	}

	return "", ErrUnsupportedFormat
}
