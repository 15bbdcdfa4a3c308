package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func newTestLoader(t *testing.T, sampleRate int) *Loader {
	t.Helper()
	l, err := NewLoader(sampleRate, 4, nil)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	return l
}

func writeWAV(t *testing.T, w *Waveform) string {
	t.Helper()
	data, err := EncodeWAV(w)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "set.wav")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write WAV: %v", err)
	}
	return path
}

// stereoWAV builds a two channel 16-bit file with constant left and right levels
func stereoWAV(t *testing.T, frames int, sampleRate int, left, right int16) []byte {
	t.Helper()
	dataSize := uint32(frames * 4)
	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   2,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * 4,
		BlockAlign:    4,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		t.Fatalf("Failed to write header: %v", err)
	}
	for i := 0; i < frames; i++ {
		if err := binary.Write(&buf, binary.LittleEndian, [2]int16{left, right}); err != nil {
			t.Fatalf("Failed to write frame: %v", err)
		}
	}
	return buf.Bytes()
}

func TestNewLoaderValidation(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		quality    int
		valid      bool
	}{
		{name: "defaults", sampleRate: 22050, quality: 4, valid: true},
		{name: "zero sample rate", sampleRate: 0, quality: 4, valid: false},
		{name: "quality too low", sampleRate: 22050, quality: 0, valid: false},
		{name: "quality too high", sampleRate: 22050, quality: 65, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(tt.sampleRate, tt.quality, nil)
			if tt.valid && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestLoadWAVSameRate(t *testing.T) {
	src := sineWaveform(22050, 1.0, 440, 0.5)
	path := writeWAV(t, src)

	w, info, err := newTestLoader(t, 22050).Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(w.Samples) != len(src.Samples) {
		t.Fatalf("Expected %d samples, got %d", len(src.Samples), len(w.Samples))
	}
	if w.SampleRate != 22050 {
		t.Errorf("Expected sample rate 22050, got %d", w.SampleRate)
	}
	if w.Duration() != 1.0 {
		t.Errorf("Expected duration 1.0, got %f", w.Duration())
	}

	for i := 0; i < len(src.Samples); i += 997 {
		if math.Abs(w.Samples[i]-src.Samples[i]) > 1e-3 {
			t.Errorf("Sample %d: expected %f, got %f", i, src.Samples[i], w.Samples[i])
		}
	}

	if info.Format != FormatWAV {
		t.Errorf("Expected format wav, got %s", info.Format)
	}
	if info.Channels != 1 {
		t.Errorf("Expected 1 source channel, got %d", info.Channels)
	}
	if info.SampleRate != 22050 {
		t.Errorf("Expected source rate 22050, got %d", info.SampleRate)
	}
}

func TestLoadWAVResamples(t *testing.T) {
	src := sineWaveform(44100, 2.0, 220, 0.5)
	path := writeWAV(t, src)

	w, info, err := newTestLoader(t, 22050).Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if info.SampleRate != 44100 {
		t.Errorf("Expected source rate 44100, got %d", info.SampleRate)
	}
	if w.SampleRate != 22050 {
		t.Errorf("Expected analysis rate 22050, got %d", w.SampleRate)
	}
	if math.Abs(w.Duration()-2.0) > 0.01 {
		t.Errorf("Expected duration close to 2.0, got %f", w.Duration())
	}
}

func TestDecodeStereoDownmix(t *testing.T) {
	tests := []struct {
		name     string
		left     int16
		right    int16
		expected float64
	}{
		{name: "identical channels", left: 16384, right: 16384, expected: 0.5},
		{name: "opposite channels cancel", left: 16384, right: -16384, expected: 0},
		{name: "one silent channel", left: 16384, right: 0, expected: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := stereoWAV(t, 8000, 8000, tt.left, tt.right)

			w, info, err := newTestLoader(t, 8000).Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if info.Channels != 2 {
				t.Errorf("Expected 2 source channels, got %d", info.Channels)
			}
			if len(w.Samples) != 8000 {
				t.Fatalf("Expected 8000 samples, got %d", len(w.Samples))
			}
			for _, i := range []int{0, 4000, 7999} {
				if math.Abs(w.Samples[i]-tt.expected) > 1e-3 {
					t.Errorf("Sample %d: expected %f, got %f", i, tt.expected, w.Samples[i])
				}
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty input", data: nil},
		{name: "text file", data: []byte("these are not the samples you are looking for")},
		{name: "truncated wav", data: []byte("RIFF\x00\x00\x00\x00WAVE")},
		{name: "header without samples", data: stereoWAV(t, 0, 8000, 0, 0)},
	}

	l := newTestLoader(t, 8000)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := l.Decode(tt.data)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			var derr *DecodeError
			if !errors.As(err, &derr) {
				t.Errorf("Expected DecodeError, got %T: %v", err, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.wav")

	_, _, err := newTestLoader(t, 22050).Load(path)
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}
	if derr.Path != path {
		t.Errorf("Expected path %s, got %s", path, derr.Path)
	}
}

func TestLoadUnsupportedSetsPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.wav")
	if err := os.WriteFile(path, []byte("plain text"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	_, _, err := newTestLoader(t, 22050).Load(path)
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("Expected DecodeError, got %v", err)
	}
	if derr.Path != path {
		t.Errorf("Expected path %s, got %s", path, derr.Path)
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected Format
		valid    bool
	}{
		{name: "riff wave", data: []byte("RIFF\x24\x00\x00\x00WAVEfmt "), expected: FormatWAV, valid: true},
		{name: "id3 tag", data: []byte("ID3\x04\x00\x00"), expected: FormatMP3, valid: true},
		{name: "mpeg frame sync", data: []byte{0xFF, 0xFB, 0x90, 0x00}, expected: FormatMP3, valid: true},
		{name: "riff without wave", data: []byte("RIFF\x24\x00\x00\x00AVI "), valid: false},
		{name: "ogg", data: []byte("OggS\x00\x02"), valid: false},
		{name: "too short", data: []byte{0xFF}, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.data)
			if !tt.valid {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected format %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestLoadReader(t *testing.T) {
	data, err := EncodeWAV(sineWaveform(8000, 0.5, 300, 0.3))
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	w, _, err := newTestLoader(t, 8000).LoadReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("LoadReader failed: %v", err)
	}
	if len(w.Samples) != 4000 {
		t.Errorf("Expected 4000 samples, got %d", len(w.Samples))
	}
}

func peak(samples []float64) float64 {
	var p float64
	for _, s := range samples {
		p = math.Max(p, math.Abs(s))
	}
	return p
}

func rms(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func TestDecodeWAVFullScale(t *testing.T) {
	tests := []struct {
		name     string
		value    int16
		expected float64
	}{
		{name: "positive full scale", value: math.MaxInt16, expected: 1},
		{name: "negative full scale", value: math.MinInt16, expected: -1},
		{name: "half scale", value: 16384, expected: 0.5},
		{name: "quarter scale negative", value: -8192, expected: -0.25},
	}

	l := newTestLoader(t, 8000)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pcm := make([]int16, 800)
			for i := range pcm {
				pcm[i] = tt.value
			}
			data, err := encodePCM16(pcm, 8000)
			if err != nil {
				t.Fatalf("encodePCM16 failed: %v", err)
			}

			w, _, err := l.Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			for _, i := range []int{0, 400, 799} {
				if math.Abs(w.Samples[i]-tt.expected) > 1e-4 {
					t.Errorf("Sample %d: expected %f, got %f", i, tt.expected, w.Samples[i])
				}
			}
		})
	}
}

func TestPCMGain(t *testing.T) {
	tests := []struct {
		name      string
		format    Format
		precision int
		expected  float64
	}{
		{name: "wav 8 bit", format: FormatWAV, precision: 1, expected: 1},
		{name: "wav 16 bit", format: FormatWAV, precision: 2, expected: 65535.0 / 32768},
		{name: "wav 24 bit", format: FormatWAV, precision: 3, expected: 16777215.0 / 8388608},
		{name: "mp3", format: FormatMP3, precision: 2, expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pcmGain(tt.format, tt.precision); got != tt.expected {
				t.Errorf("Expected gain %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestLoadWAVFixture(t *testing.T) {
	w, info, err := newTestLoader(t, 44100).Load(filepath.Join("testdata", "decay_44100.wav"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if info.Format != FormatWAV || info.SampleRate != 44100 || info.Channels != 1 {
		t.Errorf("Unexpected source info: %+v", info)
	}
	if len(w.Samples) != 22050 {
		t.Errorf("Expected 22050 samples, got %d", len(w.Samples))
	}
	// loudest sample in the file is 26188
	if got := peak(w.Samples); math.Abs(got-26188.0/32768) > 1e-3 {
		t.Errorf("Expected peak %f, got %f", 26188.0/32768, got)
	}
}

func TestLoadMP3Fixture(t *testing.T) {
	l := newTestLoader(t, 22050)

	mp3Wave, info, err := l.Load(filepath.Join("testdata", "decay_44100.mp3"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if info.Format != FormatMP3 {
		t.Errorf("Expected format mp3, got %s", info.Format)
	}
	if info.SampleRate != 44100 {
		t.Errorf("Expected source rate 44100, got %d", info.SampleRate)
	}
	if mp3Wave.SampleRate != 22050 {
		t.Errorf("Expected analysis rate 22050, got %d", mp3Wave.SampleRate)
	}
	// encoder delay and frame padding add a little silence around the 0.5 s signal
	if d := mp3Wave.Duration(); d < 0.5 || d > 0.6 {
		t.Errorf("Expected duration in [0.5, 0.6], got %f", d)
	}

	wavWave, _, err := l.Load(filepath.Join("testdata", "decay_44100.wav"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if ratio := peak(mp3Wave.Samples) / peak(wavWave.Samples); ratio < 0.85 || ratio > 1.15 {
		t.Errorf("Expected matching peaks, mp3/wav ratio %f", ratio)
	}
	if ratio := rms(mp3Wave.Samples) / rms(wavWave.Samples); ratio < 0.75 || ratio > 1.25 {
		t.Errorf("Expected matching levels, mp3/wav ratio %f", ratio)
	}
}
