package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// WAVHeader represents the header structure of a canonical PCM WAV file
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // File size - 8 bytes
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // Number of bytes in the data
}

const wavHeaderSize = 44

// ToPCM16 converts normalized samples to 16-bit PCM, clipping anything outside [-1, 1]
func ToPCM16(samples []float64) []int16 {
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		if math.IsNaN(s) {
			continue
		}
		s = math.Max(-1, math.Min(1, s))
		pcm[i] = int16(math.Round(s * math.MaxInt16))
	}
	return pcm
}

// EncodeWAV encodes a waveform as mono 16-bit PCM WAV
func EncodeWAV(w *Waveform) ([]byte, error) {
	if w == nil || len(w.Samples) == 0 {
		return nil, fmt.Errorf("cannot encode empty audio samples")
	}

	if w.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", w.SampleRate)
	}

	return encodePCM16(ToPCM16(w.Samples), w.SampleRate)
}

func encodePCM16(samples []int16, sampleRate int) ([]byte, error) {
	numChannels := uint16(1)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(samples) * 2)

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(samples)*2))

	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}

	if err := binary.Write(buf, binary.LittleEndian, samples); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}

	return buf.Bytes(), nil
}
