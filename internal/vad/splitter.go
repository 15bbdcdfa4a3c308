package vad

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// powerFloor bounds the power values before converting to decibels
const powerFloor = 1e-10

// Interval is a non-silent region of a signal in samples, End exclusive
type Interval struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the interval length in samples
func (iv Interval) Len() int {
	return iv.End - iv.Start
}

// Splitter finds non-silent intervals by comparing frame power to the loudest frame
type Splitter struct {
	topDB       float64
	frameLength int
	hopLength   int

	// Statistics, guarded by mu
	totalSignals  uint64
	totalFrames   uint64
	voicedFrames  uint64
	lastProcessed time.Time

	mu sync.RWMutex
}

// SplitterStats represents splitter statistics
type SplitterStats struct {
	TopDB           float64   `json:"top_db"`
	FrameLength     int       `json:"frame_length"`
	HopLength       int       `json:"hop_length"`
	TotalSignals    uint64    `json:"total_signals"`
	TotalFrames     uint64    `json:"total_frames"`
	VoicedFrames    uint64    `json:"voiced_frames"`
	VoicePercentage float64   `json:"voice_percentage"`
	LastProcessed   time.Time `json:"last_processed"`
}

// NewSplitter creates a splitter that treats frames more than topDB below
// the loudest frame as silence
func NewSplitter(topDB float64, frameLength, hopLength int) (*Splitter, error) {
	if topDB <= 0 {
		return nil, fmt.Errorf("top_db must be positive, got %f", topDB)
	}

	if frameLength <= 0 {
		return nil, fmt.Errorf("frame length must be positive, got %d", frameLength)
	}

	if hopLength <= 0 || hopLength > frameLength {
		return nil, fmt.Errorf("hop length must be between 1 and %d, got %d", frameLength, hopLength)
	}

	return &Splitter{
		topDB:       topDB,
		frameLength: frameLength,
		hopLength:   hopLength,
	}, nil
}

// Split returns the non-silent intervals of samples in order.
// A signal with no measurable energy has no intervals.
func (s *Splitter) Split(samples []float64) []Interval {
	power := FrameMeanSquare(samples, s.frameLength, s.hopLength)

	var peak float64
	for _, p := range power {
		peak = math.Max(peak, p)
	}

	voiced := make([]bool, len(power))
	var voicedCount uint64
	if peak > powerFloor {
		ref := 10 * math.Log10(peak)
		for i, p := range power {
			db := 10*math.Log10(math.Max(powerFloor, p)) - ref
			if db > -s.topDB {
				voiced[i] = true
				voicedCount++
			}
		}
	}

	intervals := make([]Interval, 0)
	for i := 0; i < len(voiced); {
		if !voiced[i] {
			i++
			continue
		}
		j := i
		for j < len(voiced) && voiced[j] {
			j++
		}
		iv := Interval{
			Start: min(i*s.hopLength, len(samples)),
			End:   min(j*s.hopLength, len(samples)),
		}
		if iv.Len() > 0 {
			intervals = append(intervals, iv)
		}
		i = j
	}

	s.mu.Lock()
	s.totalSignals++
	s.totalFrames += uint64(len(power))
	s.voicedFrames += voicedCount
	s.lastProcessed = time.Now()
	s.mu.Unlock()

	return intervals
}

// CountPauses returns the number of silent gaps between non-silent intervals
func (s *Splitter) CountPauses(samples []float64) int {
	return max(0, len(s.Split(samples))-1)
}

// GetStats returns current splitter statistics
func (s *Splitter) GetStats() SplitterStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	voicePercentage := float64(0)
	if s.totalFrames > 0 {
		voicePercentage = float64(s.voicedFrames) / float64(s.totalFrames) * 100
	}

	return SplitterStats{
		TopDB:           s.topDB,
		FrameLength:     s.frameLength,
		HopLength:       s.hopLength,
		TotalSignals:    s.totalSignals,
		TotalFrames:     s.totalFrames,
		VoicedFrames:    s.voicedFrames,
		VoicePercentage: voicePercentage,
		LastProcessed:   s.lastProcessed,
	}
}
