package vad

import "math"

// FrameMeanSquare returns the mean power of each centered frame.
// The signal is padded with frameLength/2 zeros on both sides, so frame t is
// centered on sample t*hopLength and there are 1+len(samples)/hopLength frames.
func FrameMeanSquare(samples []float64, frameLength, hopLength int) []float64 {
	if len(samples) == 0 || frameLength <= 0 || hopLength <= 0 {
		return nil
	}

	prefix := make([]float64, len(samples)+1)
	for i, s := range samples {
		prefix[i+1] = prefix[i] + s*s
	}

	half := frameLength / 2
	numFrames := 1 + len(samples)/hopLength
	power := make([]float64, numFrames)

	for t := range power {
		start := t*hopLength - half
		end := start + frameLength
		start = max(start, 0)
		end = min(end, len(samples))
		if end <= start {
			continue
		}
		// prefix sums can drift slightly negative on silent stretches
		power[t] = math.Max(0, prefix[end]-prefix[start]) / float64(frameLength)
	}

	return power
}

// FrameRMS returns the root-mean-square amplitude of each centered frame
func FrameRMS(samples []float64, frameLength, hopLength int) []float64 {
	power := FrameMeanSquare(samples, frameLength, hopLength)
	for i, p := range power {
		power[i] = math.Sqrt(p)
	}
	return power
}
