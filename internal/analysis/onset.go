package analysis

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

const (
	// powerFloor bounds spectrogram power before the log
	powerFloor = 1e-10
	// dynamicRange is how far below the spectrogram peak values are clamped, in dB
	dynamicRange = 80.0
)

// onsetDetector computes spectral-flux onset envelopes. Mel filterbanks are
// built lazily per sample rate and shared between calls.
type onsetDetector struct {
	frameLength int
	hopLength   int
	melBands    int
	window      []float64

	mu      sync.Mutex
	filters map[int][]melFilter
}

// melFilter is one triangular band, stored as its non-zero span of FFT bins
type melFilter struct {
	start   int
	weights []float64
}

func newOnsetDetector(frameLength, hopLength, melBands int) *onsetDetector {
	// periodic Hann: the symmetric window of length N+1 without its last point
	ones := make([]float64, frameLength+1)
	for i := range ones {
		ones[i] = 1
	}
	w := window.Hann(ones)[:frameLength]

	return &onsetDetector{
		frameLength: frameLength,
		hopLength:   hopLength,
		melBands:    melBands,
		window:      w,
		filters:     make(map[int][]melFilter),
	}
}

// melFilters returns the filterbank for sampleRate, building it on first use
func (d *onsetDetector) melFilters(sampleRate int) []melFilter {
	d.mu.Lock()
	defer d.mu.Unlock()

	if fb, ok := d.filters[sampleRate]; ok {
		return fb
	}
	fb := melFilterbank(sampleRate, d.frameLength, d.melBands)
	d.filters[sampleRate] = fb
	return fb
}

// Envelope returns one onset strength value per analysis frame.
// Frames are centered on multiples of the hop with zero padding at the edges.
func (d *onsetDetector) Envelope(samples []float64, sampleRate int) []float64 {
	if len(samples) == 0 {
		return nil
	}

	half := d.frameLength / 2
	padded := make([]float64, len(samples)+d.frameLength)
	copy(padded[half:], samples)

	numFrames := 1 + len(samples)/d.hopLength
	bins := d.frameLength/2 + 1
	filters := d.melFilters(sampleRate)

	fft := fourier.NewFFT(d.frameLength)
	frame := make([]float64, d.frameLength)
	coeffs := make([]complex128, bins)
	power := make([]float64, bins)

	logMel := make([][]float64, numFrames)
	peak := math.Inf(-1)

	for t := 0; t < numFrames; t++ {
		seg := padded[t*d.hopLength : t*d.hopLength+d.frameLength]
		for i, v := range seg {
			frame[i] = v * d.window[i]
		}

		coeffs = fft.Coefficients(coeffs, frame)
		for k, c := range coeffs {
			re, im := real(c), imag(c)
			power[k] = re*re + im*im
		}

		row := make([]float64, len(filters))
		for m, f := range filters {
			var sum float64
			for k, w := range f.weights {
				sum += w * power[f.start+k]
			}
			row[m] = 10 * math.Log10(math.Max(powerFloor, sum))
			peak = math.Max(peak, row[m])
		}
		logMel[t] = row
	}

	floor := peak - dynamicRange
	for _, row := range logMel {
		for m, v := range row {
			row[m] = math.Max(v, floor)
		}
	}

	// flux at frame t compares t with t-1, then shifts so each value sits at
	// the centre of the frame that produced it
	lag := 1 + d.frameLength/(2*d.hopLength)
	env := make([]float64, numFrames)
	for t := 1; t < numFrames; t++ {
		dst := t - 1 + lag
		if dst >= numFrames {
			break
		}
		var sum float64
		for m := range logMel[t] {
			sum += math.Max(0, logMel[t][m]-logMel[t-1][m])
		}
		env[dst] = sum / float64(len(logMel[t]))
	}

	return env
}

// hzToMel uses the Slaney scale: linear below 1 kHz, logarithmic above
func hzToMel(f float64) float64 {
	const (
		fSp       = 200.0 / 3
		minLogHz  = 1000.0
		minLogMel = minLogHz / fSp
	)
	logStep := math.Log(6.4) / 27
	if f >= minLogHz {
		return minLogMel + math.Log(f/minLogHz)/logStep
	}
	return f / fSp
}

func melToHz(m float64) float64 {
	const (
		fSp       = 200.0 / 3
		minLogHz  = 1000.0
		minLogMel = minLogHz / fSp
	)
	logStep := math.Log(6.4) / 27
	if m >= minLogMel {
		return minLogHz * math.Exp(logStep*(m-minLogMel))
	}
	return fSp * m
}

// melFilterbank builds area-normalized triangular filters from 0 Hz to Nyquist
func melFilterbank(sampleRate, frameLength, bands int) []melFilter {
	bins := frameLength/2 + 1
	nyquist := float64(sampleRate) / 2

	fftFreqs := make([]float64, bins)
	for k := range fftFreqs {
		fftFreqs[k] = float64(k) * nyquist / float64(bins-1)
	}

	maxMel := hzToMel(nyquist)
	melFreqs := make([]float64, bands+2)
	for i := range melFreqs {
		melFreqs[i] = melToHz(maxMel * float64(i) / float64(bands+1))
	}

	filters := make([]melFilter, bands)
	for m := 0; m < bands; m++ {
		lo, center, hi := melFreqs[m], melFreqs[m+1], melFreqs[m+2]
		norm := 2 / (hi - lo)
		f := melFilter{start: -1}
		for k, freq := range fftFreqs {
			lower := (freq - lo) / (center - lo)
			upper := (hi - freq) / (hi - center)
			w := math.Max(0, math.Min(lower, upper)) * norm
			if w == 0 {
				if f.start >= 0 {
					break
				}
				continue
			}
			if f.start < 0 {
				f.start = k
			}
			f.weights = append(f.weights, w)
		}
		// narrow low bands can fall between bins and stay empty
		if f.start < 0 {
			f.start = 0
		}
		filters[m] = f
	}

	return filters
}

// pickPeaks returns the frame indices of onsets in env.
// env is min-max normalized first; an envelope with no energy has no onsets.
func pickPeaks(env []float64, sampleRate, hopLength int, p PeakParams) []int {
	if len(env) == 0 {
		return nil
	}

	lo, hi := env[0], env[0]
	for _, v := range env {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi <= 0 {
		return nil
	}

	x := make([]float64, len(env))
	span := hi - lo
	for i, v := range env {
		if span > 0 {
			x[i] = (v - lo) / span
		}
	}

	framesPerSecond := float64(sampleRate) / float64(hopLength)
	preMax := int(p.PreMax * framesPerSecond)
	postMax := int(p.PostMax*framesPerSecond) + 1
	preAvg := int(p.PreAvg * framesPerSecond)
	postAvg := int(p.PostAvg*framesPerSecond) + 1
	wait := int(p.Wait * framesPerSecond)

	prefix := make([]float64, len(x)+1)
	for i, v := range x {
		prefix[i+1] = prefix[i] + v
	}

	peaks := make([]int, 0)
	last := math.MinInt / 2
	for n, v := range x {
		if v <= 0 {
			continue
		}

		start, end := max(0, n-preMax), min(len(x), n+postMax)
		isMax := true
		for i := start; i < end; i++ {
			if x[i] > v {
				isMax = false
				break
			}
		}
		if !isMax {
			continue
		}

		start, end = max(0, n-preAvg), min(len(x), n+postAvg)
		mean := (prefix[end] - prefix[start]) / float64(end-start)
		if v < mean+p.Delta {
			continue
		}

		if n > last+wait {
			peaks = append(peaks, n)
			last = n
		}
	}

	return peaks
}
