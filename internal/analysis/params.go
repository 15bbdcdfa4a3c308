package analysis

import "fmt"

// PeakParams controls onset peak picking. Windows are in seconds and are
// converted to envelope frames using the waveform's sample rate.
type PeakParams struct {
	Delta   float64
	PreMax  float64
	PostMax float64
	PreAvg  float64
	PostAvg float64
	Wait    float64
}

// Params holds the tuning knobs of the analyzer
type Params struct {
	FrameLength   int
	HopLength     int
	MelBands      int
	OnsetsPerWord float64
	TopDB         float64
	LoudnessScale float64
	Peaks         PeakParams
}

// DefaultParams returns the values the delivery thresholds were tuned against
func DefaultParams() Params {
	return Params{
		FrameLength:   2048,
		HopLength:     512,
		MelBands:      128,
		OnsetsPerWord: 3,
		TopDB:         25,
		LoudnessScale: 100,
		Peaks: PeakParams{
			Delta:   0.07,
			PreMax:  0.03,
			PostMax: 0,
			PreAvg:  0.10,
			PostAvg: 0.10,
			Wait:    0.03,
		},
	}
}

// Validate checks that the parameters describe a usable analysis
func (p Params) Validate() error {
	if p.FrameLength <= 0 || p.FrameLength&(p.FrameLength-1) != 0 {
		return fmt.Errorf("frame length must be a positive power of two, got %d", p.FrameLength)
	}

	if p.HopLength <= 0 || p.HopLength > p.FrameLength {
		return fmt.Errorf("hop length must be between 1 and %d, got %d", p.FrameLength, p.HopLength)
	}

	if p.MelBands <= 0 {
		return fmt.Errorf("mel bands must be positive, got %d", p.MelBands)
	}

	if p.OnsetsPerWord <= 0 {
		return fmt.Errorf("onsets per word must be positive, got %f", p.OnsetsPerWord)
	}

	if p.TopDB <= 0 {
		return fmt.Errorf("top_db must be positive, got %f", p.TopDB)
	}

	if p.LoudnessScale <= 0 {
		return fmt.Errorf("loudness scale must be positive, got %f", p.LoudnessScale)
	}

	pk := p.Peaks
	if pk.Delta < 0 || pk.PreMax < 0 || pk.PostMax < 0 || pk.PreAvg < 0 || pk.PostAvg < 0 || pk.Wait < 0 {
		return fmt.Errorf("peak picking parameters cannot be negative: %+v", pk)
	}

	return nil
}
