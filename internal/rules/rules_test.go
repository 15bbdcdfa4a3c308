package rules

import (
	"reflect"
	"testing"

	"github.com/skypro1111/laugh-coach/internal/analysis"
)

func codes(tips []Tip) []string {
	out := make([]string, 0, len(tips))
	for _, t := range tips {
		out = append(out, t.Code)
	}
	return out
}

func metrics(wpm float64, pauses int, duration, loudness float64) analysis.DeliveryMetrics {
	return analysis.DeliveryMetrics{
		DurationSeconds:    duration,
		WordsPerMinute:     wpm,
		NumPauses:          pauses,
		NormalizedLoudness: loudness,
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		metrics  analysis.DeliveryMetrics
		expected []string
	}{
		{
			name:     "slow quiet set with few pauses",
			metrics:  metrics(100, 1, 30, 20),
			expected: []string{CodePaceSlow, CodePausesFew, CodeProjectionWeak},
		},
		{
			name:     "balanced delivery",
			metrics:  metrics(150, 5, 30, 60),
			expected: []string{},
		},
		{
			name:     "fast and loud",
			metrics:  metrics(200, 5, 30, 90),
			expected: []string{CodePaceFast, CodeProjectionStrong},
		},
		{
			name:     "choppy short set",
			metrics:  metrics(150, 12, 45, 60),
			expected: []string{CodePausesMany},
		},
		{
			name:     "few pauses in a short clip is fine",
			metrics:  metrics(150, 0, 10, 60),
			expected: []string{},
		},
		{
			name:     "many pauses in a long set is fine",
			metrics:  metrics(150, 12, 90, 60),
			expected: []string{},
		},
		{
			name:     "boundaries are exclusive",
			metrics:  metrics(120, 3, 15, 40),
			expected: []string{},
		},
		{
			name:     "upper boundaries are exclusive",
			metrics:  metrics(180, 10, 60, 80),
			expected: []string{},
		},
		{
			name:     "silent clip",
			metrics:  metrics(0, 0, 20, 0),
			expected: []string{CodePaceSlow, CodePausesFew, CodeProjectionWeak},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.metrics, DefaultThresholds())
			if got == nil {
				t.Fatal("Expected non-nil tips")
			}
			if !reflect.DeepEqual(codes(got), tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, codes(got))
			}
		})
	}
}

func TestEvaluateSummaries(t *testing.T) {
	got := Evaluate(metrics(100, 1, 30, 20), DefaultThresholds())

	expected := []string{"pace is slow", "add more pauses", "projection weak"}
	for i, tip := range got {
		if tip.Summary != expected[i] {
			t.Errorf("Tip %d: expected summary %q, got %q", i, expected[i], tip.Summary)
		}
		if tip.Message == "" {
			t.Errorf("Tip %d: expected a message", i)
		}
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	m := metrics(190, 11, 40, 85)
	first := Evaluate(m, DefaultThresholds())
	for i := 0; i < 10; i++ {
		if !reflect.DeepEqual(first, Evaluate(m, DefaultThresholds())) {
			t.Fatal("Expected identical tips on every evaluation")
		}
	}
}

func TestEvaluateCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.SlowWPM = 90
	th.WeakLoudness = 20

	got := codes(Evaluate(metrics(100, 5, 30, 30), th))
	if len(got) != 0 {
		t.Errorf("Expected no tips with relaxed thresholds, got %v", got)
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(th *Thresholds)
		valid  bool
	}{
		{name: "defaults", mutate: func(th *Thresholds) {}, valid: true},
		{name: "inverted pace", mutate: func(th *Thresholds) { th.FastWPM = 100 }, valid: false},
		{name: "negative pauses", mutate: func(th *Thresholds) { th.FewPauses = -1 }, valid: false},
		{name: "inverted pauses", mutate: func(th *Thresholds) { th.ManyPauses = 2 }, valid: false},
		{name: "strong above 100", mutate: func(th *Thresholds) { th.StrongLoudness = 101 }, valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(&th)
			err := th.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected valid thresholds but got: %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name     string
		metrics  analysis.DeliveryMetrics
		expected Scores
	}{
		{name: "typical", metrics: metrics(150, 4, 30, 55), expected: Scores{SpeakingRate: 75, Pauses: 40, VoiceProjection: 55}},
		{name: "clipped", metrics: metrics(260, 14, 30, 100), expected: Scores{SpeakingRate: 100, Pauses: 100, VoiceProjection: 100}},
		{name: "silent", metrics: metrics(0, 0, 5, 0), expected: Scores{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.metrics); got != tt.expected {
				t.Errorf("Expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}
