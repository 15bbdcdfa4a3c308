// Package analysis computes delivery metrics for a recorded joke.
//
// Pace comes from counting onsets in a spectral-flux envelope of the mel
// spectrogram and converting them to words with a fixed onsets-per-word
// ratio. Pauses are the gaps between non-silent intervals found by the vad
// splitter. Loudness is the mean frame RMS scaled into [0, 100]. All three
// are heuristics meant for coaching feedback, not measurements.
package analysis
