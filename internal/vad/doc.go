// Package vad detects speech and silence from signal energy.
// Frames are compared to the loudest frame of the same recording in decibels;
// anything more than top_db below it is silence. Runs of voiced frames become
// intervals, and the gaps between them are the pauses reported to performers.
package vad
