// Package coach runs the coaching pipeline.
//
// A joke submitted as text goes straight to the feedback generator. A
// recording is staged, decoded, and then analyzed locally while it is
// transcribed and critiqued in parallel. Only input and decode errors fail a
// request; the other stages report their failures inside the Report.
package coach
