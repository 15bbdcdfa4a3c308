// Package rules turns delivery metrics into coaching tips.
// Rules are threshold checks over pace, pauses and projection, evaluated
// in that order with at most one tip per group.
package rules
