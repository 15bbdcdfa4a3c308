// Package feedback asks an OpenAI-compatible chat completion API to critique
// a joke for humor, structure and clarity.
package feedback
