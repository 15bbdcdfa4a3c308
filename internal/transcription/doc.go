// Package transcription implements the client for an OpenAI-compatible
// speech-to-text API. Audio is uploaded as multipart form data and the
// transcript is read from the JSON reply.
//
// Provider holds the single client shared by the whole process; it is
// created lazily and closed at shutdown.
package transcription
