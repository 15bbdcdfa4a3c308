// Command mockapi is a local stand-in for the OpenAI-compatible
// transcription and chat completion endpoints used by the coach.
//
// Point both endpoints at it and use any non-empty API key:
//
//	transcription.endpoint: http://localhost:9000/v1/audio/transcriptions
//	feedback.endpoint:      http://localhost:9000/v1/chat/completions
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const defaultTranscript = "I told my wife she was drawing her eyebrows too high. She looked surprised."

type mockServer struct {
	transcript string
	delay      time.Duration
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

func (s *mockServer) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/audio/transcriptions", s.authorized(s.handleTranscription))
	mux.HandleFunc("/v1/chat/completions", s.authorized(s.handleChat))
	return mux
}

// authorized rejects requests without a bearer token, like the real API
func (s *mockServer) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeAPIError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeAPIError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		next(w, r)
	}
}

func (s *mockServer) handleTranscription(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeAPIError(w, http.StatusBadRequest, "error parsing form")
		return
	}

	model := r.FormValue("model")
	if model == "" {
		writeAPIError(w, http.StatusBadRequest, "model is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "error reading audio file")
		return
	}

	log.Printf("transcription request: file=%s size=%d model=%s language=%q",
		header.Filename, size, model, r.FormValue("language"))

	language := r.FormValue("language")
	if language == "" {
		language = "en"
	}

	writeJSON(w, transcriptionResponse{Text: s.transcript, Language: language})
}

func (s *mockServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Messages) == 0 {
		writeAPIError(w, http.StatusBadRequest, "messages are required")
		return
	}

	prompt := req.Messages[len(req.Messages)-1].Content
	log.Printf("chat request: model=%s messages=%d temperature=%.2f prompt_characters=%d",
		req.Model, len(req.Messages), req.Temperature, len(prompt))

	critique := fmt.Sprintf("Humor: the premise lands. Structure: setup and punchline are clear; "+
		"try trimming the setup (your prompt was %d characters). Clarity: good.", len(prompt))

	writeJSON(w, chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: critique},
			FinishReason: "stop",
		}},
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{"message": message, "type": "invalid_request_error"},
	})
}

func main() {
	addr := flag.String("addr", ":9000", "Listen address")
	transcript := flag.String("transcript", defaultTranscript, "Text returned for every transcription")
	delay := flag.Duration("delay", 200*time.Millisecond, "Simulated processing time per request")
	flag.Parse()

	s := &mockServer{transcript: *transcript, delay: *delay}

	log.Printf("Mock API starting on %s", *addr)
	log.Printf("Transcriptions: http://localhost%s/v1/audio/transcriptions", *addr)
	log.Printf("Chat:           http://localhost%s/v1/chat/completions", *addr)

	if err := http.ListenAndServe(*addr, s.routes()); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
