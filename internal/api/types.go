package api

import "time"

// Problem is a practice problem as returned by /api/problem-by-topic/.
type Problem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
	Topic       string `json:"topic,omitempty"`
}

// ErrorBody is the failure payload used by every endpoint.
type ErrorBody struct {
	Error string `json:"error"`
}

// ChatRequest is the body of POST /api/chat/.
type ChatRequest struct {
	Message string `json:"message"`
	Topic   string `json:"topic"`
	Level   string `json:"level"`
}

// ChatResponse is the success body of POST /api/chat/.
type ChatResponse struct {
	BotResponse *BotResponse `json:"bot_response"`
}

// BotResponse carries the assistant reply.
type BotResponse struct {
	Content string `json:"content"`
}

// GuideRequest is the body of POST /api/guide-me/.
type GuideRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Difficulty  string `json:"difficulty"`
}

// GuideResponse is the success body of POST /api/guide-me/.
type GuideResponse struct {
	Guide string `json:"guide"`
}

// EvaluateRequest is the body of POST /api/evaluate-code/.
type EvaluateRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// EvaluateResponse is the success body of POST /api/evaluate-code/.
type EvaluateResponse struct {
	Feedback string `json:"feedback"`
}

// PingResponse is the body of GET /api/ping/.
type PingResponse struct {
	Message string `json:"message"`
}

// ChatRecord is one stored exchange from GET /api/chat/history/.
type ChatRecord struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	Topic     string    `json:"topic"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// ProblemSummary is one entry of GET /api/problems/.
type ProblemSummary struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
}
