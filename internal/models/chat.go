package models

// Sender identifies who authored a chat message
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// ChatMessage is a transient chat entry. It is never persisted.
type ChatMessage struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// ChatRequest is the body of POST /api/ai/chat
type ChatRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	UID       string `json:"uid,omitempty" validate:"max=128"`
	TaskCount int    `json:"taskCount,omitempty" validate:"min=0"`
}

// SmartQueryRequest is the body of POST /api/ai/query
type SmartQueryRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

// SmartQueryResponse is the router outcome returned by the server
type SmartQueryResponse struct {
	Kind   string `json:"kind"`
	Intent string `json:"intent"`
	Text   string `json:"text,omitempty"`
}
