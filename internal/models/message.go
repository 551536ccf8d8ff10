package models

import "time"

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in the session's chat transcript.
// The message list is append-only; entries are never edited.
type Message struct {
	ID               string    `json:"id"`
	Role             string    `json:"role"` // "user" or "assistant"
	Content          string    `json:"content"`
	AttachedPolicyID string    `json:"attached_policy_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// ChatRequest is the request body for sending a chat message
type ChatRequest struct {
	Text     string `json:"text"`
	Location string `json:"location,omitempty"` // optional current location for repair-shop suggestions
}

// ChatResponse is the chat API response
type ChatResponse struct {
	Message        Message `json:"message"`
	ConversationID string  `json:"conversation_id,omitempty"`
}

// UploadResponse is the upload API response
type UploadResponse struct {
	FileID        string        `json:"file_id"`
	VectorStoreID string        `json:"vector_store_id"`
	Policy        *PolicyRecord `json:"policy,omitempty"`
	Analysis      *Message      `json:"analysis,omitempty"`
	PageCount     int           `json:"page_count,omitempty"`
	Preview       string        `json:"preview,omitempty"`
}
