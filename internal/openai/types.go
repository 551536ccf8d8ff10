package openai

// FileObject represents an uploaded file on the platform
type FileObject struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
	Purpose  string `json:"purpose"`
}

// VectorStore represents a retrieval index holding uploaded files
type VectorStore struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FileSearchResources lists the vector stores bound to an assistant's
// file_search tool. The platform allows at most one store per assistant.
type FileSearchResources struct {
	VectorStoreIDs []string `json:"vector_store_ids"`
}

// ToolResources holds per-tool resource bindings
type ToolResources struct {
	FileSearch *FileSearchResources `json:"file_search,omitempty"`
}

// Tool is an assistant tool declaration
type Tool struct {
	Type string `json:"type"` // e.g. "file_search"
}

// Assistant represents a configured conversational agent
type Assistant struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Model         string         `json:"model"`
	Instructions  string         `json:"instructions"`
	Tools         []Tool         `json:"tools"`
	ToolResources *ToolResources `json:"tool_resources,omitempty"`
}

// VectorStoreIDs returns the assistant's bound file_search store ids
// (empty when none are bound).
func (a *Assistant) VectorStoreIDs() []string {
	if a.ToolResources == nil || a.ToolResources.FileSearch == nil {
		return nil
	}
	return a.ToolResources.FileSearch.VectorStoreIDs
}

// AssistantRequest is the payload for creating or updating an assistant
type AssistantRequest struct {
	Name          string         `json:"name,omitempty"`
	Model         string         `json:"model,omitempty"`
	Instructions  string         `json:"instructions,omitempty"`
	Tools         []Tool         `json:"tools,omitempty"`
	ToolResources *ToolResources `json:"tool_resources,omitempty"`
}

// Response statuses that mean the generation is still running
const (
	ResponseStatusQueued     = "queued"
	ResponseStatusInProgress = "in_progress"
	ResponseStatusCompleted  = "completed"
	ResponseStatusFailed     = "failed"
)

// ResponseTool configures a tool for a response generation request.
// For file_search the vector store ids are passed inline.
type ResponseTool struct {
	Type           string   `json:"type"`
	VectorStoreIDs []string `json:"vector_store_ids,omitempty"`
}

// ResponseRequest is the payload for creating a model response
type ResponseRequest struct {
	Model        string         `json:"model"`
	Input        string         `json:"input"`
	Instructions string         `json:"instructions,omitempty"`
	Tools        []ResponseTool `json:"tools,omitempty"`
	Conversation string         `json:"conversation,omitempty"`
}

// ContentPart is one part of an output item's content, discriminated by Type
type ContentPart struct {
	Type string `json:"type"` // "output_text", "refusal", ...
	Text string `json:"text,omitempty"`
}

// OutputItem is one item of a response's output, discriminated by Type
type OutputItem struct {
	Type    string        `json:"type"` // "message", "file_search_call", "reasoning", ...
	Role    string        `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`
}

// Conversation is the server-side continuation handle for a response chain
type Conversation struct {
	ID string `json:"id"`
}

// Response represents an asynchronous model response
type Response struct {
	ID           string        `json:"id"`
	Status       string        `json:"status"`
	Output       []OutputItem  `json:"output"`
	Conversation *Conversation `json:"conversation,omitempty"`
	Error        *APIError     `json:"error,omitempty"`
}

// OutputText returns the text of the first output_text part of the first
// message output item, or "" when the response carries no message.
func (r *Response) OutputText() string {
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				return part.Text
			}
		}
		break
	}
	return ""
}

// ChatMessagePart is one part of a multimodal chat message
type ChatMessagePart struct {
	Type     string        `json:"type"` // "text" or "image_url"
	Text     string        `json:"text,omitempty"`
	ImageURL *ChatImageURL `json:"image_url,omitempty"`
}

// ChatImageURL carries an image for a vision request (URL or data URL)
type ChatImageURL struct {
	URL string `json:"url"`
}

// ChatMessage is a chat completion message with multimodal content
type ChatMessage struct {
	Role    string            `json:"role"`
	Content []ChatMessagePart `json:"content"`
}

// ResponseFormat requests a specific completion output format
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// ChatCompletionRequest is the payload for a chat completion call
type ChatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatCompletionResponse is the chat completion result
type ChatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// APIError is the error body returned by the platform
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
}
