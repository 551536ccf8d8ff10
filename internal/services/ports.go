package services

import (
	"context"

	"policypal/internal/openai"
)

// KnowledgeStore uploads documents and manages retrieval indexes.
// Satisfied by *openai.Client; tests substitute fakes.
type KnowledgeStore interface {
	UploadFile(ctx context.Context, filename string, data []byte) (*openai.FileObject, error)
	CreateVectorStore(ctx context.Context, name string) (*openai.VectorStore, error)
	AddFileToVectorStore(ctx context.Context, storeID, fileID string) error
}

// AssistantDirectory manages the named assistant on the platform.
// Satisfied by *openai.Client.
type AssistantDirectory interface {
	ListAssistants(ctx context.Context) ([]openai.Assistant, error)
	RetrieveAssistant(ctx context.Context, id string) (*openai.Assistant, error)
	CreateAssistant(ctx context.Context, req openai.AssistantRequest) (*openai.Assistant, error)
	UpdateAssistant(ctx context.Context, id string, req openai.AssistantRequest) (*openai.Assistant, error)
}

// ResponseAPI starts and polls asynchronous model responses.
// Satisfied by *openai.Client.
type ResponseAPI interface {
	CreateResponse(ctx context.Context, req openai.ResponseRequest) (*openai.Response, error)
	RetrieveResponse(ctx context.Context, id string) (*openai.Response, error)
}

// VisionAPI runs synchronous vision chat completions for document extraction.
// Satisfied by *openai.Client.
type VisionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
}
