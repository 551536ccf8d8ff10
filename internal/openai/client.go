package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to an OpenAI-compatible platform (Azure OpenAI or
// api.openai.com). It covers the small API surface the orchestrator
// needs: files, vector stores, assistants, responses, and vision chat.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	apiVersion string // Azure-style api-version query parameter; empty for plain OpenAI
}

// New creates a platform client. baseURL is the API prefix, e.g.
// "https://myresource.openai.azure.com/openai/v1" or
// "https://api.openai.com/v1".
func New(baseURL, apiKey, apiVersion string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		apiVersion: apiVersion,
	}, nil
}

// endpoint builds the full request URL for an API path
func (c *Client) endpoint(path string) string {
	u := c.baseURL + path
	if c.apiVersion != "" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		u += sep + "api-version=" + url.QueryEscape(c.apiVersion)
	}
	return u
}

// authorize sets the auth header. Azure deployments use the api-key
// header; everything else uses a bearer token.
func (c *Client) authorize(req *http.Request) {
	if c.apiVersion != "" {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// doJSON executes a JSON request and decodes the response into out
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error %d: %s", resp.StatusCode, apiErrorMessage(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}

// apiErrorMessage pulls the error message out of an error body, falling
// back to the raw body when it isn't the standard envelope.
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return string(body)
}

// UploadFile uploads a document with purpose "assistants"
func (c *Client) UploadFile(ctx context.Context, filename string, data []byte) (*FileObject, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("purpose", "assistants"); err != nil {
		return nil, fmt.Errorf("failed to write purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/files"), &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("file upload failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, apiErrorMessage(respBody))
	}

	var file FileObject
	if err := json.Unmarshal(respBody, &file); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &file, nil
}

// CreateVectorStore creates a named retrieval index
func (c *Client) CreateVectorStore(ctx context.Context, name string) (*VectorStore, error) {
	var store VectorStore
	payload := map[string]string{"name": name}
	if err := c.doJSON(ctx, http.MethodPost, "/vector_stores", payload, &store); err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}
	return &store, nil
}

// AddFileToVectorStore attaches an uploaded file to a vector store
func (c *Client) AddFileToVectorStore(ctx context.Context, storeID, fileID string) error {
	payload := map[string]string{"file_id": fileID}
	path := fmt.Sprintf("/vector_stores/%s/files", storeID)
	if err := c.doJSON(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("failed to add file to vector store: %w", err)
	}
	return nil
}

// ListAssistants returns the most recent assistants (newest first)
func (c *Client) ListAssistants(ctx context.Context) ([]Assistant, error) {
	var envelope struct {
		Data []Assistant `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/assistants?order=desc&limit=20", nil, &envelope); err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}
	return envelope.Data, nil
}

// RetrieveAssistant fetches an assistant including its current tool resources
func (c *Client) RetrieveAssistant(ctx context.Context, id string) (*Assistant, error) {
	var assistant Assistant
	if err := c.doJSON(ctx, http.MethodGet, "/assistants/"+id, nil, &assistant); err != nil {
		return nil, fmt.Errorf("failed to retrieve assistant: %w", err)
	}
	return &assistant, nil
}

// CreateAssistant creates a new assistant
func (c *Client) CreateAssistant(ctx context.Context, req AssistantRequest) (*Assistant, error) {
	var assistant Assistant
	if err := c.doJSON(ctx, http.MethodPost, "/assistants", req, &assistant); err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}
	return &assistant, nil
}

// UpdateAssistant pushes new instructions/resources to an existing assistant
func (c *Client) UpdateAssistant(ctx context.Context, id string, req AssistantRequest) (*Assistant, error) {
	var assistant Assistant
	if err := c.doJSON(ctx, http.MethodPost, "/assistants/"+id, req, &assistant); err != nil {
		return nil, fmt.Errorf("failed to update assistant: %w", err)
	}
	return &assistant, nil
}

// CreateResponse starts an asynchronous model response
func (c *Client) CreateResponse(ctx context.Context, req ResponseRequest) (*Response, error) {
	var response Response
	if err := c.doJSON(ctx, http.MethodPost, "/responses", req, &response); err != nil {
		return nil, fmt.Errorf("failed to create response: %w", err)
	}
	return &response, nil
}

// RetrieveResponse fetches the current state of an asynchronous response
func (c *Client) RetrieveResponse(ctx context.Context, id string) (*Response, error) {
	var response Response
	if err := c.doJSON(ctx, http.MethodGet, "/responses/"+id, nil, &response); err != nil {
		return nil, fmt.Errorf("failed to retrieve response: %w", err)
	}
	return &response, nil
}

// CreateChatCompletion runs a synchronous (vision) chat completion
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatCompletionRequest) (*ChatCompletionResponse, error) {
	var completion ChatCompletionResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/completions", req, &completion); err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	return &completion, nil
}
