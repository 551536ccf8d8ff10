package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"policypal/internal/database"
	"policypal/internal/models"
	"policypal/internal/openai"
)

const testAssistantName = "Smart Policy Assistant"

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Initialize(); err != nil {
		t.Fatalf("failed to initialize test database: %v", err)
	}
	return db
}

// fakeStore implements KnowledgeStore and counts every call
type fakeStore struct {
	uploadCalls      int
	createStoreCalls int
	addFileCalls     int
	addedToStores    []string
	uploadErr        error
	addFileErr       error
}

func (f *fakeStore) UploadFile(ctx context.Context, filename string, data []byte) (*openai.FileObject, error) {
	f.uploadCalls++
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	return &openai.FileObject{ID: fmt.Sprintf("file_%d", f.uploadCalls), Filename: filename}, nil
}

func (f *fakeStore) CreateVectorStore(ctx context.Context, name string) (*openai.VectorStore, error) {
	f.createStoreCalls++
	return &openai.VectorStore{ID: fmt.Sprintf("vs_%d", f.createStoreCalls), Name: name}, nil
}

func (f *fakeStore) AddFileToVectorStore(ctx context.Context, storeID, fileID string) error {
	f.addFileCalls++
	if f.addFileErr != nil {
		return f.addFileErr
	}
	f.addedToStores = append(f.addedToStores, storeID)
	return nil
}

// fakeDirectory implements AssistantDirectory over an in-memory map
type fakeDirectory struct {
	listCalls     int
	retrieveCalls int
	createCalls   int
	updateCalls   int
	assistants    map[string]*openai.Assistant
	lastUpdate    openai.AssistantRequest
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{assistants: make(map[string]*openai.Assistant)}
}

func (f *fakeDirectory) ListAssistants(ctx context.Context) ([]openai.Assistant, error) {
	f.listCalls++
	var out []openai.Assistant
	for _, a := range f.assistants {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeDirectory) RetrieveAssistant(ctx context.Context, id string) (*openai.Assistant, error) {
	f.retrieveCalls++
	a, ok := f.assistants[id]
	if !ok {
		return nil, fmt.Errorf("assistant %s not found", id)
	}
	copied := *a
	return &copied, nil
}

func (f *fakeDirectory) CreateAssistant(ctx context.Context, req openai.AssistantRequest) (*openai.Assistant, error) {
	f.createCalls++
	a := &openai.Assistant{
		ID:            fmt.Sprintf("asst_%d", f.createCalls),
		Name:          req.Name,
		Model:         req.Model,
		Instructions:  req.Instructions,
		Tools:         req.Tools,
		ToolResources: req.ToolResources,
	}
	f.assistants[a.ID] = a
	return a, nil
}

func (f *fakeDirectory) UpdateAssistant(ctx context.Context, id string, req openai.AssistantRequest) (*openai.Assistant, error) {
	f.updateCalls++
	f.lastUpdate = req
	a, ok := f.assistants[id]
	if !ok {
		return nil, fmt.Errorf("assistant %s not found", id)
	}
	if req.Instructions != "" {
		a.Instructions = req.Instructions
	}
	if req.ToolResources != nil {
		a.ToolResources = req.ToolResources
	}
	copied := *a
	return &copied, nil
}

// fakeResponses implements ResponseAPI and records every create request
type fakeResponses struct {
	createCalls int
	requests    []openai.ResponseRequest
	response    *openai.Response
	createErr   error
}

func (f *fakeResponses) CreateResponse(ctx context.Context, req openai.ResponseRequest) (*openai.Response, error) {
	f.createCalls++
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.response, nil
}

func (f *fakeResponses) RetrieveResponse(ctx context.Context, id string) (*openai.Response, error) {
	return f.response, nil
}

// fakeVision implements VisionAPI with a canned completion payload
type fakeVision struct {
	calls   int
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (f *fakeVision) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	var resp openai.ChatCompletionResponse
	payload := fmt.Sprintf(`{"choices":[{"message":{"content":%s}}]}`, strconv.Quote(f.content))
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func completedResponse(text, conversationID string) *openai.Response {
	resp := &openai.Response{
		ID:     "resp_1",
		Status: openai.ResponseStatusCompleted,
		Output: []openai.OutputItem{{
			Type:    "message",
			Role:    "assistant",
			Content: []openai.ContentPart{{Type: "output_text", Text: text}},
		}},
	}
	if conversationID != "" {
		resp.Conversation = &openai.Conversation{ID: conversationID}
	}
	return resp
}

const extractionJSON = `{"name":"My Car Policy","number":"PC-001","holder":"Somchai","insurer":"Viriyah","status":"Active","expiry":"2026-12-31","type":"Car","summary":"Class 1 car insurance.","content":"Full policy text."}`

type serviceFixture struct {
	db        *database.DB
	store     *fakeStore
	directory *fakeDirectory
	responses *fakeResponses
	vision    *fakeVision
	service   *ChatService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		db:        newTestDB(t),
		store:     &fakeStore{},
		directory: newFakeDirectory(),
		responses: &fakeResponses{response: completedResponse("Hello", "conv_1")},
		vision:    &fakeVision{content: extractionJSON},
	}
	resolver := NewResponseResolver(f.responses, time.Millisecond, 5)
	analyzer := NewAnalysisService(f.vision, "gpt-4o")
	f.service = NewChatService(f.db, f.store, f.directory, f.responses, resolver, analyzer,
		testAssistantName, "gpt-4o")
	return f
}

func TestUploadCreatesStoreAndAssistant(t *testing.T) {
	f := newServiceFixture(t)

	result, err := f.service.UploadPolicyDocument(context.Background(), "s1", "policy.pdf",
		[]byte("%PDF-1.4"), nil, "policy document text")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if f.store.createStoreCalls != 1 {
		t.Errorf("expected 1 vector store created, got %d", f.store.createStoreCalls)
	}
	if f.directory.createCalls != 1 {
		t.Errorf("expected 1 assistant created, got %d", f.directory.createCalls)
	}
	if result.Policy == nil || result.Policy.Name != "My Car Policy" {
		t.Fatalf("expected extracted policy record, got %+v", result.Policy)
	}
	if result.VectorStoreID == "" || result.FileID == "" {
		t.Errorf("expected file and store ids, got %+v", result)
	}

	session, err := f.db.GetOrCreateSession("s1")
	if err != nil {
		t.Fatalf("failed to load session: %v", err)
	}
	if session.AssistantID != "asst_1" {
		t.Errorf("expected session bound to asst_1, got %q", session.AssistantID)
	}

	messages, err := f.service.Messages("s1")
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages (upload marker + analysis), got %d", len(messages))
	}
	if messages[0].Role != models.RoleUser || messages[0].Content != "Uploaded policy: policy.pdf" {
		t.Errorf("unexpected upload marker message: %+v", messages[0])
	}
	if messages[1].Role != models.RoleAssistant || !strings.Contains(messages[1].Content, "Class 1 car insurance.") {
		t.Errorf("unexpected analysis message: %+v", messages[1])
	}
	if messages[1].AttachedPolicyID != result.Policy.ID {
		t.Errorf("analysis message not linked to policy record")
	}

	policies, err := f.service.Policies("s1")
	if err != nil {
		t.Fatalf("failed to list policies: %v", err)
	}
	if len(policies) != 1 || policies[0].Number != "PC-001" {
		t.Errorf("expected 1 stored policy PC-001, got %+v", policies)
	}
}

func TestUploadReusesExistingStore(t *testing.T) {
	f := newServiceFixture(t)

	for i := 0; i < 2; i++ {
		filename := fmt.Sprintf("policy%d.pdf", i+1)
		if _, err := f.service.UploadPolicyDocument(context.Background(), "s1", filename,
			[]byte("%PDF-1.4"), nil, "text"); err != nil {
			t.Fatalf("upload %d failed: %v", i+1, err)
		}
	}

	if f.store.createStoreCalls != 1 {
		t.Fatalf("expected a single vector store across uploads, got %d", f.store.createStoreCalls)
	}
	if f.store.addFileCalls != 2 {
		t.Fatalf("expected both files attached, got %d attach calls", f.store.addFileCalls)
	}
	for _, storeID := range f.store.addedToStores {
		if storeID != "vs_1" {
			t.Errorf("file attached to unexpected store %s", storeID)
		}
	}
	if f.directory.createCalls != 1 {
		t.Errorf("expected a single assistant across uploads, got %d creates", f.directory.createCalls)
	}
	if f.directory.updateCalls == 0 {
		t.Errorf("expected second upload to refresh the existing assistant")
	}
}

func TestUploadReusesPreexistingAssistantStore(t *testing.T) {
	f := newServiceFixture(t)
	f.directory.assistants["asst_9"] = &openai.Assistant{
		ID:    "asst_9",
		Name:  testAssistantName,
		Model: "gpt-4o",
		Tools: []openai.Tool{{Type: "file_search"}},
		ToolResources: &openai.ToolResources{
			FileSearch: &openai.FileSearchResources{VectorStoreIDs: []string{"vs_existing"}},
		},
	}

	result, err := f.service.UploadPolicyDocument(context.Background(), "s1", "policy.pdf",
		[]byte("%PDF-1.4"), nil, "text")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if f.store.createStoreCalls != 0 {
		t.Errorf("expected no new store when one is already bound, got %d", f.store.createStoreCalls)
	}
	if result.VectorStoreID != "vs_existing" {
		t.Errorf("expected reuse of vs_existing, got %s", result.VectorStoreID)
	}
	if f.directory.createCalls != 0 {
		t.Errorf("expected no assistant creation, got %d", f.directory.createCalls)
	}
	if f.directory.updateCalls != 1 {
		t.Errorf("expected assistant refresh, got %d updates", f.directory.updateCalls)
	}
}

func TestUploadIngestionFailureTouchesNothing(t *testing.T) {
	f := newServiceFixture(t)
	f.store.uploadErr = fmt.Errorf("boom")

	_, err := f.service.UploadPolicyDocument(context.Background(), "s1", "policy.pdf",
		[]byte("%PDF-1.4"), nil, "text")
	if err == nil {
		t.Fatal("expected ingestion error")
	}
	var ingestion *IngestionError
	if !errors.As(err, &ingestion) {
		t.Fatalf("expected IngestionError, got %T: %v", err, err)
	}

	if f.store.createStoreCalls != 0 || f.directory.createCalls != 0 || f.directory.updateCalls != 0 {
		t.Errorf("expected no store or assistant activity after ingestion failure")
	}
	messages, err := f.service.Messages("s1")
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("expected empty transcript after ingestion failure, got %d messages", len(messages))
	}
}

func TestUploadAnalysisFailureDegradesToNotice(t *testing.T) {
	f := newServiceFixture(t)
	f.vision.err = fmt.Errorf("vision down")

	result, err := f.service.UploadPolicyDocument(context.Background(), "s1", "policy.pdf",
		[]byte("%PDF-1.4"), nil, "text")
	if err != nil {
		t.Fatalf("expected upload to survive analysis failure, got %v", err)
	}
	if result.Policy != nil {
		t.Errorf("expected no policy record on analysis failure")
	}
	if result.Analysis == nil || result.Analysis.Content != analysisErrorNotice {
		t.Errorf("expected analysis error notice, got %+v", result.Analysis)
	}

	policies, err := f.service.Policies("s1")
	if err != nil {
		t.Fatalf("failed to list policies: %v", err)
	}
	if len(policies) != 0 {
		t.Errorf("expected no stored policy, got %d", len(policies))
	}
}

func TestEnsureAssistantIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	first, err := f.service.EnsureAssistantReady(ctx, "vs_1")
	if err != nil {
		t.Fatalf("first ensure failed: %v", err)
	}
	second, err := f.service.EnsureAssistantReady(ctx, "vs_1")
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}

	if first != second {
		t.Errorf("expected same assistant id, got %s then %s", first, second)
	}
	if f.directory.createCalls != 1 {
		t.Errorf("expected exactly 1 create, got %d", f.directory.createCalls)
	}
	if f.directory.updateCalls != 1 {
		t.Errorf("expected second ensure to update, got %d updates", f.directory.updateCalls)
	}
	scope := f.directory.lastUpdate.ToolResources
	if scope == nil || scope.FileSearch == nil || len(scope.FileSearch.VectorStoreIDs) != 1 ||
		scope.FileSearch.VectorStoreIDs[0] != "vs_1" {
		t.Errorf("expected scope replaced with exactly vs_1, got %+v", scope)
	}
}

func TestSendMessageRequiresUploadFirst(t *testing.T) {
	f := newServiceFixture(t)

	resp, err := f.service.SendMessage(context.Background(), "s1", "hello", "")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if resp.Message.Content != uploadFirstNotice {
		t.Errorf("expected upload-first notice, got %q", resp.Message.Content)
	}

	// The gate must decide from local state alone
	if f.directory.listCalls != 0 || f.directory.retrieveCalls != 0 || f.directory.createCalls != 0 {
		t.Errorf("expected no directory calls behind the gate: list=%d retrieve=%d create=%d",
			f.directory.listCalls, f.directory.retrieveCalls, f.directory.createCalls)
	}
	if f.responses.createCalls != 0 {
		t.Errorf("expected no response calls behind the gate, got %d", f.responses.createCalls)
	}
	if f.store.uploadCalls != 0 || f.store.createStoreCalls != 0 {
		t.Errorf("expected no store calls behind the gate")
	}

	messages, err := f.service.Messages("s1")
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user message plus notice, got %d messages", len(messages))
	}
	if messages[0].Content != "hello" || messages[1].Content != uploadFirstNotice {
		t.Errorf("unexpected transcript: %+v", messages)
	}
}

func TestSendMessageEmptyTextRejected(t *testing.T) {
	f := newServiceFixture(t)
	if _, err := f.service.SendMessage(context.Background(), "s1", "   ", ""); err == nil {
		t.Fatal("expected error for blank message text")
	}
}

func TestSendMessageComposesPolicyContext(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.UploadPolicyDocument(ctx, "s1", "car.pdf", []byte("%PDF-1.4"), nil, "text"); err != nil {
		t.Fatalf("first upload failed: %v", err)
	}
	f.vision.content = `{"name":"Health Plan B","number":"HP-002","type":"Health","status":"Active","summary":"Health coverage."}`
	if _, err := f.service.UploadPolicyDocument(ctx, "s1", "health.pdf", []byte("%PDF-1.4"), nil, "text"); err != nil {
		t.Fatalf("second upload failed: %v", err)
	}

	if _, err := f.service.SendMessage(ctx, "s1", "what am I covered for?", "Bangkok"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if f.responses.createCalls != 1 {
		t.Fatalf("expected 1 response request, got %d", f.responses.createCalls)
	}
	input := f.responses.requests[0].Input
	if !strings.HasPrefix(input, "what am I covered for?") {
		t.Errorf("input must start with the user text, got %q", input)
	}
	if !strings.Contains(input, "(ตำแหน่งปัจจุบัน: Bangkok)") {
		t.Errorf("input missing location hint: %q", input)
	}
	want := policyContextLabel +
		"\n- My Car Policy (policy number: PC-001)" +
		"\n- Health Plan B (policy number: HP-002)"
	if !strings.Contains(input, want) {
		t.Errorf("input missing ordered policy block:\nwant substring %q\ngot %q", want, input)
	}

	req := f.responses.requests[0]
	if len(req.Tools) != 1 || req.Tools[0].Type != "file_search" {
		t.Errorf("expected file_search tool on request, got %+v", req.Tools)
	}
	if len(req.Tools[0].VectorStoreIDs) != 1 || req.Tools[0].VectorStoreIDs[0] != "vs_1" {
		t.Errorf("expected tool scoped to vs_1, got %+v", req.Tools[0].VectorStoreIDs)
	}
	if req.Instructions != ChatInstructions {
		t.Errorf("expected chat instructions on every request")
	}
}

func TestSendMessageThreadsConversation(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.UploadPolicyDocument(ctx, "s1", "car.pdf", []byte("%PDF-1.4"), nil, "text"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	first, err := f.service.SendMessage(ctx, "s1", "hello", "")
	if err != nil {
		t.Fatalf("first send failed: %v", err)
	}
	if first.ConversationID != "conv_1" {
		t.Fatalf("expected conversation handle conv_1, got %q", first.ConversationID)
	}
	if f.responses.requests[0].Conversation != "" {
		t.Errorf("first request must not carry a conversation handle, got %q",
			f.responses.requests[0].Conversation)
	}

	if _, err := f.service.SendMessage(ctx, "s1", "and my deductible?", ""); err != nil {
		t.Fatalf("second send failed: %v", err)
	}
	if f.responses.requests[1].Conversation != "conv_1" {
		t.Errorf("second request must continue conv_1, got %q", f.responses.requests[1].Conversation)
	}
}

func TestSendMessageCollaboratorErrorBecomesNotice(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	if _, err := f.service.UploadPolicyDocument(ctx, "s1", "car.pdf", []byte("%PDF-1.4"), nil, "text"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	f.responses.createErr = fmt.Errorf("platform unavailable")

	resp, err := f.service.SendMessage(ctx, "s1", "hello", "")
	if err != nil {
		t.Fatalf("expected send to survive collaborator failure, got %v", err)
	}
	if resp.Message.Content != chatErrorNotice {
		t.Errorf("expected chat error notice, got %q", resp.Message.Content)
	}

	// The session stays usable: a later successful exchange works
	f.responses.createErr = nil
	resp, err = f.service.SendMessage(ctx, "s1", "hello again", "")
	if err != nil {
		t.Fatalf("follow-up send failed: %v", err)
	}
	if resp.Message.Content != "Hello" {
		t.Errorf("expected recovered reply, got %q", resp.Message.Content)
	}
}

func TestComposeOutgoingTextPlain(t *testing.T) {
	got := composeOutgoingText("hi", "", nil)
	if got != "hi" {
		t.Errorf("expected bare text without policies or location, got %q", got)
	}
}
