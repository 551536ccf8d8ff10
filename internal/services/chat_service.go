package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"policypal/internal/database"
	"policypal/internal/logging"
	"policypal/internal/models"
	"policypal/internal/openai"
)

// User-visible notices appended as ordinary assistant messages. Errors
// never escape a session; the conversation stays usable afterwards.
const (
	uploadFirstNotice   = "Please upload a policy first to start the assistant."
	analysisErrorNotice = "Sorry, I encountered an error analyzing the policy."
	chatErrorNotice     = "Sorry, something went wrong."
)

// policyContextLabel heads the allow-list block appended to every
// outgoing message so the assistant only answers about uploaded policies.
const policyContextLabel = "[Uploaded policies]"

// ChatService orchestrates the policy chat session: it owns the message
// transcript, the extracted policy records, and the conversation
// continuation handle, and mediates every user action through the
// platform collaborators.
type ChatService struct {
	db        *database.DB
	store     KnowledgeStore
	directory AssistantDirectory
	responses ResponseAPI
	resolver  *ResponseResolver
	analyzer  *AnalysisService

	assistantName string
	model         string

	// assistant-id-by-name lookups are cached briefly to avoid a list
	// call on every message; the cache never creates anything
	assistantIDs *gocache.Cache

	// one in-flight operation per session; upload and send are not
	// reentrant against themselves
	mu       sync.Mutex
	sessions map[string]*sync.Mutex
}

// NewChatService creates the session orchestrator
func NewChatService(db *database.DB, store KnowledgeStore, directory AssistantDirectory,
	responses ResponseAPI, resolver *ResponseResolver, analyzer *AnalysisService,
	assistantName, model string) *ChatService {
	return &ChatService{
		db:            db,
		store:         store,
		directory:     directory,
		responses:     responses,
		resolver:      resolver,
		analyzer:      analyzer,
		assistantName: assistantName,
		model:         model,
		assistantIDs:  gocache.New(5*time.Minute, 10*time.Minute),
		sessions:      make(map[string]*sync.Mutex),
	}
}

// lockSession serializes operations within one session (single-flight)
func (s *ChatService) lockSession(sessionID string) func() {
	s.mu.Lock()
	m, ok := s.sessions[sessionID]
	if !ok {
		m = &sync.Mutex{}
		s.sessions[sessionID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// UploadPolicyDocument ingests a policy document: it submits the file to
// the knowledge store, binds it into the assistant's (single) vector
// store under the reuse policy, brings the assistant up to date, and
// runs extraction. On ingestion failure no assistant or scope state is
// touched. Extraction failures degrade to a visible assistant notice.
func (s *ChatService) UploadPolicyDocument(ctx context.Context, sessionID, filename string, data []byte, pageImages []string, documentText string) (*models.UploadResponse, error) {
	defer s.lockSession(sessionID)()

	session, err := s.db.GetOrCreateSession(sessionID)
	if err != nil {
		return nil, err
	}

	uploaded, err := s.store.UploadFile(ctx, filename, data)
	if err != nil {
		return nil, &IngestionError{Err: err}
	}
	uploadsTotal.Inc()
	log.Printf("📄 [CHAT-SERVICE] Uploaded %s as file %s", filename, uploaded.ID)

	storeID, err := s.bindFileToScope(ctx, uploaded.ID)
	if err != nil {
		return nil, err
	}

	assistantID, err := s.EnsureAssistantReady(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpdateSessionAssistant(session.ID, assistantID); err != nil {
		return nil, err
	}
	logging.WithSession(session.ID, assistantID).Info("policy document ingested",
		"file_id", uploaded.ID, "store_id", storeID)

	if _, err := s.appendMessage(session.ID, models.RoleUser, "Uploaded policy: "+filename, ""); err != nil {
		return nil, err
	}

	response := &models.UploadResponse{
		FileID:        uploaded.ID,
		VectorStoreID: storeID,
	}

	record, err := s.analyzer.AnalyzePolicy(ctx, filename, pageImages, documentText)
	if err != nil {
		log.Printf("⚠️ [CHAT-SERVICE] Analysis failed for %s: %v", filename, err)
		notice, appendErr := s.appendMessage(session.ID, models.RoleAssistant, analysisErrorNotice, "")
		if appendErr != nil {
			return nil, appendErr
		}
		response.Analysis = notice
		return response, nil
	}

	if err := s.db.InsertPolicy(session.ID, record); err != nil {
		return nil, err
	}

	analysis, err := s.appendMessage(session.ID, models.RoleAssistant,
		"**Analysis Result:**\n\n"+record.Summary, record.ID)
	if err != nil {
		return nil, err
	}

	response.Policy = record
	response.Analysis = analysis
	return response, nil
}

// bindFileToScope attaches the uploaded file to the assistant's bound
// vector store, creating one only when no store is bound yet. This is
// the authoritative reuse policy: at most one store id is ever active
// per assistant, and repeated uploads extend the same store.
func (s *ChatService) bindFileToScope(ctx context.Context, fileID string) (string, error) {
	scope, err := s.currentScope(ctx)
	if err != nil {
		return "", err
	}

	if len(scope) > 0 {
		storeID := scope[0]
		if err := s.store.AddFileToVectorStore(ctx, storeID, fileID); err != nil {
			return "", &IngestionError{Err: err}
		}
		log.Printf("🗂️ [CHAT-SERVICE] Added file %s to existing store %s", fileID, storeID)
		return storeID, nil
	}

	created, err := s.store.CreateVectorStore(ctx, fmt.Sprintf("VS_%d", time.Now().UnixMilli()))
	if err != nil {
		return "", &IngestionError{Err: err}
	}
	if err := s.store.AddFileToVectorStore(ctx, created.ID, fileID); err != nil {
		return "", &IngestionError{Err: err}
	}
	log.Printf("🗂️ [CHAT-SERVICE] Created store %s for file %s", created.ID, fileID)
	return created.ID, nil
}

// currentScope resolves the vector stores bound to the named assistant
// (empty when the assistant does not exist or has no binding)
func (s *ChatService) currentScope(ctx context.Context) ([]string, error) {
	assistantID, err := s.findAssistantIDByName(ctx)
	if err != nil {
		return nil, err
	}
	if assistantID == "" {
		return nil, nil
	}

	assistant, err := s.directory.RetrieveAssistant(ctx, assistantID)
	if err != nil {
		return nil, &AssistantUnavailableError{Err: err}
	}
	return assistant.VectorStoreIDs(), nil
}

// EnsureAssistantReady finds or creates the assistant by its fixed name.
// An existing assistant gets refreshed instructions and, when a store id
// is supplied, its scope replaced with exactly that store. Calling this
// repeatedly never creates a duplicate; matching is exact by name.
func (s *ChatService) EnsureAssistantReady(ctx context.Context, vectorStoreID string) (string, error) {
	assistantID, err := s.findAssistantIDByName(ctx)
	if err != nil {
		return "", err
	}

	var resources *openai.ToolResources
	if vectorStoreID != "" {
		resources = &openai.ToolResources{
			FileSearch: &openai.FileSearchResources{VectorStoreIDs: []string{vectorStoreID}},
		}
	}

	if assistantID != "" {
		_, err := s.directory.UpdateAssistant(ctx, assistantID, openai.AssistantRequest{
			Instructions:  ChatInstructions,
			ToolResources: resources,
		})
		if err != nil {
			return "", &AssistantUnavailableError{Err: err}
		}
		return assistantID, nil
	}

	created, err := s.directory.CreateAssistant(ctx, openai.AssistantRequest{
		Name:          s.assistantName,
		Model:         s.model,
		Instructions:  ChatInstructions,
		Tools:         []openai.Tool{{Type: "file_search"}},
		ToolResources: resources,
	})
	if err != nil {
		return "", &AssistantUnavailableError{Err: err}
	}

	s.assistantIDs.Set(s.assistantName, created.ID, gocache.DefaultExpiration)
	log.Printf("🤖 [CHAT-SERVICE] Created assistant %s (%s)", s.assistantName, created.ID)
	return created.ID, nil
}

// AssistantIDIfExists looks the assistant up by name without ever
// creating one. Returns "" when no assistant exists yet.
func (s *ChatService) AssistantIDIfExists(ctx context.Context) (string, error) {
	return s.findAssistantIDByName(ctx)
}

// findAssistantIDByName resolves the assistant id via the short-lived
// cache, falling back to an exact-name scan of the directory
func (s *ChatService) findAssistantIDByName(ctx context.Context) (string, error) {
	if cached, ok := s.assistantIDs.Get(s.assistantName); ok {
		return cached.(string), nil
	}

	assistants, err := s.directory.ListAssistants(ctx)
	if err != nil {
		return "", &AssistantUnavailableError{Err: err}
	}
	for _, a := range assistants {
		if a.Name == s.assistantName {
			s.assistantIDs.Set(s.assistantName, a.ID, gocache.DefaultExpiration)
			return a.ID, nil
		}
	}
	return "", nil
}

// SendMessage appends the user's message, composes the outgoing context
// (policy allow-list and optional location), delegates to the assistant,
// and appends the reply. Collaborator failures become a visible
// assistant notice; the session stays interactive.
func (s *ChatService) SendMessage(ctx context.Context, sessionID, text, location string) (*models.ChatResponse, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("message text is required")
	}

	defer s.lockSession(sessionID)()
	chatRequests.Inc()

	session, err := s.db.GetOrCreateSession(sessionID)
	if err != nil {
		return nil, err
	}

	if _, err := s.appendMessage(session.ID, models.RoleUser, text, ""); err != nil {
		return nil, err
	}

	// Creation only ever happens via upload. The gate checks session
	// state and the process-wide cache only; no platform call is made
	// for a session that never uploaded anything.
	assistantID := session.AssistantID
	if assistantID == "" {
		if cached, ok := s.assistantIDs.Get(s.assistantName); ok {
			assistantID = cached.(string)
		}
	}
	if assistantID == "" {
		return s.noticeResponse(session.ID, uploadFirstNotice)
	}

	reply, conversationID, err := s.generateReply(ctx, session, assistantID, text, location)
	if err != nil {
		log.Printf("⚠️ [CHAT-SERVICE] Chat error in session %s: %v", session.ID, err)
		chatErrors.WithLabelValues(errorType(err)).Inc()
		return s.noticeResponse(session.ID, chatErrorNotice)
	}

	if conversationID != "" && conversationID != session.ConversationID {
		if err := s.db.UpdateSessionConversation(session.ID, conversationID); err != nil {
			return nil, err
		}
	}

	message, err := s.appendMessage(session.ID, models.RoleAssistant, reply, "")
	if err != nil {
		return nil, err
	}

	return &models.ChatResponse{Message: *message, ConversationID: conversationID}, nil
}

// generateReply runs one exchange against the assistant and returns the
// answer text plus the (possibly new) conversation handle
func (s *ChatService) generateReply(ctx context.Context, session *database.Session, assistantID, text, location string) (string, string, error) {
	assistant, err := s.directory.RetrieveAssistant(ctx, assistantID)
	if err != nil {
		return "", "", &AssistantUnavailableError{Err: err}
	}

	policies, err := s.db.ListPolicies(session.ID)
	if err != nil {
		return "", "", err
	}

	var tools []openai.ResponseTool
	for _, tool := range assistant.Tools {
		if tool.Type == "file_search" {
			tools = append(tools, openai.ResponseTool{
				Type:           "file_search",
				VectorStoreIDs: assistant.VectorStoreIDs(),
			})
		}
	}

	started := time.Now()
	response, err := s.responses.CreateResponse(ctx, openai.ResponseRequest{
		Model:        assistant.Model,
		Input:        composeOutgoingText(text, location, policies),
		Instructions: ChatInstructions,
		Tools:        tools,
		Conversation: session.ConversationID,
	})
	if err != nil {
		return "", "", err
	}

	completed, err := s.resolver.Await(ctx, response)
	if err != nil {
		return "", "", err
	}
	responseLatency.Observe(time.Since(started).Seconds())

	conversationID := ""
	if completed.Conversation != nil {
		conversationID = completed.Conversation.ID
	}
	return s.resolver.ExtractText(completed), conversationID, nil
}

// composeOutgoingText appends the optional location hint and the fixed
// labeled enumeration of uploaded policies, in insertion order. The
// block grounds the assistant and acts as an allow-list of the policies
// it may answer about.
func composeOutgoingText(text, location string, policies []models.PolicyRecord) string {
	var b strings.Builder
	b.WriteString(text)

	if location != "" {
		b.WriteString("\n(ตำแหน่งปัจจุบัน: ")
		b.WriteString(location)
		b.WriteString(")")
	}

	if len(policies) > 0 {
		b.WriteString("\n\n")
		b.WriteString(policyContextLabel)
		for _, p := range policies {
			b.WriteString(fmt.Sprintf("\n- %s (policy number: %s)", p.Name, p.Number))
		}
	}

	return b.String()
}

// Messages returns the session transcript in insertion order
func (s *ChatService) Messages(sessionID string) ([]models.Message, error) {
	return s.db.ListMessages(sessionID)
}

// Policies returns the session's extracted policy records
func (s *ChatService) Policies(sessionID string) ([]models.PolicyRecord, error) {
	return s.db.ListPolicies(sessionID)
}

// appendMessage persists a new transcript entry and returns it
func (s *ChatService) appendMessage(sessionID, role, content, policyID string) (*models.Message, error) {
	message := &models.Message{
		ID:               uuid.New().String(),
		Role:             role,
		Content:          content,
		AttachedPolicyID: policyID,
		CreatedAt:        time.Now(),
	}
	if err := s.db.AppendMessage(sessionID, message); err != nil {
		return nil, err
	}
	return message, nil
}

// noticeResponse appends an assistant notice and wraps it as the chat
// result; the caller's original error is already logged and counted
func (s *ChatService) noticeResponse(sessionID, notice string) (*models.ChatResponse, error) {
	message, err := s.appendMessage(sessionID, models.RoleAssistant, notice, "")
	if err != nil {
		return nil, err
	}
	return &models.ChatResponse{Message: *message}, nil
}

// errorType labels a chat error for metrics
func errorType(err error) string {
	switch err.(type) {
	case *AssistantUnavailableError:
		return "assistant_unavailable"
	case *ResponseTimeoutError:
		return "response_timeout"
	default:
		return "generation"
	}
}
