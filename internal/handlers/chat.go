package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"policypal/internal/models"
	"policypal/internal/services"
)

// defaultSessionID is used when the client does not scope requests to a
// session of its own
const defaultSessionID = "default"

// sessionID resolves the chat session for a request
func sessionID(c *fiber.Ctx) string {
	if id := strings.TrimSpace(c.Get("X-Session-ID")); id != "" {
		return id
	}
	return defaultSessionID
}

// ChatHandler handles chat message requests
type ChatHandler struct {
	chatService *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Send processes one user message and returns the assistant's reply
func (h *ChatHandler) Send(c *fiber.Ctx) error {
	var req models.ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "text is required",
		})
	}

	response, err := h.chatService.SendMessage(c.UserContext(), sessionID(c), req.Text, req.Location)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to process message",
		})
	}
	return c.JSON(response)
}

// Messages returns the session transcript in insertion order
func (h *ChatHandler) Messages(c *fiber.Ctx) error {
	messages, err := h.chatService.Messages(sessionID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load messages",
		})
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// Policies returns the session's extracted policy records
func (h *ChatHandler) Policies(c *fiber.Ctx) error {
	policies, err := h.chatService.Policies(sessionID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to load policies",
		})
	}
	if policies == nil {
		policies = []models.PolicyRecord{}
	}
	return c.JSON(fiber.Map{"policies": policies})
}
