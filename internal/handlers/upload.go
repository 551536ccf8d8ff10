package handlers

import (
	"errors"
	"io"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"policypal/internal/services"
	"policypal/internal/utils"
)

// UploadHandler handles policy document upload requests
type UploadHandler struct {
	chatService *services.ChatService
	maxPDFSize  int64
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(chatService *services.ChatService) *UploadHandler {
	return &UploadHandler{
		chatService: chatService,
		maxPDFSize:  10 * 1024 * 1024, // 10MB for PDFs
	}
}

// Handle ingests a policy PDF. The multipart form carries the document
// in "file" and, optionally, pre-rasterized page images as data URLs in
// repeated "pages" fields (rasterization happens client-side). When no
// pages are supplied the extracted PDF text is analyzed instead.
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "file is required",
		})
	}

	if fileHeader.Size > h.maxPDFSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
			"error": "file exceeds the 10MB limit",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to open uploaded file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "failed to read uploaded file",
		})
	}

	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "only PDF policy documents are supported",
		})
	}
	if err := utils.ValidatePDF(data); err != nil {
		return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
			"error": "uploaded file is not a valid PDF",
		})
	}

	var pageImages []string
	if form, err := c.MultipartForm(); err == nil {
		pageImages = form.Value["pages"]
	}

	// Text extraction feeds analysis when the client sent no page images
	documentText := ""
	pageCount := 0
	if meta, err := utils.ExtractPDFText(data); err == nil {
		documentText = meta.Text
		pageCount = meta.PageCount
	} else {
		log.Printf("⚠️ [UPLOAD] Text extraction failed for %s: %v", fileHeader.Filename, err)
	}

	result, err := h.chatService.UploadPolicyDocument(
		c.UserContext(), sessionID(c), fileHeader.Filename, data, pageImages, documentText)
	if err != nil {
		var ingestion *services.IngestionError
		if errors.As(err, &ingestion) {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "failed to submit the document to the knowledge store",
			})
		}
		log.Printf("⚠️ [UPLOAD] Upload failed for %s: %v", fileHeader.Filename, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "upload failed",
		})
	}

	result.PageCount = pageCount
	result.Preview = utils.TextPreview(documentText, 300)
	return c.JSON(result)
}
