package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util"
)

// AttachmentsHandler manages file attachments on tickets.
type AttachmentsHandler struct {
	service *service.TicketService
}

// NewAttachmentsHandler constructs handler.
func NewAttachmentsHandler(ticketService *service.TicketService) *AttachmentsHandler {
	return &AttachmentsHandler{service: ticketService}
}

// Upload POST /tickets/:id/attachments. Expects a multipart form with a "file"
// part and an optional "message_id" field linking the attachment to a thread
// message. Name and size are taken from the upload itself.
func (h *AttachmentsHandler) Upload(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return apperrors.NewValidationError("file part required", nil)
	}
	file, err := fileHeader.Open()
	if err != nil {
		return apperrors.NewValidationError("unreadable file part", nil)
	}
	defer file.Close()

	var messageID *string
	if raw := strings.TrimSpace(c.FormValue("message_id")); raw != "" {
		messageID = &raw
	}

	attachment, err := h.service.AddAttachment(c.UserContext(), user, c.Params("id"), service.AttachmentUpload{
		Reader:      file,
		FileName:    fileHeader.Filename,
		SizeBytes:   fileHeader.Size,
		ContentType: fileHeader.Header.Get("Content-Type"),
		MessageID:   messageID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": attachmentResponse(attachment, "")})
}

// List GET /tickets/:id/attachments.
func (h *AttachmentsHandler) List(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	attachments, err := h.service.ListAttachments(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.AttachmentResponse, 0, len(attachments))
	for i := range attachments {
		items = append(items, attachmentResponse(&attachments[i], ""))
	}
	return c.JSON(fiber.Map{"data": items})
}

// DownloadURL GET /tickets/:id/attachments/:attachmentID/url.
func (h *AttachmentsHandler) DownloadURL(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	url, err := h.service.AttachmentURL(c.UserContext(), user, c.Params("id"), c.Params("attachmentID"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"url": url}})
}

// Delete DELETE /tickets/:id/attachments/:attachmentID.
func (h *AttachmentsHandler) Delete(c *fiber.Ctx) error {
	user, ok := auth.CurrentUser(c)
	if !ok {
		return apperrors.NewUnauthorized("user required")
	}
	if err := h.service.RemoveAttachment(c.UserContext(), user, c.Params("id"), c.Params("attachmentID")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func attachmentResponse(att *domain.TicketAttachment, url string) dto.AttachmentResponse {
	return dto.AttachmentResponse{
		ID:         att.ID,
		MessageID:  att.MessageID,
		FileName:   att.FileName,
		SizeBytes:  att.SizeBytes,
		UploadedBy: att.UploadedBy,
		UploadedAt: att.UploadedAt,
		URL:        url,
	}
}
