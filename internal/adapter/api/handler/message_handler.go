package handler

import (
	"github.com/labstack/echo/v4"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/usecase"
	"pasarlive/pkg/response"
	"pasarlive/pkg/utils"
)

type MessageHandler struct {
	messageUseCase *usecase.MessageUseCase
}

func NewMessageHandler(messageUseCase *usecase.MessageUseCase) *MessageHandler {
	return &MessageHandler{
		messageUseCase: messageUseCase,
	}
}

// GetConversation pages through the requester's exchange with :userId.
func (h *MessageHandler) GetConversation(c echo.Context) error {
	userID := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c)

	messages, total, err := h.messageUseCase.ConversationWith(c.Request().Context(), userID, c.Param("userId"), pagination)
	if err != nil {
		return response.Error(c, err)
	}
	if messages == nil {
		messages = []*entity.Message{}
	}

	return response.Paginated(c, messages, total, pagination.Page, pagination.PageSize)
}

func (h *MessageHandler) GetMessage(c echo.Context) error {
	userID := c.Get("uid").(string)

	message, err := h.messageUseCase.GetByID(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, message)
}
