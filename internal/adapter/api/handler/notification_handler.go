package handler

import (
	"github.com/labstack/echo/v4"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/usecase"
	"pasarlive/pkg/response"
	"pasarlive/pkg/utils"
)

type NotificationHandler struct {
	notificationUseCase *usecase.NotificationUseCase
}

func NewNotificationHandler(notificationUseCase *usecase.NotificationUseCase) *NotificationHandler {
	return &NotificationHandler{
		notificationUseCase: notificationUseCase,
	}
}

type notificationListResponse struct {
	response.PaginatedResponse
	Unread int64 `json:"unread"`
}

// List pages through the user's notifications and carries the unread badge count.
func (h *NotificationHandler) List(c echo.Context) error {
	userID := c.Get("uid").(string)
	pagination := utils.GetPaginationParams(c)
	ctx := c.Request().Context()

	items, total, err := h.notificationUseCase.List(ctx, userID, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}
	if items == nil {
		items = []*entity.Notification{}
	}

	unread, err := h.notificationUseCase.CountUnread(ctx, userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, notificationListResponse{
		PaginatedResponse: response.NewPaginatedResponse(items, total, pagination.Page, pagination.PageSize),
		Unread:            unread,
	})
}

func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	notification, err := h.notificationUseCase.MarkAsRead(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, notification)
}

func (h *NotificationHandler) Delete(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.notificationUseCase.Delete(c.Request().Context(), c.Param("id"), userID); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Notification deleted"})
}
