package handler

import (
	"encoding/json"
	"time"

	"github.com/labstack/echo/v4"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/usecase"
	"pasarlive/pkg/errors"
	"pasarlive/pkg/response"
)

type SyncHandler struct {
	syncUseCase *usecase.SyncUseCase
}

func NewSyncHandler(syncUseCase *usecase.SyncUseCase) *SyncHandler {
	return &SyncHandler{
		syncUseCase: syncUseCase,
	}
}

// Checks on these fields live in the use case so the error order is the same
// for every caller.
type enqueueOperationRequest struct {
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Operation  string          `json:"operation"`
	Data       json.RawMessage `json:"data"`
}

type processResponse struct {
	Result *usecase.ProcessResult   `json:"result"`
	Status *entity.SyncStatusCounts `json:"status"`
}

// EnqueueOperation queues one offline operation.
func (h *SyncHandler) EnqueueOperation(c echo.Context) error {
	var req enqueueOperationRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	userID := c.Get("uid").(string)

	item, err := h.syncUseCase.Enqueue(c.Request().Context(), userID, usecase.EnqueueInput{
		EntityType: entity.SyncEntityType(req.EntityType),
		EntityID:   req.EntityID,
		Operation:  entity.SyncOperation(req.Operation),
		Data:       req.Data,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, item)
}

func (h *SyncHandler) ProcessQueue(c echo.Context) error {
	userID := c.Get("uid").(string)

	result, err := h.syncUseCase.ProcessQueue(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return h.respondWithStatus(c, userID, result)
}

func (h *SyncHandler) RetryFailed(c echo.Context) error {
	userID := c.Get("uid").(string)

	result, err := h.syncUseCase.RetryFailedOperations(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return h.respondWithStatus(c, userID, result)
}

func (h *SyncHandler) respondWithStatus(c echo.Context, userID string, result *usecase.ProcessResult) error {
	status, err := h.syncUseCase.GetStatus(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, processResponse{Result: result, Status: status})
}

// ClearCompleted deletes completed operations, optionally only those synced
// before ?olderThan (RFC3339).
func (h *SyncHandler) ClearCompleted(c echo.Context) error {
	userID := c.Get("uid").(string)

	var olderThan *time.Time
	if raw := c.QueryParam("olderThan"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return response.Error(c, errors.Validation("olderThan must be an RFC3339 timestamp", err))
		}
		olderThan = &t
	}

	deleted, err := h.syncUseCase.ClearCompletedOperations(c.Request().Context(), userID, olderThan)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int64{"deleted": deleted})
}

func (h *SyncHandler) GetStatus(c echo.Context) error {
	userID := c.Get("uid").(string)

	status, err := h.syncUseCase.GetStatus(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, status)
}

func (h *SyncHandler) ListOperations(c echo.Context) error {
	userID := c.Get("uid").(string)

	status := entity.SyncStatus(c.QueryParam("status"))
	if status == "" {
		status = entity.SyncStatusPending
	}

	items, err := h.syncUseCase.ListOperations(c.Request().Context(), userID, status)
	if err != nil {
		return response.Error(c, err)
	}
	if items == nil {
		items = []*entity.SyncQueueItem{}
	}
	return response.Success(c, items)
}
