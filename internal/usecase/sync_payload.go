package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"pasarlive/internal/domain/entity"
	"pasarlive/pkg/errors"
)

// SyncPayload is the typed form of a queued item's data, one variant per
// (entity type, operation) pair.
type SyncPayload interface {
	EntityType() entity.SyncEntityType
	Operation() entity.SyncOperation
}

type MessageCreatePayload struct {
	Content     string `json:"content" validate:"required"`
	RecipientID string `json:"recipientId" validate:"required"`
	ProductID   string `json:"productId,omitempty"`
}

// MessageUpdatePayload only replays the read flag. Unreplayed lists the other
// keys the client sent; they stay in the queued row untouched.
type MessageUpdatePayload struct {
	Read       *bool    `json:"read,omitempty"`
	Unreplayed []string `json:"-"`
}

type MessageDeletePayload struct{}

type NotificationCreatePayload struct {
	Title   string                 `json:"title" validate:"required"`
	Message string                 `json:"message" validate:"required"`
	Type    string                 `json:"type,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

type NotificationUpdatePayload struct {
	Read       *bool    `json:"read,omitempty"`
	Unreplayed []string `json:"-"`
}

type NotificationDeletePayload struct{}

func (MessageCreatePayload) EntityType() entity.SyncEntityType      { return entity.SyncEntityMessage }
func (MessageCreatePayload) Operation() entity.SyncOperation        { return entity.SyncOperationCreate }
func (MessageUpdatePayload) EntityType() entity.SyncEntityType      { return entity.SyncEntityMessage }
func (MessageUpdatePayload) Operation() entity.SyncOperation        { return entity.SyncOperationUpdate }
func (MessageDeletePayload) EntityType() entity.SyncEntityType      { return entity.SyncEntityMessage }
func (MessageDeletePayload) Operation() entity.SyncOperation        { return entity.SyncOperationDelete }
func (NotificationCreatePayload) EntityType() entity.SyncEntityType { return entity.SyncEntityNotification }
func (NotificationCreatePayload) Operation() entity.SyncOperation   { return entity.SyncOperationCreate }
func (NotificationUpdatePayload) EntityType() entity.SyncEntityType { return entity.SyncEntityNotification }
func (NotificationUpdatePayload) Operation() entity.SyncOperation   { return entity.SyncOperationUpdate }
func (NotificationDeletePayload) EntityType() entity.SyncEntityType { return entity.SyncEntityNotification }
func (NotificationDeletePayload) Operation() entity.SyncOperation   { return entity.SyncOperationDelete }

type payloadKey struct {
	entityType entity.SyncEntityType
	operation  entity.SyncOperation
}

var payloadFactories = map[payloadKey]func() SyncPayload{
	{entity.SyncEntityMessage, entity.SyncOperationCreate}:      func() SyncPayload { return &MessageCreatePayload{} },
	{entity.SyncEntityMessage, entity.SyncOperationUpdate}:      func() SyncPayload { return &MessageUpdatePayload{} },
	{entity.SyncEntityMessage, entity.SyncOperationDelete}:      func() SyncPayload { return &MessageDeletePayload{} },
	{entity.SyncEntityNotification, entity.SyncOperationCreate}: func() SyncPayload { return &NotificationCreatePayload{} },
	{entity.SyncEntityNotification, entity.SyncOperationUpdate}: func() SyncPayload { return &NotificationUpdatePayload{} },
	{entity.SyncEntityNotification, entity.SyncOperationDelete}: func() SyncPayload { return &NotificationDeletePayload{} },
}

var payloadValidator = newPayloadValidator()

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodePayload parses raw into the variant for (entityType, operation) and
// validates it. Every failure is a ValidationError.
func DecodePayload(entityType entity.SyncEntityType, operation entity.SyncOperation, raw json.RawMessage) (SyncPayload, error) {
	factory, ok := payloadFactories[payloadKey{entityType, operation}]
	if !ok {
		return nil, errors.Validation(fmt.Sprintf("unsupported operation %q for entity type %q", operation, entityType), nil)
	}

	fields, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	payload := factory()
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, errors.Validation("data does not match the schema for this operation", err)
	}

	if err := payloadValidator.Struct(payload); err != nil {
		var fieldErrs validator.ValidationErrors
		if ok := asValidationErrors(err, &fieldErrs); ok && len(fieldErrs) > 0 {
			return nil, errors.Validation(fieldErrorMessage(fieldErrs[0]), err)
		}
		return nil, errors.Validation("data is invalid", err)
	}

	switch p := payload.(type) {
	case *MessageUpdatePayload:
		p.Unreplayed = unreplayedKeys(fields)
	case *NotificationUpdatePayload:
		p.Unreplayed = unreplayedKeys(fields)
	}

	return payload, nil
}

// isEmptyData treats a missing body, JSON null and an object without keys as
// empty.
func isEmptyData(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	var fields map[string]json.RawMessage
	return json.Unmarshal(trimmed, &fields) == nil && len(fields) == 0
}

// mergeData shallow-merges incoming over existing: top-level keys from
// incoming replace those in existing, everything else is kept.
func mergeData(existing, incoming json.RawMessage) (json.RawMessage, error) {
	base := map[string]json.RawMessage{}
	if !isEmptyData(existing) {
		decoded, err := decodeObject(existing)
		if err != nil {
			return nil, err
		}
		base = decoded
	}

	overlay, err := decodeObject(incoming)
	if err != nil {
		return nil, err
	}
	for key, value := range overlay {
		base[key] = value
	}

	merged, err := json.Marshal(base)
	if err != nil {
		return nil, errors.Internal("Failed to merge operation data", err)
	}
	return merged, nil
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, errors.Validation("data must be a JSON object", err)
	}
	return fields, nil
}

func unreplayedKeys(fields map[string]json.RawMessage) []string {
	var keys []string
	for key := range fields {
		if key != "read" {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = fieldErrs
	}
	return ok
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	default:
		return fe.Field() + " is invalid"
	}
}
