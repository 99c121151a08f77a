package dto

import (
	"time"

	"github.com/noah-isme/climb-review-api/internal/models"
)

// NotificationCreateRequest represents a notification to persist and fan out.
type NotificationCreateRequest struct {
	UserID    string `json:"user_id" validate:"required,max=64"`
	Type      string `json:"type" validate:"required,max=64"`
	Reference string `json:"reference" validate:"omitempty,max=64"`
	Message   string `json:"message" validate:"required,max=2000"`
}

// NotificationResponse is returned to API clients and carried on the fan-out channels.
type NotificationResponse struct {
	ID        uint      `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Reference string    `json:"reference,omitempty"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// NewNotificationResponse converts a notification model into a DTO.
func NewNotificationResponse(model models.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        model.ID,
		UserID:    model.UserID,
		Type:      model.Type,
		Reference: model.Reference,
		Message:   model.Message,
		Read:      model.Read,
		CreatedAt: model.CreatedAt,
	}
}

// NewNotificationResponseSlice converts notification models into DTOs.
func NewNotificationResponseSlice(items []models.Notification) []NotificationResponse {
	responses := make([]NotificationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewNotificationResponse(item))
	}

	return responses
}
