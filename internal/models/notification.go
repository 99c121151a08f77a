package models

import "time"

// NotificationTypeReviewDue is sent to a reviewer once their chain opens for submissions.
const NotificationTypeReviewDue = "review_due"

// Notification represents a message targeted to a specific user.
type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:64;index" json:"user_id"`
	Type      string    `gorm:"size:64" json:"type"`
	Reference string    `gorm:"size:64;index" json:"reference"`
	Message   string    `gorm:"type:text" json:"message"`
	Read      bool      `gorm:"not null;default:false" json:"read"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
