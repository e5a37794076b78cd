package entities

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType identifies what happened to an operation
type NotificationType string

const (
	NotificationOperationStarted   NotificationType = "operation_started"
	NotificationOperationProgress  NotificationType = "operation_progress"
	NotificationOperationCompleted NotificationType = "operation_completed"
	NotificationOperationFailed    NotificationType = "operation_failed"
	NotificationOperationCancelled NotificationType = "operation_cancelled"
)

// NotificationChannel is the delivery channel of a notification
type NotificationChannel string

const (
	ChannelInApp NotificationChannel = "in_app"
	ChannelPush  NotificationChannel = "push"
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

// NotificationPriority controls whether user preferences may suppress a notification
type NotificationPriority string

const (
	PriorityNormal   NotificationPriority = "normal"
	PriorityHigh     NotificationPriority = "high"
	PriorityCritical NotificationPriority = "critical"
)

// Notification is a typed, channel-addressed message for a user
type Notification struct {
	ID          uuid.UUID              `json:"id"`
	UserID      uuid.UUID              `json:"user_id"`
	OperationID *uuid.UUID             `json:"operation_id,omitempty"`
	Type        NotificationType       `json:"type"`
	Channel     NotificationChannel    `json:"channel"`
	Priority    NotificationPriority   `json:"priority"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// NewOperationNotification builds an in-app notification about an operation
func NewOperationNotification(op *Operation, notificationType NotificationType, title, message string) *Notification {
	opID := op.ID
	return &Notification{
		ID:          uuid.New(),
		UserID:      op.UserID,
		OperationID: &opID,
		Type:        notificationType,
		Channel:     ChannelInApp,
		Priority:    PriorityNormal,
		Title:       title,
		Message:     message,
		Data: map[string]interface{}{
			"operation_type": string(op.OperationType),
			"status":         string(op.Status),
			"progress":       op.ProgressPercentage(),
		},
		CreatedAt: nowFunc(),
	}
}

// NotificationPreferences lists which optional channels a user accepts
type NotificationPreferences struct {
	PushNotifications  bool `json:"push_notifications"`
	EmailNotifications bool `json:"email_notifications"`
	SMSNotifications   bool `json:"sms_notifications"`
}

// DefaultNotificationPreferences enables push and email but not SMS
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{PushNotifications: true, EmailNotifications: true}
}
