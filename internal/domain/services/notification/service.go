package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
)

// Message is the channel-independent payload handed to a publisher
type Message struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	OperationID string            `json:"operation_id,omitempty"`
	Type        string            `json:"type"`
	Channel     string            `json:"channel"`
	Priority    string            `json:"priority"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

// Publisher delivers messages to a transport
type Publisher interface {
	Publish(ctx context.Context, msg *Message) error
}

// PreferenceStore returns a user's notification preferences
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID uuid.UUID) (*entities.NotificationPreferences, error)
}

type Service struct {
	publisher   Publisher
	preferences PreferenceStore
	logger      *zap.Logger
}

func NewService(publisher Publisher, preferences PreferenceStore, logger *zap.Logger) *Service {
	return &Service{publisher: publisher, preferences: preferences, logger: logger}
}

// Notify routes a notification to its channel unless the user opted out of that channel
func (s *Service) Notify(ctx context.Context, notification *entities.Notification) error {
	prefs := s.loadPreferences(ctx, notification.UserID)
	if !s.shouldSend(notification, prefs) {
		s.logger.Debug("Notification skipped due to user preferences",
			zap.String("type", string(notification.Type)),
			zap.String("channel", string(notification.Channel)))
		return nil
	}

	switch notification.Channel {
	case entities.ChannelInApp, entities.ChannelPush, entities.ChannelEmail, entities.ChannelSMS:
		return s.publish(ctx, notification)
	default:
		return fmt.Errorf("unsupported notification channel: %s", notification.Channel)
	}
}

func (s *Service) loadPreferences(ctx context.Context, userID uuid.UUID) entities.NotificationPreferences {
	if s.preferences == nil {
		return entities.DefaultNotificationPreferences()
	}
	prefs, err := s.preferences.GetPreferences(ctx, userID)
	if err != nil || prefs == nil {
		if err != nil {
			s.logger.Warn("Failed to load notification preferences", zap.String("user_id", userID.String()), zap.Error(err))
		}
		return entities.DefaultNotificationPreferences()
	}
	return *prefs
}

func (s *Service) shouldSend(notification *entities.Notification, prefs entities.NotificationPreferences) bool {
	if notification.Priority == entities.PriorityCritical {
		return true
	}

	switch notification.Channel {
	case entities.ChannelEmail:
		return prefs.EmailNotifications
	case entities.ChannelPush:
		return prefs.PushNotifications
	case entities.ChannelSMS:
		return prefs.SMSNotifications
	default:
		return true
	}
}

func (s *Service) publish(ctx context.Context, n *entities.Notification) error {
	msg := &Message{
		ID:       n.ID,
		UserID:   n.UserID,
		Type:     string(n.Type),
		Channel:  string(n.Channel),
		Priority: string(n.Priority),
		Title:    n.Title,
		Body:     n.Message,
		Data:     make(map[string]string, len(n.Data)),
	}
	if n.OperationID != nil {
		msg.OperationID = n.OperationID.String()
	}
	for k, v := range n.Data {
		msg.Data[k] = fmt.Sprint(v)
	}

	if err := s.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s notification: %w", n.Channel, err)
	}

	s.logger.Info("Notification sent",
		zap.String("user_id", n.UserID.String()),
		zap.String("type", msg.Type),
		zap.String("channel", msg.Channel),
		zap.String("operation_id", msg.OperationID))
	return nil
}

// LogPublisher only logs messages; used when no transport is configured
type LogPublisher struct {
	logger *zap.Logger
}

func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, msg *Message) error {
	p.logger.Info("Notification",
		zap.String("user_id", msg.UserID.String()),
		zap.String("type", msg.Type),
		zap.String("channel", msg.Channel),
		zap.String("title", msg.Title),
		zap.String("body", msg.Body))
	return nil
}
