package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/entities"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg *Message) error {
	return m.Called(ctx, msg).Error(0)
}

type MockPreferenceStore struct {
	mock.Mock
}

func (m *MockPreferenceStore) GetPreferences(ctx context.Context, userID uuid.UUID) (*entities.NotificationPreferences, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.NotificationPreferences), args.Error(1)
}

func operationNotification(channel entities.NotificationChannel, priority entities.NotificationPriority) *entities.Notification {
	op := &entities.Operation{
		ID:            uuid.New(),
		UserID:        uuid.New(),
		OperationType: entities.OperationTypeCrossChainSwap,
		Status:        entities.OperationStatusBridgingToEVM,
	}
	n := entities.NewOperationNotification(op, entities.NotificationOperationProgress, "Operation progress", "Bridge completed")
	n.Channel = channel
	n.Priority = priority
	return n
}

func TestNotify_PublishesInApp(t *testing.T) {
	publisher := new(MockPublisher)
	svc := NewService(publisher, nil, zap.NewNop())
	n := operationNotification(entities.ChannelInApp, entities.PriorityNormal)

	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(msg *Message) bool {
		return msg.UserID == n.UserID &&
			msg.OperationID == n.OperationID.String() &&
			msg.Type == "operation_progress" &&
			msg.Data["operation_type"] == "cross_chain_swap" &&
			msg.Data["progress"] == "0"
	})).Return(nil).Once()

	require.NoError(t, svc.Notify(context.Background(), n))
	publisher.AssertExpectations(t)
}

func TestNotify_RespectsPreferences(t *testing.T) {
	publisher := new(MockPublisher)
	prefs := new(MockPreferenceStore)
	svc := NewService(publisher, prefs, zap.NewNop())

	prefs.On("GetPreferences", mock.Anything, mock.Anything).Return(&entities.NotificationPreferences{PushNotifications: true}, nil)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, svc.Notify(context.Background(), operationNotification(entities.ChannelSMS, entities.PriorityNormal)))
	require.NoError(t, svc.Notify(context.Background(), operationNotification(entities.ChannelEmail, entities.PriorityNormal)))
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)

	require.NoError(t, svc.Notify(context.Background(), operationNotification(entities.ChannelSMS, entities.PriorityCritical)))
	require.NoError(t, svc.Notify(context.Background(), operationNotification(entities.ChannelPush, entities.PriorityNormal)))
	publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestNotify_Errors(t *testing.T) {
	publisher := new(MockPublisher)
	prefs := new(MockPreferenceStore)
	svc := NewService(publisher, prefs, zap.NewNop())

	prefs.On("GetPreferences", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	err := svc.Notify(context.Background(), operationNotification(entities.ChannelPush, entities.PriorityNormal))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")

	err = svc.Notify(context.Background(), operationNotification("pager", entities.PriorityNormal))
	assert.EqualError(t, err, "unsupported notification channel: pager")
}
