package adapters

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/rail-service/crosschain_orchestrator/internal/domain/services/notification"
)

// SNSConfig holds AWS SNS/SQS configuration for operation notifications
type SNSConfig struct {
	Region        string
	TopicARN      string // default topic, used for in-app and any channel without its own topic
	PushTopicARN  string
	SMSTopicARN   string
	EmailTopicARN string
	QueueURL      string // optional SQS queue mirrored for async consumers
}

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
	ListTopics(ctx context.Context, params *sns.ListTopicsInput, optFns ...func(*sns.Options)) (*sns.ListTopicsOutput, error)
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SNSPublisher delivers notification messages via AWS SNS, optionally mirroring them to SQS
type SNSPublisher struct {
	snsClient snsAPI
	sqsClient sqsAPI
	config    SNSConfig
	logger    *zap.Logger
}

// NewSNSPublisher loads the default AWS config for the region and builds the clients
func NewSNSPublisher(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSPublisher, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newSNSPublisher(sns.NewFromConfig(awsCfg), sqs.NewFromConfig(awsCfg), cfg, logger), nil
}

func newSNSPublisher(snsClient snsAPI, sqsClient sqsAPI, cfg SNSConfig, logger *zap.Logger) *SNSPublisher {
	return &SNSPublisher{snsClient: snsClient, sqsClient: sqsClient, config: cfg, logger: logger}
}

// Publish sends the message to the channel topic and, when configured, the SQS queue
func (p *SNSPublisher) Publish(ctx context.Context, msg *notification.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	topic := p.topicFor(msg.Channel)
	if topic == "" {
		return fmt.Errorf("no SNS topic configured for channel %s", msg.Channel)
	}

	out, err := p.snsClient.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(topic),
		Subject:  aws.String(msg.Title),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"type":     {DataType: aws.String("String"), StringValue: aws.String(msg.Type)},
			"channel":  {DataType: aws.String("String"), StringValue: aws.String(msg.Channel)},
			"priority": {DataType: aws.String("String"), StringValue: aws.String(msg.Priority)},
			"user_id":  {DataType: aws.String("String"), StringValue: aws.String(msg.UserID.String())},
		},
	})
	if err != nil {
		p.logger.Error("Failed to publish notification via SNS", zap.Error(err), zap.String("channel", msg.Channel))
		return fmt.Errorf("SNS publish failed: %w", err)
	}

	if p.config.QueueURL != "" {
		if err := p.enqueue(ctx, msg, body); err != nil {
			return err
		}
	}

	p.logger.Debug("Notification published",
		zap.String("message_id", aws.ToString(out.MessageId)),
		zap.String("type", msg.Type),
		zap.String("user_id", msg.UserID.String()))
	return nil
}

func (p *SNSPublisher) enqueue(ctx context.Context, msg *notification.Message, body []byte) error {
	_, err := p.sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.config.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"Type":        {DataType: aws.String("String"), StringValue: aws.String(msg.Type)},
			"OperationID": {DataType: aws.String("String"), StringValue: aws.String(msg.OperationID)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to queue notification", zap.Error(err))
		return fmt.Errorf("SQS send failed: %w", err)
	}
	return nil
}

func (p *SNSPublisher) topicFor(channel string) string {
	var topic string
	switch channel {
	case "push":
		topic = p.config.PushTopicARN
	case "sms":
		topic = p.config.SMSTopicARN
	case "email":
		topic = p.config.EmailTopicARN
	}
	if topic == "" {
		return p.config.TopicARN
	}
	return topic
}

// HealthCheck verifies SNS connectivity
func (p *SNSPublisher) HealthCheck(ctx context.Context) error {
	_, err := p.snsClient.ListTopics(ctx, &sns.ListTopicsInput{})
	return err
}
