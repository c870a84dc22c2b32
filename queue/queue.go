// Package queue provides a small work-queue facade over Amazon SQS.
//
// Queues are addressed by logical name. A missing queue is created on first
// use when Config.AutoCreate is set, so producers and consumers can start in
// any order.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

// API is the subset of the SQS client used by Queue.
// *sqs.Client satisfies it.
type API interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Message is one received queue message.
type Message struct {
	ID      string
	Body    string
	Receipt string
}

// Queue sends and receives text messages.
type Queue struct {
	client API
	config Config
	logger *slog.Logger
}

// New creates a new Queue instance.
func New(client API, config Config, logger *slog.Logger) *Queue {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		client: client,
		config: config,
		logger: logger,
	}
}

// QueueName returns the physical queue name for a logical queue.
func (q *Queue) QueueName(name string) string {
	return q.config.QueuePrefix + name
}

// Ensure creates the queue if it does not exist and returns its URL.
func (q *Queue) Ensure(ctx context.Context, name string) (string, error) {
	out, err := q.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(q.QueueName(name)),
	})
	if err != nil {
		return "", fmt.Errorf("create queue %s: %w", q.QueueName(name), err)
	}
	return aws.ToString(out.QueueUrl), nil
}

// Exists reports whether the queue exists.
func (q *Queue) Exists(ctx context.Context, name string) (bool, error) {
	_, err := q.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(q.QueueName(name))})
	if err == nil {
		return true, nil
	}
	if isQueueMissing(err) {
		return false, nil
	}
	return false, fmt.Errorf("get queue url: %w", err)
}

// Send enqueues body and returns the message id.
func (q *Queue) Send(ctx context.Context, name, body string) (string, error) {
	if strings.TrimSpace(body) == "" {
		return "", ErrInvalidMessage
	}

	url, err := q.url(ctx, name)
	if err != nil {
		return "", err
	}

	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(url),
		MessageBody: aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	q.logger.Debug("message sent", "queue", name, "messageId", aws.ToString(out.MessageId))
	return aws.ToString(out.MessageId), nil
}

// Receive long-polls for up to max messages. Received messages stay on the
// queue, invisible, until deleted with their receipt.
func (q *Queue) Receive(ctx context.Context, name string, max int) ([]Message, error) {
	if max < 1 {
		max = 1
	}
	if max > 10 {
		max = 10
	}

	url, err := q.url(ctx, name)
	if err != nil {
		return nil, err
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(url),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     q.config.WaitTimeSeconds,
		VisibilityTimeout:   q.config.VisibilityTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, Message{
			ID:      aws.ToString(m.MessageId),
			Body:    aws.ToString(m.Body),
			Receipt: aws.ToString(m.ReceiptHandle),
		})
	}
	return messages, nil
}

// Delete removes a received message.
func (q *Queue) Delete(ctx context.Context, name, receipt string) error {
	url, err := q.url(ctx, name)
	if err != nil {
		return err
	}

	_, err = q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(url),
		ReceiptHandle: aws.String(receipt),
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ReceiveOne receives a single message and deletes it from the queue.
// It returns ErrEmpty when no message is visible.
func (q *Queue) ReceiveOne(ctx context.Context, name string) (Message, error) {
	messages, err := q.Receive(ctx, name, 1)
	if err != nil {
		return Message{}, err
	}
	if len(messages) == 0 {
		return Message{}, ErrEmpty
	}

	m := messages[0]
	if err := q.Delete(ctx, name, m.Receipt); err != nil {
		return Message{}, err
	}
	return m, nil
}

// url resolves the queue URL, creating the queue when allowed.
func (q *Queue) url(ctx context.Context, name string) (string, error) {
	out, err := q.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(q.QueueName(name))})
	if err == nil {
		return aws.ToString(out.QueueUrl), nil
	}
	if !isQueueMissing(err) || !q.config.AutoCreate {
		return "", fmt.Errorf("get queue url: %w", err)
	}

	q.logger.Info("creating queue", "queue", q.QueueName(name))
	return q.Ensure(ctx, name)
}

// isQueueMissing matches both the JSON and the legacy query protocol codes.
func isQueueMissing(err error) bool {
	var missing *types.QueueDoesNotExist
	if errors.As(err, &missing) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "AWS.SimpleQueueService.NonExistentQueue"
	}
	return false
}
