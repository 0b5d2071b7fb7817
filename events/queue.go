package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog/log"
)

type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSConfig struct {
	QueueURL  string
	Region    string
	AccessKey string
	SecretKey string
}

// QueueHandler publishes donation events to an SQS queue for downstream
// consumers (overlays, payouts).
type QueueHandler struct {
	client   SQSAPI
	queueURL string
}

func NewQueueHandler(client SQSAPI, queueURL string) *QueueHandler {
	return &QueueHandler{client: client, queueURL: queueURL}
}

// NewSQSHandler falls back to the default AWS credential chain when no
// static keys are configured.
func NewSQSHandler(ctx context.Context, cfg SQSConfig) (*QueueHandler, error) {
	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	return NewQueueHandler(sqs.NewFromConfig(awsCfg), cfg.QueueURL), nil
}

func (h *QueueHandler) Name() string {
	return "sqs"
}

func (h *QueueHandler) Handle(ctx context.Context, ev DonationCompleted) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    aws.String(h.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"type": {DataType: aws.String("String"), StringValue: aws.String(TypeDonationCompleted)},
		},
	}
	if strings.HasSuffix(h.queueURL, ".fifo") {
		in.MessageGroupId = aws.String(ev.PayeeID)
		in.MessageDeduplicationId = aws.String(ev.PaymentID)
	}

	out, err := h.client.SendMessage(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Info().Str("payment_id", ev.PaymentID).Str("message_id", aws.ToString(out.MessageId)).Msg("donation event published")
	return nil
}
