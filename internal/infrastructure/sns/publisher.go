package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/go-alumni-api/internal/config"
	"github.com/go-alumni-api/internal/domain"
	"github.com/go-alumni-api/internal/infrastructure/awscfg"
)

// API is the subset of *sns.Client used here.
type API interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// DeadLetterPublisher alerts operators about abandoned code deliveries by
// publishing one message per dead letter to an SNS topic.
type DeadLetterPublisher struct {
	client   API
	topicARN string
}

func NewClient(ctx context.Context, cfg *config.Config) (*sns.Client, error) {
	awsCfg, err := awscfg.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return sns.NewFromConfig(awsCfg, opts...), nil
}

func NewDeadLetterPublisher(client API, topicARN string) *DeadLetterPublisher {
	return &DeadLetterPublisher{client: client, topicARN: topicARN}
}

// Record publishes dl as JSON. The message never contains the code itself.
func (p *DeadLetterPublisher) Record(ctx context.Context, dl domain.DeadLetter) error {
	body, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String("Verification code delivery abandoned"),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"purpose": {DataType: aws.String("String"), StringValue: aws.String(string(dl.Purpose))},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}
