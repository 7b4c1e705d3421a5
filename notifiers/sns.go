package notifiers

import (
	"context"
	"fmt"
	"time"

	"energy-server/entities"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/rs/zerolog"
)

type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes alerts to an SNS topic.
type SNSNotifier struct {
	svc      snsPublisher
	topicArn string
	log      zerolog.Logger
}

// NewSNSNotifier loads the default AWS configuration for region.
func NewSNSNotifier(ctx context.Context, region, topicArn string, log zerolog.Logger) (*SNSNotifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return &SNSNotifier{svc: sns.NewFromConfig(cfg), topicArn: topicArn, log: log}, nil
}

func (n *SNSNotifier) Notify(ctx context.Context, alert *entities.Alert) error {
	subject := "Energy budget alert"
	message := fmt.Sprintf(
		"Energy Alert\n\n"+
			"User: %s\n"+
			"Budget: %s\n"+
			"Time: %s\n\n"+
			"%s",
		alert.UserID,
		alert.BudgetID,
		alert.CreatedAt.UTC().Format(time.RFC3339),
		alert.Message,
	)

	out, err := n.svc.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(n.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}

	n.log.Debug().Str("message_id", aws.ToString(out.MessageId)).Str("alert_id", alert.ID).Msg("alert published")
	return nil
}
