package notification

import (
	"context"
	"fmt"
	"log/slog"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// snsPublisher is the part of the SNS client the sender uses.
type snsPublisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type snsSMSSender struct {
	client   snsPublisher
	senderID string
	region   string
	log      *slog.Logger
}

// NewSNSSMSSender sends SMS through AWS SNS using the default credential chain.
func NewSNSSMSSender(ctx context.Context, region, senderID string, log *slog.Logger) (smsSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSNSSMSSender(sns.NewFromConfig(awsCfg), region, senderID, log), nil
}

func newSNSSMSSender(client snsPublisher, region, senderID string, log *slog.Logger) *snsSMSSender {
	return &snsSMSSender{client: client, senderID: senderID, region: region, log: log}
}

func (s *snsSMSSender) Send(ctx context.Context, to, message string) error {
	in := &sns.PublishInput{
		PhoneNumber: &to,
		Message:     &message,
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {DataType: strPtr("String"), StringValue: strPtr("Transactional")},
		},
	}
	if s.senderID != "" {
		in.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    strPtr("String"),
			StringValue: strPtr(s.senderID),
		}
	}

	out, err := s.client.Publish(ctx, in)
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	if out != nil && out.MessageId != nil {
		s.log.Info("sms sent via sns", "to", to, "message_id", *out.MessageId)
	}
	return nil
}

func (s *snsSMSSender) Backend() string { return "sns:" + s.region }

func strPtr(s string) *string { return &s }
