// Package ses sends mail through the AWS SES v2 API. SES has no mailbox
// to read from, so this binding implements only the sending side.
package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/joshsymonds/mailharvest/internal/mailstore"
	"github.com/joshsymonds/mailharvest/internal/rfc822"
)

// API is the slice of the SES v2 client this package calls. Tests
// substitute a fake.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	GetAccount(ctx context.Context, params *sesv2.GetAccountInput, optFns ...func(*sesv2.Options)) (*sesv2.GetAccountOutput, error)
}

type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	// Sender is the verified address outbound mail is sent from.
	Sender string
}

type Sender struct {
	sender string
	client API
}

var _ mailstore.Sender = (*Sender)(nil)

func New(ctx context.Context, cfg Config) (*Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Sender{sender: cfg.Sender, client: sesv2.NewFromConfig(awsCfg)}, nil
}

// NewWithClient wires a custom API implementation, used in tests.
func NewWithClient(sender string, client API) *Sender {
	return &Sender{sender: sender, client: client}
}

func (s *Sender) Probe(ctx context.Context) error {
	if _, err := s.client.GetAccount(ctx, &sesv2.GetAccountInput{}); err != nil {
		return fmt.Errorf("ses get account: %w", err)
	}
	return nil
}

// Send delivers the message. Attachments force the raw MIME path since
// the simple format cannot carry them. Recipients always travel in the
// Destination so BCC addresses never appear in headers.
func (s *Sender) Send(ctx context.Context, out mailstore.Outbound) error {
	var input *sesv2.SendEmailInput
	if len(out.Attachments) > 0 {
		raw, err := rfc822.Build(s.sender, out, false)
		if err != nil {
			return fmt.Errorf("build raw message: %w", err)
		}
		input = &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(s.sender),
			Destination:      destination(out),
			Content: &types.EmailContent{
				Raw: &types.RawMessage{Data: raw},
			},
		}
	} else {
		input = buildSimpleInput(s.sender, out)
	}
	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("ses send: %w", err)
	}
	return nil
}

func buildSimpleInput(sender string, out mailstore.Outbound) *sesv2.SendEmailInput {
	body := &types.Body{}
	content := &types.Content{Data: aws.String(out.Body), Charset: aws.String("UTF-8")}
	if out.HTML {
		body.Html = content
	} else {
		body.Text = content
	}
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(sender),
		Destination:      destination(out),
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(out.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: body,
			},
		},
	}
}

func destination(out mailstore.Outbound) *types.Destination {
	return &types.Destination{
		ToAddresses:  []string{out.To},
		CcAddresses:  out.CC,
		BccAddresses: out.BCC,
	}
}
