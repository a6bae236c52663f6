// Package ses sends email through AWS SES v2.
package ses

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/dripline/dripline/pkg/delivery"
	"github.com/dripline/dripline/pkg/reliability"
)

// Config carries SES credentials and the verified sender address.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	From      string
}

// Client implements delivery.EmailChannel on AWS SES v2.
type Client struct {
	client *sesv2.Client
	from   string
}

// NewClient creates an SES email channel with static credentials.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &Client{
		client: sesv2.NewFromConfig(awsCfg),
		from:   cfg.From,
	}, nil
}

func (c *Client) SendEmail(ctx context.Context, message delivery.EmailMessage) (delivery.Result, error) {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(c.from),
		Destination: &types.Destination{
			ToAddresses: []string{message.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(message.Subject)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(message.Body)},
				},
			},
		},
	}

	output, err := c.client.SendEmail(ctx, input)
	if err != nil {
		return delivery.Result{}, classify(fmt.Errorf("sending email to %s: %w", message.To, err))
	}

	result := delivery.Result{}
	if output.MessageId != nil {
		result.ExternalID = *output.MessageId
	}

	return result, nil
}

// classify marks transient SES failures as retryable. Service 5xx and
// throttling come back with a response status; anything else carrying a
// status is a permanent rejection such as a bad recipient or a message
// rejected by policy. Errors without a response never reached SES.
func classify(err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		if status >= 500 || status == http.StatusTooManyRequests {
			return reliability.MarkRetryable(err)
		}

		return err
	}

	return reliability.MarkRetryable(err)
}
