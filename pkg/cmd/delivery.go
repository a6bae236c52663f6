package cmd

import (
	"context"
	"fmt"

	"github.com/dripline/dripline/pkg/delivery"
	"github.com/dripline/dripline/pkg/delivery/ses"
	"github.com/dripline/dripline/pkg/delivery/smshttp"
)

// NewEmailChannel creates the SES email channel. The from address must be a
// verified SES identity.
func NewEmailChannel(ctx context.Context, region, accessKey, secretKey, from string) (delivery.EmailChannel, error) {
	if from == "" {
		return nil, fmt.Errorf("email sender address is required")
	}

	return ses.NewClient(ctx, ses.Config{
		Region:    region,
		AccessKey: accessKey,
		SecretKey: secretKey,
		From:      from,
	})
}

// NewSMSChannel creates the HTTP SMS gateway channel, or nil when no gateway
// is configured. Workers treat a nil channel as sms sending disabled.
func NewSMSChannel(url, token, from string) delivery.SMSChannel {
	if url == "" {
		return nil
	}

	return smshttp.NewClient(smshttp.Config{URL: url, Token: token, From: from})
}
