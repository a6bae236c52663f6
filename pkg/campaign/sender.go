// Package campaign sends one-off batch campaigns to contact segments,
// chunked to respect provider rate limits.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dripline/dripline/pkg/delivery"
	"github.com/dripline/dripline/pkg/models"
	"github.com/dripline/dripline/pkg/persistence"
	"github.com/dripline/dripline/pkg/reliability"
	"github.com/dripline/dripline/pkg/template"
)

const (
	// DefaultBatchSize is the number of recipients per chunk.
	DefaultBatchSize = 100

	// DefaultBatchDelay is the pause between chunks of one campaign.
	DefaultBatchDelay = 2 * time.Second
)

// Sender delivers campaigns. Batches of one campaign run sequentially;
// independent campaigns may send in parallel through separate calls.
type Sender struct {
	persistence persistence.Persistence
	email       delivery.EmailChannel
	sms         delivery.SMSChannel
	renderer    *template.Renderer
	retrier     *reliability.Retrier
	breakers    *reliability.BreakerSet
	logger      *slog.Logger
	batchSize   int
	batchDelay  time.Duration
}

func NewSender(
	p persistence.Persistence,
	email delivery.EmailChannel,
	sms delivery.SMSChannel,
	renderer *template.Renderer,
	retrier *reliability.Retrier,
	breakers *reliability.BreakerSet,
	logger *slog.Logger,
) *Sender {
	return &Sender{
		persistence: p,
		email:       email,
		sms:         sms,
		renderer:    renderer,
		retrier:     retrier,
		breakers:    breakers,
		logger:      logger.With("module", "campaign_sender"),
		batchSize:   DefaultBatchSize,
		batchDelay:  DefaultBatchDelay,
	}
}

// Send delivers one campaign to its segment. Consent filtering happens
// here: a campaign only ever reaches consented contacts with a usable
// address for its channel.
func (s *Sender) Send(ctx context.Context, campaign *models.Campaign) error {
	contacts, err := s.persistence.Contacts().BySegment(ctx, campaign.StoreID, campaign.Segment)
	if err != nil {
		return fmt.Errorf("loading campaign segment: %w", err)
	}

	recipients := make([]*models.Contact, 0, len(contacts))

	for _, contact := range contacts {
		if !contact.ConsentFor(campaign.Channel) {
			continue
		}

		if campaign.Channel == models.ChannelSMS && contact.Phone == "" {
			continue
		}

		recipients = append(recipients, contact)
	}

	campaign.Status = models.CampaignSending
	if err := s.persistence.Campaigns().Save(ctx, campaign); err != nil {
		return fmt.Errorf("marking campaign sending: %w", err)
	}

	s.logger.InfoContext(ctx, "Campaign send starting",
		"campaign_id", campaign.ID, "recipients", len(recipients), "batches", (len(recipients)+s.batchSize-1)/s.batchSize)

	var sent, failed int

	for start := 0; start < len(recipients); start += s.batchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.batchDelay):
			}
		}

		end := min(start+s.batchSize, len(recipients))

		for _, contact := range recipients[start:end] {
			if err := s.deliver(ctx, campaign, contact); err != nil {
				failed++

				s.logger.WarnContext(ctx, "Campaign delivery failed",
					"campaign_id", campaign.ID, "contact_id", contact.ID, "error", err)

				continue
			}

			sent++
		}

		campaign.SentCount = sent
		if err := s.persistence.Campaigns().Save(ctx, campaign); err != nil {
			return fmt.Errorf("saving campaign progress: %w", err)
		}
	}

	if sent == 0 && failed > 0 {
		campaign.Status = models.CampaignFailed
	} else {
		campaign.Status = models.CampaignSent
	}

	if err := s.persistence.Campaigns().Save(ctx, campaign); err != nil {
		return fmt.Errorf("finishing campaign: %w", err)
	}

	s.logger.InfoContext(ctx, "Campaign send finished",
		"campaign_id", campaign.ID, "sent", sent, "failed", failed)

	return nil
}

func (s *Sender) deliver(ctx context.Context, campaign *models.Campaign, contact *models.Contact) error {
	bindings := template.Bindings(contact, models.TriggerEvent{})

	body, err := s.renderer.Render(campaign.Body, bindings)
	if err != nil {
		return err
	}

	breaker := s.breakers.For(string(campaign.Channel))

	switch campaign.Channel {
	case models.ChannelEmail:
		subject, err := s.renderer.Render(campaign.Subject, bindings)
		if err != nil {
			return err
		}

		// Channels classify their own failures; only errors they marked
		// transient are retried.
		return s.retrier.Do(ctx, "campaign_email", func(ctx context.Context) error {
			return breaker.Execute(ctx, func(ctx context.Context) error {
				_, sendErr := s.email.SendEmail(ctx, delivery.EmailMessage{To: contact.Email, Subject: subject, Body: body})

				return sendErr
			})
		})
	case models.ChannelSMS:
		if s.sms == nil {
			return fmt.Errorf("sms channel not configured")
		}

		return s.retrier.Do(ctx, "campaign_sms", func(ctx context.Context) error {
			return breaker.Execute(ctx, func(ctx context.Context) error {
				_, sendErr := s.sms.SendSMS(ctx, delivery.SMSMessage{To: contact.Phone, Body: body})

				return sendErr
			})
		})
	default:
		return fmt.Errorf("unknown campaign channel %q", campaign.Channel)
	}
}
