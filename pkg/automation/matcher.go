// Package automation contains the workflow matcher and the execution
// scheduler, the stateful heart of the engine.
package automation

import (
	"log/slog"

	"github.com/dripline/dripline/pkg/models"
)

// Matcher selects the workflows a trigger event should start.
type Matcher struct {
	logger *slog.Logger
}

func NewMatcher(logger *slog.Logger) *Matcher {
	return &Matcher{logger: logger.With("module", "matcher")}
}

// Match returns the workflows whose trigger type, filters and consent gate
// all accept the event. Matches are independent; ordering carries no meaning.
func (m *Matcher) Match(event models.TriggerEvent, contact *models.Contact, workflows []*models.Workflow) []*models.Workflow {
	var matched []*models.Workflow

	for _, workflow := range workflows {
		if !workflow.IsActive || workflow.TriggerType != event.Type {
			continue
		}

		if !m.consentGate(workflow, contact) {
			continue
		}

		if !m.filtersHold(workflow, event, contact) {
			continue
		}

		matched = append(matched, workflow)
	}

	return matched
}

// consentGate excludes a workflow when send_to_subscribed_only is in effect
// and the contact lacks consent for any channel the workflow sends on.
// Gating here, before an execution exists, means no execution records are
// ever created for non-consented contacts.
func (m *Matcher) consentGate(workflow *models.Workflow, contact *models.Contact) bool {
	if !workflow.Trigger.SubscribedOnly() {
		return true
	}

	for _, action := range workflow.Actions {
		channel, sends := action.ChannelFor()
		if !sends {
			continue
		}

		if contact == nil || !contact.ConsentFor(channel) {
			return false
		}
	}

	return true
}

// filtersHold evaluates the workflow's filter list as a logical AND. An
// empty list matches unconditionally.
func (m *Matcher) filtersHold(workflow *models.Workflow, event models.TriggerEvent, contact *models.Contact) bool {
	for _, filter := range workflow.Trigger.Filters {
		value, found := resolveField(filter.Field, event, contact)
		if !found {
			return false
		}

		holds, err := evaluateFilter(filter, value)
		if err != nil {
			m.logger.Warn("Filter evaluation failed",
				"workflow_id", workflow.ID, "field", filter.Field, "error", err)

			return false
		}

		if !holds {
			return false
		}
	}

	return true
}
