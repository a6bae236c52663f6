package automation

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dripline/dripline/pkg/models"
)

func boolPtr(b bool) *bool { return &b }

func emailWorkflow(filters ...models.Filter) *models.Workflow {
	return &models.Workflow{
		ID:          "wf-1",
		StoreID:     "store-1",
		Name:        "Welcome series",
		TriggerType: models.TriggerCustomerCreated,
		Trigger:     models.TriggerConfig{Filters: filters},
		Actions: []models.Action{
			{Type: models.ActionSendEmail, Email: &models.EmailActionConfig{Subject: "s", Body: "b"}},
		},
		IsActive: true,
	}
}

func TestMatch_TriggerTypeAndActiveFlag(t *testing.T) {
	matcher := NewMatcher(slog.Default())
	contact := &models.Contact{ID: "c-1", EmailConsent: true}

	event := models.TriggerEvent{Type: models.TriggerCustomerCreated, StoreID: "store-1"}

	active := emailWorkflow()
	inactive := emailWorkflow()
	inactive.ID = "wf-2"
	inactive.IsActive = false
	otherTrigger := emailWorkflow()
	otherTrigger.ID = "wf-3"
	otherTrigger.TriggerType = models.TriggerOrderCreated

	matched := matcher.Match(event, contact, []*models.Workflow{active, inactive, otherTrigger})
	assert.Len(t, matched, 1)
	assert.Equal(t, "wf-1", matched[0].ID)
}

func TestMatch_FilterGreaterThan(t *testing.T) {
	matcher := NewMatcher(slog.Default())
	workflow := emailWorkflow(models.Filter{
		Field:    "total_spent",
		Operator: models.OperatorGreaterThan,
		Value:    100,
	})
	event := models.TriggerEvent{Type: models.TriggerCustomerCreated, StoreID: "store-1"}

	cheap := &models.Contact{ID: "c-1", EmailConsent: true, TotalSpent: 50}
	assert.Empty(t, matcher.Match(event, cheap, []*models.Workflow{workflow}),
		"total_spent=50 never matches greater_than 100")

	loyal := &models.Contact{ID: "c-2", EmailConsent: true, TotalSpent: 150}
	assert.Len(t, matcher.Match(event, loyal, []*models.Workflow{workflow}), 1,
		"total_spent=150 always matches greater_than 100")
}

func TestMatch_FiltersAreLogicalAND(t *testing.T) {
	matcher := NewMatcher(slog.Default())
	workflow := emailWorkflow(
		models.Filter{Field: "total_spent", Operator: models.OperatorGreaterThan, Value: 100},
		models.Filter{Field: "tags", Operator: models.OperatorContains, Value: "vip"},
	)
	event := models.TriggerEvent{Type: models.TriggerCustomerCreated}

	spendsButNoTag := &models.Contact{EmailConsent: true, TotalSpent: 200}
	assert.Empty(t, matcher.Match(event, spendsButNoTag, []*models.Workflow{workflow}))

	both := &models.Contact{EmailConsent: true, TotalSpent: 200, Tags: []string{"vip"}}
	assert.Len(t, matcher.Match(event, both, []*models.Workflow{workflow}), 1)
}

func TestMatch_EventDataFilters(t *testing.T) {
	matcher := NewMatcher(slog.Default())
	workflow := emailWorkflow(models.Filter{
		Field:    "order.total_price",
		Operator: models.OperatorGreaterThan,
		Value:    "50",
	})
	contact := &models.Contact{EmailConsent: true}

	matchingEvent := models.TriggerEvent{
		Type: models.TriggerCustomerCreated,
		Data: map[string]any{"order": map[string]any{"total_price": 75.0}},
	}
	assert.Len(t, matcher.Match(matchingEvent, contact, []*models.Workflow{workflow}), 1)

	missingField := models.TriggerEvent{Type: models.TriggerCustomerCreated}
	assert.Empty(t, matcher.Match(missingField, contact, []*models.Workflow{workflow}),
		"unresolvable fields never match")
}

func TestMatch_ConsentGate(t *testing.T) {
	matcher := NewMatcher(slog.Default())
	workflow := emailWorkflow()
	event := models.TriggerEvent{Type: models.TriggerCustomerCreated}

	revoked := &models.Contact{ID: "c-1", EmailConsent: false}
	assert.Empty(t, matcher.Match(event, revoked, []*models.Workflow{workflow}),
		"consent gates at match time so no execution is ever created")

	assert.Empty(t, matcher.Match(event, nil, []*models.Workflow{workflow}),
		"no contact means no consent for sending workflows")

	transactional := emailWorkflow()
	transactional.Trigger.SendToSubscribedOnly = boolPtr(false)
	assert.Len(t, matcher.Match(event, revoked, []*models.Workflow{transactional}), 1)
}

func TestMatch_TagOnlyWorkflowIgnoresConsent(t *testing.T) {
	matcher := NewMatcher(slog.Default())

	workflow := emailWorkflow()
	workflow.Actions = []models.Action{
		{Type: models.ActionAddTag, Tag: &models.TagActionConfig{Tag: "seen"}},
	}
	event := models.TriggerEvent{Type: models.TriggerCustomerCreated}
	revoked := &models.Contact{ID: "c-1"}

	assert.Len(t, matcher.Match(event, revoked, []*models.Workflow{workflow}), 1,
		"the consent gate only applies to sending channels")
}

func TestEvaluateFilter_Operators(t *testing.T) {
	tests := []struct {
		name   string
		filter models.Filter
		value  any
		want   bool
	}{
		{"equals string", models.Filter{Operator: models.OperatorEquals, Value: "paid"}, "paid", true},
		{"equals number coercion", models.Filter{Operator: models.OperatorEquals, Value: 10}, 10.0, true},
		{"not_equals", models.Filter{Operator: models.OperatorNotEquals, Value: "paid"}, "pending", true},
		{"contains substring", models.Filter{Operator: models.OperatorContains, Value: "sale"}, "summer-sale-2026", true},
		{"contains slice", models.Filter{Operator: models.OperatorContains, Value: "vip"}, []string{"new", "vip"}, true},
		{"less_than", models.Filter{Operator: models.OperatorLessThan, Value: 5}, 3.0, true},
		{"greater_than false", models.Filter{Operator: models.OperatorGreaterThan, Value: 5}, 3.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateFilter(tt.filter, tt.value)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
