package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/dripline/dripline/pkg/models"
)

// payloadString renders any JSON scalar as a string. Upstream IDs arrive as
// both numbers and strings.
func payloadString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}

		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func payloadTime(data map[string]any, keys ...string) time.Time {
	for _, key := range keys {
		raw, ok := data[key].(string)
		if !ok {
			continue
		}

		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC()
		}
	}

	return time.Now().UTC()
}

// contactPatch extracts the partial contact update carried by a payload.
// Only fields the payload actually carries are set; consent pointers are set
// only on an explicit marketing-consent indicator.
func contactPatch(data map[string]any) (models.ContactPatch, bool) {
	email := extractEmail(data)
	if email == "" {
		return models.ContactPatch{}, false
	}

	patch := models.ContactPatch{Email: strings.ToLower(email)}

	source := data
	if customer, ok := data["customer"].(map[string]any); ok {
		source = customer
	}

	if v, ok := source["first_name"].(string); ok {
		patch.FirstName = &v
	}

	if v, ok := source["last_name"].(string); ok {
		patch.LastName = &v
	}

	if v, ok := source["phone"].(string); ok {
		patch.Phone = &v
	}

	if v, ok := source["accepts_marketing"].(bool); ok {
		consent := v
		patch.EmailConsent = &consent
	}

	if v, ok := source["buyer_accepts_marketing"].(bool); ok {
		consent := v
		patch.EmailConsent = &consent
	}

	if v, ok := source["accepts_sms_marketing"].(bool); ok {
		consent := v
		patch.SMSConsent = &consent
	}

	if v, ok := source["total_spent"].(float64); ok {
		patch.TotalSpent = &v
	}

	if v, ok := source["orders_count"].(float64); ok {
		count := int(v)
		patch.OrderCount = &count
	}

	if v, ok := source["tags"].(string); ok && v != "" {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				patch.AddTags = append(patch.AddTags, tag)
			}
		}
	}

	return patch, true
}

func extractEmail(data map[string]any) string {
	if v, ok := data["email"].(string); ok && v != "" {
		return v
	}

	if customer, ok := data["customer"].(map[string]any); ok {
		if v, ok := customer["email"].(string); ok {
			return v
		}
	}

	return ""
}
