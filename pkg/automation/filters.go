package automation

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/dripline/dripline/pkg/models"
)

// resolveField looks a filter field up in the trigger event's data first,
// then in the contact record. Dots address nested event data.
func resolveField(field string, event models.TriggerEvent, contact *models.Contact) (any, bool) {
	if value, ok := lookupPath(event.Data, field); ok {
		return value, true
	}

	if contact == nil {
		return nil, false
	}

	switch field {
	case "email":
		return contact.Email, true
	case "first_name":
		return contact.FirstName, true
	case "last_name":
		return contact.LastName, true
	case "phone":
		return contact.Phone, true
	case "email_consent":
		return contact.EmailConsent, true
	case "sms_consent":
		return contact.SMSConsent, true
	case "total_spent":
		return contact.TotalSpent, true
	case "order_count":
		return contact.OrderCount, true
	case "tags":
		return contact.Tags, true
	case "segments":
		return contact.Segments, true
	default:
		return nil, false
	}
}

func lookupPath(data map[string]any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}

	current := any(data)

	for _, part := range strings.Split(path, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = object[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// evaluateFilter applies one predicate to a resolved value.
func evaluateFilter(filter models.Filter, value any) (bool, error) {
	switch filter.Operator {
	case models.OperatorEquals:
		return looseEqual(value, filter.Value), nil
	case models.OperatorNotEquals:
		return !looseEqual(value, filter.Value), nil
	case models.OperatorContains:
		return contains(value, filter.Value)
	case models.OperatorGreaterThan, models.OperatorLessThan:
		left, err := toFloat(value)
		if err != nil {
			return false, err
		}

		right, err := toFloat(filter.Value)
		if err != nil {
			return false, err
		}

		if filter.Operator == models.OperatorGreaterThan {
			return left > right, nil
		}

		return left < right, nil
	default:
		return false, fmt.Errorf("unknown filter operator %q", filter.Operator)
	}
}

// looseEqual compares across the JSON/Go type boundary: numbers compare
// numerically, everything else by string form.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}

	if fa, err := toFloat(a); err == nil {
		if fb, err := toFloat(b); err == nil {
			return fa == fb
		}
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func contains(haystack, needle any) (bool, error) {
	target := fmt.Sprintf("%v", needle)

	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, target), nil
	case []string:
		return slices.Contains(h, target), nil
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, fmt.Errorf("contains does not apply to %T", haystack)
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot compare %T numerically", value)
	}
}
