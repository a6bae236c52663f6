// Package template renders message subjects and bodies with the Liquid
// template language, binding contact and trigger-event data.
package template

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/dripline/dripline/pkg/models"
)

// Renderer renders Liquid templates with a small cache of parsed templates.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	// {{ first_name | default: "Friend" }} for contacts without a name.
	engine.RegisterFilter("default", func(value any, fallback string) any {
		if value == nil {
			return fallback
		}

		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}

		return value
	})

	return &Renderer{engine: engine}
}

// Bindings assembles the variables available to message templates.
func Bindings(contact *models.Contact, event models.TriggerEvent) map[string]any {
	bindings := map[string]any{
		"event": event.Data,
	}

	if contact != nil {
		bindings["contact"] = map[string]any{
			"email":       contact.Email,
			"first_name":  contact.FirstName,
			"last_name":   contact.LastName,
			"phone":       contact.Phone,
			"total_spent": contact.TotalSpent,
			"order_count": contact.OrderCount,
			"tags":        contact.Tags,
		}
		bindings["first_name"] = contact.FirstName
		bindings["last_name"] = contact.LastName
		bindings["email"] = contact.Email
	}

	return bindings
}

// Render parses (or reuses) the template source and renders it.
func (r *Renderer) Render(source string, bindings map[string]any) (string, error) {
	if !strings.Contains(source, "{{") && !strings.Contains(source, "{%") {
		return source, nil
	}

	template, err := r.parse(source)
	if err != nil {
		return "", err
	}

	output, err := template.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	return output, nil
}

func (r *Renderer) parse(source string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(source); ok {
		return cached.(*liquid.Template), nil
	}

	template, err := r.engine.ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	r.cache.Store(source, template)

	return template, nil
}
