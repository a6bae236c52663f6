package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/models"
)

func TestRender_ContactAndEventBindings(t *testing.T) {
	renderer := NewRenderer()

	contact := &models.Contact{
		Email:     "grace@example.com",
		FirstName: "Grace",
	}
	event := models.TriggerEvent{
		Data: map[string]any{"order_number": "1001"},
	}

	out, err := renderer.Render("Hi {{ first_name }}, order {{ event.order_number }} shipped!", Bindings(contact, event))
	require.NoError(t, err)
	assert.Equal(t, "Hi Grace, order 1001 shipped!", out)
}

func TestRender_DefaultFilter(t *testing.T) {
	renderer := NewRenderer()

	contact := &models.Contact{Email: "x@example.com"}

	out, err := renderer.Render(`Hi {{ first_name | default: "Friend" }}!`, Bindings(contact, models.TriggerEvent{}))
	require.NoError(t, err)
	assert.Equal(t, "Hi Friend!", out)
}

func TestRender_PlainTextPassesThrough(t *testing.T) {
	renderer := NewRenderer()

	out, err := renderer.Render("No placeholders here", nil)
	require.NoError(t, err)
	assert.Equal(t, "No placeholders here", out)
}

func TestRender_ParseError(t *testing.T) {
	renderer := NewRenderer()

	_, err := renderer.Render("{% if %}", nil)
	assert.Error(t, err)
}
