package persistence

import "errors"

var (
	// ErrContactNotFound indicates no contact matches the identifier.
	ErrContactNotFound = errors.New("contact not found")

	// ErrStoreNotFound indicates no store matches the id or domain. It is
	// terminal for ingestion: it signals misrouted input, not a transient
	// failure, and is never retried.
	ErrStoreNotFound = errors.New("store not found")

	// ErrWorkflowNotFound indicates a workflow definition was not found.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionExists indicates an execution with the same idempotency
	// key already exists; redelivered trigger events hit this constraint.
	ErrExecutionExists = errors.New("execution already exists")

	// ErrCheckoutNotFound indicates a checkout record was not found.
	ErrCheckoutNotFound = errors.New("checkout not found")

	// ErrCampaignNotFound indicates a campaign was not found.
	ErrCampaignNotFound = errors.New("campaign not found")
)

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrContactNotFound) ||
		errors.Is(err, ErrStoreNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrExecutionNotFound) ||
		errors.Is(err, ErrCheckoutNotFound) ||
		errors.Is(err, ErrCampaignNotFound)
}
