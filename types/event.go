package types

import "time"

// BookEventAction identifies the kind of change a BookEvent describes.
type BookEventAction string

// Supported book event actions.
const (
	BookEventAdded   BookEventAction = "added"
	BookEventUpdated BookEventAction = "updated"
	BookEventRemoved BookEventAction = "removed"
)

// BookEvent is published to the message broker after a successful
// mutation of a user's inventory. Delivery is best effort.
type BookEvent struct {
	// Action is the mutation that occurred.
	Action BookEventAction `json:"action"`

	// UserID identifies the owner of the affected record.
	UserID int `json:"user_id"`

	// Book is the record after the mutation. For removals it carries
	// the record as it existed before deletion.
	Book Book `json:"book"`

	// OccurredAt is the timestamp at which the mutation was committed.
	OccurredAt time.Time `json:"occurred_at"`
}
