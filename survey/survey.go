// Package survey holds the conversation core: the survey record model, the
// pure question state machine, the store contract, and the orchestrator that
// turns one inbound message into at most one state transition and reply.
package survey

import (
	"context"
	"errors"
	"time"
)

// Status enumerates the lifecycle of a survey attempt. The string values are
// stored verbatim in the database.
type Status string

const (
	// StatusStarted means the survey was created and question 1 is pending.
	StatusStarted Status = "started"
	// StatusQ1Answered means question 1 is answered and question 2 is pending.
	StatusQ1Answered Status = "q1_answered"
	// StatusCompleted means both answers are recorded; the record is immutable.
	StatusCompleted Status = "completed"
)

// Terminal reports whether the status accepts no further answers.
func (s Status) Terminal() bool {
	return s == StatusCompleted
}

// Record is one survey attempt by one respondent.
type Record struct {
	ID        int64     `db:"id" json:"id"`
	UserKey   string    `db:"user_key" json:"user_key"`
	Status    Status    `db:"status" json:"status"`
	Answer1   *string   `db:"answer1" json:"answer1"`
	Answer2   *string   `db:"answer2" json:"answer2"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ErrStatusChanged is returned by Store.SaveAnswer when the record's status no
// longer matches the expected one, i.e. a concurrent turn for the same user
// key won the transition. The returned record carries the fresh state and no
// mutation happened.
var ErrStatusChanged = errors.New("survey: record status changed concurrently")

// Store is the durable record of survey attempts. Implementations must commit
// mutations before returning and serialize SaveAnswer per user key so that two
// concurrent turns cannot both apply the same transition.
type Store interface {
	// FindActive returns the record the next answer applies to, or (nil, nil)
	// when the user has none. Multi strategy: the most recently created
	// non-completed record. Single strategy: the user's only record regardless
	// of status.
	FindActive(ctx context.Context, userKey string) (*Record, error)

	// Create inserts a new started record. Multi strategy: always inserts,
	// even when an active record exists. Single strategy: returns the existing
	// record untouched when one exists.
	Create(ctx context.Context, userKey string) (*Record, error)

	// SaveAnswer applies the transition from expected onto the user's active
	// record and commits. Returns (nil, nil) when there is no record to
	// answer, and (fresh, ErrStatusChanged) when the record moved past
	// expected in the meantime.
	SaveAnswer(ctx context.Context, userKey, answer string, expected Status) (*Record, error)

	// ExportAll returns every record ever created, in no particular order.
	ExportAll(ctx context.Context) ([]Record, error)
}

// Sender delivers one outbound text to a user on some chat transport.
// Delivery is at-most-once; failures are logged by implementations and
// reported to the caller for accounting only.
type Sender interface {
	Name() string
	Send(ctx context.Context, userKey, text string) error
}

// Transition returns the successor status and the answer slot (1 or 2) the
// inbound text fills when answering from current. ok is false when current
// accepts no answer; completed records are never mutated.
func Transition(current Status) (next Status, slot int, ok bool) {
	switch current {
	case StatusStarted:
		return StatusQ1Answered, 1, true
	case StatusQ1Answered:
		return StatusCompleted, 2, true
	default:
		return current, 0, false
	}
}
