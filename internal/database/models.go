package database

import (
	"time"

	"github.com/PbVrCt/serverless-chat-demo/internal/errs"
)

// TimestampLayout is the wire form of Message.CreatedAt: ISO-8601 with second
// precision and an explicit numeric offset (2023-05-01T10:00:00+00:00).
const TimestampLayout = "2006-01-02T15:04:05-07:00"

// Message is one chat turn, authored by a human or generated by the AI.
// Messages are immutable once appended.
type Message struct {
	ID                string
	CreatedAt         time.Time
	Text              string
	AIGenerated       bool
	AuthorDisplayName string
	TenantID          string
}

// VisibleTo reports whether the tenant may see m. AI turns are broadcast to
// every tenant; human turns stay private to their author's tenant.
func (m Message) VisibleTo(tenantID string) bool {
	return m.AIGenerated || m.TenantID == tenantID
}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp. RFC 3339 with a Z suffix or
// fractional seconds is accepted as well.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, err
		}
	}
	return t.UTC(), nil
}

// messageRow is the SQL representation of a Message.
type messageRow struct {
	ID          string `db:"id"`
	CreatedAt   string `db:"created_at"`
	Text        string `db:"text"`
	AIGenerated bool   `db:"ai_generated"`
	Username    string `db:"username"`
	TenantID    string `db:"tenant_id"`
}

func toMessageRow(m *Message) messageRow {
	return messageRow{
		ID:          m.ID,
		CreatedAt:   FormatTimestamp(m.CreatedAt),
		Text:        m.Text,
		AIGenerated: m.AIGenerated,
		Username:    m.AuthorDisplayName,
		TenantID:    m.TenantID,
	}
}

func (r messageRow) toMessage() (Message, error) {
	createdAt, err := ParseTimestamp(r.CreatedAt)
	return Message{
		ID:                r.ID,
		CreatedAt:         createdAt,
		Text:              r.Text,
		AIGenerated:       r.AIGenerated,
		AuthorDisplayName: r.Username,
		TenantID:          r.TenantID,
	}, err
}

// validateMessage rejects messages that are not fully populated. Id and
// timestamp are assigned by the caller, never by the store.
func validateMessage(m *Message) error {
	switch {
	case m == nil:
		return errs.NewValidationError("cannot append nil message", nil)
	case m.ID == "":
		return errs.NewValidationError("message must have an id", nil)
	case m.TenantID == "":
		return errs.NewValidationError("message must have a tenant_id", nil)
	case m.Text == "":
		return errs.NewValidationError("message must have non-empty text", nil)
	case m.CreatedAt.IsZero():
		return errs.NewValidationError("message must have a non-zero created_at", nil)
	}
	return nil
}
