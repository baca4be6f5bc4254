package handler

import (
	"time"

	"github.com/CortekUK/drive-247-sub002/internal/domain/ledger"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// uuidString renders an optional id, empty when unset
func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// parseOptionalUUID parses an optional id field
func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// parseOptionalDate accepts RFC 3339 timestamps or plain dates
func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// toCategories converts request category names
func toCategories(names []string) []ledger.Category {
	if len(names) == 0 {
		return nil
	}
	out := make([]ledger.Category, len(names))
	for i, n := range names {
		out[i] = ledger.Category(n)
	}
	return out
}

func categoryNames(cats []ledger.Category) []string {
	out := make([]string, len(cats))
	for i, c := range cats {
		out[i] = c.String()
	}
	return out
}
