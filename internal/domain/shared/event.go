package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact the ledger publishes after a change commits.
// TenantID scopes handlers; EventID is the idempotency key for consumers.
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent is embedded by concrete events to satisfy DomainEvent
type BaseDomainEvent struct {
	Meta EventMeta `json:"meta"`
}

// EventMeta is the envelope shared by every ledger event
type EventMeta struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	At            time.Time `json:"occurred_at"`
	Aggregate     uuid.UUID `json:"aggregate_id"`
	AggregateKind string    `json:"aggregate_type"`
	Tenant        uuid.UUID `json:"tenant_id"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.Meta.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Meta.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.Meta.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Meta.Aggregate }
func (e *BaseDomainEvent) AggregateType() string  { return e.Meta.AggregateKind }
func (e *BaseDomainEvent) TenantID() uuid.UUID    { return e.Meta.Tenant }

// NewBaseDomainEvent stamps a new event for aggregate aggID of kind aggType
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{Meta: EventMeta{
		ID:            uuid.New(),
		Type:          eventType,
		At:            time.Now().UTC(),
		Aggregate:     aggID,
		AggregateKind: aggType,
		Tenant:        tenantID,
	}}
}
