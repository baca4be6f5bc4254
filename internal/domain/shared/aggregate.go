package shared

import (
	"github.com/google/uuid"
)

// TenantAggregateRoot is a tenant-owned entity that is saved under
// optimistic locking and records events while it changes.
// Version starts at 1 and is bumped by the repository on each save.
type TenantAggregateRoot struct {
	TenantEntity
	Version int
	pending []DomainEvent
}

// NewTenantAggregateRoot creates a new tenant-scoped aggregate root
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	return TenantAggregateRoot{
		TenantEntity: NewTenantEntity(tenantID),
		Version:      1,
	}
}

// RecordEvent queues an event for publication after the aggregate is saved
func (a *TenantAggregateRoot) RecordEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// PendingEvents returns the queued events without clearing them
func (a *TenantAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

// PullEvents returns the queued events and clears the queue
func (a *TenantAggregateRoot) PullEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
