package memory

import (
	"context"
	"errors"
	"sync"

	reconciliation "school-treasury/internal/reconciliation/domain"
)

// ErrTenantNotFound is returned when no snapshot was stored for a tenant.
var ErrTenantNotFound = errors.New("memory ledger: tenant not found")

// SnapshotProvider is an in-memory ledger data provider.
type SnapshotProvider struct {
	mu        sync.RWMutex
	snapshots map[reconciliation.TenantID]*reconciliation.Snapshot
	schedules map[reconciliation.TenantID]reconciliation.ScheduleSpec
}

// NewSnapshotProvider constructs a provider.
func NewSnapshotProvider() *SnapshotProvider {
	return &SnapshotProvider{
		snapshots: make(map[reconciliation.TenantID]*reconciliation.Snapshot),
		schedules: make(map[reconciliation.TenantID]reconciliation.ScheduleSpec),
	}
}

// Put stores a snapshot and its schedule (overwrites existing).
func (p *SnapshotProvider) Put(snap *reconciliation.Snapshot, schedule reconciliation.ScheduleSpec) error {
	if snap == nil {
		return reconciliation.ErrNilSnapshot
	}
	if snap.TenantID == "" {
		return errors.New("memory ledger: empty tenant id")
	}
	copy := clone(snap)
	p.mu.Lock()
	p.snapshots[snap.TenantID] = copy
	p.schedules[snap.TenantID] = schedule
	p.mu.Unlock()
	return nil
}

// LoadSnapshot returns a detached copy of the tenant snapshot.
func (p *SnapshotProvider) LoadSnapshot(ctx context.Context, tenantID reconciliation.TenantID) (*reconciliation.Snapshot, error) {
	_ = ctx
	p.mu.RLock()
	snap := p.snapshots[tenantID]
	p.mu.RUnlock()
	if snap == nil {
		return nil, ErrTenantNotFound
	}
	return clone(snap), nil
}

// ScheduleFor returns the schedule stored with the tenant snapshot.
func (p *SnapshotProvider) ScheduleFor(ctx context.Context, tenantID reconciliation.TenantID) (reconciliation.ScheduleSpec, error) {
	_ = ctx
	p.mu.RLock()
	spec, ok := p.schedules[tenantID]
	p.mu.RUnlock()
	if !ok {
		return reconciliation.ScheduleSpec{}, ErrTenantNotFound
	}
	return spec, nil
}

// ListStudentIDs lists a tenant's students in stored order.
func (p *SnapshotProvider) ListStudentIDs(ctx context.Context, tenantID reconciliation.TenantID) ([]reconciliation.StudentID, error) {
	_ = ctx
	p.mu.RLock()
	defer p.mu.RUnlock()
	snap := p.snapshots[tenantID]
	if snap == nil {
		return nil, ErrTenantNotFound
	}
	return snap.StudentIDs(), nil
}

// Tenants lists stored tenant ids.
func (p *SnapshotProvider) Tenants() []reconciliation.TenantID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]reconciliation.TenantID, 0, len(p.snapshots))
	for id := range p.snapshots {
		out = append(out, id)
	}
	return out
}

func clone(snap *reconciliation.Snapshot) *reconciliation.Snapshot {
	copy := *snap
	copy.Students = append([]reconciliation.Student(nil), snap.Students...)
	copy.Activities = make([]reconciliation.Activity, len(snap.Activities))
	for i, a := range snap.Activities {
		if a.OccursOn != nil {
			t := *a.OccursOn
			a.OccursOn = &t
		}
		copy.Activities[i] = a
	}
	copy.Exclusions = append([]reconciliation.Exclusion(nil), snap.Exclusions...)
	copy.Payments = make([]reconciliation.Payment, len(snap.Payments))
	for i, pay := range snap.Payments {
		if pay.StudentID != nil {
			id := *pay.StudentID
			pay.StudentID = &id
		}
		if pay.ActivityID != nil {
			id := *pay.ActivityID
			pay.ActivityID = &id
		}
		copy.Payments[i] = pay
	}
	copy.Credits = append([]reconciliation.CreditEntry(nil), snap.Credits...)
	return &copy
}
