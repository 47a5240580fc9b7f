package runtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oz-collabo-04/Back/contract"
	"github.com/oz-collabo-04/Back/domain"
	"github.com/oz-collabo-04/Back/domain/event"
	"github.com/oz-collabo-04/Back/observability"
	"github.com/samber/lo"
)

var _ contract.IRegistry = (*Registry)(nil)

type Set map[domain.GroupName]struct{}

// Registry maps group names to the members currently connected to them.
// One lock guards both indexes, so Publish never observes a half-applied Join or Leave.
type Registry struct {
	mu          sync.RWMutex
	log         *slog.Logger
	monitor     *observability.Monitor
	groups      map[domain.GroupName]map[string]contract.Member // group -> member id -> member
	memberships map[string]Set                                   // member id -> groups
}

func NewRegistry(log *slog.Logger, monitor *observability.Monitor) *Registry {
	return &Registry{
		log:         log,
		monitor:     monitor,
		groups:      make(map[domain.GroupName]map[string]contract.Member),
		memberships: make(map[string]Set),
	}
}

// Join adds the member to the group, creating the group on first join.
// Joining twice is a no-op.
func (r *Registry) Join(group domain.GroupName, member contract.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.groups[group]; !ok {
		r.groups[group] = make(map[string]contract.Member)
	}
	r.groups[group][member.ID()] = member

	if _, ok := r.memberships[member.ID()]; !ok {
		r.memberships[member.ID()] = make(Set)
	}
	r.memberships[member.ID()][group] = struct{}{}
}

// Leave removes the member from the group. Removing an absent member is a no-op.
// Groups left without members are pruned.
func (r *Registry) Leave(group domain.GroupName, member contract.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(group, member.ID())
}

// LeaveAll removes the member from every group it belongs to.
func (r *Registry) LeaveAll(member contract.Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for group := range r.memberships[member.ID()] {
		r.leave(group, member.ID())
	}
}

func (r *Registry) leave(group domain.GroupName, memberID string) {
	if members, ok := r.groups[group]; ok {
		delete(members, memberID)
		if len(members) == 0 {
			delete(r.groups, group)
		}
	}
	if groups, ok := r.memberships[memberID]; ok {
		delete(groups, group)
		if len(groups) == 0 {
			delete(r.memberships, memberID)
		}
	}
}

// Publish hands a copy of the event to every member of the group at the time of the call.
// Members are snapshotted under the read lock and delivered to outside of it.
// Publishing to an unknown or empty group is a silent no-op.
// It returns the number of members attempted.
func (r *Registry) Publish(ctx context.Context, group domain.GroupName, evt event.Event) int {
	members := r.Members(group)
	if r.monitor != nil {
		r.monitor.IncrPublished()
	}
	if len(members) == 0 {
		r.log.Debug("Publish to empty group", "group", group, "type", evt.Type())
		return 0
	}

	delivered := 0
	for _, m := range members {
		if ctx.Err() != nil {
			r.log.Debug("Publish interrupted", "group", group, "error", ctx.Err())
			break
		}
		if err := m.Deliver(evt.Clone()); err != nil {
			r.log.Debug("Delivery skipped", "group", group, "member", m.ID(), "error", err)
			continue
		}
		delivered++
	}
	if r.monitor != nil {
		r.monitor.AddDelivered(delivered)
	}
	return len(members)
}

// Members returns a snapshot of the members of a group, or nil if the group doesn't exist.
func (r *Registry) Members(group domain.GroupName) []contract.Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.groups[group]
	if !ok {
		return nil
	}
	return lo.Values(members)
}

// Groups returns the groups a member currently belongs to.
func (r *Registry) Groups(member contract.Member) []domain.GroupName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.Keys(r.memberships[member.ID()])
}

// Counts returns the number of live groups and of member/group pairs.
func (r *Registry) Counts() (groups int, memberships int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, members := range r.groups {
		memberships += len(members)
	}
	return len(r.groups), memberships
}
