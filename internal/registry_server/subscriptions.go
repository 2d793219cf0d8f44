package registry_server

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/horockey/fit/internal/model"
	"github.com/horockey/fit/pkg/sortedx"
	"github.com/samber/lo"
)

// ListenerState is what the collector knows about a listener.
type ListenerState struct {
	ID            string
	Address       model.Address
	LastHeartbeat time.Time
	Dying         bool
}

// OfflinePredicate picks the ids of offline listeners out of the live set.
type OfflinePredicate func(now time.Time, live []ListenerState) []string

// HeartbeatPredicate treats dying listeners and those silent for longer than
// ttl as offline.
func HeartbeatPredicate(ttl time.Duration) OfflinePredicate {
	return func(now time.Time, live []ListenerState) []string {
		offline := lo.Filter(live, func(ls ListenerState, _ int) bool {
			return ls.Dying || now.Sub(ls.LastHeartbeat) > ttl
		})
		return lo.Map(offline, func(ls ListenerState, _ int) string { return ls.ID })
	}
}

type subscription struct {
	fitable    model.Fitable
	listenerID string
}

func compareSubscriptions(a, b subscription) int {
	return cmp.Or(a.fitable.Compare(b.fitable), cmp.Compare(a.listenerID, b.listenerID))
}

// subscriptions is the table of listeners interested in fitables.
type subscriptions struct {
	table *sortedx.Repo[subscription]

	mu        sync.Mutex
	listeners map[string]*ListenerState
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		table:     sortedx.New(compareSubscriptions, nil),
		listeners: map[string]*ListenerState{},
	}
}

// add subscribes sub and counts as its heartbeat.
func (s *subscriptions) add(now time.Time, fitables []model.Fitable, sub model.Subscriber) {
	s.mu.Lock()
	ls, found := s.listeners[sub.ListenerID]
	if !found {
		ls = &ListenerState{ID: sub.ListenerID}
		s.listeners[sub.ListenerID] = ls
	}
	ls.Address = sub.Address
	ls.LastHeartbeat = now
	ls.Dying = false
	s.mu.Unlock()

	for _, f := range fitables {
		s.table.Get(subscription{fitable: f, listenerID: sub.ListenerID}, true)
	}
}

func (s *subscriptions) remove(fitables []model.Fitable, listenerID string) {
	for _, f := range fitables {
		s.table.Remove(subscription{fitable: f, listenerID: listenerID})
	}

	if !slices.ContainsFunc(s.table.List(), func(sub subscription) bool { return sub.listenerID == listenerID }) {
		s.mu.Lock()
		delete(s.listeners, listenerID)
		s.mu.Unlock()
	}
}

func (s *subscriptions) markDying(listenerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ls, found := s.listeners[listenerID]; found {
		ls.Dying = true
	}
}

// subscribers lists the listeners of f.
func (s *subscriptions) subscribers(f model.Fitable) []model.Subscriber {
	subs := s.table.Scan(subscription{fitable: f}, func(sub subscription) bool {
		return sub.fitable == f
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]model.Subscriber, 0, len(subs))
	for _, sub := range subs {
		if ls, found := s.listeners[sub.listenerID]; found {
			res = append(res, model.Subscriber{ListenerID: ls.ID, Address: ls.Address})
		}
	}
	return res
}

func (s *subscriptions) live() []ListenerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.MapToSlice(s.listeners, func(_ string, ls *ListenerState) ListenerState { return *ls })
}

// collect purges every subscription of the listeners offline reports.
func (s *subscriptions) collect(now time.Time, offline OfflinePredicate) []string {
	ids := offline(now, s.live())
	if len(ids) == 0 {
		return ids
	}

	dead := lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })
	s.table.RemoveFunc(func(sub subscription) bool {
		_, found := dead[sub.listenerID]
		return found
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.listeners, id)
	}
	return ids
}

func (s *subscriptions) count() int {
	return s.table.Count()
}
