// Package changefeed delivers row-level change events from the request and
// notification tables to in-process subscribers.
package changefeed

import (
	"encoding/json"
	"sync"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// EventMask selects which event types a subscriber wants.
type EventMask uint8

const (
	Insert EventMask = 1 << iota
	Update
	Delete

	AllEvents = Insert | Update | Delete
)

func (m EventMask) Matches(t EventType) bool {
	switch t {
	case EventInsert:
		return m&Insert != 0
	case EventUpdate:
		return m&Update != 0
	case EventDelete:
		return m&Delete != 0
	}
	return false
}

// Change is one row event. New is absent on delete, Old on insert.
type Change struct {
	Table string          `json:"table"`
	Type  EventType       `json:"type"`
	New   json.RawMessage `json:"new,omitempty"`
	Old   json.RawMessage `json:"old,omitempty"`
}

// Handler runs on the feed's dispatch goroutine and must not block.
type Handler func(Change)

type Subscription interface {
	// Unsubscribe is safe to call more than once.
	Unsubscribe()
}

type Feed interface {
	Subscribe(table string, mask EventMask, handler Handler) Subscription
}

// Broker fans published changes out to subscribers in publish order.
type Broker struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]*brokerSub
}

type brokerSub struct {
	broker  *Broker
	table   string
	id      uint64
	mask    EventMask
	handler Handler
	once    sync.Once
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[uint64]*brokerSub)}
}

func (b *Broker) Subscribe(table string, mask EventMask, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	s := &brokerSub{broker: b, table: table, id: b.nextID, mask: mask, handler: handler}
	if b.subs[table] == nil {
		b.subs[table] = make(map[uint64]*brokerSub)
	}
	b.subs[table][s.id] = s
	return s
}

func (s *brokerSub) Unsubscribe() {
	s.once.Do(func() {
		b := s.broker
		b.mu.Lock()
		defer b.mu.Unlock()
		if subs, ok := b.subs[s.table]; ok {
			delete(subs, s.id)
			if len(subs) == 0 {
				delete(b.subs, s.table)
			}
		}
	})
}

// Publish invokes every matching handler synchronously.
func (b *Broker) Publish(c Change) {
	b.mu.RLock()
	matched := make([]*brokerSub, 0, len(b.subs[c.Table]))
	for _, s := range b.subs[c.Table] {
		if s.mask.Matches(c.Type) {
			matched = append(matched, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range matched {
		s.handler(c)
	}
}

// Subscribers reports how many subscriptions a table has.
func (b *Broker) Subscribers(table string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[table])
}
