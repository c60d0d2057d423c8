/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package realtime

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType is the kind of table change carried by an Event.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one change notification for a table row.
type Event struct {
	Table  string      `json:"table"`
	Type   EventType   `json:"type"`
	Record interface{} `json:"record"`
	At     time.Time   `json:"at"`
}

const subscriptionBuffer = 16

// Subscription receives matching events on C until Close is called. A
// subscriber that falls behind has events dropped rather than slowing
// publishers down.
type Subscription struct {
	C chan Event

	hub   *Hub
	table string
	types map[EventType]bool
}

func (s *Subscription) matches(event Event) bool {
	if s.table != "" && s.table != event.Table {
		return false
	}
	if len(s.types) > 0 && !s.types[event.Type] {
		return false
	}
	return true
}

// Close removes the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans table change events out to any number of concurrent listeners.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a listener for events on the given table, optionally
// filtered to specific event types. An empty table matches every table; no
// types means all types.
func (h *Hub) Subscribe(table string, types ...EventType) *Subscription {
	sub := &Subscription{
		C:     make(chan Event, subscriptionBuffer),
		hub:   h,
		table: table,
		types: make(map[EventType]bool, len(types)),
	}
	for _, eventType := range types {
		sub.types[eventType] = true
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(sub.C)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.C)
	}
}

// Publish delivers the event to every matching subscriber without blocking.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		if !sub.matches(event) {
			continue
		}
		select {
		case sub.C <- event:
		default:
			zap.L().Debug("Dropping realtime event for slow subscriber",
				zap.String("table", event.Table),
				zap.String("type", string(event.Type)))
		}
	}
}

// Close shuts the hub down and closes every subscription channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.C)
	}
}
