// Package eventbus implements the per-game append-only event journal and
// its scoped fan-out (§4.5). It is intentionally decoupled from the game
// domain: scopes are plain strings so that the round engine's room ids
// plumb straight through without a translation layer, and membership is
// resolved through a small structural interface rather than an import of
// package model.
package eventbus

import (
	"sync"
	"time"
)

// ScopeKind is the closed set of audiences an event can target (§3.6).
type ScopeKind int

const (
	ScopePublic ScopeKind = iota
	ScopeRoom
	ScopePlayer
)

// Scope names an event's audience. For ScopeRoom, RoomID is the room key
// ("A"/"B" in this domain, but the bus does not care). For ScopePlayer,
// PlayerID is the sole recipient.
type Scope struct {
	Kind     ScopeKind
	RoomID   string
	PlayerID string
}

func Public() Scope                { return Scope{Kind: ScopePublic} }
func Room(roomID string) Scope     { return Scope{Kind: ScopeRoom, RoomID: roomID} }
func PlayerScope(id string) Scope  { return Scope{Kind: ScopePlayer, PlayerID: id} }
func (s Scope) IsPublic() bool     { return s.Kind == ScopePublic }
func (s Scope) IsRoomScoped() bool { return s.Kind == ScopeRoom }

// Event is one journal entry (§3.6). Audience is a snapshot of room
// membership taken at publish time, so later membership changes (e.g. a
// hostage exchange) never retroactively grant or revoke visibility of
// events already published — this is the "resolved at publish time"
// requirement of §4.5.
type Event struct {
	ID        string
	Sequence  uint64
	Type      string
	Scope     Scope
	Audience  map[string]struct{}
	Payload   any
	Timestamp time.Time
}

// MembershipResolver is satisfied structurally by model.Game (it only
// needs a RoomMembers(string) []string method) so this package never
// imports the domain model.
type MembershipResolver interface {
	RoomMembers(roomID string) []string
}

// Subscriber receives events pushed synchronously by Publish, after the
// journal's lock is released. Implementations must not block; a transport adapter
// should enqueue to its own outbound buffer and return immediately.
type Subscriber interface {
	Deliver(Event)
}

// Subscription identifies one observer. PlayerID is required for any
// subscriber that should ever receive a ScopePlayer event addressed to
// them and is used to test ScopeRoom membership against the publish-time
// snapshot. RoomID is an optional explicit override for observers that
// are not a seated player (e.g. an admin/spectator view of one room).
type Subscription struct {
	ID       string
	PlayerID string
	RoomID   string
}

func (s Subscription) matches(e Event) bool {
	switch e.Scope.Kind {
	case ScopePublic:
		return true
	case ScopeRoom:
		if s.PlayerID != "" {
			_, ok := e.Audience[s.PlayerID]
			if ok {
				return true
			}
		}
		return s.RoomID != "" && s.RoomID == e.Scope.RoomID
	case ScopePlayer:
		return s.PlayerID != "" && s.PlayerID == e.Scope.PlayerID
	default:
		return false
	}
}

// Journal is the append-only per-game event sequence plus its live
// subscriber set. It is owned by the game's single-writer executor for
// writes (§5); reads of the retained slice are protected by the same
// mutex since replay can be requested from other goroutines (e.g. a
// reconnect handler running outside the executor's current command).
type Journal struct {
	mu          sync.Mutex
	gameID      string
	members     MembershipResolver
	events      []Event
	nextSeq     uint64
	retain      int
	subscribers map[string]Subscription
	subscriber  map[string]Subscriber
	idFunc      func() string
}

const defaultRetain = 1000

// New creates a journal for one game. idFunc generates event ids (the
// caller supplies this so the journal never reaches for time/rand itself
// and stays trivially testable).
func New(gameID string, members MembershipResolver, idFunc func() string) *Journal {
	return &Journal{
		gameID:      gameID,
		members:     members,
		retain:      defaultRetain,
		subscribers: make(map[string]Subscription),
		subscriber:  make(map[string]Subscriber),
		idFunc:      idFunc,
	}
}

// Publish assigns the next sequence number, appends the event, and
// delivers it synchronously to every matching live subscriber. The
// returned Event carries its final sequence number.
func (j *Journal) Publish(now time.Time, eventType string, scope Scope, payload any) Event {
	j.mu.Lock()
	j.nextSeq++
	e := Event{
		ID:        j.idFunc(),
		Sequence:  j.nextSeq,
		Type:      eventType,
		Scope:     scope,
		Payload:   payload,
		Timestamp: now,
	}
	if scope.Kind == ScopeRoom && j.members != nil {
		members := j.members.RoomMembers(scope.RoomID)
		audience := make(map[string]struct{}, len(members))
		for _, id := range members {
			audience[id] = struct{}{}
		}
		e.Audience = audience
	}
	j.events = append(j.events, e)
	if j.retain > 0 && len(j.events) > j.retain {
		j.events = j.events[len(j.events)-j.retain:]
	}
	targets := make([]Subscriber, 0, len(j.subscriber))
	for id, spec := range j.subscribers {
		if spec.matches(e) {
			targets = append(targets, j.subscriber[id])
		}
	}
	j.mu.Unlock()

	for _, sub := range targets {
		sub.Deliver(e)
	}
	return e
}

// Subscribe registers a live subscriber under spec.ID; an existing
// subscriber with the same id is replaced.
func (j *Journal) Subscribe(spec Subscription, sub Subscriber) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subscribers[spec.ID] = spec
	j.subscriber[spec.ID] = sub
}

func (j *Journal) Unsubscribe(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.subscribers, id)
	delete(j.subscriber, id)
}

// ReplaySince returns every retained event with Sequence > acked that
// matches spec, in order (§4.5, §4.4.1 reconnect replay).
func (j *Journal) ReplaySince(spec Subscription, acked uint64) []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Event, 0)
	for _, e := range j.events {
		if e.Sequence <= acked {
			continue
		}
		if spec.matches(e) {
			out = append(out, e)
		}
	}
	return out
}

// LatestSequence returns the highest sequence number issued so far.
func (j *Journal) LatestSequence() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextSeq
}

// Len returns the number of retained (possibly truncated) events.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}
