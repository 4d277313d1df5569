// Package realtime pushes change notifications to websocket subscribers.
// Events carry identifiers only; clients re-fetch the row they care about.
package realtime

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	TypeAck    = "ack"
	TypeError  = "error"
	TypeChange = "change"

	EventInsert = "INSERT"
	EventUpdate = "UPDATE"

	KindMatch = "match"
	KindUser  = "user"
)

// Event is the frame written to subscribers.
type Event struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Event   string `json:"event,omitempty"`
	Table   string `json:"table,omitempty"`
	ID      uint64 `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Change builds a change event for a row in table.
func Change(event, table string, id uint64) Event {
	return Event{Type: TypeChange, Event: event, Table: table, ID: id}
}

func MatchTopic(id uint64) string {
	return fmt.Sprintf("match:%d", id)
}

func UserTopic(uid string) string {
	return "user:" + uid
}

// Topic is a parsed subscription topic.
type Topic struct {
	Kind    string
	MatchID uint64
	UID     string
}

// String renders the canonical key the hub indexes subscribers by.
func (t Topic) String() string {
	if t.Kind == KindMatch {
		return MatchTopic(t.MatchID)
	}
	return UserTopic(t.UID)
}

func ParseTopic(s string) (Topic, error) {
	kind, key, ok := strings.Cut(s, ":")
	if !ok || key == "" {
		return Topic{}, fmt.Errorf("malformed topic %q", s)
	}
	switch kind {
	case KindMatch:
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil || id == 0 {
			return Topic{}, fmt.Errorf("malformed match topic %q", s)
		}
		return Topic{Kind: kind, MatchID: id}, nil
	case KindUser:
		return Topic{Kind: kind, UID: key}, nil
	}
	return Topic{}, fmt.Errorf("unknown topic kind %q", kind)
}
