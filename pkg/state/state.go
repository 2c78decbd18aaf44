// Package state holds the checker's persisted run state and the stores
// that load and save it between invocations.
package state

import (
	"context"
	"time"
)

// Store loads and saves the whole state document. Implementations are
// not transactional; the external scheduler guarantees runs never
// overlap.
type Store interface {
	Load(ctx context.Context) (*RunState, error)
	Save(ctx context.Context, st *RunState) error
}

// TopicRecord is the last observed human message in one PBP topic.
type TopicRecord struct {
	LastMessageTime time.Time `json:"last_message_time"`
	LastUser        string    `json:"last_user"`
	CampaignName    string    `json:"campaign_name"`
}

// LogEntry is one captured message excerpt, kept only when log capture
// is enabled in config.
type LogEntry struct {
	Time time.Time `json:"t"`
	Who  string    `json:"who"`
	Text string    `json:"text"`
}

// RunState is the whole persisted document. It is read once at the start
// of a run, mutated in place, and written back wholesale at the end.
// Keys in Topics, LastAlerts and Logs are the string form of PBP topic
// ids; entries for topics removed from config are left in place.
type RunState struct {
	Offset     int64                  `json:"offset"`
	Topics     map[string]TopicRecord `json:"topics"`
	LastAlerts map[string]time.Time   `json:"last_alerts"`
	Logs       map[string][]LogEntry  `json:"pbp_logs,omitempty"`
}

// New returns the empty state a first run starts from.
func New() *RunState {
	return &RunState{
		Topics:     make(map[string]TopicRecord),
		LastAlerts: make(map[string]time.Time),
	}
}

// normalize fills in nil maps after deserialization so callers can
// assign without checking.
func (s *RunState) normalize() {
	if s.Topics == nil {
		s.Topics = make(map[string]TopicRecord)
	}
	if s.LastAlerts == nil {
		s.LastAlerts = make(map[string]time.Time)
	}
}
