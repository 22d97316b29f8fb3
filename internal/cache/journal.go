// internal/cache/journal.go
package cache

import "github.com/google/uuid"

// ActionRecord is one accepted match action, in the order the engine applied it.
type ActionRecord struct {
	MatchID       uuid.UUID              `json:"match_id"`
	ActionIndex   int                    `json:"action_index"`
	Actor         string                 `json:"actor,omitempty"` // username; empty for server-driven actions
	ActionType    string                 `json:"action_type"`
	ActionPayload map[string]interface{} `json:"action_payload"`
	Timestamp     int64                  `json:"timestamp"`
}

// Journal receives match actions. Publish must not block the caller.
type Journal interface {
	Publish(rec ActionRecord)
}

// NopJournal discards every record. Used when no Redis address is configured.
type NopJournal struct{}

func (NopJournal) Publish(ActionRecord) {}
