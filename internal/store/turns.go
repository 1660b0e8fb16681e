package store

import (
	"fmt"
	"time"
)

type Turn struct {
	InstanceID string    `json:"instance_id"`
	Turn       int       `json:"turn"`
	Speaker    string    `json:"speaker"`
	Content    string    `json:"content,omitempty"`
	TimedOut   bool      `json:"timed_out"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SaveTurn upserts a turn record. Replays of the same turn overwrite rather
// than duplicate.
func (s *Store) SaveTurn(t Turn) error {
	_, err := s.db.Exec(`
		INSERT INTO turns (instance_id, turn, speaker, content, timed_out)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(instance_id, turn) DO UPDATE SET
			speaker = excluded.speaker,
			content = excluded.content,
			timed_out = excluded.timed_out,
			recorded_at = CURRENT_TIMESTAMP`,
		t.InstanceID, t.Turn, t.Speaker, t.Content, t.TimedOut)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

func (s *Store) ListTurns(instanceID string) ([]Turn, error) {
	rows, err := s.db.Query(`
		SELECT instance_id, turn, speaker, content, timed_out, recorded_at
		FROM turns WHERE instance_id = ? ORDER BY turn`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		var content *string
		if err := rows.Scan(&t.InstanceID, &t.Turn, &t.Speaker, &content, &t.TimedOut, &t.RecordedAt); err != nil {
			return nil, fmt.Errorf("list turns: %w", err)
		}
		if content != nil {
			t.Content = *content
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
