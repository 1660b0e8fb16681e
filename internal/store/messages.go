package store

import (
	"fmt"
	"time"
)

type AgentMessage struct {
	ID         int64     `json:"id"`
	InstanceID string    `json:"instance_id,omitempty"`
	Role       string    `json:"role"`
	Name       string    `json:"name,omitempty"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"received_at"`
}

func (s *Store) AppendMessage(instanceID, role, name, content string) error {
	_, err := s.db.Exec(`
		INSERT INTO agent_messages (instance_id, role, name, content)
		VALUES (?, ?, ?, ?)`,
		instanceID, role, name, content)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (s *Store) ListMessages(instanceID string) ([]AgentMessage, error) {
	rows, err := s.db.Query(`
		SELECT id, instance_id, role, name, content, received_at
		FROM agent_messages WHERE instance_id = ? ORDER BY id`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []AgentMessage
	for rows.Next() {
		var m AgentMessage
		var instance, name *string
		if err := rows.Scan(&m.ID, &instance, &m.Role, &name, &m.Content, &m.ReceivedAt); err != nil {
			return nil, fmt.Errorf("list messages: %w", err)
		}
		if instance != nil {
			m.InstanceID = *instance
		}
		if name != nil {
			m.Name = *name
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
