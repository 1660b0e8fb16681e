package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Registration sources. Manifest sync only prunes its own rows so agents
// registered over the API or by the daemon itself survive a re-sync.
const (
	AgentSourceAPI      = "api"
	AgentSourceManifest = "manifest"
	AgentSourceSelf     = "self"
)

type AgentRecord struct {
	Name         string            `json:"name"`
	Topic        string            `json:"topic,omitempty"`
	Pubsub       string            `json:"pubsub,omitempty"`
	Orchestrator bool              `json:"orchestrator,omitempty"`
	Source       string            `json:"source,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	RegisteredAt time.Time         `json:"registered_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (s *Store) SaveAgent(registryKey string, record AgentRecord) error {
	metadata, err := encodeMetadata(record.Metadata)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", record.Name, err)
	}
	if record.Source == "" {
		record.Source = AgentSourceAPI
	}
	_, err = s.db.Exec(`
		INSERT INTO agents (name, registry_key, topic, pubsub, orchestrator, source, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, registry_key) DO UPDATE SET
			topic = excluded.topic,
			pubsub = excluded.pubsub,
			orchestrator = excluded.orchestrator,
			source = excluded.source,
			metadata = excluded.metadata,
			updated_at = CURRENT_TIMESTAMP`,
		record.Name, registryKey, record.Topic, record.Pubsub, record.Orchestrator, record.Source, metadata)
	if err != nil {
		return fmt.Errorf("save agent %s: %w", record.Name, err)
	}
	return nil
}

// GetAgent returns nil when the record does not exist.
func (s *Store) GetAgent(registryKey, name string) (*AgentRecord, error) {
	row := s.db.QueryRow(`
		SELECT name, topic, pubsub, orchestrator, source, metadata, registered_at, updated_at
		FROM agents WHERE registry_key = ? AND name = ?`, registryKey, name)
	record, err := scanAgent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get agent %s: %w", name, err)
	}
	return record, nil
}

func (s *Store) ListAgents(registryKey string) ([]AgentRecord, error) {
	rows, err := s.db.Query(`
		SELECT name, topic, pubsub, orchestrator, source, metadata, registered_at, updated_at
		FROM agents WHERE registry_key = ? ORDER BY name`, registryKey)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var records []AgentRecord
	for rows.Next() {
		record, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("list agents: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func (s *Store) DeleteAgent(registryKey, name string) error {
	_, err := s.db.Exec(`DELETE FROM agents WHERE registry_key = ? AND name = ?`, registryKey, name)
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", name, err)
	}
	return nil
}

// PruneManifestAgents removes manifest-sourced rows whose names are no
// longer present.
func (s *Store) PruneManifestAgents(registryKey string, keep []string) error {
	query := `DELETE FROM agents WHERE registry_key = ? AND source = ?`
	args := []any{registryKey, AgentSourceManifest}
	if len(keep) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
		query += fmt.Sprintf(" AND name NOT IN (%s)", placeholders)
		for _, name := range keep {
			args = append(args, name)
		}
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		return fmt.Errorf("prune manifest agents: %w", err)
	}
	return nil
}

func scanAgent(scanner interface {
	Scan(dest ...any) error
}) (*AgentRecord, error) {
	record := &AgentRecord{}
	var topic, pubsub, metadata sql.NullString
	err := scanner.Scan(&record.Name, &topic, &pubsub, &record.Orchestrator, &record.Source,
		&metadata, &record.RegisteredAt, &record.UpdatedAt)
	if err != nil {
		return nil, err
	}
	record.Topic = topic.String
	record.Pubsub = pubsub.String
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &record.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return record, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}
