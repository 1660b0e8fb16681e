package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"parley/internal/store"
)

// Manifest declares the agent pool in YAML. Synced records carry the
// manifest source so a re-sync prunes only rows it owns.
type Manifest struct {
	Agents []ManifestAgent `yaml:"agents"`
}

type ManifestAgent struct {
	Name     string            `yaml:"name"`
	Topic    string            `yaml:"topic"`
	Pubsub   string            `yaml:"pubsub"`
	Metadata map[string]string `yaml:"metadata"`
}

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	manifest := &Manifest{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	for i, agent := range manifest.Agents {
		if agent.Name == "" {
			return nil, fmt.Errorf("manifest agent %d: name is required", i)
		}
	}
	return manifest, nil
}

// SyncManifest upserts every manifest agent and prunes manifest-sourced
// records that disappeared from the file.
func (c *Client) SyncManifest(ctx context.Context, path string) error {
	manifest, err := LoadManifest(path)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(manifest.Agents))
	for _, agent := range manifest.Agents {
		names = append(names, agent.Name)
		record := store.AgentRecord{
			Name:     agent.Name,
			Topic:    agent.Topic,
			Pubsub:   agent.Pubsub,
			Source:   store.AgentSourceManifest,
			Metadata: agent.Metadata,
		}
		if err := c.Register(ctx, record); err != nil {
			return fmt.Errorf("sync agent %s: %w", agent.Name, err)
		}
	}

	if err := c.store.PruneManifestAgents(c.key, names); err != nil {
		return err
	}

	c.logInfo("manifest synced", map[string]string{
		"path":   path,
		"agents": fmt.Sprintf("%d", len(names)),
	})
	return nil
}
