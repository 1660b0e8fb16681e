// Package registry exposes the agents registry the coordinator selects
// speakers from. Records live in a SQLite store shared with other
// orchestrators; a registry key namespaces each team's rows.
package registry

import (
	"context"
	"fmt"

	"parley/internal/event"
	"parley/internal/logging"
	"parley/internal/store"
)

type Client struct {
	store  *store.Store
	key    string
	self   string
	logger *logging.Logger
	events *event.Bus[event.Event]
}

type Options struct {
	Store    *store.Store
	Key      string
	SelfName string
	Logger   *logging.Logger
	Events   *event.Bus[event.Event]
}

func New(opts Options) (*Client, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("registry store is required")
	}
	if opts.Key == "" {
		opts.Key = "agents"
	}
	return &Client{
		store:  opts.Store,
		key:    opts.Key,
		self:   opts.SelfName,
		logger: opts.Logger,
		events: opts.Events,
	}, nil
}

type GetAgentsOptions struct {
	ExcludeSelf          bool
	ExcludeOrchestrators bool
}

// GetAgents returns registry records keyed by agent name, applying the
// requested exclusions.
func (c *Client) GetAgents(ctx context.Context, opts GetAgentsOptions) (map[string]store.AgentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := c.store.ListAgents(c.key)
	if err != nil {
		return nil, fmt.Errorf("get agents: %w", err)
	}

	agents := make(map[string]store.AgentRecord, len(records))
	for _, record := range records {
		if opts.ExcludeSelf && record.Name == c.self {
			continue
		}
		if opts.ExcludeOrchestrators && record.Orchestrator {
			continue
		}
		agents[record.Name] = record
	}
	return agents, nil
}

// Lookup returns the record for name without exclusions, or nil when the
// agent is not registered.
func (c *Client) Lookup(ctx context.Context, name string) (*store.AgentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	record, err := c.store.GetAgent(c.key, name)
	if err != nil {
		return nil, fmt.Errorf("lookup agent: %w", err)
	}
	return record, nil
}

func (c *Client) List(ctx context.Context) ([]store.AgentRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := c.store.ListAgents(c.key)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return records, nil
}

func (c *Client) Register(ctx context.Context, record store.AgentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.Name == "" {
		return fmt.Errorf("register agent: name is required")
	}
	if err := c.store.SaveAgent(c.key, record); err != nil {
		return err
	}
	c.logInfo("agent registered", map[string]string{"agent": record.Name, "source": record.Source})
	c.publish(event.NewRegistryEvent("agent_registered", record.Name))
	return nil
}

func (c *Client) Deregister(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.store.DeleteAgent(c.key, name); err != nil {
		return err
	}
	c.logInfo("agent deregistered", map[string]string{"agent": name})
	c.publish(event.NewRegistryEvent("agent_deregistered", name))
	return nil
}

// RegisterSelf records the orchestrator's own presence so other
// orchestrators can exclude it and agents can discover the reply topic.
func (c *Client) RegisterSelf(ctx context.Context, topic, pubsub string) error {
	return c.Register(ctx, store.AgentRecord{
		Name:         c.self,
		Topic:        topic,
		Pubsub:       pubsub,
		Orchestrator: true,
		Source:       store.AgentSourceSelf,
		Metadata: map[string]string{
			"name":   c.self,
			"topic":  topic,
			"pubsub": pubsub,
		},
	})
}

func (c *Client) logInfo(message string, fields map[string]string) {
	if c.logger != nil {
		c.logger.Info(message, fields)
	}
}

func (c *Client) publish(ev event.Event) {
	if c.events != nil {
		c.events.Publish(ev)
	}
}
