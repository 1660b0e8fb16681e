package temporal

import (
	"context"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	"parley/internal/logging"
)

// WorkflowClient is the slice of the Temporal client the coordinator needs.
// The concrete client returned by NewClient also satisfies worker
// construction.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID, runID, queryType string, args ...interface{}) (converter.EncodedValue, error)
	Close()
}

type ClientConfig struct {
	HostPort  string
	Namespace string
	Logger    *logging.Logger
}

func NewClient(config ClientConfig) (WorkflowClient, error) {
	options := client.Options{
		HostPort:  config.HostPort,
		Namespace: config.Namespace,
	}
	if config.Logger != nil {
		options.Logger = newSDKLogger(config.Logger)
	}
	return client.Dial(options)
}
