package temporalworker

import (
	"errors"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"parley/internal/logging"
	"parley/internal/orchestrator"
	"parley/internal/temporal"
)

const defaultMaxConcurrentActivities = 10
const defaultMaxConcurrentWorkflowTasks = 10
const defaultWorkerStopTimeout = 5 * time.Second
const defaultDeadlockDetectionTimeout = 10 * time.Second

var workerMutex sync.Mutex
var activeWorker worker.Worker

// StartWorker registers the orchestration workflow and its activities on
// the given task queue. Only one worker runs per process.
func StartWorker(temporalClient temporal.WorkflowClient, handlers *orchestrator.Activities, taskQueue string, logger *logging.Logger) error {
	if temporalClient == nil {
		return errors.New("temporal client is required")
	}
	if handlers == nil {
		return errors.New("activity handlers are required")
	}
	if taskQueue == "" {
		return errors.New("task queue is required")
	}

	sdkClient, ok := temporalClient.(client.Client)
	if !ok {
		return errors.New("temporal client does not support worker")
	}

	workerMutex.Lock()
	if activeWorker != nil {
		workerMutex.Unlock()
		return errors.New("temporal worker already running")
	}
	workerMutex.Unlock()

	workerOptions := worker.Options{
		MaxConcurrentActivityExecutionSize:     defaultMaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: defaultMaxConcurrentWorkflowTasks,
		MaxConcurrentActivityTaskPollers:       2,
		MaxConcurrentWorkflowTaskPollers:       2,
		WorkerStopTimeout:                      defaultWorkerStopTimeout,
		DeadlockDetectionTimeout:               defaultDeadlockDetectionTimeout,
	}

	workerInstance := worker.New(sdkClient, taskQueue, workerOptions)
	workerInstance.RegisterWorkflow(orchestrator.OrchestrationWorkflow)
	workerInstance.RegisterActivity(handlers)

	startError := workerInstance.Start()
	if startError != nil {
		return startError
	}

	workerMutex.Lock()
	activeWorker = workerInstance
	workerMutex.Unlock()

	if logger != nil {
		logger.Info("temporal worker started", map[string]string{
			"task_queue": taskQueue,
		})
	}

	return nil
}

func StopWorker() {
	workerMutex.Lock()
	workerInstance := activeWorker
	activeWorker = nil
	workerMutex.Unlock()

	if workerInstance != nil {
		workerInstance.Stop()
	}
}
