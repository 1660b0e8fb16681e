package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"parley/internal/api"
	"parley/internal/config"
	"parley/internal/event"
	"parley/internal/logging"
	"parley/internal/metrics"
	"parley/internal/natsbus"
	"parley/internal/orchestrator"
	"parley/internal/registry"
	"parley/internal/store"
	"parley/internal/temporal"
	temporalworker "parley/internal/temporal/worker"
	"parley/internal/version"
)

const httpServerShutdownTimeout = 5 * time.Second

const eventHistorySize = 256

func runServe(args []string) int {
	cfg, err := loadConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if cfg.ShowVersion {
		if version.Version == "" || version.Version == "dev" {
			fmt.Fprintln(os.Stdout, "parley dev")
		} else {
			fmt.Fprintf(os.Stdout, "parley version %s\n", version.Version)
		}
		return 0
	}

	logBuffer := logging.NewLogBuffer(logging.DefaultBufferSize)
	logLevel := logging.LevelInfo
	if parsed, ok := logging.ParseLevel(cfg.Config.LogLevel); ok {
		logLevel = parsed
	}
	if cfg.Verbose {
		logLevel = logging.LevelDebug
	} else if cfg.Quiet {
		logLevel = logging.LevelWarning
	}
	logger := logging.NewLogger(logBuffer, logLevel)
	if cfg.Verbose {
		logStartupFlags(logger, cfg.flags)
	}
	logVersionInfo(logger)

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataDir := cfg.Config.Store.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		logger.Error("data dir create failed", map[string]string{
			"path":  dataDir,
			"error": err.Error(),
		})
		return 1
	}

	stateStore, err := openNamedStore(dataDir, cfg.Config.Orchestrator.StateStoreName)
	if err != nil {
		logger.Error("state store open failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	defer stateStore.Close()

	registryStore, err := openNamedStore(dataDir, cfg.Config.Orchestrator.AgentsRegistryStoreName)
	if err != nil {
		logger.Error("registry store open failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	defer registryStore.Close()

	eventBus := event.NewBus[event.Event](rootCtx, event.BusOptions{
		Name:        "orchestration_events",
		HistorySize: eventHistorySize,
		Registry:    metrics.Default,
	})

	busClient, natsServer, err := connectMessageBus(cfg.Config.NATS, logger)
	if err != nil {
		logger.Error("message bus unavailable", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	if natsServer != nil {
		defer natsServer.Close()
	}
	defer busClient.Close()

	reg, err := registry.New(registry.Options{
		Store:    registryStore,
		Key:      cfg.Config.Orchestrator.AgentsRegistryKey,
		SelfName: cfg.Config.Orchestrator.Name,
		Logger:   logger,
		Events:   eventBus,
	})
	if err != nil {
		logger.Error("registry init failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}

	if manifestPath := cfg.Config.Agents.ManifestPath; manifestPath != "" {
		if err := reg.SyncManifest(rootCtx, manifestPath); err != nil {
			logger.Warn("manifest sync failed", map[string]string{
				"path":  manifestPath,
				"error": err.Error(),
			})
		}
		if cfg.Config.Agents.Watch {
			stopWatch, err := registry.WatchManifest(rootCtx, manifestPath, logger, func() {
				if err := reg.SyncManifest(rootCtx, manifestPath); err != nil {
					logger.Warn("manifest sync failed", map[string]string{
						"path":  manifestPath,
						"error": err.Error(),
					})
				}
			})
			if err != nil {
				logger.Warn("manifest watcher unavailable", map[string]string{
					"path":  manifestPath,
					"error": err.Error(),
				})
			} else {
				defer stopWatch()
			}
		}
	}

	temporalClient, err := temporal.NewClient(temporal.ClientConfig{
		HostPort:  cfg.Config.Temporal.HostPort,
		Namespace: cfg.Config.Temporal.Namespace,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("temporal client unavailable", map[string]string{
			"host":      cfg.Config.Temporal.HostPort,
			"namespace": cfg.Config.Temporal.Namespace,
			"error":     err.Error(),
		})
		return 1
	}
	defer temporalClient.Close()
	logger.Info("temporal client connected", map[string]string{
		"host":      cfg.Config.Temporal.HostPort,
		"namespace": cfg.Config.Temporal.Namespace,
	})

	coordinator, err := orchestrator.NewCoordinator(orchestrator.CoordinatorOptions{
		Config:    cfg.Config.Orchestrator,
		TaskQueue: cfg.Config.Temporal.TaskQueue,
		DataDir:   dataDir,
		Registry:  reg,
		Bus:       busClient,
		Temporal:  temporalClient,
		Store:     stateStore,
		Logger:    logger,
		Metrics:   metrics.Default,
		Events:    eventBus,
	})
	if err != nil {
		logger.Error("coordinator init failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	if err := coordinator.Start(rootCtx); err != nil {
		logger.Error("orchestrator registration failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}

	if err := temporalworker.StartWorker(temporalClient, orchestrator.NewActivities(coordinator), cfg.Config.Temporal.TaskQueue, logger); err != nil {
		logger.Error("temporal worker start failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	defer temporalworker.StopWorker()

	inbox, err := busClient.Subscribe(coordinator.InboxTopic(), func(msg *nats.Msg) {
		coordinator.HandleResponsePayload(rootCtx, msg.Data)
	})
	if err != nil {
		logger.Error("inbox subscribe failed", map[string]string{
			"topic": coordinator.InboxTopic(),
			"error": err.Error(),
		})
		return 1
	}
	defer func() {
		_ = inbox.Unsubscribe()
	}()
	if err := busClient.Flush(); err != nil {
		logger.Warn("nats flush failed", map[string]string{
			"error": err.Error(),
		})
	}
	logger.Info("inbox subscribed", map[string]string{
		"topic": coordinator.InboxTopic(),
	})

	mux := http.NewServeMux()
	api.RegisterRoutes(mux, coordinator, stateStore, reg, temporalClient, eventBus, cfg.Config.HTTP.AuthToken, logger)

	listener, _, err := listenOnPort(cfg.Config.HTTP.Port)
	if err != nil {
		logger.Error("listen failed", map[string]string{
			"error": err.Error(),
		})
		return 1
	}
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("parley listening", map[string]string{
		"addr":    listener.Addr().String(),
		"version": version.Version,
	})

	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopSignals)
	stopWatching := watchShutdownSignals(logger, cancel, stopSignals)
	defer stopWatching()

	shutdown := newShutdownCoordinator(logger)
	shutdown.Add("http", server.Shutdown)
	shutdown.Add("orchestrator", coordinator.Stop)

	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- server.Serve(listener)
	}()

	exitCode := 0
	select {
	case err := <-serveErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", map[string]string{
				"error": err.Error(),
			})
			exitCode = 1
		}
	case <-rootCtx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), httpServerShutdownTimeout)
	defer cancelShutdown()
	if err := shutdown.Run(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", map[string]string{
			"error": err.Error(),
		})
	}
	return exitCode
}

func openNamedStore(dataDir, name string) (*store.Store, error) {
	if name == "" {
		return nil, errors.New("store name is required")
	}
	return store.Open(filepath.Join(dataDir, name+".db"))
}

// connectMessageBus dials the configured external NATS server, or boots the
// embedded one when no URL is set. The returned server is nil in the
// external case.
func connectMessageBus(cfg config.NATSConfig, logger *logging.Logger) (*natsbus.Client, *natsbus.Server, error) {
	if cfg.URL != "" {
		client, err := natsbus.NewClientFromURL(cfg.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
		}
		logger.Info("nats connected", map[string]string{
			"url": cfg.URL,
		})
		return client, nil, nil
	}

	server, err := natsbus.NewServer(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded nats: %w", err)
	}
	client, err := natsbus.NewClient(server)
	if err != nil {
		server.Close()
		return nil, nil, fmt.Errorf("connect embedded nats: %w", err)
	}
	logger.Info("embedded nats started", map[string]string{
		"url": server.ClientURL(),
	})
	return client, server, nil
}

func listenOnPort(port int) (net.Listener, int, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, 0, err
	}
	tcpAddr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return nil, 0, fmt.Errorf("unexpected listener address type %T", listener.Addr())
	}
	return listener, tcpAddr.Port, nil
}
