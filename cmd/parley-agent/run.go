package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/internal/client"
	"parley/internal/logging"
	"parley/internal/natsbus"
)

func runAgent(cfg Config, out io.Writer, errOut io.Writer) int {
	logBuffer := logging.NewLogBuffer(logging.DefaultBufferSize)
	logger := logging.NewLoggerWithOutput(logBuffer, logging.LevelInfo, out).With(map[string]string{
		"agent": cfg.Name,
	})

	bus, err := natsbus.NewClientFromURL(cfg.NATSURL)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return exitConnect
	}
	defer bus.Close()

	agent := newEchoAgent(cfg.Name, cfg.Prefix, bus, logger)
	subscription, err := bus.Subscribe(agent.TriggerTopic(), agent.HandleMessage)
	if err != nil {
		fmt.Fprintf(errOut, "subscribe %s: %v\n", agent.TriggerTopic(), err)
		return exitConnect
	}
	defer func() {
		_ = subscription.Unsubscribe()
	}()
	if err := bus.Flush(); err != nil {
		logger.Warn("nats flush failed", map[string]string{
			"error": err.Error(),
		})
	}
	logger.Info("agent listening", map[string]string{
		"topic": agent.TriggerTopic(),
		"nats":  cfg.NATSURL,
	})

	httpClient := &http.Client{Timeout: 10 * time.Second}
	registered := false
	if !cfg.NoRegister && cfg.ServerURL != "" {
		registration := client.AgentRegistration{
			Name:  cfg.Name,
			Topic: agent.TriggerTopic(),
			Metadata: map[string]string{
				"kind": "echo",
			},
		}
		if err := client.RegisterAgent(httpClient, cfg.ServerURL, cfg.Token, registration); err != nil {
			logger.Warn("daemon registration failed", map[string]string{
				"url":   cfg.ServerURL,
				"error": err.Error(),
			})
		} else {
			registered = true
			logger.Info("registered with daemon", map[string]string{
				"url": cfg.ServerURL,
			})
		}
	}

	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stopSignals)
	sig := <-stopSignals
	logger.Info("shutting down", map[string]string{
		"signal": sig.String(),
	})

	if registered {
		if err := client.DeregisterAgent(httpClient, cfg.ServerURL, cfg.Token, cfg.Name); err != nil {
			logger.Warn("daemon deregistration failed", map[string]string{
				"error": err.Error(),
			})
			reportFailure(httpClient, cfg, "deregistration failed", err)
		}
	}
	return 0
}

// reportFailure forwards an agent-side failure to the daemon's log buffer.
// Best effort; the local log already has the entry.
func reportFailure(httpClient *http.Client, cfg Config, msg string, cause error) {
	if cfg.ServerURL == "" {
		return
	}
	_ = client.PostLog(httpClient, cfg.ServerURL, cfg.Token, client.LogSubmission{
		Level:   "warning",
		Message: msg,
		Context: map[string]string{
			"agent":  cfg.Name,
			"source": "parley-agent",
			"error":  cause.Error(),
		},
	})
}
