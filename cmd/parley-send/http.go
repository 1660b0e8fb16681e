package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"parley/internal/client"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Consecutive poll failures tolerated before the wait gives up.
const maxPollFailures = 3

type sendError struct {
	Code    int
	Message string
}

func (e *sendError) Error() string {
	return e.Message
}

func sendErr(code int, message string) *sendError {
	return &sendError{Code: code, Message: message}
}

func sendErrf(code int, format string, args ...any) *sendError {
	return &sendError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func sendErrFromClient(err error) *sendError {
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		return sendErr(3, httpErr.Message)
	}
	return sendErrf(3, "%v", err)
}

func handleSendError(err error, errOut io.Writer) int {
	var sendErr *sendError
	if errors.As(err, &sendErr) {
		fmt.Fprintln(errOut, sendErr.Message)
		if sendErr.Code != 0 {
			return sendErr.Code
		}
	}
	fmt.Fprintln(errOut, err.Error())
	return 3
}

func submitRun(cfg Config) error {
	if strings.TrimSpace(cfg.Task) == "" {
		return sendErr(1, "task required")
	}
	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = defaultServerURL
	}

	if cfg.Verbose {
		logf(cfg, "submitting task (%d bytes) to %s", len(cfg.Task), baseURL)
		if strings.TrimSpace(cfg.Token) != "" {
			logf(cfg, "token: %s", maskToken(cfg.Token, cfg.Debug))
		}
	}
	if cfg.Debug {
		preview := cfg.Task
		if len(preview) > 100 {
			preview = preview[:100]
		}
		logf(cfg, "task preview: %q", preview)
	}

	ref, err := client.StartRun(httpClient, baseURL, cfg.Token, cfg.Task)
	if err != nil {
		return sendErrFromClient(err)
	}
	logf(cfg, "run %s accepted", ref.InstanceID)

	if !cfg.Wait {
		fmt.Fprintln(cfg.Output, ref.InstanceID)
		return nil
	}
	return waitForRun(cfg, baseURL, ref.InstanceID)
}

func waitForRun(cfg Config, baseURL, instanceID string) error {
	var deadline time.Time
	if cfg.WaitTimeout > 0 {
		deadline = time.Now().Add(cfg.WaitTimeout)
	}

	failures := 0
	for {
		detail, err := client.GetRun(httpClient, baseURL, cfg.Token, instanceID)
		if err != nil {
			failures++
			if failures >= maxPollFailures {
				return sendErrf(3, "poll run %s: %v", instanceID, err)
			}
			logf(cfg, "poll failed (%d/%d): %v", failures, maxPollFailures, err)
		} else {
			failures = 0
			run := detail.Run
			switch run.Status {
			case client.RunStatusCompleted:
				logf(cfg, "run %s completed after %d turns", instanceID, len(detail.Turns))
				if run.Output != "" {
					fmt.Fprintln(cfg.Output, run.Output)
				}
				return nil
			case client.RunStatusFailed:
				message := strings.TrimSpace(run.Error)
				if message == "" {
					message = fmt.Sprintf("run %s failed", instanceID)
				}
				return sendErr(2, message)
			default:
				logf(cfg, "run %s: status %s, %d turns", instanceID, run.Status, len(detail.Turns))
			}
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return sendErrf(4, "timed out after %s waiting for run %s", cfg.WaitTimeout, instanceID)
		}
		time.Sleep(cfg.PollInterval)
	}
}

func logf(cfg Config, format string, args ...any) {
	if cfg.LogWriter == nil || !(cfg.Verbose || cfg.Debug) {
		return
	}
	fmt.Fprintf(cfg.LogWriter, format+"\n", args...)
}

func maskToken(token string, debug bool) string {
	if debug {
		return token
	}
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return "****"
	}
	return trimmed[:2] + strings.Repeat("*", len(trimmed)-4) + trimmed[len(trimmed)-2:]
}
