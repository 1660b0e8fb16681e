package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// LogSubmission is a log entry forwarded to the daemon's shared buffer, so
// agent-side failures show up next to server logs.
type LogSubmission struct {
	Level   string            `json:"level"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

func PostLog(client *http.Client, baseURL, token string, entry LogSubmission) error {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return errors.New("base URL is required")
	}
	if strings.TrimSpace(entry.Message) == "" {
		return errors.New("log message is required")
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log request: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, baseURL+"/api/logs", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build log request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("log request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNoContent || response.StatusCode == http.StatusOK {
		return nil
	}

	message := readErrorMessage(response)
	return &HTTPError{StatusCode: response.StatusCode, Message: message}
}
