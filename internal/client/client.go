// Package client is a typed HTTP client for the parley daemon API. The
// agent and send binaries use it; wire types are kept local so callers do
// not import server internals.
package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AgentInfo is one row of the daemon's agent registry listing.
type AgentInfo struct {
	Name   string `json:"name"`
	Topic  string `json:"topic,omitempty"`
	Pubsub string `json:"pubsub,omitempty"`
	Source string `json:"source,omitempty"`
}

// AgentRegistration is the payload for registering an agent with the
// daemon. Topic and pubsub default server-side when empty.
type AgentRegistration struct {
	Name     string            `json:"name"`
	Topic    string            `json:"topic,omitempty"`
	Pubsub   string            `json:"pubsub,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Run status values reported by the daemon.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// RunRef identifies a newly started run.
type RunRef struct {
	InstanceID string `json:"instance_id"`
	Status     string `json:"status"`
}

// Run mirrors the daemon's stored run record.
type Run struct {
	InstanceID  string     `json:"instance_id"`
	Task        string     `json:"task"`
	Strategy    string     `json:"strategy"`
	Status      string     `json:"status"`
	Output      string     `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Turn is one recorded conversation turn of a run.
type Turn struct {
	Turn       int       `json:"turn"`
	Speaker    string    `json:"speaker"`
	Content    string    `json:"content,omitempty"`
	TimedOut   bool      `json:"timed_out"`
	RecordedAt time.Time `json:"recorded_at"`
}

// RunDetail is the daemon's run detail response: the stored record plus
// turn history.
type RunDetail struct {
	Run   *Run   `json:"run"`
	Turns []Turn `json:"turns"`
}

type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func FetchAgents(client *http.Client, baseURL, token string) ([]AgentInfo, error) {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	request, err := http.NewRequest(http.MethodGet, baseURL+"/api/agents", nil)
	if err != nil {
		return nil, fmt.Errorf("build agents request failed: %w", err)
	}
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("agents request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		message := readErrorMessage(response)
		return nil, &HTTPError{StatusCode: response.StatusCode, Message: message}
	}

	var payload []AgentInfo
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode agents response: %w", err)
	}
	agents := make([]AgentInfo, 0, len(payload))
	for _, agent := range payload {
		if strings.TrimSpace(agent.Name) == "" {
			continue
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

func RegisterAgent(client *http.Client, baseURL, token string, registration AgentRegistration) error {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return errors.New("base URL is required")
	}
	if strings.TrimSpace(registration.Name) == "" {
		return errors.New("agent name is required")
	}

	body, err := json.Marshal(registration)
	if err != nil {
		return fmt.Errorf("encode register request: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, baseURL+"/api/agents", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build register request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("register request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusCreated || response.StatusCode == http.StatusOK {
		return nil
	}

	message := readErrorMessage(response)
	return &HTTPError{StatusCode: response.StatusCode, Message: message}
}

func DeregisterAgent(client *http.Client, baseURL, token, name string) error {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return errors.New("base URL is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("agent name is required")
	}

	request, err := http.NewRequest(http.MethodDelete, baseURL+"/api/agents/"+name, nil)
	if err != nil {
		return fmt.Errorf("build deregister request: %w", err)
	}
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("deregister request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNoContent || response.StatusCode == http.StatusOK || response.StatusCode == http.StatusNotFound {
		return nil
	}

	message := readErrorMessage(response)
	return &HTTPError{StatusCode: response.StatusCode, Message: message}
}

func StartRun(client *http.Client, baseURL, token, task string) (*RunRef, error) {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if strings.TrimSpace(task) == "" {
		return nil, errors.New("task is required")
	}

	body, err := json.Marshal(map[string]string{"task": task})
	if err != nil {
		return nil, fmt.Errorf("encode run request: %w", err)
	}

	request, err := http.NewRequest(http.MethodPost, baseURL+"/api/runs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build run request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("run request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusAccepted {
		message := readErrorMessage(response)
		return nil, &HTTPError{StatusCode: response.StatusCode, Message: message}
	}

	ref := &RunRef{}
	if err := json.NewDecoder(response.Body).Decode(ref); err != nil {
		return nil, fmt.Errorf("decode run response: %w", err)
	}
	if ref.InstanceID == "" {
		return nil, errors.New("run response missing instance id")
	}
	return ref, nil
}

func GetRun(client *http.Client, baseURL, token, instanceID string) (*RunDetail, error) {
	client = ensureClient(client)
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return nil, errors.New("instance id is required")
	}

	request, err := http.NewRequest(http.MethodGet, baseURL+"/api/runs/"+instanceID, nil)
	if err != nil {
		return nil, fmt.Errorf("build run status request: %w", err)
	}
	addToken(request, token)

	response, err := client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("run status request failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		message := readErrorMessage(response)
		return nil, &HTTPError{StatusCode: response.StatusCode, Message: message}
	}

	detail := &RunDetail{}
	if err := json.NewDecoder(response.Body).Decode(detail); err != nil {
		return nil, fmt.Errorf("decode run status response: %w", err)
	}
	if detail.Run == nil {
		return nil, errors.New("run status response missing run")
	}
	return detail, nil
}

func ensureClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return http.DefaultClient
}

func addToken(request *http.Request, token string) {
	token = strings.TrimSpace(token)
	if token == "" {
		return
	}
	request.Header.Set("Authorization", "Bearer "+token)
}

func readErrorMessage(response *http.Response) string {
	if response == nil {
		return "request failed"
	}
	body, _ := io.ReadAll(response.Body)
	text := strings.TrimSpace(string(body))
	if text == "" {
		return response.Status
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if strings.TrimSpace(payload.Message) != "" {
			return payload.Message
		}
		if strings.TrimSpace(payload.Error) != "" {
			return payload.Error
		}
	}
	return text
}
