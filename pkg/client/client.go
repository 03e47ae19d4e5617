// Package client implements the per-session HTTP operations of the agent
// protocol: create, delete, send message, send approval. The two send
// operations stream their response bodies through the frame decoder and
// event mapper, invoking a caller-supplied handler once per event in
// arrival order.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/agentforge-dev/agentforge/pkg/errors"
	"github.com/agentforge-dev/agentforge/pkg/events"
	"github.com/agentforge-dev/agentforge/pkg/sse"
)

// Handler receives decoded agent events in stream order.
type Handler func(events.Event)

// CreateSessionRequest describes the agent configuration to build.
type CreateSessionRequest struct {
	ModelID     string          `json:"model_id"`
	SkillIDs    []string        `json:"skill_ids"`
	HITLEnabled bool            `json:"hitl_enabled"`
	SandboxMap  map[string]bool `json:"sandbox_map"`
}

// Decision is the caller's response to an interrupt. Decision is one of the
// interrupt's allowed decisions; EditedArgs is set only when editing.
type Decision struct {
	Decision   string                 `json:"decision"`
	EditedArgs map[string]interface{} `json:"edited_args,omitempty"`
}

// Client talks to the agent backend over HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Client for the given backend base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}
}

// NewWithHTTPClient creates a Client with a caller-supplied http.Client.
func NewWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// CreateSession builds an agent session and returns its server-assigned id.
func (c *Client) CreateSession(ctx context.Context, req *CreateSessionRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeSessionCreate, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/agent", bytes.NewReader(data))
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeSessionCreate, "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", apperrors.New(apperrors.ErrCodeSessionCreate, "failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", apperrors.New(apperrors.ErrCodeSessionCreate,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", apperrors.New(apperrors.ErrCodeSessionCreate, "failed to decode response", err)
	}

	return out.SessionID, nil
}

// DeleteSession tears down a session. Best effort: the caller has no recovery
// action for a failed teardown, so failures are swallowed.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) {
	httpReq, err := http.NewRequestWithContext(ctx, "DELETE", c.baseURL+"/api/agent/"+sessionID, nil)
	if err != nil {
		return
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// SendMessage posts one user message and streams the resulting events to the
// handler. It returns after the stream ends or the context is cancelled. A
// non-2xx response does not fail the call; it is surfaced as a single
// synthetic error event so the caller's event-driven state still updates.
func (c *Client) SendMessage(ctx context.Context, sessionID, message string, h Handler) error {
	body := struct {
		Message string `json:"message"`
	}{Message: message}

	return c.streamPost(ctx, c.baseURL+"/api/agent/"+sessionID+"/chat", body, h, apperrors.ErrCodeSend)
}

// SendApproval submits an interrupt decision and streams the resumed turn to
// the handler under the same contract as SendMessage.
func (c *Client) SendApproval(ctx context.Context, sessionID string, decision Decision, h Handler) error {
	return c.streamPost(ctx, c.baseURL+"/api/agent/"+sessionID+"/approve", decision, h, apperrors.ErrCodeApproval)
}

func (c *Client) streamPost(ctx context.Context, url string, body interface{}, h Handler, errCode string) error {
	data, err := json.Marshal(body)
	if err != nil {
		return apperrors.New(errCode, "failed to marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return apperrors.New(errCode, "failed to create request", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return apperrors.New(apperrors.ErrCodeStreamAborted, "request aborted", ctx.Err())
		}
		return apperrors.New(errCode, "failed to send request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(resp.Body)
		h(events.StreamError{
			Message: fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, string(detail)),
		})
		return nil
	}

	return c.drainStream(ctx, resp.Body, h, errCode)
}

// drainStream reads the response body chunk by chunk, feeding the frame
// decoder and dispatching mapped events. The context is checked before every
// dispatch: after cancellation no further events fire.
func (c *Client) drainStream(ctx context.Context, body io.Reader, h Handler, errCode string) error {
	decoder := sse.NewDecoder()
	buf := make([]byte, 4096)

	dispatch := func(frames []sse.Frame) {
		for _, f := range frames {
			if ev, ok := events.Map(f.Event, f.Data); ok {
				h(ev)
			}
		}
	}

	for {
		if ctx.Err() != nil {
			return apperrors.New(apperrors.ErrCodeStreamAborted, "stream aborted", ctx.Err())
		}

		n, err := body.Read(buf)
		if n > 0 && ctx.Err() == nil {
			dispatch(decoder.Feed(string(buf[:n])))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if ctx.Err() != nil {
					return apperrors.New(apperrors.ErrCodeStreamAborted, "stream aborted", ctx.Err())
				}
				if f, ok := decoder.Flush(); ok {
					dispatch([]sse.Frame{f})
				}
				return nil
			}
			if ctx.Err() != nil {
				return apperrors.New(apperrors.ErrCodeStreamAborted, "stream aborted", ctx.Err())
			}
			return apperrors.New(errCode, "stream read failed", err)
		}
	}
}
