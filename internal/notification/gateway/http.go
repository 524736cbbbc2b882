// Package gateway holds the push delivery backends used by the notifier.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"unitedhelp/internal/notification"
	dErrors "unitedhelp/pkg/domain-errors"
)

// HTTPGateway posts multicast batches to a push service over HTTP.
type HTTPGateway struct {
	url    string
	key    string
	client *http.Client
}

func NewHTTPGateway(url, key string, client *http.Client) *HTTPGateway {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPGateway{url: url, key: key, client: client}
}

type multicastRequest struct {
	RegistrationIDs []string          `json:"registration_ids"`
	Notification    pushNotification  `json:"notification"`
	Data            map[string]string `json:"data"`
}

// multicastResponse carries the per-token delivery counts of one batch.
type multicastResponse struct {
	Success int `json:"success"`
	Failure int `json:"failure"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Image string `json:"image,omitempty"`
}

func (g *HTTPGateway) Send(ctx context.Context, tokens []string, msg notification.Message) (notification.BatchResult, error) {
	body, err := json.Marshal(multicastRequest{
		RegistrationIDs: tokens,
		Notification:    pushNotification{Title: msg.Title, Body: msg.Body, Image: msg.Image},
		Data:            msg.Data(),
	})
	if err != nil {
		return notification.BatchResult{}, fmt.Errorf("encode push batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return notification.BatchResult{}, fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.key != "" {
		req.Header.Set("Authorization", "key="+g.key)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return notification.BatchResult{}, dErrors.Wrap(err, dErrors.CodeExternalFailure, "push gateway unreachable")
	}
	defer resp.Body.Close()
	limited := io.LimitReader(resp.Body, 64<<10)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, limited)
		return notification.BatchResult{}, dErrors.New(dErrors.CodeExternalFailure, fmt.Sprintf("push gateway returned %d", resp.StatusCode))
	}

	// A 2xx only means the batch was accepted; the body says which tokens were.
	var out multicastResponse
	if err := json.NewDecoder(limited).Decode(&out); err != nil {
		return notification.BatchResult{}, dErrors.Wrap(err, dErrors.CodeExternalFailure, "decode push gateway response")
	}
	return notification.BatchResult{SuccessCount: out.Success, FailureCount: out.Failure}, nil
}

// LogGateway writes notifications to the log instead of delivering them.
type LogGateway struct {
	logger *slog.Logger
}

func NewLogGateway(logger *slog.Logger) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(ctx context.Context, tokens []string, msg notification.Message) (notification.BatchResult, error) {
	g.logger.InfoContext(ctx, "push notification",
		"title", msg.Title,
		"body", msg.Body,
		"notify_type", string(msg.NotifyType),
		"event_id", msg.EventID.String(),
		"tokens", len(tokens),
	)
	return notification.BatchResult{SuccessCount: len(tokens)}, nil
}
