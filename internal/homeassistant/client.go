// Package homeassistant pushes shopping list items to a Home Assistant instance.
package homeassistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"resty.dev/v3"

	"github.com/at-ishikawa/recipebook/internal/config"
)

const shoppingListService = "/api/services/shopping_list/"

var ErrNotConfigured = errors.New("home assistant integration is not configured")

// StatusError is a non-2xx answer from Home Assistant.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("home assistant responded %d: %s", e.StatusCode, e.Body)
}

// retryable is true for server errors and rate limiting.
func (e *StatusError) retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

type Client struct {
	httpClient       *resty.Client
	configured       bool
	maxRetryAttempts uint
	retryDelay       time.Duration
}

func NewClient(cfg config.HomeAssistantConfig) *Client {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Authorization", "Bearer "+cfg.Token)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(cfg.Timeout())

	return &Client{
		httpClient:       client,
		configured:       cfg.BaseURL != "" && cfg.Token != "",
		maxRetryAttempts: uint(cfg.RetryAttempts),
		retryDelay:       500 * time.Millisecond,
	}
}

func (client *Client) Close() error {
	return client.httpClient.Close()
}

// Configured reports whether a base URL and token were given.
func (client *Client) Configured() bool {
	return client.configured
}

// Ping checks that the API answers with the configured token.
func (client *Client) Ping(ctx context.Context) error {
	return client.do(ctx, http.MethodGet, "/api/", nil)
}

func (client *Client) AddItem(ctx context.Context, name string) error {
	return client.call(ctx, "add_item", name)
}

func (client *Client) RemoveItem(ctx context.Context, name string) error {
	return client.call(ctx, "remove_item", name)
}

func (client *Client) CompleteItem(ctx context.Context, name string) error {
	return client.call(ctx, "complete_item", name)
}

func (client *Client) IncompleteItem(ctx context.Context, name string) error {
	return client.call(ctx, "incomplete_item", name)
}

func (client *Client) ClearCompleted(ctx context.Context) error {
	return client.do(ctx, http.MethodPost, shoppingListService+"clear_completed_items", map[string]string{})
}

// ItemResult is the outcome of pushing one item.
type ItemResult struct {
	Name string
	Err  error
}

// AddItems adds every name in order and keeps going past failures.
func (client *Client) AddItems(ctx context.Context, names []string) []ItemResult {
	results := make([]ItemResult, 0, len(names))
	for i, name := range names {
		err := client.AddItem(ctx, name)
		if err != nil {
			slog.Default().Warn("failed to add shopping item to home assistant",
				"item", name, "position", i+1, "total", len(names), "error", err)
		} else {
			slog.Default().Debug("added shopping item to home assistant", "item", name)
		}
		results = append(results, ItemResult{Name: name, Err: err})
	}
	return results
}

func (client *Client) call(ctx context.Context, service, name string) error {
	return client.do(ctx, http.MethodPost, shoppingListService+service, map[string]string{"name": name})
}

func (client *Client) do(ctx context.Context, method, path string, body any) error {
	if !client.configured {
		return ErrNotConfigured
	}

	return retry.Do(
		func() error {
			err := client.send(ctx, method, path, body)
			if err == nil {
				return nil
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.retryable() {
				return retry.Unrecoverable(err)
			}
			if ctx.Err() != nil {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(client.maxRetryAttempts+1),
		retry.Delay(client.retryDelay),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			return retry.BackOffDelay(n, err, config)
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			slog.Default().Info("retrying home assistant call", "path", path, "attempt", n+1, "error", err)
		}),
	)
}

func (client *Client) send(ctx context.Context, method, path string, body any) error {
	request := client.httpClient.R().SetContext(ctx)
	if body != nil {
		request.SetBody(body)
	}
	response, err := request.Execute(method, path)
	if err != nil {
		return fmt.Errorf("httpClient.%s %s > %w", method, path, err)
	}
	if response.IsError() {
		return &StatusError{StatusCode: response.StatusCode(), Body: response.String()}
	}
	return nil
}
