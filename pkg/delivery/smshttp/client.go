// Package smshttp sends text messages through an HTTP SMS gateway that
// accepts JSON POST requests.
package smshttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dripline/dripline/pkg/delivery"
	"github.com/dripline/dripline/pkg/reliability"
)

const defaultTimeout = 15 * time.Second

// Config carries the gateway endpoint and credentials.
type Config struct {
	URL     string
	Token   string
	From    string
	Timeout time.Duration
}

// Client implements delivery.SMSChannel against a JSON gateway.
type Client struct {
	httpClient *http.Client
	url        string
	token      string
	from       string
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        cfg.URL,
		token:      cfg.Token,
		from:       cfg.From,
	}
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (c *Client) SendSMS(ctx context.Context, message delivery.SMSMessage) (delivery.Result, error) {
	payload, err := json.Marshal(sendRequest{From: c.from, To: message.To, Body: message.Body})
	if err != nil {
		return delivery.Result{}, fmt.Errorf("failed to encode SMS request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return delivery.Result{}, fmt.Errorf("failed to build SMS request: %w", err)
	}

	request.Header.Set("Content-Type", "application/json")

	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return delivery.Result{}, reliability.MarkRetryable(fmt.Errorf("SMS gateway request failed: %w", err))
	}

	defer func() { _ = response.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(response.Body, 64*1024))
	if err != nil {
		return delivery.Result{}, reliability.MarkRetryable(fmt.Errorf("failed to read SMS gateway response: %w", err))
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		err := fmt.Errorf("SMS gateway returned status %d: %s", response.StatusCode, body)

		// 5xx and throttling are worth another attempt. Any other 4xx is a
		// permanent rejection, for example an invalid recipient; retrying it
		// just repeats the rejection.
		if response.StatusCode >= 500 || response.StatusCode == http.StatusTooManyRequests {
			return delivery.Result{}, reliability.MarkRetryable(err)
		}

		return delivery.Result{}, err
	}

	var decoded sendResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		// Some gateways answer with a bare 2xx and no JSON body.
		return delivery.Result{}, nil
	}

	return delivery.Result{ExternalID: decoded.ID}, nil
}
