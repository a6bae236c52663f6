package smshttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dripline/dripline/pkg/delivery"
	"github.com/dripline/dripline/pkg/reliability"
)

func TestSendSMS(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req sendRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "+15551234567", req.To)
		assert.Equal(t, "Your cart misses you", req.Body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg-42"}`))
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL, Token: "secret", From: "+15550000000"})

	result, err := client.SendSMS(context.Background(), delivery.SMSMessage{
		To:   "+15551234567",
		Body: "Your cart misses you",
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-42", result.ExternalID)
}

func TestSendSMS_TransientGatewayErrorsAreRetryable(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "try later", status)
		}))

		client := NewClient(Config{URL: server.URL})

		_, err := client.SendSMS(context.Background(), delivery.SMSMessage{To: "+1555", Body: "hi"})
		assert.ErrorContains(t, err, "try later")
		assert.True(t, reliability.IsRetryable(err), "status %d is transient", status)

		server.Close()
	}
}

func TestSendSMS_PermanentRejectionNotRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid recipient", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewClient(Config{URL: server.URL})

	_, err := client.SendSMS(context.Background(), delivery.SMSMessage{To: "not-a-number", Body: "hi"})
	assert.ErrorContains(t, err, "invalid recipient")
	assert.False(t, reliability.IsRetryable(err), "a 400 rejection must fail fast")
}
