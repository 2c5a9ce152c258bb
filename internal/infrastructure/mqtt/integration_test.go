//go:build integration

package mqtt

import (
	"context"
	"testing"
	"time"
)

// These tests need a broker at 127.0.0.1:1883:
//
//	go test -tags=integration ./internal/infrastructure/mqtt/...

func connectIntegration(t *testing.T, clientID string) *Client {
	t.Helper()
	cfg := testConfig()
	cfg.Broker.ClientID = clientID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIntegration_RetainedStateRoundtrip(t *testing.T) {
	pub := connectIntegration(t, "ucremote-int-pub")
	sub := connectIntegration(t, "ucremote-int-sub")

	topics := NewTopics("integration-hub")
	if err := pub.PublishRetained(topics.HubState(), []byte(`{"battery":80}`)); err != nil {
		t.Fatalf("PublishRetained() error = %v", err)
	}

	received := make(chan []byte, 1)
	err := sub.Subscribe(topics.AllState(), 1, func(_ string, payload []byte) error {
		select {
		case received <- payload:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if sub.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", sub.SubscriptionCount())
	}

	select {
	case payload := <-received:
		if string(payload) != `{"battery":80}` {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retained state not delivered")
	}

	if err := sub.Unsubscribe(topics.AllState()); err != nil {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	// Clear the retained message.
	_ = pub.PublishRetained(topics.HubState(), nil)
}

func TestIntegration_HealthCheck(t *testing.T) {
	client := connectIntegration(t, "ucremote-int-health")
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
