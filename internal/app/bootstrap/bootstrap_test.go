package bootstrap

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	appconfig "github.com/wolfman30/apptreply/internal/config"
	"github.com/wolfman30/apptreply/pkg/logging"
)

func TestBuildRedisClientDisabled(t *testing.T) {
	if c := BuildRedisClient(context.Background(), &appconfig.Config{}, logging.New("error"), true); c != nil {
		t.Fatalf("expected nil client without an address")
	}
	if c := BuildRedisClient(context.Background(), nil, nil, false); c != nil {
		t.Fatalf("expected nil client for nil config")
	}
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)

	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.New("error"), true)
	if client == nil {
		t.Fatalf("expected a client for a live redis")
	}
	defer client.Close()

	mr.Close()
	if c := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, logging.New("error"), true); c != nil {
		t.Fatalf("expected nil client when ping fails")
	}
}

func TestBuildPostgresPoolRequiresURL(t *testing.T) {
	if _, err := BuildPostgresPool(context.Background(), &appconfig.Config{}); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestBuildResponderRequiresConfig(t *testing.T) {
	if _, _, err := BuildResponder(context.Background(), nil, logging.New("error")); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildResponderNoModelReturnsNil(t *testing.T) {
	resp, closer, err := BuildResponder(context.Background(), &appconfig.Config{}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != nil {
		t.Fatalf("expected nil responder when no model is configured")
	}
	if closer == nil || closer() != nil {
		t.Fatalf("expected a no-op closer")
	}
}
