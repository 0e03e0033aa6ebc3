package main

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/aicmo/auth-service/internal/infrastructure/config"
)

func TestOpenStore_Memory(t *testing.T) {
	st, err := openStore(context.Background(), &config.Config{StoreDriver: config.StoreMemory}, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := st.close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	if _, err := openStore(context.Background(), &config.Config{StoreDriver: "cassandra"}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
