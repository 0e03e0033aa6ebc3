package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aicmo/auth-service/internal/core/domain"
)

func TestUserRepository_CreateAndFind(t *testing.T) {
	repo := NewUserRepository()

	created, err := repo.Create(context.Background(), &domain.User{Username: "alice", PasswordHash: "h", Role: domain.RoleNormal})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}

	found, err := repo.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != created.ID || found.PasswordHash != "h" {
		t.Fatalf("unexpected user: %+v", found)
	}

	if _, err := repo.FindByUsername(context.Background(), "Alice"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("lookup must be case-sensitive, got %v", err)
	}
}

func TestUserRepository_UniqueUnderConcurrency(t *testing.T) {
	repo := NewUserRepository()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Create(context.Background(), &domain.User{Username: "bob"}); err == nil {
				wins.Add(1)
			} else if !errors.Is(err, domain.ErrUserExists) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one successful create, got %d", wins.Load())
	}
}

func TestUserRepository_CancelledContext(t *testing.T) {
	repo := NewUserRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.FindByUsername(ctx, "alice"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
