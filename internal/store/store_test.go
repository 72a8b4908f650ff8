package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"

	"cheerpup/apps/backend/internal/db"
	"cheerpup/apps/backend/internal/domain"
)

var (
	testPool    *pgxpool.Pool
	testMongoDB *mongo.Database
)

func TestMain(m *testing.M) {
	if raw := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL")); raw != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err := db.ConnectPostgres(ctx, raw)
		if err == nil {
			err = applyMigration(ctx, pool)
		}
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "postgres store tests setup failed: %v\n", err)
			os.Exit(1)
		}
		testPool = pool
	} else {
		fmt.Fprintln(os.Stderr, "postgres store tests skipped: TEST_DATABASE_URL is not set")
	}

	if raw := strings.TrimSpace(os.Getenv("TEST_MONGO_URI")); raw != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, database, err := db.ConnectMongo(ctx, raw, "cheerpup_test")
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "mongo store tests setup failed: %v\n", err)
			os.Exit(1)
		}
		testMongoDB = database
	} else {
		fmt.Fprintln(os.Stderr, "mongo store tests skipped: TEST_MONGO_URI is not set")
	}

	code := m.Run()
	if testPool != nil {
		testPool.Close()
	}
	if testMongoDB != nil {
		_ = testMongoDB.Drop(context.Background())
		_ = testMongoDB.Client().Disconnect(context.Background())
	}
	os.Exit(code)
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool) error {
	sql, err := os.ReadFile("../../migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return err
	}
	return ValidateRuntimeSchema(ctx, pool)
}

func drivers(t *testing.T) map[string]Store {
	t.Helper()
	out := map[string]Store{"memory": NewMemory()}
	if testPool != nil {
		out["postgres"] = NewPostgres(testPool)
	}
	if testMongoDB != nil {
		mongoStore := NewMongo(testMongoDB)
		if err := mongoStore.EnsureIndexes(context.Background()); err != nil {
			t.Fatalf("ensure mongo indexes: %v", err)
		}
		out["mongo"] = mongoStore
	}
	return out
}

func newTestUser(t *testing.T) *domain.User {
	t.Helper()
	email := fmt.Sprintf("user-%s@example.com", uuid.NewString()[:8])
	return domain.NewUser("Asha", &email, nil, "hash", time.Now())
}

func TestStoreCreateLoadRoundTrip(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := newTestUser(t)
			age := 30
			user.Age = &age
			user.Medicines = []string{"sertraline"}
			if err := s.Create(ctx, user); err != nil {
				t.Fatalf("create: %v", err)
			}
			if user.Version != 1 {
				t.Fatalf("expected version 1 after create, got %d", user.Version)
			}

			loaded, err := s.Load(ctx, user.ID)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if loaded.PasswordHash != "hash" || loaded.Age == nil || *loaded.Age != 30 {
				t.Fatalf("unexpected loaded user: %+v", loaded)
			}
			if len(loaded.Medicines) != 1 || loaded.ChatHistory == nil || loaded.Moods == nil {
				t.Fatalf("expected collections restored, got %+v", loaded)
			}

			byLogin, err := s.FindByLogin(ctx, user.Email, nil)
			if err != nil || byLogin.ID != user.ID {
				t.Fatalf("expected login lookup to find user, got %v err=%v", byLogin, err)
			}
		})
	}
}

func TestStoreLoadMissing(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Load(context.Background(), uuid.NewString()); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestStoreRejectsDuplicateEmail(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first := newTestUser(t)
			if err := s.Create(ctx, first); err != nil {
				t.Fatalf("create: %v", err)
			}
			second := domain.NewUser("Other", first.Email, nil, "hash", time.Now())
			if err := s.Create(ctx, second); !errors.Is(err, ErrDuplicate) {
				t.Fatalf("expected ErrDuplicate, got %v", err)
			}
		})
	}
}

func TestStoreSaveDetectsStaleVersion(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			user := newTestUser(t)
			if err := s.Create(ctx, user); err != nil {
				t.Fatalf("create: %v", err)
			}

			first, _ := s.Load(ctx, user.ID)
			second, _ := s.Load(ctx, user.ID)

			first.AppendChat(domain.NewChatTurn("a", "reply a", nil, nil, nil, time.Now()))
			if err := s.Save(ctx, first); err != nil {
				t.Fatalf("first save: %v", err)
			}
			if first.Version != 2 {
				t.Fatalf("expected version 2, got %d", first.Version)
			}

			second.AppendChat(domain.NewChatTurn("b", "reply b", nil, nil, nil, time.Now()))
			if err := s.Save(ctx, second); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected ErrConflict, got %v", err)
			}

			stored, err := s.Load(ctx, user.ID)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(stored.ChatHistory) != 1 || stored.ChatHistory[0].UserMessage != "a" {
				t.Fatalf("expected only the first write, got %+v", stored.ChatHistory)
			}
		})
	}
}

func TestStoreSaveMissingUser(t *testing.T) {
	for name, s := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			user := newTestUser(t)
			user.Version = 1
			if err := s.Save(context.Background(), user); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestMemoryLoadReturnsIndependentCopies(t *testing.T) {
	s := NewMemory()
	user := newTestUser(t)
	if err := s.Create(context.Background(), user); err != nil {
		t.Fatalf("create: %v", err)
	}
	loaded, _ := s.Load(context.Background(), user.ID)
	loaded.Name = "changed"
	loaded.Medicines = append(loaded.Medicines, "x")

	again, _ := s.Load(context.Background(), user.ID)
	if again.Name != "Asha" || len(again.Medicines) != 0 {
		t.Fatalf("expected stored copy untouched, got %+v", again)
	}
}
