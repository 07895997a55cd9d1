package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/yard-sale-vendors/internal/adapters/postgres"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("container test")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "vendors",
				"POSTGRES_PASSWORD": "vendors",
				"POSTGRES_DB":       "vendors",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatal(err)
	}

	dsn := fmt.Sprintf("postgres://vendors:vendors@%s:%s/vendors?sslmode=disable", host, port.Port())
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	if err := postgres.Migrate(pool); err != nil {
		t.Fatal(err)
	}
	// a second run finds nothing to do
	if err := postgres.Migrate(pool); err != nil {
		t.Fatalf("expected idempotent migrate, got %v", err)
	}
	return pool
}

func newRegistration(intentID string, status domain.PaymentStatus) domain.Registration {
	return domain.Registration{
		ID:               uuid.New(),
		FullName:         "Jane Vendor",
		Phone:            "303-555-0100",
		Email:            "jane@example.com",
		Address:          "123 Main St, Apt 4",
		Tier:             domain.TierRegular,
		Spaces:           2,
		ItemsDescription: "Books",
		Amount:           60,
		PaymentStatus:    status,
		PaymentIntentID:  intentID,
	}
}

func TestRepository(t *testing.T) {
	pool := startPostgres(t)
	repo := postgres.NewRepository(pool)
	ctx := context.Background()

	t.Run("insert and get", func(t *testing.T) {
		reg := newRegistration("pi_insert", domain.StatusCompleted)
		saved, err := repo.Insert(ctx, reg)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if saved.ID != reg.ID || saved.CreatedAt.IsZero() || !saved.CreatedAt.Equal(saved.UpdatedAt) {
			t.Errorf("unexpected saved row %+v", saved)
		}

		got, err := repo.Get(ctx, reg.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Amount != 60 || got.PaymentStatus != domain.StatusCompleted || got.PaymentIntentID != "pi_insert" {
			t.Errorf("unexpected row %+v", got)
		}
	})

	t.Run("insert is idempotent on payment intent", func(t *testing.T) {
		first, err := repo.Insert(ctx, newRegistration("pi_dup", domain.StatusCompleted))
		if err != nil {
			t.Fatal(err)
		}
		second, err := repo.Insert(ctx, newRegistration("pi_dup", domain.StatusCompleted))
		if err != nil {
			t.Fatal(err)
		}
		if first.ID != second.ID {
			t.Errorf("expected the stored row %s, got %s", first.ID, second.ID)
		}
	})

	t.Run("concurrent finalize stores one row", func(t *testing.T) {
		var wg sync.WaitGroup
		ids := make([]uuid.UUID, 5)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				saved, err := repo.Insert(ctx, newRegistration("pi_race", domain.StatusCompleted))
				if err != nil {
					t.Error(err)
					return
				}
				ids[i] = saved.ID
			}(i)
		}
		wg.Wait()
		for _, id := range ids[1:] {
			if id != ids[0] {
				t.Fatalf("expected a single row, got ids %v", ids)
			}
		}
	})

	t.Run("check constraints", func(t *testing.T) {
		bad := newRegistration("pi_bad", domain.StatusCompleted)
		bad.Spaces = 4
		if _, err := repo.Insert(ctx, bad); err == nil {
			t.Error("expected spaces constraint violation")
		}
	})

	t.Run("update status only from pending", func(t *testing.T) {
		pending, err := repo.Insert(ctx, newRegistration("pi_pending", domain.StatusPending))
		if err != nil {
			t.Fatal(err)
		}

		updated, err := repo.UpdateStatus(ctx, pending.ID, domain.StatusFailed)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if updated.PaymentStatus != domain.StatusFailed || !updated.UpdatedAt.After(pending.UpdatedAt) {
			t.Errorf("unexpected updated row %+v", updated)
		}
		if updated.Amount != pending.Amount {
			t.Errorf("amount changed: %d -> %d", pending.Amount, updated.Amount)
		}

		_, err = repo.UpdateStatus(ctx, pending.ID, domain.StatusCompleted)
		if !errors.Is(err, domain.ErrInvalidTransition) {
			t.Errorf("expected invalid transition, got %v", err)
		}

		_, err = repo.UpdateStatus(ctx, uuid.New(), domain.StatusCompleted)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})

	t.Run("amount is immutable", func(t *testing.T) {
		reg, err := repo.Insert(ctx, newRegistration("pi_amount", domain.StatusCompleted))
		if err != nil {
			t.Fatal(err)
		}
		_, err = pool.Exec(ctx, `UPDATE registrations SET total_amount = 1 WHERE id = $1`, reg.ID)
		if err == nil {
			t.Error("expected trigger to reject amount change")
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		rows, err := repo.ListAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) < 2 {
			t.Fatalf("expected rows, got %d", len(rows))
		}
		for i := 1; i < len(rows); i++ {
			if rows[i].CreatedAt.After(rows[i-1].CreatedAt) {
				t.Errorf("rows out of order at %d", i)
			}
		}
	})

	t.Run("find by payment intent", func(t *testing.T) {
		_, err := repo.FindByPaymentIntent(ctx, "pi_unknown")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected not found, got %v", err)
		}
	})
}
