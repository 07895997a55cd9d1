package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/yard-sale-vendors/internal/domain"
	"github.com/robertarktes/yard-sale-vendors/internal/observability"
)

const SerializationFailureCode = "40001"

const columns = `id, full_name, phone, email, address, registration_type, number_of_spaces,
	items_description, total_amount, payment_status, stripe_payment_intent_id, created_at, updated_at`

type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
			return errors.Mark(err, domain.ErrSerializationFailure)
		}
		return err
	}

	return tx.Commit(ctx)
}

// Insert stores a registration. A second insert for the same payment intent returns the
// row already stored instead of creating another.
func (r *Repository) Insert(ctx context.Context, reg domain.Registration) (domain.Registration, error) {
	defer observeQuery("insert", time.Now())

	if reg.ID == uuid.Nil {
		reg.ID = uuid.New()
	}
	now := r.now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO registrations (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), $12, $12)
		ON CONFLICT (stripe_payment_intent_id) DO NOTHING
		RETURNING `+columns,
		reg.ID, reg.FullName, reg.Phone, reg.Email, reg.Address, reg.Tier, reg.Spaces,
		reg.ItemsDescription, reg.Amount, reg.PaymentStatus, reg.PaymentIntentID, now)

	saved, err := scanRegistration(row)
	if errors.Is(err, domain.ErrNotFound) && reg.PaymentIntentID != "" {
		return r.FindByPaymentIntent(ctx, reg.PaymentIntentID)
	}
	if err != nil {
		return domain.Registration{}, errors.Wrap(err, "insert registration")
	}
	return saved, nil
}

func (r *Repository) ListAll(ctx context.Context) ([]domain.Registration, error) {
	defer observeQuery("list", time.Now())

	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM registrations ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, errors.Wrap(err, "list registrations")
	}
	defer rows.Close()

	out := []domain.Registration{}
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	return out, errors.Wrap(rows.Err(), "iterate registrations")
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (domain.Registration, error) {
	defer observeQuery("get", time.Now())
	return scanRegistration(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM registrations WHERE id = $1`, id))
}

func (r *Repository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (domain.Registration, error) {
	defer observeQuery("find_by_intent", time.Now())
	return scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+columns+` FROM registrations WHERE stripe_payment_intent_id = $1`, paymentIntentID))
}

// UpdateStatus moves a pending row to status. Rows outside pending yield
// domain.ErrInvalidTransition and are left untouched.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) (domain.Registration, error) {
	defer observeQuery("update_status", time.Now())

	var updated domain.Registration
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var current domain.PaymentStatus
		err := tx.QueryRow(ctx, `SELECT payment_status FROM registrations WHERE id = $1 FOR UPDATE`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		if !current.CanTransitionTo(status) {
			return errors.Wrapf(domain.ErrInvalidTransition, "%s -> %s", current, status)
		}

		updated, err = scanRegistration(tx.QueryRow(ctx, `
			UPDATE registrations SET payment_status = $2, updated_at = $3
			WHERE id = $1
			RETURNING `+columns, id, status, r.now().UTC()))
		return err
	})
	if err != nil {
		return domain.Registration{}, err
	}
	return updated, nil
}

func scanRegistration(row pgx.Row) (domain.Registration, error) {
	var (
		reg      domain.Registration
		intentID *string
	)
	err := row.Scan(&reg.ID, &reg.FullName, &reg.Phone, &reg.Email, &reg.Address, &reg.Tier,
		&reg.Spaces, &reg.ItemsDescription, &reg.Amount, &reg.PaymentStatus, &intentID,
		&reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Registration{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Registration{}, errors.Wrap(err, "scan registration")
	}
	if intentID != nil {
		reg.PaymentIntentID = *intentID
	}
	return reg, nil
}

func observeQuery(op string, start time.Time) {
	observability.StoreQueryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
