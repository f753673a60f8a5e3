package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentra-orders/sentra/internal/platform/db"
	"github.com/sentra-orders/sentra/internal/platform/httpx"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, tenantID, id string) (*Quote, error)
	ListByOrder(ctx context.Context, tenantID, orderID string) ([]Quote, error)
	ActiveByOrder(ctx context.Context, tenantID, orderID string) ([]Quote, error)
	FindExpired(ctx context.Context, now time.Time, limit int) ([]Quote, error)
	Create(ctx context.Context, quote Quote) error
	UpdateStatus(ctx context.Context, id string, status QuoteStatus, respondedAt, closedAt *time.Time, expectedVersion int64) error
	UpdateOffer(ctx context.Context, id string, round int, latestOffer int64, expectedVersion int64) error
	UpdateExpiry(ctx context.Context, id string, sentAt, expiresAt *time.Time, status QuoteStatus, expectedVersion int64) error
	AppendEvent(ctx context.Context, event QuoteEvent) error
	Events(ctx context.Context, quoteID string) ([]QuoteEvent, error)
	GenerateNumber(ctx context.Context, at time.Time) (string, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const quoteColumns = `id, tenant_id, order_id, vendor_id, quote_number, round, initial_offer,
	latest_offer, currency, status, sent_at, responded_at, closed_at, expires_at,
	version, created_at, updated_at`

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	err := row.Scan(&q.ID, &q.TenantID, &q.OrderID, &q.VendorID, &q.QuoteNumber,
		&q.Round, &q.InitialOffer, &q.LatestOffer, &q.Currency, &q.Status,
		&q.SentAt, &q.RespondedAt, &q.ClosedAt, &q.ExpiresAt,
		&q.Version, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	return &q, nil
}

func (r *repository) Get(ctx context.Context, tenantID, id string) (*Quote, error) {
	return scanQuote(r.db.QueryRow(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE tenant_id = $1 AND id = $2`, tenantID, id))
}

func (r *repository) collect(ctx context.Context, query string, args ...interface{}) ([]Quote, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Quote
	for rows.Next() {
		var q Quote
		if err := rows.Scan(&q.ID, &q.TenantID, &q.OrderID, &q.VendorID, &q.QuoteNumber,
			&q.Round, &q.InitialOffer, &q.LatestOffer, &q.Currency, &q.Status,
			&q.SentAt, &q.RespondedAt, &q.ClosedAt, &q.ExpiresAt,
			&q.Version, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *repository) ListByOrder(ctx context.Context, tenantID, orderID string) ([]Quote, error) {
	return r.collect(ctx,
		`SELECT `+quoteColumns+` FROM quotes WHERE tenant_id = $1 AND order_id = $2 ORDER BY created_at, id`,
		tenantID, orderID)
}

func (r *repository) ActiveByOrder(ctx context.Context, tenantID, orderID string) ([]Quote, error) {
	return r.collect(ctx,
		`SELECT `+quoteColumns+` FROM quotes
		 WHERE tenant_id = $1 AND order_id = $2 AND status = ANY($3)
		 ORDER BY created_at, id`,
		tenantID, orderID, ActiveStatuses())
}

// FindExpired feeds the expiration sweep: active quotes whose deadline has
// passed, oldest first so repeated limited sweeps drain the backlog.
func (r *repository) FindExpired(ctx context.Context, now time.Time, limit int) ([]Quote, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.collect(ctx,
		`SELECT `+quoteColumns+` FROM quotes
		 WHERE status = ANY($1) AND expires_at IS NOT NULL AND expires_at <= $2
		 ORDER BY expires_at, id LIMIT $3`,
		ActiveStatuses(), now, limit)
}

func (r *repository) Create(ctx context.Context, quote Quote) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO quotes (id, tenant_id, order_id, vendor_id, quote_number, round, initial_offer,
			latest_offer, currency, status, sent_at, responded_at, closed_at, expires_at, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())`,
		quote.ID, quote.TenantID, quote.OrderID, quote.VendorID, quote.QuoteNumber,
		quote.Round, quote.InitialOffer, quote.LatestOffer, quote.Currency, quote.Status,
		quote.SentAt, quote.RespondedAt, quote.ClosedAt, quote.ExpiresAt, quote.Version)
	return err
}

func (r *repository) UpdateStatus(ctx context.Context, id string, status QuoteStatus, respondedAt, closedAt *time.Time, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE quotes SET status = $1,
			responded_at = COALESCE($2, responded_at),
			closed_at = COALESCE($3, closed_at),
			version = version + 1, updated_at = NOW()
		 WHERE id = $4 AND version = $5`,
		status, respondedAt, closedAt, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quotes: update status %s: %w", id, httpx.ErrConflict)
	}
	return nil
}

func (r *repository) UpdateOffer(ctx context.Context, id string, round int, latestOffer int64, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE quotes SET round = $1, latest_offer = $2, status = $3,
			responded_at = NOW(), version = version + 1, updated_at = NOW()
		 WHERE id = $4 AND version = $5`,
		round, latestOffer, QuoteStatusCountered, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quotes: update offer %s: %w", id, httpx.ErrConflict)
	}
	return nil
}

func (r *repository) UpdateExpiry(ctx context.Context, id string, sentAt, expiresAt *time.Time, status QuoteStatus, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE quotes SET sent_at = COALESCE($1, sent_at), expires_at = $2, status = $3,
			version = version + 1, updated_at = NOW()
		 WHERE id = $4 AND version = $5`,
		sentAt, expiresAt, status, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quotes: update expiry %s: %w", id, httpx.ErrConflict)
	}
	return nil
}

func (r *repository) AppendEvent(ctx context.Context, event QuoteEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO quote_events (id, quote_id, status, note, actor_id, actor_type,
			previous_offer, new_offer, percent_delta, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, COALESCE($10, NOW()))`,
		event.ID, event.QuoteID, event.Status, event.Note, event.ActorID, event.ActorType,
		event.PreviousOffer, event.NewOffer, event.PercentDelta, event.At)
	return err
}

func (r *repository) Events(ctx context.Context, quoteID string) ([]QuoteEvent, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, quote_id, status, note, actor_id, actor_type, previous_offer, new_offer, percent_delta, at
		 FROM quote_events WHERE quote_id = $1 ORDER BY at, id`, quoteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []QuoteEvent
	for rows.Next() {
		var e QuoteEvent
		if err := rows.Scan(&e.ID, &e.QuoteID, &e.Status, &e.Note, &e.ActorID, &e.ActorType,
			&e.PreviousOffer, &e.NewOffer, &e.PercentDelta, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repository) GenerateNumber(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	if err := r.db.QueryRow(ctx, `SELECT nextval('quote_number_seq')`).Scan(&seq); err != nil {
		return "", fmt.Errorf("quotes: generate number: %w", err)
	}
	return fmt.Sprintf("QT-%s-%05d", at.Format("200601"), seq), nil
}
