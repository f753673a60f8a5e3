package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentra-orders/sentra/internal/platform/db"
	"github.com/sentra-orders/sentra/internal/platform/httpx"
	"github.com/sentra-orders/sentra/internal/workflow"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, tenantID, id string) (*Order, error)
	GetByNumber(ctx context.Context, tenantID, number string) (*Order, error)
	List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error)
	Create(ctx context.Context, order Order) error
	InsertItem(ctx context.Context, item OrderItem) error
	UpdateStatus(ctx context.Context, id string, status workflow.Status, paymentStatus PaymentStatus, expectedVersion int64) error
	RecordPayment(ctx context.Context, id string, amountPaid int64, paymentStatus PaymentStatus, expectedVersion int64) error
	SetQuotationAmount(ctx context.Context, id string, amount int64) error
	AppendStatusChange(ctx context.Context, change StatusChange) error
	History(ctx context.Context, orderID string) ([]StatusChange, error)
	SoftDelete(ctx context.Context, tenantID, id string) error
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

const orderColumns = `id, tenant_id, order_number, customer_id, vendor_id, status, payment_status,
	currency, total_amount, amount_paid, quotation_amount, notes, metadata, version,
	created_at, updated_at, deleted_at`

func (r *repository) scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var metaJSON []byte
	err := row.Scan(&o.ID, &o.TenantID, &o.OrderNumber, &o.CustomerID, &o.VendorID,
		&o.Status, &o.PaymentStatus, &o.Currency, &o.TotalAmount, &o.AmountPaid,
		&o.QuotationAmount, &o.Notes, &metaJSON, &o.Version,
		&o.CreatedAt, &o.UpdatedAt, &o.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, httpx.ErrNotFound
		}
		return nil, err
	}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &o.Metadata); err != nil {
			return nil, fmt.Errorf("orders: decode metadata: %w", err)
		}
	}
	return &o, nil
}

func (r *repository) Get(ctx context.Context, tenantID, id string) (*Order, error) {
	o, err := r.scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`,
		tenantID, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) GetByNumber(ctx context.Context, tenantID, number string) (*Order, error) {
	o, err := r.scanOrder(r.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND order_number = $2 AND deleted_at IS NULL`,
		tenantID, number))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *repository) loadItems(ctx context.Context, o *Order) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, sku, description, quantity, unit_price, line_total, position
		 FROM order_items WHERE order_id = $1 ORDER BY position, id`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.SKU, &it.Description,
			&it.Quantity, &it.UnitPrice, &it.LineTotal, &it.Position); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

func (r *repository) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	conditions := []string{"tenant_id = $1", "deleted_at IS NULL"}
	args := []interface{}{req.TenantID}
	argPos := 2

	if req.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argPos))
		args = append(args, *req.CustomerID)
		argPos++
	}
	if req.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *req.Status)
		argPos++
	}
	if req.Stage != nil {
		statuses := statusesForStage(*req.Stage)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argPos))
		args = append(args, statuses)
		argPos++
	}

	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * perPage

	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, argPos, argPos+1)
	args = append(args, perPage, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		var metaJSON []byte
		if err := rows.Scan(&o.ID, &o.TenantID, &o.OrderNumber, &o.CustomerID, &o.VendorID,
			&o.Status, &o.PaymentStatus, &o.Currency, &o.TotalAmount, &o.AmountPaid,
			&o.QuotationAmount, &o.Notes, &metaJSON, &o.Version,
			&o.CreatedAt, &o.UpdatedAt, &o.DeletedAt); err != nil {
			return nil, 0, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &o.Metadata); err != nil {
				return nil, 0, fmt.Errorf("orders: decode metadata: %w", err)
			}
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// statusesForStage returns all statuses that map to the stage, so stage
// filters also match legacy aliases.
func statusesForStage(stage workflow.Stage) []workflow.Status {
	var out []workflow.Status
	for _, st := range workflow.AllStatuses() {
		if workflow.MapStatusToStage(st) == stage {
			out = append(out, st)
		}
	}
	return out
}

func (r *repository) Create(ctx context.Context, order Order) error {
	metaJSON, err := json.Marshal(order.Metadata)
	if err != nil {
		return fmt.Errorf("orders: encode metadata: %w", err)
	}
	_, err = r.db.Exec(ctx,
		`INSERT INTO orders (id, tenant_id, order_number, customer_id, vendor_id, status, payment_status,
			currency, total_amount, amount_paid, quotation_amount, notes, metadata, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())`,
		order.ID, order.TenantID, order.OrderNumber, order.CustomerID, order.VendorID,
		order.Status, order.PaymentStatus, order.Currency, order.TotalAmount, order.AmountPaid,
		order.QuotationAmount, order.Notes, metaJSON, order.Version)
	return err
}

func (r *repository) InsertItem(ctx context.Context, item OrderItem) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO order_items (id, order_id, sku, description, quantity, unit_price, line_total, position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.OrderID, item.SKU, item.Description,
		item.Quantity, item.UnitPrice, item.LineTotal, item.Position)
	return err
}

// UpdateStatus bumps the version; a mismatch on expectedVersion means the
// order changed underneath the caller and surfaces as ErrConflict.
func (r *repository) UpdateStatus(ctx context.Context, id string, status workflow.Status, paymentStatus PaymentStatus, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $1, payment_status = $2, version = version + 1, updated_at = NOW()
		 WHERE id = $3 AND version = $4 AND deleted_at IS NULL`,
		status, paymentStatus, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orders: update status %s: %w", id, httpx.ErrConflict)
	}
	return nil
}

func (r *repository) RecordPayment(ctx context.Context, id string, amountPaid int64, paymentStatus PaymentStatus, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET amount_paid = $1, payment_status = $2, version = version + 1, updated_at = NOW()
		 WHERE id = $3 AND version = $4 AND deleted_at IS NULL`,
		amountPaid, paymentStatus, id, expectedVersion)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orders: record payment %s: %w", id, httpx.ErrConflict)
	}
	return nil
}

func (r *repository) SetQuotationAmount(ctx context.Context, id string, amount int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET quotation_amount = $1, version = version + 1, updated_at = NOW()
		 WHERE id = $2 AND deleted_at IS NULL`, amount, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orders: set quotation amount %s: %w", id, httpx.ErrNotFound)
	}
	return nil
}

func (r *repository) AppendStatusChange(ctx context.Context, change StatusChange) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO order_status_history (id, order_id, from_status, to_status, note, actor_id, actor_type, percent_delta, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))`,
		change.ID, change.OrderID, change.FromStatus, change.ToStatus, change.Note,
		change.ActorID, change.ActorType, change.PercentDelta, change.At)
	return err
}

func (r *repository) History(ctx context.Context, orderID string) ([]StatusChange, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, order_id, from_status, to_status, note, actor_id, actor_type, percent_delta, at
		 FROM order_status_history WHERE order_id = $1 ORDER BY at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.OrderID, &c.FromStatus, &c.ToStatus, &c.Note,
			&c.ActorID, &c.ActorType, &c.PercentDelta, &c.At); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) SoftDelete(ctx context.Context, tenantID, id string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE orders SET deleted_at = NOW(), updated_at = NOW()
		 WHERE tenant_id = $1 AND id = $2 AND deleted_at IS NULL`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return httpx.ErrNotFound
	}
	return nil
}

func (r *repository) GenerateNumber(ctx context.Context, at time.Time) (string, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("orders: generate number: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%05d", at.Format("200601"), seq), nil
}
