package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"restaurant-ordering/internal/domain"
)

const uniqueViolation = "23505"

// PostgresStore is the relational adapter. q is either the pool or the
// transaction opened by Atomic.
type PostgresStore struct {
	db  *sqlx.DB
	q   sqlx.ExtContext
	now func() time.Time
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *PostgresStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	if _, inTx := s.q.(*sqlx.Tx); inTx {
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&PostgresStore{db: s.db, q: tx, now: s.now}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PostgresStore) Close() error { return s.db.Close() }

type menuRow struct {
	domain.MenuItem
	TagsJSON []byte `db:"tags"`
}

func (r menuRow) item() domain.MenuItem {
	it := r.MenuItem
	it.Tags = []string{}
	if len(r.TagsJSON) > 0 {
		_ = json.Unmarshal(r.TagsJSON, &it.Tags)
	}
	return it
}

const menuColumns = `id, name, price, category, image, description, tags, available, created_at, updated_at`

func (s *PostgresStore) ListMenu(ctx context.Context, f MenuFilter) ([]domain.MenuItem, error) {
	var rows []menuRow
	err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT `+menuColumns+`
		FROM menu_items
		WHERE ($1 = '' OR category = $1) AND (NOT $2 OR available)
		ORDER BY category, name, id`, f.Category, f.AvailableOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list menu: %w", err)
	}
	out := make([]domain.MenuItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.item())
	}
	return out, nil
}

func (s *PostgresStore) GetMenuItem(ctx context.Context, id string) (domain.MenuItem, error) {
	var r menuRow
	err := sqlx.GetContext(ctx, s.q, &r, `SELECT `+menuColumns+` FROM menu_items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MenuItem{}, fmt.Errorf("menu item %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.MenuItem{}, fmt.Errorf("failed to get menu item: %w", err)
	}
	return r.item(), nil
}

func (s *PostgresStore) GetMenuItems(ctx context.Context, ids []string) (map[string]domain.MenuItem, error) {
	out := make(map[string]domain.MenuItem, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen {
			continue
		}
		it, err := s.GetMenuItem(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = it
	}
	return out, nil
}

func (s *PostgresStore) CreateMenuItem(ctx context.Context, item domain.MenuItem) error {
	tags, err := json.Marshal(nonNilTags(item.Tags))
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO menu_items (`+menuColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.Name, item.Price, item.Category, item.Image, item.Description,
		string(tags), item.Available, item.CreatedAt, item.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("menu item %s: %w", item.ID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert menu item: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMenuItem(ctx context.Context, item domain.MenuItem) error {
	tags, err := json.Marshal(nonNilTags(item.Tags))
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		UPDATE menu_items
		SET name = $2, price = $3, category = $4, image = $5, description = $6,
		    tags = $7, available = $8, updated_at = $9
		WHERE id = $1`,
		item.ID, item.Name, item.Price, item.Category, item.Image, item.Description,
		string(tags), item.Available, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update menu item: %w", err)
	}
	return expectRow(res, "menu item", item.ID)
}

func (s *PostgresStore) DeleteMenuItem(ctx context.Context, id string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM menu_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete menu item: %w", err)
	}
	return expectRow(res, "menu item", id)
}

const memberColumns = `phone, name, points, created_at, updated_at`

func (s *PostgresStore) GetMember(ctx context.Context, phone string) (domain.Member, error) {
	return s.getMember(ctx, `SELECT `+memberColumns+` FROM members WHERE phone = $1`, phone)
}

// GetMemberForUpdate locks the member row; outside a transaction the lock
// is released as soon as the statement ends.
func (s *PostgresStore) GetMemberForUpdate(ctx context.Context, phone string) (domain.Member, error) {
	return s.getMember(ctx, `SELECT `+memberColumns+` FROM members WHERE phone = $1 FOR UPDATE`, phone)
}

func (s *PostgresStore) getMember(ctx context.Context, query, phone string) (domain.Member, error) {
	var m domain.Member
	err := sqlx.GetContext(ctx, s.q, &m, query, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Member{}, fmt.Errorf("member %s: %w", phone, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Member{}, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context) ([]domain.Member, error) {
	out := []domain.Member{}
	if err := sqlx.SelectContext(ctx, s.q, &out, `SELECT `+memberColumns+` FROM members ORDER BY phone`); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateMember(ctx context.Context, m domain.Member) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		m.Phone, m.Name, m.Points, m.CreatedAt, m.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("member %s: %w", m.Phone, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddMemberPoints(ctx context.Context, phone string, delta int64) (domain.Member, error) {
	var m domain.Member
	err := sqlx.GetContext(ctx, s.q, &m, `
		UPDATE members SET points = points + $2, updated_at = $3
		WHERE phone = $1 AND points + $2 >= 0
		RETURNING `+memberColumns, phone, delta, s.now())
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetMember(ctx, phone); getErr != nil {
			return domain.Member{}, getErr
		}
		return domain.Member{}, domain.NewValidationError("points", "balance cannot go negative")
	}
	if err != nil {
		return domain.Member{}, fmt.Errorf("failed to update member points: %w", err)
	}
	return m, nil
}

const orderColumns = `id, ticket_number, order_type, table_number, member_phone, customer_name, note,
	subtotal, used_points, discount, total, earned_points, status, created_at, updated_at`

func (s *PostgresStore) CreateOrder(ctx context.Context, o domain.Order, changedBy string) error {
	// 1. order
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		o.ID, o.TicketNumber, o.Type, o.TableNumber, o.MemberPhone, o.CustomerName, o.Note,
		o.Subtotal, o.UsedPoints, o.Discount, o.Total, o.EarnedPoints, o.Status, o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("order %s: %w", o.ID, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	// 2. lines
	for i, line := range o.Items {
		_, err = s.q.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, menu_item_id, name, unit_price, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, i, line.MenuItemID, line.Name, line.UnitPrice, line.Quantity, line.LineTotal)
		if err != nil {
			return fmt.Errorf("failed to insert order item %s: %w", line.Name, err)
		}
	}

	// 3. initial status
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO order_status_log (order_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1, '', $2, $3, $4)`, o.ID, o.Status, changedBy, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert order status log: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	err := sqlx.GetContext(ctx, s.q, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	if o.Items, err = s.orderLines(ctx, id); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, f OrderFilter) ([]domain.Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	out := []domain.Order{}
	err := sqlx.SelectContext(ctx, s.q, &out, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, string(f.Status), limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	for i := range out {
		if out[i].Items, err = s.orderLines(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) orderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	lines := []domain.OrderLine{}
	err := sqlx.SelectContext(ctx, s.q, &lines, `
		SELECT menu_item_id, name, unit_price, quantity, line_total
		FROM order_items WHERE order_id = $1 ORDER BY line_no`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	return lines, nil
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus, changedBy string) (domain.OrderStatus, domain.Order, error) {
	var old domain.OrderStatus
	err := s.Atomic(ctx, func(tx Store) error {
		pg := tx.(*PostgresStore)
		err := sqlx.GetContext(ctx, pg.q, &old, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock order: %w", err)
		}
		now := pg.now()
		if _, err := pg.q.ExecContext(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now); err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if _, err := pg.q.ExecContext(ctx, `
			INSERT INTO order_status_log (order_id, from_status, to_status, changed_by, changed_at)
			VALUES ($1, $2, $3, $4, $5)`, id, old, status, changedBy, now); err != nil {
			return fmt.Errorf("failed to insert order status log: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", domain.Order{}, err
	}
	o, err := s.GetOrder(ctx, id)
	return old, o, err
}

func (s *PostgresStore) StatusHistory(ctx context.Context, id string) ([]domain.StatusChange, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, s.q, &exists, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id); err != nil {
		return nil, fmt.Errorf("failed to check order: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	out := []domain.StatusChange{}
	err := sqlx.SelectContext(ctx, s.q, &out, `
		SELECT order_id, from_status, to_status, changed_by, changed_at
		FROM order_status_log WHERE order_id = $1
		ORDER BY changed_at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load status history: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) RegisterWorker(ctx context.Context, name string) error {
	var status string
	err := sqlx.GetContext(ctx, s.q, &status, `SELECT status FROM workers WHERE name = $1`, name)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.q.ExecContext(ctx, `
			INSERT INTO workers (name, status, orders_processed, last_seen) VALUES ($1, 'online', 0, $2)`, name, s.now())
	case err != nil:
		return fmt.Errorf("failed to read worker: %w", err)
	case status == "online":
		return fmt.Errorf("worker %s: %w", name, domain.ErrConflict)
	default:
		_, err = s.q.ExecContext(ctx, `UPDATE workers SET status = 'online', last_seen = $2 WHERE name = $1`, name, s.now())
	}
	if err != nil {
		return fmt.Errorf("failed to register worker: %w", err)
	}
	return nil
}

func (s *PostgresStore) WorkerHeartbeat(ctx context.Context, name string, processed int) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE workers SET last_seen = $2, orders_processed = orders_processed + $3 WHERE name = $1`,
		name, s.now(), processed)
	if err != nil {
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}
	return expectRow(res, "worker", name)
}

func (s *PostgresStore) SetWorkerOffline(ctx context.Context, name string) error {
	res, err := s.q.ExecContext(ctx, `UPDATE workers SET status = 'offline', last_seen = $2 WHERE name = $1`, name, s.now())
	if err != nil {
		return fmt.Errorf("failed to set worker offline: %w", err)
	}
	return expectRow(res, "worker", name)
}

func (s *PostgresStore) ListWorkers(ctx context.Context) ([]domain.Worker, error) {
	out := []domain.Worker{}
	err := sqlx.SelectContext(ctx, s.q, &out, `
		SELECT name, status, orders_processed, last_seen FROM workers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	return out, nil
}

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, domain.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
