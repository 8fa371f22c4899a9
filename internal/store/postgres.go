package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/opinix/trading-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision;
// event options are stored as JSONB alongside the event row.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the backing tables when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL,
			email      TEXT NOT NULL UNIQUE,
			password   TEXT NOT NULL,
			balance    NUMERIC NOT NULL DEFAULT 0,
			role       TEXT NOT NULL DEFAULT 'user',
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS events (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT '',
			start_time  TIMESTAMPTZ NOT NULL,
			end_time    TIMESTAMPTZ NOT NULL,
			status      TEXT NOT NULL,
			options     JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS trades (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			event_id          TEXT NOT NULL,
			option_id         TEXT NOT NULL,
			amount            NUMERIC NOT NULL,
			status            TEXT NOT NULL,
			outcome           TEXT NOT NULL DEFAULT '',
			settlement_amount NUMERIC NOT NULL DEFAULT 0,
			created_at        TIMESTAMPTZ NOT NULL,
			updated_at        TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS trades_user_idx  ON trades (user_id);
		CREATE INDEX IF NOT EXISTS trades_event_idx ON trades (event_id);
		CREATE INDEX IF NOT EXISTS events_category_idx ON events (category);
	`)
	return err
}

// --- Users ---

const userColumns = `id, username, email, password, balance::TEXT, role, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password, balance, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8)`,
		u.ID, u.Username, u.Email, u.Password, u.Balance.String(), u.Role, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return model.ErrEmailTaken
	}
	return err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := s.scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateBalance(ctx context.Context, id string, delta decimal.Decimal) (*model.User, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET balance = balance + $2::NUMERIC, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, delta.String())
	u, err := s.scanUser(row)
	if errors.Is(err, model.ErrUserNotFound) {
		return nil, model.ErrUserNotFound
	}
	return u, err
}

func (s *PostgresStore) DebitBalance(ctx context.Context, id string, amount decimal.Decimal) (*model.User, error) {
	// Conditional decrement: the WHERE clause is the overdraft guard, so
	// concurrent debits cannot push the balance negative.
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET balance = balance - $2::NUMERIC, updated_at = NOW()
		 WHERE id = $1 AND balance >= $2::NUMERIC
		 RETURNING `+userColumns,
		id, amount.String())
	u, err := s.scanUser(row)
	if errors.Is(err, model.ErrUserNotFound) {
		// Distinguish a missing user from an uncovered balance.
		if _, getErr := s.GetUser(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, model.ErrInsufficientBalance
	}
	return u, err
}

func (s *PostgresStore) scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var balance string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &balance,
		&u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Balance, _ = decimal.NewFromString(balance)
	return &u, nil
}

// --- Events ---

const eventColumns = `id, title, description, category, start_time, end_time, status, options, created_at, updated_at`

func (s *PostgresStore) CreateEvent(ctx context.Context, e *model.Event) error {
	opts, err := json.Marshal(e.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO events (id, title, description, category, start_time, end_time, status, options, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Title, e.Description, e.Category, e.StartTime, e.EndTime,
		e.Status, opts, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return s.scanEvent(s.pool.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events ORDER BY start_time`)
}

func (s *PostgresStore) ListEventsByCategory(ctx context.Context, category string) ([]model.Event, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE category = $1 ORDER BY start_time`, category)
}

func (s *PostgresStore) UpdateEvent(ctx context.Context, e *model.Event) (*model.Event, error) {
	opts, err := json.Marshal(e.Options)
	if err != nil {
		return nil, fmt.Errorf("marshal options: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE events
		 SET title = $2, description = $3, category = $4, start_time = $5,
		     end_time = $6, status = $7, options = $8, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+eventColumns,
		e.ID, e.Title, e.Description, e.Category, e.StartTime, e.EndTime, e.Status, opts)
	return s.scanEvent(row)
}

func (s *PostgresStore) UpdateEventStatus(ctx context.Context, id, status string) (*model.Event, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE events SET status = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+eventColumns,
		id, status)
	return s.scanEvent(row)
}

func (s *PostgresStore) SetEventResults(ctx context.Context, id, winningOptionID string) (*model.Event, error) {
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range e.Options {
		won := e.Options[i].ID == winningOptionID
		e.Options[i].Result = &won
	}
	e.Status = model.EventSettled
	return s.UpdateEvent(ctx, e)
}

func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrEventNotFound
	}
	return nil
}

func (s *PostgresStore) queryEvents(ctx context.Context, sql string, args ...any) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	var opts []byte
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Category,
		&e.StartTime, &e.EndTime, &e.Status, &opts, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(opts, &e.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options for event %s: %w", e.ID, err)
	}
	return &e, nil
}

// --- Trades ---

const tradeColumns = `id, user_id, event_id, option_id, amount::TEXT, status, outcome, settlement_amount::TEXT, created_at, updated_at`

func (s *PostgresStore) CreateTrade(ctx context.Context, t *model.Trade) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO trades (id, user_id, event_id, option_id, amount, status, outcome, settlement_amount, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8::NUMERIC, $9, $10)`,
		t.ID, t.UserID, t.EventID, t.OptionID, t.Amount.String(),
		t.Status, t.Outcome, t.SettlementAmount.String(), t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetTrade(ctx context.Context, id string) (*model.Trade, error) {
	return s.scanTrade(s.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id))
}

func (s *PostgresStore) ListTrades(ctx context.Context) ([]model.Trade, error) {
	return s.queryTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades ORDER BY created_at`)
}

func (s *PostgresStore) ListTradesByUser(ctx context.Context, userID string) ([]model.Trade, error) {
	return s.queryTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (s *PostgresStore) ListTradesByEvent(ctx context.Context, eventID string) ([]model.Trade, error) {
	return s.queryTrades(ctx,
		`SELECT `+tradeColumns+` FROM trades WHERE event_id = $1 ORDER BY created_at`, eventID)
}

func (s *PostgresStore) TransitionTrade(ctx context.Context, id, from, to, outcome string, settlementAmount decimal.Decimal) (*model.Trade, error) {
	// Conditional transition: only one concurrent caller can win the
	// from→to write, which keeps settlement single-shot per trade.
	row := s.pool.QueryRow(ctx,
		`UPDATE trades
		 SET status = $3, outcome = $4, settlement_amount = $5::NUMERIC, updated_at = NOW()
		 WHERE id = $1 AND status = $2
		 RETURNING `+tradeColumns,
		id, from, to, outcome, settlementAmount.String())
	t, err := s.scanTrade(row)
	if errors.Is(err, model.ErrTradeNotFound) {
		if _, getErr := s.GetTrade(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, model.ErrInvalidTradeState
	}
	return t, err
}

func (s *PostgresStore) queryTrades(ctx context.Context, sql string, args ...any) ([]model.Trade, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []model.Trade
	for rows.Next() {
		t, err := s.scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) scanTrade(row pgx.Row) (*model.Trade, error) {
	var t model.Trade
	var amount, settlement string
	err := row.Scan(&t.ID, &t.UserID, &t.EventID, &t.OptionID, &amount,
		&t.Status, &t.Outcome, &settlement, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrTradeNotFound
	}
	if err != nil {
		return nil, err
	}
	t.Amount, _ = decimal.NewFromString(amount)
	t.SettlementAmount, _ = decimal.NewFromString(settlement)
	return &t, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
