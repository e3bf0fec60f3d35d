/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements credit.TxStore and giftcard.TxStore using SQLite. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

APPEND-ONLY ENFORCEMENT:
  store_credit_events has INSERT and SELECT paths only. No UPDATE, no
  DELETE. Store credits are updated in place, but exclusively through
  the ledger's WithTx flow, and soft-deleted via deleted_at rather than
  removed.

KEY TABLES:
  store_credits:       The balance holders (soft-deleted, never dropped)
  store_credit_events: Immutable audit log of every balance change
  credit_types:        Priority-ordered credit classifications
  categories:          Credit origin labels
  users:               Credit owners (including stub users from orders)
  gift_cards:          Purchased virtual gift cards awaiting redemption

INDEXES:
  idx_events_credit_action_code: idempotency and void/credit target
    lookups (hot path - every operation hits it inside its transaction)
  idx_credits_user: balance aggregation per user

CONCURRENCY:
  A single mutex serializes writers; WithTx holds it for the whole
  read-modify-write so concurrent operations against the same credit
  cannot interleave between the idempotency lookup and the event
  append. Reads inside a transaction go through the transaction so the
  user-total snapshot sees the balance update that preceded it.
  WithRedemptionTx hands both store views the same transaction, so a
  gift card redemption's claim check and credit grant serialize behind
  the same lock as ledger operations.

WAL MODE:
  Opened with WAL for better read concurrency and crash recovery.

USAGE:
  st, err := sqlite.New("./data/credits.db")
  ...
  ledger := credit.NewLedger(st, defaultTypeID)

SEE ALSO:
  - credit/store.go: Interface contracts
  - credit/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/credit-engine/credit"
	"github.com/warp/credit-engine/giftcard"
)

// Store implements credit.TxStore and giftcard.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Balance holders (soft-deleted via deleted_at, never dropped)
	CREATE TABLE IF NOT EXISTS store_credits (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		category_id TEXT NOT NULL,
		created_by_id TEXT NOT NULL,
		type_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		amount_used TEXT NOT NULL,
		amount_authorized TEXT NOT NULL,
		currency TEXT NOT NULL,
		memo TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_credits_user
		ON store_credits(user_id) WHERE deleted_at IS NULL;

	-- Append-only audit log
	CREATE TABLE IF NOT EXISTS store_credit_events (
		id TEXT PRIMARY KEY,
		credit_id TEXT NOT NULL,
		action TEXT NOT NULL,
		amount TEXT NOT NULL,
		authorization_code TEXT NOT NULL,
		user_total_amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_credit
		ON store_credit_events(credit_id, created_at);

	-- Hot path: idempotency and void/credit target lookups
	CREATE INDEX IF NOT EXISTS idx_events_credit_action_code
		ON store_credit_events(credit_id, action, authorization_code);

	CREATE TABLE IF NOT EXISTS credit_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		priority INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		stub INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS gift_cards (
		id TEXT PRIMARY KEY,
		redemption_code TEXT NOT NULL UNIQUE,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL,
		purchaser_name TEXT,
		recipient_name TEXT,
		recipient_email TEXT,
		gift_message TEXT,
		send_email_at TEXT,
		order_email TEXT,
		credit_id TEXT,
		redeemer_id TEXT,
		redeemed_at TEXT,
		deactivated_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_gift_cards_code
		ON gift_cards(redemption_code);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (credit.TxStore interface)
// =============================================================================

// WithTx executes fn within one database transaction, serialized
// behind the store's write lock. Reads issued through the callback's
// Store view go through the same transaction.
func (s *Store) WithTx(ctx context.Context, fn func(credit.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore routes every Store call through one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateCredit(ctx context.Context, sc credit.StoreCredit) error {
	return createCredit(ctx, ts.tx, sc)
}
func (ts *txStore) GetCredit(ctx context.Context, id credit.CreditID) (*credit.StoreCredit, error) {
	return getCredit(ctx, ts.tx, id)
}
func (ts *txStore) UpdateCredit(ctx context.Context, sc credit.StoreCredit) error {
	return updateCredit(ctx, ts.tx, sc)
}
func (ts *txStore) CreditsByUser(ctx context.Context, userID credit.UserID) ([]credit.StoreCredit, error) {
	return creditsByUser(ctx, ts.tx, userID)
}
func (ts *txStore) AppendEvent(ctx context.Context, ev credit.Event) error {
	return appendEvent(ctx, ts.tx, ev)
}
func (ts *txStore) FindEvent(ctx context.Context, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) (*credit.Event, error) {
	return findEvent(ctx, ts.tx, id, action, code)
}
func (ts *txStore) EventsByCode(ctx context.Context, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) ([]credit.Event, error) {
	return eventsByCode(ctx, ts.tx, id, action, code)
}
func (ts *txStore) Events(ctx context.Context, id credit.CreditID) ([]credit.Event, error) {
	return events(ctx, ts.tx, id)
}
func (ts *txStore) GetCreditType(ctx context.Context, id credit.TypeID) (*credit.CreditType, error) {
	return getCreditType(ctx, ts.tx, id)
}
func (ts *txStore) FindCreditTypeByName(ctx context.Context, name string) (*credit.CreditType, error) {
	return findCreditTypeByName(ctx, ts.tx, name)
}
func (ts *txStore) SaveUser(ctx context.Context, u giftcard.User) error {
	return saveUser(ctx, ts.tx, u)
}
func (ts *txStore) FindUserByEmail(ctx context.Context, email string) (*giftcard.User, error) {
	return findUserByEmail(ctx, ts.tx, email)
}
func (ts *txStore) CreateGiftCard(ctx context.Context, gc giftcard.GiftCard) error {
	return createGiftCard(ctx, ts.tx, gc)
}
func (ts *txStore) UpdateGiftCard(ctx context.Context, gc giftcard.GiftCard) error {
	return updateGiftCard(ctx, ts.tx, gc)
}
func (ts *txStore) GetGiftCardByCode(ctx context.Context, code string) (*giftcard.GiftCard, error) {
	return getGiftCardByCode(ctx, ts.tx, code)
}

// WithRedemptionTx executes fn within one database transaction spanning
// the gift card tables and the credit store, serialized behind the same
// write lock as WithTx. Both callback views route through the same
// *sql.Tx, so a redemption's claim check, grant, and card update commit
// or roll back together.
func (s *Store) WithRedemptionTx(ctx context.Context, fn func(giftcard.Store, credit.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	v := &txStore{tx: sqlTx}
	if err := fn(v, v); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// CREDIT STORE (credit.Store interface)
// =============================================================================

func (s *Store) CreateCredit(ctx context.Context, sc credit.StoreCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createCredit(ctx, s.db, sc)
}

func (s *Store) GetCredit(ctx context.Context, id credit.CreditID) (*credit.StoreCredit, error) {
	return getCredit(ctx, s.db, id)
}

func (s *Store) UpdateCredit(ctx context.Context, sc credit.StoreCredit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateCredit(ctx, s.db, sc)
}

func (s *Store) CreditsByUser(ctx context.Context, userID credit.UserID) ([]credit.StoreCredit, error) {
	return creditsByUser(ctx, s.db, userID)
}

func (s *Store) AppendEvent(ctx context.Context, ev credit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEvent(ctx, s.db, ev)
}

func (s *Store) FindEvent(ctx context.Context, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) (*credit.Event, error) {
	return findEvent(ctx, s.db, id, action, code)
}

func (s *Store) EventsByCode(ctx context.Context, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) ([]credit.Event, error) {
	return eventsByCode(ctx, s.db, id, action, code)
}

func (s *Store) Events(ctx context.Context, id credit.CreditID) ([]credit.Event, error) {
	return events(ctx, s.db, id)
}

func (s *Store) GetCreditType(ctx context.Context, id credit.TypeID) (*credit.CreditType, error) {
	return getCreditType(ctx, s.db, id)
}

func (s *Store) FindCreditTypeByName(ctx context.Context, name string) (*credit.CreditType, error) {
	return findCreditTypeByName(ctx, s.db, name)
}

// =============================================================================
// CREDIT QUERIES
// =============================================================================

const creditColumns = `id, user_id, category_id, created_by_id, type_id,
	amount, amount_used, amount_authorized, currency, memo,
	created_at, updated_at, deleted_at`

func createCredit(ctx context.Context, db dbtx, sc credit.StoreCredit) error {
	query := `
		INSERT INTO store_credits
		(id, user_id, category_id, created_by_id, type_id, amount, amount_used,
		 amount_authorized, currency, memo, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		sc.ID, sc.UserID, sc.CategoryID, sc.CreatedByID, sc.TypeID,
		sc.Amount.String(), sc.AmountUsed.String(), sc.AmountAuthorized.String(),
		sc.Currency, sc.Memo,
		formatTime(sc.CreatedAt), formatTime(sc.UpdatedAt), nullTime(sc.DeletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert store credit: %w", err)
	}
	return nil
}

func getCredit(ctx context.Context, db dbtx, id credit.CreditID) (*credit.StoreCredit, error) {
	query := `SELECT ` + creditColumns + ` FROM store_credits WHERE id = ? AND deleted_at IS NULL`
	row := db.QueryRowContext(ctx, query, id)
	sc, err := scanCredit(row)
	if err == sql.ErrNoRows {
		return nil, credit.ErrCreditNotFound
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func updateCredit(ctx context.Context, db dbtx, sc credit.StoreCredit) error {
	query := `
		UPDATE store_credits
		SET amount_used = ?, amount_authorized = ?, memo = ?, updated_at = ?, deleted_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		sc.AmountUsed.String(), sc.AmountAuthorized.String(), sc.Memo,
		formatTime(sc.UpdatedAt), nullTime(sc.DeletedAt), sc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update store credit: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return credit.ErrCreditNotFound
	}
	return nil
}

func creditsByUser(ctx context.Context, db dbtx, userID credit.UserID) ([]credit.StoreCredit, error) {
	// Consumption order: credit type priority ascending, then age.
	query := `
		SELECT sc.id, sc.user_id, sc.category_id, sc.created_by_id, sc.type_id,
		       sc.amount, sc.amount_used, sc.amount_authorized, sc.currency, sc.memo,
		       sc.created_at, sc.updated_at, sc.deleted_at
		FROM store_credits sc
		LEFT JOIN credit_types ct ON ct.id = sc.type_id
		WHERE sc.user_id = ? AND sc.deleted_at IS NULL
		ORDER BY ct.priority ASC, sc.created_at ASC
	`
	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query store credits: %w", err)
	}
	defer rows.Close()

	var out []credit.StoreCredit
	for rows.Next() {
		sc, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredit(row rowScanner) (*credit.StoreCredit, error) {
	var (
		sc         credit.StoreCredit
		amount     string
		used       string
		authorized string
		memo       sql.NullString
		createdAt  string
		updatedAt  string
		deletedAt  sql.NullString
	)
	err := row.Scan(
		&sc.ID, &sc.UserID, &sc.CategoryID, &sc.CreatedByID, &sc.TypeID,
		&amount, &used, &authorized, &sc.Currency, &memo,
		&createdAt, &updatedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	sc.Amount = parseDecimal(amount)
	sc.AmountUsed = parseDecimal(used)
	sc.AmountAuthorized = parseDecimal(authorized)
	sc.Memo = memo.String
	sc.CreatedAt = parseTime(createdAt)
	sc.UpdatedAt = parseTime(updatedAt)
	if deletedAt.Valid {
		t := parseTime(deletedAt.String)
		sc.DeletedAt = &t
	}
	return &sc, nil
}

// =============================================================================
// EVENT QUERIES (append-only)
// =============================================================================

const eventColumns = `id, credit_id, action, amount, authorization_code,
	user_total_amount, created_at`

func appendEvent(ctx context.Context, db dbtx, ev credit.Event) error {
	query := `
		INSERT INTO store_credit_events
		(id, credit_id, action, amount, authorization_code, user_total_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		ev.ID, ev.CreditID, ev.Action, ev.Amount.String(),
		ev.AuthorizationCode, ev.UserTotalAmount.String(), formatTime(ev.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func findEvent(ctx context.Context, db dbtx, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) (*credit.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM store_credit_events
		WHERE credit_id = ? AND action = ? AND authorization_code = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT 1`
	row := db.QueryRowContext(ctx, query, id, action, code)
	ev, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func eventsByCode(ctx context.Context, db dbtx, id credit.CreditID, action credit.Action, code credit.AuthorizationCode) ([]credit.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM store_credit_events
		WHERE credit_id = ? AND action = ? AND authorization_code = ?
		ORDER BY created_at ASC, rowid ASC`
	return queryEvents(ctx, db, query, id, action, code)
}

func events(ctx context.Context, db dbtx, id credit.CreditID) ([]credit.Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM store_credit_events
		WHERE credit_id = ?
		ORDER BY created_at ASC, rowid ASC`
	return queryEvents(ctx, db, query, id)
}

func queryEvents(ctx context.Context, db dbtx, query string, args ...any) ([]credit.Event, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var out []credit.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

func scanEvent(row rowScanner) (*credit.Event, error) {
	var (
		ev        credit.Event
		amount    string
		userTotal string
		createdAt string
	)
	err := row.Scan(&ev.ID, &ev.CreditID, &ev.Action, &amount,
		&ev.AuthorizationCode, &userTotal, &createdAt)
	if err != nil {
		return nil, err
	}
	ev.Amount = parseDecimal(amount)
	ev.UserTotalAmount = parseDecimal(userTotal)
	ev.CreatedAt = parseTime(createdAt)
	return &ev, nil
}

// =============================================================================
// CREDIT TYPES & CATEGORIES
// =============================================================================

// SaveCreditType upserts a credit type. Called at startup when the
// configured types are seeded.
func (s *Store) SaveCreditType(ctx context.Context, ct credit.CreditType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO credit_types (id, name, priority) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, priority = excluded.priority
	`
	_, err := s.db.ExecContext(ctx, query, ct.ID, ct.Name, ct.Priority)
	return err
}

func getCreditType(ctx context.Context, db dbtx, id credit.TypeID) (*credit.CreditType, error) {
	var ct credit.CreditType
	err := db.QueryRowContext(ctx,
		`SELECT id, name, priority FROM credit_types WHERE id = ?`, id,
	).Scan(&ct.ID, &ct.Name, &ct.Priority)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

func findCreditTypeByName(ctx context.Context, db dbtx, name string) (*credit.CreditType, error) {
	var ct credit.CreditType
	err := db.QueryRowContext(ctx,
		`SELECT id, name, priority FROM credit_types WHERE name = ?`, name,
	).Scan(&ct.ID, &ct.Name, &ct.Priority)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ct, nil
}

// ListCreditTypes returns all credit types by ascending priority.
func (s *Store) ListCreditTypes(ctx context.Context) ([]credit.CreditType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, priority FROM credit_types ORDER BY priority ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []credit.CreditType
	for rows.Next() {
		var ct credit.CreditType
		if err := rows.Scan(&ct.ID, &ct.Name, &ct.Priority); err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// SaveCategory upserts a category.
func (s *Store) SaveCategory(ctx context.Context, c credit.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO categories (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name)
	return err
}

// GetCategory returns a category by ID, or nil.
func (s *Store) GetCategory(ctx context.Context, id credit.CategoryID) (*credit.Category, error) {
	var c credit.Category
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// =============================================================================
// USERS (giftcard.Store interface)
// =============================================================================

func (s *Store) SaveUser(ctx context.Context, u giftcard.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveUser(ctx, s.db, u)
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*giftcard.User, error) {
	return findUserByEmail(ctx, s.db, email)
}

func saveUser(ctx context.Context, db dbtx, u giftcard.User) error {
	query := `
		INSERT INTO users (id, email, stub, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, stub = excluded.stub
	`
	_, err := db.ExecContext(ctx, query, u.ID, u.Email, boolInt(u.Stub), formatTime(u.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func findUserByEmail(ctx context.Context, db dbtx, email string) (*giftcard.User, error) {
	var (
		u         giftcard.User
		stub      int
		createdAt string
	)
	err := db.QueryRowContext(ctx,
		`SELECT id, email, stub, created_at FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&u.ID, &u.Email, &stub, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Stub = stub != 0
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// =============================================================================
// GIFT CARDS (giftcard.Store interface)
// =============================================================================

const giftCardColumns = `id, redemption_code, amount, currency, purchaser_name,
	recipient_name, recipient_email, gift_message, send_email_at, order_email,
	credit_id, redeemer_id, redeemed_at, deactivated_at, created_at`

func (s *Store) CreateGiftCard(ctx context.Context, gc giftcard.GiftCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createGiftCard(ctx, s.db, gc)
}

func (s *Store) UpdateGiftCard(ctx context.Context, gc giftcard.GiftCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateGiftCard(ctx, s.db, gc)
}

func (s *Store) GetGiftCardByCode(ctx context.Context, code string) (*giftcard.GiftCard, error) {
	return getGiftCardByCode(ctx, s.db, code)
}

func createGiftCard(ctx context.Context, db dbtx, gc giftcard.GiftCard) error {
	query := `
		INSERT INTO gift_cards
		(id, redemption_code, amount, currency, purchaser_name, recipient_name,
		 recipient_email, gift_message, send_email_at, order_email, credit_id,
		 redeemer_id, redeemed_at, deactivated_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		gc.ID, gc.RedemptionCode, gc.Amount.String(), gc.Currency,
		gc.PurchaserName, gc.RecipientName, gc.RecipientEmail, gc.GiftMessage,
		nullTime(gc.SendEmailAt), gc.OrderEmail, nullString(string(gc.CreditID)),
		nullString(string(gc.RedeemerID)), nullTime(gc.RedeemedAt),
		nullTime(gc.DeactivatedAt), formatTime(gc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert gift card: %w", err)
	}
	return nil
}

func updateGiftCard(ctx context.Context, db dbtx, gc giftcard.GiftCard) error {
	query := `
		UPDATE gift_cards
		SET credit_id = ?, redeemer_id = ?, redeemed_at = ?, deactivated_at = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		nullString(string(gc.CreditID)), nullString(string(gc.RedeemerID)),
		nullTime(gc.RedeemedAt), nullTime(gc.DeactivatedAt), gc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update gift card: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return giftcard.ErrCodeNotFound
	}
	return nil
}

func getGiftCardByCode(ctx context.Context, db dbtx, code string) (*giftcard.GiftCard, error) {
	query := `SELECT ` + giftCardColumns + ` FROM gift_cards WHERE redemption_code = ?`
	row := db.QueryRowContext(ctx, query, code)

	var (
		gc            giftcard.GiftCard
		amount        string
		purchaser     sql.NullString
		recipientName sql.NullString
		recipientMail sql.NullString
		message       sql.NullString
		sendEmailAt   sql.NullString
		orderEmail    sql.NullString
		creditID      sql.NullString
		redeemerID    sql.NullString
		redeemedAt    sql.NullString
		deactivatedAt sql.NullString
		createdAt     string
	)
	err := row.Scan(&gc.ID, &gc.RedemptionCode, &amount, &gc.Currency,
		&purchaser, &recipientName, &recipientMail, &message, &sendEmailAt,
		&orderEmail, &creditID, &redeemerID, &redeemedAt, &deactivatedAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	gc.Amount = parseDecimal(amount)
	gc.PurchaserName = purchaser.String
	gc.RecipientName = recipientName.String
	gc.RecipientEmail = recipientMail.String
	gc.GiftMessage = message.String
	gc.OrderEmail = orderEmail.String
	gc.CreditID = credit.CreditID(creditID.String)
	gc.RedeemerID = credit.UserID(redeemerID.String)
	gc.CreatedAt = parseTime(createdAt)
	if sendEmailAt.Valid {
		t := parseTime(sendEmailAt.String)
		gc.SendEmailAt = &t
	}
	if redeemedAt.Valid {
		t := parseTime(redeemedAt.String)
		gc.RedeemedAt = &t
	}
	if deactivatedAt.Valid {
		t := parseTime(deactivatedAt.String)
		gc.DeactivatedAt = &t
	}
	return &gc, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
