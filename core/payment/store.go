package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrCardNotFound        = errors.New("user card not found")
	ErrProviderNotFound    = errors.New("provider not found")
)

func CreateOrder(ctx context.Context, tx sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders (order_id, user_id, course_id, webinar_id, amount, status, is_paid, created_at, updated_at)
	VALUES (:order_id, :user_id, :course_id, :webinar_id, :amount, :status, :is_paid, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func FetchOrder(ctx context.Context, db sqlx.QueryerContext, id string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("selecting order: %w", err)
	}
	return ord, nil
}

func DeleteOrder(ctx context.Context, tx sqlx.ExtContext, id string) error {
	const q = `DELETE FROM orders WHERE order_id = $1`

	if _, err := tx.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}
	return nil
}

// updateOrderSettlement rewrites the settlement outcome of an order.
// Only the ledger may call it.
func updateOrderSettlement(ctx context.Context, tx sqlx.ExtContext, id string, status OrderStatus, isPaid bool, now time.Time) error {
	const q = `
	UPDATE orders SET status = $2, is_paid = $3, updated_at = $4
	WHERE order_id = $1`

	res, err := tx.ExecContext(ctx, q, id, status, isPaid, now)
	if err != nil {
		return fmt.Errorf("updating order settlement: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func CreateTransaction(ctx context.Context, tx sqlx.ExtContext, trx Transaction) error {
	const q = `
	INSERT INTO transactions (transaction_id, order_id, provider_id, status, paid_at, cancelled_at, remote_id, amount, extra_data, created_at, updated_at)
	VALUES (:transaction_id, :order_id, :provider_id, :status, :paid_at, :cancelled_at, :remote_id, :amount, :extra_data, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, trx); err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	return nil
}

func FetchTransaction(ctx context.Context, db sqlx.QueryerContext, id string) (Transaction, error) {
	const q = `SELECT * FROM transactions WHERE transaction_id = $1`

	var trx Transaction
	if err := sqlx.GetContext(ctx, db, &trx, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, fmt.Errorf("selecting transaction: %w", err)
	}
	return trx, nil
}

// FetchTransactionForUpdate locks the row for the rest of the enclosing
// database transaction so that concurrent webhook deliveries for the
// same transaction id serialize.
func FetchTransactionForUpdate(ctx context.Context, tx sqlx.QueryerContext, id string) (Transaction, error) {
	const q = `SELECT * FROM transactions WHERE transaction_id = $1 FOR UPDATE`

	var trx Transaction
	if err := sqlx.GetContext(ctx, tx, &trx, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, fmt.Errorf("selecting transaction for update: %w", err)
	}
	return trx, nil
}

func FetchTransactionByRemoteID(ctx context.Context, db sqlx.QueryerContext, remoteID string) (Transaction, error) {
	const q = `SELECT * FROM transactions WHERE remote_id = $1`

	var trx Transaction
	if err := sqlx.GetContext(ctx, db, &trx, q, remoteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, fmt.Errorf("selecting transaction by remote id: %w", err)
	}
	return trx, nil
}

func FetchUserTransactions(ctx context.Context, db sqlx.QueryerContext, userID string) ([]Transaction, error) {
	const q = `
	SELECT t.* FROM transactions t
	JOIN orders o ON o.order_id = t.order_id
	WHERE o.user_id = $1
	ORDER BY t.created_at DESC`

	trxs := []Transaction{}
	if err := sqlx.SelectContext(ctx, db, &trxs, q, userID); err != nil {
		return nil, fmt.Errorf("selecting user transactions: %w", err)
	}
	return trxs, nil
}

// updateTransactionSettlement rewrites the mutable settlement fields of
// a transaction. Only the ledger may call it.
func updateTransactionSettlement(ctx context.Context, tx sqlx.ExtContext, trx Transaction) error {
	const q = `
	UPDATE transactions
	SET status = :status, paid_at = :paid_at, cancelled_at = :cancelled_at,
	    remote_id = :remote_id, extra_data = :extra_data, updated_at = :updated_at
	WHERE transaction_id = :transaction_id`

	res, err := sqlx.NamedExecContext(ctx, tx, q, trx)
	if err != nil {
		return fmt.Errorf("updating transaction settlement: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// SetTransactionRemoteID records the provider-assigned id. First writer
// wins: a transaction that already carries a remote id is left alone.
func SetTransactionRemoteID(ctx context.Context, tx sqlx.ExtContext, id string, remoteID string, now time.Time) error {
	const q = `
	UPDATE transactions SET remote_id = $2, updated_at = $3
	WHERE transaction_id = $1 AND remote_id IS NULL`

	if _, err := tx.ExecContext(ctx, q, id, remoteID, now); err != nil {
		return fmt.Errorf("setting transaction remote id: %w", err)
	}
	return nil
}

func UpdateTransactionStatus(ctx context.Context, tx sqlx.ExtContext, id string, status TransactionStatus, now time.Time) error {
	const q = `UPDATE transactions SET status = $2, updated_at = $3 WHERE transaction_id = $1`

	res, err := tx.ExecContext(ctx, q, id, status, now)
	if err != nil {
		return fmt.Errorf("updating transaction status: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func CreateProvider(ctx context.Context, tx sqlx.ExtContext, p Provider) error {
	const q = `
	INSERT INTO providers (provider_id, name, key, created_at)
	VALUES (:provider_id, :name, :key, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, p); err != nil {
		return fmt.Errorf("inserting provider: %w", err)
	}
	return nil
}

func FetchProviderByKey(ctx context.Context, db sqlx.QueryerContext, key string) (Provider, error) {
	const q = `SELECT * FROM providers WHERE key = $1`

	var p Provider
	if err := sqlx.GetContext(ctx, db, &p, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Provider{}, ErrProviderNotFound
		}
		return Provider{}, fmt.Errorf("selecting provider: %w", err)
	}
	return p, nil
}

func CreateCredential(ctx context.Context, tx sqlx.ExtContext, c ProviderCredential) error {
	const q = `
	INSERT INTO provider_credentials (credential_id, provider_id, key, value, is_active, created_at, updated_at)
	VALUES (:credential_id, :provider_id, :key, :value, :is_active, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, c); err != nil {
		return fmt.Errorf("inserting credential: %w", err)
	}
	return nil
}

// FetchActiveCredentials resolves the enabled secrets of a provider as
// a key/value map. When the same key has several active rows the most
// recently created one wins.
func FetchActiveCredentials(ctx context.Context, db sqlx.QueryerContext, providerKey string) (map[string]string, error) {
	const q = `
	SELECT c.key, c.value FROM provider_credentials c
	JOIN providers p ON p.provider_id = c.provider_id
	WHERE p.key = $1 AND c.is_active
	ORDER BY c.created_at`

	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := sqlx.SelectContext(ctx, db, &rows, q, providerKey); err != nil {
		return nil, fmt.Errorf("selecting active credentials: %w", err)
	}

	creds := make(map[string]string, len(rows))
	for _, row := range rows {
		creds[row.Key] = row.Value
	}
	return creds, nil
}

func CreateUserCard(ctx context.Context, tx sqlx.ExtContext, card UserCard) error {
	const q = `
	INSERT INTO user_cards (card_id, user_id, provider_id, card_token, last_four, cardholder_name, brand, expire_month, expire_year, is_confirmed, created_at, updated_at)
	VALUES (:card_id, :user_id, :provider_id, :card_token, :last_four, :cardholder_name, :brand, :expire_month, :expire_year, :is_confirmed, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, card); err != nil {
		return fmt.Errorf("inserting user card: %w", err)
	}
	return nil
}

func FetchUserCard(ctx context.Context, db sqlx.QueryerContext, userID string, cardID string) (UserCard, error) {
	const q = `SELECT * FROM user_cards WHERE user_id = $1 AND card_id = $2`

	var card UserCard
	if err := sqlx.GetContext(ctx, db, &card, q, userID, cardID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserCard{}, ErrCardNotFound
		}
		return UserCard{}, fmt.Errorf("selecting user card: %w", err)
	}
	return card, nil
}

func FetchUserCardByToken(ctx context.Context, db sqlx.QueryerContext, token string) (UserCard, error) {
	const q = `SELECT * FROM user_cards WHERE card_token = $1`

	var card UserCard
	if err := sqlx.GetContext(ctx, db, &card, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserCard{}, ErrCardNotFound
		}
		return UserCard{}, fmt.Errorf("selecting user card by token: %w", err)
	}
	return card, nil
}

func UserCardExists(ctx context.Context, db sqlx.QueryerContext, userID string, token string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM user_cards WHERE user_id = $1 AND card_token = $2)`

	var exists bool
	if err := sqlx.GetContext(ctx, db, &exists, q, userID, token); err != nil {
		return false, fmt.Errorf("checking user card existence: %w", err)
	}
	return exists, nil
}

func ConfirmUserCard(ctx context.Context, tx sqlx.ExtContext, cardID string, cardholder string, lastFour string, brand string, now time.Time) error {
	const q = `
	UPDATE user_cards
	SET is_confirmed = TRUE,
	    cardholder_name = COALESCE(NULLIF($2, ''), cardholder_name),
	    last_four = COALESCE(NULLIF($3, ''), last_four),
	    brand = COALESCE(NULLIF($4, ''), brand),
	    updated_at = $5
	WHERE card_id = $1`

	res, err := tx.ExecContext(ctx, q, cardID, cardholder, lastFour, brand, now)
	if err != nil {
		return fmt.Errorf("confirming user card: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrCardNotFound
	}
	return nil
}

func DeleteUserCard(ctx context.Context, tx sqlx.ExtContext, cardID string) error {
	const q = `DELETE FROM user_cards WHERE card_id = $1`

	if _, err := tx.ExecContext(ctx, q, cardID); err != nil {
		return fmt.Errorf("deleting user card: %w", err)
	}
	return nil
}
