package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sherzodn/edupay/core/catalog"
	"github.com/sherzodn/edupay/database"
	"github.com/sherzodn/edupay/validate"
)

// The ledger owns every state transition of Order and Transaction rows.
// Apply and Cancel expect to run inside an enclosing database
// transaction so that the transaction row and its order row move as one
// atomic unit; callers hand in the sqlx.ExtContext they got from
// database.Transaction.

// Apply settles a transaction: the remote id is written only if the
// provider has not assigned one before (first writer wins), paid_at is
// stamped with the current time and the linked order is cascaded to
// completed/paid.
func Apply(ctx context.Context, tx sqlx.ExtContext, trx Transaction, remoteID string) (Transaction, error) {
	now := time.Now().UTC()

	if trx.RemoteID == nil || *trx.RemoteID == "" {
		trx.RemoteID = &remoteID
	}
	trx.PaidAt = &now
	trx.CancelledAt = nil
	trx.Status = TransactionCompleted
	trx.UpdatedAt = now

	if err := updateTransactionSettlement(ctx, tx, trx); err != nil {
		return Transaction{}, fmt.Errorf("applying transaction[%s]: %w", trx.ID, err)
	}

	if trx.OrderID == nil {
		return Transaction{}, fmt.Errorf("applying transaction[%s]: %w", trx.ID, ErrOrderNotFound)
	}

	if err := updateOrderSettlement(ctx, tx, *trx.OrderID, OrderCompleted, trx.PaidAt != nil, now); err != nil {
		return Transaction{}, fmt.Errorf("cascading settlement to order[%s]: %w", *trx.OrderID, err)
	}

	return trx, nil
}

// Cancel voids a transaction, recording the reason in its extra data.
// The linked order loses its paid flag but keeps its status.
func Cancel(ctx context.Context, tx sqlx.ExtContext, trx Transaction, reason string) (Transaction, error) {
	now := time.Now().UTC()

	trx.CancelledAt = &now
	trx.PaidAt = nil
	trx.Status = TransactionCancelled
	trx.UpdatedAt = now
	if trx.ExtraData == nil {
		trx.ExtraData = ExtraData{}
	}
	trx.ExtraData[cancelReasonKey] = reason

	if err := updateTransactionSettlement(ctx, tx, trx); err != nil {
		return Transaction{}, fmt.Errorf("cancelling transaction[%s]: %w", trx.ID, err)
	}

	if trx.OrderID != nil {
		ord, err := FetchOrder(ctx, tx, *trx.OrderID)
		if err != nil {
			return Transaction{}, fmt.Errorf("fetching order[%s] for cancellation: %w", *trx.OrderID, err)
		}

		if err := updateOrderSettlement(ctx, tx, ord.ID, ord.Status, false, now); err != nil {
			return Transaction{}, fmt.Errorf("clearing paid flag on order[%s]: %w", ord.ID, err)
		}
	}

	return trx, nil
}

// Checkout creates the Order plus pending Transaction pair for one
// product, snapshotting its current price onto both rows.
func Checkout(ctx context.Context, db *sqlx.DB, userID string, typ catalog.ProductType, productID string, providerKey string) (Order, Transaction, error) {
	product, err := catalog.FetchProduct(ctx, db, typ, productID)
	if err != nil {
		return Order{}, Transaction{}, fmt.Errorf("resolving product[%s/%s]: %w", typ, productID, err)
	}

	provider, err := FetchProviderByKey(ctx, db, providerKey)
	if err != nil {
		return Order{}, Transaction{}, fmt.Errorf("resolving provider[%s]: %w", providerKey, err)
	}

	now := time.Now().UTC()
	ord := Order{
		ID:        validate.GenerateID(),
		UserID:    &userID,
		Amount:    product.Price,
		Status:    OrderPending,
		IsPaid:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch typ {
	case catalog.TypeCourse:
		ord.CourseID = &product.ID
	case catalog.TypeWebinar:
		ord.WebinarID = &product.ID
	}

	trx := Transaction{
		ID:         validate.GenerateID(),
		OrderID:    &ord.ID,
		ProviderID: provider.ID,
		Status:     TransactionPending,
		Amount:     product.Price,
		ExtraData:  ExtraData{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		if err := CreateOrder(ctx, tx, ord); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}
		if err := CreateTransaction(ctx, tx, trx); err != nil {
			return fmt.Errorf("creating transaction: %w", err)
		}
		return nil
	})

	if err != nil {
		return Order{}, Transaction{}, fmt.Errorf("creating the order pair for user[%s]: %w", userID, err)
	}
	return ord, trx, nil
}
