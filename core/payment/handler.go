package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/sherzodn/edupay/api/web"
	"github.com/sherzodn/edupay/api/weberr"
	"github.com/sherzodn/edupay/core/claims"
	"github.com/sherzodn/edupay/database"
	"github.com/sherzodn/edupay/validate"
)

// HandleDeleteOrder hard-deletes an unpaid order. Only the owner may
// delete, and a settled order is immutable.
func HandleDeleteOrder(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if _, err := claims.Get(ctx); err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		orderID := web.Param(r, "id")
		if err := validate.CheckID(orderID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		ord, err := FetchOrder(ctx, db, orderID)
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching order[%s]: %w", orderID, err)
		}

		if ord.UserID == nil || !claims.IsUser(ctx, *ord.UserID) {
			return weberr.Forbidden(errors.New("order belongs to another user"))
		}

		if ord.IsPaid {
			err := errors.New("order is already paid and cannot be deleted")
			return weberr.NewError(err, err.Error(), http.StatusConflict)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			return DeleteOrder(ctx, tx, ord.ID)
		})
		if err != nil {
			return fmt.Errorf("deleting order[%s]: %w", ord.ID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleCancelTransaction voids a transaction on behalf of support
// staff, recording why. The webhook never reaches this path.
func HandleCancelTransaction(db *sqlx.DB) web.Handler {
	type payload struct {
		Reason string `json:"reason" validate:"required,max=255"`
	}

	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		trxID := web.Param(r, "id")
		if err := validate.CheckID(trxID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var p payload
		if err := web.Decode(w, r, &p); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(p); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var cancelled Transaction
		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			trx, err := FetchTransactionForUpdate(ctx, tx, trxID)
			if err != nil {
				return err
			}
			cancelled, err = Cancel(ctx, tx, trx, p.Reason)
			return err
		})
		if err != nil {
			if errors.Is(err, ErrTransactionNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("cancelling transaction[%s]: %w", trxID, err)
		}

		return web.Respond(ctx, w, cancelled, http.StatusOK)
	}
}

// HandleListTransactions returns the settlement history of the caller's
// orders.
func HandleListTransactions(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		trxs, err := FetchUserTransactions(ctx, db, clm.UserID)
		if err != nil {
			return fmt.Errorf("fetching transactions for user[%s]: %w", clm.UserID, err)
		}

		return web.Respond(ctx, w, trxs, http.StatusOK)
	}
}
