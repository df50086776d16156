package paylov

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sherzodn/edupay/api/web"
	"github.com/sherzodn/edupay/api/weberr"
	"github.com/sherzodn/edupay/core/payment"
	"github.com/sherzodn/edupay/database"
	"github.com/sherzodn/edupay/validate"
)

// The provider addresses transactions as "account.order_id" and may
// send the value as either a JSON string or number; it echoes whatever
// was encoded into the payment URL.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

type webhookAccount struct {
	OrderID flexibleID `json:"order_id"`
}

type webhookParams struct {
	Account       webhookAccount `json:"account"`
	Amount        int64          `json:"amount"`
	TransactionID string         `json:"transaction_id"`
}

type webhookEnvelope struct {
	ID     *int64        `json:"id"`
	Method string        `json:"method"`
	Params webhookParams `json:"params"`
}

type webhookResult struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
}

type webhookResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      *int64        `json:"id"`
	Result  webhookResult `json:"result"`
}

// HandleWebhook is the inbound settlement callback. Authentication
// failures answer 403 with an empty body; every business outcome is an
// HTTP 200 carrying a protocol status code. Both protocol methods run
// inside one database transaction with the transaction row locked, so
// concurrent deliveries for the same id serialize.
func HandleWebhook(db *sqlx.DB, creds Credentials) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if !authenticated(r, creds) {
			w.WriteHeader(http.StatusForbidden)
			return nil
		}

		// The provider's envelope is JSON-RPC shaped and carries members
		// beyond the ones we read (jsonrpc, timestamps), so it is decoded
		// leniently rather than through the strict API decoder.
		var env webhookEnvelope
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&env); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode webhook envelope: %w", err))
		}

		var result webhookResult
		var err error

		switch env.Method {
		case MethodCheckTransaction:
			err = database.Transaction(db, func(tx sqlx.ExtContext) error {
				result, err = checkTransaction(ctx, tx, env.Params)
				return err
			})

		case MethodPerformTransaction:
			err = database.Transaction(db, func(tx sqlx.ExtContext) error {
				result, err = performTransaction(ctx, tx, env.Params)
				return err
			})

		default:
			return weberr.BadRequest(fmt.Errorf("unknown webhook method %q", env.Method))
		}

		if err != nil {
			return fmt.Errorf("handling %s: %w", env.Method, err)
		}

		resp := webhookResponse{JSONRPC: "2.0", ID: env.ID, Result: result}
		return web.Respond(ctx, w, resp, http.StatusOK)
	}
}

// authenticated compares the basic-auth pair against the shared secret
// in constant time. No reason is ever leaked to the caller.
func authenticated(r *http.Request, creds Credentials) bool {
	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(creds.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(creds.Password)) == 1
	return userOK && passOK
}

// validateTransaction runs the shared protocol checks against a locked
// transaction row. The boolean is a stop signal, not a failure flag:
// the provider contract wants "stop and answer this code" even for
// outcomes that are not errors on our side. When several checks fire
// the amount check wins, matching the provider's published flow.
func validateTransaction(trx payment.Transaction, amount int64) (bool, int) {
	stop, code := false, CodeSuccess

	if trx.Status == payment.TransactionCompleted {
		stop, code = true, CodeOrderAlreadyPaid
	}
	if trx.MinorUnits() != amount {
		stop, code = true, CodeInvalidAmount
	}
	return stop, code
}

// checkTransaction is the read-only half of the protocol: it never
// mutates state.
func checkTransaction(ctx context.Context, tx sqlx.ExtContext, p webhookParams) (webhookResult, error) {
	id := string(p.Account.OrderID)
	if err := validate.CheckID(id); err != nil {
		return webhookResult{Status: CodeOrderNotFound, StatusText: StatusTextError}, nil
	}

	trx, err := payment.FetchTransactionForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound) {
			return webhookResult{Status: CodeOrderNotFound, StatusText: StatusTextError}, nil
		}
		return webhookResult{}, err
	}

	stop, code := validateTransaction(trx, p.Amount)

	// Quirk preserved from the provider contract: only not-found and
	// amount mismatches read as errors here; an already-paid answer
	// still carries the Ok text.
	if stop && code == CodeInvalidAmount {
		return webhookResult{Status: code, StatusText: StatusTextError}, nil
	}
	return webhookResult{Status: code, StatusText: StatusTextOk}, nil
}

// performTransaction is the mutating half: on success it settles the
// ledger, on an amount mismatch it fails the pending transaction, and
// on replays it answers already-paid without touching anything.
func performTransaction(ctx context.Context, tx sqlx.ExtContext, p webhookParams) (webhookResult, error) {
	id := string(p.Account.OrderID)
	if err := validate.CheckID(id); err != nil {
		// Absent transactions answer already-paid here, not not-found.
		// The quirk is part of the external contract.
		return webhookResult{Status: CodeOrderAlreadyPaid, StatusText: StatusTextError}, nil
	}

	trx, err := payment.FetchTransactionForUpdate(ctx, tx, id)
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound) {
			return webhookResult{Status: CodeOrderAlreadyPaid, StatusText: StatusTextError}, nil
		}
		return webhookResult{}, err
	}

	// Only a pending transaction may settle; failed and cancelled ones
	// are terminal for the webhook.
	if trx.Status == payment.TransactionFailed || trx.Status == payment.TransactionCancelled {
		return webhookResult{Status: CodeServerError, StatusText: StatusTextError}, nil
	}

	if stop, code := validateTransaction(trx, p.Amount); stop {
		// A replayed delivery of a settled transaction must not change
		// state; only a still-pending transaction is failed.
		if trx.Status == payment.TransactionPending {
			if err := payment.UpdateTransactionStatus(ctx, tx, trx.ID, payment.TransactionFailed, time.Now().UTC()); err != nil {
				return webhookResult{}, fmt.Errorf("failing transaction[%s]: %w", trx.ID, err)
			}
		}
		return webhookResult{Status: code, StatusText: StatusTextError}, nil
	}

	if _, err := payment.Apply(ctx, tx, trx, p.TransactionID); err != nil {
		return webhookResult{}, err
	}
	return webhookResult{Status: CodeSuccess, StatusText: StatusTextOk}, nil
}
