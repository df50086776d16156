package paylov

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sherzodn/edupay/api/web"
	"github.com/sherzodn/edupay/api/weberr"
	"github.com/sherzodn/edupay/core/catalog"
	"github.com/sherzodn/edupay/core/claims"
	"github.com/sherzodn/edupay/core/payment"
	"github.com/sherzodn/edupay/database"
	"github.com/sherzodn/edupay/validate"
	"github.com/shopspring/decimal"
)

// respondErr turns a provider error into its HTTP response form, a flat
// {code, detail} body.
func respondErr(e *Error) error {
	return weberr.Wrap(e, weberr.WithResponse(e, e.Status))
}

// OrderCreated is the external representation of a fresh checkout: the
// payment URL is computed from the pending transaction, never stored.
type OrderCreated struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	PaymentURL string          `json:"paymentUrl"`
}

func HandleCreateOrder(db *sqlx.DB, client *Client, providerKey string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var on payment.OrderNew
		if err := web.Decode(w, r, &on); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(on); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		ord, trx, err := payment.Checkout(ctx, db, clm.UserID, catalog.ProductType(on.ProductType), on.ProductID, providerKey)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("creating order for user[%s]: %w", clm.UserID, err)
		}

		out := OrderCreated{
			ID:         ord.ID,
			Amount:     ord.Amount,
			PaymentURL: client.PaymentURL(trx),
		}
		return web.Respond(ctx, w, out, http.StatusCreated)
	}
}

func HandleCreateCard(db *sqlx.DB, client *Client, providerKey string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cn payment.CardNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		setup, perr := client.CreateCard(ctx, clm.UserID, cn.CardNumber, cn.ExpireMonth, cn.ExpireYear)
		if perr != nil {
			return respondErr(perr)
		}

		exists, err := payment.UserCardExists(ctx, db, clm.UserID, setup.ProviderCardID)
		if err != nil {
			return fmt.Errorf("checking for duplicate card: %w", err)
		}
		if exists {
			return respondErr(LookupError("card_exists"))
		}

		provider, err := payment.FetchProviderByKey(ctx, db, providerKey)
		if err != nil {
			return fmt.Errorf("resolving provider[%s]: %w", providerKey, err)
		}

		now := time.Now().UTC()
		card := payment.UserCard{
			ID:          validate.GenerateID(),
			UserID:      clm.UserID,
			ProviderID:  provider.ID,
			CardToken:   setup.ProviderCardID,
			ExpireMonth: cn.ExpireMonth,
			ExpireYear:  cn.ExpireYear,
			IsConfirmed: false,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := payment.CreateUserCard(ctx, db, card); err != nil {
			return fmt.Errorf("creating user card: %w", err)
		}

		out := struct {
			OTPSentPhone string `json:"otpSentPhone"`
			CardID       string `json:"cardId"`
		}{setup.OTPSentPhone, card.ID}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

func HandleConfirmCard(db *sqlx.DB, client *Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var cc payment.CardConfirm
		if err := web.Decode(w, r, &cc); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cc); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		card, err := payment.FetchUserCard(ctx, db, clm.UserID, cc.CardID)
		if err != nil {
			if errors.Is(err, payment.ErrCardNotFound) {
				return respondErr(LookupError("card_not_found"))
			}
			return fmt.Errorf("fetching user card[%s]: %w", cc.CardID, err)
		}

		if card.IsConfirmed {
			return respondErr(LookupError("card_is_already_activated"))
		}

		info, perr := client.ConfirmCard(ctx, card.CardToken, cc.OTP, cc.CardName)
		if perr != nil {
			return respondErr(perr)
		}

		if err := payment.ConfirmUserCard(ctx, db, card.ID, info.Owner, info.LastFour(), info.Brand, time.Now().UTC()); err != nil {
			return fmt.Errorf("confirming user card[%s]: %w", card.ID, err)
		}

		out := struct {
			CardToken   string `json:"cardToken"`
			IsConfirmed bool   `json:"isConfirmed"`
		}{card.CardToken, true}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

func HandleListCards(client *Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		data, perr := client.ListCards(ctx, clm.UserID)
		if perr != nil {
			return respondErr(perr)
		}
		return web.Respond(ctx, w, data, http.StatusOK)
	}
}

func HandleGetCard(db *sqlx.DB, client *Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cardID := web.Param(r, "id")
		if err := validate.CheckID(cardID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		card, err := payment.FetchUserCard(ctx, db, clm.UserID, cardID)
		if err != nil {
			if errors.Is(err, payment.ErrCardNotFound) {
				return respondErr(LookupError("card_not_found"))
			}
			return fmt.Errorf("fetching user card[%s]: %w", cardID, err)
		}

		data, perr := client.GetCard(ctx, card.CardToken)
		if perr != nil {
			return respondErr(perr)
		}
		return web.Respond(ctx, w, data, http.StatusOK)
	}
}

func HandleDeleteCard(db *sqlx.DB, client *Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		cardID := web.Param(r, "id")
		if err := validate.CheckID(cardID); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		card, err := payment.FetchUserCard(ctx, db, clm.UserID, cardID)
		if err != nil {
			if errors.Is(err, payment.ErrCardNotFound) {
				return respondErr(LookupError("card_not_found"))
			}
			return fmt.Errorf("fetching user card[%s]: %w", cardID, err)
		}

		if _, perr := client.DeleteCard(ctx, card.CardToken); perr != nil {
			return respondErr(perr)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			return payment.DeleteUserCard(ctx, tx, card.ID)
		})
		if err != nil {
			return fmt.Errorf("deleting user card[%s]: %w", card.ID, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// HandleCreateReceipt opens the saved-card settlement path: an order
// pair is created as usual, then registered with the provider as a
// receipt whose id becomes the transaction's remote id.
func HandleCreateReceipt(db *sqlx.DB, client *Client, providerKey string) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var rn payment.ReceiptNew
		if err := web.Decode(w, r, &rn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(rn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		card, err := payment.FetchUserCardByToken(ctx, db, rn.CardToken)
		if err != nil || card.UserID != clm.UserID {
			return respondErr(LookupError("card_not_found"))
		}
		if !card.IsConfirmed {
			return respondErr(LookupError("card_not_found"))
		}

		_, trx, err := payment.Checkout(ctx, db, clm.UserID, catalog.ProductType(rn.ProductType), rn.ProductID, providerKey)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("creating order for receipt: %w", err)
		}

		receiptID, perr := client.CreateReceipt(ctx, trx)
		if perr != nil {
			return respondErr(perr)
		}

		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			return payment.SetTransactionRemoteID(ctx, tx, trx.ID, receiptID, time.Now().UTC())
		})
		if err != nil {
			return fmt.Errorf("recording receipt id on transaction[%s]: %w", trx.ID, err)
		}

		out := struct {
			ReceiptID     string          `json:"receiptId"`
			TransactionID string          `json:"transactionId"`
			Amount        decimal.Decimal `json:"amount"`
		}{receiptID, trx.ID, trx.Amount}
		return web.Respond(ctx, w, out, http.StatusOK)
	}
}

// HandlePayReceipt charges a saved card for a previously created
// receipt. The settlement itself still arrives through the webhook.
func HandlePayReceipt(db *sqlx.DB, client *Client) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var rp payment.ReceiptPay
		if err := web.Decode(w, r, &rp); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(rp); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if _, err := payment.FetchTransactionByRemoteID(ctx, db, rp.TransactionID); err != nil {
			if errors.Is(err, payment.ErrTransactionNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching transaction by receipt id: %w", err)
		}

		card, err := payment.FetchUserCardByToken(ctx, db, rp.CardToken)
		if err != nil || card.UserID != clm.UserID {
			return respondErr(LookupError("card_not_found"))
		}

		data, perr := client.PayReceipt(ctx, rp.TransactionID, card.CardToken)
		if perr != nil {
			return respondErr(perr)
		}
		return web.Respond(ctx, w, data, http.StatusOK)
	}
}
