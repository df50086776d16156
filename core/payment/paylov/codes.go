// Package paylov speaks the Paylov merchant protocol: outbound payment
// link construction, the subscription API for card tokenization and
// receipts, and the inbound settlement webhook.
package paylov

import (
	"net/http"
	"strings"
)

// Webhook method names are fixed by the provider contract.
const (
	MethodCheckTransaction   = "CheckTransaction"
	MethodPerformTransaction = "PerformTransaction"
)

// Webhook result codes, from the published Paylov merchant spec.
const (
	CodeSuccess          = 0
	CodeServerError      = 3
	CodeInvalidAmount    = 5
	CodeOrderAlreadyPaid = 201
	CodeOrderNotFound    = 303
)

const (
	StatusTextOk    = "Ok"
	StatusTextError = "Error"
)

// Error is the flat provider-error shape surfaced to callers. Transport
// failures use the api_error / invalid_response codes rather than a
// separate error channel.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"detail"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// errorTable maps every provider-reported error code onto the response
// the API surfaces. Unknown codes fall back to unknown_error.
var errorTable = map[string]Error{
	"CARD_EXISTS":               {Code: "card_exists", Message: "This card is already registered", Status: http.StatusConflict},
	"CARD_NOT_FOUND":            {Code: "card_not_found", Message: "User card not found", Status: http.StatusNotFound},
	"CARD_IS_ALREADY_ACTIVATED": {Code: "card_is_already_activated", Message: "Card is already activated", Status: http.StatusConflict},
	"CARD_EXPIRED":              {Code: "card_expired", Message: "Card is expired", Status: http.StatusBadRequest},
	"INVALID_OTP":               {Code: "invalid_otp", Message: "Incorrect confirmation code", Status: http.StatusBadRequest},
	"OTP_EXPIRED":               {Code: "otp_expired", Message: "Confirmation code is expired", Status: http.StatusBadRequest},
	"INSUFFICIENT_FUNDS":        {Code: "insufficient_funds", Message: "Insufficient funds on the card", Status: http.StatusPaymentRequired},
	"RECEIPT_NOT_FOUND":         {Code: "receipt_not_found", Message: "Receipt not found", Status: http.StatusNotFound},
	"API_ERROR":                 {Code: "api_error", Message: "Payment provider is unavailable", Status: http.StatusBadGateway},
	"INVALID_RESPONSE":          {Code: "invalid_response", Message: "Payment provider returned a malformed response", Status: http.StatusBadGateway},
}

// LookupError translates a provider error code into its API response
// form.
func LookupError(code string) *Error {
	if e, ok := errorTable[strings.ToUpper(code)]; ok {
		return &e
	}
	return &Error{Code: "unknown_error", Message: "Unknown error", Status: http.StatusBadGateway}
}
