package paylov

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sherzodn/edupay/config"
	"github.com/sherzodn/edupay/core/payment"
)

// Credential keys as they appear in the provider_credentials table.
const (
	credMerchantKey     = "PAYLOV_API_KEY"
	credUsername        = "PAYLOV_USERNAME"
	credPassword        = "PAYLOV_PASSWORD"
	credSubscriptionKey = "PAYLOV_SUBSCRIPTION_KEY"
	credRedirectURL     = "PAYLOV_REDIRECT_URL"
)

type Credentials struct {
	MerchantKey     string
	Username        string
	Password        string
	SubscriptionKey string
	RedirectURL     string
}

// CredentialsFrom builds Credentials out of the active rows of the
// credential store, failing on any missing key.
func CredentialsFrom(creds map[string]string) (Credentials, error) {
	c := Credentials{
		MerchantKey:     creds[credMerchantKey],
		Username:        creds[credUsername],
		Password:        creds[credPassword],
		SubscriptionKey: creds[credSubscriptionKey],
		RedirectURL:     creds[credRedirectURL],
	}

	for key, val := range map[string]string{
		credMerchantKey:     c.MerchantKey,
		credUsername:        c.Username,
		credPassword:        c.Password,
		credSubscriptionKey: c.SubscriptionKey,
		credRedirectURL:     c.RedirectURL,
	} {
		if val == "" {
			return Credentials{}, fmt.Errorf("missing provider credential %s", key)
		}
	}
	return c, nil
}

type endpoint struct {
	path   string
	method string
}

var endpoints = map[string]endpoint{
	"CREATE_CARD":     {"/merchant/userCard/createUserCard", http.MethodPost},
	"CONFIRM_CARD":    {"/merchant/userCard/confirmUserCard", http.MethodPost},
	"GET_CARDS":       {"/merchant/userCard/getAllUserCards", http.MethodGet},
	"GET_SINGLE_CARD": {"/merchant/userCard/getSingleUserCard", http.MethodGet},
	"DELETE_CARD":     {"/merchant/userCard/deleteUserCard", http.MethodDelete},
	"CREATE_RECEIPT":  {"/merchant/receipt/create", http.MethodPost},
	"PAY_RECEIPT":     {"/merchant/receipt/payReceipt", http.MethodPost},
}

// Client talks to the Paylov merchant API. Credentials are resolved by
// the caller and injected once; the client never reaches back into the
// store.
type Client struct {
	http        *http.Client
	apiURL      string
	checkoutURL string
	creds       Credentials
}

func NewClient(cfg config.Paylov, creds Credentials) *Client {
	return &Client{
		http:        &http.Client{Timeout: cfg.CallTimeout},
		apiURL:      strings.TrimRight(cfg.APIURL, "/"),
		checkoutURL: cfg.CheckoutURL,
		creds:       creds,
	}
}

func (c *Client) Credentials() Credentials { return c.creds }

// PaymentURL builds the checkout redirect link for a transaction. The
// construction is deterministic: an ordered query string, the amount
// truncated to whole units, base64-encoded onto the checkout base URL.
func (c *Client) PaymentURL(trx payment.Transaction) string {
	returnURL := url.QueryEscape(c.creds.RedirectURL + "?transaction_id=" + trx.ID)
	query := fmt.Sprintf(
		"merchant_id=%s&amount=%d&account.order_id=%s&return_url=%s",
		c.creds.MerchantKey, trx.MinorUnits(), trx.ID, returnURL,
	)
	return c.checkoutURL + base64.StdEncoding.EncodeToString([]byte(query))
}

// request performs one call against a named endpoint. Transport and
// HTTP-level failures come back as *Error (api_error or
// invalid_response), never as a different error type, so callers can
// always branch on the code.
func (c *Client) request(ctx context.Context, name string, payload any, params map[string]string) (map[string]any, *Error) {
	ep, ok := endpoints[name]
	if !ok {
		return nil, &Error{Code: "api_error", Message: "unknown endpoint " + name, Status: http.StatusInternalServerError}
	}

	body := &bytes.Buffer{}
	if payload != nil {
		if err := json.NewEncoder(body).Encode(payload); err != nil {
			e := LookupError("api_error")
			e.Message = err.Error()
			return nil, e
		}
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, c.apiURL+ep.path, body)
	if err != nil {
		e := LookupError("api_error")
		e.Message = err.Error()
		return nil, e
	}

	req.Header.Set("api-key", c.creds.SubscriptionKey)
	req.Header.Set("Content-Type", "application/json")

	if len(params) > 0 {
		q := req.URL.Query()
		for k, v := range params {
			q.Set(k, v)
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.http.Do(req)
	if err != nil {
		e := LookupError("api_error")
		e.Message = err.Error()
		return nil, e
	}
	defer resp.Body.Close()

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		if resp.StatusCode >= 400 {
			return nil, LookupError("api_error")
		}
		e := LookupError("invalid_response")
		e.Message = err.Error()
		return nil, e
	}

	if resp.StatusCode >= 400 {
		return nil, LookupError(providerErrorCode(data))
	}

	return data, nil
}

// providerErrorCode digs the error code out of a provider error body.
func providerErrorCode(data map[string]any) string {
	errObj, ok := data["error"].(map[string]any)
	if !ok {
		return "unknown_error"
	}

	if code, ok := errObj["code"].(string); ok && code != "" {
		return code
	}

	// Some endpoints nest the real code one level deeper.
	if details, ok := errObj["details"].(map[string]any); ok {
		if inner, ok := details["error"].(map[string]any); ok {
			if code, ok := inner["code"].(string); ok && code != "" {
				return code
			}
		}
	}
	return "unknown_error"
}

// CardSetup is the outcome of a card tokenization request: the phone
// the OTP went to and the provider-issued card token. The PAN is sent
// on the wire and forgotten.
type CardSetup struct {
	OTPSentPhone   string
	ProviderCardID string
}

func (c *Client) CreateCard(ctx context.Context, userID string, cardNumber string, expMonth string, expYear string) (CardSetup, *Error) {
	payload := map[string]string{
		"userId":     userID,
		"cardNumber": cardNumber,
		"expireDate": expYear + expMonth,
	}

	data, err := c.request(ctx, "CREATE_CARD", payload, nil)
	if err != nil {
		return CardSetup{}, err
	}

	result, ok := data["result"].(map[string]any)
	if !ok {
		return CardSetup{}, LookupError("invalid_response")
	}

	setup := CardSetup{}
	setup.OTPSentPhone, _ = result["opSentPhone"].(string)
	setup.ProviderCardID, _ = result["cid"].(string)
	if setup.ProviderCardID == "" {
		return CardSetup{}, LookupError("invalid_response")
	}
	return setup, nil
}

// CardInfo is what confirmation yields back: the cardholder name, the
// masked number the last four digits come from, and the card scheme
// (the provider calls it "processing": UZCARD or HUMO).
type CardInfo struct {
	Owner  string
	Number string
	Brand  string
}

func (info CardInfo) LastFour() string {
	if len(info.Number) < 4 {
		return info.Number
	}
	return info.Number[len(info.Number)-4:]
}

// ConfirmCard forwards the OTP to the provider. A provider-side
// "card_is_already_activated" is folded into success so that confirm
// retries stay idempotent.
func (c *Client) ConfirmCard(ctx context.Context, cardToken string, otp string, cardName string) (CardInfo, *Error) {
	if cardName == "" {
		cardName = "User"
	}

	payload := map[string]string{
		"cardId":    cardToken,
		"otp":       otp,
		"card_name": cardName,
	}

	data, err := c.request(ctx, "CONFIRM_CARD", payload, nil)
	if err != nil {
		if err.Code == "card_is_already_activated" {
			return CardInfo{}, nil
		}
		return CardInfo{}, err
	}

	info := CardInfo{}
	if result, ok := data["result"].(map[string]any); ok {
		if card, ok := result["card"].(map[string]any); ok {
			info.Owner, _ = card["owner"].(string)
			info.Number, _ = card["number"].(string)
			info.Brand, _ = card["processing"].(string)
		}
	}
	return info, nil
}

func (c *Client) ListCards(ctx context.Context, userID string) (map[string]any, *Error) {
	return c.request(ctx, "GET_CARDS", nil, map[string]string{"userId": userID})
}

func (c *Client) GetCard(ctx context.Context, cardToken string) (map[string]any, *Error) {
	return c.request(ctx, "GET_SINGLE_CARD", nil, map[string]string{"cardId": cardToken})
}

func (c *Client) DeleteCard(ctx context.Context, cardToken string) (map[string]any, *Error) {
	return c.request(ctx, "DELETE_CARD", nil, map[string]string{"userCardId": cardToken})
}

// CreateReceipt registers a pending transaction with the provider for
// saved-card payment and returns the provider receipt id.
func (c *Client) CreateReceipt(ctx context.Context, trx payment.Transaction) (string, *Error) {
	payload := map[string]any{
		"amount": trx.MinorUnits(),
		"account": map[string]string{
			"order_id": trx.ID,
		},
	}

	data, err := c.request(ctx, "CREATE_RECEIPT", payload, nil)
	if err != nil {
		return "", err
	}

	result, ok := data["result"].(map[string]any)
	if !ok {
		return "", LookupError("invalid_response")
	}

	receiptID, _ := result["receiptId"].(string)
	if receiptID == "" {
		return "", LookupError("invalid_response")
	}
	return receiptID, nil
}

// PayReceipt charges a saved card for a previously created receipt.
func (c *Client) PayReceipt(ctx context.Context, receiptID string, cardToken string) (map[string]any, *Error) {
	payload := map[string]string{
		"receiptId": receiptID,
		"cardId":    cardToken,
	}
	return c.request(ctx, "PAY_RECEIPT", payload, nil)
}
