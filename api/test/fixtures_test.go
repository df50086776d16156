package test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sherzodn/edupay/core/catalog"
	"github.com/sherzodn/edupay/random"
	"github.com/shopspring/decimal"
)

// CreateCourse logs the admin in, creates a course at the given price
// and restores the logged-out state.
func CreateCourse(t *testing.T, env *TestEnv, price string) catalog.Course {
	t.Helper()

	if err := Login(env, env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if err := Logout(env); err != nil {
			t.Fatal(err)
		}
	}()

	payload := map[string]any{
		"title":       "Course " + random.String(6),
		"description": "Integration fixture",
		"price":       json.Number(price),
	}

	w, err := postJSON(env, "/courses", payload)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("creating course: expected status %d, got %s", http.StatusCreated, w.Status)
	}

	var course catalog.Course
	if err := json.NewDecoder(w.Body).Decode(&course); err != nil {
		t.Fatal(err)
	}
	return course
}

type orderCreated struct {
	ID         string          `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	PaymentURL string          `json:"paymentUrl"`
}

// CreateOrder places an order for a course as the regular user, who
// must already be logged in.
func CreateOrder(t *testing.T, env *TestEnv, courseID string) orderCreated {
	t.Helper()

	payload := map[string]string{
		"productId":   courseID,
		"productType": "course",
	}

	w, err := postJSON(env, "/orders", payload)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusCreated {
		t.Fatalf("creating order: expected status %d, got %s", http.StatusCreated, w.Status)
	}

	var out orderCreated
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

type webhookReply struct {
	JSONRPC string `json:"jsonrpc"`
	ID      *int64 `json:"id"`
	Result  struct {
		Status     int    `json:"status"`
		StatusText string `json:"statusText"`
	} `json:"result"`
}

// SendWebhook posts one provider callback. orderID may be a string or a
// number, matching what the provider actually sends.
func SendWebhook(t *testing.T, env *TestEnv, user string, pass string, method string, orderID any, amount int64, remoteID string) (*http.Response, webhookReply) {
	t.Helper()

	var id int64 = 1
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"method":  method,
		"params": map[string]any{
			"account":        map[string]any{"order_id": orderID},
			"amount":         amount,
			"transaction_id": remoteID,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, env.URL+"/payment/paylov/callback", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(user, pass)

	w, err := env.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	var reply webhookReply
	if w.StatusCode == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(&reply); err != nil {
			t.Fatal(err)
		}
	}
	return w, reply
}

func expectResult(t *testing.T, reply webhookReply, status int, statusText string) {
	t.Helper()
	if reply.Result.Status != status || reply.Result.StatusText != statusText {
		t.Fatalf("expected result {%d %q}, got {%d %q}",
			status, statusText, reply.Result.Status, reply.Result.StatusText)
	}
}
