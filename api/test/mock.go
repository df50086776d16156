package test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
)

// mockPaylov is a stand-in for the provider's merchant API. It keeps
// just enough state to exercise the tokenization and receipt flows:
// cards are keyed by token, receipts by id.
type mockPaylov struct {
	mu       sync.Mutex
	cards    map[string]*mockCard
	receipts map[string]int64
	seq      int
}

type mockCard struct {
	number    string
	confirmed bool
}

func newMockPaylov() *mockPaylov {
	return &mockPaylov{
		cards:    make(map[string]*mockCard),
		receipts: make(map[string]int64),
	}
}

func (m *mockPaylov) handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/merchant/userCard/createUserCard", m.createCard).Methods(http.MethodPost)
	r.HandleFunc("/merchant/userCard/confirmUserCard", m.confirmCard).Methods(http.MethodPost)
	r.HandleFunc("/merchant/userCard/getAllUserCards", m.listCards).Methods(http.MethodGet)
	r.HandleFunc("/merchant/userCard/getSingleUserCard", m.getCard).Methods(http.MethodGet)
	r.HandleFunc("/merchant/userCard/deleteUserCard", m.deleteCard).Methods(http.MethodDelete)
	r.HandleFunc("/merchant/receipt/create", m.createReceipt).Methods(http.MethodPost)
	r.HandleFunc("/merchant/receipt/payReceipt", m.payReceipt).Methods(http.MethodPost)
	return r
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, code string) {
	respond(w, status, map[string]any{
		"error": map[string]any{"code": code},
	})
}

// createCard tokenizes deterministically: the same card number always
// yields the same token, which is what lets the duplicate-card path
// fire on the merchant side.
func (m *mockPaylov) createCard(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID     string `json:"userId"`
		CardNumber string `json:"cardNumber"`
		ExpireDate string `json:"expireDate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in.CardNumber) != 16 {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	token := "tok_" + in.CardNumber[12:]

	m.mu.Lock()
	if _, ok := m.cards[token]; !ok {
		m.cards[token] = &mockCard{number: in.CardNumber}
	}
	m.mu.Unlock()

	respond(w, http.StatusOK, map[string]any{
		"result": map[string]any{
			"opSentPhone": "+99890*****11",
			"cid":         token,
		},
	})
}

func (m *mockPaylov) confirmCard(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CardID string `json:"cardId"`
		OTP    string `json:"otp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	card, ok := m.cards[in.CardID]
	if !ok {
		respondError(w, http.StatusNotFound, "card_not_found")
		return
	}
	if card.confirmed {
		respondError(w, http.StatusBadRequest, "card_is_already_activated")
		return
	}
	if in.OTP != "123456" {
		respondError(w, http.StatusBadRequest, "invalid_otp")
		return
	}
	card.confirmed = true

	respond(w, http.StatusOK, map[string]any{
		"result": map[string]any{
			"card": map[string]any{
				"owner":      "JOHN DOE",
				"number":     card.number[:6] + "******" + card.number[12:],
				"processing": "HUMO",
			},
		},
	})
}

func (m *mockPaylov) listCards(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cards := []map[string]any{}
	for token, card := range m.cards {
		if card.confirmed {
			cards = append(cards, map[string]any{"cid": token})
		}
	}
	respond(w, http.StatusOK, map[string]any{
		"result": map[string]any{"cards": cards},
	})
}

func (m *mockPaylov) getCard(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := r.URL.Query().Get("cardId")
	card, ok := m.cards[token]
	if !ok {
		respondError(w, http.StatusNotFound, "card_not_found")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"result": map[string]any{
			"card": map[string]any{"cid": token, "confirmed": card.confirmed},
		},
	})
}

func (m *mockPaylov) deleteCard(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := r.URL.Query().Get("userCardId")
	if _, ok := m.cards[token]; !ok {
		respondError(w, http.StatusNotFound, "card_not_found")
		return
	}
	delete(m.cards, token)
	respond(w, http.StatusOK, map[string]any{
		"result": map[string]any{"deleted": true},
	})
}

func (m *mockPaylov) createReceipt(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Amount int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	m.mu.Lock()
	m.seq++
	id := fmt.Sprintf("rcpt_%d", m.seq)
	m.receipts[id] = in.Amount
	m.mu.Unlock()

	respond(w, http.StatusOK, map[string]any{
		"result": map[string]any{"receiptId": id},
	})
}

func (m *mockPaylov) payReceipt(w http.ResponseWriter, r *http.Request) {
	var in struct {
		ReceiptID string `json:"receiptId"`
		CardID    string `json:"cardId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.receipts[in.ReceiptID]; !ok {
		respondError(w, http.StatusNotFound, "receipt_not_found")
		return
	}
	card, ok := m.cards[in.CardID]
	if !ok || !card.confirmed {
		respondError(w, http.StatusBadRequest, "insufficient_funds")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"result": map[string]any{"status": "paid"},
	})
}
