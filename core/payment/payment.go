package payment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionFailed    TransactionStatus = "failed"
)

// cancelReasonKey is the extra-data key the cancel reason is recorded
// under.
const cancelReasonKey = "cancel_reason"

// Order is a purchase intent for exactly one product at the price it
// had when the order was created. Product references are nullable so
// the order survives catalog deletions.
type Order struct {
	ID        string          `json:"id" db:"order_id"`
	UserID    *string         `json:"userId" db:"user_id"`
	CourseID  *string         `json:"courseId" db:"course_id"`
	WebinarID *string         `json:"webinarId" db:"webinar_id"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	Status    OrderStatus     `json:"status" db:"status"`
	IsPaid    bool            `json:"isPaid" db:"is_paid"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time       `json:"updatedAt" db:"updated_at"`
}

// Transaction is one attempt to collect payment for an Order through
// one provider. The order reference is nullable: the row survives for
// audit if the order goes away.
type Transaction struct {
	ID          string            `json:"id" db:"transaction_id"`
	OrderID     *string           `json:"orderId" db:"order_id"`
	ProviderID  string            `json:"providerId" db:"provider_id"`
	Status      TransactionStatus `json:"status" db:"status"`
	PaidAt      *time.Time        `json:"paidAt" db:"paid_at"`
	CancelledAt *time.Time        `json:"cancelledAt" db:"cancelled_at"`
	RemoteID    *string           `json:"remoteId" db:"remote_id"`
	Amount      decimal.Decimal   `json:"amount" db:"amount"`
	ExtraData   ExtraData         `json:"extraData" db:"extra_data"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`
}

// MinorUnits reports the transaction amount truncated to whole currency
// units, the representation the provider compares against. Truncation
// drops the fractional part toward zero.
func (t Transaction) MinorUnits() int64 {
	return t.Amount.IntPart()
}

type Provider struct {
	ID        string    `json:"id" db:"provider_id"`
	Name      string    `json:"name" db:"name"`
	Key       string    `json:"key" db:"key"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type ProviderCredential struct {
	ID         string    `json:"id" db:"credential_id"`
	ProviderID string    `json:"-" db:"provider_id"`
	Key        string    `json:"key" db:"key"`
	Value      string    `json:"-" db:"value"`
	IsActive   bool      `json:"isActive" db:"is_active"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// UserCard is a tokenized payment instrument. Only the provider-issued
// token is ever stored, never the PAN.
type UserCard struct {
	ID             string    `json:"id" db:"card_id"`
	UserID         string    `json:"-" db:"user_id"`
	ProviderID     string    `json:"-" db:"provider_id"`
	CardToken      string    `json:"cardToken" db:"card_token"`
	LastFour       string    `json:"lastFour" db:"last_four"`
	CardholderName string    `json:"cardholderName" db:"cardholder_name"`
	Brand          string    `json:"brand" db:"brand"`
	ExpireMonth    string    `json:"expireMonth" db:"expire_month"`
	ExpireYear     string    `json:"expireYear" db:"expire_year"`
	IsConfirmed    bool      `json:"isConfirmed" db:"is_confirmed"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// ExtraData is the free-form provider metadata bag stored as jsonb.
type ExtraData map[string]string

func (e ExtraData) Value() (driver.Value, error) {
	if e == nil {
		e = ExtraData{}
	}
	return json.Marshal(e)
}

func (e *ExtraData) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, e)
	case string:
		return json.Unmarshal([]byte(v), e)
	case nil:
		*e = ExtraData{}
		return nil
	}
	return fmt.Errorf("unsupported extra_data source type %T", src)
}

type OrderNew struct {
	ProductID   string `json:"productId" validate:"required,uuid"`
	ProductType string `json:"productType" validate:"required,oneof=course webinar"`
}

type CardNew struct {
	CardNumber  string `json:"cardNumber" validate:"required,len=16,numeric"`
	ExpireMonth string `json:"expMonth" validate:"required,len=2,numeric"`
	ExpireYear  string `json:"expYear" validate:"required,len=2,numeric"`
}

type CardConfirm struct {
	CardID   string `json:"cardId" validate:"required,uuid"`
	OTP      string `json:"otp" validate:"required,max=6,numeric"`
	CardName string `json:"cardName" validate:"omitempty,max=255"`
}

type ReceiptNew struct {
	ProductID   string `json:"productId" validate:"required,uuid"`
	ProductType string `json:"productType" validate:"required,oneof=course webinar"`
	CardToken   string `json:"cardToken" validate:"required"`
}

type ReceiptPay struct {
	TransactionID string `json:"transactionId" validate:"required"`
	CardToken     string `json:"cardToken" validate:"required"`
}
