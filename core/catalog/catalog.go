package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductType string

const (
	TypeCourse  ProductType = "course"
	TypeWebinar ProductType = "webinar"
)

// Product is the slim view of a purchasable item the payment core works
// with: the price here is the snapshot copied onto new orders.
type Product struct {
	Type  ProductType
	ID    string
	Title string
	Price decimal.Decimal
}

type Course struct {
	ID          string          `json:"id" db:"course_id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

type CourseNew struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"required"`
}

type Webinar struct {
	ID          string          `json:"id" db:"webinar_id"`
	Title       string          `json:"title" db:"title"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	StartsAt    time.Time       `json:"startsAt" db:"starts_at"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

type WebinarNew struct {
	Title       string          `json:"title" validate:"required"`
	Description string          `json:"description" validate:"required"`
	Price       decimal.Decimal `json:"price" validate:"required"`
	StartsAt    time.Time       `json:"startsAt" validate:"required"`
}
