package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

var ErrProductNotFound = errors.New("product not found")

func CreateCourse(ctx context.Context, tx sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses (course_id, title, description, price, created_at, updated_at)
	VALUES (:course_id, :title, :description, :price, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

func FetchCourse(ctx context.Context, db sqlx.QueryerContext, id string) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, ErrProductNotFound
		}
		return Course{}, fmt.Errorf("selecting course: %w", err)
	}
	return c, nil
}

func FetchAllCourses(ctx context.Context, db sqlx.QueryerContext) ([]Course, error) {
	const q = `SELECT * FROM courses ORDER BY created_at DESC`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}
	return cs, nil
}

func CreateWebinar(ctx context.Context, tx sqlx.ExtContext, wb Webinar) error {
	const q = `
	INSERT INTO webinars (webinar_id, title, description, price, starts_at, created_at, updated_at)
	VALUES (:webinar_id, :title, :description, :price, :starts_at, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, tx, q, wb); err != nil {
		return fmt.Errorf("inserting webinar: %w", err)
	}
	return nil
}

func FetchWebinar(ctx context.Context, db sqlx.QueryerContext, id string) (Webinar, error) {
	const q = `SELECT * FROM webinars WHERE webinar_id = $1`

	var wb Webinar
	if err := sqlx.GetContext(ctx, db, &wb, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Webinar{}, ErrProductNotFound
		}
		return Webinar{}, fmt.Errorf("selecting webinar: %w", err)
	}
	return wb, nil
}

func FetchAllWebinars(ctx context.Context, db sqlx.QueryerContext) ([]Webinar, error) {
	const q = `SELECT * FROM webinars ORDER BY starts_at`

	wbs := []Webinar{}
	if err := sqlx.SelectContext(ctx, db, &wbs, q); err != nil {
		return nil, fmt.Errorf("selecting webinars: %w", err)
	}
	return wbs, nil
}

// FetchProduct resolves a purchasable item with a type-discriminated
// lookup. Unknown types are the caller's validation problem and map to
// ErrProductNotFound here.
func FetchProduct(ctx context.Context, db sqlx.QueryerContext, typ ProductType, id string) (Product, error) {
	switch typ {
	case TypeCourse:
		c, err := FetchCourse(ctx, db, id)
		if err != nil {
			return Product{}, err
		}
		return Product{Type: TypeCourse, ID: c.ID, Title: c.Title, Price: c.Price}, nil

	case TypeWebinar:
		wb, err := FetchWebinar(ctx, db, id)
		if err != nil {
			return Product{}, err
		}
		return Product{Type: TypeWebinar, ID: wb.ID, Title: wb.Title, Price: wb.Price}, nil
	}

	return Product{}, ErrProductNotFound
}
