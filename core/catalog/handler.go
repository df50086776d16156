package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sherzodn/edupay/api/web"
	"github.com/sherzodn/edupay/api/weberr"
	"github.com/sherzodn/edupay/validate"
)

func HandleListCourses(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := FetchAllCourses(ctx, db)
		if err != nil {
			return fmt.Errorf("fetching courses: %w", err)
		}
		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleShowCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := FetchCourse(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching course[%s]: %w", id, err)
		}
		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleCreateCourse(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if cn.Price.IsNegative() {
			err := errors.New("price must not be negative")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		c := Course{
			ID:          validate.GenerateID(),
			Title:       cn.Title,
			Description: cn.Description,
			Price:       cn.Price,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := CreateCourse(ctx, db, c); err != nil {
			return fmt.Errorf("creating course: %w", err)
		}
		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleListWebinars(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		wbs, err := FetchAllWebinars(ctx, db)
		if err != nil {
			return fmt.Errorf("fetching webinars: %w", err)
		}
		return web.Respond(ctx, w, wbs, http.StatusOK)
	}
}

func HandleShowWebinar(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		wb, err := FetchWebinar(ctx, db, id)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				return weberr.NotFound(err)
			}
			return fmt.Errorf("fetching webinar[%s]: %w", id, err)
		}
		return web.Respond(ctx, w, wb, http.StatusOK)
	}
}

func HandleCreateWebinar(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var wn WebinarNew
		if err := web.Decode(w, r, &wn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(wn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		if wn.Price.IsNegative() {
			err := errors.New("price must not be negative")
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		wb := Webinar{
			ID:          validate.GenerateID(),
			Title:       wn.Title,
			Description: wn.Description,
			Price:       wn.Price,
			StartsAt:    wn.StartsAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		if err := CreateWebinar(ctx, db, wb); err != nil {
			return fmt.Errorf("creating webinar: %w", err)
		}
		return web.Respond(ctx, w, wb, http.StatusCreated)
	}
}
