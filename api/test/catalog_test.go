package test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/sherzodn/edupay/core/catalog"
	"github.com/sherzodn/edupay/random"
)

func TestCatalog(t *testing.T) {
	env, err := NewTestEnv(t, "catalog_test")
	if err != nil {
		t.Fatal(err)
	}

	course := CreateCourse(t, env, "120000.00")

	// The read surface is public.
	w, err := env.Client().Get(env.URL + "/courses")
	if err != nil {
		t.Fatal(err)
	}
	var courses []catalog.Course
	if err := json.NewDecoder(w.Body).Decode(&courses); err != nil {
		t.Fatal(err)
	}
	w.Body.Close()
	if len(courses) != 1 || courses[0].ID != course.ID {
		t.Fatalf("unexpected course listing: %+v", courses)
	}

	w, err = env.Client().Get(env.URL + "/courses/" + course.ID)
	if err != nil {
		t.Fatal(err)
	}
	var got catalog.Course
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	w.Body.Close()
	if !got.Price.Equal(course.Price) {
		t.Fatalf("expected price %s, got %s", course.Price, got.Price)
	}

	w, err = env.Client().Get(env.URL + "/courses/f47ac10b-58cc-4372-a567-0e02b2c3d479")
	if err != nil {
		t.Fatal(err)
	}
	w.Body.Close()
	if w.StatusCode != http.StatusNotFound {
		t.Fatalf("expected status %d for an unknown course, got %s", http.StatusNotFound, w.Status)
	}

	// Writes are admin-only.
	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	w, err = postJSON(env, "/courses", map[string]any{
		"title":       "Not allowed",
		"description": "x",
		"price":       json.Number("1.00"),
	})
	if err != nil {
		t.Fatal(err)
	}
	w.Body.Close()
	if w.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status %d for a non-admin create, got %s", http.StatusForbidden, w.Status)
	}
	if err := Logout(env); err != nil {
		t.Fatal(err)
	}
}

func TestWebinars(t *testing.T) {
	env, err := NewTestEnv(t, "webinar_test")
	if err != nil {
		t.Fatal(err)
	}

	if err := Login(env, env.AdminEmail, env.AdminPass); err != nil {
		t.Fatal(err)
	}

	w, err := postJSON(env, "/webinars", map[string]any{
		"title":       "Webinar " + random.String(6),
		"description": "Integration fixture",
		"price":       json.Number("45000.00"),
		"startsAt":    time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
	})
	if err != nil {
		t.Fatal(err)
	}
	if w.StatusCode != http.StatusCreated {
		t.Fatalf("creating webinar: expected status %d, got %s", http.StatusCreated, w.Status)
	}

	var webinar catalog.Webinar
	if err := json.NewDecoder(w.Body).Decode(&webinar); err != nil {
		t.Fatal(err)
	}
	w.Body.Close()

	if err := Logout(env); err != nil {
		t.Fatal(err)
	}

	// A webinar is orderable the same way a course is.
	if err := Login(env, env.UserEmail, env.UserPass); err != nil {
		t.Fatal(err)
	}
	w, err = postJSON(env, "/orders", map[string]string{
		"productId":   webinar.ID,
		"productType": "webinar",
	})
	if err != nil {
		t.Fatal(err)
	}
	w.Body.Close()
	if w.StatusCode != http.StatusCreated {
		t.Fatalf("ordering webinar: expected status %d, got %s", http.StatusCreated, w.Status)
	}
}
