package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/sherzodn/edupay/api"
	"github.com/sherzodn/edupay/config"
	"github.com/sherzodn/edupay/core/auth"
	"github.com/sherzodn/edupay/core/claims"
	"github.com/sherzodn/edupay/core/payment"
	"github.com/sherzodn/edupay/core/payment/paylov"
	"github.com/sherzodn/edupay/database"
	"github.com/sherzodn/edupay/random"
	"github.com/sherzodn/edupay/rate"
	"github.com/sherzodn/edupay/validate"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	merchantKey     = "merchant-key-1"
	webhookUser     = "paylov"
	webhookPass     = "paylov-secret"
	subscriptionKey = "sub-key-1"
	redirectURL     = "https://edupay.test/payment/result"
)

var (
	pool     *dockertest.Pool
	resource *dockertest.Resource
	hostPort string
)

func TestMain(m *testing.M) {
	code, err := run(m)
	if err != nil {
		log.Fatal(err)
	}
	os.Exit(code)
}

func run(m *testing.M) (int, error) {
	var err error
	pool, err = dockertest.NewPool("")
	if err != nil {
		return 0, fmt.Errorf("connecting to docker: %w", err)
	}

	resource, err = pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=postgres",
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		return 0, fmt.Errorf("starting postgres container: %w", err)
	}
	defer pool.Purge(resource)

	hostPort = resource.GetHostPort("5432/tcp")

	pool.MaxWait = 2 * time.Minute
	err = pool.Retry(func() error {
		db, err := connect("postgres")
		if err != nil {
			return err
		}
		defer db.Close()
		return database.StatusCheck(context.Background(), db)
	})
	if err != nil {
		return 0, fmt.Errorf("waiting for postgres: %w", err)
	}

	return m.Run(), nil
}

func connect(name string) (*sqlx.DB, error) {
	return database.Open(config.DB{
		User:       "postgres",
		Password:   "postgres",
		Host:       hostPort,
		Name:       name,
		DisableTLS: true,
	})
}

type TestEnv struct {
	URL    string
	DB     *sqlx.DB
	Mock   *mockPaylov
	Paylov *paylov.Client

	AdminEmail string
	AdminPass  string
	UserEmail  string
	UserPass   string
	UserID     string

	client *http.Client
}

// NewTestEnv brings up a fresh database, the mocked provider and an
// HTTP server for one test.
func NewTestEnv(t *testing.T, name string) (*TestEnv, error) {
	master, err := connect("postgres")
	if err != nil {
		return nil, fmt.Errorf("connecting to master db: %w", err)
	}
	defer master.Close()

	if _, err := master.Exec("DROP DATABASE IF EXISTS " + name); err != nil {
		return nil, fmt.Errorf("dropping database %s: %w", name, err)
	}
	if _, err := master.Exec("CREATE DATABASE " + name); err != nil {
		return nil, fmt.Errorf("creating database %s: %w", name, err)
	}

	db, err := connect(name)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", name, err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(db); err != nil {
		return nil, fmt.Errorf("migrating %s: %w", name, err)
	}

	env := &TestEnv{
		DB:         db,
		AdminEmail: random.String(8) + "@test.com",
		AdminPass:  "admin-pass-1",
		UserEmail:  random.String(8) + "@test.com",
		UserPass:   "user-pass-1",
	}

	if err := env.seed(); err != nil {
		return nil, fmt.Errorf("seeding %s: %w", name, err)
	}

	env.Mock = newMockPaylov()
	mockSrv := httptest.NewServer(env.Mock.handler())
	t.Cleanup(mockSrv.Close)

	creds, err := paylov.CredentialsFrom(map[string]string{
		"PAYLOV_API_KEY":          merchantKey,
		"PAYLOV_USERNAME":         webhookUser,
		"PAYLOV_PASSWORD":         webhookPass,
		"PAYLOV_SUBSCRIPTION_KEY": subscriptionKey,
		"PAYLOV_REDIRECT_URL":     redirectURL,
	})
	if err != nil {
		return nil, fmt.Errorf("resolving test credentials: %w", err)
	}

	env.Paylov = paylov.NewClient(config.Paylov{
		ProviderKey: "paylov",
		APIURL:      mockSrv.URL,
		CheckoutURL: "https://my.paylov.uz/checkout/",
		CallTimeout: 5 * time.Second,
	}, creds)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	session := scs.New()
	session.Lifetime = time.Hour

	mux := api.APIMux(api.APIConfig{
		Log:         logger,
		DB:          db,
		Session:     session,
		Paylov:      env.Paylov,
		ProviderKey: "paylov",
		LoginLimit:  rate.NewLimiter(100, 100, rate.Every(time.Millisecond)),
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	env.URL = srv.URL

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("building cookie jar: %w", err)
	}
	env.client = &http.Client{Jar: jar}

	return env, nil
}

func (env *TestEnv) Client() *http.Client { return env.client }

// seed fills the fresh database with the provider, its credentials and
// the two accounts every test works with.
func (env *TestEnv) seed() error {
	ctx := context.Background()
	now := time.Now().UTC()

	prov := payment.Provider{
		ID:        validate.GenerateID(),
		Name:      "Paylov",
		Key:       "paylov",
		CreatedAt: now,
	}
	if err := payment.CreateProvider(ctx, env.DB, prov); err != nil {
		return err
	}

	secrets := map[string]string{
		"PAYLOV_API_KEY":          merchantKey,
		"PAYLOV_USERNAME":         webhookUser,
		"PAYLOV_PASSWORD":         webhookPass,
		"PAYLOV_SUBSCRIPTION_KEY": subscriptionKey,
		"PAYLOV_REDIRECT_URL":     redirectURL,
	}
	for key, value := range secrets {
		cred := payment.ProviderCredential{
			ID:         validate.GenerateID(),
			ProviderID: prov.ID,
			Key:        key,
			Value:      value,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := payment.CreateCredential(ctx, env.DB, cred); err != nil {
			return err
		}
	}

	accounts := []struct {
		email string
		pass  string
		role  string
		id    *string
	}{
		{env.AdminEmail, env.AdminPass, claims.RoleAdmin, nil},
		{env.UserEmail, env.UserPass, claims.RoleUser, &env.UserID},
	}

	for _, acc := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(acc.pass), bcrypt.MinCost)
		if err != nil {
			return err
		}

		usr := auth.User{
			ID:           validate.GenerateID(),
			Name:         "Test " + acc.role,
			Email:        acc.email,
			Role:         acc.role,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := auth.Create(ctx, env.DB, usr); err != nil {
			return err
		}

		if acc.id != nil {
			*acc.id = usr.ID
		}
	}

	return nil
}

func Login(env *TestEnv, email string, password string) error {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return err
	}

	w, err := env.Client().Post(env.URL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with status %s", w.Status)
	}
	return nil
}

func Logout(env *TestEnv) error {
	w, err := env.Client().Post(env.URL+"/auth/logout", "application/json", nil)
	if err != nil {
		return err
	}
	defer w.Body.Close()

	if w.StatusCode != http.StatusNoContent {
		return fmt.Errorf("logout failed with status %s", w.Status)
	}
	return nil
}

func postJSON(env *TestEnv, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return env.Client().Post(env.URL+path, "application/json", bytes.NewReader(body))
}
