package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sherzodn/edupay/api/middleware"
	"github.com/sherzodn/edupay/api/web"
	"github.com/sherzodn/edupay/core/auth"
	"github.com/sherzodn/edupay/core/catalog"
	"github.com/sherzodn/edupay/core/payment"
	"github.com/sherzodn/edupay/core/payment/paylov"
	"github.com/sherzodn/edupay/rate"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin  string
	Log         logrus.FieldLogger
	DB          *sqlx.DB
	Session     *scs.SessionManager
	Paylov      *paylov.Client
	ProviderKey string
	LoginLimit  *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), middleware.RateLimit(cfg.LoginLimit))
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))

	a.Handle(http.MethodGet, "/courses/{id}", catalog.HandleShowCourse(cfg.DB))
	a.Handle(http.MethodGet, "/courses", catalog.HandleListCourses(cfg.DB))
	a.Handle(http.MethodPost, "/courses", catalog.HandleCreateCourse(cfg.DB), admin)

	a.Handle(http.MethodGet, "/webinars/{id}", catalog.HandleShowWebinar(cfg.DB))
	a.Handle(http.MethodGet, "/webinars", catalog.HandleListWebinars(cfg.DB))
	a.Handle(http.MethodPost, "/webinars", catalog.HandleCreateWebinar(cfg.DB), admin)

	a.Handle(http.MethodPost, "/orders", paylov.HandleCreateOrder(cfg.DB, cfg.Paylov, cfg.ProviderKey), authen)
	a.Handle(http.MethodDelete, "/orders/{id}", payment.HandleDeleteOrder(cfg.DB), authen)
	a.Handle(http.MethodGet, "/transactions", payment.HandleListTransactions(cfg.DB), authen)
	a.Handle(http.MethodPost, "/transactions/{id}/cancel", payment.HandleCancelTransaction(cfg.DB), admin)

	a.Handle(http.MethodPost, "/cards/confirm", paylov.HandleConfirmCard(cfg.DB, cfg.Paylov), authen)
	a.Handle(http.MethodPost, "/cards/receipts/pay", paylov.HandlePayReceipt(cfg.DB, cfg.Paylov), authen)
	a.Handle(http.MethodPost, "/cards/receipts", paylov.HandleCreateReceipt(cfg.DB, cfg.Paylov, cfg.ProviderKey), authen)
	a.Handle(http.MethodGet, "/cards/{id}", paylov.HandleGetCard(cfg.DB, cfg.Paylov), authen)
	a.Handle(http.MethodDelete, "/cards/{id}", paylov.HandleDeleteCard(cfg.DB, cfg.Paylov), authen)
	a.Handle(http.MethodGet, "/cards", paylov.HandleListCards(cfg.Paylov), authen)
	a.Handle(http.MethodPost, "/cards", paylov.HandleCreateCard(cfg.DB, cfg.Paylov, cfg.ProviderKey), authen)

	a.Handle(http.MethodPost, "/payment/paylov/callback", paylov.HandleWebhook(cfg.DB, cfg.Paylov.Credentials()))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
