package config

import "time"

type Config struct {
	Web    Web
	Cors   Cors
	DB     DB
	Auth   Auth
	Paylov Paylov
	Rate   Rate
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type Cors struct {
	Origin string
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost"`
	Name       string `conf:"default:edupay"`
	DisableTLS bool   `conf:"default:true"`
}

type Auth struct {
	SessionLifetime time.Duration `conf:"default:24h"`
}

// Paylov holds the non-secret parts of the provider integration. The
// merchant secrets live in the provider_credentials table instead.
type Paylov struct {
	ProviderKey string        `conf:"default:paylov"`
	APIURL      string        `conf:"default:https://gw.paylov.uz"`
	CheckoutURL string        `conf:"default:https://my.paylov.uz/checkout/"`
	CallTimeout time.Duration `conf:"default:10s"`
}

type Rate struct {
	LoginBurst      int `conf:"default:5"`
	LoginPerMinute  int `conf:"default:10"`
	LoginExpiryMins int `conf:"default:60"`
}
