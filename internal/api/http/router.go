// internal/api/http/router.go
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/mindengage-lti/internal/lti"
)

const (
	HealthRoute = "/healthz"
	ReadyRoute  = "/readyz"
	LTIParent   = "/lti"
	AdminParent = "/admin"
)

// ConsumerAdmin provisions consumers for the admin API.
type ConsumerAdmin interface {
	CreateConsumer(ctx context.Context, name string) (lti.Consumer, error)
	ListConsumers(ctx context.Context) ([]lti.Consumer, error)
}

// ToolConfigs serves cartridge descriptions by id.
type ToolConfigs interface {
	Tool(id int64) (lti.ToolConfig, bool)
}

type Deps struct {
	Tool      *lti.Tool
	Consumers ConsumerAdmin
	Tools     ToolConfigs
	// Ready reports whether backing stores answer. Nil means always ready.
	Ready func(ctx context.Context) error

	AdminUser     string
	AdminPassHash string // bcrypt; empty leaves /admin unmounted

	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, CorrelationID, RequestLogger, Recoverer)
	r.Use(middleware.RequestSize(d.MaxBodyBytes))
	r.Use(middleware.Timeout(d.RequestTimeout))
	r.Use(middleware.StripSlashes)
	// An empty origin list makes cors allow every origin.
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", CorrelationIDHeader},
			ExposedHeaders:   []string{"Content-Length", CorrelationIDHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get(HealthRoute, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get(ReadyRoute, ReadyHandler(d.Ready))

	r.Route(LTIParent, func(lr chi.Router) {
		MountLTI(lr, d.Tool)
		if d.Tools != nil {
			lr.Get("/config/{id}", ToolConfigHandler(d.Tools))
		}
	})

	if d.Consumers != nil && d.AdminPassHash != "" {
		r.Route(AdminParent, func(ar chi.Router) {
			ar.Use(BasicAuth(d.AdminUser, d.AdminPassHash))
			ar.Get("/consumers", ListConsumersHandler(d.Consumers))
			ar.Post("/consumers", CreateConsumerHandler(d.Consumers))
		})
	}
	return r
}

func ReadyHandler(ready func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
