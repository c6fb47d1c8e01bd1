package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrJamesThe3rd/karat/internal/http/alias"
	"github.com/MrJamesThe3rd/karat/internal/http/identity"
	"github.com/MrJamesThe3rd/karat/internal/http/importcsv"
	"github.com/MrJamesThe3rd/karat/internal/http/notification"
	"github.com/MrJamesThe3rd/karat/internal/http/reserve"
	"github.com/MrJamesThe3rd/karat/internal/http/settlement"
	"github.com/MrJamesThe3rd/karat/internal/http/shop"
)

type Options struct {
	JWTSecret   string
	CORSOrigins []string
}

func New(
	opts Options,
	shopsV1 *shop.Handler,
	settlementsV1 *settlement.Handler,
	reservesV1 *reserve.Handler,
	notificationsV1 *notification.Handler,
	importV1 *importcsv.Handler,
	aliasesV1 *alias.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", identity.EmployeeHeader},
		MaxAge:         300,
	}))

	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(identity.Middleware(opts.JWTSecret))

		r.Route("/stores", func(r chi.Router) {
			shopsV1.Routes(r)

			r.Route("/{storeID}", func(r chi.Router) {
				shopsV1.StoreRoutes(r)
				reservesV1.StoreRoutes(r)

				r.Route("/settlements", func(r chi.Router) {
					r.Use(middleware.AllowContentType("application/json"))
					settlementsV1.Routes(r)
				})

				r.Route("/reserves", reservesV1.Routes)
				r.Route("/notifications", notificationsV1.StoreRoutes)
				r.Route("/import", importV1.Routes)
			})
		})

		r.Route("/notifications", notificationsV1.Routes)
		r.Route("/aliases", aliasesV1.Routes)
	})

	return router
}
