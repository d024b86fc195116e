package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reviewhub/internal/queue"
	"reviewhub/internal/ratelimiter"
	"reviewhub/internal/reviews"
	"reviewhub/internal/store"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type application struct {
	config      config
	store       store.Storage
	reviews     *reviews.Service
	publisher   *queue.Publisher
	cld         *cloudinary.Cloudinary
	logger      *zap.SugaredLogger
	ratelimiter *ratelimiter.FixedWindowRateLimiter
}

type config struct {
	addr        string
	env         string
	frontendURL string
	db          dbConfig
	amqp        amqpConfig
	auth        authConfig
	rateLimiter ratelimiter.Config
}

type dbConfig struct {
	addr        string
	maxConns    int
	maxIdleTime string
}

type amqpConfig struct {
	url       string
	queueName string
}

type authConfig struct {
	basic basicConfig
}

type basicConfig struct {
	user string
	pass string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(app.RateLimiterMiddleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Device-ID", "X-Geolocation"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.With(app.BasicAuthMiddleware()).Get("/health", app.healthCheckHandler)
		r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", app.createReviewHandler)

			r.Route("/{reviewID}", func(r chi.Router) {
				r.Get("/", app.getReviewHandler)
				r.Get("/status", app.getReviewStatusHandler)
				r.Patch("/", app.updateReviewHandler)
				r.Delete("/", app.deleteReviewHandler)
				r.Post("/photos", app.uploadReviewPhotoHandler)
			})
		})

		r.Get("/businesses/{businessID}/reviews", app.listBusinessReviewsHandler)

		// Service-to-service surface consumed by the compliance rule
		// engine. Never exposed to end users.
		r.Route("/internal/abuse", func(r chi.Router) {
			r.Use(app.BasicAuthMiddleware())
			r.Get("/duplicate-check", app.duplicateCheckHandler)
			r.Get("/frequency-check", app.frequencyCheckHandler)
			r.Get("/category-check", app.categoryCheckHandler)
			r.Get("/spike-check", app.spikeCheckHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
