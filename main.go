package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"git.sr.ht/~aondrejcak/chai-api/checkout"
	"git.sr.ht/~aondrejcak/chai-api/endpoints"
	"git.sr.ht/~aondrejcak/chai-api/endpoints/payments"
	"git.sr.ht/~aondrejcak/chai-api/events"
	"git.sr.ht/~aondrejcak/chai-api/kernel"
	"git.sr.ht/~aondrejcak/chai-api/middleware"
	"git.sr.ht/~aondrejcak/chai-api/provider"
	"git.sr.ht/~aondrejcak/chai-api/store"
)

func newProvider(ctx context.Context, art *kernel.AppRuntime) (provider.Provider, error) {
	switch art.PaymentProvider {
	case "paypal":
		return provider.NewPayPal(ctx, provider.PayPalConfig{
			ClientID:     art.PayPalClientID,
			ClientSecret: art.PayPalSecret,
			Sandbox:      art.PayPalSandbox,
			Timeout:      art.ProviderTimeout,
		})
	default:
		return provider.NewRazorpay(provider.RazorpayConfig{
			BaseURL:   art.RazorpayBaseURL,
			KeyID:     art.RazorpayKeyID,
			KeySecret: art.RazorpayKeySecret,
			Timeout:   art.ProviderTimeout,
		})
	}
}

func newDispatcher(ctx context.Context, art *kernel.AppRuntime, users events.UserLookup) *events.Dispatcher {
	var handlers []events.Handler
	if art.PostmarkToken != "" && art.EmailSender != "" {
		handlers = append(handlers, events.NewPostmarkHandler(art.PostmarkToken, users, art.EmailSender))
	}
	if art.SQSQueueURL != "" {
		h, err := events.NewSQSHandler(ctx, events.SQSConfig{
			QueueURL:  art.SQSQueueURL,
			Region:    art.AWSRegion,
			AccessKey: art.AWSAccessKey,
			SecretKey: art.AWSSecretKey,
		})
		if err != nil {
			log.Error().Err(err).Msg("sqs event handler disabled")
		} else {
			handlers = append(handlers, h)
		}
	}
	return events.NewDispatcher(15*time.Second, handlers...)
}

func main() {
	art, err := kernel.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	art.Context = context.Background()
	art.SetupLogging()

	if art.Production() {
		log.Info().Msg(" === RUNNING IN PRODUCTION MODE ===")
		gin.SetMode(gin.ReleaseMode)
	}

	cleanupFunc, err := art.SetupOtel()
	if err != nil {
		log.Fatal().Err(err).Msg("could not set up telemetry")
	}
	defer cleanupFunc()

	span, ctx := art.Diagnostic.BeginTracing(art.Context, "main")

	db, err := art.OpenStore(ctx)
	if err != nil {
		span.RecordError(err)
		log.Fatal().Err(err).Msg("could not open store")
	}
	defer func(db store.Store) {
		_ = db.Close(context.Background())
	}(db)

	if err := art.Seed(ctx, db); err != nil {
		log.Warn().Err(err).Msg("could not seed demo data")
	}

	prov, err := newProvider(ctx, art)
	if err != nil {
		span.RecordError(err)
		log.Fatal().Err(err).Msg("could not initialize payment provider")
	}

	svc, err := checkout.NewService(db, db, prov, checkout.Config{
		Currency:  art.Currency,
		MinAmount: art.MinDonation,
		Secret:    art.SigningSecret(),
		Timeout:   2 * art.ProviderTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not create checkout service")
	}

	dispatcher := newDispatcher(ctx, art, db)
	svc.OnCompleted = dispatcher.OnCompleted
	log.Info().Int("handlers", dispatcher.Len()).Str("provider", prov.Name()).Msg("checkout ready")

	art.JWT, err = middleware.NewAuthMiddleware(art, db)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create auth middleware")
	}
	span.End()

	r := gin.New()
	if err = r.SetTrustedProxies(nil); err != nil {
		log.Fatal().Err(err).Send()
	}

	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "a panic occurred, request aborted",
		})
	}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     art.CorsOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(otelgin.Middleware(art.ServiceName))
	r.Use(middleware.TracerMiddleware(art))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "route not found",
		})
	})

	api := r.Group("/api")
	endpoints.NewAuthController(art, db, art.JWT).RegisterController(api)
	payments.NewController(svc).RegisterController(api, art.JWT.MiddlewareFunc())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{Addr: art.Host, Handler: r}

	go func() {
		log.Info().Str("addr", art.Host).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	dispatcher.Wait()
}
