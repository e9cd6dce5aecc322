package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/brpaz/echozap"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echomiddleware "github.com/oapi-codegen/echo-middleware"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/hydration/cohort"
	"github.com/tidepool-org/hydration/config"
	errors2 "github.com/tidepool-org/hydration/errors"
	"github.com/tidepool-org/hydration/feed"
	"github.com/tidepool-org/hydration/logger"
	"github.com/tidepool-org/hydration/metrics"
	"github.com/tidepool-org/hydration/outbox"
	"github.com/tidepool-org/hydration/patients"
	patientsService "github.com/tidepool-org/hydration/patients/service"
	"github.com/tidepool-org/hydration/store"
	"github.com/tidepool-org/hydration/thresholds"
)

func Start(e *echo.Echo, cfg *config.Config, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			address := fmt.Sprintf(":%d", cfg.HttpPort)
			go func() {
				if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorw("http server stopped", "address", address, "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

func SetReady(healthCheck *HealthCheck, db *mongo.Database, _ *thresholds.Table, lifecycle fx.Lifecycle) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Client().Ping(ctx, nil); err != nil {
				return err
			}

			// Hooks run in topological order so the repository indexes exist by now.
			healthCheck.SetReady(true)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			healthCheck.SetReady(false)
			return nil
		},
	})
}

func NewServer(handler *Handler, healthCheck *HealthCheck, zapLogger *zap.Logger) (*echo.Echo, error) {
	e := echo.New()
	e.HideBanner = true

	swagger, err := GetSwagger()
	if err != nil {
		return nil, err
	}

	// Do not validate servers in the open api spec
	swagger.Servers = nil

	// Skip validation and logging for readiness probe and metrics routes
	skipper := RouteSkipper([]string{"/ready", "/metrics"})
	requestValidator := echomiddleware.OapiRequestValidatorWithOptions(swagger, &echomiddleware.Options{
		Skipper: skipper,
	})

	e.Use(middleware.Recover())
	e.Use(WithSkipper(skipper, echozap.ZapLogger(zapLogger)))
	e.Use(requestValidator)

	e.HTTPErrorHandler = errors2.CustomHTTPErrorHandler

	e.GET("/ready", healthCheck.Ready)
	e.GET("/metrics", metrics.Handler())
	RegisterHandlers(e, handler)

	return e, nil
}

func cacheListener(cache *cohort.Cache) patients.Listener {
	return cache
}

// Dependencies provides everything needed to serve the api and consume the
// device feed.
func Dependencies() fx.Option {
	return fx.Options(
		fx.Provide(
			logger.NewProductionLogger,
			logger.Suggar,
			config.NewConfig,
			config.NewClock,
			thresholds.NewConfig,
			thresholds.NewTable,
			store.NewConfig,
			store.NewLifecycleClient,
			store.NewDatabase,
			patients.NewRepository,
			outbox.NewRepository,
			patientsService.NewService,
			cohort.NewCache,
			fx.Annotate(cacheListener, fx.ResultTags(`group:"patientListeners"`)),
			cohort.NewService,
			feed.NewConfig,
			feed.NewLifecycleClient,
			feed.NewLifecycleConsumer,
			NewHealthCheck,
			NewHandler,
			NewServer,
		),
		fx.Invoke(metrics.Register),
	)
}

func MainLoop() {
	fx.New(
		Dependencies(),
		fx.Invoke(SetReady),
		fx.Invoke(func(*feed.Consumer) {}),
		fx.Invoke(Start),
	).Run()
}
