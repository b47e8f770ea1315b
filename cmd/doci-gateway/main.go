package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"github.com/fronsciers/doci-gateway/client"
	"github.com/fronsciers/doci-gateway/internal/config"
	"github.com/fronsciers/doci-gateway/internal/infra/database"
	"github.com/fronsciers/doci-gateway/internal/infra/gateway"
	"github.com/fronsciers/doci-gateway/internal/infra/repository"
	"github.com/fronsciers/doci-gateway/internal/present/rest"
	"github.com/fronsciers/doci-gateway/internal/present/rest/middleware"
	"github.com/fronsciers/doci-gateway/internal/service"
	"github.com/fronsciers/doci-gateway/internal/usecase"
)

func main() {
	configPath := flag.String("c", "/etc/doci/gateway.yaml", "path to config file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	conf, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if conf.Server.EnableTrace {
		cleanup, err := setupTraceProvider(conf.Server.TraceEndpoint, conf.Gateway.FQDN)
		if err != nil {
			slog.Error("failed to setup trace provider", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer cleanup()
	}

	db, err := database.NewPostgres(conf.Server.PostgresDsn)
	if err != nil {
		slog.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := database.MigratePostgres(db); err != nil {
		slog.Error("failed to migrate database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rdb := database.NewRedis(conf.Server.RedisAddr, "", conf.Server.RedisDB)
	mc := database.NewMemcached(conf.Server.MemcachedAddr)

	cl := client.New("doci-gateway (" + conf.Gateway.FQDN + ")")

	identifierRepo := repository.NewIdentifierRepository(db, mc)
	eventRepo := repository.NewEventRepository(db, rdb)
	escrowRepo := repository.NewEscrowRepository(db)

	ledgerGateway := gateway.NewLedgerGateway(cl, conf.Server.LedgerAuthority)
	contentGateway := gateway.NewContentGateway(cl, conf.Server.ContentStoreAddr)

	signalService := service.NewSignalService(rdb)
	authService := service.NewAuthService(&conf.Gateway)

	identifierUsecase := usecase.NewIdentifierUsecase(
		conf.Gateway, identifierRepo, eventRepo, ledgerGateway, contentGateway, signalService)
	escrowUsecase := usecase.NewEscrowUsecase(escrowRepo)

	handler := rest.NewHandler(conf.Gateway, identifierUsecase, escrowUsecase, signalService)
	authMiddleware := middleware.NewAuthMiddleware(authService, conf.Gateway)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	if conf.Server.EnableTrace {
		e.Use(otelecho.Middleware("doci-gateway"))
	}
	e.Use(authMiddleware.IdentifyRequester)

	handler.RegisterRoutes(e)

	e.Logger.Fatal(e.Start(conf.Server.ListenAddr))
}

func setupTraceProvider(endpoint string, serviceName string) (func(), error) {
	exporter, err := otlptracehttp.New(
		context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tracerProvider)

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", slog.String("error", err.Error()))
		}
	}
	return cleanup, nil
}
