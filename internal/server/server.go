package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/handler"
	"storefront/internal/infra/cache"
	"storefront/internal/infra/db"
	infraRepo "storefront/internal/infra/repository"
	"storefront/internal/metrics"
	mw "storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/security"
	"storefront/internal/usecase"
	"storefront/internal/validator"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

const Version = "1.0.0"

// 起動時に1回だけ作って渡す部品
type Deps struct {
	Config  config.Config
	DB      *gorm.DB
	Log     *slog.Logger
	Metrics *metrics.Metrics
	//nilならキャッシュなし
	ProductCache cache.ProductCache
	//nilならMockGateway
	Gateway usecase.PaymentGateway
}

// echoを組み立てる（listenはしない）
func New(d Deps) (*echo.Echo, error) {
	cfg := d.Config
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Gateway == nil {
		d.Gateway = usecase.MockGateway{}
	}

	tokens, err := security.NewTokenService(cfg.SecretKey, cfg.Algorithm, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}
	hasher := security.NewBcryptPasswordHasher(cfg.BcryptCost)
	v := validator.New()

	//Repository（GORM実装）生成
	users := infraRepo.NewUserGormRepository(d.DB)
	orders := infraRepo.NewOrderGormRepository(d.DB)
	payments := infraRepo.NewPaymentGormRepository(d.DB)
	trails := infraRepo.NewAuditTrailGormRepository(d.DB)
	txm := infraRepo.NewTxManagerGorm(d.DB)

	var products repository.ProductRepository = infraRepo.NewProductGormRepository(d.DB)
	if d.ProductCache != nil {
		products = infraRepo.NewCachedProductRepository(products, d.ProductCache, d.Log)
	}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(users, hasher, tokens, v)
	productUC := usecase.NewProductUsecase(products, v)
	orderUC := usecase.NewOrderUsecase(txm, orders, usecase.PaymentLinks{
		BaseURL:     cfg.PaymentBaseURL,
		RedirectURL: cfg.PaymentRedirectURL,
		CallbackURL: cfg.PaymentCallbackURL,
	}, v, d.Metrics)
	paymentUC := usecase.NewPaymentUsecase(txm, payments, d.Gateway, v, d.Metrics)

	auth := mw.NewAuthenticator(tokens, nil, d.Log)
	audit := mw.NewAudit(trails, tokens, mw.AuditConfig{
		RequestBodyLimit:  cfg.AuditRequestBodyLimit,
		ResponseBodyLimit: cfg.AuditResponseBodyLimit,
	}, d.Log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = v
	e.HTTPErrorHandler = handler.NewHTTPErrorHandler(cfg.Debug, d.Log)

	//外側から Recover > RequestID > アクセスログ > Metrics > Audit > Auth
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.RequestLoggerWithConfig(accessLogConfig(d.Log)))
	e.Use(middleware.BodyLimit("1M"))
	e.Use(mw.Metrics(d.Metrics))
	e.Use(audit.Middleware())
	e.Use(auth.Middleware())

	registerRoutes(e, routeSet{
		auth:     auth,
		metrics:  d.Metrics,
		health:   handler.NewHealthHandler(func(ctx context.Context) error { return db.Ping(ctx, d.DB) }, Version, d.Log),
		authH:    handler.NewAuthHandler(authUC),
		productH: handler.NewProductHandler(productUC),
		orderH:   handler.NewOrderHandler(orderUC),
		paymentH: handler.NewPaymentHandler(paymentUC),
	})

	return e, nil
}

// slogへアクセスログを書く
func accessLogConfig(log *slog.Logger) middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
				slog.String("remote_ip", v.RemoteIP),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				level = slog.LevelWarn
			}
			log.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	}
}

// ctxが終わるまで待ち受け、その後graceful shutdown
func Start(ctx context.Context, e *echo.Echo, addr string, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
