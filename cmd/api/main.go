package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/domain/pricing"
	"petstore/internal/handler"
	"petstore/internal/infra/cache"
	"petstore/internal/infra/db"
	"petstore/internal/infra/kafka"
	"petstore/internal/infra/mail"
	"petstore/internal/infra/payment"
	infraRepo "petstore/internal/infra/repository"
	"petstore/internal/infra/telemetry"
	"petstore/internal/logger"
	"petstore/internal/metrics"
	"petstore/internal/server"
	"petstore/internal/usecase"
	auth "petstore/internal/usecase/auth_usecase"
	"petstore/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.GoEnv, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.InitTracer(ctx, cfg.Telemetry, cfg.GoEnv)
	if err != nil {
		zl.Fatal("Failed to init tracer", zap.Error(err))
	}

	//DB接続
	gormDB, err := db.Connect(cfg.Postgres)
	if err != nil {
		zl.Fatal("Failed to connect db", zap.Error(err))
	}
	if err := db.Migrate(gormDB); err != nil {
		zl.Fatal("Failed to migrate", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		zl.Fatal("Failed to get sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	promotionRepo := infraRepo.NewPromotionGormRepository(gormDB)
	orderRepo := infraRepo.NewOrderGormRepository(gormDB)
	orderItemRepo := infraRepo.NewOrderItemGormRepository(gormDB)
	auditRepo := infraRepo.NewAuditLogGormRepository(gormDB)
	txm := infraRepo.NewTxManagerGorm(gormDB)

	//Prometheus
	reg := metrics.New()

	//決済（Stripeはキーがあるときだけ）
	var card usecase.CardGateway
	if cfg.Payment.StripeSecretKey != "" {
		card = payment.NewStripeGateway(cfg.Payment).WithMetrics(reg)
	} else {
		zl.Warn("STRIPE_SECRET_KEY not set; card payments are recorded without verification")
	}
	qr := payment.NewKHQRGateway(cfg.Payment, payment.NewBakongClient(cfg.Payment).WithMetrics(reg))

	//入金確認のロック（REDIS_ADDRが空ならロックなし）
	pollLock := cache.NewPollLock(cfg.Redis.Addr, cfg.Redis.LockTTL)
	defer pollLock.Close()

	//メール
	renderer, err := mail.NewRenderer(cfg.FEURL)
	if err != nil {
		zl.Fatal("Failed to load mail templates", zap.Error(err))
	}
	notifier := mail.NewNotifier(renderer, mail.NewSender(cfg.SMTP, zl))

	//注文イベント
	publisher, err := kafka.NewPublisher(cfg.Kafka.Brokers, zl)
	if err != nil {
		zl.Fatal("Failed to create kafka publisher", zap.Error(err))
	}
	defer publisher.Close()

	//Usecase生成
	policy := pricing.PolicyFromConfig(cfg.Pricing)
	pricer := usecase.NewPricer(productRepo, promotionRepo, policy)
	strategies := usecase.NewPaymentStrategies(card, qr, zl)

	orderUC := usecase.NewOrderUsecase(txm, orderRepo, orderItemRepo, userRepo, addressRepo, pricer, strategies, pollLock, renderer, zl)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, zl)
	productUC := usecase.NewProductUsecase(txm, productRepo)
	promotionUC := usecase.NewPromotionUsecase(txm, promotionRepo, policy, zl)
	paymentUC := usecase.NewPaymentUsecase(pricer, card, zl)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	auditUC := usecase.NewAuditLogUsecase(auditRepo)

	//auth
	clock := auth.RealClock()
	issuer, err := auth.NewJWTIssuer(cfg.JWTSecret, auth.DefaultAccessTTL)
	if err != nil {
		zl.Fatal("Failed to create jwt issuer", zap.Error(err))
	}
	passwords := auth.NewBcrypt(12)
	registerUC := auth.NewRegisterUserUsecase(userRepo, passwords, clock)
	loginUC := auth.NewLoginUsecase(userRepo, passwords, issuer, clock)
	profileUC := auth.NewUpdateProfileUsecase(userRepo, passwords, issuer, clock)
	forceLogoutUC := auth.NewForceLogoutUsecase(txm, clock)

	//Handler生成
	e := server.New(cfg, zl, server.Handlers{
		Auth:         handler.NewAuthHandler(registerUC, loginUC, profileUC),
		Product:      handler.NewProductHandler(productUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
		AdminUser:    handler.NewAdminUserHandler(forceLogoutUC, auditUC),
		Address:      handler.NewAddressHandler(addressUC),
		Order:        handler.NewOrderHandler(orderUC, adminOrderUC),
		Payment:      handler.NewPaymentHandler(paymentUC),
		Promotion:    handler.NewPromotionHandler(promotionUC),
		Users:        userRepo,
		Metrics:      reg,
	}, sqlDB.PingContext)

	//outbox worker（メール・Kafka）
	processor := worker.NewOutboxProcessor(txm, map[string]worker.Handler{
		model.TopicNotifications: worker.NotificationHandler(notifier),
		model.TopicOrderEvents:   worker.OrderEventHandler(publisher),
	}, cfg.Outbox, zl).WithMetrics(reg)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		processor.Start(ctx)
	}()

	//Server起動
	if err := server.Start(ctx, e, ":"+cfg.Port, zl); err != nil {
		zl.Error("HTTP server stopped", zap.Error(err))
		stop()
	}

	<-workerDone

	if tp != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			zl.Warn("Error shutting down telemetry", zap.Error(err))
		}
	}
	zl.Info("Bye")
}
