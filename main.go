// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"gravecare-api/config"
	"gravecare-api/controllers"
	"gravecare-api/metrics"
	"gravecare-api/models"
	"gravecare-api/notify"
	"gravecare-api/routes"
	"gravecare-api/services"
	"gravecare-api/store"
	"gravecare-api/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func run(cfg config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	client, err := utils.ConnectDB(ctx, cfg.MongoURI)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.WithError(err).Error("disconnect mongo")
		}
	}()

	db := client.Database(cfg.MongoDB)
	orderStore := store.NewMongoOrderStore(db.Collection(store.OrdersCollection), cfg.DBTimeout)
	userStore := store.NewMongoUserStore(db.Collection(store.UsersCollection), cfg.DBTimeout)
	if err := userStore.EnsureIndexes(ctx); err != nil {
		return err
	}
	if err := orderStore.EnsureIndexes(ctx); err != nil {
		return err
	}

	m := metrics.New()
	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)

	notifier := notify.NewFromConfig(cfg.Mail, cfg.Notify.Timeout)
	notifyLog := log.WithFields(logrus.Fields{"component": "notify", "transport": notifier.Transport()})
	if notifier.IsConfigured() {
		go verifyNotifier(ctx, notifier, cfg.Notify.Timeout, notifyLog)
	} else {
		notifyLog.Warn("mail transport not configured; order notifications will be skipped")
	}

	orderOpts := []services.OrderOption{
		services.WithNotifyTimeout(cfg.Notify.Timeout),
		services.WithMetrics(m),
	}
	var closeQueue func()
	switch cfg.Notify.Mode {
	case config.NotifyPool:
		pool := notify.NewPool(notifier, cfg.Notify.Workers, cfg.Notify.QueueSize, cfg.Notify.Timeout, notifyLog,
			func(_ models.Order, err error) {
				if err != nil {
					m.Delivery(string(services.NotificationFailed))
					return
				}
				m.Delivery(string(services.NotificationSent))
			})
		orderOpts = append(orderOpts, services.WithQueue(pool))
		closeQueue = pool.Close
	case config.NotifyAMQP:
		publisher, err := notify.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.AMQPExchange)
		if err != nil {
			return fmt.Errorf("notification queue: %w", err)
		}
		// cmd/notifier owns the mail settings in this mode.
		orderOpts = append(orderOpts, services.WithRemoteQueue(publisher))
		closeQueue = func() {
			if err := publisher.Close(); err != nil {
				notifyLog.WithError(err).Warn("close amqp publisher")
			}
		}
	}
	notifyLog.WithField("mode", cfg.Notify.Mode).Info("order notifications enabled")

	// Initialize controllers
	userController := controllers.NewUserController(services.NewCredentialService(userStore, tokens, cfg.BcryptCost, log))
	orderController := controllers.NewOrderController(services.NewOrderService(orderStore, notifier, log, orderOpts...))
	healthController := &controllers.HealthController{
		Check: func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) },
		Log:   log,
	}

	handler := routes.NewHandler(routes.Deps{
		Users:    userController,
		Orders:   orderController,
		Health:   healthController,
		Verifier: tokens,
		Metrics:  m,
		Log:      log,
	}, cfg.CORS)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Notify.Timeout + cfg.DBTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown")
	}
	// Drain queued notifications only after no new orders can arrive.
	if closeQueue != nil {
		closeQueue()
	}
	return nil
}

func verifyNotifier(ctx context.Context, n *notify.MailNotifier, timeout time.Duration, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := n.Verify(ctx); err != nil {
		log.WithError(err).Warn("mail transport verification failed")
		return
	}
	log.Info("mail transport ready")
}
