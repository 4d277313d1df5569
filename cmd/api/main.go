package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/shinyyama/campus-exchange/internal/ai"
	"github.com/shinyyama/campus-exchange/internal/config"
	"github.com/shinyyama/campus-exchange/internal/db"
	"github.com/shinyyama/campus-exchange/internal/gcp"
	"github.com/shinyyama/campus-exchange/internal/logging"
	"github.com/shinyyama/campus-exchange/internal/metrics"
	appmw "github.com/shinyyama/campus-exchange/internal/middleware"
	"github.com/shinyyama/campus-exchange/internal/realtime"
	"github.com/shinyyama/campus-exchange/internal/server"
	"github.com/shinyyama/campus-exchange/internal/storage"
	"github.com/shinyyama/campus-exchange/internal/worker"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("config load error")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := gcp.ClientOptions(ctx, cfg.GoogleCredentialsJSON, cfg.GoogleCredentialsFile)
	if err != nil {
		logrus.WithError(err).Fatal("google credentials")
	}

	deps := server.Deps{
		Config:  cfg,
		Metrics: metrics.New(),
	}

	switch cfg.AuthMode {
	case "firebase":
		app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
		if err != nil {
			logrus.WithError(err).Fatal("firebase app")
		}
		v, err := appmw.NewFirebaseVerifier(ctx, app)
		if err != nil {
			logrus.WithError(err).Fatal("firebase auth")
		}
		deps.Verifier = v
		deps.Directory = v
	case "jwt":
		v, err := appmw.NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			logrus.WithError(err).Fatal("jwt auth")
		}
		deps.Verifier = v
	case "none":
		logrus.Warn("AUTH_MODE=none: bearer tokens are trusted as uids")
		deps.Verifier = appmw.DevVerifier{}
	default:
		logrus.WithField("auth_mode", cfg.AuthMode).Fatal("unknown AUTH_MODE")
	}

	if cfg.GeminiAPIKey != "" {
		mod, err := ai.NewReviewModerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModerationModel)
		if err != nil {
			logrus.WithError(err).Warn("review moderation disabled")
		} else {
			deps.Moderator = mod
		}
	}

	if cfg.StorageBucket != "" {
		up, err := storage.NewUploader(ctx, cfg.StorageBucket, opts...)
		if err != nil {
			logrus.WithError(err).Warn("image upload disabled")
		} else {
			defer up.Close()
			deps.Images = up
		}
	}

	var broker realtime.Broker
	if cfg.RedisURL != "" {
		rb, err := realtime.NewRedisBroker(cfg.RedisURL)
		if err != nil {
			logrus.WithError(err).Fatal("redis url")
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rb.Ping(pingCtx); err != nil {
			logrus.WithError(err).Warn("redis ping failed")
		}
		cancel()
		broker = rb
	}
	deps.Hub = realtime.NewHub(broker)
	defer deps.Hub.Close()
	go func() {
		if err := deps.Hub.Run(ctx); err != nil && ctx.Err() == nil {
			logrus.WithError(err).Error("realtime broker stopped")
		}
	}()

	srv := server.New(nil, deps)
	srv.RateLimiter().StartCleanup(ctx, 5*time.Minute)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)

	go func() {
		logrus.WithField("addr", addr).Info("starting server")
		errCh <- srv.Start(addr)
	}()

	// The listener comes up before the database so Cloud Run sees a healthy
	// port quickly; repositories answer 503 until SetDB runs.
	go func() {
		conn, err := db.Connect(cfg)
		if err != nil {
			logrus.WithError(err).Error("db connect error")
			return
		}
		if err := db.Migrate(conn); err != nil {
			logrus.WithError(err).Error("auto migrate error")
		}
		srv.SetDB(conn)
		logrus.Info("database ready")

		sched, err := worker.New(cfg.ExpirySweepSpec, srv.NeedRequests(), deps.Metrics)
		if err != nil {
			logrus.WithError(err).Error("worker schedule")
			return
		}
		sched.Start(ctx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logrus.WithError(err).Fatal("server stopped")
		}
	case <-ctx.Done():
		logrus.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Error("shutdown")
		}
	}
}
