package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/campus-exchange/internal/config"
	"github.com/shinyyama/campus-exchange/internal/handler"
	"github.com/shinyyama/campus-exchange/internal/metrics"
	appmw "github.com/shinyyama/campus-exchange/internal/middleware"
	"github.com/shinyyama/campus-exchange/internal/realtime"
	"github.com/shinyyama/campus-exchange/internal/reqctx"
	"github.com/shinyyama/campus-exchange/internal/repository"
	"github.com/shinyyama/campus-exchange/internal/service"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Deps are the collaborators built by main. Directory, Moderator and Images
// may be nil.
type Deps struct {
	Config    *config.Config
	Verifier  appmw.TokenVerifier
	Directory service.UserDirectory
	Moderator service.Moderator
	Images    handler.ImageStore
	Hub       *realtime.Hub
	Metrics   *metrics.Metrics
}

type dbSetter interface {
	SetDB(db *gorm.DB)
}

type Server struct {
	e        *echo.Echo
	repos    []dbSetter
	requests service.NeedRequestService
	limiter  *appmw.RateLimiter
}

func New(db *gorm.DB, d Deps) *Server {
	cfg := d.Config
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext)
	e.Use(accessLog())
	e.Use(d.Metrics.Middleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc:  originAllowed(cfg.AllowedOriginSuffixes),
	}))

	profileRepo := repository.NewProfileRepository(db)
	listingRepo := repository.NewListingRepository(db)
	requestRepo := repository.NewNeedRequestRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	ratingRepo := repository.NewRatingRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	var pub service.Publisher
	if d.Hub != nil {
		pub = d.Hub
	}
	rec := d.Metrics

	notificationSvc := service.NewNotificationService(notificationRepo, pub, rec)
	profileSvc := service.NewProfileService(profileRepo, matchRepo, d.Directory)
	listingSvc := service.NewListingService(listingRepo, profileRepo, matchRepo, rec)
	chatSvc := service.NewChatService(messageRepo, matchRepo, profileRepo, notificationSvc, pub, rec)
	requestSvc := service.NewNeedRequestService(requestRepo, profileRepo, matchRepo, chatSvc, notificationSvc, time.Duration(cfg.RequestTTLHours)*time.Hour)
	matchSvc := service.NewMatchService(service.MatchDeps{
		Matches:   matchRepo,
		Listings:  listingRepo,
		Requests:  requestRepo,
		Profiles:  profileRepo,
		Chat:      chatSvc,
		Notifier:  notificationSvc,
		Publisher: pub,
		Recorder:  rec,
	})
	ratingSvc := service.NewRatingService(ratingRepo, matchRepo, profileRepo, notificationSvc, d.Moderator, rec)

	profileHandler := handler.NewProfileHandler(profileSvc, ratingSvc)
	listingHandler := handler.NewListingHandler(listingSvc, matchSvc)
	requestHandler := handler.NewRequestHandler(requestSvc, matchSvc)
	matchHandler := handler.NewMatchHandler(matchSvc)
	messageHandler := handler.NewMessageHandler(chatSvc)
	ratingHandler := handler.NewRatingHandler(ratingSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	uploadHandler := handler.NewUploadHandler(d.Images, cfg.UploadMaxBytes)

	authMw := appmw.NewAuthMiddleware(d.Verifier)
	auth := authMw.RequireAuth
	limiter := appmw.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, d.Metrics.RateLimited)
	write := []echo.MiddlewareFunc{auth, limiter.Middleware}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    cfg.GitSHA,
			"build_time": cfg.BuildTime,
		})
	})
	e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))

	api := e.Group("/api")

	api.POST("/me/profile", profileHandler.Register, write...)
	api.GET("/me", profileHandler.Me, auth)
	api.PUT("/me", profileHandler.UpdateMe, write...)
	api.GET("/users", profileHandler.GetMany)
	api.GET("/users/:uid", profileHandler.Get)
	api.GET("/users/:uid/ratings", profileHandler.Ratings)

	api.GET("/listings", listingHandler.List)
	api.GET("/listings/:id", listingHandler.Get)
	api.POST("/listings", listingHandler.Create, write...)
	api.PUT("/listings/:id", listingHandler.Update, write...)
	api.DELETE("/listings/:id", listingHandler.Delete, write...)
	api.GET("/me/listings", listingHandler.ListMine, auth)
	api.POST("/listings/:id/interest", listingHandler.Interest, write...)

	api.GET("/requests", requestHandler.List)
	api.GET("/requests/:id", requestHandler.Get)
	api.POST("/requests", requestHandler.Create, write...)
	api.DELETE("/requests/:id", requestHandler.Delete, write...)
	api.POST("/requests/:id/close", requestHandler.Close, write...)
	api.GET("/me/requests", requestHandler.ListMine, auth)
	api.POST("/requests/:id/offer", requestHandler.Offer, write...)

	api.GET("/me/matches", matchHandler.ListMine, auth)
	api.GET("/matches/:id", matchHandler.Get, auth)
	api.POST("/matches/:id/schedule", matchHandler.Schedule, write...)
	api.POST("/matches/:id/complete", matchHandler.Complete, write...)
	api.POST("/matches/:id/cancel", matchHandler.Cancel, write...)
	api.GET("/matches/:id/messages", messageHandler.List, auth)
	api.POST("/matches/:id/messages", messageHandler.Send, write...)
	api.GET("/matches/:id/ratings", ratingHandler.ListForMatch, auth)
	api.POST("/matches/:id/ratings", ratingHandler.Create, write...)

	api.GET("/me/notifications", notificationHandler.List, auth)
	api.POST("/notifications/:id/read", notificationHandler.MarkRead, auth)
	api.POST("/me/notifications/read", notificationHandler.MarkAllRead, auth)

	api.POST("/uploads/listing-images", uploadHandler.ListingImage, write...)

	if d.Hub != nil {
		allow := originAllowed(cfg.AllowedOriginSuffixes)
		ws := realtime.NewHandler(d.Hub, topicAuthorizer(matchSvc), func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			ok, _ := allow(origin)
			return ok
		}, d.Metrics.Connections())
		api.GET("/realtime", ws.Serve, auth)
	}

	return &Server{
		e: e,
		repos: []dbSetter{
			profileRepo, listingRepo, requestRepo, matchRepo,
			messageRepo, ratingRepo, notificationRepo,
		},
		requests: requestSvc,
		limiter:  limiter,
	}
}

func (s *Server) Start(addr string) error {
	err := s.e.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// SetDB hands a late connection to every repository.
func (s *Server) SetDB(db *gorm.DB) {
	for _, r := range s.repos {
		r.SetDB(db)
	}
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// NeedRequests is the service the expiry worker sweeps.
func (s *Server) NeedRequests() service.NeedRequestService {
	return s.requests
}

func (s *Server) RateLimiter() *appmw.RateLimiter {
	return s.limiter
}

// topicAuthorizer lets users follow their own inbox and matches they take part in.
func topicAuthorizer(matches service.MatchService) realtime.Authorizer {
	return func(ctx context.Context, uid string, topic realtime.Topic) error {
		switch topic.Kind {
		case realtime.KindUser:
			if topic.UID != uid {
				return service.ErrForbidden
			}
			return nil
		case realtime.KindMatch:
			_, err := matches.Get(ctx, topic.MatchID, uid)
			return err
		}
		return service.ErrForbidden
	}
}

func originAllowed(suffixes []string) func(origin string) (bool, error) {
	return func(origin string) (bool, error) {
		low := strings.ToLower(origin)
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true, nil
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false, nil
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return false, nil
		}
		host := strings.ToLower(u.Hostname())
		for _, suffix := range suffixes {
			suffix = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(suffix)), ".")
			if suffix == "" {
				continue
			}
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true, nil
			}
		}
		return false, nil
	}
}

// requestContext copies the echo request id into the request context so
// services can log it.
func requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rid := c.Response().Header().Get(echo.HeaderXRequestID)
		if rid != "" {
			req := c.Request()
			c.SetRequest(req.WithContext(reqctx.WithRequestID(req.Context(), rid)))
		}
		return next(c)
	}
}

func accessLog() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			uid, _ := c.Get("uid").(string)
			entry := logrus.WithFields(logrus.Fields{
				"method":     v.Method,
				"uri":        redactURI(v.URI),
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"rid":        v.RequestID,
				"uid":        uid,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Warn("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	})
}

// redactURI masks a token passed in the query string before it is logged.
func redactURI(raw string) string {
	path, query, found := strings.Cut(raw, "?")
	if !found {
		return raw
	}
	q, err := url.ParseQuery(query)
	if err != nil {
		return path
	}
	if !q.Has(appmw.AccessTokenParam) {
		return raw
	}
	q.Set(appmw.AccessTokenParam, "REDACTED")
	return path + "?" + q.Encode()
}
