package server

import (
	"log"

	"spotwalk/internal/auth"
	"spotwalk/internal/config"
	"spotwalk/internal/history"
	"spotwalk/internal/location"
	"spotwalk/internal/spot"
	"spotwalk/internal/stream"
	"spotwalk/internal/walk"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	Store  history.Store
	Redis  *redis.Client
	Feed   *location.Feed
	Stream *stream.Hub
	Walks  *walk.Service
}

func NewServer(cfg config.Config, store history.Store, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	sampling, ok := spot.ParseSampling(cfg.SpotSampling)
	if !ok {
		log.Printf("unknown spot sampling %q, using %s", cfg.SpotSampling, spot.SamplingRadial)
		sampling = spot.SamplingRadial
	}

	// a nil store must stay a nil interface
	var recorder walk.Recorder
	if store != nil {
		recorder = store
	}

	feed := location.NewFeed()
	hub := stream.NewHub(redisClient)
	walks := walk.NewService(
		walk.RulesFromConfig(cfg),
		spot.NewGenerator(nil, sampling),
		recorder,
		feed,
		walk.WithPublisher(hub),
		walk.WithTickInterval(cfg.TickInterval),
	)

	s := &Server{
		App:    app,
		Cfg:    cfg,
		Store:  store,
		Redis:  redisClient,
		Feed:   feed,
		Stream: hub,
		Walks:  walks,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"store":  s.Cfg.StoreDriver,
			"redis":  s.Redis != nil,
		})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.APISecret, s.Cfg.DeviceID)

	location.RegisterRoutes(s.App.Group("/location"), s.Feed, jwtMiddleware)
	walk.RegisterRoutes(s.App.Group("/walks"), s.Walks, jwtMiddleware)
	if s.Store != nil {
		history.RegisterRoutes(s.App.Group("/history"), s.Store, jwtMiddleware)
	}
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, s.Walks.SnapshotJSON)
}

// Close stops the live walk and the stream subscription. The store and redis
// client belong to the caller.
func (s *Server) Close() {
	s.Walks.Close()
	s.Stream.Close()
}
