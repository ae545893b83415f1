package server

import (
	"encoding/json"
	"time"

	"github.com/Sabathrodriguez/trunV3/internal/auth"
	"github.com/Sabathrodriguez/trunV3/internal/channel"
	"github.com/Sabathrodriguez/trunV3/internal/config"
	"github.com/Sabathrodriguez/trunV3/internal/leaderboard"
	"github.com/Sabathrodriguez/trunV3/internal/live"
	"github.com/Sabathrodriguez/trunV3/internal/routes"
	"github.com/Sabathrodriguez/trunV3/internal/shared/ratelimit"
	"github.com/Sabathrodriguez/trunV3/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
	Live   *live.Registry
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	hub := stream.NewHub(redisClient)

	var ch live.Channel = live.NopChannel{}
	if redisClient != nil {
		ch = channel.NewRedis(redisClient)
	}

	registry := live.NewRegistry(ch, func(routeKey string, participants []live.Participant) {
		ranked := leaderboard.RankLive(participants)
		if ranked == nil {
			ranked = []live.Participant{}
		}
		payload, err := json.Marshal(ranked)
		if err != nil {
			return
		}
		hub.Broadcast(routeKey, payload)
	})

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: hub,
		Live:   registry,
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)
	limiter := ratelimit.NewPerKey(s.Cfg.PublishRPS, s.Cfg.PublishBurst, 10*time.Minute)

	live.RegisterRoutes(s.App.Group("/live"), s.Live, limiter, leaderboard.RankLive, jwtMiddleware)
	leaderboard.RegisterRoutes(s.App.Group("/leaderboard"), leaderboard.NewService(s.DB), jwtMiddleware)
	routes.RegisterRoutes(s.App.Group("/routes"), routes.NewService(s.DB), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
