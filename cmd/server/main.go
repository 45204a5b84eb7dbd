package main

import (
	"log"
	"strings"
	"time"

	"github.com/BarryBaker/GG/internal/agent"
	"github.com/BarryBaker/GG/internal/config"
	"github.com/BarryBaker/GG/internal/handler"
	"github.com/BarryBaker/GG/internal/model"
	"github.com/BarryBaker/GG/internal/repository"
	"github.com/BarryBaker/GG/internal/service"
	"github.com/BarryBaker/GG/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("✅ Database ready")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisClient = redis.NewClient(opt)
		log.Println("✅ Redis view cache enabled")
	}

	repo := repository.NewLeaderboardRepository(db)
	cache := service.NewViewCache(redisClient, time.Minute)

	ingestService := service.NewIngestService(repo, cache)
	leaderboardService := service.NewLeaderboardService(repo, cache)
	leaderboardHandler := handler.NewLeaderboardHandler(leaderboardService, cfg)

	router := gin.New()
	setupCORS(router, cfg.AllowedOrigins)
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	api := router.Group("/api")
	{
		api.GET("/health", leaderboardHandler.Health)
		api.GET("/last_update", leaderboardHandler.GetLastUpdate)
		api.GET("/leaderboards", leaderboardHandler.GetLeaderboards)
		api.GET("/leaderboards/:name/view", leaderboardHandler.GetLeaderboardView)
		api.GET("/leaderboards/:name/top", leaderboardHandler.GetTopPlayers)
		api.GET("/leaderboards/:name/players/:player", leaderboardHandler.GetPlayerHistory)
	}

	if cfg.ScrapeURL != "" {
		scheduler := agent.NewScheduler()
		scheduler.RegisterAgent(agent.NewLeaderboardScraper(ingestService, cfg.ScrapeURL, cfg.ScrapeSchedule))
		scheduler.Start()
		defer scheduler.Stop()
	} else {
		log.Println("📝 SCRAPE_URL not set, running read-only")
	}

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Leaderboard{},
		&model.Player{},
		&model.UpdateBatch{},
		&model.Fact{},
	)
}

func setupCORS(router *gin.Engine, allowedOrigins string) {
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
