package main

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"restkit/internal/broadcast"
	"restkit/internal/config"
	"restkit/internal/db"
	"restkit/internal/handlers"
	"restkit/internal/middleware"
	"restkit/internal/router"
	"restkit/internal/stories"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using system env vars")
	}
	cfg := config.Load()

	gdb, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := db.Migrate(gdb); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}
	if cfg.SeedDevData {
		db.SeedDev(gdb, log)
	}

	hub := broadcast.NewHub(log)

	storySvc := stories.NewStoryService(gdb, log)
	commentSvc := stories.NewCommentService(gdb, hub, log)
	reactionSvc := stories.NewReactionService(gdb, log)

	r := gin.Default()
	store := cookie.NewStore([]byte(cfg.SessionSecret))
	r.Use(sessions.Sessions("restkit_session", store))
	r.Use(middleware.LoadCaller())

	router.RegisterRoutes(r, router.Handlers{
		Auth:     handlers.NewAuthHandler(gdb),
		Story:    handlers.NewStoryHandler(storySvc),
		Comment:  handlers.NewCommentHandler(commentSvc),
		Reaction: handlers.NewReactionHandler(reactionSvc),
		WS:       handlers.NewWSHandler(hub),
	})

	log.WithField("port", cfg.Port).Info("restkit server starting")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
