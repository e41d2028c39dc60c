package handlers

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/suPer8Hu/providentia/internal/chat"
	"github.com/suPer8Hu/providentia/internal/config"
)

type Handler struct {
	DB    *gorm.DB
	Cfg   config.Config
	Redis *redis.Client
	Repo  *chat.Repo
	Orch  *chat.Orchestrator
}

func NewHandler(db *gorm.DB, cfg config.Config, rdb *redis.Client, orch *chat.Orchestrator) *Handler {
	return &Handler{
		DB:    db,
		Cfg:   cfg,
		Redis: rdb,
		Repo:  chat.NewRepo(db),
		Orch:  orch,
	}
}
