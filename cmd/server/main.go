package main

import (
	"chatserver/internal/config"
	"chatserver/internal/db"
	clog "chatserver/internal/log"
	"chatserver/internal/server"
	"chatserver/internal/service"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	activitySvc := service.NewActivityService(gdb)
	userSvc := service.NewUserService(gdb, cfg, activitySvc)
	chatSvc := service.NewChatService(gdb)
	msgSvc := service.NewMessageService(gdb)

	stop := make(chan struct{})
	defer close(stop)
	go userSvc.RunReaper(stop)

	h := server.NewHandler(userSvc, chatSvc, msgSvc, activitySvc)
	r := server.SetupRouter(cfg, h)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
