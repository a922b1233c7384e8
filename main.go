package main

import (
	"log"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := NewLogger(cfg.LogFormat)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	rooms := NewRoomRegistry(logger)
	players := NewPlayerRegistry(logger)
	ai := NewBotAI(logger)
	engine := NewEngine(ai, logger)
	bots := NewBotService(rooms, players, ai, logger)

	hub := NewHub(rooms, players, engine, bots, *cfg, logger)
	hub.StartSweeps()
	defer hub.Shutdown()

	router := NewRouter(hub, rooms, engine, *cfg, logger)
	logger.Infow("server listening", "addr", cfg.Addr)
	if err := router.Run(cfg.Addr); err != nil {
		logger.Fatalw("server exited", "err", err)
	}
}
