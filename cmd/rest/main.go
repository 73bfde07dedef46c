package main

import (
	"context"
	"log"

	"persona-chat-be/internal/bootstrap"
	"persona-chat-be/internal/config"
	"persona-chat-be/internal/server"
	"persona-chat-be/internal/tracer"
	"persona-chat-be/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Title Consumer...")
		if err := container.TitleConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Title Consumer Error: %v", err)
		}
	}()
	go func() {
		log.Println("Background: Starting Title Sweep...")
		container.TitleSummarizer.RunSweep(context.Background())
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
