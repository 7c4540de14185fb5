package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"pageflow/backend/internal/api/routes"
	"pageflow/backend/internal/config"
	"pageflow/backend/internal/recorder"
	"pageflow/backend/internal/services"
	"pageflow/backend/pkg/auth"
	"pageflow/backend/pkg/database"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	auth.InitJWT(cfg.JWT.Secret)

	if err := database.InitDatabase(cfg); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	recorder.Configure(cfg.Recorder)

	if err := services.InitSweeper(cfg.Recorder.MaxSessionMinutes); err != nil {
		log.Fatal("Failed to initialize session sweeper:", err)
	}

	gin.SetMode(cfg.Server.Mode)

	router := routes.SetupRoutes(cfg)

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Shutting down server...")

		if services.GlobalSweeper != nil {
			services.GlobalSweeper.Stop()
		}

		log.Println("Server shutdown complete")
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
