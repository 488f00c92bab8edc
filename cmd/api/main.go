package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"camera-kingdom/internal/app"
	"camera-kingdom/internal/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	gin.SetMode(gin.ReleaseMode)

	application, err := app.NewApplication(context.Background(), cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer application.Shutdown()

	if err := application.Run(); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
