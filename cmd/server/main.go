package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/printdesk/printdesk/internal/api/handlers"
	"github.com/printdesk/printdesk/internal/api/middleware"
	"github.com/printdesk/printdesk/internal/config"
	"github.com/printdesk/printdesk/internal/core"
	"github.com/printdesk/printdesk/internal/db"
	"github.com/printdesk/printdesk/internal/notify"
	"github.com/printdesk/printdesk/internal/printer"
	"github.com/printdesk/printdesk/internal/storage"
	"github.com/printdesk/printdesk/internal/webhook"
)

func main() {
	configPath := flag.String("config", "printdesk.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}
	if err := db.Init(db.Config{Path: cfg.Database.Path}); err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	store, err := storage.NewDiskStore(cfg.Storage.UploadDir)
	if err != nil {
		log.Fatalf("failed to init storage: %v", err)
	}

	database := db.GetDB()
	ledger := core.NewLedger(database)
	queue := core.NewQueue(database, ledger)
	registry := core.NewRegistry(database)
	executor := printer.NewLP(store.Path)
	dispatcher := core.NewDispatcher(database, ledger, registry, executor)

	notifier := notify.NewRegistry()
	hooks := webhook.NewSender(cfg.Webhooks)
	defer hooks.Stop()

	auth := middleware.NewAuthMiddleware(cfg.Auth.Secret, cfg.Auth.TokenDuration)

	userHandler := handlers.NewUserHandler(ledger, auth)
	printingHandler := handlers.NewPrintingHandler(queue, store, storage.PDFPageCounter{}, notifier, hooks)
	terminalHandler := handlers.NewTerminalHandler(registry, dispatcher, notifier, hooks)
	adminHandler := handlers.NewAdminHandler(ledger, registry, notifier)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	user := router.Group("/user")
	{
		user.POST("/register", userHandler.Register)
		user.POST("/login", userHandler.Login)
		user.GET("/profile", auth.RequireAuth(), userHandler.Profile)
	}

	api := router.Group("/api", auth.RequireAuth())
	{
		api.POST("/upload", printingHandler.Upload)
		api.GET("/cost", printingHandler.Cost)
		api.GET("/queue", printingHandler.Queue)
		api.POST("/delete", printingHandler.Delete)
		api.POST("/priority", printingHandler.Priority)
		api.GET("/history", printingHandler.History)
		api.GET("/terminals", printingHandler.Terminals)
	}
	router.GET("/api/download/:fileId", printingHandler.Download)

	terminal := router.Group("/terminal")
	{
		terminal.POST("/ping", terminalHandler.Ping)
		terminal.POST("/update", terminalHandler.Update)
		terminal.POST("/scan", terminalHandler.Scan)
	}

	admin := router.Group("/admin", middleware.RequireAdminKey(cfg.Auth.AdminKey))
	{
		admin.POST("/terminals", adminHandler.ProvisionTerminal)
		admin.PUT("/terminals/:id", adminHandler.UpdateTerminal)
		admin.POST("/credit", adminHandler.Credit)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("printdesk listening on :%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
}
