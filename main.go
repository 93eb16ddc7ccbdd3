package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PosPrint/app/config"
	"PosPrint/app/database"
	"PosPrint/app/models"
	"PosPrint/app/services"
	"PosPrint/app/websocket"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// .env is optional; environment variables win over config.json
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := services.NewLoggerService(cfg.System.DataPath)
	defer logger.Close()

	if err := database.InitializeWithConfig(cfg); err != nil {
		logger.LogError("Database initialization failed", err)
		os.Exit(1)
	}
	defer database.Close()

	db := database.GetDB()

	var business models.BusinessConfig
	if err := db.First(&business).Error; err != nil {
		logger.LogError("Failed to load business configuration", err)
		os.Exit(1)
	}

	printerService := services.NewPrinterService(db)
	dispatcher := services.NewPrintDispatcher(db, printerService)
	receiptService := services.NewReceiptService(&business, dispatcher)

	wsServer := websocket.NewServer(cfg.System.WSPort)
	wsServer.SetHandlers(websocket.NewRESTHandlers(db, dispatcher, receiptService, printerService))
	dispatcher.SetNotifier(wsServer)

	go func() {
		defer logger.RecoverPanic("websocket server")
		if err := wsServer.Start(); err != nil {
			logger.LogError("WebSocket server stopped", err)
		}
	}()

	if cfg.System.AnnounceService {
		if err := wsServer.Announce(business.Name + " Print Agent"); err != nil {
			logger.LogWarning("mDNS announce failed", err.Error())
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runDiscovery(ctx, db, logger)
	go runJobWorker(ctx, dispatcher, logger, cfg.System.JobPollSeconds)

	if cfg.FirstRun {
		cfg.FirstRun = false
		if err := cfg.Save(); err != nil {
			logger.LogWarning("Could not persist configuration", err.Error())
		}
	}

	logger.LogInfo("Print agent started", business.Name)

	// Run until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.LogInfo("Shutting down", sig.String())
	cancel()
	wsServer.Stop()
}

// runDiscovery scans for printers at startup and registers new devices as
// inactive entries for the operator to enable
func runDiscovery(ctx context.Context, db *gorm.DB, logger *services.LoggerService) {
	defer logger.RecoverPanic("printer discovery")

	var existing []models.PrinterConfig
	if err := db.Find(&existing).Error; err != nil {
		logger.LogError("Discovery: could not load printer registry", err)
		return
	}

	detector := services.NewPrinterDetector()
	found := detector.Discover(ctx, existing)
	if len(found) == 0 {
		logger.LogInfo("Discovery finished", "no new printers found")
		return
	}

	for _, p := range found {
		printer := models.PrinterConfig{
			Name:       p.Name,
			Transport:  p.Transport,
			Address:    p.Address,
			Port:       p.Port,
			Model:      p.Model,
			Role:       p.Role,
			PaperWidth: p.PaperWidth,
			IsActive:   false,
			AutoCut:    true,
		}
		if err := db.Create(&printer).Error; err != nil {
			logger.LogError("Discovery: could not register printer "+p.Name, err)
			continue
		}
		logger.LogInfo("Discovered printer", p.Name+" ("+p.Transport+" "+p.Address+")")
	}
}

// runJobWorker drains the pending print queue on a fixed interval so jobs
// queued while printers were unreachable eventually print
func runJobWorker(ctx context.Context, dispatcher *services.PrintDispatcher, logger *services.LoggerService, pollSeconds int) {
	defer logger.RecoverPanic("job worker")

	ticker := time.NewTicker(time.Duration(pollSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			printed, err := dispatcher.ProcessPendingJobs()
			if err != nil {
				logger.LogError("Job worker pass failed", err)
				continue
			}
			if printed > 0 {
				logger.LogInfo("Job worker", fmt.Sprintf("printed %d queued jobs", printed))
			}
		}
	}
}
