package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tap-terminal/internal/config"
	"tap-terminal/internal/handlers"
	"tap-terminal/internal/interfaces"
	"tap-terminal/internal/models"
	"tap-terminal/internal/services"
	"tap-terminal/internal/session"
	"tap-terminal/internal/sessioncache"
	"tap-terminal/internal/sound"
	"tap-terminal/internal/telemetry"
	"tap-terminal/internal/transport"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)

	tel, err := telemetry.New(cfg.Server.Verbose)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer tel.Sync()

	tel.Log.Info("Starting tap terminal",
		zap.String("store", cfg.Store.Name),
		zap.Bool("standalone", cfg.StandaloneMode))

	cache := sessioncache.New(cfg.Redis.Addr, tel.Log)

	// External collaborators, mock or real per mode.
	svc := services.CreateServices(cfg, cache, tel)

	scanners := map[models.Transport]interfaces.TransportScanner{
		models.TransportNFC:   transport.NewNFCScanner(svc.Reader, tel.Log),
		models.TransportSound: transport.NewSoundScanner(svc.Receiver, tel.Log),
	}

	callbacks := session.Callbacks{
		OnSuccess: func(txHash, receiptID string) {
			tel.Log.Info("payment accepted",
				zap.String("tx_hash", txHash),
				zap.String("receipt_id", receiptID))
		},
		OnNotRegistered: func() {
			tel.Log.Info("payer not registered, signup required")
		},
		OnError: func(message string) {
			tel.Log.Warn("payment error", zap.String("error", message))
		},
	}

	controller := session.NewController(cfg.Store.ID, scanners, svc.Settlement, svc.Ack, callbacks, tel)
	issuer := sound.NewIssuer(svc.Tokens, svc.Broadcaster,
		time.Duration(cfg.Sound.ResetWindowSeconds)*time.Second, tel)
	redeemer := sound.NewRedeemer(svc.Tokens, svc.Settlement, callbacks, tel)

	handler := handlers.NewTerminalHandler(controller, issuer, redeemer, cfg)

	var router *gin.Engine
	if cfg.Server.Verbose {
		gin.SetMode(gin.DebugMode)
		router = gin.Default()
	} else {
		gin.SetMode(gin.ReleaseMode)
		router = gin.New()
		router.Use(gin.Recovery())
	}

	apiGroup := router.Group("/api")
	{
		apiGroup.GET("/transports", handler.Transports)

		payment := apiGroup.Group("/payment")
		{
			payment.POST("/start", handler.StartPayment)
			payment.POST("/cancel", handler.CancelPayment)
			payment.POST("/reset", handler.ResetPayment)
			payment.GET("/status", handler.PaymentStatus)
		}

		soundGroup := apiGroup.Group("/sound")
		{
			soundGroup.POST("/broadcast", handler.SoundBroadcast)
			soundGroup.POST("/cancel", handler.SoundCancel)
			soundGroup.GET("/status", handler.SoundStatus)
			soundGroup.GET("/redeem/:token", handler.SoundRedeemInfo)
			soundGroup.POST("/pay", handler.SoundPay)
		}
	}

	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(tel.MetricsHandler()))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	tel.Log.Info("Terminal listening", zap.String("addr", addr))

	if err := router.Run(addr); err != nil {
		tel.Log.Fatal("Failed to start server", zap.Error(err))
	}
}
