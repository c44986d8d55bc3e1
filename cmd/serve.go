package cmd

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"aiinterviewer/internal/api"
	"aiinterviewer/internal/audio"
	"aiinterviewer/internal/config"
	"aiinterviewer/internal/interview"
	"aiinterviewer/internal/llm"
	"aiinterviewer/internal/logger"
	"aiinterviewer/internal/redis"
	"aiinterviewer/internal/storage"
	"aiinterviewer/internal/transcribe"
	"aiinterviewer/internal/vacancy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the interview HTTP server",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("address", "a", "", "listen address, overrides server.address")
	viper.BindPFlag("server.address", serveCmd.Flags().Lookup("address"))
}

func serve() {
	ctx := context.Background()

	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer zl.Sync()

	cfg, err := config.Unmarshal(viper.GetViper())
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}

	zl.Info("starting the ai-interviewer", zap.String("version", version))

	db, err := storage.Open(cfg.Database)
	if err != nil {
		zl.Fatal("open database", zap.Error(err))
	}
	defer db.Close()
	if err := storage.Migrate(db, cfg.Database.Driver); err != nil {
		zl.Fatal("migrate database", zap.Error(err))
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis)
		if err != nil {
			zl.Fatal("create redis client", zap.Error(err))
		}
		defer cache.Close()
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM, zl)
	if err != nil {
		zl.Fatal("init llm client", zap.Error(err))
	}
	transcriber, err := transcribe.NewGateway(ctx, cfg.Transcription, zl)
	if err != nil {
		zl.Fatal("init transcription gateway", zap.Error(err))
	}

	service := interview.NewService(
		storage.NewSessionStore(db),
		llmClient,
		vacancy.NewFetcher(cache, zl),
		audio.NewValidator(audio.Limits{
			MaxSizeBytes:  cfg.Audio.MaxSizeBytes,
			MinSampleRate: cfg.Audio.MinSampleRate,
			MaxSampleRate: cfg.Audio.MaxSampleRate,
		}),
		transcriber,
		cfg.Interview.DefaultNumQuestions,
		zl,
	)

	if !viper.GetBool("debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	api.NewHandler(service, zl).RegisterRoutes(router)

	zl.Info("listening", zap.String("address", cfg.Server.Address))
	if err := router.Run(cfg.Server.Address); err != nil {
		zl.Fatal("http server", zap.Error(err))
	}
}
