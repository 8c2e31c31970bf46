package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	discordadapter "github.com/jose-valero/invite-tracker-bot/internal/adapters/discord"
	"github.com/jose-valero/invite-tracker-bot/internal/app/service"
	"github.com/jose-valero/invite-tracker-bot/internal/domain"
	"github.com/jose-valero/invite-tracker-bot/internal/infra/config"
	"github.com/jose-valero/invite-tracker-bot/internal/infra/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.Environment)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	// DB
	db, err := storage.Open(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("no pude abrir la DB", zap.Error(err))
	}
	defer db.Close()
	if err := storage.Migrate(db); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("✅ DB lista y migrada")

	repo := storage.NewStateRepo(db)

	// Estado: restauramos lo persistido; si falla arrancamos de cero
	bot := domain.NewBotState()
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), 10*time.Second)
	snaps, err := repo.Load(loadCtx)
	cancelLoad()
	if err != nil {
		logger.Warn("no pude restaurar el estado, arranco vacío", zap.Error(err))
	} else {
		bot.Restore(snaps)
		logger.Info("estado restaurado", zap.Int("guilds", len(snaps)))
	}

	// Discord session
	auth := cfg.DiscordToken
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(auth)), "bot ") {
		auth = "Bot " + strings.TrimSpace(auth)
	}
	s, err := discordgo.New(auth)
	if err != nil {
		logger.Fatal("sesión discord", zap.Error(err))
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildInvites |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	// Services + router
	platform := discordadapter.NewPlatform(s)
	tracker := service.NewTrackerService(logger.With(zap.String("feature", "tracker")), platform, bot, cfg.OperatorID)
	rank := service.NewRankService(logger.With(zap.String("feature", "rank")), platform, bot, repo)
	router := discordadapter.NewRouter(s, logger.With(zap.String("feature", "router")), platform, tracker, rank)
	router.Handlers()

	if err := s.Open(); err != nil {
		logger.Fatal("no pude conectar al gateway", zap.Error(err))
	}
	defer s.Close()
	logger.Info("✅ conectado", zap.String("user", s.State.User.Username), zap.String("id", s.State.User.ID))

	// Autosave periódico
	stopAutosave := make(chan struct{})
	go func() {
		t := time.NewTicker(cfg.AutosaveInterval)
		defer t.Stop()
		for {
			select {
			case <-stopAutosave:
				return
			case <-t.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := repo.Save(ctx, bot.Snapshot()); err != nil {
					logger.Warn("autosave falló", zap.Error(err))
				}
				cancel()
			}
		}
	}()

	// Esperar señal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-stop
	close(stopAutosave)

	// Save final acotado en tiempo: si no llega, salimos igual
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownSaveTimeout)
	defer cancel()
	if err := repo.Save(ctx, bot.Snapshot()); err != nil {
		logger.Error("save final falló", zap.Error(err))
	} else {
		logger.Info("💾 estado guardado, chau")
	}
}

func newLogger(environment string) (*zap.Logger, error) {
	if environment == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
