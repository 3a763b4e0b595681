package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/napryag/clinic_booking_bot/pkg/clinic"
	"github.com/napryag/clinic_booking_bot/pkg/domain/bot/receiver"
	"github.com/napryag/clinic_booking_bot/pkg/domain/bot/receiver/config"
	"github.com/napryag/clinic_booking_bot/pkg/domain/bot/receiver/store"
	"github.com/napryag/clinic_booking_bot/pkg/domain/bot/sender"
	"github.com/napryag/clinic_booking_bot/pkg/repository/model"
	"github.com/napryag/clinic_booking_bot/pkg/utils/errs"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Err(errs.New("failed to load config").Wrap(err)).Msg("config init")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := clinic.NewClient(cfg.BackendURL, cfg.HTTPTimeout(), logger)
	if err != nil {
		logger.Error().Err(err).Msg("create clinic client")
		return
	}
	if err := api.Login(ctx, cfg.ClinicEmail, cfg.ClinicPass); err != nil {
		logger.Error().Err(err).Msg("clinic login")
		return
	}
	logger.Info().Str("backend", cfg.BackendURL).Msg("authenticated against clinic api")

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("create bot api")
		return
	}
	bot.Debug = false
	logger.Info().Str("bot", bot.Self.UserName).Msg("authorized")

	var sessions model.Repo
	if cfg.PostgreAddr != "" {
		repo, err := store.NewRepo(ctx, cfg.PostgreAddr)
		if err != nil {
			logger.Error().Err(err).Msg("connect session store")
			return
		}
		defer repo.Close()
		sessions = repo
		logger.Info().Msg("session persistence enabled")
	}

	var notify receiver.Notifier
	var senderCfg sender.ProcessorConfig
	if err := senderCfg.LoadFromEnv(); err == nil {
		notify = sender.New(senderCfg, logger, bot)
	} else {
		logger.Info().Msg("channel announcements disabled")
	}

	handler := receiver.NewHandler(bot, api, receiver.NewStore(), sessions, notify, logger)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 10
	updates := bot.GetUpdatesChan(u)

	// Stop long polling on SIGINT/SIGTERM; the updates channel closes and
	// the loop below drains.
	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down bot")
		bot.StopReceivingUpdates()
	}()

	for update := range updates {
		handler.HandleUpdate(ctx, update)
	}
	logger.Info().Msg("bot stopped")
}
