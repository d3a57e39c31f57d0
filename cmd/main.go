package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"
	slackgo "github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"standup-bot/handler"
	appconfig "standup-bot/internal/config"
	"standup-bot/internal/integrations/paramstore"
	"standup-bot/internal/integrations/slack"
	"standup-bot/internal/logging"
	"standup-bot/internal/repository"
	"standup-bot/internal/scheduler"
	"standup-bot/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	cfg, err := appconfig.Load(os.Getenv(appconfig.PathEnv))
	if err != nil {
		fatal(zerolog.New(os.Stderr), "failed to load config", err)
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fatal(zerolog.New(os.Stderr), "failed to build logger", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal(log, "invalid config", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		fatal(log, "invalid timezone", err)
	}
	occurrences, err := scheduler.ParseOccurrences(cfg.Schedule.Occurrences)
	if err != nil {
		fatal(log, "invalid schedule", err)
	}

	// ---- Credentials and AWS clients ----
	var archive *repository.Client
	tokens := paramstore.Tokens{}
	if cfg.NeedsAWS() {
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			fatal(log, "failed to load AWS config", err)
		}
		if cfg.Slack.ParamPrefix != "" {
			ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
			if err != nil {
				fatal(log, "failed to create SSM client", err)
			}
			tokens, err = ssmClient.SlackTokens(ctx, cfg.Slack.ParamPrefix)
			if err != nil {
				fatal(log, "failed to read slack tokens", err)
			}
		}
		if cfg.Archive.Table != "" {
			archive, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Archive.Table, cfg.Archive.TTL)
			if err != nil {
				fatal(log, "failed to create report archive", err)
			}
		}
	}
	if cfg.Slack.ParamPrefix == "" {
		tokens.Bot, tokens.App, err = appconfig.TokensFromEnv()
		if err != nil {
			fatal(log, "missing slack credentials", err)
		}
	}

	// ---- Slack ----
	api := slackgo.New(tokens.Bot, slackgo.OptionAppLevelToken(tokens.App))
	smClient := socketmode.New(api)
	slackClient, err := slack.New(api,
		slack.WithRateLimit(rate.Limit(cfg.Slack.RatePerSecond), cfg.Slack.RateBurst),
		slack.WithLogger(log.With().Str("component", "slack").Logger()),
	)
	if err != nil {
		fatal(log, "failed to create slack client", err)
	}
	selfID, err := slackClient.SelfUserID(ctx)
	if err != nil {
		fatal(log, "slack auth test failed", err)
	}

	// ---- Conversation engine ----
	engineOpts := []usecase.EngineOption{
		usecase.WithQuestions(cfg.Conversation.Questions),
		usecase.WithGreeting(cfg.Conversation.Greeting),
		usecase.WithRestartPolicy(usecase.RestartPolicy(cfg.Conversation.RestartPolicy)),
		usecase.WithLogger(log.With().Str("component", "engine").Logger()),
	}
	if archive != nil {
		engineOpts = append(engineOpts, usecase.WithArchive(archive))
	}
	engine, err := usecase.NewEngine(slackClient, repository.NewMemoryStore(), cfg.Slack.ChannelID, engineOpts...)
	if err != nil {
		fatal(log, "failed to create engine", err)
	}

	runner, err := usecase.NewRoundRunner(slackClient, engine, cfg.Slack.ChannelID, cfg.Conversation.FanOut,
		log.With().Str("component", "round").Logger())
	if err != nil {
		fatal(log, "failed to create round runner", err)
	}
	sched, err := scheduler.New(occurrences, func(ctx context.Context) { runner.Run(ctx) },
		scheduler.WithLocation(loc),
		scheduler.WithInterval(cfg.Schedule.Interval),
		scheduler.WithLogger(log.With().Str("component", "scheduler").Logger()),
	)
	if err != nil {
		fatal(log, "failed to create scheduler", err)
	}

	// ---- Inbound ----
	dispatcher, err := handler.NewDispatcher(engine, log.With().Str("component", "dispatcher").Logger())
	if err != nil {
		fatal(log, "failed to create dispatcher", err)
	}
	h, err := handler.NewHandler(dispatcher, smClient, selfID, log.With().Str("component", "handler").Logger())
	if err != nil {
		fatal(log, "failed to create handler", err)
	}

	log.Info().
		Str("channel_id", cfg.Slack.ChannelID).
		Strs("occurrences", cfg.Schedule.Occurrences).
		Str("timezone", loc.String()).
		Bool("archive", archive != nil).
		Msg("standup bot starting")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return smClient.RunContext(gctx) })
	g.Go(func() error { return h.Serve(gctx, smClient.Events) })
	g.Go(func() error { return sched.Run(gctx) })
	err = g.Wait()

	dispatcher.Close()
	sched.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		fatal(log, "standup bot stopped", err)
	}
	log.Info().Msg("standup bot stopped")
}

func fatal(log zerolog.Logger, msg string, err error) {
	log.Error().Err(err).Msg(msg)
	os.Exit(1)
}
