package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/claude/heytrainer/internal/config"
	"github.com/claude/heytrainer/internal/observe"
	"github.com/claude/heytrainer/internal/outbox"
	"github.com/claude/heytrainer/internal/replay"
	"github.com/claude/heytrainer/internal/storage"
)

type phraseList []string

func (p *phraseList) String() string { return strings.Join(*p, ",") }

func (p *phraseList) Set(v string) error {
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*p = append(*p, s)
		}
	}
	return nil
}

func main() {
	routinePath := flag.String("routine", "", "path to routine YAML file (required)")
	transcriptPath := flag.String("transcripts", "-", "transcript file, one update per line; - reads stdin")
	phonetic := flag.Float64("phonetic", 0, "enable sound-alike trigger matching at this similarity (0 disables)")
	persist := flag.Bool("persist", false, "save the finished workout log to the database")
	configPath := flag.String("config", "config.yaml", "path to config file, used with -persist")
	login := flag.String("login", "", "user the saved log belongs to (default: auth.dev_login)")
	verbose := flag.Bool("v", false, "log every transcript line")
	var phrases phraseList
	flag.Var(&phrases, "phrase", "extra trigger phrase; repeatable or comma-separated")
	flag.Parse()

	// stdout carries the JSON result.
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *routinePath == "" {
		fmt.Fprintf(os.Stderr, "Usage: heytrainer-replay -routine push.yaml [-transcripts session.txt] [-phrase 'yo coach'] [-persist -config config.yaml]\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	routine, err := replay.LoadRoutine(*routinePath)
	if err != nil {
		log.Error("invalid routine", "path", *routinePath, "error", err)
		os.Exit(1)
	}

	var in io.Reader = os.Stdin
	if *transcriptPath != "-" {
		f, err := os.Open(*transcriptPath)
		if err != nil {
			log.Error("failed to open transcripts", "path", *transcriptPath, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []replay.Option{replay.WithTriggerPhrases(phrases)}
	if *phonetic > 0 {
		opts = append(opts, replay.WithPhoneticFallback(*phonetic))
	}

	if *persist {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Error("failed to load config", "error", err)
			os.Exit(1)
		}
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		db, err := storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		owner := *login
		if owner == "" {
			owner = cfg.Auth.DevLogin
		}
		userID, err := db.GetOrCreateUser(ctx, owner, owner)
		if err != nil {
			log.Error("failed to resolve user", "login", owner, "error", err)
			os.Exit(1)
		}
		opts = append(opts, replay.WithUserID(userID))

		// Custom phrases saved for the user apply on top of -phrase.
		saved, err := db.ListTriggerPhrases(ctx, userID)
		if err != nil {
			log.Warn("could not load saved trigger phrases", "error", err)
		}
		opts = append(opts, replay.WithTriggerPhrases(append(phrases, saved...)))

		queue, err := outbox.Open(cfg.Outbox.Dir)
		if err != nil {
			log.Error("failed to open outbox", "dir", cfg.Outbox.Dir, "error", err)
			os.Exit(1)
		}
		defer queue.Close()
		guard := outbox.NewGuard(db, queue, observe.DefaultMetrics(), log.With("component", "outbox"))
		opts = append(opts, replay.WithPersister(guard))
		log.Info("persisting to database", "user", owner)
	}

	res, err := replay.New(log, opts...).Run(ctx, routine, in)
	if res != nil {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			log.Error("failed to write result", "error", encErr)
		}
		printStats(log, res.Stats)
	}
	if err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
	log.Info("replay complete")
}

func printStats(log *slog.Logger, stats replay.Stats) {
	args := []any{
		"lines", stats.Lines,
		"transcripts", stats.Transcripts,
		"silences", stats.Silences,
	}
	for outcome, n := range stats.Outcomes {
		args = append(args, outcome, n)
	}
	log.Info("replay stats", args...)
}
