package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/xonecas/moji/internal/api"
	"github.com/xonecas/moji/internal/chat"
	"github.com/xonecas/moji/internal/config"
	"github.com/xonecas/moji/internal/store"
	"github.com/xonecas/moji/internal/transport"
	"github.com/xonecas/moji/internal/tui"
)

// Version is set at build time via ldflags.
var Version = "dev"

type options struct {
	configPath string
	debug      bool
	login      string
	register   string
	logout     bool
}

// errSignedOut ends the process cleanly after -logout.
var errSignedOut = errors.New("signed out")

func main() {
	var opts options
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.StringVar(&opts.configPath, "config", "config.toml", "Path to config file")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&opts.login, "login", "", "Sign in as `username` before starting")
	flag.StringVar(&opts.register, "register", "", "Create an account for `username`, then sign in")
	flag.BoolVar(&opts.logout, "logout", false, "Forget the saved session and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Moji %s\n", Version)
		return
	}

	err := run(opts)
	switch {
	case errors.Is(err, errSignedOut):
		fmt.Println("Signed out.")
	case err != nil:
		log.Error().Err(err).Msg("Moji exited with error")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if err := setupLogger(opts.debug); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	log.Info().Str("version", Version).Msg("Starting Moji")

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Debug().Interface("config", cfg).Msg("Configuration loaded")

	s, err := store.New()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	client := api.NewClient(cfg.Server.APIURL, api.Options{
		Timeout:   cfg.HTTP.Timeout.Duration,
		RateLimit: cfg.HTTP.RateLimit,
		RateBurst: cfg.HTTP.RateBurst,
	})

	if opts.logout {
		return logout(cfg, client, s)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess, err := resolveSession(ctx, client, s, newPrompter(os.Stdin, os.Stdout), opts)
	if err != nil {
		return err
	}
	log.Info().Str("user", sess.UserID).Msg("Signed in")

	session := newChatSession(cfg, client, s, sess)
	defer session.Close()

	// Subscribe before the TUI starts the session so no event is missed.
	events := session.Bus.Subscribe()
	program := tea.NewProgram(
		tui.New(ctx, session, events, cfg.Chat.ScrollThreshold),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	_, err = program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		log.Info().Msg("Received shutdown signal")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	log.Info().Msg("Moji shutdown complete")
	return nil
}

func newChatSession(cfg *config.Config, client *api.Client, s *store.Store, sess *store.Session) *chat.Session {
	return chat.NewSession(chat.SessionDeps{
		API: client,
		Dialer: &transport.WSDialer{
			URL:          cfg.Server.SocketURL,
			Token:        client.Token,
			PingInterval: cfg.Realtime.PingInterval.Duration,
			WriteTimeout: cfg.Realtime.WriteTimeout.Duration,
		},
		Store:  s,
		Config: cfg,
	}, chat.User{ID: sess.UserID, Username: sess.Username, FullName: sess.FullName})
}

// logout ends the saved session. An expired session is still cleared.
func logout(cfg *config.Config, client *api.Client, s *store.Store) error {
	sess, err := s.LoadSession()
	switch {
	case errors.Is(err, store.ErrNoSession):
		return errSignedOut
	case err != nil && !errors.Is(err, store.ErrSessionExpired):
		return fmt.Errorf("logout: %w", err)
	}
	if err := newChatSession(cfg, client, s, sess).Logout(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return errSignedOut
}

// setupLogger sends zerolog output to a rotating file in the data dir; the
// terminal belongs to the TUI.
func setupLogger(debug bool) error {
	dataDir, err := config.EnsureDataDir()
	if err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	log.Logger = zerolog.New(&lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "moji.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
	}).With().Timestamp().Logger()
	return nil
}
