// Command outlook-mcp-server exposes a mailbox and calendar as MCP tools
// over stdio.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/xmubeta/outlook-mcp-server/internal/action"
	"github.com/xmubeta/outlook-mcp-server/internal/credential"
	"github.com/xmubeta/outlook-mcp-server/internal/listing"
	"github.com/xmubeta/outlook-mcp-server/internal/logging"
	"github.com/xmubeta/outlook-mcp-server/internal/mcp"
	"github.com/xmubeta/outlook-mcp-server/internal/metrics"
	"github.com/xmubeta/outlook-mcp-server/internal/model"
	"github.com/xmubeta/outlook-mcp-server/internal/query"
	"github.com/xmubeta/outlook-mcp-server/internal/source"
	"github.com/xmubeta/outlook-mcp-server/internal/source/email"
	"github.com/xmubeta/outlook-mcp-server/internal/store"
	"github.com/xmubeta/outlook-mcp-server/internal/tools"
)

// Version is set at build time.
var Version = "dev"

const serverName = "outlook-mcp-server"

func main() {
	if err := run(); err != nil {
		log.WithError(err).Error("outlook-mcp-server stopped")
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		logLevel    string
		seed        bool
		checkOnly   bool
		setPassword bool
		showVersion bool
	)
	flag.StringVar(&configPath, "config", model.DefaultConfigPath(), "Configuration file path")
	flag.StringVar(&logLevel, "log-level", "", "Override log level (debug, info, warn, error, quiet)")
	flag.BoolVar(&seed, "seed", false, "Populate an empty local store with demo mail and appointments")
	flag.BoolVar(&checkOnly, "check", false, "Connect to the mail store, report and exit")
	flag.BoolVar(&setPassword, "set-password", false, "Read the IMAP password from stdin and store it in the system keyring")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s\n", serverName, Version)
		return nil
	}

	// Stdout carries the protocol from here on.
	log.SetOutput(os.Stderr)

	if errLoad := godotenv.Load(); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	closer, err := logging.ConfigureLogOutput(cfg.Log)
	if err != nil {
		return fmt.Errorf("configuring logs: %w", err)
	}
	defer closer.Close()

	if setPassword {
		return storePassword(cfg, os.Stdin)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	local, err := openLocalStore(cfg.Local.DBPath)
	if err != nil {
		return err
	}
	defer local.Close()

	if seed {
		if err := seedIfEmpty(ctx, local); err != nil {
			return err
		}
	}

	gw, err := newGateway(cfg, local)
	if err != nil {
		return err
	}

	if err := startupCheck(ctx, gw, logging.Component("startup")); err != nil {
		if checkOnly {
			return err
		}
		log.WithError(err).Warn("mail store check failed, serving anyway")
	}
	if checkOnly {
		return nil
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Metrics.Listen); err != nil {
			log.WithError(err).Error("metrics listener stopped")
		}
	}()

	handler := tools.NewHandler(
		gw,
		query.NewEngine(logging.Component("query"), time.Now),
		listing.New(),
		action.NewDispatcher(gw, logging.Component("action")),
		cfg.Limits,
		logging.Component("tools"),
	)

	srv := mcp.NewServer(handler, mcp.ServerInfo{Name: serverName, Version: Version}, logging.Component("mcp"))
	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openLocalStore opens the SQLite store, creating its directory.
func openLocalStore(path string) (*store.SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening local store %s: %w", path, err)
	}
	return s, nil
}

// newGateway picks the backend named in cfg. The IMAP backend keeps
// its calendar in the local store.
func newGateway(cfg *model.AppConfig, local *store.SQLiteStore) (source.Gateway, error) {
	switch cfg.Backend {
	case model.BackendIMAP:
		password := cfg.IMAP.Password
		if password == "" {
			pw, err := credential.IMAPPassword(cfg.IMAP.Username)
			if err != nil {
				return nil, fmt.Errorf("resolving IMAP password for %s: %w", cfg.IMAP.Username, err)
			}
			password = pw
		}
		local.SetOwner(cfg.IMAP.Username, cfg.IMAP.Username)
		return email.NewGateway(cfg.IMAP, cfg.SMTP, password, local, logging.Component("imap")), nil
	default:
		return local, nil
	}
}

func seedIfEmpty(ctx context.Context, s *store.SQLiteStore) error {
	empty, err := s.IsEmpty(ctx)
	if err != nil {
		return err
	}
	if !empty {
		log.Info("local store already has items, not seeding")
		return nil
	}
	if err := s.SeedDemo(ctx, time.Now()); err != nil {
		return fmt.Errorf("seeding demo data: %w", err)
	}
	log.Info("seeded local store with demo data")
	return nil
}

// startupCheck opens the inbox and calendar and logs how much mail
// arrived in the last day.
func startupCheck(ctx context.Context, gw source.Gateway, logger *log.Entry) error {
	conn, err := gw.Connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	inbox, err := conn.DefaultFolder(ctx, source.RoleInbox)
	if err != nil {
		return fmt.Errorf("opening inbox: %w", err)
	}
	calendar, err := conn.DefaultFolder(ctx, source.RoleCalendar)
	if err != nil {
		return fmt.Errorf("opening calendar: %w", err)
	}

	recent, err := inbox.Messages(ctx, source.ItemQuery{Since: time.Now().Add(-24 * time.Hour)})
	if err != nil {
		return fmt.Errorf("reading inbox: %w", err)
	}

	logger.WithFields(log.Fields{
		"inbox":          inbox.Name(),
		"calendar":       calendar.Name(),
		"inbox_last_24h": len(recent),
	}).Info("connected to mail store")
	return nil
}

// storePassword saves the first line of r as the IMAP password.
func storePassword(cfg *model.AppConfig, r io.Reader) error {
	if cfg.IMAP.Username == "" {
		return errors.New("imap.username must be configured before storing a password")
	}

	fmt.Fprintf(os.Stderr, "IMAP password for %s: ", cfg.IMAP.Username)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("reading password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return errors.New("empty password")
	}

	if err := credential.Set(credential.IMAPKey(cfg.IMAP.Username), password); err != nil {
		return err
	}
	log.WithField("username", cfg.IMAP.Username).Info("stored IMAP password in keyring")
	return nil
}
