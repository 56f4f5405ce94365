package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zombor/auto-bills/internal/bills"
	"github.com/zombor/auto-bills/internal/document"
	"github.com/zombor/auto-bills/internal/extract"
	"github.com/zombor/auto-bills/internal/mailbox"
	"github.com/zombor/auto-bills/internal/notify"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("auto-bills")
	var (
		imapAddr     = fs.StringLong("imap-addr", "", "IMAP server address (host:port)")
		imapUser     = fs.StringLong("imap-user", "", "IMAP username")
		imapPass     = fs.StringLong("imap-pass", "", "IMAP password")
		imapInsecure = fs.BoolLong("imap-insecure", "Connect to IMAP without TLS")
		imapMailbox  = fs.StringLong("imap-mailbox", "INBOX", "Mailbox to watch")
		imapTimeout  = fs.DurationLong("imap-timeout", 30*time.Second, "IMAP dial and command timeout")
		tgToken      = fs.StringLong("telegram-token", "", "Telegram bot token")
		tgEndpoint   = fs.StringLong("telegram-endpoint", "", "Telegram Bot API endpoint format (default: api.telegram.org)")
		recipient    = fs.StringLong("recipient", "", "Telegram chat id that receives bill notifications")
		schedule     = fs.StringLong("schedule", bills.DefaultSchedule, "Poll schedule (cron expression or @every duration)")
		storagePath  = fs.StringLong("storage", "./attachments", "Directory where attachments are stored")
		port         = fs.IntLong("port", 8080, "HTTP status server port (0 disables it)")
		authUser     = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass     = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		sendRate     = fs.Float64Long("send-rate", 1, "Maximum messages sent per second (0 for unlimited)")
		respondPing  = fs.BoolLong("respond-ping", "Answer \"ping\" messages sent to the bot with \"pong\"")
		pdfMaxPages  = fs.IntLong("pdf-max-pages", 10, "Maximum PDF pages read per attachment (0 for all)")
		_            = fs.StringLong("config", "", "Config file (flag value pairs, one per line)")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("AUTO_BILLS"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *tgToken == "" || *recipient == "" {
		slog.Error("Telegram token and recipient are required. Set --telegram-token and --recipient or AUTO_BILLS_TELEGRAM_TOKEN and AUTO_BILLS_RECIPIENT")
		os.Exit(1)
	}
	if _, err := notify.ParseChatID(*recipient); err != nil {
		slog.Error("Invalid recipient", "recipient", *recipient, "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing storage...", "path", *storagePath)
	store, err := bills.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	inbox, err := mailbox.NewIMAP(mailbox.Config{
		Addr:     *imapAddr,
		Username: *imapUser,
		Password: *imapPass,
		TLS:      !*imapInsecure,
		Mailbox:  *imapMailbox,
		Timeout:  *imapTimeout,
	})
	if err != nil {
		slog.Error("Failed to initialize mailbox", "error", err)
		os.Exit(1)
	}

	attachments := bills.NewAttachmentStore(store)
	orchestrator := extract.NewOrchestrator(
		extract.NewScanner(extract.DefaultPatterns()),
		document.NewConverter(*pdfMaxPages),
		attachments,
	)

	slog.Info("Connecting to Telegram...")
	telegram, err := notify.NewTelegram(notify.TelegramConfig{
		Token:       *tgToken,
		Endpoint:    *tgEndpoint,
		RespondPing: *respondPing,
	})
	if err != nil {
		slog.Error("Failed to initialize Telegram", "error", err)
		os.Exit(1)
	}
	if err := telegram.Start(ctx); err != nil {
		slog.Error("Failed to start Telegram", "error", err)
		os.Exit(1)
	}
	defer telegram.Shutdown()

	waitCtx, cancel := context.WithTimeout(ctx, time.Minute)
	err = telegram.WaitReady(waitCtx)
	cancel()
	if err != nil {
		slog.Error("Telegram channel is not ready", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	notifier := notify.NewNotifier(telegram, notify.Options{SendRate: *sendRate})
	service := bills.NewService(inbox, orchestrator, notifier, attachments, *recipient, bills.NewMetrics(registry))

	poller, err := bills.NewPoller(*schedule, service)
	if err != nil {
		slog.Error("Failed to initialize poller", "error", err)
		os.Exit(1)
	}

	var server *bills.Server
	if *port != 0 {
		server = bills.NewServer(service, telegram, registry, bills.BasicAuth{
			Username: *authUser,
			Password: *authPass,
		})
		addr := fmt.Sprintf(":%d", *port)
		go func() {
			if err := server.Start(addr); err != nil {
				slog.Error("Server error", "error", err)
				stop()
			}
		}()
		if *authUser != "" || *authPass != "" {
			slog.Info("Basic auth enabled", "user", *authUser)
		}
	}

	poller.Start()
	slog.Info("Watching mailbox", "address", *imapAddr, "mailbox", *imapMailbox, "schedule", *schedule)

	<-ctx.Done()
	slog.Info("Shutting down...")

	poller.Stop()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down server", "error", err)
		}
	}
}
