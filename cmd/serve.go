package cmd

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/JuanCF/scrcpy-mcp/internal/adbexec"
	"github.com/JuanCF/scrcpy-mcp/internal/api"
	"github.com/JuanCF/scrcpy-mcp/internal/config"
	"github.com/JuanCF/scrcpy-mcp/internal/events"
	"github.com/JuanCF/scrcpy-mcp/internal/router"
	"github.com/JuanCF/scrcpy-mcp/internal/session"
	"github.com/JuanCF/scrcpy-mcp/internal/store"
	"github.com/JuanCF/scrcpy-mcp/internal/tools"
	"github.com/JuanCF/scrcpy-mcp/internal/watchdog"
)

var serveNoAdmin bool

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP tool server over stdio",
		Long: `serve is the production entry point: it starts the MCP tool server on
stdin/stdout for a controller to drive, plus (unless --no-admin) a
loopback-only HTTP admin surface for session and audit inspection.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&serveNoAdmin, "no-admin", false, "disable the loopback admin HTTP surface")
	return cmd
}

func runServe(ctx context.Context) error {
	logFile, err := setupLogging()
	if err != nil {
		log.Printf("⚠️  failed to set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	cfg := config.Load()
	log.Printf("📦 scrcpy-mcp starting (adb=%s server-version=%s)", cfg.ADBPath, cfg.ServerVersion)

	adb := adbexec.New()

	hub := events.NewHub()
	go hub.Run()

	sessions := session.NewManager(adb, cfg, hub)

	var audit *store.Store
	if s, err := store.Open(cfg.SQLitePath); err != nil {
		log.Printf("⚠️  audit log disabled, failed to open %s: %v", cfg.SQLitePath, err)
	} else {
		audit = s
		defer audit.Close()
	}

	r := router.New(sessions, adb)
	surface := tools.New(r, adb, sessions, audit)

	wd := watchdog.New(sessions, cfg.WatchdogInterval)
	if err := wd.Start(); err != nil {
		log.Printf("⚠️  session watchdog failed to start: %v", err)
	} else {
		defer wd.Stop()
	}

	if !serveNoAdmin {
		adminSrv := &api.Server{Sessions: sessions, Audit: audit, WS: hub.ServeWS}
		engine := api.NewEngine(adminSrv)
		go func() {
			log.Printf("🔌 admin HTTP surface on http://%s", cfg.AdminHTTPAddr)
			if err := engine.Run(cfg.AdminHTTPAddr); err != nil {
				log.Printf("⚠️  admin HTTP surface stopped: %v", err)
			}
		}()
	}

	mcpServer := newMCPServer(surface)
	log.Println("🤝 MCP server ready on stdio")
	if err := serveMCPStdio(ctx, mcpServer); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func setupLogging() (*os.File, error) {
	return openRotatingLog("log")
}
