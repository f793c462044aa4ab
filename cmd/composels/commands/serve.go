package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/composels/config"
	"github.com/teranos/composels/errors"
	"github.com/teranos/composels/logger"
	"github.com/teranos/composels/server"
	"github.com/teranos/composels/version"
)

// ServeCmd runs the language server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Run the compose language server",
	Long: `Run the language server over stdio (the default, for editors that spawn
it) or over WebSocket at ` + server.WebSocketPath + `.

Config files are watched while the server runs: key tables, registry
settings and log verbosity are reloaded on change. Transport changes need
a restart.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveWSAddr  string
	serveNoWatch bool
)

func init() {
	ServeCmd.Flags().StringVar(&serveWSAddr, "ws", "", "Serve over WebSocket on this address instead of stdio")
	ServeCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reload when config files change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	loaded := cfg.Server
	if serveWSAddr != "" {
		cfg.Server.Transport = config.TransportWebSocket
		cfg.Server.Listen = serveWSAddr
	}

	images := &imageSource{}
	defer images.Close()
	router, err := buildRouter(cfg, images)
	if err != nil {
		return err
	}
	srv := server.New(cfg.Server, router, logger.Named("server"))

	if !serveNoWatch {
		configPath, _ := cmd.Flags().GetString("config")
		watcher, err := config.Watch(configPath)
		if err != nil {
			logger.Warnw("Config watching disabled", "error", err)
		} else {
			defer watcher.Close()
			watcher.OnReload(func(next *config.Config) error {
				return reloadServer(cmd, loaded, next, srv, images)
			})
			logger.Debugw("Watching config files", "files", watcher.Files())
		}
	}

	if cfg.Server.Transport == config.TransportStdio {
		// Nothing may be printed to stdout from here on
		return srv.ServeStdio()
	}
	return serveWebSocket(srv, cfg.Server.Listen)
}

// reloadServer applies a reloaded config to the running server.
func reloadServer(cmd *cobra.Command, loaded config.ServerConfig, next *config.Config, srv *server.Server, images *imageSource) error {
	applyLogConfig(cmd, next)
	if next.Server != loaded {
		logger.Warnw("Server settings changed; restart to apply",
			"transport", next.Server.Transport,
			"listen", next.Server.Listen,
		)
	}
	router, err := buildRouter(next, images)
	if err != nil {
		return err
	}
	srv.SetRouter(router)
	return nil
}

func serveWebSocket(srv *server.Server, addr string) error {
	info := version.Get()
	pterm.DefaultSection.Println("composels")
	pterm.Info.Printfln("Version:  %s (commit %s)", info.Version, info.Short())
	pterm.Info.Printfln("Endpoint: ws://%s%s", addr, server.WebSocketPath)
	pterm.Info.Printfln("Health:   http://%s/healthz", addr)
	pterm.Info.Printfln("Logging:  %s, level %s", logger.LevelName(logger.Verbosity()), logger.Level())
	pterm.Info.Println("Press Ctrl+C to stop")

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.ListenAndServe(addr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		if err != nil {
			return errors.Wrap(err, "server stopped")
		}
		return nil
	case <-sigChan:
		pterm.Info.Println("Shutting down gracefully (press Ctrl+C again to force)...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		shutdownDone := make(chan error, 1)
		go func() {
			shutdownDone <- srv.Shutdown(ctx)
		}()

		select {
		case err := <-shutdownDone:
			if err != nil {
				return errors.Wrap(err, "shutdown error")
			}
			pterm.Success.Println("Server stopped cleanly")
			return nil
		case <-sigChan:
			pterm.Warning.Println("Force shutdown - exiting immediately")
			os.Exit(1)
			return nil // unreachable
		}
	}
}
