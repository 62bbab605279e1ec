// Command geminichat is a Gemini chat client with a local HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/capitalize-ai/gemini-chat/internal/app"
	"github.com/capitalize-ai/gemini-chat/internal/config"
	"github.com/capitalize-ai/gemini-chat/internal/llm"
	"github.com/capitalize-ai/gemini-chat/pkg/logger"
	"github.com/capitalize-ai/gemini-chat/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{}
	err := c.rootCommand().ExecuteContext(ctx)
	c.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli holds state shared by all commands of one invocation.
type cli struct {
	configPath string
	logLevel   string

	// clients overrides the provider factory in tests.
	clients llm.Factory

	app    *app.App
	log    *logger.Logger
	tracer *sdktrace.TracerProvider
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:               "geminichat",
		Short:             "Chat with Gemini from the terminal or a local web UI",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (default $GEMINICHAT_CONFIG or ~/.geminichat/config.toml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug|info|warn|error")

	root.AddCommand(
		c.serveCommand(),
		c.newCommand(),
		c.listCommand(),
		c.switchCommand(),
		c.renameCommand(),
		c.deleteCommand(),
		c.sendCommand(),
		c.regenerateCommand(),
		c.historyCommand(),
		c.deleteMessagesCommand(),
		c.modelsCommand(),
		c.troubleshootCommand(),
		c.tokensCommand(),
		c.exportCommand(),
		c.importCommand(),
		c.setKeyCommand(),
		c.localeCommand(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)
	c.log = log

	ctx := cmd.Context()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "geminichat", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			c.tracer = tp
		}
	}

	a, err := app.New(ctx, cfg, c.clients, log)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) close() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			c.log.Warn("failed to close blob store", zap.Error(err))
		}
	}
	if c.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracing.Shutdown(ctx, c.tracer)
	}
	if c.log != nil {
		c.log.Sync()
	}
}

func (c *cli) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and state feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.app.Config
			if addr != "" {
				cfg.ListenAddr = addr
			}

			g, ctx := errgroup.WithContext(cmd.Context())

			server := &http.Server{
				Addr:         cfg.ListenAddr,
				Handler:      c.app.Router(),
				ReadTimeout:  cfg.ServerReadTimeout,
				WriteTimeout: cfg.ServerWriteTimeout,
				IdleTimeout:  120 * time.Second,
				BaseContext:  func(net.Listener) context.Context { return ctx },
			}

			g.Go(func() error {
				c.log.Info("server listening",
					zap.String("addr", server.Addr),
					zap.String("storage_backend", cfg.StorageBackend),
					zap.Bool("auth", cfg.AuthEnabled()),
				)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			})

			g.Go(func() error {
				<-ctx.Done()
				c.log.Info("shutting down server")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("server forced to shutdown: %w", err)
				}
				return nil
			})

			err := g.Wait()
			c.log.Info("server stopped")
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides LISTEN_ADDR)")
	return cmd
}
