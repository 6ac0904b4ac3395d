// leadctl - клиент API leadbase для командной строки
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/asquebay/leadbase-service/internal/authstore"
	"github.com/asquebay/leadbase-service/internal/cache"
	"github.com/asquebay/leadbase-service/internal/checkout"
	"github.com/asquebay/leadbase-service/internal/client"
	"github.com/asquebay/leadbase-service/internal/config"
	"github.com/asquebay/leadbase-service/internal/lib/logger"
	"github.com/asquebay/leadbase-service/internal/provider/paypal"
)

var Version = "dev"

// cliConfig читается из переменных окружения LEADCTL_*
type cliConfig struct {
	API      string        `env:"API" envDefault:"http://localhost:8082"`
	StateDir string        `env:"STATE_DIR"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	LogLevel string        `env:"LOG_LEVEL" envDefault:"warn"`
	PayPal   config.PayPal `envPrefix:"PAYPAL_"`
}

// app - общее состояние команд
type app struct {
	cfg cliConfig
	out io.Writer
	in  io.Reader
	log *slog.Logger

	// newProvider собирает платёжный адаптер; подменяется в тестах
	newProvider func(a *app, approve paypal.Approver) checkout.Provider
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	return newRoot(&app{in: in, out: out, newProvider: defaultProvider})
}

func newRoot(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "leadctl",
		Short:         "leadctl - command line client for the leadbase API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	rootCmd.SetIn(a.in)
	rootCmd.SetOut(a.out)

	rootCmd.PersistentFlags().String("api", "", "API base URL (overrides LEADCTL_API)")
	rootCmd.PersistentFlags().String("state-dir", "", "directory for local and session state (overrides LEADCTL_STATE_DIR)")

	rootCmd.AddCommand(loginCmd(a))
	rootCmd.AddCommand(logoutCmd(a))
	rootCmd.AddCommand(devTokenCmd(a))
	rootCmd.AddCommand(dashboardCmd(a))
	rootCmd.AddCommand(invoicesCmd(a))
	rootCmd.AddCommand(downloadsCmd(a))
	rootCmd.AddCommand(activityCmd(a))
	rootCmd.AddCommand(invoicePDFCmd(a))
	rootCmd.AddCommand(checkoutCmd(a))
	rootCmd.AddCommand(selectCmd(a))

	return rootCmd
}

func (a *app) init(cmd *cobra.Command) error {
	if err := env.ParseWithOptions(&a.cfg, env.Options{Prefix: "LEADCTL_"}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	if v, _ := cmd.Flags().GetString("api"); v != "" {
		a.cfg.API = v
	}
	if v, _ := cmd.Flags().GetString("state-dir"); v != "" {
		a.cfg.StateDir = v
	}
	if a.cfg.StateDir == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("failed to locate config dir: %w", err)
		}
		a.cfg.StateDir = filepath.Join(dir, "leadctl")
	}

	log, _, err := logger.New(logger.Options{Level: a.cfg.LogLevel, Format: "text"})
	if err != nil {
		return err
	}
	a.log = log
	return nil
}

// localStore - аналог localStorage: переживает сессии
func (a *app) localStore() *cache.FileStore {
	return cache.NewFileStore(filepath.Join(a.cfg.StateDir, "local.json"))
}

// sessionStore - аналог sessionStorage: кэш сводок
func (a *app) sessionStore() *cache.FileStore {
	return cache.NewFileStore(filepath.Join(a.cfg.StateDir, "session.json"))
}

func (a *app) auth() *authstore.Store {
	return authstore.New(a.localStore())
}

func (a *app) client() *client.Client {
	return client.New(a.cfg.API, a.auth())
}

func defaultProvider(a *app, approve paypal.Approver) checkout.Provider {
	return paypal.NewProvider(paypal.New(a.cfg.PayPal, a.log), approve, a.log)
}
