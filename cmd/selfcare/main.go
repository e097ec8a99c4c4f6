package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/selfcare/internal/profile"
	"github.com/hrygo/selfcare/server"
	"github.com/hrygo/selfcare/store"
	"github.com/hrygo/selfcare/store/db"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	rootCmd = &cobra.Command{
		Use:           "selfcare",
		Short:         "Self-care block scheduling service backed by your calendar.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfigFile()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
)

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)
	viper.SetDefault("calendar-provider", profile.ProviderLocal)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (yaml, json or toml)")
	flags.String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver (sqlite or postgres)")
	flags.String("dsn", "", "database source name(aka. DSN)")
	flags.String("home-timezone", "", "IANA timezone used for keywords and floating times")
	flags.String("calendar-provider", profile.ProviderLocal, "calendar provider: local, google or ics")
	flags.String("calendar-id", "", "calendar to read and write")
	flags.String("slot-filter", "", "CEL expression restricting candidate slots")
	flags.StringSlice("ics-feeds", nil, "ICS feed URLs read as busy time")

	for _, key := range []string{
		"config", "mode", "addr", "port", "data", "driver", "dsn",
		"home-timezone", "calendar-provider", "calendar-id", "slot-filter", "ics-feeds",
	} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("selfcare")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, resolveCmd, slotsCmd)
}

func loadConfigFile() error {
	path := viper.GetString("config")
	if path == "" {
		return nil
	}
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	return nil
}

// loadProfile builds and validates the profile from flags, config file and
// environment.
func loadProfile() (*profile.Profile, error) {
	p := profileFromFlags()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func profileFromFlags() *profile.Profile {
	p := &profile.Profile{
		Mode:             viper.GetString("mode"),
		Addr:             viper.GetString("addr"),
		Port:             viper.GetInt("port"),
		Data:             viper.GetString("data"),
		Driver:           viper.GetString("driver"),
		DSN:              viper.GetString("dsn"),
		HomeTimezone:     viper.GetString("home-timezone"),
		CalendarProvider: viper.GetString("calendar-provider"),
		CalendarID:       viper.GetString("calendar-id"),
		SlotFilter:       viper.GetString("slot-filter"),
		ICSFeeds:         viper.GetStringSlice("ics-feeds"),
		Version:          version,
	}
	p.FromEnv()
	return p
}

func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, fmt.Errorf("create db driver: %w", err)
	}
	s := store.New(driver, p)
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func runServe(ctx context.Context) error {
	p, err := loadProfile()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore(ctx, p)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(ctx, p, s)
	if err != nil {
		s.Close()
		return fmt.Errorf("create server: %w", err)
	}
	if err := srv.Start(ctx); err != nil {
		srv.Shutdown(context.Background())
		return err
	}
	printGreetings(p)

	<-ctx.Done()
	srv.Shutdown(context.Background())
	return nil
}

func printGreetings(p *profile.Profile) {
	slog.Info("selfcare started",
		slog.String("version", p.Version),
		slog.String("mode", p.Mode),
		slog.String("driver", p.Driver),
		slog.String("calendar_provider", p.CalendarProvider),
		slog.String("home_timezone", p.HomeTimezone),
		slog.String("address", fmt.Sprintf("%s:%d", p.Addr, p.Port)),
	)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
