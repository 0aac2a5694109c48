package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"airline_scheduler/internal/api"
	"airline_scheduler/internal/catalog"
	"airline_scheduler/internal/clock"
	"airline_scheduler/internal/config"
	"airline_scheduler/internal/contracts"
	"airline_scheduler/internal/game"
	"airline_scheduler/internal/logging"
	"airline_scheduler/internal/metrics"
	"airline_scheduler/internal/models"
	"airline_scheduler/internal/schedule"
	"airline_scheduler/internal/store"
)

var v *viper.Viper = config.NewViper()

var rootCmd = &cobra.Command{
	Use:   "airline",
	Short: "Weekly airline scheduling server",
	Long: `Runs a persistent airline session on a cyclic weekly clock.
- Contracts: weekly routes offered from your hubs; each expires if nobody takes it.
- Options: every aircraft quoted against a contract, most profitable first.
- Schedules: an accepted contract blocks the aircraft for the same slot every week.
- Clock: one game minute per tick; time spent offline is caught up on start.`,
	SilenceUsage: true,
}

func main() {
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", "airline.yml", "path to YAML config")
	rootCmd.PersistentFlags().String("db-path", "", "sqlite database (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (overrides config)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(contractsCmd())
	rootCmd.AddCommand(schedulesCmd())
	rootCmd.AddCommand(configCmd())
}

// loadConfig applies the file, environment and flag overrides in that order.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(v, v.GetString("config"))
	if err != nil {
		return nil, err
	}
	if f := cmd.Flags().Lookup("db-path"); f != nil && f.Changed {
		cfg.DBPath = f.Value.String()
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.Log.Level = f.Value.String()
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the clock and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			logger := logging.New(logging.Config{
				Level:      cfg.Log.Level,
				Dir:        cfg.Log.Dir,
				MaxSizeMB:  cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				Stderr:     cfg.Log.Stderr,
			})
			defer logger.Close()

			ctx := cmd.Context()
			engine, st, err := openEngine(ctx, cfg, logger.Logger)
			if err != nil {
				return err
			}
			defer st.Close()

			engine.Start(ctx)
			handler := api.New(engine, api.Options{
				Context:       ctx,
				RatePerSecond: cfg.HTTP.RatePerSecond,
				Burst:         cfg.HTTP.Burst,
			})
			srv := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			logger.Info("server listening", slog.String("addr", cfg.Addr), slog.String("db", cfg.DBPath))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := engine.Close(closeCtx); err != nil {
				logger.Error("final save failed", slog.Any("err", err))
				return err
			}
			logger.Info("session saved", slog.Int64("playtime", int64(engine.Clock().Playtime())))
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":4000", "listen address (overrides config)")
	return cmd
}

func openEngine(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*game.Engine, *store.Store, error) {
	airports, err := catalog.LoadAirportsCSV(cfg.AirportsCSV)
	if err != nil {
		return nil, nil, fmt.Errorf("load airports: %w", err)
	}
	aircraft, err := catalog.LoadAircraftJSON(cfg.AircraftJSON)
	if err != nil {
		return nil, nil, fmt.Errorf("load aircraft: %w", err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	col, err := metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	engine, err := game.NewEngine(ctx, game.Options{
		Store:    st,
		Airports: airports,
		Aircraft: aircraft,
		Rates:    cfg.Economics,
		Generator: contracts.GeneratorOptions{
			WorldSeed:    cfg.Contracts.WorldSeed,
			OffersPerHub: cfg.Contracts.OffersPerHub,
			LifetimeDays: cfg.Contracts.OfferLifetimeDay,
			MinWeeks:     cfg.Contracts.MinWeeks,
			MaxWeeks:     cfg.Contracts.MaxWeeks,
		},
		Hubs:             cfg.Contracts.Hubs,
		DestinationTier:  cfg.Contracts.DestinationTier,
		TickInterval:     cfg.Clock.TickInterval,
		OfflineAllowance: cfg.Clock.OfflineAllowance,
		SaveEvery:        cfg.Clock.SaveEvery,
		PathResolution:   cfg.Geo.PathResolution,
		PathCacheSize:    cfg.Geo.PathCacheSize,
		Metrics:          col,
		Logger:           logger,
	})
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return engine, st, nil
}

// withStore opens the database read-side for the inspection commands.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, st *store.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cmd.Context(), st)
}

func contractsCmd() *cobra.Command {
	var hub string
	cmd := &cobra.Command{
		Use:   "contracts",
		Short: "List open contract offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				offers, err := st.ContractOffers(ctx)
				if err != nil {
					return err
				}
				if hub != "" {
					kept := offers[:0]
					for _, c := range offers {
						if strings.EqualFold(c.Hub(), hub) {
							kept = append(kept, c)
						}
					}
					offers = kept
				}
				if v.GetBool("json") {
					return printJSON(offers)
				}
				now, err := st.Playtime(ctx)
				if err != nil {
					return err
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Route", "Day", "Departs", "Km", "Weeks", "Demand", "Expires In"})
				for _, c := range offers {
					tw.AppendRow(table.Row{
						shortID(c.ID),
						c.Origin + "-" + c.Destination,
						c.Day,
						c.Departure,
						c.DistanceKm,
						c.DurationWeeks,
						c.Demand.Total(),
						clock.FormatRemaining(int(c.ExpiresAt - now)),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&hub, "hub", "", "only offers from this hub")
	return cmd
}

func schedulesCmd() *cobra.Command {
	var registration string
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "List committed weekly schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				byAsset, err := st.ActiveSchedules(ctx)
				if err != nil {
					return err
				}
				now, err := st.Playtime(ctx)
				if err != nil {
					return err
				}
				var list []models.Schedule
				for reg, ss := range byAsset {
					if registration != "" && !strings.EqualFold(reg, registration) {
						continue
					}
					list = append(list, ss...)
				}
				sort.SliceStable(list, func(i, j int) bool {
					if list[i].Registration != list[j].Registration {
						return list[i].Registration < list[j].Registration
					}
					return list[i].StartMinute() < list[j].StartMinute()
				})
				if v.GetBool("json") {
					return printJSON(list)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Registration", "Contract", "Route", "Day", "Start", "End", "Status", "Profit"})
				for _, s := range list {
					tw.AppendRow(table.Row{
						s.Registration,
						shortID(s.Contract.ID),
						s.Contract.Origin + "-" + s.Contract.Destination,
						s.Day,
						s.Start,
						s.End,
						schedule.Status(s, now),
						s.Option.Profit,
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&registration, "registration", "", "only this asset")
	return cmd
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Manage the config file"}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("config")
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
	cfgCmd.AddCommand(initCmd, showCmd)
	return cfgCmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
