package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/njt/tzmeet/internal/dateparse"
	"github.com/njt/tzmeet/internal/logutil"
	"github.com/njt/tzmeet/internal/output"
	"github.com/njt/tzmeet/internal/server"
	"github.com/njt/tzmeet/libtzmeet"
)

var (
	logger    *slog.Logger
	configMgr *libtzmeet.ConfigManager
	rootCmd   = &cobra.Command{
		Use:   "tzmeet",
		Short: "Time zone aware meeting scheduler",
		Long:  `tzmeet converts a proposed meeting time for a participant and for the user, and computes calendar start and end timestamps.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			configPath, _ := cmd.Flags().GetString("config")

			logger = logutil.NewCLI(verbose)
			slog.SetDefault(logger)

			if configPath != "" {
				configMgr = libtzmeet.NewConfigManagerAt(configPath, logger)
				return nil
			}

			var err error
			configMgr, err = libtzmeet.NewConfigManager(logger)
			if err != nil {
				return fmt.Errorf("failed to initialize config manager: %w", err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: false,
	}
)

func init() {
	rootCmd.PersistentFlags().Bool("verbose", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.tzmeet/config.toml)")

	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig loads the config file and applies the per-command overrides
func loadConfig(cmd *cobra.Command) (*libtzmeet.Config, error) {
	config, err := configMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if f := cmd.Flags().Lookup("endpoint"); f != nil && f.Changed {
		config.Endpoint = f.Value.String()
	}
	if cmd.Flags().Lookup("timeout") != nil && cmd.Flags().Changed("timeout") {
		timeout, _ := cmd.Flags().GetDuration("timeout")
		config.TimeoutMS = int(timeout / time.Millisecond)
	}

	return config, nil
}

func newResolver(config *libtzmeet.Config) (*libtzmeet.Resolver, error) {
	originLoc, err := config.OriginLocation()
	if err != nil {
		return nil, err
	}

	client := libtzmeet.NewClient(config.ClientOptions(logger))
	return libtzmeet.NewResolver(client, libtzmeet.ResolverOptions{
		OriginLocation: originLoc,
		Logger:         logger,
	}), nil
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a meeting time for a participant",
	Long: `Convert a proposed meeting time into the participant's zone and the user's zone,
and compute calendar start and end timestamps.

Example:
  tzmeet resolve --meeting-time 2023-08-12T14:30:00Z \
    --user-timezone "August 12th, 2023 at 10:30:00 AM GMT-4" \
    --from America/New_York --target Europe/London --duration 30`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		resolver, err := newResolver(config)
		if err != nil {
			return err
		}

		meetingTime, _ := cmd.Flags().GetString("meeting-time")
		userTimezone, _ := cmd.Flags().GetString("user-timezone")
		from, _ := cmd.Flags().GetString("from")
		target, _ := cmd.Flags().GetString("target")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		req := &libtzmeet.MeetingRequest{
			MeetingTime:    meetingTime,
			UserTimezone:   userTimezone,
			FromTimezone:   from,
			TargetTimezone: target,
		}
		if cmd.Flags().Changed("duration") {
			duration, _ := cmd.Flags().GetInt("duration")
			req.DurationMinutes = &duration
		}

		res := resolver.Resolve(cmd.Context(), req)

		if jsonOutput {
			if err := output.WriteJSON(os.Stdout, res); err != nil {
				return err
			}
		} else {
			output.PrintResolution(os.Stdout, output.Resolution{
				ReadableOrigin:      res.ReadableTimeOrigin,
				ReadableParticipant: res.ReadableTimeParticipant,
				MeetingTime:         res.CalendarMeetingTime,
				EndTime:             res.CalendarEndTime,
			})
		}

		if !res.OK() {
			return fmt.Errorf("meeting time could not be resolved (run with --verbose for details)")
		}
		return nil
	},
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a date-time between two time zones",
	Long:  `Call the conversion service once and print its result`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		dateTimeStr, _ := cmd.Flags().GetString("date-time")
		dstAmbiguity, _ := cmd.Flags().GetString("dst-ambiguity")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		dateTime, err := dateparse.ParseMeetingTime(dateTimeStr, time.Now())
		if err != nil {
			return fmt.Errorf("invalid date-time: %w", err)
		}

		client := libtzmeet.NewClient(config.ClientOptions(logger))
		result, err := client.Convert(cmd.Context(), &libtzmeet.ConversionRequest{
			FromTimeZone: from,
			DateTime:     dateparse.FormatNaive(dateTime),
			ToTimeZone:   to,
			DSTAmbiguity: dstAmbiguity,
		})
		if err != nil {
			return fmt.Errorf("failed to convert: %w", err)
		}

		if jsonOutput {
			return output.WriteJSON(os.Stdout, result)
		}

		fmt.Printf("From: %s %s\n", from, dateparse.FormatNaive(dateTime))
		fmt.Printf("To: %s %s\n", to, result.ConversionResult.DateTime)
		if result.ConversionResult.DSTActive {
			fmt.Println("DST: active")
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage tzmeet configuration settings`,
}

var configSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set configuration values",
	Long:  `Set configuration values like the conversion endpoint, timeout, etc.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := configMgr.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		flags := cmd.Flags()
		if flags.Changed("endpoint") {
			config.Endpoint, _ = flags.GetString("endpoint")
		}
		if flags.Changed("timeout-ms") {
			config.TimeoutMS, _ = flags.GetInt("timeout-ms")
		}
		if flags.Changed("dst-ambiguity") {
			config.DSTAmbiguity, _ = flags.GetString("dst-ambiguity")
		}
		if flags.Changed("requests-per-second") {
			config.RequestsPerSecond, _ = flags.GetFloat64("requests-per-second")
		}
		if flags.Changed("origin-zone") {
			config.OriginZone, _ = flags.GetString("origin-zone")
			if _, err := config.OriginLocation(); err != nil {
				return err
			}
		}
		if flags.Changed("listen-addr") {
			config.ListenAddr, _ = flags.GetString("listen-addr")
		}

		if err := configMgr.Save(config); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		fmt.Println("Configuration saved successfully!")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display current configuration settings`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := configMgr.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Printf("Config file: %s\n", configMgr.Path())
		fmt.Printf("Endpoint: %s\n", config.Endpoint)
		fmt.Printf("Timeout: %s\n", config.Timeout())
		fmt.Printf("DST ambiguity: %q\n", config.DSTAmbiguity)
		fmt.Printf("Requests per second: %g\n", config.RequestsPerSecond)
		fmt.Printf("Origin zone: %s\n", config.OriginZone)
		fmt.Printf("Listen address: %s\n", config.ListenAddr)

		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve meeting resolution over HTTP",
	Long:  `Serve POST /v1/resolve, GET /healthz and GET /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			config.ListenAddr, _ = cmd.Flags().GetString("addr")
		}

		resolver, err := newResolver(config)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Listening on %s\n", config.ListenAddr)
		return server.New(resolver, logger).Run(ctx, config.ListenAddr)
	},
}

func init() {
	resolveCmd.Flags().String("meeting-time", "", "Proposed meeting time (e.g., '2023-08-12T14:30:00Z' or 'Aug 12, 2023, 2:30:00 PM')")
	resolveCmd.Flags().String("user-timezone", "", "User's local date and time with GMT offset (e.g., 'August 14th, 2024 at 11:06 PM GMT+2')")
	resolveCmd.Flags().String("from", "", "Time zone the meeting was proposed in (e.g., America/New_York)")
	resolveCmd.Flags().String("target", "", "Participant's time zone (e.g., Europe/London)")
	resolveCmd.Flags().Int("duration", 0, "Meeting duration in minutes")
	resolveCmd.Flags().String("endpoint", "", "Conversion service base URL (overrides config)")
	resolveCmd.Flags().Duration("timeout", 0, "Per-call timeout, e.g. 5s (overrides config)")
	resolveCmd.Flags().Bool("json", false, "Output as JSON")
	resolveCmd.MarkFlagRequired("meeting-time")
	resolveCmd.MarkFlagRequired("user-timezone")

	convertCmd.Flags().String("from", "", "Source time zone (required)")
	convertCmd.Flags().String("to", "", "Target time zone (required)")
	convertCmd.Flags().String("date-time", "", "Date-time to convert (required, accepts natural language)")
	convertCmd.Flags().String("dst-ambiguity", "", "How the service resolves ambiguous DST times")
	convertCmd.Flags().String("endpoint", "", "Conversion service base URL (overrides config)")
	convertCmd.Flags().Duration("timeout", 0, "Per-call timeout, e.g. 5s (overrides config)")
	convertCmd.Flags().Bool("json", false, "Output as JSON")
	convertCmd.MarkFlagRequired("from")
	convertCmd.MarkFlagRequired("to")
	convertCmd.MarkFlagRequired("date-time")

	configSetCmd.Flags().String("endpoint", "", "Conversion service base URL")
	configSetCmd.Flags().Int("timeout-ms", 0, "Per-call timeout in milliseconds")
	configSetCmd.Flags().String("dst-ambiguity", "", "Default DST ambiguity sent to the service")
	configSetCmd.Flags().Float64("requests-per-second", 0, "Outbound request limit (0 = unlimited)")
	configSetCmd.Flags().String("origin-zone", "", "IANA zone for the origin readable time")
	configSetCmd.Flags().String("listen-addr", "", "Address for 'tzmeet serve'")

	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configShowCmd)

	serveCmd.Flags().String("addr", "", "Listen address (overrides config)")
	serveCmd.Flags().String("endpoint", "", "Conversion service base URL (overrides config)")
	serveCmd.Flags().Duration("timeout", 0, "Per-call timeout, e.g. 5s (overrides config)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
