package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/radatool/radatool/cache"
	"github.com/radatool/radatool/config"
	"github.com/radatool/radatool/fetch"
	"github.com/radatool/radatool/ra"
)

var (
	cfgFile string
	cfg     *config.Config
	logger  zerolog.Logger
	client  *ra.Client
	store   *cache.Store
	manager *fetch.Manager

	appVersion   = "dev"
	appBuildTime = "unknown"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "radatool",
	Short: "Build DAT files and collection manifests from RetroAchievements data",
	Long: `radatool fetches per-console game and hash data from the RetroAchievements
web API, caches it locally, and generates clrmamepro DAT files and
RetroPie/Batocera collection manifests from the cached data.`,
	PersistentPreRunE: initializeApp,
}

// SetVersion wires the build-time version info into the root command
func SetVersion(version, buildTime string) {
	appVersion = version
	appBuildTime = buildTime
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("radatool %s (built %s)\n", version, buildTime))
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
}

// initializeApp initializes the configuration, the API client, the cache
// store, and the fetch manager shared by all subcommands
func initializeApp(cmd *cobra.Command, args []string) error {
	// Load configuration
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger = setupLogger(cfg.Logging)

	// Create RetroAchievements client
	clientOpts := []ra.Option{}
	if cfg.Fetch.MaxRetries > 0 {
		clientOpts = append(clientOpts, ra.WithMaxRetries(cfg.Fetch.MaxRetries))
	}
	if cfg.Fetch.InitialBackoff > 0 {
		clientOpts = append(clientOpts, ra.WithInitialBackoff(cfg.Fetch.InitialBackoff))
	}
	client = ra.NewClient(cfg.Auth.Username, cfg.Auth.APIKey, logger, clientOpts...)

	// Create cache store
	store, err = cache.NewStore(cfg.Paths.CacheDir, logger)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}

	manager = fetch.NewManager(client, store, logger)

	return nil
}

// setupLogger configures the zerolog logger
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Configure output format
	if cfg.Format == "json" {
		return zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	// Console format; color only when writing to a real terminal
	useColor := cfg.Color && isatty.IsTerminal(os.Stderr.Fd())
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
		NoColor:    !useColor,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}

// fetchOptions builds the per-fetch options from config
func fetchOptions() fetch.Options {
	opts := fetch.Options{
		IncludeAchievements: cfg.Options.IncludeAchievements,
		IncludePatchURLs:    cfg.Options.IncludePatchURLs,
	}
	if cfg.Fetch.ItemDelay != 0 {
		opts.ItemDelay = cfg.Fetch.ItemDelay
	}
	return opts
}

// consoleName resolves a console id to its display name, falling back to a
// generic label when the lookup fails or the id is unknown
func consoleName(cmd *cobra.Command, consoleID int) string {
	fallback := fmt.Sprintf("Console %d", consoleID)

	consoles, err := client.GetConsoleIDs(cmd.Context())
	if err != nil {
		logger.Warn().Err(err).Int("console_id", consoleID).Msg("Console name lookup failed, using fallback")
		return fallback
	}
	for _, console := range consoles {
		if console.ID == consoleID {
			return console.Name
		}
	}
	return fallback
}
