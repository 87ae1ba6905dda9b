// Command anthology-dl downloads every paper PDF listed for one event edition
// of the ACL Anthology and writes an identifier -> title map next to them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"anthology-downloader/internal/app"
	"anthology-downloader/internal/config"
	"anthology-downloader/internal/fetcher"
	"anthology-downloader/internal/observability"
	"anthology-downloader/internal/scraper"
)

// flagKeys binds command line flags to config keys.
var flagKeys = map[string]string{
	"event":         "event.name",
	"year":          "event.year",
	"output":        "output.dir",
	"verbose":       "verbose",
	"chrome-driver": "browser.driver_path",
	"xvfb":          "browser.xvfb",
	"backend":       "browser.backend",
	"selectors":     "selectors_file",
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anthology-dl",
		Short: "Download the papers of one ACL Anthology event",
		Long: `anthology-dl opens the proceedings listing of an event edition
(for example ACL 2018), downloads every paper that has a pdf link into the
output directory as {identifier}-{slug}.pdf and finally writes meta.json,
mapping each identifier to its title. Files already present are skipped.`,
		Example:       "  anthology-dl -e ACL -y 2018 -o papers/acl-2018 -x",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.LoadConfig(v, configPath)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("config", "", "optional YAML config file")
	flags.StringP("event", "e", "", "event name, e.g. ACL (required)")
	flags.StringP("year", "y", "", "event year, e.g. 2018 (required)")
	flags.StringP("output", "o", "", "output directory (required)")
	flags.BoolP("verbose", "v", false, "log every download")
	flags.StringP("chrome-driver", "d", config.DefaultDriverPath, "path to the chromedriver binary")
	flags.BoolP("xvfb", "x", false, "run the browser on an Xvfb virtual display")
	flags.String("backend", "chromedriver", "browser backend: chromedriver, rod or static")
	flags.String("selectors", "", "YAML file overriding the listing selectors")

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}

	return cmd
}

func run(cfg *config.Config) error {
	logger := observability.NewLogger(cfg.Observability.LogPath, cfg.LogLevel(), cfg.Observability.LogFormat)
	defer func() { _ = logger.Close() }()

	selectors, err := cfg.Selectors()
	if err != nil {
		return err
	}

	repo, err := app.OpenRepository(cfg, logger)
	if err != nil {
		return err
	}
	if repo != nil {
		defer func() {
			if err := repo.Close(); err != nil {
				logger.Warn("Failed to close catalog", "error", err.Error())
			}
		}()
	}

	f := fetcher.NewFetcher(cfg, logger)
	downloader, err := app.NewDownloader(app.KindAnthology, app.Dependencies{
		Config:     cfg,
		Logger:     logger,
		Fetcher:    f,
		Scraper:    scraper.NewScraper(selectors, cfg.GetDelay()),
		NewSession: app.NewBrowserSessionFactory(cfg, f.Client()),
		Repository: repo,
	})
	if err != nil {
		return err
	}

	ctx, cancel := app.GracefulShutdown(logger, 0)
	defer cancel()

	res, err := downloader.Download(ctx, app.Request{
		Event:     cfg.Event.Name,
		Year:      cfg.Event.Year,
		OutputDir: cfg.Output.Dir,
	})
	if err != nil {
		logger.Error("Download failed", "error", err.Error())
		return err
	}

	if res.Failed > 0 {
		logger.Warn("Some papers could not be downloaded", "failed", res.Failed)
	}
	if res.Changed > 0 {
		logger.Warn("Some kept files no longer match the catalog", "changed", res.Changed)
	}
	return nil
}

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
