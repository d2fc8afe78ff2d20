package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ahj-registry/internal/config"
	"github.com/sells-group/ahj-registry/internal/fetcher"
	"github.com/sells-group/ahj-registry/internal/ingest"
	"github.com/sells-group/ahj-registry/internal/municode"
	"github.com/sells-group/ahj-registry/internal/pdftext"
	"github.com/sells-group/ahj-registry/internal/resilience"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load code adoptions from public sources",
	Long:  "Each subcommand runs one source as a tracked ingest run; `ingest all` runs the statewide sources in order.",
}

var ingestICCCmd = &cobra.Command{
	Use:   "icc",
	Short: "Ingest the ICC master I-Code adoption chart",
	RunE: func(cmd *cobra.Command, _ []string) error {
		pdf, _ := cmd.Flags().GetString("pdf")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runSources(cmd, iccSource(cfg, newFetcher(cfg), pdf, dryRun))
	},
}

var ingestNECCmd = &cobra.Command{
	Use:   "nec",
	Short: "Ingest statewide National Electrical Code editions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSources(cmd, necSource(cfg, newFetcher(cfg)))
	},
}

var ingestIECCCmd = &cobra.Command{
	Use:   "iecc",
	Short: "Ingest statewide energy code editions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runSources(cmd, energySource(cfg, newFetcher(cfg)))
	},
}

var ingestMunicipalCmd = &cobra.Command{
	Use:   "municipal",
	Short: "Ingest local adoptions from municipal code portals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		targets, err := municipalTargets(cmd)
		if err != nil {
			return err
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runSources(cmd, municipalSource(cfg, newFetcher(cfg), targets, dryRun))
	},
}

var ingestAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Run icc, nec and iecc in order",
	RunE: func(cmd *cobra.Command, _ []string) error {
		f := newFetcher(cfg)
		sources := []ingest.Source{
			iccSource(cfg, f, "", false),
			necSource(cfg, f),
			energySource(cfg, f),
		}
		if withMunicipal, _ := cmd.Flags().GetBool("with-municipal"); withMunicipal {
			sources = append(sources, municipalSource(cfg, f, nil, false))
		}
		return runSources(cmd, sources...)
	},
}

func init() {
	ingestICCCmd.Flags().String("pdf", "", "use a local chart PDF instead of downloading")
	ingestICCCmd.Flags().Bool("dry-run", false, "parse the chart without writing adoptions")

	ingestMunicipalCmd.Flags().String("file", "", "CSV or XLSX list with state_abbr and jurisdiction_name columns")
	ingestMunicipalCmd.Flags().String("state", "", "state abbreviation for --cities")
	ingestMunicipalCmd.Flags().String("cities", "", "comma-separated city names")
	ingestMunicipalCmd.Flags().Bool("dry-run", false, "extract facts without writing adoptions")

	ingestAllCmd.Flags().Bool("with-municipal", false, "also run the municipal source over the demo targets")

	ingestCmd.AddCommand(ingestICCCmd, ingestNECCmd, ingestIECCCmd, ingestMunicipalCmd, ingestAllCmd)
	rootCmd.AddCommand(ingestCmd)
}

// newFetcher builds the shared HTTP fetcher from fetch settings.
func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	retry := resilience.FromFetchConfig(c.Fetch.MaxRetries, c.Fetch.RateLimitBackoffSecs)
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:        c.Fetch.UserAgent,
		Timeout:          time.Duration(c.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:       c.Fetch.MaxRetries,
		MinDelay:         time.Duration(c.Fetch.MinDelayMs) * time.Millisecond,
		RateLimitBackoff: time.Duration(c.Fetch.RateLimitBackoffSecs) * time.Second,
		Retry:            &retry,
	})
}

func iccSource(c *config.Config, f fetcher.Fetcher, localPDF string, dryRun bool) *ingest.ICCChart {
	return &ingest.ICCChart{
		Fetcher:  f,
		PDF:      pdftext.New(c.ICC.PdfToTextPath),
		URLs:     c.ICC.URLs,
		LocalPDF: localPDF,
		WorkDir:  c.ICC.WorkDir,
		DryRun:   dryRun,
	}
}

func necSource(c *config.Config, f fetcher.Fetcher) *ingest.NEC {
	return &ingest.NEC{
		Fetcher:      f,
		PrimaryURL:   c.NEC.PrimaryURL,
		SecondaryURL: c.NEC.SecondaryURL,
		Live:         c.NEC.Live,
	}
}

func energySource(c *config.Config, f fetcher.Fetcher) *ingest.Energy {
	return &ingest.Energy{
		Fetcher:   f,
		PortalURL: c.IECC.PortalURL,
		Live:      c.IECC.Live,
	}
}

func municipalSource(c *config.Config, f fetcher.Fetcher, targets []ingest.Target, dryRun bool) *ingest.Municipal {
	m := c.Municipal
	return &ingest.Municipal{
		Client: municode.New(f,
			municode.WithMunicodeBaseURL(m.MunicodeBaseURL),
			municode.WithEcode360BaseURL(m.Ecode360BaseURL),
		),
		Breakers:         resilience.NewPortalBreakers(resilience.FromBreakerConfig(m.BreakerThreshold, m.BreakerResetSecs)),
		Targets:          targets,
		MaxJurisdictions: m.MaxJurisdictions,
		Concurrency:      m.Concurrency,
		DryRun:           dryRun,
	}
}

// municipalTargets resolves --file or --state/--cities. Neither means the
// demo target list.
func municipalTargets(cmd *cobra.Command) ([]ingest.Target, error) {
	file, _ := cmd.Flags().GetString("file")
	state, _ := cmd.Flags().GetString("state")
	cities, _ := cmd.Flags().GetString("cities")

	switch {
	case file != "":
		table, err := fetcher.ReadRows(commandContext(cmd), file)
		if err != nil {
			return nil, err
		}
		return ingest.TargetsFromTable(table)
	case cities != "":
		if state == "" {
			return nil, eris.New("ingest: --cities requires --state")
		}
		return ingest.TargetsFromCities(state, strings.Split(cities, ",")), nil
	default:
		return nil, nil
	}
}

// runSources runs each source as its own tracked run and prints the
// summaries. It fails when any run ended failed.
func runSources(cmd *cobra.Command, sources ...ingest.Source) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := initStore(ctx, cfg, "ingest")
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	sums, runErr := ingest.NewEngine(st).RunAll(ctx, sources)
	if err := writeSummaries(cmd.OutOrStdout(), sums); err != nil {
		return err
	}
	if runErr != nil {
		zap.L().Error("ingest finished with failures", zap.String("component", "cmd"), zap.Error(runErr))
	}
	return runErr
}

func writeSummaries(w io.Writer, sums []ingest.Summary) error {
	if sums == nil {
		sums = []ingest.Summary{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(sums), "ingest: write summaries")
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
