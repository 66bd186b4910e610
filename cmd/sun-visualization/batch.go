package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yuzuleung/sun-visualization/internal/fallback"
	"github.com/yuzuleung/sun-visualization/internal/sun"
	"github.com/yuzuleung/sun-visualization/internal/synth"
)

type batchFlags struct {
	year    int
	country string
	offline bool
}

func (f *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.year, "year", time.Now().Year(), "year to load")
	cmd.Flags().StringVar(&f.country, "country", sun.AllCountries, "ISO country code or ALL")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "compute sun times locally instead of calling the archive")
}

func (f *batchFlags) normalize() {
	f.country = strings.ToUpper(f.country)
}

func loadCommand(cc *cliContext) *cobra.Command {
	var flags batchFlags

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load one year for the roster and print the summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.normalize()
			rt, err := newRuntime(cmd.Context(), cc, flags.offline)
			if err != nil {
				return err
			}
			defer rt.Close()

			cities, err := rt.cities(flags.country)
			if err != nil {
				return err
			}
			summary := rt.loader.Load(cmd.Context(), cities, flags.year)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	flags.register(cmd)
	return cmd
}

func exportCommand(cc *cliContext) *cobra.Command {
	var (
		flags batchFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Load one year and write it as a fallback document",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.normalize()
			rt, err := newRuntime(cmd.Context(), cc, flags.offline)
			if err != nil {
				return err
			}
			defer rt.Close()

			cities, err := rt.cities(flags.country)
			if err != nil {
				return err
			}
			summary := rt.loader.Load(cmd.Context(), cities, flags.year)
			datasets := rt.loader.Datasets()
			if len(datasets) == 0 {
				return fmt.Errorf("nothing to export: all %d cities failed", summary.Failed)
			}

			now := time.Now()
			if out == "" {
				out = fallback.FileName(now)
			}
			if err := fallback.WriteFile(out, fallback.Export(rt.roster.Cities, datasets, now)); err != nil {
				return err
			}
			cc.logger.Info("export written", "path", out, "entries", len(datasets), "failed", summary.Failed)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default sun-data-fallback-<date>.json)")
	return cmd
}

func synthCommand(cc *cliContext) *cobra.Command {
	var (
		flags batchFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Compute a fallback document locally for the roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.normalize()
			rt, err := newRuntime(cmd.Context(), cc, true)
			if err != nil {
				return err
			}
			defer rt.Close()

			cities, err := rt.cities(flags.country)
			if err != nil {
				return err
			}
			now := time.Now()
			doc, err := synth.Document(cmd.Context(), cities, flags.year, now)
			if err != nil {
				return err
			}
			if out == "" {
				out = fallback.FileName(now)
			}
			if err := fallback.WriteFile(out, doc); err != nil {
				return err
			}
			cc.logger.Info("computed document written", "path", out, "entries", doc.Metadata.TotalEntries)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default sun-data-fallback-<date>.json)")
	return cmd
}

func nightCommand(cc *cliContext) *cobra.Command {
	var (
		flags batchFlags
		day   int
		clock string
	)

	cmd := &cobra.Command{
		Use:   "night",
		Short: "Print which cities are in darkness at a UTC instant",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.normalize()
			minute, err := sun.ParseMinutes(clock)
			if err != nil {
				return err
			}

			rt, err := newRuntime(cmd.Context(), cc, flags.offline)
			if err != nil {
				return err
			}
			defer rt.Close()

			cities, err := rt.cities(flags.country)
			if err != nil {
				return err
			}
			rt.loader.Load(cmd.Context(), cities, flags.year)
			view := sun.NightView(cities, rt.loader.Dataset, flags.year, day, minute)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "%s %s UTC\n\n", sun.DateFromYearDay(flags.year, day), sun.FormatMinutes(minute))
			fmt.Fprintln(w, "CITY\tCOUNTRY\tPHASE\tSUNRISE\tSUNSET\tSOURCE")
			for _, st := range view {
				phase := string(st.Phase)
				if !st.Loaded {
					phase = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					st.City, st.Country, phase, st.SunriseUTC, st.SunsetUTC, st.Provenance)
			}
			return w.Flush()
		},
	}
	flags.register(cmd)
	now := time.Now().UTC()
	cmd.Flags().IntVar(&day, "day", now.YearDay(), "day of year, 1-based")
	cmd.Flags().StringVar(&clock, "time", now.Format("15:04"), "UTC time as HH:MM")
	return cmd
}
