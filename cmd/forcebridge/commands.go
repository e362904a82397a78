package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/compression"
	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/base"
	"github.com/ajitpratap0/forcebridge/pkg/connector/core"
	"github.com/ajitpratap0/forcebridge/pkg/connector/registry"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/logger"
	"github.com/ajitpratap0/forcebridge/pkg/metrics"
	"github.com/ajitpratap0/forcebridge/pkg/observability"
	"github.com/ajitpratap0/forcebridge/pkg/table"
)

func newExtractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Run a SOQL query and write every record",
		Long: `Run a SOQL query and write the records as one JSON array in the
json_records column of the "records" table.

Without --query the SELECT list is built from the object's describe,
optionally restricted with --fields.

Example:
  forcebridge extract --object Account --fields Id,Name --expand`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, core.NodeKindExtract, nil)
		},
	}

	f := cmd.Flags()
	f.String("object", "", "sObject to extract")
	f.String("query", "", "Custom SOQL query (overrides --object)")
	f.StringSlice("fields", nil, "Fields to select (default: every field)")
	f.Bool("include-deleted", false, "Include deleted and archived records (queryAll)")
	f.Bool("expand", false, `Also write one row per record to the "records_expanded" table`)
	a.bindLocal(cmd, map[string]string{
		"object":          "salesforce.object",
		"query":           "salesforce.query",
		"fields":          "salesforce.fields",
		"include-deleted": "salesforce.include_deleted",
		"expand":          "output.expand",
	})
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	var input string

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Insert, update or delete one record per input row",
		Long: `Apply one insert, update or delete call per row of the input table and
write the rows that succeeded ("successes", with sf__Id) and the rows that
failed ("failures", with sf__Error).

The input format and compression are taken from the file name, for example
accounts.csv, accounts.json.gz or accounts.csv.zst.

Example:
  forcebridge load --object Contact --operation update --input contacts.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, core.NodeKindLoad, func() (*core.Input, error) {
				t, err := table.ReadFile(input)
				if err != nil {
					return nil, err
				}
				return core.NewInput(t), nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "", "Input table (required)")
	f.String("object", "", "Target sObject")
	f.String("operation", "", "insert, update or delete")
	f.String("id-field", "Id", "Identifier column for update and delete")
	_ = cmd.MarkFlagRequired("input")
	a.bindLocal(cmd, map[string]string{
		"object":    "salesforce.object",
		"operation": "salesforce.operation",
		"id-field":  "salesforce.id_field",
	})
	return cmd
}

func newMetadataCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metadata",
		Short: "Write the org's global describe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, core.NodeKindMetadata, nil)
		},
	}
}

// bindLocal binds the command's own flags when it is the one executing, so
// commands sharing a flag name do not steal each other's values.
func (a *app) bindLocal(cmd *cobra.Command, flags map[string]string) {
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		for flag, key := range flags {
			a.bind(cmd.Flags(), key, flag)
		}
	}
}

// run executes one node and writes its output tables.
func (a *app) run(cmd *cobra.Command, kind core.NodeKind, input func() (*core.Input, error)) error {
	cfg, err := config.LoadViper(a.v, a.configFile)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to load configuration")
	}
	cfg.Type = string(kind)

	// Output settings are checked before any remote call
	format, err := table.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}
	alg, err := compression.ParseAlgorithm(cfg.Output.Compression)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid output compression")
	}

	log, err := logger.New(logger.Config{
		Level:    cfg.Observability.LogLevel,
		Encoding: cfg.Observability.LogFormat,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "invalid logging configuration")
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("component", "forcebridge-cli"))

	if cfg.Observability.EnableTracing {
		shutdown, err := observability.InitTracing(observability.DefaultTracingConfig(version))
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize tracing")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				log.Warn("failed to flush spans", zap.Error(err))
			}
		}()
	}

	var in *core.Input
	if input != nil {
		if in, err = input(); err != nil {
			return err
		}
	}

	collector := metrics.NewCollector()
	node, err := registry.CreateNode(cfg, base.WithLogger(log), base.WithMetrics(collector))
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := node.Execute(cmd.Context(), in)
	if err != nil {
		a.writeMetrics(log, collector)
		return err
	}

	if err := os.MkdirAll(cfg.Output.Directory, 0o750); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory")
	}

	data := pterm.TableData{{"Table", "Rows", "File"}}
	for _, t := range out.Tables {
		path := table.FileName(cfg.Output.Directory, t.Name, format, alg)
		if err := table.WriteFile(path, t, format, alg); err != nil {
			return err
		}
		data = append(data, []string{t.Name, strconv.Itoa(t.Len()), path})
		log.Info("table written", zap.String("table", t.Name), zap.Int("rows", t.Len()), zap.String("path", path))
	}

	w := cmd.OutOrStdout()
	if err := renderTable(w, data); err != nil {
		return err
	}
	summarize(w, kind, collector, out, time.Since(start))
	a.writeMetrics(log, collector)
	return nil
}

// summarize prints the run counters below the table listing.
func summarize(w io.Writer, kind core.NodeKind, collector *metrics.Collector, out *core.Output, elapsed time.Duration) {
	calls := collector.Sum("api_calls_total", nil)
	fmt.Fprintf(w, "%s finished in %s with %.0f API calls\n", kind, elapsed.Round(time.Millisecond), calls)

	switch kind {
	case core.NodeKindExtract:
		pages := collector.Sum("query_pages_total", nil)
		fmt.Fprintf(w, "%.0f records in %.0f pages\n",
			collector.Sum("records_total", map[string]string{"outcome": metrics.OutcomeExtracted}), pages)
	case core.NodeKindLoad:
		failed := out.Table(core.TableFailures).Len()
		fmt.Fprintf(w, "%d succeeded, %d failed\n", out.Table(core.TableSuccesses).Len(), failed)
		if failed > 0 {
			fmt.Fprintln(w, pterm.Warning.Sprintf("%d rows were rejected, see the failures table", failed))
		}
	}
}

func (a *app) writeMetrics(log *zap.Logger, collector *metrics.Collector) {
	if a.metricsFile == "" {
		return
	}
	f, err := os.Create(a.metricsFile)
	if err != nil {
		log.Warn("failed to create metrics file", zap.String("path", a.metricsFile), zap.Error(err))
		return
	}
	defer f.Close()
	if err := collector.WriteText(f); err != nil {
		log.Warn("failed to write metrics", zap.String("path", a.metricsFile), zap.Error(err))
	}
}

func renderTable(w io.Writer, data pterm.TableData) error {
	s, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, s)
	return err
}
