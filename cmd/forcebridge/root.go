package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/registry"

	// Import all nodes to register them
	_ "github.com/ajitpratap0/forcebridge/pkg/connector/destinations/salesforce"
	_ "github.com/ajitpratap0/forcebridge/pkg/connector/sources/salesforce"
)

// app carries the state shared by every command of one CLI invocation.
type app struct {
	v           *viper.Viper
	configFile  string
	metricsFile string
}

func newApp() *app {
	return &app{v: config.NewViper(config.NewBaseConfig("forcebridge", ""))}
}

// bind attaches flag to the viper key. Flags that were not set on the
// command line leave env, file and default values in charge.
func (a *app) bind(flags *pflag.FlagSet, key, flag string) {
	if err := a.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
		panic(fmt.Sprintf("bind %s: %v", flag, err))
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "forcebridge",
		Short: "forcebridge - move Salesforce records between the REST API and local tables",
		Long: `forcebridge extracts records with SOQL, loads rows back as inserts, updates or
deletes, and reads the org's object metadata. Results are written as CSV or
JSON tables, optionally compressed.

Settings come from flags, FORCEBRIDGE_* environment variables, an optional
YAML file and defaults, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "Path to a YAML configuration file")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "Write prometheus metrics in text format to this file after the run")

	pf.String("username", "", "Salesforce username")
	pf.String("password", "", "Salesforce password")
	pf.String("security-token", "", "Security token appended to the password")
	pf.String("domain", "login", "Login domain: login, test, a My Domain prefix, or a URL")
	pf.String("client-id", "", "Connected app consumer key (enables the OAuth2 password flow)")
	pf.String("client-secret", "", "Connected app consumer secret")
	pf.String("api-version", config.DefaultAPIVersion, "REST API version")

	pf.String("format", "csv", "Output table format (csv, json)")
	pf.String("compression", "none", "Output compression (none, gzip, zstd, lz4, snappy, s2)")
	pf.String("output-dir", ".", "Directory receiving output tables")

	pf.Int("retry-attempts", 1, "Attempts for read calls (1 disables retries)")
	pf.Int("rate-limit", 0, "Maximum API calls per second (0 = unlimited)")
	pf.Duration("timeout", 0, "Bound the whole run (0 = unbounded)")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.String("log-format", "json", "Log encoding (json, console)")
	pf.Bool("tracing", false, "Export OpenTelemetry spans to stderr")

	for key, flag := range map[string]string{
		"credentials.username":           "username",
		"credentials.password":           "password",
		"credentials.security_token":     "security-token",
		"credentials.domain":             "domain",
		"credentials.client_id":          "client-id",
		"credentials.client_secret":      "client-secret",
		"salesforce.api_version":         "api-version",
		"output.format":                  "format",
		"output.compression":             "compression",
		"output.directory":               "output-dir",
		"reliability.retry_attempts":     "retry-attempts",
		"reliability.rate_limit_per_sec": "rate-limit",
		"timeouts.run":                   "timeout",
		"observability.log_level":        "log-level",
		"observability.log_format":       "log-format",
		"observability.enable_tracing":   "tracing",
	} {
		a.bind(pf, key, flag)
	}

	root.AddCommand(
		newExtractCmd(a),
		newLoadCmd(a),
		newMetadataCmd(a),
		newListCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "forcebridge v%s\n", version)
			fmt.Fprintf(out, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(out, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available node kinds",
		RunE: func(cmd *cobra.Command, args []string) error {
			data := pterm.TableData{{"Kind", "Direction", "Capabilities", "Description"}}
			for _, kind := range registry.ListNodes() {
				row := []string{string(kind), "", "", ""}
				if info, err := registry.GetConnectorInfo(string(kind)); err == nil {
					row = []string{info.Name, info.Type, strings.Join(info.Capabilities, ", "), info.Description}
				}
				data = append(data, row)
			}
			return renderTable(cmd.OutOrStdout(), data)
		},
	}
}
