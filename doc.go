// Package forcebridge moves Salesforce data between the REST API and local
// tables.
//
// Three node kinds are available:
//
//   - salesforce_extract runs a SOQL query, either a custom one or a SELECT
//     synthesized from an object's describe, follows every page, and returns
//     the records as one JSON array in the json_records cell.
//   - salesforce_load inserts, updates or deletes one record per input row
//     and splits the rows into a successes table (sf__Id) and a failures
//     table (sf__Error).
//   - salesforce_metadata returns the org's global describe as one JSON
//     array in the metadata_json cell.
//
// Every invocation authenticates first, with the SOAP login or, when a
// client id and secret are configured, the OAuth2 password flow. No other
// call is made when authentication fails.
//
// # Quick Start
//
//	export FORCEBRIDGE_CREDENTIALS_USERNAME=user@example.com
//	export FORCEBRIDGE_CREDENTIALS_PASSWORD=secret
//	export FORCEBRIDGE_CREDENTIALS_SECURITY_TOKEN=token
//
//	forcebridge extract --object Account --fields Id,Name --output-dir out
//	forcebridge load --object Account --operation update --input out/records_expanded.csv
//	forcebridge metadata --format json --compression zstd
//
// # Key Packages
//
//	pkg/auth         - SOAP and OAuth2 login
//	pkg/salesforce   - REST client, SOQL synthesis, API errors
//	pkg/connector    - nodes, BaseNode and the registry
//	pkg/table        - tables and their CSV/JSON files
//	pkg/compression  - gzip, zstd, lz4, snappy and s2 streams
//	pkg/config       - BaseConfig, YAML and viper loading
//	pkg/errors       - typed errors
//	pkg/logger       - zap logging with secret masking
//	pkg/metrics      - prometheus collector
//	pkg/observability - OpenTelemetry tracing
//
// # Configuration
//
// Settings come from flags, FORCEBRIDGE_* environment variables, an optional
// YAML file (--config) and defaults, in that order of precedence. A .env
// file in the working directory is loaded first. YAML values may reference
// environment variables with ${VAR_NAME}.
package forcebridge
