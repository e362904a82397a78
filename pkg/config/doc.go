// Package config provides the unified configuration system for forcebridge.
//
// A single BaseConfig structure is shared by every node, so the CLI, YAML
// files and environment variables all describe a run the same way.
//
// # Sections
//
//   - Credentials: username, password, security token, login domain
//   - Salesforce: API version, object, query and load settings
//   - Timeouts: request, connection and whole-run timeouts
//   - Reliability: retries, circuit breaker, rate limiting
//   - Observability: logging, metrics, tracing
//   - Output: table file format and compression
//
// # Loading
//
// YAML files may reference environment variables with ${VAR_NAME}:
//
//	# extract.yaml
//	name: nightly-accounts
//	type: salesforce_extract
//	credentials:
//	  username: ${SF_USERNAME}
//	  password: ${SF_PASSWORD}
//	  security_token: ${SF_TOKEN}
//	salesforce:
//	  object: Account
//
//	var cfg config.BaseConfig
//	if err := config.Load("extract.yaml", &cfg); err != nil {
//		log.Fatal(err)
//	}
//
// The CLI goes through viper instead, so flags and FORCEBRIDGE_* variables
// override file values:
//
//	v := config.NewViper(config.NewBaseConfig("cli", config.KindExtract))
//	cfg, err := config.LoadViper(v, "extract.yaml")
//
// # Validation
//
// Validate checks the credentials and whatever the node kind in Type needs:
// an extract needs a query or an object, a load needs an object and an
// operation. Failures are errors of type ErrorTypeConfig.
package config
