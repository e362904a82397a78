// Package connector holds the forcebridge nodes and the plumbing they share.
//
// # Layout
//
//   - core: the Node interface and the Input/Output table envelopes every
//     node exchanges.
//
//   - base: BaseNode, embedded by every node. It owns the logger, metrics
//     collector, tracer, HTTP client, authenticator, retry policy and
//     per-record error handler, and wraps each invocation in Run so that
//     run ids, spans, timeouts and outcome metrics are uniform.
//
//   - sources/salesforce: the Extractor (salesforce_extract) and the
//     Metadata Reader (salesforce_metadata).
//
//   - destinations/salesforce: the Loader (salesforce_load).
//
//   - registry: kind to factory mapping. Nodes register themselves from
//     init, so importing a node package is enough to make it available to
//     registry.CreateNode.
//
// # Execution model
//
// A node is created once per configuration and executed once per call of
// Execute. Execute authenticates, performs its remote calls sequentially
// and returns tables; it never keeps a session between invocations.
//
// Fatal errors (authentication, describe, query, configuration) return a
// nil Output. Per-record loader failures are not errors: they land in the
// failures table with an sf__Error column.
//
// # Usage
//
//	cfg := config.NewBaseConfig("accounts", config.KindExtract)
//	cfg.Credentials.Username = "user@example.com"
//	cfg.Credentials.Password = "secret"
//	cfg.Salesforce.Object = "Account"
//
//	node, err := registry.CreateNode(cfg, base.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	out, err := node.Execute(ctx, nil)
package connector
