// Package salesforce provides the source nodes: the Extractor, which pages
// through a SOQL query, and the MetadataReader, which describes the org.
// Both emit a single-cell table holding one JSON document.
package salesforce

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/base"
	"github.com/ajitpratap0/forcebridge/pkg/connector/core"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/json"
	"github.com/ajitpratap0/forcebridge/pkg/metrics"
	api "github.com/ajitpratap0/forcebridge/pkg/salesforce"
	"github.com/ajitpratap0/forcebridge/pkg/table"
)

// ColumnJSONRecords holds the serialized records in the extract output.
const ColumnJSONRecords = "json_records"

// customQueryLabel replaces the object name in metrics for custom queries.
const customQueryLabel = "custom_query"

// Extractor runs one query and collects every page into a single cell.
type Extractor struct {
	*base.BaseNode

	query          api.QuerySpec
	includeDeleted bool
	expand         bool
}

// NewExtractor creates an Extractor from cfg.
func NewExtractor(cfg *config.BaseConfig, opts ...base.Option) (*Extractor, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	sf := cfg.Salesforce
	query := api.QuerySpec{Custom: sf.Query, Object: strings.TrimSpace(sf.Object), Fields: sf.Fields}
	if !query.IsCustom() && query.Object == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "either query or object is required")
	}

	return &Extractor{
		BaseNode:       base.NewBaseNode(core.NodeKindExtract, core.ConnectorTypeSource, "1.0.0", cfg, opts...),
		query:          query,
		includeDeleted: sf.IncludeDeleted,
		expand:         cfg.Output.Expand,
	}, nil
}

// Execute authenticates, resolves the query, pages through all results
// and returns them as one JSON array in column json_records.
func (e *Extractor) Execute(ctx context.Context, _ *core.Input) (*core.Output, error) {
	return e.Run(ctx, e.query.Object, func(ctx context.Context, log *zap.Logger) (*core.Output, error) {
		client, err := e.Connect(ctx, log)
		if err != nil {
			return nil, err
		}

		soql, err := e.resolveQuery(ctx, log, client)
		if err != nil {
			return nil, err
		}

		records, err := e.fetchAll(ctx, log, client, soql)
		if err != nil {
			return nil, err
		}

		payload, err := json.MarshalString(records)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize records")
		}
		e.GetMetricsCollector().RecordRecords(string(e.Kind()), metrics.OutcomeExtracted, len(records))

		out := &core.Output{Tables: []*table.Table{
			table.SingleCell(core.TableRecords, ColumnJSONRecords, payload),
		}}
		if e.expand {
			rows := make([]map[string]interface{}, len(records))
			for i, r := range records {
				rows[i] = r
			}
			out.Tables = append(out.Tables, table.FromRecords(core.TableRecordsExpanded, rows, "attributes"))
		}
		return out, nil
	})
}

// resolveQuery returns the custom query untouched, or synthesizes one from
// the object describe. A custom query never triggers a describe call.
func (e *Extractor) resolveQuery(ctx context.Context, log *zap.Logger, client *api.Client) (string, error) {
	if e.query.IsCustom() {
		log.Debug("using custom query")
		return strings.TrimSpace(e.query.Custom), nil
	}

	var desc *api.SObjectDescribe
	err := e.ExecuteRead(ctx, log, func(ctx context.Context) error {
		var err error
		desc, err = client.DescribeSObject(ctx, e.query.Object)
		return err
	})
	if err != nil {
		return "", err
	}

	fields, err := api.SelectFields(desc, e.query.Fields)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "invalid field selection")
	}
	soql, err := api.BuildSelect(e.query.Object, fields)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeQuery, "cannot build query")
	}

	log.Debug("synthesized query", zap.Int("fields", len(fields)))
	return soql, nil
}

// fetchAll runs soql and follows continuation cursors until a page reports
// done.
func (e *Extractor) fetchAll(ctx context.Context, log *zap.Logger, client *api.Client, soql string) ([]api.Record, error) {
	label := e.query.Object
	if e.query.IsCustom() || label == "" {
		label = customQueryLabel
	}
	collector := e.GetMetricsCollector()

	var page *api.QueryResult
	err := e.ExecuteRead(ctx, log, func(ctx context.Context) error {
		var err error
		if e.includeDeleted {
			page, err = client.QueryAll(ctx, soql)
		} else {
			page, err = client.Query(ctx, soql)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	collector.RecordPage(label)

	// totalSize is informational only and never sizes a buffer
	totalSize := page.TotalSize
	records := append([]api.Record(nil), page.Records...)
	pages := 1

	for !page.Done {
		next := page.NextRecordsURL
		if next == "" {
			return nil, errors.New(errors.ErrorTypeQuery, "result page is not done but has no continuation cursor").
				WithDetail("pages", pages).
				WithDetail("records", len(records))
		}

		err := e.ExecuteRead(ctx, log, func(ctx context.Context) error {
			var err error
			page, err = client.QueryMore(ctx, next)
			return err
		})
		if err != nil {
			return nil, err
		}
		collector.RecordPage(label)
		records = append(records, page.Records...)
		pages++

		log.Debug("fetched page", zap.Int("page", pages), zap.Int("records", len(records)))
	}

	log.Info("query complete",
		zap.Int("records", len(records)),
		zap.Int("pages", pages),
		zap.Int("total_size", totalSize))
	return records, nil
}
