// Package salesforce provides the Loader, a destination node that applies
// one insert, update or delete call per input row and partitions the rows
// into successes and failures.
package salesforce

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/base"
	"github.com/ajitpratap0/forcebridge/pkg/connector/core"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/metrics"
	api "github.com/ajitpratap0/forcebridge/pkg/salesforce"
	"github.com/ajitpratap0/forcebridge/pkg/table"
)

// Columns appended to the output tables.
const (
	ColumnID    = "sf__Id"
	ColumnError = "sf__Error"
)

// Loader mutates one record per input row.
type Loader struct {
	*base.BaseNode

	object    string
	operation api.Operation
	idField   string
}

// NewLoader creates a Loader from cfg. An operation other than insert,
// update or delete is a configuration error, so no node exists to make
// remote calls.
func NewLoader(cfg *config.BaseConfig, opts ...base.Option) (*Loader, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	object := strings.TrimSpace(cfg.Salesforce.Object)
	if object == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "object is required")
	}
	op, ok := api.ParseOperation(cfg.Salesforce.Operation)
	if !ok {
		return nil, errors.Newf(errors.ErrorTypeConfig,
			"unsupported operation %q: expected insert, update or delete", cfg.Salesforce.Operation)
	}

	return &Loader{
		BaseNode:  base.NewBaseNode(core.NodeKindLoad, core.ConnectorTypeDestination, "1.0.0", cfg, opts...),
		object:    object,
		operation: op,
		idField:   cfg.Salesforce.IDFieldOrDefault(),
	}, nil
}

// Operation returns the mutation this loader applies.
func (l *Loader) Operation() api.Operation {
	return l.operation
}

// Execute loads the first input table and returns the successes and
// failures tables, in that order. Row order follows the input.
func (l *Loader) Execute(ctx context.Context, input *core.Input) (*core.Output, error) {
	rows := input.First()
	if rows == nil {
		return nil, errors.New(errors.ErrorTypeValidation, "loader requires an input table")
	}

	return l.Run(ctx, l.object, func(ctx context.Context, log *zap.Logger) (*core.Output, error) {
		client, err := l.Connect(ctx, log)
		if err != nil {
			return nil, err
		}

		partition, err := l.Load(ctx, log, client, rows.Records())
		if err != nil {
			return nil, err
		}

		return &core.Output{Tables: []*table.Table{
			successTable(rows, partition),
			failureTable(rows, partition),
		}}, nil
	})
}

// Load applies the operation to every record in order. A failing record
// never stops the batch; only a cancelled context does, in which case no
// partition is returned.
func (l *Loader) Load(ctx context.Context, log *zap.Logger, client *api.Client, records []map[string]interface{}) (*api.Partition, error) {
	handler := l.GetErrorHandler()
	progress := base.NewProgressReporter(log, len(records))
	partition := &api.Partition{}

	for i, raw := range records {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeTimeout, "load interrupted").
				WithDetail("processed", i)
		}

		outcome := l.apply(ctx, client, i, api.Record(raw))
		if outcome.Err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(outcome.Err, errors.ErrorTypeTimeout, "load interrupted").
					WithDetail("processed", i)
			}
			outcome.Err = handler.HandleRecordError(i, outcome.Err)
		}

		partition.Add(outcome)
		progress.Record(outcome.Err == nil)
	}

	summary := progress.Finish()
	collector := l.GetMetricsCollector()
	collector.RecordRecords(string(l.Kind()), metrics.OutcomeSucceeded, int(summary.Succeeded))
	collector.RecordRecords(string(l.Kind()), metrics.OutcomeFailed, int(summary.Failed))
	return partition, nil
}

// apply runs the operation for one record.
func (l *Loader) apply(ctx context.Context, client *api.Client, index int, rec api.Record) api.Outcome {
	outcome := api.Outcome{Index: index, Record: rec}

	switch l.operation {
	case api.OperationInsert:
		outcome.ID, outcome.Err = client.Create(ctx, l.object, rec.Clone())

	case api.OperationUpdate:
		payload := dropEmpty(rec)
		id, ok := popIdentifier(payload, l.idField)
		if !ok {
			outcome.Err = l.missingIdentifier()
			return outcome
		}
		outcome.ID = id
		outcome.Err = client.Update(ctx, l.object, id, payload)

	case api.OperationDelete:
		id, ok := identifier(rec, l.idField)
		if !ok {
			outcome.Err = l.missingIdentifier()
			return outcome
		}
		outcome.ID = id
		outcome.Err = client.Delete(ctx, l.object, id)
	}
	return outcome
}

func (l *Loader) missingIdentifier() error {
	return errors.Newf(errors.ErrorTypeMissingIdentifier, "record has no %s value", l.idField).
		WithDetail("field", l.idField)
}

// dropEmpty copies rec without nil values and empty strings.
func dropEmpty(rec api.Record) api.Record {
	out := make(api.Record, len(rec))
	for k, v := range rec {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// fieldKey finds field in rec, exactly or else case-insensitively.
func fieldKey(rec api.Record, field string) (string, bool) {
	if _, ok := rec[field]; ok {
		return field, true
	}
	for k := range rec {
		if strings.EqualFold(k, field) {
			return k, true
		}
	}
	return "", false
}

// identifier reads the id field without removing it. Blank values count
// as missing.
func identifier(rec api.Record, field string) (string, bool) {
	key, ok := fieldKey(rec, field)
	if !ok {
		return "", false
	}
	id := strings.TrimSpace(table.FormatValue(rec[key]))
	return id, id != ""
}

// popIdentifier reads the id field and removes it from rec.
func popIdentifier(rec api.Record, field string) (string, bool) {
	key, ok := fieldKey(rec, field)
	if !ok {
		return "", false
	}
	id, ok := identifier(rec, key)
	delete(rec, key)
	return id, ok
}

func successTable(input *table.Table, p *api.Partition) *table.Table {
	out := table.New(core.TableSuccesses, append(append([]string(nil), input.Columns...), ColumnID)...)
	for _, o := range p.Successes {
		out.Rows = append(out.Rows, extend(input.Rows[o.Index], len(input.Columns), o.ID))
	}
	return out
}

func failureTable(input *table.Table, p *api.Partition) *table.Table {
	out := table.New(core.TableFailures, append(append([]string(nil), input.Columns...), ColumnError)...)
	for _, o := range p.Failures {
		out.Rows = append(out.Rows, extend(input.Rows[o.Index], len(input.Columns), FailureMessage(o.Err)))
	}
	return out
}

// extend copies row padded to width and appends value.
func extend(row []interface{}, width int, value interface{}) []interface{} {
	out := make([]interface{}, width+1)
	copy(out, row)
	out[width] = value
	return out
}

// FailureMessage is the text written to sf__Error: the API error codes and
// messages when the service rejected the record, otherwise the messages of
// the typed errors in the chain. Raw transport errors are left out since
// they carry request URLs.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if s := apiErr.Summary(); s != "" {
			return s
		}
		return fmt.Sprintf("HTTP %d", apiErr.StatusCode)
	}
	var typed *errors.Error
	if !errors.As(err, &typed) {
		return err.Error()
	}
	if typed.Type == errors.ErrorTypeMissingIdentifier {
		return typed.Message
	}

	var parts []string
	for typed != nil {
		parts = append(parts, typed.Message)
		var next *errors.Error
		if typed.Cause == nil || !errors.As(typed.Cause, &next) {
			break
		}
		typed = next
	}
	return strings.Join(parts, ": ")
}
