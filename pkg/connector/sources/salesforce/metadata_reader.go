package salesforce

import (
	"context"

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

// ColumnMetadataJSON holds the serialized object list.
const ColumnMetadataJSON = "metadata_json"

// MetadataReader describes the whole org, not a single object.
type MetadataReader struct {
	*base.BaseNode
}

// NewMetadataReader creates a MetadataReader from cfg.
func NewMetadataReader(cfg *config.BaseConfig, opts ...base.Option) (*MetadataReader, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	return &MetadataReader{
		BaseNode: base.NewBaseNode(core.NodeKindMetadata, core.ConnectorTypeSource, "1.0.0", cfg, opts...),
	}, nil
}

// Execute returns the sobjects list of the global describe in column
// metadata_json. An empty list is logged and serialized as [].
func (m *MetadataReader) Execute(ctx context.Context, _ *core.Input) (*core.Output, error) {
	return m.Run(ctx, "", func(ctx context.Context, log *zap.Logger) (*core.Output, error) {
		client, err := m.Connect(ctx, log)
		if err != nil {
			return nil, err
		}

		var global *api.GlobalDescribe
		err = m.ExecuteRead(ctx, log, func(ctx context.Context) error {
			var err error
			global, err = client.DescribeGlobal(ctx)
			return err
		})
		if err != nil {
			return nil, err
		}

		objects := global.SObjects
		if len(objects) == 0 {
			log.Warn("describe returned no objects")
			objects = []map[string]interface{}{}
		}

		payload, err := json.MarshalString(objects)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to serialize metadata")
		}
		m.GetMetricsCollector().RecordRecords(string(m.Kind()), metrics.OutcomeExtracted, len(objects))
		log.Info("metadata read", zap.Int("objects", len(objects)))

		return &core.Output{Tables: []*table.Table{
			table.SingleCell(core.TableMetadata, ColumnMetadataJSON, payload),
		}}, nil
	})
}
