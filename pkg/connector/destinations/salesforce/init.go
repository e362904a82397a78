package salesforce

import (
	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/base"
	"github.com/ajitpratap0/forcebridge/pkg/connector/core"
	"github.com/ajitpratap0/forcebridge/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterNode(core.NodeKindLoad, func(cfg *config.BaseConfig, opts ...base.Option) (core.Node, error) {
		return NewLoader(cfg, opts...)
	})

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        string(core.NodeKindLoad),
		Type:        string(core.ConnectorTypeDestination),
		Description: "Inserts, updates or deletes one record per input row and splits rows into successes and failures",
		Version:     "1.0.0",
		Capabilities: []string{
			"insert",
			"update",
			"delete",
			"partial_failure",
		},
		ConfigSchema: map[string]interface{}{
			"salesforce.object": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "Target sObject",
			},
			"salesforce.operation": map[string]interface{}{
				"type":        "string",
				"required":    true,
				"description": "insert, update or delete (case-insensitive)",
				"enum":        []string{"insert", "update", "delete"},
			},
			"salesforce.id_field": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"default":     "Id",
				"description": "Identifier column for update and delete",
			},
		},
	})
}
