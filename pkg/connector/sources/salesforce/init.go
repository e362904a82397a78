package salesforce

import (
	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/base"
	"github.com/ajitpratap0/forcebridge/pkg/connector/core"
	"github.com/ajitpratap0/forcebridge/pkg/connector/registry"
)

func init() {
	_ = registry.RegisterNode(core.NodeKindExtract, func(cfg *config.BaseConfig, opts ...base.Option) (core.Node, error) {
		return NewExtractor(cfg, opts...)
	})
	_ = registry.RegisterNode(core.NodeKindMetadata, func(cfg *config.BaseConfig, opts ...base.Option) (core.Node, error) {
		return NewMetadataReader(cfg, opts...)
	})

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:        string(core.NodeKindExtract),
		Type:        string(core.ConnectorTypeSource),
		Description: "Runs a SOQL query (custom, or synthesized from an object describe) and returns every page as one JSON cell",
		Version:     "1.0.0",
		Capabilities: []string{
			"pagination",
			"query_all",
			"field_selection",
			"expand",
		},
		ConfigSchema: map[string]interface{}{
			"salesforce.query": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "Custom SOQL query; wins over object when set",
			},
			"salesforce.object": map[string]interface{}{
				"type":        "string",
				"required":    false,
				"description": "sObject to select every field from",
			},
			"salesforce.fields": map[string]interface{}{
				"type":        "[]string",
				"required":    false,
				"description": "Restricts the synthesized field list",
			},
			"salesforce.include_deleted": map[string]interface{}{
				"type":        "bool",
				"required":    false,
				"default":     false,
				"description": "Use queryAll to include deleted and archived records",
			},
		},
	})

	_ = registry.RegisterConnectorInfo(&registry.ConnectorInfo{
		Name:         string(core.NodeKindMetadata),
		Type:         string(core.ConnectorTypeSource),
		Description:  "Describes every sObject in the org and returns the list as one JSON cell",
		Version:      "1.0.0",
		Capabilities: []string{"describe_global"},
		ConfigSchema: map[string]interface{}{},
	})
}
