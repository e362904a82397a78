package connector_test

import (
	"fmt"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/registry"

	// Import nodes to register them
	_ "github.com/ajitpratap0/forcebridge/pkg/connector/destinations/salesforce"
	_ "github.com/ajitpratap0/forcebridge/pkg/connector/sources/salesforce"
)

// Example lists the node kinds available to registry.CreateNode.
func Example() {
	for _, kind := range registry.ListNodes() {
		fmt.Println(kind)
	}
	// Output:
	// salesforce_extract
	// salesforce_load
	// salesforce_metadata
}

// Example_unsupportedOperation shows that a loader with an unknown
// operation is rejected before it can reach the API.
func Example_unsupportedOperation() {
	cfg := config.NewBaseConfig("contacts", config.KindLoad)
	cfg.Credentials.Username = "user@example.com"
	cfg.Credentials.Password = "secret"
	cfg.Salesforce.Object = "Contact"
	cfg.Salesforce.Operation = "upsert"

	_, err := registry.CreateNode(cfg)
	fmt.Println(err != nil)
	// Output: true
}

// Example_catalog prints what each node can do.
func Example_catalog() {
	for _, info := range registry.ListConnectorInfo() {
		fmt.Printf("%s (%s)\n", info.Name, info.Type)
	}
	// Output:
	// salesforce_extract (source)
	// salesforce_load (destination)
	// salesforce_metadata (source)
}
