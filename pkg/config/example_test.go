package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/forcebridge/pkg/config"
)

// ExampleNewBaseConfig demonstrates creating a new base configuration
// with default values.
func ExampleNewBaseConfig() {
	cfg := config.NewBaseConfig("accounts", config.KindExtract)

	fmt.Printf("API Version: %s\n", cfg.Salesforce.APIVersion)
	fmt.Printf("Domain: %s\n", cfg.Credentials.Domain)
	fmt.Printf("Request Timeout: %s\n", cfg.Timeouts.Request)
	fmt.Printf("Retry Attempts: %d\n", cfg.Reliability.RetryAttempts)

	// Output:
	// API Version: 59.0
	// Domain: login
	// Request Timeout: 2m0s
	// Retry Attempts: 1
}

// ExampleBaseConfig_Validate shows how to validate a configuration
// before using it.
func ExampleBaseConfig_Validate() {
	cfg := config.NewBaseConfig("contacts-load", config.KindLoad)
	cfg.Credentials.Username = "ops@example.com"
	cfg.Credentials.Password = "secret"
	cfg.Salesforce.Object = "Contact"

	if err := cfg.Validate(); err != nil {
		fmt.Println(err)
	}

	cfg.Salesforce.Operation = "update"
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	fmt.Println("Configuration is valid!")

	// Output:
	// config: operation is required
	// Configuration is valid!
}
