// Package core defines the contracts shared by every forcebridge node.
package core

import (
	"context"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/table"
)

// ConnectorType represents the direction of a node
type ConnectorType string

const (
	ConnectorTypeSource      ConnectorType = "source"
	ConnectorTypeDestination ConnectorType = "destination"
)

// NodeKind identifies a node implementation. It matches BaseConfig.Type.
type NodeKind string

const (
	NodeKindExtract  NodeKind = config.KindExtract
	NodeKindLoad     NodeKind = config.KindLoad
	NodeKindMetadata NodeKind = config.KindMetadata
)

// Output table names.
const (
	TableRecords         = "records"
	TableRecordsExpanded = "records_expanded"
	TableMetadata        = "metadata"
	TableSuccesses       = "successes"
	TableFailures        = "failures"
)

// Input carries the tables handed to a node. Sources ignore it.
type Input struct {
	Tables []*table.Table
}

// NewInput wraps tables in an Input.
func NewInput(tables ...*table.Table) *Input {
	return &Input{Tables: tables}
}

// First returns the first input table, or nil.
func (in *Input) First() *table.Table {
	if in == nil || len(in.Tables) == 0 {
		return nil
	}
	return in.Tables[0]
}

// Output carries the tables a node produced, in a fixed order per kind.
type Output struct {
	Tables []*table.Table
}

// Table returns the output table with the given name.
func (o *Output) Table(name string) *table.Table {
	if o == nil {
		return nil
	}
	for _, t := range o.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// Node is one authenticate -> call -> reshape cycle against the API.
type Node interface {
	// Metadata
	Name() string
	Kind() NodeKind
	Type() ConnectorType
	Version() string

	// Execute runs the node once. A returned error means no output.
	Execute(ctx context.Context, input *Input) (*Output, error)

	// Metrics returns a snapshot of run statistics
	Metrics() map[string]interface{}
}
