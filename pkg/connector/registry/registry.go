// Package registry maps node kinds to factories and keeps a catalog of
// node descriptions for the CLI.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/base"
	"github.com/ajitpratap0/forcebridge/pkg/connector/core"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/logger"
)

// NodeFactory creates a node for a validated configuration.
type NodeFactory func(cfg *config.BaseConfig, opts ...base.Option) (core.Node, error)

// Registry manages node registration and instantiation
type Registry struct {
	factories map[core.NodeKind]NodeFactory
	mu        sync.RWMutex
	logger    *zap.Logger
}

// Global registry instance
var globalRegistry = NewRegistry()

// NewRegistry creates a new node registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[core.NodeKind]NodeFactory),
		logger:    logger.Get().With(zap.String("component", "node_registry")),
	}
}

// RegisterNode registers a node factory
func (r *Registry) RegisterNode(kind core.NodeKind, factory NodeFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[kind]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("node %s already registered", kind))
	}

	r.factories[kind] = factory
	r.logger.Debug("node registered", zap.String("kind", string(kind)))
	return nil
}

// CreateNode validates cfg and creates the node named by cfg.Type.
func (r *Registry) CreateNode(cfg *config.BaseConfig, opts ...base.Option) (core.Node, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}

	kind := core.NodeKind(cfg.Type)
	r.mu.RLock()
	factory, exists := r.factories[kind]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("node %s not found", kind))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	node, err := factory(cfg, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create node %s", kind))
	}
	return node, nil
}

// ListNodes returns the registered kinds, sorted
func (r *Registry) ListNodes() []core.NodeKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]core.NodeKind, 0, len(r.factories))
	for kind := range r.factories {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// HasNode checks if a node kind is registered
func (r *Registry) HasNode(kind core.NodeKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[kind]
	return exists
}

// Clear removes all registered nodes (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[core.NodeKind]NodeFactory)
}

// Global registry functions

// RegisterNode registers a node in the global registry
func RegisterNode(kind core.NodeKind, factory NodeFactory) error {
	return globalRegistry.RegisterNode(kind, factory)
}

// CreateNode creates a node from the global registry
func CreateNode(cfg *config.BaseConfig, opts ...base.Option) (core.Node, error) {
	return globalRegistry.CreateNode(cfg, opts...)
}

// ListNodes returns registered kinds from the global registry
func ListNodes() []core.NodeKind {
	return globalRegistry.ListNodes()
}

// HasNode checks if a kind is registered in the global registry
func HasNode(kind core.NodeKind) bool {
	return globalRegistry.HasNode(kind)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}

// ConnectorInfo provides information about a node
type ConnectorInfo struct {
	Name         string                 `json:"name"`
	Type         string                 `json:"type"`
	Description  string                 `json:"description"`
	Version      string                 `json:"version"`
	Capabilities []string               `json:"capabilities"`
	ConfigSchema map[string]interface{} `json:"config_schema"`
}

// ConnectorCatalog manages node metadata
type ConnectorCatalog struct {
	connectors map[string]*ConnectorInfo
	mu         sync.RWMutex
}

// NewConnectorCatalog creates a new catalog
func NewConnectorCatalog() *ConnectorCatalog {
	return &ConnectorCatalog{
		connectors: make(map[string]*ConnectorInfo),
	}
}

// Register adds a node to the catalog
func (c *ConnectorCatalog) Register(info *ConnectorInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.connectors[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("node %s already in catalog", info.Name))
	}

	c.connectors[info.Name] = info
	return nil
}

// Get retrieves node information
func (c *ConnectorCatalog) Get(name string) (*ConnectorInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	info, exists := c.connectors[name]
	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("node %s not found in catalog", name))
	}

	return info, nil
}

// List returns all catalog entries sorted by name
func (c *ConnectorCatalog) List() []*ConnectorInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	infos := make([]*ConnectorInfo, 0, len(c.connectors))
	for _, info := range c.connectors {
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Global catalog instance
var globalCatalog = NewConnectorCatalog()

// RegisterConnectorInfo registers node information in the global catalog
func RegisterConnectorInfo(info *ConnectorInfo) error {
	return globalCatalog.Register(info)
}

// GetConnectorInfo retrieves node information from the global catalog
func GetConnectorInfo(name string) (*ConnectorInfo, error) {
	return globalCatalog.Get(name)
}

// ListConnectorInfo lists all nodes in the global catalog
func ListConnectorInfo() []*ConnectorInfo {
	return globalCatalog.List()
}
