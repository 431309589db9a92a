package config

import (
	"embed"
	"fmt"
	"sort"

	"cardlink/internal/errors"
	"cardlink/internal/logging"

	"gopkg.in/yaml.v3"
)

//go:embed terminal_catalog.yaml
var configFS embed.FS

// TerminalCatalog names the transaction types and error codes of the terminal service
type TerminalCatalog struct {
	TransactionTypes map[int]string `yaml:"transaction_types"`
	ErrorCodes       map[int]string `yaml:"error_codes"`
}

// TransactionTypeName returns the catalog name of a transaction type
func (c *TerminalCatalog) TransactionTypeName(code int) (string, bool) {
	name, ok := c.TransactionTypes[code]
	return name, ok
}

// DescribeErrorCode returns a human readable description of a service error code
func (c *TerminalCatalog) DescribeErrorCode(code int) string {
	if desc, ok := c.ErrorCodes[code]; ok {
		return desc
	}
	return fmt.Sprintf("unknown error code %d", code)
}

// TransactionTypeCodes returns the known transaction type codes in ascending order
func (c *TerminalCatalog) TransactionTypeCodes() []int {
	codes := make([]int, 0, len(c.TransactionTypes))
	for code := range c.TransactionTypes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// ConfigLoader handles loading configuration from embedded YAML files
type ConfigLoader struct {
	logger *logging.Logger
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader(logger *logging.Logger) *ConfigLoader {
	if logger == nil {
		logger = logging.NewDefaultLogger("config")
	}
	return &ConfigLoader{logger: logger}
}

// LoadTerminalCatalog loads the transaction type and error code catalog
func (cl *ConfigLoader) LoadTerminalCatalog() (*TerminalCatalog, error) {
	data, err := configFS.ReadFile("terminal_catalog.yaml")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration,
			"failed to read embedded terminal catalog")
	}

	var catalog TerminalCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfiguration,
			"failed to parse terminal catalog YAML")
	}

	if len(catalog.TransactionTypes) == 0 {
		return nil, errors.Configuration("terminal catalog defines no transaction types")
	}

	cl.logger.Debug("Loaded %d transaction types and %d error codes",
		len(catalog.TransactionTypes), len(catalog.ErrorCodes))
	return &catalog, nil
}
