// Package compilation describes the Solidity compilation result handed out by the host bridge
// and the contract metadata embedded in it.
package compilation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Errors returned while reading a compilation result.
var (
	ErrContractNotFound = errors.New("contract not found in compilation result")
	ErrInvalidMetadata  = errors.New("invalid contract metadata")
)

// Result is the compilation result as exposed by solidity.getCompilationResult
type Result struct {
	Source Source `json:"source"`
	Data   Output `json:"data"`
}

// Source is the compiler input: the target file and every source that took part
type Source struct {
	Target  string                   `json:"target"`
	Sources map[string]SourceContent `json:"sources"`
}

// SourceContent holds the literal source of one file
type SourceContent struct {
	Content string `json:"content"`
}

// Output is the compiler output, keyed by file then contract name
type Output struct {
	Contracts map[string]map[string]Contract `json:"contracts"`
}

// Contract is a single compiled contract. Metadata is the raw JSON string solc emits.
type Contract struct {
	Metadata string `json:"metadata"`
}

// Metadata is the parsed solc metadata of a contract
type Metadata struct {
	Compiler CompilerMeta `json:"compiler"`
	Language string       `json:"language"`
	Settings SettingsMeta `json:"settings"`
}

// CompilerMeta contains compiler information
type CompilerMeta struct {
	Version string `json:"version"` // "v0.8.20+commit.a1b2c3d4"
}

// SettingsMeta contains the compiler settings we care about
type SettingsMeta struct {
	CompilationTarget map[string]string `json:"compilationTarget"`
	EVMVersion        string            `json:"evmVersion"`
	Optimizer         OptimizerMeta     `json:"optimizer"`
}

// OptimizerMeta contains optimizer settings. Enabled is kept raw so that any JSON value
// can be coerced to a boolean, and Runs is echoed as-is.
type OptimizerMeta struct {
	Enabled json.RawMessage `json:"enabled"`
	Runs    *int            `json:"runs"`
}

// OptimizationEnabled coerces the optimizer "enabled" value to a boolean using
// JavaScript truthiness: null, false, 0 and "" are false, everything else is true.
func (o OptimizerMeta) OptimizationEnabled() bool {
	raw := strings.TrimSpace(string(o.Enabled))
	switch raw {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

// SourceContent returns the literal source of file, or an empty string when unknown.
func (r *Result) SourceContent(file string) string {
	if r == nil || r.Source.Sources == nil {
		return ""
	}
	return r.Source.Sources[file].Content
}

// ContractMetadata parses the metadata of contractName compiled from file.
func (r *Result) ContractMetadata(file, contractName string) (*Metadata, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: empty compilation result", ErrContractNotFound)
	}

	contracts, ok := r.Data.Contracts[file]
	if !ok {
		return nil, fmt.Errorf("%w: no contracts compiled from %s", ErrContractNotFound, file)
	}

	contract, ok := contracts[contractName]
	if !ok {
		return nil, fmt.Errorf("%w: %s in %s", ErrContractNotFound, contractName, file)
	}

	return ParseMetadata(contract.Metadata)
}

// ParseMetadata parses a raw solc metadata string
func ParseMetadata(raw string) (*Metadata, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: metadata is empty", ErrInvalidMetadata)
	}

	var metadata Metadata
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	return &metadata, nil
}

// ContractNames lists the contracts compiled from file
func (r *Result) ContractNames(file string) []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Data.Contracts[file]))
	for name := range r.Data.Contracts[file] {
		names = append(names, name)
	}
	return names
}
