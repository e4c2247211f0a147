// Package foundry lets a local Foundry project stand in for the IDE host bridge.
// Compilation results are assembled from the project's build artifacts and the network
// is detected from an RPC node.
package foundry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pendergraft/contraverify/internal/bridge"
	"github.com/pendergraft/contraverify/internal/compilation"
)

// Options configures a Project
type Options struct {
	// Dir is the project root (the directory holding foundry.toml)
	Dir string
	// OutDir is the artifacts directory relative to Dir (default "out")
	OutDir string
	// Target is the source path of the file to verify, e.g. "src/Token.sol".
	// When empty it is resolved from Contract.
	Target string
	// Contract is the contract name used to resolve Target
	Contract string
	// Network forces the network name; RPCURL is ignored when set
	Network string
	// RPCURL is queried for the chain ID when Network is empty
	RPCURL string
}

// chainIDReader is the part of ethclient.Client used for network detection
type chainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
	Close()
}

// Project implements bridge.Conn on top of a Foundry project
type Project struct {
	opts   Options
	logger *slog.Logger
	dial   func(ctx context.Context, url string) (chainIDReader, error)
}

// New creates a Project bridge
func New(opts Options, logger *slog.Logger) *Project {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.OutDir == "" {
		opts.OutDir = "out"
	}
	return &Project{
		opts:   opts,
		logger: logger,
		dial: func(ctx context.Context, url string) (chainIDReader, error) {
			return ethclient.DialContext(ctx, url)
		},
	}
}

// knownNetworks maps chain IDs to the names the verification service uses
var knownNetworks = map[int64]string{
	1:        "main",
	3:        "ropsten",
	4:        "rinkeby",
	5:        "goerli",
	42:       "kovan",
	11155111: "sepolia",
}

// NetworkName returns the network name for a chain ID, "custom" when unknown
func NetworkName(chainID int64) string {
	if name, ok := knownNetworks[chainID]; ok {
		return name
	}
	return "custom"
}

// OnLoad checks that the project has been built
func (p *Project) OnLoad(ctx context.Context) error {
	outDir := p.outDir()
	info, err := os.Stat(outDir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("out directory not found - run 'forge build' first")
		}
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", outDir)
	}
	return nil
}

// Call answers the bridge methods a host IDE would serve
func (p *Project) Call(ctx context.Context, namespace, method string, args ...any) (json.RawMessage, error) {
	var result any
	var err error

	switch namespace + "." + method {
	case bridge.NamespaceSolidity + "." + bridge.MethodGetCompilationResult:
		var r *compilation.Result
		r, err = p.CompilationResult()
		if r != nil {
			result = r
		}
	case bridge.NamespaceNetwork + "." + bridge.MethodDetectNetwork:
		var n *bridge.Network
		n, err = p.DetectNetwork(ctx)
		if n != nil {
			result = n
		}
	default:
		return nil, fmt.Errorf("method %s.%s not supported by foundry bridge", namespace, method)
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(result)
}

// Emit logs host notifications
func (p *Project) Emit(ctx context.Context, event string, payload any) error {
	p.logger.Info(event, "payload", payload)
	return nil
}

// Close releases nothing; Project holds no connections between calls
func (p *Project) Close() error {
	return nil
}

// DetectNetwork returns the configured network, or asks the RPC node for its chain ID.
// It returns nil when neither is configured.
func (p *Project) DetectNetwork(ctx context.Context) (*bridge.Network, error) {
	if p.opts.Network != "" {
		return &bridge.Network{Name: p.opts.Network}, nil
	}
	if p.opts.RPCURL == "" {
		return nil, nil
	}

	client, err := p.dial(ctx, p.opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to RPC: %w", err)
	}
	defer client.Close()

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting chain ID: %w", err)
	}

	return &bridge.Network{
		ID:   bridge.NetworkID(chainID.String()),
		Name: NetworkName(chainID.Int64()),
	}, nil
}

// CompilationResult assembles a compilation result for the target file from the build
// artifacts. It returns nil when no artifact matches.
func (p *Project) CompilationResult() (*compilation.Result, error) {
	artifacts, err := p.discover()
	if err != nil {
		return nil, err
	}

	target := p.opts.Target
	if target == "" {
		for _, a := range artifacts {
			if a.contract == p.opts.Contract {
				target = a.sourcePath
				break
			}
		}
	}
	if target == "" {
		return nil, nil
	}

	contracts := make(map[string]compilation.Contract)
	for _, a := range artifacts {
		if a.sourcePath == target {
			contracts[a.contract] = compilation.Contract{Metadata: a.rawMetadata}
		}
	}
	if len(contracts) == 0 {
		return nil, nil
	}

	content, err := os.ReadFile(filepath.Join(p.opts.Dir, target))
	if err != nil {
		return nil, fmt.Errorf("reading source %s: %w", target, err)
	}

	p.logger.Debug("assembled compilation result", "target", target, "contracts", len(contracts))

	return &compilation.Result{
		Source: compilation.Source{
			Target: target,
			Sources: map[string]compilation.SourceContent{
				target: {Content: string(content)},
			},
		},
		Data: compilation.Output{
			Contracts: map[string]map[string]compilation.Contract{
				target: contracts,
			},
		},
	}, nil
}

// artifact is a contract artifact found in the out directory
type artifact struct {
	contract    string
	sourcePath  string
	rawMetadata string
}

// foundryArtifact is the subset of a Foundry artifact file we read
type foundryArtifact struct {
	RawMetadata string `json:"rawMetadata"`
}

func (p *Project) outDir() string {
	return filepath.Join(p.opts.Dir, p.opts.OutDir)
}

// discover walks out/{Source}.sol/{Contract}.json and returns every artifact carrying
// metadata. Artifacts that cannot be read are skipped.
func (p *Project) discover() ([]artifact, error) {
	var artifacts []artifact

	err := filepath.Walk(p.outDir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}
		if strings.Contains(path, "build-info") {
			return nil
		}
		if !strings.HasSuffix(filepath.Dir(path), ".sol") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}

		var raw foundryArtifact
		if err := json.Unmarshal(data, &raw); err != nil || raw.RawMetadata == "" {
			return nil
		}

		metadata, err := compilation.ParseMetadata(raw.RawMetadata)
		if err != nil {
			return nil
		}

		for sourcePath, name := range metadata.Settings.CompilationTarget {
			artifacts = append(artifacts, artifact{
				contract:    name,
				sourcePath:  sourcePath,
				rawMetadata: raw.RawMetadata,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning artifacts: %w", err)
	}

	return artifacts, nil
}
