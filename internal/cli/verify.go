package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/pendergraft/contraverify/internal/bridge"
	"github.com/pendergraft/contraverify/internal/bridge/foundry"
	"github.com/pendergraft/contraverify/internal/verification/domain"
	"github.com/pendergraft/contraverify/pkg/client"
)

func createVerifyCmd() *cobra.Command {
	var f verifyFlags
	var address string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Submit a contract for source verification",
		Long: `Submit a deployed contract's source to the verification service.

The source and compiler settings are read from the Foundry build artifacts
(run 'forge build' first). The network is taken from --network, or detected
from the chain ID reported by --rpc.

EXAMPLES:
  # Verify on a named network
  contraverify verify \
    --contract Token \
    --address 0x1234... \
    --network ropsten

  # Detect the network from a node and wait for the result
  contraverify verify \
    --contract Token \
    --address 0x1234... \
    --rpc https://rpc.example.com \
    --watch
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runVerify(ctx, loadSettings(f), address, os.Stdout, os.Stderr)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "deployed contract address (required)")
	cmd.Flags().StringVar(&f.contract, "contract", "", "contract name")
	cmd.Flags().StringVar(&f.target, "target", "", "source file, e.g. src/Token.sol (default: resolved from --contract)")
	cmd.Flags().StringVar(&f.dir, "dir", "", "project directory (default: current directory)")
	cmd.Flags().StringVar(&f.outDir, "out", "", "artifacts directory relative to --dir (default: out)")
	cmd.Flags().StringVar(&f.network, "network", "", "network name, e.g. main, ropsten")
	cmd.Flags().StringVar(&f.rpcURL, "rpc", "", "RPC URL used to detect the network")
	cmd.Flags().BoolVar(&f.watch, "watch", false, "poll the verification status until it completes")

	return cmd
}

func createCheckCmd() *cobra.Command {
	var f verifyFlags
	var guid string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the status of a verification job",
		Long: `Poll checkverifystatus for a job until it is no longer pending.

EXAMPLES:
  contraverify check --network ropsten --guid ezq878u486pzijkvvmerl6a9mzwhv6sefgvqi5tkwceejc7tvn
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCheck(ctx, loadSettings(f), guid, os.Stdout, os.Stderr)
		},
	}

	cmd.Flags().StringVar(&guid, "guid", "", "verification job GUID (required)")
	cmd.Flags().StringVar(&f.network, "network", "", "network the job was submitted to")
	_ = cmd.MarkFlagRequired("guid")

	return cmd
}

// newService wires a verification service around a Foundry project
func newService(s settings, out io.Writer, logger *slog.Logger) (*domain.Service, func(), error) {
	host := bridge.NewHost(foundry.New(foundry.Options{
		Dir:      s.dir,
		OutDir:   s.outDir,
		Target:   s.target,
		Contract: s.contract,
		Network:  s.network,
		RPCURL:   s.rpcURL,
	}, logger))

	store, err := openKeyStore()
	if err != nil {
		return nil, nil, err
	}

	api := client.New(
		client.WithTimeout(s.httpTimeout),
		client.WithUserAgent("contraverify/"+cliVersion),
	)

	svc := domain.NewService(host, keyStoreFor(store), api, newLineDisplay(out), s.opts, logger)
	cleanup := func() {
		_ = store.Close()
		_ = host.Close()
	}
	return svc, cleanup, nil
}

func runVerify(ctx context.Context, s settings, address string, out, errOut io.Writer) error {
	logger := newLoggerTo(errOut)

	if s.contract == "" {
		return fmt.Errorf("--contract is required (or set contract in contraverify.toml)")
	}
	if a := strings.TrimSpace(address); a != "" && !common.IsHexAddress(a) {
		fmt.Fprintf(errOut, "Warning: %s does not look like a hex address\n", a)
	}

	svc, cleanup, err := newService(s, out, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	_, err = svc.GetResult(ctx, domain.Input{Address: address, ContractName: s.contract})
	return err
}

func runCheck(ctx context.Context, s settings, guid string, out, errOut io.Writer) error {
	if s.network == "" {
		return fmt.Errorf("--network is required")
	}

	svc, cleanup, err := newService(s, out, newLoggerTo(errOut))
	if err != nil {
		return err
	}
	defer cleanup()

	status, err := svc.CheckStatus(ctx, s.network, guid)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Final status: %s\n", status)
	return nil
}
