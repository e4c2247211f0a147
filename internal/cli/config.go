package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/pendergraft/contraverify/internal/config"
	"github.com/pendergraft/contraverify/internal/verification/domain"
)

// projectConfigFiles is the search order for project config files
var projectConfigFiles = []string{"contraverify.toml", "cv.toml"}

// ProjectConfig is the project-level TOML configuration
type ProjectConfig struct {
	Network  string           `toml:"network,omitempty"`
	RPCURL   string           `toml:"rpc_url,omitempty"`
	Contract string           `toml:"contract,omitempty"`
	Target   string           `toml:"target,omitempty"`
	OutDir   string           `toml:"out_dir,omitempty"`
	Verify   VerifyConfigTOML `toml:"verify,omitempty"`
}

// VerifyConfigTOML overrides the verification service settings
type VerifyConfigTOML struct {
	MainURL         string `toml:"main_url,omitempty"`
	URLTemplate     string `toml:"url_template,omitempty"`
	PollIntervalMS  int    `toml:"poll_interval_ms,omitempty"`
	PollMaxAttempts int    `toml:"poll_max_attempts,omitempty"`
	Watch           bool   `toml:"watch,omitempty"`
	HTTPTimeout     int    `toml:"http_timeout,omitempty"`
}

func createConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	cmd.AddCommand(createConfigInitCmd())
	cmd.AddCommand(createConfigShowCmd())

	return cmd
}

func createConfigInitCmd() *cobra.Command {
	var network string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create config file",
		Long: `Create a contraverify.toml configuration file in the current directory.

This file stores project-specific settings like the network to verify on
and the verification service endpoints.

EXAMPLES:
  # Create config for the testnet
  contraverify config init

  # Create config for a named network
  contraverify config init --network ropsten

  # Overwrite existing config
  contraverify config init --force
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(network, force)
		},
	}

	cmd.Flags().StringVar(&network, "network", "main", "network name")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config")

	return cmd
}

func createConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current config",
		Long: `Display the current configuration and where each value comes from.

EXAMPLES:
  contraverify config show
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}
}

func runConfigInit(network string, force bool) error {
	configPath := projectConfigFiles[0]

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil && !force {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", name)
		}
	}

	defaults := config.DefaultVerification()
	content := fmt.Sprintf(`# Contraverify project configuration

network = %q
# rpc_url = "http://localhost:8545"

# Contract to verify; the source file is found from the build artifacts
# contract = "Token"
# target = "src/Token.sol"
out_dir = "out"

[verify]
main_url = %q
url_template = %q
poll_interval_ms = %d
poll_max_attempts = %d
watch = false
`, network, defaults.MainURL, defaults.URLTemplate, defaults.PollIntervalMS, defaults.PollMaxAttempts)

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Run 'contraverify apikey set' to store your API key")
	fmt.Println("  2. Run 'forge build'")
	fmt.Println("  3. Run 'contraverify verify --contract Token --address 0x...'")

	return nil
}

func runConfigShow() error {
	fmt.Println("Configuration sources (in order of precedence):")
	fmt.Println()

	fmt.Println("1. Command line flags")
	fmt.Println("   --network, --rpc, --contract, --target, --api-key, --config")
	fmt.Println()

	fmt.Println("2. Environment variables")
	for _, key := range []string{envNetwork, envRPCURL, envMainURL, envURLTemplate} {
		if v := os.Getenv(key); v != "" {
			fmt.Printf("   %s=%s\n", key, v)
		} else {
			fmt.Printf("   %s=(not set)\n", key)
		}
	}
	if v := os.Getenv(envAPIKey); v != "" {
		fmt.Printf("   %s=%s\n", envAPIKey, domain.MaskAPIKey(v))
	} else {
		fmt.Printf("   %s=(not set)\n", envAPIKey)
	}
	fmt.Println()

	fmt.Println("3. Local project config (contraverify.toml or cv.toml)")
	projectConfig, configPath, err := loadProjectConfig()
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("   (not found)")
		} else {
			fmt.Printf("   Error: %v\n", err)
		}
	} else {
		fmt.Printf("   Loaded from: %s\n", configPath)
		if projectConfig.Network != "" {
			fmt.Printf("   network: %s\n", projectConfig.Network)
		}
		if projectConfig.RPCURL != "" {
			fmt.Printf("   rpc_url: %s\n", projectConfig.RPCURL)
		}
		if projectConfig.Contract != "" {
			fmt.Printf("   contract: %s\n", projectConfig.Contract)
		}
		if projectConfig.Target != "" {
			fmt.Printf("   target: %s\n", projectConfig.Target)
		}
	}
	fmt.Println()

	fmt.Printf("4. Key store (%s)\n", keyStorePath())
	if key, ok := storedAPIKey(); ok {
		fmt.Printf("   %s: %s\n", domain.APIKeyStorageKey, domain.MaskAPIKey(key))
	} else {
		fmt.Println("   (no API key stored)")
	}
	fmt.Println()

	s := loadSettings(verifyFlags{})
	fmt.Println("Effective configuration:")
	fmt.Printf("   Network:      %s\n", orNotSet(s.network))
	fmt.Printf("   RPC URL:      %s\n", orNotSet(s.rpcURL))
	fmt.Printf("   Main URL:     %s\n", s.opts.Endpoints.Main)
	fmt.Printf("   URL template: %s\n", s.opts.Endpoints.Template)
	fmt.Printf("   Poll:         every %s, at most %d times\n", s.opts.PollInterval, s.opts.PollMaxAttempts)
	fmt.Printf("   Watch status: %s\n", strconv.FormatBool(s.opts.WatchStatus))
	if key := getAPIKey(); key != "" {
		fmt.Printf("   API Key:      %s\n", domain.MaskAPIKey(key))
	} else {
		fmt.Println("   API Key:      (not set)")
	}

	return nil
}

func orNotSet(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}

// loadProjectConfig loads the project config from the first matching config file.
// Returns the config, the path it was loaded from, and an error.
func loadProjectConfig() (*ProjectConfig, string, error) {
	if cfgFile != "" {
		cfg, err := loadProjectConfigFromPath(cfgFile)
		if err != nil {
			return nil, cfgFile, err
		}
		return cfg, cfgFile, nil
	}

	for _, name := range projectConfigFiles {
		if _, err := os.Stat(name); err == nil {
			cfg, err := loadProjectConfigFromPath(name)
			if err != nil {
				return nil, name, err
			}
			return cfg, name, nil
		}
	}
	return nil, "", os.ErrNotExist
}

// loadProjectConfigFromPath loads a project config from a specific path
func loadProjectConfigFromPath(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg ProjectConfig
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing TOML: %w", err)
	}

	return &cfg, nil
}

// loadProjectConfigSilent returns an empty config when no file exists. Parse failures
// are reported on stderr.
func loadProjectConfigSilent() *ProjectConfig {
	cfg, _, err := loadProjectConfig()
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load project config: %v\n", err)
		}
		return &ProjectConfig{}
	}
	return cfg
}

// Environment variables read by the CLI
const (
	envAPIKey      = "CONTRAVERIFY_API_KEY"
	envNetwork     = "CONTRAVERIFY_NETWORK"
	envRPCURL      = "CONTRAVERIFY_RPC_URL"
	envMainURL     = "CONTRAVERIFY_MAIN_URL"
	envURLTemplate = "CONTRAVERIFY_URL_TEMPLATE"
	envStore       = "CONTRAVERIFY_STORE"
)

// verifyFlags are the command line values that take precedence over everything else
type verifyFlags struct {
	network  string
	rpcURL   string
	contract string
	target   string
	dir      string
	outDir   string
	watch    bool
}

// settings is the effective configuration for a verification run
type settings struct {
	network     string
	rpcURL      string
	contract    string
	target      string
	dir         string
	outDir      string
	httpTimeout time.Duration
	opts        domain.Options
}

// loadSettings merges flags, environment, project config and defaults
func loadSettings(f verifyFlags) settings {
	pc := loadProjectConfigSilent()
	defaults := config.DefaultVerification()

	s := settings{
		network:     resolve(f.network, envNetwork, pc.Network, ""),
		rpcURL:      resolve(f.rpcURL, envRPCURL, pc.RPCURL, ""),
		contract:    resolve(f.contract, "", pc.Contract, ""),
		target:      resolve(f.target, "", pc.Target, ""),
		dir:         resolve(f.dir, "", "", "."),
		outDir:      resolve(f.outDir, "", pc.OutDir, "out"),
		httpTimeout: time.Duration(firstPositive(pc.Verify.HTTPTimeout, defaults.HTTPTimeout)) * time.Second,
		opts: domain.Options{
			Endpoints: domain.Endpoints{
				Main:     resolve("", envMainURL, pc.Verify.MainURL, defaults.MainURL),
				Template: resolve("", envURLTemplate, pc.Verify.URLTemplate, defaults.URLTemplate),
			},
			PollInterval:     time.Duration(firstPositive(pc.Verify.PollIntervalMS, defaults.PollIntervalMS)) * time.Millisecond,
			PollMaxAttempts:  firstPositive(pc.Verify.PollMaxAttempts, defaults.PollMaxAttempts),
			StatusResetDelay: time.Duration(defaults.StatusResetMS) * time.Millisecond,
			WatchStatus:      f.watch || pc.Verify.Watch,
		},
	}
	return s
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
