package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pendergraft/contraverify/internal/config"
	"github.com/pendergraft/contraverify/internal/storage"
	"github.com/pendergraft/contraverify/internal/verification/domain"
)

func createAPIKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the verification service API key",
	}

	cmd.AddCommand(createAPIKeySetCmd())
	cmd.AddCommand(createAPIKeyShowCmd())
	cmd.AddCommand(createAPIKeyClearCmd())

	return cmd
}

func createAPIKeySetCmd() *cobra.Command {
	var keyInput string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the API key",
		Long: `Store the API key sent with every verification request.

The key is kept in ~/.contraverify/storage.yaml (override with CONTRAVERIFY_STORE).
It is not validated; a wrong key shows up as an error on the next verification.

EXAMPLES:
  # Prompt for the key
  contraverify apikey set

  # Non-interactive
  contraverify apikey set --key "$TANGERINE_API_KEY"
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPIKeySet(keyInput)
		},
	}

	cmd.Flags().StringVar(&keyInput, "key", "", "API key (prompted when omitted)")

	return cmd
}

func createAPIKeyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the API key in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := getAPIKey()
			if key == "" {
				fmt.Println("No API key set")
				fmt.Println()
				fmt.Println("Store one with: contraverify apikey set")
				return nil
			}
			fmt.Printf("API key: %s\n", domain.MaskAPIKey(key))
			return nil
		},
	}
}

func createAPIKeyClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAPIKeyClear()
		},
	}
}

func runAPIKeySet(keyInput string) error {
	key := keyInput
	if key == "" {
		fmt.Print("Enter API key: ")

		stdinFd := int(os.Stdin.Fd())
		if term.IsTerminal(stdinFd) {
			byteKey, err := term.ReadPassword(stdinFd)
			fmt.Println()
			if err != nil {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			key = string(byteKey)
		} else {
			reader := bufio.NewReader(os.Stdin)
			line, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return fmt.Errorf("failed to read API key: %w", err)
			}
			key = line
		}
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("API key cannot be empty")
	}

	store, err := openKeyStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Set(context.Background(), domain.APIKeyStorageKey, key); err != nil {
		return fmt.Errorf("failed to save API key: %w", err)
	}

	fmt.Printf("✅ API key saved (key: %s)\n", domain.MaskAPIKey(key))
	fmt.Printf("   Stored in %s\n", keyStorePath())
	return nil
}

func runAPIKeyClear() error {
	store, err := openKeyStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(context.Background(), domain.APIKeyStorageKey); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Println("No API key stored")
			return nil
		}
		return fmt.Errorf("failed to remove API key: %w", err)
	}

	fmt.Println("✅ API key removed")
	return nil
}

// keyStorePath returns the file store location
func keyStorePath() string {
	if p := os.Getenv(envStore); p != "" {
		return p
	}
	return config.DefaultFileStorePath()
}

func openKeyStore() (*storage.FileStore, error) {
	store, err := storage.NewFileStore(keyStorePath(), newLogger())
	if err != nil {
		return nil, fmt.Errorf("opening key store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

// storedAPIKey reads the key from the file store
func storedAPIKey() (string, bool) {
	store, err := openKeyStore()
	if err != nil {
		return "", false
	}
	defer store.Close()

	key, err := store.Get(context.Background(), domain.APIKeyStorageKey)
	if err != nil {
		return "", false
	}
	return key, true
}

// getAPIKey returns the API key from flag, env or key store
func getAPIKey() string {
	if apiKey != "" {
		return apiKey
	}
	if env := os.Getenv(envAPIKey); env != "" {
		return env
	}
	key, _ := storedAPIKey()
	return key
}

// overrideKeys answers API key lookups with a fixed value and defers everything else
// to the underlying store
type overrideKeys struct {
	domain.KeyStore
	apiKey string
}

func (k overrideKeys) Get(ctx context.Context, key string) (string, error) {
	if key == domain.APIKeyStorageKey && k.apiKey != "" {
		return k.apiKey, nil
	}
	return k.KeyStore.Get(ctx, key)
}

// keyStoreFor returns the key store a verification run should use. A key given on
// the command line or in the environment wins over the stored one.
func keyStoreFor(store domain.KeyStore) domain.KeyStore {
	override := apiKey
	if override == "" {
		override = os.Getenv(envAPIKey)
	}
	if override == "" {
		return store
	}
	return overrideKeys{KeyStore: store, apiKey: override}
}
