// Package domain contains the business logic for contract verification.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pendergraft/contraverify/internal/bridge"
	"github.com/pendergraft/contraverify/internal/compilation"
	"github.com/pendergraft/contraverify/internal/observability/metrics"
	"github.com/pendergraft/contraverify/internal/storage"
	"github.com/pendergraft/contraverify/pkg/client"
)

// Common errors returned by the verification service.
var (
	ErrNoCompilation    = errors.New("no compilation result available")
	ErrInvalidAddress   = errors.New("please enter a valid contract address")
	ErrNoNetwork        = errors.New("no known network to verify against")
	ErrContractNotFound = compilation.ErrContractNotFound
	ErrInvalidMetadata  = compilation.ErrInvalidMetadata
	ErrTransport        = errors.New("verification service unreachable")
	ErrPollLimit        = errors.New("verification still pending after maximum polls")
	ErrRejected         = errors.New("verification rejected without an error code")
)

// Options tunes a Service
type Options struct {
	Endpoints        Endpoints
	PollInterval     time.Duration
	PollMaxAttempts  int
	StatusResetDelay time.Duration
	// WatchStatus polls checkverifystatus when a submission returns a GUID
	WatchStatus bool
}

// DefaultOptions returns the production timings
func DefaultOptions() Options {
	return Options{
		Endpoints: Endpoints{
			Main:     "https://api-testnet.tangerine.garden/v1/contracts/verify",
			Template: "https://api-{network}.tangerine.garden/v1/contracts/verify",
		},
		PollInterval:     4000 * time.Millisecond,
		PollMaxAttempts:  60,
		StatusResetDelay: 10000 * time.Millisecond,
	}
}

// Service verifies the contract currently compiled in the host.
type Service struct {
	bridge  Bridge
	keys    KeyStore
	api     VerificationAPI
	display Display
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	current *Attempt
}

// NewService creates a new verification service.
func NewService(b Bridge, keys KeyStore, api VerificationAPI, display Display, opts Options, logger *slog.Logger) *Service {
	defaults := DefaultOptions()
	if opts.Endpoints.Main == "" {
		opts.Endpoints.Main = defaults.Endpoints.Main
	}
	if opts.Endpoints.Template == "" {
		opts.Endpoints.Template = defaults.Endpoints.Template
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaults.PollInterval
	}
	if opts.PollMaxAttempts <= 0 {
		opts.PollMaxAttempts = defaults.PollMaxAttempts
	}
	if opts.StatusResetDelay <= 0 {
		opts.StatusResetDelay = defaults.StatusResetDelay
	}

	return &Service{
		bridge:  b,
		keys:    keys,
		api:     api,
		display: display,
		opts:    opts,
		logger:  logger,
	}
}

// SaveAPIKey persists the verification API key. The value is not validated.
func (s *Service) SaveAPIKey(ctx context.Context, value string) error {
	if err := s.keys.Set(ctx, APIKeyStorageKey, value); err != nil {
		return fmt.Errorf("saving API key: %w", err)
	}
	return nil
}

// LoadAPIKey returns the stored API key and whether one is set.
func (s *Service) LoadAPIKey(ctx context.Context) (string, bool, error) {
	value, err := s.keys.Get(ctx, APIKeyStorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("loading API key: %w", err)
	}
	return value, true, nil
}

// GetResult runs one verification attempt to completion. Every outcome, including
// errors, is written to the display; the returned text is what was displayed last.
func (s *Service) GetResult(ctx context.Context, in Input) (string, error) {
	a := s.begin(ctx)
	return s.run(a, in)
}

// Outcome is the final result of a background attempt
type Outcome struct {
	Text string
	Err  error
}

// Start runs a verification attempt in the background and returns its ID. The attempt
// outlives ctx's cancellation but keeps its values.
func (s *Service) Start(ctx context.Context, in Input) string {
	id, _ := s.StartAsync(ctx, in)
	return id
}

// StartAsync is Start with a channel that receives the attempt's outcome once and is
// then closed.
func (s *Service) StartAsync(ctx context.Context, in Input) (string, <-chan Outcome) {
	a := s.begin(context.WithoutCancel(ctx))
	done := make(chan Outcome, 1)
	go func() {
		defer close(done)
		text, err := s.run(a, in)
		done <- Outcome{Text: text, Err: err}
	}()
	return a.ID, done
}

func (s *Service) run(a *Attempt, in Input) (string, error) {
	defer a.cancel()
	ctx := a.ctx

	text, err := s.getResult(ctx, a, in)
	if err != nil {
		text = err.Error()
		// A superseded attempt leaves the display to its successor
		if errors.Is(err, context.Canceled) && !s.isCurrent(a) {
			return text, err
		}
	}
	s.display.Show(a.ID, text)
	return text, err
}

func (s *Service) getResult(ctx context.Context, a *Attempt, in Input) (string, error) {
	s.display.Show(a.ID, MsgFetchingCompilation)

	if err := s.bridge.OnLoad(ctx); err != nil {
		return "", fmt.Errorf("waiting for host: %w", err)
	}

	result, err := s.bridge.GetCompilationResult(ctx)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", ErrNoCompilation
	}
	fileName := result.Source.Target

	if isBlank(in.Address) {
		return "", ErrInvalidAddress
	}

	s.display.Show(a.ID, MsgVerifying)

	return s.Verify(ctx, result, in.Address, fileName, in.ContractName)
}

// Verify submits the contract compiled from fileName for verification at address and
// returns the service's answer: "Success", the service error code, or the final status
// when watching is enabled.
func (s *Service) Verify(ctx context.Context, result *compilation.Result, address, fileName, contractName string) (string, error) {
	a := AttemptFromContext(ctx)
	if a == nil {
		a = s.begin(ctx)
		defer a.cancel()
		ctx = a.ctx
	}

	network, err := s.networkName(ctx)
	if err != nil {
		return "", err
	}
	endpoint := s.opts.Endpoints.For(network)

	req, err := BuildRequest(result, address, fileName, contractName)
	if err != nil {
		return "", err
	}

	apiKey, _, err := s.LoadAPIKey(ctx)
	if err != nil {
		s.logger.Warn("verifying without API key", "error", err)
	}

	s.emit(ctx, bridge.Status{Key: StatusLoading, Type: "info", Title: "Verifying ..."})

	resp, err := s.api.SubmitVerification(ctx, endpoint, apiKey, req)
	if err != nil {
		metrics.VerificationSubmit(network, "error")
		s.emit(ctx, bridge.Status{Key: StatusFailed, Type: "error", Title: err.Error()})
		s.ScheduleResetStatus(a)
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if !resp.Success {
		metrics.VerificationSubmit(network, "rejected")
		if resp.Error == nil || resp.Error.ErrorCode == "" {
			s.emit(ctx, bridge.Status{Key: StatusFailed, Type: "error", Title: ErrRejected.Error()})
			s.ScheduleResetStatus(a)
			return "", ErrRejected
		}
		code := resp.Error.ErrorCode
		s.emit(ctx, bridge.Status{Key: StatusFailed, Type: "error", Title: code})
		s.ScheduleResetStatus(a)
		return code, nil
	}

	metrics.VerificationSubmit(network, "accepted")

	if s.opts.WatchStatus && resp.GUID != "" {
		status, err := s.CheckValidation(ctx, endpoint, resp.GUID)
		s.ScheduleResetStatus(a)
		return status, err
	}

	s.ScheduleResetStatus(a)
	return MsgSuccess, nil
}

// CheckStatus polls the status of a verification job on network
func (s *Service) CheckStatus(ctx context.Context, network, guid string) (string, error) {
	return s.CheckValidation(ctx, s.opts.Endpoints.For(NormalizeNetwork(network)), guid)
}

// BuildRequest builds the submission for contractName compiled from fileName.
func BuildRequest(result *compilation.Result, address, fileName, contractName string) (client.VerifyRequest, error) {
	metadata, err := result.ContractMetadata(fileName, contractName)
	if err != nil {
		return client.VerifyRequest{}, err
	}

	return client.VerifyRequest{
		ContractAddress: address,
		Source:          result.SourceContent(fileName),
		ContractName:    contractName,
		Compiler:        CompilerVersion(metadata.Compiler.Version),
		Optimization:    metadata.Settings.Optimizer.OptimizationEnabled(),
		Runs:            metadata.Settings.Optimizer.Runs,
	}, nil
}

func (s *Service) networkName(ctx context.Context) (string, error) {
	network, err := s.bridge.DetectNetwork(ctx)
	if err != nil {
		return "", err
	}
	if network == nil || network.Name == "" {
		return "", ErrNoNetwork
	}
	return NormalizeNetwork(network.Name), nil
}

func (s *Service) emit(ctx context.Context, status bridge.Status) {
	metrics.StatusNotification(status.Key)
	if err := s.bridge.EmitStatus(ctx, status); err != nil {
		s.logger.Warn("emitting status", "key", status.Key, "error", err)
	}
}

func (s *Service) show(ctx context.Context, text string) {
	id := ""
	if a := AttemptFromContext(ctx); a != nil {
		id = a.ID
	}
	s.display.Show(id, text)
}

// isBlank reports whether s holds nothing but whitespace and invisible format
// characters such as a byte order mark or zero width space.
func isBlank(s string) bool {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.Is(unicode.Cf, r)
	}) == ""
}
