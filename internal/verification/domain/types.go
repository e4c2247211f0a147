package domain

import (
	"context"

	"github.com/pendergraft/contraverify/internal/bridge"
	"github.com/pendergraft/contraverify/internal/compilation"
	"github.com/pendergraft/contraverify/pkg/client"
)

// APIKeyStorageKey is the storage key the verification API key is saved under.
const APIKeyStorageKey = "etherscan-api-key"

// Status notification keys
const (
	StatusLoading = "loading"
	StatusSucceed = "succeed"
	StatusFailed  = "failed"
	StatusNone    = "none"
)

// Messages shown while an attempt runs
const (
	MsgFetchingCompilation = "Getting current compilation result, please wait..."
	MsgVerifying           = "Verifying contract. Please wait..."
	MsgSuccess             = "Success"
	MsgPolling             = ". Polling..."
)

// Status values returned by checkverifystatus
const (
	StatusMessageOK    = "OK"
	StatusMessageNotOK = "NOTOK"
	PendingInQueue     = "Pending in queue"
)

// Bridge is the host bridge as seen by the verification service.
type Bridge interface {
	OnLoad(ctx context.Context) error
	GetCompilationResult(ctx context.Context) (*compilation.Result, error)
	DetectNetwork(ctx context.Context) (*bridge.Network, error)
	EmitStatus(ctx context.Context, status bridge.Status) error
}

// KeyStore defines the storage operations needed to keep the API key.
type KeyStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// VerificationAPI is the remote verification service.
type VerificationAPI interface {
	SubmitVerification(ctx context.Context, endpoint, apiKey string, req client.VerifyRequest) (*client.VerifyResponse, error)
	CheckVerifyStatus(ctx context.Context, apiURL, guid string) (*client.StatusResponse, error)
}

// Display is the results region. The latest write wins.
type Display interface {
	Show(attemptID, text string)
}

// Input is what the user typed in
type Input struct {
	Address      string `json:"address"`
	ContractName string `json:"contractName"`
}
