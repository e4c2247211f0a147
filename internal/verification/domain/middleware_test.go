package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// records returns the decoded JSON log lines with msg
func (b *syncBuffer) records(msg string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		var rec map[string]any
		if json.Unmarshal([]byte(line), &rec) == nil && rec["msg"] == msg {
			out = append(out, rec)
		}
	}
	return out
}

func newLoggedFixture(t *testing.T) (*fixture, *loggingMiddleware, *syncBuffer) {
	t.Helper()
	f := newFixture(t)
	logs := &syncBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return f, LoggingMiddleware(logger)(f.svc), logs
}

func TestLoggingMiddleware_StartLogsOutcome(t *testing.T) {
	f, svc, logs := newLoggedFixture(t)

	id := svc.Start(context.Background(), Input{Address: "0x1234", ContractName: "Token"})

	started := logs.records("Start")
	require.Len(t, started, 1)
	assert.Equal(t, id, started[0]["attempt"])

	require.Eventually(t, func() bool {
		return len(logs.records("attempt finished")) == 1
	}, time.Second, 5*time.Millisecond)

	finished := logs.records("attempt finished")[0]
	assert.Equal(t, "INFO", finished["level"])
	assert.Equal(t, id, finished["attempt"])
	assert.Equal(t, MsgSuccess, finished["result"])
	assert.Nil(t, finished["error"])
	assert.True(t, f.display.has(id, MsgSuccess))
}

func TestLoggingMiddleware_StartLogsFailure(t *testing.T) {
	_, svc, logs := newLoggedFixture(t)

	id := svc.Start(context.Background(), Input{Address: "  ", ContractName: "Token"})

	require.Eventually(t, func() bool {
		return len(logs.records("attempt finished")) == 1
	}, time.Second, 5*time.Millisecond)

	finished := logs.records("attempt finished")[0]
	assert.Equal(t, "WARN", finished["level"])
	assert.Equal(t, id, finished["attempt"])
	assert.Equal(t, ErrInvalidAddress.Error(), finished["error"])
}

func TestLoggingMiddleware_CheckStatus(t *testing.T) {
	f, svc, logs := newLoggedFixture(t)
	f.api.statusResps = nil
	f.api.statusErr = assert.AnError

	_, err := svc.CheckStatus(context.Background(), "ropsten", "guid-1")
	require.Error(t, err)

	records := logs.records("CheckStatus")
	require.Len(t, records, 1)
	assert.Equal(t, "guid-1", records[0]["guid"])
	assert.Contains(t, records[0]["error"], assert.AnError.Error())
}

func TestLoggingMiddleware_APIKey(t *testing.T) {
	_, svc, logs := newLoggedFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.SaveAPIKey(ctx, "MYKEY"))
	value, ok, err := svc.LoadAPIKey(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "MYKEY", value)

	saved := logs.records("SaveAPIKey")
	require.Len(t, saved, 1)
	assert.Equal(t, true, saved[0]["set"])
	assert.NotContains(t, saved[0], "value")
	require.Len(t, logs.records("LoadAPIKey"), 1)
}
