package azure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExec scripts az responses by command prefix; each script entry is
// consumed on first match, so repeated commands can answer differently.
// Unscripted commands succeed with empty output.
type fakeExec struct {
	calls   [][]string
	scripts []script
}

type script struct {
	prefix string
	out    string
	err    error
}

func (f *fakeExec) run(_ context.Context, args []string, _ string) (string, error) {
	f.calls = append(f.calls, args)
	joined := strings.Join(args, " ")
	for i, s := range f.scripts {
		if strings.HasPrefix(joined, s.prefix) {
			f.scripts = append(f.scripts[:i], f.scripts[i+1:]...)
			return s.out, s.err
		}
	}
	return "", nil
}

// called counts invocations whose joined arguments start with prefix.
func (f *fakeExec) called(prefix string) int {
	n := 0
	for _, args := range f.calls {
		if strings.HasPrefix(strings.Join(args, " "), prefix) {
			n++
		}
	}
	return n
}

func testCLI(f *fakeExec) *CLI {
	return &CLI{exec: f, log: discardLogger()}
}

// =============================================================================
// CLI Tests
// =============================================================================

func TestRunTrimsOutput(t *testing.T) {
	f := &fakeExec{scripts: []script{
		{prefix: "account show", out: "  sub-123\n"},
	}}
	out, err := testCLI(f).Run(context.Background(), "account", "show", "--query", "id", "-o", "tsv")
	require.NoError(t, err)
	assert.Equal(t, "sub-123", out)
}

func TestRunJSONAppendsOutputFlagAndParses(t *testing.T) {
	f := &fakeExec{scripts: []script{
		{prefix: "account show", out: `{"id": "sub-123", "tenantId": "ten-456"}`},
	}}
	info, err := testCLI(f).AccountInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sub-123", info.SubscriptionID)
	assert.Equal(t, "ten-456", info.TenantID)

	require.Len(t, f.calls, 1)
	joined := strings.Join(f.calls[0], " ")
	assert.True(t, strings.HasSuffix(joined, "--output json"))
}

func TestRunJSONBadOutputFails(t *testing.T) {
	f := &fakeExec{scripts: []script{
		{prefix: "account show", out: "not json"},
	}}
	var v map[string]any
	err := testCLI(f).RunJSON(context.Background(), &v, "account", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing az output")
}

func TestAppClientIDByDisplayName(t *testing.T) {
	f := &fakeExec{scripts: []script{
		{prefix: "ad app list", out: `[{"appId": "client-789"}]`},
	}}
	id, err := testCLI(f).AppClientIDByDisplayName(context.Background(), "shipway-deploy")
	require.NoError(t, err)
	assert.Equal(t, "client-789", id)
}

func TestAppClientIDByDisplayNameNoMatch(t *testing.T) {
	f := &fakeExec{scripts: []script{
		{prefix: "ad app list", out: `[]`},
	}}
	id, err := testCLI(f).AppClientIDByDisplayName(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, id)
}

// =============================================================================
// Error Tests
// =============================================================================

func TestCommandErrorUnwrapsToSentinel(t *testing.T) {
	err := NewCommandError([]string{"group", "create"}, "boom", errors.New("exit 1"))
	assert.True(t, errors.Is(err, ErrCommandFailed))
}

func TestCommandErrorRedactsSecretFlags(t *testing.T) {
	err := NewCommandError(
		[]string{"keyvault", "secret", "set", "--name", "env", "--value", "BASIC_AUTH_HASH=$2b$14$abc"},
		"Forbidden", nil)

	msg := err.Error()
	assert.NotContains(t, msg, "$2b$14$abc")
	assert.Contains(t, msg, "--value ***")
	assert.Contains(t, msg, "Forbidden")
}

func TestRedactArgsTable(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			"value flag",
			[]string{"--value", "secret"},
			[]string{"--value", "***"},
		},
		{
			"account key flag",
			[]string{"share", "create", "--account-key", "k", "--name", "s"},
			[]string{"share", "create", "--account-key", "***", "--name", "s"},
		},
		{
			"no secrets untouched",
			[]string{"group", "create", "--name", "rg"},
			[]string{"group", "create", "--name", "rg"},
		},
		{
			"trailing flag without value",
			[]string{"secret", "set", "--value"},
			[]string{"secret", "set", "--value"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redactArgs(tt.in))
		})
	}
}
