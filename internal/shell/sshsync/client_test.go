package sshsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/shipway/internal/core/crypto"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	priv, _, err := crypto.GenerateSSHKeyPair()
	require.NoError(t, err)
	return priv
}

func TestNewClientParsesUserFromHost(t *testing.T) {
	c, err := NewClient(Config{Host: "deploy@203.0.113.7", PrivateKey: testKey(t)})
	require.NoError(t, err)
	assert.Equal(t, "deploy", c.user)
	assert.Equal(t, "203.0.113.7", c.host)
	assert.Equal(t, "203.0.113.7", c.Host())
	assert.Equal(t, 22, c.port)
	assert.Equal(t, 30*time.Second, c.commandTimeout)
	assert.Equal(t, 60*time.Second, c.uploadTimeout)
}

func TestNewClientUserFallbacks(t *testing.T) {
	c, err := NewClient(Config{Host: "web-1", User: "ops", PrivateKey: testKey(t)})
	require.NoError(t, err)
	assert.Equal(t, "ops", c.user)

	c, err = NewClient(Config{Host: "web-1", PrivateKey: testKey(t)})
	require.NoError(t, err)
	assert.Equal(t, "root", c.user)
}

func TestNewClientRejectsBadKey(t *testing.T) {
	_, err := NewClient(Config{Host: "web-1", PrivateKey: []byte("not a key")})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(Config{PrivateKey: testKey(t)})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestSplitHost(t *testing.T) {
	tests := []struct {
		in       string
		user     string
		hostname string
	}{
		{"deploy@web-1", "deploy", "web-1"},
		{"web-1", "", "web-1"},
		{"a@b@c", "a", "b@c"},
		{"", "", ""},
	}

	for _, tt := range tests {
		user, hostname := SplitHost(tt.in)
		assert.Equal(t, tt.user, user, tt.in)
		assert.Equal(t, tt.hostname, hostname, tt.in)
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, "'/opt/app'", Quote("/opt/app"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))
	assert.Equal(t, "''", Quote(""))
	assert.Equal(t, "'a b;c'", Quote("a b;c"))
}

func TestHintFor(t *testing.T) {
	tests := []struct {
		name    string
		errText string
		want    string
	}{
		{"no route", "connect: No route to host", "No route to host"},
		{"timeout", "dial tcp: i/o timeout", "SSH timed out"},
		{"refused", "connect: connection refused", "connection refused"},
		{"auth", "ssh: Permission denied (publickey)", "authentication failed"},
		{"dns", "no such host", "Host resolution failed"},
		{"unknown", "something else entirely", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := hintFor(tt.errText)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}
