package ssh

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/proxk8s/internal/util/keygen"
)

// generateTestKey generates a test RSA key pair for use in tests.
func generateTestKey(t *testing.T) *keygen.KeyPair {
	t.Helper()
	keyPair, err := keygen.GenerateRSAKeyPair(2048)
	require.NoError(t, err, "failed to generate test key")
	return keyPair
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"nil config", nil, "config cannot be nil"},
		{"empty host", &Config{User: "root", PrivateKey: keyPair.PrivateKey}, "config host cannot be empty"},
		{"empty user", &Config{Host: "10.0.0.1", PrivateKey: keyPair.PrivateKey}, "config user cannot be empty"},
		{"empty key", &Config{Host: "10.0.0.1", User: "root"}, "config private key cannot be empty"},
		{"invalid key", &Config{Host: "10.0.0.1", User: "root", PrivateKey: []byte("invalid key")}, "failed to parse private key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewClient(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_AppliesDefaults(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	tests := []struct {
		name            string
		cfg             *Config
		wantPort        int
		wantDialTimeout time.Duration
		wantMaxRetries  int
		wantRetryDelay  time.Duration
	}{
		{
			name: "zero values get defaults",
			cfg: &Config{
				Host:       "10.0.0.11",
				User:       "ubuntu",
				PrivateKey: keyPair.PrivateKey,
			},
			wantPort:        defaultPort,
			wantDialTimeout: defaultDialTimeout,
			wantMaxRetries:  defaultMaxRetries,
			wantRetryDelay:  defaultRetryDelay,
		},
		{
			name: "custom values are preserved",
			cfg: &Config{
				Host:        "10.0.0.11",
				Port:        2222,
				User:        "ubuntu",
				PrivateKey:  keyPair.PrivateKey,
				DialTimeout: 5 * time.Second,
				MaxRetries:  10,
				RetryDelay:  2 * time.Second,
			},
			wantPort:        2222,
			wantDialTimeout: 5 * time.Second,
			wantMaxRetries:  10,
			wantRetryDelay:  2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			client, err := NewClient(tt.cfg)
			require.NoError(t, err)

			assert.Equal(t, tt.wantPort, client.config.Port)
			assert.Equal(t, tt.wantDialTimeout, client.config.DialTimeout)
			assert.Equal(t, tt.wantMaxRetries, client.config.MaxRetries)
			assert.Equal(t, tt.wantRetryDelay, client.config.RetryDelay)
			assert.NotNil(t, client.signer)
			assert.Equal(t, "10.0.0.11", client.Host())
		})
	}
}

func TestNewClient_ConfigNotMutated(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	cfg := &Config{Host: "10.0.0.11", User: "ubuntu", PrivateKey: keyPair.PrivateKey}
	_, err := NewClient(cfg)
	require.NoError(t, err)

	assert.Zero(t, cfg.Port)
	assert.Zero(t, cfg.DialTimeout)
	assert.Zero(t, cfg.MaxRetries)
	assert.Zero(t, cfg.RetryDelay)
	assert.Nil(t, cfg.HostKeyCallback)
}

func TestExecute_ContextCancellation(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	client, err := NewClient(&Config{
		Host:       "192.0.2.1",
		User:       "ubuntu",
		PrivateKey: keyPair.PrivateKey,
		MaxRetries: 3,
		RetryDelay: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.Execute(ctx, "echo test")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	ok, err := client.Check(ctx, "true")
	require.Error(t, err, "transport failures are errors, not a false check result")
	assert.False(t, ok)
}

func TestTranscribe(t *testing.T) {
	t.Parallel()
	keyPair := generateTestKey(t)

	var buf bytes.Buffer
	client, err := NewClient(&Config{
		Host: "10.0.0.11", User: "ubuntu", PrivateKey: keyPair.PrivateKey, Transcript: &buf,
	})
	require.NoError(t, err)

	client.transcribe("modprobe br_netfilter", "", nil)
	client.transcribe("apt-get install -y foo", "E: Unable to locate package foo", errors.New("exit 100"))

	out := buf.String()
	assert.Contains(t, out, "$ modprobe br_netfilter [ok]")
	assert.Contains(t, out, "$ apt-get install -y foo [error]")
	assert.Contains(t, out, "Unable to locate package foo")
}

func TestQuote(t *testing.T) {
	t.Parallel()
	assert.Equal(t, `'/etc/modules-load.d/lab.conf'`, Quote("/etc/modules-load.d/lab.conf"))
	assert.Equal(t, `'it'\''s'`, Quote("it's"))
}
