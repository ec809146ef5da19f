package main

import (
	"bytes"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/solana-prereq/pkg/rate"
	"github.com/code-payments/solana-prereq/pkg/solana"
	"github.com/code-payments/solana-prereq/pkg/solana/keyfile"
	"github.com/code-payments/solana-prereq/pkg/solana/memory"
	"github.com/code-payments/solana-prereq/pkg/solana/prereq"
	"github.com/code-payments/solana-prereq/pkg/testutil"
)

type testEnv struct {
	client  *memory.Client
	dir     string
	wallet  string
	clients  []solana.Environment
	limiters []rate.Limiter
}

func setup(t *testing.T) *testEnv {
	dir := t.TempDir()
	return &testEnv{
		client: memory.NewClient(),
		dir:    dir,
		wallet: filepath.Join(dir, "dev-wallet.json"),
	}
}

func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd(func(env solana.Environment, limiter rate.Limiter) solana.Client {
		e.clients = append(e.clients, env)
		e.limiters = append(e.limiters, limiter)
		return e.client
	})

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--wallet", e.wallet}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func (e *testEnv) owner(t *testing.T) ed25519.PrivateKey {
	key, err := keyfile.Load(e.wallet)
	require.NoError(t, err)
	return key
}

func TestKeygen(t *testing.T) {
	env := setup(t)

	out, err := env.run(t, "keygen", "--out", env.wallet)
	require.NoError(t, err)

	key := env.owner(t)
	assert.Contains(t, out, base58.Encode(testutil.PublicKey(key)))

	info, err := os.Stat(env.wallet)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err = env.run(t, "keygen")
	require.NoError(t, err)
	assert.Contains(t, out, "copy and paste")
}

func TestBase58Conversion(t *testing.T) {
	env := setup(t)
	key := testutil.GenerateSolanaKeypair(t)

	_, err := env.run(t, "base58-to-wallet", keyfile.ToBase58(key), "--out", env.wallet)
	require.NoError(t, err)
	assert.Equal(t, key, env.owner(t))

	out, err := env.run(t, "wallet-to-base58")
	require.NoError(t, err)
	assert.Equal(t, keyfile.ToBase58(key), strings.TrimSpace(out))

	_, err = env.run(t, "base58-to-wallet", "not-a-key")
	assert.ErrorIs(t, err, keyfile.ErrInvalidKey)
}

func TestWorkflow(t *testing.T) {
	env := setup(t)

	_, err := env.run(t, "keygen", "--out", env.wallet)
	require.NoError(t, err)
	owner := testutil.PublicKey(env.owner(t))

	out, err := env.run(t, "airdrop")
	require.NoError(t, err)
	assert.Contains(t, out, "https://explorer.solana.com/tx/")
	assert.Contains(t, out, "?cluster=devnet")
	assert.EqualValues(t, 2_000_000_000, env.client.Balance(owner))

	out, err = env.run(t, "enroll", "--github", "AirZED")
	require.NoError(t, err)
	assert.Contains(t, out, "Enrolled!")

	address, _, err := prereq.GetPrereqAddress(&prereq.GetPrereqAddressArgs{Owner: owner})
	require.NoError(t, err)

	out, err = env.run(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, base58.Encode(address))
	assert.Contains(t, out, "enrolled: true")

	_, err = env.run(t, "update", "--github", "someone-else")
	require.NoError(t, err)

	recipient := testutil.GenerateSolanaKeys(t, 1)[0]

	_, err = env.run(t, "transfer", "--to", base58.Encode(recipient), "--amount", "100000000", "--memo", "hello")
	require.NoError(t, err)
	assert.EqualValues(t, 100_000_000, env.client.Balance(recipient))

	out, err = env.run(t, "transfer", "--to", base58.Encode(recipient), "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "Swept")
	assert.Zero(t, env.client.Balance(owner))

	out, err = env.run(t, "balance", base58.Encode(owner))
	require.NoError(t, err)
	assert.Contains(t, out, ": 0 lamports")

	for _, env := range env.clients {
		assert.Equal(t, solana.EnvironmentDev, env)
	}
}

func TestTransfer_Flags(t *testing.T) {
	env := setup(t)
	_, err := env.run(t, "keygen", "--out", env.wallet)
	require.NoError(t, err)

	recipient := base58.Encode(testutil.GenerateSolanaKeys(t, 1)[0])

	_, err = env.run(t, "transfer", "--to", recipient)
	assert.Error(t, err)

	_, err = env.run(t, "transfer", "--to", recipient, "--all", "--amount", "1")
	assert.Error(t, err)

	_, err = env.run(t, "transfer", "--to", "invalid", "--all")
	assert.Error(t, err)

	_, err = env.run(t, "enroll")
	assert.Error(t, err)

	assert.Empty(t, env.client.Submitted())
}

func TestConfig(t *testing.T) {
	env := setup(t)

	t.Setenv("SOLANA_RPC_ENDPOINT", "testnet")
	_, err := env.run(t, "keygen")
	require.NoError(t, err)

	_, err = env.run(t, "--cluster", "http://localhost:8899", "keygen")
	require.NoError(t, err)

	require.Len(t, env.clients, 2)
	assert.Equal(t, solana.EnvironmentTest, env.clients[0])
	assert.Equal(t, solana.Environment("http://localhost:8899"), env.clients[1])
	assert.Equal(t, rate.NoLimiter{}, env.limiters[0])

	t.Setenv("SOLANA_RPC_RATE_LIMIT", "4")
	_, err = env.run(t, "keygen")
	require.NoError(t, err)
	require.Len(t, env.limiters, 3)
	assert.NotEqual(t, rate.NoLimiter{}, env.limiters[2])

	path := filepath.Join(env.dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\napp_name: prereq-test\n"), 0o600))

	v := newViper()
	config, err := loadConfig(v, path)
	require.NoError(t, err)
	assert.Equal(t, "debug", config.LogLevel)
	assert.Equal(t, "prereq-test", config.AppName)
	assert.Equal(t, "testnet", config.Cluster)
	assert.Equal(t, defaultConfig.WalletPath, config.WalletPath)

	_, err = loadConfig(newViper(), filepath.Join(env.dir, "missing.yaml"))
	assert.Error(t, err)
}
