package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/autoclaim/internal/chain"
	"github.com/aatumaykin/autoclaim/internal/config"
	"github.com/aatumaykin/autoclaim/internal/credentials"
	"github.com/aatumaykin/autoclaim/internal/instance"
	"github.com/aatumaykin/autoclaim/internal/jobstore"
	"github.com/aatumaykin/autoclaim/internal/logger"
)

const (
	testProgram = "WAX-GBM"
	testKeyID   = "EOS6alice"
	testWIF     = "5Kalice"
	passphrase  = "test passphrase"
)

var testAPIs = []string{"https://api1.example", "https://api2.example"}

func createTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Workspace.Path = t.TempDir()
	cfg.Credentials.Passphrase = passphrase
	cfg.Logging.Output = "stdout"
	cfg.Power.CheckIntervalSeconds = 3600
	cfg.Power.DriftThresholdSeconds = 7200
	return cfg
}

func writeStore(t *testing.T, cfg *config.Config, enabled bool, accounts ...string) {
	t.Helper()
	var jobs []*jobstore.ClaimJob
	for _, acct := range accounts {
		jobs = append(jobs, &jobstore.ClaimJob{Account: acct, PublicKey: testKeyID, Permission: "claim"})
	}
	store := jobstore.New(cfg.JobStorePath(), logger.Nop())
	require.NoError(t, store.Save(&jobstore.AutoClaimConfig{
		Enabled: enabled,
		Programs: map[string]*jobstore.ProgramConfig{
			testProgram: {Endpoints: testAPIs, Jobs: jobs},
		},
	}))
}

type fakeSpawner struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (f *fakeSpawner) Spawn(exe string, args []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string{exe}, args...))
	return 4242, f.err
}

func newTestApp(cfg *config.Config, opts ...Option) *App {
	a := New(cfg, logger.Nop(), opts...)
	a.executable = func() (string, error) { return "/usr/bin/autoclaim", nil }
	return a
}

func TestRun_AgentQuitsWhenDisabled(t *testing.T) {
	cfg := createTestConfig(t)

	err := newTestApp(cfg).Run(context.Background(), instance.RoleAutostart)
	assert.ErrorIs(t, err, ErrDisabled)

	writeStore(t, cfg, false, "alice")
	err = newTestApp(cfg).Run(context.Background(), instance.RoleAutostart)
	assert.ErrorIs(t, err, ErrDisabled)

	assert.NoFileExists(t, filepath.Join(cfg.Workspace.Path, "simpleos-lockALFile"))
}

func TestRun_AgentClaimsDueJob(t *testing.T) {
	cfg := createTestConfig(t)
	writeStore(t, cfg, true, "alice")
	require.NoError(t, credentials.NewStore(cfg.CredentialsDir(), passphrase).PutSecret(cfg.Credentials.Service, testKeyID, testWIF))

	net := chain.NewFakeNetwork()
	net.SetGenesis("alice", &chain.GenesisRow{
		LastClaimTime: time.Now().UTC().Add(-25 * time.Hour).Format("2006-01-02T15:04:05.000"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	a := newTestApp(cfg, WithDialer(net.Dialer()))
	go func() { done <- a.Run(ctx, instance.RoleAutostart) }()

	require.Eventually(t, func() bool { return len(net.Pushed()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, testWIF, net.Pushed()[0].PrivateKey)

	require.Eventually(t, func() bool {
		ac, err := jobstore.New(cfg.JobStorePath(), logger.Nop()).Load()
		if err != nil {
			return false
		}
		job := ac.Program(testProgram).Job("alice")
		return job != nil && job.LastClaimAt != nil
	}, 5*time.Second, 10*time.Millisecond)

	st := a.Status()
	assert.True(t, st.Agent.Running)
	assert.Equal(t, os.Getpid(), st.Agent.PID)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop")
	}
	assert.NoFileExists(t, filepath.Join(cfg.Workspace.Path, "simpleos-lockALFile"))
}

func TestRun_RoleAlreadyHeld(t *testing.T) {
	cfg := createTestConfig(t)
	writeStore(t, cfg, true, "alice")

	other := instance.NewManager(cfg.Workspace.Path, cfg.Workspace.Product, logger.Nop())
	h, err := other.AcquireRoleLock(instance.RoleAutostart)
	require.NoError(t, err)
	defer h.Release()

	net := chain.NewFakeNetwork()
	err = newTestApp(cfg, WithDialer(net.Dialer())).Run(context.Background(), instance.RoleAutostart)
	assert.ErrorIs(t, err, instance.ErrAlreadyHeld)
	assert.Zero(t, net.Calls(testAPIs[0]), "nothing may be scheduled")
}

func TestRun_WorkspaceUncreatable(t *testing.T) {
	cfg := createTestConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.Workspace.Path = filepath.Join(blocker, "ws")

	err := newTestApp(cfg).Run(context.Background(), instance.RoleAutostart)
	assert.ErrorContains(t, err, "failed to create workspace directory")
}

func TestRun_InteractiveSpawnsAgent(t *testing.T) {
	cfg := createTestConfig(t)
	writeStore(t, cfg, true, "alice")
	spawner := &fakeSpawner{}

	a := newTestApp(cfg, WithSpawner(spawner), WithConfigPath("/etc/autoclaim.toml"))
	require.NoError(t, a.Run(context.Background(), instance.RoleInteractive))

	require.Len(t, spawner.calls, 1)
	assert.Equal(t, []string{"/usr/bin/autoclaim", "--config", "/etc/autoclaim.toml", "--autostart"}, spawner.calls[0])
	assert.NoFileExists(t, filepath.Join(cfg.Workspace.Path, "simpleos-lockLFile"))
}

func TestEnsureAgent(t *testing.T) {
	t.Run("disabled store", func(t *testing.T) {
		cfg := createTestConfig(t)
		writeStore(t, cfg, false, "alice")
		spawner := &fakeSpawner{}

		d, err := newTestApp(cfg, WithSpawner(spawner)).EnsureAgent()
		require.NoError(t, err)
		assert.False(t, d.Spawned)
		assert.Empty(t, spawner.calls)
	})

	t.Run("no jobs", func(t *testing.T) {
		cfg := createTestConfig(t)
		writeStore(t, cfg, true)
		spawner := &fakeSpawner{}

		d, err := newTestApp(cfg, WithSpawner(spawner)).EnsureAgent()
		require.NoError(t, err)
		assert.Equal(t, "no claim jobs configured", d.Reason)
		assert.Empty(t, spawner.calls)
	})

	t.Run("spawning turned off", func(t *testing.T) {
		cfg := createTestConfig(t)
		writeStore(t, cfg, true, "alice")
		off := false
		cfg.Agent.SpawnAgent = &off
		spawner := &fakeSpawner{}

		d, err := newTestApp(cfg, WithSpawner(spawner)).EnsureAgent()
		require.NoError(t, err)
		assert.False(t, d.Spawned)
		assert.Empty(t, spawner.calls)
	})

	t.Run("agent alive", func(t *testing.T) {
		cfg := createTestConfig(t)
		writeStore(t, cfg, true, "alice")
		h, err := instance.NewManager(cfg.Workspace.Path, cfg.Workspace.Product, logger.Nop()).AcquireRoleLock(instance.RoleAutostart)
		require.NoError(t, err)
		defer h.Release()
		spawner := &fakeSpawner{}

		d, err := newTestApp(cfg, WithSpawner(spawner)).EnsureAgent()
		require.NoError(t, err)
		assert.Equal(t, "agent already running", d.Reason)
		assert.Equal(t, os.Getpid(), d.PID)
		assert.Empty(t, spawner.calls)
	})

	t.Run("spawn failure", func(t *testing.T) {
		cfg := createTestConfig(t)
		writeStore(t, cfg, true, "alice")
		spawner := &fakeSpawner{err: errors.New("exec format error")}

		_, err := newTestApp(cfg, WithSpawner(spawner)).EnsureAgent()
		assert.ErrorContains(t, err, "failed to spawn agent")
	})
}

func TestRegisterAutostart(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("AUTOCLAIM_AUTOSTART_DIR", dir)
	cfg := createTestConfig(t)

	require.NoError(t, newTestApp(cfg, WithConfigPath("/c.toml")).RegisterAutostart())

	data, err := os.ReadFile(filepath.Join(dir, "simpleos-autoclaim.desktop"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Exec=/usr/bin/autoclaim --config /c.toml --autostart")
}

func TestStatus(t *testing.T) {
	cfg := createTestConfig(t)

	st := newTestApp(cfg).Status()
	assert.NotEmpty(t, st.StoreError)
	assert.False(t, st.Agent.Running)

	writeStore(t, cfg, true, "alice", "bob")
	require.NoError(t, credentials.NewStore(cfg.CredentialsDir(), passphrase).PutSecret(cfg.Credentials.Service, testKeyID, testWIF))

	st = newTestApp(cfg).Status()
	assert.Empty(t, st.StoreError)
	assert.True(t, st.Enabled)
	assert.Equal(t, testAPIs, st.Endpoints)
	require.Len(t, st.Jobs, 2)
	assert.Equal(t, "alice", st.Jobs[0].Account)
	assert.True(t, st.Jobs[0].KeyStored)
}

func TestShutdown_Idempotent(t *testing.T) {
	cfg := createTestConfig(t)
	a := newTestApp(cfg, WithDialer(chain.NewFakeNetwork().Dialer()))

	require.NoError(t, a.Initialize(context.Background()))
	require.NoError(t, a.Start())
	require.NotNil(t, a.Scheduler())
	require.NoError(t, a.Shutdown())
	require.NoError(t, a.Shutdown())
}
