package config

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func freshCmd(t *testing.T) *cobra.Command {
	t.Helper()
	viper.Reset()
	cmd := &cobra.Command{Use: "run"}
	Bind(cmd)
	return cmd
}

func TestLoadDefaultsThreadsToNumCPU(t *testing.T) {
	cmd := freshCmd(t)
	require.NoError(t, cmd.Flags().Parse(nil))
	cfg, err := Load(cmd)
	require.NoError(t, err)
	require.Greater(t, cfg.Threads, 0)
}

func TestLoadRejectsAllowAllCombinedWithAllowRead(t *testing.T) {
	cmd := freshCmd(t)
	require.NoError(t, cmd.Flags().Parse([]string{"--allow-all", "--allow-read=/tmp"}))
	_, err := Load(cmd)
	require.ErrorIs(t, err, ErrAllowAllExclusive)
}

func TestPolicyConfigAllowAllGrantsRootReadWrite(t *testing.T) {
	cfg := &Config{AllowAll: true, CWD: "/"}
	pc := cfg.PolicyConfig()
	require.Len(t, pc.Paths, 1)
	require.True(t, pc.Paths[0].Readable)
	require.True(t, pc.Paths[0].Writable)
	require.Equal(t, []string{"true"}, pc.AllowedConnectV4)
}

func TestPolicyConfigVolumeSpecParsing(t *testing.T) {
	cfg := &Config{Volumes: []string{"/host/data:code:rw", "/host/ro:readonly"}}
	pc := cfg.PolicyConfig()
	require.Len(t, pc.Paths, 2)

	require.Equal(t, "code", pc.Paths[0].VirtualPath)
	require.Equal(t, "/host/data", pc.Paths[0].RealPath)
	require.True(t, pc.Paths[0].Writable)

	require.Equal(t, "readonly", pc.Paths[1].VirtualPath)
	require.False(t, pc.Paths[1].Writable)
}

func TestWorkerConfigDefaultsKeepWorkingMemoryUnlessDisabled(t *testing.T) {
	cfg := &Config{Ephemeral: true}
	require.True(t, cfg.WorkerConfig().EphemeralKeepWorkingMem)

	cfg.NoEphemeralKeepWorkingMem = true
	require.False(t, cfg.WorkerConfig().EphemeralKeepWorkingMem)
}

func TestMasterConfigOmitsWarmupWhenZero(t *testing.T) {
	cfg := &Config{Warmup: 0}
	require.Nil(t, cfg.MasterConfig().Warmup)

	cfg.Warmup = 200
	require.NotNil(t, cfg.MasterConfig().Warmup)
	require.Equal(t, 200, cfg.MasterConfig().Warmup.ConnectRequests)
}

func TestMasterConfigWarmupAddrFallsBackToFirstAllowListen(t *testing.T) {
	cfg := &Config{Warmup: 10, AllowListen: []string{"127.0.0.1:8080", "127.0.0.1:9090"}}
	require.Equal(t, "127.0.0.1:8080", cfg.MasterConfig().Warmup.Addr)

	cfg.WarmupAddr = "127.0.0.1:1234"
	require.Equal(t, "127.0.0.1:1234", cfg.MasterConfig().Warmup.Addr)
}
