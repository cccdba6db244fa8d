// Package config layers hatchery's CLI flags over an optional TOML file
// into the resolved Config the run command builds its guest pool from.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ovmrun/hatchery/internal/errx"
	"github.com/ovmrun/hatchery/pkg/guest"
	"github.com/ovmrun/hatchery/pkg/policy"
)

// Config is the fully resolved, as-run configuration: CLI flags layered
// over an optional TOML file, CLI values winning on conflict.
type Config struct {
	// Execution
	CWD     string
	Env     []string
	Threads int
	Ephemeral bool
	Warmup  int

	// Verbosity
	Verbose int // 0,1,2,3 for -v/-vv/-vvv

	// Permissions
	AllowAll     bool
	AllowRead    []string
	AllowWrite   []string
	AllowEnv     []string
	AllowNet     bool
	AllowConnect []string
	AllowListen  []string
	Volumes      []string

	// Advanced
	MemoryMB                int
	AddressHintMB           int
	Hugepages               bool
	TransparentHugepages    bool
	NoSplitHugepages        bool
	NoExecutableHeap        bool
	NoRelocateFixedMmap     bool
	NoEphemeralKeepWorkingMem bool
	Remapping               []string

	// Warmup tuning (not in the base flag groups but exposed for Scenario E)
	WarmupIntraConnectRequests int
	WarmupAddr                 string

	// Program is the guest binary to load, taken from the first
	// positional argument.
	Program string
}

// Bind registers every CLI flag on cmd and binds it into viper under the
// "run." prefix, mirroring the run command's flag layout.
func Bind(cmd *cobra.Command) {
	f := cmd.Flags()

	f.String("cwd", "/", "Guest working directory")
	f.StringSlice("env", nil, "Environment entry (KEY=VALUE or KEY=*glob*; can be repeated)")
	f.IntP("threads", "t", 0, "Worker concurrency (0 => CPU count)")
	f.BoolP("ephemeral", "e", false, "Reset each worker to the frozen master after every request")
	f.IntP("warmup", "w", 0, "Number of client connections to drive during master warmup")
	f.CountP("verbose", "v", "Increase verbosity (-v, -vv, -vvv)")

	f.Bool("allow-all", false, "Allow all filesystem, env, and network access")
	f.StringSlice("allow-read", nil, "Allow-list of readable guest paths")
	f.StringSlice("allow-write", nil, "Allow-list of writable guest paths")
	f.StringSlice("allow-env", nil, "Allow-list of environment variable names/globs exposed to the guest")
	f.Bool("allow-net", false, "Allow all outbound connect and inbound listen")
	f.StringSlice("allow-connect", nil, "Allow-list of connect targets (host:port, true, false)")
	f.StringSlice("allow-listen", nil, "Allow-list of listen/bind targets (host:port, true, false)")
	f.StringSlice("volume", nil, "Volume mount (host:guest[:rw])")

	f.Int("memory-mb", 256, "Guest memory size in MiB")
	f.Int("address-hint-mb", 0, "Guest virtual address-space hint in MiB")
	f.Bool("hugepages", false, "Back guest memory with hugepages")
	f.Bool("transparent-hugepages", false, "Enable transparent hugepages for guest memory")
	f.Bool("no-split-hugepages", false, "Disable splitting hugepages on partial unmap")
	f.Bool("no-executable-heap", false, "Mark the guest heap non-executable")
	f.Bool("no-relocate-fixed-mmap", false, "Reject MAP_FIXED relocation requests from the guest")
	f.Bool("no-ephemeral-keep-working-memory", false, "Never preserve a worker's working memory across an ephemeral reset")
	f.StringSlice("remapping", nil, "Virtual memory remapping (virt:size(mb)[:phys=0][:rwx])")

	f.Int("warmup-intra-connect-requests", 1, "HTTP requests sent per warmup connection before closing it")
	f.String("warmup-addr", "", "Address the warmup client dials (defaults to the guest's first allow-listen entry)")

	for _, name := range []string{
		"cwd", "env", "threads", "ephemeral", "warmup", "verbose",
		"allow-all", "allow-read", "allow-write", "allow-env", "allow-net", "allow-connect", "allow-listen", "volume",
		"memory-mb", "address-hint-mb", "hugepages", "transparent-hugepages", "no-split-hugepages",
		"no-executable-heap", "no-relocate-fixed-mmap", "no-ephemeral-keep-working-memory", "remapping",
		"warmup-intra-connect-requests", "warmup-addr",
	} {
		_ = viper.BindPFlag("run."+name, f.Lookup(name))
	}
}

// Load reads the layered configuration: a TOML file (if configured via
// -c/--config) underneath whatever flags the user passed on cmd.
func Load(cmd *cobra.Command) (*Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errx.Wrap(ErrReadConfigFile, err)
		}
	}

	cfg := &Config{
		CWD:                        viper.GetString("run.cwd"),
		Env:                        viper.GetStringSlice("run.env"),
		Threads:                    viper.GetInt("run.threads"),
		Ephemeral:                  viper.GetBool("run.ephemeral"),
		Warmup:                     viper.GetInt("run.warmup"),
		Verbose:                    viper.GetInt("run.verbose"),
		AllowAll:                   viper.GetBool("run.allow-all"),
		AllowRead:                  viper.GetStringSlice("run.allow-read"),
		AllowWrite:                 viper.GetStringSlice("run.allow-write"),
		AllowEnv:                   viper.GetStringSlice("run.allow-env"),
		AllowNet:                   viper.GetBool("run.allow-net"),
		AllowConnect:               viper.GetStringSlice("run.allow-connect"),
		AllowListen:                viper.GetStringSlice("run.allow-listen"),
		Volumes:                    viper.GetStringSlice("run.volume"),
		MemoryMB:                   viper.GetInt("run.memory-mb"),
		AddressHintMB:              viper.GetInt("run.address-hint-mb"),
		Hugepages:                  viper.GetBool("run.hugepages"),
		TransparentHugepages:       viper.GetBool("run.transparent-hugepages"),
		NoSplitHugepages:           viper.GetBool("run.no-split-hugepages"),
		NoExecutableHeap:           viper.GetBool("run.no-executable-heap"),
		NoRelocateFixedMmap:        viper.GetBool("run.no-relocate-fixed-mmap"),
		NoEphemeralKeepWorkingMem:  viper.GetBool("run.no-ephemeral-keep-working-memory"),
		Remapping:                  viper.GetStringSlice("run.remapping"),
		WarmupIntraConnectRequests: viper.GetInt("run.warmup-intra-connect-requests"),
		WarmupAddr:                 viper.GetString("run.warmup-addr"),
	}

	if err := validatePermissions(cfg); err != nil {
		return nil, err
	}

	if cfg.Threads <= 0 {
		cfg.Threads = runtime.NumCPU()
	}

	return cfg, nil
}

func validatePermissions(cfg *Config) error {
	if !cfg.AllowAll {
		return nil
	}
	if len(cfg.AllowRead) > 0 || len(cfg.AllowWrite) > 0 || len(cfg.AllowEnv) > 0 ||
		cfg.AllowNet || len(cfg.AllowConnect) > 0 || len(cfg.AllowListen) > 0 {
		return ErrAllowAllExclusive
	}
	return nil
}

// PolicyConfig translates the resolved CLI/TOML configuration into the
// raw input policy.Build expects (spec §4.1).
func (c *Config) PolicyConfig() policy.Config {
	if c.AllowAll {
		return policy.Config{
			CWD:              c.CWD,
			Paths:            []policy.RawPath{{VirtualPath: "/", Readable: true, Writable: true, Symlink: true}},
			AllowedConnectV4: []string{"true"},
			AllowedConnectV6: []string{"true"},
			AllowedListenV4:  []string{"true"},
			AllowedListenV6:  []string{"true"},
			EnvEntries:       []string{"*"},
		}
	}

	var paths []policy.RawPath
	for _, p := range c.AllowRead {
		paths = append(paths, policy.RawPath{VirtualPath: p, Readable: true})
	}
	for _, p := range c.AllowWrite {
		paths = append(paths, policy.RawPath{VirtualPath: p, Writable: true})
	}
	for _, v := range c.Volumes {
		guestPath, hostPath, writable := parseVolumeSpec(v)
		paths = append(paths, policy.RawPath{VirtualPath: guestPath, RealPath: hostPath, Readable: true, Writable: writable})
	}

	connect := c.AllowConnect
	listen := c.AllowListen
	if c.AllowNet {
		connect = append(append([]string(nil), connect...), "true")
		listen = append(append([]string(nil), listen...), "true")
	}

	return policy.Config{
		CWD:              c.CWD,
		Paths:            paths,
		AllowedConnectV4: connect,
		AllowedConnectV6: connect,
		AllowedListenV4:  listen,
		AllowedListenV6:  listen,
		EnvEntries:       c.AllowEnv,
	}
}

// parseVolumeSpec parses "host:guest[:rw]" per spec §6.
func parseVolumeSpec(spec string) (guestPath, hostPath string, writable bool) {
	parts := splitN(spec, ':', 3)
	hostPath = parts[0]
	guestPath = hostPath
	if len(parts) > 1 && parts[1] != "" {
		guestPath = parts[1]
	}
	if len(parts) > 2 && parts[2] == "rw" {
		writable = true
	}
	return guestPath, hostPath, writable
}

func splitN(s string, sep byte, n int) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// WorkerConfig translates the resolved configuration into the per-worker
// runtime options (spec §4.6).
func (c *Config) WorkerConfig() guest.WorkerConfig {
	return guest.WorkerConfig{
		Ephemeral:               c.Ephemeral,
		EphemeralKeepWorkingMem: !c.NoEphemeralKeepWorkingMem,
	}
}

// MasterConfig translates the resolved configuration into the master boot
// options, including an optional warmup plan (spec §4.5).
func (c *Config) MasterConfig() guest.MasterConfig {
	mc := guest.MasterConfig{MaxBootTime: 30 * time.Second}
	if c.Warmup > 0 {
		addr := c.WarmupAddr
		if addr == "" && len(c.AllowListen) > 0 {
			addr = c.AllowListen[0]
		}
		mc.Warmup = &guest.WarmupConfig{
			Addr:                 addr,
			ConnectRequests:      c.Warmup,
			IntraConnectRequests: c.WarmupIntraConnectRequests,
			DialTimeout:          5 * time.Second,
		}
	}
	return mc
}

// Validate reports a descriptive error for option combinations the guest
// pool cannot act on, independent of the permission mutual-exclusion
// already checked by Load.
func (c *Config) Validate() error {
	if c.Program == "" {
		return fmt.Errorf("a guest program path is required")
	}
	return nil
}
