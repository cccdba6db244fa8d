package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovmrun/hatchery/internal/config"
	"github.com/ovmrun/hatchery/pkg/bootstrap"
	"github.com/ovmrun/hatchery/pkg/guest"
	"github.com/ovmrun/hatchery/pkg/policy"
	"github.com/ovmrun/hatchery/pkg/telemetry"
	"github.com/ovmrun/hatchery/pkg/vm"
	"github.com/ovmrun/hatchery/pkg/vm/sim"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] -- <program> [args...]",
	Short: "Boot a guest program and serve requests through the worker pool",
	Long: `run boots the guest program to quiescence, freezes it as the
copy-on-write Master, and serves client connections with a pool of
Worker forks that each handle one connection and reset back to the
Master template (or, with -e/--ephemeral, after every request).

Permissions default to deny-all: pass --allow-read, --allow-write,
--allow-env, --allow-connect, and --allow-listen explicitly, or
--allow-all to grant everything. --allow-all cannot be combined with
any other --allow-* flag.`,
	Example: `  hatchery run --allow-listen 127.0.0.1:8080 -t 1 -e -- ./server
  hatchery run --allow-read=/etc --allow-env='HOME,PATH' -- ./server
  hatchery run -w 200 --warmup-intra-connect-requests 5 -- ./server
  hatchery run --print-config -- ./server`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	config.Bind(runCmd)
	runCmd.Flags().Bool("print-config", false, "Print the resolved configuration as JSON and exit")
	rootCmd.AddCommand(runCmd)

	printConfigCmd.Flags().AddFlagSet(runCmd.Flags())
	rootCmd.AddCommand(printConfigCmd)
}

var printConfigCmd = &cobra.Command{
	Use:   "print-config [flags] -- <program> [args...]",
	Short: "Alias for 'run --print-config'",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = cmd.Flags().Set("print-config", "true")
		return runRun(cmd, args)
	},
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return err
	}
	cfg.Program = args[0]

	if printOnly, _ := cmd.Flags().GetBool("print-config"); printOnly {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := slog.LevelWarn
	switch {
	case cfg.Verbose >= 2:
		logLevel = slog.LevelDebug
	case cfg.Verbose == 1:
		logLevel = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	emitter := telemetry.NewEmitter(telemetry.EmitterConfig{InstanceID: cfg.Program}, telemetry.NewStdoutWriter(os.Stdout))
	defer emitter.Close()

	pol, err := policy.Build(cfg.PolicyConfig())
	if err != nil {
		return fmt.Errorf("building policy: %w", err)
	}

	ctx, cancel := bootstrap.ContextWithSignal(cmd.Context())
	defer cancel()

	backend := sim.Backend{}
	machine, err := backend.Boot(ctx, vm.Config{
		ID:        cfg.Program,
		ImagePath: cfg.Program,
		CPUs:      cfg.Threads,
		MemoryMB:  cfg.MemoryMB,
		Env:       cfg.Env,
	})
	if err != nil {
		return fmt.Errorf("booting guest: %w", err)
	}

	start := time.Now()
	master := guest.NewMaster(machine, pol, cfg.MasterConfig(), log)
	if err := master.Boot(ctx); err != nil {
		fmt.Fprintln(os.Stderr, bootstrap.StoppedBanner)
		return fmt.Errorf("master boot: %w", err)
	}
	initTime := time.Since(start)
	warmupTime := master.WarmupElapsed()

	banner := bootstrap.Banner{
		ProgramPath:   cfg.Program,
		PollMethod:    master.PollMethod(),
		Concurrency:   cfg.Threads,
		Ephemeral:     cfg.Ephemeral,
		KeepWorkMem:   !cfg.NoEphemeralKeepWorkingMem,
		Hugepages:     cfg.Hugepages,
		TransparentHP: cfg.TransparentHugepages,
		InitTime:      initTime,
		WarmupTime:    warmupTime,
		RSSMiB:        bootstrap.RSSMiB(),
	}
	fmt.Println(banner.String())
	_ = emitter.Emit(telemetry.EventMasterFrozen, "master frozen", 0, nil)

	if cfg.Threads == 1 && !cfg.Ephemeral {
		return guest.RunSingleVM(ctx, master)
	}

	pool := guest.NewPool(master, guest.PoolConfig{
		Concurrency: cfg.Threads,
		Worker:      cfg.WorkerConfig(),
	}, log)
	if err := pool.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, bootstrap.StoppedBanner)
		return err
	}
	return nil
}
