// memsentineld — a userspace memory-pressure guardian for Linux
// hosts. It samples available memory and pressure-stall counters,
// classifies severity, and takes graded action against processes to
// keep the host responsive ahead of the kernel OOM killer.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/memsentinel/memsentineld/internal/config"
	"github.com/memsentinel/memsentineld/internal/control"
	"github.com/memsentinel/memsentineld/internal/logging"
	"github.com/memsentinel/memsentineld/internal/supervisor"

	"golang.org/x/sys/unix"
)

var version = "0.1.0"

const defaultPidFile = "/var/run/sentinel.pid"

// daemonizeEnvVar marks a re-exec'd child so it knows not to fork
// again.
const daemonizeEnvVar = "MEMSENTINEL_DAEMONIZED"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		silent     bool
		stop       bool
		configPath string
		debug      bool
		pidFile    string
	)

	rootCmd := &cobra.Command{
		Use:     "memsentineld",
		Short:   "Userspace memory-pressure guardian",
		Version: version,
		Long: `memsentineld observes host memory pressure via /proc/meminfo and
/proc/pressure/memory, classifies severity into Healthy/Soft/Hard, and
takes graded remedial action — STOP, TERM, or KILL — against the
processes most responsible before the kernel's own OOM killer acts.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stop {
				return doStop(pidFile)
			}
			return doRun(silent, configPath, debug, pidFile)
		},
	}

	rootCmd.Flags().BoolVar(&silent, "silent", false, "fork and background the supervisor")
	rootCmd.Flags().BoolVar(&stop, "stop", false, "stop the running supervisor")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to memsentinel.toml (default: search /etc then cwd)")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	rootCmd.Flags().StringVar(&pidFile, "pid-file", defaultPidFile, "path to the supervisor pid file")

	rootCmd.AddCommand(newConfigCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	return 0
}

func newConfigCmd(configPath *string) *cobra.Command {
	configCmd := &cobra.Command{Use: "config", Short: "Inspect or validate configuration"}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration, reporting any error",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			fmt.Printf("config OK: mode=%s soft=%.1f%% hard=%.1f%% scan_interval=%ds\n",
				cfg.Mode, cfg.SoftThresholdPct, cfg.HardThresholdPct, cfg.ScanIntervalSec)
			return nil
		},
	}
	configCmd.AddCommand(validateCmd)
	return configCmd
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.LoadFirstFound()
}

func doRun(silent bool, configPath string, debug bool, pidFile string) error {
	if silent && os.Getenv(daemonizeEnvVar) == "" {
		return daemonizeAndExit(configPath, debug, pidFile)
	}

	format := logging.FormatConsole
	if silent {
		format = logging.FormatJSON
	}
	log := logging.New(logging.Options{Format: format, Debug: debug})

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Warn().Err(err).Msg("config parse failed at startup, using defaults")
		cfg = config.Default()
	}

	if err := supervisor.WritePidFile(pidFile); err != nil {
		return fatalExit{code: 1, msg: fmt.Sprintf("memsentineld: %v", err)}
	}
	defer supervisor.RemovePidFile(pidFile)

	sv := supervisor.New(cfg, "/proc", control.NewSignalController("/proc"), log)
	if configPath != "" {
		sv.SetConfigPath(configPath)
	}

	sv.Run(nil)
	return nil
}

// daemonizeAndExit re-execs the current binary with the same flags
// plus the daemonize marker, detaching it into its own session so it
// survives the parent's terminal closing, then exits the parent with
// status 0. Go cannot safely fork(2) a multi-threaded runtime, so
// re-exec plus Setsid is the idiomatic substitute.
func daemonizeAndExit(configPath string, debug bool, pidFile string) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("memsentineld: cannot locate self: %w", err)
	}

	args := []string{"--silent", "--pid-file", pidFile}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if debug {
		args = append(args, "--debug")
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("memsentineld: %w", err)
	}
	defer devNull.Close()

	child := exec.Command(self, args...)
	child.Env = append(os.Environ(), daemonizeEnvVar+"=1")
	child.Stdin = devNull
	child.Stdout = devNull
	child.Stderr = devNull
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("memsentineld: failed to background: %w", err)
	}
	return nil
}

func doStop(pidFile string) error {
	pid, err := supervisor.ReadPidFile(pidFile)
	if err != nil {
		return fatalExit{code: 1, msg: "memsentineld: no running supervisor (missing or stale pid file)"}
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fatalExit{code: 1, msg: fmt.Sprintf("memsentineld: failed to signal pid %d: %v", pid, err)}
	}

	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if unix.Kill(pid, 0) != nil {
			os.Remove(pidFile)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}

	_ = unix.Kill(pid, unix.SIGKILL)
	os.Remove(pidFile)
	return nil
}

// fatalExit carries a non-zero process exit code through cobra's
// error-returning RunE without cobra printing a second, redundant
// error line for messages we've already written ourselves.
type fatalExit struct {
	code int
	msg  string
}

func (e fatalExit) Error() string {
	if e.msg != "" {
		return e.msg
	}
	return "memsentineld: fatal error"
}

func exitCodeFor(err error) int {
	if fe, ok := err.(fatalExit); ok {
		return fe.code
	}
	return 1
}
