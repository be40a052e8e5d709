package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/fincast/internal/cli"
	"github.com/theirongolddev/fincast/internal/daemon"
	"github.com/theirongolddev/fincast/internal/pipeline"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonRefresh      string
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch feeds, recompute on change and serve results over HTTP/SSE",
	RunE:  runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	pf := daemonCmd.PersistentFlags()
	pf.StringVar(&flagDaemonAddr, "addr", "", "HTTP listen address (default from config)")
	pf.DurationVar(&flagDaemonInterval, "interval", 0, "Feed polling interval (default from config)")
	pf.StringVar(&flagDaemonRefresh, "refresh", "", "Cron spec for unconditional recomputes (default from config)")
	pf.StringVar(&flagDaemonPIDFile, "pid-file", "", "PID file path (default <data-dir>/fincastd.pid)")
	pf.StringVar(&flagDaemonLogFile, "log-file", "", "Log file for detached mode (default <data-dir>/fincastd.log)")
	pf.IntVar(&flagDaemonEventsBuffer, "events-buffer", 0, "Max in-memory events retained (default from config)")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

// daemonState is written next to the pid file so status can find the API.
type daemonState struct {
	PID       int       `json:"pid"`
	Addr      string    `json:"addr"`
	StartedAt time.Time `json:"started_at"`
	DataDir   string    `json:"data_dir"`
}

// daemonFiles locates the pid, state and log files of one daemon instance.
type daemonFiles struct {
	pid string
	log string
}

func resolveDaemonFiles() daemonFiles {
	f := daemonFiles{pid: flagDaemonPIDFile, log: flagDaemonLogFile}
	if f.pid == "" {
		f.pid = filepath.Join(appCfg.General.DataDir, "fincastd.pid")
	}
	if f.log == "" {
		f.log = filepath.Join(appCfg.General.DataDir, "fincastd.log")
	}
	return f
}

func (f daemonFiles) state() string { return f.pid + ".json" }

func (f daemonFiles) readPID() (int, error) {
	//nolint:gosec // daemon pid path is configured by the local user
	data, err := os.ReadFile(f.pid)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", f.pid)
	}
	return pid, nil
}

// claim records pid as the running daemon, clearing a stale pid file.
func (f daemonFiles) claim(st daemonState) error {
	if pid, err := f.readPID(); err == nil {
		if processAlive(pid) {
			return fmt.Errorf("daemon already running (pid %d)", pid)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.pid), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.WriteFile(f.pid, []byte(strconv.Itoa(st.PID)+"\n"), 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.state(), append(data, '\n'), 0o600)
}

func (f daemonFiles) release() {
	_ = os.Remove(f.pid)
	_ = os.Remove(f.state())
}

func (f daemonFiles) readState() (daemonState, error) {
	var st daemonState
	//nolint:gosec // daemon state path is configured by the local user
	data, err := os.ReadFile(f.state())
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

func daemonConfig() daemon.Config {
	cfg := daemon.Config{
		FeedDir:      pipeline.FeedDir(appCfg.General.DataDir),
		Workers:      appCfg.Engine.Workers,
		Interval:     appCfg.PollInterval(),
		Refresh:      appCfg.Daemon.Refresh,
		Addr:         appCfg.Daemon.Addr,
		EventsBuffer: appCfg.Daemon.EventsBuffer,
	}
	if flagDaemonAddr != "" {
		cfg.Addr = flagDaemonAddr
	}
	if flagDaemonInterval > 0 {
		cfg.Interval = flagDaemonInterval
	}
	if flagDaemonRefresh != "" {
		cfg.Refresh = flagDaemonRefresh
	}
	if flagDaemonEventsBuffer > 0 {
		cfg.EventsBuffer = flagDaemonEventsBuffer
	}
	return cfg
}

func runDaemon(_ *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}
	if flagDaemonDetach {
		return startDaemonDetached()
	}
	return runDaemonForeground()
}

func startDaemonDetached() error {
	files := resolveDaemonFiles()
	if pid, err := files.readPID(); err == nil && processAlive(pid) {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a != "--detach" && !strings.HasPrefix(a, "--detach=") {
			args = append(args, a)
		}
	}
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(files.log), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}
	//nolint:gosec // daemon log path is configured by the local user
	logf, err := os.OpenFile(files.log, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, args...) //nolint:gosec // exe/args come from current process invocation
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	cfg := daemonConfig()
	fmt.Printf("  Started daemon (pid %d)\n", child.Process.Pid)
	fmt.Printf("  PID file: %s\n", files.pid)
	fmt.Printf("  API: http://%s/v1/status\n", cfg.Addr)
	fmt.Printf("  Log: %s\n", files.log)
	return nil
}

func runDaemonForeground() error {
	files := resolveDaemonFiles()
	cfg := daemonConfig()

	state := daemonState{
		PID:       os.Getpid(),
		Addr:      cfg.Addr,
		StartedAt: time.Now(),
		DataDir:   appCfg.General.DataDir,
	}
	if err := files.claim(state); err != nil {
		return err
	}
	defer files.release()

	// A detached child writes JSON lines to its log file.
	log := logger
	if flagDaemonChild {
		log = zerolog.New(os.Stderr).Level(logger.GetLevel()).With().Timestamp().Logger()
	} else if flagQuiet {
		log = logger.Level(zerolog.WarnLevel)
	}
	logger = log

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The poll loop ingests; openSession only restores earlier results.
	sess, err := openSession(ctx, false)
	if err != nil {
		return err
	}
	defer sess.Close()

	svc := daemon.New(cfg, sess.eng, sess.st, log)

	if !flagDaemonChild {
		fmt.Printf("  fincast daemon listening on http://%s\n", cfg.Addr)
		fmt.Printf("  Polling %s every %s\n", cfg.FeedDir, cfg.Interval)
		if cfg.Refresh != "" {
			fmt.Printf("  Scheduled refresh: %s\n", cfg.Refresh)
		}
		fmt.Printf("  Stop with: fincast daemon stop\n")
	}

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(_ *cobra.Command, _ []string) error {
	files := resolveDaemonFiles()
	pid, err := files.readPID()
	if err != nil {
		fmt.Printf("  Daemon: not running (pid file not found)\n")
		return nil
	}
	if !processAlive(pid) {
		fmt.Printf("  Daemon: stale pid file (pid %d not alive)\n", pid)
		return nil
	}

	addr := daemonConfig().Addr
	if st, err := files.readState(); err == nil && st.Addr != "" {
		addr = st.Addr
	}
	fmt.Printf("  Daemon PID: %d\n", pid)
	fmt.Printf("  Address: http://%s\n", addr)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/v1/status") //nolint:noctx // short status probe
	if err != nil {
		fmt.Printf("  API status: unreachable (%v)\n", err)
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("  API status: HTTP %d\n", resp.StatusCode)
		return nil
	}

	var st daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		fmt.Printf("  API status: malformed response (%v)\n", err)
		return nil
	}
	if flagJSON {
		return printJSON(st)
	}

	if st.LastPollAt.IsZero() {
		fmt.Printf("  Last poll: pending\n")
	} else {
		fmt.Printf("  Last poll: %s (%d polls, revision %d)\n",
			st.LastPollAt.Local().Format(time.RFC3339), st.PollCount, st.Fingerprint)
	}
	sum := st.Summary
	fmt.Printf("  Reference month: %s\n", sum.Reference)
	fmt.Printf("  Predictions: %d\n", sum.Predictions)
	fmt.Printf("  Alerts: %d (%d unread)\n", sum.Alerts, sum.UnreadAlerts)
	fmt.Printf("  Recommendations: %d\n", sum.Recommendations)
	score := fmt.Sprintf("%s %s", cli.FormatScore(sum.Score), sum.Band)
	if sum.FallbackScore {
		score += " (fallback)"
	}
	fmt.Printf("  Score: %s\n", score)
	fmt.Printf("  Events: %d buffered, %d subscribers\n", st.EventCount, st.SubscriberCount)
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}
	return nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	files := resolveDaemonFiles()
	pid, err := files.readPID()
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	deadline := time.Now().Add(8 * time.Second)
	for time.Now().Before(deadline) {
		if !processAlive(pid) {
			files.release()
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
		time.Sleep(150 * time.Millisecond)
	}
	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
