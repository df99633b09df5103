package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/hop/cli"
	"github.com/grovetools/hop/errors"
	"github.com/grovetools/hop/logging"
	"github.com/grovetools/hop/pkg/paths"
	"github.com/hpcloud/tail"
	"github.com/spf13/cobra"
)

var (
	logErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Dark: "#FF5D62", Light: "#C34043"})
	logWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Dark: "#FF9E3B", Light: "#A68A64"})
	logInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Dark: "#7FB4CA", Light: "#4F7CAC"})
	logMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Dark: "#727169", Light: "#6C7086"})
)

// NewLogsCmd creates the `logs` command.
func NewLogsCmd() *cobra.Command {
	var (
		follow    bool
		tailLines int
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print or follow hop's log file",
		Long: `Prints the newest hop log file. The file sink is enabled with
extensions.logging.file.enabled in hop.yml.

Examples:
  # Follow the log
  hop logs -f

  # Last 100 lines as JSON Lines
  hop logs --tail 100 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			var logCfg logging.Config
			_ = cfg.UnmarshalExtension("logging", &logCfg)

			file, err := findLogFile(logCfg)
			if err != nil {
				return err
			}
			cli.GetLogger(cmd).WithField("log_file", file).Debug("Reading log file")

			jsonOutput := cli.GetOptions(cmd).JSONOutput
			emit := func(line string) {
				if jsonOutput {
					printLogJSON(cmd.OutOrStdout(), line)
				} else {
					printLogText(cmd.OutOrStdout(), line)
				}
			}

			lines, err := lastLines(file, tailLines)
			if err != nil {
				return err
			}
			for _, line := range lines {
				emit(line)
			}
			if !follow {
				return nil
			}

			t, err := tail.TailFile(file, tail.Config{
				Follow:   true,
				ReOpen:   true,
				Location: &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
				Logger:   stdlog.New(io.Discard, "", 0),
			})
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to follow log file").WithDetail("path", file)
			}
			defer t.Cleanup()

			for {
				select {
				case <-cmd.Context().Done():
					_ = t.Stop()
					return nil
				case line, ok := <-t.Lines:
					if !ok {
						return t.Err()
					}
					if line.Err != nil {
						continue
					}
					emit(line.Text)
				}
			}
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVar(&tailLines, "tail", -1, "Number of lines to show from the end of the log (default: all)")
	return cmd
}

// findLogFile returns the configured log file, or the newest file in the
// log directory.
func findLogFile(cfg logging.Config) (string, error) {
	if path := logging.LogFilePath(cfg); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		if cfg.File.Path != "" {
			return "", errors.New(errors.ErrCodeInvalidInput, "log file does not exist: "+path).WithDetail("path", path)
		}
	}
	return findLatestLogFile(paths.LogDir())
}

// findLatestLogFile finds the most recently modified file in dir,
// preferring files with content.
func findLatestLogFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "could not read log directory").WithDetail("path", dir)
	}

	var latest, latestNonEmpty os.FileInfo
	var latestPath, latestNonEmptyPath string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == nil || info.ModTime().After(latest.ModTime()) {
			latest = info
			latestPath = filepath.Join(dir, entry.Name())
		}
		if info.Size() > 0 && (latestNonEmpty == nil || info.ModTime().After(latestNonEmpty.ModTime())) {
			latestNonEmpty = info
			latestNonEmptyPath = filepath.Join(dir, entry.Name())
		}
	}

	if latestNonEmpty != nil {
		return latestNonEmptyPath, nil
	}
	if latest == nil {
		return "", errors.New(errors.ErrCodeInvalidInput, "no log files found in "+dir).WithDetail("path", dir)
	}
	return latestPath, nil
}

// lastLines returns the last n lines of path, or all of them when n < 0.
func lastLines(path string, n int) ([]string, error) {
	if n == 0 {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "failed to open log file").WithDetail("path", path)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, scanner.Err()
}

// printLogJSON prints a log line as JSON; text lines are wrapped.
func printLogJSON(w io.Writer, line string) {
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		logMap = map[string]interface{}{"raw_line": line}
	}
	data, _ := json.Marshal(logMap)
	fmt.Fprintln(w, string(data))
}

// printLogText pretty-prints JSON log lines; text lines pass through.
func printLogText(w io.Writer, line string) {
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		fmt.Fprintln(w, line)
		return
	}

	ts, _ := logMap["time"].(string)
	level, _ := logMap["level"].(string)
	msg, _ := logMap["msg"].(string)
	component, _ := logMap["component"].(string)

	parsedTime, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		parsedTime, _ = time.Parse(time.RFC3339, ts)
	}

	var levelStyle lipgloss.Style
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = logErrorStyle
	case "warning", "warn":
		levelStyle = logWarnStyle
	case "info":
		levelStyle = logInfoStyle
	default:
		levelStyle = logMutedStyle
	}

	var keys []string
	for k := range logMap {
		if k != "time" && k != "level" && k != "msg" && k != "component" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	fields := make([]string, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%v", logMutedStyle.Render(k), logMap[k]))
	}

	fmt.Fprintf(w, "%s %s [%s] %s %s\n",
		parsedTime.Format("15:04:05"),
		levelStyle.Render(strings.ToUpper(level)),
		logMutedStyle.Render(component),
		msg,
		strings.Join(fields, " "),
	)
}
