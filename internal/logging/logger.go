// Package logging configures the shared logrus logger. Output goes to a
// rotated file so it never lands on the terminal the UI draws on.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the process-wide logger
var Logger = logrus.New()

var (
	once    sync.Once
	initErr error
)

// SystemName tags every entry's event source
const SystemName = "taskies"

// CustomFormatter writes one comma separated line per entry
type CustomFormatter struct {
	SystemName string
}

// Format implements logrus.Formatter
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	t := entry.Time
	fmt.Fprintf(b, "Date: %s, Time: %s, ", t.Format("2006-01-02"), t.Format("15:04:05"))
	fmt.Fprintf(b, "Event Source: %s, ", f.SystemName)
	fmt.Fprintf(b, "Event Type: %s, ", strings.ToUpper(entry.Level.String()))
	fmt.Fprintf(b, "Event ID: %s, ", uuid.New().String())
	fmt.Fprintf(b, "Message: %s", entry.Message)

	if len(entry.Data) > 0 {
		keys := make([]string, 0, len(entry.Data))
		for k := range entry.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(b, ", %s=%v", k, entry.Data[k])
		}
	}
	if entry.HasCaller() {
		fmt.Fprintf(b, ", Location: %s:%d in %s", entry.Caller.File, entry.Caller.Line, entry.Caller.Function)
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Options configures Init
type Options struct {
	File   string // log file; "" uses DefaultPath, "-" logs to stderr
	Level  string // logrus level name; "" means info
	Caller bool   // report the calling function
}

// DefaultPath returns $XDG_STATE_HOME/taskies/taskies.log, falling back to
// ~/.local/state
func DefaultPath() string {
	dir := os.Getenv("XDG_STATE_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(os.TempDir(), "taskies.log")
		}
		dir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(dir, "taskies", "taskies.log")
}

// Init configures Logger once. Later calls return the first call's result.
func Init(o Options) error {
	once.Do(func() {
		initErr = configure(Logger, o)
	})
	return initErr
}

func configure(l *logrus.Logger, o Options) error {
	level := logrus.InfoLevel
	if o.Level != "" {
		lv, err := logrus.ParseLevel(o.Level)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		level = lv
	}

	var out io.Writer = os.Stderr
	target := "stderr"
	if o.File != "-" {
		path := o.File
		if path == "" {
			path = DefaultPath()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		out = &lumberjack.Logger{
			Filename:   path,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		target = path
	}

	l.SetOutput(out)
	l.SetFormatter(&CustomFormatter{SystemName: SystemName})
	l.SetLevel(level)
	l.SetReportCaller(o.Caller)
	l.Infof("Event ID: LOGGER_INITIALIZED, Description: Logger initialized, output to: %s", target)
	return nil
}
