// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the log level and destination.
type Options struct {
	Verbose int    // -v count: 1 = debug, 2+ = trace
	Quiet   bool   // errors only; wins over Verbose
	Level   string // configured level used when neither flag is given
	File    string // rotate logs into this file instead of Stderr
	Stderr  io.Writer
}

// Formatter writes one line per entry:
//
//	2024-03-23 12:16:42 INFO inspector.go:122 catalog inspected schemas=[app_public] tables=4
//
// The timestamp and caller are only written when Detailed is set.
type Formatter struct {
	Detailed bool
}

var levelNames = []string{"PANIC", "FATAL", "ERROR", "WARN", "INFO", "DEBUG", "TRACE"}

func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder
	level := "UNKNOWN"
	if int(entry.Level) < len(levelNames) {
		level = levelNames[entry.Level]
	}

	if f.Detailed {
		b.WriteString(entry.Time.Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	b.WriteString(level)
	if f.Detailed && entry.HasCaller() {
		fmt.Fprintf(&b, " %s:%d", filepath.Base(entry.Caller.File), entry.Caller.Line)
	}
	b.WriteByte(' ')
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

// LevelFor maps the -v/-q flags and the configured level to a logrus level.
func LevelFor(verbose int, quiet bool, configured string) (log.Level, error) {
	switch {
	case quiet:
		return log.ErrorLevel, nil
	case verbose >= 2:
		return log.TraceLevel, nil
	case verbose == 1:
		return log.DebugLevel, nil
	case configured == "":
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(configured)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", configured, err)
	}
	return lvl, nil
}

// Init configures the standard logger. The returned closer flushes and
// closes the log file, if any.
func Init(opts Options) (io.Closer, error) {
	lvl, err := LevelFor(opts.Verbose, opts.Quiet, opts.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(lvl)

	if opts.File == "" {
		out := opts.Stderr
		if out == nil {
			out = os.Stderr
		}
		log.SetOutput(out)
		log.SetReportCaller(false)
		log.SetFormatter(&Formatter{})
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
	}
	log.SetOutput(rotator)
	log.SetReportCaller(true)
	log.SetFormatter(&Formatter{Detailed: true})
	log.Debugf("Args: %v", RedactArgs(os.Args))
	return rotator, nil
}

// RedactArgs returns a copy of args with passwords masked: the value after
// --password and the password part of a --db URL.
func RedactArgs(args []string) []string {
	out := append([]string(nil), args...)
	for i := 0; i < len(out); i++ {
		name, value, inline := strings.Cut(out[i], "=")
		switch name {
		case "--password":
			if inline {
				out[i] = name + "=XXX"
			} else if i+1 < len(out) {
				out[i+1] = "XXX"
				i++
			}
		case "--db":
			if inline {
				out[i] = name + "=" + redactURL(value)
			} else if i+1 < len(out) {
				out[i+1] = redactURL(out[i+1])
				i++
			}
		}
	}
	return out
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); !ok {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), "XXX")
	return u.String()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
