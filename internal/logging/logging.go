// Package logging builds the process logger: text on stderr, and the
// systemd journal when running as a service.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"

	"tomgalvin.uk/labelle/internal/config"
)

// Setup installs the logger described by cfg as the slog default.
func Setup(cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	logger := New(os.Stderr, level, IsSystemdService())
	slog.SetDefault(logger)
	return logger, nil
}

// New logs to w, and also to the journal when service is set.
func New(w io.Writer, level slog.Leveler, service bool) *slog.Logger {
	text := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	if !service {
		return slog.New(text)
	}

	journal, err := slogjournal.NewHandler(&slogjournal.Options{
		Level: level,
		ReplaceGroup: func(key string) string {
			return journalKey(key)
		},
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			a.Key = journalKey(a.Key)
			return a
		},
	})
	if err != nil {
		record := slog.NewRecord(time.Now(), slog.LevelWarn, "Couldn't open systemd journal", 0)
		record.Add("error", err)
		_ = text.Handle(context.Background(), record)
		return slog.New(text)
	}
	return slog.New(slogmulti.Fanout(text, journal))
}

// journalKey maps an attribute key to a valid journal field name.
func journalKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(key))
}

func IsSystemdService() bool {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return false
	}
	return underService(string(content))
}

// underService reports whether a /proc/self/cgroup listing places the
// process in a .service unit.
func underService(cgroup string) bool {
	for _, line := range strings.Split(strings.TrimSpace(cgroup), "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) != 3 {
			continue
		}
		if strings.HasSuffix(parts[2], ".service") || strings.HasSuffix(path.Dir(parts[2]), ".service") {
			return true
		}
	}
	return false
}
