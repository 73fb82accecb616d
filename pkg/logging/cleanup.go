package logging

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gobwas/glob"
)

// logFilePattern matches run log files and nothing else in the log
// directory, so unrelated files a scheduler drops there are untouched.
var logFilePattern = glob.MustCompile(filePrefix + "*" + fileSuffix)

// cleanupOldLogs removes run logs beyond the keep budget. File names
// embed the start timestamp, so lexical order is chronological order.
// The freshly opened file sorts last and is always kept.
func cleanupOldLogs(l *Logger, dir string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.Warn("cannot scan log directory for cleanup")
		return
	}

	var runLogs []string
	for _, entry := range entries {
		if entry.IsDir() || !logFilePattern.Match(entry.Name()) {
			continue
		}
		runLogs = append(runLogs, entry.Name())
	}
	if len(runLogs) <= keep {
		return
	}

	sort.Strings(runLogs)
	for _, name := range runLogs[:len(runLogs)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			l.WithFields(map[string]any{"file": name}).Warn("cannot remove old run log")
		}
	}
}
