// Package artifacts persists page evidence for a run: screenshots,
// sanitized HTML snapshots, and the machine-readable run record. All
// captures are best-effort; a failed capture degrades the report, it
// never fails the run.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lunarbay/rollcall/pkg/browser"
	"github.com/lunarbay/rollcall/pkg/config"
	"github.com/lunarbay/rollcall/pkg/logging"
	"github.com/lunarbay/rollcall/pkg/types"
)

// DefaultDir is the artifact directory relative to the working
// directory, next to the log directory.
const DefaultDir = "artifacts"

const timestampLayout = "20060102_150405"

// PageReader is the view of the browser session the recorder needs.
type PageReader interface {
	Screenshot(ctx context.Context) ([]byte, error)
	PageSource(ctx context.Context) (string, error)
	CurrentURL() string
}

// Options configures a Recorder.
type Options struct {
	// Dir is the artifact directory. Empty means DefaultDir.
	Dir string

	// Reader supplies page state. Required.
	Reader PageReader

	// Masker redacts secrets from HTML snapshots before they touch
	// disk. Nil disables redaction.
	Masker *config.Masker

	// LogPath is the run log file attached to notifications.
	LogPath string

	Logger *logging.Logger
}

// Recorder writes evidence files and remembers the most recent ones
// for the outcome notification.
type Recorder struct {
	dir     string
	reader  PageReader
	masker  *config.Masker
	logPath string
	log     *logging.Logger

	lastScreenshot string
	lastDump       string
}

// NewRecorder creates the artifact directory and returns a recorder
// bound to it.
func NewRecorder(opts Options) (*Recorder, error) {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Recorder{
		dir:     opts.Dir,
		reader:  opts.Reader,
		masker:  opts.Masker,
		logPath: opts.LogPath,
		log:     opts.Logger,
	}, nil
}

// CaptureFailure records a screenshot and a sanitized HTML snapshot of
// the page a step failed on. It returns a path to the primary artifact
// or empty when nothing could be captured.
func (r *Recorder) CaptureFailure(ctx context.Context, step string) string {
	shot := r.captureScreenshot(ctx, step)
	dump := r.captureSnapshot(ctx, step)
	if shot != "" {
		return shot
	}
	return dump
}

// CaptureSuccess records a screenshot as proof of a landed check-in.
func (r *Recorder) CaptureSuccess(ctx context.Context, step string) string {
	return r.captureScreenshot(ctx, step)
}

// Artifacts returns references to the files worth attaching to the
// outcome notification. Empty fields mean the artifact was never
// captured.
func (r *Recorder) Artifacts() types.Artifacts {
	return types.Artifacts{
		LogFile:    r.logPath,
		Screenshot: r.lastScreenshot,
		HTMLDump:   r.lastDump,
	}
}

// WriteRunRecord persists the summary as YAML next to the evidence
// files and returns its path.
func (r *Recorder) WriteRunRecord(summary types.ExecutionSummary) (string, error) {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("encode run record: %w", err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("run_%s.yaml", summary.StartedAt.Format(timestampLayout)))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write run record: %w", err)
	}
	return path, nil
}

func (r *Recorder) captureScreenshot(ctx context.Context, step string) string {
	data, err := r.reader.Screenshot(ctx)
	if err != nil {
		r.log.WithFields(map[string]any{"step": step}).Debug("screenshot capture unavailable: " + err.Error())
		return ""
	}
	path := filepath.Join(r.dir, fmt.Sprintf("%s_%s.png", step, time.Now().Format(timestampLayout)))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		r.log.Error(err, "screenshot write failed")
		return ""
	}
	r.lastScreenshot = path
	r.log.WithFields(map[string]any{"step": step, "path": path}).Debug("screenshot saved")
	return path
}

func (r *Recorder) captureSnapshot(ctx context.Context, step string) string {
	source, err := r.reader.PageSource(ctx)
	if err != nil {
		r.log.WithFields(map[string]any{"step": step}).Debug("page source unavailable: " + err.Error())
		return ""
	}
	snap, err := browser.SanitizeHTML(source, 0)
	if err != nil {
		r.log.Error(err, "page snapshot sanitize failed")
		return ""
	}

	body := snap.Body
	if r.masker != nil {
		body = r.masker.Redact(body)
	}
	header := fmt.Sprintf("<!-- step: %s url: %s title: %s truncated: %t -->\n", step, r.reader.CurrentURL(), snap.Title, snap.Truncated)

	path := filepath.Join(r.dir, fmt.Sprintf("%s_%s.html", step, time.Now().Format(timestampLayout)))
	if err := os.WriteFile(path, []byte(header+body), 0o600); err != nil {
		r.log.Error(err, "page snapshot write failed")
		return ""
	}
	r.lastDump = path
	r.log.WithFields(map[string]any{"step": step, "path": path}).Debug("page snapshot saved")
	return path
}
