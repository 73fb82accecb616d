package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/lunarbay/rollcall/pkg/config"
	"github.com/lunarbay/rollcall/pkg/types"
)

type fakePage struct {
	shot      []byte
	shotErr   error
	source    string
	sourceErr error
	url       string
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	return p.shot, p.shotErr
}

func (p *fakePage) PageSource(context.Context) (string, error) {
	return p.source, p.sourceErr
}

func (p *fakePage) CurrentURL() string {
	return p.url
}

func newTestRecorder(t *testing.T, page *fakePage, masker *config.Masker) *Recorder {
	t.Helper()
	rec, err := NewRecorder(Options{
		Dir:    t.TempDir(),
		Reader: page,
		Masker: masker,
	})
	require.NoError(t, err)
	return rec
}

func TestNewRecorderCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "evidence")

	_, err := NewRecorder(Options{Dir: dir, Reader: &fakePage{}})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCaptureFailureWritesEvidence(t *testing.T) {
	cfg := &config.Config{}
	cfg.Site.Password = "hunter2hunter2"

	page := &fakePage{
		shot: []byte("fake png"),
		source: `<html><head><title>Member Login</title></head>` +
			`<body><div id="messagetext">wrong password hunter2hunter2</div></body></html>`,
		url: "https://bbs.example.com/member.php?mod=logging",
	}
	rec := newTestRecorder(t, page, config.NewMasker(cfg))

	path := rec.CaptureFailure(context.Background(), "login")

	require.NotEmpty(t, path)
	assert.Equal(t, ".png", filepath.Ext(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "login_"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake png"), data)

	refs := rec.Artifacts()
	assert.Equal(t, path, refs.Screenshot)
	require.NotEmpty(t, refs.HTMLDump)

	dump, err := os.ReadFile(refs.HTMLDump)
	require.NoError(t, err)
	text := string(dump)
	assert.True(t, strings.HasPrefix(text, "<!-- step: login url: https://bbs.example.com/member.php?mod=logging title: Member Login"))
	assert.Contains(t, text, "wrong password")
	// The snapshot is redacted before it touches disk.
	assert.NotContains(t, text, "hunter2hunter2")
	assert.Contains(t, text, config.Mask("hunter2hunter2"))
}

func TestCaptureFailureFallsBackToSnapshot(t *testing.T) {
	page := &fakePage{
		shotErr: errors.New("page gone"),
		source:  "<html><body><p>maintenance</p></body></html>",
		url:     "https://bbs.example.com/",
	}
	rec := newTestRecorder(t, page, nil)

	path := rec.CaptureFailure(context.Background(), "checkin")

	require.NotEmpty(t, path)
	assert.Equal(t, ".html", filepath.Ext(path))

	refs := rec.Artifacts()
	assert.Empty(t, refs.Screenshot)
	assert.Equal(t, path, refs.HTMLDump)
}

func TestCaptureFailureWithDeadPage(t *testing.T) {
	page := &fakePage{
		shotErr:   errors.New("target closed"),
		sourceErr: errors.New("target closed"),
	}
	rec := newTestRecorder(t, page, nil)

	assert.Empty(t, rec.CaptureFailure(context.Background(), "login"))
	refs := rec.Artifacts()
	assert.Empty(t, refs.Screenshot)
	assert.Empty(t, refs.HTMLDump)
}

func TestCaptureSuccessScreenshotOnly(t *testing.T) {
	page := &fakePage{
		shot:   []byte("fake png"),
		source: "<html><body>signed</body></html>",
	}
	rec := newTestRecorder(t, page, nil)

	path := rec.CaptureSuccess(context.Background(), "checkin")

	require.NotEmpty(t, path)
	assert.Equal(t, ".png", filepath.Ext(path))
	assert.Empty(t, rec.Artifacts().HTMLDump)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestArtifactsCarriesLogPath(t *testing.T) {
	rec, err := NewRecorder(Options{
		Dir:     t.TempDir(),
		Reader:  &fakePage{},
		LogPath: "logs/run.log",
	})
	require.NoError(t, err)

	assert.Equal(t, "logs/run.log", rec.Artifacts().LogFile)
}

func TestWriteRunRecord(t *testing.T) {
	rec := newTestRecorder(t, &fakePage{}, nil)

	started := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)
	summary := types.ExecutionSummary{
		RunID:   "run-1",
		Account: "walker",
		Overall: types.RunSuccess,
		Steps: []types.StepResult{
			{Step: "checkin", Status: types.StepSuccess, Attempts: 1},
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}

	path, err := rec.WriteRunRecord(summary)
	require.NoError(t, err)
	assert.Equal(t, "run_20260309_080000.yaml", filepath.Base(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded types.ExecutionSummary
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, "walker", decoded.Account)
	assert.Equal(t, types.RunSuccess, decoded.Overall)
	require.Len(t, decoded.Steps, 1)
	assert.Equal(t, "checkin", decoded.Steps[0].Step)
	assert.True(t, decoded.StartedAt.Equal(started))
}
