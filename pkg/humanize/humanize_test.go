package humanize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunarbay/rollcall/pkg/config"
	"github.com/lunarbay/rollcall/pkg/types"
)

// fakeForum scripts the forum surface and records what the humanizer
// asked of it.
type fakeForum struct {
	threads       []types.Thread
	moved         bool
	openErr       error
	openPageErr   error
	nextErr       error
	browseErr     error
	listErr       error
	openThreadErr error
	replyErrs     []error

	openCalls     int
	openPages     []int
	nextCalls     int
	browseCalls   int
	openedThreads []string
	replies       []string
}

func (f *fakeForum) OpenSection(context.Context) error {
	f.openCalls++
	return f.openErr
}

func (f *fakeForum) OpenSectionPage(_ context.Context, page int) error {
	f.openPages = append(f.openPages, page)
	return f.openPageErr
}

func (f *fakeForum) NextPage(context.Context) (bool, error) {
	f.nextCalls++
	return f.moved, f.nextErr
}

func (f *fakeForum) BrowsePage(context.Context) error {
	f.browseCalls++
	return f.browseErr
}

func (f *fakeForum) ListThreads(context.Context) ([]types.Thread, error) {
	return f.threads, f.listErr
}

func (f *fakeForum) OpenThread(_ context.Context, thread types.Thread) error {
	f.openedThreads = append(f.openedThreads, thread.URL)
	return f.openThreadErr
}

func (f *fakeForum) Reply(_ context.Context, message string) error {
	f.replies = append(f.replies, message)
	if n := len(f.replies); n <= len(f.replyErrs) {
		return f.replyErrs[n-1]
	}
	return nil
}

// fakePacer counts interval waits without sleeping.
type fakePacer struct {
	calls int
	err   error
}

func (p *fakePacer) WaitReplyInterval(context.Context) error {
	p.calls++
	return p.err
}

func candidates(n int) []types.Thread {
	threads := make([]types.Thread, 0, n)
	for i := 0; i < n; i++ {
		threads = append(threads, types.Thread{
			Title: "话题讨论串第几号",
			URL:   "https://bbs.example.com/thread-" + string(rune('a'+i)) + "-1-1.html",
		})
	}
	return threads
}

func newTestHumanizer(forum Forum, cfg config.HumanizeConfig, pace Pacer) *Humanizer {
	return New(forum, Options{Config: cfg, Policy: pace, Logger: nil, Seed: 7})
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.HumanizeConfig
		want bool
	}{
		{name: "everything off", cfg: config.HumanizeConfig{}, want: false},
		{
			name: "browsing on but zero pages",
			cfg:  config.HumanizeConfig{BrowsingEnabled: true},
			want: false,
		},
		{
			name: "browsing on",
			cfg:  config.HumanizeConfig{BrowsingEnabled: true, BrowsePageCount: 2},
			want: true,
		},
		{
			name: "replies on but zero count",
			cfg:  config.HumanizeConfig{ReplyEnabled: true},
			want: false,
		},
		{
			name: "replies on",
			cfg:  config.HumanizeConfig{ReplyEnabled: true, ReplyCount: 1},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHumanizer(&fakeForum{}, tt.cfg, &fakePacer{})
			assert.Equal(t, tt.want, h.Enabled())
		})
	}
}

func TestRunWithEverythingOff(t *testing.T) {
	forum := &fakeForum{}
	h := newTestHumanizer(forum, config.HumanizeConfig{}, &fakePacer{})

	results := h.Run(context.Background())

	assert.Empty(t, results)
	assert.Zero(t, forum.openCalls)
}

func TestBrowseWalksConfiguredPages(t *testing.T) {
	forum := &fakeForum{moved: true}
	h := newTestHumanizer(forum, config.HumanizeConfig{
		BrowsingEnabled: true,
		BrowsePageCount: 3,
	}, &fakePacer{})

	results := h.Run(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, types.StepBrowse, results[0].Step)
	assert.Equal(t, types.StepSuccess, results[0].Status)
	assert.Equal(t, 1, results[0].Attempts)

	assert.Equal(t, 1, forum.openCalls)
	assert.Equal(t, 3, forum.browseCalls)
	// No pagination after the last page.
	assert.Equal(t, 2, forum.nextCalls)
}

func TestBrowseEndsEarlyWithoutMorePages(t *testing.T) {
	forum := &fakeForum{moved: false}
	h := newTestHumanizer(forum, config.HumanizeConfig{
		BrowsingEnabled: true,
		BrowsePageCount: 3,
	}, &fakePacer{})

	results := h.Run(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, types.StepSuccess, results[0].Status, "a short section is not a failure")
	assert.Equal(t, 1, forum.browseCalls)
	assert.Equal(t, 1, forum.nextCalls)
}

func TestBrowseFailureStaysInItsResult(t *testing.T) {
	forum := &fakeForum{openErr: errors.New("section unreachable")}
	h := newTestHumanizer(forum, config.HumanizeConfig{
		BrowsingEnabled: true,
		BrowsePageCount: 2,
	}, &fakePacer{})

	results := h.Run(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, types.StepFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "humanization error on browse")
	assert.Contains(t, results[0].Error, "section unreachable")
}

func TestReplyRunPostsConfiguredCount(t *testing.T) {
	forum := &fakeForum{moved: true, threads: candidates(5)}
	pace := &fakePacer{}
	cfg := config.HumanizeConfig{
		ReplyEnabled:  true,
		ReplyCount:    2,
		ReplyMessages: []string{"谢谢分享", "学习了"},
	}
	h := newTestHumanizer(forum, cfg, pace)

	results := h.Run(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, types.StepReply, results[0].Step)
	assert.Equal(t, types.StepReply+"-2", results[1].Step)
	assert.Equal(t, types.StepSuccess, results[0].Status)
	assert.Equal(t, types.StepSuccess, results[1].Status)

	require.Len(t, forum.replies, 2)
	for _, msg := range forum.replies {
		assert.Contains(t, cfg.ReplyMessages, msg)
	}
	assert.Equal(t, 1, pace.calls, "one interval wait between two replies")
}

func TestReplyTargetsAreDistinct(t *testing.T) {
	forum := &fakeForum{moved: true, threads: candidates(3)}
	h := newTestHumanizer(forum, config.HumanizeConfig{
		ReplyEnabled:  true,
		ReplyCount:    3,
		ReplyMessages: []string{"顶一下"},
	}, &fakePacer{})

	h.Run(context.Background())

	require.Len(t, forum.openedThreads, 3)
	seen := make(map[string]bool)
	for _, u := range forum.openedThreads {
		assert.False(t, seen[u], "thread %s replied to twice", u)
		seen[u] = true
	}
}

func TestReplyFallsBackToDirectSecondPage(t *testing.T) {
	forum := &fakeForum{moved: false, threads: candidates(2)}
	h := newTestHumanizer(forum, config.HumanizeConfig{
		ReplyEnabled:  true,
		ReplyCount:    1,
		ReplyMessages: []string{"谢谢分享"},
	}, &fakePacer{})

	results := h.Run(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, types.StepSuccess, results[0].Status)
	assert.Equal(t, []int{2}, forum.openPages, "stuck paginator falls back to the direct page-2 URL")
}

func TestReplyWithoutCandidates(t *testing.T) {
	forum := &fakeForum{moved: true}
	h := newTestHumanizer(forum, config.HumanizeConfig{
		ReplyEnabled:  true,
		ReplyCount:    2,
		ReplyMessages: []string{"谢谢分享"},
	}, &fakePacer{})

	results := h.Run(context.Background())

	require.Len(t, results, 1)
	assert.Equal(t, types.StepReply, results[0].Step)
	assert.Equal(t, types.StepFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "no reply candidates found")
	assert.Empty(t, forum.replies)
}

func TestReplyFailureDoesNotStopTheNext(t *testing.T) {
	forum := &fakeForum{
		moved:     true,
		threads:   candidates(2),
		replyErrs: []error{errors.New("quick reply rejected")},
	}
	h := newTestHumanizer(forum, config.HumanizeConfig{
		ReplyEnabled:  true,
		ReplyCount:    2,
		ReplyMessages: []string{"谢谢分享"},
	}, &fakePacer{})

	results := h.Run(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, types.StepFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "quick reply rejected")
	assert.Equal(t, types.StepSuccess, results[1].Status)
	assert.Len(t, forum.replies, 2)
}

func TestReplyIntervalCancellationStopsRemaining(t *testing.T) {
	forum := &fakeForum{moved: true, threads: candidates(3)}
	pace := &fakePacer{err: context.Canceled}
	h := newTestHumanizer(forum, config.HumanizeConfig{
		ReplyEnabled:  true,
		ReplyCount:    3,
		ReplyMessages: []string{"谢谢分享"},
	}, pace)

	results := h.Run(context.Background())

	assert.Len(t, results, 1, "remaining replies are dropped once the interval wait aborts")
	assert.Len(t, forum.replies, 1)
}

func TestRunBrowsesBeforeReplying(t *testing.T) {
	forum := &fakeForum{moved: true, threads: candidates(2)}
	h := newTestHumanizer(forum, config.HumanizeConfig{
		BrowsingEnabled: true,
		BrowsePageCount: 1,
		ReplyEnabled:    true,
		ReplyCount:      1,
		ReplyMessages:   []string{"谢谢分享"},
	}, &fakePacer{})

	results := h.Run(context.Background())

	require.Len(t, results, 2)
	assert.Equal(t, types.StepBrowse, results[0].Step)
	assert.Equal(t, types.StepReply, results[1].Step)
}
