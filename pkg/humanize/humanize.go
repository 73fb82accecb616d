// Package humanize runs the cosmetic browsing and reply activities
// around a check-in. Everything here is best-effort: each action's
// failure is recorded as its own step result and never interrupts the
// remaining actions or the run.
package humanize

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/lunarbay/rollcall/pkg/config"
	rcerrors "github.com/lunarbay/rollcall/pkg/errors"
	"github.com/lunarbay/rollcall/pkg/logging"
	"github.com/lunarbay/rollcall/pkg/types"
)

// Forum is the surface the humanizer drives. forum.Driver satisfies
// it.
type Forum interface {
	OpenSection(ctx context.Context) error
	OpenSectionPage(ctx context.Context, page int) error
	NextPage(ctx context.Context) (bool, error)
	BrowsePage(ctx context.Context) error
	ListThreads(ctx context.Context) ([]types.Thread, error)
	OpenThread(ctx context.Context, thread types.Thread) error
	Reply(ctx context.Context, message string) error
}

// Pacer spaces consecutive replies. timing.Policy satisfies it.
type Pacer interface {
	WaitReplyInterval(ctx context.Context) error
}

// Options configures a Humanizer.
type Options struct {
	Config config.HumanizeConfig
	Policy Pacer
	Logger *logging.Logger

	// Seed fixes the selection randomness; zero seeds from the clock.
	Seed int64
}

// Humanizer sequences the enabled activities for one run.
type Humanizer struct {
	forum Forum
	cfg   config.HumanizeConfig
	pace  Pacer
	log   *logging.Logger
	rng   *rand.Rand
}

// New builds a Humanizer over a forum surface.
func New(forum Forum, opts Options) *Humanizer {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Humanizer{
		forum: forum,
		cfg:   opts.Config,
		pace:  opts.Policy,
		log:   opts.Logger,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Enabled reports whether any humanizing activity is configured on.
func (h *Humanizer) Enabled() bool {
	if h.cfg.BrowsingEnabled && h.cfg.BrowsePageCount > 0 {
		return true
	}
	return h.cfg.ReplyEnabled && h.cfg.ReplyCount > 0
}

// Run executes the enabled activities and returns their step results
// in execution order. It never returns an error; humanizing failures
// stay inside their own results.
func (h *Humanizer) Run(ctx context.Context) []types.StepResult {
	var results []types.StepResult

	if h.cfg.BrowsingEnabled && h.cfg.BrowsePageCount > 0 {
		results = append(results, h.browse(ctx))
	}
	if h.cfg.ReplyEnabled && h.cfg.ReplyCount > 0 {
		results = append(results, h.replyRun(ctx)...)
	}
	return results
}

// browse walks the configured number of listing pages as one step.
func (h *Humanizer) browse(ctx context.Context) types.StepResult {
	started := time.Now()
	result := types.StepResult{Step: types.StepBrowse, Status: types.StepSuccess, Attempts: 1}

	err := h.browsePages(ctx)
	result.Duration = time.Since(started)
	if err != nil {
		result.Status = types.StepFailed
		result.Error = rcerrors.NewHumanizationError("browse", err).Error()
		h.log.Error(err, "browsing failed")
	}
	return result
}

func (h *Humanizer) browsePages(ctx context.Context) error {
	pages := h.cfg.BrowsePageCount
	h.log.WithFields(map[string]any{"pages": pages}).Info("browsing the discussion section")

	if err := h.forum.OpenSection(ctx); err != nil {
		return err
	}

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := h.forum.BrowsePage(ctx); err != nil {
			return err
		}
		if page == pages {
			break
		}

		moved, err := h.forum.NextPage(ctx)
		if err != nil {
			return err
		}
		if !moved {
			h.log.Info("no further pages, browsing ends early")
			break
		}
	}
	return nil
}

// replyRun picks distinct reply targets and posts one templated
// message to each, spaced by the reply interval.
func (h *Humanizer) replyRun(ctx context.Context) []types.StepResult {
	targets, failed := h.findTargets(ctx)
	if failed != nil {
		return []types.StepResult{*failed}
	}

	var results []types.StepResult
	for i, thread := range targets {
		results = append(results, h.replyOnce(ctx, i+1, thread))

		if i < len(targets)-1 {
			if err := h.pace.WaitReplyInterval(ctx); err != nil {
				break
			}
		}
	}
	return results
}

// findTargets collects candidates from the second listing page, where
// a reply blends in better than among the pinned first-page threads,
// then picks the configured count without replacement.
func (h *Humanizer) findTargets(ctx context.Context) ([]types.Thread, *types.StepResult) {
	started := time.Now()

	threads, err := h.collectCandidates(ctx)
	if err == nil && len(threads) == 0 {
		err = errors.New("no reply candidates found")
	}
	if err != nil {
		h.log.Error(err, "reply target discovery failed")
		return nil, &types.StepResult{
			Step:     types.StepReply,
			Status:   types.StepFailed,
			Attempts: 1,
			Duration: time.Since(started),
			Error:    rcerrors.NewHumanizationError("find-targets", err).Error(),
		}
	}

	h.rng.Shuffle(len(threads), func(i, j int) {
		threads[i], threads[j] = threads[j], threads[i]
	})
	if len(threads) > h.cfg.ReplyCount {
		threads = threads[:h.cfg.ReplyCount]
	}

	h.log.WithFields(map[string]any{"candidates": len(threads)}).Info("reply targets selected")
	return threads, nil
}

func (h *Humanizer) collectCandidates(ctx context.Context) ([]types.Thread, error) {
	if err := h.forum.OpenSection(ctx); err != nil {
		return nil, err
	}
	if moved, err := h.forum.NextPage(ctx); err != nil || !moved {
		// Paginator missing or stuck; the second page usually still
		// exists.
		if err := h.forum.OpenSectionPage(ctx, 2); err != nil {
			return nil, err
		}
	}
	return h.forum.ListThreads(ctx)
}

// replyOnce visits one thread and posts a message drawn from the
// template set. The step name carries the action index past the
// first.
func (h *Humanizer) replyOnce(ctx context.Context, index int, thread types.Thread) types.StepResult {
	step := types.StepReply
	if index > 1 {
		step = fmt.Sprintf("%s-%d", types.StepReply, index)
	}

	started := time.Now()
	result := types.StepResult{Step: step, Status: types.StepSuccess, Attempts: 1}

	err := h.postReply(ctx, thread)
	result.Duration = time.Since(started)
	if err != nil {
		result.Status = types.StepFailed
		result.Error = rcerrors.NewHumanizationError(step, err).Error()
		h.log.Error(err, "reply failed")
	}
	return result
}

func (h *Humanizer) postReply(ctx context.Context, thread types.Thread) error {
	if err := h.forum.OpenThread(ctx, thread); err != nil {
		return err
	}
	return h.forum.Reply(ctx, h.pickMessage())
}

// pickMessage draws uniformly from the configured template set.
func (h *Humanizer) pickMessage() string {
	msgs := h.cfg.ReplyMessages
	if len(msgs) == 0 {
		return ""
	}
	return msgs[h.rng.Intn(len(msgs))]
}
