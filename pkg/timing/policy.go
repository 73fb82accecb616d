// Package timing computes the human-like delays that pace every page
// interaction: clicks, scrolls, typing, navigation, reading pauses,
// the post-login settle, the inter-reply interval, and retry backoff.
//
// Delays are sampled from per-class ranges with a low-skewed jitter so
// most waits land near the faster end, the way a practiced user moves.
// A global multiplier scales everything; smart mode additionally
// adapts to the complexity of the last observed page. The inter-reply
// interval enforces a hard floor regardless of configuration.
package timing

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DelayClass names one kind of paced action.
type DelayClass string

const (
	Click      DelayClass = "click"      // Click paces button and link presses.
	Scroll     DelayClass = "scroll"     // Scroll paces viewport movement.
	Typing     DelayClass = "typing"     // Typing paces per-field text entry.
	PageLoad   DelayClass = "page-load"  // PageLoad paces waiting on a fresh document.
	Reading    DelayClass = "reading"    // Reading paces content dwell time.
	Navigation DelayClass = "navigation" // Navigation paces URL changes.
)

// Complexity classifies the last observed page for smart mode.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"  // ComplexitySimple speeds delays up (x0.7).
	ComplexityNormal  Complexity = "normal"  // ComplexityNormal leaves delays unchanged.
	ComplexityComplex Complexity = "complex" // ComplexityComplex slows delays down (x1.4).
	ComplexityHeavy   Complexity = "heavy"   // ComplexityHeavy slows delays down hard (x1.8).
)

// Per-class base ranges in seconds.
var classRanges = map[DelayClass][2]float64{
	Click:      {0.3, 0.8},
	Scroll:     {0.4, 1.2},
	Typing:     {0.1, 0.3},
	PageLoad:   {1.0, 2.5},
	Reading:    {0.8, 2.0},
	Navigation: {0.5, 1.5},
}

const (
	// MinReplyInterval is the hard floor between replies. It bounds
	// the request rate against the target site and is enforced here
	// even when the configured interval slipped past config
	// normalization.
	MinReplyInterval = 15 * time.Second

	// replyJitterSpan widens the configured interval by up to this
	// much per reply.
	replyJitterSpan = 5 * time.Second

	// hardFloor and the ceiling factor bound adaptive delays.
	hardFloor      = 50 * time.Millisecond
	ceilingFactor  = 1.5
	minMultiplier  = 0.1
	maxMultiplier  = 5.0
	backoffBase    = 2 * time.Second
	backoffCeiling = 30 * time.Second
)

// Options configures a Policy.
type Options struct {
	// Multiplier scales every delay, clamped to [0.1, 5.0].
	Multiplier float64

	// Smart enables page-complexity adaptation.
	Smart bool

	// CommentInterval is the configured inter-reply spacing; the
	// MinReplyInterval floor applies on top of it.
	CommentInterval time.Duration

	// WaitAfterLogin is the post-authentication settle delay.
	WaitAfterLogin time.Duration

	// Seed fixes the jitter stream for tests. Zero seeds from the
	// clock.
	Seed int64
}

// Policy produces delay durations and performs context-aware waits.
// Safe for use from a single run goroutine; the internal RNG is
// mutex-guarded so tests may probe concurrently.
type Policy struct {
	multiplier      float64
	smart           bool
	commentInterval time.Duration
	waitAfterLogin  time.Duration

	mu         sync.Mutex
	rng        *rand.Rand
	complexity Complexity
}

// NewPolicy builds a Policy, re-applying the multiplier clamp and
// reply-interval floor so hand-built options cannot bypass them.
func NewPolicy(opts Options) *Policy {
	if opts.Multiplier == 0 {
		opts.Multiplier = 1.0
	}
	if opts.Multiplier < minMultiplier {
		opts.Multiplier = minMultiplier
	}
	if opts.Multiplier > maxMultiplier {
		opts.Multiplier = maxMultiplier
	}
	if opts.CommentInterval < MinReplyInterval {
		opts.CommentInterval = MinReplyInterval
	}
	if opts.WaitAfterLogin < 0 {
		opts.WaitAfterLogin = 0
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Policy{
		multiplier:      opts.Multiplier,
		smart:           opts.Smart,
		commentInterval: opts.CommentInterval,
		waitAfterLogin:  opts.WaitAfterLogin,
		rng:             rand.New(rand.NewSource(seed)),
		complexity:      ComplexityNormal,
	}
}

// Delay samples a duration for the class: jittered within the class
// range, multiplier-scaled, complexity-scaled in smart mode, and
// bounded by the hard floor and the class ceiling.
func (p *Policy) Delay(class DelayClass) time.Duration {
	bounds, ok := classRanges[class]
	if !ok {
		bounds = classRanges[Reading]
	}

	seconds := bounds[0] + p.sampleUnit()*(bounds[1]-bounds[0])
	seconds *= p.multiplier
	if p.smart {
		seconds *= p.complexityFactor()
	}

	d := time.Duration(seconds * float64(time.Second))
	if ceiling := time.Duration(ceilingFactor * bounds[1] * p.multiplier * float64(time.Second)); d > ceiling {
		d = ceiling
	}
	// The floor wins over the ceiling: sub-50ms waits would hammer the
	// site no matter how aggressive the multiplier is.
	if d < hardFloor {
		d = hardFloor
	}
	return d
}

// Wait sleeps for a sampled class delay, returning early with the
// context's error on cancellation.
func (p *Policy) Wait(ctx context.Context, class DelayClass) error {
	return sleep(ctx, p.Delay(class))
}

// SettleAfterLogin performs the configured post-login settle wait.
func (p *Policy) SettleAfterLogin(ctx context.Context) error {
	d := time.Duration(float64(p.waitAfterLogin) * p.multiplier)
	return sleep(ctx, d)
}

// ReplyInterval samples the spacing before the next reply: the
// configured interval plus up to five seconds of jitter, never below
// the hard floor.
func (p *Policy) ReplyInterval() time.Duration {
	d := p.commentInterval + time.Duration(p.sampleUnit()*float64(replyJitterSpan))
	if d < MinReplyInterval {
		d = MinReplyInterval
	}
	return d
}

// WaitReplyInterval sleeps for one sampled reply interval.
func (p *Policy) WaitReplyInterval(ctx context.Context) error {
	return sleep(ctx, p.ReplyInterval())
}

// Backoff returns the delay before retry attempt n (1-based): linear
// growth on a two-second base, multiplier-scaled, jittered a quarter
// either way, capped at thirty seconds.
func (p *Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := float64(backoffBase) * float64(attempt) * p.multiplier
	jitter := 0.75 + 0.5*p.sampleUnit()
	d := time.Duration(base * jitter)
	if d > backoffCeiling {
		d = backoffCeiling
	}
	return d
}

// ObservePage feeds the size of the last fetched page source into the
// smart-mode complexity estimate. Cheap on purpose: byte count tracks
// render weight closely enough for pacing.
func (p *Policy) ObservePage(sourceBytes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case sourceBytes <= 0:
		p.complexity = ComplexityNormal
	case sourceBytes < 50_000:
		p.complexity = ComplexitySimple
	case sourceBytes < 150_000:
		p.complexity = ComplexityNormal
	case sourceBytes < 400_000:
		p.complexity = ComplexityComplex
	default:
		p.complexity = ComplexityHeavy
	}
}

// Complexity returns the current smart-mode estimate.
func (p *Policy) Complexity() Complexity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.complexity
}

func (p *Policy) complexityFactor() float64 {
	switch p.Complexity() {
	case ComplexitySimple:
		return 0.7
	case ComplexityComplex:
		return 1.4
	case ComplexityHeavy:
		return 1.8
	default:
		return 1.0
	}
}

// sampleUnit draws from Beta(2,3) via its order statistic: the second
// smallest of four uniforms. The distribution leans low, so most
// delays sit near the faster end of their range.
func (p *Policy) sampleUnit() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	var u [4]float64
	for i := range u {
		u[i] = p.rng.Float64()
	}
	// Second smallest of four.
	min1, min2 := 1.0, 1.0
	for _, v := range u {
		switch {
		case v < min1:
			min2 = min1
			min1 = v
		case v < min2:
			min2 = v
		}
	}
	return min2
}

// sleep blocks for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
