package switcher

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"github.com/corona10/goimagehash"

	"github.com/GriffinCanCode/soundswitch/internal/gamestate"
	"github.com/GriffinCanCode/soundswitch/internal/history"
	"github.com/GriffinCanCode/soundswitch/internal/imaging"
	"github.com/GriffinCanCode/soundswitch/internal/mixer"
	"github.com/GriffinCanCode/soundswitch/internal/ocr"
	"github.com/GriffinCanCode/soundswitch/internal/resilience"
	"github.com/GriffinCanCode/soundswitch/internal/rules"
	"github.com/GriffinCanCode/soundswitch/internal/screen"
	"github.com/GriffinCanCode/soundswitch/internal/syncx"
	"github.com/GriffinCanCode/soundswitch/internal/trace"
)

// Applier sets volumes for a list of targets.
type Applier interface {
	Apply(ctx context.Context, targets []rules.Target) (mixer.Result, error)
	Stats() resilience.Stats
}

// Options configures a Pipeline.
type Options struct {
	Interval         time.Duration
	Imaging          imaging.Options
	HashSkipDistance int // <0 disables pHash skipping
	StableFrames     int
	Cooldown         time.Duration
}

// Status is a point-in-time view of the pipeline.
type Status struct {
	Running    bool             `json:"running"`
	Paused     bool             `json:"paused"`
	Frames     uint64           `json:"frames"`
	OCRRuns    uint64           `json:"ocr_runs"`
	OCRSkips   uint64           `json:"ocr_skips"`
	Errors     uint64           `json:"errors"`
	LastText   string           `json:"last_text"`
	Detected   gamestate.State  `json:"detected"`
	Applied    gamestate.State  `json:"applied"`
	LastSwitch time.Time        `json:"last_switch,omitzero"`
	LastResult mixer.Result     `json:"last_result"`
	LastError  string           `json:"last_error,omitempty"`
	Audio      resilience.Stats `json:"audio"`
}

// Serving reports whether the loop is running with the audio breaker closed.
// A half-open breaker is still on trial and does not count.
func (s Status) Serving() bool {
	return s.Running && s.Audio.State == resilience.Closed
}

// Pipeline polls the capture region and switches volumes when the screen
// settles on a new game state.
type Pipeline struct {
	capturer screen.Capturer
	engine   ocr.Engine
	mixer    Applier
	rules    rules.Table
	dumper   *imaging.Dumper
	history  *history.Store
	opts     Options

	debouncer *Debouncer
	status    *syncx.RWGuard[Status]
	frames    atomic.Uint64
	now       func() time.Time

	// Owned by the loop goroutine.
	lastHash *goimagehash.ImageHash
	lastText string
	hasText  bool
}

// NewPipeline wires the stages together. dumper may be nil.
func NewPipeline(c screen.Capturer, e ocr.Engine, m Applier, table rules.Table, dumper *imaging.Dumper, opts Options) *Pipeline {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Pipeline{
		capturer:  c,
		engine:    e,
		mixer:     m,
		rules:     table,
		dumper:    dumper,
		history:   history.NewStore(HistorySize, HistoryEventBuffer),
		opts:      opts,
		debouncer: NewDebouncer(opts.StableFrames, opts.Cooldown),
		status:    syncx.NewGuard(Status{}),
		now:       time.Now,
	}
}

// Run steps the pipeline every Interval until ctx is done.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.status.Write(func(s *Status) { s.Running = true })
	defer p.status.Write(func(s *Status) { s.Running = false })

	trace.Logger(ctx).Info("switcher started", "interval", p.opts.Interval, "stable_frames", p.opts.StableFrames)
	for {
		select {
		case <-ctx.Done():
			trace.Logger(ctx).Info("switcher stopped")
			return nil
		case <-ticker.C:
			p.Step(ctx)
		}
	}
}

// Step runs one iteration. Failures are logged and counted; the next
// iteration starts fresh.
func (p *Pipeline) Step(ctx context.Context) {
	ctx, span := trace.StartSpan(ctx, "switcher.step")
	log := trace.Logger(ctx)
	defer func() {
		span.End()
		log.Debug("step done", "span", span)
	}()

	n := p.frames.Add(1)
	span.SetAttr("frame", n)
	p.status.Write(func(s *Status) { s.Frames = n })

	img, changed, err := p.capturer.Capture()
	if err != nil {
		p.fail(ctx, "capture", err)
		return
	}
	if p.dumper.Enabled() {
		if _, err := p.dumper.Raw(n, img); err != nil {
			log.Warn("raw dump failed", "error", err)
		}
	}

	text, err := p.read(ctx, n, img, changed)
	if err != nil {
		p.fail(ctx, "ocr", err)
		return
	}

	state := gamestate.Classify(text)
	span.SetAttr("state", state.String())
	p.status.Write(func(s *Status) {
		s.LastText = truncate(text, MaxStatusText)
		s.Detected = state
	})

	next, ok := p.debouncer.Observe(state, p.now())
	if !ok {
		return
	}
	p.switchTo(ctx, next, text)
}

// read returns the text for this frame, reusing the previous OCR result when
// the frame is unchanged or perceptually close to the last OCR'd frame.
func (p *Pipeline) read(ctx context.Context, n uint64, img *image.RGBA, changed bool) (string, error) {
	if p.hasText && !changed {
		p.status.Write(func(s *Status) { s.OCRSkips++ })
		return p.lastText, nil
	}

	hash := p.perceptionHash(img)
	if p.hasText && p.similar(ctx, hash) {
		p.status.Write(func(s *Status) { s.OCRSkips++ })
		return p.lastText, nil
	}

	processed := imaging.Process(img, p.opts.Imaging)
	if p.dumper.Enabled() {
		if _, err := p.dumper.Processed(n, processed); err != nil {
			trace.Logger(ctx).Warn("processed dump failed", "error", err)
		}
	}

	data, err := imaging.EncodePNG(processed)
	if err != nil {
		p.forgetText()
		return "", err
	}
	text, err := p.engine.ExtractText(ctx, data)
	if err != nil {
		p.forgetText()
		return "", err
	}

	p.lastText, p.hasText = text, true
	p.lastHash = hash
	p.status.Write(func(s *Status) { s.OCRRuns++ })
	return text, nil
}

// forgetText drops the cached OCR result. The capturer already recorded the
// failed frame as seen, so the next unchanged frame must be read again.
func (p *Pipeline) forgetText() {
	p.lastText, p.hasText = "", false
	p.lastHash = nil
}

func (p *Pipeline) perceptionHash(img image.Image) *goimagehash.ImageHash {
	if p.opts.HashSkipDistance < 0 {
		return nil
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil
	}
	return hash
}

// similar reports whether hash is within HashSkipDistance of the last OCR'd frame.
func (p *Pipeline) similar(ctx context.Context, hash *goimagehash.ImageHash) bool {
	if hash == nil || p.lastHash == nil {
		return false
	}
	dist, err := p.lastHash.Distance(hash)
	if err != nil || dist > p.opts.HashSkipDistance {
		return false
	}
	trace.Logger(ctx).Debug("skipping OCR due to similar frame", "distance", dist)
	return true
}

func (p *Pipeline) switchTo(ctx context.Context, next gamestate.State, text string) {
	log := trace.Logger(ctx)
	prev := p.debouncer.Applied()

	res, err := p.mixer.Apply(ctx, p.rules.Lookup(next))
	if err != nil {
		p.fail(ctx, "apply", err)
		return
	}

	now := p.now()
	p.debouncer.Commit(next, now)
	p.status.Write(func(s *Status) {
		s.Applied = next
		s.LastSwitch = now
		s.LastResult = res
	})
	p.history.Add(history.Entry{Timestamp: now, From: prev, To: next, Text: truncate(text, MaxStatusText), Result: res})

	log.Info("volume switched", "from", prev, "to", next, "changed", res.Changed, "unchanged", res.Unchanged)
	if len(res.Missing) > 0 {
		log.Debug("no running session for target", "processes", res.Missing)
	}
}

func (p *Pipeline) fail(ctx context.Context, stage string, err error) {
	trace.Logger(ctx).Warn("switcher step failed", "stage", stage, "error", err)
	p.status.Write(func(s *Status) {
		s.Errors++
		s.LastError = stage + ": " + err.Error()
	})
}

// Status returns a snapshot of the pipeline state.
func (p *Pipeline) Status() Status {
	st := syncx.View(p.status, func(s Status) Status {
		s.LastResult.Missing = append([]string(nil), s.LastResult.Missing...)
		return s
	})
	st.Paused = !p.debouncer.IsEnabled()
	st.Audio = p.mixer.Stats()
	return st
}

// History returns the applied-transition store.
func (p *Pipeline) History() *history.Store { return p.history }

// SetPaused stops or resumes volume switching. Capture and OCR keep running.
func (p *Pipeline) SetPaused(paused bool) {
	p.debouncer.SetEnabled(!paused)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
