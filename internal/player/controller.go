package player

import (
	"log"
	"time"

	"vigil/internal/bus"
	"vigil/internal/media"
	"vigil/internal/sched"
)

// DefaultAutoPlayDelay lets the host element settle before autoplay starts.
const DefaultAutoPlayDelay = 500 * time.Millisecond

// Stage is the coarse position of a Controller in its session.
type Stage int

const (
	StageIdle Stage = iota
	StageIntro
	StageMain
	StageEnded
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageIntro:
		return "intro"
	case StageMain:
		return "main"
	case StageEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Config is what a Controller reads from its host element's attributes.
type Config struct {
	SessionID string
	IntroSrc  string
	MainSrc   string
	AutoPlay  bool
}

// InitialPhase is intro when an intro source exists, main otherwise.
func (c Config) InitialPhase() media.Phase {
	if c.IntroSrc != "" {
		return media.PhaseIntro
	}
	return media.PhaseMain
}

// Source returns the URL for phase p.
func (c Config) Source(p media.Phase) string {
	switch p {
	case media.PhaseIntro:
		return c.IntroSrc
	case media.PhaseMain:
		return c.MainSrc
	default:
		return ""
	}
}

// Delta describes how a Config differs from the previously applied one.
type Delta struct {
	First           bool
	SessionChanged  bool
	IntroChanged    bool
	MainChanged     bool
	AutoPlayChanged bool
}

// Diff compares two configs. first marks the initial bind.
func Diff(prev, next Config, first bool) Delta {
	return Delta{
		First:           first,
		SessionChanged:  !first && prev.SessionID != next.SessionID,
		IntroChanged:    prev.IntroSrc != next.IntroSrc,
		MainChanged:     prev.MainSrc != next.MainSrc,
		AutoPlayChanged: prev.AutoPlay != next.AutoPlay,
	}
}

// Empty reports whether nothing changed.
func (d Delta) Empty() bool {
	return d == Delta{}
}

// Options wires a controller to its page.
type Options struct {
	Bus           *bus.Bus
	Scheduler     sched.Scheduler
	AutoPlayDelay time.Duration

	// OnState is called whenever the visual play/pause state changes.
	OnState func(media.State)
	// OnEnded is called once when the session reaches its end.
	OnEnded func()
}

func (o *Options) defaults() {
	if o.Bus == nil {
		o.Bus = bus.New()
	}
	if o.AutoPlayDelay <= 0 {
		o.AutoPlayDelay = DefaultAutoPlayDelay
	}
}

// Controller plays an optional intro followed by main content.
// Without an intro source it is a single-phase player.
type Controller struct {
	opts  Options
	media Media

	cfg       Config
	bound     bool
	session   media.Session
	stage     Stage
	state     media.State
	autoTask  sched.Task
	endedSent bool
	closed    bool
}

// NewController creates a controller. m may be nil until SetMedia is called.
func NewController(m Media, opts Options) *Controller {
	opts.defaults()
	return &Controller{opts: opts, media: m}
}

// Apply binds or rebinds the controller to cfg and returns what changed.
func (c *Controller) Apply(cfg Config) Delta {
	d := Diff(c.cfg, cfg, !c.bound)
	if c.closed {
		return d
	}
	c.cfg = cfg
	c.bound = true
	c.session.AutoPlay = cfg.AutoPlay

	switch {
	case d.First || d.SessionChanged:
		c.reset()
	case c.stage == StageIntro && cfg.IntroSrc == "":
		c.enterPhase(media.PhaseMain)
	case c.stage == StageIdle:
		c.enterPhase(cfg.InitialPhase())
	}

	c.syncSource()
	c.maybeAutoPlay()
	return d
}

// reset returns to the first phase of a new session.
func (c *Controller) reset() {
	c.cancelAutoPlay()
	c.session.HasAutoPlayedOnce = false
	c.endedSent = false
	if c.media != nil && c.session.ActiveSourceURL != "" {
		c.media.Pause()
		c.media.Seek(0)
	}
	c.enterPhase(c.cfg.InitialPhase())
}

// enterPhase announces p before any source swap so listeners reset first.
func (c *Controller) enterPhase(p media.Phase) {
	c.session.Phase = p
	switch p {
	case media.PhaseIntro:
		c.stage = StageIntro
	case media.PhaseMain:
		c.stage = StageMain
	default:
		c.stage = StageIdle
	}
	c.opts.Bus.PublishPhase(p)
}

// syncSource loads the active phase's URL only if it differs from the loaded one.
func (c *Controller) syncSource() {
	if c.media == nil {
		return
	}
	src := c.cfg.Source(c.session.Phase)
	if src == c.session.ActiveSourceURL {
		return
	}
	c.media.Pause()
	if err := c.media.Load(src); err != nil {
		log.Printf("player: failed to load %s: %v", src, err)
		c.setState(media.Error)
	}
	c.session.ActiveSourceURL = src
}

func (c *Controller) maybeAutoPlay() {
	if !c.cfg.AutoPlay || c.session.HasAutoPlayedOnce || c.session.ActiveSourceURL == "" {
		return
	}
	if c.opts.Scheduler == nil {
		return
	}
	c.session.HasAutoPlayedOnce = true
	c.autoTask = c.opts.Scheduler.AfterFunc(c.opts.AutoPlayDelay, func() {
		c.autoTask = nil
		c.Play()
	})
}

func (c *Controller) cancelAutoPlay() {
	if c.autoTask != nil {
		c.autoTask.Cancel()
		c.autoTask = nil
	}
}

// SetMedia swaps the bound media element, releasing the previous one.
func (c *Controller) SetMedia(m Media) {
	if m == c.media {
		return
	}
	release(c.media)
	c.media = m
	c.session.ActiveSourceURL = ""
	if c.bound && !c.closed {
		c.syncSource()
	}
}

// Play starts the active phase. Failures are logged and leave the paused state showing.
func (c *Controller) Play() {
	if c.closed || c.media == nil {
		return
	}
	switch c.stage {
	case StageIdle:
		c.enterPhase(c.cfg.InitialPhase())
		c.syncSource()
	case StageEnded:
		c.endedSent = false
		c.enterPhase(c.cfg.InitialPhase())
		c.syncSource()
		c.media.Seek(0)
	}
	c.start()
}

func (c *Controller) start() {
	if c.session.ActiveSourceURL == "" {
		log.Printf("player: nothing to play in phase %q", c.session.Phase)
		c.setState(media.Paused)
		return
	}
	if err := c.media.Play(); err != nil {
		log.Printf("player: failed to play %s: %v", c.session.ActiveSourceURL, err)
		c.setState(media.Paused)
	}
}

// Pause stops playback. Pausing a paused controller does nothing.
func (c *Controller) Pause() {
	if c.closed || c.media == nil || c.media.Paused() {
		return
	}
	c.media.Pause()
}

// Toggle plays when paused and pauses when playing.
func (c *Controller) Toggle() {
	if c.state == media.Playing {
		c.Pause()
		return
	}
	c.Play()
}

// HandleEvent reacts to a low-level media event.
func (c *Controller) HandleEvent(ev Event, err error) {
	if c.closed {
		return
	}
	switch ev {
	case EventPlay:
		c.setState(media.Playing)
		c.opts.Bus.PublishState(media.Playing, c.session.Phase)
	case EventPause:
		if c.stage == StageEnded {
			return
		}
		c.setState(media.Paused)
		c.opts.Bus.PublishState(media.Paused, c.session.Phase)
	case EventEnded:
		c.handleEnded()
	case EventError:
		log.Printf("player: audio error: %v", err)
		c.setState(media.Error)
		c.opts.Bus.PublishState(media.Error, c.session.Phase)
	}
}

func (c *Controller) handleEnded() {
	if c.session.Phase == media.PhaseIntro && c.cfg.MainSrc != "" {
		c.enterPhase(media.PhaseMain)
		c.syncSource()
		c.start()
		return
	}

	c.stage = StageEnded
	c.setState(media.Ended)
	c.opts.Bus.PublishState(media.Ended, c.session.Phase)
	if !c.endedSent {
		c.endedSent = true
		if c.opts.OnEnded != nil {
			c.opts.OnEnded()
		}
	}
}

func (c *Controller) setState(s media.State) {
	c.state = s
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

// Session returns a copy of the session state.
func (c *Controller) Session() media.Session { return c.session }

func (c *Controller) Stage() Stage { return c.stage }

// State returns the last visual state.
func (c *Controller) State() media.State { return c.state }

// Media returns the bound media element.
func (c *Controller) Media() Media { return c.media }

// Close cancels pending autoplay and releases the media source.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.cancelAutoPlay()
	release(c.media)
	c.session.ActiveSourceURL = ""
}
