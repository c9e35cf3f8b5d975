package player

import (
	"log"

	"vigil/internal/media"
	"vigil/internal/sched"
)

// PlaylistConfig is what a PlaylistController reads from its host element.
type PlaylistConfig struct {
	Raw        string // serialized [{url, label}] array
	Trigger    string // a changed value restarts the playlist
	Phase      media.Phase
	StartIndex int // restore hint applied on first bind; negative means none
	AutoPlay   bool
}

// Controls reports which playlist affordances are usable.
type Controls struct {
	Prev   bool
	Next   bool
	Toggle bool
}

// PlaylistController plays an ordered list of segments with manual
// navigation and auto-continuation.
type PlaylistController struct {
	opts  Options
	media Media

	cfg       PlaylistConfig
	bound     bool
	segments  []media.Segment
	index     int
	loaded    string
	playing   bool
	wantPlay  bool // playback requested; media events confirm it later
	autoTask  sched.Task
	endedSent bool
	closed    bool

	// OnSegment is called whenever a different segment becomes current.
	OnSegment func(index int, seg media.Segment)
}

// NewPlaylistController creates a playlist controller. m may be nil until SetMedia.
func NewPlaylistController(m Media, opts Options) *PlaylistController {
	opts.defaults()
	return &PlaylistController{opts: opts, media: m}
}

// Apply binds or rebinds the controller. The playlist is re-parsed only when
// the serialized form changes.
func (c *PlaylistController) Apply(cfg PlaylistConfig) {
	if c.closed {
		return
	}
	if cfg.Phase == media.PhaseNone {
		cfg.Phase = media.PhaseMain
	}
	first := !c.bound
	prev := c.cfg
	c.cfg = cfg
	c.bound = true

	if first || cfg.Raw != prev.Raw {
		c.segments = media.ParsePlaylist(cfg.Raw)
		c.index = c.clamp(c.index)
	}
	if first && cfg.StartIndex >= 0 {
		c.index = c.clamp(cfg.StartIndex)
	}
	if first || cfg.Phase != prev.Phase {
		c.opts.Bus.PublishPhase(cfg.Phase)
	}

	c.load()

	switch {
	case !first && cfg.Trigger != prev.Trigger:
		c.Restart()
	case first && cfg.AutoPlay && c.opts.Scheduler != nil && c.loaded != "":
		c.autoTask = c.opts.Scheduler.AfterFunc(c.opts.AutoPlayDelay, func() {
			c.autoTask = nil
			c.play()
		})
	}
}

func (c *PlaylistController) clamp(i int) int {
	if len(c.segments) == 0 || i < 0 {
		return 0
	}
	if i > len(c.segments)-1 {
		return len(c.segments) - 1
	}
	return i
}

// load points the media at the current segment if its URL differs from the loaded one.
func (c *PlaylistController) load() {
	if c.media == nil {
		return
	}
	if len(c.segments) == 0 {
		if c.loaded != "" {
			release(c.media)
			c.loaded = ""
		}
		return
	}

	seg := c.segments[c.index]
	if seg.URL == c.loaded {
		return
	}
	if err := c.media.Load(seg.URL); err != nil {
		log.Printf("player: failed to load segment %d: %v", c.index, err)
	}
	c.loaded = seg.URL
	if c.OnSegment != nil {
		c.OnSegment(c.index, seg)
	}
}

func (c *PlaylistController) play() {
	if c.closed || c.media == nil || c.loaded == "" {
		return
	}
	if err := c.media.Play(); err != nil {
		log.Printf("player: failed to play segment %d: %v", c.index, err)
		c.wantPlay = false
		c.setState(media.Paused)
		return
	}
	c.wantPlay = true
}

// Advance moves the cursor by one in the direction of dir. Moving past either
// end does nothing. Playback continues if it was running.
func (c *PlaylistController) Advance(dir int) {
	if c.closed || dir == 0 {
		return
	}
	step := 1
	if dir < 0 {
		step = -1
	}
	next := c.index + step
	if next < 0 || next >= len(c.segments) {
		return
	}

	wasPlaying := c.playing || c.wantPlay
	c.index = next
	c.endedSent = false
	c.load()
	if wasPlaying {
		c.play()
	}
}

// Restart rewinds to the first segment and plays.
func (c *PlaylistController) Restart() {
	if c.closed || len(c.segments) == 0 {
		return
	}
	c.index = 0
	c.endedSent = false
	c.opts.Bus.PublishPhase(c.cfg.Phase)
	c.load()
	if c.media != nil {
		c.media.Seek(0)
	}
	c.play()
}

// Toggle plays when paused and pauses when playing.
func (c *PlaylistController) Toggle() {
	if c.closed || c.media == nil {
		return
	}
	if c.playing || c.wantPlay {
		c.wantPlay = false
		c.media.Pause()
		return
	}
	c.play()
}

// Play starts the current segment.
func (c *PlaylistController) Play() { c.play() }

// Pause stops playback; it is idempotent.
func (c *PlaylistController) Pause() {
	if c.closed || c.media == nil {
		return
	}
	c.wantPlay = false
	if c.media.Paused() {
		return
	}
	c.media.Pause()
}

// HandleEvent reacts to a low-level media event.
func (c *PlaylistController) HandleEvent(ev Event, err error) {
	if c.closed {
		return
	}
	switch ev {
	case EventPlay:
		c.playing = true
		c.wantPlay = true
		c.setState(media.Playing)
		c.opts.Bus.PublishState(media.Playing, c.cfg.Phase)
	case EventPause:
		c.playing = false
		c.wantPlay = false
		c.setState(media.Paused)
		c.opts.Bus.PublishState(media.Paused, c.cfg.Phase)
	case EventEnded:
		c.handleEnded()
	case EventError:
		log.Printf("player: segment %d error: %v", c.index, err)
		c.playing = false
		c.wantPlay = false
		c.setState(media.Error)
		c.opts.Bus.PublishState(media.Error, c.cfg.Phase)
	}
}

func (c *PlaylistController) handleEnded() {
	if c.index < len(c.segments)-1 {
		c.index++
		c.load()
		c.play()
		return
	}

	c.playing = false
	c.wantPlay = false
	if c.media != nil {
		c.media.Pause()
	}
	c.setState(media.Ended)
	c.opts.Bus.PublishState(media.Ended, c.cfg.Phase)
	if !c.endedSent {
		c.endedSent = true
		if c.opts.OnEnded != nil {
			c.opts.OnEnded()
		}
	}
}

func (c *PlaylistController) setState(s media.State) {
	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}

// SetMedia swaps the bound media element, releasing the previous one.
func (c *PlaylistController) SetMedia(m Media) {
	if m == c.media {
		return
	}
	release(c.media)
	c.media = m
	c.loaded = ""
	c.playing = false
	c.wantPlay = false
	if c.bound && !c.closed {
		c.load()
	}
}

// Controls reports enablement: everything is off for an empty playlist and
// prev/next are off at the boundaries.
func (c *PlaylistController) Controls() Controls {
	n := len(c.segments)
	return Controls{
		Prev:   n > 0 && c.index > 0,
		Next:   n > 0 && c.index < n-1,
		Toggle: n > 0,
	}
}

// Index returns the cursor.
func (c *PlaylistController) Index() int { return c.index }

// Segments returns the parsed playlist.
func (c *PlaylistController) Segments() []media.Segment { return c.segments }

// Current returns the segment under the cursor.
func (c *PlaylistController) Current() (media.Segment, bool) {
	if len(c.segments) == 0 {
		return media.Segment{}, false
	}
	return c.segments[c.index], true
}

func (c *PlaylistController) Playing() bool { return c.playing }

func (c *PlaylistController) Phase() media.Phase { return c.cfg.Phase }

// Media returns the bound media element.
func (c *PlaylistController) Media() Media { return c.media }

// Close cancels pending autoplay and releases the media source.
func (c *PlaylistController) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.autoTask != nil {
		c.autoTask.Cancel()
		c.autoTask = nil
	}
	release(c.media)
	c.loaded = ""
	c.playing = false
	c.wantPlay = false
}
