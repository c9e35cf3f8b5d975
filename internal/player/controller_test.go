package player

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/bus"
	"vigil/internal/media"
	"vigil/internal/sched"
)

type controllerRig struct {
	s     *sched.Manual
	rec   *recorder
	media *countingMedia
	ctrl  *Controller
}

func newControllerRig() *controllerRig {
	r := &controllerRig{s: sched.NewManual(epoch), rec: &recorder{}}
	b := bus.New()
	r.rec.subscribe(b)
	r.media = newMedia(r.s, func(ev Event, err error) { r.ctrl.HandleEvent(ev, err) })
	r.ctrl = NewController(r.media, Options{
		Bus:       b,
		Scheduler: r.s,
		OnState:   func(st media.State) { r.rec.visual = append(r.rec.visual, st) },
		OnEnded:   func() { r.rec.ended++ },
	})
	return r
}

func TestIntroEndsIntoMain(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", IntroSrc: "intro.mp3", MainSrc: "main.mp3"})
	assert.Equal(t, StageIntro, r.ctrl.Stage())

	r.ctrl.Play()
	r.s.Flush()
	require.Equal(t, media.Playing, r.ctrl.State())

	r.media.Finish()
	r.s.Flush()

	assert.Equal(t, StageMain, r.ctrl.Stage())
	assert.Equal(t, media.PhaseMain, r.ctrl.Session().Phase)
	assert.Equal(t, "main.mp3", r.media.Source())
	assert.False(t, r.media.Paused(), "main should start automatically")
	assert.Equal(t, media.Playing, r.ctrl.State())
	assert.Equal(t, []media.Phase{media.PhaseIntro, media.PhaseMain}, r.rec.phases)
	assert.Equal(t, 0, r.rec.ended)
}

func TestMainOnlyEndsOnce(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", MainSrc: "main.mp3"})
	r.ctrl.Play()
	r.s.Flush()

	r.media.Finish()
	r.s.Flush()
	r.media.Finish()
	r.s.Flush()

	assert.Equal(t, StageEnded, r.ctrl.Stage())
	assert.Equal(t, 1, r.rec.ended)
	assert.Equal(t, media.Ended, r.ctrl.State())
}

func TestNaturalEndThroughClock(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", IntroSrc: "intro.mp3", MainSrc: "main.mp3"})
	r.ctrl.Play()

	r.s.Advance(31 * time.Second)
	assert.Equal(t, StageMain, r.ctrl.Stage())

	r.s.Advance(31 * time.Second)
	assert.Equal(t, StageEnded, r.ctrl.Stage())
	assert.Equal(t, 1, r.rec.ended)
}

func TestPhaseAnnouncedBeforeSourceSwap(t *testing.T) {
	r := newControllerRig()
	var sourceAtAnnounce []string
	r.rec.onPhase = func(media.Phase) { sourceAtAnnounce = append(sourceAtAnnounce, r.media.Source()) }

	r.ctrl.Apply(Config{SessionID: "s1", IntroSrc: "intro.mp3", MainSrc: "main.mp3"})
	r.ctrl.Play()
	r.s.Flush()
	r.media.Finish()
	r.s.Flush()

	assert.Equal(t, []string{"", "intro.mp3"}, sourceAtAnnounce)
}

func TestAutoPlayOncePerMount(t *testing.T) {
	r := newControllerRig()
	cfg := Config{SessionID: "s1", MainSrc: "main.mp3", AutoPlay: true}
	r.ctrl.Apply(cfg)

	r.s.Advance(499 * time.Millisecond)
	assert.True(t, r.media.Paused(), "autoplay fired early")

	r.s.Advance(time.Millisecond)
	assert.False(t, r.media.Paused(), "autoplay did not fire after 500ms")
	assert.True(t, r.ctrl.Session().HasAutoPlayedOnce)

	r.ctrl.Pause()
	r.s.Flush()
	r.ctrl.Apply(cfg)
	r.s.Advance(time.Second)
	assert.True(t, r.media.Paused(), "autoplay must not fire twice for the same session")

	cfg.SessionID = "s2"
	r.ctrl.Apply(cfg)
	r.s.Advance(500 * time.Millisecond)
	assert.False(t, r.media.Paused(), "a new session re-arms autoplay")
}

func TestBlockedPlayFallsBackToPaused(t *testing.T) {
	r := newControllerRig()
	r.media.BlockPlay = true
	r.ctrl.Apply(Config{SessionID: "s1", MainSrc: "main.mp3", AutoPlay: true})

	r.s.Advance(time.Second)
	assert.True(t, r.media.Paused())
	assert.Equal(t, media.Paused, r.ctrl.State())

	r.media.BlockPlay = false
	r.ctrl.Play()
	r.s.Flush()
	assert.Equal(t, media.Playing, r.ctrl.State())
}

func TestSourceReloadOnlyWhenChanged(t *testing.T) {
	r := newControllerRig()
	cfg := Config{SessionID: "s1", MainSrc: "main.mp3"}
	r.ctrl.Apply(cfg)
	r.ctrl.Play()
	r.s.Flush()

	d := r.ctrl.Apply(cfg)
	assert.True(t, d.Empty())
	assert.Equal(t, []string{"main.mp3"}, r.media.loads)
	assert.False(t, r.media.Paused(), "unrelated re-render must not interrupt playback")

	cfg.MainSrc = "main-v2.mp3"
	d = r.ctrl.Apply(cfg)
	assert.True(t, d.MainChanged)
	assert.Equal(t, []string{"main.mp3", "main-v2.mp3"}, r.media.loads)
}

func TestSessionChangeResets(t *testing.T) {
	r := newControllerRig()
	cfg := Config{SessionID: "s1", IntroSrc: "intro.mp3", MainSrc: "main.mp3"}
	r.ctrl.Apply(cfg)
	r.ctrl.Play()
	r.s.Flush()
	r.media.Finish()
	r.s.Advance(5 * time.Second)
	require.Equal(t, StageMain, r.ctrl.Stage())

	cfg.SessionID = "s2"
	d := r.ctrl.Apply(cfg)

	assert.True(t, d.SessionChanged)
	assert.Equal(t, StageIntro, r.ctrl.Stage())
	assert.Equal(t, "intro.mp3", r.media.Source())
	assert.Zero(t, r.media.CurrentTime())
	assert.False(t, r.ctrl.Session().HasAutoPlayedOnce)
}

func TestPauseIsIdempotent(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", MainSrc: "main.mp3"})
	r.ctrl.Play()
	r.s.Flush()

	r.ctrl.Pause()
	r.ctrl.Pause()
	r.s.Flush()

	assert.Equal(t, 1, r.rec.count(media.Paused))
	assert.Equal(t, media.Paused, r.ctrl.State())
}

func TestToggle(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", MainSrc: "main.mp3"})

	r.ctrl.Toggle()
	r.s.Flush()
	assert.Equal(t, media.Playing, r.ctrl.State())

	r.ctrl.Toggle()
	r.s.Flush()
	assert.Equal(t, media.Paused, r.ctrl.State())
}

func TestMediaErrorRecovers(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", MainSrc: "main.mp3"})
	r.ctrl.Play()
	r.s.Flush()

	r.media.Fail(errors.New("decode failed"))
	r.s.Flush()

	assert.Equal(t, media.Error, r.ctrl.State())
	assert.Equal(t, 1, r.rec.count(media.Error))

	r.ctrl.Play()
	r.s.Flush()
	assert.Equal(t, media.Playing, r.ctrl.State())
}

func TestCloseReleasesEverything(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", MainSrc: "main.mp3", AutoPlay: true})
	r.s.Advance(time.Second)
	require.False(t, r.media.Paused())

	r.ctrl.Close()
	r.s.Flush()

	assert.Empty(t, r.media.Source())
	assert.True(t, r.media.Paused())
	assert.Equal(t, 0, r.s.Pending())

	r.ctrl.Play()
	r.s.Flush()
	assert.True(t, r.media.Paused(), "closed controller must stay silent")
}

func TestCloseCancelsPendingAutoPlay(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", MainSrc: "main.mp3", AutoPlay: true})
	r.ctrl.Close()

	r.s.Advance(time.Second)
	assert.True(t, r.media.Paused())
	assert.Equal(t, 0, r.s.Pending())
}

func TestSetMediaSwapsElement(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", MainSrc: "main.mp3"})
	r.ctrl.Play()
	r.s.Flush()

	old := r.media
	fresh := newMedia(r.s, func(ev Event, err error) { r.ctrl.HandleEvent(ev, err) })
	r.ctrl.SetMedia(fresh)

	assert.Empty(t, old.Source(), "old element must be released")
	assert.Equal(t, "main.mp3", fresh.Source())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00"},
		{65, "1:05"},
		{3725, "1:02:05"},
		{-1, "--:--"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlayAfterEndStartsOver(t *testing.T) {
	r := newControllerRig()
	r.ctrl.Apply(Config{SessionID: "s1", MainSrc: "main.mp3"})
	r.ctrl.Play()
	r.s.Advance(31 * time.Second)
	require.Equal(t, StageEnded, r.ctrl.Stage())

	r.ctrl.Play()
	r.s.Flush()
	assert.Equal(t, media.Playing, r.ctrl.State())
	assert.Equal(t, []string{"main.mp3"}, r.media.loads)

	r.s.Advance(10 * time.Second)
	assert.InDelta(t, 10, r.media.CurrentTime(), 0.1)

	r.s.Advance(21 * time.Second)
	assert.Equal(t, StageEnded, r.ctrl.Stage())
	assert.Equal(t, 2, r.rec.ended)
}
