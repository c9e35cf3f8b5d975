package hook

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vigil/internal/media"
	"vigil/internal/player"
	"vigil/internal/sched"
)

const introPage = `
<div id="player" phx-hook="AudioPlayer" data-session-id="s1" data-intro-src="intro.mp3" data-main-src="main.mp3">
  <audio></audio>
  <button id="play" data-audio-play>Play</button>
  <button id="pause" data-audio-pause class="hidden">Pause</button>
</div>`

func audioPlayer(t *testing.T, r *rig, id string) *AudioPlayer {
	t.Helper()
	h, ok := r.page.Hook(id).(*AudioPlayer)
	require.True(t, ok, "#%s is not an AudioPlayer", id)
	return h
}

func TestAudioPlayerIntroThenMain(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, introPage)
	require.Len(t, r.sims, 1)
	sim := r.sims[0]
	ctrl := audioPlayer(t, r, "player").Controller()

	assert.Equal(t, "intro.mp3", sim.Source())
	assert.Equal(t, player.StageIntro, ctrl.Stage())

	require.True(t, r.page.Click("#play"))
	r.s.Flush()
	assert.Equal(t, media.Playing, ctrl.State())
	assert.True(t, r.el(t, "#play").HasClass("hidden"))
	assert.False(t, r.el(t, "#pause").HasClass("hidden"))

	sim.Finish()
	r.s.Flush()
	assert.Equal(t, player.StageMain, ctrl.Stage())
	assert.Equal(t, "main.mp3", sim.Source())
	assert.False(t, sim.Paused())

	sim.Finish()
	r.s.Flush()
	sim.Finish()
	r.s.Flush()
	assert.Equal(t, player.StageEnded, ctrl.Stage())
	assert.Len(t, r.rec.Named(EventAudioEnded), 1)
	assert.False(t, r.el(t, "#play").HasClass("hidden"))
}

func TestAudioPlayerRerenderKeepsListeners(t *testing.T) {
	r := newRig(t, Services{}, nil)
	for i := 0; i < 3; i++ {
		r.render(t, introPage)
	}

	require.Len(t, r.sims, 1, "re-render must not create a new media element")
	assert.Equal(t, len(player.Events), r.el(t, "audio").ListenerCount(""))
	assert.Equal(t, 1, r.el(t, "#play").ListenerCount("click"))
	assert.Equal(t, 1, r.el(t, "#pause").ListenerCount("click"))
	assert.Equal(t, len(player.Events)+2, r.page.Document().ListenerTotal())
	assert.True(t, r.el(t, "#pause").HasClass("hidden"))
}

func TestAudioPlayerReplacedAudioElement(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, `<div id="player" phx-hook="AudioPlayer" data-main-src="main.mp3"><audio id="a1"></audio></div>`)
	ctrl := audioPlayer(t, r, "player").Controller()
	ctrl.Play()
	r.s.Flush()
	require.Equal(t, media.Playing, ctrl.State())

	r.render(t, `<div id="player" phx-hook="AudioPlayer" data-main-src="main.mp3"><audio id="a2"></audio></div>`)

	require.Len(t, r.sims, 2)
	assert.Equal(t, "", r.sims[0].Source(), "old media is released")
	assert.Equal(t, "main.mp3", r.sims[1].Source())
	assert.Equal(t, media.Paused, ctrl.State())
	assert.Equal(t, len(player.Events), r.page.Document().ListenerTotal())
}

func TestAudioPlayerAutoPlayOncePerMount(t *testing.T) {
	r := newRig(t, Services{}, nil)
	markup := `<div id="player" phx-hook="AudioPlayer" data-session-id="s1" data-main-src="main.mp3" data-auto-play="true"><audio></audio></div>`
	r.render(t, markup)
	ctrl := audioPlayer(t, r, "player").Controller()

	r.s.Advance(499 * time.Millisecond)
	assert.NotEqual(t, media.Playing, ctrl.State())
	r.s.Advance(time.Millisecond)
	assert.Equal(t, media.Playing, ctrl.State())

	ctrl.Pause()
	r.s.Flush()
	r.render(t, markup)
	r.s.Advance(time.Second)
	assert.Equal(t, media.Paused, ctrl.State(), "autoplay runs once per mount")
}

func TestAudioPlayerSourceFallback(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, `<div id="player" phx-hook="AudioPlayer"><audio><source src="from-source.mp3"></audio></div>`)
	assert.Equal(t, "from-source.mp3", r.sims[0].Source())
}

func TestAudioPlayerResolvesAgainstBaseURL(t *testing.T) {
	r := newRig(t, Services{BaseURL: "https://example.org/pray/today"}, nil)
	r.render(t, `<div id="player" phx-hook="AudioPlayer" data-main-src="audio/main.mp3"><audio></audio></div>`)
	assert.Equal(t, "https://example.org/pray/audio/main.mp3", r.sims[0].Source())
}

func TestAudioPlayerDestroyReleases(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, introPage)
	audioPlayer(t, r, "player").Controller().Play()
	r.s.Flush()

	r.render(t, `<div></div>`)

	assert.Nil(t, r.page.Hook("player"))
	assert.Equal(t, "", r.sims[0].Source())
	assert.True(t, r.sims[0].Paused())
	assert.Equal(t, 0, r.s.Pending())
	assert.Equal(t, 0, r.page.Document().ListenerTotal())
}

const playlistPage = `
<div id="seg" phx-hook="SegmentPlayer" data-phase="main" data-current-index="%s"
     data-playlist='[{"url":"a.mp3","label":"First"},{"url":"b.mp3","label":"Second"},{"url":"c.mp3","label":"Third"}]'>
  <audio></audio>
  <button id="prev" data-segment-prev>Prev</button>
  <button id="next" data-segment-next>Next</button>
  <button id="toggle" data-segment-toggle>Toggle</button>
  <span id="label" data-segment-label></span>
</div>`

func playlistMarkup(index string) string {
	return strings.Replace(playlistPage, "%s", index, 1)
}

func TestSegmentPlayerControls(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, playlistMarkup(""))
	h := r.page.Hook("seg").(*SegmentPlayer)

	assert.Equal(t, "First", r.el(t, "#label").Text())
	assert.False(t, r.page.Click("#prev"), "prev is disabled at the start")

	require.True(t, r.page.Click("#next"))
	assert.Equal(t, 1, h.Controller().Index())
	assert.Equal(t, "Second", r.el(t, "#label").Text())
	assert.Equal(t, "b.mp3", r.sims[0].Source())

	r.render(t, playlistMarkup(""))
	_, prevDisabled := r.el(t, "#prev").Attr("disabled")
	assert.False(t, prevDisabled)
	assert.Equal(t, 1, h.Controller().Index())

	require.True(t, r.page.Click("#next"))
	assert.False(t, r.page.Click("#next"), "next is disabled at the end")
	assert.Equal(t, "2", r.el(t, "#seg").Data("index"))
}

func TestSegmentPlayerRestoresAndEnds(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, playlistMarkup("2"))
	h := r.page.Hook("seg").(*SegmentPlayer)
	assert.Equal(t, 2, h.Controller().Index())
	assert.Equal(t, "Third", r.el(t, "#label").Text())

	require.True(t, r.page.Click("#toggle"))
	r.s.Flush()
	assert.Equal(t, "true", mustAttr(t, r, "#toggle", "aria-pressed"))

	r.sims[0].Finish()
	r.s.Flush()
	assert.Equal(t, 2, h.Controller().Index())
	assert.Len(t, r.rec.Named(EventAudioEnded), 1)
	assert.Equal(t, "false", mustAttr(t, r, "#toggle", "aria-pressed"))
}

func TestSegmentPlayerEmptyPlaylist(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, `<div id="seg" phx-hook="SegmentPlayer" data-playlist="not json"><audio></audio><button id="toggle" data-segment-toggle></button></div>`)
	assert.False(t, r.page.Click("#toggle"))
	assert.Equal(t, "", r.sims[0].Source())
}

func mustAttr(t *testing.T, r *rig, selector, name string) string {
	t.Helper()
	v, ok := r.el(t, selector).Attr(name)
	require.True(t, ok, "%s has no %s attribute", selector, name)
	return v
}

const continuousPage = `
<div id="player" phx-hook="AudioPlayer" data-session-id="s1" data-main-src="main.mp3"><audio></audio></div>
<div id="text" phx-hook="TextSync" data-player="player">
  <div data-sync-viewport data-viewport-rows="2">
    <div id="content" data-sync-content>
      <p data-segment>one</p><p data-segment>two</p><p data-segment>three</p>
      <p data-segment>four</p><p data-segment>five</p><p data-segment>six</p>
    </div>
  </div>
</div>`

func TestTextSyncContinuous(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, continuousPage)
	ctrl := audioPlayer(t, r, "player").Controller()
	ts := r.page.Hook("text").(*TextSync)

	ctrl.Play()
	r.s.Flush()
	r.s.Advance(15 * time.Second)

	assert.True(t, ts.State().Running)
	assert.InDelta(t, -2, ts.State().OffsetPx, 0.01)
	assert.Contains(t, mustAttr(t, r, "#content", "style"), "translateY(-")

	ctrl.Pause()
	r.s.Flush()
	assert.False(t, ts.State().Running)
	assert.Equal(t, 0, r.s.Pending())

	r.render(t, continuousPage)
	assert.Contains(t, mustAttr(t, r, "#content", "style"), "translateY(-", "offset survives a re-render")
}

const discretePage = `
<div id="player" phx-hook="AudioPlayer" data-session-id="s1" data-main-src="main.mp3"><audio></audio></div>
<div id="text" phx-hook="TextSync" data-sync-mode="discrete" data-sync-interval="1000">
  <div id="viewport" data-sync-viewport data-viewport-rows="1">
    <p id="s0" data-segment>one</p><p id="s1" data-segment>two</p><p id="s2" data-segment>three</p>
  </div>
</div>`

func TestTextSyncDiscrete(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, discretePage)
	ctrl := audioPlayer(t, r, "player").Controller()
	ts := r.page.Hook("text").(*TextSync)
	assert.True(t, r.el(t, "#s0").HasClass("active"))

	ctrl.Play()
	r.s.Flush()
	r.s.Advance(time.Second)

	assert.Equal(t, 1, ts.State().ActiveIndex)
	assert.False(t, r.el(t, "#s0").HasClass("active"))
	assert.True(t, r.el(t, "#s1").HasClass("active"))
	assert.Equal(t, "1", mustAttr(t, r, "#viewport", "data-scroll-top"))

	r.render(t, discretePage)
	assert.True(t, r.el(t, "#s1").HasClass("active"), "highlight survives a re-render")

	ctrl.Pause()
	r.s.Flush()
	r.s.Advance(5 * time.Second)
	assert.Equal(t, 1, ts.State().ActiveIndex)
}

func TestTextSyncIgnoresOtherPhase(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, introPage+`<div id="text" phx-hook="TextSync" data-phase="main" data-sync-mode="discrete" data-sync-interval="1000"><p data-segment>a</p><p data-segment>b</p></div>`)
	ctrl := audioPlayer(t, r, "player").Controller()
	ts := r.page.Hook("text").(*TextSync)

	ctrl.Play()
	r.s.Flush()
	r.s.Advance(3 * time.Second)
	assert.False(t, ts.State().Running)
	assert.Equal(t, 0, ts.State().ActiveIndex)
}

func TestTextSyncDestroyStopsLoop(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.render(t, continuousPage)
	audioPlayer(t, r, "player").Controller().Play()
	r.s.Flush()
	r.s.Frames(2)

	r.render(t, `<div id="player" phx-hook="AudioPlayer" data-session-id="s1" data-main-src="main.mp3"><audio></audio></div>`)
	assert.Nil(t, r.page.Hook("text"))
	// only the simulated playback clock is left
	assert.Equal(t, 1, r.s.Pending())
}

func TestRosaryProgress(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.store.Save("joyful", 3)

	r.render(t, `<div id="rosary" phx-hook="RosaryProgress" data-set-id="joyful" data-current-index="0"></div>`)
	restored := r.rec.Named(EventRestoreProgress)
	require.Len(t, restored, 1)
	assert.Equal(t, 3, restored[0].Payload["index"])

	r.render(t, `<div id="rosary" phx-hook="RosaryProgress" data-set-id="joyful" data-current-index="4"></div>`)
	rec, ok := r.store.Load("joyful")
	require.True(t, ok)
	assert.Equal(t, 4, rec.Index)

	r.render(t, `<div></div>`)
	_, ok = r.store.Load("joyful")
	assert.False(t, ok, "teardown clears the set")
}

func TestRosaryProgressSurvivesShutdown(t *testing.T) {
	r := newRig(t, Services{}, nil)
	markup := `<div id="rosary" phx-hook="RosaryProgress" data-set-id="joyful" data-current-index="%d"></div>`
	r.render(t, fmt.Sprintf(markup, 0))
	r.render(t, fmt.Sprintf(markup, 4))

	r.page.Shutdown()
	rec, ok := r.store.Load("joyful")
	require.True(t, ok, "shutdown must keep the record")
	assert.Equal(t, 4, rec.Index)

	next := NewPage(Services{Scheduler: r.s, Pusher: r.rec, Progress: r.store}, nil)
	defer next.Close()
	require.NoError(t, next.Render(fmt.Sprintf(markup, 0)))
	r.s.Flush()

	restored := r.rec.Named(EventRestoreProgress)
	require.Len(t, restored, 1)
	assert.Equal(t, 4, restored[0].Payload["index"])
}

func TestRosaryProgressExpired(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.store.Save("sorrowful", 2)
	r.s.Advance(time.Hour)

	r.render(t, `<div id="rosary" phx-hook="RosaryProgress" data-set-id="sorrowful"></div>`)
	assert.Empty(t, r.rec.Named(EventRestoreProgress))
}

func TestUserTimezone(t *testing.T) {
	r := newRig(t, Services{}, nil)
	r.s = sched.NewManual(epoch.In(time.FixedZone("BRT", -3*3600)))
	r.page = NewPage(Services{Scheduler: r.s, Pusher: r.rec}, nil)
	defer r.page.Close()

	r.render(t, `<div id="tz" phx-hook="UserTimezone"></div>`)
	r.render(t, `<div id="tz" phx-hook="UserTimezone"></div>`)

	events := r.rec.Named(EventSetTimezone)
	require.Len(t, events, 1)
	assert.Equal(t, 180, events[0].Payload["offset"])
}
