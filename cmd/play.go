package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"vigil/internal/hook"
	"vigil/internal/httputil"
	"vigil/internal/page"
	"vigil/internal/player"
	"vigil/internal/sched"
	"vigil/internal/ui"
)

var (
	flagNoTUI     bool
	flagWatch     bool
	flagRefresh   time.Duration
	flagExitOnEnd bool
)

var playCmd = &cobra.Command{
	Use:   "play <page>",
	Short: "Bind to a page and play it",
	Long: `Play loads a page from a file or an http(s) URL and mounts its hooks.
Events the hooks raise are posted to <url>/events for HTTP pages and printed
as JSON lines for files.`,
	Args: cobra.ExactArgs(1),
	RunE: playRun,
}

func init() {
	addPlayFlags(playCmd)
}

func addPlayFlags(c *cobra.Command) {
	c.Flags().BoolVar(&flagNoTUI, "no-tui", false, "Run without the terminal interface")
	c.Flags().BoolVarP(&flagWatch, "watch", "w", false, "Re-render when the page file changes")
	c.Flags().DurationVar(&flagRefresh, "refresh", 0, "Re-fetch an HTTP page at this interval (0 disables)")
	c.Flags().BoolVar(&flagExitOnEnd, "exit-on-end", false, "Exit once audio playback ends")
}

func playRun(cmd *cobra.Command, args []string) error {
	src, err := page.Open(args[0])
	if err != nil {
		return err
	}
	if !player.Available(cfg.Player) {
		return fmt.Errorf("media backend %q not available (is mpv installed?)", cfg.Player)
	}

	store, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The loop outlives ctx so the page can be torn down on it after a signal.
	loop := sched.NewLoop()
	loopCtx, stopLoop := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		loop.Run(loopCtx)
	}()
	defer func() {
		stopLoop()
		wg.Wait()
	}()

	tui := !flagNoTUI && term.IsTerminal(int(os.Stdout.Fd()))
	pusher, flush := newPusher(ctx, src, tui)
	defer flush()
	if flagExitOnEnd {
		inner := pusher
		pusher = hook.PusherFunc(func(name string, payload map[string]any) {
			inner.PushEvent(name, payload)
			if name == hook.EventAudioEnded {
				debugf("audio ended, exiting")
				cancel()
			}
		})
	}

	layout := ui.TextLayout{Width: cfg.Width, Rows: cfg.ViewportRows}
	pg := hook.NewPage(hook.Services{
		Scheduler:     loop,
		Pusher:        pusher,
		Media:         player.NewFactory(cfg.Player, loop, cfg.SimulatedDuration.Duration),
		Progress:      store,
		Layout:        layout,
		AutoPlayDelay: cfg.AutoPlayDelay.Duration,
		SyncInterval:  cfg.SyncInterval.Duration,
		BaseURL:       src.BaseURL(),
	}, nil)
	// Shutdown keeps resume points for the next run.
	defer loop.Do(pg.Shutdown)

	render := func() error {
		markup, err := src.Fetch(ctx)
		if err != nil {
			return err
		}
		var rerr error
		loop.Do(func() { rerr = pg.Render(markup) })
		return rerr
	}
	if err := render(); err != nil {
		return err
	}
	debugf("mounted hooks: %v", pg.Mounted())

	rerender := func() {
		if err := render(); err != nil && !errors.Is(err, context.Canceled) {
			debugf("re-render %s: %v", src, err)
		}
	}
	if flagWatch {
		if f, ok := src.(*page.File); ok {
			go func() {
				if err := page.Watch(ctx, f.Path, page.DefaultDebounce, rerender); err != nil {
					debugf("watch: %v", err)
				}
			}()
		} else {
			debugf("--watch only applies to page files")
		}
	}
	if flagRefresh > 0 {
		go poll(ctx, flagRefresh, rerender)
	}

	if !tui {
		<-ctx.Done()
		return nil
	}

	model := ui.NewModel(src.String(), pg, loop.Do, layout)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("running interface: %w", err)
	}
	return nil
}

// newPusher picks where hook events go: the page's events endpoint for HTTP
// pages, stdout for files, and the debug log while the interface owns stdout.
// flush delivers events still queued and must run after the page is torn down.
func newPusher(ctx context.Context, src page.Source, tui bool) (pusher hook.Pusher, flush func()) {
	if h, ok := src.(*page.HTTP); ok {
		p := page.NewPoster(h.EventsURL(), httputil.NewClient())
		go p.Run(ctx)
		return p, p.Close
	}
	if tui {
		return hook.PusherFunc(func(name string, payload map[string]any) {
			debugf("event %s %v", name, payload)
		}), func() {}
	}
	return hook.NewJSONLines(os.Stdout), func() {}
}

func poll(ctx context.Context, every time.Duration, fn func()) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}
