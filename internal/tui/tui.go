// Package tui renders the deck and the advisor panel in the terminal.
//
// The [UI] owns the tview application. Every other component reports changes
// through callbacks; the UI coalesces them into redraws queued on the tview
// event loop.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/MrWong99/missiongenesis/internal/assistant"
	"github.com/MrWong99/missiongenesis/internal/deck"
	"github.com/MrWong99/missiongenesis/internal/observe"
	"github.com/MrWong99/missiongenesis/internal/vision"
	"github.com/MrWong99/missiongenesis/pkg/audio"
)

const (
	jumpPage   = "jump"
	mainPage   = "main"
	panelWidth = 48
	volumeStep = 0.1
)

// Narration is the part of the narrator the UI drives.
type Narration interface {
	Pending() audio.PlaybackID
	Stop()
}

// Simulation is the video run behind the simulation slide.
type Simulation interface {
	Start() bool
	Cancel() bool
	Status() vision.Status
	OnChange(fn func())
}

// Config wires the UI to the rest of the application. Simulation may be nil.
type Config struct {
	Navigator  *deck.Navigator
	Assistant  *assistant.Manager
	Narration  Narration
	Player     audio.Player
	Simulation Simulation
	Metrics    *observe.Metrics
}

// UI is the terminal front end.
type UI struct {
	app    *tview.Application
	pages  *tview.Pages
	body   *tview.Flex
	hud    *tview.TextView
	slide  *tview.TextView
	panel  *tview.Flex
	chat   *tview.TextView
	input  *tview.InputField
	status *tview.TextView

	nav     *deck.Navigator
	asst    *assistant.Manager
	narr    Narration
	player  audio.Player
	sim     Simulation
	metrics *observe.Metrics

	// UI goroutine only.
	panelShown bool
	jumpOpen   bool

	mu      sync.Mutex
	ctx     context.Context
	playID  audio.PlaybackID
	playPct float64

	refresh chan struct{}
}

// New builds the widget tree. Nothing is drawn until [UI.Run].
func New(cfg Config) *UI {
	u := &UI{
		app:     tview.NewApplication(),
		pages:   tview.NewPages(),
		nav:     cfg.Navigator,
		asst:    cfg.Assistant,
		narr:    cfg.Narration,
		player:  cfg.Player,
		sim:     cfg.Simulation,
		metrics: cfg.Metrics,
		ctx:     context.Background(),
		refresh: make(chan struct{}, 1),
	}
	if u.metrics == nil {
		u.metrics = observe.DefaultMetrics()
	}

	u.hud = tview.NewTextView().SetDynamicColors(true).SetTextAlign(tview.AlignCenter)
	u.slide = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	u.slide.SetBorder(true).SetBorderPadding(1, 1, 2, 2)
	u.chat = tview.NewTextView().SetDynamicColors(true).SetWordWrap(true)
	u.chat.SetBorder(true).SetTitle(" Dawn · strategic advisor ")
	u.input = tview.NewInputField().
		SetLabel("> ").
		SetPlaceholder("Ask about the mission…").
		SetDoneFunc(u.submit)
	u.status = tview.NewTextView().SetDynamicColors(true)

	u.panel = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(u.chat, 0, 1, false).
		AddItem(u.input, 1, 0, false)
	u.body = tview.NewFlex().AddItem(u.slide, 0, 1, true)

	root := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(u.hud, 1, 0, false).
		AddItem(u.body, 0, 1, true).
		AddItem(u.status, 2, 0, false)
	u.pages.AddPage(mainPage, root, true, true)
	u.app.SetRoot(u.pages, true).SetFocus(u.slide)
	u.app.SetInputCapture(u.capture)

	u.nav.OnChange(func(i int) {
		u.metrics.RecordSlideChange(u.context(), u.nav.Slides()[i].Name)
		u.requestRefresh()
	})
	u.asst.OnChange(u.requestRefresh)
	if u.sim != nil {
		u.sim.OnChange(u.requestRefresh)
	}

	u.redraw()
	return u
}

// Run draws the UI and blocks until the user quits or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	u.mu.Lock()
	u.ctx = ctx
	u.mu.Unlock()

	go func() {
		<-ctx.Done()
		u.app.Stop()
	}()
	go u.pump(ctx)

	if err := u.app.Run(); err != nil {
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}

// SetPlayback records the audible narration and its progress. It is safe to
// call from any goroutine.
func (u *UI) SetPlayback(id audio.PlaybackID, percent float64) {
	u.mu.Lock()
	u.playID, u.playPct = id, percent
	u.mu.Unlock()
	u.requestRefresh()
}

func (u *UI) context() context.Context {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.ctx
}

// requestRefresh never blocks; bursts of changes collapse into one redraw.
func (u *UI) requestRefresh() {
	select {
	case u.refresh <- struct{}{}:
	default:
	}
}

func (u *UI) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-u.refresh:
			u.app.QueueUpdateDraw(u.redraw)
		}
	}
}

// redraw must run on the UI goroutine.
func (u *UI) redraw() {
	idx, count := u.nav.Index(), u.nav.Count()
	u.hud.SetText(renderHUD(u.nav))
	u.slide.SetTitle(fmt.Sprintf(" Phase %02d / %02d ", idx+1, count))
	_, screen, _ := u.nav.Screen()
	u.slide.SetText(renderSlide(u.nav.Current(), screen, u.simStatus()))

	u.syncPanel()

	u.mu.Lock()
	playID, playPct := u.playID, u.playPct
	u.mu.Unlock()

	typing := u.asst.Typing()
	u.chat.SetText(renderTranscript(u.asst.Transcript(), u.asst.Greeting(), typing, playID))
	u.chat.ScrollToEnd()
	if typing {
		u.input.SetLabel("… ")
	} else {
		u.input.SetLabel("> ")
	}

	u.status.SetText(renderStatus(idx, count, u.player.Volume(), playID, playPct, u.narr.Pending() != ""))
}

// syncPanel shows or hides the advisor panel to match the assistant state.
func (u *UI) syncPanel() {
	open := u.asst.PanelOpen()
	if open == u.panelShown {
		return
	}
	u.panelShown = open
	if open {
		u.body.AddItem(u.panel, panelWidth, 0, false)
		u.app.SetFocus(u.input)
		return
	}
	u.body.RemoveItem(u.panel)
	u.app.SetFocus(u.slide)
}

func (u *UI) capture(ev *tcell.EventKey) *tcell.EventKey {
	if u.jumpOpen {
		return ev
	}
	return u.handle(ev)
}

// handle applies ev and returns nil when it was consumed.
func (u *UI) handle(ev *tcell.EventKey) *tcell.EventKey {
	if !u.apply(actionFor(ev, u.typing()), deckKey(ev)) {
		return ev
	}
	return nil
}

// simStatus reports an offline simulator when none is wired.
func (u *UI) simStatus() vision.Status {
	if u.sim == nil {
		return vision.Status{State: vision.StateOffline}
	}
	return u.sim.Status()
}

func (u *UI) typing() bool {
	return u.app.GetFocus() == u.input
}

// apply performs act and reports whether it consumed the key. k is the
// navigation key for actNavigate.
func (u *UI) apply(act action, k deck.Key) bool {
	switch act {
	case actNavigate:
		if !u.nav.HandleKey(k) {
			return false
		}
	case actSimulate:
		if u.sim == nil || !u.nav.Current().Simulation {
			return false
		}
		if !u.sim.Start() {
			slog.Debug("simulation not started", "state", u.sim.Status().State)
		}
	case actAbortSimulation:
		if u.sim == nil || !u.nav.Current().Simulation || !u.sim.Cancel() {
			return false
		}
	case actTogglePanel:
		u.asst.TogglePanel()
	case actBlur:
		u.app.SetFocus(u.slide)
	case actMute:
		v := u.player.Volume()
		u.player.SetVolume(!v.Muted, v.Level)
	case actVolumeUp:
		v := u.player.Volume()
		u.player.SetVolume(false, v.Level+volumeStep)
	case actVolumeDown:
		v := u.player.Volume()
		u.player.SetVolume(v.Muted, v.Level-volumeStep)
	case actStopNarration:
		u.narr.Stop()
	case actJump:
		u.showJump()
	case actQuit:
		u.app.Stop()
	default:
		return false
	}
	u.redraw()
	return true
}

// submit sends the chat input to the assistant.
func (u *UI) submit(key tcell.Key) {
	if key != tcell.KeyEnter {
		return
	}
	q := strings.TrimSpace(u.input.GetText())
	if q == "" || u.asst.Typing() {
		return
	}
	u.input.SetText("")
	ctx := u.context()
	go u.asst.Ask(ctx, q)
}

// showJump opens the slide picker: a phase number or fuzzy name in the
// input, or a pick from the list.
func (u *UI) showJump() {
	list := tview.NewList().ShowSecondaryText(false).
		SetSelectedBackgroundColor(tcell.ColorGray)
	for i, s := range u.nav.Slides() {
		list.AddItem(fmt.Sprintf("%02d  %s", i+1, s.Name), "", 0, nil)
	}
	list.SetCurrentItem(u.nav.Index())

	field := tview.NewInputField().SetLabel("Phase or name: ")

	closeJump := func() {
		u.pages.RemovePage(jumpPage)
		u.jumpOpen = false
		u.app.SetFocus(u.slide)
		u.redraw()
	}
	list.SetSelectedFunc(func(i int, _, _ string, _ rune) {
		_ = u.nav.GoTo(i)
		closeJump()
	})
	list.SetInputCapture(func(ev *tcell.EventKey) *tcell.EventKey {
		if ev.Key() == tcell.KeyEscape {
			closeJump()
			return nil
		}
		return ev
	})
	field.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEscape:
			closeJump()
		case tcell.KeyTab, tcell.KeyDown:
			u.app.SetFocus(list)
		case tcell.KeyEnter:
			if i, ok := u.nav.Find(field.GetText()); ok {
				_ = u.nav.GoTo(i)
				closeJump()
				return
			}
			field.SetText("")
			field.SetPlaceholder("no such phase")
		}
	})

	box := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(field, 1, 0, true).
		AddItem(list, 0, 1, false)
	box.SetBorder(true).SetTitle(" Jump ")

	u.pages.AddPage(jumpPage, modal(box, 48, u.nav.Count()+4), true, true)
	u.jumpOpen = true
	u.app.SetFocus(field)
}

// modal centres p in a width x height box.
func modal(p tview.Primitive, width, height int) tview.Primitive {
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(p, height, 1, true).
			AddItem(nil, 0, 1, false), width, 1, true).
		AddItem(nil, 0, 1, false)
}
