package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/rivo/tview"

	"github.com/MrWong99/missiongenesis/internal/assistant"
	"github.com/MrWong99/missiongenesis/internal/deck"
	"github.com/MrWong99/missiongenesis/internal/vision"
	"github.com/MrWong99/missiongenesis/pkg/audio"
)

const helpLine = "[gray]←/→ space[-] navigate  [gray]g[-] jump  [gray]tab[-] advisor  [gray]m[-] mute  [gray]+/-[-] volume  [gray]s[-] silence  [gray]q[-] quit"

// renderHUD draws the header: navigation hints around the synchronisation
// line. A hint is dimmed when the deck cannot move that way.
func renderHUD(nav *deck.Navigator) string {
	prev, next := "[aqua]◀[-]", "[aqua]▶[-]"
	if nav.AtStart() {
		prev = "[gray]◁[-]"
	}
	if nav.AtEnd() {
		next = "[gray]▷[-]"
	}
	return fmt.Sprintf("%s  [::b]%s[::-]  %s", prev, tview.Escape(nav.HUD()), next)
}

// renderSlide draws the slide title and body, followed by the screen
// explorer or the simulation console when the slide has one. screen is the
// selected screen index; sim is only read on a simulation slide.
func renderSlide(s deck.Slide, screen int, sim vision.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[yellow::b]%s[-::-]\n\n", tview.Escape(s.Title))
	b.WriteString(tview.Escape(s.Body))
	if len(s.Screens) > 0 {
		b.WriteString("\n\n")
		renderScreens(&b, s.Screens, screen)
	}
	if s.Simulation {
		b.WriteString("\n\n")
		renderSimulation(&b, sim)
	}
	return b.String()
}

// renderScreens lists the screens with the selected one highlighted and its
// description below.
func renderScreens(b *strings.Builder, screens []deck.Screen, selected int) {
	selected = min(max(selected, 0), len(screens)-1)
	for i, sc := range screens {
		if i == selected {
			fmt.Fprintf(b, "[black:aqua] %d  %s [-:-]  [aqua]%s[-]\n", i+1, tview.Escape(sc.Title), tview.Escape(sc.Subtitle))
			continue
		}
		fmt.Fprintf(b, " [gray]%d[-]  %s  [gray]%s[-]\n", i+1, tview.Escape(sc.Title), tview.Escape(sc.Subtitle))
	}
	sel := screens[selected]
	fmt.Fprintf(b, "\n[green]TERMINAL_OUTPUT://%s[-]\n%s\n", tview.Escape(sel.Tag()), tview.Escape(sel.Desc))
	fmt.Fprintf(b, "[gray]1-%d or ↑/↓ select a screen[-]", len(screens))
}

// renderSimulation draws the video engine console.
func renderSimulation(b *strings.Builder, st vision.Status) {
	b.WriteString("[gray]DRIVE_UNIT: VEO_3.1_ENGINE[-]\n")
	msg := st.Message
	if msg == "" && st.State == vision.StateOffline {
		msg = "Video engine offline."
	}
	var color, hint string
	switch st.State {
	case vision.StateRunning:
		color, hint = "yellow", "x abort"
	case vision.StateReady:
		color, hint = "green", "v render again"
	case vision.StateFailed:
		color, hint = "red", "v retry"
	case vision.StateOffline:
		color = "gray"
	default:
		color, hint = "white", "v execute simulation"
	}
	fmt.Fprintf(b, "[%s]> %s[-]", color, tview.Escape(msg))
	if hint != "" {
		fmt.Fprintf(b, "\n[gray]%s[-]", hint)
	}
}

// renderDots draws one dot per slide with the current one filled.
func renderDots(index, count int) string {
	var b strings.Builder
	for i := range count {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == index {
			b.WriteString("[aqua]●[-]")
		} else {
			b.WriteString("[gray]○[-]")
		}
	}
	return b.String()
}

// renderTranscript draws the conversation. The greeting stands in while the
// transcript is empty; the entry whose narration is audible is marked.
func renderTranscript(entries []assistant.Entry, greeting string, typing bool, speaking audio.PlaybackID) string {
	var b strings.Builder
	if len(entries) == 0 {
		fmt.Fprintf(&b, "[gray]%s[-]\n", tview.Escape(greeting))
	}
	for _, e := range entries {
		switch e.Role {
		case assistant.RoleUser:
			fmt.Fprintf(&b, "[aqua::b]You[-::-]  %s\n\n", tview.Escape(e.Text))
		default:
			marker := ""
			if speaking != "" && e.PlaybackID == speaking {
				marker = " [green]♪[-]"
			}
			fmt.Fprintf(&b, "[yellow::b]Dawn[-::-]%s  %s\n\n", marker, tview.Escape(e.Text))
		}
	}
	if typing {
		b.WriteString("[gray]Dawn is typing…[-]\n")
	}
	return b.String()
}

// renderStatus draws the footer: slide dots, narration state and volume.
func renderStatus(index, count int, vol audio.Volume, speaking audio.PlaybackID, percent float64, pending bool) string {
	var audioPart string
	switch {
	case speaking != "":
		audioPart = fmt.Sprintf("[green]♪ %s[-]", progressBar(percent, 10))
	case pending:
		audioPart = "[yellow]♪ synthesising[-]"
	default:
		audioPart = "[gray]♪ idle[-]"
	}
	return fmt.Sprintf("%s   %s   %s\n%s", renderDots(index, count), audioPart, renderVolume(vol), helpLine)
}

func renderVolume(v audio.Volume) string {
	if v.Muted {
		return "[red]muted[-]"
	}
	return fmt.Sprintf("vol %d%%", int(math.Round(v.Level*100)))
}

// progressBar renders percent in [0, 100] as width cells.
func progressBar(percent float64, width int) string {
	filled := int(math.Round(min(max(percent, 0), 100) / 100 * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
