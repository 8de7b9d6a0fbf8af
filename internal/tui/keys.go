package tui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/MrWong99/missiongenesis/internal/deck"
)

// action is what a key press asks the UI to do.
type action int

const (
	actNone action = iota
	actNavigate
	actTogglePanel
	actBlur
	actMute
	actVolumeUp
	actVolumeDown
	actStopNarration
	actJump
	actSimulate
	actAbortSimulation
	actQuit
)

// actionFor maps ev to an action.
func actionFor(ev *tcell.EventKey, typing bool) action {
	return keyAction(ev.Key(), ev.Rune(), typing)
}

// keyAction maps a key to an action. While the chat input has focus only Tab
// and Esc are intercepted; every other key belongs to the input field.
func keyAction(key tcell.Key, r rune, typing bool) action {
	switch key {
	case tcell.KeyTab:
		return actTogglePanel
	case tcell.KeyEscape:
		if typing {
			return actBlur
		}
		return actQuit
	}
	if typing {
		return actNone
	}
	if toDeckKey(key, r) != deck.KeyNone {
		return actNavigate
	}
	if key != tcell.KeyRune {
		return actNone
	}
	switch r {
	case 'q':
		return actQuit
	case 'm':
		return actMute
	case '+', '=':
		return actVolumeUp
	case '-':
		return actVolumeDown
	case 's':
		return actStopNarration
	case 'g':
		return actJump
	case 'v':
		return actSimulate
	case 'x':
		return actAbortSimulation
	}
	return actNone
}

// deckKey translates navigation keys for [deck.Navigator.HandleKey].
func deckKey(ev *tcell.EventKey) deck.Key {
	return toDeckKey(ev.Key(), ev.Rune())
}

func toDeckKey(key tcell.Key, r rune) deck.Key {
	switch key {
	case tcell.KeyRight:
		return deck.KeyArrowRight
	case tcell.KeyLeft:
		return deck.KeyArrowLeft
	case tcell.KeyUp:
		return deck.KeyArrowUp
	case tcell.KeyDown:
		return deck.KeyArrowDown
	case tcell.KeyRune:
		if r == ' ' {
			return deck.KeySpace
		}
		return deck.DigitKey(r)
	}
	return deck.KeyNone
}
