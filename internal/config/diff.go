package config

import (
	"maps"
	"reflect"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; provider and
// server changes are reported so the caller can ask for a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// PersonaChanged is set when the persona text, greeting, fallback
	// replies or temperature changed.
	PersonaChanged bool

	// VoiceChanged is set when the narration voice changed.
	VoiceChanged bool

	// NarrationChanged is set when the text limit or phonetics changed.
	NarrationChanged bool

	// AudioChanged is set when mute or volume changed.
	AudioChanged bool

	// RestartRequired lists sections whose changes only apply after a restart.
	RestartRequired []string
}

// Empty reports whether d carries no change at all.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.PersonaChanged && !d.VoiceChanged &&
		!d.NarrationChanged && !d.AudioChanged && len(d.RestartRequired) == 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oa, na := old.Assistant, new.Assistant
	if oa.Persona != na.Persona ||
		oa.Greeting != na.Greeting ||
		oa.FallbackError != na.FallbackError ||
		oa.FallbackEmpty != na.FallbackEmpty ||
		oa.Temperature != na.Temperature {
		d.PersonaChanged = true
	}
	if oa.Voice != na.Voice {
		d.VoiceChanged = true
	}

	on, nn := old.Narration, new.Narration
	if on.MaxChars != nn.MaxChars || !maps.Equal(on.Phonetics, nn.Phonetics) {
		d.NarrationChanged = true
	}

	if old.Audio.Muted != new.Audio.Muted || old.Audio.Level() != new.Audio.Level() {
		d.AudioChanged = true
	}

	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if old.Server.ListenAddr != new.Server.ListenAddr || old.Server.LogFile != new.Server.LogFile {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if oa.MaxTokens != na.MaxTokens || oa.HistoryTokens != na.HistoryTokens || oa.Timeout != na.Timeout {
		d.RestartRequired = append(d.RestartRequired, "assistant.limits")
	}
	if on.SampleRate != nn.SampleRate || on.Channels != nn.Channels || on.Timeout != nn.Timeout {
		d.RestartRequired = append(d.RestartRequired, "narration.format")
	}
	if old.Audio.TickInterval != new.Audio.TickInterval {
		d.RestartRequired = append(d.RestartRequired, "audio.tick_interval")
	}
	if old.Vision != new.Vision {
		d.RestartRequired = append(d.RestartRequired, "vision")
	}

	return d
}
