package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/missiongenesis/internal/config"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	half := 0.5

	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(t *testing.T, d config.ConfigDiff)
	}{
		{
			name:   "identical",
			mutate: func(*config.Config) {},
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.Empty() {
					t.Errorf("expected empty diff, got %+v", d)
				}
			},
		},
		{
			name:   "log level",
			mutate: func(c *config.Config) { c.Server.LogLevel = config.LogDebug },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
					t.Errorf("log level diff = %+v", d)
				}
			},
		},
		{
			name:   "persona text",
			mutate: func(c *config.Config) { c.Assistant.Persona = "You are Dusk." },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.PersonaChanged || d.VoiceChanged {
					t.Errorf("diff = %+v, want persona only", d)
				}
			},
		},
		{
			name:   "voice",
			mutate: func(c *config.Config) { c.Assistant.Voice.VoiceID = "Puck" },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.VoiceChanged || d.PersonaChanged {
					t.Errorf("diff = %+v, want voice only", d)
				}
			},
		},
		{
			name:   "phonetics",
			mutate: func(c *config.Config) { c.Narration.Phonetics = map[string]string{"TAM": "Tam"} },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.NarrationChanged {
					t.Errorf("diff = %+v, want narration change", d)
				}
			},
		},
		{
			name: "volume",
			mutate: func(c *config.Config) {
				c.Audio.Volume = &half
			},
			check: func(t *testing.T, d config.ConfigDiff) {
				if !d.AudioChanged {
					t.Errorf("diff = %+v, want audio change", d)
				}
			},
		},
		{
			name: "restart sections",
			mutate: func(c *config.Config) {
				c.Providers.LLM.Model = "gemini-2.5-pro"
				c.Server.ListenAddr = ":9191"
				c.Audio.TickInterval = time.Second
			},
			check: func(t *testing.T, d config.ConfigDiff) {
				want := []string{"providers", "server", "audio.tick_interval"}
				if !slices.Equal(d.RestartRequired, want) {
					t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
				}
			},
		},
		{
			name:   "vision",
			mutate: func(c *config.Config) { c.Vision.OutputPath = "elsewhere.mp4" },
			check: func(t *testing.T, d config.ConfigDiff) {
				if !slices.Equal(d.RestartRequired, []string{"vision"}) {
					t.Errorf("RestartRequired = %v, want [vision]", d.RestartRequired)
				}
			},
		},
		{
			name: "limits and format",
			mutate: func(c *config.Config) {
				c.Assistant.HistoryTokens = 2000
				c.Narration.SampleRate = 44100
			},
			check: func(t *testing.T, d config.ConfigDiff) {
				want := []string{"assistant.limits", "narration.format"}
				if !slices.Equal(d.RestartRequired, want) {
					t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
				}
				if d.PersonaChanged || d.NarrationChanged {
					t.Errorf("diff = %+v, want restart only", d)
				}
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			old := config.Default()
			updated := config.Default()
			tc.mutate(updated)
			tc.check(t, config.Diff(old, updated))
		})
	}
}
