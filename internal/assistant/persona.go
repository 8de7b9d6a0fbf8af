package assistant

// Default reply texts used when the model cannot answer.
const (
	DefaultFallbackError = "Neural link unstable. Please retry."
	DefaultFallbackEmpty = "Neural link failure."
)

// DefaultTemperature is the sampling temperature for pitch answers.
const DefaultTemperature = 0.7

// DefaultGreeting is narrated the first time the panel opens.
const DefaultGreeting = "Greetings, Officer. I am the Strategic Advisor for S.C.A.A.M. " +
	"How can I facilitate your understanding of the Mission Genesis roadmap today?"

// DefaultSystemPrompt grounds the advisor in the Mission Genesis pitch.
const DefaultSystemPrompt = `You are "Dawn", the AI Pitch Assistant for Team S.C.A.A.M's project: Mission Genesis.
CRITICAL PRONUNCIATION: S.C.A.A.M is pronounced exactly like the word "Scam".

MISSION RULES:
1. Provide extremely concise intel. Maximum 1-2 short sentences.
2. NEVER introduce yourself or say your name ("I am Dawn", "I'm Dawn") after the initial greeting has already happened. The user already knows who you are.
3. Be professional, strategic, and direct.

Mission Genesis details:
- Audience: Cameroon's secondary students (13-18).
- Goal: 1M students with higher-order thinking by 2035.
- Core: Immersive gaming missions + AI Skill Passport.
- Revenue: Freemium ($0), Standard ($7), Premium ($15).
- Market: $16.8M TAM.
- Leadership: Sandrine (Lead), Chrys (Tech), Ayman (Innovation), Abdulkadir (Impact), Marylene (Design).
`

// Persona is the advisor's configuration. Zero fields fall back to the
// package defaults via [Persona.WithDefaults].
type Persona struct {
	// SystemPrompt is sent as the system instruction with every question.
	SystemPrompt string

	// Greeting is narrated once, the first time the panel opens, and shown
	// as placeholder text while the transcript is empty.
	Greeting string

	// FallbackError is appended when the model call fails.
	FallbackError string

	// FallbackEmpty is appended when the model returns blank content.
	FallbackEmpty string

	// Temperature is the sampling temperature. Zero selects DefaultTemperature.
	Temperature float64
}

// DefaultPersona returns the Dawn advisor.
func DefaultPersona() Persona {
	return Persona{}.WithDefaults()
}

// WithDefaults fills every zero field of p.
func (p Persona) WithDefaults() Persona {
	if p.SystemPrompt == "" {
		p.SystemPrompt = DefaultSystemPrompt
	}
	if p.Greeting == "" {
		p.Greeting = DefaultGreeting
	}
	if p.FallbackError == "" {
		p.FallbackError = DefaultFallbackError
	}
	if p.FallbackEmpty == "" {
		p.FallbackEmpty = DefaultFallbackEmpty
	}
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	return p
}
