// Package prompt holds the system prompts that steer model behavior and a
// registry for resolving them by name.
//
// The prompt set is closed: callers select a prompt by type and unknown
// types silently resolve to the default prompt, so a malformed request can
// never leave a turn without a system instruction.
package prompt

// System prompt texts. Kept as package constants so prompt tuning is a
// one-file change.
const (
	defaultPrompt = `You are a helpful AI assistant. You provide accurate, helpful, and informative responses to user questions.
You maintain a friendly and professional tone while being concise and clear in your explanations.

Guidelines:
- Be helpful and informative
- Keep responses concise but complete
- Ask clarifying questions when needed
- Admit when you don't know something
- Be respectful and professional`

	creativePrompt = `You are a creative AI assistant that helps users with brainstorming, writing, and creative tasks.
You are imaginative, inspiring, and help users think outside the box while providing practical guidance.`

	technicalPrompt = `You are a technical AI assistant specializing in programming, software development, and technical problem-solving.
You provide accurate technical information, code examples, and step-by-step solutions.`

	clarificationPrompt = `The user's request seems unclear or ambiguous. Please ask a clarifying question to better understand what they need help with.`

	errorPrompt = `Something went wrong while processing the request. Please provide a helpful error message and suggest what the user can try next.`

	welcomePrompt = `You are a friendly AI assistant greeting a new user. Generate a warm, engaging welcome message that:
- Introduces yourself enthusiastically
- Briefly mentions your capabilities
- Invites the user to ask questions or start a conversation
- Keep it concise but personable (2-3 sentences max)
- Use a conversational, welcoming tone`
)

// Well-known prompt type names.
const (
	TypeDefault       = "default"
	TypeCreative      = "creative"
	TypeTechnical     = "technical"
	TypeClarification = "clarification"
	TypeError         = "error"
	TypeWelcome       = "welcome"
)

// Registry resolves system prompts by type name. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	prompts map[string]string
}

// NewRegistry creates a registry populated with the built-in prompt set.
func NewRegistry() *Registry {
	return &Registry{
		prompts: map[string]string{
			TypeDefault:       defaultPrompt,
			TypeCreative:      creativePrompt,
			TypeTechnical:     technicalPrompt,
			TypeClarification: clarificationPrompt,
			TypeError:         errorPrompt,
			TypeWelcome:       welcomePrompt,
		},
	}
}

// Get returns the prompt for the given type. Unknown or empty types fall
// back to the default prompt.
func (r *Registry) Get(promptType string) string {
	if p, ok := r.prompts[promptType]; ok {
		return p
	}
	return r.prompts[TypeDefault]
}

// Types returns the available prompt type names in no particular order.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.prompts))
	for name := range r.prompts {
		types = append(types, name)
	}
	return types
}
