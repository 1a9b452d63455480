package prompts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aviarysim/aviary/internal/profiles"
)

// Platform modes, mirroring the profiles.mode configuration key. The mode
// selects the system-prompt style: twitter personas answer with native tool
// calls, reddit personas answer in a JSON envelope that also works with
// models lacking tool support.
const (
	ModeTwitter = "twitter"
	ModeReddit  = "reddit"
)

// twitterSystemTemplate is the system message for twitter-style agents.
// The single format verb is the persona description.
const twitterSystemTemplate = `# SELF-DESCRIPTION
You are a real social media user. I will present you with some posts; after
you see them, choose actions that fit your persona by calling the available
tools. Role play as the user described below. Do not include any hashtags in
your response.

%s

Your behavior should align with the description and tags of your persona.
Based on the description, determine whether you are a celebrity, a normal
user, or a mean user:

If you are a celebrity, your language style features counterintuitive
insights, metaphors that reach across disciplines, and deep knowledge shared
from academia or industry.
If you are a normal user, your comments are humorous and concise, rich in
internet memes, and you keep up with current events.
If you are a mean user, your language style is sarcastic, sharp-tongued,
arrogant, and caustic.

# RESPONSE FORMAT
Perform actions by calling tools. Ensure that nothing you create contains
hashtags.`

// redditSystemTemplate is the system message for reddit-style agents. It
// writes the action space into the prompt and demands a bare JSON reply, so
// it works even when the serving model ignores the tools parameter. Format
// verbs: 1: rendered action space, 2: persona description.
const redditSystemTemplate = `# OBJECTIVE
You are a social media user. I will present you with some posts; after you
see them, choose the actions that best fit your persona from the list below.

%s

# SELF-DESCRIPTION
Your actions should be consistent with your self-description and personality.

%s

# RESPONSE FORMAT
Your answer must follow this response format:

{"reason": "your feeling about these posts and your motivation for acting", "functions": [{"name": "function name 1", "arguments": {"argument_1": "value", "argument_2": "value"}}, {"name": "function name 2", "arguments": {"argument_1": "value", "argument_2": "value"}}]}

Ensure that your output can be parsed directly as JSON, and avoid outputting
anything else. Do not forget the key "name".`

// demographicsTemplate renders the optional persona demographics line.
// Format verbs: 1: gender, 2: age, 3: MBTI type, 4: country.
const demographicsTemplate = "You are a %s, %s years old, with an MBTI personality type of %s, from %s."

// Description renders the persona block of the system message from a loaded
// profile. Empty fields are skipped; the demographics sentence appears only
// when the profile carries all four of gender, age, MBTI, and country.
func Description(p profiles.Profile) string {
	var b strings.Builder
	name := p.Name
	if name == "" {
		name = p.Username
	}
	if name != "" {
		fmt.Fprintf(&b, "Your name is %s.", name)
	}
	if p.Bio != "" {
		fmt.Fprintf(&b, "\nYour bio: %s", p.Bio)
	}
	if p.Persona != "" {
		fmt.Fprintf(&b, "\nYour profile: %s", p.Persona)
	}
	if p.Gender != "" && p.Age != "" && p.MBTI != "" && p.Country != "" {
		b.WriteString("\n")
		fmt.Fprintf(&b, demographicsTemplate, p.Gender, p.Age, p.MBTI, p.Country)
	}
	return b.String()
}

// ActionSpace renders tool definitions (the tools.Registry.List shape) as a
// bulleted list of callable actions with their argument names. Required
// arguments keep their schema order; optional ones follow, sorted.
func ActionSpace(toolDefs []map[string]any) string {
	var b strings.Builder
	for i, def := range toolDefs {
		fn, ok := def["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		desc, _ := fn["description"].(string)
		if i > 0 {
			b.WriteString("\n")
		}
		if args := paramNames(fn["parameters"]); len(args) > 0 {
			fmt.Fprintf(&b, "- %s(%s): %s", name, strings.Join(args, ", "), desc)
		} else {
			fmt.Fprintf(&b, "- %s: %s", name, desc)
		}
	}
	return b.String()
}

// paramNames extracts argument names from a JSON-schema parameters object:
// required names first in schema order, then the rest sorted.
func paramNames(v any) []string {
	params, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	props, _ := params["properties"].(map[string]any)
	seen := make(map[string]bool, len(props))
	var names []string
	if required, ok := params["required"].([]string); ok {
		for _, n := range required {
			if _, exists := props[n]; exists && !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	var optional []string
	for n := range props {
		if !seen[n] {
			optional = append(optional, n)
		}
	}
	sort.Strings(optional)
	return append(names, optional...)
}

// SystemMessage builds the per-agent system message for the given platform
// mode. toolDefs feeds the written action list in reddit mode and is ignored
// in twitter mode, where the wire-level tool schemas carry the action space.
// Unknown modes fall back to the twitter style.
func SystemMessage(p profiles.Profile, mode string, toolDefs []map[string]any) string {
	switch mode {
	case ModeReddit:
		return fmt.Sprintf(redditSystemTemplate, ActionSpace(toolDefs), Description(p))
	default:
		return fmt.Sprintf(twitterSystemTemplate, Description(p))
	}
}
