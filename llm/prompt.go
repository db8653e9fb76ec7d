package llm

import (
	"fmt"
	"strings"
)

// maxCacheBreakpoints is the number of interval-spaced history messages
// that receive a cache-control marker in addition to the system message,
// which is always cached.
const maxCacheBreakpoints = 3

// BuildIdentityMessage renders the `<agent_identity>` preamble every agent
// loop prepends to its system prompt, grounding the model in which agent
// it is and what it was delegated to do.
func BuildIdentityMessage(agentID, agentName, agentType string) string {
	return fmt.Sprintf(
		"<agent_identity>\nYou are agent %q (id: %s), type %q. Act only within "+
			"the scope of your own task; do not assume the identity or context "+
			"of any other agent in the graph.\n</agent_identity>",
		agentName, agentID, agentType,
	)
}

// supportsVisionModels lists model name substrings known to accept image
// content; matched case-insensitively against the configured model name.
var supportsVisionModels = []string{"claude-3", "claude-opus", "claude-sonnet", "gpt-4o", "gpt-4-vision", "gemini"}

// ModelSupportsVision reports whether modelName is known to accept inline
// image content.
func ModelSupportsVision(modelName string) bool {
	lower := strings.ToLower(modelName)
	for _, m := range supportsVisionModels {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// FilterVisionContent strips image attachments from messages when the
// target model doesn't support vision input, leaving the rest of the
// message untouched. It never mutates its argument.
func FilterVisionContent(messages []Message, modelName string) []Message {
	if ModelSupportsVision(modelName) {
		return messages
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		if len(m.Images) == 0 {
			out[i] = m
			continue
		}
		copyMsg := m
		copyMsg.Images = nil
		out[i] = copyMsg
	}
	return out
}

// CalculateCacheInterval picks the spacing, in messages, between cache
// breakpoints so that at most maxCacheBreakpoints land across the whole
// history: a short history gets no interior breakpoints at all (the
// system message's cache marker already covers it economically), a long
// one gets breakpoints spread evenly across its length.
func CalculateCacheInterval(historyLen int) int {
	if historyLen <= maxCacheBreakpoints {
		return 0
	}
	interval := historyLen / (maxCacheBreakpoints + 1)
	if interval < 1 {
		interval = 1
	}
	return interval
}

// PrepareCachedMessages returns a copy of messages with CacheBreakpoint set
// on the system message (always) plus up to maxCacheBreakpoints
// interval-spaced messages further into the history, mirroring a
// prompt-caching vendor protocol's points-of-interest marking scheme.
func PrepareCachedMessages(messages []Message) []Message {
	out := make([]Message, len(messages))
	copy(out, messages)

	for i := range out {
		if out[i].Role == RoleSystem {
			out[i].CacheBreakpoint = true
		}
	}

	interval := CalculateCacheInterval(len(out))
	if interval == 0 {
		return out
	}

	marked := 0
	for i := interval; i < len(out) && marked < maxCacheBreakpoints; i += interval {
		out[i].CacheBreakpoint = true
		marked++
	}
	return out
}

// AssembledPrompt is the final input handed to the completion transport:
// system preamble, identity, and the (cache-marked, vision-filtered)
// conversation history. The history is not compressed or truncated.
type AssembledPrompt struct {
	System   string
	Messages []Message

	// Tools lists the tools the model may call this turn. Populated by the
	// caller (see scan.llmCaller), not by AssemblePrompt itself, since the
	// tool catalog lives outside this package.
	Tools []ToolDef
}

// AssemblePrompt builds the full prompt for one agent loop iteration,
// applying vision filtering and cache-breakpoint placement in that order
// (filtering first, since a stripped image must not count toward cache
// spacing computed over the final message list).
func AssemblePrompt(systemPrompt string, agentID, agentName, agentType, modelName string, history []Message) AssembledPrompt {
	identity := BuildIdentityMessage(agentID, agentName, agentType)
	system := systemPrompt
	if identity != "" {
		system = strings.TrimSpace(systemPrompt + "\n\n" + identity)
	}

	filtered := FilterVisionContent(history, modelName)
	cached := PrepareCachedMessages(filtered)

	return AssembledPrompt{System: system, Messages: cached}
}
