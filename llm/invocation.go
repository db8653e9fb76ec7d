package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// stopSequence is the sentinel the completion transport is asked to stop
// generation on: once the model emits a closing function tag, anything it
// might generate after is speculative and discarded.
const stopSequence = "</function>"

// functionBlockPattern matches one `<function name="...">...</function>`
// block, non-greedily so a match never spans past its own closing tag even
// when the model (incorrectly) emits more than one block.
var functionBlockPattern = regexp.MustCompile(`(?s)<function\s+name="([^"]+)">(.*?)</function>`)

// parameterPattern matches one `<parameter name="...">value</parameter>`
// element inside a function block.
var parameterPattern = regexp.MustCompile(`(?s)<parameter\s+name="([^"]+)">(.*?)</parameter>`)

// FunctionCall is a parsed tool invocation request from model output.
type FunctionCall struct {
	Name      string
	Arguments map[string]string
}

// StopSequences returns the stop sequence list a completion request should
// be configured with so the transport truncates generation right after a
// function call closes.
func StopSequences() []string {
	return []string{stopSequence}
}

// TruncateAtStopSequence drops everything in text after the first
// `</function>`, keeping the tag itself, matching the behavior of a
// transport that doesn't honor stop sequences server-side.
func TruncateAtStopSequence(text string) string {
	idx := strings.Index(text, stopSequence)
	if idx == -1 {
		return text
	}
	return text[:idx+len(stopSequence)]
}

// ParseFirstFunctionCall extracts the first `<function>` block in text and
// parses its parameters. Per spec.md §4.3, any additional `<function>`
// blocks in the same response are ignored outright: only the first is
// ever dispatched. Returns ok=false if no function block is present.
func ParseFirstFunctionCall(text string) (call FunctionCall, ok bool, err error) {
	text = TruncateAtStopSequence(text)
	match := functionBlockPattern.FindStringSubmatch(text)
	if match == nil {
		return FunctionCall{}, false, nil
	}

	name := strings.TrimSpace(match[1])
	if name == "" {
		return FunctionCall{}, false, fmt.Errorf("llm: function block has empty name")
	}

	params := make(map[string]string)
	for _, p := range parameterPattern.FindAllStringSubmatch(match[2], -1) {
		params[strings.TrimSpace(p[1])] = strings.TrimSpace(p[2])
	}

	return FunctionCall{Name: name, Arguments: params}, true, nil
}

// emptyResponseCorrectiveMessage is injected into the conversation when
// the model returns a response with neither content nor a function call,
// nudging it to either respond or act instead of looping silently.
const emptyResponseCorrectiveMessage = "Your last response had no content and no tool call. " +
	"Respond with either a message to the user or a <function> call."

// EmptyResponseCorrectiveMessage returns the corrective text appended to
// the conversation after an empty assistant turn (see
// agent.State.HasEmptyLastMessages).
func EmptyResponseCorrectiveMessage() string {
	return emptyResponseCorrectiveMessage
}

// ApproachingMaxIterationsWarning returns the warning text injected once an
// agent crosses its iteration-budget threshold, telling it how many
// iterations remain.
func ApproachingMaxIterationsWarning(remaining int) string {
	return fmt.Sprintf(
		"You have %d iterations remaining before this agent is forcibly stopped. "+
			"Wrap up your current task and call agent_finish if you are done.",
		remaining,
	)
}
