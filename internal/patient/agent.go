// Package patient provides a simulated respondent for automated
// interview runs.
package patient

import (
	"context"
	"fmt"
	"regexp"

	"github.com/abhisek/mindscale/internal/llm"
)

// persona instructs the model to answer as a mildly depressed
// respondent: short, colloquial, occasionally imprecise.
const persona = "你要扮演一位轻症抑郁症患者，会有精神科大夫对你进行问诊。你的回答应该尽可能简短和口语化，最好每次不超过30个字。你的表述可以有不专业的地方，比如可以混淆抑郁和焦虑的区别等等。"

// fallbackReply is returned when the model call fails, so a simulated
// run degrades instead of aborting mid-interview.
const fallbackReply = "对不起，我现在不太想说话……"

// idPattern is the harness id contract: AI001 through AI099.
var idPattern = regexp.MustCompile(`^AI0[0-9][0-9]$`)

// ValidID reports whether id matches the simulated-respondent id
// contract.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Agent is a simulated respondent. It keeps its own view of the
// dialogue so replies stay consistent across items.
type Agent struct {
	id       string
	provider llm.Provider
	history  []llm.Message
}

// NewAgent creates a simulated respondent with the given id.
func NewAgent(id string, provider llm.Provider) (*Agent, error) {
	if !ValidID(id) {
		return nil, fmt.Errorf("patient id %q must match AI001-AI099", id)
	}
	return &Agent{id: id, provider: provider}, nil
}

// ID returns the agent's respondent id.
func (a *Agent) ID() string { return a.id }

// Respond answers one interviewer message in character. A model
// failure degrades to a canned reply rather than an error, so the
// harness loop keeps moving.
func (a *Agent) Respond(ctx context.Context, interviewerMessage string) string {
	ctx = llm.WithPurpose(ctx, "patient-sim")

	a.history = append(a.history, llm.Message{Role: llm.RoleUser, Content: interviewerMessage})

	resp, err := a.provider.Generate(ctx, llm.Request{
		System:      persona,
		Messages:    a.history,
		MaxTokens:   1500,
		Temperature: 0.7,
	})
	if err != nil {
		return fallbackReply
	}

	reply := string(resp.Content)
	a.history = append(a.history, llm.Message{Role: llm.RoleAssistant, Content: reply})
	return reply
}
