// Package parser extracts ordered speech/emote/command/goal/plan/step
// markup from raw LLM completions and turns it into a bounded, ordered
// list of executable actions.
package parser

import (
	"regexp"
	"sort"
	"strings"
)

// ActionKind discriminates the parsed action variants.
type ActionKind string

const (
	ActionSpeech  ActionKind = "speech"
	ActionEmote   ActionKind = "emote"
	ActionCommand ActionKind = "command"
	ActionGoal    ActionKind = "goal"
	ActionPlan    ActionKind = "plan"
	ActionStep    ActionKind = "step"
)

// Action is one parsed, ordered unit of response output.
type Action struct {
	Kind ActionKind

	// Populated for ActionSpeech / ActionEmote.
	Text string

	// Populated for ActionCommand.
	Command *CommandMarkup

	// Populated for ActionGoal.
	Goal *GoalDirective

	// Populated for ActionPlan.
	Plan *PlanDirective

	// Populated for ActionStep.
	Step *StepDirective
}

// CommandMarkup is a parsed [cmd:name args] / {cmd:name args} directive.
type CommandMarkup struct {
	Name string
	Args string
}

// GoalDirective kinds.
const (
	GoalKindSet      = "set"
	GoalKindClearAll = "clear_all"
	GoalKindClear    = "clear_type"
)

// GoalDirective is a parsed [goal:...] directive.
type GoalDirective struct {
	Kind     string
	GoalType string
	Target   string
}

// PlanDirective is a parsed [plan:[type:]step1|step2|...] directive.
type PlanDirective struct {
	GoalType string // "" when no prefix was present
	Steps    []string
}

// StepDirective actions.
const (
	StepDone     = "done"
	StepComplete = "complete"
	StepSkip     = "skip"
	StepNext     = "next"
)

// StepDirective is a parsed [step:[type:]done|complete|skip|next] directive.
type StepDirective struct {
	GoalType string // "" when no prefix was present
	Action   string
}

// MaxActionsPerResponse is the hard cap on executed actions per LLM
// completion.
const MaxActionsPerResponse = 3

// MaxSpeechSentences and MaxSpeechChars bound truncated speech segments.
const (
	MaxSpeechSentences = 3
	MaxSpeechChars     = 300
)

// ForbiddenCommands is the case-insensitive set of command names the
// parser refuses to ever dispatch Entries never produce
// feedback — they are dropped before they reach the executor.
var ForbiddenCommands = map[string]struct{}{
	"quit": {}, "logout": {}, "exit": {}, "password": {}, "save": {},
	"delete": {}, "suicide": {}, "patch": {}, "stat": {}, "destruct": {},
	"reset": {}, "goto": {}, "pwd": {}, "ls": {}, "cd": {}, "cat": {},
	"more": {}, "edit": {}, "ledit": {}, "perf": {},
	"say": {}, "emote": {}, "me": {}, "'": {},
}

func isForbidden(name string) bool {
	_, ok := ForbiddenCommands[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

var (
	cmdRe = regexp.MustCompile(`(?i)[\[{]\s*cmd\s*:\s*([^\s\]}]+)\s*([^\]}]*)[\]}]`)

	// Bracketed goal/plan/step — the primary, reliable form.
	goalBracketRe = regexp.MustCompile(`(?i)[\[{]\s*goal\s*:\s*([^\]}]*)[\]}]`)
	planBracketRe = regexp.MustCompile(`(?i)[\[{]\s*plan\s*:\s*([^\]}]*)[\]}]`)
	stepBracketRe = regexp.MustCompile(`(?i)[\[{]\s*step\s*:\s*([^\]}]*)[\]}]`)

	// Bracket-optional fallback — brackets are optional for
	// goal/plan/step. A single non-whitespace token after the colon is
	// captured; multi-word targets/step lists are only recognized in the
	// bracketed form.
	goalBareRe = regexp.MustCompile(`(?i)\bgoal:(\S+)`)
	planBareRe = regexp.MustCompile(`(?i)\bplan:(\S+)`)
	stepBareRe = regexp.MustCompile(`(?i)\bstep:(\S+)`)

	emoteSpanRe  = regexp.MustCompile(`\*([^*]+)\*`)
	bracketQuoteRe = regexp.MustCompile(`\[\s*(["“][^\]]*?["”])\s*\]`)

	punctOnlyRe = regexp.MustCompile(`^[\s[:punct:]]*$`)
)

// Parse extracts the ordered action list from raw model output.
func Parse(raw string) []Action {
	spans := collectSpans(raw)
	spans = dropOverlaps(spans)

	var actions []Action
	cursor := 0

	emit := func(a Action) bool {
		if len(actions) >= MaxActionsPerResponse {
			return false
		}
		actions = append(actions, a)
		return true
	}

	for _, sp := range spans {
		if len(actions) >= MaxActionsPerResponse {
			break
		}
		for _, a := range speechAndEmoteActions(raw[cursor:sp.start]) {
			if !emit(a) {
				break
			}
		}
		if len(actions) < MaxActionsPerResponse {
			if a, ok := buildMarkupAction(sp); ok {
				emit(a)
			}
		}
		cursor = sp.end
	}

	if len(actions) < MaxActionsPerResponse {
		for _, a := range speechAndEmoteActions(raw[cursor:]) {
			if !emit(a) {
				break
			}
		}
	}

	return actions
}

// markupSpan carries enough to both sort/dedup and later build an Action.
type markupSpan struct {
	start, end int
	family     string // "cmd", "goal", "plan", "step"
	body       string
}

func collectSpans(raw string) []markupSpan {
	var spans []markupSpan

	for _, m := range cmdRe.FindAllStringSubmatchIndex(raw, -1) {
		spans = append(spans, markupSpan{start: m[0], end: m[1], family: "cmd", body: raw[m[0]:m[1]]})
	}
	addBracketed := func(re *regexp.Regexp, family string) {
		for _, m := range re.FindAllStringSubmatchIndex(raw, -1) {
			spans = append(spans, markupSpan{start: m[0], end: m[1], family: family, body: raw[m[0]:m[1]]})
		}
	}
	addBracketed(goalBracketRe, "goal")
	addBracketed(planBracketRe, "plan")
	addBracketed(stepBracketRe, "step")

	addBare := func(re *regexp.Regexp, family string) {
		for _, m := range re.FindAllStringSubmatchIndex(raw, -1) {
			spans = append(spans, markupSpan{start: m[0], end: m[1], family: family, body: raw[m[0]:m[1]]})
		}
	}
	addBare(goalBareRe, "goal")
	addBare(planBareRe, "plan")
	addBare(stepBareRe, "step")

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	return spans
}

// dropOverlaps removes overlapping spans, keeping the earliest-starting
// one in each overlapping cluster.
func dropOverlaps(spans []markupSpan) []markupSpan {
	var out []markupSpan
	lastEnd := -1
	for _, sp := range spans {
		if sp.start < lastEnd {
			continue
		}
		out = append(out, sp)
		lastEnd = sp.end
	}
	return out
}

func buildMarkupAction(sp markupSpan) (Action, bool) {
	switch sp.family {
	case "cmd":
		return buildCommandAction(sp.body)
	case "goal":
		return buildGoalAction(sp.body), true
	case "plan":
		return buildPlanAction(sp.body), true
	case "step":
		return buildStepAction(sp.body), true
	}
	return Action{}, false
}

func buildCommandAction(body string) (Action, bool) {
	m := cmdRe.FindStringSubmatch(body)
	if m == nil {
		return Action{}, false
	}
	name := strings.TrimSpace(m[1])
	args := strings.TrimSpace(m[2])
	if isForbidden(name) {
		return Action{}, false // silently dropped, no feedback
	}
	return Action{Kind: ActionCommand, Command: &CommandMarkup{Name: name, Args: args}}, true
}

func stripMarkupWrapper(body, keyword string) string {
	s := strings.TrimSpace(body)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "]")
	s = strings.TrimSuffix(s, "}")
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if idx := strings.Index(lower, keyword+":"); idx == 0 {
		s = s[len(keyword)+1:]
	}
	return strings.TrimSpace(s)
}

func buildGoalAction(body string) Action {
	content := stripMarkupWrapper(body, "goal")
	first, rest := splitFirstToken(content)
	firstLower := strings.ToLower(first)

	switch firstLower {
	case "clear":
		if rest == "" {
			return Action{Kind: ActionGoal, Goal: &GoalDirective{Kind: GoalKindClearAll}}
		}
		return Action{Kind: ActionGoal, Goal: &GoalDirective{Kind: GoalKindClear, GoalType: strings.ToLower(rest)}}
	case "done", "complete", "none":
		if rest == "" {
			return Action{Kind: ActionGoal, Goal: &GoalDirective{Kind: GoalKindClearAll}}
		}
		return Action{Kind: ActionGoal, Goal: &GoalDirective{Kind: GoalKindClear, GoalType: strings.ToLower(rest)}}
	default:
		return Action{Kind: ActionGoal, Goal: &GoalDirective{
			Kind:     GoalKindSet,
			GoalType: strings.ToLower(first),
			Target:   strings.ToLower(strings.TrimSpace(rest)),
		}}
	}
}

func buildPlanAction(body string) Action {
	content := stripMarkupWrapper(body, "plan")
	goalType, rest := splitGoalTypePrefix(content)
	var steps []string
	for _, s := range strings.Split(rest, "|") {
		s = strings.TrimSpace(s)
		if s != "" {
			steps = append(steps, s)
		}
	}
	return Action{Kind: ActionPlan, Plan: &PlanDirective{GoalType: goalType, Steps: steps}}
}

func buildStepAction(body string) Action {
	content := stripMarkupWrapper(body, "step")
	goalType, rest := splitGoalTypePrefix(content)
	action := strings.ToLower(strings.TrimSpace(rest))
	return Action{Kind: ActionStep, Step: &StepDirective{GoalType: goalType, Action: action}}
}

// splitGoalTypePrefix scans the segment before the first colon for the
// step delimiter '|'; if present, there is no goal-type prefix.
func splitGoalTypePrefix(content string) (goalType, rest string) {
	idx := strings.Index(content, ":")
	if idx < 0 {
		return "", content
	}
	candidate := content[:idx]
	if strings.Contains(candidate, "|") {
		return "", content
	}
	return strings.ToLower(strings.TrimSpace(candidate)), content[idx+1:]
}

func splitFirstToken(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return s, ""
	}
	return s[:idx], strings.TrimSpace(s[idx+1:])
}
