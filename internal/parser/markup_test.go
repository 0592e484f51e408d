package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGreetingProducesSayThenEmote(t *testing.T) {
	actions := Parse(`Greetings, traveler. *bows*`)
	require.Len(t, actions, 2)
	assert.Equal(t, ActionSpeech, actions[0].Kind)
	assert.Equal(t, "Greetings, traveler.", actions[0].Text)
	assert.Equal(t, ActionEmote, actions[1].Kind)
	assert.Equal(t, "bows", actions[1].Text)
}

func TestParseFirstPersonEmoteRewrittenThirdPerson(t *testing.T) {
	actions := Parse(`*I smile warmly*`)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionEmote, actions[0].Kind)
	assert.Equal(t, "smiles warmly", actions[0].Text)
}

func TestParseEmoteVerbGetsEsSuffix(t *testing.T) {
	for verb, want := range map[string]string{
		"watch": "watches",
		"wash":  "washes",
		"fix":   "fixes",
		"buzz":  "buzzes",
		"kiss":  "kisses",
		"wave":  "waves",
	} {
		actions := Parse("*I " + verb + "*")
		require.Len(t, actions, 1, verb)
		assert.Equal(t, want, actions[0].Text, verb)
	}
}

func TestParseQuotedAsteriskSpanReclassifiedAsSpeech(t *testing.T) {
	actions := Parse(`*"I won't go back there"*`)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionSpeech, actions[0].Kind)
	assert.Equal(t, "I won't go back there", actions[0].Text)
}

func TestParseCommandMarkup(t *testing.T) {
	actions := Parse(`[cmd:go north]`)
	require.Len(t, actions, 1)
	require.Equal(t, ActionCommand, actions[0].Kind)
	assert.Equal(t, "go", actions[0].Command.Name)
	assert.Equal(t, "north", actions[0].Command.Args)
}

func TestParseCommandMarkupBraceForm(t *testing.T) {
	actions := Parse(`{cmd:attack goblin}`)
	require.Len(t, actions, 1)
	assert.Equal(t, "attack", actions[0].Command.Name)
	assert.Equal(t, "goblin", actions[0].Command.Args)
}

func TestParseForbiddenCommandSilentlyDropped(t *testing.T) {
	actions := Parse(`[cmd:quit]`)
	assert.Empty(t, actions)
}

func TestParseForbiddenSayEmoteMarkupDropped(t *testing.T) {
	actions := Parse(`[cmd:say hello]`)
	assert.Empty(t, actions)
}

func TestParseGoalSet(t *testing.T) {
	actions := Parse(`[goal:hunt wolf]`)
	require.Len(t, actions, 1)
	require.Equal(t, ActionGoal, actions[0].Kind)
	assert.Equal(t, GoalKindSet, actions[0].Goal.Kind)
	assert.Equal(t, "hunt", actions[0].Goal.GoalType)
	assert.Equal(t, "wolf", actions[0].Goal.Target)
}

func TestParseGoalClearAll(t *testing.T) {
	actions := Parse(`[goal:clear]`)
	require.Len(t, actions, 1)
	assert.Equal(t, GoalKindClearAll, actions[0].Goal.Kind)
}

func TestParseGoalClearType(t *testing.T) {
	actions := Parse(`[goal:clear hunt]`)
	require.Len(t, actions, 1)
	assert.Equal(t, GoalKindClear, actions[0].Goal.Kind)
	assert.Equal(t, "hunt", actions[0].Goal.GoalType)
}

func TestParseGoalDoneWithTypeClearsThatType(t *testing.T) {
	actions := Parse(`[goal:done hunt]`)
	require.Len(t, actions, 1)
	assert.Equal(t, GoalKindClear, actions[0].Goal.Kind)
	assert.Equal(t, "hunt", actions[0].Goal.GoalType)
}

func TestParseGoalBareDoneClearsAll(t *testing.T) {
	actions := Parse(`[goal:none]`)
	require.Len(t, actions, 1)
	assert.Equal(t, GoalKindClearAll, actions[0].Goal.Kind)
}

func TestParsePlanWithGoalTypePrefix(t *testing.T) {
	actions := Parse(`[plan:deliver:find alice|give package]`)
	require.Len(t, actions, 1)
	require.Equal(t, ActionPlan, actions[0].Kind)
	assert.Equal(t, "deliver", actions[0].Plan.GoalType)
	assert.Equal(t, []string{"find alice", "give package"}, actions[0].Plan.Steps)
}

func TestParsePlanWithoutGoalTypePrefix(t *testing.T) {
	actions := Parse(`[plan:find alice|give package]`)
	require.Len(t, actions, 1)
	assert.Equal(t, "", actions[0].Plan.GoalType)
	assert.Equal(t, []string{"find alice", "give package"}, actions[0].Plan.Steps)
}

func TestParsePlanColonInStepNoFalsePrefixWhenPipeBeforeColon(t *testing.T) {
	// Before the first ':' is "find alice|give" which contains '|', so no
	// goal-type prefix is detected per the documented scanning rule.
	actions := Parse(`[plan:find alice|give:package]`)
	require.Len(t, actions, 1)
	assert.Equal(t, "", actions[0].Plan.GoalType)
	assert.Equal(t, []string{"find alice", "give:package"}, actions[0].Plan.Steps)
}

func TestParseStepDone(t *testing.T) {
	actions := Parse(`[step:done]`)
	require.Len(t, actions, 1)
	require.Equal(t, ActionStep, actions[0].Kind)
	assert.Equal(t, StepDone, actions[0].Step.Action)
	assert.Equal(t, "", actions[0].Step.GoalType)
}

func TestParseStepWithGoalTypePrefix(t *testing.T) {
	actions := Parse(`[step:deliver:next]`)
	require.Len(t, actions, 1)
	assert.Equal(t, "deliver", actions[0].Step.GoalType)
	assert.Equal(t, StepNext, actions[0].Step.Action)
}

func TestParseCapsAtThreeActions(t *testing.T) {
	actions := Parse(`[cmd:go north][cmd:go south][cmd:go east][cmd:go west]`)
	assert.Len(t, actions, MaxActionsPerResponse)
}

func TestParseBracketedGoalOverlapWithBareFallbackKeepsBracketed(t *testing.T) {
	// goalBracketRe and goalBareRe both fire on "[goal:hunt wolf]"; the
	// bracketed match starts first so the bare duplicate is dropped and
	// "wolf" is not lost as a stray trailing token.
	actions := Parse(`[goal:hunt wolf] trailing text [cmd:go north]`)
	require.Len(t, actions, 3)
	assert.Equal(t, ActionGoal, actions[0].Kind)
	assert.Equal(t, "wolf", actions[0].Goal.Target)
	assert.Equal(t, ActionSpeech, actions[1].Kind)
	assert.Equal(t, ActionCommand, actions[2].Kind)
}

func TestParsePurePunctuationDropped(t *testing.T) {
	actions := Parse(`... ,,, ---`)
	assert.Empty(t, actions)
}

func TestParseLongSpeechTruncated(t *testing.T) {
	long := "This is a very long sentence that just keeps going and going and rambles on for quite a while past the limit we would like to enforce here today."
	actions := Parse(long + " " + long + " " + long)
	require.Len(t, actions, 1)
	assert.LessOrEqual(t, len(actions[0].Text), MaxSpeechChars)
	assert.Contains(t, actions[0].Text, "...")
}

func TestParseQuotesStrippedFromSpeech(t *testing.T) {
	actions := Parse(`"Stay back!"`)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionSpeech, actions[0].Kind)
	assert.Equal(t, "Stay back!", actions[0].Text)
}

func TestParseBareGoalBracketOptionalForm(t *testing.T) {
	actions := Parse(`goal:clear`)
	require.Len(t, actions, 1)
	assert.Equal(t, ActionGoal, actions[0].Kind)
	assert.Equal(t, GoalKindClearAll, actions[0].Goal.Kind)
}
