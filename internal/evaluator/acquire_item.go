package evaluator

import (
	"fmt"
	"strings"

	"github.com/hollowmere/npccore/internal/npctypes"
)

// acquireItemKeywords are the step-text phrases AcquireItem applies to.
var acquireItemKeywords = []string{"get ", "take ", "pick up", "acquire"}

// AcquireItem is Complete once an item matching the step's target
// name/alias/short description is present in the NPC's inventory.
type AcquireItem struct{}

func (AcquireItem) Name() string { return "acquire_item" }

func (AcquireItem) AppliesToGoal(string) bool { return true }

func (AcquireItem) AppliesToStep(stepText string) bool {
	return containsAnyFold(stepText, acquireItemKeywords)
}

func (AcquireItem) Evaluate(_ *npctypes.NpcGoal, stepText string, snap Snapshot) Result {
	target := parseAcquireTarget(stepText)
	if target == "" {
		return Result{Status: NotApplicable}
	}
	if snap.Npc == nil || snap.Npc.Inventory == nil {
		return Result{Status: Blocked, Reason: "inventory unknown"}
	}
	for _, it := range snap.Npc.Inventory.Items {
		names := append([]string{it.Name, it.ShortDesc}, it.Aliases...)
		for _, name := range names {
			if fuzzyEquals(name, target) {
				return Result{Status: Complete, Reason: fmt.Sprintf("now carrying %s", it.Name)}
			}
		}
	}
	return Result{Status: InProgress, Reason: fmt.Sprintf("still need %s", target)}
}

func parseAcquireTarget(stepText string) string {
	lower := strings.ToLower(stepText)
	for _, kw := range acquireItemKeywords {
		if idx := strings.Index(lower, kw); idx != -1 {
			rest := stepText[idx+len(kw):]
			return strings.TrimSpace(rest)
		}
	}
	return ""
}
