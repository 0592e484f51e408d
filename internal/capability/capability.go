// Package capability implements the per-NPC permission bitmask and the
// action-inventory text the context builder embeds in prompts.
package capability

import "strings"

// Flag is a single permitted action kind.
type Flag uint32

const (
	CanSpeak Flag = 1 << iota
	CanEmote
	CanAttack
	CanFlee
	CanManipulateItems
	CanTrade
	CanFollow
	CanWander
	CanUseDoors
)

// Set is a bitmask of Flags.
type Set uint32

// Can reports whether every bit in flag is set (bitwise AND).
func (s Set) Can(flag Flag) bool {
	return Set(flag)&s == Set(flag)
}

// With returns a new Set with the given flags added.
func (s Set) With(flags ...Flag) Set {
	for _, f := range flags {
		s |= Set(f)
	}
	return s
}

// Without returns a new Set with the given flags removed.
func (s Set) Without(flags ...Flag) Set {
	for _, f := range flags {
		s &^= Set(f)
	}
	return s
}

// Preset names.
const (
	PresetAnimal   = "animal"
	PresetHumanoid = "humanoid"
	PresetBeast    = "beast"
	PresetMerchant = "merchant"
)

// builtinPresets are the four fixed presets.
var builtinPresets = map[string]Set{
	PresetAnimal:   Set(0).With(CanFlee, CanWander),
	PresetHumanoid: Set(0).With(CanSpeak, CanEmote, CanAttack, CanFlee, CanManipulateItems, CanTrade, CanFollow, CanWander, CanUseDoors),
	PresetBeast:    Set(0).With(CanAttack, CanFlee, CanWander),
	PresetMerchant: Set(0).With(CanSpeak, CanEmote, CanManipulateItems, CanTrade, CanWander, CanUseDoors),
}

// Registry holds the builtin presets plus any custom presets configuration
// registers, generalizing the fixed enum the distilled spec named (see
// SPEC_FULL.md "Capability presets as table").
type Registry struct {
	presets map[string]Set
}

// NewRegistry returns a registry pre-populated with the four builtin presets.
func NewRegistry() *Registry {
	r := &Registry{presets: make(map[string]Set, len(builtinPresets)+4)}
	for name, set := range builtinPresets {
		r.presets[name] = set
	}
	return r
}

// Register adds or overwrites a named preset.
func (r *Registry) Register(name string, set Set) {
	r.presets[strings.ToLower(name)] = set
}

// Preset looks up a preset by name (case-insensitive). ok is false for an
// unknown name.
func (r *Registry) Preset(name string) (Set, bool) {
	s, ok := r.presets[strings.ToLower(name)]
	return s, ok
}

// allFlags lists every flag with its prompt-facing description, in a
// stable order for deterministic prompt rendering.
var allFlags = []struct {
	flag Flag
	verb string // used in "You CANNOT <verb>" sentences
	noun string // used in the positive action-inventory listing
}{
	{CanSpeak, "speak — communicate only through sounds and body language", "speak (say things aloud)"},
	{CanEmote, "emote — no expressive gestures are available to you", "emote (perform expressive actions)"},
	{CanAttack, "attack — you have no means of fighting", "attack or kill hostile targets"},
	{CanFlee, "flee from combat — you cannot retreat", "flee from combat"},
	{CanManipulateItems, "pick up, drop, or use items", "get, drop, equip, or use items"},
	{CanTrade, "trade items", "give or trade items with others"},
	{CanFollow, "follow another creature", "follow another creature"},
	{CanWander, "move between rooms", "move between rooms (go/n/s/e/w/u/d)"},
	{CanUseDoors, "open or use doors", "open and use doors"},
}

// ActionInventory renders the prompt-facing description of what an NPC
// with the given capability set can and cannot do.
func ActionInventory(caps Set) string {
	var allowed, forbidden []string
	for _, f := range allFlags {
		if caps.Can(f.flag) {
			allowed = append(allowed, "You can "+f.noun+".")
		} else {
			forbidden = append(forbidden, "You CANNOT "+f.verb+".")
		}
	}
	var b strings.Builder
	for _, line := range allowed {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	for _, line := range forbidden {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
