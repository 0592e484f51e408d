package capability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanIsBitwiseAnd(t *testing.T) {
	s := Set(0).With(CanSpeak, CanWander)
	assert.True(t, s.Can(CanSpeak))
	assert.True(t, s.Can(CanWander))
	assert.False(t, s.Can(CanAttack))
}

func TestWithoutRemovesFlag(t *testing.T) {
	s := Set(0).With(CanSpeak, CanEmote).Without(CanSpeak)
	assert.False(t, s.Can(CanSpeak))
	assert.True(t, s.Can(CanEmote))
}

func TestBuiltinPresets(t *testing.T) {
	r := NewRegistry()

	humanoid, ok := r.Preset(PresetHumanoid)
	require.True(t, ok)
	assert.True(t, humanoid.Can(CanSpeak))
	assert.True(t, humanoid.Can(CanUseDoors))

	animal, ok := r.Preset("Animal") // case-insensitive lookup
	require.True(t, ok)
	assert.False(t, animal.Can(CanSpeak))
	assert.True(t, animal.Can(CanFlee))

	_, ok = r.Preset("nonexistent")
	assert.False(t, ok)
}

func TestRegisterCustomPreset(t *testing.T) {
	r := NewRegistry()
	r.Register("Guard", Set(0).With(CanAttack, CanSpeak))
	s, ok := r.Preset("guard")
	require.True(t, ok)
	assert.True(t, s.Can(CanAttack))
}

func TestActionInventoryMentionsForbiddenSpeech(t *testing.T) {
	animalPreset, _ := NewRegistry().Preset(PresetAnimal)
	inv := ActionInventory(animalPreset)
	assert.True(t, strings.Contains(inv, "You CANNOT speak"))
	assert.True(t, strings.Contains(inv, "You can flee from combat"))
}
