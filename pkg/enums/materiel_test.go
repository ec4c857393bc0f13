package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMaterielStatus(t *testing.T) {
	for _, status := range MaterielStatuses() {
		parsed, err := ParseMaterielStatus(string(status))
		require.NoError(t, err)
		assert.Equal(t, status, parsed)
		assert.True(t, parsed.IsValid())
	}

	_, err := ParseMaterielStatus("broken")
	require.Error(t, err)
	_, err = ParseMaterielStatus("AVAILABLE")
	require.Error(t, err)
	assert.False(t, MaterielStatus("").IsValid())
}

func TestParseMaterielLogAction(t *testing.T) {
	actions := MaterielLogActions()
	require.Len(t, actions, 5)
	for _, action := range actions {
		parsed, err := ParseMaterielLogAction(action.String())
		require.NoError(t, err)
		assert.Equal(t, action, parsed)
	}

	_, err := ParseMaterielLogAction("lost")
	require.Error(t, err)
}

func TestMaterielStatusesReturnsCopy(t *testing.T) {
	statuses := MaterielStatuses()
	statuses[0] = "mutated"
	assert.Equal(t, MaterielStatusAvailable, MaterielStatuses()[0])
}
