package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEval_EmptyListAllows(t *testing.T) {
	assert.True(t, Eval(nil, HostFacts{OS: "linux"}))
	assert.True(t, Eval([]Rule{}, HostFacts{OS: "linux"}))
}

func TestEval_SingleOSMatch(t *testing.T) {
	list := []Rule{{Action: Disallow, OS: &OSMatch{Name: "osx"}}}

	assert.False(t, Eval(list, HostFacts{OS: "osx"}))
	assert.True(t, Eval(list, HostFacts{OS: "linux"}))
}

func TestEval_LaterRuleWins(t *testing.T) {
	list := []Rule{
		{Action: Allow},
		{Action: Disallow, OS: &OSMatch{Name: "windows"}},
	}

	assert.False(t, Eval(list, HostFacts{OS: "windows"}))
	assert.True(t, Eval(list, HostFacts{OS: "linux"}))
}

func TestEval_UnknownFeatureIsFalse(t *testing.T) {
	list := []Rule{{Action: Allow, Features: map[string]bool{"has_custom_resolution": true}}}

	assert.False(t, Eval(list, HostFacts{Features: nil}))
	assert.True(t, Eval(list, HostFacts{Features: map[string]bool{"has_custom_resolution": true}}))
}

func TestEval_IsPure(t *testing.T) {
	list := []Rule{{Action: Allow, OS: &OSMatch{Name: "linux"}}}
	h := HostFacts{OS: "linux"}

	first := Eval(list, h)
	second := Eval(list, h)
	assert.Equal(t, first, second)
}

func TestCurrentHost_MapsMojangVocabulary(t *testing.T) {
	h := CurrentHost(nil)
	assert.Contains(t, []string{"osx", "linux", "windows"}, h.OS)
}
