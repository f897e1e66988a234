package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ixrcore/runtime/internal/pathstore"
	"github.com/ixrcore/runtime/internal/xrerr"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

func newTestEngine() (*Engine, *pathstore.Store) {
	paths := pathstore.New()
	tpl := &Template{
		ProfilePath:         "/interaction_profiles/khr/simple_controller",
		PreferredForDevices: []string{"fixture-simple-controller"},
		Bindings: []TemplateBinding{
			{
				SubActionPath: xrtypes.SubActionLeft,
				SubPaths: []string{
					"/user/hand/left/input/select/click",
					"/user/hand/left/input/grip/pose",
				},
			},
			{
				SubActionPath: xrtypes.SubActionRight,
				SubPaths: []string{
					"/user/hand/right/input/select/click",
				},
			},
		},
	}
	return NewEngine(paths, []*Template{tpl}), paths
}

func TestSuggest_MatchesBindingBySubPath(t *testing.T) {
	e, paths := newTestEngine()
	profilePath := paths.GetOrCreate("/interaction_profiles/khr/simple_controller")
	selectPath := paths.GetOrCreate("/user/hand/left/input/select/click")

	err := e.Suggest(profilePath, []Suggestion{{ActionKey: 42, BindingPath: selectPath}})
	require.NoError(t, err)

	p, err := e.Get(profilePath)
	require.NoError(t, err)
	assert.True(t, p.Bindings[0].BoundTo(42))
	assert.False(t, p.Bindings[1].BoundTo(42))
}

func TestSuggest_ClearsPriorSuggestions(t *testing.T) {
	e, paths := newTestEngine()
	profilePath := paths.GetOrCreate("/interaction_profiles/khr/simple_controller")
	selectPath := paths.GetOrCreate("/user/hand/left/input/select/click")
	gripPath := paths.GetOrCreate("/user/hand/left/input/grip/pose")

	require.NoError(t, e.Suggest(profilePath, []Suggestion{{ActionKey: 1, BindingPath: selectPath}}))
	require.NoError(t, e.Suggest(profilePath, []Suggestion{{ActionKey: 2, BindingPath: gripPath}}))

	p, err := e.Get(profilePath)
	require.NoError(t, err)
	assert.False(t, p.Bindings[0].BoundTo(1), "first suggestion call must be cleared by the second")
	assert.True(t, p.Bindings[0].BoundTo(2))
}

func TestSuggest_UnknownProfileFails(t *testing.T) {
	e, paths := newTestEngine()
	unknown := paths.GetOrCreate("/interaction_profiles/nonexistent")

	err := e.Suggest(unknown, nil)
	require.Error(t, err)
	assert.True(t, xrerr.Is(err, xrerr.ValidationFailure))
}

func TestCandidatesForDevice_ReturnsPreferredProfiles(t *testing.T) {
	e, paths := newTestEngine()
	expect := paths.GetOrCreate("/interaction_profiles/khr/simple_controller")

	got := e.CandidatesForDevice("fixture-simple-controller")
	require.Len(t, got, 1)
	assert.Equal(t, expect, got[0])

	assert.Empty(t, e.CandidatesForDevice("unknown-device"))
}

func TestGet_LazilyInstantiatesOnce(t *testing.T) {
	e, paths := newTestEngine()
	profilePath := paths.GetOrCreate("/interaction_profiles/khr/simple_controller")

	p1, err := e.Get(profilePath)
	require.NoError(t, err)
	p2, err := e.Get(profilePath)
	require.NoError(t, err)
	assert.Same(t, p1, p2)
}
