package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
)

func TestIndicator_Toggle(t *testing.T) {
	ind := newIndicator(DefaultMarker, 1, prstack.PRContext{}, PhaseEnriched, false, nil)
	assert.False(t, ind.Expanded())
	assert.True(t, ind.Toggle())
	assert.True(t, ind.Expanded())
	assert.False(t, ind.Toggle())
	assert.False(t, ind.Expanded())
}

func TestIndicator_View(t *testing.T) {
	pr := prstack.NewTrunkSet().Classify("acme", "widgets", "feature/base", "feature/top")

	tests := []struct {
		name     string
		pr       prstack.PRContext
		phase    Phase
		needs    bool
		expand   bool
		contains []string
		excludes []string
	}{
		{
			name:     "provisional with credential",
			pr:       pr,
			phase:    PhaseProvisional,
			contains: []string{"STACKED", "feature/top → feature/base", "resolving lineage"},
			excludes: []string{"Add a GitHub token"},
		},
		{
			name:     "provisional without credential",
			pr:       pr,
			phase:    PhaseProvisional,
			needs:    true,
			contains: []string{"STACKED", "Add a GitHub token"},
		},
		{
			name:     "enriched collapsed",
			pr:       pr.WithChain(chainOf("feature/top", "feature/base", "main")),
			phase:    PhaseEnriched,
			contains: []string{"3 branches, 2 deep", "show lineage"},
			excludes: []string{"#10 open"},
		},
		{
			name:     "enriched expanded",
			pr:       pr.WithChain(chainOf("feature/top", "feature/base", "main")),
			phase:    PhaseEnriched,
			expand:   true,
			contains: []string{"hide lineage", "#10 open", "#11 open", "sha-fea", "◆"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind := newIndicator(DefaultMarker, 1, tt.pr, tt.phase, tt.needs, nil)
			if tt.expand {
				ind.Toggle()
			}
			view := ind.View()
			for _, s := range tt.contains {
				assert.Contains(t, view, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, view, s)
			}
		})
	}
}

func TestIndicator_RequestCredential(t *testing.T) {
	var got []Message
	m := MessengerFunc(func(msg Message) { got = append(got, msg) })

	withToken := newIndicator(DefaultMarker, 1, prstack.PRContext{}, PhaseProvisional, false, m)
	assert.False(t, withToken.RequestCredential())

	noMessenger := newIndicator(DefaultMarker, 1, prstack.PRContext{}, PhaseProvisional, true, nil)
	assert.False(t, noMessenger.RequestCredential())

	needs := newIndicator(DefaultMarker, 1, prstack.PRContext{}, PhaseProvisional, true, m)
	assert.True(t, needs.RequestCredential())
	assert.Equal(t, []Message{{Action: ActionOpenOptions}}, got)
}

func TestMemoryDocument(t *testing.T) {
	doc := NewMemoryDocument("u", nil)
	_, err := doc.Extract()
	assert.ErrorIs(t, err, ErrMissingPageContext)

	doc.SetExtractor(staticPage(PageContext{Owner: "o", Repo: "r", Head: "h"}))
	_, err = doc.Extract()
	assert.ErrorIs(t, err, ErrMissingPageContext, "incomplete context")

	ind := newIndicator("m", 1, prstack.PRContext{}, PhaseProvisional, false, nil)
	assert.ErrorIs(t, doc.Insert("missing", ind), ErrMissingDOMTarget)

	changes := 0
	doc.OnChange(func() { changes++ })
	doc.AddAnchor("a")
	assert.NoError(t, doc.Insert("a", ind))
	assert.NoError(t, doc.Insert("a", newIndicator("other", 1, prstack.PRContext{}, PhaseProvisional, false, nil)))
	assert.Equal(t, 1, doc.Count("m"))
	assert.Equal(t, 1, doc.RemoveMarked("m"))
	assert.Equal(t, 0, doc.Count("m"))
	assert.Equal(t, 1, doc.Count("other"))
	assert.Equal(t, 3, changes)

	doc.SetURL("u2")
	assert.Equal(t, "u2", doc.URL())
	assert.Equal(t, 1, doc.Count("other"), "navigation leaves inserted nodes in place")
}
