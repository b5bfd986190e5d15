package render

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/lipgloss"

	"github.com/codeGROOVE-dev/prstack/pkg/prstack"
)

// Phase says whether an indicator carries a resolved chain.
type Phase int

// Indicator phases.
const (
	PhaseProvisional Phase = iota
	PhaseEnriched
)

func (p Phase) String() string {
	if p == PhaseEnriched {
		return "enriched"
	}
	return "provisional"
}

var (
	stackedBadge = lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#8250DF"))
	standardBadge = lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#1F883D"))
	branchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#0969DA"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#656D76"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#9A6700"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#D0D7DE")).Padding(0, 1)
)

// Indicator is one rendered stack indicator. A new instance is created on
// every render, so its expanded state starts collapsed each time.
type Indicator struct {
	messenger  Messenger
	Context    prstack.PRContext
	Marker     string
	Generation uint64
	Phase      Phase
	// NeedsCredential is set when the indicator offers to configure a token.
	NeedsCredential bool
	// Settled is set on a provisional indicator once no resolution is pending.
	Settled  bool
	expanded atomic.Bool
}

func newIndicator(marker string, gen uint64, pr prstack.PRContext, phase Phase, needsCredential bool, m Messenger) *Indicator {
	return &Indicator{
		Marker:          marker,
		Generation:      gen,
		Context:         pr,
		Phase:           phase,
		NeedsCredential: needsCredential,
		messenger:       m,
	}
}

// Toggle flips the lineage diagram between expanded and collapsed.
func (i *Indicator) Toggle() bool {
	for {
		old := i.expanded.Load()
		if i.expanded.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// Expanded reports whether the lineage diagram is shown.
func (i *Indicator) Expanded() bool {
	return i.expanded.Load()
}

// RequestCredential asks the host to open its options surface. It reports
// whether a message was sent.
func (i *Indicator) RequestCredential() bool {
	if !i.NeedsCredential || i.messenger == nil {
		return false
	}
	i.messenger.Send(Message{Action: ActionOpenOptions})
	return true
}

// Label returns the badge text.
func (i *Indicator) Label() string {
	if i.Context.IsStackedPR {
		return "STACKED"
	}
	return "STANDARD"
}

// Summary returns a one-line description of the lineage.
func (i *Indicator) Summary() string {
	chain := i.Context.BranchChain
	if chain.Len() == 0 {
		return i.Context.HeadBranch + " → " + i.Context.BaseBranch
	}
	s := strings.Join(chain.Names(), " → ")
	if chain.Truncated {
		s += " → …"
	}
	return s
}

// Resolving reports whether a lineage resolution is still expected.
func (i *Indicator) Resolving() bool {
	return i.Phase == PhaseProvisional && !i.NeedsCredential && !i.Settled
}

// View renders the indicator for a terminal.
func (i *Indicator) View() string {
	badge := standardBadge.Render(i.Label())
	if i.Context.IsStackedPR {
		badge = stackedBadge.Render(i.Label())
	}

	lines := []string{badge + " " + branchStyle.Render(i.Summary())}

	chain := i.Context.BranchChain
	switch {
	case i.Phase == PhaseEnriched && chain.Len() > 0:
		hint := "show lineage"
		if i.Expanded() {
			hint = "hide lineage"
		}
		lines = append(lines, mutedStyle.Render(fmt.Sprintf("%d branches, %d deep  [%s]", chain.Len(), chain.Depth(), hint)))
		if i.Expanded() {
			lines = append(lines, diagram(chain))
		}
	case i.NeedsCredential:
		lines = append(lines, warnStyle.Render("Add a GitHub token to see the full lineage"))
	case i.Settled:
	default:
		lines = append(lines, mutedStyle.Render("resolving lineage…"))
	}

	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func diagram(chain *prstack.BranchChain) string {
	var b strings.Builder
	for idx, n := range chain.Nodes {
		if idx > 0 {
			b.WriteString(mutedStyle.Render("│"))
			b.WriteByte('\n')
		}
		glyph := "●"
		if n.BaseBranch == "" {
			glyph = "◆"
		}
		sha := n.SHA
		if len(sha) > 7 {
			sha = sha[:7]
		}
		line := glyph + " " + branchStyle.Render(n.Name)
		if sha != "" {
			line += " " + mutedStyle.Render(sha)
		}
		if n.PullRequest != nil {
			line += " " + mutedStyle.Render(fmt.Sprintf("#%d %s", n.PullRequest.Number, n.PullRequest.State))
		}
		b.WriteString(line)
		if idx < len(chain.Nodes)-1 {
			b.WriteByte('\n')
		}
	}
	if chain.Truncated {
		b.WriteByte('\n')
		b.WriteString(warnStyle.Render("… truncated (cycle or too deep)"))
	}
	return b.String()
}
