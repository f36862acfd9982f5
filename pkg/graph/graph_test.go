package graph_test

import (
	"testing"

	"github.com/dukex/dripflow/pkg/graph"
	"github.com/dukex/dripflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func send(id string, number int) *models.StepNode {
	return &models.StepNode{
		ID:     id,
		Number: number,
		Config: models.SendEmailConfig{Subject: "s", Body: "b", EmailAccount: "sales@example.com"},
	}
}

func wait(id string, number int) *models.StepNode {
	return &models.StepNode{ID: id, Number: number, Config: models.WaitConfig{Delay: 1, Unit: models.WaitUnitDays}}
}

func check(id string, number int) *models.StepNode {
	return &models.StepNode{ID: id, Number: number, Config: models.CheckLinkClickedConfig{LinkURL: "https://example.com"}}
}

func under(node *models.StepNode, parent string) *models.StepNode {
	node.ParentID = &parent

	return node
}

func branch(node *models.StepNode, parent string, condition models.BranchCondition) *models.StepNode {
	node.ParentID = &parent
	node.BranchCondition = &condition

	return node
}

func ids(nodes []*models.StepNode) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.ID)
	}

	return out
}

func TestBuild_OrdersParentsBeforeChildren(t *testing.T) {
	g, err := graph.Build([]*models.StepNode{
		branch(send("yes", 1), "check", models.BranchYes),
		under(check("check", 3), "wait"),
		branch(send("no", 1), "check", models.BranchNo),
		under(wait("wait", 2), "intro"),
		send("intro", 10),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"intro", "wait", "check", "no", "yes"}, ids(g.Nodes()))
	assert.Equal(t, 5, g.Len())
}

func TestBuild_TiesBrokenByNumberThenID(t *testing.T) {
	g, err := graph.Build([]*models.StepNode{send("b", 1), send("a", 1), send("c", 0)})
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "a", "b"}, ids(g.Nodes()))
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name  string
		steps []*models.StepNode
		want  error
	}{
		{
			name:  "duplicate id",
			steps: []*models.StepNode{send("a", 1), wait("a", 2)},
			want:  graph.ErrDuplicateStep,
		},
		{
			name:  "unknown parent",
			steps: []*models.StepNode{under(send("a", 1), "ghost")},
			want:  graph.ErrUnknownParent,
		},
		{
			name:  "cycle",
			steps: []*models.StepNode{send("root", 0), under(send("a", 1), "b"), under(wait("b", 2), "a")},
			want:  graph.ErrCycle,
		},
		{
			name:  "self parent",
			steps: []*models.StepNode{under(send("a", 1), "a")},
			want:  graph.ErrCycle,
		},
		{
			name:  "branch under non branching parent",
			steps: []*models.StepNode{send("a", 1), branch(send("b", 2), "a", models.BranchYes)},
			want:  graph.ErrBranchWithoutBranchingParent,
		},
		{
			name:  "branch on root",
			steps: []*models.StepNode{{ID: "a", Config: models.WaitConfig{Delay: 1}, BranchCondition: ptr(models.BranchNo)}},
			want:  graph.ErrBranchWithoutBranchingParent,
		},
		{
			name:  "unknown branch label",
			steps: []*models.StepNode{check("c", 1), branch(send("b", 2), "c", "MAYBE")},
			want:  graph.ErrInvalidBranch,
		},
		{
			name:  "unconditional step under branching parent",
			steps: []*models.StepNode{check("c", 1), under(send("b", 2), "c")},
			want:  graph.ErrMissingBranch,
		},
		{
			name:  "missing config",
			steps: []*models.StepNode{{ID: "a"}},
			want:  graph.ErrInvalidStepConfig,
		},
		{
			name: "invalid config",
			steps: []*models.StepNode{{ID: "a", Config: models.SendEmailConfig{Subject: "s", Body: "b", EmailAccount: "not-an-address"}}},
			want: graph.ErrInvalidStepConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graph.Build(tt.steps)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGraph_ResolveChildrenParent(t *testing.T) {
	g, err := graph.Build([]*models.StepNode{
		send("intro", 1),
		under(check("check", 2), "intro"),
		branch(send("no", 4), "check", models.BranchNo),
		branch(send("yes", 3), "check", models.BranchYes),
	})
	require.NoError(t, err)

	node, err := g.Resolve("check")
	require.NoError(t, err)
	assert.Equal(t, models.StepKindCheckLinkClicked, node.Kind())

	_, err = g.Resolve("missing")
	require.ErrorIs(t, err, graph.ErrStepNotFound)

	assert.Equal(t, []string{"yes", "no"}, ids(g.ChildrenOf("check")))
	assert.Empty(t, g.ChildrenOf("yes"))

	assert.Equal(t, "check", g.Parent("yes").ID)
	assert.Nil(t, g.Parent("intro"))
	assert.Nil(t, g.Parent("missing"))
}

func TestGraph_NodesReturnsCopy(t *testing.T) {
	g, err := graph.Build([]*models.StepNode{send("a", 1), send("b", 2)})
	require.NoError(t, err)

	nodes := g.Nodes()
	nodes[0] = nil

	assert.Equal(t, "a", g.Nodes()[0].ID)
}

func TestBuild_EmptyGraph(t *testing.T) {
	g, err := graph.Build(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, g.Len())
}

func ptr[T any](v T) *T {
	return &v
}
