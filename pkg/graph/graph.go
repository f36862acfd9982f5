// Package graph holds the immutable step graph of a published workflow.
package graph

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/dripflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

var (
	ErrDuplicateStep                = errors.New("duplicate step id")
	ErrUnknownParent                = errors.New("parent step is not part of the graph")
	ErrCycle                        = errors.New("step graph contains a cycle")
	ErrStepNotFound                 = errors.New("step not found")
	ErrBranchWithoutBranchingParent = errors.New("branch condition set on a step whose parent does not branch")
	ErrInvalidBranch                = errors.New("invalid branch condition")
	ErrMissingBranch                = errors.New("step under a branching step has no branch condition")
	ErrInvalidStepConfig            = errors.New("invalid step config")
)

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Graph is a validated, read-only step graph. Nodes are stored in topological order and
// indexed by id.
type Graph struct {
	nodes    []*models.StepNode
	index    map[string]int
	children map[string][]int
}

// Build validates steps and orders them parents first, ties broken by Number and then ID.
func Build(steps []*models.StepNode) (*Graph, error) {
	byID := make(map[string]*models.StepNode, len(steps))

	for _, step := range steps {
		if _, exists := byID[step.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, step.ID)
		}

		byID[step.ID] = step
	}

	for _, step := range steps {
		err := validateStep(step, byID)
		if err != nil {
			return nil, err
		}
	}

	ordered, err := topologicalOrder(steps)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		nodes:    ordered,
		index:    make(map[string]int, len(ordered)),
		children: make(map[string][]int),
	}

	for i, node := range ordered {
		g.index[node.ID] = i

		if node.HasParent() {
			g.children[*node.ParentID] = append(g.children[*node.ParentID], i)
		}
	}

	return g, nil
}

func validateStep(step *models.StepNode, byID map[string]*models.StepNode) error {
	if step.Config == nil {
		return fmt.Errorf("%w: step %s has no config", ErrInvalidStepConfig, step.ID)
	}

	err := configValidator.Struct(step.Config)
	if err != nil {
		return fmt.Errorf("%w: step %s: %w", ErrInvalidStepConfig, step.ID, err)
	}

	var parent *models.StepNode

	if step.HasParent() {
		var ok bool

		parent, ok = byID[*step.ParentID]
		if !ok {
			return fmt.Errorf("%w: step %s references %s", ErrUnknownParent, step.ID, *step.ParentID)
		}
	}

	if step.BranchCondition == nil {
		if parent != nil && parent.Kind().IsBranching() {
			return fmt.Errorf("%w: %s under %s", ErrMissingBranch, step.ID, parent.ID)
		}

		return nil
	}

	if !step.BranchCondition.Valid() {
		return fmt.Errorf("%w: step %s has %q", ErrInvalidBranch, step.ID, *step.BranchCondition)
	}

	if parent == nil || !parent.Kind().IsBranching() {
		return fmt.Errorf("%w: %s", ErrBranchWithoutBranchingParent, step.ID)
	}

	return nil
}

func compareSteps(a, b *models.StepNode) int {
	return cmp.Or(cmp.Compare(a.Number, b.Number), cmp.Compare(a.ID, b.ID))
}

func topologicalOrder(steps []*models.StepNode) ([]*models.StepNode, error) {
	children := make(map[string][]*models.StepNode)

	var ready []*models.StepNode

	for _, step := range steps {
		if step.HasParent() {
			children[*step.ParentID] = append(children[*step.ParentID], step)
		} else {
			ready = append(ready, step)
		}
	}

	ordered := make([]*models.StepNode, 0, len(steps))

	for len(ready) > 0 {
		slices.SortFunc(ready, compareSteps)

		next := ready[0]
		ready = ready[1:]

		ordered = append(ordered, next)
		ready = append(ready, children[next.ID]...)
	}

	// Every node has at most one parent, so nodes never reached from a root sit on a cycle.
	if len(ordered) != len(steps) {
		return nil, ErrCycle
	}

	return ordered, nil
}

// Resolve returns the node with the given id.
func (g *Graph) Resolve(id string) (*models.StepNode, error) {
	i, ok := g.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}

	return g.nodes[i], nil
}

// ChildrenOf returns the direct children of id in topological order.
func (g *Graph) ChildrenOf(id string) []*models.StepNode {
	indexes := g.children[id]
	children := make([]*models.StepNode, 0, len(indexes))

	for _, i := range indexes {
		children = append(children, g.nodes[i])
	}

	return children
}

// Parent returns the parent of id, or nil for a root or an unknown id.
func (g *Graph) Parent(id string) *models.StepNode {
	node, err := g.Resolve(id)
	if err != nil || !node.HasParent() {
		return nil
	}

	parent, err := g.Resolve(*node.ParentID)
	if err != nil {
		return nil
	}

	return parent
}

// Nodes returns all nodes, parents before children.
func (g *Graph) Nodes() []*models.StepNode {
	return slices.Clone(g.nodes)
}

func (g *Graph) Len() int {
	return len(g.nodes)
}
