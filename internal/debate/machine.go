package debate

import (
	"context"
	"fmt"
)

// NodeFunc is a state-machine node handler. Handlers mutate the state they
// are given; a handler whose precondition is unmet must no-op and leave the
// state unchanged rather than fail.
type NodeFunc func(ctx context.Context, s *State) error

// Handlers binds collaborator-backed behavior to each node. The machine
// itself only sequences them; all I/O lives in the handlers supplied by the
// orchestration driver. Execute is the terminal action and is parameterized
// so the same pipeline serves both the optimization debate (commit) and the
// splitting debate (propose-split).
type Handlers struct {
	// Ingress loads or verifies the original artifact.
	Ingress NodeFunc
	// ContextAssembly retrieves knowledge snippets, once per run.
	ContextAssembly NodeFunc
	// Drafting copies the original into the iteration's draft.
	Drafting NodeFunc
	// QACritique runs the quality critique against the draft.
	QACritique NodeFunc
	// DeveloperCritique runs the feasibility critique against the draft.
	DeveloperCritique NodeFunc
	// Synthesis folds critiques into the refined artifact and appends the
	// iteration snapshot to history.
	Synthesis NodeFunc
	// Validation computes confidence and increments the iteration counter.
	Validation NodeFunc
	// Execute performs the terminal action exactly once.
	Execute NodeFunc
}

// Machine sequences the debate nodes over a run's state.
type Machine struct {
	handlers Handlers
	observer func(Node, *State)
}

// NewMachine creates a machine with the given node handlers.
func NewMachine(handlers Handlers) *Machine {
	return &Machine{handlers: handlers}
}

// SetObserver registers a callback invoked when a node is entered. Used for
// progress reporting; a nil observer is fine.
func (m *Machine) SetObserver(fn func(Node, *State)) {
	m.observer = fn
}

// NextAfterValidation is the deterministic transition predicate evaluated
// after validation. Convergence (confidence above threshold with a clean
// violation list) terminates regardless of iteration count; otherwise the
// debate loops until the iteration ceiling forces termination.
func NextAfterValidation(confidence float64, violationCount, iteration int) Node {
	if confidence > ConvergenceThreshold && violationCount == 0 {
		return NodeExecution
	}
	if iteration < MaxIterations {
		return NodeDrafting
	}
	return NodeExecution
}

// Run drives the deterministic flow: ingress → context_assembly → the debate
// loop (drafting → qa_critique → developer_critique → synthesis →
// validation) → execution. Node errors abort the run immediately; there is
// no partial-iteration resume.
func (m *Machine) Run(ctx context.Context, s *State) error {
	if err := m.step(ctx, NodeIngress, s); err != nil {
		return err
	}
	if err := m.step(ctx, NodeContextAssembly, s); err != nil {
		return err
	}

	for {
		before := s.Iteration
		for _, node := range []Node{
			NodeDrafting, NodeQACritique, NodeDeveloperCritique,
			NodeSynthesis, NodeValidation,
		} {
			if err := m.step(ctx, node, s); err != nil {
				return err
			}
		}

		if NextAfterValidation(s.Confidence, len(s.Violations), s.Iteration) == NodeExecution {
			break
		}
		if s.Iteration == before {
			// Validation never ran (missing upstream artifact), so looping
			// again cannot make progress.
			break
		}
	}

	if err := m.step(ctx, NodeExecution, s); err != nil {
		return err
	}
	m.observe(NodeTerminal, s)
	return nil
}

// step enters a node: checks the precondition, then runs the handler. A node
// with an unmet precondition or no handler passes the state through
// unchanged.
func (m *Machine) step(ctx context.Context, node Node, s *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.observe(node, s)

	if !m.ready(node, s) {
		return nil
	}
	handler := m.handlerFor(node)
	if handler == nil {
		return nil
	}
	if err := handler(ctx, s); err != nil {
		return fmt.Errorf("%s: %w", node, err)
	}
	return nil
}

// ready reports whether the node's required upstream artifacts exist.
func (m *Machine) ready(node Node, s *State) bool {
	switch node {
	case NodeIngress:
		return true
	case NodeContextAssembly:
		return s.Original != nil
	case NodeDrafting:
		return s.Original != nil
	case NodeQACritique, NodeDeveloperCritique:
		return s.Draft != nil
	case NodeSynthesis:
		return s.Draft != nil
	case NodeValidation:
		return s.Draft != nil
	case NodeExecution:
		return !s.Executed
	default:
		return false
	}
}

func (m *Machine) handlerFor(node Node) NodeFunc {
	switch node {
	case NodeIngress:
		return m.handlers.Ingress
	case NodeContextAssembly:
		return m.handlers.ContextAssembly
	case NodeDrafting:
		return m.handlers.Drafting
	case NodeQACritique:
		return m.handlers.QACritique
	case NodeDeveloperCritique:
		return m.handlers.DeveloperCritique
	case NodeSynthesis:
		return m.handlers.Synthesis
	case NodeValidation:
		return m.handlers.Validation
	case NodeExecution:
		return m.handlers.Execute
	default:
		return nil
	}
}

func (m *Machine) observe(node Node, s *State) {
	if m.observer != nil {
		m.observer(node, s)
	}
}

// RunAgentic drives the supervisor-routed variant: every boundary asks the
// supervisor for the next action. The iteration ceiling and the terminal
// nature of execution are enforced locally regardless of what the decision
// collaborator returns.
func (m *Machine) RunAgentic(ctx context.Context, s *State, sup *Supervisor) error {
	if err := m.step(ctx, NodeIngress, s); err != nil {
		return err
	}
	if err := m.step(ctx, NodeContextAssembly, s); err != nil {
		return err
	}

	// Bound on total node visits so a pathological decider cannot spin the
	// loop even within the iteration ceiling.
	const maxSteps = 64

	for steps := 0; steps < maxSteps; steps++ {
		decision, err := sup.Route(ctx, s)
		if err != nil {
			return err
		}
		s.LastAction = decision.NextAction

		node, done := nodeForAction(decision.NextAction)
		if done {
			m.observe(NodeTerminal, s)
			return nil
		}
		if err := m.step(ctx, node, s); err != nil {
			return err
		}
		if node == NodeExecution {
			m.observe(NodeTerminal, s)
			return nil
		}
	}
	return fmt.Errorf("agentic routing exceeded %d steps without terminating", 64)
}

// nodeForAction maps a supervisor action to its node. ActionEnd maps to
// done=true.
func nodeForAction(action Action) (Node, bool) {
	switch action {
	case ActionDraft:
		return NodeDrafting, false
	case ActionQACritique:
		return NodeQACritique, false
	case ActionDeveloperCritique:
		return NodeDeveloperCritique, false
	case ActionSynthesize:
		return NodeSynthesis, false
	case ActionValidate:
		return NodeValidation, false
	case ActionExecute, ActionProposeSplit:
		return NodeExecution, false
	case ActionEnd:
		return NodeTerminal, true
	default:
		return NodeTerminal, true
	}
}
