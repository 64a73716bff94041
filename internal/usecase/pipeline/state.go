package pipeline

import "fmt"

// State is the lifecycle phase of one query run.
type State string

const (
	StatePending    State = "pending"
	StateEmbedding  State = "embedding"
	StateRetrieving State = "retrieving"
	StateReranking  State = "reranking"
	StateAssembling State = "assembling"
	StateGenerating State = "generating"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// transitions lists the allowed successor states. Stages run strictly in
// order; Failed is reachable from any non-terminal state.
var transitions = map[State][]State{
	StatePending:    {StateEmbedding, StateFailed},
	StateEmbedding:  {StateRetrieving, StateFailed},
	StateRetrieving: {StateReranking, StateFailed},
	StateReranking:  {StateAssembling, StateFailed},
	StateAssembling: {StateGenerating, StateFailed},
	StateGenerating: {StateDone, StateFailed},
	StateDone:       nil,
	StateFailed:     nil,
}

// stateMachine tracks one run through the pipeline.
type stateMachine struct {
	state State
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StatePending}
}

// transition advances to next or reports the violated ordering.
func (m *stateMachine) transition(next State) error {
	for _, allowed := range transitions[m.state] {
		if next == allowed {
			m.state = next
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", m.state, next)
}

// Terminal reports whether the run has finished.
func (m *stateMachine) Terminal() bool {
	return m.state == StateDone || m.state == StateFailed
}
