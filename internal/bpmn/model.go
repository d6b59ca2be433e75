// Package bpmn parses the executable subset of BPMN 2.0 XML with the activiti extensions.
package bpmn

type ElementType string

const (
	StartEvent             ElementType = "startEvent"
	EndEvent               ElementType = "endEvent"
	UserTask               ElementType = "userTask"
	ServiceTask            ElementType = "serviceTask"
	ScriptTask             ElementType = "scriptTask"
	ReceiveTask            ElementType = "receiveTask"
	ManualTask             ElementType = "manualTask"
	Task                   ElementType = "task"
	IntermediateThrowEvent ElementType = "intermediateThrowEvent"
	IntermediateCatchEvent ElementType = "intermediateCatchEvent"
	ExclusiveGateway       ElementType = "exclusiveGateway"
	ParallelGateway        ElementType = "parallelGateway"
	CallActivity           ElementType = "callActivity"
)

// Definitions is one parsed BPMN document.
type Definitions struct {
	TargetNamespace string
	// GraphicalNotation is set when the document carries BPMN DI shapes.
	GraphicalNotation bool
	Processes         []*Process
}

type Process struct {
	ID            string
	Name          string
	Documentation string
	Executable    bool
	Initial       *Element
	Elements      map[string]*Element
	Flows         map[string]*SequenceFlow

	flowOrder []string
}

func (p *Process) Element(id string) (*Element, bool) {
	el, ok := p.Elements[id]
	return el, ok
}

type Element struct {
	ID            string
	Name          string
	Type          ElementType
	Documentation string
	Async         bool
	DefaultFlow   string

	Incoming []*SequenceFlow
	Outgoing []*SequenceFlow

	UserTask  *UserTaskDef
	Service   *ServiceDef
	Script    *ScriptDef
	Timer     *TimerDef
	Call      *CallDef
	Terminate bool
}

// WaitState reports elements that park the execution until an external trigger.
func (e *Element) WaitState() bool {
	switch e.Type {
	case UserTask, ReceiveTask:
		return true
	case IntermediateCatchEvent:
		return true
	}
	return false
}

type UserTaskDef struct {
	Assignee        string
	Owner           string
	CandidateUsers  []string
	CandidateGroups []string
	Priority        string
	DueDate         string
	FormKey         string
	Category        string
}

type ServiceDef struct {
	Expression         string
	DelegateExpression string
	Class              string
	ResultVariable     string
}

type ScriptDef struct {
	Format         string
	Script         string
	ResultVariable string
}

// TimerDef holds exactly one of Duration (ISO-8601) or Date. Either may be an expression.
type TimerDef struct {
	Duration string
	Date     string
}

type CallDef struct {
	CalledElement string
	In            []IOParameter
	Out           []IOParameter
}

type IOParameter struct {
	Source           string
	SourceExpression string
	Target           string
}

type SequenceFlow struct {
	ID        string
	Name      string
	SourceRef string
	TargetRef string
	Condition string
	Source    *Element
	Target    *Element
}
