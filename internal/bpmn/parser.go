package bpmn

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/grand-thief-cash/procflow/internal/apperr"
)

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
	Text     string     `xml:",chardata"`
}

// attr looks an attribute up by local name, so "activiti:assignee" and "assignee" match.
func (n *xmlNode) attr(local string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == local {
			return strings.TrimSpace(a.Value)
		}
	}
	return ""
}

func (n *xmlNode) child(local string) *xmlNode {
	for i := range n.Children {
		if n.Children[i].XMLName.Local == local {
			return &n.Children[i]
		}
	}
	return nil
}

func (n *xmlNode) text() string { return strings.TrimSpace(n.Text) }

var unsupported = map[string]bool{
	"boundaryEvent":     true,
	"subProcess":        true,
	"adHocSubProcess":   true,
	"transaction":       true,
	"inclusiveGateway":  true,
	"eventBasedGateway": true,
	"complexGateway":    true,
	"sendTask":          true,
	"businessRuleTask":  true,
}

// Parse reads a BPMN document. Non-executable processes are skipped.
func Parse(data []byte) (*Definitions, error) {
	var root xmlNode
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		return nil, apperr.IllegalArgument("Error parsing XML: %v", err)
	}
	if root.XMLName.Local != "definitions" {
		return nil, apperr.IllegalArgument("Root element must be 'definitions', got '%s'", root.XMLName.Local)
	}
	defs := &Definitions{TargetNamespace: root.attr("targetNamespace")}
	for i := range root.Children {
		n := &root.Children[i]
		switch n.XMLName.Local {
		case "process":
			if strings.EqualFold(n.attr("isExecutable"), "false") {
				continue
			}
			p, err := parseProcess(n)
			if err != nil {
				return nil, err
			}
			defs.Processes = append(defs.Processes, p)
		case "BPMNDiagram":
			defs.GraphicalNotation = true
		}
	}
	return defs, nil
}

func parseProcess(n *xmlNode) (*Process, error) {
	p := &Process{
		ID:         n.attr("id"),
		Name:       n.attr("name"),
		Executable: true,
		Elements:   make(map[string]*Element),
		Flows:      make(map[string]*SequenceFlow),
	}
	if p.ID == "" {
		return nil, apperr.IllegalArgument("Process has no id")
	}
	seen := map[string]bool{}
	var starts []*Element

	for i := range n.Children {
		c := &n.Children[i]
		local := c.XMLName.Local
		id := c.attr("id")
		if unsupported[local] {
			return nil, apperr.IllegalArgument("Unsupported BPMN element '%s' (id '%s') in process '%s'", local, id, p.ID)
		}
		if local == "documentation" {
			p.Documentation = c.text()
			continue
		}
		if local == "sequenceFlow" {
			if err := checkID(seen, id, local, p.ID); err != nil {
				return nil, err
			}
			f := &SequenceFlow{ID: id, Name: c.attr("name"), SourceRef: c.attr("sourceRef"), TargetRef: c.attr("targetRef")}
			if ce := c.child("conditionExpression"); ce != nil {
				f.Condition = ce.text()
			}
			p.Flows[id] = f
			p.flowOrder = append(p.flowOrder, id)
			continue
		}
		el, ok, err := parseElement(c)
		if err != nil {
			return nil, fmt.Errorf("process '%s': %w", p.ID, err)
		}
		if !ok {
			continue
		}
		if err := checkID(seen, id, local, p.ID); err != nil {
			return nil, err
		}
		p.Elements[id] = el
		if el.Type == StartEvent {
			starts = append(starts, el)
		}
	}

	switch len(starts) {
	case 0:
		return nil, apperr.IllegalArgument("Process '%s' has no start event", p.ID)
	case 1:
		p.Initial = starts[0]
	default:
		return nil, apperr.IllegalArgument("Process '%s' has multiple start events", p.ID)
	}
	if err := link(p); err != nil {
		return nil, err
	}
	return p, nil
}

func checkID(seen map[string]bool, id, local, process string) error {
	if id == "" {
		return apperr.IllegalArgument("Element '%s' in process '%s' has no id", local, process)
	}
	if seen[id] {
		return apperr.IllegalArgument("Duplicate id '%s' in process '%s'", id, process)
	}
	seen[id] = true
	return nil
}

// link resolves flow endpoints in document order of the flows and validates defaults.
func link(p *Process) error {
	for _, id := range p.flowOrder {
		f := p.Flows[id]
		src, ok := p.Elements[f.SourceRef]
		if !ok {
			return apperr.IllegalArgument("Sequence flow '%s' references unknown source '%s'", f.ID, f.SourceRef)
		}
		dst, ok := p.Elements[f.TargetRef]
		if !ok {
			return apperr.IllegalArgument("Sequence flow '%s' references unknown target '%s'", f.ID, f.TargetRef)
		}
		f.Source, f.Target = src, dst
		src.Outgoing = append(src.Outgoing, f)
		dst.Incoming = append(dst.Incoming, f)
	}
	for _, el := range p.Elements {
		if el.DefaultFlow == "" {
			continue
		}
		found := false
		for _, f := range el.Outgoing {
			if f.ID == el.DefaultFlow {
				found = true
				break
			}
		}
		if !found {
			return apperr.IllegalArgument("Default flow '%s' of '%s' is not an outgoing sequence flow", el.DefaultFlow, el.ID)
		}
	}
	return nil
}

func parseElement(c *xmlNode) (*Element, bool, error) {
	t := ElementType(c.XMLName.Local)
	el := &Element{
		ID:          c.attr("id"),
		Name:        c.attr("name"),
		Type:        t,
		Async:       strings.EqualFold(c.attr("async"), "true"),
		DefaultFlow: c.attr("default"),
	}
	if d := c.child("documentation"); d != nil {
		el.Documentation = d.text()
	}
	if c.child("multiInstanceLoopCharacteristics") != nil || c.child("standardLoopCharacteristics") != nil {
		return nil, false, apperr.IllegalArgument("Activity '%s': loop and multi-instance characteristics are not supported", el.ID)
	}

	switch t {
	case StartEvent:
		if hasEventDefinition(c) {
			return nil, false, apperr.IllegalArgument("Start event '%s': only none start events are supported", el.ID)
		}
	case EndEvent:
		switch {
		case c.child("terminateEventDefinition") != nil:
			el.Terminate = true
		case hasEventDefinition(c):
			return nil, false, apperr.IllegalArgument("End event '%s': only none and terminate end events are supported", el.ID)
		}
	case UserTask:
		el.UserTask = parseUserTask(c)
	case ServiceTask:
		el.Service = &ServiceDef{
			Expression:         c.attr("expression"),
			DelegateExpression: c.attr("delegateExpression"),
			Class:              c.attr("class"),
			ResultVariable:     firstNonEmpty(c.attr("resultVariableName"), c.attr("resultVariable")),
		}
		if el.Service.Expression == "" && el.Service.DelegateExpression == "" && el.Service.Class == "" {
			return nil, false, apperr.IllegalArgument("Service task '%s' needs an expression, delegateExpression or class", el.ID)
		}
	case ScriptTask:
		format := c.attr("scriptFormat")
		if !strings.EqualFold(format, "lua") {
			return nil, false, apperr.IllegalArgument("Script task '%s': unsupported script format '%s'", el.ID, format)
		}
		def := &ScriptDef{Format: "lua", ResultVariable: c.attr("resultVariable")}
		if s := c.child("script"); s != nil {
			def.Script = s.text()
		}
		el.Script = def
	case IntermediateCatchEvent:
		if td := c.child("timerEventDefinition"); td != nil {
			timer, err := parseTimer(el.ID, td)
			if err != nil {
				return nil, false, err
			}
			el.Timer = timer
		}
	case CallActivity:
		call := &CallDef{CalledElement: c.attr("calledElement")}
		if call.CalledElement == "" {
			return nil, false, apperr.IllegalArgument("Call activity '%s' has no calledElement", el.ID)
		}
		if ext := c.child("extensionElements"); ext != nil {
			for i := range ext.Children {
				io := &ext.Children[i]
				p := IOParameter{Source: io.attr("source"), SourceExpression: io.attr("sourceExpression"), Target: io.attr("target")}
				switch io.XMLName.Local {
				case "in":
					call.In = append(call.In, p)
				case "out":
					call.Out = append(call.Out, p)
				}
			}
		}
		el.Call = call
	case ReceiveTask, ManualTask, Task, IntermediateThrowEvent, ExclusiveGateway, ParallelGateway:
	default:
		return nil, false, nil
	}
	return el, true, nil
}

func hasEventDefinition(c *xmlNode) bool {
	for i := range c.Children {
		if strings.HasSuffix(c.Children[i].XMLName.Local, "EventDefinition") {
			return true
		}
	}
	return false
}

func parseTimer(id string, td *xmlNode) (*TimerDef, error) {
	t := &TimerDef{}
	if n := td.child("timeDuration"); n != nil {
		t.Duration = n.text()
	}
	if n := td.child("timeDate"); n != nil {
		t.Date = n.text()
	}
	if td.child("timeCycle") != nil {
		return nil, apperr.IllegalArgument("Timer '%s': timeCycle is not supported", id)
	}
	if t.Duration == "" && t.Date == "" {
		return nil, apperr.IllegalArgument("Timer '%s' has no timeDuration or timeDate", id)
	}
	return t, nil
}

func parseUserTask(c *xmlNode) *UserTaskDef {
	def := &UserTaskDef{
		Assignee:        c.attr("assignee"),
		Owner:           c.attr("owner"),
		CandidateUsers:  splitList(c.attr("candidateUsers")),
		CandidateGroups: splitList(c.attr("candidateGroups")),
		Priority:        c.attr("priority"),
		DueDate:         c.attr("dueDate"),
		FormKey:         c.attr("formKey"),
		Category:        c.attr("category"),
	}
	for i := range c.Children {
		role := &c.Children[i]
		expr := formalExpression(role)
		switch role.XMLName.Local {
		case "humanPerformer":
			if def.Assignee == "" {
				def.Assignee = expr
			}
		case "potentialOwner":
			for _, part := range splitList(expr) {
				switch {
				case strings.HasPrefix(part, "user(") && strings.HasSuffix(part, ")"):
					def.CandidateUsers = append(def.CandidateUsers, strings.TrimSpace(part[5:len(part)-1]))
				case strings.HasPrefix(part, "group(") && strings.HasSuffix(part, ")"):
					def.CandidateGroups = append(def.CandidateGroups, strings.TrimSpace(part[6:len(part)-1]))
				default:
					def.CandidateGroups = append(def.CandidateGroups, part)
				}
			}
		}
	}
	return def
}

func formalExpression(role *xmlNode) string {
	rae := role.child("resourceAssignmentExpression")
	if rae == nil {
		return ""
	}
	if fe := rae.child("formalExpression"); fe != nil {
		return fe.text()
	}
	return ""
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
