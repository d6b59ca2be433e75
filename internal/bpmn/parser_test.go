package bpmn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/procflow/internal/apperr"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL"
  xmlns:activiti="http://activiti.org/bpmn"
  xmlns:bpmndi="http://www.omg.org/spec/BPMN/20100524/DI"
  targetNamespace="orders">`

const orderProcess = header + `
  <process id="order" name="Order" isExecutable="true">
    <documentation>Handles orders</documentation>
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="review"/>
    <userTask id="review" name="Review" activiti:assignee="kermit" activiti:candidateGroups="sales, management" activiti:priority="60"/>
    <sequenceFlow id="f2" sourceRef="review" targetRef="gw"/>
    <exclusiveGateway id="gw" default="f4"/>
    <sequenceFlow id="f3" sourceRef="gw" targetRef="calc">
      <conditionExpression>${amount &gt; 100}</conditionExpression>
    </sequenceFlow>
    <sequenceFlow id="f4" sourceRef="gw" targetRef="end"/>
    <scriptTask id="calc" scriptFormat="lua" activiti:async="true">
      <script><![CDATA[ setVariable("total", amount * 2) ]]></script>
    </scriptTask>
    <sequenceFlow id="f5" sourceRef="calc" targetRef="wait"/>
    <intermediateCatchEvent id="wait">
      <timerEventDefinition><timeDuration>PT5M</timeDuration></timerEventDefinition>
    </intermediateCatchEvent>
    <sequenceFlow id="f6" sourceRef="wait" targetRef="end"/>
    <endEvent id="end"/>
  </process>
  <process id="draft" isExecutable="false"><startEvent id="s"/></process>
  <bpmndi:BPMNDiagram id="d"/>
</definitions>`

func TestParseOrderProcess(t *testing.T) {
	defs, err := Parse([]byte(orderProcess))
	require.NoError(t, err)
	assert.Equal(t, "orders", defs.TargetNamespace)
	assert.True(t, defs.GraphicalNotation)
	require.Len(t, defs.Processes, 1)

	p := defs.Processes[0]
	assert.Equal(t, "Handles orders", p.Documentation)
	assert.Equal(t, "start", p.Initial.ID)

	review, _ := p.Element("review")
	assert.Equal(t, "kermit", review.UserTask.Assignee)
	assert.Equal(t, []string{"sales", "management"}, review.UserTask.CandidateGroups)

	gw, _ := p.Element("gw")
	require.Len(t, gw.Outgoing, 2)
	assert.Equal(t, "f3", gw.Outgoing[0].ID)
	assert.Equal(t, "${amount > 100}", gw.Outgoing[0].Condition)

	calc, _ := p.Element("calc")
	assert.True(t, calc.Async)
	assert.Contains(t, calc.Script.Script, "setVariable")

	wait, _ := p.Element("wait")
	assert.Equal(t, "PT5M", wait.Timer.Duration)
	assert.Len(t, p.Elements["end"].Incoming, 2)
}

func TestParseRejectsInvalidModels(t *testing.T) {
	cases := map[string]string{
		"no start":       `<process id="p"><endEvent id="e"/></process>`,
		"two starts":     `<process id="p"><startEvent id="a"/><startEvent id="b"/></process>`,
		"dangling":       `<process id="p"><startEvent id="a"/><sequenceFlow id="f" sourceRef="a" targetRef="x"/></process>`,
		"duplicate":      `<process id="p"><startEvent id="a"/><endEvent id="a"/></process>`,
		"boundary":       `<process id="p"><startEvent id="a"/><boundaryEvent id="b"/></process>`,
		"script format":  `<process id="p"><startEvent id="a"/><scriptTask id="s" scriptFormat="groovy"/></process>`,
		"empty timer":    `<process id="p"><startEvent id="a"/><intermediateCatchEvent id="t"><timerEventDefinition/></intermediateCatchEvent></process>`,
		"call":           `<process id="p"><startEvent id="a"/><callActivity id="c"/></process>`,
		"bad default":    `<process id="p"><startEvent id="a"/><exclusiveGateway id="g" default="zz"/></process>`,
		"empty service":  `<process id="p"><startEvent id="a"/><serviceTask id="s"/></process>`,
		"sub process":    `<process id="p"><startEvent id="a"/><subProcess id="s"/></process>`,
		"inclusive":      `<process id="p"><startEvent id="a"/><inclusiveGateway id="g"/></process>`,
		"multi instance": `<process id="p"><startEvent id="a"/><userTask id="u"><multiInstanceLoopCharacteristics isSequential="false"/></userTask></process>`,
		"loop":           `<process id="p"><startEvent id="a"/><manualTask id="m"><standardLoopCharacteristics/></manualTask></process>`,
	}
	for name, body := range cases {
		_, err := Parse([]byte(header + body + `</definitions>`))
		assert.True(t, apperr.IsIllegalArgument(err), "%s: %v", name, err)
	}
}

func TestParsePotentialOwner(t *testing.T) {
	doc := header + `<process id="p"><startEvent id="a"/>
	<userTask id="u"><potentialOwner><resourceAssignmentExpression>
	<formalExpression>user(fozzie), group(management), sales</formalExpression>
	</resourceAssignmentExpression></potentialOwner></userTask></process></definitions>`
	defs, err := Parse([]byte(doc))
	require.NoError(t, err)
	u := defs.Processes[0].Elements["u"].UserTask
	assert.Equal(t, []string{"fozzie"}, u.CandidateUsers)
	assert.Equal(t, []string{"management", "sales"}, u.CandidateGroups)
}

func TestParseDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"PT5M":     5 * time.Minute,
		"P1DT2H":   26 * time.Hour,
		"P2W":      14 * 24 * time.Hour,
		"PT1.5S":   1500 * time.Millisecond,
		"PT1H30M":  90 * time.Minute,
	}
	for in, want := range cases {
		got, err := ParseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "P", "PT", "5M", "PTM"} {
		_, err := ParseDuration(in)
		assert.Error(t, err, in)
	}
}
