package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/grand-thief-cash/procflow/infra/application/components/blobstore"
	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/config"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/dao"
	"github.com/grand-thief-cash/procflow/internal/dao/daotest"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL"
  xmlns:activiti="http://activiti.org/bpmn"
  targetNamespace="tests">`

const reviewProcess = header + `
  <process id="review" name="Parallel review">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="fork"/>
    <parallelGateway id="fork"/>
    <sequenceFlow id="f2" sourceRef="fork" targetRef="legal"/>
    <sequenceFlow id="f3" sourceRef="fork" targetRef="finance"/>
    <userTask id="legal" name="Legal"/>
    <userTask id="finance" name="Finance"/>
    <sequenceFlow id="f4" sourceRef="legal" targetRef="join"/>
    <sequenceFlow id="f5" sourceRef="finance" targetRef="join"/>
    <parallelGateway id="join"/>
    <sequenceFlow id="f6" sourceRef="join" targetRef="end"/>
    <endEvent id="end"/>
  </process>
</definitions>`

const approvalProcess = header + `
  <process id="approval">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="gw"/>
    <exclusiveGateway id="gw" default="toLow"/>
    <sequenceFlow id="toHigh" sourceRef="gw" targetRef="high">
      <conditionExpression>${amount &gt; 100}</conditionExpression>
    </sequenceFlow>
    <sequenceFlow id="toLow" sourceRef="gw" targetRef="low"/>
    <userTask id="high" name="Manager approval" activiti:candidateGroups="management"/>
    <userTask id="low" name="Clerk approval" activiti:assignee="${clerk}"/>
    <sequenceFlow id="f2" sourceRef="high" targetRef="end"/>
    <sequenceFlow id="f3" sourceRef="low" targetRef="end"/>
    <endEvent id="end"/>
  </process>
</definitions>`

const billingProcess = header + `
  <process id="billing">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="charge"/>
    <serviceTask id="charge" activiti:async="true" activiti:delegateExpression="${chargeCard}"/>
    <sequenceFlow id="f2" sourceRef="charge" targetRef="ship"/>
    <userTask id="ship" name="Ship"/>
    <sequenceFlow id="f3" sourceRef="ship" targetRef="end"/>
    <endEvent id="end"/>
  </process>
</definitions>`

const reminderProcess = header + `
  <process id="reminder">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="wait"/>
    <intermediateCatchEvent id="wait">
      <timerEventDefinition><timeDuration>PT5M</timeDuration></timerEventDefinition>
    </intermediateCatchEvent>
    <sequenceFlow id="f2" sourceRef="wait" targetRef="remind"/>
    <userTask id="remind" name="Remind"/>
    <sequenceFlow id="f3" sourceRef="remind" targetRef="end"/>
    <endEvent id="end"/>
  </process>
</definitions>`

const orderProcesses = header + `
  <process id="order">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="pack"/>
    <callActivity id="pack" calledElement="packing">
      <extensionElements>
        <activiti:in source="orderId" target="id"/>
        <activiti:out source="result" target="packResult"/>
      </extensionElements>
    </callActivity>
    <sequenceFlow id="f2" sourceRef="pack" targetRef="after"/>
    <userTask id="after" name="Notify customer"/>
    <sequenceFlow id="f3" sourceRef="after" targetRef="end"/>
    <endEvent id="end"/>
  </process>
  <process id="packing">
    <startEvent id="pstart"/>
    <sequenceFlow id="p1" sourceRef="pstart" targetRef="box"/>
    <userTask id="box" name="Box items"/>
    <sequenceFlow id="p2" sourceRef="box" targetRef="pend"/>
    <endEvent id="pend"/>
  </process>
</definitions>`

type harness struct {
	eng   *engine.Engine
	clock *clock.Mock
}

func newHarness(t *testing.T, processes ...string) *harness {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	eng := engine.NewEngine(config.Default(), dao.NewSet(daotest.Open(t))).WithClock(mock)
	for i, xml := range processes {
		_, err := eng.Deploy(context.Background(), engine.DeployRequest{
			Name:      "test",
			Resources: map[string][]byte{"process" + string(rune('a'+i)) + ".bpmn20.xml": []byte(xml)},
		})
		require.NoError(t, err)
	}
	return &harness{eng: eng, clock: mock}
}

func vars(t *testing.T, kv ...any) []engine.NamedValue {
	t.Helper()
	out := make([]engine.NamedValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		v, err := variable.Encode(kv[i+1])
		require.NoError(t, err)
		out = append(out, engine.NamedValue{Name: kv[i].(string), Value: v})
	}
	return out
}

func (h *harness) start(t *testing.T, key string, kv ...any) *engine.StartedInstance {
	t.Helper()
	pi, err := h.eng.StartProcessInstance(context.Background(), engine.StartRequest{
		ProcessDefinitionKey: key,
		Variables:            vars(t, kv...),
	})
	require.NoError(t, err)
	return pi
}

func (h *harness) tasks(t *testing.T, processInstanceID string) []*model.Task {
	t.Helper()
	list, _, err := h.eng.Tasks(context.Background(), &model.TaskQuery{ProcessInstanceID: processInstanceID}, query.Unpaged("id"))
	require.NoError(t, err)
	return list
}

func (h *harness) task(t *testing.T, processInstanceID, key string) *model.Task {
	t.Helper()
	for _, tk := range h.tasks(t, processInstanceID) {
		if tk.TaskDefinitionKey == key {
			return tk
		}
	}
	t.Fatalf("no task %q in process instance %s", key, processInstanceID)
	return nil
}

func (h *harness) jobs(t *testing.T, processInstanceID string) []*model.Job {
	t.Helper()
	list, _, err := h.eng.Jobs(context.Background(), &model.JobQuery{ProcessInstanceID: processInstanceID}, query.Unpaged("id"))
	require.NoError(t, err)
	return list
}

func TestParallelJoinWaitsForAllBranches(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, reviewProcess)
	pi := h.start(t, "review")
	require.False(t, pi.Ended)
	require.Len(t, h.tasks(t, pi.ID), 2)

	require.NoError(t, h.eng.CompleteTask(ctx, h.task(t, pi.ID, "legal").ID, nil))
	_, err := h.eng.ProcessInstance(ctx, pi.ID)
	require.NoError(t, err, "instance must wait at the join")
	require.Len(t, h.tasks(t, pi.ID), 1)

	require.NoError(t, h.eng.CompleteTask(ctx, h.task(t, pi.ID, "finance").ID, nil))
	_, err = h.eng.ProcessInstance(ctx, pi.ID)
	assert.True(t, apperr.IsNotFound(err))

	hpi, err := h.eng.HistoricProcessInstance(ctx, pi.ID)
	require.NoError(t, err)
	require.NotNil(t, hpi.EndTime)
	assert.Equal(t, "end", hpi.EndActivityID)
}

func TestExclusiveGatewayRouting(t *testing.T) {
	h := newHarness(t, approvalProcess)

	t.Run("condition", func(t *testing.T) {
		pi := h.start(t, "approval", "amount", int64(150))
		list := h.tasks(t, pi.ID)
		require.Len(t, list, 1)
		assert.Equal(t, "high", list[0].TaskDefinitionKey)
		assert.Empty(t, list[0].Assignee)
		assert.Equal(t, engine.DefaultTaskPriority, list[0].Priority)
	})

	t.Run("default", func(t *testing.T) {
		pi := h.start(t, "approval", "amount", int64(20), "clerk", "fozzie")
		list := h.tasks(t, pi.ID)
		require.Len(t, list, 1)
		assert.Equal(t, "low", list[0].TaskDefinitionKey)
		assert.Equal(t, "fozzie", list[0].Assignee)
	})

	t.Run("unknown variable", func(t *testing.T) {
		_, err := h.eng.StartProcessInstance(context.Background(), engine.StartRequest{ProcessDefinitionKey: "approval"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Unknown property used in expression")
	})
}

func TestAsyncServiceTaskJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, billingProcess)
	h.eng.Delegates().Register("chargeCard", engine.DelegateFunc(func(_ context.Context, ex engine.DelegateExecution) error {
		return ex.SetVariable("charged", true)
	}))

	pi := h.start(t, "billing")
	assert.Empty(t, h.tasks(t, pi.ID), "async continuation must stop before the service task runs")
	jobs := h.jobs(t, pi.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, bizConsts.JobHandlerAsyncContinuation, jobs[0].HandlerType)
	assert.Equal(t, bizConsts.DefaultJobRetries, jobs[0].Retries)

	require.NoError(t, h.eng.ExecuteJob(ctx, jobs[0].ID))
	assert.Empty(t, h.jobs(t, pi.ID))
	assert.Equal(t, "ship", h.task(t, pi.ID, "ship").TaskDefinitionKey)

	charged, err := h.eng.ProcessInstanceVariable(ctx, pi.ID, "charged")
	require.NoError(t, err)
	assert.Equal(t, true, charged.Decode())
}

func TestFailingJobDecrementsRetries(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, billingProcess)
	h.eng.Delegates().Register("chargeCard", engine.DelegateFunc(func(context.Context, engine.DelegateExecution) error {
		return errors.New("card declined")
	}))

	pi := h.start(t, "billing")
	jobs := h.jobs(t, pi.ID)
	require.Len(t, jobs, 1)

	err := h.eng.ExecuteJob(ctx, jobs[0].ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "card declined")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	job, err := h.eng.Job(ctx, jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, jobs[0].Retries-1, job.Retries)
	assert.Contains(t, job.ExceptionMessage, "card declined")
	assert.Empty(t, job.LockOwner)
	require.NotNil(t, job.DueDate)
	assert.True(t, job.DueDate.After(h.clock.Now()))
	assert.Empty(t, h.tasks(t, pi.ID), "failed job must roll back its work")

	stack, err := h.eng.JobExceptionStacktrace(ctx, job.ID)
	require.NoError(t, err)
	assert.Contains(t, stack, "card declined")
	assert.Contains(t, stack, "runServiceTask", "trace starts where the delegate failed")
}

func TestPanickingDelegateFailsJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, billingProcess)
	h.eng.Delegates().Register("chargeCard", engine.DelegateFunc(chargeIntoNilMap))

	pi := h.start(t, "billing")
	jobs := h.jobs(t, pi.ID)
	require.Len(t, jobs, 1)

	var err error
	require.NotPanics(t, func() { err = h.eng.ExecuteJob(ctx, jobs[0].ID) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assignment to entry in nil map")

	job, err := h.eng.Job(ctx, jobs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, jobs[0].Retries-1, job.Retries)
	assert.Contains(t, job.ExceptionMessage, "assignment to entry in nil map")
	assert.Empty(t, job.LockOwner)
	assert.Empty(t, h.tasks(t, pi.ID))

	stack, err := h.eng.JobExceptionStacktrace(ctx, job.ID)
	require.NoError(t, err)
	assert.Contains(t, stack, "chargeIntoNilMap", "trace must point at the panicking delegate")
}

func chargeIntoNilMap(context.Context, engine.DelegateExecution) error {
	var charges map[string]int
	charges["card"]++
	return nil
}

func TestTimerJob(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, reminderProcess)
	pi := h.start(t, "reminder")

	jobs := h.jobs(t, pi.ID)
	require.Len(t, jobs, 1)
	assert.Equal(t, bizConsts.JobHandlerTimerTransition, jobs[0].HandlerType)
	require.NotNil(t, jobs[0].DueDate)
	assert.WithinDuration(t, h.clock.Now().Add(5*time.Minute), *jobs[0].DueDate, time.Second)

	due, _, err := h.eng.Jobs(ctx, &model.JobQuery{ProcessInstanceID: pi.ID, Executable: true}, query.Unpaged("id"))
	require.NoError(t, err)
	assert.Empty(t, due)

	h.clock.Add(6 * time.Minute)
	due, _, err = h.eng.Jobs(ctx, &model.JobQuery{ProcessInstanceID: pi.ID, Executable: true}, query.Unpaged("id"))
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, h.eng.ExecuteJob(ctx, due[0].ID))
	assert.Equal(t, "remind", h.task(t, pi.ID, "remind").TaskDefinitionKey)
}

func TestCallActivityResumesParent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, orderProcesses)
	parent := h.start(t, "order", "orderId", "A-1")

	subs, _, err := h.eng.ProcessInstances(ctx, &model.ProcessInstanceQuery{SuperProcessInstanceID: parent.ID}, query.Unpaged("id"))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	child := subs[0]

	id, err := h.eng.ProcessInstanceVariable(ctx, child.ID, "id")
	require.NoError(t, err)
	assert.Equal(t, "A-1", id.Decode())

	box := h.task(t, child.ID, "box")
	require.NoError(t, h.eng.CompleteTask(ctx, box.ID, vars(t, "result", "packed")))

	_, err = h.eng.ProcessInstance(ctx, child.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, "after", h.task(t, parent.ID, "after").TaskDefinitionKey)

	res, err := h.eng.ProcessInstanceVariable(ctx, parent.ID, "packResult")
	require.NoError(t, err)
	assert.Equal(t, "packed", res.Decode())
}

func TestTaskVariableScopes(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, approvalProcess)
	pi := h.start(t, "approval", "amount", int64(500))
	tk := h.task(t, pi.ID, "high")

	require.NoError(t, h.eng.SetTaskVariables(ctx, tk.ID, variable.ScopeLocal, vars(t, "note", "looks fine"), false))
	require.NoError(t, h.eng.SetTaskVariables(ctx, tk.ID, variable.ScopeGlobal, vars(t, "decision", "approve"), false))

	_, err := h.eng.ProcessInstanceVariable(ctx, pi.ID, "note")
	assert.True(t, apperr.IsNotFound(err), "local task variables stay on the task")

	decision, err := h.eng.ProcessInstanceVariable(ctx, pi.ID, "decision")
	require.NoError(t, err)
	assert.Equal(t, "approve", decision.Decode())

	local, err := h.eng.TaskVariable(ctx, tk.ID, "note", variable.ScopeLocal)
	require.NoError(t, err)
	assert.Equal(t, variable.ScopeLocal, local.Scope)

	err = h.eng.SetTaskVariables(ctx, tk.ID, variable.ScopeLocal, vars(t, "note", "again"), true)
	assert.True(t, apperr.IsConflict(err))
}

func TestClaimAndDelegation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, approvalProcess)
	pi := h.start(t, "approval", "amount", int64(500))
	tk := h.task(t, pi.ID, "high")

	claimed, err := h.eng.Claim(ctx, tk.ID, "kermit")
	require.NoError(t, err)
	assert.Equal(t, "kermit", claimed.Assignee)

	_, err = h.eng.Claim(ctx, tk.ID, "kermit")
	require.NoError(t, err, "claiming again by the assignee is allowed")

	_, err = h.eng.Claim(ctx, tk.ID, "fozzie")
	assert.True(t, apperr.IsConflict(err))

	delegated, err := h.eng.Delegate(ctx, tk.ID, "fozzie")
	require.NoError(t, err)
	assert.Equal(t, "fozzie", delegated.Assignee)
	assert.Equal(t, "kermit", delegated.Owner)
	assert.Equal(t, bizConsts.DelegationPending, delegated.DelegationState)

	err = h.eng.CompleteTask(ctx, tk.ID, nil)
	assert.True(t, apperr.IsIllegalArgument(err))

	resolved, err := h.eng.Resolve(ctx, tk.ID)
	require.NoError(t, err)
	assert.Equal(t, "kermit", resolved.Assignee)
	assert.Equal(t, bizConsts.DelegationResolved, resolved.DelegationState)

	require.NoError(t, h.eng.CompleteTask(ctx, tk.ID, nil))
	_, err = h.eng.ProcessInstance(ctx, pi.ID)
	assert.True(t, apperr.IsNotFound(err))

	links, err := h.eng.HistoricProcessInstanceIdentityLinks(ctx, pi.ID)
	require.NoError(t, err)
	users := map[string]bool{}
	for _, l := range links {
		users[l.UserID] = true
	}
	assert.True(t, users["kermit"])
	assert.True(t, users["fozzie"])
}

func TestProcessTaskCannotBeDeleted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, approvalProcess)
	pi := h.start(t, "approval", "amount", int64(500))
	tk := h.task(t, pi.ID, "high")

	err := h.eng.DeleteTask(ctx, tk.ID, false, "")
	assert.Equal(t, apperr.KindForbidden, apperr.KindOf(err))

	standalone, err := h.eng.CreateTask(ctx, engine.TaskPatch{Name: ptr("Call supplier")})
	require.NoError(t, err)
	require.NoError(t, h.eng.DeleteTask(ctx, standalone.ID, true, ""))
	_, err = h.eng.Task(ctx, standalone.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestSuspendedDefinitionRejectsStart(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, approvalProcess)
	defs, _, err := h.eng.ProcessDefinitions(ctx, &model.ProcessDefinitionQuery{Key: "approval"}, query.Unpaged("id"))
	require.NoError(t, err)
	require.Len(t, defs, 1)

	_, err = h.eng.SuspendProcessDefinition(ctx, defs[0].ID, false)
	require.NoError(t, err)
	_, err = h.eng.SuspendProcessDefinition(ctx, defs[0].ID, false)
	assert.True(t, apperr.IsConflict(err))

	_, err = h.eng.StartProcessInstance(ctx, engine.StartRequest{ProcessDefinitionID: defs[0].ID, Variables: vars(t, "amount", int64(1))})
	assert.True(t, apperr.IsConflict(err))

	_, err = h.eng.ActivateProcessDefinition(ctx, defs[0].ID, false)
	require.NoError(t, err)
	h.start(t, "approval", "amount", int64(1))
}

func TestDeleteDeploymentWithRunningInstances(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	dep, err := h.eng.Deploy(ctx, engine.DeployRequest{
		Name:      "approval",
		Resources: map[string][]byte{"approval.bpmn20.xml": []byte(approvalProcess)},
	})
	require.NoError(t, err)
	pi := h.start(t, "approval", "amount", int64(5), "clerk", "fozzie")

	assert.True(t, apperr.IsConflict(h.eng.DeleteDeployment(ctx, dep.ID, false)))
	require.NoError(t, h.eng.DeleteDeployment(ctx, dep.ID, true))

	_, err = h.eng.ProcessInstance(ctx, pi.ID)
	assert.True(t, apperr.IsNotFound(err))
	_, err = h.eng.Deployment(ctx, dep.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeploymentResourcesInBlobStore(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	blobs := blobstore.NewWithBucket(memblob.OpenBucket(nil))
	h.eng.Blobs = blobs

	dep, err := h.eng.Deploy(ctx, engine.DeployRequest{
		Name:      "review",
		Resources: map[string][]byte{"review.bpmn20.xml": []byte(reviewProcess)},
	})
	require.NoError(t, err)

	resources, err := h.eng.DeploymentResources(ctx, dep.ID)
	require.NoError(t, err)
	require.Len(t, resources, 1)
	require.NotEmpty(t, resources[0].BlobKey)
	assert.Empty(t, resources[0].Bytes)

	stored, err := blobs.Get(ctx, resources[0].BlobKey)
	require.NoError(t, err)
	assert.Equal(t, reviewProcess, string(stored))
	data, err := h.eng.DeploymentResourceData(ctx, dep.ID, "review.bpmn20.xml")
	require.NoError(t, err)
	assert.Equal(t, reviewProcess, string(data))

	require.NoError(t, h.eng.DeleteDeployment(ctx, dep.ID, false))
	_, err = blobs.Get(ctx, resources[0].BlobKey)
	assert.Error(t, err)
}

func ptr[T any](v T) *T { return &v }
