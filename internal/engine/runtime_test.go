package engine_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/config"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/dao"
	"github.com/grand-thief-cash/procflow/internal/dao/daotest"
	"github.com/grand-thief-cash/procflow/internal/engine"
	"github.com/grand-thief-cash/procflow/internal/metrics"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

const paymentProcess = header + `
  <process id="payment">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="awaitPayment"/>
    <receiveTask id="awaitPayment"/>
    <sequenceFlow id="f2" sourceRef="awaitPayment" targetRef="end"/>
    <endEvent id="end"/>
  </process>
</definitions>`

// terminateFirst reaches the terminate end event before the sibling branch runs;
// terminateLast leaves a waiting user task behind first.
const terminateProcesses = header + `
  <process id="terminateFirst">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="fork"/>
    <parallelGateway id="fork"/>
    <sequenceFlow id="f2" sourceRef="fork" targetRef="abort"/>
    <sequenceFlow id="f3" sourceRef="fork" targetRef="review"/>
    <endEvent id="abort"><terminateEventDefinition/></endEvent>
    <userTask id="review" name="Review"/>
    <sequenceFlow id="f4" sourceRef="review" targetRef="end"/>
    <endEvent id="end"/>
  </process>
  <process id="terminateLast">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="fork"/>
    <parallelGateway id="fork"/>
    <sequenceFlow id="f2" sourceRef="fork" targetRef="review"/>
    <sequenceFlow id="f3" sourceRef="fork" targetRef="abort"/>
    <userTask id="review" name="Review"/>
    <endEvent id="abort"><terminateEventDefinition/></endEvent>
    <sequenceFlow id="f4" sourceRef="review" targetRef="end"/>
    <endEvent id="end"/>
  </process>
</definitions>`

func TestTerminateEndInParallelBranch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, terminateProcesses)
	for _, key := range []string{"terminateFirst", "terminateLast"} {
		t.Run(key, func(t *testing.T) {
			pi, err := h.eng.StartProcessInstance(ctx, engine.StartRequest{ProcessDefinitionKey: key})
			require.NoError(t, err)
			assert.True(t, pi.Ended)

			_, err = h.eng.ProcessInstance(ctx, pi.ID)
			assert.True(t, apperr.IsNotFound(err))
			assert.Empty(t, h.tasks(t, pi.ID))

			execs, _, err := h.eng.Executions(ctx, &model.ExecutionQuery{ProcessInstanceID: pi.ID}, query.Unpaged("id"))
			require.NoError(t, err)
			assert.Empty(t, execs)

			hpi, err := h.eng.HistoricProcessInstance(ctx, pi.ID)
			require.NoError(t, err)
			require.NotNil(t, hpi.EndTime)
			assert.Equal(t, "abort", hpi.EndActivityID)
		})
	}
}

func TestSignalReceiveTask(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, paymentProcess, approvalProcess)

	t.Run("waiting", func(t *testing.T) {
		pi := h.start(t, "payment")
		require.False(t, pi.Ended)
		active, err := h.eng.ActiveActivities(ctx, pi.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"awaitPayment"}, active)

		require.NoError(t, h.eng.Signal(ctx, pi.ID, vars(t, "paid", true)))
		_, err = h.eng.ProcessInstance(ctx, pi.ID)
		assert.True(t, apperr.IsNotFound(err))

		paid, err := h.eng.HistoricProcessInstanceVariable(ctx, pi.ID, "paid")
		require.NoError(t, err)
		assert.Equal(t, true, paid.Decode())
	})

	t.Run("not waiting", func(t *testing.T) {
		pi := h.start(t, "approval", "amount", int64(500))
		err := h.eng.Signal(ctx, pi.ID, nil)
		assert.True(t, apperr.IsIllegalArgument(err))
		assert.Len(t, h.tasks(t, pi.ID), 1, "a rejected signal leaves the task in place")
	})

	t.Run("suspended", func(t *testing.T) {
		pi := h.start(t, "payment")
		_, err := h.eng.SuspendProcessInstance(ctx, pi.ID)
		require.NoError(t, err)
		assert.True(t, apperr.IsConflict(h.eng.Signal(ctx, pi.ID, nil)))
	})

	t.Run("unknown execution", func(t *testing.T) {
		assert.True(t, apperr.IsNotFound(h.eng.Signal(ctx, "missing", nil)))
	})
}

func TestSuspendProcessInstanceCascadesToTasks(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, approvalProcess)
	pi := h.start(t, "approval", "amount", int64(500))
	tk := h.task(t, pi.ID, "high")

	suspended, err := h.eng.SuspendProcessInstance(ctx, pi.ID)
	require.NoError(t, err)
	assert.True(t, suspended.Suspended())
	assert.True(t, h.task(t, pi.ID, "high").Suspended())

	_, err = h.eng.SuspendProcessInstance(ctx, pi.ID)
	assert.True(t, apperr.IsConflict(err))
	assert.True(t, apperr.IsConflict(h.eng.CompleteTask(ctx, tk.ID, nil)))

	active, err := h.eng.ActivateProcessInstance(ctx, pi.ID)
	require.NoError(t, err)
	assert.False(t, active.Suspended())
	assert.Equal(t, bizConsts.SuspensionActive, h.task(t, pi.ID, "high").SuspensionState)

	_, err = h.eng.ActivateProcessInstance(ctx, pi.ID)
	assert.True(t, apperr.IsConflict(err))
	require.NoError(t, h.eng.CompleteTask(ctx, tk.ID, nil))
}

func TestHistoricDetailsAtFullHistory(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Engine.HistoryLevel = bizConsts.HistoryFull
	eng := engine.NewEngine(cfg, dao.NewSet(daotest.Open(t)))
	_, err := eng.Deploy(ctx, engine.DeployRequest{
		Name:      "approval",
		Resources: map[string][]byte{"approval.bpmn20.xml": []byte(approvalProcess)},
	})
	require.NoError(t, err)

	pi, err := eng.StartProcessInstance(ctx, engine.StartRequest{ProcessDefinitionKey: "approval", Variables: vars(t, "amount", int64(500))})
	require.NoError(t, err)
	require.NoError(t, eng.SetProcessInstanceVariables(ctx, pi.ID, vars(t, "amount", int64(650)), false))

	details, total, err := eng.HistoricDetails(ctx,
		&model.HistoricDetailQuery{ProcessInstanceID: pi.ID, SelectOnlyVariableUpdates: true}, query.Unpaged("id"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	values := make([]any, 0, len(details))
	for _, d := range details {
		assert.Equal(t, bizConsts.DetailVariableUpdate, d.Type)
		assert.Equal(t, "amount", d.Name)
		values = append(values, d.Decode())
	}
	assert.ElementsMatch(t, []any{int64(500), int64(650)}, values)

	t.Run("audit keeps no details", func(t *testing.T) {
		h := newHarness(t, approvalProcess)
		pi := h.start(t, "approval", "amount", int64(5), "clerk", "fozzie")
		_, total, err := h.eng.HistoricDetails(ctx, &model.HistoricDetailQuery{ProcessInstanceID: pi.ID}, query.Unpaged("id"))
		require.NoError(t, err)
		assert.Zero(t, total)
	})
}

func TestDeleteHistoricProcessInstanceOfRunningInstance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, approvalProcess)
	pi := h.start(t, "approval", "amount", int64(500))

	assert.True(t, apperr.IsConflict(h.eng.DeleteHistoricProcessInstance(ctx, pi.ID)))
	_, err := h.eng.HistoricProcessInstance(ctx, pi.ID)
	require.NoError(t, err)

	require.NoError(t, h.eng.DeleteProcessInstance(ctx, pi.ID, "no longer needed"))
	hpi, err := h.eng.HistoricProcessInstance(ctx, pi.ID)
	require.NoError(t, err)
	assert.Equal(t, "no longer needed", hpi.DeleteReason)

	require.NoError(t, h.eng.DeleteHistoricProcessInstance(ctx, pi.ID))
	_, err = h.eng.HistoricProcessInstance(ctx, pi.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestMetricsCountOnlyCommittedWork(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, approvalProcess)
	h.eng.Metrics = metrics.NewEngineMetrics()
	reg := h.eng.Metrics.Registry()

	_, err := h.eng.StartProcessInstance(ctx, engine.StartRequest{ProcessDefinitionKey: "approval"})
	require.Error(t, err, "the gateway condition needs amount")
	assert.Zero(t, counterValue(t, reg, "procflow_process_instances_started_total"))
	assert.Zero(t, counterValue(t, reg, "procflow_tasks_created_total"))

	pi := h.start(t, "approval", "amount", int64(500))
	assert.Equal(t, 1.0, counterValue(t, reg, "procflow_process_instances_started_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "procflow_tasks_created_total"))
	assert.Zero(t, counterValue(t, reg, "procflow_process_instances_ended_total"))

	require.NoError(t, h.eng.CompleteTask(ctx, h.task(t, pi.ID, "high").ID, nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "procflow_process_instances_ended_total"))
	assert.Equal(t, 1.0, counterValue(t, reg, "procflow_tasks_completed_total"))
}

// counterValue sums every series of the named counter; a family that was never
// incremented reads as zero.
func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}
