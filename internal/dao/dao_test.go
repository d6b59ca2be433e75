package dao_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/procflow/internal/apperr"
	"github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/dao"
	"github.com/grand-thief-cash/procflow/internal/dao/daotest"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
	"github.com/grand-thief-cash/procflow/internal/variable"
)

func instance(id, tenantID string) *model.Execution {
	return &model.Execution{
		ID: id, ProcessInstanceID: id, ProcessDefinitionID: "def",
		IsActive: true, IsScope: true, SuspensionState: consts.SuspensionActive,
		TenantID: tenantID, StartTime: time.Now().UTC(),
	}
}

func TestProcessInstanceTenantFilters(t *testing.T) {
	ctx := context.Background()
	set := dao.NewSet(daotest.Open(t))
	for id, tenant := range map[string]string{"p1": "tenant", "p2": "myTenant", "p3": "other", "p4": ""} {
		require.NoError(t, set.Execution.Create(ctx, instance(id, tenant)))
	}
	page := query.Unpaged("id")

	got, err := set.Execution.ListProcessInstances(ctx, &model.ProcessInstanceQuery{
		TenantFilter: model.TenantFilter{TenantIDLike: "%enant"},
	}, page)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ID)
	assert.Equal(t, "p2", got[1].ID)

	n, err := set.Execution.CountProcessInstances(ctx, &model.ProcessInstanceQuery{
		TenantFilter: model.TenantFilter{WithoutTenantID: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestVariableFilters(t *testing.T) {
	ctx := context.Background()
	set := dao.NewSet(daotest.Open(t))
	for _, id := range []string{"p1", "p2"} {
		require.NoError(t, set.Execution.Create(ctx, instance(id, "")))
	}
	put := func(id, exec, name string, v any) {
		val, err := variable.Encode(v)
		require.NoError(t, err)
		require.NoError(t, set.Variable.Create(ctx, &model.Variable{
			ID: id, Name: name, ExecutionID: exec, ProcessInstanceID: exec, Value: val,
		}))
	}
	put("v1", "p1", "amount", 150)
	put("v2", "p2", "amount", 12.5)
	put("v3", "p1", "customer", "ACME")
	put("v4", "p2", "customer", "initech")
	put("v5", "p1", "count", 1)

	compile := func(qs ...variable.QueryVariable) []variable.Filter {
		fs, err := variable.CompileAll(qs)
		require.NoError(t, err)
		return fs
	}
	cases := []struct {
		name    string
		filters []variable.Filter
		want    int64
	}{
		{"greater than integer", compile(variable.QueryVariable{Name: "amount", Value: 100, Operation: "greaterThan"}), 1},
		{"less than matches double", compile(variable.QueryVariable{Name: "amount", Value: 100, Operation: "lessThan"}), 1},
		{"ignore case", compile(variable.QueryVariable{Name: "customer", Value: "acme", Operation: "equalsIgnoreCase"}), 1},
		{"like", compile(variable.QueryVariable{Name: "customer", Value: "ini%", Operation: "like"}), 1},
		{"value only", compile(variable.QueryVariable{Value: "ACME", Operation: "equals"}), 1},
		{"not equals", compile(variable.QueryVariable{Name: "customer", Value: "ACME", Operation: "notEquals"}), 1},
		{"fraction never equals integer", compile(variable.QueryVariable{Name: "count", Value: json.Number("1.5"), Operation: "equals"}), 0},
		{"integer below fraction", compile(variable.QueryVariable{Name: "count", Value: json.Number("1.5"), Operation: "lessThan"}), 1},
		{"integer above fraction", compile(variable.QueryVariable{Name: "count", Value: json.Number("0.5"), Operation: "greaterThan"}), 1},
		{"integer not above fraction", compile(variable.QueryVariable{Name: "count", Value: json.Number("1.5"), Operation: "greaterThanOrEquals"}), 0},
		{"integral json number", compile(variable.QueryVariable{Name: "count", Value: json.Number("1"), Operation: "equals"}), 1},
		{"conjunction", compile(
			variable.QueryVariable{Name: "amount", Value: 100, Operation: "greaterThan"},
			variable.QueryVariable{Name: "customer", Value: "initech", Operation: "equals"},
		), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := set.Execution.CountProcessInstances(ctx, &model.ProcessInstanceQuery{VariableFilters: tc.filters})
			require.NoError(t, err)
			assert.Equal(t, tc.want, n)
		})
	}
}

func TestOptimisticLocking(t *testing.T) {
	ctx := context.Background()
	set := dao.NewSet(daotest.Open(t))
	require.NoError(t, set.Task.Create(ctx, &model.Task{ID: "t1", Name: "review", CreateTime: time.Now().UTC()}))

	a, err := set.Task.Get(ctx, "t1")
	require.NoError(t, err)
	b, err := set.Task.Get(ctx, "t1")
	require.NoError(t, err)

	a.Assignee = "kermit"
	require.NoError(t, set.Task.Update(ctx, a))
	assert.Equal(t, 2, a.Revision)

	b.Assignee = "gonzo"
	err = set.Task.Update(ctx, b)
	require.Error(t, err)
	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, 1, b.Revision)
}

func TestTransactorRollsBack(t *testing.T) {
	ctx := context.Background()
	set := dao.NewSet(daotest.Open(t))
	boom := errors.New("boom")
	err := set.Tx.Run(ctx, func(ctx context.Context) error {
		require.NoError(t, set.Identity.CreateUser(ctx, &model.User{ID: "kermit"}))
		return set.Tx.Run(ctx, func(ctx context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	_, err = set.Identity.GetUser(ctx, "kermit")
	assert.Error(t, err)
}

func TestJobAcquisition(t *testing.T) {
	ctx := context.Background()
	set := dao.NewSet(daotest.Open(t))
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past, future := now.Add(-time.Minute), now.Add(time.Hour)
	require.NoError(t, set.Execution.Create(ctx, instance("p1", "")))
	suspended := instance("p2", "")
	suspended.SuspensionState = consts.SuspensionSuspended
	require.NoError(t, set.Execution.Create(ctx, suspended))

	jobs := []*model.Job{
		{ID: "due", ProcessInstanceID: "p1", Retries: 3, DueDate: &past},
		{ID: "later", ProcessInstanceID: "p1", Retries: 3, DueDate: &future},
		{ID: "exhausted", ProcessInstanceID: "p1", Retries: 0},
		{ID: "suspended", ProcessInstanceID: "p2", Retries: 3},
		{ID: "message", ProcessInstanceID: "p1", Retries: 1},
	}
	for _, j := range jobs {
		j.CreateTime = now
		require.NoError(t, set.Job.Create(ctx, j))
	}

	got, err := set.Job.Acquire(ctx, now, "node-a", now.Add(5*time.Minute), 10)
	require.NoError(t, err)
	ids := []string{}
	for _, j := range got {
		ids = append(ids, j.ID)
	}
	assert.ElementsMatch(t, []string{"due", "message"}, ids)

	again, err := set.Job.Acquire(ctx, now, "node-b", now.Add(5*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	// expired locks are up for grabs
	stolen, err := set.Job.Acquire(ctx, now.Add(10*time.Minute), "node-b", now.Add(15*time.Minute), 10)
	require.NoError(t, err)
	assert.Len(t, stolen, 2)
}

func TestCandidateTaskQuery(t *testing.T) {
	ctx := context.Background()
	set := dao.NewSet(daotest.Open(t))
	now := time.Now().UTC()
	require.NoError(t, set.Task.Create(ctx, &model.Task{ID: "t1", CreateTime: now}))
	require.NoError(t, set.Task.Create(ctx, &model.Task{ID: "t2", CreateTime: now}))
	require.NoError(t, set.Task.Create(ctx, &model.Task{ID: "t3", Assignee: "fozzie", CreateTime: now}))
	require.NoError(t, set.IdentityLink.Create(ctx, &model.IdentityLink{ID: "l1", TaskID: "t1", UserID: "kermit", Type: consts.LinkCandidate}))
	require.NoError(t, set.IdentityLink.Create(ctx, &model.IdentityLink{ID: "l2", TaskID: "t2", GroupID: "management", Type: consts.LinkCandidate}))
	require.NoError(t, set.IdentityLink.Create(ctx, &model.IdentityLink{ID: "l3", TaskID: "t3", GroupID: "management", Type: consts.LinkCandidate}))

	n, err := set.Task.Count(ctx, &model.TaskQuery{CandidateUser: "kermit", CandidateUserGroups: []string{"management"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = set.Task.Count(ctx, &model.TaskQuery{CandidateOrAssigned: "fozzie", CandidateUserGroups: []string{"management"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = set.Task.Count(ctx, &model.TaskQuery{CandidateGroup: "management"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
