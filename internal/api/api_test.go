package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grand-thief-cash/procflow/internal/config"
	"github.com/grand-thief-cash/procflow/internal/dao"
	"github.com/grand-thief-cash/procflow/internal/dao/daotest"
	"github.com/grand-thief-cash/procflow/internal/engine"
)

const header = `<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL"
  xmlns:activiti="http://activiti.org/bpmn"
  targetNamespace="tests">`

const holidayProcess = header + `
  <process id="holiday" name="Holiday request">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="approve"/>
    <userTask id="approve" name="Approve holiday" activiti:candidateGroups="management"/>
    <sequenceFlow id="f2" sourceRef="approve" targetRef="end"/>
    <endEvent id="end"/>
  </process>
</definitions>`

const invoiceProcess = header + `
  <process id="invoice">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="book"/>
    <serviceTask id="book" activiti:async="true" activiti:delegateExpression="${bookInvoice}"/>
    <sequenceFlow id="f2" sourceRef="book" targetRef="end"/>
    <endEvent id="end"/>
  </process>
</definitions>`

type testServer struct {
	t   *testing.T
	eng *engine.Engine
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	eng := engine.NewEngine(config.Default(), dao.NewSet(daotest.Open(t)))

	repo := NewRepositoryController()
	repo.Engine = eng
	runtime := NewRuntimeController()
	runtime.Engine = eng
	tasks := NewTaskController()
	tasks.Engine = eng
	history := NewHistoryController()
	history.Engine = eng
	mgmt := NewManagementController()
	mgmt.Engine = eng
	identity := NewIdentityController()
	identity.Engine = eng

	r := chi.NewRouter()
	Mount(r, repo, runtime, tasks, history, mgmt, identity)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testServer{t: t, eng: eng, srv: srv}
}

func (s *testServer) deploy(tenant string, xml string) {
	s.t.Helper()
	_, err := s.eng.Deploy(context.Background(), engine.DeployRequest{
		Name:      "test",
		TenantID:  tenant,
		Resources: map[string][]byte{"process.bpmn20.xml": []byte(xml)},
	})
	require.NoError(s.t, err)
}

func (s *testServer) start(key, tenant string, vars ...map[string]any) string {
	s.t.Helper()
	body := map[string]any{"processDefinitionKey": key, "tenantId": tenant}
	if len(vars) > 0 {
		body["variables"] = vars
	}
	var out struct {
		ID string `json:"id"`
	}
	s.expect(http.MethodPost, "/runtime/process-instances", body, http.StatusCreated, &out)
	return out.ID
}

func (s *testServer) do(method, path string, body any) (int, []byte) {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(req)
}

func (s *testServer) send(req *http.Request) (int, []byte) {
	s.t.Helper()
	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	return resp.StatusCode, data
}

// expect runs the request, checks the status and decodes the body into out when given.
func (s *testServer) expect(method, path string, body any, status int, out any) {
	s.t.Helper()
	code, data := s.do(method, path, body)
	require.Equal(s.t, status, code, "%s %s: %s", method, path, data)
	if out != nil {
		require.NoError(s.t, json.Unmarshal(data, out))
	}
}

type page struct {
	Data  []map[string]any `json:"data"`
	Total int64            `json:"total"`
	Start int              `json:"start"`
	Sort  string           `json:"sort"`
	Order string           `json:"order"`
	Size  int              `json:"size"`
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestDeployThroughMultipart(t *testing.T) {
	s := newTestServer(t)

	body, ct := multipartBody(t, map[string]string{"tenantId": "acme"}, "holiday.bpmn20.xml", []byte(holidayProcess))
	req, _ := http.NewRequest(http.MethodPost, s.srv.URL+"/repository/deployments", body)
	req.Header.Set("Content-Type", ct)
	code, data := s.send(req)
	require.Equal(t, http.StatusCreated, code, string(data))

	var dep map[string]any
	require.NoError(t, json.Unmarshal(data, &dep))
	assert.Equal(t, "acme", dep["tenantId"])
	assert.Equal(t, s.srv.URL+"/repository/deployments/"+dep["id"].(string), dep["url"])

	var defs page
	s.expect(http.MethodGet, "/repository/process-definitions?key=holiday", nil, http.StatusOK, &defs)
	require.Len(t, defs.Data, 1)
	assert.Equal(t, "Holiday request", defs.Data[0]["name"])
	assert.EqualValues(t, 1, defs.Data[0]["version"])

	var resources []map[string]any
	s.expect(http.MethodGet, "/repository/deployments/"+dep["id"].(string)+"/resources", nil, http.StatusOK, &resources)
	require.Len(t, resources, 1)
	assert.Equal(t, "processDefinition", resources[0]["type"])

	code, data = s.do(http.MethodGet, "/repository/deployments/"+dep["id"].(string)+"/resourcedata/holiday.bpmn20.xml", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, holidayProcess, string(data))

	body, ct = multipartBody(t, nil, "notes.txt", []byte("hello"))
	req, _ = http.NewRequest(http.MethodPost, s.srv.URL+"/repository/deployments", body)
	req.Header.Set("Content-Type", ct)
	code, _ = s.send(req)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/repository/deployments", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusUnsupportedMediaType, code)
}

func TestTenantIDLike(t *testing.T) {
	s := newTestServer(t)
	for _, tenant := range []string{"atenant", "btenant", "other"} {
		s.deploy(tenant, holidayProcess)
		s.start("holiday", tenant)
	}

	for _, path := range []string{
		"/runtime/process-instances",
		"/runtime/tasks",
		"/history/historic-process-instances",
		"/history/historic-task-instances",
	} {
		var res page
		s.expect(http.MethodGet, path+"?tenantIdLike=%25enant", nil, http.StatusOK, &res)
		assert.EqualValues(t, 2, res.Total, path)
		for _, item := range res.Data {
			assert.Contains(t, []any{"atenant", "btenant"}, item["tenantId"], path)
		}
	}

	var res page
	s.expect(http.MethodPost, "/query/process-instances", map[string]any{"tenantId": "other"}, http.StatusOK, &res)
	assert.EqualValues(t, 1, res.Total)
}

func TestPaginationEnvelope(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", holidayProcess)
	for i := 0; i < 3; i++ {
		s.start("holiday", "")
	}

	var res page
	s.expect(http.MethodGet, "/runtime/process-instances?size=2&sort=id&order=desc", nil, http.StatusOK, &res)
	assert.EqualValues(t, 3, res.Total)
	assert.Equal(t, 2, res.Size)
	assert.Len(t, res.Data, 2)
	assert.Equal(t, "id", res.Sort)
	assert.Equal(t, "desc", res.Order)
	assert.Greater(t, res.Data[0]["id"], res.Data[1]["id"])

	s.expect(http.MethodGet, "/runtime/process-instances?start=2", nil, http.StatusOK, &res)
	assert.Equal(t, 1, res.Size)
	assert.Equal(t, 2, res.Start)

	s.expect(http.MethodPost, "/query/process-instances?size=1", map[string]any{"size": 5}, http.StatusOK, &res)
	assert.Equal(t, 1, res.Size, "url paging wins over the body")

	code, _ := s.do(http.MethodGet, "/runtime/process-instances?sort=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(http.MethodGet, "/runtime/tasks?size=-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestVariableQueryValidation(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", holidayProcess)
	s.start("holiday", "", map[string]any{"name": "days", "value": 5})
	s.start("holiday", "", map[string]any{"name": "days", "value": 12})

	var res page
	s.expect(http.MethodPost, "/query/process-instances", map[string]any{
		"variables": []map[string]any{{"name": "days", "value": 10, "operation": "greaterThan"}},
	}, http.StatusOK, &res)
	assert.EqualValues(t, 1, res.Total)

	s.expect(http.MethodPost, "/query/process-instances", map[string]any{
		"variables": []map[string]any{{"value": 5, "operation": "equals"}},
	}, http.StatusOK, &res)
	assert.EqualValues(t, 1, res.Total)

	code, _ := s.do(http.MethodPost, "/query/process-instances", map[string]any{
		"variables": []map[string]any{{"value": 5, "operation": "notEquals"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/query/process-instances", map[string]any{
		"variables": []map[string]any{{"name": "days", "value": 5, "operation": "like"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProcessInstanceVariables(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", holidayProcess)
	pi := s.start("holiday", "", map[string]any{"name": "employee", "value": "kermit"})
	base := "/runtime/process-instances/" + pi + "/variables"

	var created []map[string]any
	s.expect(http.MethodPost, base, []map[string]any{{"name": "days", "value": 3}}, http.StatusCreated, &created)
	require.Len(t, created, 1)
	assert.Equal(t, "integer", created[0]["type"])

	code, _ := s.do(http.MethodPost, base, []map[string]any{{"name": "days", "value": 4}})
	assert.Equal(t, http.StatusConflict, code)

	s.expect(http.MethodPut, base, []map[string]any{{"name": "days", "value": 4}}, http.StatusCreated, nil)

	var one map[string]any
	s.expect(http.MethodGet, base+"/days", nil, http.StatusOK, &one)
	assert.EqualValues(t, 4, one["value"])

	code, _ = s.do(http.MethodPut, base+"/days", map[string]any{"name": "weeks", "value": 1})
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = s.do(http.MethodPut, base+"/missing", map[string]any{"name": "missing", "value": 1})
	assert.Equal(t, http.StatusNotFound, code)

	code, data := s.do(http.MethodGet, base+"/days/data", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(data), "The variable does not have a binary data stream.")

	body, ct := multipartBody(t, map[string]string{"name": "contract"}, "contract.pdf", []byte("%PDF"))
	req, _ := http.NewRequest(http.MethodPost, s.srv.URL+base, body)
	req.Header.Set("Content-Type", ct)
	code, data = s.send(req)
	require.Equal(t, http.StatusCreated, code, string(data))
	code, data = s.do(http.MethodGet, base+"/contract/data", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "%PDF", string(data))

	var all []map[string]any
	s.expect(http.MethodGet, base, nil, http.StatusOK, &all)
	assert.Len(t, all, 3)
}

func TestDeleteVariableTwice(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", holidayProcess)
	pi := s.start("holiday", "", map[string]any{"name": "days", "value": 5})

	code, _ := s.do(http.MethodDelete, "/runtime/process-instances/"+pi+"/variables/days", nil)
	assert.Equal(t, http.StatusNoContent, code)
	code, _ = s.do(http.MethodDelete, "/runtime/process-instances/"+pi+"/variables/days", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func (s *testServer) onlyTask(processInstanceID string) string {
	s.t.Helper()
	var res page
	s.expect(http.MethodGet, "/runtime/tasks?processInstanceId="+processInstanceID, nil, http.StatusOK, &res)
	require.Len(s.t, res.Data, 1)
	return res.Data[0]["id"].(string)
}

func TestClaimConflict(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", holidayProcess)
	task := s.onlyTask(s.start("holiday", ""))
	path := "/runtime/tasks/" + task

	s.expect(http.MethodPost, path, map[string]any{"action": "claim", "assignee": "kermit"}, http.StatusOK, nil)
	code, _ := s.do(http.MethodPost, path, map[string]any{"action": "claim", "assignee": "fozzie"})
	assert.Equal(t, http.StatusConflict, code)
	s.expect(http.MethodPost, path, map[string]any{"action": "claim", "assignee": "kermit"}, http.StatusOK, nil)

	s.expect(http.MethodPost, path, map[string]any{"action": "claim", "assignee": nil}, http.StatusOK, nil)
	var got map[string]any
	s.expect(http.MethodGet, path, nil, http.StatusOK, &got)
	assert.Equal(t, "", got["assignee"])

	code, _ = s.do(http.MethodPost, path, map[string]any{"action": "jump"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTaskUpdateAndComplete(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", holidayProcess)
	pi := s.start("holiday", "")
	task := s.onlyTask(pi)
	path := "/runtime/tasks/" + task

	var got map[string]any
	s.expect(http.MethodPut, path, map[string]any{
		"assignee": "kermit",
		"priority": 80,
		"dueDate":  "2030-01-01T00:00:00.000Z",
	}, http.StatusOK, &got)
	assert.Equal(t, "kermit", got["assignee"])
	assert.EqualValues(t, 80, got["priority"])
	assert.Equal(t, "2030-01-01T00:00:00.000Z", got["dueDate"])
	assert.Equal(t, "Approve holiday", got["name"], "absent fields are kept")

	s.expect(http.MethodPut, path, map[string]any{"dueDate": nil}, http.StatusOK, &got)
	assert.Nil(t, got["dueDate"])

	var links []map[string]any
	s.expect(http.MethodGet, path+"/identitylinks/groups", nil, http.StatusOK, &links)
	require.Len(t, links, 1)
	assert.Equal(t, "management", links[0]["group"])

	code, _ := s.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusForbidden, code)

	s.expect(http.MethodPost, path, map[string]any{
		"action":    "complete",
		"variables": []map[string]any{{"name": "approved", "value": true}},
	}, http.StatusOK, nil)

	code, _ = s.do(http.MethodGet, "/runtime/process-instances/"+pi, nil)
	assert.Equal(t, http.StatusNotFound, code)

	var hist map[string]any
	s.expect(http.MethodGet, "/history/historic-process-instances/"+pi, nil, http.StatusOK, &hist)
	assert.Equal(t, "end", hist["endActivityId"])
	assert.NotNil(t, hist["endTime"])

	var res page
	s.expect(http.MethodPost, "/query/historic-process-instances", map[string]any{
		"processInstanceId":       pi,
		"includeProcessVariables": true,
	}, http.StatusOK, &res)
	require.Len(t, res.Data, 1)
	vars := res.Data[0]["variables"].([]any)
	require.Len(t, vars, 1)
	assert.Equal(t, "approved", vars[0].(map[string]any)["name"])
}

func TestStandaloneTaskScopes(t *testing.T) {
	s := newTestServer(t)

	var task map[string]any
	s.expect(http.MethodPost, "/runtime/tasks", map[string]any{"name": "Buy milk", "owner": "kermit"}, http.StatusCreated, &task)
	path := "/runtime/tasks/" + task["id"].(string)

	s.expect(http.MethodPost, path+"/variables", []map[string]any{{"name": "shop", "value": "corner"}}, http.StatusCreated, nil)
	code, _ := s.do(http.MethodPost, path+"/variables", []map[string]any{{"name": "x", "value": 1, "scope": "global"}})
	assert.Equal(t, http.StatusBadRequest, code)

	var comment map[string]any
	s.expect(http.MethodPost, path+"/comments", map[string]any{"message": "skimmed"}, http.StatusCreated, &comment)
	s.expect(http.MethodGet, path+"/comments/"+comment["id"].(string), nil, http.StatusOK, nil)

	s.expect(http.MethodDelete, path+"?cascadeHistory=true", nil, http.StatusNoContent, nil)
	code, _ = s.do(http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestJobEndpoints(t *testing.T) {
	s := newTestServer(t)
	calls := 0
	s.eng.Delegates().Register("bookInvoice", engine.DelegateFunc(func(context.Context, engine.DelegateExecution) error {
		calls++
		if calls == 1 {
			return errors.New("ledger offline")
		}
		return nil
	}))
	s.deploy("", invoiceProcess)
	pi := s.start("invoice", "")

	var res page
	s.expect(http.MethodGet, "/management/jobs?processInstanceId="+pi, nil, http.StatusOK, &res)
	require.Len(t, res.Data, 1)
	job := res.Data[0]["id"].(string)

	code, _ := s.do(http.MethodPost, "/management/jobs/"+job, map[string]any{"action": "execute"})
	assert.Equal(t, http.StatusInternalServerError, code)

	code, data := s.do(http.MethodGet, "/management/jobs/"+job+"/exception-stacktrace", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(data), "ledger offline")

	s.expect(http.MethodPost, "/management/jobs/"+job, map[string]any{"action": "execute"}, http.StatusNoContent, nil)
	code, _ = s.do(http.MethodGet, "/management/jobs/"+job, nil)
	assert.Equal(t, http.StatusNotFound, code)

	var info map[string]any
	s.expect(http.MethodGet, "/management/engine", nil, http.StatusOK, &info)
	assert.NotEmpty(t, info["version"])
}

func TestIdentityResources(t *testing.T) {
	s := newTestServer(t)

	s.expect(http.MethodPost, "/identity/users", map[string]any{"id": "kermit", "firstName": "Kermit", "email": "kermit@muppets.test"}, http.StatusCreated, nil)
	code, _ := s.do(http.MethodPost, "/identity/users", map[string]any{"id": "kermit"})
	assert.Equal(t, http.StatusConflict, code)

	var user map[string]any
	s.expect(http.MethodPut, "/identity/users/kermit", map[string]any{"lastName": "The Frog"}, http.StatusOK, &user)
	assert.Equal(t, "Kermit", user["firstName"])
	assert.Equal(t, "The Frog", user["lastName"])

	s.expect(http.MethodPost, "/identity/groups", map[string]any{"id": "management", "name": "Management", "type": "assignment"}, http.StatusCreated, nil)
	s.expect(http.MethodPost, "/identity/groups/management/members", map[string]any{"userId": "kermit"}, http.StatusCreated, nil)

	var res page
	s.expect(http.MethodGet, "/identity/users?memberOfGroup=management", nil, http.StatusOK, &res)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "kermit", res.Data[0]["id"])

	s.expect(http.MethodDelete, "/identity/groups/management/members/kermit", nil, http.StatusNoContent, nil)
	s.expect(http.MethodDelete, "/identity/users/kermit", nil, http.StatusNoContent, nil)
	code, _ = s.do(http.MethodGet, "/identity/users/kermit", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

const reviewProcess = header + `
  <process id="review">
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

const paymentProcess = header + `
  <process id="payment">
    <startEvent id="start"/>
    <sequenceFlow id="f1" sourceRef="start" targetRef="awaitPayment"/>
    <receiveTask id="awaitPayment"/>
    <sequenceFlow id="f2" sourceRef="awaitPayment" targetRef="end"/>
    <endEvent id="end"/>
  </process>
</definitions>`

func names(items []map[string]any) []any {
	out := make([]any, 0, len(items))
	for _, it := range items {
		out = append(out, it["name"])
	}
	return out
}

func TestExecutionsAndScopedVariables(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", reviewProcess)
	pi := s.start("review", "")

	var res page
	s.expect(http.MethodGet, "/runtime/executions?processInstanceId="+pi, nil, http.StatusOK, &res)
	assert.EqualValues(t, 3, res.Total, "the instance plus one execution per branch")

	s.expect(http.MethodGet, "/runtime/executions?processInstanceId="+pi+"&activityId=legal", nil, http.StatusOK, &res)
	require.Len(t, res.Data, 1)
	legal := res.Data[0]["id"].(string)
	assert.Equal(t, pi, res.Data[0]["processInstanceId"])

	base := "/runtime/executions/" + legal + "/variables"
	var created []map[string]any
	s.expect(http.MethodPost, base, []map[string]any{{"name": "stamp", "value": "legal"}}, http.StatusCreated, &created)
	require.Len(t, created, 1)
	assert.Equal(t, "local", created[0]["scope"])
	s.expect(http.MethodPut, base, []map[string]any{{"name": "region", "value": "eu", "scope": "global"}}, http.StatusCreated, nil)

	var vars []map[string]any
	s.expect(http.MethodGet, base+"?scope=local", nil, http.StatusOK, &vars)
	assert.Equal(t, []any{"stamp"}, names(vars))
	s.expect(http.MethodGet, base+"?scope=global", nil, http.StatusOK, &vars)
	assert.Equal(t, []any{"region"}, names(vars))
	assert.Equal(t, "global", vars[0]["scope"])
	s.expect(http.MethodGet, base, nil, http.StatusOK, &vars)
	assert.ElementsMatch(t, []any{"stamp", "region"}, names(vars))

	s.expect(http.MethodGet, "/runtime/process-instances/"+pi+"/variables", nil, http.StatusOK, &vars)
	assert.Equal(t, []any{"region"}, names(vars), "local execution variables stay off the instance")

	code, _ := s.do(http.MethodGet, base+"/stamp?scope=global", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodGet, base+"?scope=everywhere", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	s.expect(http.MethodPost, "/query/executions", map[string]any{
		"processInstanceId": pi,
		"variables":         []map[string]any{{"name": "stamp", "value": "legal", "operation": "equals"}},
	}, http.StatusOK, &res)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, legal, res.Data[0]["id"])

	s.expect(http.MethodPost, "/query/executions", map[string]any{
		"processInstanceVariables": []map[string]any{{"name": "region", "value": "eu", "operation": "equals"}},
	}, http.StatusOK, &res)
	assert.EqualValues(t, 3, res.Total)

	code, _ = s.do(http.MethodGet, "/runtime/executions/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSignalExecution(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", paymentProcess)
	s.deploy("", holidayProcess)

	pi := s.start("payment", "")
	var active []string
	s.expect(http.MethodGet, "/runtime/executions/"+pi+"/activities", nil, http.StatusOK, &active)
	assert.Equal(t, []string{"awaitPayment"}, active)

	code, _ := s.do(http.MethodPut, "/runtime/executions/"+pi, map[string]any{"action": "jump"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, data := s.do(http.MethodPut, "/runtime/executions/"+pi, map[string]any{
		"action":    "signal",
		"variables": []map[string]any{{"name": "paid", "value": true}},
	})
	require.Equal(t, http.StatusNoContent, code, string(data))
	code, _ = s.do(http.MethodGet, "/runtime/process-instances/"+pi, nil)
	assert.Equal(t, http.StatusNotFound, code)

	waiting := s.start("holiday", "")
	code, _ = s.do(http.MethodPut, "/runtime/executions/"+waiting, map[string]any{"action": "signal"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSuspendProcessInstance(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", holidayProcess)
	pi := s.start("holiday", "")
	path := "/runtime/process-instances/" + pi
	task := s.onlyTask(pi)

	var out map[string]any
	s.expect(http.MethodPut, path, map[string]any{"action": "suspend"}, http.StatusOK, &out)
	assert.Equal(t, true, out["suspended"])
	s.expect(http.MethodGet, "/runtime/tasks/"+task, nil, http.StatusOK, &out)
	assert.Equal(t, true, out["suspended"])

	code, _ := s.do(http.MethodPut, path, map[string]any{"action": "suspend"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = s.do(http.MethodPost, "/runtime/tasks/"+task, map[string]any{"action": "complete"})
	assert.Equal(t, http.StatusConflict, code)

	s.expect(http.MethodPut, path, map[string]any{"action": "activate"}, http.StatusOK, &out)
	assert.Equal(t, false, out["suspended"])
	code, _ = s.do(http.MethodPut, path, map[string]any{"action": "activate"})
	assert.Equal(t, http.StatusConflict, code)
	code, _ = s.do(http.MethodPut, path, map[string]any{"action": "pause"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestVariableDataContentTypes(t *testing.T) {
	s := newTestServer(t)
	s.deploy("", holidayProcess)
	pi := s.start("holiday", "", map[string]any{"name": "days", "value": 5})
	base := "/runtime/process-instances/" + pi + "/variables"

	upload := func(fields map[string]string, content string) {
		t.Helper()
		body, ct := multipartBody(t, fields, "payload.bin", []byte(content))
		req, _ := http.NewRequest(http.MethodPost, s.srv.URL+base, body)
		req.Header.Set("Content-Type", ct)
		code, data := s.send(req)
		require.Equal(t, http.StatusCreated, code, string(data))
	}
	upload(map[string]string{"name": "scan"}, "raw bytes")
	upload(map[string]string{"name": "order", "type": "serializable"}, "\xac\xed\x00\x05")

	for _, tc := range []struct {
		name, contentType, body string
	}{
		{"scan", "application/octet-stream", "raw bytes"},
		{"order", "application/x-java-serialized-object", "\xac\xed\x00\x05"},
	} {
		req, _ := http.NewRequest(http.MethodGet, s.srv.URL+base+"/"+tc.name+"/data", nil)
		resp, err := s.srv.Client().Do(req)
		require.NoError(t, err)
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode, tc.name)
		assert.Equal(t, tc.contentType, resp.Header.Get("Content-Type"), tc.name)
		assert.Equal(t, tc.body, string(data), tc.name)
	}

	var one map[string]any
	s.expect(http.MethodGet, base+"/order", nil, http.StatusOK, &one)
	assert.Equal(t, "serializable", one["type"])
	assert.Nil(t, one["value"])
	assert.Equal(t, s.srv.URL+base+"/order/data", one["valueUrl"])

	code, data := s.do(http.MethodGet, base+"/days/data", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, string(data), "does not have a binary data stream")

	body, ct := multipartBody(t, map[string]string{"name": "bad", "type": "string"}, "payload.bin", []byte("x"))
	req, _ := http.NewRequest(http.MethodPost, s.srv.URL+base, body)
	req.Header.Set("Content-Type", ct)
	code, _ = s.send(req)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSubTasks(t *testing.T) {
	s := newTestServer(t)
	var parent, child map[string]any
	s.expect(http.MethodPost, "/runtime/tasks", map[string]any{"name": "Plan trip"}, http.StatusCreated, &parent)
	parentID := parent["id"].(string)
	s.expect(http.MethodPost, "/runtime/tasks", map[string]any{"name": "Book hotel", "parentTaskId": parentID}, http.StatusCreated, &child)
	assert.Equal(t, parentID, child["parentTaskId"])

	var subs []map[string]any
	s.expect(http.MethodGet, "/runtime/tasks/"+parentID+"/subtasks", nil, http.StatusOK, &subs)
	require.Len(t, subs, 1)
	assert.Equal(t, child["id"], subs[0]["id"])

	s.expect(http.MethodGet, "/runtime/tasks/"+child["id"].(string)+"/subtasks", nil, http.StatusOK, &subs)
	assert.Empty(t, subs)

	code, _ := s.do(http.MethodGet, "/runtime/tasks/missing/subtasks", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = s.do(http.MethodPost, "/runtime/tasks", map[string]any{"name": "Orphan", "parentTaskId": "missing"})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestWithoutTenantID(t *testing.T) {
	s := newTestServer(t)
	s.deploy("acme", holidayProcess)
	s.deploy("", holidayProcess)
	s.start("holiday", "acme")
	plain := s.start("holiday", "")

	for _, path := range []string{
		"/repository/process-definitions",
		"/runtime/process-instances",
		"/runtime/tasks",
		"/history/historic-process-instances",
	} {
		var res page
		s.expect(http.MethodGet, path+"?withoutTenantId=true", nil, http.StatusOK, &res)
		require.EqualValues(t, 1, res.Total, path)
		assert.Equal(t, "", res.Data[0]["tenantId"], path)
	}

	var res page
	s.expect(http.MethodPost, "/query/process-instances", map[string]any{"withoutTenantId": true}, http.StatusOK, &res)
	require.EqualValues(t, 1, res.Total)
	assert.Equal(t, plain, res.Data[0]["id"])
}
