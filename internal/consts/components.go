package consts

const (
	COMP_DAO_REPOSITORY    = "repository_dao"
	COMP_DAO_EXECUTION     = "execution_dao"
	COMP_DAO_TASK          = "task_dao"
	COMP_DAO_IDENTITY_LINK = "identity_link_dao"
	COMP_DAO_VARIABLE      = "variable_dao"
	COMP_DAO_JOB           = "job_dao"
	COMP_DAO_HISTORY       = "history_dao"
	COMP_DAO_COMMENT       = "comment_dao"
	COMP_DAO_IDENTITY      = "identity_dao"
	COMP_DAO_TX            = "transactor"

	COMP_SVC_ENGINE       = "process_engine"
	COMP_SVC_JOB_EXECUTOR = "job_executor"
	COMP_SVC_METRICS      = "engine_metrics"

	COMP_CTRL_REPOSITORY = "repository_ctrl"
	COMP_CTRL_RUNTIME    = "runtime_ctrl"
	COMP_CTRL_TASK       = "task_ctrl"
	COMP_CTRL_HISTORY    = "history_ctrl"
	COMP_CTRL_MANAGEMENT = "management_ctrl"
	COMP_CTRL_IDENTITY   = "identity_ctrl"
)
