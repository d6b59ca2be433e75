package dao

import "gorm.io/gorm"

// Set bundles every DAO over one gorm handle. The container wires DAOs one by one; Set
// serves tests and the standalone deploy command.
type Set struct {
	Repository   RepositoryDao
	Execution    ExecutionDao
	Task         TaskDao
	IdentityLink IdentityLinkDao
	Variable     VariableDao
	Job          JobDao
	History      HistoryDao
	Comment      CommentDao
	Identity     IdentityDao
	Tx           Transactor
}

func NewSet(db *gorm.DB) *Set {
	repo := NewRepositoryDao("").(*repositoryDaoImpl)
	repo.db = db
	exec := NewExecutionDao("").(*executionDaoImpl)
	exec.db = db
	task := NewTaskDao("").(*taskDaoImpl)
	task.db = db
	link := NewIdentityLinkDao("").(*identityLinkDaoImpl)
	link.db = db
	vars := NewVariableDao("").(*variableDaoImpl)
	vars.db = db
	job := NewJobDao("").(*jobDaoImpl)
	job.db = db
	hist := NewHistoryDao("").(*historyDaoImpl)
	hist.db = db
	comment := NewCommentDao("").(*commentDaoImpl)
	comment.db = db
	ident := NewIdentityDao("").(*identityDaoImpl)
	ident.db = db
	tx := NewTransactor("")
	tx.db = db
	return &Set{
		Repository:   repo,
		Execution:    exec,
		Task:         task,
		IdentityLink: link,
		Variable:     vars,
		Job:          job,
		History:      hist,
		Comment:      comment,
		Identity:     ident,
		Tx:           tx,
	}
}
