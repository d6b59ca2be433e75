package dao

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/grand-thief-cash/procflow/infra/application/components/database"
	"github.com/grand-thief-cash/procflow/infra/application/core"
	bizConsts "github.com/grand-thief-cash/procflow/internal/consts"
	"github.com/grand-thief-cash/procflow/internal/model"
	"github.com/grand-thief-cash/procflow/internal/query"
)

type JobDao interface {
	core.Component
	Create(ctx context.Context, j *model.Job) error
	Get(ctx context.Context, id string) (*model.Job, error)
	Update(ctx context.Context, j *model.Job) error
	Delete(ctx context.Context, id string) error
	DeleteByExecution(ctx context.Context, executionID string) error
	DeleteByProcessInstance(ctx context.Context, processInstanceID string) error
	// Acquire locks up to max due jobs for owner until lockUntil and returns the ones it won.
	Acquire(ctx context.Context, now time.Time, owner string, lockUntil time.Time, max int) ([]*model.Job, error)
	Count(ctx context.Context, q *model.JobQuery) (int64, error)
	List(ctx context.Context, q *model.JobQuery, page query.Page) ([]*model.Job, error)
}

type jobDaoImpl struct {
	*core.BaseComponent
	DB *database.Component `infra:"dep:database"`
	session
}

func NewJobDao(dsName string) JobDao {
	return &jobDaoImpl{
		BaseComponent: core.NewBaseComponent(bizConsts.COMP_DAO_JOB),
		session:       session{dsName: dsName},
	}
}

func (d *jobDaoImpl) Start(ctx context.Context) error {
	if err := d.BaseComponent.Start(ctx); err != nil {
		return err
	}
	return d.open(d.DB)
}

func (d *jobDaoImpl) Create(ctx context.Context, j *model.Job) error {
	if j.Revision == 0 {
		j.Revision = 1
	}
	return d.conn(ctx).Create(j).Error
}

func (d *jobDaoImpl) Get(ctx context.Context, id string) (*model.Job, error) {
	var j model.Job
	if err := d.conn(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

func (d *jobDaoImpl) Update(ctx context.Context, j *model.Job) error {
	rev := j.Revision
	j.Revision = rev + 1
	res := d.conn(ctx).Model(&model.Job{}).
		Where("id = ? AND rev = ?", j.ID, rev).
		Select("*").Omit("id").Updates(j)
	if res.Error != nil {
		j.Revision = rev
		return res.Error
	}
	if res.RowsAffected == 0 {
		j.Revision = rev
		return staleRevision("Job", j.ID)
	}
	return nil
}

func (d *jobDaoImpl) Delete(ctx context.Context, id string) error {
	return d.conn(ctx).Where("id = ?", id).Delete(&model.Job{}).Error
}

func (d *jobDaoImpl) DeleteByExecution(ctx context.Context, executionID string) error {
	return d.conn(ctx).Where("execution_id = ?", executionID).Delete(&model.Job{}).Error
}

func (d *jobDaoImpl) DeleteByProcessInstance(ctx context.Context, processInstanceID string) error {
	return d.conn(ctx).Where("process_instance_id = ?", processInstanceID).Delete(&model.Job{}).Error
}

func (d *jobDaoImpl) Acquire(ctx context.Context, now time.Time, owner string, lockUntil time.Time, max int) ([]*model.Job, error) {
	var candidates []*model.Job
	err := d.conn(ctx).
		Where("retries > 0").
		Where("(due_date IS NULL OR due_date <= ?)", now).
		Where("(lock_exp_time IS NULL OR lock_exp_time < ?)", now).
		Where("process_instance_id NOT IN (SELECT e.id FROM act_ru_execution e WHERE e.parent_id = '' AND e.suspension_state = ?)", bizConsts.SuspensionSuspended).
		Order("due_date asc, create_time asc").
		Limit(max).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	acquired := make([]*model.Job, 0, len(candidates))
	for _, j := range candidates {
		res := d.conn(ctx).Model(&model.Job{}).
			Where("id = ? AND rev = ?", j.ID, j.Revision).
			Updates(map[string]any{"lock_owner": owner, "lock_exp_time": lockUntil, "rev": j.Revision + 1})
		if res.Error != nil {
			return acquired, res.Error
		}
		if res.RowsAffected == 1 {
			j.Revision++
			j.LockOwner = owner
			until := lockUntil
			j.LockExpirationTime = &until
			acquired = append(acquired, j)
		}
	}
	return acquired, nil
}

func (d *jobDaoImpl) scope(ctx context.Context, q *model.JobQuery) *gorm.DB {
	db := d.conn(ctx).Model(&model.Job{})
	db = eq(db, "id", q.ID)
	db = eq(db, "process_instance_id", q.ProcessInstanceID)
	db = eq(db, "execution_id", q.ExecutionID)
	db = eq(db, "process_definition_id", q.ProcessDefinitionID)
	if q.WithRetriesLeft {
		db = db.Where("retries > 0")
	}
	if q.Executable {
		db = db.Where("retries > 0 AND (due_date IS NULL OR due_date <= ?)", q.Now)
	}
	if q.TimersOnly {
		db = db.Where("type_ = ?", bizConsts.JobTypeTimer)
	}
	if q.MessagesOnly {
		db = db.Where("type_ = ?", bizConsts.JobTypeMessage)
	}
	if q.WithException {
		db = db.Where("exception_msg <> ''")
	}
	if q.DueBefore != nil {
		db = db.Where("due_date < ?", q.DueBefore.UTC())
	}
	if q.DueAfter != nil {
		db = db.Where("due_date > ?", q.DueAfter.UTC())
	}
	db = eq(db, "exception_msg", q.ExceptionMessage)
	return tenant(db, "tenant_id", q.TenantFilter)
}

func (d *jobDaoImpl) Count(ctx context.Context, q *model.JobQuery) (int64, error) {
	var n int64
	err := d.scope(ctx, q).Count(&n).Error
	return n, err
}

func (d *jobDaoImpl) List(ctx context.Context, q *model.JobQuery, page query.Page) ([]*model.Job, error) {
	var list []*model.Job
	err := paginate(d.scope(ctx, q), page).Find(&list).Error
	return list, err
}
