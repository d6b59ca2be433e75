package config

import (
	"time"

	"github.com/grand-thief-cash/procflow/internal/consts"
)

type EngineConfig struct {
	Name         string              `yaml:"name"`
	HistoryLevel consts.HistoryLevel `yaml:"history_level"`
	// DataSource selects the database component data source the DAOs use.
	DataSource          string        `yaml:"data_source"`
	DefinitionCacheSize int           `yaml:"definition_cache_size"`
	DefinitionCacheTTL  time.Duration `yaml:"definition_cache_ttl"`
	// MaxLoopSteps bounds a single agenda run; guards against flows that never reach a wait state.
	MaxLoopSteps int `yaml:"max_loop_steps"`
}

type JobExecutorConfig struct {
	Enabled               bool          `yaml:"enabled"`
	PollInterval          time.Duration `yaml:"poll_interval"`
	WorkerPoolSize        int           `yaml:"worker_pool_size"`
	QueueSize             int           `yaml:"queue_size"`
	MaxJobsPerAcquisition int           `yaml:"max_jobs_per_acquisition"`
	LockTime              time.Duration `yaml:"lock_time"`
	LeaseKey              string        `yaml:"lease_key"`
	RetryInitialInterval  time.Duration `yaml:"retry_initial_interval"`
	RetryMaxInterval      time.Duration `yaml:"retry_max_interval"`
}

type BizConfig struct {
	Engine      EngineConfig      `yaml:"engine"`
	JobExecutor JobExecutorConfig `yaml:"job_executor"`
}

var bizCfg = Default()

// GetBizConfig returns the process-wide biz config. cmd hands the same pointer to
// App.SetBizConfig so the loaded file overrides the defaults in place.
func GetBizConfig() *BizConfig { return bizCfg }

func Default() *BizConfig {
	return &BizConfig{
		Engine: EngineConfig{
			Name:                "default",
			HistoryLevel:        consts.HistoryAudit,
			DefinitionCacheSize: 256,
			DefinitionCacheTTL:  30 * time.Minute,
			MaxLoopSteps:        10000,
		},
		JobExecutor: JobExecutorConfig{
			Enabled:               true,
			PollInterval:          5 * time.Second,
			WorkerPoolSize:        4,
			QueueSize:             64,
			MaxJobsPerAcquisition: 3,
			LockTime:              5 * time.Minute,
			LeaseKey:              "procflow:job-acquisition",
			RetryInitialInterval:  10 * time.Second,
			RetryMaxInterval:      10 * time.Minute,
		},
	}
}

// Normalize fills zero values left by a partial biz_config section.
func (b *BizConfig) Normalize() {
	d := Default()
	if b.Engine.Name == "" {
		b.Engine.Name = d.Engine.Name
	}
	if b.Engine.HistoryLevel.Rank() < 0 {
		b.Engine.HistoryLevel = d.Engine.HistoryLevel
	}
	if b.Engine.DefinitionCacheSize <= 0 {
		b.Engine.DefinitionCacheSize = d.Engine.DefinitionCacheSize
	}
	if b.Engine.DefinitionCacheTTL <= 0 {
		b.Engine.DefinitionCacheTTL = d.Engine.DefinitionCacheTTL
	}
	if b.Engine.MaxLoopSteps <= 0 {
		b.Engine.MaxLoopSteps = d.Engine.MaxLoopSteps
	}
	je := &b.JobExecutor
	if je.PollInterval <= 0 {
		je.PollInterval = d.JobExecutor.PollInterval
	}
	if je.WorkerPoolSize <= 0 {
		je.WorkerPoolSize = d.JobExecutor.WorkerPoolSize
	}
	if je.QueueSize <= 0 {
		je.QueueSize = d.JobExecutor.QueueSize
	}
	if je.MaxJobsPerAcquisition <= 0 {
		je.MaxJobsPerAcquisition = d.JobExecutor.MaxJobsPerAcquisition
	}
	if je.LockTime <= 0 {
		je.LockTime = d.JobExecutor.LockTime
	}
	if je.LeaseKey == "" {
		je.LeaseKey = d.JobExecutor.LeaseKey
	}
	if je.RetryInitialInterval <= 0 {
		je.RetryInitialInterval = d.JobExecutor.RetryInitialInterval
	}
	if je.RetryMaxInterval <= 0 {
		je.RetryMaxInterval = d.JobExecutor.RetryMaxInterval
	}
}
