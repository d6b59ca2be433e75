package config

import (
	"testing"
	"time"

	"github.com/grand-thief-cash/procflow/internal/consts"
)

func TestNormalizeFillsZeroValues(t *testing.T) {
	b := &BizConfig{Engine: EngineConfig{HistoryLevel: "bogus"}, JobExecutor: JobExecutorConfig{WorkerPoolSize: 9}}
	b.Normalize()
	if b.Engine.HistoryLevel != consts.HistoryAudit {
		t.Fatalf("expected audit history level, got %q", b.Engine.HistoryLevel)
	}
	if b.JobExecutor.WorkerPoolSize != 9 {
		t.Fatalf("explicit worker pool size overwritten: %d", b.JobExecutor.WorkerPoolSize)
	}
	if b.JobExecutor.PollInterval != 5*time.Second {
		t.Fatalf("expected default poll interval, got %v", b.JobExecutor.PollInterval)
	}
}
