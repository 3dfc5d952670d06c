package jobs

import (
	"context"

	"github.com/straye-as/travel-crm-api/internal/service"
	"go.uber.org/zap"
)

// OperatorSyncJobName is the name of the operator catalog sync job
const OperatorSyncJobName = "operator_catalog_sync"

// OperatorSyncer pulls operators for every agency from the catalog
type OperatorSyncer interface {
	SyncAll(ctx context.Context) (*service.SyncResult, error)
}

// OperatorSyncJob runs the operator catalog sync
type OperatorSyncJob struct {
	syncer OperatorSyncer
	logger *zap.Logger
}

func NewOperatorSyncJob(syncer OperatorSyncer, logger *zap.Logger) *OperatorSyncJob {
	return &OperatorSyncJob{syncer: syncer, logger: logger}
}

func (j *OperatorSyncJob) Name() string { return OperatorSyncJobName }

func (j *OperatorSyncJob) Run(ctx context.Context) error {
	result, err := j.syncer.SyncAll(ctx)
	if err != nil {
		return err
	}

	j.logger.Info("operator catalog sync completed",
		zap.Int("agencies", result.Agencies),
		zap.Int("fetched", result.Fetched),
		zap.Int64("upserted", result.Upserted),
		zap.Int("failed", result.Failed))
	return nil
}
