package checkpoints

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/capacity-checker/internal/domain"
	"github.com/yungbote/capacity-checker/internal/pkg/dbctx"
	"github.com/yungbote/capacity-checker/internal/pkg/logger"
)

type CheckpointRepo interface {
	Create(dbc dbctx.Context, cp *types.RebuildCheckpoint) (*types.RebuildCheckpoint, error)
	// LatestRunning returns nil, nil when the job has no unfinished run.
	LatestRunning(dbc dbctx.Context, job string) (*types.RebuildCheckpoint, error)
	Save(dbc dbctx.Context, cp *types.RebuildCheckpoint) error
	SetStatus(dbc dbctx.Context, id uuid.UUID, status string) error
	ListByJob(dbc dbctx.Context, job string, limit int) ([]*types.RebuildCheckpoint, error)
}

type checkpointRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCheckpointRepo(db *gorm.DB, baseLog *logger.Logger) CheckpointRepo {
	return &checkpointRepo{
		db:  db,
		log: baseLog.With("repo", "CheckpointRepo"),
	}
}

func (r *checkpointRepo) Create(dbc dbctx.Context, cp *types.RebuildCheckpoint) (*types.RebuildCheckpoint, error) {
	if cp.Status == "" {
		cp.Status = types.CheckpointRunning
	}
	if cp.RunID == "" {
		cp.RunID = uuid.New().String()
	}
	if err := dbc.Conn(r.db).Create(cp).Error; err != nil {
		return nil, err
	}
	return cp, nil
}

func (r *checkpointRepo) LatestRunning(dbc dbctx.Context, job string) (*types.RebuildCheckpoint, error) {
	if job == "" {
		return nil, nil
	}
	var out []*types.RebuildCheckpoint
	if err := dbc.Conn(r.db).
		Where("job = ? AND status = ?", job, types.CheckpointRunning).
		Order("started_at DESC").
		Limit(1).
		Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *checkpointRepo) Save(dbc dbctx.Context, cp *types.RebuildCheckpoint) error {
	if cp == nil || cp.ID == uuid.Nil {
		return nil
	}
	updates := map[string]interface{}{
		"status":     cp.Status,
		"offset_pos": cp.Offset,
		"processed":  cp.Processed,
		"skipped":    cp.Skipped,
		"extra":      cp.Extra,
		"updated_at": time.Now().UTC(),
	}
	if cp.Status == types.CheckpointCompleted {
		now := time.Now().UTC()
		cp.CompletedAt = &now
		updates["completed_at"] = now
	}
	return dbc.Conn(r.db).
		Model(&types.RebuildCheckpoint{}).
		Where("id = ?", cp.ID).
		Updates(updates).Error
}

func (r *checkpointRepo) SetStatus(dbc dbctx.Context, id uuid.UUID, status string) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.Conn(r.db).
		Model(&types.RebuildCheckpoint{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *checkpointRepo) ListByJob(dbc dbctx.Context, job string, limit int) ([]*types.RebuildCheckpoint, error) {
	out := []*types.RebuildCheckpoint{}
	q := dbc.Conn(r.db).Where("job = ?", job).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
