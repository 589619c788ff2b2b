package capacity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CheckpointRunning   = "running"
	CheckpointCompleted = "completed"
	CheckpointAbandoned = "abandoned"
)

// RebuildCheckpoint is the durable progress marker of a batch job (index rebuild,
// location mapping rebuild, crawl, backfill). A running checkpoint is resumed by the next run.
type RebuildCheckpoint struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Job   string    `gorm:"column:job;not null;index" json:"job"`
	RunID string    `gorm:"column:run_id;not null;uniqueIndex" json:"run_id"`

	// running|completed|abandoned
	Status string `gorm:"column:status;not null;index" json:"status"`

	Offset    int `gorm:"column:offset_pos;not null;default:0" json:"offset"`
	Processed int `gorm:"column:processed;not null;default:0" json:"processed"`
	Skipped   int `gorm:"column:skipped;not null;default:0" json:"skipped"`

	Extra datatypes.JSONMap `gorm:"column:extra" json:"extra,omitempty"`

	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
}

func (RebuildCheckpoint) TableName() string { return "rebuild_checkpoints" }

func (c *RebuildCheckpoint) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now().UTC()
	}
	return nil
}
