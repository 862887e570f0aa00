// Package cronjob runs storage maintenance in the background. The
// collaboration workflow itself is strictly request-scoped; the only
// scheduled work is purging rows that sat soft-deleted long enough.
package cronjob

import (
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/teambrains/teambrains-backend/dao/model"
	"github.com/teambrains/teambrains-backend/pkg/logutils"
)

type PruneManager struct {
	db        *gorm.DB
	cron      *cron.Cron
	retention time.Duration
}

func NewPruneManager(db *gorm.DB, retentionDays int) *PruneManager {
	return &PruneManager{
		db:        db,
		cron:      cron.New(),
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Start schedules the pruning job; spec is a standard cron expression.
func (m *PruneManager) Start(spec string) error {
	if _, err := m.cron.AddFunc(spec, m.prune); err != nil {
		return err
	}
	m.cron.Start()
	return nil
}

func (m *PruneManager) Stop() {
	m.cron.Stop()
}

func (m *PruneManager) prune() {
	cutoff := time.Now().Add(-m.retention)
	// CV entries are excluded: portfolio history is never purged.
	targets := []any{
		&model.Task{},
		&model.SubTask{},
		&model.TaskStudent{},
		&model.ProjectMember{},
		&model.Project{},
	}
	for _, target := range targets {
		res := m.db.Unscoped().
			Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
			Delete(target)
		if res.Error != nil {
			logutils.Log.Warnf("prune %T: %v", target, res.Error)
			continue
		}
		if res.RowsAffected > 0 {
			logutils.Log.Infof("pruned %d soft-deleted rows of %T", res.RowsAffected, target)
		}
	}
}
