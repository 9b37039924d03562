package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/creditrisk/internal/database"
)

// walTruncateFrames is the WAL size, in frames, above which the job truncates the log
const walTruncateFrames = 1000

const checkpointTimeout = 30 * time.Second

// CheckWALCheckpointsJob checkpoints the run registry and truncates its WAL once it grows
type CheckWALCheckpointsJob struct {
	log       zerolog.Logger
	databases []*database.DB
}

// NewCheckWALCheckpointsJob creates the job; nil databases are ignored
func NewCheckWALCheckpointsJob(log zerolog.Logger, databases ...*database.DB) *CheckWALCheckpointsJob {
	dbs := make([]*database.DB, 0, len(databases))
	for _, db := range databases {
		if db != nil {
			dbs = append(dbs, db)
		}
	}
	return &CheckWALCheckpointsJob{
		log:       log.With().Str("job", "check_wal_checkpoints").Logger(),
		databases: dbs,
	}
}

func (j *CheckWALCheckpointsJob) Name() string {
	return "check_wal_checkpoints"
}

// Run never fails the schedule; a database that cannot be checkpointed is logged and skipped
func (j *CheckWALCheckpointsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	truncated := 0
	for _, db := range j.databases {
		log := j.log.With().Str("database", db.Name()).Logger()

		res, err := db.Checkpoint(ctx, database.CheckpointPassive)
		if err != nil {
			log.Warn().Err(err).Msg("Passive checkpoint failed")
			continue
		}
		if res.LogFrames <= walTruncateFrames {
			log.Debug().Int("wal_frames", res.LogFrames).Msg("WAL size OK")
			continue
		}

		log.Info().
			Int("wal_frames", res.LogFrames).
			Int("checkpointed", res.Checkpointed).
			Bool("busy", res.Busy).
			Msg("WAL is large, truncating")
		if _, err := db.Checkpoint(ctx, database.CheckpointTruncate); err != nil {
			log.Warn().Err(err).Msg("Truncating checkpoint failed")
			continue
		}
		truncated++
	}

	j.log.Debug().Int("databases", len(j.databases)).Int("truncated", truncated).Msg("WAL check completed")
	return nil
}
