package console

import (
	"context"
	"fmt"
	"log/slog"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/id"
)

// DeleteJob removes the job row and cascades to its file.
//
// Completed jobs are refused with ingest.ErrJobCompleted and nothing is
// mutated. The job row is the primary resource: once it is gone, a file
// deletion failure is logged and hook-emitted but never rolls the job
// back. Both IDs must name the same live entry; a mismatched pair is
// reported as not found.
func (s *Service) DeleteJob(ctx context.Context, jobID id.JobID, fileID id.FileID) error {
	j, err := s.jobs.GetJob(ctx, fileID)
	if err != nil {
		return err
	}
	if j.ID != jobID {
		return fmt.Errorf("console: job %s does not track file %s: %w", jobID, fileID, ingest.ErrJobNotFound)
	}
	if j.Status.IsTerminal() {
		return fmt.Errorf("console: job %s: %w", jobID, ingest.ErrJobCompleted)
	}

	if err := s.jobs.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	s.ext.EmitJobDeleted(ctx, jobID)

	if err := s.files.DeleteFile(ctx, fileID); err != nil {
		s.ext.EmitFileDeleteFailed(ctx, fileID, err)
		s.logger.Warn("file cascade delete failed",
			slog.String("job_id", jobID.String()),
			slog.String("file_id", fileID.String()),
			slog.String("error", err.Error()),
		)
		return nil
	}

	s.logger.Info("job deleted",
		slog.String("job_id", jobID.String()),
		slog.String("file_id", fileID.String()),
	)
	return nil
}
