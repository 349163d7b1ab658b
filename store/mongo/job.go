package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	ingest "github.com/Ricou-IA/baikal-ingest"
	"github.com/Ricou-IA/baikal-ingest/id"
	"github.com/Ricou-IA/baikal-ingest/queue"
)

// CreateJob persists a new job. The unique index on file_id enforces
// one live job per file.
func (s *Store) CreateJob(ctx context.Context, j *queue.Job) error {
	_, err := s.db.Collection(colJobs).InsertOne(ctx, toJobModel(j))
	if err != nil {
		if isDuplicateKey(err) {
			return ingest.ErrJobAlreadyExists
		}
		return fmt.Errorf("ingest/mongo: create job: %w", err)
	}
	return nil
}

// GetJob retrieves the job tracking the given file.
func (s *Store) GetJob(ctx context.Context, fileID id.FileID) (*queue.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).
		FindOne(ctx, bson.M{"file_id": fileID.String()}).
		Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, ingest.ErrJobNotFound
		}
		return nil, fmt.Errorf("ingest/mongo: get job: %w", err)
	}
	return fromJobModel(&m)
}

// UpsertStatus applies a status transition to the job tracking fileID,
// creating the document when no live entry exists. A single atomic
// FindOneAndUpdate carries the StatusUpdate field semantics: fields the
// update does not mention stay untouched, reset beats increment, a
// non-empty error message beats clearing. CompletedAt is set exactly
// when the new status is completed.
func (s *Store) UpsertStatus(ctx context.Context, fileID id.FileID, status queue.Status, upd queue.StatusUpdate) (*queue.Job, error) {
	t := now()

	set := bson.M{
		"status":     string(status),
		"updated_at": t,
	}
	inc := bson.M{}
	unset := bson.M{}

	switch {
	case upd.ResetAttempts:
		set["attempts"] = 0
	case upd.IncrementAttempts:
		// Missing on insert counts as zero, so a fresh row lands on 1.
		inc["attempts"] = 1
	}
	if upd.LastAttemptAt != nil {
		set["last_attempt_at"] = *upd.LastAttemptAt
	}
	if upd.NextRetryAt != nil {
		set["next_retry_at"] = *upd.NextRetryAt
	}
	switch {
	case upd.ErrorMessage != "":
		set["error_message"] = upd.ErrorMessage
	case upd.ClearError:
		set["error_message"] = ""
	}
	if upd.WorkerResponse != nil {
		set["worker_response"] = []byte(upd.WorkerResponse)
	}
	if status == queue.StatusCompleted {
		set["completed_at"] = t
	} else {
		unset["completed_at"] = ""
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":          id.NewJobID().String(),
			"max_attempts": queue.DefaultMaxAttempts,
			"created_at":   t,
		},
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var m jobModel
	err := s.db.Collection(colJobs).
		FindOneAndUpdate(ctx, bson.M{"file_id": fileID.String()}, update, opts).
		Decode(&m)
	if err != nil {
		return nil, fmt.Errorf("ingest/mongo: upsert status: %w", err)
	}
	return fromJobModel(&m)
}

// DeleteJob removes a job document by job ID.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	res, err := s.db.Collection(colJobs).DeleteOne(ctx, bson.M{"_id": jobID.String()})
	if err != nil {
		return fmt.Errorf("ingest/mongo: delete job: %w", err)
	}
	if res.DeletedCount == 0 {
		return ingest.ErrJobNotFound
	}
	return nil
}

// ListJobs returns jobs joined against the file registry, newest first.
// The $lookup stages play the role of the LEFT JOINs in the SQL stores:
// unwind with preserveNullAndEmptyArrays keeps dangling jobs, and a
// tenant match on the looked-up file drops them exactly when a filter
// is applied.
func (s *Store) ListJobs(ctx context.Context, opts queue.ListOpts) ([]*queue.JobDetail, error) {
	pipeline := mongod.Pipeline{}

	if opts.Status != "" {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: bson.M{
			"status": string(opts.Status),
		}}})
	}

	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         colFiles,
			"localField":   "file_id",
			"foreignField": "_id",
			"as":           "file",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{
			"path":                       "$file",
			"preserveNullAndEmptyArrays": true,
		}}},
	)

	if tenantMatch := tenantFilter(opts.AppID, opts.OrgID); len(tenantMatch) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: tenantMatch}})
	}

	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         colUploaders,
			"localField":   "file.created_by",
			"foreignField": "_id",
			"as":           "uploader",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{
			"path":                       "$uploader",
			"preserveNullAndEmptyArrays": true,
		}}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "created_at", Value: -1},
			{Key: "_id", Value: -1},
		}}},
	)

	if opts.Offset > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: int64(opts.Offset)}})
	}
	if opts.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: int64(opts.Limit)}})
	}

	cursor, err := s.db.Collection(colJobs).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("ingest/mongo: list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var models []jobDetailModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("ingest/mongo: list jobs decode: %w", err)
	}

	details := make([]*queue.JobDetail, 0, len(models))
	for i := range models {
		d, convErr := fromDetailModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("ingest/mongo: list jobs convert: %w", convErr)
		}
		details = append(details, d)
	}
	return details, nil
}

// CountJobs returns the number of jobs matching opts, with the same
// join semantics as ListJobs.
func (s *Store) CountJobs(ctx context.Context, opts queue.CountOpts) (int64, error) {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	// Without a tenant dimension no lookup is needed.
	if !opts.TenantFiltered() {
		count, err := s.db.Collection(colJobs).CountDocuments(ctx, filter)
		if err != nil {
			return 0, fmt.Errorf("ingest/mongo: count jobs: %w", err)
		}
		return count, nil
	}

	pipeline := mongod.Pipeline{}
	if len(filter) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: filter}})
	}
	pipeline = append(pipeline,
		fileLookupStages(tenantFilter(opts.AppID, opts.OrgID))...,
	)
	pipeline = append(pipeline, bson.D{{Key: "$count", Value: "count"}})

	return s.aggregateCount(ctx, pipeline)
}

// JobStats aggregates per-status counts for the given tenant scope with
// a single $group pass.
func (s *Store) JobStats(ctx context.Context, f queue.StatsFilter) (*queue.Stats, error) {
	pipeline := mongod.Pipeline{}

	if f.TenantFiltered() {
		pipeline = append(pipeline,
			fileLookupStages(tenantFilter(f.AppID, f.OrgID))...,
		)
	}

	pipeline = append(pipeline, bson.D{{Key: "$group", Value: bson.M{
		"_id":   "$status",
		"count": bson.M{"$sum": 1},
	}}})

	cursor, err := s.db.Collection(colJobs).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("ingest/mongo: job stats: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Status string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("ingest/mongo: job stats decode: %w", err)
	}

	stats := &queue.Stats{}
	for _, r := range rows {
		switch queue.Status(r.Status) {
		case queue.StatusQueued:
			stats.Queued = r.Count
		case queue.StatusSent:
			stats.Sent = r.Count
		case queue.StatusCompleted:
			stats.Completed = r.Count
		case queue.StatusFailed:
			stats.Failed = r.Count
		}
		stats.Total += r.Count
	}
	return stats, nil
}

// tenantFilter builds the post-lookup match on the joined file fields.
func tenantFilter(appID, orgID string) bson.M {
	match := bson.M{}
	if appID != "" {
		match["file.app_id"] = appID
	}
	if orgID != "" {
		match["file.org_id"] = orgID
	}
	return match
}

// fileLookupStages joins the file registry and applies a tenant match.
// A missing file never matches, so the stages are restrictive like a
// filtered LEFT JOIN.
func fileLookupStages(match bson.M) []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         colFiles,
			"localField":   "file_id",
			"foreignField": "_id",
			"as":           "file",
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$file",
			"preserveNullAndEmptyArrays": true,
		}}},
		{{Key: "$match", Value: match}},
	}
}

// aggregateCount runs a pipeline ending in $count and unwraps the result.
func (s *Store) aggregateCount(ctx context.Context, pipeline mongod.Pipeline) (int64, error) {
	cursor, err := s.db.Collection(colJobs).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("ingest/mongo: count jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var res []struct {
		Count int64 `bson:"count"`
	}
	if err := cursor.All(ctx, &res); err != nil {
		return 0, fmt.Errorf("ingest/mongo: count jobs decode: %w", err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0].Count, nil
}
