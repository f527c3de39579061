package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/classifier/internal/core/domain"
)

// failedRecordTTL bounds how long inspection entries linger. The record
// store keeps the durable failed status; expired entries lose nothing.
const failedRecordTTL = 7 * 24 * time.Hour

// FailedRecordQueue is a Redis-backed inspection queue of records that
// exhausted classification, ordered by record id.
type FailedRecordQueue struct {
	rdb     *redis.Client
	jobName string
}

// NewFailedRecordQueue creates a queue scoped to one job.
func NewFailedRecordQueue(client *Client, jobName string) *FailedRecordQueue {
	return &FailedRecordQueue{
		rdb:     client.rdb,
		jobName: jobName,
	}
}

func (q *FailedRecordQueue) queueKey() string {
	return fmt.Sprintf("failed_records:%s", q.jobName)
}

func (q *FailedRecordQueue) recordKey(recordID int64) string {
	return fmt.Sprintf("failed_record:%s:%d", q.jobName, recordID)
}

// Push adds a failed record to the queue.
func (q *FailedRecordQueue) Push(ctx context.Context, recordID int64, summary string) error {
	fr := domain.FailedRecord{
		RecordID: recordID,
		JobName:  q.jobName,
		Summary:  summary,
		FailedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(fr)
	if err != nil {
		return fmt.Errorf("failed to marshal failed record: %w", err)
	}

	if err := q.rdb.Set(ctx, q.recordKey(recordID), data, failedRecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to set failed record: %w", err)
	}

	if err := q.rdb.ZAdd(ctx, q.queueKey(), redis.Z{
		Score:  float64(recordID),
		Member: strconv.FormatInt(recordID, 10),
	}).Err(); err != nil {
		return fmt.Errorf("failed to add to queue: %w", err)
	}

	return nil
}

// List retrieves all queued failed records in record id order.
func (q *FailedRecordQueue) List(ctx context.Context) ([]*domain.FailedRecord, error) {
	ids, err := q.rdb.ZRange(ctx, q.queueKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	records := make([]*domain.FailedRecord, 0, len(ids))
	for _, id := range ids {
		recordID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}

		data, err := q.rdb.Get(ctx, q.recordKey(recordID)).Bytes()
		if err == redis.Nil {
			// Entry expired but the id is still queued, drop it.
			q.rdb.ZRem(ctx, q.queueKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get failed record: %w", err)
		}

		var fr domain.FailedRecord
		if err := json.Unmarshal(data, &fr); err != nil {
			continue
		}
		records = append(records, &fr)
	}

	return records, nil
}

// Remove drops one record from the queue, typically after requeueing it.
func (q *FailedRecordQueue) Remove(ctx context.Context, recordID int64) error {
	if err := q.rdb.ZRem(ctx, q.queueKey(), strconv.FormatInt(recordID, 10)).Err(); err != nil {
		return fmt.Errorf("failed to remove from queue: %w", err)
	}
	if err := q.rdb.Del(ctx, q.recordKey(recordID)).Err(); err != nil {
		return fmt.Errorf("failed to delete failed record: %w", err)
	}
	return nil
}

// Clear empties the queue.
func (q *FailedRecordQueue) Clear(ctx context.Context) error {
	ids, err := q.rdb.ZRange(ctx, q.queueKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("zrange failed: %w", err)
	}

	for _, id := range ids {
		recordID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		if err := q.rdb.Del(ctx, q.recordKey(recordID)).Err(); err != nil {
			return fmt.Errorf("failed to delete failed record: %w", err)
		}
	}

	return q.rdb.Del(ctx, q.queueKey()).Err()
}

// Count returns the number of queued failed records.
func (q *FailedRecordQueue) Count(ctx context.Context) (int, error) {
	count, err := q.rdb.ZCard(ctx, q.queueKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard failed: %w", err)
	}
	return int(count), nil
}
