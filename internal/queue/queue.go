package queue

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	livenessJobsKey  = "payid:liveness_jobs"
	livenessRetryKey = "payid:liveness_retry"
)

// ErrEmpty is returned by PopLivenessJob when no job arrived before the timeout.
var ErrEmpty = errors.New("liveness queue empty")

// Queue carries canonical PayIDs waiting for a liveness check.
type Queue struct {
	client *redis.Client
}

func New(url string) (*Queue, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	return &Queue{client: client}, nil
}

func (q *Queue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *Queue) PushLivenessJob(ctx context.Context, canonical string) error {
	return q.client.LPush(ctx, livenessJobsKey, canonical).Err()
}

// PopLivenessJob blocks up to timeout for the oldest job.
func (q *Queue) PopLivenessJob(ctx context.Context, timeout time.Duration) (string, error) {
	res, err := q.client.BRPop(ctx, timeout, livenessJobsKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrEmpty
	}
	if err != nil {
		return "", err
	}
	if len(res) < 2 {
		return "", ErrEmpty
	}
	return res[1], nil
}

// ScheduleRetry parks canonical until at. Scheduling the same PayID again moves
// its due time.
func (q *Queue) ScheduleRetry(ctx context.Context, canonical string, at time.Time) error {
	return q.client.ZAdd(ctx, livenessRetryKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: canonical,
	}).Err()
}

// promoteScript moves one member from the retry set to the job list. Only the
// caller whose ZREM removed the member pushes it, and both happen atomically.
var promoteScript = redis.NewScript(`
if redis.call("ZREM", KEYS[1], ARGV[1]) == 1 then
	redis.call("LPUSH", KEYS[2], ARGV[1])
	return 1
end
return 0
`)

// PromoteDue moves retries due at or before now onto the job list and returns
// how many were moved.
func (q *Queue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	due, err := q.client.ZRangeByScore(ctx, livenessRetryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, canonical := range due {
		n, err := promoteScript.Run(ctx, q.client, []string{livenessRetryKey, livenessJobsKey}, canonical).Int()
		if err != nil {
			return moved, err
		}
		moved += n
	}
	return moved, nil
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, livenessJobsKey).Result()
}

func (q *Queue) Pending(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, livenessRetryKey).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
