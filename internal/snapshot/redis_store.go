package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"alertgraph/pkg/models"
)

// RedisConfig configures the Redis result mirror.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisStore mirrors every published snapshot into Redis so other
// processes can read the latest analysis without calling the API.
//
//	<prefix>:latest     full snapshot JSON
//	<prefix>:meta       hash of id, status, timestamps and result sizes
//	<prefix>:attackers  sorted set of source hosts scored by alert count
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects and pings Redis.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = "alertgraph"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis result store: %w", err)
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

// Name identifies the sink in logs and metrics.
func (s *RedisStore) Name() string {
	return "redis"
}

// WriteResult replaces the mirrored snapshot in a single transaction.
func (s *RedisStore) WriteResult(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil || snap.Result == nil {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.latestKey(), payload, 0)
	pipe.HSet(ctx, s.metaKey(), metaFields(snap)...)
	pipe.Del(ctx, s.attackersKey())
	if members := attackerMembers(snap.Result.Graph); len(members) > 0 {
		pipe.ZAdd(ctx, s.attackersKey(), members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write snapshot %s to redis: %w", snap.ID, err)
	}
	return nil
}

// Close closes Redis resources.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) latestKey() string {
	return s.prefix + ":latest"
}

func (s *RedisStore) metaKey() string {
	return s.prefix + ":meta"
}

func (s *RedisStore) attackersKey() string {
	return s.prefix + ":attackers"
}

func metaFields(snap *models.Snapshot) []interface{} {
	fields := []interface{}{
		"id", snap.ID,
		"status", snap.Status,
		"source", snap.Source,
		"analyzed_at", strconv.FormatInt(snap.AnalyzedAt.Unix(), 10),
		"parsed", strconv.Itoa(snap.Stats.Parsed),
		"skipped", strconv.Itoa(snap.Stats.Skipped),
	}
	if r := snap.Result; r != nil {
		fields = append(fields,
			"nodes", strconv.Itoa(len(r.Graph.Nodes)),
			"edges", strconv.Itoa(len(r.Graph.Edges)),
			"anomalies", strconv.Itoa(len(r.Anomalies)),
			"timeline", strconv.Itoa(len(r.Timeline)),
		)
	}
	return fields
}

// attackerMembers scores each source host by the events it raised. Every
// event with a source contributes exactly one host-to-alert edge hit, so
// summing those edges per source gives the per-host alert count.
func attackerMembers(g models.NetworkGraph) []redis.Z {
	alertNodes := make(map[string]struct{})
	for _, n := range g.Nodes {
		if n.Type == models.NodeAlert {
			alertNodes[n.ID] = struct{}{}
		}
	}

	index := make(map[string]int)
	var out []redis.Z
	for _, e := range g.Edges {
		if _, ok := alertNodes[e.Target]; !ok {
			continue
		}
		i, ok := index[e.Source]
		if !ok {
			i = len(out)
			index[e.Source] = i
			out = append(out, redis.Z{Member: e.Source})
		}
		out[i].Score += float64(e.Count)
	}
	return out
}
