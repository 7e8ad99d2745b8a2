package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Document states as exposed by /progress.
const (
	StatusIndexing = "indexing"
	StatusReady    = "ready"
	StatusRejected = "rejected"
)

// Document is the metadata of one uploaded PDF.
type Document struct {
	ID         string
	Name       string
	Ref        string // storage reference: local path or s3://bucket/key
	TotalPages int
	Status     string
	Message    string
	Uploaded   time.Time
}

// DocumentStore keeps document metadata in Redis.
type DocumentStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDocumentStore(redisURL string, ttl time.Duration) (*DocumentStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DocumentStore{client: c, ttl: ttl}, nil
}

func (s *DocumentStore) Close() error { return s.client.Close() }

func (s *DocumentStore) key(id string) string { return fmt.Sprintf("doc:%s", id) }

func (s *DocumentStore) Save(ctx context.Context, d Document) error {
	m := map[string]interface{}{
		"name":        d.Name,
		"ref":         d.Ref,
		"total_pages": d.TotalPages,
		"status":      d.Status,
		"message":     d.Message,
		"uploaded":    d.Uploaded.Format(time.RFC3339Nano),
	}
	key := s.key(d.ID)
	if err := s.client.HSet(ctx, key, m).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

func (s *DocumentStore) Get(ctx context.Context, id string) (Document, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return Document{}, false, err
	}
	if len(res) == 0 {
		return Document{}, false, nil
	}
	d := Document{
		ID:      id,
		Name:    res["name"],
		Ref:     res["ref"],
		Status:  res["status"],
		Message: res["message"],
	}
	d.TotalPages, _ = strconv.Atoi(res["total_pages"])
	if v := res["uploaded"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			d.Uploaded = t
		}
	}
	return d, true, nil
}

// SetStatus updates the document status and message.
func (s *DocumentStore) SetStatus(ctx context.Context, id, status, message string) error {
	return s.client.HSet(ctx, s.key(id), map[string]interface{}{
		"status":  status,
		"message": message,
	}).Err()
}
