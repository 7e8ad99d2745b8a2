package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/local/docreader/internal/ai"
)

// State is the per-session context passed into each query: chat history,
// the page currently shown, and the counters the rate limiter reads.
// There is no process-wide session state.
type State struct {
	ID          string
	DocumentID  string
	History     []ai.HistoryTurn
	CurrentPage int
	QueryCount  int
	LastQuery   time.Time
}

// Store persists session state in Redis with a TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
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
	return &Store{client: c, ttl: ttl}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) key(id string) string { return fmt.Sprintf("session:%s", id) }

// Create initializes a new empty session and returns it.
func (s *Store) Create(ctx context.Context) (State, error) {
	st := State{ID: uuid.NewString()}
	if err := s.Save(ctx, st); err != nil {
		return State{}, err
	}
	return st, nil
}

func (s *Store) Save(ctx context.Context, st State) error {
	hist, err := json.Marshal(st.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	m := map[string]interface{}{
		"document_id":  st.DocumentID,
		"history":      string(hist),
		"current_page": st.CurrentPage,
		"query_count":  st.QueryCount,
		"last_query":   st.LastQuery.UnixNano(),
	}
	key := s.key(st.ID)
	if err := s.client.HSet(ctx, key, m).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

// Get returns the session state, reporting whether the session exists.
func (s *Store) Get(ctx context.Context, id string) (State, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return State{}, false, err
	}
	if len(res) == 0 {
		return State{}, false, nil
	}

	st := State{ID: id, DocumentID: res["document_id"]}
	if v := res["history"]; v != "" {
		if err := json.Unmarshal([]byte(v), &st.History); err != nil {
			return State{}, false, fmt.Errorf("unmarshal history: %w", err)
		}
	}
	st.CurrentPage, _ = strconv.Atoi(res["current_page"])
	st.QueryCount, _ = strconv.Atoi(res["query_count"])
	if v := res["last_query"]; v != "" {
		if ns, err := strconv.ParseInt(v, 10, 64); err == nil && ns > 0 {
			st.LastQuery = time.Unix(0, ns)
		}
	}
	return st, true, nil
}

// AppendHistory records a completed exchange and bumps the query counters.
func (s *Store) AppendHistory(ctx context.Context, st *State, question, answer string, answerPage int) error {
	st.History = append(st.History, ai.HistoryTurn{Question: question, Answer: answer})
	st.CurrentPage = answerPage
	st.QueryCount++
	st.LastQuery = time.Now()
	return s.Save(ctx, *st)
}
