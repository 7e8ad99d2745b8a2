package limiter

import (
	"time"

	"github.com/local/docreader/internal/session"
)

// Limiter enforces per-session query limits: a cooldown between consecutive
// questions and a cap on questions per session. Exceeding a limit is a normal
// refusal, not an error.
type Limiter struct {
	cooldown   time.Duration
	maxQueries int
	now        func() time.Time
}

type Options struct {
	Cooldown   time.Duration
	MaxQueries int
}

func New(opts Options) *Limiter {
	if opts.Cooldown <= 0 {
		opts.Cooldown = 3 * time.Second
	}
	if opts.MaxQueries <= 0 {
		opts.MaxQueries = 50
	}
	return &Limiter{cooldown: opts.Cooldown, maxQueries: opts.MaxQueries, now: time.Now}
}

// Check reports whether the session may ask another question. When refused,
// the message is suitable for showing to the user directly.
func (l *Limiter) Check(st session.State) (bool, string) {
	if !st.LastQuery.IsZero() && l.now().Sub(st.LastQuery) < l.cooldown {
		return false, "Please wait a moment before sending another question."
	}
	if st.QueryCount >= l.maxQueries {
		return false, "Session question limit reached. Start a new session to continue."
	}
	return true, ""
}
