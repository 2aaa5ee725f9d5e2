package coordinator

import (
	"github.com/example/taskforce/internal/backend"
)

// RetryStarter adapts the backend supervisor to the ProcessStarter
// interface, routing starts through per-binary circuit breaking and
// exponential backoff.
type RetryStarter struct {
	Supervisor *backend.Supervisor
	Breakers   *backend.BreakerRegistry
	Retry      backend.RetryConfig
	Command    string
}

// NewRetryStarter builds a starter with the default retry policy.
func NewRetryStarter(sup *backend.Supervisor, command string) *RetryStarter {
	return &RetryStarter{
		Supervisor: sup,
		Breakers:   backend.NewBreakerRegistry(),
		Retry:      backend.DefaultRetryConfig(),
		Command:    command,
	}
}

// Start spawns the process. Fresh starts are fail-fast so configuration
// problems surface immediately; resume restarts go through backoff and
// the breaker because they can hit transient conditions.
func (r *RetryStarter) Start(opts backend.StartOptions) (string, error) {
	if opts.ResumeSessionID == "" {
		h, err := r.Supervisor.Start(opts)
		if err != nil {
			return "", err
		}
		return h.SessionID(), nil
	}

	h, err := backend.StartWithRetry(r.Supervisor, opts, r.Breakers.Get(r.Command), r.Retry)
	if err != nil {
		return "", err
	}
	return h.SessionID(), nil
}

func (r *RetryStarter) Cancel(taskID string) {
	r.Supervisor.Cancel(taskID)
}

func (r *RetryStarter) RespondPermission(taskID, requestID, behavior string) error {
	return r.Supervisor.RespondPermission(taskID, requestID, behavior)
}

func (r *RetryStarter) HasLive(taskID string) bool {
	return r.Supervisor.HasLive(taskID)
}
