package recipient

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/platform/slack"
	apperrors "github.com/relayops/dispatch-api/pkg/errors"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/metrics"
)

// Resolver turns a recipient descriptor into a platform-addressable channel
// string. Directory lookups are cached; lookup failure degrades to the
// caller-supplied identifier instead of aborting the dispatch.
type Resolver struct {
	chat    slack.Chat
	cache   *gocache.Cache
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewResolver(chat slack.Chat, lookupTTL time.Duration, logger *logger.Logger, m *metrics.Metrics) *Resolver {
	if lookupTTL <= 0 {
		lookupTTL = time.Hour
	}
	return &Resolver{
		chat:    chat,
		cache:   gocache.New(lookupTTL, 2*lookupTTL),
		logger:  logger,
		metrics: m,
	}
}

// Resolve returns the channel identifier to dispatch to.
func (r *Resolver) Resolve(ctx context.Context, token string, rcpt model.Recipient) (string, error) {
	switch rcpt.Type {
	case model.RecipientTypeChannel, model.RecipientTypeUser:
		if rcpt.ID != "" {
			return rcpt.ID, nil
		}
		if rcpt.Name != "" {
			return rcpt.Name, nil
		}
		return "", apperrors.BadRequest("recipient has neither id nor name", nil)

	case model.RecipientTypeEmail:
		if rcpt.Email == "" {
			return "", apperrors.BadRequest("email recipient without an email", nil)
		}
		// User IDs are workspace-scoped, so the cache entry is bound to
		// the token that performed the lookup.
		key := token + "|" + rcpt.Email
		if cached, ok := r.cache.Get(key); ok {
			r.metrics.RecipientLookups.WithLabelValues("hit").Inc()
			return cached.(string), nil
		}

		userID, err := r.chat.LookupUserByEmail(ctx, token, rcpt.Email)
		if err != nil {
			// Lookup is a convenience, not a prerequisite: fall back to
			// whatever the caller supplied and let the dispatch decide.
			r.metrics.RecipientLookups.WithLabelValues("degraded").Inc()
			r.logger.Warn("directory lookup failed, using supplied identifier",
				"email", rcpt.Email, "error", err.Error())
			return fallbackIdentifier(rcpt), nil
		}

		r.metrics.RecipientLookups.WithLabelValues("miss").Inc()
		r.cache.SetDefault(key, userID)
		return userID, nil

	default:
		return "", apperrors.BadRequest("unknown recipient type", nil)
	}
}

func fallbackIdentifier(rcpt model.Recipient) string {
	if rcpt.ID != "" {
		return rcpt.ID
	}
	if rcpt.Name != "" {
		return rcpt.Name
	}
	return rcpt.Email
}
