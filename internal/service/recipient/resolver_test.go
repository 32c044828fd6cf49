package recipient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/pkg/logger"
	"github.com/relayops/dispatch-api/pkg/metrics"
)

type fakeChat struct {
	lookupCalls int
	userID      string
	perToken    map[string]string
	err         error
}

func (f *fakeChat) PostMessage(ctx context.Context, token, channel, text string, blocks model.BlockList) (string, error) {
	return "", nil
}

func (f *fakeChat) LookupUserByEmail(ctx context.Context, token, email string) (string, error) {
	f.lookupCalls++
	if f.err != nil {
		return "", f.err
	}
	if f.perToken != nil {
		return f.perToken[token], nil
	}
	return f.userID, nil
}

var testMetrics = metrics.NewMetrics("dispatch_test", "recipient")

func newTestResolver(chat *fakeChat) *Resolver {
	return NewResolver(chat, time.Minute, logger.NewLogger(nil), testMetrics)
}

func TestResolveChannelPrefersID(t *testing.T) {
	r := newTestResolver(&fakeChat{})

	ch, err := r.Resolve(context.Background(), "tok", model.Recipient{
		Type: model.RecipientTypeChannel, ID: "C123", Name: "#general",
	})
	require.NoError(t, err)
	assert.Equal(t, "C123", ch)
}

func TestResolveUserFallsBackToName(t *testing.T) {
	r := newTestResolver(&fakeChat{})

	ch, err := r.Resolve(context.Background(), "tok", model.Recipient{
		Type: model.RecipientTypeUser, Name: "@jane",
	})
	require.NoError(t, err)
	assert.Equal(t, "@jane", ch)
}

func TestResolveEmailLookupSuccess(t *testing.T) {
	chat := &fakeChat{userID: "U777"}
	r := newTestResolver(chat)

	ch, err := r.Resolve(context.Background(), "tok", model.Recipient{
		Type: model.RecipientTypeEmail, Email: "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "U777", ch)

	// Second resolve hits the cache, no extra provider call.
	_, err = r.Resolve(context.Background(), "tok", model.Recipient{
		Type: model.RecipientTypeEmail, Email: "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, chat.lookupCalls)
}

func TestResolveEmailCacheIsScopedToToken(t *testing.T) {
	// The same email maps to different user IDs in different workspaces;
	// a lookup cached under one workspace's token must not leak into
	// another's resolve.
	chat := &fakeChat{perToken: map[string]string{
		"xoxb-a": "U-IN-A",
		"xoxb-b": "U-IN-B",
	}}
	r := newTestResolver(chat)
	rcpt := model.Recipient{Type: model.RecipientTypeEmail, Email: "jane@example.com"}

	ch, err := r.Resolve(context.Background(), "xoxb-a", rcpt)
	require.NoError(t, err)
	assert.Equal(t, "U-IN-A", ch)

	ch, err = r.Resolve(context.Background(), "xoxb-b", rcpt)
	require.NoError(t, err)
	assert.Equal(t, "U-IN-B", ch)
	assert.Equal(t, 2, chat.lookupCalls)

	// Repeats for either workspace stay on the cache.
	_, err = r.Resolve(context.Background(), "xoxb-a", rcpt)
	require.NoError(t, err)
	assert.Equal(t, 2, chat.lookupCalls)
}

func TestResolveEmailLookupDegrades(t *testing.T) {
	chat := &fakeChat{err: fmt.Errorf("users_not_found")}
	r := newTestResolver(chat)

	ch, err := r.Resolve(context.Background(), "tok", model.Recipient{
		Type: model.RecipientTypeEmail, Email: "gone@example.com", Name: "gone",
	})
	require.NoError(t, err)
	assert.Equal(t, "gone", ch)

	// With nothing else supplied the email itself is the last resort.
	ch, err = r.Resolve(context.Background(), "tok", model.Recipient{
		Type: model.RecipientTypeEmail, Email: "gone@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "gone@example.com", ch)
}

func TestResolveRejectsEmptyDescriptor(t *testing.T) {
	r := newTestResolver(&fakeChat{})

	_, err := r.Resolve(context.Background(), "tok", model.Recipient{Type: model.RecipientTypeChannel})
	assert.Error(t, err)
}
