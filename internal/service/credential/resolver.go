package credential

import (
	"github.com/relayops/dispatch-api/internal/model"
	apperrors "github.com/relayops/dispatch-api/pkg/errors"
)

// Resolver maps a sender specification to the workspace secret a dispatch
// must authenticate with. Pure: no network and no state side effects.
type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve returns the token for the given sender. A user sender with an
// explicit user ID must match a stored token; a user sender without one
// falls back to the workspace default token, then to the bot token.
func (r *Resolver) Resolve(ws *model.Workspace, sender model.Sender) (string, error) {
	if sender.Type == model.SenderTypeUser && sender.UserID != "" {
		for _, t := range ws.UserTokens {
			if t.UserID == sender.UserID {
				if t.Token == "" {
					return "", apperrors.NoCredentialAvailable(ws.Name)
				}
				return t.Token, nil
			}
		}
		return "", apperrors.CredentialNotFound(sender.UserID)
	}

	if sender.Type == model.SenderTypeUser {
		if t := defaultToken(ws.UserTokens); t != nil && t.Token != "" {
			return t.Token, nil
		}
	}

	if ws.BotToken == "" {
		return "", apperrors.NoCredentialAvailable(ws.Name)
	}
	return ws.BotToken, nil
}

// defaultToken returns the most recently created token flagged default.
// Uniqueness of the flag is not enforced by the store, so when concurrent
// writers leave several defaults behind the newest one wins.
func defaultToken(tokens []model.UserToken) *model.UserToken {
	var picked *model.UserToken
	for i := range tokens {
		t := &tokens[i]
		if !t.IsDefault {
			continue
		}
		if picked == nil || t.CreatedAt.After(picked.CreatedAt) {
			picked = t
		}
	}
	return picked
}
