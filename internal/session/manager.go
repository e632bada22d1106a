package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"skeetstats/internal/logging"
	"skeetstats/internal/model"
	"skeetstats/internal/store"
)

// Client is the slice of the API client the manager drives: fresh
// logins and local installation of a resumed token bundle.
type Client interface {
	CreateSession(ctx context.Context, identifier, password string) (model.Session, error)
	SetSession(sess model.Session)
}

// ErrAuthFailed means both resumption and a fresh login failed. Fatal
// to the calling operation; callers retry on their own schedule (the
// next poll tick), never in-line.
var ErrAuthFailed = errors.New("authentication failed")

// Manager guarantees the shared client holds a usable session for the
// bot identity. Validity is lazy: a resumed token is trusted until an
// authenticated call rejects it, trading an occasional failed tick for
// one fewer round trip per operation.
type Manager struct {
	db         *store.DB
	client     Client
	did        string
	identifier string
	password   string
}

func NewManager(db *store.DB, client Client, did, identifier, password string) *Manager {
	return &Manager{db: db, client: client, did: did, identifier: identifier, password: password}
}

// DID returns the bot identity the manager ensures sessions for.
func (m *Manager) DID() string { return m.did }

// Ensure makes the client usable for calls under the bot identity.
// A stored blob is parsed and resumed locally; a missing or corrupt
// blob triggers a fresh login whose tokens overwrite the store.
func (m *Manager) Ensure(ctx context.Context) error {
	blob, err := m.db.LoadSession(ctx, m.did)
	if errors.Is(err, store.ErrNoSession) {
		return m.login(ctx)
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	var sess model.Session
	if err := json.Unmarshal([]byte(blob), &sess); err != nil || sess.AccessJwt == "" {
		logging.Info("session_blob_invalid", map[string]any{"user": m.did})
		return m.login(ctx)
	}
	m.client.SetSession(sess)
	return nil
}

// login performs a fresh credential login and persists the resulting
// bundle, overwriting whatever was stored.
func (m *Manager) login(ctx context.Context) error {
	sess, err := m.client.CreateSession(ctx, m.identifier, m.password)
	if err != nil {
		logging.ToFile("error.log", "login failed: "+err.Error())
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	m.client.SetSession(sess)
	tokens, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.db.SaveSession(ctx, m.did, string(tokens)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
