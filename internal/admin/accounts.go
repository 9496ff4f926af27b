package admin

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is an operator allowed to log in to the console.
type Account struct {
	ID           string
	Username     string
	Name         string
	PasswordHash string
	Roles        []string
}

// AccountProvider resolves console accounts. Implementations: memory (env
// seeded, dev) and postgres.
type AccountProvider interface {
	FindByUsername(ctx context.Context, username string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
}

type memAccounts struct {
	log        *zap.SugaredLogger
	byUsername map[string]Account
	byID       map[string]Account
}

// NewMemoryAccountsFromEnv seeds accounts from ADMIN_ACCOUNTS_JSON, e.g.
// [{"username":"root","name":"Root","password":"...","roles":["admin"]}].
// Plaintext passwords in the seed are hashed at load; hashes pass through.
func NewMemoryAccountsFromEnv(log *zap.SugaredLogger) AccountProvider {
	p := &memAccounts{log: log, byUsername: map[string]Account{}, byID: map[string]Account{}}
	seed := os.Getenv("ADMIN_ACCOUNTS_JSON")
	if seed == "" {
		log.Warnf("ADMIN_ACCOUNTS_JSON not set, console login will reject everyone")
		return p
	}
	var entries []struct {
		ID           string   `json:"id"`
		Username     string   `json:"username"`
		Name         string   `json:"name"`
		Password     string   `json:"password"`
		PasswordHash string   `json:"password_hash"`
		Roles        []string `json:"roles"`
	}
	if err := json.Unmarshal([]byte(seed), &entries); err != nil {
		log.Warnw("account seed parse", "err", err)
		return p
	}
	for _, e := range entries {
		if e.Username == "" {
			continue
		}
		hash := e.PasswordHash
		if hash == "" && e.Password != "" {
			h, err := HashPassword(e.Password)
			if err != nil {
				log.Warnw("account seed hash", "username", e.Username, "err", err)
				continue
			}
			hash = h
		}
		acct := Account{
			ID:           e.ID,
			Username:     e.Username,
			Name:         e.Name,
			PasswordHash: hash,
			Roles:        e.Roles,
		}
		if acct.ID == "" {
			acct.ID = uuid.NewString()
		}
		p.byUsername[acct.Username] = acct
		p.byID[acct.ID] = acct
	}
	log.Infof("seeded %d console accounts from env", len(p.byUsername))
	return p
}

func (m *memAccounts) FindByUsername(ctx context.Context, username string) (Account, error) {
	if a, ok := m.byUsername[username]; ok {
		return a, nil
	}
	return Account{}, ErrAccountNotFound
}

func (m *memAccounts) FindByID(ctx context.Context, id string) (Account, error) {
	if a, ok := m.byID[id]; ok {
		return a, nil
	}
	return Account{}, ErrAccountNotFound
}
