package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpay/smartpay-api/pkg/client"
)

const cliWallet = `{"balance":1000.00,"monthly_limit":500.00,"spent_this_month":350.00,"percentage_spent":70.00,"alert":"none","can_transact":true}`

func newCLIEnv(t *testing.T) (*environment, *client.MemoryStore) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600,"user":{"name":"Priya","email":"priya@example.com"}}`))
	})
	mux.HandleFunc("POST /api/users/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/users/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"detail":"invalid token","code":"UNAUTHORIZED"}`))
			return
		}
		_, _ = w.Write([]byte(`{"name":"Priya","email":"priya@example.com"}`))
	})
	mux.HandleFunc("GET /api/wallet/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(cliWallet))
	})
	mux.HandleFunc("POST /api/wallet/payment", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transaction":{"transaction_type":"payment","amount":60.00,"description":"Groceries","balance_after":940.00},"wallet":{"balance":940.00}}`))
	})
	mux.HandleFunc("POST /api/wallet/set-limit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail":"Validation failed","code":"VALIDATION_ERROR","fields":{"monthly_limit":"must not be negative"}}`))
	})
	mux.HandleFunc("GET /api/wallet/transactions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"transaction_type":"payment","amount":60.00,"description":"Groceries","balance_after":940.00,"created_at":"2026-10-15T09:00:00Z"},{"transaction_type":"add_money","amount":1000.00,"description":"Added money to wallet","balance_after":1000.00,"created_at":"2026-10-14T09:00:00Z"}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := client.NewMemoryStore()
	return &environment{api: client.New(srv.URL, time.Second), store: store}, store
}

func TestCLIFlow(t *testing.T) {
	env, store := newCLIEnv(t)
	ctx := t.Context()
	var out bytes.Buffer

	err := run(ctx, []string{"wallet"}, &out, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	require.NoError(t, run(ctx, []string{"login", "-email", "priya@example.com", "-password", "secret123"}, &out, env))
	assert.Contains(t, out.String(), "Logged in as priya@example.com")
	saved, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)

	out.Reset()
	require.NoError(t, run(ctx, []string{"wallet"}, &out, env))
	assert.Contains(t, out.String(), "Balance:        1000.00")
	assert.Contains(t, out.String(), "350.00 of 500.00 (70.00%)")

	out.Reset()
	require.NoError(t, run(ctx, []string{"pay", "-amount", "60", "-pin", "2468", "-description", "Groceries"}, &out, env))
	assert.Contains(t, out.String(), "warning: this brings you to 82.00% of your monthly limit")
	assert.Contains(t, out.String(), "Paid 60.00 (Groceries). Balance: 940.00")

	out.Reset()
	require.NoError(t, run(ctx, []string{"history"}, &out, env))
	assert.Contains(t, out.String(), "-60.00")
	assert.Contains(t, out.String(), "+1000.00")

	err = run(ctx, []string{"set-limit", "-limit", "-5"}, &out, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monthly_limit: must not be negative")

	out.Reset()
	require.NoError(t, run(ctx, []string{"logout"}, &out, env))
	assert.Contains(t, out.String(), "Logged out.")
	saved, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestCLIRejectsBadInput(t *testing.T) {
	env, _ := newCLIEnv(t)
	ctx := t.Context()
	var out bytes.Buffer

	assert.ErrorIs(t, run(ctx, nil, &out, env), errUsage)
	assert.ErrorIs(t, run(ctx, []string{"transfer"}, &out, env), errUsage)

	err := run(ctx, []string{"add-money", "-amount", "ten"}, &out, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount")

	err = run(ctx, []string{"pay", "-amount", "0"}, &out, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid amount")
}

func TestCLIStaleSessionIsCleared(t *testing.T) {
	env, store := newCLIEnv(t)
	require.NoError(t, store.Save(&client.Session{Token: "revoked", ExpiresAt: time.Now().Add(time.Hour)}))

	err := run(t.Context(), []string{"history"}, &bytes.Buffer{}, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session expired")

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestCLICorruptSessionFile(t *testing.T) {
	env, _ := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))
	env.store = client.NewFileStore(path)

	err := run(t.Context(), []string{"wallet"}, &bytes.Buffer{}, env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable and has been removed")
	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)

	// logout still succeeds over a damaged file
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	var out bytes.Buffer
	require.NoError(t, run(t.Context(), []string{"logout"}, &out, env))
	assert.Contains(t, out.String(), "Logged out.")
	_, statErr = os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}
