package pass

import (
	"context"
	"errors"
	"testing"

	"github.com/bnema/accountpool/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubStore(prefix string, run runFunc) *Store {
	store := NewStore(prefix)
	store.run = run
	return store
}

func TestStorePutUsesPrefixedPassInsert(t *testing.T) {
	t.Parallel()

	called := false
	store := stubStore("apool/", func(ctx context.Context, input string, args ...string) (string, string, error) {
		called = true
		assert.Equal(t, []string{"insert", "-m", "-f", "apool/openai-main/acc-1"}, args)
		assert.Equal(t, "sk-top-secret\n", input)
		return "", "", nil
	})

	require.NoError(t, store.Put(context.Background(), "openai-main/acc-1", "sk-top-secret"))
	assert.True(t, called)
}

func TestStoreGetReturnsFirstLine(t *testing.T) {
	t.Parallel()

	store := stubStore(DefaultPrefix, func(ctx context.Context, input string, args ...string) (string, string, error) {
		assert.Equal(t, []string{"show", "apool/openai-main/acc-1"}, args)
		assert.Empty(t, input)
		return "sk-top-secret\r\norg: team-a\n", "", nil
	})

	value, err := store.Get(context.Background(), "openai-main/acc-1")
	require.NoError(t, err)
	assert.Equal(t, "sk-top-secret", value)
}

func TestStoreWithoutPrefixPassesRefThrough(t *testing.T) {
	t.Parallel()

	store := stubStore("", func(ctx context.Context, input string, args ...string) (string, string, error) {
		assert.Equal(t, []string{"rm", "-f", "openai-main/acc-1"}, args)
		return "", "", nil
	})

	require.NoError(t, store.Delete(context.Background(), "openai-main/acc-1"))
}

func TestStoreMissingEntry(t *testing.T) {
	t.Parallel()

	store := stubStore(DefaultPrefix, func(ctx context.Context, input string, args ...string) (string, string, error) {
		return "", "Error: apool/openai-main/ghost is not in the password store.", errors.New("exit status 1")
	})

	_, err := store.Get(context.Background(), "openai-main/ghost")
	require.ErrorIs(t, err, domain.ErrSecretNotFound)

	require.NoError(t, store.Delete(context.Background(), "openai-main/ghost"))
}

func TestStoreGetReturnsClearError(t *testing.T) {
	t.Parallel()

	store := stubStore(DefaultPrefix, func(ctx context.Context, input string, args ...string) (string, string, error) {
		return "", "gpg: decryption failed: No secret key", errors.New("exit status 2")
	})

	_, err := store.Get(context.Background(), "openai-main/acc-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrSecretNotFound)
	assert.ErrorContains(t, err, "pass get")
	assert.ErrorContains(t, err, "openai-main/acc-1")
	assert.ErrorContains(t, err, "No secret key")
}

func TestStoreUnavailableIsSurfaced(t *testing.T) {
	t.Parallel()

	store := stubStore(DefaultPrefix, func(ctx context.Context, input string, args ...string) (string, string, error) {
		return "", "", ErrUnavailable
	})

	err := store.Put(context.Background(), "openai-main/acc-1", "sk")
	require.ErrorIs(t, err, ErrUnavailable)
}
