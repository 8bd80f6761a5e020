package chain

import (
	"context"
	"errors"
	"testing"

	filestore "github.com/bnema/accountpool/internal/adapters/secrets/file"
	"github.com/bnema/accountpool/internal/domain"
	portmocks "github.com/bnema/accountpool/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const ref = "openai-main/acc-1"

func TestStoreGetUsesPrimaryWhenItSucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, ref).Return("from-pass", nil).Once()

	value, err := store.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "from-pass", value)
}

func TestStoreGetFallsBackWhenPrimaryMissesSecret(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, ref).Return("", domain.ErrSecretNotFound).Once()
	fallback.EXPECT().Get(mock.Anything, ref).Return("from-file", nil).Once()

	value, err := store.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "from-file", value)
}

func TestStoreGetReturnsCombinedErrorWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, ref).Return("", errors.New("pass failed")).Once()
	fallback.EXPECT().Get(mock.Anything, ref).Return("", domain.ErrSecretNotFound).Once()

	_, err := store.Get(context.Background(), ref)
	require.Error(t, err)
	assert.ErrorContains(t, err, "primary backend")
	assert.ErrorContains(t, err, "fallback backend")
	assert.ErrorContains(t, err, "pass failed")
	assert.ErrorIs(t, err, domain.ErrSecretNotFound)
}

func TestStorePutFallsBackWhenPrimaryFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Put(mock.Anything, ref, "sk").Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Put(mock.Anything, ref, "sk").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), ref, "sk"))
}

func TestStorePutDoesNotCallFallbackWhenPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Put(mock.Anything, ref, "sk").Return(nil).Once()

	require.NoError(t, store.Put(context.Background(), ref, "sk"))
}

func TestStoreDeleteClearsBothBackends(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Delete(mock.Anything, ref).Return(nil).Once()
	fallback.EXPECT().Delete(mock.Anything, ref).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), ref))
}

func TestStoreDeleteSucceedsWhenOneBackendFails(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Delete(mock.Anything, ref).Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Delete(mock.Anything, ref).Return(nil).Once()

	require.NoError(t, store.Delete(context.Background(), ref))
}

func TestStoreDeleteFailsWhenBothBackendsFail(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Delete(mock.Anything, ref).Return(errors.New("pass failed")).Once()
	fallback.EXPECT().Delete(mock.Anything, ref).Return(errors.New("disk failed")).Once()

	err := store.Delete(context.Background(), ref)
	require.ErrorContains(t, err, "pass failed")
	assert.ErrorContains(t, err, "disk failed")
}

func TestStoreGetDoesNotFallbackOnCanceledContextError(t *testing.T) {
	t.Parallel()

	primary := portmocks.NewMockSecretStore(t)
	fallback := portmocks.NewMockSecretStore(t)
	store := NewStore(primary, fallback)

	primary.EXPECT().Get(mock.Anything, ref).Return("", context.Canceled).Once()

	_, err := store.Get(context.Background(), ref)
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewStoreCheckedRejectsNilBackends(t *testing.T) {
	t.Parallel()

	_, err := NewStoreChecked(nil, filestore.NewStore(t.TempDir()), nil)
	require.ErrorIs(t, err, errNilPrimaryStore)

	_, err = NewStoreChecked(filestore.NewStore(t.TempDir()), nil, nil)
	require.ErrorIs(t, err, errNilFallbackStore)
}

func TestPassFirstFallsBackToFilesWithoutPass(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	root := t.TempDir()
	store, err := NewPassFirstWithFileFallback("apool", root, nil)
	require.NoError(t, err)

	require.NoError(t, store.Put(context.Background(), ref, "sk-file"))

	value, err := filestore.NewStore(root).Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", value)

	value, err = store.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "sk-file", value)

	require.NoError(t, store.Delete(context.Background(), ref))
	_, err = store.Get(context.Background(), ref)
	require.ErrorIs(t, err, domain.ErrSecretNotFound)
}
