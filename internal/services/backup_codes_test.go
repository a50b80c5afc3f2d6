package services

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/authgate/backend/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backupCodePattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

func TestGenerateBackupCodes(t *testing.T) {
	codes, err := GenerateBackupCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := map[string]bool{}
	for _, code := range codes {
		assert.Regexp(t, backupCodePattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestCanonicalizeBackupCode(t *testing.T) {
	assert.Equal(t, "ABCD1234", CanonicalizeBackupCode(" abcd-1234 "))
	assert.Equal(t, "ABCD1234", CanonicalizeBackupCode("ab cd 12 34"))
}

func TestBackupCodeDigestIsUserBound(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.NotEqual(t, BackupCodeDigest(a, "ABCD1234"), BackupCodeDigest(b, "ABCD1234"))
	assert.Len(t, BackupCodeDigest(a, "ABCD1234"), 64)
}

func TestBackupCodeManager_ReplaceAndConsume(t *testing.T) {
	ctx := context.Background()
	users := store.NewUserStore(openTestDB(t))
	user := seedUser(t, users, "alice@x.com", "Str0ng!Pass")
	manager := NewBackupCodeManager(users, 0)

	first, err := manager.Replace(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, first, DefaultBackupCodeCount)

	ok, remaining, err := manager.Consume(ctx, user.ID, first[0])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 9, remaining)

	ok, _, err = manager.Consume(ctx, user.ID, first[0])
	require.NoError(t, err)
	assert.False(t, ok, "a code is single use")

	ok, _, err = manager.Consume(ctx, user.ID, "  "+strings.ToLower(first[1])+" ")
	require.NoError(t, err)
	assert.True(t, ok, "lowercase with whitespace is accepted")

	second, err := manager.Replace(ctx, user.ID)
	require.NoError(t, err)

	ok, _, err = manager.Consume(ctx, user.ID, first[2])
	require.NoError(t, err)
	assert.False(t, ok, "replaced codes stop working")

	ok, remaining, err = manager.Consume(ctx, user.ID, second[0])
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 9, remaining)
}

func TestBackupCodeManager_ConsumeEmpty(t *testing.T) {
	users := store.NewUserStore(openTestDB(t))
	user := seedUser(t, users, "alice@x.com", "Str0ng!Pass")

	ok, _, err := NewBackupCodeManager(users, 10).Consume(context.Background(), user.ID, "   ")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackupCodeManager_ConcurrentConsumeSucceedsOnce(t *testing.T) {
	ctx := context.Background()
	users := store.NewUserStore(openTestDB(t))
	user := seedUser(t, users, "alice@x.com", "Str0ng!Pass")
	manager := NewBackupCodeManager(users, 10)

	codes, err := manager.Replace(ctx, user.ID)
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, _, err := manager.Consume(ctx, user.ID, codes[3])
			if err == nil && ok {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
}
