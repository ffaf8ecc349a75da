package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushSubscriptionUpsert(t *testing.T) {
	db := setupTestDB(t)
	ps := NewParentStore(db)
	push := NewPushStore(db)
	parentID := createTestParent(t, ps)

	sub, err := push.CreateSubscription(parentID, "https://push.example.com/ep1", "p256dh-key", "auth-key")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, parentID, sub.ParentID)

	// Re-subscribing the same endpoint updates keys instead of duplicating.
	again, err := push.CreateSubscription(parentID, "https://push.example.com/ep1", "p256dh-key-2", "auth-key-2")
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "p256dh-key-2", again.P256dhKey)

	subs, err := push.ListByParent(parentID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestPushSubscriptionDelete(t *testing.T) {
	db := setupTestDB(t)
	ps := NewParentStore(db)
	push := NewPushStore(db)
	parentID := createTestParent(t, ps)

	sub, err := push.CreateSubscription(parentID, "https://push.example.com/ep1", "k", "a")
	require.NoError(t, err)

	require.NoError(t, push.DeleteSubscription(sub.ID))

	subs, err := push.ListByParent(parentID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
