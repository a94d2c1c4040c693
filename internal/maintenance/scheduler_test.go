package maintenance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/incident-console/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	prunedAt time.Time
	calls    int
	toReturn int
}

func (f *fakeStore) PruneResolvedRecoveryChecks(olderThan time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prunedAt = olderThan
	f.calls++
	return f.toReturn
}

type fakeKnowledge struct {
	docs []domain.KnowledgeDocument
}

func (f fakeKnowledge) Documents() []domain.KnowledgeDocument { return f.docs }

func TestRunOncePrunesResolvedRecoveryChecks(t *testing.T) {
	store := &fakeStore{toReturn: 2}
	knowledgeStore := fakeKnowledge{docs: []domain.KnowledgeDocument{{}, {}, {}}}
	s := New(store, knowledgeStore)

	s.runOnce()

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.calls)
	assert.WithinDuration(t, time.Now().UTC().Add(-recoveryCheckRetention), store.prunedAt, 5*time.Second)
}

func TestStartAndStopRegistersCronJob(t *testing.T) {
	store := &fakeStore{}
	s := New(store, fakeKnowledge{})

	require.NoError(t, s.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
}
