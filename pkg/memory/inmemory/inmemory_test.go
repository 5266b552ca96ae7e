package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/barekit/rihlat/pkg/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	m := New()

	for i := 0; i < 7; i++ {
		require.NoError(t, m.Append(ctx, memory.NewTurn(memory.RoleUser, fmt.Sprintf("q%d", i))))
	}

	all, err := m.Turns(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 7)
	assert.Equal(t, "q0", all[0].Content)

	last, err := m.Recent(ctx, 5)
	require.NoError(t, err)
	require.Len(t, last, 5)
	assert.Equal(t, "q2", last[0].Content)
	assert.Equal(t, "q6", last[4].Content)

	none, err := m.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	more, err := m.Recent(ctx, 50)
	require.NoError(t, err)
	assert.Len(t, more, 7)
}

func TestRecentReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := New()
	require.NoError(t, m.Append(ctx, memory.NewTurn(memory.RoleAssistant, "hello")))

	got, _ := m.Recent(ctx, 1)
	got[0].Content = "changed"

	again, _ := m.Recent(ctx, 1)
	assert.Equal(t, "hello", again[0].Content)
}

func TestConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	m := New()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Append(ctx, memory.NewTurn(memory.RoleUser, "q"), memory.NewTurn(memory.RoleAssistant, "a"))
		}()
	}
	wg.Wait()

	all, _ := m.Turns(ctx)
	require.Len(t, all, 40)
	for i := 0; i < len(all); i += 2 {
		assert.Equal(t, memory.RoleUser, all[i].Role)
		assert.Equal(t, memory.RoleAssistant, all[i+1].Role)
	}
	assert.NotEqual(t, all[0].ID, all[1].ID)
}
