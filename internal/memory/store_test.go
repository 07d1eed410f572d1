package memory

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndWindow(t *testing.T) {
	store := NewStore(50)

	store.Append("c1", Message{Role: RoleUser, Content: "Hello", Timestamp: time.Now()})
	store.Append("c1", Message{Role: RoleAssistant, Content: "Hi there!", Timestamp: time.Now()})

	msgs := store.Window("c1", 10)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "Hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Hi there!", msgs[1].Content)
}

func TestStore_WindowReturnsLastN(t *testing.T) {
	store := NewStore(50)
	for i := 0; i < 5; i++ {
		store.Append("c1", Message{Role: RoleUser, Content: string(rune('A' + i))})
	}

	msgs := store.Window("c1", 3)
	require.Len(t, msgs, 3)
	assert.Equal(t, "C", msgs[0].Content)
	assert.Equal(t, "D", msgs[1].Content)
	assert.Equal(t, "E", msgs[2].Content)
}

func TestStore_WindowFewerThanN(t *testing.T) {
	store := NewStore(50)
	store.Append("c1", Message{Role: RoleUser, Content: "only one"})

	msgs := store.Window("c1", 10)
	require.Len(t, msgs, 1)
	assert.Equal(t, "only one", msgs[0].Content)
}

func TestStore_EmptyConversation(t *testing.T) {
	store := NewStore(50)
	assert.Empty(t, store.Window("nothing", 10))
	assert.Zero(t, store.Len("nothing"))
}

func TestStore_RetentionCap(t *testing.T) {
	store := NewStore(3)
	for i := 0; i < 10; i++ {
		store.Append("c1", Message{Role: RoleUser, Content: fmt.Sprintf("m%d", i)})
	}

	assert.Equal(t, 3, store.Len("c1"))
	msgs := store.Window("c1", 10)
	require.Len(t, msgs, 3)
	assert.Equal(t, "m7", msgs[0].Content)
	assert.Equal(t, "m9", msgs[2].Content)
}

func TestStore_Clear(t *testing.T) {
	store := NewStore(50)
	store.Append("c1", Message{Role: RoleUser, Content: "Hello"})
	store.Clear("c1")
	assert.Empty(t, store.Window("c1", 10))
}

func TestStore_ConversationsIsolated(t *testing.T) {
	store := NewStore(50)
	store.Append("c1", Message{Role: RoleUser, Content: "for c1"})
	store.Append("c2", Message{Role: RoleUser, Content: "for c2"})

	msgs := store.Window("c1", 10)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for c1", msgs[0].Content)

	msgs = store.Window("c2", 10)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for c2", msgs[0].Content)
}

func TestStore_ConcurrentAppendsNoLossNoDuplicates(t *testing.T) {
	store := NewStore(10000)

	const writers = 8
	const perWriter = 100

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				store.Append("c1", Message{
					Role:    RoleUser,
					Content: fmt.Sprintf("w%d-%d", w, i),
				})
			}
		}(w)
	}
	wg.Wait()

	msgs := store.Window("c1", writers*perWriter)
	require.Len(t, msgs, writers*perWriter)

	// Every append must appear exactly once, and each writer's own
	// messages must remain in its submission order.
	seen := make(map[string]int, len(msgs))
	lastIdx := make(map[int]int, writers)
	for w := 0; w < writers; w++ {
		lastIdx[w] = -1
	}
	for pos, m := range msgs {
		seen[m.Content]++
		var w, i int
		_, err := fmt.Sscanf(m.Content, "w%d-%d", &w, &i)
		require.NoError(t, err)
		assert.Greater(t, pos, lastIdx[w], "writer %d messages out of order", w)
		lastIdx[w] = pos
	}
	for content, count := range seen {
		assert.Equal(t, 1, count, "message %s duplicated", content)
	}
}

func TestStore_ConcurrentDistinctConversations(t *testing.T) {
	store := NewStore(50)

	var wg sync.WaitGroup
	for c := 0; c < 16; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", c)
			for i := 0; i < 20; i++ {
				store.Append(id, Message{Role: RoleUser, Content: fmt.Sprintf("%d", i)})
			}
		}(c)
	}
	wg.Wait()

	for c := 0; c < 16; c++ {
		id := fmt.Sprintf("conv-%d", c)
		msgs := store.Window(id, 50)
		require.Len(t, msgs, 20)
		for i, m := range msgs {
			assert.Equal(t, fmt.Sprintf("%d", i), m.Content)
		}
	}
}
