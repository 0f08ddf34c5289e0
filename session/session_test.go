package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/viant/mcp-bridge/directory"
)

func TestSession_Lifecycle(t *testing.T) {
	aSession := New()
	assert.Equal(t, StateConnecting, aSession.State())

	assert.True(t, aSession.BeginAuth())
	assert.Equal(t, StateAuthenticating, aSession.State())

	agent := &directory.Agent{ID: "a1", ClientID: "client-1"}
	assert.True(t, aSession.Admit(agent))
	assert.Equal(t, StateFiltering, aSession.State())
	assert.Equal(t, agent, aSession.Agent())

	assert.False(t, aSession.Activate(nil))
	assert.True(t, aSession.Activate(&FilteredView{}))
	assert.Equal(t, StateActive, aSession.State())

	assert.True(t, aSession.Close())
	assert.Equal(t, StateClosed, aSession.State())
}

func TestSession_Reject(t *testing.T) {
	aSession := New()
	aSession.BeginAuth()
	assert.True(t, aSession.Reject())
	assert.Equal(t, StateRejected, aSession.State())

	// a rejected session never yields a disconnect cue
	assert.False(t, aSession.Close())
}

func TestSession_CloseBeforeActive(t *testing.T) {
	aSession := New()
	assert.False(t, aSession.Close())
	assert.Equal(t, StateClosed, aSession.State())

	// closed is terminal
	assert.False(t, aSession.BeginAuth())
	assert.Equal(t, StateClosed, aSession.State())
}

func TestSession_ErroredStillClosesOnce(t *testing.T) {
	aSession := New()
	aSession.BeginAuth()
	aSession.Admit(&directory.Agent{ID: "a1"})
	aSession.Activate(&FilteredView{})

	assert.True(t, aSession.Fail())
	assert.Equal(t, StateErrored, aSession.State())
	assert.True(t, aSession.Close())
	assert.False(t, aSession.Close())
}

func TestSession_CloseExactlyOnceUnderContention(t *testing.T) {
	aSession := New()
	aSession.BeginAuth()
	aSession.Admit(&directory.Agent{ID: "a1"})
	aSession.Activate(&FilteredView{})

	var wg sync.WaitGroup
	var closed int32
	results := make(chan bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- aSession.Close()
		}()
	}
	wg.Wait()
	close(results)
	for result := range results {
		if result {
			closed++
		}
	}
	assert.Equal(t, int32(1), closed, "exactly one closer wins the disconnect cue")
}
