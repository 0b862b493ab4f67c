package relay_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marcelsud/request-relay/relay"
)

func TestState(t *testing.T) {
	all := []relay.State{
		relay.Received, relay.Created, relay.Enqueued, relay.UnmappedOrigin,
		relay.Active, relay.Completed, relay.Failed, relay.Timeout,
		relay.Panic, relay.Skipped,
	}

	t.Run("string round trip", func(t *testing.T) {
		for _, s := range all {
			assert.Equal(t, s, relay.NewState(s.String()), s.String())
		}
	})

	t.Run("unknown values", func(t *testing.T) {
		assert.Equal(t, "unknown", relay.State(0).String())
		assert.Equal(t, "unknown", relay.State(99).String())
		assert.Error(t, relay.State(0).Validate())
		assert.Error(t, relay.State(99).Validate())
		for _, s := range all {
			assert.NoError(t, s.Validate())
		}
	})

	t.Run("final vs retryable", func(t *testing.T) {
		finals := map[relay.State]bool{relay.Completed: true, relay.Skipped: true}
		retryables := map[relay.State]bool{relay.Failed: true, relay.Timeout: true, relay.Panic: true}
		for _, s := range all {
			assert.Equal(t, finals[s], s.IsFinal(), s.String())
			assert.Equal(t, retryables[s], s.IsRetryable(), s.String())
		}
	})
}
