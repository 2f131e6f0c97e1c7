package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, o := range []Options{{}, {Verbose: true}, {JSON: true}} {
		log, flush, err := New(o)
		require.NoError(t, err)
		assert.True(t, log.Enabled())
		assert.Equal(t, o.Verbose, log.V(1).Enabled())
		flush()
	}
}
