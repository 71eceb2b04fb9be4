package fcm

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatches(t *testing.T) {
	tokens := make([]string, 1203)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("t%d", i)
	}

	batches := Batches(tokens, 500)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 500)
	assert.Len(t, batches[2], 203)
	assert.Equal(t, "t1202", batches[2][202])

	assert.Empty(t, Batches(nil, 500))
}

func TestDisabledClient(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	c, err := NewClient(context.Background(), nil, log)
	require.NoError(t, err)
	assert.False(t, c.IsEnabled())
	assert.Error(t, c.SendMulticast(context.Background(), []string{"a"}, "t", "b", nil))
}
