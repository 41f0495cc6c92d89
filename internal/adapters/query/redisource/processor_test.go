package redisource

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bnema/geppetto/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisSource(t *testing.T) (*miniredis.Miniredis, domain.DataSource) {
	t.Helper()
	mr := miniredis.RunT(t)
	return mr, domain.DataSource{ID: "cache", Kind: domain.DataSourceRedis, URL: "redis://" + mr.Addr() + "/0"}
}

func TestProcessReadsMatchingHashes(t *testing.T) {
	t.Parallel()

	mr, source := newRedisSource(t)
	mr.HSet("neuron:2", "name", "basket", "region", "ca1")
	mr.HSet("neuron:1", "name", "pyramidal")
	require.NoError(t, mr.Set("neuron:3", "orphan"))
	require.NoError(t, mr.Set("synapse:1", "ignored"))
	_, err := mr.Lpush("neuron:list", "skipped")
	require.NoError(t, err)

	processor := &Processor{}
	t.Cleanup(func() { _ = processor.Close() })

	results := domain.NewQueryResults("r")
	variable := domain.NewVariable("neurons")
	out, err := processor.Process(context.Background(), domain.ProcessQuery{ID: "neurons", Statement: "neuron:*", NameColumn: "name"}, source, variable, results, nil)
	require.NoError(t, err)
	assert.Same(t, results, out)

	records := results.Records()
	require.Len(t, records, 3)
	assert.Equal(t, map[string]any{"key": "neuron:1", "name": "pyramidal"}, records[0].Values)
	assert.Equal(t, map[string]any{"key": "neuron:2", "name": "basket", "region": "ca1"}, records[1].Values)
	assert.Equal(t, map[string]any{"key": "neuron:3", "value": "orphan"}, records[2].Values)
	assert.Equal(t, []string{"key", "name", "region", "value"}, results.Header())
	assert.Equal(t, "pyramidal", variable.Name())
}

func TestProcessAppliesCredentials(t *testing.T) {
	t.Parallel()

	mr, source := newRedisSource(t)
	mr.RequireAuth("s3cret")
	mr.HSet("k", "f", "v")

	processor := &Processor{}
	t.Cleanup(func() { _ = processor.Close() })

	_, err := processor.Process(context.Background(), domain.ProcessQuery{ID: "q", Statement: "*"}, source, domain.NewVariable("v"), domain.NewQueryResults("r"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrQueryBackend)

	source.Password = "s3cret"
	results := domain.NewQueryResults("r")
	_, err = processor.Process(context.Background(), domain.ProcessQuery{ID: "q", Statement: "*"}, source, domain.NewVariable("v"), results, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, results.Len())
}

func TestProcessMapsServerAndTransportErrors(t *testing.T) {
	t.Parallel()

	t.Run("server error reply", func(t *testing.T) {
		t.Parallel()

		mr, source := newRedisSource(t)
		mr.SetError("ERR injected failure")

		processor := &Processor{}
		t.Cleanup(func() { _ = processor.Close() })
		_, err := processor.Process(context.Background(), domain.ProcessQuery{ID: "q", Statement: "*"}, source, domain.NewVariable("v"), domain.NewQueryResults("r"), nil)

		var backendErr *domain.QueryBackendError
		require.ErrorAs(t, err, &backendErr)
		assert.Equal(t, "ERR", backendErr.Code)
	})

	t.Run("server gone", func(t *testing.T) {
		t.Parallel()

		mr, source := newRedisSource(t)
		mr.Close()

		processor := &Processor{}
		t.Cleanup(func() { _ = processor.Close() })
		results := domain.NewQueryResults("r")
		out, err := processor.Process(context.Background(), domain.ProcessQuery{ID: "q", Statement: "*"}, source, domain.NewVariable("v"), results, nil)
		assert.ErrorIs(t, err, domain.ErrQueryTransport)
		assert.Same(t, results, out)
	})
}

func TestProcessRejectsBadInput(t *testing.T) {
	t.Parallel()

	processor := &Processor{}
	_, err := processor.Process(context.Background(), domain.ProcessQuery{ID: "q", Statement: " "}, domain.DataSource{ID: "c", URL: "redis://localhost:6379"}, nil, domain.NewQueryResults("r"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = processor.Process(context.Background(), domain.ProcessQuery{ID: "q", Statement: "*"}, domain.DataSource{ID: "c", URL: "http://localhost"}, nil, domain.NewQueryResults("r"), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestProcessRequiresQueryID(t *testing.T) {
	t.Parallel()

	mr, source := newRedisSource(t)
	mr.HSet("cell:1", "name", "pyramidal")

	processor := &Processor{}
	t.Cleanup(func() { _ = processor.Close() })
	results := domain.NewQueryResults("r")

	out, err := processor.Process(context.Background(), domain.ProcessQuery{Statement: "cell:*"}, source, domain.NewVariable("v"), results, nil)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Same(t, results, out)
	assert.Zero(t, results.Len())
}
