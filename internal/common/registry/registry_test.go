package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	name string
	err  error
}

func (c testConfig) Validate() error { return c.err }

func TestRegistry(t *testing.T) {
	r := New[testConfig, string]("widget")
	calls := 0
	factory := func(config testConfig) (string, error) {
		calls++
		return "built:" + config.name, nil
	}
	r.Register("zeta", factory)
	r.Register("alpha", factory)

	assert.Equal(t, []string{"alpha", "zeta"}, r.Types())
	assert.True(t, r.Has("alpha"))
	assert.False(t, r.Has("beta"))

	got, err := r.Create("alpha", testConfig{name: "a"})
	require.NoError(t, err)
	assert.Equal(t, "built:a", got)

	_, err = r.Create("beta", testConfig{})
	assert.EqualError(t, err, "widget type beta not registered")

	cause := errors.New("address is required")
	_, err = r.Create("zeta", testConfig{err: cause})
	assert.EqualError(t, err, "invalid zeta config: address is required")
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, 1, calls)
}
