package repoctx

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcowham/corevcs/config"
)

func TestOpenRepositoryBuildsAllHandles(t *testing.T) {
	cfg, err := config.LoadConfigString(nil)
	require.NoError(t, err)

	ctx, err := OpenRepository(":memory:", cfg, logrus.New())
	require.NoError(t, err)
	defer ctx.Close()

	assert.NotNil(t, ctx.Repo)
	assert.NotNil(t, ctx.Store)
	assert.NotNil(t, ctx.Linker)
	assert.Nil(t, ctx.Checkout)
}

func TestAttachCheckout(t *testing.T) {
	cfg, err := config.LoadConfigString(nil)
	require.NoError(t, err)
	ctx, err := OpenRepository(":memory:", cfg, logrus.New())
	require.NoError(t, err)
	defer ctx.Close()

	require.NoError(t, ctx.AttachCheckout(":memory:"))
	assert.NotNil(t, ctx.Checkout)
}
