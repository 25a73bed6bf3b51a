package app

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
	"github.com/deploymenttheory/go-efiboot/internal/firmware/emulator"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// TestContextRecord tests that firmware results are kept as the last status
func TestContextRecord(t *testing.T) {
	m := emulator.NewBare(48)
	ctx := NewContext(m.ImageHandle(), m)

	assert.Equal(t, types.StatusSuccess, ctx.LastStatus())

	t.Run("Success_Warning", func(t *testing.T) {
		err := ctx.Record(types.Status(4), "OutputString")
		assert.NoError(t, err)
		assert.Equal(t, types.Status(4), ctx.LastStatus())
	})

	t.Run("Error_Status", func(t *testing.T) {
		err := ctx.Record(types.StatusNotFound, "Open")
		require.Error(t, err)
		assert.Equal(t, types.StatusNotFound, ctx.LastStatus())
		assert.Equal(t, types.StatusNotFound, efierrors.StatusOf(err))
		assert.True(t, efierrors.Is(err, efierrors.CodeNotFound))
	})

	t.Run("RecordError", func(t *testing.T) {
		assert.NoError(t, ctx.RecordError(nil))
		assert.Equal(t, types.StatusNotFound, ctx.LastStatus(), "nil leaves the status alone")

		err := efierrors.FromStatus(types.StatusDeviceError, "Read")
		assert.Equal(t, err, ctx.RecordError(err))
		assert.Equal(t, types.StatusDeviceError, ctx.LastStatus())

		plain := errors.New("plain")
		assert.Equal(t, plain, ctx.RecordError(plain))
	})
}

// TestContextDerived tests that a context with another logger shares the system table
func TestContextDerived(t *testing.T) {
	m := emulator.NewBare(48)
	ctx := NewContext(m.ImageHandle(), m)

	assert.NoError(t, ctx.Err())

	logged := ctx.WithLogger(ctx.Logger)
	assert.Equal(t, ctx.ImageHandle, logged.ImageHandle)
	assert.Equal(t, ctx.System, logged.System)
	assert.NotNil(t, ctx.BootServices())
	assert.NotNil(t, ctx.RuntimeServices())
}

// TestContextPrintf tests console output
func TestContextPrintf(t *testing.T) {
	m := emulator.NewBare(48)
	ctx := NewContext(m.ImageHandle(), m)

	ctx.Printf("Booting in %d seconds\r\n", 3)
	assert.Equal(t, "Booting in 3 seconds\r\n", m.Console().Text())
}
