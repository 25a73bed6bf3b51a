package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-efiboot/internal/efierrors"
	"github.com/deploymenttheory/go-efiboot/internal/firmware/emulator"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// TestMemoryMapServiceGetSnapshot tests the two-call size negotiation
func TestMemoryMapServiceGetSnapshot(t *testing.T) {
	m, ctx := newTestMachine(t)
	reader := NewMemoryMapService(ctx)

	snapshot, err := reader.GetSnapshot()
	require.NoError(t, err, "failed to read memory map")

	assert.Equal(t, 2, m.Stats().GetMemoryMapCalls)
	assert.Equal(t, 1, m.Stats().AllocatePoolCalls)
	assert.Equal(t, 4*48, snapshot.Size())
	assert.Equal(t, 48, snapshot.DescriptorSize())
	assert.Equal(t, types.MemoryDescriptorVersion, snapshot.DescriptorVersion())
	assert.Equal(t, 4, snapshot.Count())
	assert.NotZero(t, snapshot.Key())

	descriptors, err := snapshot.Descriptors()
	require.NoError(t, err)
	assert.Equal(t, testDescriptors(), descriptors)
	assert.Equal(t, types.StatusSuccess, ctx.LastStatus())

	require.NoError(t, snapshot.Release())
	require.NoError(t, snapshot.Release(), "second release is a no-op")
	assert.Equal(t, 1, m.Stats().FreePoolCalls)
	assert.Equal(t, 0, m.OutstandingPools())
	assert.False(t, snapshot.Iterator().Next(), "released snapshot yields nothing")
}

// TestMemoryMapServiceMapGrowth tests the single descriptor of slack
func TestMemoryMapServiceMapGrowth(t *testing.T) {
	t.Run("Success_GrowthWithinSlack", func(t *testing.T) {
		m, ctx := newTestMachine(t)
		m.SetMapGrowth(1)

		snapshot, err := NewMemoryMapService(ctx).GetSnapshot()
		require.NoError(t, err)
		defer snapshot.Release()

		assert.Equal(t, 5, snapshot.Count(), "allocation added its own descriptor")
		assert.Equal(t, 2, m.Stats().GetMemoryMapCalls)
	})

	t.Run("Error_GrowthBeyondSlack", func(t *testing.T) {
		m, ctx := newTestMachine(t)
		m.SetMapGrowth(2)

		_, err := NewMemoryMapService(ctx).GetSnapshot()
		require.Error(t, err)
		assert.True(t, efierrors.Is(err, efierrors.CodeBufferTooSmall))
		assert.Equal(t, types.StatusBufferTooSmall, ctx.LastStatus())
		assert.Equal(t, 2, m.Stats().GetMemoryMapCalls, "retry happens exactly once")
		assert.Equal(t, 0, m.OutstandingPools(), "buffer is freed on failure")
	})
}

// TestMemoryMapServiceEmptyMap tests a firmware reporting no descriptors
func TestMemoryMapServiceEmptyMap(t *testing.T) {
	m, ctx := newTestMachine(t)
	m.SetMemoryMap(nil)

	snapshot, err := NewMemoryMapService(ctx).GetSnapshot()
	require.NoError(t, err)

	assert.Equal(t, 0, snapshot.Size())
	assert.Equal(t, 0, snapshot.Count())
	assert.False(t, snapshot.Iterator().Next())
	assert.Equal(t, 0, m.Stats().AllocatePoolCalls)
	assert.Equal(t, 1, m.Stats().GetMemoryMapCalls)
	require.NoError(t, snapshot.Release())
	assert.Equal(t, 0, m.Stats().FreePoolCalls)
}

// TestMemoryMapServiceFailures tests firmware faults at each step
func TestMemoryMapServiceFailures(t *testing.T) {
	tests := []struct {
		name   string
		op     emulator.Operation
		skip   int
		status types.Status
		code   string
	}{
		{name: "SizeQuery", op: emulator.OpGetMemoryMap, status: types.StatusDeviceError, code: string(efierrors.CodeDeviceError)},
		{name: "Allocate", op: emulator.OpAllocatePool, status: types.StatusOutOfResources, code: string(efierrors.CodeOutOfResources)},
		{name: "Read", op: emulator.OpGetMemoryMap, skip: 1, status: types.StatusInvalidParameter, code: string(efierrors.CodeInvalidParameter)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ctx := newTestMachine(t)
			m.InjectFaultAfter(tt.op, tt.skip, tt.status)

			_, err := NewMemoryMapService(ctx).GetSnapshot()
			require.Error(t, err)
			assert.Equal(t, tt.code, string(efierrors.Code(err)))
			assert.Equal(t, tt.status, efierrors.StatusOf(err))
			assert.Equal(t, tt.status, ctx.LastStatus())
			assert.Equal(t, 0, m.OutstandingPools())
		})
	}
}

// TestMemoryMapServiceUnknownTypes tests that out-of-range types are yielded and reported
func TestMemoryMapServiceUnknownTypes(t *testing.T) {
	m, ctx := newTestMachine(t)
	descriptors := testDescriptors()
	descriptors[2].Type = types.MemoryType(0x80000000)
	m.SetMemoryMap(descriptors)

	snapshot, err := NewMemoryMapService(ctx).GetSnapshot()
	require.NoError(t, err)
	defer snapshot.Release()

	got, err := snapshot.Descriptors()
	require.Error(t, err)
	assert.True(t, efierrors.Is(err, efierrors.CodeInvalidParameter))
	assert.Len(t, got, 4)
	assert.Equal(t, "Unknown(0x80000000)", got[2].Type.String())
}

// TestMemoryMapServiceWideStride tests a descriptor stride larger than the structure
func TestMemoryMapServiceWideStride(t *testing.T) {
	m := emulator.NewBare(64)
	m.SetMemoryMap(testDescriptors())
	ctx := newContextFor(m)

	snapshot, err := NewMemoryMapService(ctx).GetSnapshot()
	require.NoError(t, err)
	defer snapshot.Release()

	assert.Equal(t, 64, snapshot.DescriptorSize())
	descriptors, err := snapshot.Descriptors()
	require.NoError(t, err)
	assert.Equal(t, testDescriptors(), descriptors)
}

// TestSummarizeMemoryMap tests aggregation by type
func TestSummarizeMemoryMap(t *testing.T) {
	_, ctx := newTestMachine(t)
	snapshot, err := NewMemoryMapService(ctx).GetSnapshot()
	require.NoError(t, err)
	defer snapshot.Release()

	summary, err := SummarizeMemoryMap(snapshot)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Descriptors)
	assert.Equal(t, uint64(0x7600), summary.PagesByType[types.EfiConventionalMemory])
	assert.Equal(t, uint64(0x100), summary.PagesByType[types.EfiLoaderData])
	assert.Equal(t, uint64(0x7600)*types.PageSize, summary.ConventionalBytes)
	assert.Equal(t, uint64(0x7800000), summary.HighestAddress)
}
