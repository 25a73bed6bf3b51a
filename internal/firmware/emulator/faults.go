package emulator

import (
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// Operation names a firmware call that can be made to fail.
type Operation string

// Operations accepted by InjectFault.
const (
	OpAllocatePool       Operation = "AllocatePool"
	OpFreePool           Operation = "FreePool"
	OpGetMemoryMap       Operation = "GetMemoryMap"
	OpCreateEvent        Operation = "CreateEvent"
	OpSetTimer           Operation = "SetTimer"
	OpWaitForEvent       Operation = "WaitForEvent"
	OpHandleProtocol     Operation = "HandleProtocol"
	OpLocateHandleBuffer Operation = "LocateHandleBuffer"
	OpOpenProtocol       Operation = "OpenProtocol"
	OpGetTime            Operation = "GetTime"
	OpClearScreen        Operation = "ClearScreen"
	OpSetAttribute       Operation = "SetAttribute"
	OpOutputString       Operation = "OutputString"
	OpReadKeyStroke      Operation = "ReadKeyStroke"
	OpOpenVolume         Operation = "OpenVolume"
	OpOpen               Operation = "Open"
	OpClose              Operation = "Close"
	OpRead               Operation = "Read"
	OpSetPosition        Operation = "SetPosition"
	OpGetInfo            Operation = "GetInfo"
)

type fault struct {
	skip   int
	status types.Status
}

type faultInjector struct {
	pending map[Operation][]fault
}

func newFaultInjector() *faultInjector {
	return &faultInjector{pending: make(map[Operation][]fault)}
}

func (f *faultInjector) inject(op Operation, status types.Status) {
	f.injectAfter(op, 0, status)
}

func (f *faultInjector) injectAfter(op Operation, skip int, status types.Status) {
	f.pending[op] = append(f.pending[op], fault{skip: skip, status: status})
}

// take returns the status to fail op with, or StatusSuccess.
func (f *faultInjector) take(op Operation) types.Status {
	queue := f.pending[op]
	if len(queue) == 0 {
		return types.StatusSuccess
	}
	if queue[0].skip > 0 {
		queue[0].skip--
		return types.StatusSuccess
	}
	status := queue[0].status
	if len(queue) == 1 {
		delete(f.pending, op)
	} else {
		f.pending[op] = queue[1:]
	}
	return status
}
