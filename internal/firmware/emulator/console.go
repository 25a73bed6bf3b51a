package emulator

import (
	"io"
	"strings"
	"time"

	"github.com/deploymenttheory/go-efiboot/internal/interfaces"
	"github.com/deploymenttheory/go-efiboot/internal/types"
)

// Console records everything written to the text output protocol.
type Console struct {
	m         *Machine
	text      strings.Builder
	mirror    io.Writer
	attribute uint64
	clears    int
}

// Compile-time check to ensure Console implements SimpleTextOutput
var _ interfaces.SimpleTextOutput = (*Console)(nil)

func newConsole(m *Machine) *Console {
	return &Console{m: m, attribute: types.TextAttr(types.TextLightGray, types.TextBlack)}
}

// OutputString appends text to the console.
func (c *Console) OutputString(text string) types.Status {
	if status := c.m.faults.take(OpOutputString); status.IsError() {
		return status
	}
	c.text.WriteString(text)
	if c.mirror != nil {
		// Firmware consoles expect CRLF; the host terminal does not.
		io.WriteString(c.mirror, strings.ReplaceAll(text, "\r\n", "\n"))
	}
	return types.StatusSuccess
}

// ClearScreen clears the recorded text.
func (c *Console) ClearScreen() types.Status {
	if status := c.m.faults.take(OpClearScreen); status.IsError() {
		return status
	}
	c.text.Reset()
	c.clears++
	return types.StatusSuccess
}

// SetAttribute sets the text colours.
func (c *Console) SetAttribute(attribute uint64) types.Status {
	if status := c.m.faults.take(OpSetAttribute); status.IsError() {
		return status
	}
	if attribute > 0x7f {
		return types.StatusUnsupported
	}
	c.attribute = attribute
	return types.StatusSuccess
}

// Text returns everything written since the last clear.
func (c *Console) Text() string { return c.text.String() }

// Attribute returns the current text attribute.
func (c *Console) Attribute() uint64 { return c.attribute }

// Clears returns how often the screen was cleared.
func (c *Console) Clears() int { return c.clears }

type scriptedKey struct {
	key types.InputKey
	at  uint64
}

// Keyboard is the console input protocol. Scripted keys arrive at virtual
// times relative to when they were typed.
type Keyboard struct {
	m          *Machine
	queue      []scriptedKey
	waitEvent  types.Event
	autoKey    rune
	hasAutoKey bool
	resets     int
}

// Compile-time check to ensure Keyboard implements SimpleTextInput
var _ interfaces.SimpleTextInput = (*Keyboard)(nil)

func newKeyboard(m *Machine) *Keyboard {
	return &Keyboard{m: m, waitEvent: m.events.create(types.EventNotifyWait, true)}
}

// Press queues a key that arrives after delay of virtual time, counted from
// the arrival of the previously queued key or from now.
func (k *Keyboard) Press(key rune, delay time.Duration) {
	at := k.m.events.now
	if n := len(k.queue); n > 0 && k.queue[n-1].at > at {
		at = k.queue[n-1].at
	}
	at += uint64(delay / 100)
	k.queue = append(k.queue, scriptedKey{key: types.InputKey{UnicodeChar: uint16(key)}, at: at})
}

// Type queues every rune of keys, each delay apart.
func (k *Keyboard) Type(keys string, delay time.Duration) {
	for _, r := range keys {
		k.Press(r, delay)
	}
}

// Reset drops keys that have already arrived.
func (k *Keyboard) Reset(extendedVerification bool) types.Status {
	now := k.m.events.now
	i := 0
	for i < len(k.queue) && k.queue[i].at <= now {
		i++
	}
	k.queue = k.queue[i:]
	k.resets++
	return types.StatusSuccess
}

// ReadKeyStroke pops the next arrived key.
func (k *Keyboard) ReadKeyStroke() (types.InputKey, types.Status) {
	if status := k.m.faults.take(OpReadKeyStroke); status.IsError() {
		return types.InputKey{}, status
	}
	if !k.pending(k.m.events.now) {
		return types.InputKey{}, types.StatusNotReady
	}
	key := k.queue[0].key
	k.queue = k.queue[1:]
	return key, types.StatusSuccess
}

// WaitForKey returns the event signaled while a key is pending.
func (k *Keyboard) WaitForKey() types.Event { return k.waitEvent }

// Remaining returns the number of keys not yet read.
func (k *Keyboard) Remaining() int { return len(k.queue) }

// Resets returns how often input was reset.
func (k *Keyboard) Resets() int { return k.resets }

func (k *Keyboard) pending(now uint64) bool {
	return len(k.queue) > 0 && k.queue[0].at <= now
}

func (k *Keyboard) nextArrival(now uint64) (uint64, bool) {
	if len(k.queue) == 0 {
		return 0, false
	}
	return max(k.queue[0].at, now), true
}

// injectAuto queues the auto key when a wait in list includes the key event
// and nothing else can ever fire.
func (k *Keyboard) injectAuto(now uint64, list []*event) bool {
	if !k.hasAutoKey {
		return false
	}
	for _, ev := range list {
		if ev.key {
			k.queue = append(k.queue, scriptedKey{key: types.InputKey{UnicodeChar: uint16(k.autoKey)}, at: now})
			return true
		}
	}
	return false
}
