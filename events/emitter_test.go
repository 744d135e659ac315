package events

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestEmitterRecoversHandlerPanic(t *testing.T) {
	var buf bytes.Buffer
	e := NewEmitter(zerolog.New(&buf))

	var got []EventType
	e.Subscribe(EventCartridgeInserted, func(Event) { panic("boom") })
	e.SubscribeAll(func(ev Event) { got = append(got, ev.Type) })

	e.Emit(Event{Type: EventCartridgeInserted})
	if len(got) != 1 || got[0] != EventCartridgeInserted {
		t.Errorf("subscriber after panic: got %v", got)
	}
	if out := buf.String(); !strings.Contains(out, `"component":"events"`) || !strings.Contains(out, "boom") {
		t.Errorf("panic not logged:\n%s", out)
	}
}
