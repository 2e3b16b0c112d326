package input

import (
	"time"

	"github.com/halvard/go-pulsegen/pulsegen/backend"
	"github.com/halvard/go-pulsegen/pulsegen/input/action"
	"github.com/halvard/go-pulsegen/pulsegen/input/event"
)

// defaultDebounceDelay suits terminal key repeat rates.
const defaultDebounceDelay = 300 * time.Millisecond

// repeatable actions are exempt from debouncing so that holding a key
// ramps the value smoothly.
var repeatable = map[action.Action]bool{
	action.DutyIncrease:      true,
	action.DutyDecrease:      true,
	action.ChannelSelectNext: true,
	action.ChannelSelectPrev: true,
}

// Handler manages input processing with debouncing for one-shot UI actions.
type Handler struct {
	lastActionTime map[action.Action]time.Time
	debounceDelay  time.Duration
}

func NewHandler() *Handler {
	return &Handler{
		lastActionTime: make(map[action.Action]time.Time),
		debounceDelay:  defaultDebounceDelay,
	}
}

// ProcessEvent processes an input event, applying debouncing for
// Press/Release events of one-shot actions. Returns true if the event
// should be handled, false if it was debounced.
func (h *Handler) ProcessEvent(evt backend.InputEvent) bool {
	if evt.Type == event.Hold || repeatable[evt.Action] {
		return true
	}

	if evt.Type == event.Press || evt.Type == event.Release {
		now := time.Now()
		if lastTime, exists := h.lastActionTime[evt.Action]; exists {
			if now.Sub(lastTime) < h.debounceDelay {
				return false
			}
		}
		h.lastActionTime[evt.Action] = now
	}

	return true
}
