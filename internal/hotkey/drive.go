package hotkey

import (
	"context"
	"log/slog"
)

// Target receives throttle intents. *control.Core implements it.
type Target interface {
	SubmitDesiredCurrent(v int)
	NotifyEditingEnded()
}

// Drive turns hotkey events into throttle intents: engage applies
// throttle, release takes the release path. Key auto-repeat is collapsed
// so each engagement submits once. Drive returns when events is closed or
// ctx is done; a held key is released on the way out.
func Drive(ctx context.Context, events <-chan Event, target Target, throttle int) {
	engaged := false
	defer func() {
		if engaged {
			target.NotifyEditingEnded()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Type {
			case EventEngage:
				if engaged {
					continue
				}
				engaged = true
				slog.Debug("[HOTKEY] engaged", "throttle", throttle)
				target.SubmitDesiredCurrent(throttle)
			case EventRelease:
				if !engaged {
					continue
				}
				engaged = false
				slog.Debug("[HOTKEY] released")
				target.NotifyEditingEnded()
			}
		}
	}
}
