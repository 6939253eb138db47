package client

import (
	"time"

	"marketchat/internal/app/realtime"
)

// typingDebounce is how long after the last keystroke the stop signal fires.
const typingDebounce = time.Second

// KeyPressed reports one keystroke aimed at the given peer. The first keystroke
// emits a typing_start; each subsequent one only pushes the debounce timer
// back, so a continuous burst of typing produces exactly one start and, one
// quiet period later, exactly one stop.
func (c *Client) KeyPressed(targetID string) {
	c.mu.Lock()
	if timer, ok := c.typingOut[targetID]; ok {
		timer.Reset(typingDebounce)
		c.mu.Unlock()
		return
	}

	c.typingOut[targetID] = c.clock.AfterFunc(typingDebounce, func() {
		c.typingExpired(targetID)
	})
	c.mu.Unlock()

	c.writeEvent(mustEvent(realtime.EventTypingStart, realtime.TypingPayload{
		UserID:       c.userID,
		TargetUserID: targetID,
	}))
}

// typingExpired fires when the debounce timer elapses without a keystroke.
func (c *Client) typingExpired(targetID string) {
	c.mu.Lock()
	_, ok := c.typingOut[targetID]
	delete(c.typingOut, targetID)
	c.mu.Unlock()

	// StopTyping may have raced the timer and already emitted the stop.
	if !ok {
		return
	}

	c.writeEvent(mustEvent(realtime.EventTypingStop, realtime.TypingPayload{
		UserID:       c.userID,
		TargetUserID: targetID,
	}))
}

// StopTyping ends the typing session immediately, as when the input is cleared
// or the message is sent. No-op if no session is in flight.
func (c *Client) StopTyping(targetID string) {
	c.mu.Lock()
	timer, ok := c.typingOut[targetID]
	if ok {
		timer.Stop()
		delete(c.typingOut, targetID)
	}
	c.mu.Unlock()

	if !ok {
		return
	}

	c.writeEvent(mustEvent(realtime.EventTypingStop, realtime.TypingPayload{
		UserID:       c.userID,
		TargetUserID: targetID,
	}))
}
