package core

import "context"

// ClearMode blanks the display once and returns.
type ClearMode struct {
	Display Display
}

func (m *ClearMode) Run(_ context.Context) error {
	return m.Display.Clear()
}
