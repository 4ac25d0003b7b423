// Package switcher runs the capture → OCR → classify → volume loop.
package switcher

// Pipeline constants
const (
	// Applied transitions kept for the status surface
	HistorySize = 100

	// Buffered history events before new ones are dropped
	HistoryEventBuffer = 16

	// Longest OCR text kept in the status snapshot
	MaxStatusText = 256
)
