package fetch

// Observer receives progress notifications from a running fetch. All
// methods are called from the fetch's background goroutine and must not
// block; the core never prints anything itself.
type Observer interface {
	// Status reports a human-readable state change
	Status(message string)
	// Progress reports one detail-fetch tick
	Progress(current, total int, title string)
}

// NopObserver discards all notifications
type NopObserver struct{}

func (NopObserver) Status(string)             {}
func (NopObserver) Progress(int, int, string) {}
