package crawler

// Outcome classifies how a fetch ended.
type Outcome string

// Fetch outcomes reported to an Observer.
const (
	// OutcomePage is an HTML page with status 200; its links were followed.
	OutcomePage Outcome = "page"

	// OutcomeNonHTML is a non-HTML resource with status 200. It is part of
	// the result but its body is not scanned.
	OutcomeNonHTML Outcome = "non_html"

	// OutcomeUnexpectedStatus is any response with a status other than 200.
	OutcomeUnexpectedStatus Outcome = "unexpected_status"

	// OutcomeTransportError is a fetch that produced no response.
	OutcomeTransportError Outcome = "transport_error"
)

// Observer receives crawl events. Methods are called from many goroutines
// at once and must not block.
type Observer interface {
	// URLDiscovered is called once for every URL admitted to the crawl.
	URLDiscovered(url string)

	// FetchStarted is called after a concurrency slot has been acquired.
	FetchStarted(url string)

	// FetchFinished is called once per FetchStarted, before the slot is
	// released.
	FetchFinished(url string, outcome Outcome)
}

type nopObserver struct{}

func (nopObserver) URLDiscovered(string)          {}
func (nopObserver) FetchStarted(string)           {}
func (nopObserver) FetchFinished(string, Outcome) {}
