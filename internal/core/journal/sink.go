package journal

// Sink receives arrivals from the Tailer. Post is called on the tailer's
// goroutine and should hand the value off rather than do work inline.
type Sink interface {
	Post(Arrival)
}

// NopSink discards arrivals.
type NopSink struct{}

func (NopSink) Post(Arrival) {}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Arrival)

func (f SinkFunc) Post(a Arrival) { f(a) }

// ChanSink sends arrivals on a channel. Post blocks while the channel is full.
type ChanSink chan<- Arrival

func (c ChanSink) Post(a Arrival) { c <- a }

// QueueSink sends arrivals on C and waits while C is full. Once Done is
// closed Post returns without sending.
type QueueSink struct {
	C    chan<- Arrival
	Done <-chan struct{}
}

func (q QueueSink) Post(a Arrival) {
	select {
	case q.C <- a:
	case <-q.Done:
	}
}

var (
	_ Sink = NopSink{}
	_ Sink = SinkFunc(nil)
	_ Sink = ChanSink(nil)
	_ Sink = QueueSink{}
)
