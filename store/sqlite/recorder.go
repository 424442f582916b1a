/*
recorder.go - Write-behind archival worker

PURPOSE:
  Engines must not pay SQLite latency inside their critical sections.
  The Recorder accepts committed records over a buffered channel and a
  single worker goroutine writes them to the Archive. Ordering is
  preserved per Recorder because there is exactly one worker.

FAILURE MODE:
  Archival is best-effort history, not the source of truth. A failed
  write is logged and dropped; the in-memory stores remain correct.
  When the queue is full the enqueue blocks rather than dropping, so
  sustained archive slowness applies backpressure to callers.

SEE ALSO:
  - sqlite.go: the Archive the worker writes to
*/
package sqlite

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/hospital-engine/finance"
	"github.com/warp/hospital-engine/scheduling"
	"github.com/warp/hospital-engine/ward"
)

const writeTimeout = 5 * time.Second

// event is one record waiting to be archived. Exactly one field is set.
type event struct {
	appointment *scheduling.Appointment
	move        *ward.Move
	transaction *finance.Transaction
	payment     *finance.Payment
}

// Recorder archives committed records asynchronously.
type Recorder struct {
	archive *Archive
	events  chan event
	log     zerolog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

// NewRecorder starts the archival worker. Call Close to flush and stop it.
func NewRecorder(archive *Archive, queueSize int, log zerolog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		archive: archive,
		events:  make(chan event, queueSize),
		log:     log.With().Str("component", "archive-recorder").Logger(),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

// Appointment queues an appointment record for archival.
func (r *Recorder) Appointment(apt scheduling.Appointment) {
	r.events <- event{appointment: &apt}
}

// Move queues a ward move for archival.
func (r *Recorder) Move(m ward.Move) {
	r.events <- event{move: &m}
}

// Transaction queues a ledger entry for archival.
func (r *Recorder) Transaction(tx finance.Transaction) {
	r.events <- event{transaction: &tx}
}

// Payment queues a payment record for archival.
func (r *Recorder) Payment(p finance.Payment) {
	r.events <- event{payment: &p}
}

// Close drains the queue, writes everything queued so far and stops the
// worker. Safe to call more than once.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.events)
		<-r.done
	})
}

func (r *Recorder) run() {
	defer close(r.done)

	for ev := range r.events {
		r.write(ev)
	}
}

func (r *Recorder) write(ev event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	var err error
	switch {
	case ev.appointment != nil:
		err = r.archive.SaveAppointment(ctx, *ev.appointment)
	case ev.move != nil:
		err = r.archive.SaveMove(ctx, *ev.move)
	case ev.transaction != nil:
		err = r.archive.SaveTransaction(ctx, *ev.transaction)
	case ev.payment != nil:
		err = r.archive.SavePayment(ctx, *ev.payment)
	}

	if err != nil {
		r.log.Error().Err(err).Msg("archive write failed, record dropped")
	}
}
