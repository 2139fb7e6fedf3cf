package controller

import (
	"context"
	"encoding/hex"

	"github.com/rs/zerolog"
	"go.dedis.ch/optreg/core/ledger"
)

// eventLogger writes an entry for each transaction submitted to the ledger
// until it is stopped.
type eventLogger struct {
	logger zerolog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func startEventLogger(l *ledger.Ledger, logger zerolog.Logger) *eventLogger {
	ctx, cancel := context.WithCancel(context.Background())

	el := &eventLogger{
		logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go el.listen(ctx, l.Watch(ctx))

	return el
}

func (el *eventLogger) listen(ctx context.Context, events <-chan ledger.Event) {
	defer close(el.done)

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			entry := el.logger.Info().
				Uint64("index", evt.Index).
				Str("tx", hex.EncodeToString(evt.TxID)).
				Bool("accepted", evt.Result.Accepted).
				Uint64("gas", evt.Result.GasUsed)

			if !evt.Result.Accepted {
				entry = entry.Str("reason", evt.Result.Message)
			}

			entry.Msg("ledger event")
		}
	}
}

// stop waits for the listener to return.
func (el *eventLogger) stop() {
	el.cancel()
	<-el.done
}
