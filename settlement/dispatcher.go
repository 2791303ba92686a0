package settlement

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/shobande-femi/OrderBook/logging"
	"github.com/shobande-femi/OrderBook/metrics"
)

// TransferService executes a single payment leg against the downstream
// payments system
type TransferService interface {
	Transfer(ctx context.Context, leg PaymentLeg) error
}

// Dispatcher hands payment legs to the transfer service asynchronously.
// Dispatch never blocks order placement and failures are logged and counted
// but not retried; settlement is advisory, the book is the source of truth.
type Dispatcher struct {
	transfers TransferService
	legChan   chan PaymentLeg
	stopChan  chan struct{}
	wg        sync.WaitGroup
	once      sync.Once
}

func NewDispatcher(transfers TransferService) *Dispatcher {
	d := &Dispatcher{
		transfers: transfers,
		legChan:   make(chan PaymentLeg, 4096),
		stopChan:  make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case <-d.stopChan:
			// drain what was already accepted
			for {
				select {
				case leg := <-d.legChan:
					d.send(leg)
				default:
					return
				}
			}

		case leg := <-d.legChan:
			d.send(leg)
		}
	}
}

func (d *Dispatcher) send(leg PaymentLeg) {
	metrics.RecordPaymentLeg(leg.Currency)

	if err := d.transfers.Transfer(context.Background(), leg); err != nil {
		metrics.RecordSettlementDispatchFailure()
		logging.LogSettlementError(err, map[string]interface{}{
			"sender":    leg.Sender,
			"recipient": leg.Recipient,
			"currency":  leg.Currency,
			"quantity":  leg.Quantity.String(),
		})
	}
}

// Dispatch queues a batch of legs for asynchronous transfer. If the queue is
// full the overflow legs are dropped and counted as dispatch failures.
func (d *Dispatcher) Dispatch(legs []PaymentLeg) {
	for _, leg := range legs {
		select {
		case d.legChan <- leg:
		default:
			metrics.RecordSettlementDispatchFailure()
			logging.LogWithFields(logrus.WarnLevel, "Settlement queue full; dropping payment leg", logrus.Fields{
				"sender":    leg.Sender,
				"recipient": leg.Recipient,
				"currency":  leg.Currency,
			})
		}
	}

	if len(legs) > 0 {
		logging.LogSettlementDispatched(len(legs))
	}
}

// Stop drains the queue and stops the worker
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.stopChan)
	})
	d.wg.Wait()
}
