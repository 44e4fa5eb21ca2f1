package aggregator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"tradejournal/src/model"
)

var ErrInvalidOrder = errors.New("aggregator: invalid order in batch")

// Aggregator turns a batch of executions into trades. It holds no state
// between calls: open trades go in as a parameter and come back in Result.
type Aggregator struct {
	logger *logrus.Entry
}

func NewAggregator(logger *logrus.Entry) *Aggregator {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Aggregator{logger: logger}
}

type Result struct {
	// Open trades keyed by symbol after the batch, including untouched ones.
	Open map[string]*model.Trade
	// Trades closed during the batch, in closing order.
	Closed []*model.Trade
	// Trades created during the batch, open or closed.
	Created  []*model.Trade
	Warnings []Warning

	touched map[string]bool
}

// Dirty returns the trades that must be written back: every closed trade
// followed by the open trades this batch modified, sorted by symbol.
func (r Result) Dirty() []*model.Trade {
	out := make([]*model.Trade, 0, len(r.Closed)+len(r.touched))
	out = append(out, r.Closed...)

	symbols := make([]string, 0, len(r.touched))
	for symbol := range r.touched {
		if _, ok := r.Open[symbol]; ok {
			symbols = append(symbols, symbol)
		}
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		out = append(out, r.Open[symbol])
	}
	return out
}

// DirtyOpen returns only the open part of Dirty.
func (r Result) DirtyOpen() []*model.Trade {
	return r.Dirty()[len(r.Closed):]
}

// Reconcile applies batch to existingOpen. Neither argument is modified:
// the batch is sorted on a copy and existing trades are cloned on first use.
// Data anomalies become warnings; only a malformed order returns an error.
func (a *Aggregator) Reconcile(batch []*model.Order, existingOpen map[string]*model.Trade) (Result, error) {
	for i, o := range batch {
		if o == nil {
			return Result{}, fmt.Errorf("%w: order %d is nil", ErrInvalidOrder, i)
		}
		if err := o.Validate(); err != nil {
			return Result{}, fmt.Errorf("%w: order %d: %v", ErrInvalidOrder, i, err)
		}
	}

	type indexed struct {
		idx   int
		order *model.Order
	}
	sorted := make([]indexed, len(batch))
	for i, o := range batch {
		sorted[i] = indexed{idx: i, order: o}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].order.ExecutionTime.Before(sorted[j].order.ExecutionTime)
	})

	working := make(map[string]*model.Trade, len(existingOpen))
	for symbol, t := range existingOpen {
		working[symbol] = t
	}
	ledgers := make(map[string]*ledger)

	result := Result{touched: make(map[string]bool)}

	for _, item := range sorted {
		o := item.order
		symbol := o.Symbol

		l := ledgers[symbol]
		if l == nil {
			if t, ok := working[symbol]; ok && t != nil {
				l = rebuildLedger(t)
				ledgers[symbol] = l
				working[symbol] = l.trade
			}
		}

		switch {
		case o.IsOpening() && l == nil:
			l = newLedger(o.UserID, o)
			ledgers[symbol] = l
			working[symbol] = l.trade
			result.Created = append(result.Created, l.trade)
			a.logger.WithFields(logrus.Fields{
				"symbol":    symbol,
				"direction": l.trade.Direction,
				"quantity":  o.AbsQuantity(),
			}).Debug("opened trade")

		case o.IsOpening() && l.trade.Direction != o.ImpliedDirection():
			result.Warnings = append(result.Warnings, a.warn(Warning{
				Kind:   WarningDirectionConflict,
				Symbol: symbol,
				Index:  item.idx,
				Order:  o,
				Trade:  l.trade,
				Message: fmt.Sprintf("%s %d %s ignored: %s trade is open in the opposite direction",
					o.Side, o.AbsQuantity(), symbol, l.trade.Direction),
			}))
			continue

		case o.IsOpening():
			l.addOpen(o)

		case l == nil:
			result.Warnings = append(result.Warnings, a.warn(Warning{
				Kind:    WarningOrphanClose,
				Symbol:  symbol,
				Index:   item.idx,
				Order:   o,
				Message: fmt.Sprintf("%s %d %s ignored: no open trade to close", o.Side, o.AbsQuantity(), symbol),
			}))
			continue

		case int64(o.AbsQuantity()) > l.remaining():
			result.Warnings = append(result.Warnings, a.warn(Warning{
				Kind:   WarningOverClose,
				Symbol: symbol,
				Index:  item.idx,
				Order:  o,
				Trade:  l.trade,
				Message: fmt.Sprintf("%s %d %s ignored: only %d left open",
					o.Side, o.AbsQuantity(), symbol, l.remaining()),
			}))
			continue

		default:
			l.addClose(o)
		}

		result.touched[symbol] = true

		if l.isFlat() {
			l.finalize()
			result.Closed = append(result.Closed, l.trade)
			delete(working, symbol)
			delete(ledgers, symbol)
			delete(result.touched, symbol)

			a.logger.WithFields(logrus.Fields{
				"symbol":    symbol,
				"direction": l.trade.Direction,
				"volume":    l.trade.Volume,
				"pnl":       *l.trade.Pnl,
			}).Debug("closed trade")
		}
	}

	result.Open = working
	return result, nil
}

func (a *Aggregator) warn(w Warning) Warning {
	a.logger.WithFields(logrus.Fields(w.Fields())).Warn(w.Message)
	return w
}
