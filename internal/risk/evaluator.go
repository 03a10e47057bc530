package risk

import (
	"errors"
	"fmt"
	"time"

	"riskwatch/internal/domain"

	"github.com/shopspring/decimal"
)

// Verdict is the outcome of evaluating one rule against one trade.
type Verdict struct {
	Violated      bool
	MeasuredValue string
}

// EvaluationContext carries the history an evaluator needs. Evaluators never
// read storage themselves; the engine fills only what the rule type uses.
type EvaluationContext struct {
	// Now is the event time of the trigger being evaluated.
	Now time.Time
	// PriorTrades are the account's trades strictly preceding the current one,
	// newest first, capped at the rule's lookback.
	PriorTrades []domain.Trade
	// OpenTradesInWindow counts open trades whose open time is inside the
	// rule's trailing window ending at Now.
	OpenTradesInWindow int
}

// Evaluate dispatches to the evaluator for the parameter variant.
func Evaluate(params domain.RuleParameters, account domain.Account, trade domain.Trade, ec EvaluationContext) (Verdict, error) {
	switch p := params.(type) {
	case domain.DurationParams:
		return evaluateDuration(p, trade)
	case domain.VolumeParams:
		return evaluateVolume(p, trade, ec.PriorTrades), nil
	case domain.TimeRangeParams:
		return evaluateTimeRange(p, ec.OpenTradesInWindow), nil
	default:
		return Verdict{}, fmt.Errorf("no evaluator for %T", params)
	}
}

func evaluateDuration(p domain.DurationParams, trade domain.Trade) (Verdict, error) {
	if trade.CloseTime == nil {
		return Verdict{}, errors.New("duration rule evaluated on an open trade")
	}
	elapsed := int64(trade.HeldFor() / time.Second)
	return Verdict{
		Violated:      elapsed < p.Seconds,
		MeasuredValue: fmt.Sprintf("held %ds (minimum %ds)", elapsed, p.Seconds),
	}, nil
}

func evaluateVolume(p domain.VolumeParams, trade domain.Trade, prior []domain.Trade) Verdict {
	if len(prior) > p.LookbackTrades {
		prior = prior[:p.LookbackTrades]
	}
	if len(prior) == 0 {
		return Verdict{MeasuredValue: fmt.Sprintf("volume %s (no prior trades)", trade.Volume)}
	}

	sum := decimal.Zero
	for _, t := range prior {
		sum = sum.Add(t.Volume)
	}
	// Compare volume*n against sum*factor so bounds are exact; mean is
	// rounded and only used for display.
	n := decimal.NewFromInt(int64(len(prior)))
	scaled := trade.Volume.Mul(n)
	mean := sum.Div(n)

	return Verdict{
		Violated: scaled.LessThan(sum.Mul(p.MinFactor)) || scaled.GreaterThan(sum.Mul(p.MaxFactor)),
		MeasuredValue: fmt.Sprintf("volume %s vs average %s of %d trades (allowed %s-%s)",
			trade.Volume, mean.Round(4), len(prior), mean.Mul(p.MinFactor).Round(4), mean.Mul(p.MaxFactor).Round(4)),
	}
}

func evaluateTimeRange(p domain.TimeRangeParams, open int) Verdict {
	return Verdict{
		Violated: open < p.MinOpenTrades || open > p.MaxOpenTrades,
		MeasuredValue: fmt.Sprintf("%d open trades in last %dm (allowed %d-%d)",
			open, p.WindowMinutes, p.MinOpenTrades, p.MaxOpenTrades),
	}
}

// eventTime returns the clock reading a trigger is evaluated at.
func eventTime(trade domain.Trade, trigger domain.TriggerPoint) time.Time {
	if trigger == domain.TriggerClose && trade.CloseTime != nil {
		return *trade.CloseTime
	}
	return trade.OpenTime
}
