package api

import (
	"math/big"
	"time"

	"github.com/dan13ram/yusd-settlement/models"
	"github.com/dan13ram/yusd-settlement/rewards"
	"github.com/dan13ram/yusd-settlement/settlement"
	"github.com/dan13ram/yusd-settlement/store"
)

type orderBody struct {
	Order     models.Order `json:"order"`
	Signature string       `json:"signature"`
}

type approveBody struct {
	CollateralAmount string `json:"collateral_amount"`
}

type custodyBody struct {
	Custodian string `json:"custodian"`
	Asset     string `json:"asset"`
	Amount    string `json:"amount"`
}

type priceBody struct {
	Price string `json:"price"`
}

type claimBody struct {
	Amount string `json:"amount"`
}

type mintView struct {
	Minted string `json:"minted"`
	Fee    string `json:"fee"`
}

type incomeView struct {
	Amount  string `json:"amount"`
	Rewards string `json:"rewards"`
	Fee     string `json:"fee"`
}

type outcomeView struct {
	Request  models.RedeemRequest `json:"request"`
	Rejected bool                 `json:"rejected"`
	Reason   string               `json:"reason,omitempty"`
}

type custodyView struct {
	Asset     string `json:"asset"`
	Held      string `json:"held"`
	Reserved  string `json:"reserved"`
	Frozen    string `json:"frozen"`
	Available string `json:"available"`
}

type transferView struct {
	Amount string `json:"amount"`
}

type limitView struct {
	Kind        string     `json:"kind"`
	Disabled    bool       `json:"disabled"`
	PeriodMs    int64      `json:"period_ms"`
	MaxAmount   string     `json:"max_amount,omitempty"`
	PeriodStart *time.Time `json:"period_start,omitempty"`
	Accumulated string     `json:"accumulated"`
	Remaining   string     `json:"remaining,omitempty"`
}

type snapshotView struct {
	SnapshotId string `json:"snapshot_id"`
	Total      string `json:"total"`
	Claimed    string `json:"claimed"`
	Unclaimed  string `json:"unclaimed"`
	Deposits   int64  `json:"deposits"`
}

func amountString(x *big.Int) string {
	if x == nil {
		return "0"
	}
	return x.String()
}

func newCustodyView(account settlement.CustodyAccount) custodyView {
	return custodyView{
		Asset:     store.Address(account.Asset),
		Held:      amountString(account.Held),
		Reserved:  amountString(account.Reserved),
		Frozen:    amountString(account.Frozen),
		Available: amountString(account.Available()),
	}
}

func newLimitView(window settlement.RateLimitWindow, now time.Time) limitView {
	view := limitView{
		Kind:     string(window.Kind),
		Disabled: window.Disabled(),
		PeriodMs: window.Period.Milliseconds(),
	}
	if view.Disabled {
		view.Accumulated = "0"
		return view
	}
	current := window.Current(now)
	start := current.StartTime
	view.PeriodStart = &start
	view.Accumulated = amountString(current.Accumulated)
	if window.MaxAmount != nil {
		view.MaxAmount = window.MaxAmount.String()
		view.Remaining = amountString(window.Remaining(now))
	}
	return view
}

func newSnapshotView(snapshot rewards.Snapshot) snapshotView {
	return snapshotView{
		SnapshotId: snapshot.ID,
		Total:      amountString(snapshot.Total),
		Claimed:    amountString(snapshot.Claimed),
		Unclaimed:  amountString(snapshot.Unclaimed()),
		Deposits:   snapshot.Deposits,
	}
}
