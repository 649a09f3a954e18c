// Package settlement executes purchases against a shop's trade offers,
// exchanging items between a buyer and the stock containers around the
// shop's trader.
package settlement

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"tradepost.ai/internal/shop"
)

type Status string

const (
	StatusOK                Status = "ok"
	StatusIgnored           Status = "ignored"
	StatusInvalidTrade      Status = "invalid_trade"
	StatusOutOfStock        Status = "out_of_stock"
	StatusNoSpace           Status = "no_space"
	StatusInsufficientFunds Status = "insufficient_funds"
	StatusError             Status = "error"
)

const (
	msgInvalidTrade      = "This trade is no longer valid."
	msgOutOfStock        = "This shop is out of stock."
	msgNoSpace           = "This shop has no room for your payment."
	msgInsufficientFunds = "You cannot afford this trade."
	msgFailed            = "The trade could not be completed."
)

type PurchaseRequest struct {
	TraderRef string
	// TradeIndex is a position in the shop's trade list, not a trade id.
	TradeIndex int
	Buyer      Buyer
}

// Result reports a purchase outcome. Message is empty for StatusIgnored and
// StatusOK.
type Result struct {
	Status   Status
	Message  string
	Trade    shop.Trade
	Received int
	Dropped  int
}

type Deps struct {
	Store   shop.Store
	Items   ItemRegistry
	Traders TraderLocator
	// Index and Scanner are both optional. The scanner backs up an index that
	// is absent or finds nothing.
	Index   SpatialIndex
	Scanner VolumeScanner
	Search  SearchConfig

	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

type Engine struct {
	store   shop.Store
	items   ItemRegistry
	traders TraderLocator
	index   SpatialIndex
	scanner VolumeScanner
	search  SearchConfig
	log     *zap.Logger
	metrics *metrics
}

func NewEngine(d Deps) (*Engine, error) {
	if d.Store == nil {
		return nil, errors.New("settlement: missing store")
	}
	if d.Items == nil {
		return nil, errors.New("settlement: missing item registry")
	}
	m, err := newMetrics(d.Registerer)
	if err != nil {
		return nil, fmt.Errorf("settlement: register metrics: %w", err)
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:   d.Store,
		items:   d.Items,
		traders: d.Traders,
		index:   d.Index,
		scanner: d.Scanner,
		search:  d.Search,
		log:     log.Named("settlement"),
		metrics: m,
	}, nil
}

func (e *Engine) Purchase(req PurchaseRequest) Result {
	res := e.purchase(req)
	e.metrics.settlements.WithLabelValues(string(res.Status)).Inc()
	return res
}

func (e *Engine) purchase(req PurchaseRequest) Result {
	if req.Buyer == nil || req.Buyer.Inventory() == nil {
		return Result{Status: StatusIgnored}
	}
	sh, ok, err := e.store.FindShopByTrader(req.TraderRef)
	if err != nil {
		e.log.Error("trader lookup failed", zap.String("trader", req.TraderRef), zap.Error(err))
		return Result{Status: StatusError, Message: msgFailed}
	}
	if !ok || req.TradeIndex < 0 || req.TradeIndex >= len(sh.Trades) {
		return Result{Status: StatusIgnored}
	}
	tr := sh.Trades[req.TradeIndex]
	log := e.log.With(
		zap.String("owner", sh.OwnerID),
		zap.String("shop", sh.DisplayName),
		zap.Int("trade", tr.ID),
	)

	if !e.items.Exists(tr.InputItem) || !e.items.Exists(tr.OutputItem) {
		log.Info("trade references unknown item", zap.String("input", tr.InputItem), zap.String("output", tr.OutputItem))
		return Result{Status: StatusInvalidTrade, Message: msgInvalidTrade, Trade: tr}
	}

	found := e.discover(req.TraderRef)
	e.metrics.discoveries.WithLabelValues(found.path).Inc()
	containers := found.containers
	buyerInv := req.Buyer.Inventory()

	stock := 0
	for _, c := range containers {
		stock += CountItem(c, tr.OutputItem)
	}
	if stock < tr.OutputQty {
		log.Debug("out of stock", zap.Int("stock", stock), zap.Int("containers", len(containers)))
		return Result{Status: StatusOutOfStock, Message: msgOutOfStock, Trade: tr}
	}
	inputMax := e.items.MaxStackSize(tr.InputItem)
	space := 0
	for _, c := range containers {
		space += FreeSpaceFor(c, tr.InputItem, inputMax)
	}
	if space < tr.InputQty {
		log.Debug("no space for payment", zap.Int("space", space))
		return Result{Status: StatusNoSpace, Message: msgNoSpace, Trade: tr}
	}
	if CountItem(buyerInv, tr.InputItem) < tr.InputQty {
		return Result{Status: StatusInsufficientFunds, Message: msgInsufficientFunds, Trade: tr}
	}

	received, dropped, err := e.exchange(tr, buyerInv, containers)
	if err != nil {
		log.Warn("exchange rolled back", zap.Error(err))
		return Result{Status: StatusError, Message: msgFailed, Trade: tr}
	}
	if dropped > 0 {
		req.Buyer.Drop(ItemStack{Item: tr.OutputItem, Count: dropped})
	}
	if received > 0 {
		req.Buyer.NotifyPickup(ItemStack{Item: tr.OutputItem, Count: received})
	}
	log.Info("trade settled",
		zap.Int("paid", tr.InputQty),
		zap.Int("received", received),
		zap.Int("dropped", dropped),
	)
	return Result{Status: StatusOK, Trade: tr, Received: received, Dropped: dropped}
}

// exchange moves the payment into the containers and the goods to the buyer.
// Every touched inventory is snapshotted first and restored if a step comes
// up short, so the guards' view and the applied result cannot diverge.
func (e *Engine) exchange(tr shop.Trade, buyer Inventory, containers []Inventory) (received, dropped int, err error) {
	buyerBefore := snapshotSlots(buyer)
	containersBefore := make([][]ItemStack, len(containers))
	for i, c := range containers {
		containersBefore[i] = snapshotSlots(c)
	}
	rollback := func() {
		restoreSlots(buyer, buyerBefore)
		for i, c := range containers {
			restoreSlots(c, containersBefore[i])
		}
	}

	if got := RemoveItem(buyer, tr.InputItem, tr.InputQty); got != tr.InputQty {
		rollback()
		return 0, 0, fmt.Errorf("took %d of %d %s from buyer", got, tr.InputQty, tr.InputItem)
	}
	need := tr.OutputQty
	for _, c := range containers {
		if need == 0 {
			break
		}
		need -= RemoveItem(c, tr.OutputItem, need)
	}
	if need > 0 {
		rollback()
		return 0, 0, fmt.Errorf("containers short %d %s", need, tr.OutputItem)
	}
	pay := tr.InputQty
	inputMax := e.items.MaxStackSize(tr.InputItem)
	for _, c := range containers {
		if pay == 0 {
			break
		}
		pay = AddItem(c, tr.InputItem, pay, inputMax)
	}
	if pay > 0 {
		rollback()
		return 0, 0, fmt.Errorf("containers could not hold %d %s", pay, tr.InputItem)
	}
	dropped = AddItem(buyer, tr.OutputItem, tr.OutputQty, e.items.MaxStackSize(tr.OutputItem))
	return tr.OutputQty - dropped, dropped, nil
}
