package settlement

import (
	"math"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tradepost.ai/internal/catalogs"
	"tradepost.ai/internal/persistence/jsonstore"
	"tradepost.ai/internal/shop"
	"tradepost.ai/internal/tuning"
)

const traderRef = "trader-1"

type fakeBuyer struct {
	inv     *SlotInventory
	drops   []ItemStack
	pickups []ItemStack
}

func (b *fakeBuyer) Inventory() Inventory { return b.inv }
func (b *fakeBuyer) Drop(s ItemStack) { b.drops = append(b.drops, s) }
func (b *fakeBuyer) NotifyPickup(s ItemStack) { b.pickups = append(b.pickups, s) }

type fakeEntity struct {
	pos BlockPos
	inv *SlotInventory
}

func (e fakeEntity) Center() Vec3 { return e.pos.Center() }

func (e fakeEntity) Container() (Inventory, bool) { return e.inv, e.inv != nil }

// fakeWorld serves both the index and the scanner from the same blocks.
type fakeWorld struct {
	blocks  map[BlockPos]*SlotInventory
	traders map[string]Vec3
	lookups int
}

func newWorld() *fakeWorld {
	return &fakeWorld{blocks: map[BlockPos]*SlotInventory{}, traders: map[string]Vec3{}}
}

func (w *fakeWorld) put(p BlockPos, inv *SlotInventory) *SlotInventory {
	w.blocks[p] = inv
	return inv
}

func (w *fakeWorld) TraderPosition(ref string) (Vec3, bool) {
	p, ok := w.traders[ref]
	return p, ok
}

// Nearby over-selects by one block so the engine's own box test is what
// decides membership.
func (w *fakeWorld) Nearby(c Vec3, rx, ry, rz float64) []BlockEntity {
	var out []fakeEntity
	for p, inv := range w.blocks {
		v := p.Center()
		if math.Abs(v.X-c.X) <= rx+1 && math.Abs(v.Y-c.Y) <= ry+1 && math.Abs(v.Z-c.Z) <= rz+1 {
			out = append(out, fakeEntity{pos: p, inv: inv})
		}
	}
	dist := func(e fakeEntity) float64 {
		v := e.Center()
		return (v.X-c.X)*(v.X-c.X) + (v.Y-c.Y)*(v.Y-c.Y) + (v.Z-c.Z)*(v.Z-c.Z)
	}
	sort.Slice(out, func(i, j int) bool { return dist(out[i]) < dist(out[j]) })
	ents := make([]BlockEntity, len(out))
	for i, e := range out {
		ents[i] = e
	}
	return ents
}

func (w *fakeWorld) ContainerAt(p BlockPos) (Inventory, bool) {
	w.lookups++
	inv, ok := w.blocks[p]
	return inv, ok
}

func testCatalog(t *testing.T) *catalogs.ItemCatalog {
	t.Helper()
	c, err := catalogs.New([]catalogs.ItemDef{{ID: "EMERALD"}, {ID: "BREAD"}, {ID: "PEARL", MaxStack: 16}})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return c
}

// openShop creates one shop bound to traderRef holding the given trades.
func openShop(t *testing.T, trades ...shop.Trade) shop.Store {
	t.Helper()
	s, err := jsonstore.Open(filepath.Join(t.TempDir(), "shops.json"), jsonstore.Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if _, err := s.CreateShop("owner-a", "Alice", "Market", false); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.SetTraderUUID("owner-a", "Market", traderRef); err != nil {
		t.Fatalf("bind: %v", err)
	}
	for _, tr := range trades {
		if _, err := s.AddTrade("owner-a", "Market", tr.InputItem, tr.InputQty, tr.OutputItem, tr.OutputQty); err != nil {
			t.Fatalf("add trade: %v", err)
		}
	}
	return s
}

type harness struct {
	engine *Engine
	world  *fakeWorld
	reg    *prometheus.Registry
}

func newHarness(t *testing.T, store shop.Store, search SearchConfig, useIndex bool) *harness {
	t.Helper()
	w := newWorld()
	w.traders[traderRef] = Vec3{X: 0.5, Y: 64, Z: 0.5}
	reg := prometheus.NewRegistry()
	d := Deps{
		Store:      store,
		Items:      testCatalog(t),
		Traders:    w,
		Scanner:    w,
		Search:     search,
		Registerer: reg,
	}
	if useIndex {
		d.Index = w
	}
	e, err := NewEngine(d)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return &harness{engine: e, world: w, reg: reg}
}

func fixedSearch(d int) SearchConfig {
	return SearchConfig{Mode: ModeFixed, FixedDistance: d}
}

func TestPurchase_Success(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 3, OutputItem: "BREAD", OutputQty: 3})
	h := newHarness(t, store, fixedSearch(2), true)
	chest := h.world.put(BlockPos{X: 1, Y: 64, Z: 0}, NewSlotInventory(4, ItemStack{Item: "BREAD", Count: 5}))
	buyer := &fakeBuyer{inv: NewSlotInventory(4, ItemStack{Item: "EMERALD", Count: 10})}

	res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, TradeIndex: 0, Buyer: buyer})
	if res.Status != StatusOK {
		t.Fatalf("status=%s msg=%q", res.Status, res.Message)
	}
	if res.Received != 3 || res.Dropped != 0 {
		t.Fatalf("received=%d dropped=%d", res.Received, res.Dropped)
	}
	if got := CountItem(buyer.inv, "EMERALD"); got != 7 {
		t.Fatalf("buyer emerald=%d want 7", got)
	}
	if got := CountItem(buyer.inv, "BREAD"); got != 3 {
		t.Fatalf("buyer bread=%d want 3", got)
	}
	wantChest := []ItemStack{{Item: "BREAD", Count: 2}, {Item: "EMERALD", Count: 3}, {}, {}}
	if diff := cmp.Diff(wantChest, snapshotSlots(chest)); diff != "" {
		t.Fatalf("chest (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]ItemStack{{Item: "BREAD", Count: 3}}, buyer.pickups); diff != "" {
		t.Fatalf("pickups (-want +got):\n%s", diff)
	}
	if len(buyer.drops) != 0 {
		t.Fatalf("unexpected drops: %+v", buyer.drops)
	}
}

func TestPurchase_GuardOrder(t *testing.T) {
	cases := []struct {
		name  string
		chest *SlotInventory
		buyer *SlotInventory
		want  Status
	}{
		{
			name:  "short funds with stock and space",
			chest: NewSlotInventory(4, ItemStack{Item: "BREAD", Count: 10}),
			buyer: NewSlotInventory(4, ItemStack{Item: "EMERALD", Count: 3}),
			want:  StatusInsufficientFunds,
		},
		{
			name:  "no stock wins over no funds",
			chest: NewSlotInventory(4),
			buyer: NewSlotInventory(4),
			want:  StatusOutOfStock,
		},
		{
			name:  "no space wins over no funds",
			chest: NewSlotInventory(1, ItemStack{Item: "BREAD", Count: 10}),
			buyer: NewSlotInventory(4),
			want:  StatusNoSpace,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 5, OutputItem: "BREAD", OutputQty: 1})
			h := newHarness(t, store, fixedSearch(2), true)
			h.world.put(BlockPos{X: 0, Y: 63, Z: 0}, tc.chest)
			chestBefore := snapshotSlots(tc.chest)
			buyerBefore := snapshotSlots(tc.buyer)
			buyer := &fakeBuyer{inv: tc.buyer}

			res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer})
			if res.Status != tc.want {
				t.Fatalf("status=%s want %s", res.Status, tc.want)
			}
			if res.Message == "" {
				t.Fatalf("guard result without message")
			}
			if diff := cmp.Diff(chestBefore, snapshotSlots(tc.chest)); diff != "" {
				t.Fatalf("chest mutated (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(buyerBefore, snapshotSlots(tc.buyer)); diff != "" {
				t.Fatalf("buyer mutated (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPurchase_NoSpaceCountsMatchingHeadroom(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "PEARL", InputQty: 4, OutputItem: "BREAD", OutputQty: 1})
	h := newHarness(t, store, fixedSearch(2), true)
	// pearls stack to 16: headroom 3, bread slot counts nothing
	h.world.put(BlockPos{X: 0, Y: 64, Z: 1}, NewSlotInventory(2,
		ItemStack{Item: "PEARL", Count: 13},
		ItemStack{Item: "BREAD", Count: 1},
	))
	buyer := &fakeBuyer{inv: NewSlotInventory(2, ItemStack{Item: "PEARL", Count: 4})}
	if res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer}); res.Status != StatusNoSpace {
		t.Fatalf("status=%s want no_space", res.Status)
	}

	// a second container supplies the missing room
	h.world.put(BlockPos{X: 1, Y: 64, Z: 1}, NewSlotInventory(1))
	if res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer}); res.Status != StatusOK {
		t.Fatalf("status=%s want ok", res.Status)
	}
}

func TestPurchase_InvalidTrade(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 1, OutputItem: "UNOBTAINIUM", OutputQty: 1})
	h := newHarness(t, store, fixedSearch(2), true)
	buyer := &fakeBuyer{inv: NewSlotInventory(1, ItemStack{Item: "EMERALD", Count: 1})}
	res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer})
	if res.Status != StatusInvalidTrade || res.Message == "" {
		t.Fatalf("got %+v", res)
	}
}

func TestPurchase_IgnoredWithoutShopOrTrade(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 1, OutputItem: "BREAD", OutputQty: 1})
	h := newHarness(t, store, fixedSearch(2), true)
	buyer := &fakeBuyer{inv: NewSlotInventory(1, ItemStack{Item: "EMERALD", Count: 1})}
	for _, req := range []PurchaseRequest{
		{TraderRef: "nobody", Buyer: buyer},
		{TraderRef: traderRef, TradeIndex: 1, Buyer: buyer},
		{TraderRef: traderRef, TradeIndex: -1, Buyer: buyer},
	} {
		res := h.engine.Purchase(req)
		if res.Status != StatusIgnored || res.Message != "" {
			t.Fatalf("req %+v: got %+v", req, res)
		}
	}
}

func TestPurchase_RemainderIsDropped(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 3, OutputItem: "BREAD", OutputQty: 5})
	h := newHarness(t, store, fixedSearch(2), true)
	h.world.put(BlockPos{X: 0, Y: 64, Z: 0}, NewSlotInventory(2, ItemStack{Item: "BREAD", Count: 5}))
	buyer := &fakeBuyer{inv: NewSlotInventory(2,
		ItemStack{Item: "EMERALD", Count: 10},
		ItemStack{Item: "BREAD", Count: 62},
	)}

	res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer})
	if res.Status != StatusOK {
		t.Fatalf("status=%s", res.Status)
	}
	if res.Received != 2 || res.Dropped != 3 {
		t.Fatalf("received=%d dropped=%d want 2/3", res.Received, res.Dropped)
	}
	if diff := cmp.Diff([]ItemStack{{Item: "BREAD", Count: 3}}, buyer.drops); diff != "" {
		t.Fatalf("drops (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]ItemStack{{Item: "BREAD", Count: 2}}, buyer.pickups); diff != "" {
		t.Fatalf("pickups (-want +got):\n%s", diff)
	}
}

func TestPurchase_UnknownTraderPositionHasNoStock(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 1, OutputItem: "BREAD", OutputQty: 1})
	h := newHarness(t, store, fixedSearch(2), true)
	delete(h.world.traders, traderRef)
	h.world.put(BlockPos{X: 0, Y: 64, Z: 0}, NewSlotInventory(1, ItemStack{Item: "BREAD", Count: 5}))
	buyer := &fakeBuyer{inv: NewSlotInventory(1, ItemStack{Item: "EMERALD", Count: 1})}
	if res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer}); res.Status != StatusOutOfStock {
		t.Fatalf("status=%s want out_of_stock", res.Status)
	}
}

func TestDiscovery_ScanMatchesIndex(t *testing.T) {
	w := newWorld()
	// inside, on the edge, and just outside a 2/1 box around (0.3, 64.7, -0.2)
	for _, p := range []BlockPos{
		{X: 0, Y: 64, Z: 0}, {X: 2, Y: 64, Z: 0}, {X: -2, Y: 64, Z: -2},
		{X: 1, Y: 65, Z: 1}, {X: 0, Y: 66, Z: 0}, {X: 3, Y: 64, Z: 0},
		{X: 0, Y: 62, Z: 0}, {X: -1, Y: 63, Z: 1}, {X: 0, Y: 64, Z: -3},
	} {
		w.put(p, NewSlotInventory(1))
	}
	box := Box{Center: Vec3{X: 0.3, Y: 64.7, Z: -0.2}, Horizontal: 2, Vertical: 1}

	indexed := indexedContainers(w, box, 64)
	scanned := scanContainers(w, box, 64)
	if len(indexed) == 0 {
		t.Fatalf("fixture found nothing")
	}
	idx, scan := inventorySet(indexed), inventorySet(scanned)
	if len(idx) != len(scan) {
		t.Fatalf("index found %d containers, scan found %d", len(idx), len(scan))
	}
	for inv := range idx {
		if !scan[inv] {
			t.Fatalf("scan missed a container the index found")
		}
	}
	for p, inv := range w.blocks {
		got := scan[inv]
		if want := box.Contains(p.Center()); got != want {
			t.Fatalf("block %+v: found=%v inside=%v", p, got, want)
		}
	}
}

func inventorySet(invs []Inventory) map[Inventory]bool {
	out := make(map[Inventory]bool, len(invs))
	for _, inv := range invs {
		out[inv] = true
	}
	return out
}

func TestDiscovery_FallsBackToScanAndHonorsLimit(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 1, OutputItem: "BREAD", OutputQty: 3})
	h := newHarness(t, store, SearchConfig{Mode: ModeFixed, FixedDistance: 2, MaxContainers: 2}, false)
	for x := -2; x <= 1; x++ {
		h.world.put(BlockPos{X: x, Y: 64, Z: 0}, NewSlotInventory(2, ItemStack{Item: "BREAD", Count: 1}))
	}
	buyer := &fakeBuyer{inv: NewSlotInventory(2, ItemStack{Item: "EMERALD", Count: 1})}

	// four containers in range hold one bread each, only two are searched
	res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer})
	if res.Status != StatusOutOfStock {
		t.Fatalf("status=%s want out_of_stock", res.Status)
	}
	if h.world.lookups == 0 {
		t.Fatalf("scanner was not used")
	}
	if got := testutil.ToFloat64(h.engine.metrics.discoveries.WithLabelValues("scan")); got != 1 {
		t.Fatalf("scan discoveries=%v want 1", got)
	}
}

func TestSearchConfig_Radii(t *testing.T) {
	cases := []struct {
		name      string
		cfg       SearchConfig
		h, v      float64
		wantLimit int
	}{
		{"fixed", SearchConfig{Mode: ModeFixed, FixedDistance: 5, MaxContainers: 8}, 5, 5, 8},
		{"fixed defaults", SearchConfig{Mode: ModeFixed}, 2, 2, 64},
		{"dynamic without tuning", SearchConfig{Mode: ModeDynamic, FixedDistance: 9}, 2, 2, 64},
		{"dynamic tuned", SearchConfig{Mode: ModeDynamic, Tuning: &tuning.TradeTuning{SearchHorizontal: 4.5, SearchVertical: 1.5, MaxContainers: 10}}, 4.5, 1.5, 10},
		{"dynamic partial", SearchConfig{Mode: ModeDynamic, Tuning: &tuning.TradeTuning{SearchVertical: 3}}, 2, 3, 64},
	}
	for _, tc := range cases {
		h, v, limit := tc.cfg.Radii()
		if h != tc.h || v != tc.v || limit != tc.wantLimit {
			t.Fatalf("%s: got %v/%v/%d want %v/%v/%d", tc.name, h, v, limit, tc.h, tc.v, tc.wantLimit)
		}
	}
}

func TestPurchase_DynamicRadiusReachesFartherChest(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 1, OutputItem: "BREAD", OutputQty: 1})
	far := BlockPos{X: 4, Y: 64, Z: 0}

	fixed := newHarness(t, store, fixedSearch(2), true)
	fixed.world.put(far, NewSlotInventory(2, ItemStack{Item: "BREAD", Count: 1}))
	buyer := &fakeBuyer{inv: NewSlotInventory(2, ItemStack{Item: "EMERALD", Count: 2})}
	if res := fixed.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer}); res.Status != StatusOutOfStock {
		t.Fatalf("fixed status=%s want out_of_stock", res.Status)
	}

	dyn := newHarness(t, store, SearchConfig{
		Mode:   ModeDynamic,
		Tuning: &tuning.TradeTuning{SearchHorizontal: 4, SearchVertical: 1},
	}, true)
	dyn.world.put(far, NewSlotInventory(2, ItemStack{Item: "BREAD", Count: 1}))
	if res := dyn.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer}); res.Status != StatusOK {
		t.Fatalf("dynamic status=%s want ok", res.Status)
	}
}

func TestPurchase_CountsOutcomes(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 1, OutputItem: "BREAD", OutputQty: 1})
	h := newHarness(t, store, fixedSearch(2), true)
	h.world.put(BlockPos{X: 0, Y: 64, Z: 0}, NewSlotInventory(2, ItemStack{Item: "BREAD", Count: 1}))
	buyer := &fakeBuyer{inv: NewSlotInventory(2, ItemStack{Item: "EMERALD", Count: 1})}

	h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer})
	h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer})
	h.engine.Purchase(PurchaseRequest{TraderRef: "nobody", Buyer: buyer})

	if got := testutil.ToFloat64(h.engine.metrics.settlements.WithLabelValues(string(StatusOK))); got != 1 {
		t.Fatalf("ok=%v want 1", got)
	}
	if got := testutil.ToFloat64(h.engine.metrics.settlements.WithLabelValues(string(StatusOutOfStock))); got != 1 {
		t.Fatalf("out_of_stock=%v want 1", got)
	}
	if got := testutil.ToFloat64(h.engine.metrics.settlements.WithLabelValues(string(StatusIgnored))); got != 1 {
		t.Fatalf("ignored=%v want 1", got)
	}
	if n, err := testutil.GatherAndCount(h.reg, "tradepost_settlements_total"); err != nil || n != 3 {
		t.Fatalf("gathered series=%d err=%v want 3", n, err)
	}

	// a second engine on the same registry shares the collectors
	e2, err := NewEngine(Deps{Store: store, Items: testCatalog(t), Registerer: h.reg})
	if err != nil {
		t.Fatalf("second engine: %v", err)
	}
	if e2.metrics.settlements != h.engine.metrics.settlements {
		t.Fatalf("collector not reused")
	}
}

func TestExchange_RollsBackShortStep(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 2, OutputItem: "BREAD", OutputQty: 2})
	h := newHarness(t, store, fixedSearch(2), true)
	buyerInv := NewSlotInventory(2, ItemStack{Item: "EMERALD", Count: 5})
	chest := NewSlotInventory(2, ItemStack{Item: "BREAD", Count: 2})
	buyerBefore := snapshotSlots(buyerInv)
	chestBefore := snapshotSlots(chest)

	// called without the guards: the chest holds one bread fewer than asked
	tr := shop.Trade{ID: 1, InputItem: "EMERALD", InputQty: 2, OutputItem: "BREAD", OutputQty: 3}
	if _, _, err := h.engine.exchange(tr, buyerInv, []Inventory{chest}); err == nil {
		t.Fatalf("expected exchange error")
	}
	if diff := cmp.Diff(buyerBefore, snapshotSlots(buyerInv)); diff != "" {
		t.Fatalf("buyer not restored (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(chestBefore, snapshotSlots(chest)); diff != "" {
		t.Fatalf("chest not restored (-want +got):\n%s", diff)
	}
}

func TestPurchase_SharedInventoryCountsOnce(t *testing.T) {
	for _, useIndex := range []bool{true, false} {
		store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 1, OutputItem: "BREAD", OutputQty: 2})
		h := newHarness(t, store, fixedSearch(2), useIndex)
		// both halves of a double chest front one inventory
		chest := NewSlotInventory(4, ItemStack{Item: "BREAD", Count: 1})
		h.world.put(BlockPos{X: 0, Y: 64, Z: 0}, chest)
		h.world.put(BlockPos{X: 1, Y: 64, Z: 0}, chest)
		buyer := &fakeBuyer{inv: NewSlotInventory(2, ItemStack{Item: "EMERALD", Count: 1})}

		res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer})
		if res.Status != StatusOutOfStock {
			t.Fatalf("index=%v: status=%s msg=%q want out_of_stock", useIndex, res.Status, res.Message)
		}
		if got := CountItem(chest, "BREAD"); got != 1 {
			t.Fatalf("index=%v: chest bread=%d want 1", useIndex, got)
		}
	}
}

func TestDiscovery_DedupesBeforeLimit(t *testing.T) {
	w := newWorld()
	shared := w.put(BlockPos{X: 0, Y: 64, Z: 0}, NewSlotInventory(1))
	w.put(BlockPos{X: 0, Y: 64, Z: 1}, shared)
	other := w.put(BlockPos{X: 1, Y: 64, Z: 1}, NewSlotInventory(1))
	box := Box{Center: Vec3{X: 0.5, Y: 64, Z: 0.5}, Horizontal: 2, Vertical: 1}

	for name, got := range map[string][]Inventory{
		"index": indexedContainers(w, box, 2),
		"scan":  scanContainers(w, box, 2),
	} {
		set := inventorySet(got)
		if len(got) != 2 || !set[shared] || !set[other] {
			t.Fatalf("%s: got %d containers, shared=%v other=%v", name, len(got), set[shared], set[other])
		}
	}
}

func TestPurchase_SingleOutputFromLargerStock(t *testing.T) {
	store := openShop(t, shop.Trade{InputItem: "EMERALD", InputQty: 3, OutputItem: "BREAD", OutputQty: 1})
	h := newHarness(t, store, fixedSearch(2), true)
	chest := h.world.put(BlockPos{X: 1, Y: 64, Z: 0}, NewSlotInventory(4, ItemStack{Item: "BREAD", Count: 5}))
	buyer := &fakeBuyer{inv: NewSlotInventory(4, ItemStack{Item: "EMERALD", Count: 10})}

	res := h.engine.Purchase(PurchaseRequest{TraderRef: traderRef, Buyer: buyer})
	if res.Status != StatusOK || res.Received != 1 {
		t.Fatalf("status=%s received=%d", res.Status, res.Received)
	}
	wantBuyer := []ItemStack{{Item: "EMERALD", Count: 7}, {Item: "BREAD", Count: 1}, {}, {}}
	if diff := cmp.Diff(wantBuyer, snapshotSlots(buyer.inv)); diff != "" {
		t.Fatalf("buyer (-want +got):\n%s", diff)
	}
	wantChest := []ItemStack{{Item: "BREAD", Count: 4}, {Item: "EMERALD", Count: 3}, {}, {}}
	if diff := cmp.Diff(wantChest, snapshotSlots(chest)); diff != "" {
		t.Fatalf("chest (-want +got):\n%s", diff)
	}
}
