package legacy

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_FlatKeys(t *testing.T) {
	raw := []byte(`
shop.owner-1.0.name: "Iron Works"
shop.owner-1.0.owner: Alice
shop.owner-1.0.traderUuid: trader-9
trade.owner-1.0.2.input: minecraft:emerald
trade.owner-1.0.2.inputQty: 3
trade.owner-1.0.2.output: minecraft:iron_ingot
trade.owner-1.0.2.outputQty: 8
`)
	f, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	wantShops := []ShopEntry{{OwnerID: "owner-1", Slot: "0", Name: "Iron Works", OwnerName: "Alice", TraderRef: "trader-9"}}
	if diff := cmp.Diff(wantShops, f.Shops); diff != "" {
		t.Fatalf("shops (-want +got):\n%s", diff)
	}
	wantTrades := []TradeEntry{{OwnerID: "owner-1", Slot: "0", TradeID: 2, Input: "minecraft:emerald", InputQty: 3, Output: "minecraft:iron_ingot", OutputQty: 8}}
	if diff := cmp.Diff(wantTrades, f.Trades); diff != "" {
		t.Fatalf("trades (-want +got):\n%s", diff)
	}
}

func TestParse_NestedMapsFlatten(t *testing.T) {
	raw := []byte(`
shop:
  owner-2:
    "1":
      name: Bakery
trade:
  owner-2:
    "1":
      "1":
        input: WHEAT
        inputQty: 6
        output: BREAD
        outputQty: 2
`)
	f, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(f.Shops) != 1 || f.Shops[0].Name != "Bakery" || f.Shops[0].Slot != "1" {
		t.Fatalf("unexpected shops: %#v", f.Shops)
	}
	if len(f.Trades) != 1 || f.Trades[0].OutputQty != 2 {
		t.Fatalf("unexpected trades: %#v", f.Trades)
	}
}

func TestParse_BadQuantityFails(t *testing.T) {
	_, err := Parse([]byte(`trade.o.0.1.inputQty: lots`))
	if err == nil {
		t.Fatalf("expected error for non-numeric quantity")
	}
}
