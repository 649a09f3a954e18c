// Package storetest is a behavior suite every shop.Store backend must pass.
package storetest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tradepost.ai/internal/shop"
)

// Opener returns a fresh, empty store. The suite closes it.
type Opener func(t *testing.T) shop.Store

func Run(t *testing.T, open Opener) {
	cases := []struct {
		name string
		fn   func(t *testing.T, s shop.Store)
	}{
		{"CreateIsIdempotent", testCreateIdempotent},
		{"CreateValidates", testCreateValidates},
		{"NamesAreUniquePerOwner", testUniqueness},
		{"Rename", testRename},
		{"DeleteCascadesTrades", testDeleteCascade},
		{"ListSortedCaseInsensitive", testListSorted},
		{"TraderReverseLookup", testTraderLookup},
		{"TradeIDsAreMonotonic", testTradeIDMonotonic},
		{"MaxTradesBoundary", testMaxTrades},
		{"UpdateAndRemoveTrade", testUpdateRemoveTrade},
		{"TradeValidation", testTradeValidation},
		{"ImportShop", testImportShop},
		{"RecordsAreCopies", testRecordsAreCopies},
		{"ConcurrentAddTrade", testConcurrentAddTrade},
		{"ConcurrentCreate", testConcurrentCreate},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			c.fn(t, s)
		})
	}
}

func mustCreate(t *testing.T, s shop.Store, owner, name string) shop.Shop {
	t.Helper()
	sh, err := s.CreateShop(owner, "Name-"+owner, name, false)
	if err != nil {
		t.Fatalf("create %s/%s: %v", owner, name, err)
	}
	return sh
}

func mustAddTrade(t *testing.T, s shop.Store, owner, name string) shop.Trade {
	t.Helper()
	tr, err := s.AddTrade(owner, name, "EMERALD", 1, "BREAD", 2)
	if err != nil {
		t.Fatalf("add trade %s/%s: %v", owner, name, err)
	}
	return tr
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func testCreateIdempotent(t *testing.T, s shop.Store) {
	first, err := s.CreateShop("o1", "Alice", "  Iron Works ", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.DisplayName != "Iron Works" || first.Key != "iron works" {
		t.Fatalf("unexpected names: %#v", first)
	}
	if first.TraderRef != "" || len(first.Trades) != 0 {
		t.Fatalf("new shop should have no trader and no trades: %#v", first)
	}
	second, err := s.CreateShop("o1", "Someone Else", "Iron Works", true)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("second create changed the record (-first +second):\n%s", diff)
	}
	all, err := s.ListAllShops()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 shop, got %d", len(all))
	}
}

func testCreateValidates(t *testing.T, s shop.Store) {
	_, err := s.CreateShop(" ", "x", "Shop", false)
	wantErr(t, err, shop.ErrInvalid)
	_, err = s.CreateShop("o1", "x", "   ", false)
	wantErr(t, err, shop.ErrInvalid)

	admin, err := s.CreateShop(shop.AdminOwnerID, "Server", "Admin Shop", true)
	if err != nil {
		t.Fatalf("admin create: %v", err)
	}
	if !admin.IsAdmin {
		t.Fatalf("expected admin flag")
	}
}

func testUniqueness(t *testing.T, s shop.Store) {
	for _, n := range []string{"Market", "market", " MARKET ", "mArKeT"} {
		mustCreate(t, s, "o1", n)
	}
	mustCreate(t, s, "o2", "Market")
	mine, err := s.ListShops("o1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 || mine[0].DisplayName != "Market" {
		t.Fatalf("expected single o1 shop named Market, got %#v", mine)
	}
	all, _ := s.ListAllShops()
	if len(all) != 2 {
		t.Fatalf("expected 2 shops across owners, got %d", len(all))
	}
}

func testRename(t *testing.T, s shop.Store) {
	mustCreate(t, s, "o1", "Alpha")
	mustCreate(t, s, "o1", "Beta")
	mustCreate(t, s, "o2", "Gamma")
	mustAddTrade(t, s, "o1", "Alpha")

	_, err := s.RenameShop("o1", "alpha", "BETA")
	wantErr(t, err, shop.ErrConflict)

	// Another owner's name is not a conflict.
	renamed, err := s.RenameShop("o1", "alpha", "Gamma")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.DisplayName != "Gamma" || renamed.Key != "gamma" || len(renamed.Trades) != 1 {
		t.Fatalf("unexpected renamed shop: %#v", renamed)
	}
	if _, err := s.GetShop("o1", "Alpha"); !errors.Is(err, shop.ErrNotFound) {
		t.Fatalf("old name should be gone, got %v", err)
	}

	// Same key, new casing.
	recased, err := s.RenameShop("o1", "gamma", "GAMMA")
	if err != nil {
		t.Fatalf("recase: %v", err)
	}
	if recased.DisplayName != "GAMMA" {
		t.Fatalf("display name not updated: %#v", recased)
	}

	_, err = s.RenameShop("o1", "missing", "Other")
	wantErr(t, err, shop.ErrNotFound)
	_, err = s.RenameShop("o1", "gamma", " ")
	wantErr(t, err, shop.ErrInvalid)
}

func testDeleteCascade(t *testing.T, s shop.Store) {
	mustCreate(t, s, "o1", "Stall")
	mustAddTrade(t, s, "o1", "Stall")
	mustAddTrade(t, s, "o1", "Stall")
	if err := s.SetTraderUUID("o1", "Stall", "npc-1"); err != nil {
		t.Fatalf("set trader: %v", err)
	}

	if err := s.DeleteShop("o1", "STALL"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	wantErr(t, s.DeleteShop("o1", "Stall"), shop.ErrNotFound)
	if _, ok, _ := s.FindShopByTrader("npc-1"); ok {
		t.Fatalf("deleted shop still bound to trader")
	}

	again := mustCreate(t, s, "o1", "Stall")
	if len(again.Trades) != 0 {
		t.Fatalf("trades survived delete: %#v", again.Trades)
	}
	if tr := mustAddTrade(t, s, "o1", "Stall"); tr.ID != 1 {
		t.Fatalf("recreated shop should start at trade id 1, got %d", tr.ID)
	}
	_, err := s.GetShop("o1", "nope")
	wantErr(t, err, shop.ErrNotFound)
}

func testListSorted(t *testing.T, s shop.Store) {
	mustCreate(t, s, "o1", "charlie")
	mustCreate(t, s, "o1", "Alpha")
	mustCreate(t, s, "o1", "bravo")
	mustCreate(t, s, "o2", "Able")

	mine, err := s.ListShops("o1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var got []string
	for _, sh := range mine {
		got = append(got, sh.DisplayName)
	}
	if diff := cmp.Diff([]string{"Alpha", "bravo", "charlie"}, got); diff != "" {
		t.Fatalf("owner order (-want +got):\n%s", diff)
	}

	all, _ := s.ListAllShops()
	got = got[:0]
	for _, sh := range all {
		got = append(got, sh.DisplayName)
	}
	if diff := cmp.Diff([]string{"Able", "Alpha", "bravo", "charlie"}, got); diff != "" {
		t.Fatalf("global order (-want +got):\n%s", diff)
	}

	none, err := s.ListShops("nobody")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v err=%v", none, err)
	}
}

func testTraderLookup(t *testing.T, s shop.Store) {
	mustCreate(t, s, "o1", "One")
	mustCreate(t, s, "o2", "Two")

	if _, ok, err := s.FindShopByTrader(""); ok || err != nil {
		t.Fatalf("blank ref must yield none, ok=%v err=%v", ok, err)
	}
	wantErr(t, s.SetTraderUUID("o1", "One", "  "), shop.ErrInvalid)
	wantErr(t, s.SetTraderUUID("o1", "Missing", "npc"), shop.ErrNotFound)
	wantErr(t, s.ClearTraderUUID("o1", "Missing"), shop.ErrNotFound)

	if err := s.SetTraderUUID("o1", "one", "npc-7"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := s.FindShopByTrader("npc-7")
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if got.OwnerID != "o1" || got.Key != "one" || got.TraderRef != "npc-7" {
		t.Fatalf("unexpected shop: %#v", got)
	}

	// Binding the same trader elsewhere moves it.
	if err := s.SetTraderUUID("o2", "Two", "npc-7"); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	got, _, _ = s.FindShopByTrader("npc-7")
	if got.OwnerID != "o2" {
		t.Fatalf("expected trader on o2, got %#v", got)
	}
	one, _ := s.GetShop("o1", "One")
	if one.TraderRef != "" {
		t.Fatalf("old shop kept trader ref %q", one.TraderRef)
	}

	if err := s.ClearTraderUUID("o2", "Two"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.FindShopByTrader("npc-7"); ok {
		t.Fatalf("trader still resolves after clear")
	}
}

func testTradeIDMonotonic(t *testing.T, s shop.Store) {
	mustCreate(t, s, "o1", "Shop")
	var ids []int
	add := func() {
		ids = append(ids, mustAddTrade(t, s, "o1", "Shop").ID)
	}
	add()
	add()
	add()
	if err := s.RemoveTrade("o1", "Shop", 3); err != nil {
		t.Fatalf("remove: %v", err)
	}
	add()
	if err := s.RemoveTrade("o1", "Shop", 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	add()
	add()
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not strictly increasing: %v", ids)
		}
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4, 5, 6}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	sh, _ := s.GetShop("o1", "Shop")
	var held []int
	for _, tr := range sh.Trades {
		held = append(held, tr.ID)
	}
	if diff := cmp.Diff([]int{2, 4, 5, 6}, held); diff != "" {
		t.Fatalf("held trades (-want +got):\n%s", diff)
	}
}

func testMaxTrades(t *testing.T, s shop.Store) {
	mustCreate(t, s, "o1", "Busy")
	for i := 1; i <= shop.MaxTrades; i++ {
		tr, err := s.AddTrade("o1", "Busy", "A", i, "B", 1)
		if err != nil {
			t.Fatalf("trade %d: %v", i, err)
		}
		if tr.ID != i {
			t.Fatalf("trade %d got id %d", i, tr.ID)
		}
	}
	_, err := s.AddTrade("o1", "Busy", "A", 1, "B", 1)
	wantErr(t, err, shop.ErrMaxTrades)

	sh, _ := s.GetShop("o1", "Busy")
	if len(sh.Trades) != shop.MaxTrades {
		t.Fatalf("expected %d trades, got %d", shop.MaxTrades, len(sh.Trades))
	}
	if err := s.RemoveTrade("o1", "Busy", 5); err != nil {
		t.Fatalf("remove: %v", err)
	}
	tr, err := s.AddTrade("o1", "Busy", "A", 1, "B", 1)
	if err != nil {
		t.Fatalf("add after remove: %v", err)
	}
	if tr.ID != shop.MaxTrades+1 {
		t.Fatalf("expected id %d, got %d", shop.MaxTrades+1, tr.ID)
	}
}

func testUpdateRemoveTrade(t *testing.T, s shop.Store) {
	mustCreate(t, s, "o1", "Shop")
	tr := mustAddTrade(t, s, "o1", "Shop")

	up, err := s.UpdateTrade("o1", "shop", tr.ID, "GOLD", 4, "IRON", 9)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	want := shop.Trade{ID: tr.ID, InputItem: "GOLD", InputQty: 4, OutputItem: "IRON", OutputQty: 9}
	if diff := cmp.Diff(want, up); diff != "" {
		t.Fatalf("update result (-want +got):\n%s", diff)
	}
	sh, _ := s.GetShop("o1", "Shop")
	if diff := cmp.Diff([]shop.Trade{want}, sh.Trades); diff != "" {
		t.Fatalf("stored trades (-want +got):\n%s", diff)
	}

	_, err = s.UpdateTrade("o1", "Shop", 99, "GOLD", 1, "IRON", 1)
	wantErr(t, err, shop.ErrNotFound)
	_, err = s.UpdateTrade("o1", "Nope", tr.ID, "GOLD", 1, "IRON", 1)
	wantErr(t, err, shop.ErrNotFound)
	_, err = s.UpdateTrade("o1", "Shop", tr.ID, "GOLD", 0, "IRON", 1)
	wantErr(t, err, shop.ErrInvalid)

	wantErr(t, s.RemoveTrade("o1", "Shop", 99), shop.ErrNotFound)
	wantErr(t, s.RemoveTrade("o1", "Nope", tr.ID), shop.ErrNotFound)
	if err := s.RemoveTrade("o1", "Shop", tr.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	sh, _ = s.GetShop("o1", "Shop")
	if len(sh.Trades) != 0 {
		t.Fatalf("trade not removed: %#v", sh.Trades)
	}
}

func testTradeValidation(t *testing.T, s shop.Store) {
	mustCreate(t, s, "o1", "Shop")
	_, err := s.AddTrade("o1", "Shop", "", 1, "B", 1)
	wantErr(t, err, shop.ErrInvalid)
	_, err = s.AddTrade("o1", "Shop", "A", 1, "  ", 1)
	wantErr(t, err, shop.ErrInvalid)
	_, err = s.AddTrade("o1", "Shop", "A", 0, "B", 1)
	wantErr(t, err, shop.ErrInvalid)
	_, err = s.AddTrade("o1", "Shop", "A", 1, "B", -1)
	wantErr(t, err, shop.ErrInvalid)
	_, err = s.AddTrade("o1", "Missing", "A", 1, "B", 1)
	wantErr(t, err, shop.ErrNotFound)

	// Registry existence is not checked at creation time.
	if _, err := s.AddTrade("o1", "Shop", "NOT_A_REAL_ITEM", 1, "B", 1); err != nil {
		t.Fatalf("unknown item should be accepted at creation: %v", err)
	}
}

func testImportShop(t *testing.T, s shop.Store) {
	rec := shop.Shop{
		OwnerID:     "o9",
		OwnerName:   "Nine",
		DisplayName: "Imported",
		TraderRef:   "npc-9",
		Trades: []shop.Trade{
			{ID: 7, InputItem: "A", InputQty: 1, OutputItem: "B", OutputQty: 2},
			{ID: 3, InputItem: "C", InputQty: 3, OutputItem: "D", OutputQty: 4},
		},
	}
	ok, err := s.ImportShop(rec)
	if err != nil || !ok {
		t.Fatalf("import: ok=%v err=%v", ok, err)
	}
	ok, err = s.ImportShop(rec)
	if err != nil || ok {
		t.Fatalf("second import should be ignored: ok=%v err=%v", ok, err)
	}
	got, found, err := s.FindShopByTrader("npc-9")
	if err != nil || !found {
		t.Fatalf("find imported: found=%v err=%v", found, err)
	}
	if len(got.Trades) != 2 || got.Trades[0].ID != 3 || got.Trades[1].ID != 7 {
		t.Fatalf("trade ids not preserved in order: %#v", got.Trades)
	}
	if tr := mustAddTrade(t, s, "o9", "imported"); tr.ID != 8 {
		t.Fatalf("expected next id 8, got %d", tr.ID)
	}

	bad := rec
	bad.DisplayName = "Bad"
	bad.Trades = []shop.Trade{{ID: 0, InputItem: "A", InputQty: 1, OutputItem: "B", OutputQty: 1}}
	_, err = s.ImportShop(bad)
	wantErr(t, err, shop.ErrInvalid)
}

func testRecordsAreCopies(t *testing.T, s shop.Store) {
	mustCreate(t, s, "o1", "Shop")
	mustAddTrade(t, s, "o1", "Shop")
	sh, _ := s.GetShop("o1", "Shop")
	sh.Trades[0].OutputQty = 999
	sh.DisplayName = "Changed"
	again, _ := s.GetShop("o1", "Shop")
	if again.Trades[0].OutputQty != 2 || again.DisplayName != "Shop" {
		t.Fatalf("stored record was mutated through a returned copy: %#v", again)
	}
}

func testConcurrentAddTrade(t *testing.T, s shop.Store) {
	mustCreate(t, s, "owner-a", "Market")

	var wg sync.WaitGroup
	ids := make(chan int, shop.MaxTrades)
	errs := make(chan error, shop.MaxTrades)
	for i := 0; i < shop.MaxTrades; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr, err := s.AddTrade("owner-a", "Market", "EMERALD", i+1, "BREAD", 1)
			if err != nil {
				errs <- err
				return
			}
			ids <- tr.ID
		}(i)
	}
	wg.Wait()
	close(ids)
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent add: %v", err)
	}

	seen := map[int]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("trade id %d assigned twice", id)
		}
		seen[id] = true
	}
	for id := 1; id <= shop.MaxTrades; id++ {
		if !seen[id] {
			t.Fatalf("ids not dense: missing %d in %v", id, seen)
		}
	}
	sh, err := s.GetShop("owner-a", "Market")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(sh.Trades) != shop.MaxTrades {
		t.Fatalf("stored trades=%d want %d", len(sh.Trades), shop.MaxTrades)
	}
}

func testConcurrentCreate(t *testing.T, s shop.Store) {
	const callers = 16
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "Market"
			if i%2 == 1 {
				name = strings.ToUpper(name)
			}
			sh, err := s.CreateShop("owner-a", "Alice", name, false)
			if err != nil {
				errs <- err
				return
			}
			if sh.Key != "market" {
				errs <- fmt.Errorf("key=%q", sh.Key)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}
	shops, err := s.ListShops("owner-a")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(shops) != 1 {
		t.Fatalf("shops=%d want 1: %+v", len(shops), shops)
	}
}
