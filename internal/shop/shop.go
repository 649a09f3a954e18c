// Package shop holds the shop and trade records shared by every storage
// backend, plus the Store contract those backends implement.
package shop

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// MaxTrades is the most trades a single shop may hold.
const MaxTrades = 20

// AdminOwnerID is the pseudo-owner used for admin shops.
var AdminOwnerID = uuid.Nil.String()

type Shop struct {
	OwnerID     string  `json:"owner_id"`
	OwnerName   string  `json:"owner_name"`
	DisplayName string  `json:"name"`
	Key         string  `json:"-"`
	TraderRef   string  `json:"trader_ref,omitempty"`
	IsAdmin     bool    `json:"is_admin"`
	// LastTradeID is the highest trade id ever assigned in this shop.
	LastTradeID int     `json:"last_trade_id"`
	Trades      []Trade `json:"trades"`
}

type Trade struct {
	ID         int    `json:"id"`
	InputItem  string `json:"input_item"`
	InputQty   int    `json:"input_quantity"`
	OutputItem string `json:"output_item"`
	OutputQty  int    `json:"output_quantity"`
}

// Normalize returns the lookup key for a shop name.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Clone returns a deep copy so callers never alias stored state.
func (s Shop) Clone() Shop {
	out := s
	if s.Trades != nil {
		out.Trades = append([]Trade(nil), s.Trades...)
	} else {
		out.Trades = []Trade{}
	}
	return out
}

// Trade returns the trade with the given id.
func (s Shop) Trade(id int) (Trade, bool) {
	for _, t := range s.Trades {
		if t.ID == id {
			return t, true
		}
	}
	return Trade{}, false
}

// NextTradeID is one past the highest id ever assigned, so ids of removed
// trades are never handed out again. A fresh shop starts at 1.
func (s Shop) NextTradeID() int {
	max := s.LastTradeID
	for _, t := range s.Trades {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}

// SortShops orders shops by display name, case-insensitive.
func SortShops(shops []Shop) {
	sort.SliceStable(shops, func(i, j int) bool {
		a, b := strings.ToLower(shops[i].DisplayName), strings.ToLower(shops[j].DisplayName)
		if a != b {
			return a < b
		}
		if shops[i].OwnerID != shops[j].OwnerID {
			return shops[i].OwnerID < shops[j].OwnerID
		}
		return shops[i].Key < shops[j].Key
	})
}

func SortTrades(trades []Trade) {
	sort.Slice(trades, func(i, j int) bool { return trades[i].ID < trades[j].ID })
}
