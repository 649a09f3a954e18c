package shop

// Store is the persistence contract shared by the relational and flat-file
// backends. All methods on one Store are mutually exclusive.
type Store interface {
	CreateShop(ownerID, ownerName, name string, isAdmin bool) (Shop, error)
	RenameShop(ownerID, currentName, newName string) (Shop, error)
	DeleteShop(ownerID, name string) error
	GetShop(ownerID, name string) (Shop, error)
	ListShops(ownerID string) ([]Shop, error)
	ListAllShops() ([]Shop, error)

	// FindShopByTrader reports false when no shop is bound to ref.
	FindShopByTrader(ref string) (Shop, bool, error)
	SetTraderUUID(ownerID, name, ref string) error
	ClearTraderUUID(ownerID, name string) error

	AddTrade(ownerID, shopName, inputItem string, inputQty int, outputItem string, outputQty int) (Trade, error)
	UpdateTrade(ownerID, shopName string, tradeID int, inputItem string, inputQty int, outputItem string, outputQty int) (Trade, error)
	RemoveTrade(ownerID, shopName string, tradeID int) error

	// ImportShop inserts a complete record, trade ids included. It reports
	// false without error when the (owner, key) pair already exists.
	ImportShop(s Shop) (bool, error)

	Close() error
}
