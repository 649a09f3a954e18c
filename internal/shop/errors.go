package shop

import (
	"fmt"
	"strings"
)

const (
	CodeInvalid   = "E_INVALID"
	CodeNotFound  = "E_NOT_FOUND"
	CodeConflict  = "E_CONFLICT"
	CodeMaxTrades = "E_MAX_TRADES"
)

// Error is a validation failure whose Message is safe to show to players.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Code so errors.Is(err, ErrNotFound) works for any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrInvalid   = &Error{Code: CodeInvalid, Message: "invalid request"}
	ErrNotFound  = &Error{Code: CodeNotFound, Message: "not found"}
	ErrConflict  = &Error{Code: CodeConflict, Message: "conflict"}
	ErrMaxTrades = &Error{Code: CodeMaxTrades, Message: "too many trades"}
)

func invalid(format string, args ...any) *Error {
	return &Error{Code: CodeInvalid, Message: fmt.Sprintf(format, args...)}
}

func ShopNotFound(name string) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("shop %q not found", strings.TrimSpace(name))}
}

func TradeNotFound(shopName string, id int) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("trade #%d not found in shop %q", id, strings.TrimSpace(shopName))}
}

func NameTaken(name string) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf("you already own a shop named %q", strings.TrimSpace(name))}
}

func TooManyTrades() *Error {
	return &Error{Code: CodeMaxTrades, Message: fmt.Sprintf("a shop can hold at most %d trades", MaxTrades)}
}

func ValidateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return invalid("owner id is required")
	}
	return nil
}

func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("shop name is required")
	}
	return nil
}

func ValidateTraderRef(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return invalid("trader reference is required")
	}
	return nil
}

// ValidateTrade checks trade fields. Item existence is not checked here.
func ValidateTrade(inputItem string, inputQty int, outputItem string, outputQty int) error {
	if strings.TrimSpace(inputItem) == "" || strings.TrimSpace(outputItem) == "" {
		return invalid("item ids are required")
	}
	if inputQty <= 0 || outputQty <= 0 {
		return invalid("quantities must be greater than zero")
	}
	return nil
}

// ValidateRecord checks a complete record, trades included, before import.
func ValidateRecord(s Shop) error {
	if err := ValidateOwner(s.OwnerID); err != nil {
		return err
	}
	if err := ValidateName(s.DisplayName); err != nil {
		return err
	}
	if len(s.Trades) > MaxTrades {
		return TooManyTrades()
	}
	seen := make(map[int]struct{}, len(s.Trades))
	for _, t := range s.Trades {
		if t.ID <= 0 {
			return invalid("trade id must be positive, got %d", t.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return invalid("duplicate trade id %d", t.ID)
		}
		seen[t.ID] = struct{}{}
		if err := ValidateTrade(t.InputItem, t.InputQty, t.OutputItem, t.OutputQty); err != nil {
			return err
		}
	}
	return nil
}
