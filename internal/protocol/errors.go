package protocol

// Rejection messages the game server is known to send verbatim in the `error` field.
const (
	// Identity.
	ErrMsgUserNotFound = "User not found"

	// Catching.
	ErrMsgNoWorms        = "No worms"
	ErrMsgNoFishToSell   = "No fish to sell"
	ErrMsgNoFishToKeep   = "No fish to keep"
	ErrMsgPodsakFull     = "Podsak full"
	ErrMsgInvalidFishIdx = "Invalid fish index"

	// Shop.
	ErrMsgItemNotFound   = "Item not found"
	ErrMsgNotEnoughMoney = "Not enough money"

	// Equipment.
	ErrMsgSlotOccupied    = "Slot occupied"
	ErrMsgInvalidSlot     = "Invalid slot"
	ErrMsgSlotEmpty       = "Slot already empty"
	ErrMsgInvalidItemIdx  = "Invalid item index"
	ErrMsgUnknownItemType = "Unknown item type"

	// Generic.
	ErrMsgEndpointNotFound = "Endpoint not found"
	ErrMsgInternal         = "Internal server error"
)

var knownMessages = map[string]struct{}{
	ErrMsgUserNotFound:     {},
	ErrMsgNoWorms:          {},
	ErrMsgNoFishToSell:     {},
	ErrMsgNoFishToKeep:     {},
	ErrMsgPodsakFull:       {},
	ErrMsgInvalidFishIdx:   {},
	ErrMsgItemNotFound:     {},
	ErrMsgNotEnoughMoney:   {},
	ErrMsgSlotOccupied:     {},
	ErrMsgInvalidSlot:      {},
	ErrMsgSlotEmpty:        {},
	ErrMsgInvalidItemIdx:   {},
	ErrMsgUnknownItemType:  {},
	ErrMsgEndpointNotFound: {},
	ErrMsgInternal:         {},
}

// IsKnownMessage reports whether msg is one of the server's documented rejections.
// Unknown messages are still shown to the user verbatim.
func IsKnownMessage(msg string) bool {
	_, ok := knownMessages[msg]
	return ok
}
