package protocol

import "encoding/json"

// Endpoint paths, relative to the API base URL.
const (
	PathInit         = "/api/init"
	PathState        = "/api/game/state"
	PathFish         = "/api/game/fish"
	PathKeep         = "/api/game/keep"
	PathSell         = "/api/game/sell"
	PathSellFish     = "/api/game/sellfish"
	PathEquip        = "/api/equipment/equip"
	PathUnequip      = "/api/equipment/unequip"
	PathShopItems    = "/api/shop/items"
	PathBuy          = "/api/shop/buy"
	PathBuyWorms     = "/api/shop/buy_worms"
	PathBuyBag       = "/api/shop/buy_bag"
	PathTop          = "/api/top"
	PathAchievements = "/api/achievements"
	PathHealth       = "/api/health"
)

// Registration outcomes reported by /api/init.
const (
	StatusRegistered = "registered"
	StatusExisting   = "existing"
)

// Envelope is the part every response may carry. A non-empty Error or an explicit
// success:false marks a business rejection.
type Envelope struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// Rejection reports whether the envelope signals a rejection and the text to show.
func (e Envelope) Rejection() (string, bool) {
	if e.Error != "" {
		return e.Error, true
	}
	if e.Success != nil && !*e.Success {
		if e.Message != "" {
			return e.Message, true
		}
		return "request rejected", true
	}
	return "", false
}

func DecodeEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(b, &e)
	return e, err
}

func Bool(v bool) *bool { return &v }
