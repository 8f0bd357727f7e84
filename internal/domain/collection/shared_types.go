package collection

// BattleType identifies which attendance poll a call-out is about.
type BattleType string

const (
	BattleClan  BattleType = "clan_battles"
	BattleDemon BattleType = "demon_battles"
)

// BattleTypes lists every battle kind in call-out order.
var BattleTypes = []BattleType{BattleClan, BattleDemon}

func (b BattleType) Valid() bool {
	return b == BattleClan || b == BattleDemon
}

// Status is the state of a single collection call.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCollected Status = "collected"
	StatusPostponed Status = "postponed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further button press can change the call.
func (s Status) Terminal() bool {
	return s == StatusCollected || s == StatusCancelled
}
