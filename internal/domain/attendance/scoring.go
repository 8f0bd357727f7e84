package attendance

import "clan_helper_bot/internal/domain/collection"

// Option point tables, indexed by Telegram poll option id.
var (
	ClanScores  = []int{6, 4, 3, 2, 1, 0}
	DemonScores = []int{10, 7, 5, 4, 2, 0}
)

var (
	clanOptions  = []string{"6 Вин Вин", "4 Вин Ничья", "3 Вин Луз", "2 Ничья Ничья", "1 Ничья Луз", "0 Луз Луз"}
	demonOptions = []string{"10 Вин Вин", "7 Вин Ничья", "5 Вин Луз", "4 Ничья Ничья", "2 Ничья Луз", "0 Луз Луз"}
)

// ScoreTable returns the option point table for a battle type.
func ScoreTable(bt collection.BattleType) []int {
	if bt == collection.BattleDemon {
		return DemonScores
	}
	return ClanScores
}

// PointsFor scores one poll answer: the best selected option counts,
// several selections are never summed.
func PointsFor(bt collection.BattleType, optionIDs []int) int {
	table := ScoreTable(bt)
	best := 0
	for _, id := range optionIDs {
		if id < 0 || id >= len(table) {
			continue
		}
		if table[id] > best {
			best = table[id]
		}
	}
	return best
}

// TotalPoints sums PointsFor over every answer.
func TotalPoints(answers []Answer) int {
	total := 0
	for _, a := range answers {
		total += PointsFor(a.PollType, a.OptionIDs)
	}
	return total
}

// PollQuestion returns the poll title shown in the chat.
func PollQuestion(bt collection.BattleType) string {
	if bt == collection.BattleDemon {
		return "Демонические Сражения"
	}
	return "Клановые Сражения"
}

// PollOptions returns the option texts in score-table order.
func PollOptions(bt collection.BattleType) []string {
	if bt == collection.BattleDemon {
		return demonOptions
	}
	return clanOptions
}
