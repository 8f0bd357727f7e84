package app

import (
	"fmt"
	"html"
	"strings"

	"clan_helper_bot/internal/domain/collection"
	"clan_helper_bot/internal/domain/member"
)

// mentionBatchSize keeps mention messages small enough for Telegram to notify everyone.
const mentionBatchSize = 5

// DisplayName picks first+last name, then username, then a numeric fallback.
func DisplayName(m member.Member) string {
	if m.FirstName != "" {
		name := m.FirstName
		if m.LastName.Valid && m.LastName.String != "" {
			name += " " + m.LastName.String
		}
		return name
	}
	if m.Username.Valid && strings.TrimSpace(m.Username.String) != "" {
		return m.Username.String
	}
	return fmt.Sprintf("Пользователь %d", m.UserID)
}

// Mention renders a clickable name that notifies the user without an @username.
func Mention(m member.Member) string {
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, m.UserID, html.EscapeString(DisplayName(m)))
}

// batches splits members into chunks of at most size.
func batches(members []member.Member, size int) [][]member.Member {
	var out [][]member.Member
	for start := 0; start < len(members); start += size {
		end := start + size
		if end > len(members) {
			end = len(members)
		}
		out = append(out, members[start:end])
	}
	return out
}

// numberedList renders "1. name" lines; offset continues numbering across batches.
func numberedList(members []member.Member, offset int, render func(member.Member) string) string {
	lines := make([]string, len(members))
	for i, m := range members {
		lines[i] = fmt.Sprintf("%d. %s", offset+i+1, render(m))
	}
	return strings.Join(lines, "\n")
}

func plainName(m member.Member) string {
	return html.EscapeString(DisplayName(m))
}

func battleHeader(bt collection.BattleType) string {
	if bt == collection.BattleDemon {
		return "🔥 <b>Собрать группу на демонические сражения</b>"
	}
	return "⚔️ <b>Собрать группу на клановую битву</b>"
}

// battleAccusative is used in "Созыв на ..." status lines.
func battleAccusative(bt collection.BattleType) string {
	if bt == collection.BattleDemon {
		return "демонические сражения"
	}
	return "клановую битву"
}

func battleGenitive(bt collection.BattleType) string {
	if bt == collection.BattleDemon {
		return "демонических сражений"
	}
	return "клановых сражений"
}

// battlePrepositional is used in the readiness countdown header.
func battlePrepositional(bt collection.BattleType) string {
	if bt == collection.BattleDemon {
		return "демонической битве"
	}
	return "клановой битве"
}

func battleShort(bt collection.BattleType) string {
	if bt == collection.BattleDemon {
		return "демоническое"
	}
	return "клановое"
}

// timeLeftText renders "X ч Y мин" or "Y мин".
func timeLeftText(minutesLeft int) string {
	hours := minutesLeft / 60
	minutes := minutesLeft % 60
	if hours == 0 {
		return fmt.Sprintf("%d мин", minutesLeft)
	}
	if minutes == 0 {
		return fmt.Sprintf("%d ч", hours)
	}
	return fmt.Sprintf("%d ч %d мин", hours, minutes)
}
