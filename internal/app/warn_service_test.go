package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"clan_helper_bot/internal/domain/collection"
	"clan_helper_bot/internal/domain/group"
	"clan_helper_bot/internal/domain/member"
	"clan_helper_bot/internal/domain/warn"
)

type warnFixture struct {
	members *fakeMembers
	att     *fakeAttendance
	warns   *fakeWarns
	markers *fakeMarkers
	client  *fakeClient
	svc     *WarnServiceImpl
	cfg     *group.Config
	loc     *time.Location
}

func newWarnFixture(t *testing.T) *warnFixture {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Kiev")
	if err != nil {
		t.Fatal(err)
	}
	f := &warnFixture{
		members: newFakeMembers(),
		warns:   newFakeWarns(),
		markers: newFakeMarkers(),
		client:  newFakeClient(),
		loc:     loc,
		cfg:     &group.Config{GroupID: testGroupID, Timezone: "Europe/Kiev", WarnsEnabled: true},
	}
	f.att = newFakeAttendance(f.members)
	f.svc = NewWarnService(f.att, f.members, f.warns, f.markers, f.client, testLogger())
	return f
}

func (f *warnFixture) evaluate(t *testing.T, now time.Time) WarnSummary {
	t.Helper()
	s, err := f.svc.Evaluate(context.Background(), f.cfg, f.loc, now)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	return s
}

func TestWarnDemonOnlyAnswerCountsAsMissedClan(t *testing.T) {
	f := newWarnFixture(t)
	f.members.add(testGroupID, 1, "Демонолог", member.StatusMember)
	f.att.answer(testGroupID, 1, collection.BattleDemon, "2024-05-13", 0)
	f.att.answer(testGroupID, 1, collection.BattleClan, "2024-05-12", 1)

	tuesday := time.Date(2024, 5, 14, 0, 1, 0, 0, f.loc)
	f.evaluate(t, tuesday)

	if got := f.warns.count(1, warn.ReasonNoKV); got != 2 {
		t.Errorf("no_kv = %d, want 2", got)
	}
	if got := f.warns.count(1, warn.ReasonNoPlay2Days); got != 0 {
		t.Errorf("no_play_2days = %d, want 0", got)
	}
}

func TestWarnEvaluationIsIdempotent(t *testing.T) {
	f := newWarnFixture(t)
	f.members.add(testGroupID, 2, "Призрак", member.StatusMember)
	tuesday := time.Date(2024, 5, 14, 0, 0, 30, 0, f.loc)

	first := f.evaluate(t, tuesday)
	if first[warn.ReasonNoKV] != 2 || first[warn.ReasonNoPlay2Days] != 3 {
		t.Fatalf("first run summary = %v", first)
	}

	second := f.evaluate(t, tuesday.Add(time.Minute))
	if len(second) != 0 {
		t.Errorf("second run issued %v", second)
	}
	if total, _ := f.warns.CountForUser(context.Background(), testGroupID, 2); total != 5 {
		t.Errorf("total warns = %d, want 5", total)
	}
}

func TestWarnTwoDaysNotRepeatedForOverlappingWindow(t *testing.T) {
	f := newWarnFixture(t)
	f.members.add(testGroupID, 3, "Спящий", member.StatusMember)
	// Issued yesterday for the 11th..12th window.
	if _, err := f.warns.Issue(context.Background(), testGroupID, 3, warn.ReasonNoPlay2Days, "2024-05-12", 3); err != nil {
		t.Fatal(err)
	}

	f.evaluate(t, time.Date(2024, 5, 14, 0, 0, 0, 0, f.loc))
	if got := f.warns.count(3, warn.ReasonNoPlay2Days); got != 3 {
		t.Errorf("no_play_2days = %d, want the original 3", got)
	}
	if got := f.warns.count(3, warn.ReasonNoKV); got != 2 {
		t.Errorf("no_kv = %d, want 2", got)
	}
}

func TestWarnSkipsMembersOnLeave(t *testing.T) {
	f := newWarnFixture(t)
	f.members.add(testGroupID, 4, "Отпускник", member.StatusOff)
	f.evaluate(t, time.Date(2024, 5, 14, 0, 0, 0, 0, f.loc))
	if total, _ := f.warns.CountForUser(context.Background(), testGroupID, 4); total != 0 {
		t.Errorf("member on leave got %d warns", total)
	}
}

func TestWarnWeeklyQuotaOnMonday(t *testing.T) {
	f := newWarnFixture(t)
	f.members.add(testGroupID, 10, "Старатель", member.StatusMember)
	f.members.add(testGroupID, 11, "Лентяй", member.StatusMember)

	week := []string{"2024-05-06", "2024-05-07", "2024-05-08", "2024-05-09", "2024-05-10", "2024-05-11", "2024-05-12"}
	for _, d := range week {
		f.att.answer(testGroupID, 10, collection.BattleClan, d, 0)
		f.att.answer(testGroupID, 10, collection.BattleDemon, d, 0)
	}
	for _, d := range week[2:] {
		f.att.answer(testGroupID, 11, collection.BattleDemon, d, 0)
	}

	monday := time.Date(2024, 5, 13, 0, 1, 0, 0, f.loc)
	f.evaluate(t, monday)
	f.evaluate(t, monday.Add(time.Minute))

	if got := f.warns.count(10, warn.ReasonNoNorm); got != 0 {
		t.Errorf("user with 112 points got %d no_norm warns", got)
	}
	if got := f.warns.count(11, warn.ReasonNoNorm); got != 2 {
		t.Errorf("user with 50 points: no_norm = %d, want 2", got)
	}
	ok, _ := f.warns.Exists(context.Background(), testGroupID, 11, warn.ReasonNoNorm, []string{"2024-05-06_2024-05-12"})
	if !ok {
		t.Error("no_norm should be keyed by the Monday..Sunday period")
	}

	// Not evaluated on other weekdays.
	f.warns = newFakeWarns()
	f.svc.warns = f.warns
	f.evaluate(t, time.Date(2024, 5, 14, 0, 1, 0, 0, f.loc))
	if got := f.warns.count(11, warn.ReasonNoNorm); got != 0 {
		t.Errorf("no_norm issued on Tuesday: %d", got)
	}
}

func TestWarnReportSentOncePerDay(t *testing.T) {
	f := newWarnFixture(t)
	f.cfg.WarnReportGroupID, f.cfg.WarnReportTopicID = -3003, 7
	f.members.add(testGroupID, 2, "Призрак", member.StatusMember)
	f.members.add(testGroupID, 3, "Почти", member.StatusMember)
	f.att.answer(testGroupID, 3, collection.BattleClan, "2024-05-13", 0)

	now := time.Date(2024, 5, 14, 0, 0, 0, 0, f.loc)
	f.evaluate(t, now)
	for i := 0; i < 3; i++ {
		if err := f.svc.SendReport(context.Background(), f.cfg, f.loc, now.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatal(err)
		}
	}

	if len(f.client.plain) != 1 {
		t.Fatalf("reports sent = %d, want 1", len(f.client.plain))
	}
	report := f.client.plain[0]
	if report.ChatID != -3003 || report.TopicID != 7 {
		t.Errorf("report destination = %d/%d", report.ChatID, report.TopicID)
	}
	for _, want := range []string{"Отчет о варнах", "Пользователей с 3+ варнами:</b> 1", "Призрак", "Варнов: 5", "Не сыграл КВ, Не играл 2 дня"} {
		if !strings.Contains(report.Text, want) {
			t.Errorf("report missing %q:\n%s", want, report.Text)
		}
	}
	if strings.Contains(report.Text, "Почти") {
		t.Error("user below threshold listed")
	}
}

func TestWarnReportNeedsDestination(t *testing.T) {
	f := newWarnFixture(t)
	f.members.add(testGroupID, 2, "Призрак", member.StatusMember)
	now := time.Date(2024, 5, 14, 0, 0, 0, 0, f.loc)
	f.evaluate(t, now)
	if err := f.svc.SendReport(context.Background(), f.cfg, f.loc, now); err != nil {
		t.Fatal(err)
	}
	if len(f.client.plain) != 0 {
		t.Fatal("report sent without a destination")
	}
}
