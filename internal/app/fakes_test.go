package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"clan_helper_bot/internal/domain/attendance"
	"clan_helper_bot/internal/domain/callout"
	"clan_helper_bot/internal/domain/collection"
	"clan_helper_bot/internal/domain/group"
	"clan_helper_bot/internal/domain/member"
	domainTelegram "clan_helper_bot/internal/domain/telegram"
	"clan_helper_bot/internal/domain/warn"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// clock is a settable time source shared by a service and its fakes.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Set(t time.Time)         { c.t = t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// --- groups ---

type fakeGroups struct {
	configs map[int64]*group.Config
	failFor map[int64]error
}

func newFakeGroups(cfgs ...*group.Config) *fakeGroups {
	g := &fakeGroups{configs: map[int64]*group.Config{}, failFor: map[int64]error{}}
	for _, c := range cfgs {
		g.configs[c.GroupID] = c
	}
	return g
}

func (g *fakeGroups) GetConfig(_ context.Context, groupID int64) (*group.Config, error) {
	if err := g.failFor[groupID]; err != nil {
		return nil, err
	}
	c, ok := g.configs[groupID]
	if !ok {
		return nil, group.ErrGroupNotFound
	}
	cp := *c
	return &cp, nil
}

func (g *fakeGroups) ListGroupIDs(context.Context) ([]int64, error) {
	var ids []int64
	for id := range g.configs {
		ids = append(ids, id)
	}
	for id := range g.failFor {
		if _, ok := g.configs[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (g *fakeGroups) cfg(groupID int64) *group.Config {
	c, ok := g.configs[groupID]
	if !ok {
		c = &group.Config{GroupID: groupID}
		g.configs[groupID] = c
	}
	return c
}

func (g *fakeGroups) SetInterval(_ context.Context, groupID int64, hours, minutes int) error {
	c := g.cfg(groupID)
	c.CollectionIntervalHours, c.CollectionIntervalMins = hours, minutes
	return nil
}

func (g *fakeGroups) SetTimezone(_ context.Context, groupID int64, tz string) error {
	g.cfg(groupID).Timezone = tz
	return nil
}

func (g *fakeGroups) SetTopicFeature(_ context.Context, groupID int64, topicID int, f group.Feature, enabled bool) error {
	c := g.cfg(groupID)
	for i := range c.Topics {
		if c.Topics[i].TopicID == topicID {
			setFeature(&c.Topics[i], f, enabled)
			return nil
		}
	}
	t := group.TopicFeatures{TopicID: topicID}
	setFeature(&t, f, enabled)
	c.Topics = append(c.Topics, t)
	return nil
}

func setFeature(t *group.TopicFeatures, f group.Feature, enabled bool) {
	switch f {
	case group.FeaturePolls:
		t.PollsEnabled = enabled
	case group.FeatureTop:
		t.TopEnabled = enabled
	case group.FeatureCollection:
		t.CollectionEnabled = enabled
	}
}

func (g *fakeGroups) UpsertTopic(_ context.Context, groupID int64, topicID int, name string) error {
	c := g.cfg(groupID)
	for i := range c.Topics {
		if c.Topics[i].TopicID == topicID {
			c.Topics[i].TopicName = name
			return nil
		}
	}
	c.Topics = append(c.Topics, group.TopicFeatures{TopicID: topicID, TopicName: name})
	return nil
}

func (g *fakeGroups) SetNormPoints(_ context.Context, groupID int64, points int) error {
	g.cfg(groupID).NormPoints = points
	return nil
}

func (g *fakeGroups) SetWarnsEnabled(_ context.Context, groupID int64, enabled bool) error {
	g.cfg(groupID).WarnsEnabled = enabled
	return nil
}

func (g *fakeGroups) SetWarnReportDestination(_ context.Context, groupID, reportGroupID int64, reportTopicID int) error {
	c := g.cfg(groupID)
	c.WarnReportGroupID, c.WarnReportTopicID = reportGroupID, reportTopicID
	return nil
}

// --- collection calls ---

type fakeCalls struct {
	mu     sync.Mutex
	now    func() time.Time
	calls  []*collection.Call
	nextID int64
}

func newFakeCalls(now func() time.Time) *fakeCalls { return &fakeCalls{now: now} }

func (f *fakeCalls) RecordCall(_ context.Context, c *collection.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.calls {
		if x.GroupID == c.GroupID && x.TopicID == c.TopicID && x.BattleType == c.BattleType &&
			x.ScheduledTime.Equal(c.ScheduledTime) && x.Status != collection.StatusCancelled {
			return collection.ErrDuplicateCall
		}
	}
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt, c.UpdatedAt = f.now(), f.now()
	cp := *c
	f.calls = append(f.calls, &cp)
	return nil
}

func (f *fakeCalls) HasActiveCallNear(_ context.Context, groupID int64, topicID int, bt collection.BattleType, expected time.Time, tol time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.calls {
		if x.GroupID != groupID || x.TopicID != topicID || x.BattleType != bt || x.Status == collection.StatusCancelled {
			continue
		}
		d := x.ScheduledTime.Sub(expected)
		if d < 0 {
			d = -d
		}
		if d <= tol {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCalls) LatestCall(_ context.Context, groupID int64, topicID int, bt collection.BattleType) (*collection.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *collection.Call
	for _, x := range f.calls {
		if x.GroupID != groupID || x.TopicID != topicID || x.BattleType != bt {
			continue
		}
		if latest == nil || x.UpdatedAt.After(latest.UpdatedAt) || (x.UpdatedAt.Equal(latest.UpdatedAt) && x.ID > latest.ID) {
			latest = x
		}
	}
	if latest == nil {
		return nil, collection.ErrCallNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeCalls) UpdateStatus(_ context.Context, groupID int64, topicID int, bt collection.BattleType, status collection.Status, until *time.Time) (*collection.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		x := f.calls[i]
		if x.GroupID == groupID && x.TopicID == topicID && x.BattleType == bt && x.Status == collection.StatusPending {
			x.Status = status
			x.UpdatedAt = f.now()
			if until != nil {
				x.PostponedUntil.Time, x.PostponedUntil.Valid = *until, true
			}
			cp := *x
			return &cp, nil
		}
	}
	return nil, collection.ErrCallNotFound
}

func (f *fakeCalls) FindDuePostponed(_ context.Context, now time.Time) ([]*collection.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*collection.Call
	for _, x := range f.calls {
		if x.Status == collection.StatusPostponed && x.PostponedUntil.Valid && !x.PostponedUntil.Time.After(now) {
			cp := *x
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostponedUntil.Time.Before(out[j].PostponedUntil.Time) })
	return out, nil
}

func (f *fakeCalls) ClaimPostponed(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.calls {
		if x.ID == id && x.Status == collection.StatusPostponed {
			x.Status = collection.StatusPending
			x.PostponedUntil.Valid = false
			x.UpdatedAt = f.now()
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCalls) Repostpone(_ context.Context, id int64, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.calls {
		if x.ID == id {
			x.Status = collection.StatusPostponed
			x.PostponedUntil.Time, x.PostponedUntil.Valid = until, true
			return nil
		}
	}
	return collection.ErrCallNotFound
}

func (f *fakeCalls) SetMessageID(_ context.Context, id int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.calls {
		if x.ID == id {
			x.MessageID.Int64, x.MessageID.Valid = int64(messageID), true
			return nil
		}
	}
	return collection.ErrCallNotFound
}

func (f *fakeCalls) ListByMessage(_ context.Context, groupID int64, messageID int) ([]*collection.Call, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*collection.Call
	for _, x := range f.calls {
		if x.GroupID == groupID && x.MessageID.Valid && int(x.MessageID.Int64) == messageID {
			cp := *x
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeCalls) byStatus(status collection.Status) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, x := range f.calls {
		if x.Status == status {
			n++
		}
	}
	return n
}

// --- members ---

type fakeMembers struct {
	byKey map[[2]int64]*member.Member
	order []int64
}

func newFakeMembers() *fakeMembers { return &fakeMembers{byKey: map[[2]int64]*member.Member{}} }

func (f *fakeMembers) add(groupID, userID int64, name string, status member.Status) {
	f.byKey[[2]int64{groupID, userID}] = &member.Member{GroupID: groupID, UserID: userID, FirstName: name, Status: status}
	f.order = append(f.order, userID)
}

func (f *fakeMembers) ActiveMembers(_ context.Context, groupID int64) ([]member.Member, error) {
	var out []member.Member
	for _, uid := range f.order {
		m, ok := f.byKey[[2]int64{groupID, uid}]
		if ok && m.Status.Active() {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMembers) Upsert(_ context.Context, m *member.Member) error {
	key := [2]int64{m.GroupID, m.UserID}
	if _, ok := f.byKey[key]; !ok {
		f.order = append(f.order, m.UserID)
	}
	cp := *m
	f.byKey[key] = &cp
	return nil
}

func (f *fakeMembers) SetStatus(_ context.Context, groupID, userID int64, status member.Status) error {
	m, ok := f.byKey[[2]int64{groupID, userID}]
	if !ok {
		return member.ErrMemberNotFound
	}
	m.Status = status
	return nil
}

func (f *fakeMembers) Get(_ context.Context, groupID, userID int64) (*member.Member, error) {
	m, ok := f.byKey[[2]int64{groupID, userID}]
	if !ok {
		return nil, member.ErrMemberNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMembers) GetMany(_ context.Context, groupID int64, ids []int64) ([]member.Member, error) {
	var out []member.Member
	for _, id := range ids {
		if m, ok := f.byKey[[2]int64{groupID, id}]; ok {
			out = append(out, *m)
		}
	}
	return out, nil
}

// --- attendance ---

type fakeAnswer struct {
	groupID int64
	attendance.Answer
}

type fakeAttendance struct {
	members *fakeMembers
	polls   []*attendance.Poll
	answers []fakeAnswer
	nextID  int64
	failNR  error
}

func newFakeAttendance(members *fakeMembers) *fakeAttendance {
	return &fakeAttendance{members: members}
}

// answer records a vote directly, creating the poll on demand.
func (f *fakeAttendance) answer(groupID, userID int64, bt collection.BattleType, date string, options ...int) {
	poll := f.find(groupID, bt, date)
	if poll == nil {
		f.nextID++
		poll = &attendance.Poll{ID: f.nextID, GroupID: groupID, PollType: bt, PollDate: date, TelegramPollID: fmt.Sprintf("tg-%d", f.nextID)}
		f.polls = append(f.polls, poll)
	}
	f.answers = append(f.answers, fakeAnswer{groupID, attendance.Answer{PollID: poll.ID, UserID: userID, PollType: bt, PollDate: date, OptionIDs: options}})
}

func (f *fakeAttendance) find(groupID int64, bt collection.BattleType, date string) *attendance.Poll {
	for _, p := range f.polls {
		if p.GroupID == groupID && p.PollType == bt && p.PollDate == date {
			return p
		}
	}
	return nil
}

func (f *fakeAttendance) PollExists(_ context.Context, groupID int64, bt collection.BattleType, date string) (bool, error) {
	return f.find(groupID, bt, date) != nil, nil
}

func (f *fakeAttendance) CreatePoll(_ context.Context, p *attendance.Poll) error {
	if f.find(p.GroupID, p.PollType, p.PollDate) != nil {
		return attendance.ErrPollExists
	}
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.polls = append(f.polls, &cp)
	return nil
}

func (f *fakeAttendance) GetPollByTelegramID(_ context.Context, id string) (*attendance.Poll, error) {
	for _, p := range f.polls {
		if p.TelegramPollID == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, attendance.ErrPollNotFound
}

func (f *fakeAttendance) SaveAnswer(_ context.Context, pollID, userID int64, options []int) error {
	var poll *attendance.Poll
	for _, p := range f.polls {
		if p.ID == pollID {
			poll = p
		}
	}
	if poll == nil {
		return attendance.ErrPollNotFound
	}
	_ = f.DeleteAnswer(context.Background(), pollID, userID)
	f.answers = append(f.answers, fakeAnswer{poll.GroupID, attendance.Answer{PollID: pollID, UserID: userID, PollType: poll.PollType, PollDate: poll.PollDate, OptionIDs: options}})
	return nil
}

func (f *fakeAttendance) DeleteAnswer(_ context.Context, pollID, userID int64) error {
	kept := f.answers[:0]
	for _, a := range f.answers {
		if a.PollID == pollID && a.UserID == userID {
			continue
		}
		kept = append(kept, a)
	}
	f.answers = kept
	return nil
}

func (f *fakeAttendance) NonResponders(ctx context.Context, groupID int64, bt collection.BattleType, date string) ([]member.Member, error) {
	if f.failNR != nil {
		return nil, f.failNR
	}
	active, _ := f.members.ActiveMembers(ctx, groupID)
	answered := map[int64]bool{}
	for _, a := range f.answers {
		if a.groupID == groupID && a.PollType == bt && a.PollDate == date {
			answered[a.UserID] = true
		}
	}
	var out []member.Member
	for _, m := range active {
		if !answered[m.UserID] {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeAttendance) UserAnswers(_ context.Context, userID, groupID int64, date string) ([]attendance.Answer, error) {
	var out []attendance.Answer
	for _, a := range f.answers {
		if a.groupID == groupID && a.UserID == userID && a.PollDate == date {
			out = append(out, a.Answer)
		}
	}
	return out, nil
}

func (f *fakeAttendance) AnswersInRange(_ context.Context, groupID int64, from, to string) ([]attendance.Respondent, error) {
	byUser := map[int64]*attendance.Respondent{}
	var order []int64
	for _, a := range f.answers {
		if a.groupID != groupID || a.PollDate < from || a.PollDate > to {
			continue
		}
		r, ok := byUser[a.UserID]
		if !ok {
			r = &attendance.Respondent{UserID: a.UserID}
			byUser[a.UserID] = r
			order = append(order, a.UserID)
		}
		r.Answers = append(r.Answers, a.Answer)
	}
	out := make([]attendance.Respondent, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out, nil
}

func (f *fakeAttendance) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	limit := cutoff.Format("2006-01-02")
	var n int64
	kept := f.polls[:0]
	for _, p := range f.polls {
		if p.PollDate < limit {
			n++
			continue
		}
		kept = append(kept, p)
	}
	f.polls = kept
	return n, nil
}

// --- markers ---

type fakeMarkers struct {
	mu       sync.Mutex
	runs     map[string]bool
	messages map[string][]int
	touched  map[string]time.Time
}

func newFakeMarkers() *fakeMarkers {
	return &fakeMarkers{runs: map[string]bool{}, messages: map[string][]int{}, touched: map[string]time.Time{}}
}

func markerKey(groupID int64, tag, key string) string { return fmt.Sprintf("%d/%s/%s", groupID, tag, key) }

// markAt plants a marker last touched at ts.
func (f *fakeMarkers) markAt(groupID int64, tag, key string, ts time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := markerKey(groupID, tag, key)
	f.runs[k] = true
	f.touched[k] = ts
}

func (f *fakeMarkers) MarkRun(_ context.Context, groupID int64, tag, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := markerKey(groupID, tag, key)
	if f.runs[k] {
		return false, nil
	}
	f.runs[k] = true
	return true, nil
}

func (f *fakeMarkers) Unmark(_ context.Context, groupID int64, tag, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.runs, markerKey(groupID, tag, key))
	return nil
}

func (f *fakeMarkers) Messages(_ context.Context, groupID int64, tag, key string) ([]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.messages[markerKey(groupID, tag, key)]...), nil
}

func (f *fakeMarkers) ReplaceMessages(_ context.Context, groupID int64, tag, key string, ids []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[markerKey(groupID, tag, key)] = append([]int(nil), ids...)
	return nil
}

func (f *fakeMarkers) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for k, ts := range f.touched {
		if ts.Before(cutoff) {
			delete(f.touched, k)
			delete(f.runs, k)
			delete(f.messages, k)
			n++
		}
	}
	return n, nil
}

// --- callouts ---

type openedRoster struct {
	groupID int64
	topicID int
	bt      collection.BattleType
	invited []member.Member
}

// fakeRosters records rosters opened by the collection engine.
type fakeRosters struct {
	opened []openedRoster
}

func (f *fakeRosters) Open(_ context.Context, groupID int64, topicID int, bt collection.BattleType, invited []member.Member) (*callout.Callout, error) {
	f.opened = append(f.opened, openedRoster{groupID, topicID, bt, invited})
	return &callout.Callout{ID: int64(len(f.opened)), GroupID: groupID, TopicID: topicID, BattleType: bt}, nil
}

type fakeCallouts struct {
	mu   sync.Mutex
	next int64
	rows map[int64]*callout.Callout
}

func newFakeCallouts() *fakeCallouts { return &fakeCallouts{rows: map[int64]*callout.Callout{}} }

func (f *fakeCallouts) Create(_ context.Context, c *callout.Callout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	c.ID = f.next
	cp := *c
	cp.Invited = append([]int64(nil), c.Invited...)
	cp.Going = append([]int64(nil), c.Going...)
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeCallouts) Get(_ context.Context, id int64) (*callout.Callout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return nil, callout.ErrCalloutNotFound
	}
	cp := *c
	cp.Invited = append([]int64(nil), c.Invited...)
	cp.Going = append([]int64(nil), c.Going...)
	return &cp, nil
}

func (f *fakeCallouts) SetMessageID(_ context.Context, id int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok {
		return callout.ErrCalloutNotFound
	}
	c.MessageID.Int64, c.MessageID.Valid = int64(messageID), true
	return nil
}

func (f *fakeCallouts) AddGoing(_ context.Context, id, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[id]
	if !ok || c.IsGoing(userID) {
		return false, nil
	}
	c.Going = append(c.Going, userID)
	return true, nil
}

func (f *fakeCallouts) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, c := range f.rows {
		if c.CreatedAt.Before(cutoff) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

// --- warns ---

type fakeWarns struct {
	rows map[string]warn.Warn
}

func newFakeWarns() *fakeWarns { return &fakeWarns{rows: map[string]warn.Warn{}} }

func (f *fakeWarns) Issue(_ context.Context, groupID, userID int64, reason warn.Reason, key string, count int) (int, error) {
	inserted := 0
	for seq := 1; seq <= count; seq++ {
		k := fmt.Sprintf("%d/%d/%s/%s/%d", groupID, userID, reason, key, seq)
		if _, ok := f.rows[k]; ok {
			continue
		}
		f.rows[k] = warn.Warn{GroupID: groupID, UserID: userID, Reason: reason, Key: key, Seq: seq}
		inserted++
	}
	return inserted, nil
}

func (f *fakeWarns) Exists(_ context.Context, groupID, userID int64, reason warn.Reason, keys []string) (bool, error) {
	for _, w := range f.rows {
		if w.GroupID != groupID || w.UserID != userID || w.Reason != reason {
			continue
		}
		for _, k := range keys {
			if w.Key == k {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeWarns) CountForUser(_ context.Context, groupID, userID int64) (int, error) {
	n := 0
	for _, w := range f.rows {
		if w.GroupID == groupID && w.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeWarns) count(userID int64, reason warn.Reason) int {
	n := 0
	for _, w := range f.rows {
		if w.UserID == userID && w.Reason == reason {
			n++
		}
	}
	return n
}

func (f *fakeWarns) Offenders(_ context.Context, groupID int64, minTotal int) ([]warn.Offender, error) {
	totals := map[int64]int{}
	reasons := map[int64]map[warn.Reason]bool{}
	for _, w := range f.rows {
		if w.GroupID != groupID {
			continue
		}
		totals[w.UserID]++
		if reasons[w.UserID] == nil {
			reasons[w.UserID] = map[warn.Reason]bool{}
		}
		reasons[w.UserID][w.Reason] = true
	}
	var out []warn.Offender
	for uid, total := range totals {
		if total < minTotal {
			continue
		}
		o := warn.Offender{UserID: uid, Total: total}
		for _, r := range []warn.Reason{warn.ReasonNoKV, warn.ReasonNoPlay2Days, warn.ReasonNoNorm} {
			if reasons[uid][r] {
				o.Reasons = append(o.Reasons, r)
			}
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// --- telegram ---

type sentMessage struct {
	ChatID  int64
	TopicID int
	ID      int
	Text    string
	KB      domainTelegram.Keyboard
}

type editedMessage struct {
	ChatID int64
	ID     int
	Text   string
	KB     domainTelegram.Keyboard
}

type fakeClient struct {
	mu        sync.Mutex
	nextID    int
	callOuts  []sentMessage
	plain     []sentMessage
	edits     []editedMessage
	deleted   []int
	pinned    []int
	failPin   error
	polls     []sentMessage
	failSends int // number of upcoming sends to fail
	failAt    int // 1-based index of a single send to fail
	sends     int
	admins    map[[2]int64]bool
}

func newFakeClient() *fakeClient { return &fakeClient{nextID: 100, admins: map[[2]int64]bool{}} }

var errSendFailed = errors.New("telegram: send failed")

func (c *fakeClient) take() (int, error) {
	c.sends++
	if c.failAt > 0 && c.sends == c.failAt {
		return 0, errSendFailed
	}
	if c.failSends > 0 {
		c.failSends--
		return 0, errSendFailed
	}
	c.nextID++
	return c.nextID, nil
}

func (c *fakeClient) SendCallOut(_ context.Context, chatID int64, topicID int, text string, kb domainTelegram.Keyboard) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.take()
	if err != nil {
		return 0, err
	}
	c.callOuts = append(c.callOuts, sentMessage{chatID, topicID, id, text, kb})
	return id, nil
}

func (c *fakeClient) EditMessage(_ context.Context, chatID int64, messageID int, text string, kb domainTelegram.Keyboard) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, editedMessage{chatID, messageID, text, kb})
	return nil
}

func (c *fakeClient) SendPlain(_ context.Context, chatID int64, topicID int, text string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.take()
	if err != nil {
		return 0, err
	}
	c.plain = append(c.plain, sentMessage{ChatID: chatID, TopicID: topicID, ID: id, Text: text})
	return id, nil
}

func (c *fakeClient) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, messageID)
	return nil
}

func (c *fakeClient) PinMessage(_ context.Context, _ int64, messageID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failPin != nil {
		return c.failPin
	}
	c.pinned = append(c.pinned, messageID)
	return nil
}

func (c *fakeClient) SendPoll(_ context.Context, chatID int64, topicID int, question string, _ []string) (string, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := c.take()
	if err != nil {
		return "", 0, err
	}
	c.polls = append(c.polls, sentMessage{ChatID: chatID, TopicID: topicID, ID: id, Text: question})
	return fmt.Sprintf("poll-%d", id), id, nil
}

func (c *fakeClient) IsChatAdmin(_ context.Context, chatID, userID int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.admins[[2]int64{chatID, userID}], nil
}
