// internal/domain/group/config.go
package group

import (
	"time"

	"clan_helper_bot/internal/domain/schedule"
)

// GeneralTopicID is the pseudo topic of a chat without forum threads.
const GeneralTopicID = 1

// DefaultNormPoints is the weekly quota used when a group never set one.
const DefaultNormPoints = 90

// Default collection interval for groups with no settings row.
const (
	DefaultIntervalHours   = 2
	DefaultIntervalMinutes = 0
)

// Feature names a per-topic switch.
type Feature string

const (
	FeaturePolls      Feature = "polls"
	FeatureTop        Feature = "top"
	FeatureCollection Feature = "collection"
)

func (f Feature) Valid() bool {
	return f == FeaturePolls || f == FeatureTop || f == FeatureCollection
}

// TopicFeatures are the switches of one topic. Corresponds to 'topic_features'
// joined with 'group_topics'.
type TopicFeatures struct {
	TopicID           int
	TopicName         string
	PollsEnabled      bool
	TopEnabled        bool
	CollectionEnabled bool
}

// Config is the read-only view of a group used by the scheduling core.
type Config struct {
	GroupID                 int64
	Timezone                string
	CollectionIntervalHours int
	CollectionIntervalMins  int
	NormPoints              int
	WarnsEnabled            bool
	WarnReportGroupID       int64 // 0 means no report destination
	WarnReportTopicID       int
	Topics                  []TopicFeatures
}

// IntervalMinutes is the collection interval; 0 disables collection.
func (c *Config) IntervalMinutes() int {
	return c.CollectionIntervalHours*60 + c.CollectionIntervalMins
}

func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes()) * time.Minute
}

// Location resolves the group's timezone, falling back to the default one.
func (c *Config) Location() (*time.Location, error) {
	return schedule.LoadLocation(c.Timezone)
}

// TopicsWith returns the topics that have the given feature switched on.
func (c *Config) TopicsWith(f Feature) []TopicFeatures {
	var out []TopicFeatures
	for _, t := range c.Topics {
		if t.Enabled(f) {
			out = append(out, t)
		}
	}
	return out
}

// Enabled reports one switch by name.
func (t TopicFeatures) Enabled(f Feature) bool {
	switch f {
	case FeaturePolls:
		return t.PollsEnabled
	case FeatureTop:
		return t.TopEnabled
	case FeatureCollection:
		return t.CollectionEnabled
	}
	return false
}

// ReportDestination is where warn reports go; ok is false until an admin sets one.
func (c *Config) ReportDestination() (chatID int64, topicID int, ok bool) {
	if c.WarnReportGroupID == 0 {
		return 0, 0, false
	}
	topicID = c.WarnReportTopicID
	if topicID == 0 {
		topicID = GeneralTopicID
	}
	return c.WarnReportGroupID, topicID, true
}
