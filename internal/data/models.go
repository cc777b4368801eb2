package data

import (
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/PaulBabatuyi/messenger-core/internal/normalize"
)

// Message is one copy of a sent message in a mailbox collection.
// Stored at messages/{self}/{counterpart}/{id}.
type Message struct {
	ID        string    `bson:"-"` // store-assigned, unique within the mailbox
	FromID    string    `bson:"fromId"`
	ToID      string    `bson:"toId"`
	Text      string    `bson:"text"`
	Timestamp time.Time `bson:"timestamp"`
}

// RecentMessage is the latest-message summary an owner keeps per counterpart.
// Stored at recent_messages/{owner}/messages/{counterpart}; ID is the
// counterpart id.
type RecentMessage struct {
	ID              string    `bson:"-"`
	Text            string    `bson:"text"`
	FromID          string    `bson:"fromId"`
	ToID            string    `bson:"toId"`
	Email           string    `bson:"email"` // counterpart email
	ProfileImageURL string    `bson:"profileImageUrl"`
	Timestamp       time.Time `bson:"timestamp"`
}

// Username is the local part of the counterpart email.
func (r RecentMessage) Username() string {
	return normalize.LocalPart(r.Email)
}

var abbreviatedMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Second, Format: "now", DivBy: time.Second},
	{D: time.Minute, Format: "%d sec. %s", DivBy: time.Second},
	{D: time.Hour, Format: "%d min. %s", DivBy: time.Minute},
	{D: humanize.Day, Format: "%d hr. %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 day %s", DivBy: 1},
	{D: humanize.Week, Format: "%d days %s", DivBy: humanize.Day},
	{D: humanize.Month, Format: "%d wk. %s", DivBy: humanize.Week},
	{D: humanize.Year, Format: "%d mo. %s", DivBy: humanize.Month},
	{D: time.Duration(math.MaxInt64), Format: "%d yr. %s", DivBy: humanize.Year},
}

// TimeAgo formats the summary timestamp relative to now, abbreviated
// ("5 min. ago", "2 hr. ago").
func (r RecentMessage) TimeAgo(now time.Time) string {
	return humanize.CustomRelTime(r.Timestamp, now, "ago", "from now", abbreviatedMagnitudes)
}

// User is a profile document at users/{uid}.
type User struct {
	UID             string `bson:"uid"`
	Email           string `bson:"email"`
	ProfileImageURL string `bson:"profile"`
}

// Credential maps a normalized email to its user and password hash.
// Stored at credentials/{email}; Create on that path makes emails unique.
type Credential struct {
	UID       string    `bson:"uid"`
	Email     string    `bson:"email"`
	Password  string    `bson:"password"` // bcrypt hash
	CreatedAt time.Time `bson:"createdAt"`
}
