package store

import "time"

type Account struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"passwordHash" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

// Group is a category of activities. ActivityIDs is the ordered child list.
type Group struct {
	ID          string   `json:"id" bson:"_id"`
	AccountID   string   `json:"accountId" bson:"accountId"`
	Name        string   `json:"name" bson:"name"`
	Visible     bool     `json:"visible" bson:"visible"`
	Order       int      `json:"order" bson:"order"`
	ActivityIDs []string `json:"activities" bson:"activities"`
}

type Activity struct {
	ID        string `json:"id" bson:"_id"`
	AccountID string `json:"accountId" bson:"accountId"`
	GroupID   string `json:"groupId" bson:"groupId"`
	Name      string `json:"name" bson:"name"`
	IconName  string `json:"iconName" bson:"iconName"`
}

// MoodEntry is one account's record for one calendar day.
type MoodEntry struct {
	ID          string    `json:"id" bson:"_id"`
	AccountID   string    `json:"accountId" bson:"accountId"`
	Date        time.Time `json:"date" bson:"date"`
	Mood        int       `json:"mood" bson:"mood"`
	Note        string    `json:"note" bson:"note"`
	Images      []string  `json:"images" bson:"images"`
	ActivityIDs []string  `json:"activities" bson:"activities"`
}

// GroupView is a Group with its activity list resolved.
type GroupView struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"accountId"`
	Name       string     `json:"name"`
	Visible    bool       `json:"visible"`
	Order      int        `json:"order"`
	Activities []Activity `json:"activities"`
}

// MoodEntryView is a MoodEntry with its activity list resolved.
type MoodEntryView struct {
	ID         string     `json:"id"`
	AccountID  string     `json:"accountId"`
	Date       time.Time  `json:"date"`
	Mood       int        `json:"mood"`
	Note       string     `json:"note"`
	Images     []string   `json:"images"`
	Activities []Activity `json:"activities"`
}

// Keys are the indexed fields of a record. Every backend filters on these.
type Keys struct {
	ID          string
	AccountID   string
	GroupID     string
	Day         string
	Email       string
	ActivityIDs []string
}

// Record is implemented by every stored type.
type Record interface {
	Keys() Keys
}

func (a Account) Keys() Keys {
	return Keys{ID: a.ID, AccountID: a.ID, Email: a.Email}
}

func (g Group) Keys() Keys {
	return Keys{ID: g.ID, AccountID: g.AccountID, ActivityIDs: g.ActivityIDs}
}

func (a Activity) Keys() Keys {
	return Keys{ID: a.ID, AccountID: a.AccountID, GroupID: a.GroupID}
}

func (m MoodEntry) Keys() Keys {
	return Keys{ID: m.ID, AccountID: m.AccountID, Day: DayKey(m.Date), ActivityIDs: m.ActivityIDs}
}

// DayKey is the calendar-day identity of a timestamp, read in the
// timestamp's own location.
func DayKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// Day truncates t to midnight UTC of the calendar day it expresses.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (g Group) clone() Group {
	g.ActivityIDs = cloneStrings(g.ActivityIDs)
	return g
}

func (m MoodEntry) clone() MoodEntry {
	m.Images = cloneStrings(m.Images)
	m.ActivityIDs = cloneStrings(m.ActivityIDs)
	return m
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
