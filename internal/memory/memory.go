// Package memory keeps a bounded, per-session record of tool interactions and
// derives follow-up context (recent entities, focus, preferences) from it.
package memory

import "time"

const (
	DefaultMaxEntries = 100
	DefaultMaxAge     = 7 * 24 * time.Hour

	maxRecentEvents = 10
	maxRecentLists  = 10
	maxRecentItems  = 20
)

// Session is the accumulated history of one conversational thread.
type Session struct {
	SessionID    string        `json:"sessionId"`
	Interactions []Interaction `json:"interactions"`
	Context      Context       `json:"context"`
	Metadata     Metadata      `json:"metadata"`
}

type Metadata struct {
	Created      time.Time `json:"created"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// Interaction is one recorded operation. Newest interactions come first.
type Interaction struct {
	Timestamp time.Time      `json:"timestamp"`
	Operation string         `json:"operation"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result"`
	Context   map[string]any `json:"context,omitempty"`
}

// Context is derived from interactions as they are recorded.
type Context struct {
	RecentEvents    []RecentEvent     `json:"recentEvents"`
	RecentLists     []RecentList      `json:"recentLists"`
	RecentItems     []RecentItem      `json:"recentItems"`
	UserPreferences map[string]string `json:"userPreferences"`
	CurrentFocus    *Focus            `json:"currentFocus"`
}

// Focus points at the entity the conversation is currently about.
type Focus struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title,omitempty"`
	EventID   string    `json:"eventId,omitempty"`
	ListID    string    `json:"listId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	FocusEvent        = "event"
	FocusList         = "list"
	FocusRelationship = "relationship"
)

// RecentEvent has an empty ID when none could be read from the result.
type RecentEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type RecentList struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

type RecentItem struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	ListID    string    `json:"listId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Result is the outcome of an operation as handed to RecordInteraction.
type Result struct {
	Text    string
	IsError bool
}

// SessionInfo is a short listing entry.
type SessionInfo struct {
	SessionID    string
	Interactions int
	Created      time.Time
	LastAccessed time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		SessionID:    id,
		Interactions: []Interaction{},
		Context: Context{
			RecentEvents:    []RecentEvent{},
			RecentLists:     []RecentList{},
			RecentItems:     []RecentItem{},
			UserPreferences: map[string]string{},
		},
		Metadata: Metadata{Created: now, LastAccessed: now},
	}
}

// normalize repairs nil collections after decoding.
func (s *Session) normalize() {
	if s.Interactions == nil {
		s.Interactions = []Interaction{}
	}
	if s.Context.RecentEvents == nil {
		s.Context.RecentEvents = []RecentEvent{}
	}
	if s.Context.RecentLists == nil {
		s.Context.RecentLists = []RecentList{}
	}
	if s.Context.RecentItems == nil {
		s.Context.RecentItems = []RecentItem{}
	}
	if s.Context.UserPreferences == nil {
		s.Context.UserPreferences = map[string]string{}
	}
}

func (s *Session) clone() Session {
	c := *s
	c.Interactions = append([]Interaction(nil), s.Interactions...)
	c.Context.RecentEvents = append([]RecentEvent(nil), s.Context.RecentEvents...)
	c.Context.RecentLists = append([]RecentList(nil), s.Context.RecentLists...)
	c.Context.RecentItems = append([]RecentItem(nil), s.Context.RecentItems...)
	c.Context.UserPreferences = make(map[string]string, len(s.Context.UserPreferences))
	for k, v := range s.Context.UserPreferences {
		c.Context.UserPreferences[k] = v
	}
	if s.Context.CurrentFocus != nil {
		f := *s.Context.CurrentFocus
		c.Context.CurrentFocus = &f
	}
	return c
}
