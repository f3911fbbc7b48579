package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidField is returned for unknown or badly typed fields in a patch or filter.
	ErrInvalidField = errors.New("invalid field")
)

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id" bson:"_id"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description,omitempty" bson:"description"`
	StartTime   time.Time `json:"startTime" bson:"startTime"`
	EndTime     time.Time `json:"endTime" bson:"endTime"`
	Location    string    `json:"location,omitempty" bson:"location"`
	CalendarID  string    `json:"calendarId,omitempty" bson:"calendarId"`
	OwnerID     string    `json:"ownerId,omitempty" bson:"ownerId"`
	ListID      string    `json:"listId,omitempty" bson:"listId"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// List groups items and may be attached to one event.
type List struct {
	ID          string    `json:"id" bson:"_id"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description,omitempty" bson:"description"`
	OwnerID     string    `json:"ownerId,omitempty" bson:"ownerId"`
	EventID     string    `json:"eventId,omitempty" bson:"eventId"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Item is a single entry, usually inside a list.
type Item struct {
	ID        string    `json:"id" bson:"_id"`
	ListID    string    `json:"listId,omitempty" bson:"listId"`
	Content   string    `json:"content" bson:"content"`
	Completed bool      `json:"completed" bson:"completed"`
	DueDate   time.Time `json:"dueDate,omitempty" bson:"dueDate"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Patch holds partial field updates keyed by JSON field name.
type Patch map[string]any

// Record is the behaviour every stored entity shares.
type Record interface {
	GetID() string
	SetID(id string)
	Touch(now time.Time)
	Field(name string) (any, bool)
	Apply(p Patch) error
}

// Entity is a Record that can copy itself.
type Entity[T any] interface {
	Record
	Clone() T
}

// Repository is the data-store contract for one entity kind.
type Repository[T Record] interface {
	Create(ctx context.Context, rec T) (T, error)
	FindByID(ctx context.Context, id string) (T, error)
	Find(ctx context.Context, f Filter) ([]T, error)
	UpdateByID(ctx context.Context, id string, p Patch) (T, error)
	DeleteByID(ctx context.Context, id string) (T, error)
	DeleteMany(ctx context.Context, f Filter) (int, error)
}

// Store bundles the three repositories behind one backend.
type Store struct {
	Events Repository[*Event]
	Lists  Repository[*List]
	Items  Repository[*Item]

	closer func() error
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// NewID returns a fresh 24-character hexadecimal identifier.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

func (e *Event) GetID() string   { return e.ID }
func (e *Event) SetID(id string) { e.ID = id }
func (e *Event) Clone() *Event   { c := *e; return &c }

func (e *Event) Touch(now time.Time) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
}

func (e *Event) Field(name string) (any, bool) {
	switch name {
	case "id":
		return e.ID, true
	case "title":
		return e.Title, true
	case "description":
		return e.Description, true
	case "startTime":
		return e.StartTime, true
	case "endTime":
		return e.EndTime, true
	case "location":
		return e.Location, true
	case "calendarId":
		return e.CalendarID, true
	case "ownerId":
		return e.OwnerID, true
	case "listId":
		return e.ListID, true
	case "createdAt":
		return e.CreatedAt, true
	}
	return nil, false
}

func (e *Event) Apply(p Patch) error {
	for key, val := range p {
		var err error
		switch key {
		case "title":
			e.Title, err = asString(key, val)
		case "description":
			e.Description, err = asString(key, val)
		case "startTime":
			e.StartTime, err = asTime(key, val)
		case "endTime":
			e.EndTime, err = asTime(key, val)
		case "location":
			e.Location, err = asString(key, val)
		case "calendarId":
			e.CalendarID, err = asString(key, val)
		case "ownerId":
			e.OwnerID, err = asString(key, val)
		case "listId":
			e.ListID, err = asString(key, val)
		default:
			err = fmt.Errorf("%w: event has no field %q", ErrInvalidField, key)
		}
		if err != nil {
			return err
		}
	}
	if !e.StartTime.IsZero() && !e.EndTime.IsZero() && !e.StartTime.Before(e.EndTime) {
		return fmt.Errorf("%w: startTime must be before endTime", ErrInvalidField)
	}
	return nil
}

func (l *List) GetID() string   { return l.ID }
func (l *List) SetID(id string) { l.ID = id }
func (l *List) Clone() *List    { c := *l; return &c }

func (l *List) Touch(now time.Time) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
}

func (l *List) Field(name string) (any, bool) {
	switch name {
	case "id":
		return l.ID, true
	case "name":
		return l.Name, true
	case "description":
		return l.Description, true
	case "ownerId":
		return l.OwnerID, true
	case "eventId":
		return l.EventID, true
	case "createdAt":
		return l.CreatedAt, true
	}
	return nil, false
}

func (l *List) Apply(p Patch) error {
	for key, val := range p {
		var err error
		switch key {
		case "name":
			l.Name, err = asString(key, val)
		case "description":
			l.Description, err = asString(key, val)
		case "ownerId":
			l.OwnerID, err = asString(key, val)
		case "eventId":
			l.EventID, err = asString(key, val)
		default:
			err = fmt.Errorf("%w: list has no field %q", ErrInvalidField, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (i *Item) GetID() string   { return i.ID }
func (i *Item) SetID(id string) { i.ID = id }
func (i *Item) Clone() *Item    { c := *i; return &c }

func (i *Item) Touch(now time.Time) {
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	i.UpdatedAt = now
}

func (i *Item) Field(name string) (any, bool) {
	switch name {
	case "id":
		return i.ID, true
	case "listId":
		return i.ListID, true
	case "content":
		return i.Content, true
	case "completed":
		return i.Completed, true
	case "dueDate":
		return i.DueDate, true
	case "createdAt":
		return i.CreatedAt, true
	}
	return nil, false
}

func (i *Item) Apply(p Patch) error {
	for key, val := range p {
		var err error
		switch key {
		case "listId":
			i.ListID, err = asString(key, val)
		case "content":
			i.Content, err = asString(key, val)
		case "completed":
			i.Completed, err = asBool(key, val)
		case "dueDate":
			i.DueDate, err = asTime(key, val)
		default:
			err = fmt.Errorf("%w: item has no field %q", ErrInvalidField, key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func asString(key string, v any) (string, error) {
	switch s := v.(type) {
	case nil:
		return "", nil
	case string:
		return s, nil
	}
	return "", fmt.Errorf("%w: %s must be a string", ErrInvalidField, key)
}

func asBool(key string, v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidField, key)
}

func asTime(key string, v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t, nil
	case string:
		if t == "" {
			return time.Time{}, nil
		}
		parsed, err := ParseTime(t)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
		}
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", ErrInvalidField, key)
}

// ParseTime accepts RFC 3339 timestamps, with or without fractional seconds.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q (want RFC 3339)", s)
	}
	return t.UTC(), nil
}
