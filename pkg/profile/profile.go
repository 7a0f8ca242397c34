// Package profile stores child profiles and derives the model instructions
// used when talking to them.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/haivivi/wonderchat/pkg/kv"
)

// Profile types.
const (
	TypeAutism       = "autism"
	TypeADHD         = "adhd"
	TypeSocialSkills = "social_skills"
	TypeGeneral      = "general"
)

// Age bounds accepted by Validate.
const (
	MinAge = 3
	MaxAge = 12
)

var (
	ErrNotFound = errors.New("profile: not found")
	ErrInvalid  = errors.New("profile: invalid")
)

// Profile describes one child.
type Profile struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Age       int       `json:"age" yaml:"age"`
	Type      string    `json:"type" yaml:"type"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Validate checks the name and age.
func (p Profile) Validate() error {
	if utf8.RuneCountInString(strings.TrimSpace(p.Name)) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", ErrInvalid)
	}
	if p.Age < MinAge || p.Age > MaxAge {
		return fmt.Errorf("%w: age must be between %d and %d", ErrInvalid, MinAge, MaxAge)
	}
	switch p.Type {
	case TypeAutism, TypeADHD, TypeSocialSkills, TypeGeneral:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, p.Type)
	}
	return nil
}

var prefix = kv.Key{"profile"}

// Store keeps profiles as JSON values in a kv.Store.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

func NewStore(s kv.Store) *Store {
	return &Store{kv: s, now: time.Now}
}

// Create assigns an ID and stores a new profile. An empty Type defaults to
// autism.
func (s *Store) Create(ctx context.Context, name string, age int, typ string) (*Profile, error) {
	if typ == "" {
		typ = TypeAutism
	}
	p := &Profile{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Age:       age,
		Type:      typ,
		CreatedAt: s.now().UTC(),
	}
	if err := s.Put(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Put validates and writes p, replacing any profile with the same ID.
func (s *Store) Put(ctx context.Context, p *Profile) error {
	if p.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalid)
	}
	if err := p.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, prefix.Append(p.ID), data)
}

func (s *Store) Get(ctx context.Context, id string) (*Profile, error) {
	data, err := s.kv.Get(ctx, prefix.Append(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile: decode %s: %w", id, err)
	}
	return &p, nil
}

// List returns all profiles ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Profile, error) {
	var out []*Profile
	for e, err := range s.kv.List(ctx, prefix) {
		if err != nil {
			return nil, err
		}
		var p Profile
		if err := json.Unmarshal(e.Value, &p); err != nil {
			return nil, fmt.Errorf("profile: decode %s: %w", e.Key, err)
		}
		out = append(out, &p)
	}
	slices.SortFunc(out, func(a, b *Profile) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.kv.Delete(ctx, prefix.Append(id))
}
