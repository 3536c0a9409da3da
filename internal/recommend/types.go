// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package recommend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// TargetType identifies the kind of entity a recommendation set is generated for.
type TargetType string

const (
	// TargetUser is a recommendation set generated for a user.
	TargetUser TargetType = "user"
	// TargetItem is a recommendation set generated for an item.
	TargetItem TargetType = "item"
)

// Valid reports whether t is one of the known target types.
func (t TargetType) Valid() bool {
	return t == TargetUser || t == TargetItem
}

// KeyPrefix returns the prefix used in stored target keys ("user_id", "item_id").
func (t TargetType) KeyPrefix() string {
	return string(t) + "_id"
}

// TargetKey builds the stored key for a target, e.g. "user_id#12".
func TargetKey(t TargetType, id int64) string {
	return fmt.Sprintf("%s#%d", t.KeyPrefix(), id)
}

// ParseTargetKey is the inverse of TargetKey.
func ParseTargetKey(key string) (TargetType, int64, error) {
	prefix, rawID, ok := strings.Cut(key, "#")
	if !ok {
		return "", 0, fmt.Errorf("target key %q: missing separator", key)
	}
	var t TargetType
	switch prefix {
	case TargetUser.KeyPrefix():
		t = TargetUser
	case TargetItem.KeyPrefix():
		t = TargetItem
	default:
		return "", 0, fmt.Errorf("target key %q: unknown prefix %q", key, prefix)
	}
	var id int64
	if _, err := fmt.Sscan(rawID, &id); err != nil {
		return "", 0, fmt.Errorf("target key %q: invalid id: %w", key, err)
	}
	return t, id, nil
}

// Item is a catalog item. Immutable for the duration of a run.
type Item struct {
	// ID is the unique item identifier.
	ID int64 `json:"id"`

	// Title is the item title.
	Title string `json:"title"`

	// URL is the optional item link. Not used for scoring.
	URL string `json:"url,omitempty"`

	// Description is the free-text item description.
	Description string `json:"description"`
}

// Text returns the blob that is embedded for similarity: title and description
// joined by a single space and trimmed.
func (i Item) Text() string {
	return strings.TrimSpace(strings.TrimSpace(i.Title) + " " + strings.TrimSpace(i.Description))
}

// User is a catalog user. Profile fields are opaque to the pipeline.
type User struct {
	ID       int64  `json:"id"`
	Gender   *int64 `json:"gender,omitempty"`
	AgeRange string `json:"age_range,omitempty"`
	Married  *int64 `json:"married,omitempty"`
}

// Catalog is the immutable set of items and users loaded once per run.
type Catalog struct {
	items   []Item
	users   []User
	itemIdx map[int64]int
	userIdx map[int64]int
}

// NewCatalog builds a catalog sorted by identifier. Duplicate identifiers are
// rejected so that every target is generated exactly once.
func NewCatalog(items []Item, users []User) (*Catalog, error) {
	c := &Catalog{
		items:   append([]Item(nil), items...),
		users:   append([]User(nil), users...),
		itemIdx: make(map[int64]int, len(items)),
		userIdx: make(map[int64]int, len(users)),
	}
	sort.Slice(c.items, func(a, b int) bool { return c.items[a].ID < c.items[b].ID })
	sort.Slice(c.users, func(a, b int) bool { return c.users[a].ID < c.users[b].ID })

	for i, it := range c.items {
		if _, dup := c.itemIdx[it.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %d", it.ID)
		}
		c.itemIdx[it.ID] = i
	}
	for i, u := range c.users {
		if _, dup := c.userIdx[u.ID]; dup {
			return nil, fmt.Errorf("duplicate user id %d", u.ID)
		}
		c.userIdx[u.ID] = i
	}
	return c, nil
}

// Items returns the items in ascending id order. The slice must not be modified.
func (c *Catalog) Items() []Item { return c.items }

// Users returns the users in ascending id order. The slice must not be modified.
func (c *Catalog) Users() []User { return c.users }

// Item looks up an item by id.
func (c *Catalog) Item(id int64) (Item, bool) {
	i, ok := c.itemIdx[id]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// HasUser reports whether the user exists.
func (c *Catalog) HasUser(id int64) bool {
	_, ok := c.userIdx[id]
	return ok
}

// ItemIDs returns all item ids in ascending order.
func (c *Catalog) ItemIDs() []int64 {
	ids := make([]int64, len(c.items))
	for i, it := range c.items {
		ids[i] = it.ID
	}
	return ids
}

// UserIDs returns all user ids in ascending order.
func (c *Catalog) UserIDs() []int64 {
	ids := make([]int64, len(c.users))
	for i, u := range c.users {
		ids[i] = u.ID
	}
	return ids
}

// TargetIDs returns the identifiers to iterate for the given target type.
func (c *Catalog) TargetIDs(t TargetType) []int64 {
	if t == TargetUser {
		return c.UserIDs()
	}
	return c.ItemIDs()
}

// ScoredItem is one ranked entry of a recommendation set.
type ScoredItem struct {
	// ItemID is the recommended item.
	ItemID int64 `json:"item_id"`

	// Score is the model score. For sampling models it is a placeholder
	// that only preserves rank order.
	Score float64 `json:"score"`
}

// SortScored orders entries by descending score with ascending item id on ties.
func SortScored(items []ScoredItem) {
	sort.Slice(items, func(a, b int) bool {
		return Ranks(items[a], items[b])
	})
}

// Ranks reports whether a ranks strictly before b.
func Ranks(a, b ScoredItem) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ItemID < b.ItemID
}

// RecommendationSet is the unit of pipeline output: one model's ranked list for
// one target, produced by one run. It is never modified after it is written.
type RecommendationSet struct {
	// RunID identifies the generation run that produced the set.
	RunID string `json:"run_id"`

	// TargetType is user or item.
	TargetType TargetType `json:"target_type"`

	// TargetID is the user or item identifier.
	TargetID int64 `json:"target_id"`

	// Model is the registry name of the model that produced the set.
	Model string `json:"model"`

	// GeneratedAt is the run start time, shared by every set of the run.
	GeneratedAt time.Time `json:"generated_at"`

	// Items is the ranked list, at most top-N long.
	Items []ScoredItem `json:"items"`
}

// TargetKey returns the stored key of the set's target.
func (s *RecommendationSet) TargetKey() string {
	return TargetKey(s.TargetType, s.TargetID)
}

// Validate checks the structural invariants of a set before it is persisted.
func (s *RecommendationSet) Validate(topN int) error {
	if !s.TargetType.Valid() {
		return fmt.Errorf("invalid target type %q", s.TargetType)
	}
	if s.Model == "" {
		return fmt.Errorf("model name is required")
	}
	if topN > 0 && len(s.Items) > topN {
		return fmt.Errorf("set has %d items, limit is %d", len(s.Items), topN)
	}
	seen := make(map[int64]struct{}, len(s.Items))
	for i, it := range s.Items {
		if _, dup := seen[it.ItemID]; dup {
			return fmt.Errorf("duplicate item %d", it.ItemID)
		}
		seen[it.ItemID] = struct{}{}
		if s.TargetType == TargetItem && it.ItemID == s.TargetID {
			return fmt.Errorf("set for item %d contains the item itself", s.TargetID)
		}
		if i > 0 && Ranks(it, s.Items[i-1]) {
			return fmt.Errorf("items not in rank order at position %d", i)
		}
	}
	return nil
}

// ModelKind is the closed set of scoring variants a registry accepts.
type ModelKind int

const (
	// KindSimilarity scores targets by embedding similarity.
	KindSimilarity ModelKind = iota + 1
	// KindSampling scores targets by seeded pseudo-random sampling.
	KindSampling
)

// String returns the variant name.
func (k ModelKind) String() string {
	switch k {
	case KindSimilarity:
		return "similarity"
	case KindSampling:
		return "sampling"
	default:
		return "unknown"
	}
}

// Model is the uniform scoring contract every registered variant satisfies.
type Model interface {
	// Name is the unique registry key, e.g. "item_similarity".
	Name() string

	// Kind is the scoring variant.
	Kind() ModelKind

	// Target is the entity type this model scores.
	Target() TargetType

	// Prepare builds any per-run state (embeddings, sampling pools) from the
	// loaded catalog. It is called once, before generation starts.
	Prepare(ctx context.Context, catalog *Catalog, params RunParams) error

	// Score returns at most topN ranked items for the target.
	// It must be safe for concurrent use once Prepare has returned.
	Score(ctx context.Context, targetID int64, topN int) ([]ScoredItem, error)
}

// RunParams carries run-level inputs a model may depend on during Prepare.
type RunParams struct {
	// Seed drives seed-dependent models.
	Seed int64

	// RatedItems maps user id to the item ids that user has rated.
	// Nil unless rated-item exclusion is enabled.
	RatedItems map[int64][]int64
}

// CatalogSource loads the catalog. It is the read half of the persistence port.
type CatalogSource interface {
	GetCatalog(ctx context.Context) (*Catalog, error)
}

// Store is the persistence port the orchestrator writes through.
type Store interface {
	CatalogSource

	// Put persists one set. Implementations return *StoreUnavailableError for
	// unrecoverable conditions; any other error is treated as a single failed write.
	Put(ctx context.Context, set *RecommendationSet) error
}

// RatingSource is implemented by stores that can list rated items per user.
type RatingSource interface {
	RatedItems(ctx context.Context) (map[int64][]int64, error)
}

// SetReader is the read contract consumed by the serving API.
type SetReader interface {
	// Latest returns, for each model (or only the given model when non-empty),
	// the most recent set for the target.
	Latest(ctx context.Context, target TargetType, targetID int64, model string) ([]RecommendationSet, error)
}
