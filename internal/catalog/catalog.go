// Package catalog generates the symbol catalog: every symbol's level, type,
// recipe and physical metadata, derived from a max level and a topology.
//
// A Catalog is immutable once generated. Configuration changes never patch it;
// callers generate a new one and swap it in.
package catalog

import (
	"errors"
	"fmt"
	"math"
)

// SymbolID identifies a symbol, e.g. "S3_B", "S2_WILDCARD", "S1_VOID".
// The string form is for wire formats and logs; identity lives in Key.
type SymbolID string

// TypeTag is the sub-type of a symbol within its level.
type TypeTag uint8

const (
	TypeA TypeTag = iota
	TypeB
	TypeC
	TypeD
	TypeWildcard
	TypeVoid
	TypeLife
	TypeLotus
)

// String returns the tag used in symbol ids
func (t TypeTag) String() string {
	switch t {
	case TypeA:
		return "A"
	case TypeB:
		return "B"
	case TypeC:
		return "C"
	case TypeD:
		return "D"
	case TypeWildcard:
		return "WILDCARD"
	case TypeVoid:
		return "VOID"
	case TypeLife:
		return "LIFE"
	case TypeLotus:
		return "LOTUS"
	default:
		return "UNKNOWN"
	}
}

// IsNormal reports whether the tag is one of the combinable types A..D.
func (t TypeTag) IsNormal() bool {
	return t <= TypeD
}

// Special symbol ids. They live outside the level loop and have no recipe.
const (
	VoidID  SymbolID = "S1_VOID"
	LifeID  SymbolID = "S1_LIFE"
	LotusID SymbolID = "LOTUS"

	LotusLevel = 32
)

// Topologies supported by Generate.
const (
	TopologyTriangle = 3
	TopologyChain    = 4
)

var (
	ErrInvalidTopology = errors.New("catalog: topology must be 3 or 4")
	ErrInvalidMaxLevel = errors.New("catalog: max level must be at least 1")
)

// Key is the explicit identity of a symbol.
type Key struct {
	Level int
	Type  TypeTag
}

// ID renders the canonical id for a key.
func (k Key) ID() SymbolID {
	switch k.Type {
	case TypeVoid:
		return VoidID
	case TypeLife:
		return LifeID
	case TypeLotus:
		return LotusID
	}
	return SymbolID(fmt.Sprintf("S%d_%s", k.Level, k.Type))
}

// Recipe is the unordered ingredient pair that produces a symbol.
type Recipe struct {
	A SymbolID `json:"a"`
	B SymbolID `json:"b"`
}

// Has reports whether id is one of the two ingredients.
func (r Recipe) Has(id SymbolID) bool {
	return r.A == id || r.B == id
}

// Definition describes one symbol. Definitions returned by a Catalog are shared
// and must be treated as read-only.
type Definition struct {
	ID                    SymbolID `json:"id"`
	Level                 int      `json:"level"`
	Type                  TypeTag  `json:"-"`
	TypeName              string   `json:"type"`
	Recipe                *Recipe  `json:"recipe,omitempty"`
	IsWildcard            bool     `json:"isWildcard"`
	IsSpecial             bool     `json:"isSpecial"`
	SizeMultiplier        float64  `json:"sizeMultiplier"`
	EliminationPoints     int      `json:"eliminationPoints"`
	ExplosionRadiusUnits  float64  `json:"explosionRadiusUnits"`
	ExplosionEffectLevels []int    `json:"explosionEffectLevels,omitempty"`
}

// Key returns the symbol's explicit identity.
func (d *Definition) Key() Key {
	return Key{Level: d.Level, Type: d.Type}
}

func (d *Definition) IsVoid() bool  { return d.Type == TypeVoid }
func (d *Definition) IsLife() bool  { return d.Type == TypeLife }
func (d *Definition) IsLotus() bool { return d.Type == TypeLotus }

// AffectsLevel reports whether an explosion of this symbol sweeps balls of the given level.
func (d *Definition) AffectsLevel(level int) bool {
	for _, l := range d.ExplosionEffectLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Mandala is the visual metadata placeholder handed to renderers.
type Mandala struct {
	NumPoints  int  `json:"numPoints"`
	IsMetallic bool `json:"isMetallic"`
}

// Options tweak metadata without changing the recipe graph.
type Options struct {
	AllMetallic bool
}

// RecipeEntry is one edge set of the recipe graph: Product = A + B.
type RecipeEntry struct {
	Product SymbolID `json:"product"`
	A       SymbolID `json:"a"`
	B       SymbolID `json:"b"`
}

type pairKey struct {
	a, b SymbolID
}

func makePair(a, b SymbolID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// Catalog is a generated, read-only symbol catalog.
type Catalog struct {
	maxLevel int
	topology int
	options  Options

	defs    map[SymbolID]*Definition
	order   []SymbolID
	byKey   map[Key]SymbolID
	mandala map[SymbolID]Mandala
	recipes map[pairKey]SymbolID
	entries []RecipeEntry

	level1       []SymbolID
	level1Normal []SymbolID
}

// Generate builds the catalog for maxLevel levels of a 3- or 4-type topology.
func Generate(maxLevel, topology int) (*Catalog, error) {
	return GenerateWithOptions(maxLevel, topology, Options{})
}

// GenerateWithOptions is Generate with metadata options.
func GenerateWithOptions(maxLevel, topology int, opts Options) (*Catalog, error) {
	if topology != TopologyTriangle && topology != TopologyChain {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidTopology, topology)
	}
	if maxLevel < 1 {
		return nil, fmt.Errorf("%w (got %d)", ErrInvalidMaxLevel, maxLevel)
	}

	c := &Catalog{
		maxLevel: maxLevel,
		topology: topology,
		options:  opts,
		defs:     make(map[SymbolID]*Definition),
		byKey:    make(map[Key]SymbolID),
		mandala:  make(map[SymbolID]Mandala),
		recipes:  make(map[pairKey]SymbolID),
	}

	types := c.Types()
	for level := 1; level <= maxLevel; level++ {
		for _, t := range types {
			c.add(normalDefinition(level, t))
		}
		c.add(&Definition{
			ID:             Key{Level: level, Type: TypeWildcard}.ID(),
			Level:          level,
			Type:           TypeWildcard,
			IsWildcard:     true,
			SizeMultiplier: 1.0,
		})
	}

	for level := 2; level <= maxLevel; level++ {
		for _, rule := range recipeRules(topology) {
			product := c.byKey[Key{Level: level, Type: rule.product}]
			a := c.byKey[Key{Level: level - 1, Type: rule.a}]
			b := c.byKey[Key{Level: level - 1, Type: rule.b}]
			c.defs[product].Recipe = &Recipe{A: a, B: b}
			c.recipes[makePair(a, b)] = product
			c.entries = append(c.entries, RecipeEntry{Product: product, A: a, B: b})
		}
	}

	for _, id := range c.order {
		if d := c.defs[id]; d.Level == 1 && d.Type.IsNormal() {
			c.level1Normal = append(c.level1Normal, id)
		}
	}

	c.add(&Definition{
		ID:                    VoidID,
		Level:                 1,
		Type:                  TypeVoid,
		IsSpecial:             true,
		SizeMultiplier:        1.0,
		EliminationPoints:     5,
		ExplosionRadiusUnits:  1.2,
		ExplosionEffectLevels: []int{1},
	})
	c.mandala[VoidID] = Mandala{NumPoints: 3, IsMetallic: true}
	c.add(&Definition{ID: LifeID, Level: 1, Type: TypeLife, IsSpecial: true, SizeMultiplier: 1.0})
	c.add(&Definition{ID: LotusID, Level: LotusLevel, Type: TypeLotus, IsSpecial: true, SizeMultiplier: 1.0})

	c.level1 = append(append([]SymbolID{}, c.level1Normal...), VoidID, LifeID, LotusID)
	return c, nil
}

func normalDefinition(level int, t TypeTag) *Definition {
	effect := make([]int, level)
	for i := range effect {
		effect[i] = i + 1
	}
	return &Definition{
		ID:                    Key{Level: level, Type: t}.ID(),
		Level:                 level,
		Type:                  t,
		SizeMultiplier:        1.0,
		EliminationPoints:     10 * int(math.Pow(3, float64(level-1))),
		ExplosionRadiusUnits:  1.5 + 0.4*float64(level),
		ExplosionEffectLevels: effect,
	}
}

type recipeRule struct {
	product, a, b TypeTag
}

// recipeRules returns the per-level assignment. The chain topology leaves
// A+C and B+D without a product.
func recipeRules(topology int) []recipeRule {
	if topology == TopologyChain {
		return []recipeRule{
			{product: TypeC, a: TypeA, b: TypeB},
			{product: TypeD, a: TypeB, b: TypeC},
			{product: TypeA, a: TypeC, b: TypeD},
			{product: TypeB, a: TypeD, b: TypeA},
		}
	}
	return []recipeRule{
		{product: TypeC, a: TypeA, b: TypeB},
		{product: TypeB, a: TypeA, b: TypeC},
		{product: TypeA, a: TypeB, b: TypeC},
	}
}

func (c *Catalog) add(d *Definition) {
	d.TypeName = d.Type.String()
	c.defs[d.ID] = d
	c.order = append(c.order, d.ID)
	c.byKey[d.Key()] = d.ID
	if _, ok := c.mandala[d.ID]; !ok {
		c.mandala[d.ID] = Mandala{
			NumPoints:  d.Level + 2,
			IsMetallic: c.options.AllMetallic || d.Level >= 7,
		}
	}
}

// MaxLevel returns the highest normal level.
func (c *Catalog) MaxLevel() int { return c.maxLevel }

// Topology returns the number of normal types per level.
func (c *Catalog) Topology() int { return c.topology }

// Types returns the active normal types in slot order.
func (c *Catalog) Types() []TypeTag {
	return []TypeTag{TypeA, TypeB, TypeC, TypeD}[:c.topology]
}

// Lookup returns the definition for id.
func (c *Catalog) Lookup(id SymbolID) (*Definition, bool) {
	d, ok := c.defs[id]
	return d, ok
}

// Contains reports whether id exists in this catalog.
func (c *Catalog) Contains(id SymbolID) bool {
	_, ok := c.defs[id]
	return ok
}

// ID returns the symbol id for a level and type, if it exists.
func (c *Catalog) ID(level int, t TypeTag) (SymbolID, bool) {
	id, ok := c.byKey[Key{Level: level, Type: t}]
	return id, ok
}

// Product returns the symbol produced by the exact recipe a+b (order-free).
// Pairs without a recipe return ok=false; this is not an error.
func (c *Catalog) Product(a, b SymbolID) (SymbolID, bool) {
	id, ok := c.recipes[makePair(a, b)]
	return id, ok
}

// Ingredients returns the recipe of id.
func (c *Catalog) Ingredients(id SymbolID) (Recipe, bool) {
	d, ok := c.defs[id]
	if !ok || d.Recipe == nil {
		return Recipe{}, false
	}
	return *d.Recipe, true
}

// Wildcard returns the wildcard id of a level.
func (c *Catalog) Wildcard(level int) (SymbolID, bool) {
	return c.ID(level, TypeWildcard)
}

// NormalSymbols returns the non-wildcard, non-special ids of a level in type order.
func (c *Catalog) NormalSymbols(level int) []SymbolID {
	var out []SymbolID
	for _, t := range c.Types() {
		if id, ok := c.ID(level, t); ok {
			out = append(out, id)
		}
	}
	return out
}

// Level1 returns the level-1 normal ids followed by void, life and lotus.
func (c *Catalog) Level1() []SymbolID {
	return append([]SymbolID(nil), c.level1...)
}

// Level1Normal returns the level-1 normal ids.
func (c *Catalog) Level1Normal() []SymbolID {
	return append([]SymbolID(nil), c.level1Normal...)
}

// Definitions returns every definition in generation order.
func (c *Catalog) Definitions() []*Definition {
	out := make([]*Definition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.defs[id])
	}
	return out
}

// Recipes returns every recipe in generation order.
func (c *Catalog) Recipes() []RecipeEntry {
	return append([]RecipeEntry(nil), c.entries...)
}

// Mandala returns the visual metadata of id.
func (c *Catalog) Mandala(id SymbolID) (Mandala, bool) {
	m, ok := c.mandala[id]
	return m, ok
}

// IsFinal reports whether id is a reserved max-level symbol.
func (c *Catalog) IsFinal(id SymbolID) bool {
	d, ok := c.defs[id]
	return ok && d.Type.IsNormal() && d.Level == c.maxLevel
}

// SlotIndex returns the reserved slot of a max-level symbol, or -1.
func (c *Catalog) SlotIndex(id SymbolID) int {
	if !c.IsFinal(id) {
		return -1
	}
	return int(c.defs[id].Type)
}
