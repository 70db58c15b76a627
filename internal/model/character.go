package model

// AbilityTrigger is a typed point in the game lifecycle at which an
// ability may fire. The ability engine (internal/ability) is the only
// component that interprets these; the core treats abilities as data
// (§3.5, §4.7).
type AbilityTrigger int

const (
	TriggerOnRoundStart AbilityTrigger = iota
	TriggerOnRoundEnd
	TriggerOnCardShare
	TriggerOnReveal
	TriggerOnBecomeHostage
	TriggerOnResolution
)

// EffectType is the closed set of effects the ability engine may return.
type EffectType int

const (
	EffectApplyCondition EffectType = iota
	EffectRemoveCondition
	EffectForceReveal
	EffectSwapCard
	EffectEndRoundEarly
	EffectInstantWinForTeam
)

// TargetingRule names how an ability's targets are resolved; the engine
// resolves a rule to concrete player ids at invocation time.
type TargetingRule int

const (
	TargetSelf TargetingRule = iota
	TargetSingleOther
	TargetRoom
	TargetOtherRoom
	TargetAll
)

// Condition is a simple predicate over a player's accumulated state,
// evaluated generically by the ability engine without knowledge of any
// specific character.
type Condition struct {
	Key      string
	Operator string // "has", "not_has", "equals"
	Value    string
}

// Ability is one entry in a character's ordered ability list.
type Ability struct {
	ID         string
	Trigger    AbilityTrigger
	Effect     EffectType
	Targeting  TargetingRule
	UsageLimit int // 0 means unlimited
	Conditions []Condition
	Parameters map[string]string
	Priority   int
}

// WinConditionType is the closed set of win predicates the evaluator
// understands generically.
type WinConditionType int

const (
	WinTeamMajority WinConditionType = iota
	WinConditionCustom
)

// WinCondition is an optional, typed override of the default team-majority
// victory rule.
type WinCondition struct {
	Type       WinConditionType
	Priority   int
	Overrides  bool
	Parameters map[string]string
}

// Character is one immutable catalogue entry (§3.5).
type Character struct {
	ID                CharacterID
	Name              string
	Team              TeamColor
	Class             CharacterClass
	Description       string
	Complexity        int
	Requires          []CharacterID
	MutuallyExclusive []CharacterID
	Abilities         []Ability
	WinConditions     []WinCondition
}
