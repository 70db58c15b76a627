// Package ability is the minimal, generically data-driven evaluator
// required by §4.7's contract: given a *model.Game and a typed trigger, it
// walks every player's current character's Abilities whose Trigger
// matches, evaluates each Ability's Conditions generically, and returns an
// ordered list of Effects for the core to apply. It knows nothing about
// any specific character (§10.4) — that knowledge lives entirely in the
// catalogue's data.
package ability

import (
	"sort"

	"github.com/tabletop-engine/hostage-exchange/internal/catalogue"
	"github.com/tabletop-engine/hostage-exchange/internal/model"
)

// Effect is one application the core must perform, in order. AbilityID
// identifies provenance for logging; PlayerID is the ability's owner,
// Targets are the resolved recipients.
type Effect struct {
	Type      model.EffectType
	PlayerID  model.PlayerID
	AbilityID string
	Targets   []model.PlayerID
	Parameters map[string]string
}

// Engine evaluates abilities and win conditions against an immutable
// catalogue handle.
type Engine struct {
	cat *catalogue.Catalogue
}

func New(cat *catalogue.Catalogue) *Engine {
	return &Engine{cat: cat}
}

// Evaluate returns the ordered effect list for trigger, scanning every
// living player's current character. Ties in Priority break on character
// id for determinism (§10.4).
func (e *Engine) Evaluate(g *model.Game, trigger model.AbilityTrigger) []Effect {
	type candidate struct {
		player *model.Player
		char   model.Character
		ab     model.Ability
	}
	var candidates []candidate

	for _, p := range g.Players {
		if !p.Alive || p.CurrentRole == "" {
			continue
		}
		ch, ok := e.cat.Lookup(p.CurrentRole)
		if !ok {
			continue
		}
		for _, ab := range ch.Abilities {
			if ab.Trigger != trigger {
				continue
			}
			if !e.conditionsMet(p, ab.Conditions) {
				continue
			}
			candidates = append(candidates, candidate{player: p, char: ch, ab: ab})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].ab.Priority != candidates[j].ab.Priority {
			return candidates[i].ab.Priority > candidates[j].ab.Priority
		}
		return candidates[i].char.ID < candidates[j].char.ID
	})

	out := make([]Effect, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Effect{
			Type:       c.ab.Effect,
			PlayerID:   c.player.ID,
			AbilityID:  c.ab.ID,
			Targets:    e.resolveTargets(g, c.player, c.ab.Targeting),
			Parameters: c.ab.Parameters,
		})
	}
	return out
}

// conditionsMet evaluates a simple key/comparison predicate over the
// player's accumulated Conditions and KnownInformation (§10.4).
func (e *Engine) conditionsMet(p *model.Player, conds []model.Condition) bool {
	for _, cond := range conds {
		has := false
		for _, c := range p.Conditions {
			if c == cond.Key {
				has = true
				break
			}
		}
		switch cond.Operator {
		case "has":
			if !has {
				return false
			}
		case "not_has":
			if has {
				return false
			}
		case "equals":
			matched := false
			for _, info := range p.KnownInformation {
				if info.Label == cond.Key && info.Detail == cond.Value {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
	}
	return true
}

func (e *Engine) resolveTargets(g *model.Game, p *model.Player, rule model.TargetingRule) []model.PlayerID {
	switch rule {
	case model.TargetSelf:
		return []model.PlayerID{p.ID}
	case model.TargetRoom:
		return roomOf(g, p.CurrentRoom)
	case model.TargetOtherRoom:
		return roomOf(g, p.CurrentRoom.Other())
	case model.TargetAll:
		ids := make([]model.PlayerID, 0, len(g.Players))
		for id := range g.Players {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		return ids
	default: // TargetSingleOther: the core resolves the concrete target from
		// the triggering command (e.g. a card-share recipient); the engine
		// has no opinion here and returns none.
		return nil
	}
}

func roomOf(g *model.Game, roomID model.RoomID) []model.PlayerID {
	room, ok := g.Rooms[roomID]
	if !ok {
		return nil
	}
	return append([]model.PlayerID(nil), room.Members...)
}

// TeamTally counts living players by team, used by both the default
// team-majority win rule and any custom WinCondition evaluation.
func (e *Engine) TeamTally(g *model.Game) map[model.TeamColor]int {
	tally := make(map[model.TeamColor]int)
	for _, p := range g.Players {
		if !p.Alive || p.CurrentRole == "" {
			continue
		}
		if ch, ok := e.cat.Lookup(p.CurrentRole); ok {
			tally[ch.Team]++
		}
	}
	return tally
}

// ResolveWinner looks at every present character's WinConditions that are
// marked Overrides (the highest Priority one decides the winning team),
// falling back to team-colour majority when none is marked (§4.7, §10.4).
// Only a condition's Overrides flag and Priority are read; nothing else in
// a WinCondition is evaluated here.
func (e *Engine) ResolveWinner(g *model.Game) (team model.TeamColor, winners []model.PlayerID) {
	type overrideCandidate struct {
		priority int
		team     model.TeamColor
		playerID model.PlayerID
	}
	var overrides []overrideCandidate

	for _, p := range g.Players {
		if p.CurrentRole == "" {
			continue
		}
		ch, ok := e.cat.Lookup(p.CurrentRole)
		if !ok {
			continue
		}
		for _, wc := range ch.WinConditions {
			if !wc.Overrides {
				continue
			}
			overrides = append(overrides, overrideCandidate{priority: wc.Priority, team: ch.Team, playerID: p.ID})
		}
	}
	if len(overrides) > 0 {
		sort.Slice(overrides, func(i, j int) bool { return overrides[i].priority > overrides[j].priority })
		winningTeam := overrides[0].team
		for _, o := range overrides {
			if o.team == winningTeam {
				winners = append(winners, o.playerID)
			}
		}
		return winningTeam, winners
	}

	tally := e.TeamTally(g)
	var best model.TeamColor
	bestCount := -1
	for t, n := range tally {
		if n > bestCount {
			best, bestCount = t, n
		}
	}
	for _, p := range g.Players {
		if !p.Alive || p.CurrentRole == "" {
			continue
		}
		if ch, ok := e.cat.Lookup(p.CurrentRole); ok && ch.Team == best {
			winners = append(winners, p.ID)
		}
	}
	sort.Slice(winners, func(i, j int) bool { return winners[i] < winners[j] })
	return best, winners
}
