package catalogue

import "github.com/tabletop-engine/hostage-exchange/internal/model"

// Seed returns a small reference roster sufficient to run a 6-player game
// end to end and to exercise the ability engine's generic effect types.
// The character catalogue's real source file format is an external
// collaborator (§1); this is the sample data cmd/server embeds so the
// reference transport is runnable without that external loader, not a
// claim about what a production deck should contain.
func Seed() []model.Character {
	return []model.Character{
		{
			ID: "leader-blue", Name: "Blue Leader", Team: model.TeamBlue, Class: model.ClassPrimary,
			Description: "Must be present in every deck.",
			Complexity:  1,
		},
		{
			ID: "leader-red", Name: "Red Leader", Team: model.TeamRed, Class: model.ClassPrimary,
			Description: "Must be present in every deck.",
			Complexity:  1,
		},
		{
			ID: "watcher", Name: "Watcher", Team: model.TeamBlue, Class: model.ClassRegular,
			Description: "Marks itself cautious the moment a round begins.",
			Complexity:  2,
			Abilities: []model.Ability{
				{
					ID: "watcher-alert", Trigger: model.TriggerOnRoundStart,
					Effect: model.EffectApplyCondition, Targeting: model.TargetSelf,
					Parameters: map[string]string{"condition": "alert"},
					Priority:   1,
				},
			},
		},
		{
			ID: "saboteur", Name: "Saboteur", Team: model.TeamRed, Class: model.ClassRegular,
			Description: "Can force an early end to a tense round once per game.",
			Complexity:  3,
			Abilities: []model.Ability{
				{
					ID: "saboteur-cut", Trigger: model.TriggerOnCardShare,
					Effect: model.EffectEndRoundEarly, Targeting: model.TargetSelf,
					Conditions: []model.Condition{{Key: "alert", Operator: "not_has", Value: ""}},
					UsageLimit: 1, Priority: 5,
				},
			},
		},
		{
			ID: "double-agent", Name: "Double Agent", Team: model.TeamGrey, Class: model.ClassBackup,
			Description: "Wins alongside whichever team holds the most hostages at resolution.",
			Complexity:  4,
			MutuallyExclusive: []model.CharacterID{"saboteur"},
			WinConditions: []model.WinCondition{
				{Type: model.WinConditionCustom, Priority: 10, Overrides: true, Parameters: map[string]string{"metric": "hostage_majority"}},
			},
		},
		{
			ID: "envoy", Name: "Envoy", Team: model.TeamBlue, Class: model.ClassRegular,
			Description: "Shares a card in confidence without revealing team colour.",
			Complexity:  2,
		},
	}
}
