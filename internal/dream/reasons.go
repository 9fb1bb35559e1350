// Oneiro - Adaptive Media Personalization Engine
// Copyright 2026 A. Sato (ayasato)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayasato/oneiro

package dream

// Reason is a specific, enumerated critique attached to feedback for
// finer-grained learning than a plain like/dislike.
type Reason string

// Dislike reasons.
const (
	ReasonPacingTooSlow       Reason = "pacing_too_slow"
	ReasonPacingTooFast       Reason = "pacing_too_fast"
	ReasonStoryWeak           Reason = "story_weak"
	ReasonStoryConfusing      Reason = "story_confusing"
	ReasonCharactersFlat      Reason = "characters_flat"
	ReasonCharactersAnnoying  Reason = "characters_annoying"
	ReasonArtStyleDated       Reason = "art_style_dated"
	ReasonAnimationQualityLow Reason = "animation_quality_low"
	ReasonTooManyEpisodes     Reason = "too_many_episodes"
	ReasonTooOld              Reason = "too_old"
	ReasonGenreMismatch       Reason = "genre_mismatch"
	ReasonToneTooDark         Reason = "tone_too_dark"
	ReasonToneTooLight        Reason = "tone_too_light"
	ReasonFanserviceExcessive Reason = "fanservice_excessive"
	ReasonFillerHeavy         Reason = "filler_heavy"
	ReasonEndingUnsatisfying  Reason = "ending_unsatisfying"
	ReasonSeenTooSimilar      Reason = "seen_too_similar"
	ReasonNotInMood           Reason = "not_in_mood"
	ReasonSequelFatigue       Reason = "sequel_fatigue"
	ReasonStudioDistrust      Reason = "studio_distrust"
)

// Like reasons.
const (
	ReasonPacingGreat           Reason = "pacing_great"
	ReasonStoryGripping         Reason = "story_gripping"
	ReasonCharactersLovable     Reason = "characters_lovable"
	ReasonArtStyleBeautiful     Reason = "art_style_beautiful"
	ReasonAnimationQualityHigh  Reason = "animation_quality_high"
	ReasonGenreFavorite         Reason = "genre_favorite"
	ReasonTonePerfect           Reason = "tone_perfect"
	ReasonSoundtrackGreat       Reason = "soundtrack_great"
	ReasonStudioTrusted         Reason = "studio_trusted"
	ReasonFreshPremise          Reason = "fresh_premise"
	ReasonLengthJustRight       Reason = "length_just_right"
	ReasonWorldbuildingRich     Reason = "worldbuilding_rich"
	ReasonRecommendationOnPoint Reason = "recommendation_on_point"
)

// WeightComponent names one coefficient of the weight vector.
type WeightComponent string

// Weight components addressable by reason impacts.
const (
	ComponentCF             WeightComponent = "cf"
	ComponentContent        WeightComponent = "content"
	ComponentFreshness      WeightComponent = "freshness"
	ComponentRelations      WeightComponent = "relations"
	ComponentFeedback       WeightComponent = "feedback"
	ComponentInteraction    WeightComponent = "interaction"
	ComponentNegativeSignal WeightComponent = "negative_signal"
)

// ReasonImpact is the static effect of one granular reason: a direct weight
// nudge (Scale multiplied by the current learning rate) and optional
// tag/rule effects. Kept as a plain enumerated mapping, not a runtime
// lookup against dynamic data.
type ReasonImpact struct {
	// Weight is the component nudged directly; empty means none.
	Weight WeightComponent

	// Scale is the signed nudge magnitude in learning-rate units.
	Scale float64

	// BlacklistTags are appended to the tag blacklist.
	BlacklistTags []string

	// WhitelistFromMedia adds the feedback item's tags to the whitelist
	// when a media snapshot is available.
	WhitelistFromMedia bool

	// BlacklistStudio adds the item's studio to the studio blacklist;
	// WhitelistStudio the converse.
	BlacklistStudio bool
	WhitelistStudio bool

	// CapEpisodes sets Rules.MaxEpisodes from the item's episode count
	// when lower than the current cap (or the cap is unset).
	CapEpisodes bool

	// RaiseMinYear sets Rules.MinYear to just above the item's year when
	// higher than the current floor.
	RaiseMinYear bool
}

// reasonImpacts maps every known reason to its impact.
//
//nolint:gochecknoglobals // static lookup table
var reasonImpacts = map[Reason]ReasonImpact{
	// Dislike reasons.
	ReasonPacingTooSlow:       {Weight: ComponentContent, Scale: -0.5},
	ReasonPacingTooFast:       {Weight: ComponentContent, Scale: -0.3},
	ReasonStoryWeak:           {Weight: ComponentContent, Scale: -0.5},
	ReasonStoryConfusing:      {Weight: ComponentContent, Scale: -0.3},
	ReasonCharactersFlat:      {Weight: ComponentContent, Scale: -0.4},
	ReasonCharactersAnnoying:  {Weight: ComponentNegativeSignal, Scale: 0.4},
	ReasonArtStyleDated:       {Weight: ComponentFreshness, Scale: 0.5},
	ReasonAnimationQualityLow: {Weight: ComponentFreshness, Scale: 0.3},
	ReasonTooManyEpisodes:     {Weight: ComponentContent, Scale: -0.2, CapEpisodes: true},
	ReasonTooOld:              {Weight: ComponentFreshness, Scale: 0.5, RaiseMinYear: true},
	ReasonGenreMismatch:       {Weight: ComponentContent, Scale: -0.6},
	ReasonToneTooDark:         {Weight: ComponentContent, Scale: -0.3},
	ReasonToneTooLight:        {Weight: ComponentContent, Scale: -0.3},
	ReasonFanserviceExcessive: {Weight: ComponentNegativeSignal, Scale: 0.5, BlacklistTags: []string{"ecchi", "fanservice"}},
	ReasonFillerHeavy:         {Weight: ComponentContent, Scale: -0.3},
	ReasonEndingUnsatisfying:  {Weight: ComponentFeedback, Scale: -0.3},
	ReasonSeenTooSimilar:      {Weight: ComponentCF, Scale: -0.5},
	ReasonNotInMood:           {}, // deliberate no-op: not a model signal
	ReasonSequelFatigue:       {Weight: ComponentRelations, Scale: -0.6},
	ReasonStudioDistrust:      {Weight: ComponentNegativeSignal, Scale: 0.4, BlacklistStudio: true},

	// Like reasons.
	ReasonPacingGreat:           {Weight: ComponentContent, Scale: 0.4},
	ReasonStoryGripping:         {Weight: ComponentContent, Scale: 0.5, WhitelistFromMedia: true},
	ReasonCharactersLovable:     {Weight: ComponentContent, Scale: 0.4, WhitelistFromMedia: true},
	ReasonArtStyleBeautiful:     {Weight: ComponentFreshness, Scale: -0.3},
	ReasonAnimationQualityHigh:  {Weight: ComponentFreshness, Scale: -0.2},
	ReasonGenreFavorite:         {Weight: ComponentContent, Scale: 0.6, WhitelistFromMedia: true},
	ReasonTonePerfect:           {Weight: ComponentContent, Scale: 0.4, WhitelistFromMedia: true},
	ReasonSoundtrackGreat:       {Weight: ComponentContent, Scale: 0.2},
	ReasonStudioTrusted:         {Weight: ComponentContent, Scale: 0.3, WhitelistStudio: true},
	ReasonFreshPremise:          {Weight: ComponentFreshness, Scale: 0.5},
	ReasonLengthJustRight:       {Weight: ComponentContent, Scale: 0.2},
	ReasonWorldbuildingRich:     {Weight: ComponentContent, Scale: 0.4, WhitelistFromMedia: true},
	ReasonRecommendationOnPoint: {Weight: ComponentCF, Scale: 0.6},
}

// ImpactFor returns the impact for a reason and whether the reason is known.
func ImpactFor(r Reason) (ReasonImpact, bool) {
	impact, ok := reasonImpacts[r]
	return impact, ok
}

// KnownReason reports whether r is part of the closed reason enum.
func KnownReason(r Reason) bool {
	_, ok := reasonImpacts[r]
	return ok
}
