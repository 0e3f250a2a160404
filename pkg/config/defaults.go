package config

import "strings"

// DefaultHeroTags is the built-in subject → trait tag table. Per-subject
// overrides in the config replace an entry wholesale.
var DefaultHeroTags = map[string][]string{
	// Tanks
	"doomfist":     {"mobility", "dive"},
	"dva":          {"mobility", "dive", "verticality"},
	"junkerqueen":  {"mobility", "brawl"},
	"mauga":        {"brawl", "mobility"},
	"orisa":        {"immobile", "brawl"},
	"ramattra":     {"brawl", "shield"},
	"reinhardt":    {"brawl", "shield", "immobile"},
	"roadhog":      {"immobile", "brawl"},
	"sigma":        {"range", "shield"},
	"hazard":       {"mobility", "dive", "verticality"},
	"winston":      {"mobility", "dive", "verticality"},
	"wreckingball": {"mobility", "dive"},
	"zarya":        {"brawl", "immobile"},
	// Damage
	"ashe":       {"range", "hitscan"},
	"bastion":    {"range", "immobile"},
	"cassidy":    {"range", "hitscan"},
	"echo":       {"mobility", "verticality"},
	"fara":       {"mobility", "verticality"},
	"genji":      {"mobility", "dive", "verticality"},
	"hanzo":      {"range", "verticality"},
	"junkrat":    {"close-range", "immobile"},
	"mei":        {"close-range", "brawl"},
	"reaper":     {"close-range", "mobility"},
	"sojourn":    {"range", "hitscan", "mobility"},
	"soldier76":  {"range", "hitscan", "mobility"},
	"sombra":     {"mobility", "dive"},
	"symmetra":   {"close-range", "immobile"},
	"torbjorn":   {"range"},
	"tracer":     {"mobility", "dive"},
	"venture":    {"mobility", "dive"},
	"widowmaker": {"range", "hitscan", "verticality"},
	// Support
	"ana":        {"range", "immobile"},
	"baptiste":   {"range", "verticality"},
	"brigitte":   {"close-range", "brawl"},
	"illari":     {"range"},
	"juno":       {"range", "mobility"},
	"kiriko":     {"mobility", "verticality"},
	"lifeweaver": {"range", "verticality"},
	"lucio":      {"mobility", "close-range"},
	"mercy":      {"mobility", "verticality"},
	"moira":      {"mobility", "close-range"},
	"weaver":     {"mobility"},
	"zenyatta":   {"range", "immobile"},
}

// TraitLabels maps tag IDs to display labels.
var TraitLabels = map[string]string{
	"mobility":    "Mobility",
	"dive":        "Dive",
	"verticality": "Verticality",
	"range":       "Range",
	"hitscan":     "Hitscan",
	"close-range": "Close-range",
	"brawl":       "Brawl",
	"immobile":    "Immobile",
	"shield":      "Shield",
}

// TraitLabel returns the display label for tag, falling back to the tag.
func TraitLabel(tag string) string {
	if l, ok := TraitLabels[tag]; ok {
		return l
	}
	return tag
}

// Roles lists role IDs in display order.
var Roles = []string{"tank", "damage", "support"}

// DefaultHeroRoles groups subjects by role.
var DefaultHeroRoles = map[string][]string{
	"tank": {
		"doomfist", "dva", "junkerqueen", "mauga", "orisa",
		"ramattra", "reinhardt", "roadhog", "sigma", "hazard",
		"winston", "wreckingball", "zarya",
	},
	"damage": {
		"ashe", "bastion", "cassidy", "echo", "fara", "genji",
		"hanzo", "junkrat", "mei", "reaper", "sojourn", "soldier76",
		"sombra", "symmetra", "torbjorn", "tracer", "venture", "widowmaker",
	},
	"support": {
		"ana", "baptiste", "brigitte", "illari", "juno", "kiriko",
		"lifeweaver", "lucio", "mercy", "moira", "weaver", "zenyatta",
	},
}

var roleBySubject = func() map[string]string {
	m := make(map[string]string)
	for role, ids := range DefaultHeroRoles {
		for _, id := range ids {
			m[id] = role
		}
	}
	return m
}()

// RoleOf returns the role of a subject, or "" when unknown.
func RoleOf(subjectID string) string {
	return roleBySubject[subjectID]
}

var specialNames = map[string]string{
	"dva":          "D.Va",
	"soldier76":    "Soldier: 76",
	"wreckingball": "Wrecking Ball",
	"junkerqueen":  "Junker Queen",
}

// HeroName returns the display name for a subject ID.
func HeroName(id string) string {
	if n, ok := specialNames[id]; ok {
		return n
	}
	if id == "" {
		return ""
	}
	return strings.ToUpper(id[:1]) + id[1:]
}
