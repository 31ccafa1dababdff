// Package authority maps spend amounts to the approval authority they need.
// Everything here is pure and deterministic for a given Thresholds value.
package authority

import (
	"errors"
	"strings"

	"treasury/internal/models"
)

type Level int

const (
	LevelNone Level = iota
	LevelOne
	LevelTwo
	LevelThree
	LevelFour
)

type Magnitude string

const (
	MagnitudeSmall    Magnitude = "SMALL"
	MagnitudeMedium   Magnitude = "MEDIUM"
	MagnitudeLarge    Magnitude = "LARGE"
	MagnitudeCritical Magnitude = "CRITICAL"
)

var magnitudeLevels = map[Magnitude]Level{
	MagnitudeSmall:    LevelOne,
	MagnitudeMedium:   LevelTwo,
	MagnitudeLarge:    LevelThree,
	MagnitudeCritical: LevelFour,
}

func ParseMagnitude(raw string) (Magnitude, error) {
	m := Magnitude(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := magnitudeLevels[m]; !ok {
		return "", ErrInvalidMagnitude
	}
	return m, nil
}

const (
	RoleTreasurer        = "treasurer"
	RoleDirector         = "director"
	RoleBoard            = "board"
	RoleOrganizationHead = "organization_head"
	RoleAdmin            = "admin"
)

var roleLevels = map[string]Level{
	RoleTreasurer:        LevelOne,
	RoleDirector:         LevelTwo,
	RoleBoard:            LevelThree,
	RoleOrganizationHead: LevelFour,
	RoleAdmin:            LevelFour,
}

var (
	ErrInvalidThresholds = errors.New("approval thresholds must be positive and strictly ascending")
	ErrInvalidMagnitude  = errors.New("unknown magnitude")
)

// Thresholds are the upper bounds, in minor units, of SMALL, MEDIUM and LARGE.
type Thresholds struct {
	Small  int64
	Medium int64
	Large  int64
}

type Resolver struct {
	thresholds Thresholds
	dualFrom   Magnitude
}

// NewResolver builds a resolver. Requisitions whose magnitude is dualFrom or
// above need two distinct approvers unless raised by a privileged creator.
func NewResolver(thresholds Thresholds, dualFrom Magnitude) (Resolver, error) {
	if thresholds.Small <= 0 || thresholds.Small >= thresholds.Medium || thresholds.Medium >= thresholds.Large {
		return Resolver{}, ErrInvalidThresholds
	}
	if _, ok := magnitudeLevels[dualFrom]; !ok {
		return Resolver{}, ErrInvalidMagnitude
	}
	return Resolver{thresholds: thresholds, dualFrom: dualFrom}, nil
}

func (r Resolver) Thresholds() Thresholds {
	return r.thresholds
}

func (r Resolver) Magnitude(amount int64) Magnitude {
	switch {
	case amount <= r.thresholds.Small:
		return MagnitudeSmall
	case amount <= r.thresholds.Medium:
		return MagnitudeMedium
	case amount <= r.thresholds.Large:
		return MagnitudeLarge
	default:
		return MagnitudeCritical
	}
}

func (r Resolver) RequiredLevel(amount int64) Level {
	return magnitudeLevels[r.Magnitude(amount)]
}

// RequiredHops is the number of distinct approvers a requisition needs.
func (r Resolver) RequiredHops(amount int64, creator models.CreatorType) int {
	hops := 1
	if magnitudeLevels[r.Magnitude(amount)] >= magnitudeLevels[r.dualFrom] {
		hops = 2
	}
	if creator == models.CreatorPrivileged && hops > 1 {
		hops--
	}
	return hops
}

func (r Resolver) IsAuthorized(roles []string, level Level) bool {
	return IsAuthorized(roles, level)
}

// HighestLevel returns the strongest level granted by any role in the set.
func HighestLevel(roles []string) Level {
	highest := LevelNone
	for _, role := range roles {
		if level, ok := roleLevels[normalizeRole(role)]; ok && level > highest {
			highest = level
		}
	}
	return highest
}

// IsAuthorized holds when the role set reaches level. Levels nest, so a set
// authorized at L is authorized at every level below L.
func IsAuthorized(roles []string, level Level) bool {
	if level <= LevelNone {
		return false
	}
	return HighestLevel(roles) >= level
}

func IsAdmin(roles []string) bool {
	return hasRole(roles, RoleAdmin)
}

// CanDisburse reports whether the role set may execute approved requisitions
// and record income.
func CanDisburse(roles []string) bool {
	return hasRole(roles, RoleTreasurer) || hasRole(roles, RoleAdmin)
}

func hasRole(roles []string, want string) bool {
	for _, role := range roles {
		if normalizeRole(role) == want {
			return true
		}
	}
	return false
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
