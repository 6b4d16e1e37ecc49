package model

// RevenueBand is an ordered annual revenue bucket.
type RevenueBand string

const (
	RevenueUnder100K RevenueBand = "under_100k"
	Revenue100K250K  RevenueBand = "100k_250k"
	Revenue250K500K  RevenueBand = "250k_500k"
	Revenue500K1M    RevenueBand = "500k_1m"
	Revenue1M5M      RevenueBand = "1m_5m"
	RevenueOver5M    RevenueBand = "5m_plus"
)

// RevenueBands lists revenue bands from smallest to largest.
var RevenueBands = []RevenueBand{
	RevenueUnder100K,
	Revenue100K250K,
	Revenue250K500K,
	Revenue500K1M,
	Revenue1M5M,
	RevenueOver5M,
}

// Index returns the band's position in RevenueBands, or -1 if unknown.
func (b RevenueBand) Index() int {
	for i, rb := range RevenueBands {
		if rb == b {
			return i
		}
	}
	return -1
}

// Valid reports whether b is a known revenue band.
func (b RevenueBand) Valid() bool { return b.Index() >= 0 }

// TeamSizeBand is an ordered headcount bucket.
type TeamSizeBand string

const (
	TeamSolo   TeamSizeBand = "solo"
	Team2To5   TeamSizeBand = "2-5"
	Team6To10  TeamSizeBand = "6-10"
	Team11To25 TeamSizeBand = "11-25"
	Team26To50 TeamSizeBand = "26-50"
	TeamOver50 TeamSizeBand = "50+"
)

// TeamSizeBands lists team-size bands from smallest to largest.
var TeamSizeBands = []TeamSizeBand{TeamSolo, Team2To5, Team6To10, Team11To25, Team26To50, TeamOver50}

// Index returns the band's position in TeamSizeBands, or -1 if unknown.
func (b TeamSizeBand) Index() int {
	for i, tb := range TeamSizeBands {
		if tb == b {
			return i
		}
	}
	return -1
}

// Valid reports whether b is a known team-size band.
func (b TeamSizeBand) Valid() bool { return b.Index() >= 0 }

// TeamSizeBandFor maps a headcount to its band. Non-positive counts map to solo.
func TeamSizeBandFor(headcount int) TeamSizeBand {
	switch {
	case headcount <= 1:
		return TeamSolo
	case headcount <= 5:
		return Team2To5
	case headcount <= 10:
		return Team6To10
	case headcount <= 25:
		return Team11To25
	case headcount <= 50:
		return Team26To50
	default:
		return TeamOver50
	}
}

// GrowthBand describes recent revenue trajectory.
type GrowthBand string

const (
	GrowthDeclining GrowthBand = "declining"
	GrowthFlat      GrowthBand = "flat"
	GrowthSteady    GrowthBand = "steady"
	GrowthRapid     GrowthBand = "rapid"
)

// Valid reports whether g is a known growth band.
func (g GrowthBand) Valid() bool {
	switch g {
	case GrowthDeclining, GrowthFlat, GrowthSteady, GrowthRapid:
		return true
	}
	return false
}

// StrategyType enumerates the growth strategies a case study or path follows.
type StrategyType string

const (
	StrategyVerticalSpecialization StrategyType = "vertical_specialization"
	StrategyContentLedGrowth       StrategyType = "content_led_growth"
	StrategyPartnershipExpansion   StrategyType = "partnership_expansion"
	StrategyProductizedServices    StrategyType = "productized_services"
	StrategyGeographicExpansion    StrategyType = "geographic_expansion"
)

// StrategyTypes lists all known strategy types.
var StrategyTypes = []StrategyType{
	StrategyVerticalSpecialization,
	StrategyContentLedGrowth,
	StrategyPartnershipExpansion,
	StrategyProductizedServices,
	StrategyGeographicExpansion,
}

// Valid reports whether s is a known strategy type.
func (s StrategyType) Valid() bool {
	for _, st := range StrategyTypes {
		if st == s {
			return true
		}
	}
	return false
}
