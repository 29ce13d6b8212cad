package models

import (
	"fmt"
	"strings"
)

// Scheme is a named compression policy understood by the target database
type Scheme string

const (
	SchemeNone        Scheme = "NONE"
	SchemeBasic       Scheme = "BASIC"
	SchemeOLTP        Scheme = "OLTP"
	SchemeQueryLow    Scheme = "QUERY LOW"
	SchemeQueryHigh   Scheme = "QUERY HIGH"
	SchemeArchiveLow  Scheme = "ARCHIVE LOW"
	SchemeArchiveHigh Scheme = "ARCHIVE HIGH"
)

// Tier is a coarse LOW/MEDIUM/HIGH rating
type Tier string

const (
	TierNone     Tier = "NONE"
	TierLow      Tier = "LOW"
	TierMedium   Tier = "MEDIUM"
	TierHigh     Tier = "HIGH"
	TierVeryHigh Tier = "VERY_HIGH"
)

// Affinity names the workload a scheme is designed for
type Affinity string

const (
	AffinityAny       Affinity = "ANY"
	AffinityOLTP      Affinity = "OLTP"
	AffinityReadHeavy Affinity = "READ_HEAVY"
	AffinityArchival  Affinity = "ARCHIVAL"
)

// SchemeInfo carries the descriptive metadata of a scheme
type SchemeInfo struct {
	Scheme           Scheme
	RatioMin         float64
	RatioMax         float64
	RatioAvg         float64
	QueryPerformance Tier
	CPUOverhead      Tier
	Affinity         Affinity
	Strength         int  // ordering used for "equivalent or stronger" checks
	Columnar         bool // hybrid columnar; needs HCC-capable storage
	Description      string
}

var schemeCatalog = map[Scheme]SchemeInfo{
	SchemeNone: {
		Scheme: SchemeNone, RatioMin: 1, RatioMax: 1, RatioAvg: 1,
		QueryPerformance: TierHigh, CPUOverhead: TierNone, Affinity: AffinityAny,
		Strength: 0, Description: "No compression",
	},
	SchemeBasic: {
		Scheme: SchemeBasic, RatioMin: 1.5, RatioMax: 3, RatioAvg: 2,
		QueryPerformance: TierHigh, CPUOverhead: TierLow, Affinity: AffinityReadHeavy,
		Strength: 1, Description: "Basic row compression for direct-path loads",
	},
	SchemeOLTP: {
		Scheme: SchemeOLTP, RatioMin: 1.5, RatioMax: 3.5, RatioAvg: 2.5,
		QueryPerformance: TierHigh, CPUOverhead: TierLow, Affinity: AffinityOLTP,
		Strength: 2, Description: "Advanced row compression maintained under conventional DML",
	},
	SchemeQueryLow: {
		Scheme: SchemeQueryLow, RatioMin: 3, RatioMax: 6, RatioAvg: 4,
		QueryPerformance: TierHigh, CPUOverhead: TierLow, Affinity: AffinityReadHeavy,
		Strength: 3, Columnar: true, Description: "Warehouse compression tuned for load and scan speed",
	},
	SchemeQueryHigh: {
		Scheme: SchemeQueryHigh, RatioMin: 6, RatioMax: 12, RatioAvg: 8,
		QueryPerformance: TierMedium, CPUOverhead: TierMedium, Affinity: AffinityReadHeavy,
		Strength: 4, Columnar: true, Description: "Warehouse compression tuned for space on read-mostly data",
	},
	SchemeArchiveLow: {
		Scheme: SchemeArchiveLow, RatioMin: 8, RatioMax: 15, RatioAvg: 10,
		QueryPerformance: TierLow, CPUOverhead: TierHigh, Affinity: AffinityArchival,
		Strength: 5, Columnar: true, Description: "Archive compression for infrequently accessed data",
	},
	SchemeArchiveHigh: {
		Scheme: SchemeArchiveHigh, RatioMin: 10, RatioMax: 20, RatioAvg: 15,
		QueryPerformance: TierLow, CPUOverhead: TierVeryHigh, Affinity: AffinityArchival,
		Strength: 6, Columnar: true, Description: "Maximum compression for dormant data",
	},
}

// Schemes lists the catalogue in ascending strength
func Schemes() []SchemeInfo {
	out := make([]SchemeInfo, 0, len(schemeCatalog))
	for _, s := range []Scheme{SchemeNone, SchemeBasic, SchemeOLTP, SchemeQueryLow, SchemeQueryHigh, SchemeArchiveLow, SchemeArchiveHigh} {
		out = append(out, schemeCatalog[s])
	}
	return out
}

// ParseScheme is the allow-list for scheme names. It accepts the
// database spellings ("QUERY HIGH", "FOR QUERY HIGH", "query_high").
func ParseScheme(name string) (Scheme, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "FOR ")
	n = strings.ReplaceAll(n, "_", " ")
	n = strings.Join(strings.Fields(n), " ")

	switch n {
	case "":
		return "", fmt.Errorf("empty compression scheme")
	case "DISABLED", "NOCOMPRESS":
		return SchemeNone, nil
	case "ADVANCED":
		return SchemeOLTP, nil
	}
	if _, ok := schemeCatalog[Scheme(n)]; ok {
		return Scheme(n), nil
	}
	return "", fmt.Errorf("unknown compression scheme: %q", name)
}

// Info returns the catalogue entry; unknown schemes report as NONE
func (s Scheme) Info() SchemeInfo {
	if info, ok := schemeCatalog[s]; ok {
		return info
	}
	return schemeCatalog[SchemeNone]
}

// Valid reports whether the scheme is in the catalogue
func (s Scheme) Valid() bool {
	_, ok := schemeCatalog[s]
	return ok
}

// AtLeast reports whether s is equivalent to or stronger than other
func (s Scheme) AtLeast(other Scheme) bool {
	return s.Info().Strength >= other.Info().Strength
}

// IsCompressed reports whether any compression is in effect
func (s Scheme) IsCompressed() bool {
	return s != "" && s != SchemeNone
}
