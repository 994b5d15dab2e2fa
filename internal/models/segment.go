package models

// MarketSegment is one axis value of the audience taxonomy used by the
// ad exchange. Users belong to exactly one segment per axis (gender,
// age, income); campaigns target a set of segments, possibly spanning
// several axes.
type MarketSegment string

const (
	SegmentMale       MarketSegment = "MALE"
	SegmentFemale     MarketSegment = "FEMALE"
	SegmentYoung      MarketSegment = "YOUNG"
	SegmentOld        MarketSegment = "OLD"
	SegmentHighIncome MarketSegment = "HIGH_INCOME"
	SegmentLowIncome  MarketSegment = "LOW_INCOME"
)

// AllSegments lists every market segment, in a stable order.
var AllSegments = []MarketSegment{
	SegmentMale, SegmentFemale,
	SegmentYoung, SegmentOld,
	SegmentHighIncome, SegmentLowIncome,
}

// SegmentSet is an unordered set of market segments. An empty set means
// "unknown/any": queries carrying it match users the classification
// service failed to classify.
type SegmentSet map[MarketSegment]bool

// NewSegmentSet builds a set from the given segments.
func NewSegmentSet(segments ...MarketSegment) SegmentSet {
	s := make(SegmentSet, len(segments))
	for _, seg := range segments {
		s[seg] = true
	}
	return s
}

// Contains reports whether the set includes seg.
func (s SegmentSet) Contains(seg MarketSegment) bool { return s[seg] }

// Empty reports whether the set carries no segment at all.
func (s SegmentSet) Empty() bool { return len(s) == 0 }

// Axes splits the set into its per-axis components. A missing axis is
// returned as the empty string.
func (s SegmentSet) Axes() (gender, age, income MarketSegment) {
	switch {
	case s[SegmentMale]:
		gender = SegmentMale
	case s[SegmentFemale]:
		gender = SegmentFemale
	}
	switch {
	case s[SegmentYoung]:
		age = SegmentYoung
	case s[SegmentOld]:
		age = SegmentOld
	}
	switch {
	case s[SegmentHighIncome]:
		income = SegmentHighIncome
	case s[SegmentLowIncome]:
		income = SegmentLowIncome
	}
	return gender, age, income
}

// Clone returns a copy of the set.
func (s SegmentSet) Clone() SegmentSet {
	c := make(SegmentSet, len(s))
	for seg := range s {
		c[seg] = true
	}
	return c
}

// Key returns a deterministic string form, used for map keys and the
// campaign-log serialization.
func (s SegmentSet) Key() string {
	key := ""
	for _, seg := range AllSegments {
		if s[seg] {
			if key != "" {
				key += "-"
			}
			key += string(seg)
		}
	}
	return key
}

// ParseSegmentSet reverses Key. Unknown tokens are ignored.
func ParseSegmentSet(key string) SegmentSet {
	s := make(SegmentSet)
	start := 0
	for i := 0; i <= len(key); i++ {
		if i == len(key) || key[i] == '-' {
			tok := MarketSegment(key[start:i])
			for _, seg := range AllSegments {
				if tok == seg {
					s[seg] = true
				}
			}
			start = i + 1
		}
	}
	return s
}

// Device is the hardware class a query originates from.
type Device string

const (
	DevicePC     Device = "pc"
	DeviceMobile Device = "mobile"
)

// AdType is the creative format requested by a query.
type AdType string

const (
	AdTypeText  AdType = "text"
	AdTypeVideo AdType = "video"
)

// Gender, Income and Age are raw user attributes as the exchange
// reports them; the agent folds them into market segments.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

type Income string

const (
	IncomeLow      Income = "low"
	IncomeMedium   Income = "medium"
	IncomeHigh     Income = "high"
	IncomeVeryHigh Income = "very_high"
)

type Age string

const (
	Age18To24   Age = "Age_18_24"
	Age25To34   Age = "Age_25_34"
	Age35To44   Age = "Age_35_44"
	Age45To54   Age = "Age_45_54"
	Age55To64   Age = "Age_55_64"
	Age65Plus   Age = "Age_65_PLUS"
)

// Segment maps a raw gender onto its market segment.
func (g Gender) Segment() MarketSegment {
	if g == GenderMale {
		return SegmentMale
	}
	return SegmentFemale
}

// Segment maps a raw income band onto its market segment. High and
// very-high incomes count as HIGH_INCOME.
func (i Income) Segment() MarketSegment {
	if i == IncomeHigh || i == IncomeVeryHigh {
		return SegmentHighIncome
	}
	return SegmentLowIncome
}

// Segment maps a raw age band onto its market segment. Ages 18-44
// count as YOUNG.
func (a Age) Segment() MarketSegment {
	switch a {
	case Age18To24, Age25To34, Age35To44:
		return SegmentYoung
	}
	return SegmentOld
}
