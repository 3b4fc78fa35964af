package models

type DanceStyle string

const (
	DanceStyleSalsa          DanceStyle = "salsa"
	DanceStyleBachata        DanceStyle = "bachata"
	DanceStyleKizomba        DanceStyle = "kizomba"
	DanceStyleZouk           DanceStyle = "zouk"
	DanceStyleTango          DanceStyle = "tango"
	DanceStyleSwing          DanceStyle = "swing"
	DanceStyleWestCoastSwing DanceStyle = "west coast swing"
	DanceStyleHipHop         DanceStyle = "hip hop"
	DanceStyleContemporary   DanceStyle = "contemporary"
	DanceStyleBallroom       DanceStyle = "ballroom"
	DanceStyleGeneral        DanceStyle = "general dance"
	DanceStyleAll            DanceStyle = "all styles"
)

type EventType string

const (
	EventTypeSocial   EventType = "social"
	EventTypeLesson   EventType = "lesson"
	EventTypeFree     EventType = "free"
	EventTypeWorkshop EventType = "workshop"
	EventTypeFestival EventType = "festival"
	EventTypeAll      EventType = "all types"
)

type SkillLevel string

const (
	SkillLevelBeginner     SkillLevel = "beginner"
	SkillLevelIntermediate SkillLevel = "intermediate"
	SkillLevelAdvanced     SkillLevel = "advanced"
	SkillLevelOpen         SkillLevel = "open level"
	SkillLevelAll          SkillLevel = "all levels"
)

// CostCategory is the coarse price bucket derived from a free-text cost.
type CostCategory string

const (
	CostFree   CostCategory = "free"
	CostLow    CostCategory = "low"
	CostMedium CostCategory = "medium"
	CostHigh   CostCategory = "high"
	// CostPaid means the event is paid (or unknown) but no amount could be read.
	CostPaid CostCategory = "paid"
	CostAll  CostCategory = "all costs"
)

// Label returns the short display symbol shown next to an event.
func (c CostCategory) Label() string {
	switch c {
	case CostFree:
		return "Free"
	case CostLow, CostPaid:
		return "$"
	case CostMedium:
		return "$$"
	case CostHigh:
		return "$$$"
	default:
		return string(c)
	}
}

// Ordered vocabularies. The first entry is always the filter sentinel.
var (
	DanceStyles = []DanceStyle{
		DanceStyleAll,
		DanceStyleSalsa,
		DanceStyleBachata,
		DanceStyleKizomba,
		DanceStyleZouk,
		DanceStyleTango,
		DanceStyleSwing,
		DanceStyleWestCoastSwing,
		DanceStyleHipHop,
		DanceStyleContemporary,
		DanceStyleBallroom,
		DanceStyleGeneral,
	}
	EventTypes = []EventType{
		EventTypeAll,
		EventTypeSocial,
		EventTypeLesson,
		EventTypeWorkshop,
		EventTypeFestival,
		EventTypeFree,
	}
	SkillLevels = []SkillLevel{
		SkillLevelAll,
		SkillLevelOpen,
		SkillLevelBeginner,
		SkillLevelIntermediate,
		SkillLevelAdvanced,
	}
	CostCategories = []CostCategory{
		CostAll,
		CostFree,
		CostLow,
		CostMedium,
		CostHigh,
		CostPaid,
	}
	RadiusOptions = []int{5, 10, 25, 50, 100}
)

// Concrete drops the leading sentinel from an ordered vocabulary.
func Concrete[T ~string](vocab []T) []T {
	if len(vocab) == 0 {
		return nil
	}
	out := make([]T, len(vocab)-1)
	copy(out, vocab[1:])
	return out
}

func containsValue[T ~string](vocab []T, v T) bool {
	for _, item := range vocab {
		if item == v {
			return true
		}
	}
	return false
}
