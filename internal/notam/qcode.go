package notam

import "strings"

// QCodeCategorizerName identifies the Q-code categorizer in a pipeline
const QCodeCategorizerName = "qcode"

const (
	qcodeExactConfidence = 0.9
	qcodeGroupConfidence = 0.75
)

type subjectMapping struct {
	category string
	tags     []string
}

// Two-letter subjects (2nd and 3rd letters of the Q-code)
var qcodeSubjects = map[string]subjectMapping{
	// Movement and landing area
	"MA": {category: CategoryAerodrome},
	"MB": {category: CategoryRunway},
	"MC": {category: CategoryRunway},
	"MD": {category: CategoryRunway},
	"MG": {category: CategoryTaxiway},
	"MH": {category: CategoryRunway},
	"MK": {category: CategoryApron},
	"MM": {category: CategoryAerodrome},
	"MN": {category: CategoryApron},
	"MO": {category: CategoryTaxiway},
	"MP": {category: CategoryApron},
	"MR": {category: CategoryRunway},
	"MS": {category: CategoryRunway},
	"MT": {category: CategoryRunway, tags: []string{TagDisplacedThreshold}},
	"MU": {category: CategoryRunway},
	"MW": {category: CategoryRunway},
	"MX": {category: CategoryTaxiway},
	"MY": {category: CategoryTaxiway},

	// Lighting
	"LA": {category: CategoryLighting, tags: []string{TagRunwayLighting}},
	"LC": {category: CategoryLighting, tags: []string{TagRunwayLighting}},
	"LE": {category: CategoryLighting, tags: []string{TagRunwayLighting}},
	"LH": {category: CategoryLighting, tags: []string{TagRunwayLighting}},
	"LI": {category: CategoryLighting, tags: []string{TagRunwayLighting}},
	"LP": {category: CategoryLighting, tags: []string{TagRunwayLighting}},
	"LR": {category: CategoryLighting, tags: []string{TagRunwayLighting}},
	"LT": {category: CategoryLighting, tags: []string{TagRunwayLighting}},
	"LZ": {category: CategoryLighting, tags: []string{TagRunwayLighting}},
	"LX": {category: CategoryLighting},
	"LB": {category: CategoryLighting},

	// ILS and associated aids
	"IC": {category: CategoryNavigation, tags: []string{TagILS}},
	"ID": {category: CategoryNavigation, tags: []string{TagILS}},
	"IG": {category: CategoryNavigation, tags: []string{TagILS}},
	"II": {category: CategoryNavigation, tags: []string{TagILS}},
	"IL": {category: CategoryNavigation, tags: []string{TagILS}},
	"IM": {category: CategoryNavigation, tags: []string{TagILS}},
	"IO": {category: CategoryNavigation, tags: []string{TagILS}},
	"IS": {category: CategoryNavigation, tags: []string{TagILS}},
	"IT": {category: CategoryNavigation, tags: []string{TagILS}},
	"IU": {category: CategoryNavigation, tags: []string{TagILS}},

	// Facilities that read better as services than aerodrome
	"FF": {category: CategoryServices},
	"FU": {category: CategoryServices},
	"FH": {category: CategoryServices},

	"OB": {category: CategoryObstacle, tags: []string{TagObstacle}},
	"OL": {category: CategoryObstacle, tags: []string{TagObstacle}},

	"WU": {category: CategoryWarning, tags: []string{TagDrone}},
	"WZ": {category: CategoryWarning, tags: []string{TagDrone}},
	"WM": {category: CategoryWarning, tags: []string{TagMilitary}},
	"WE": {category: CategoryWarning, tags: []string{TagMilitary}},

	"XX": {category: CategoryOther},
}

// First-letter fallback when the exact subject is unknown
var qcodeGroups = map[byte]string{
	'M': CategoryAerodrome,
	'F': CategoryAerodrome,
	'L': CategoryLighting,
	'I': CategoryNavigation,
	'N': CategoryNavigation,
	'G': CategoryNavigation,
	'C': CategoryCommunications,
	'A': CategoryAirspace,
	'R': CategoryAirspace,
	'O': CategoryObstacle,
	'P': CategoryProcedure,
	'S': CategoryServices,
	'W': CategoryWarning,
	'X': CategoryOther,
}

// Condition (4th and 5th letters) to tag
var qcodeConditions = map[string]string{
	"LC": TagClosed,
	"AS": TagUnserviceable,
	"AU": TagNotAvailable,
	"LT": TagLimited,
	"HW": TagWorkInProgress,
	"CA": TagActivated,
	"CH": TagChanged,
	"XX": TagOther,
}

// QCodeCategorizer classifies NOTAMs from their ICAO Q-code
type QCodeCategorizer struct{}

// NewQCodeCategorizer returns the Q-code categorizer
func NewQCodeCategorizer() *QCodeCategorizer {
	return &QCodeCategorizer{}
}

func (c *QCodeCategorizer) Name() string { return QCodeCategorizerName }

// Categorize maps the subject letters to a category. Missing or malformed
// codes give an empty result.
func (c *QCodeCategorizer) Categorize(n *Notam) CategorizationResult {
	if n == nil {
		return EmptyResult(QCodeCategorizerName)
	}
	subject, condition, ok := SplitQCode(n.QCode)
	if !ok {
		return EmptyResult(QCodeCategorizerName)
	}

	result := EmptyResult(QCodeCategorizerName)
	if m, found := qcodeSubjects[subject]; found {
		result.PrimaryCategory = m.category
		result.Confidence = qcodeExactConfidence
		for _, t := range m.tags {
			result.Tags.Add(t)
		}
	} else if category, found := qcodeGroups[subject[0]]; found {
		result.PrimaryCategory = category
		result.Confidence = qcodeGroupConfidence
		result.RelevanceHints["qcode_fallback"] = true
	} else {
		return result
	}

	result.Categories.Add(result.PrimaryCategory)
	if tag, found := qcodeConditions[condition]; found {
		result.Tags.Add(tag)
	}
	result.RelevanceHints["qcode_subject"] = subject
	result.RelevanceHints["qcode_condition"] = condition
	return result
}

// SplitQCode returns the subject and condition pairs of a Q-code. Both
// "QMRLC" and "MRLC" are accepted, in any case.
func SplitQCode(code string) (subject, condition string, ok bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) == 5 {
		if code[0] != 'Q' {
			return "", "", false
		}
		code = code[1:]
	}
	if len(code) != 4 {
		return "", "", false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return "", "", false
		}
	}
	return code[:2], code[2:], true
}
