package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/internal/modules/features"
)

const (
	DefaultTopK      = 3
	DefaultMinImpact = 0.1 // percentage points of PD

	fallbackSuggestion = "Improving this factor could reduce default probability."
)

// Options tunes the risk-reduction guidance
type Options struct {
	TopK      int
	MinImpact float64
}

// DefaultOptions returns TopK 3 and MinImpact 0.1
func DefaultOptions() Options {
	return Options{TopK: DefaultTopK, MinImpact: DefaultMinImpact}
}

// Validate rejects non-positive TopK and negative MinImpact
func (o Options) Validate() error {
	if o.TopK <= 0 {
		return &domain.InvalidConfigurationError{Option: "GUIDANCE_TOP_K", Reason: "must be positive"}
	}
	if !(o.MinImpact >= 0) {
		return &domain.InvalidConfigurationError{Option: "GUIDANCE_MIN_IMPACT", Reason: "must not be negative"}
	}
	return nil
}

// Guidance is one feature pushing the applicant's PD up
type Guidance struct {
	Feature    string  `json:"feature"`
	Label      string  `json:"label"`
	Impact     float64 `json:"impact"` // share of the PD attributed to the feature, in percentage points
	Suggestion string  `json:"suggestion"`
}

var featureLabels = map[string]string{
	domain.FieldAge:                               "Age",
	domain.FieldIncome:                            "Annual Income",
	domain.FieldEmploymentLength:                  "Employment Length",
	domain.FieldLoanAmount:                        "Loan Amount",
	domain.FieldInterestRate:                      "Interest Rate",
	domain.FieldLoanPercentIncome:                 "Loan-to-Income Ratio",
	domain.FieldCreditHistoryLength:               "Credit History Length",
	domain.FieldHomeOwnership + "=RENT":           "Home Ownership: Rent",
	domain.FieldHomeOwnership + "=OWN":            "Home Ownership: Own",
	domain.FieldHomeOwnership + "=MORTGAGE":       "Home Ownership: Mortgage",
	domain.FieldHomeOwnership + "=OTHER":          "Home Ownership: Other",
	domain.FieldLoanIntent + "=EDUCATION":         "Loan Purpose: Education",
	domain.FieldLoanIntent + "=MEDICAL":           "Loan Purpose: Medical",
	domain.FieldLoanIntent + "=VENTURE":           "Loan Purpose: Venture",
	domain.FieldLoanIntent + "=PERSONAL":          "Loan Purpose: Personal",
	domain.FieldLoanIntent + "=DEBTCONSOLIDATION": "Loan Purpose: Debt Consolidation",
	domain.FieldLoanIntent + "=HOMEIMPROVEMENT":   "Loan Purpose: Home Improvement",
	domain.FieldPreviousDefault + "=Y":            "Previous Default: Yes",
	domain.FieldPreviousDefault + "=N":            "Previous Default: No",
}

var fieldLabels = map[string]string{
	domain.FieldHomeOwnership:   "Home Ownership",
	domain.FieldLoanIntent:      "Loan Purpose",
	domain.FieldLoanGrade:       "Loan Grade",
	domain.FieldPreviousDefault: "Previous Default",
}

var suggestions = map[string]string{
	domain.FieldAge:                               "Younger applicants tend to carry higher risk; age is not changeable but longer credit history helps.",
	domain.FieldIncome:                            "A higher income reduces default probability. Consider ways to increase earnings.",
	domain.FieldEmploymentLength:                  "Longer employment tenure signals income stability to lenders.",
	domain.FieldLoanAmount:                        "Requesting a smaller loan amount would reduce risk exposure.",
	domain.FieldInterestRate:                      "A lower interest rate reduces repayment burden. Improving creditworthiness can help.",
	domain.FieldLoanPercentIncome:                 "Lowering the loan-to-income ratio by borrowing less or earning more reduces risk.",
	domain.FieldCreditHistoryLength:               "Building a longer credit history strengthens the applicant's profile.",
	domain.FieldHomeOwnership + "=RENT":           "Stable housing or home ownership may slightly reduce risk.",
	domain.FieldHomeOwnership + "=OWN":            "Owning a home is generally positive for creditworthiness.",
	domain.FieldHomeOwnership + "=MORTGAGE":       "Having a mortgage indicates financial commitment and stability.",
	domain.FieldHomeOwnership + "=OTHER":          "Stable housing or home ownership may slightly reduce risk.",
	domain.FieldLoanGrade + "=A":                  "This is already the best loan grade.",
	domain.FieldLoanGrade + "=D":                  "A better loan grade (A to C) would significantly lower risk.",
	domain.FieldLoanGrade + "=E":                  "A better loan grade (A to C) would significantly lower risk.",
	domain.FieldLoanGrade + "=F":                  "A better loan grade (A to C) would significantly lower risk.",
	domain.FieldLoanGrade + "=G":                  "A better loan grade (A to C) would significantly lower risk.",
	domain.FieldLoanIntent + "=EDUCATION":         "Education loans are generally viewed as investments in future earning potential.",
	domain.FieldLoanIntent + "=MEDICAL":           "Medical loans are essential; maintaining insurance coverage can reduce need.",
	domain.FieldLoanIntent + "=DEBTCONSOLIDATION": "Consolidating debt can be positive if it lowers overall payments.",
	domain.FieldLoanIntent + "=HOMEIMPROVEMENT":   "Home improvement loans can add value to owned property.",
	domain.FieldPreviousDefault + "=Y":            "Having a previous default significantly raises risk. Clearing obligations helps.",
	domain.FieldPreviousDefault + "=N":            "No previous default is a positive signal.",
}

// Label returns the display name of an encoded feature
func Label(f features.Feature) string {
	if l, ok := featureLabels[f.Name]; ok {
		return l
	}
	if f.Kind == features.KindCategorical {
		prefix, ok := fieldLabels[f.Field]
		if !ok {
			prefix = titleCase(f.Field)
		}
		category := f.Category
		if category == features.UnknownCategory {
			category = "Other"
		}
		return fmt.Sprintf("%s: %s", prefix, category)
	}
	return titleCase(f.Field)
}

// Suggestion returns the advice shown for an encoded feature
func Suggestion(f features.Feature) string {
	if s, ok := suggestions[f.Name]; ok {
		return s
	}
	if s, ok := suggestions[f.Field]; ok {
		return s
	}
	return fallbackSuggestion
}

func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// explain attributes the PD to the encoded features that push it up.
//
// A feature contributes imp_i * max(0, dir_i * x_i): numeric z-scores count when
// they sit on the risky side of the training mean, one-hot features only when active.
// Contributions are normalised to shares of the PD and reported in percentage points.
func explain(feats []features.Feature, importances, directions, x []float64, pd float64, opts Options) []Guidance {
	contributions := make([]float64, len(x))
	total := 0.0
	for i, v := range x {
		c := importances[i] * directions[i] * v
		if c > 0 {
			contributions[i] = c
			total += c
		}
	}
	if total <= 0 {
		return []Guidance{}
	}

	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return contributions[order[a]] > contributions[order[b]]
	})

	out := make([]Guidance, 0, opts.TopK)
	for _, i := range order {
		if len(out) == opts.TopK || contributions[i] == 0 {
			break
		}
		impact := contributions[i] / total * pd * 100
		if impact < opts.MinImpact {
			break
		}
		out = append(out, Guidance{
			Feature:    feats[i].Name,
			Label:      Label(feats[i]),
			Impact:     impact,
			Suggestion: Suggestion(feats[i]),
		})
	}
	return out
}
