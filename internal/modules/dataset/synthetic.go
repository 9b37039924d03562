package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/aristath/creditrisk/internal/domain"
	"github.com/aristath/creditrisk/pkg/formulas"
)

// weighted picks values[i] with probability weights[i]/sum(weights)
type weighted struct {
	values  []string
	weights []float64
}

func (w weighted) draw(rng *rand.Rand) string {
	total := 0.0
	for _, v := range w.weights {
		total += v
	}
	u := rng.Float64() * total
	for i, v := range w.weights {
		if u < v {
			return w.values[i]
		}
		u -= v
	}
	return w.values[len(w.values)-1]
}

var (
	homeOwnershipMix = weighted{
		values:  []string{"RENT", "MORTGAGE", "OWN", "OTHER"},
		weights: []float64{0.50, 0.41, 0.08, 0.01},
	}
	gradeMix = weighted{
		values:  domain.LoanGradeValues,
		weights: []float64{0.33, 0.32, 0.20, 0.11, 0.03, 0.008, 0.002},
	}
	gradeBaseRate = map[string]float64{"A": 7.5, "B": 11, "C": 13.5, "D": 15.5, "E": 17, "F": 18.5, "G": 20}
	intentEffect  = map[string]float64{
		"EDUCATION":         -0.3,
		"VENTURE":           -0.3,
		"PERSONAL":          0,
		"HOMEIMPROVEMENT":   0.1,
		"MEDICAL":           0.3,
		"DEBTCONSOLIDATION": 0.3,
	}
)

// DefaultProbability is the generator's ground-truth default mechanism. Lower
// leverage, better grades, owning a home and a clean file all reduce risk.
func DefaultProbability(r domain.ApplicantRecord) float64 {
	grade := 0.0
	for i, g := range domain.LoanGradeValues {
		if g == r.LoanGrade {
			grade = float64(i)
		}
	}
	z := -2.6 +
		7.0*(r.LoanPercentIncome-0.17) +
		0.45*grade +
		intentEffect[r.LoanIntent]
	if r.HomeOwnership == "RENT" {
		z += 0.9
	}
	if r.PreviousDefault == "Y" {
		z += 0.25
	}
	if r.Income > 0 {
		z -= 0.4 * math.Log(r.Income/55000)
	}
	return formulas.Sigmoid(z)
}

// Generate draws n labeled applications from the reference distribution.
// The same seed always yields the same records.
func Generate(n int, seed uint64) []domain.LabeledRecord {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	records := make([]domain.LabeledRecord, n)
	for i := range records {
		r := drawApplicant(rng)
		records[i] = domain.LabeledRecord{
			Record:  r,
			Default: rng.Float64() < DefaultProbability(r),
		}
	}
	return records
}

func drawApplicant(rng *rand.Rand) domain.ApplicantRecord {
	age := math.Min(70, 21+math.Floor(math.Abs(rng.NormFloat64())*8))
	income := math.Round(math.Exp(10.9 + 0.5*rng.NormFloat64()))
	emp := math.Min(age-18, math.Floor(math.Abs(rng.NormFloat64())*5))

	grade := gradeMix.draw(rng)
	rate := math.Max(5, math.Round((gradeBaseRate[grade]+rng.NormFloat64())*100)/100)

	loan := math.Round(formulas.Clamp(math.Exp(9+0.6*rng.NormFloat64()), 500, 35000)/25) * 25
	lpi := math.Round(loan/income*100) / 100

	prevDefaultRate := 0.12
	if grade >= "D" {
		prevDefaultRate = 0.6
	}
	prevDefault := "N"
	if rng.Float64() < prevDefaultRate {
		prevDefault = "Y"
	}

	history := 2 + math.Floor((age-20)/2*rng.Float64())

	return domain.ApplicantRecord{
		Age:                 age,
		Income:              income,
		HomeOwnership:       homeOwnershipMix.draw(rng),
		EmploymentLength:    emp,
		LoanIntent:          domain.LoanIntentValues[rng.IntN(len(domain.LoanIntentValues))],
		LoanGrade:           grade,
		LoanAmount:          loan,
		InterestRate:        rate,
		LoanPercentIncome:   lpi,
		PreviousDefault:     prevDefault,
		CreditHistoryLength: history,
	}
}
