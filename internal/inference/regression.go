package inference

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"grantlens/domain/analysis"
	"grantlens/domain/table"
)

// Regression fits an ordinary least squares model predicting the outcome
// from the spec's predictors. Rows missing any used variable are excluded
// listwise and the excluded count reported. Degenerate designs produce a
// validity flag, never a panic.
func Regression(spec analysis.Spec, rows []table.FeatureRow) analysis.StatisticalResult {
	result := analysis.NewResult(spec)

	variables := spec.InputVariables()
	cases, excluded := extractNumeric(rows, variables)
	result.ExcludedRows = excluded
	result.SampleSize = len(cases)

	n := len(cases)
	p := len(spec.Predictors)
	if n < p+2 {
		result.Validity = analysis.ValidityInsufficientRows
		return result
	}
	if n < LowNThreshold {
		result.Warn(analysis.WarningLowN)
	}
	if excluded > 0 && float64(excluded)/float64(n+excluded) > HighMissingShare {
		result.Warn(analysis.WarningHighMissing)
	}

	for i := range variables {
		if !hasVariance(column(cases, i)) {
			result.Validity = analysis.ValidityDegenerate
			result.Warn(analysis.WarningZeroVariance)
			return result
		}
	}

	y := column(cases, 0)
	var coefs []analysis.Coefficient
	var rSquared float64
	var ok bool
	if p == 1 {
		coefs, rSquared, ok = simpleOLS(spec.Predictors[0], column(cases, 1), y)
	} else {
		coefs, rSquared, ok = multipleOLS(spec.Predictors, cases, y)
	}
	if !ok {
		result.Validity = analysis.ValidityDegenerate
		return result
	}

	result.Coefficients = coefs
	result.EffectSize = analysis.FloatPtr(rSquared)
	result.EffectLabel = "r_squared"

	// Overall model F test
	dfModel := float64(p)
	dfResid := float64(n - p - 1)
	if rSquared < 1 {
		f := (rSquared / dfModel) / ((1 - rSquared) / dfResid)
		result.Statistic = analysis.FloatPtr(f)
		result.PValue = analysis.FloatPtr(distuv.F{D1: dfModel, D2: dfResid}.Survival(f))
	} else {
		// A perfect fit leaves the F statistic undefined
		result.Validity = analysis.ValidityDegenerate
	}
	return result
}

// simpleOLS fits y = alpha + beta*x and derives the classical standard
// errors from the residual sum of squares
func simpleOLS(predictor string, x, y []float64) ([]analysis.Coefficient, float64, bool) {
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(alpha) || math.IsNaN(beta) {
		return nil, 0, false
	}
	rSquared := stat.RSquared(x, y, nil, alpha, beta)

	n := float64(len(x))
	xMean := stat.Mean(x, nil)
	sxx := 0.0
	rss := 0.0
	for i := range x {
		dx := x[i] - xMean
		sxx += dx * dx
		resid := y[i] - alpha - beta*x[i]
		rss += resid * resid
	}
	if sxx == 0 || n <= 2 {
		return nil, 0, false
	}

	sigma2 := rss / (n - 2)
	seBeta := math.Sqrt(sigma2 / sxx)
	seAlpha := math.Sqrt(sigma2 * (1/n + xMean*xMean/sxx))

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: n - 2}
	return []analysis.Coefficient{
		coefficient("intercept", alpha, seAlpha, tDist),
		coefficient(predictor, beta, seBeta, tDist),
	}, rSquared, true
}

// multipleOLS fits the full design with an intercept column, solving the
// least squares problem by QR factorization and deriving coefficient
// covariance from (X'X)^-1
func multipleOLS(predictors []string, cases []numericCase, y []float64) ([]analysis.Coefficient, float64, bool) {
	n := len(cases)
	terms := len(predictors) + 1

	design := mat.NewDense(n, terms, nil)
	for i, c := range cases {
		design.Set(i, 0, 1)
		for j := range predictors {
			// values[0] is the outcome
			design.Set(i, j+1, c.values[j+1])
		}
	}
	yVec := mat.NewDense(n, 1, append([]float64(nil), y...))

	var qr mat.QR
	qr.Factorize(design)
	var beta mat.Dense
	if err := qr.SolveTo(&beta, false, yVec); err != nil {
		return nil, 0, false
	}

	// Residuals and fit quality
	var fitted mat.Dense
	fitted.Mul(design, &beta)
	rss := 0.0
	yMean := stat.Mean(y, nil)
	tss := 0.0
	for i := 0; i < n; i++ {
		resid := y[i] - fitted.At(i, 0)
		rss += resid * resid
		dy := y[i] - yMean
		tss += dy * dy
	}
	if tss == 0 {
		return nil, 0, false
	}
	rSquared := 1 - rss/tss

	// Coefficient covariance: sigma^2 (X'X)^-1
	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, 0, false
	}
	dfResid := float64(n - terms)
	if dfResid <= 0 {
		return nil, 0, false
	}
	sigma2 := rss / dfResid

	tDist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dfResid}
	names := append([]string{"intercept"}, predictors...)
	coefs := make([]analysis.Coefficient, terms)
	for j := 0; j < terms; j++ {
		se := math.Sqrt(sigma2 * inv.At(j, j))
		coefs[j] = coefficient(names[j], beta.At(j, 0), se, tDist)
	}
	return coefs, rSquared, true
}

// coefficient assembles one fitted term with its two-sided t-test p-value
func coefficient(name string, estimate, stdErr float64, tDist distuv.StudentsT) analysis.Coefficient {
	t := 0.0
	pValue := 1.0
	if stdErr > 0 {
		t = estimate / stdErr
		pValue = 2 * tDist.CDF(-math.Abs(t))
	}
	return analysis.Coefficient{
		Name:     name,
		Estimate: estimate,
		StdErr:   stdErr,
		TStat:    t,
		PValue:   pValue,
	}
}
