package scraper

import (
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/amirphl/term-insurance-analyzer/models"
)

// Values assumed when a listing omits a field
const (
	defaultAgeMin        = 18
	defaultAgeMax        = 65
	defaultTermMin       = 5
	defaultTermMax       = 40
	defaultSumAssuredMin = 25.0   // lakhs
	defaultSumAssuredMax = 2000.0 // lakhs
)

var (
	numberRe  = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	amountRe  = regexp.MustCompile(`(\d[\d,]*(?:\.\d+)?)\s*(crores?|cr|lakhs?|lacs?|lac|l|k|thousand)?\b`)
	monthlyRe = regexp.MustCompile(`(?i)(/\s*mo|month|\bp\.?m\b)`)
)

type column int

const (
	colUnknown column = iota
	colProvider
	colPlan
	colCSR
	colPremium
	colAge
	colTerm
	colSumAssured
	colFeatures
)

// classifyHeader maps a table header label to the field it holds
func classifyHeader(label string) column {
	h := strings.ToLower(strings.TrimSpace(label))
	switch {
	case h == "":
		return colUnknown
	case strings.Contains(h, "claim"), strings.Contains(h, "csr"), strings.Contains(h, "settlement"):
		return colCSR
	case strings.Contains(h, "premium"), strings.Contains(h, "price"):
		return colPremium
	case isMaturityAgeHeader(h):
		// "Coverage Till Age" is how long cover lasts, neither entry age nor sum assured
		return colUnknown
	case strings.Contains(h, "sum assured"), strings.Contains(h, "cover"):
		return colSumAssured
	case strings.Contains(h, "age"):
		return colAge
	case strings.Contains(h, "feature"), strings.Contains(h, "benefit"), strings.Contains(h, "highlight"):
		return colFeatures
	case strings.Contains(h, "insurer"), strings.Contains(h, "company"), strings.Contains(h, "provider"):
		return colProvider
	case strings.Contains(h, "plan"), strings.Contains(h, "product"):
		return colPlan
	case strings.Contains(h, "term"), strings.Contains(h, "tenure"):
		return colTerm
	}
	return colUnknown
}

// positionalLayout is used for tables whose headers name no known field
var positionalLayout = []column{colProvider, colPlan, colCSR, colPremium}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// parseNumber returns the first number in s, ignoring currency symbols and separators
func parseNumber(s string) (float64, bool) {
	m := numberRe.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseRange returns the first two numbers in s; a single number yields lo == hi
func parseRange(s string) (lo, hi float64, ok bool) {
	matches := numberRe.FindAllString(s, -1)
	var nums []float64
	for _, m := range matches {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m, ",", ""), 64); err == nil {
			nums = append(nums, v)
		}
		if len(nums) == 2 {
			break
		}
	}
	switch len(nums) {
	case 0:
		return 0, 0, false
	case 1:
		return nums[0], nums[0], true
	}
	if nums[0] > nums[1] {
		nums[0], nums[1] = nums[1], nums[0]
	}
	return nums[0], nums[1], true
}

func isMaturityAgeHeader(h string) bool {
	h = strings.ReplaceAll(h, "coverage", "cover")
	if !strings.Contains(h, "age") {
		return false
	}
	for _, marker := range []string{"till", "upto", "up to", "maturity", "cover"} {
		if strings.Contains(h, marker) {
			return true
		}
	}
	return false
}

// parseLakhs converts amounts such as "50 L - 20 Cr" or "₹1,00,00,000" into lakhs.
// Durations such as "85 years" are not amounts.
func parseLakhs(s string) (lo, hi float64, ok bool) {
	lower := strings.ToLower(s)
	if strings.Contains(lower, "year") || strings.Contains(lower, "yrs") {
		return 0, 0, false
	}
	matches := amountRe.FindAllStringSubmatch(lower, -1)
	var vals []float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		switch unit := m[2]; {
		case strings.HasPrefix(unit, "cr"):
			v *= 100
		case unit == "k" || unit == "thousand":
			v /= 100
		case unit == "":
			// A bare figure this large is in rupees
			if v >= 100000 {
				v /= 100000
			}
		}
		vals = append(vals, v)
		if len(vals) == 2 {
			break
		}
	}
	switch len(vals) {
	case 0:
		return 0, 0, false
	case 1:
		return vals[0], vals[0], true
	}
	if vals[0] > vals[1] {
		vals[0], vals[1] = vals[1], vals[0]
	}
	return vals[0], vals[1], true
}

// parsePremium returns an annual premium in rupees; monthly quotes are annualized
func parsePremium(s string) (float64, bool) {
	v, ok := parseNumber(s)
	if !ok {
		return 0, false
	}
	if monthlyRe.MatchString(s) {
		v *= 12
	}
	return v, true
}

func splitFeatures(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ';' || r == '•' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = cleanText(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// rowBuilder accumulates parsed fields for one listing row or card
type rowBuilder struct {
	plan   models.InsurancePlan
	hasCSR bool
}

func (b *rowBuilder) set(col column, text, header string) {
	text = cleanText(text)
	if text == "" {
		return
	}
	h := strings.ToLower(header)
	switch col {
	case colProvider:
		b.plan.Provider = text
	case colPlan:
		b.plan.PlanName = text
	case colCSR:
		if v, ok := parseNumber(text); ok {
			b.plan.ClaimSettlementRatio = v
			b.hasCSR = true
		}
	case colPremium:
		if v, ok := parsePremium(text); ok {
			b.plan.PremiumAnnual = v
		}
	case colSumAssured:
		if lo, hi, ok := parseLakhs(text); ok {
			b.plan.SumAssuredMin, b.plan.SumAssuredMax = lo, hi
			if strings.Contains(h, "max") {
				b.plan.SumAssuredMin = 0
			}
		}
	case colAge:
		if lo, hi, ok := parseRange(text); ok {
			switch {
			case lo != hi:
				b.plan.AgeMin, b.plan.AgeMax = int(lo), int(hi)
			case strings.Contains(h, "max"):
				b.plan.AgeMax = int(hi)
			default:
				b.plan.AgeMin = int(lo)
			}
		}
	case colTerm:
		if lo, hi, ok := parseRange(text); ok {
			if lo != hi {
				b.plan.PolicyTermMin, b.plan.PolicyTermMax = int(lo), int(hi)
			} else if strings.Contains(h, "min") {
				b.plan.PolicyTermMin = int(lo)
			} else {
				b.plan.PolicyTermMax = int(hi)
			}
		}
	case colFeatures:
		b.plan.KeyFeatures = append(b.plan.KeyFeatures, splitFeatures(text)...)
	}
}

// build completes the row with defaults; ok is false when the row is unusable
func (b *rowBuilder) build(source, sourceURL string) (models.InsurancePlan, bool) {
	p := b.plan
	p.Source = source
	p.SourceURL = sourceURL
	p.Normalize()

	if p.Provider == "" || !b.hasCSR {
		return p, false
	}
	if p.PlanName == "" {
		p.PlanName = p.Provider + " Term Plan"
	}
	completePlan(&p)

	if err := p.Validate(); err != nil {
		return p, false
	}
	return p, true
}

// completePlan fills omitted ranges with market defaults and repairs inverted ones
func completePlan(p *models.InsurancePlan) {
	if p.AgeMin <= 0 {
		p.AgeMin = defaultAgeMin
	}
	if p.AgeMax <= 0 {
		p.AgeMax = defaultAgeMax
	}
	if p.AgeMin > p.AgeMax {
		p.AgeMin, p.AgeMax = p.AgeMax, p.AgeMin
	}
	if p.PolicyTermMin <= 0 {
		p.PolicyTermMin = defaultTermMin
	}
	if p.PolicyTermMax <= 0 {
		p.PolicyTermMax = defaultTermMax
	}
	if p.PolicyTermMin > p.PolicyTermMax {
		p.PolicyTermMin, p.PolicyTermMax = p.PolicyTermMax, p.PolicyTermMin
	}
	if p.SumAssuredMin <= 0 {
		p.SumAssuredMin = defaultSumAssuredMin
	}
	if p.SumAssuredMax <= 0 {
		p.SumAssuredMax = defaultSumAssuredMax
	}
	if p.SumAssuredMin > p.SumAssuredMax {
		p.SumAssuredMin, p.SumAssuredMax = p.SumAssuredMax, p.SumAssuredMin
	}
	if p.KeyFeatures == nil {
		p.KeyFeatures = []string{}
	}
}

// dedupePlans keeps the first record per (provider, plan_name)
func dedupePlans(plans []models.InsurancePlan) []models.InsurancePlan {
	seen := make(map[string]struct{}, len(plans))
	out := make([]models.InsurancePlan, 0, len(plans))
	for _, p := range plans {
		key := p.NaturalKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

// ParsePlanTables extracts plans from every table in an HTML document.
// Cells are matched by header label; tables without recognizable headers
// are read positionally as provider, plan, CSR, premium.
func ParsePlanTables(r io.Reader, source, sourceURL string) ([]models.InsurancePlan, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return parsePlanTablesDoc(doc, source, sourceURL), nil
}

func parsePlanTablesDoc(doc *goquery.Document, source, sourceURL string) []models.InsurancePlan {
	var plans []models.InsurancePlan

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		headerCells := table.Find("thead th")
		rows := table.Find("tbody tr")
		if headerCells.Length() == 0 {
			first := table.Find("tr").First()
			if first.Find("th").Length() > 0 {
				headerCells = first.Find("th")
				rows = first.NextAll()
			} else {
				rows = table.Find("tr")
			}
		}
		if rows.Length() == 0 {
			rows = table.Find("tr").Slice(1, goquery.ToEnd)
		}

		labels := make([]string, 0, headerCells.Length())
		layout := make([]column, 0, headerCells.Length())
		recognized := 0
		headerCells.Each(func(_ int, th *goquery.Selection) {
			label := cleanText(th.Text())
			col := classifyHeader(label)
			if col != colUnknown {
				recognized++
			}
			labels = append(labels, label)
			layout = append(layout, col)
		})
		if recognized == 0 {
			layout = positionalLayout
			labels = nil
		}

		rows.Each(func(_ int, tr *goquery.Selection) {
			cells := tr.Find("td")
			if cells.Length() == 0 {
				return
			}
			var b rowBuilder
			cells.Each(func(i int, td *goquery.Selection) {
				if i >= len(layout) {
					return
				}
				label := ""
				if i < len(labels) {
					label = labels[i]
				}
				b.set(layout[i], td.Text(), label)
			})
			if p, ok := b.build(source, sourceURL); ok {
				plans = append(plans, p)
			}
		})
	})

	return dedupePlans(plans)
}

// CardSelectors locate plan fields inside repeated listing cards
type CardSelectors struct {
	Card       string
	Provider   string
	PlanName   string
	CSR        string
	Premium    string
	SumAssured string
	Age        string
	Term       string
	Features   string
}

// ParsePlanCards extracts plans from card-style listings rendered by a browser
func ParsePlanCards(r io.Reader, sel CardSelectors, source, sourceURL string) ([]models.InsurancePlan, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var plans []models.InsurancePlan
	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		var b rowBuilder
		field := func(selector string, col column, label string) {
			if selector == "" {
				return
			}
			b.set(col, card.Find(selector).First().Text(), label)
		}
		field(sel.Provider, colProvider, "")
		field(sel.PlanName, colPlan, "")
		field(sel.CSR, colCSR, "")
		field(sel.Premium, colPremium, "")
		field(sel.SumAssured, colSumAssured, "")
		field(sel.Age, colAge, "")
		field(sel.Term, colTerm, "")
		if sel.Features != "" {
			card.Find(sel.Features).Each(func(_ int, f *goquery.Selection) {
				b.set(colFeatures, f.Text(), "")
			})
		}
		if p, ok := b.build(source, sourceURL); ok {
			plans = append(plans, p)
		}
	})

	// Pages that fall back to a comparison table still parse
	if len(plans) == 0 {
		plans = parsePlanTablesDoc(doc, source, sourceURL)
	}
	return dedupePlans(plans), nil
}
