package scraper

import (
	"strings"
	"testing"

	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const labelledTable = `<html><body>
<table>
  <thead><tr>
    <th>Insurance Company</th><th>Plan Name</th><th>Claim Settlement Ratio</th><th>Annual Premium</th>
    <th>Entry Age</th><th>Policy Term</th><th>Sum Assured</th><th>Key Features</th>
  </tr></thead>
  <tbody>
    <tr><td>HDFC Life</td><td>Click 2 Protect  Super</td><td>99.50%</td><td>₹8,100</td>
        <td>18 - 65 years</td><td>5 to 40 years</td><td>50 L - 20 Cr</td><td>Life stage benefit | Waiver of premium</td></tr>
    <tr><td>Acme Life</td><td></td><td>96.2%</td><td>₹750/month</td><td></td><td></td><td></td><td></td></tr>
    <tr><td>Unknown Life</td><td>Plan X</td><td>N/A</td><td>₹9,000</td><td></td><td></td><td></td><td></td></tr>
    <tr><td>Broken Life</td><td>Plan Y</td><td>120%</td><td>₹9,000</td><td></td><td></td><td></td><td></td></tr>
    <tr><td>hdfc life</td><td>click 2 protect super</td><td>98%</td><td>₹1</td><td></td><td></td><td></td><td></td></tr>
  </tbody>
</table>
</body></html>`

func TestParsePlanTables_LabelledHeaders(t *testing.T) {
	plans, err := ParsePlanTables(strings.NewReader(labelledTable), models.PlanSourceBeshak, "https://example.test/csr")
	require.NoError(t, err)
	require.Len(t, plans, 2)

	hdfc := plans[0]
	assert.Equal(t, "HDFC Life", hdfc.Provider)
	assert.Equal(t, "Click 2 Protect Super", hdfc.PlanName)
	assert.Equal(t, models.PlanSourceBeshak, hdfc.Source)
	assert.Equal(t, "https://example.test/csr", hdfc.SourceURL)
	assert.Equal(t, 99.5, hdfc.ClaimSettlementRatio)
	assert.Equal(t, 8100.0, hdfc.PremiumAnnual)
	assert.Equal(t, 18, hdfc.AgeMin)
	assert.Equal(t, 65, hdfc.AgeMax)
	assert.Equal(t, 5, hdfc.PolicyTermMin)
	assert.Equal(t, 40, hdfc.PolicyTermMax)
	assert.Equal(t, 50.0, hdfc.SumAssuredMin)
	assert.Equal(t, 2000.0, hdfc.SumAssuredMax)
	assert.Equal(t, []string{"Life stage benefit", "Waiver of premium"}, []string(hdfc.KeyFeatures))

	acme := plans[1]
	assert.Equal(t, "Acme Life Term Plan", acme.PlanName)
	assert.Equal(t, 9000.0, acme.PremiumAnnual)
	assert.Equal(t, defaultAgeMin, acme.AgeMin)
	assert.Equal(t, defaultAgeMax, acme.AgeMax)
	assert.Equal(t, defaultTermMin, acme.PolicyTermMin)
	assert.Equal(t, defaultTermMax, acme.PolicyTermMax)
	assert.Equal(t, defaultSumAssuredMin, acme.SumAssuredMin)
	assert.Equal(t, defaultSumAssuredMax, acme.SumAssuredMax)
	assert.NotNil(t, acme.KeyFeatures)
	assert.NoError(t, acme.Validate())
}

func TestParsePlanTables_PositionalRows(t *testing.T) {
	html := `<table>
		<tr><td>Max Life Insurance</td><td>Smart Secure Plus</td><td>99.51</td><td>8,500</td></tr>
		<tr><td>SBI Life</td><td>eShield Next</td><td>97.05</td><td>9,800</td></tr>
	</table>`

	plans, err := ParsePlanTables(strings.NewReader(html), models.PlanSourceBeshak, "")
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Max Life Insurance", plans[0].Provider)
	assert.Equal(t, "Smart Secure Plus", plans[0].PlanName)
	assert.Equal(t, 99.51, plans[0].ClaimSettlementRatio)
	assert.Equal(t, 9800.0, plans[1].PremiumAnnual)
}

func TestParsePlanTables_CoverageTillAgeIsNotSumAssured(t *testing.T) {
	html := `<table>
		<tr><th>Insurer</th><th>Plan</th><th>CSR</th><th>Sum Assured</th><th>Coverage Till Age</th><th>Entry Age</th></tr>
		<tr><td>Tata AIA</td><td>Sampoorna Raksha Supreme</td><td>99.01%</td><td>1 Cr - 5 Cr</td><td>85 years</td><td>18 - 60 years</td></tr>
	</table>`

	plans, err := ParsePlanTables(strings.NewReader(html), models.PlanSourceBeshak, "")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, 100.0, plans[0].SumAssuredMin)
	assert.Equal(t, 500.0, plans[0].SumAssuredMax)
	assert.Equal(t, 18, plans[0].AgeMin)
	assert.Equal(t, 60, plans[0].AgeMax)
}

func TestParsePlanTables_NoTables(t *testing.T) {
	plans, err := ParsePlanTables(strings.NewReader(`<html><body><p>Maintenance</p></body></html>`), models.PlanSourceBeshak, "")
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestParsePlanCards(t *testing.T) {
	html := `<div class="listing">
	  <div class="plan-card">
	    <span class="insurer-name">Tata AIA Life</span>
	    <h4 class="plan-name">Sampoorna Raksha Supreme</h4>
	    <span class="csr-value">99.01%</span>
	    <span class="premium-amount">₹725/month</span>
	    <span class="life-cover">Cover upto ₹2 Cr</span>
	    <span class="entry-age">18 - 60 years</span>
	    <ul class="plan-features"><li>Whole life cover</li><li> Terminal illness </li></ul>
	  </div>
	  <div class="plan-card">
	    <span class="insurer-name">Mystery Life</span>
	    <h4 class="plan-name">Secret Plan</h4>
	  </div>
	</div>`

	plans, err := ParsePlanCards(strings.NewReader(html), PolicybazaarSelectors, models.PlanSourcePolicybazaar, "")
	require.NoError(t, err)
	require.Len(t, plans, 1)

	p := plans[0]
	assert.Equal(t, "Tata AIA Life", p.Provider)
	assert.Equal(t, 99.01, p.ClaimSettlementRatio)
	assert.Equal(t, 8700.0, p.PremiumAnnual)
	assert.Equal(t, 200.0, p.SumAssuredMin)
	assert.Equal(t, 200.0, p.SumAssuredMax)
	assert.Equal(t, 18, p.AgeMin)
	assert.Equal(t, 60, p.AgeMax)
	assert.Equal(t, defaultTermMax, p.PolicyTermMax)
	assert.Equal(t, []string{"Whole life cover", "Terminal illness"}, []string(p.KeyFeatures))
}

func TestParsePlanCards_FallsBackToTables(t *testing.T) {
	html := `<table><tr><td>LIC</td><td>Tech Term</td><td>98.52</td><td>10,500</td></tr></table>`

	plans, err := ParsePlanCards(strings.NewReader(html), DittoSelectors, models.PlanSourceDitto, "")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "LIC", plans[0].Provider)
	assert.Equal(t, models.PlanSourceDitto, plans[0].Source)
}

func TestParseHelpers(t *testing.T) {
	t.Run("Lakhs", func(t *testing.T) {
		tests := []struct {
			in     string
			lo, hi float64
		}{
			{"50 L - 20 Cr", 50, 2000},
			{"₹1,00,00,000", 100, 100},
			{"1 Crore", 100, 100},
			{"25 lakhs to 10 crores", 25, 1000},
			{"500k", 5, 5},
		}
		for _, tt := range tests {
			lo, hi, ok := parseLakhs(tt.in)
			require.True(t, ok, tt.in)
			assert.Equal(t, tt.lo, lo, tt.in)
			assert.Equal(t, tt.hi, hi, tt.in)
		}

		for _, in := range []string{"not disclosed", "85 years", "99 yrs"} {
			_, _, ok := parseLakhs(in)
			assert.False(t, ok, in)
		}
	})

	t.Run("Premium", func(t *testing.T) {
		tests := []struct {
			in   string
			want float64
		}{
			{"₹12,000 p.a.", 12000},
			{"Rs 1,000 pm", 12000},
			{"₹850/mo", 10200},
			{"₹9,450 per year", 9450},
			{"₹700 monthly", 8400},
		}
		for _, tt := range tests {
			got, ok := parsePremium(tt.in)
			require.True(t, ok, tt.in)
			assert.Equal(t, tt.want, got, tt.in)
		}
	})

	t.Run("Range", func(t *testing.T) {
		lo, hi, ok := parseRange("65 - 18")
		require.True(t, ok)
		assert.Equal(t, 18.0, lo)
		assert.Equal(t, 65.0, hi)

		lo, hi, ok = parseRange("up to 40 years")
		require.True(t, ok)
		assert.Equal(t, 40.0, lo)
		assert.Equal(t, 40.0, hi)
	})

	t.Run("ClassifyHeader", func(t *testing.T) {
		assert.Equal(t, colCSR, classifyHeader("Claim Settlement Ratio (FY24)"))
		assert.Equal(t, colProvider, classifyHeader("Insurer"))
		assert.Equal(t, colPlan, classifyHeader("Plan"))
		assert.Equal(t, colTerm, classifyHeader("Policy Term"))
		assert.Equal(t, colSumAssured, classifyHeader("Life Cover"))
		assert.Equal(t, colSumAssured, classifyHeader("Coverage Amount"))
		assert.Equal(t, colAge, classifyHeader("Entry Age"))
		assert.Equal(t, colAge, classifyHeader("Max Age"))
		assert.Equal(t, colUnknown, classifyHeader("Coverage Till Age"))
		assert.Equal(t, colUnknown, classifyHeader("Cover upto Age"))
		assert.Equal(t, colUnknown, classifyHeader("Maximum Maturity Age"))
		assert.Equal(t, colUnknown, classifyHeader("Rating"))
	})
}
