package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amirphl/term-insurance-analyzer/config"
	"github.com/amirphl/term-insurance-analyzer/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const beshakPage = `<html><body><table>
<thead><tr><th>Insurer</th><th>Plan</th><th>CSR</th><th>Premium</th></tr></thead>
<tbody>
<tr><td>HDFC Life</td><td>Click 2 Protect Super</td><td>99.50%</td><td>₹8,100</td></tr>
<tr><td>ICICI Prudential Life</td><td>iProtect Smart</td><td>98.58%</td><td>₹8,900</td></tr>
</tbody></table></body></html>`

func TestHTTPAdapter_Fetch(t *testing.T) {
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(beshakPage))
	}))
	defer srv.Close()

	a := NewBeshakAdapter(srv.URL, "analyzer-test", 5*time.Second, 1, nil)
	assert.Equal(t, models.PlanSourceBeshak, a.Source())

	plans, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "HDFC Life", plans[0].Provider)
	assert.Equal(t, srv.URL, plans[0].SourceURL)
	assert.Equal(t, "analyzer-test", gotUA.Load())
}

func TestHTTPAdapter_RetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(beshakPage))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(models.PlanSourceBeshak, srv.URL, "", srv.Client(), 3, nil)
	plans, err := a.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	assert.Equal(t, int32(3), hits.Load())
}

func TestHTTPAdapter_PermanentFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(models.PlanSourceBeshak, srv.URL, "", srv.Client(), 3, nil)
	_, err := a.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestHTTPAdapter_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body>No data</body></html>`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(models.PlanSourceBeshak, srv.URL, "", srv.Client(), 1, nil)
	_, err := a.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrNoPlansParsed)
}

type fakeRenderer struct {
	html string
	err  error

	gotURL      string
	gotSelector string
}

func (r *fakeRenderer) Render(_ context.Context, url, waitSelector string) (string, error) {
	r.gotURL = url
	r.gotSelector = waitSelector
	return r.html, r.err
}

func TestScriptAdapter_Fetch(t *testing.T) {
	renderer := &fakeRenderer{html: `<div class="plan-card">
		<span class="insurer-name">Bajaj Allianz Life</span><span class="plan-name">eTouch</span>
		<span class="claim-settled">99.02%</span><span class="plan-price">₹7,900</span>
	</div>`}

	a := NewPolicybazaarAdapter("https://listing.test/term", renderer, nil)
	plans, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, models.PlanSourcePolicybazaar, plans[0].Source)
	assert.Equal(t, 7900.0, plans[0].PremiumAnnual)
	assert.Equal(t, "https://listing.test/term", renderer.gotURL)
	assert.Equal(t, PolicybazaarSelectors.Card, renderer.gotSelector)
}

func TestScriptAdapter_Failures(t *testing.T) {
	t.Run("NoRenderer", func(t *testing.T) {
		_, err := NewDittoAdapter("https://listing.test", nil, nil).Fetch(context.Background())
		assert.ErrorIs(t, err, ErrBrowserUnavailable)
	})

	t.Run("RenderError", func(t *testing.T) {
		boom := errors.New("navigation timeout")
		_, err := NewDittoAdapter("https://listing.test", &fakeRenderer{err: boom}, nil).Fetch(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("NothingParsed", func(t *testing.T) {
		_, err := NewDittoAdapter("https://listing.test", &fakeRenderer{html: "<p>empty</p>"}, nil).Fetch(context.Background())
		assert.ErrorIs(t, err, ErrNoPlansParsed)
	})
}

func TestFallbackAdapter(t *testing.T) {
	a := NewFallbackAdapter()
	plans, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, FallbackPlanCount())
	assert.GreaterOrEqual(t, len(plans), 10)

	seen := map[string]bool{}
	for i := range plans {
		p := plans[i]
		assert.Equal(t, models.PlanSourceFallback, p.Source)
		assert.NoError(t, p.Validate(), p.NaturalKey())
		assert.False(t, seen[p.NaturalKey()], "duplicate %s", p.NaturalKey())
		seen[p.NaturalKey()] = true
	}

	// callers may mutate the returned records
	plans[0].KeyFeatures[0] = "changed"
	again, _ := a.Fetch(context.Background())
	assert.NotEqual(t, "changed", again[0].KeyFeatures[0])
}

type panicAdapter struct{}

func (panicAdapter) Source() string { return "panicky" }
func (panicAdapter) Fetch(context.Context) ([]models.InsurancePlan, error) {
	panic("selector exploded")
}

func TestSafeFetch(t *testing.T) {
	_, err := safeFetch(context.Background(), panicAdapter{})
	require.Error(t, err)
	assert.True(t, IsSourceUnavailable(err))

	var se *SourceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "panicky", se.Source)

	_, err = safeFetch(context.Background(), NewDittoAdapter("", nil, nil))
	assert.ErrorIs(t, err, ErrBrowserUnavailable)
	assert.True(t, IsSourceUnavailable(err))
}

func TestNewLiveAdapters(t *testing.T) {
	adapters := NewLiveAdapters(config.ScraperConfig{BrowserEnabled: false, HTTPRetries: 1}, nil)
	require.Len(t, adapters, 3)
	assert.Equal(t, models.PlanSourceBeshak, adapters[0].Source())
	assert.Equal(t, models.PlanSourcePolicybazaar, adapters[1].Source())
	assert.Equal(t, models.PlanSourceDitto, adapters[2].Source())

	_, err := adapters[1].Fetch(context.Background())
	assert.ErrorIs(t, err, ErrBrowserUnavailable)
}
