package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coastalrc/planetfetch/internal/lib"
	"github.com/coastalrc/planetfetch/internal/models"
	"github.com/coastalrc/planetfetch/internal/services"
)

// fakeProvider is an in-process stand-in for the data and orders APIs.
// Scenes are keyed by site name; order behavior can be forced per site.
type fakeProvider struct {
	mu          sync.Mutex
	scenes      map[string][]string // site is inferred from the order name
	failOrders  map[string]bool     // orders for these sites reach "failed"
	rejectAll   bool                // reject every submission outright
	authFail    bool                // reject every search as unauthorized
	searches    int
	orderPolls  int
	submissions int
	server      *httptest.Server
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		scenes:     make(map[string][]string),
		failOrders: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/quick-search", p.handleSearch)
	mux.HandleFunc("/orders", p.handleSubmit)
	mux.HandleFunc("/orders/", p.handleStatus)
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("imagery bytes"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) handleSearch(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.searches++

	if p.authFail {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// Every known scene matches; eligibility filtering is the client's job
	type feature struct {
		ID          string   `json:"id"`
		Permissions []string `json:"_permissions"`
	}
	var features []feature
	for _, ids := range p.scenes {
		for _, id := range ids {
			features = append(features, feature{
				ID: id,
				Permissions: []string{
					"assets.ortho_analytic_4b_sr:download",
					"assets.ortho_udm2:download",
				},
			})
		}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"features": features})
}

func (p *fakeProvider) handleSubmit(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submissions++

	if p.rejectAll {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"quota exceeded"}`))
		return
	}

	var req models.OrderRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"id": req.Name})
}

func (p *fakeProvider) handleStatus(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderPolls++

	site := strings.TrimPrefix(r.URL.Path, "/orders/")
	if p.failOrders[site] {
		_ = json.NewEncoder(w).Encode(map[string]any{"state": "failed"})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]any{
		"state": "success",
		"_links": map[string]any{
			"results": []models.OrderResult{{
				Location: p.server.URL + "/files/" + site + "_scene.tif",
				Name:     "orders/" + site + "/" + site + "_scene.tif",
			}},
		},
	})
}

func testConfig(p *fakeProvider, dataDir string) *models.ProjectConfig {
	config := models.DefaultConfig()
	config.API.DataURL = p.server.URL
	config.API.QuickSearchURL = p.server.URL + "/quick-search"
	config.API.OrdersURL = p.server.URL + "/orders"
	config.Poll.IntervalSeconds = 0
	config.Retry.MaxAttempts = 2
	config.Retry.DelaySeconds = 0
	config.Fetch.StaggerSeconds = 0
	config.DataDir = dataDir
	return &config
}

func testRunner(config *models.ProjectConfig, p *fakeProvider) *Runner {
	logger := lib.NewLogger(lib.LogLevelError)
	creds := &services.Credentials{APIKey: "k"}
	httpClient := services.NewHTTPClient(5*time.Second,
		models.RetryConfig{MaxAttempts: 1, DelaySeconds: 0}, logger)

	catalog := services.NewCatalogClient(config.API, config.Search, creds, httpClient, logger, config.SiteImageDir)
	orders := services.NewOrdersClient(config.API.OrdersURL, creds, httpClient, logger)
	poller := services.NewPoller(config.Poll, creds, httpClient, logger)
	downloader := services.NewDownloader(config.Download, httpClient, logger)

	return NewRunner(config, catalog, orders, poller, downloader, logger, false)
}

func testQuery(site string) models.SiteQuery {
	return models.SiteQuery{
		Site:         site,
		Polygon:      models.Ring{{-157.84, 21.27}, {-157.83, 21.27}, {-157.83, 21.28}, {-157.84, 21.28}},
		StartDate:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		CloudCeiling: 0.1,
	}
}

// TestRunSite validates the full search-order-poll-download flow against
// the fake provider.
func TestRunSite(t *testing.T) {
	t.Run("happy path downloads the ordered scene", func(t *testing.T) {
		p := newFakeProvider(t)
		p.scenes["waikiki"] = []string{"20230105_000000_2401"}

		config := testConfig(p, t.TempDir())
		report := testRunner(config, p).RunSite(testQuery("waikiki"))

		require.NoError(t, report.Err)
		assert.False(t, report.Skipped)
		assert.Equal(t, 1, report.Orders)
		require.Len(t, report.Files, 1)
		for _, path := range report.Files {
			assert.FileExists(t, path)
		}
		assert.NotEmpty(t, report.RunID)
	})

	t.Run("no matching scenes skips the site", func(t *testing.T) {
		p := newFakeProvider(t)

		config := testConfig(p, t.TempDir())
		report := testRunner(config, p).RunSite(testQuery("empty"))

		require.NoError(t, report.Err)
		assert.True(t, report.Skipped)
		assert.Empty(t, report.Files)
	})

	t.Run("failed order consumes the retry budget and is reported", func(t *testing.T) {
		p := newFakeProvider(t)
		p.scenes["badsite"] = []string{"20230105_000000_2401"}
		p.failOrders["badsite"] = true

		config := testConfig(p, t.TempDir())
		report := testRunner(config, p).RunSite(testQuery("badsite"))

		require.Error(t, report.Err)
		assert.False(t, lib.IsFatal(report.Err))
		// One status poll per retry attempt
		assert.Equal(t, config.Retry.MaxAttempts, p.orderPolls)
	})

	t.Run("invalid query fails fast", func(t *testing.T) {
		p := newFakeProvider(t)

		q := testQuery("waikiki")
		q.Polygon = models.Ring{{0, 0}, {1, 1}}

		config := testConfig(p, t.TempDir())
		report := testRunner(config, p).RunSite(q)

		require.Error(t, report.Err)
		assert.Equal(t, 0, p.submissions)
	})
}

// TestRunSites validates that per-site failures never abort the batch
func TestRunSites(t *testing.T) {
	t.Run("one failing site leaves the others untouched", func(t *testing.T) {
		p := newFakeProvider(t)
		p.scenes["goodsite"] = []string{"20230105_000000_2401"}
		p.failOrders["badsite"] = true

		config := testConfig(p, t.TempDir())
		runner := testRunner(config, p)

		reports := runner.RunSites([]models.SiteQuery{
			testQuery("badsite"),
			testQuery("goodsite"),
		})

		require.Len(t, reports, 2)
		// The fake provider returns every scene for every search, so both
		// sites order; only badsite's order fails
		require.Error(t, reports[0].Err)
		require.NoError(t, reports[1].Err)
		assert.NotEmpty(t, reports[1].Files)
	})

	t.Run("concurrent mode produces one report per site", func(t *testing.T) {
		p := newFakeProvider(t)
		p.scenes["a"] = []string{"20230105_000000_2401"}

		config := testConfig(p, t.TempDir())
		config.Fetch.Concurrent = true
		config.Fetch.MaxConcurrentSites = 2

		reports := testRunner(config, p).RunSites([]models.SiteQuery{
			testQuery("a"), testQuery("b"), testQuery("c"),
		})

		require.Len(t, reports, 3)
		for i, site := range []string{"a", "b", "c"} {
			assert.Equal(t, site, reports[i].Site, fmt.Sprintf("report %d", i))
			assert.NotEmpty(t, reports[i].RunID)
		}
	})

	t.Run("credential rejection stops the remaining concurrent sites", func(t *testing.T) {
		p := newFakeProvider(t)
		p.authFail = true

		config := testConfig(p, t.TempDir())
		config.Fetch.Concurrent = true
		config.Fetch.MaxConcurrentSites = 1

		reports := testRunner(config, p).RunSites([]models.SiteQuery{
			testQuery("a"), testQuery("b"), testQuery("c"),
		})

		require.Len(t, reports, 3)
		require.True(t, lib.IsFatal(reports[0].Err))
		for _, report := range reports[1:] {
			assert.True(t, report.Skipped, report.Site)
			assert.NoError(t, report.Err)
		}
		assert.Equal(t, 1, p.searches, "no further site may query with a rejected key")
	})

	t.Run("rejected submissions degrade then report the error", func(t *testing.T) {
		p := newFakeProvider(t)
		p.scenes["waikiki"] = []string{"20230105_000000_2401"}
		p.rejectAll = true

		config := testConfig(p, t.TempDir())
		reports := testRunner(config, p).RunSites([]models.SiteQuery{testQuery("waikiki")})

		require.Len(t, reports, 1)
		require.Error(t, reports[0].Err)
		var subErr *lib.SubmissionError
		assert.ErrorAs(t, reports[0].Err, &subErr)
	})
}
