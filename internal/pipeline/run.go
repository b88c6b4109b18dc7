package pipeline

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coastalrc/planetfetch/internal/lib"
	"github.com/coastalrc/planetfetch/internal/models"
	"github.com/coastalrc/planetfetch/internal/services"
)

// Radiometric scale factor applied by the TOAR processing tool
const toarScaleFactor = 10000

// Runner drives the full retrieval workflow for one or more sites:
// search, order, poll, download. Within one site the pipeline is strictly
// sequential; across sites it may run one worker per site.
type Runner struct {
	config       *models.ProjectConfig
	catalog      *services.CatalogClient
	orders       *services.OrdersClient
	poller       *services.Poller
	downloader   *services.Downloader
	logger       *lib.Logger
	showProgress bool
}

// NewRunner wires the workflow components together
func NewRunner(config *models.ProjectConfig, catalog *services.CatalogClient, orders *services.OrdersClient, poller *services.Poller, downloader *services.Downloader, logger *lib.Logger, showProgress bool) *Runner {
	return &Runner{
		config:       config,
		catalog:      catalog,
		orders:       orders,
		poller:       poller,
		downloader:   downloader,
		logger:       logger,
		showProgress: showProgress,
	}
}

// SiteReport summarizes the outcome of one site's retrieval run. A site
// with no matching scenes is Skipped, not failed; a site whose retries
// were exhausted carries the final error string instead of aborting the
// batch.
type SiteReport struct {
	Site     string
	RunID    string
	Orders   int
	Files    map[string]string // logical result name -> local path
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Failed reports whether the site ended in an error
func (r SiteReport) Failed() bool {
	return r.Err != nil
}

// RunSites executes the retrieval workflow for every site query and
// returns one report per site, in input order. Per-site failures never
// abort the batch; an authentication failure does, since no further site
// can succeed without valid credentials.
func (r *Runner) RunSites(queries []models.SiteQuery) []SiteReport {
	reports := make([]SiteReport, len(queries))

	if !r.config.Fetch.Concurrent || len(queries) <= 1 {
		for i, q := range queries {
			reports[i] = r.RunSite(q)
			if lib.IsFatal(reports[i].Err) {
				r.logger.Error("Aborting remaining sites: credentials rejected", "site", q.Site)
				for j := i + 1; j < len(queries); j++ {
					reports[j] = SiteReport{Site: queries[j].Site, Skipped: true}
				}
				break
			}
		}
		return reports
	}

	var g errgroup.Group
	if r.config.Fetch.MaxConcurrentSites > 0 {
		g.SetLimit(r.config.Fetch.MaxConcurrentSites)
	}

	// Once one worker sees rejected credentials, the rest would only repeat
	// the rejection
	var fatal atomic.Bool

	stagger := time.Duration(r.config.Fetch.StaggerSeconds) * time.Second
	for i, q := range queries {
		if i > 0 && !fatal.Load() {
			// Stagger submissions so the provider does not rate-limit the
			// burst of simultaneous orders
			time.Sleep(stagger)
		}
		i, q := i, q
		g.Go(func() error {
			if fatal.Load() {
				reports[i] = SiteReport{Site: q.Site, Skipped: true}
				return nil
			}
			reports[i] = r.RunSite(q)
			if lib.IsFatal(reports[i].Err) {
				r.logger.Error("Aborting remaining sites: credentials rejected", "site", q.Site)
				fatal.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

// RunSite executes search, order, poll, and download for a single site.
// Long date ranges are split into windows and each window is ordered
// separately.
func (r *Runner) RunSite(q models.SiteQuery) SiteReport {
	start := time.Now()
	report := SiteReport{
		Site:  q.Site,
		RunID: uuid.New().String(),
		Files: make(map[string]string),
	}
	defer func() { report.Duration = time.Since(start) }()

	lib.LogSiteStart(r.logger, q.Site, report.RunID)

	if err := q.Validate(); err != nil {
		report.Err = err
		lib.LogSiteFailed(r.logger, q.Site, report.RunID, err)
		return report
	}

	windows := models.SplitDateRange(q, r.config.Search.MaxRangeDays)
	sawData := false

	for _, window := range windows {
		orderURLs, err := r.submitWindow(window)
		if err != nil {
			report.Err = err
			if lib.IsFatal(err) {
				lib.LogSiteFailed(r.logger, q.Site, report.RunID, err)
				return report
			}
			continue
		}
		if len(orderURLs) == 0 {
			continue
		}
		sawData = true
		report.Orders += len(orderURLs)

		for _, orderURL := range orderURLs {
			if err := r.retrieveOrder(orderURL, q.Site, report.Files); err != nil {
				// Retries exhausted: record and keep going with the other
				// orders of this site
				report.Err = err
			}
		}
	}

	if !sawData && report.Err == nil {
		report.Skipped = true
		r.logger.Info("No data for this site, time range and AOI", "site", q.Site)
		return report
	}

	if report.Err != nil {
		lib.LogSiteFailed(r.logger, q.Site, report.RunID, report.Err)
	} else {
		lib.LogSiteComplete(r.logger, q.Site, report.RunID, len(report.Files), time.Since(start))
	}
	return report
}

// submitWindow searches one date window and submits its order, falling
// back to per-item orders when the bulk submission is rejected even after
// pruning. An empty slice with nil error means the window had nothing to
// order.
func (r *Runner) submitWindow(q models.SiteQuery) ([]string, error) {
	filter := models.BuildFilter(q)

	groups, err := r.catalog.Search(filter, q.Site)
	if err != nil {
		if errors.Is(err, lib.ErrNoEligibleScenes) {
			r.logger.Info("No eligible scenes in window",
				"site", q.Site,
				"start", q.StartDate.Format("2006-01-02"),
				"end", q.EndDate.Format("2006-01-02"))
			return nil, nil
		}
		return nil, err
	}

	req, err := services.BuildRequest(q.Site, groups, q.Polygon, toarScaleFactor)
	if err != nil {
		if errors.Is(err, lib.ErrNothingToOrder) {
			return nil, nil
		}
		return nil, err
	}

	orderURL, err := r.orders.Submit(req)
	if err == nil {
		return []string{orderURL}, nil
	}
	if errors.Is(err, lib.ErrNothingToOrder) {
		return nil, nil
	}

	var subErr *lib.SubmissionError
	if errors.As(err, &subErr) {
		r.logger.Warn("Bulk submission rejected, degrading to per-item orders",
			"site", q.Site, "error", subErr)
		urls := r.orders.Degrade(req)
		if len(urls) == 0 {
			return nil, subErr
		}
		return urls, nil
	}

	return nil, err
}

// retrieveOrder polls one order to completion and downloads its results,
// retrying the whole poll+download unit with a fixed delay on any failure.
// Downloaded paths accumulate into files.
func (r *Runner) retrieveOrder(orderURL string, site string, files map[string]string) error {
	retryConfig := lib.NewRetryConfigFromModel(r.config.Retry)

	operation := func() error {
		state, err := r.poller.Wait(orderURL, r.showProgress)
		if err != nil {
			return err
		}
		if !state.Downloadable() {
			return fmt.Errorf("order %s in unexpected state %q", orderURL, state)
		}

		results, err := r.orders.Results(orderURL)
		if err != nil {
			return err
		}

		paths, err := r.downloader.Download(results, r.config.SiteImageDir(site), r.showProgress)
		for name, path := range paths {
			files[name] = path
		}
		return err
	}

	err := lib.ExecuteWithRetry(operation, retryConfig, func(err error) bool {
		return !lib.IsFatal(err)
	})
	if err != nil {
		return fmt.Errorf("order retrieval for %s gave up: %w", site, err)
	}
	return nil
}
