// Package health reports whether the stores behind a paramsolve process can
// serve solves.
//
// A Checker reports one component. Aggregator runs several and folds their
// results into an overall Status:
//
//	agg := health.NewAggregator()
//	agg.Register("solutions", health.NewCacheChecker("solutions", disk))
//	agg.Register("memory", health.NewMemoryChecker(health.MemoryCheckerConfig{}))
//
//	report := agg.Run(ctx)
//	if report.Status != health.StatusHealthy {
//	    logger.Warn(ctx, "cache degraded", observe.F("results", report.Results))
//	}
package health
