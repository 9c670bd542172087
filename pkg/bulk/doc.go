// Package bulk implements clone-all and pull-all: draining a provider's
// repository listing into a plan, then running that plan through the
// bounded concurrency executor.
//
// # Usage
//
//	eng := bulk.New()
//	items, err := eng.Plan(p.ListRepositories(ctx, pattern), bulk.Options{
//		TargetDir:  "/work/repos",
//		UpdateMode: bulk.UpdateModeSkip,
//	}, false)
//	if err != nil {
//		...
//	}
//	summary, err := eng.Execute(ctx, items, profile, opts)
package bulk
