// Package bitbucket implements the provider interface for BitBucket
// Cloud.
//
// # Features
//
//   - Workspace, project, and repository listing with cursor pagination
//   - Server-side project filtering when the project segment is a literal
//   - App-password Basic authentication
//
// # Usage
//
//	p := bitbucket.NewProvider(profile)
//	pattern, _ := query.Parse("myworkspace/myproject/*")
//	for repo, err := range p.ListRepositories(ctx, pattern) {
//		...
//	}
package bitbucket
