// Package azuredevops implements the provider interface for Azure DevOps
// Services.
//
// # Features
//
//   - Project and git repository listing, paginated by continuation token
//   - Personal access token authentication (HTTP Basic, empty username)
//
// # Usage
//
//	p := azuredevops.NewProvider(profile)
//	pattern, _ := query.Parse("myorg/myproject/*")
//	for repo, err := range p.ListRepositories(ctx, pattern) {
//		...
//	}
package azuredevops
