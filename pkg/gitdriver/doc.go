// Package gitdriver executes the three git operations the engine shells
// out for (clone, fetch, pull --ff-only) via internal/gitcmd, classifying
// failures into the engine's error taxonomy and redacting credentials
// out of any captured output before it reaches a caller.
//
// # Usage
//
//	d := gitdriver.New()
//	if err := d.Clone(ctx, authenticatedURL, destDir, gitdriver.CloneOptions{}, secret); err != nil {
//		...
//	}
package gitdriver
