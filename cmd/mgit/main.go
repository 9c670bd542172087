// Package main is the entry point for the mgit CLI application.
package main

import (
	mgit "github.com/steveant/mgit"
	"github.com/steveant/mgit/cmd/mgit/cmd"

	_ "github.com/steveant/mgit/pkg/azuredevops"
	_ "github.com/steveant/mgit/pkg/bitbucket"
	_ "github.com/steveant/mgit/pkg/gitea"
	_ "github.com/steveant/mgit/pkg/github"
	_ "github.com/steveant/mgit/pkg/gitlab"
)

func main() {
	cmd.Execute(mgit.FullVersion())
}
