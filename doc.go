/*
Package citheater measures "CI theater": continuous integration which is adopted on the
surface but does not work in practice. It analyses lists of GitHub repositories and reports
how often the default branch receives commits, how long the builds take, how long the builds
stay broken and which line coverage the CI reports.

The analysis runs as a pipeline of items. Plumbing items fetch the data of a repository
(the metadata, the commit history, the workflow runs, the workflow definitions, the coverage
reports, the clone) and run on a pool of workers, one repository per task. Leaves consume the
results in the order of the input list and produce the reports. The pipeline is built
automatically from the dependencies of the requested leaves:

	pipeline := citheater.NewPipeline()
	pipeline.SetFact(citheater.FactGitHubClient, citheater.NewGitHubClient(citheater.GitHubOptions{Token: token}))
	theater := pipeline.DeployItem(citheater.Registry.Summon("CITheater")[0]).(citheater.LeafPipelineItem)
	if err := pipeline.Initialize(nil); err != nil {
		// handle the error
	}
	results, err := pipeline.Run(ctx, repositories)
	// results[theater] is CITheaterResult
	// results[nil] is *citheater.CommonAnalysisResult

Every leaf serializes its result to YAML, Protocol Buffers and CSV. See cmd/citheater.
*/
package citheater
