package coverage

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/github"
	"golang.org/x/sync/errgroup"
)

const (
	// SourceCheck means that the percentage was reported by a check run.
	SourceCheck = "check"
	// SourceArtifact means that the percentage was computed from an uploaded report.
	SourceArtifact = "artifact"
	// SourceLog means that the percentage was printed in a job log.
	SourceLog = "log"

	// DefaultRuns is the number of the newest successful runs which are inspected.
	DefaultRuns = 5
	// DefaultArtifactPattern selects the artifacts which may contain coverage reports.
	DefaultArtifactPattern = `(?i)coverage|lcov|cobertura|tarpaulin|codecov|llvm-cov|grcov|jacoco`
)

// Coverage is the line coverage reported by the CI of a repository.
type Coverage struct {
	Percent float64
	Found   bool
	// Source is one of SourceCheck, SourceArtifact, SourceLog.
	Source string
	Tool   string
	RunID  int64
	// Detail tells where exactly the percentage was found.
	Detail string
}

// API is the part of github.Client used by Extractor.
type API interface {
	ListCheckRuns(ctx context.Context, owner, name, sha string) ([]github.CheckRun, error)
	ListArtifacts(ctx context.Context, owner, name string, runID int64) ([]github.Artifact, error)
	DownloadArtifact(ctx context.Context, owner, name string, id int64, limit int64) ([]byte, error)
	DownloadRunLogs(ctx context.Context, owner, name string, runID int64, limit int64) ([]byte, error)
}

// Extractor looks for the coverage in the check runs, the artifacts and the logs of the
// newest successful workflow runs, in this order, and stops at the first percentage.
type Extractor struct {
	API API
	// Runs is the maximum number of the inspected runs.
	Runs int
	// MaxDownload limits the size of a downloaded artifact or log archive in bytes.
	MaxDownload     int64
	ArtifactPattern *regexp.Regexp
	Logger          core.Logger
}

// NewExtractor creates an Extractor with the default settings.
func NewExtractor(api API, logger core.Logger) *Extractor {
	return &Extractor{
		API:             api,
		Runs:            DefaultRuns,
		MaxDownload:     github.DefaultMaxDownload,
		ArtifactPattern: regexp.MustCompile(DefaultArtifactPattern),
		Logger:          logger,
	}
}

// Candidates returns the successful runs, newest first, at most `limit`.
func Candidates(runs []github.WorkflowRun, limit int) []github.WorkflowRun {
	var result []github.WorkflowRun
	for _, run := range runs {
		if run.Conclusion == "success" {
			result = append(result, run)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// fatal errors abort the extraction; the others only skip a source.
func fatal(err error) bool {
	cause := errors.Cause(err)
	return cause == context.Canceled || cause == context.DeadlineExceeded || github.IsRateLimit(err)
}

// Extract finds the coverage of the repository given its workflow runs.
func (e *Extractor) Extract(ctx context.Context, owner, name string, runs []github.WorkflowRun) (
	Coverage, error) {
	seen := map[string]bool{}
	for _, run := range Candidates(runs, e.Runs) {
		var checks []github.CheckRun
		var artifacts []github.Artifact
		fetchChecks := !seen[run.HeadSHA]
		seen[run.HeadSHA] = true
		group, groupCtx := errgroup.WithContext(ctx)
		if fetchChecks {
			group.Go(func() error {
				var err error
				checks, err = e.API.ListCheckRuns(groupCtx, owner, name, run.HeadSHA)
				return e.tolerate(err, "check runs of %s", run.HeadSHA)
			})
		}
		group.Go(func() error {
			var err error
			artifacts, err = e.API.ListArtifacts(groupCtx, owner, name, run.ID)
			return e.tolerate(err, "artifacts of run %d", run.ID)
		})
		if err := group.Wait(); err != nil {
			return Coverage{}, err
		}
		if result, ok := e.fromChecks(run, checks); ok {
			return result, nil
		}
		result, ok, err := e.fromArtifacts(ctx, owner, name, run, artifacts)
		if err != nil || ok {
			return result, err
		}
		result, ok, err = e.fromLogs(ctx, owner, name, run)
		if err != nil || ok {
			return result, err
		}
	}
	return Coverage{}, nil
}

func (e *Extractor) tolerate(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if fatal(err) {
		return err
	}
	if e.Logger != nil {
		e.Logger.Warnf("skipping the %s: %v", fmt.Sprintf(format, args...), err)
	}
	return nil
}

func (e *Extractor) fromChecks(run github.WorkflowRun, checks []github.CheckRun) (Coverage, bool) {
	var best Hit
	var where string
	found := false
	for _, check := range checks {
		hit, ok := ScanCheckRun(check)
		if ok && (!found || hit.rank > best.rank) {
			best, where, found = hit, check.Name, true
		}
	}
	if !found {
		return Coverage{}, false
	}
	return Coverage{
		Percent: best.Percent, Found: true, Source: SourceCheck, Tool: best.Tool, RunID: run.ID,
		Detail: where + ": " + best.Line,
	}, true
}

func (e *Extractor) fromArtifacts(ctx context.Context, owner, name string, run github.WorkflowRun,
	artifacts []github.Artifact) (Coverage, bool, error) {
	var reports []Report
	var sources []string
	for _, artifact := range artifacts {
		if artifact.Expired || !e.ArtifactPattern.MatchString(artifact.Name) ||
			(e.MaxDownload > 0 && artifact.SizeInBytes > e.MaxDownload) {
			continue
		}
		data, err := e.API.DownloadArtifact(ctx, owner, name, artifact.ID, e.MaxDownload)
		if err != nil {
			if err = e.tolerate(err, "artifact %s", artifact.Name); err != nil {
				return Coverage{}, false, err
			}
			continue
		}
		parsed, entries, err := ReportsFromArchive(data)
		if err != nil {
			if e.Logger != nil {
				e.Logger.Warnf("skipping the artifact %s: %v", artifact.Name, err)
			}
			continue
		}
		reports = append(reports, parsed...)
		for _, entry := range entries {
			sources = append(sources, artifact.Name+"/"+entry)
		}
	}
	report, ok := Merge(reports)
	if !ok {
		return Coverage{}, false, nil
	}
	return Coverage{
		Percent: report.Percent, Found: true, Source: SourceArtifact, Tool: report.Format,
		RunID: run.ID, Detail: strings.Join(sources, ", "),
	}, true, nil
}

func (e *Extractor) fromLogs(ctx context.Context, owner, name string, run github.WorkflowRun) (
	Coverage, bool, error) {
	data, err := e.API.DownloadRunLogs(ctx, owner, name, run.ID, e.MaxDownload)
	if err != nil {
		return Coverage{}, false, e.tolerate(err, "logs of run %d", run.ID)
	}
	hit, where, found, err := ScanLogArchive(data)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warnf("skipping the logs of run %d: %v", run.ID, err)
		}
		return Coverage{}, false, nil
	}
	if !found {
		return Coverage{}, false, nil
	}
	return Coverage{
		Percent: hit.Percent, Found: true, Source: SourceLog, Tool: hit.Tool, RunID: run.ID,
		Detail: where + ": " + hit.Line,
	}, true, nil
}
