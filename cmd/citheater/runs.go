package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/rvishravars/citheater/internal/storage"
	"github.com/rvishravars/citheater/internal/yaml"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
)

// listsCmd prints the embedded repository lists.
var listsCmd = &cobra.Command{
	Use:   "lists [name]",
	Short: "Print the builtin repository lists.",
	Long: `Without arguments, prints the names of the builtin lists and their sizes.
With the list name, prints the repositories in it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			return printList(cmd.OutOrStdout(), args[0])
		}
		return printLists(cmd.OutOrStdout())
	},
}

func printLists(writer io.Writer) error {
	for _, name := range repolist.BuiltinNames() {
		repos, err := repolist.Builtin(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(writer, "%s %d\n", rpad(repolist.BuiltinPrefix+name, 32), len(repos))
	}
	return nil
}

func printList(writer io.Writer, name string) error {
	repos, err := repolist.Builtin(strings.TrimPrefix(name, repolist.BuiltinPrefix))
	if err != nil {
		return err
	}
	group := ""
	for i, repo := range repos {
		if i == 0 || repo.Group != group {
			group = repo.Group
			if group == "" {
				fmt.Fprintln(writer, "ungrouped:")
			} else {
				fmt.Fprintf(writer, "%s:\n", group)
			}
		}
		fmt.Fprintf(writer, "  - %s\n", repo.FullName())
	}
	return nil
}

// runsCmd lists the runs saved with --store.
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List the saved runs.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		runs, err := store.ListRuns()
		if err != nil {
			return err
		}
		printRuns(cmd.OutOrStdout(), runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run id>",
	Short: "Print the saved run. An unambiguous prefix of the id is enough.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		run, results, err := loadRun(store, args[0])
		if err != nil {
			return err
		}
		printRun(cmd.OutOrStdout(), run)
		return printRunResults(cmd.OutOrStdout(), run, results)
	},
}

var runsDiffCmd = &cobra.Command{
	Use:   "diff <old run id> <new run id>",
	Short: "Compare the results of two saved runs line by line.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()
		texts := make([]string, 2)
		ids := make([]string, 2)
		for i, id := range args {
			run, results, err := loadRun(store, id)
			if err != nil {
				return err
			}
			buffer := &bytes.Buffer{}
			if err = printRunResults(buffer, run, results); err != nil {
				return err
			}
			texts[i] = buffer.String()
			ids[i] = run.ID
		}
		if !printDiff(cmd.OutOrStdout(), ids[0], ids[1], texts[0], texts[1]) {
			cmd.PrintErrln("the runs have the same results")
		}
		return nil
	},
}

func loadRun(store *storage.Store, id string) (*storage.Run, []storage.Result, error) {
	run, err := store.GetRun(id)
	if err == storage.ErrNotFound {
		return nil, nil, errors.Errorf("run %s does not exist", id)
	}
	if err != nil {
		return nil, nil, err
	}
	results, err := store.RunResults(run.ID)
	if err != nil {
		return nil, nil, err
	}
	return run, results, nil
}

func printRuns(writer io.Writer, runs []storage.Run) {
	fmt.Fprintf(writer, "%s %s %s %s %s\n", rpad("ID", 36), rpad("STARTED", 20),
		rpad("REPOS", 6), rpad("FAILED", 7), "ANALYSES")
	for _, run := range runs {
		failed := fmt.Sprint(len(run.Failed))
		if !run.Done() {
			failed = "-"
		}
		fmt.Fprintf(writer, "%s %s %s %s %s\n", rpad(run.ID, 36),
			rpad(run.Started.Local().Format("2006-01-02 15:04:05"), 20),
			rpad(fmt.Sprint(run.Repositories), 6), rpad(failed, 7),
			strings.Join(run.Analyses, ","))
	}
}

func printRun(writer io.Writer, run *storage.Run) {
	fmt.Fprintln(writer, "run:")
	fmt.Fprintln(writer, "  id:", run.ID)
	fmt.Fprintln(writer, "  version:", yaml.SafeString(run.Version))
	fmt.Fprintln(writer, "  started:", run.Started.Format(time.RFC3339))
	if run.Done() {
		fmt.Fprintln(writer, "  finished:", run.Finished.Format(time.RFC3339))
	} else {
		fmt.Fprintln(writer, "  finished: null")
	}
	fmt.Fprintln(writer, "  repositories:", run.Repositories)
	yaml.PrintStrings(writer, 2, "analyses", run.Analyses)
}

// printRunResults writes the failures and the stored rows of the run. The output does not
// depend on the run id or the timestamps so that two runs can be compared.
func printRunResults(writer io.Writer, run *storage.Run, results []storage.Result) error {
	if len(run.Failed) == 0 {
		fmt.Fprintln(writer, "failed: {}")
	} else {
		fmt.Fprintln(writer, "failed:")
		for _, repo := range sortedKeys(run.Failed) {
			fmt.Fprintf(writer, "  %s: %s\n", yaml.SafeString(repo), yaml.SafeString(run.Failed[repo]))
		}
	}
	if len(results) == 0 {
		fmt.Fprintln(writer, "results: {}")
		return nil
	}
	fmt.Fprintln(writer, "results:")
	analysis := ""
	for _, result := range results {
		if result.Analysis != analysis {
			analysis = result.Analysis
			fmt.Fprintf(writer, "  %s:\n", analysis)
		}
		row, err := decodePayload(result)
		if err != nil {
			return err
		}
		fmt.Fprintf(writer, "    %s:\n", yaml.SafeString(result.Repository))
		for _, column := range sortedKeys(row) {
			if column == repositoryColumn {
				continue
			}
			fmt.Fprintf(writer, "      %s: %s\n", column, yaml.SafeString(row[column]))
		}
	}
	return nil
}

const repositoryColumn = "repository"

func decodePayload(result storage.Result) (map[string]string, error) {
	row := map[string]string{}
	if err := json.Unmarshal(result.Payload, &row); err != nil {
		return nil, errors.Wrapf(err, "invalid %s result of %s", result.Analysis, result.Repository)
	}
	return row, nil
}

// printDiff writes the line diff between the texts. Returns false if they are equal.
func printDiff(writer io.Writer, oldName, newName, oldText, newText string) bool {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)
	changed := false
	for _, diff := range diffs {
		if diff.Type != diffmatchpatch.DiffEqual {
			changed = true
			break
		}
	}
	if !changed {
		return false
	}
	fmt.Fprintln(writer, "---", oldName)
	fmt.Fprintln(writer, "+++", newName)
	for _, diff := range diffs {
		prefix := " "
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(diff.Text, "\n") {
			if line == "" {
				continue
			}
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			fmt.Fprint(writer, prefix+line)
		}
	}
	return true
}

// sortedColumns puts the repository first and the rest in the alphabetical order.
func sortedColumns(rows []map[string]string) []string {
	set := map[string]bool{}
	for _, row := range rows {
		for column := range row {
			set[column] = true
		}
	}
	delete(set, repositoryColumn)
	columns := make([]string, 0, len(set))
	for column := range set {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	return append([]string{repositoryColumn}, columns...)
}

func init() {
	runsCmd.AddCommand(runsShowCmd, runsDiffCmd)
}
