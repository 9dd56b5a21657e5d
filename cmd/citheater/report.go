package main

import (
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"
	"github.com/rvishravars/citheater/internal/storage"
	"github.com/spf13/cobra"
)

// reportCmd renders a saved run as Markdown.
var reportCmd = &cobra.Command{
	Use:   "report <run id>",
	Short: "Render the saved run as a Markdown report.",
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
		return writeReport(cmd.OutOrStdout(), run, results)
	},
}

type reportTable struct {
	Analysis string
	Columns  []string
	Rows     [][]string
}

type reportTheater struct {
	Repositories int
	// Flagged counts the repositories with at least one anti-pattern.
	Flagged int
}

const ciTheaterAnalysis = "CITheater"

var reportTemplate = template.Must(template.New("report").Funcs(sprig.TxtFuncMap()).Parse(
	`# CI theater report

| Run | Version | Started | Repositories | Failed |
| --- | --- | --- | --- | --- |
| {{.Run.ID | trunc 8}} | {{.Run.Version}} | {{dateInZone "2006-01-02 15:04 MST" .Run.Started "UTC"}} | {{.Run.Repositories}} | {{len .Run.Failed}} |
{{- with .Theater}}

**{{.Flagged}}** of {{.Repositories}} {{if eq .Repositories 1}}repository shows{{else}}repositories show{{end}} at least one CI anti-pattern.
{{- end}}
{{- range .Tables}}

## {{.Analysis}}

| {{join " | " .Columns}} |
|{{repeat (len .Columns) " --- |"}}
{{- range .Rows}}
| {{join " | " .}} |
{{- end}}
{{- end}}
{{- if .Run.Failed}}

## Failures
{{range $repo, $reason := .Run.Failed}}
- ` + "`{{$repo}}`" + `: {{$reason | replace "\n" " " | trunc 200}}
{{- end}}
{{- end}}
`))

func writeReport(writer io.Writer, run *storage.Run, results []storage.Result) error {
	data := struct {
		Run     *storage.Run
		Theater *reportTheater
		Tables  []reportTable
	}{Run: run}
	byAnalysis := map[string][]map[string]string{}
	var order []string
	for _, result := range results {
		row, err := decodePayload(result)
		if err != nil {
			return err
		}
		row[repositoryColumn] = result.Repository
		if _, exists := byAnalysis[result.Analysis]; !exists {
			order = append(order, result.Analysis)
		}
		byAnalysis[result.Analysis] = append(byAnalysis[result.Analysis], row)
	}
	for _, analysis := range order {
		rows := byAnalysis[analysis]
		table := reportTable{Analysis: analysis, Columns: sortedColumns(rows)}
		for _, row := range rows {
			cells := make([]string, len(table.Columns))
			for i, column := range table.Columns {
				cells[i] = strings.ReplaceAll(row[column], "|", "\\|")
			}
			table.Rows = append(table.Rows, cells)
		}
		data.Tables = append(data.Tables, table)
		if analysis == ciTheaterAnalysis {
			data.Theater = &reportTheater{Repositories: len(rows)}
			for _, row := range rows {
				if row["anti_patterns"] != "" && row["anti_patterns"] != "0" {
					data.Theater.Flagged++
				}
			}
		}
	}
	return reportTemplate.Execute(writer, data)
}
