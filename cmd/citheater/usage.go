package main

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"unicode"

	"github.com/Masterminds/sprig"
	"github.com/rvishravars/citheater"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/spf13/cobra"
)

// trimRightSpace removes the trailing whitespace characters.
func trimRightSpace(s string) string {
	return strings.TrimRightFunc(s, unicode.IsSpace)
}

// rpad adds padding to the right of a string.
func rpad(s string, padding int) string {
	return fmt.Sprintf(fmt.Sprintf("%%-%ds", padding), s)
}

// tmpl was adapted from cobra/cobra.go
func tmpl(w io.Writer, text string, data interface{}) error {
	var templateFuncs = template.FuncMap{
		"trim":                    strings.TrimSpace,
		"trimRightSpace":          trimRightSpace,
		"trimTrailingWhitespaces": trimRightSpace,
		"rpad":                    rpad,
		"gt":                      cobra.Gt,
		"eq":                      cobra.Eq,
	}
	for k, v := range sprig.TxtFuncMap() {
		templateFuncs[k] = v
	}
	t := template.New("top")
	t.Funcs(templateFuncs)
	template.Must(t.Parse(text))
	return t.Execute(w, data)
}

const usageTemplate = `Usage:{{if .c.Runnable}}
  {{.c.UseLine}}{{end}}{{if .c.HasAvailableSubCommands}}
  {{.c.CommandPath}} [command]{{end}}{{if .c.HasAvailableSubCommands}}

Commands:{{range .c.Commands}}{{if .IsAvailableCommand}}
  {{rpad .Name .NamePadding}} {{.Short}}{{end}}{{end}}{{end}}

Flags:
{{.c.LocalFlags.FlagUsagesWrapped 110 | trimTrailingWhitespaces}}{{if .c.HasAvailableInheritedFlags}}
{{.c.InheritedFlags.FlagUsagesWrapped 110 | trimTrailingWhitespaces}}{{end}}

Analyses (at least one is required):{{range .leaves}}
  --{{rpad .Flag 30}}{{.Description | wrap 76 | indent 34 | trim}}
{{- template "options" .ListConfigurationOptions}}{{end}}

Data sources:{{range .plumbing}}{{if .ListConfigurationOptions}}
  {{.Name}}{{template "options" .ListConfigurationOptions}}{{end}}{{end}}

Repository lists:
  {{range $i, $name := .lists}}{{if $i}}, {{end}}builtin:{{$name}}{{end}}{{if .c.HasAvailableSubCommands}}

Use "{{.c.CommandPath}} [command] --help" for more information about a command.{{end}}
{{define "options"}}{{range .}}
      --{{rpad (print .Flag " " .Type.String | trim) 36}}
      {{- $desc := .Description}}{{if .Default}}{{$desc = print $desc " Default: " .FormatDefault "."}}{{end}}
      {{- $desc | wrap 64 | indent 44 | trim}}{{end}}{{end}}`

func formatUsage(c *cobra.Command) error {
	// the default UsageFunc() does some private magic c.mergePersistentFlags()
	// this should stay on top
	localFlags := c.LocalFlags()
	leaves := citheater.Registry.GetLeaves()
	plumbing := citheater.Registry.GetPlumbingItems()
	filter := map[string]bool{}
	for _, l := range leaves {
		filter[l.Flag()] = true
		for _, cfg := range l.ListConfigurationOptions() {
			filter[cfg.Flag] = true
		}
	}
	for _, i := range plumbing {
		for _, cfg := range i.ListConfigurationOptions() {
			filter[cfg.Flag] = true
		}
	}

	for key := range filter {
		if flag := localFlags.Lookup(key); flag != nil {
			flag.Hidden = true
		}
	}
	args := map[string]interface{}{
		"c":        c,
		"leaves":   leaves,
		"plumbing": plumbing,
		"lists":    repolist.BuiltinNames(),
	}
	err := tmpl(c.OutOrStderr(), usageTemplate, args)
	for key := range filter {
		if flag := localFlags.Lookup(key); flag != nil {
			flag.Hidden = false
		}
	}
	if err != nil {
		c.Println(err)
	}
	return err
}
