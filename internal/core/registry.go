package core

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/spf13/pflag"
)

// PipelineItemRegistry contains all the known PipelineItem-s.
type PipelineItemRegistry struct {
	provided   map[string][]reflect.Type
	registered map[string]reflect.Type
	flags      map[string]reflect.Type
}

// Register adds another PipelineItem to the registry.
func (registry *PipelineItemRegistry) Register(example PipelineItem) {
	t := reflect.TypeOf(example)
	registry.registered[example.Name()] = t
	if fpi, ok := example.(LeafPipelineItem); ok {
		registry.flags[fpi.Flag()] = t
	}
	for _, dep := range example.Provides() {
		registry.provided[dep] = append(registry.provided[dep], t)
	}
}

// Summon searches for PipelineItem-s which provide the specified entity or named after
// the specified string. It materializes all the found types and returns them.
func (registry *PipelineItemRegistry) Summon(providesOrName string) []PipelineItem {
	items := []PipelineItem{}
	for _, t := range registry.provided[providesOrName] {
		items = append(items, reflect.New(t.Elem()).Interface().(PipelineItem))
	}
	if t, exists := registry.registered[providesOrName]; exists {
		items = append(items, reflect.New(t.Elem()).Interface().(PipelineItem))
	}
	return items
}

// GetLeaves returns all LeafPipelineItem-s registered, sorted by flag.
func (registry *PipelineItemRegistry) GetLeaves() []LeafPipelineItem {
	keys := make([]string, 0, len(registry.flags))
	for key := range registry.flags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	items := []LeafPipelineItem{}
	for _, key := range keys {
		items = append(items, reflect.New(registry.flags[key].Elem()).Interface().(LeafPipelineItem))
	}
	return items
}

// GetPlumbingItems returns all non-LeafPipelineItem-s registered.
func (registry *PipelineItemRegistry) GetPlumbingItems() []PipelineItem {
	keys := make([]string, 0, len(registry.registered))
	for key := range registry.registered {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	items := []PipelineItem{}
	for _, key := range keys {
		iface := reflect.New(registry.registered[key].Elem()).Interface()
		if _, ok := iface.(LeafPipelineItem); !ok {
			items = append(items, iface.(PipelineItem))
		}
	}
	return items
}

// AddFlags inserts the cmdline options from PipelineItem.ListConfigurationOptions()
// and LeafPipelineItem.Flag() into the specified flag set.
// Returns the "facts" which can be fed into Pipeline.Initialize() and the dictionary of
// runnable analysis (LeafPipelineItem) choices. E.g. if "CoverageAnalysis" was activated
// through "--coverage" cmdline argument, this mapping would contain ["CoverageAnalysis"] = *true.
// The facts hold the pointers to the flag values until DereferenceFacts() is called.
// Several items may publish the same option: the first registration wins.
func (registry *PipelineItemRegistry) AddFlags(flagSet *pflag.FlagSet) (
	map[string]interface{}, map[string]*bool) {
	flags := map[string]interface{}{}
	deployed := map[string]*bool{}
	names := make([]string, 0, len(registry.registered))
	for name := range registry.registered {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		formatHelp := func(desc string) string {
			return fmt.Sprintf("%s [%s]", desc, name)
		}
		itemIface := reflect.New(registry.registered[name].Elem()).Interface()
		for _, opt := range itemIface.(PipelineItem).ListConfigurationOptions() {
			if flagSet.Lookup(opt.Flag) != nil {
				continue
			}
			switch opt.Type {
			case BoolConfigurationOption:
				flags[opt.Name] = flagSet.Bool(opt.Flag, opt.Default.(bool), formatHelp(opt.Description))
			case IntConfigurationOption:
				flags[opt.Name] = flagSet.Int(opt.Flag, opt.Default.(int), formatHelp(opt.Description))
			case StringConfigurationOption, PathConfigurationOption:
				flags[opt.Name] = flagSet.String(opt.Flag, opt.Default.(string), formatHelp(opt.Description))
			case FloatConfigurationOption:
				flags[opt.Name] = flagSet.Float64(opt.Flag, opt.Default.(float64), formatHelp(opt.Description))
			case StringsConfigurationOption:
				flags[opt.Name] = flagSet.StringSlice(opt.Flag, opt.Default.([]string), formatHelp(opt.Description))
			}
		}
		if fpi, ok := itemIface.(LeafPipelineItem); ok {
			deployed[fpi.Name()] = flagSet.Bool(
				fpi.Flag(), false, fmt.Sprintf("Runs %s analysis.", fpi.Name()))
		}
	}
	// Pipeline flags
	flags[ConfigPipelineDAGPath] = flagSet.String(
		"dump-dag", "", "Write the pipeline DAG to a Graphviz file.")
	flags[ConfigPipelineDryRun] = flagSet.Bool("dry-run", false,
		"Do not run any analyses - only resolve the DAG. Useful for --dump-dag.")
	flags[ConfigWindowSince] = flagSet.String("since", "",
		"Beginning of the analysis window, YYYY-MM-DD. Defaults to one year before --until.")
	flags[ConfigWindowUntil] = flagSet.String("until", "",
		"End of the analysis window, YYYY-MM-DD, inclusive. Defaults to now.")
	return flags, deployed
}

// Registry contains all known pipeline item types.
var Registry = &PipelineItemRegistry{
	provided:   map[string][]reflect.Type{},
	registered: map[string]reflect.Type{},
	flags:      map[string]reflect.Type{},
}
