package plumbing

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/core"
	"github.com/rvishravars/citheater/internal/testdetect"
)

// FootprintMeasure counts the test and the production code in the cloned working tree.
// It is a PipelineItem.
type FootprintMeasure struct {
	l core.Logger
}

const (
	// DependencyFootprint is the name of the dependency provided by FootprintMeasure:
	// testdetect.Footprint.
	DependencyFootprint = "footprint"
)

// Name of this PipelineItem. Uniquely identifies the type, used for mapping keys, etc.
func (fm *FootprintMeasure) Name() string {
	return "FootprintMeasure"
}

// Provides returns the list of names of entities which are produced by this PipelineItem.
func (fm *FootprintMeasure) Provides() []string {
	return []string{DependencyFootprint}
}

// Requires returns the list of names of entities which are needed by this PipelineItem.
func (fm *FootprintMeasure) Requires() []string {
	return []string{DependencyCheckout}
}

// ListConfigurationOptions returns the list of changeable public properties of this PipelineItem.
func (fm *FootprintMeasure) ListConfigurationOptions() []core.ConfigurationOption {
	return []core.ConfigurationOption{}
}

// Configure sets the properties previously published by ListConfigurationOptions().
func (fm *FootprintMeasure) Configure(facts map[string]interface{}) error {
	if l, exists := facts[core.ConfigLogger].(core.Logger); exists {
		fm.l = l
	}
	return nil
}

// Initialize resets the temporary caches and prepares this PipelineItem for a series of Consume()
// calls.
func (fm *FootprintMeasure) Initialize() error {
	if fm.l == nil {
		fm.l = core.NewLogger()
	}
	return nil
}

// Consume runs this PipelineItem on the next repository.
func (fm *FootprintMeasure) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	dir := deps[DependencyCheckout].(string)
	footprint, err := testdetect.Measure(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to measure %s", dir)
	}
	return map[string]interface{}{DependencyFootprint: footprint}, nil
}

func init() {
	core.Registry.Register(&FootprintMeasure{})
}
