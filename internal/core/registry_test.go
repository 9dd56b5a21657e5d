package core

import (
	"context"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getRegistry() *PipelineItemRegistry {
	return &PipelineItemRegistry{
		provided:   map[string][]reflect.Type{},
		registered: map[string]reflect.Type{},
		flags:      map[string]reflect.Type{},
	}
}

type dummyPipelineItem struct{}

func (item *dummyPipelineItem) Name() string {
	return "dummy"
}

func (item *dummyPipelineItem) Provides() []string {
	return []string{"dummy"}
}

func (item *dummyPipelineItem) Requires() []string {
	return []string{}
}

func (item *dummyPipelineItem) Configure(facts map[string]interface{}) error {
	return nil
}

func (item *dummyPipelineItem) ListConfigurationOptions() []ConfigurationOption {
	return []ConfigurationOption{{
		Name:        "DummyOption",
		Description: "The option description.",
		Flag:        "dummy-option",
		Type:        BoolConfigurationOption,
		Default:     false,
	}, {
		// shared with testPipelineItem
		Name:        "TestOption",
		Description: "The option description.",
		Flag:        "test-option",
		Type:        IntConfigurationOption,
		Default:     10,
	}, {
		Name:        "DummyList",
		Description: "The list description.",
		Flag:        "dummy-list",
		Type:        StringsConfigurationOption,
		Default:     []string{"x"},
	}}
}

func (item *dummyPipelineItem) Initialize() error {
	return nil
}

func (item *dummyPipelineItem) Consume(ctx context.Context, deps map[string]interface{}) (
	map[string]interface{}, error) {
	return map[string]interface{}{"dummy": nil}, nil
}

func newTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Temporary command to test the stuff.",
		Args:  cobra.MaximumNArgs(0),
		Run:   func(cmd *cobra.Command, args []string) {},
	}
}

func TestRegistrySummon(t *testing.T) {
	reg := getRegistry()
	assert.Len(t, reg.Summon("whatever"), 0)
	reg.Register(&testPipelineItem{})
	summoned := reg.Summon((&testPipelineItem{}).Provides()[0])
	assert.Len(t, summoned, 1)
	assert.Equal(t, summoned[0].Name(), (&testPipelineItem{}).Name())
	summoned = reg.Summon((&testPipelineItem{}).Name())
	assert.Len(t, summoned, 1)
	assert.Equal(t, summoned[0].Name(), (&testPipelineItem{}).Name())
}

func TestRegistryAddFlags(t *testing.T) {
	reg := getRegistry()
	reg.Register(&testPipelineItem{})
	reg.Register(&dependingTestPipelineItem{})
	reg.Register(&dummyPipelineItem{})
	testCmd := newTestCommand()
	facts, deployed := reg.AddFlags(testCmd.Flags())
	// 4 item options + 4 pipeline options
	assert.Len(t, facts, 8)
	assert.IsType(t, new(int), facts["TestOption"])
	assert.IsType(t, new(float64), facts["TestOption2"])
	assert.IsType(t, new(bool), facts["DummyOption"])
	assert.IsType(t, new([]string), facts["DummyList"])
	assert.Contains(t, facts, ConfigPipelineDryRun)
	assert.Contains(t, facts, ConfigPipelineDAGPath)
	assert.Contains(t, facts, ConfigWindowSince)
	assert.Contains(t, facts, ConfigWindowUntil)
	assert.Len(t, deployed, 1)
	assert.Contains(t, deployed, (&dependingTestPipelineItem{}).Name())
	for _, name := range []string{"depflag", "dump-dag", "dry-run", "since", "until",
		"test-option", "test-option2", "dummy-option", "dummy-list"} {
		assert.NotNil(t, testCmd.Flags().Lookup(name), name)
	}
	require.NoError(t, testCmd.ParseFlags([]string{
		"--depflag", "--test-option", "3", "--dummy-list", "a,b", "--since", "2024-02-01"}))
	assert.True(t, *deployed["Test2"])
	DereferenceFacts(facts)
	assert.Equal(t, 3, facts["TestOption"])
	assert.Equal(t, []string{"a", "b"}, facts["DummyList"])
	assert.Equal(t, "2024-02-01", facts[ConfigWindowSince])
	assert.Equal(t, 0.5, facts["TestOption2"])
	testCmd.UsageString() // to test that nothing is broken
}

func TestRegistryLeaves(t *testing.T) {
	reg := getRegistry()
	reg.Register(&testPipelineItem{})
	reg.Register(&dependingTestPipelineItem{})
	reg.Register(&dummyPipelineItem{})
	leaves := reg.GetLeaves()
	assert.Len(t, leaves, 1)
	assert.Equal(t, leaves[0].Name(), (&dependingTestPipelineItem{}).Name())
}

func TestRegistryPlumbingItems(t *testing.T) {
	reg := getRegistry()
	reg.Register(&testPipelineItem{})
	reg.Register(&dependingTestPipelineItem{})
	reg.Register(&dummyPipelineItem{})
	plumbing := reg.GetPlumbingItems()
	assert.Len(t, plumbing, 2)
	assert.Equal(t, plumbing[0].Name(), (&testPipelineItem{}).Name())
	assert.Equal(t, plumbing[1].Name(), (&dummyPipelineItem{}).Name())
}
