package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Jeffail/tunny"
	"github.com/pkg/errors"
	"github.com/rvishravars/citheater/internal/pb"
	"github.com/rvishravars/citheater/internal/repolist"
	"github.com/rvishravars/citheater/internal/toposort"
)

// ConfigurationOptionType represents the possible types of a ConfigurationOption's value.
type ConfigurationOptionType int

const (
	// BoolConfigurationOption reflects the boolean value type.
	BoolConfigurationOption ConfigurationOptionType = iota
	// IntConfigurationOption reflects the integer value type.
	IntConfigurationOption
	// StringConfigurationOption reflects the string value type.
	StringConfigurationOption
	// FloatConfigurationOption reflects a floating point value type.
	FloatConfigurationOption
	// StringsConfigurationOption reflects the array of strings value type.
	StringsConfigurationOption
	// PathConfigurationOption reflects the file system path value type.
	PathConfigurationOption
)

// String() returns an empty string for the boolean type, "int" for integers and "string" for
// strings. It is used in the command line interface to show the argument's type.
func (opt ConfigurationOptionType) String() string {
	switch opt {
	case BoolConfigurationOption:
		return ""
	case IntConfigurationOption:
		return "int"
	case StringConfigurationOption:
		return "string"
	case FloatConfigurationOption:
		return "float"
	case StringsConfigurationOption:
		return "string"
	case PathConfigurationOption:
		return "path"
	}
	log.Panicf("Invalid ConfigurationOptionType value %d", opt)
	return ""
}

// ConfigurationOption allows for the unified, retrospective way to setup PipelineItem-s.
type ConfigurationOption struct {
	// Name identifies the configuration option in facts.
	Name string
	// Description represents the help text about the configuration option.
	Description string
	// Flag corresponds to the CLI token with "--" prepended.
	Flag string
	// Type specifies the kind of the configuration option's value.
	Type ConfigurationOptionType
	// Default is the initial value of the configuration option.
	Default interface{}
}

// FormatDefault converts the default value of ConfigurationOption to string.
// Used in the command line interface to show the argument's default value.
func (opt ConfigurationOption) FormatDefault() string {
	if opt.Type == StringsConfigurationOption {
		return fmt.Sprintf("\"%s\"", strings.Join(opt.Default.([]string), ","))
	}
	if opt.Type != StringConfigurationOption && opt.Type != PathConfigurationOption {
		return fmt.Sprint(opt.Default)
	}
	return fmt.Sprintf("\"%s\"", opt.Default)
}

// PipelineItem is the interface for all the units in the repository analysis pipeline.
// Items which are not leaves run concurrently on different repositories, so their Consume()
// must not mutate the item.
type PipelineItem interface {
	// Name returns the name of the analysis.
	Name() string
	// Provides returns the list of keys of reusable calculated entities.
	// Other items may depend on them.
	Provides() []string
	// Requires returns the list of keys of needed entities which must be supplied in Consume().
	Requires() []string
	// ListConfigurationOptions returns the list of available options which can be consumed by Configure().
	ListConfigurationOptions() []ConfigurationOption
	// Configure performs the initial setup of the object by applying parameters from facts.
	// It allows to create PipelineItems in a universal way.
	Configure(facts map[string]interface{}) error
	// Initialize prepares and resets the item. Consume() requires Initialize()
	// to be called at least once beforehand.
	Initialize() error
	// Consume processes the next repository.
	// deps contains the required entities which match Requires(). Besides, it always includes
	// DependencyRepository and DependencyIndex.
	// Returns the calculated entities which match Provides().
	Consume(ctx context.Context, deps map[string]interface{}) (map[string]interface{}, error)
}

// LeafPipelineItem corresponds to the top level pipeline items which produce the end results.
// Leaves consume the repositories one by one in the order of the input list.
type LeafPipelineItem interface {
	PipelineItem
	// Flag returns the cmdline switch to run the analysis. Should be dash-lower-case
	// without the leading dashes.
	Flag() string
	// Description returns the text which explains what the analysis is doing.
	// Should start with a capital letter and end with a dot.
	Description() string
	// Finalize returns the result of the analysis.
	Finalize() interface{}
	// Serialize encodes the object returned by Finalize() to YAML or Protocol Buffers.
	Serialize(result interface{}, binary bool, writer io.Writer) error
}

// CSVPipelineItem is the leaf which can represent its result as a table.
type CSVPipelineItem interface {
	LeafPipelineItem
	// CSV converts the object returned by Finalize() to the header and the rows.
	CSV(result interface{}) ([]string, [][]string)
}

// ReleasablePipelineItem frees the per-repository resources it created once every leaf
// consumed the repository.
type ReleasablePipelineItem interface {
	PipelineItem
	// Release is invoked with the complete `deps` of the repository.
	Release(deps map[string]interface{})
}

// DisposablePipelineItem enables resources cleanup after finishing running the pipeline.
type DisposablePipelineItem interface {
	PipelineItem
	// Dispose frees any previously allocated unmanaged resources. No Consume() calls are possible
	// afterwards. The item needs to be Initialize()-d again.
	Dispose()
}

// CommonAnalysisResult holds the information which is always extracted at Pipeline.Run().
type CommonAnalysisResult struct {
	// BeginTime is the UNIX time of the beginning of the analysis window.
	BeginTime int64
	// EndTime is the UNIX time of the end of the analysis window.
	EndTime int64
	// Repositories is the number of repositories which were successfully analysed.
	Repositories int
	// Failed maps the repositories which could not be analysed to the error messages.
	Failed map[string]string
	// RunTime is the duration of Pipeline.Run().
	RunTime time.Duration
	// RunTimePerItem is the time elapsed by each PipelineItem, in seconds.
	RunTimePerItem map[string]float64
}

// BeginTimeAsTime converts the UNIX timestamp of the beginning to Go time.
func (car *CommonAnalysisResult) BeginTimeAsTime() time.Time {
	return time.Unix(car.BeginTime, 0)
}

// EndTimeAsTime converts the UNIX timestamp of the ending to Go time.
func (car *CommonAnalysisResult) EndTimeAsTime() time.Time {
	return time.Unix(car.EndTime, 0)
}

// FillMetadata copies the data to a Protobuf message.
func (car *CommonAnalysisResult) FillMetadata(meta *pb.Metadata) *pb.Metadata {
	meta.BeginUnixTime = car.BeginTime
	meta.EndUnixTime = car.EndTime
	meta.Repositories = int32(car.Repositories)
	meta.RunTime = car.RunTime.Nanoseconds() / 1e6
	meta.RunTimePerItem = car.RunTimePerItem
	meta.Failed = car.Failed
	return meta
}

// Metadata is defined in internal/pb/pb.go - header of the binary file.
type Metadata = pb.Metadata

// MetadataToCommonAnalysisResult copies the data from a Protobuf message.
func MetadataToCommonAnalysisResult(meta *Metadata) *CommonAnalysisResult {
	return &CommonAnalysisResult{
		BeginTime:      meta.BeginUnixTime,
		EndTime:        meta.EndUnixTime,
		Repositories:   int(meta.Repositories),
		Failed:         meta.Failed,
		RunTime:        time.Duration(meta.RunTime * 1e6),
		RunTimePerItem: meta.RunTimePerItem,
	}
}

// Pipeline carries several PipelineItems and executes them on every repository.
type Pipeline struct {
	// OnProgress is the callback which is invoked in Run() to output its progress.
	// The first argument is the number of complete steps, the second is the total number
	// of steps and the third is some description of the current action.
	OnProgress func(int, int, string)

	// Workers is the number of repositories processed in parallel.
	Workers int

	// FailFast stops the run on the first repository which fails.
	FailFast bool

	// DryRun indicates whether the items are not executed.
	DryRun bool

	// Items are the registered building blocks in the pipeline. The order defines the
	// execution sequence.
	items []PipelineItem

	// The collection of parameters to create items.
	facts map[string]interface{}

	// The logger for printing output.
	l Logger
}

const (
	// ConfigPipelineDAGPath is the name of the Pipeline configuration option (Pipeline.Initialize())
	// which enables saving the items DAG to the specified file.
	ConfigPipelineDAGPath = "Pipeline.DAGPath"
	// ConfigPipelineDryRun is the name of the Pipeline configuration option (Pipeline.Initialize())
	// which disables Configure() and Initialize() invocation on each PipelineItem during the
	// Pipeline initialization.
	// Subsequent Run() calls are going to fail. Useful with ConfigPipelineDAGPath=true.
	ConfigPipelineDryRun = "Pipeline.DryRun"
	// ConfigPipelineWorkers is the name of the Pipeline configuration option (Pipeline.Initialize())
	// which sets the number of repositories processed in parallel.
	ConfigPipelineWorkers = "Pipeline.Workers"
	// ConfigPipelineFailFast is the name of the Pipeline configuration option (Pipeline.Initialize())
	// which aborts the run on the first failed repository.
	ConfigPipelineFailFast = "Pipeline.FailFast"
	// DependencyRepository is the name of one of the two items in `deps` supplied to
	// PipelineItem.Consume() which always exist. It is the analysed repolist.Repository.
	DependencyRepository = "repository"
	// DependencyIndex is the name of one of the two items in `deps` supplied to
	// PipelineItem.Consume() which always exist. It is the position of the repository in the list.
	DependencyIndex = "index"
	// MessageFinalize is the status text reported before calling LeafPipelineItem.Finalize()-s.
	MessageFinalize = "finalize"
	// DefaultPipelineWorkers is the default value of Pipeline.Workers.
	DefaultPipelineWorkers = 4
)

// NewPipeline initializes a new instance of Pipeline struct.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Workers: DefaultPipelineWorkers,
		items:   []PipelineItem{},
		facts:   map[string]interface{}{},
		l:       NewLogger(),
	}
}

// GetFact returns the value of the fact with the specified name.
func (pipeline *Pipeline) GetFact(name string) interface{} {
	return pipeline.facts[name]
}

// SetFact sets the value of the fact with the specified name.
func (pipeline *Pipeline) SetFact(name string, value interface{}) {
	pipeline.facts[name] = value
}

// DeployItem inserts a PipelineItem into the pipeline. It also recursively creates all of its
// dependencies (PipelineItem.Requires()). Returns the same item as specified in the arguments.
func (pipeline *Pipeline) DeployItem(item PipelineItem) PipelineItem {
	queue := []PipelineItem{item}
	added := map[string]PipelineItem{}
	for _, existing := range pipeline.items {
		added[existing.Name()] = existing
	}
	added[item.Name()] = item
	pipeline.AddItem(item)
	for len(queue) > 0 {
		head := queue[0]
		queue = queue[1:]
		for _, dep := range head.Requires() {
			for _, sibling := range Registry.Summon(dep) {
				if _, exists := added[sibling.Name()]; !exists {
					added[sibling.Name()] = sibling
					queue = append(queue, sibling)
					pipeline.AddItem(sibling)
				}
			}
		}
	}
	return item
}

// AddItem inserts a PipelineItem into the pipeline. It does not check any dependencies.
// See also: DeployItem().
func (pipeline *Pipeline) AddItem(item PipelineItem) PipelineItem {
	pipeline.items = append(pipeline.items, item)
	return item
}

// RemoveItem deletes a PipelineItem from the pipeline. It leaves all the rest of the items intact.
func (pipeline *Pipeline) RemoveItem(item PipelineItem) {
	for i, reg := range pipeline.items {
		if reg == item {
			pipeline.items = append(pipeline.items[:i], pipeline.items[i+1:]...)
			return
		}
	}
}

// Len returns the number of items in the pipeline.
func (pipeline *Pipeline) Len() int {
	return len(pipeline.items)
}

// Items returns the pipeline items in the execution order.
func (pipeline *Pipeline) Items() []PipelineItem {
	return append([]PipelineItem{}, pipeline.items...)
}

type sortablePipelineItems []PipelineItem

func (items sortablePipelineItems) Len() int {
	return len(items)
}

func (items sortablePipelineItems) Less(i, j int) bool {
	return items[i].Name() < items[j].Name()
}

func (items sortablePipelineItems) Swap(i, j int) {
	items[i], items[j] = items[j], items[i]
}

// resolve orders the items so that every entity is provided before it is required.
func (pipeline *Pipeline) resolve(dumpPath string) error {
	graph := toposort.NewGraph()
	sort.Sort(sortablePipelineItems(pipeline.items))
	name2item := map[string]PipelineItem{}
	for _, item := range pipeline.items {
		if _, exists := name2item[item.Name()]; exists {
			pipeline.l.Criticalf("Duplicate pipeline item: %s", item.Name())
			return errors.Errorf("duplicate pipeline item %s", item.Name())
		}
		graph.AddNode(item.Name())
		name2item[item.Name()] = item
	}
	for _, item := range pipeline.items {
		for _, key := range item.Provides() {
			key = "[" + key + "]"
			graph.AddNode(key)
			if graph.AddEdge(item.Name(), key) > 1 {
				providers := graph.FindParents(key)
				pipeline.l.Criticalf("Ambiguous pipeline dependency %s: provided by %s",
					key, strings.Join(providers, ", "))
				return errors.Errorf("ambiguous dependency %s", key)
			}
		}
	}
	for _, item := range pipeline.items {
		for _, key := range item.Requires() {
			key = "[" + key + "]"
			if graph.AddEdge(key, item.Name()) == 0 {
				pipeline.l.Criticalf("Unsatisfied dependency: %s -> %s", key, item.Name())
				return errors.Errorf("unsatisfied dependency %s -> %s", key, item.Name())
			}
		}
	}
	plan, ok := graph.Toposort()
	if !ok {
		for _, item := range pipeline.items {
			if cycle := graph.FindCycle(item.Name()); len(cycle) > 0 {
				pipeline.l.Criticalf("Failed to resolve pipeline dependencies: cycle %s",
					strings.Join(cycle, " -> "))
				break
			}
		}
		return errors.New("topological sort failure")
	}
	pipeline.items = make([]PipelineItem, 0, len(pipeline.items))
	for _, key := range plan {
		if item, exists := name2item[key]; exists {
			pipeline.items = append(pipeline.items, item)
		}
	}
	if dumpPath != "" {
		if err := os.WriteFile(dumpPath, []byte(graph.Serialize(plan)), 0666); err != nil {
			return errors.Wrapf(err, "unable to write the DAG to %s", dumpPath)
		}
		absPath, _ := filepath.Abs(dumpPath)
		pipeline.l.Infof("Wrote the DAG to %s", absPath)
	}
	return nil
}

// Initialize prepares the pipeline for the execution (Run()). This function
// resolves the execution DAG, Configure()-s and Initialize()-s the items in it in the
// topological dependency order. `facts` are passed inside Configure(). They are mutable.
func (pipeline *Pipeline) Initialize(facts map[string]interface{}) error {
	if facts == nil {
		facts = map[string]interface{}{}
	}
	DereferenceFacts(facts)
	for key, val := range facts {
		pipeline.facts[key] = val
	}
	facts = pipeline.facts

	// set logger from facts, otherwise set the pipeline's logger as the logger
	// to be used by all analysis tasks by setting the fact
	if l, exists := facts[ConfigLogger].(Logger); exists {
		pipeline.l = l
	} else {
		facts[ConfigLogger] = pipeline.l
	}
	if _, exists := facts[FactWindow].(Window); !exists {
		since, _ := facts[ConfigWindowSince].(string)
		until, _ := facts[ConfigWindowUntil].(string)
		window, err := ParseWindow(since, until, time.Now())
		if err != nil {
			return err
		}
		facts[FactWindow] = window
	}
	if val, exists := facts[ConfigPipelineWorkers].(int); exists && val > 0 {
		pipeline.Workers = val
	}
	pipeline.FailFast, _ = facts[ConfigPipelineFailFast].(bool)
	pipeline.DryRun, _ = facts[ConfigPipelineDryRun].(bool)
	dumpPath, _ := facts[ConfigPipelineDAGPath].(string)
	if err := pipeline.resolve(dumpPath); err != nil {
		return err
	}
	if pipeline.DryRun {
		return nil
	}
	for _, item := range pipeline.items {
		if err := item.Configure(facts); err != nil {
			return errors.Wrapf(err, "%s failed to configure", item.Name())
		}
	}
	for _, item := range pipeline.items {
		if err := item.Initialize(); err != nil {
			return errors.Wrapf(err, "%s failed to initialize", item.Name())
		}
	}
	return nil
}

type repoTask struct {
	Index      int
	Repository repolist.Repository
}

type repoOutcome struct {
	Index int
	Deps  map[string]interface{}
	Err   error
	// Timings holds the seconds spent in each plumbing item.
	Timings map[string]float64
	// Skipped is true if the plumbing did not start because the run was canceled.
	Skipped bool
}

// Run method executes the pipeline.
//
// `repos` is the list of analysed repositories.
//
// Returns the mapping from each LeafPipelineItem to the corresponding analysis result.
// There is always a "nil" record with CommonAnalysisResult.
func (pipeline *Pipeline) Run(ctx context.Context, repos []repolist.Repository) (
	map[LeafPipelineItem]interface{}, error) {
	startRunTime := time.Now()
	if pipeline.DryRun {
		return nil, errors.New("the pipeline was initialized in the dry run mode")
	}
	onProgress := pipeline.OnProgress
	if onProgress == nil {
		onProgress = func(int, int, string) {}
	}
	var plumbing []PipelineItem
	var leaves []LeafPipelineItem
	for _, item := range pipeline.items {
		if leaf, ok := item.(LeafPipelineItem); ok {
			leaves = append(leaves, leaf)
		} else {
			plumbing = append(plumbing, item)
		}
	}
	runTimePerItem := map[string]float64{}
	failed := map[string]string{}
	progressSteps := len(repos) + 1

	workers := pipeline.Workers
	if workers <= 0 {
		workers = 1
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool := tunny.NewFunc(workers, func(payload interface{}) interface{} {
		return pipeline.runPlumbing(runCtx, plumbing, payload.(repoTask))
	})
	defer pool.Close()

	// a slot is taken before the plumbing starts and returned after the outcome is handled
	slots := make(chan struct{}, workers)
	outcomes := make(chan repoOutcome)
	go func() {
		var wg sync.WaitGroup
		for i, repo := range repos {
			task := repoTask{Index: i, Repository: repo}
			slots <- struct{}{}
			if err := runCtx.Err(); err != nil {
				<-slots
				outcomes <- repoOutcome{Index: i, Err: err, Skipped: true}
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes <- pool.Process(task).(repoOutcome)
			}()
		}
		wg.Wait()
		close(outcomes)
	}()

	// leaves see the repositories in the list order
	pending := map[int]repoOutcome{}
	next := 0
	var runErr error
	for outcome := range outcomes {
		if runErr != nil {
			pipeline.release(plumbing, outcome.Deps)
		} else {
			pending[outcome.Index] = outcome
			runErr = pipeline.drain(runCtx, pending, &next, repos, plumbing, leaves,
				failed, runTimePerItem, onProgress)
			if runErr != nil {
				cancel()
				for _, rest := range pending {
					pipeline.release(plumbing, rest.Deps)
				}
			}
		}
		if !outcome.Skipped {
			<-slots
		}
	}
	for _, item := range pipeline.items {
		if disposable, ok := item.(DisposablePipelineItem); ok {
			disposable.Dispose()
		}
	}
	if runErr != nil {
		return nil, runErr
	}
	onProgress(progressSteps, progressSteps, MessageFinalize)
	result := map[LeafPipelineItem]interface{}{}
	for _, leaf := range leaves {
		result[leaf] = leaf.Finalize()
	}
	window, _ := pipeline.facts[FactWindow].(Window)
	result[nil] = &CommonAnalysisResult{
		BeginTime:      window.Since.Unix(),
		EndTime:        window.Until.Unix(),
		Repositories:   len(repos) - len(failed),
		Failed:         failed,
		RunTime:        time.Since(startRunTime),
		RunTimePerItem: runTimePerItem,
	}
	return result, nil
}

// drain feeds the leaves with the consecutive outcomes starting from `next`. It returns
// the error which must stop the run.
func (pipeline *Pipeline) drain(ctx context.Context, pending map[int]repoOutcome, next *int,
	repos []repolist.Repository, plumbing []PipelineItem, leaves []LeafPipelineItem,
	failed map[string]string, runTimePerItem map[string]float64,
	onProgress func(int, int, string)) error {
	progressSteps := len(repos) + 1
	for {
		current, exists := pending[*next]
		if !exists {
			return nil
		}
		delete(pending, *next)
		*next++
		repo := repos[current.Index]
		onProgress(*next, progressSteps, repo.FullName())
		for name, seconds := range current.Timings {
			runTimePerItem[name] += seconds
		}
		if current.Err == nil {
			current.Err = pipeline.runLeaves(ctx, leaves, current.Deps, runTimePerItem)
		}
		pipeline.release(plumbing, current.Deps)
		if current.Err == nil {
			continue
		}
		failed[repo.FullName()] = current.Err.Error()
		pipeline.l.Errorf("%s: %v", repo.FullName(), current.Err)
		if pipeline.FailFast || errors.Cause(current.Err) == context.Canceled {
			return errors.Wrapf(current.Err, "%s", repo.FullName())
		}
	}
}

func (pipeline *Pipeline) runPlumbing(
	ctx context.Context, items []PipelineItem, task repoTask) (outcome repoOutcome) {
	outcome = repoOutcome{
		Index:   task.Index,
		Timings: map[string]float64{},
		Deps: map[string]interface{}{
			DependencyRepository: task.Repository,
			DependencyIndex:      task.Index,
		},
	}
	defer func() {
		if r := recover(); r != nil {
			pipeline.l.Criticalf("%s panicked on %s: %v\n%s",
				"pipeline", task.Repository.FullName(), r, debug.Stack())
			outcome.Err = errors.Errorf("panic: %v", r)
		}
	}()
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			outcome.Err = err
			return
		}
		startTime := time.Now()
		update, err := item.Consume(ctx, outcome.Deps)
		outcome.Timings[item.Name()] += time.Since(startTime).Seconds()
		if err != nil {
			outcome.Err = errors.Wrapf(err, "%s failed", item.Name())
			return
		}
		for key, val := range update {
			outcome.Deps[key] = val
		}
	}
	return
}

func (pipeline *Pipeline) runLeaves(ctx context.Context, leaves []LeafPipelineItem,
	deps map[string]interface{}, runTimePerItem map[string]float64) error {
	for _, leaf := range leaves {
		startTime := time.Now()
		_, err := leaf.Consume(ctx, deps)
		runTimePerItem[leaf.Name()] += time.Since(startTime).Seconds()
		if err != nil {
			return errors.Wrapf(err, "%s failed", leaf.Name())
		}
	}
	return nil
}

func (pipeline *Pipeline) release(items []PipelineItem, deps map[string]interface{}) {
	if deps == nil {
		return
	}
	for _, item := range items {
		if releasable, ok := item.(ReleasablePipelineItem); ok {
			releasable.Release(deps)
		}
	}
}
