// Package pb contains the Protocol Buffers messages described in pb.proto.
package pb

import (
	proto "github.com/gogo/protobuf/proto"
)

type Metadata struct {
	Version        int32              `protobuf:"varint,1,opt,name=version,proto3" json:"version,omitempty"`
	Hash           string             `protobuf:"bytes,2,opt,name=hash,proto3" json:"hash,omitempty"`
	BeginUnixTime  int64              `protobuf:"varint,3,opt,name=begin_unix_time,json=beginUnixTime,proto3" json:"begin_unix_time,omitempty"`
	EndUnixTime    int64              `protobuf:"varint,4,opt,name=end_unix_time,json=endUnixTime,proto3" json:"end_unix_time,omitempty"`
	Repositories   int32              `protobuf:"varint,5,opt,name=repositories,proto3" json:"repositories,omitempty"`
	RunTime        int64              `protobuf:"varint,6,opt,name=run_time,json=runTime,proto3" json:"run_time,omitempty"`
	RunTimePerItem map[string]float64 `protobuf:"bytes,7,rep,name=run_time_per_item,json=runTimePerItem,proto3" json:"run_time_per_item,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"fixed64,2,opt,name=value,proto3"`
	Failed         map[string]string  `protobuf:"bytes,8,rep,name=failed,proto3" json:"failed,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (m *Metadata) Reset()         { *m = Metadata{} }
func (m *Metadata) String() string { return proto.CompactTextString(m) }
func (*Metadata) ProtoMessage()    {}

type CommitFrequencyRecord struct {
	Repository        string  `protobuf:"bytes,1,opt,name=repository,proto3" json:"repository,omitempty"`
	Commits           int32   `protobuf:"varint,2,opt,name=commits,proto3" json:"commits,omitempty"`
	CommitsPerWeek    float64 `protobuf:"fixed64,3,opt,name=commits_per_week,json=commitsPerWeek,proto3" json:"commits_per_week,omitempty"`
	CommitsPerWeekday float64 `protobuf:"fixed64,4,opt,name=commits_per_weekday,json=commitsPerWeekday,proto3" json:"commits_per_weekday,omitempty"`
	ActiveTicksShare  float64 `protobuf:"fixed64,5,opt,name=active_ticks_share,json=activeTicksShare,proto3" json:"active_ticks_share,omitempty"`
	MedianGapHours    float64 `protobuf:"fixed64,6,opt,name=median_gap_hours,json=medianGapHours,proto3" json:"median_gap_hours,omitempty"`
	MaxGapHours       float64 `protobuf:"fixed64,7,opt,name=max_gap_hours,json=maxGapHours,proto3" json:"max_gap_hours,omitempty"`
}

func (m *CommitFrequencyRecord) Reset()         { *m = CommitFrequencyRecord{} }
func (m *CommitFrequencyRecord) String() string { return proto.CompactTextString(m) }
func (*CommitFrequencyRecord) ProtoMessage()    {}

type CommitFrequencyResults struct {
	Repositories  []*CommitFrequencyRecord `protobuf:"bytes,1,rep,name=repositories,proto3" json:"repositories,omitempty"`
	TickSizeHours int32                    `protobuf:"varint,2,opt,name=tick_size_hours,json=tickSizeHours,proto3" json:"tick_size_hours,omitempty"`
}

func (m *CommitFrequencyResults) Reset()         { *m = CommitFrequencyResults{} }
func (m *CommitFrequencyResults) String() string { return proto.CompactTextString(m) }
func (*CommitFrequencyResults) ProtoMessage()    {}

type BuildDurationRecord struct {
	Repository    string  `protobuf:"bytes,1,opt,name=repository,proto3" json:"repository,omitempty"`
	Runs          int32   `protobuf:"varint,2,opt,name=runs,proto3" json:"runs,omitempty"`
	MeanMinutes   float64 `protobuf:"fixed64,3,opt,name=mean_minutes,json=meanMinutes,proto3" json:"mean_minutes,omitempty"`
	MedianMinutes float64 `protobuf:"fixed64,4,opt,name=median_minutes,json=medianMinutes,proto3" json:"median_minutes,omitempty"`
	P90Minutes    float64 `protobuf:"fixed64,5,opt,name=p90_minutes,json=p90Minutes,proto3" json:"p90_minutes,omitempty"`
	SlowShare     float64 `protobuf:"fixed64,6,opt,name=slow_share,json=slowShare,proto3" json:"slow_share,omitempty"`
}

func (m *BuildDurationRecord) Reset()         { *m = BuildDurationRecord{} }
func (m *BuildDurationRecord) String() string { return proto.CompactTextString(m) }
func (*BuildDurationRecord) ProtoMessage()    {}

type BuildDurationResults struct {
	Repositories     []*BuildDurationRecord `protobuf:"bytes,1,rep,name=repositories,proto3" json:"repositories,omitempty"`
	SlowBuildMinutes float64                `protobuf:"fixed64,2,opt,name=slow_build_minutes,json=slowBuildMinutes,proto3" json:"slow_build_minutes,omitempty"`
}

func (m *BuildDurationResults) Reset()         { *m = BuildDurationResults{} }
func (m *BuildDurationResults) String() string { return proto.CompactTextString(m) }
func (*BuildDurationResults) ProtoMessage()    {}

type BrokenBuildRecord struct {
	Repository    string  `protobuf:"bytes,1,opt,name=repository,proto3" json:"repository,omitempty"`
	Runs          int32   `protobuf:"varint,2,opt,name=runs,proto3" json:"runs,omitempty"`
	Failures      int32   `protobuf:"varint,3,opt,name=failures,proto3" json:"failures,omitempty"`
	Stretches     int32   `protobuf:"varint,4,opt,name=stretches,proto3" json:"stretches,omitempty"`
	LongStretches int32   `protobuf:"varint,5,opt,name=long_stretches,json=longStretches,proto3" json:"long_stretches,omitempty"`
	LongestDays   float64 `protobuf:"fixed64,6,opt,name=longest_days,json=longestDays,proto3" json:"longest_days,omitempty"`
	MeanDays      float64 `protobuf:"fixed64,7,opt,name=mean_days,json=meanDays,proto3" json:"mean_days,omitempty"`
	Open          bool    `protobuf:"varint,8,opt,name=open,proto3" json:"open,omitempty"`
}

func (m *BrokenBuildRecord) Reset()         { *m = BrokenBuildRecord{} }
func (m *BrokenBuildRecord) String() string { return proto.CompactTextString(m) }
func (*BrokenBuildRecord) ProtoMessage()    {}

type BrokenBuildResults struct {
	Repositories []*BrokenBuildRecord `protobuf:"bytes,1,rep,name=repositories,proto3" json:"repositories,omitempty"`
	BrokenDays   float64              `protobuf:"fixed64,2,opt,name=broken_days,json=brokenDays,proto3" json:"broken_days,omitempty"`
}

func (m *BrokenBuildResults) Reset()         { *m = BrokenBuildResults{} }
func (m *BrokenBuildResults) String() string { return proto.CompactTextString(m) }
func (*BrokenBuildResults) ProtoMessage()    {}

type CoverageRecord struct {
	Repository    string   `protobuf:"bytes,1,opt,name=repository,proto3" json:"repository,omitempty"`
	Found         bool     `protobuf:"varint,2,opt,name=found,proto3" json:"found,omitempty"`
	Percent       float64  `protobuf:"fixed64,3,opt,name=percent,proto3" json:"percent,omitempty"`
	Source        string   `protobuf:"bytes,4,opt,name=source,proto3" json:"source,omitempty"`
	Tool          string   `protobuf:"bytes,5,opt,name=tool,proto3" json:"tool,omitempty"`
	RunId         int64    `protobuf:"varint,6,opt,name=run_id,json=runId,proto3" json:"run_id,omitempty"`
	TestsInCi     bool     `protobuf:"varint,7,opt,name=tests_in_ci,json=testsInCi,proto3" json:"tests_in_ci,omitempty"`
	CoverageInCi  bool     `protobuf:"varint,8,opt,name=coverage_in_ci,json=coverageInCi,proto3" json:"coverage_in_ci,omitempty"`
	TestCommands  []string `protobuf:"bytes,9,rep,name=test_commands,json=testCommands,proto3" json:"test_commands,omitempty"`
	CoverageTools []string `protobuf:"bytes,10,rep,name=coverage_tools,json=coverageTools,proto3" json:"coverage_tools,omitempty"`
}

func (m *CoverageRecord) Reset()         { *m = CoverageRecord{} }
func (m *CoverageRecord) String() string { return proto.CompactTextString(m) }
func (*CoverageRecord) ProtoMessage()    {}

type CoverageResults struct {
	Repositories []*CoverageRecord `protobuf:"bytes,1,rep,name=repositories,proto3" json:"repositories,omitempty"`
}

func (m *CoverageResults) Reset()         { *m = CoverageResults{} }
func (m *CoverageResults) String() string { return proto.CompactTextString(m) }
func (*CoverageResults) ProtoMessage()    {}

type TestFootprintRecord struct {
	Repository      string  `protobuf:"bytes,1,opt,name=repository,proto3" json:"repository,omitempty"`
	Files           int32   `protobuf:"varint,2,opt,name=files,proto3" json:"files,omitempty"`
	TestFiles       int32   `protobuf:"varint,3,opt,name=test_files,json=testFiles,proto3" json:"test_files,omitempty"`
	InlineTestFiles int32   `protobuf:"varint,4,opt,name=inline_test_files,json=inlineTestFiles,proto3" json:"inline_test_files,omitempty"`
	CodeLines       int64   `protobuf:"varint,5,opt,name=code_lines,json=codeLines,proto3" json:"code_lines,omitempty"`
	TestLines       int64   `protobuf:"varint,6,opt,name=test_lines,json=testLines,proto3" json:"test_lines,omitempty"`
	TestRatio       float64 `protobuf:"fixed64,7,opt,name=test_ratio,json=testRatio,proto3" json:"test_ratio,omitempty"`
	PrimaryLanguage string  `protobuf:"bytes,8,opt,name=primary_language,json=primaryLanguage,proto3" json:"primary_language,omitempty"`
}

func (m *TestFootprintRecord) Reset()         { *m = TestFootprintRecord{} }
func (m *TestFootprintRecord) String() string { return proto.CompactTextString(m) }
func (*TestFootprintRecord) ProtoMessage()    {}

type TestFootprintResults struct {
	Repositories []*TestFootprintRecord `protobuf:"bytes,1,rep,name=repositories,proto3" json:"repositories,omitempty"`
}

func (m *TestFootprintResults) Reset()         { *m = TestFootprintResults{} }
func (m *TestFootprintResults) String() string { return proto.CompactTextString(m) }
func (*TestFootprintResults) ProtoMessage()    {}

type CITheaterRecord struct {
	Repository         string  `protobuf:"bytes,1,opt,name=repository,proto3" json:"repository,omitempty"`
	InfrequentCommits  bool    `protobuf:"varint,2,opt,name=infrequent_commits,json=infrequentCommits,proto3" json:"infrequent_commits,omitempty"`
	SlowBuilds         bool    `protobuf:"varint,3,opt,name=slow_builds,json=slowBuilds,proto3" json:"slow_builds,omitempty"`
	LongBrokenBuilds   bool    `protobuf:"varint,4,opt,name=long_broken_builds,json=longBrokenBuilds,proto3" json:"long_broken_builds,omitempty"`
	LowCoverage        bool    `protobuf:"varint,5,opt,name=low_coverage,json=lowCoverage,proto3" json:"low_coverage,omitempty"`
	AntiPatterns       int32   `protobuf:"varint,6,opt,name=anti_patterns,json=antiPatterns,proto3" json:"anti_patterns,omitempty"`
	CommitsPerWeekday  float64 `protobuf:"fixed64,7,opt,name=commits_per_weekday,json=commitsPerWeekday,proto3" json:"commits_per_weekday,omitempty"`
	Builds             int32   `protobuf:"varint,8,opt,name=builds,proto3" json:"builds,omitempty"`
	MedianBuildMinutes float64 `protobuf:"fixed64,9,opt,name=median_build_minutes,json=medianBuildMinutes,proto3" json:"median_build_minutes,omitempty"`
	LongestBrokenDays  float64 `protobuf:"fixed64,10,opt,name=longest_broken_days,json=longestBrokenDays,proto3" json:"longest_broken_days,omitempty"`
	CoverageFound      bool    `protobuf:"varint,11,opt,name=coverage_found,json=coverageFound,proto3" json:"coverage_found,omitempty"`
	CoveragePercent    float64 `protobuf:"fixed64,12,opt,name=coverage_percent,json=coveragePercent,proto3" json:"coverage_percent,omitempty"`
}

func (m *CITheaterRecord) Reset()         { *m = CITheaterRecord{} }
func (m *CITheaterRecord) String() string { return proto.CompactTextString(m) }
func (*CITheaterRecord) ProtoMessage()    {}

type CITheaterResults struct {
	Repositories         []*CITheaterRecord `protobuf:"bytes,1,rep,name=repositories,proto3" json:"repositories,omitempty"`
	Totals               map[string]int32   `protobuf:"bytes,2,rep,name=totals,proto3" json:"totals,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"varint,2,opt,name=value,proto3"`
	MinCommitsPerWeekday float64            `protobuf:"fixed64,3,opt,name=min_commits_per_weekday,json=minCommitsPerWeekday,proto3" json:"min_commits_per_weekday,omitempty"`
	SlowBuildMinutes     float64            `protobuf:"fixed64,4,opt,name=slow_build_minutes,json=slowBuildMinutes,proto3" json:"slow_build_minutes,omitempty"`
	BrokenDays           float64            `protobuf:"fixed64,5,opt,name=broken_days,json=brokenDays,proto3" json:"broken_days,omitempty"`
	MinCoverage          float64            `protobuf:"fixed64,6,opt,name=min_coverage,json=minCoverage,proto3" json:"min_coverage,omitempty"`
}

func (m *CITheaterResults) Reset()         { *m = CITheaterResults{} }
func (m *CITheaterResults) String() string { return proto.CompactTextString(m) }
func (*CITheaterResults) ProtoMessage()    {}

type AnalysisResults struct {
	Header *Metadata `protobuf:"bytes,1,opt,name=header,proto3" json:"header,omitempty"`
	// the mapped values are dynamic messages which require the second parsing pass.
	Contents map[string][]byte `protobuf:"bytes,2,rep,name=contents,proto3" json:"contents,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"bytes,2,opt,name=value,proto3"`
}

func (m *AnalysisResults) Reset()         { *m = AnalysisResults{} }
func (m *AnalysisResults) String() string { return proto.CompactTextString(m) }
func (*AnalysisResults) ProtoMessage()    {}

func init() {
	proto.RegisterType((*Metadata)(nil), "citheater.Metadata")
	proto.RegisterType((*CommitFrequencyRecord)(nil), "citheater.CommitFrequencyRecord")
	proto.RegisterType((*CommitFrequencyResults)(nil), "citheater.CommitFrequencyResults")
	proto.RegisterType((*BuildDurationRecord)(nil), "citheater.BuildDurationRecord")
	proto.RegisterType((*BuildDurationResults)(nil), "citheater.BuildDurationResults")
	proto.RegisterType((*BrokenBuildRecord)(nil), "citheater.BrokenBuildRecord")
	proto.RegisterType((*BrokenBuildResults)(nil), "citheater.BrokenBuildResults")
	proto.RegisterType((*CoverageRecord)(nil), "citheater.CoverageRecord")
	proto.RegisterType((*CoverageResults)(nil), "citheater.CoverageResults")
	proto.RegisterType((*TestFootprintRecord)(nil), "citheater.TestFootprintRecord")
	proto.RegisterType((*TestFootprintResults)(nil), "citheater.TestFootprintResults")
	proto.RegisterType((*CITheaterRecord)(nil), "citheater.CITheaterRecord")
	proto.RegisterType((*CITheaterResults)(nil), "citheater.CITheaterResults")
	proto.RegisterType((*AnalysisResults)(nil), "citheater.AnalysisResults")
}
