package main

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/rvishravars/citheater"
	"github.com/rvishravars/citheater/internal/pb"
	"github.com/rvishravars/citheater/internal/storage"
	"github.com/rvishravars/citheater/internal/yaml"
)

func printResults(
	writer io.Writer, runID string, deployed []citheater.LeafPipelineItem,
	results map[citheater.LeafPipelineItem]interface{}) error {
	commonResult := results[nil].(*citheater.CommonAnalysisResult)

	fmt.Fprintln(writer, "citheater:")
	fmt.Fprintf(writer, "  version: %d\n", citheater.BinaryVersion)
	fmt.Fprintln(writer, "  hash:", yaml.SafeString(citheater.BinaryGitHash))
	if runID != "" {
		fmt.Fprintln(writer, "  run_id:", runID)
	}
	fmt.Fprintln(writer, "  repositories:", commonResult.Repositories)
	fmt.Fprintln(writer, "  begin_unix_time:", commonResult.BeginTime)
	fmt.Fprintln(writer, "  end_unix_time:", commonResult.EndTime)
	fmt.Fprintln(writer, "  run_time:", commonResult.RunTime.Nanoseconds()/1e6)
	if len(commonResult.Failed) == 0 {
		fmt.Fprintln(writer, "  failed: {}")
	} else {
		fmt.Fprintln(writer, "  failed:")
		for _, repo := range sortedKeys(commonResult.Failed) {
			fmt.Fprintf(writer, "    %s: %s\n", yaml.SafeString(repo),
				yaml.SafeString(commonResult.Failed[repo]))
		}
	}

	for _, item := range deployed {
		result := results[item]
		fmt.Fprintf(writer, "%s:\n", item.Name())
		if err := item.Serialize(result, false, writer); err != nil {
			return errors.Wrapf(err, "failed to serialize %s", item.Name())
		}
	}
	return nil
}

func protobufResults(
	writer io.Writer, deployed []citheater.LeafPipelineItem,
	results map[citheater.LeafPipelineItem]interface{}) error {

	header := pb.Metadata{
		Version: citheater.BinaryVersion,
		Hash:    citheater.BinaryGitHash,
	}
	results[nil].(*citheater.CommonAnalysisResult).FillMetadata(&header)

	message := pb.AnalysisResults{
		Header:   &header,
		Contents: map[string][]byte{},
	}

	for _, item := range deployed {
		result := results[item]
		buffer := &bytes.Buffer{}
		if err := item.Serialize(result, true, buffer); err != nil {
			return errors.Wrapf(err, "failed to serialize %s", item.Name())
		}
		message.Contents[item.Name()] = buffer.Bytes()
	}

	serialized, err := proto.Marshal(&message)
	if err != nil {
		return errors.Wrap(err, "failed to encode the results")
	}
	_, err = writer.Write(serialized)
	return err
}

// writeCSV saves the tables of the analyses which support them to <dir>/<flag>.csv.
func writeCSV(dir string, deployed []citheater.LeafPipelineItem,
	results map[citheater.LeafPipelineItem]interface{}) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dir)
	}
	for _, item := range deployed {
		tabular, ok := item.(citheater.CSVPipelineItem)
		if !ok {
			continue
		}
		header, rows := tabular.CSV(results[item])
		path := filepath.Join(dir, item.Flag()+".csv")
		file, err := os.Create(path)
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", path)
		}
		writer := csv.NewWriter(file)
		writer.Write(header)
		writer.WriteAll(rows)
		if err = writer.Error(); err == nil {
			err = file.Close()
		} else {
			file.Close()
		}
		if err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
	}
	return nil
}

// storeResults saves the run to the database. Every table row becomes the JSON object
// {column: value} keyed by the analysis and the repository in the first column.
func storeResults(store *storage.Store, deployed []citheater.LeafPipelineItem,
	results map[citheater.LeafPipelineItem]interface{}) (string, error) {
	commonResult := results[nil].(*citheater.CommonAnalysisResult)
	analyses := make([]string, 0, len(deployed))
	for _, item := range deployed {
		analyses = append(analyses, item.Name())
	}
	runID, err := store.BeginRun(runVersion(), commonResult.Repositories+len(commonResult.Failed),
		analyses)
	if err != nil {
		return "", err
	}
	for _, item := range deployed {
		tabular, ok := item.(citheater.CSVPipelineItem)
		if !ok {
			continue
		}
		header, rows := tabular.CSV(results[item])
		for _, row := range rows {
			payload := map[string]string{}
			for i, column := range header {
				if i < len(row) {
					payload[column] = row[i]
				}
			}
			if err = store.SaveResult(runID, item.Name(), row[0], payload); err != nil {
				return runID, err
			}
		}
	}
	return runID, store.FinishRun(runID, commonResult.Failed)
}

func runVersion() string {
	return strconv.Itoa(citheater.BinaryVersion) + "@" + citheater.BinaryGitHash
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
