package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"cna-data-service/internal/ops"
)

type fileCheckList []ops.FileCheck

func (l *fileCheckList) String() string { return fmt.Sprintf("%d checks", len(*l)) }

func (l *fileCheckList) Set(value string) error {
	check, err := ops.ParseFileCheck(value)
	if err != nil {
		return err
	}
	*l = append(*l, check)
	return nil
}

func main() {
	var checks fileCheckList
	root := flag.String("root", ".", "Directory the data paths are relative to")
	flag.Var(&checks, "file", "Freshness rule path:max_age_sec[:required|optional], repeatable")
	flag.Parse()

	if len(checks) == 0 {
		checks = ops.DefaultChecks()
	}

	report := ops.CheckAll(*root, checks, time.Now())
	encoded, err := json.Marshal(report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to encode report: %v\n", err)
		os.Exit(2)
	}
	fmt.Println(string(encoded))

	if !report.OK {
		os.Exit(1)
	}
}
