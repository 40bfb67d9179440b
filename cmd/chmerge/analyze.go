package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/pkg/digestcache"
	"github.com/frozenspider/chat-history-manager-backend/storage/sqlite"
	"github.com/frozenspider/chat-history-manager-backend/usecase/merge"
	"github.com/spf13/cobra"
)

var analyzeFlags struct {
	masterDB      string
	masterBaseDir string
	masterDataset string
	slaveDB       string
	slaveBaseDir  string
	slaveDataset  string
	out           string
}

// chatReport summarizes one ChatMergeOption for human or machine
// consumption, leaving out the raw message ranges a full ChatMergeOption
// carries: those only round-trip meaningfully alongside the two source
// databases they were read from, not as standalone JSON.
type chatReport struct {
	Label         string         `json:"label"`
	MasterChatID  *model.ChatID  `json:"master_chat_id,omitempty"`
	SlaveChatID   *model.ChatID  `json:"slave_chat_id,omitempty"`
	SegmentCounts map[string]int `json:"segment_counts,omitempty"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Diff a master and slave dataset and report what a merge would do",
	RunE:  runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.masterDB, "master-db", "", "path to the master SQLite database (required)")
	f.StringVar(&analyzeFlags.masterBaseDir, "master-base-dir", "", "master dataset's media base directory (required)")
	f.StringVar(&analyzeFlags.masterDataset, "master-dataset", "", "master dataset id (default: the database's sole dataset)")
	f.StringVar(&analyzeFlags.slaveDB, "slave-db", "", "path to the slave SQLite database (required)")
	f.StringVar(&analyzeFlags.slaveBaseDir, "slave-base-dir", "", "slave dataset's media base directory (required)")
	f.StringVar(&analyzeFlags.slaveDataset, "slave-dataset", "", "slave dataset id (default: the database's sole dataset)")
	f.StringVar(&analyzeFlags.out, "out", "", "write the JSON report to this path instead of stdout")
	analyzeCmd.MarkFlagRequired("master-db")
	analyzeCmd.MarkFlagRequired("master-base-dir")
	analyzeCmd.MarkFlagRequired("slave-db")
	analyzeCmd.MarkFlagRequired("slave-base-dir")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	masterRepo, err := sqlite.Open(analyzeFlags.masterDB, analyzeFlags.masterBaseDir, logger)
	if err != nil {
		return fmt.Errorf("opening master dataset: %w", err)
	}
	defer masterRepo.Close()

	slaveRepo, err := sqlite.Open(analyzeFlags.slaveDB, analyzeFlags.slaveBaseDir, logger)
	if err != nil {
		return fmt.Errorf("opening slave dataset: %w", err)
	}
	defer slaveRepo.Close()

	masterDS, err := resolveDataset(ctx, masterRepo, analyzeFlags.masterDataset)
	if err != nil {
		return fmt.Errorf("resolving master dataset: %w", err)
	}
	slaveDS, err := resolveDataset(ctx, slaveRepo, analyzeFlags.slaveDataset)
	if err != nil {
		return fmt.Errorf("resolving slave dataset: %w", err)
	}

	masterChats, err := masterRepo.Chats(ctx, masterDS)
	if err != nil {
		return fmt.Errorf("loading master chats: %w", err)
	}
	slaveChats, err := slaveRepo.Chats(ctx, slaveDS)
	if err != nil {
		return fmt.Errorf("loading slave chats: %w", err)
	}
	pairs := pairChats(masterChats, slaveChats)

	fc := digestcache.New()
	options, err := merge.Analyze(ctx, logger, fc, masterRepo, masterDS, slaveRepo, slaveDS, pairs)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}

	reports := make([]chatReport, 0, len(options))
	for _, opt := range options {
		reports = append(reports, summarizeOption(opt))
	}

	out, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if analyzeFlags.out == "" {
		fmt.Println(string(out))
		return nil
	}
	return os.WriteFile(analyzeFlags.out, out, 0o644)
}

func summarizeOption(opt merge.ChatMergeOption) chatReport {
	r := chatReport{}
	switch opt.Label {
	case merge.ChatKeep:
		r.Label = "keep"
	case merge.ChatAdd:
		r.Label = "add"
	case merge.ChatCombine:
		r.Label = "combine"
	}
	if opt.Master != nil {
		id := opt.Master.ID
		r.MasterChatID = &id
	}
	if opt.Slave != nil {
		id := opt.Slave.ID
		r.SlaveChatID = &id
	}
	if len(opt.Resolutions) > 0 {
		counts := make(map[string]int)
		for _, d := range opt.Resolutions {
			counts[decisionLabelName(d.Label)]++
		}
		r.SegmentCounts = counts
	}
	return r
}

func decisionLabelName(l merge.DecisionLabel) string {
	switch l {
	case merge.DecisionRetain:
		return "retain"
	case merge.DecisionAdd:
		return "add"
	case merge.DecisionReplace:
		return "replace"
	case merge.DecisionDontReplace:
		return "dont_replace"
	case merge.DecisionMatch:
		return "match"
	default:
		return "unknown"
	}
}
