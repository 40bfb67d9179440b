package main

import (
	"context"
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/config"
	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/pkg/digestcache"
	"github.com/frozenspider/chat-history-manager-backend/storage/sqlite"
	"github.com/frozenspider/chat-history-manager-backend/usecase/merge"
	"github.com/spf13/cobra"
)

var mergeFlags struct {
	masterDB      string
	masterBaseDir string
	masterDataset string
	slaveDB       string
	slaveBaseDir  string
	slaveDataset  string
	targetDB      string
	targetBaseDir string
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Analyze and merge a master and slave dataset into a target database",
	Long: `merge runs the same diff analyze performs, then immediately executes it:
every master chat not matched to a slave chat is kept as is, every slave
chat not matched to a master chat is added whole, and matched chats are
combined with the diff engine's default resolution (conflicts resolve in
the slave's favor). Every slave user whose username isn't already present
in the master dataset is added; the rest of the master's users are kept
unchanged.`,
	RunE: runMerge,
}

func init() {
	f := mergeCmd.Flags()
	f.StringVar(&mergeFlags.masterDB, "master-db", "", "path to the master SQLite database (required)")
	f.StringVar(&mergeFlags.masterBaseDir, "master-base-dir", "", "master dataset's media base directory (required)")
	f.StringVar(&mergeFlags.masterDataset, "master-dataset", "", "master dataset id (default: the database's sole dataset)")
	f.StringVar(&mergeFlags.slaveDB, "slave-db", "", "path to the slave SQLite database (required)")
	f.StringVar(&mergeFlags.slaveBaseDir, "slave-base-dir", "", "slave dataset's media base directory (required)")
	f.StringVar(&mergeFlags.slaveDataset, "slave-dataset", "", "slave dataset id (default: the database's sole dataset)")
	f.StringVar(&mergeFlags.targetDB, "target-db", "", "path to the target SQLite database, created if missing (required)")
	f.StringVar(&mergeFlags.targetBaseDir, "target-base-dir", "", "target dataset's media base directory (required)")
	mergeCmd.MarkFlagRequired("master-db")
	mergeCmd.MarkFlagRequired("master-base-dir")
	mergeCmd.MarkFlagRequired("slave-db")
	mergeCmd.MarkFlagRequired("slave-base-dir")
	mergeCmd.MarkFlagRequired("target-db")
	mergeCmd.MarkFlagRequired("target-base-dir")
	rootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	masterRepo, err := sqlite.Open(mergeFlags.masterDB, mergeFlags.masterBaseDir, logger)
	if err != nil {
		return fmt.Errorf("opening master dataset: %w", err)
	}
	defer masterRepo.Close()

	slaveRepo, err := sqlite.Open(mergeFlags.slaveDB, mergeFlags.slaveBaseDir, logger)
	if err != nil {
		return fmt.Errorf("opening slave dataset: %w", err)
	}
	defer slaveRepo.Close()

	targetRepo, err := sqlite.Open(mergeFlags.targetDB, mergeFlags.targetBaseDir, logger)
	if err != nil {
		return fmt.Errorf("opening target dataset: %w", err)
	}
	defer targetRepo.Close()
	targetRepo.SetBackupRetention(config.BackupRetentionCount)

	masterDS, err := resolveDataset(ctx, masterRepo, mergeFlags.masterDataset)
	if err != nil {
		return fmt.Errorf("resolving master dataset: %w", err)
	}
	slaveDS, err := resolveDataset(ctx, slaveRepo, mergeFlags.slaveDataset)
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
	chatOptions, err := merge.Analyze(ctx, logger, fc, masterRepo, masterDS, slaveRepo, slaveDS, pairs)
	if err != nil {
		return fmt.Errorf("analyzing: %w", err)
	}

	masterUsers, err := masterRepo.Users(ctx, masterDS)
	if err != nil {
		return fmt.Errorf("loading master users: %w", err)
	}
	slaveUsers, err := slaveRepo.Users(ctx, slaveDS)
	if err != nil {
		return fmt.Errorf("loading slave users: %w", err)
	}
	userOptions := buildDefaultUserOptions(masterUsers, slaveUsers)

	newDS, _, err := merge.Merge(ctx, logger, fc, masterRepo, masterDS, slaveRepo, slaveDS,
		userOptions, chatOptions, targetRepo, cliProgress{})
	if err != nil {
		return fmt.Errorf("merging: %w", err)
	}

	fmt.Printf("new dataset: %s\n", newDS)
	return nil
}

// buildDefaultUserOptions adds every slave user whose username doesn't
// match an existing master username; matched and unmentioned master users
// are left alone, since the executor keeps every master user not named by
// an option.
func buildDefaultUserOptions(masterUsers, slaveUsers []model.User) []merge.UserMergeOption {
	masterUsernames := make(map[string]bool, len(masterUsers))
	for _, u := range masterUsers {
		if u.Username != nil {
			masterUsernames[*u.Username] = true
		}
	}

	var options []merge.UserMergeOption
	for _, u := range slaveUsers {
		if u.Username != nil && masterUsernames[*u.Username] {
			continue
		}
		uCopy := u
		options = append(options, merge.UserMergeOption{Label: merge.UserAdd, Slave: &uCopy})
	}
	return options
}
