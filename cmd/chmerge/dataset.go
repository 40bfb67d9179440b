package main

import (
	"context"
	"fmt"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/storage"
)

// resolveDataset returns idFlag parsed as a DatasetID, or, if idFlag is
// empty, the id of the DAO's sole dataset. It errors if idFlag is empty
// and the DAO holds anything other than exactly one dataset, since there
// is then no unambiguous default to pick.
func resolveDataset(ctx context.Context, dao storage.DAO, idFlag string) (model.DatasetID, error) {
	if idFlag != "" {
		return model.ParseDatasetID(idFlag)
	}
	datasets, err := dao.Datasets(ctx)
	if err != nil {
		return model.DatasetID{}, fmt.Errorf("listing datasets: %w", err)
	}
	if len(datasets) != 1 {
		return model.DatasetID{}, fmt.Errorf("dataset id not given and database holds %d datasets; pass --master-dataset or --slave-dataset explicitly", len(datasets))
	}
	return datasets[0].ID, nil
}
