package main

import (
	"testing"

	"github.com/frozenspider/chat-history-manager-backend/model"
	"github.com/frozenspider/chat-history-manager-backend/usecase/merge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDefaultUserOptions_AddsUnmatchedSlaveUsers(t *testing.T) {
	master := []model.User{
		{ID: 1, Username: strp("alice")},
	}
	slave := []model.User{
		{ID: 10, Username: strp("alice")},
		{ID: 20, Username: strp("carol")},
		{ID: 30},
	}

	opts := buildDefaultUserOptions(master, slave)
	require.Len(t, opts, 2)
	for _, o := range opts {
		assert.Equal(t, merge.UserAdd, o.Label)
		assert.NotEqual(t, model.UserID(10), o.Slave.ID, "a matching username isn't re-added")
	}
}

func TestBuildDefaultUserOptions_NoSlaveUsersMeansNoOptions(t *testing.T) {
	opts := buildDefaultUserOptions([]model.User{{ID: 1, Username: strp("alice")}}, nil)
	assert.Empty(t, opts)
}
