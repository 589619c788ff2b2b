package domain

import (
	"github.com/yungbote/capacity-checker/internal/domain/capacity"
)

const (
	CheckpointRunning   = capacity.CheckpointRunning
	CheckpointCompleted = capacity.CheckpointCompleted
	CheckpointAbandoned = capacity.CheckpointAbandoned
)

type (
	ComponentRecord      = capacity.ComponentRecord
	UnitRegistryEntry    = capacity.UnitRegistryEntry
	RebuildCheckpoint    = capacity.RebuildCheckpoint
	CompanyIndexEntry    = capacity.CompanyIndexEntry
	CompanyIndexStats    = capacity.CompanyIndexStats
	CompanyIndex         = capacity.CompanyIndex
	LocationMappingEntry = capacity.LocationMappingEntry
	LocationMapping      = capacity.LocationMapping
	CacheNamespace       = capacity.CacheNamespace
	CacheEnvelope        = capacity.CacheEnvelope
)
