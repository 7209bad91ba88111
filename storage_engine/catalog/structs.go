package catalog

import (
	types "ridgedb/types"

	"github.com/dgraph-io/ristretto/v2"
)

type CatalogManager struct {
	dbRoot        string
	currDb        string
	TableToFileId map[string]TableFileMapping
	nextFileID    uint32
	schemaCache   *ristretto.Cache[string, types.TableSchema]
}

type TableFileMapping struct {
	HeapFileID  uint32 `json:"heap_file_id"`
	IndexFileID uint32 `json:"index_file_id"`
}
