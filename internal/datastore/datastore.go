package datastore

import (
	"fmt"

	"github.com/hallpass-app/hallpass/internal/kv"
	"github.com/hallpass-app/hallpass/internal/kv/bbolt"
	"github.com/hallpass-app/hallpass/internal/kv/firestore"
	"github.com/hallpass-app/hallpass/internal/kv/postgres"
	"github.com/spf13/viper"
)

// NewStore creates a new Store for the backend named by datastore.type.
// readOnly only applies to bbolt.
func NewStore(readOnly bool) (kv.Storer, error) {
	datastoreType := viper.GetString("datastore.type")
	switch datastoreType {
	case "bbolt":
		if readOnly {
			return bbolt.NewReadOnlyStore()
		}
		return bbolt.NewReadWriteStore()
	case "firestore":
		projectID := viper.GetString("datastore.project_id")
		if projectID == "" {
			return nil, fmt.Errorf("datastore.project_id must be set when using firestore")
		}
		return firestore.NewStore(projectID)
	case "postgres":
		dsn := viper.GetString("datastore.dsn")
		if dsn == "" {
			return nil, fmt.Errorf("datastore.dsn must be set when using postgres")
		}
		return postgres.NewStore(dsn)
	default:
		return nil, fmt.Errorf("unknown datastore type: %s", datastoreType)
	}
}

// NewTestStore creates a new Store for testing purposes.
func NewTestStore(dbPath string) (kv.Storer, error) {
	return bbolt.NewTestStore(dbPath)
}
