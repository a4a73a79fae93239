package cmd

import (
	"github.com/hallpass-app/hallpass/internal/datastore"
	"github.com/hallpass-app/hallpass/internal/kv"
)

var datastoreNewStore = func(readOnly bool) (kv.Storer, error) {
	return datastore.NewStore(readOnly)
}
