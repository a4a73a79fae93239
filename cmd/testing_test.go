package cmd

import (
	"testing"

	"github.com/hallpass-app/hallpass/internal/clients/email"
	"github.com/hallpass-app/hallpass/internal/clients/sms"
	"github.com/hallpass-app/hallpass/internal/datastore"
	"github.com/hallpass-app/hallpass/internal/kv"
)

// useMocks points the command constructors at in-memory fakes for the
// duration of a test.
func useMocks(t *testing.T) (*datastore.MockStore, *sms.MockClient, *email.MockClient) {
	t.Helper()
	resetConfig(t)

	store := datastore.NewMockStore()
	smsClient := sms.NewMockClient()
	emailClient := email.NewMockClient()

	origStore, origSMS, origEmail := datastoreNewStore, newSMSClient, newEmailClient
	datastoreNewStore = func(bool) (kv.Storer, error) { return store, nil }
	newSMSClient = func() sms.Client { return smsClient }
	newEmailClient = func() email.Client { return emailClient }
	t.Cleanup(func() {
		datastoreNewStore, newSMSClient, newEmailClient = origStore, origSMS, origEmail
	})

	return store, smsClient, emailClient
}
