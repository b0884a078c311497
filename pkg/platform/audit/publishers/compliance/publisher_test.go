package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/audit/store/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error {
	return errors.New("outbox unavailable")
}

func TestEmitPersistsWithComplianceCategory(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := New(store)

	err := pub.Emit(context.Background(), audit.Event{
		ContractID: "0xabc",
		Action:     string(audit.EventContractSigned),
		Category:   audit.CategoryOperations,
	})
	require.NoError(t, err)

	events, err := store.ListByContract(context.Background(), "0xabc")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestEmitRequiresContractAndAction(t *testing.T) {
	pub := New(memory.NewInMemoryStore())

	assert.Error(t, pub.Emit(context.Background(), audit.Event{Action: "contract_created"}))
	assert.Error(t, pub.Emit(context.Background(), audit.Event{ContractID: "0xabc"}))
}

func TestEmitFailsClosed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	pub := New(failingStore{}, WithMetrics(m))

	err := pub.Emit(context.Background(), audit.Event{ContractID: "0xabc", Action: "contract_created"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outbox unavailable")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.PersistFailures))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.EventsEmitted))
}
