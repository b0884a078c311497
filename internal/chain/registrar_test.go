package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notary/internal/contracts/models"
)

// Well-known development key; never funded on a real network.
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

// stubBackend fails the test on any network use.
type stubBackend struct {
	Backend
}

func TestRegistrarWithoutKeyIsDisabled(t *testing.T) {
	metrics := NewMetricsWithRegisterer(prometheus.NewRegistry())
	r, err := NewRegistrar(context.Background(), stubBackend{}, RegistrarConfig{
		RegistryAddress: "0x00000000000000000000000000000000000000aa",
	}, WithRegistrarMetrics(metrics))
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	ref, err := r.RegisterCreate(context.Background(), CreateParams{ContractID: testContractID, HashPDF: testHash})
	require.NoError(t, err)
	assert.Equal(t, models.TxDisabled, ref.Kind())

	ref, err = r.RegisterSigned(context.Background(), SignedParams{ContractID: testContractID})
	require.NoError(t, err)
	assert.Equal(t, models.TxDisabled, ref.Kind())

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Registrations.WithLabelValues(MethodCreateContract, "disabled")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Registrations.WithLabelValues(MethodMarkSigned, "disabled")))
}

func TestRegistrarZeroKeyIsDisabled(t *testing.T) {
	r, err := NewRegistrar(context.Background(), stubBackend{}, RegistrarConfig{
		PrivateKey:      "0x0000000000000000000000000000000000000000000000000000000000000000",
		RegistryAddress: "0x00000000000000000000000000000000000000aa",
	})
	require.NoError(t, err)
	assert.False(t, r.Enabled())
}

func TestRegistrarZeroRegistryIsDisabled(t *testing.T) {
	r, err := NewRegistrar(context.Background(), stubBackend{}, RegistrarConfig{
		PrivateKey:      testPrivateKey,
		RegistryAddress: "0x0000000000000000000000000000000000000000",
		ChainID:         31337,
	})
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	ref, err := r.RegisterCreate(context.Background(), CreateParams{ContractID: testContractID, HashPDF: testHash})
	require.NoError(t, err)
	assert.Equal(t, models.TxDisabled, ref.Kind())
}

func TestRegistrarTenantOverrideEnablesRegistry(t *testing.T) {
	r, err := NewRegistrar(context.Background(), stubBackend{}, RegistrarConfig{
		PrivateKey: testPrivateKey,
		ChainID:    31337,
	})
	require.NoError(t, err)
	assert.False(t, r.Enabled())

	addr, ok := r.resolve("0x00000000000000000000000000000000000000aa")
	assert.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000aa"), addr)
}

func TestRegistrarValidatesParametersBeforeSubmitting(t *testing.T) {
	r, err := NewRegistrar(context.Background(), stubBackend{}, RegistrarConfig{
		PrivateKey:      testPrivateKey,
		RegistryAddress: "0x00000000000000000000000000000000000000aa",
		ChainID:         31337,
	})
	require.NoError(t, err)
	require.True(t, r.Enabled())

	_, err = r.RegisterCreate(context.Background(), CreateParams{ContractID: "not-hex", HashPDF: testHash})
	assert.ErrorContains(t, err, "contract id")

	_, err = r.RegisterCreate(context.Background(), CreateParams{ContractID: testContractID, HashPDF: "0x12"})
	assert.ErrorContains(t, err, "pdf hash")

	_, err = r.RegisterCreate(context.Background(), CreateParams{
		ContractID: testContractID, HashPDF: testHash, Signers: []string{"alice@example.com"},
	})
	assert.ErrorContains(t, err, "invalid signer address")

	_, err = r.RegisterSigned(context.Background(), SignedParams{
		ContractID: testContractID, HashEvidence: testHash, SignerAddress: "0x12",
	})
	assert.ErrorContains(t, err, "invalid signer address")
}

func TestRegistrarRejectsBadConfig(t *testing.T) {
	_, err := NewRegistrar(context.Background(), stubBackend{}, RegistrarConfig{RegistryAddress: "nope"})
	assert.Error(t, err)

	_, err = NewRegistrar(context.Background(), stubBackend{}, RegistrarConfig{PrivateKey: "zz", ChainID: 1})
	assert.Error(t, err)
}
