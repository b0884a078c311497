package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"notary/internal/contracts/models"
	"notary/pkg/platform/sentinel"
)

// contractStore is the behaviour shared by the in-memory and PostgreSQL stores.
type contractStore interface {
	Create(ctx context.Context, c *models.Contract) error
	GetContractWithSignatures(ctx context.Context, contractID, tenantID string) (*models.Contract, error)
	FindSignature(ctx context.Context, contractID, signerAddress string) (*models.Signature, error)
	AddSignature(ctx context.Context, sig *models.Signature) (models.Status, error)
	List(ctx context.Context, filter models.ListFilter) ([]*models.Contract, int, error)
}

var (
	_ contractStore = (*InMemory)(nil)
	_ contractStore = (*Postgres)(nil)
)

// StoreSuite runs against any contractStore; newStore is called per test.
type StoreSuite struct {
	suite.Suite
	newStore func() contractStore
	store    contractStore
	ctx      context.Context
	base     time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() contractStore { return NewInMemory() }})
}

func (s *StoreSuite) SetupTest() {
	s.store = s.newStore()
	s.ctx = context.Background()
	s.base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) newContract(id, tenant string, offset time.Duration) *models.Contract {
	return &models.Contract{
		ContractID:         id,
		TenantID:           tenant,
		TemplateID:         5,
		Version:            1,
		HashPDF:            "0x" + fmt.Sprintf("%064x", len(id)),
		Pointer:            "uploads/" + id + ".pdf",
		Signers:            []string{"0x742d35Cc6634C0532925a3b844Bc454e4438f44e"},
		Tx:                 models.RecordedTransaction("0x" + fmt.Sprintf("%064x", 1)),
		Status:             models.StatusCreated,
		RequiredSignatures: 2,
		CreatedAt:          s.base.Add(offset),
		CreatedBy:          "user-1",
	}
}

func (s *StoreSuite) newSignature(contractID, signer string, offset time.Duration) *models.Signature {
	return &models.Signature{
		ID:            uuid.New(),
		ContractID:    contractID,
		SignerAddress: signer,
		SignerName:    "Ada",
		EvidenceHash:  "0x" + fmt.Sprintf("%064x", 2),
		Evidence:      map[string]any{"ip": "10.0.0.1"},
		Tx:            models.DisabledTransaction(),
		SignedAt:      s.base.Add(offset),
	}
}

func (s *StoreSuite) TestCreateAndGet() {
	c := s.newContract("0xc1", "core", 0)
	s.Require().NoError(s.store.Create(s.ctx, c))

	got, err := s.store.GetContractWithSignatures(s.ctx, "0xc1", "core")
	s.Require().NoError(err)
	s.Equal(c.HashPDF, got.HashPDF)
	s.Equal(c.Pointer, got.Pointer)
	s.Equal(c.Signers, got.Signers)
	s.True(got.Tx.IsRecorded())
	s.Equal(models.StatusCreated, got.Status)
	s.Empty(got.Signatures)

	s.Run("unscoped lookup ignores tenant", func() {
		_, err := s.store.GetContractWithSignatures(s.ctx, "0xc1", "")
		s.NoError(err)
	})
	s.Run("other tenant cannot see it", func() {
		_, err := s.store.GetContractWithSignatures(s.ctx, "0xc1", "acme")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
	s.Run("duplicate id conflicts", func() {
		s.ErrorIs(s.store.Create(s.ctx, s.newContract("0xc1", "core", 0)), sentinel.ErrConflict)
	})
}

func (s *StoreSuite) TestTxRefRoundTrip() {
	disabled := s.newContract("0xdisabled", "core", 0)
	disabled.Tx = models.DisabledTransaction()
	none := s.newContract("0xnone", "core", 0)
	none.Tx = models.NoTransaction()
	s.Require().NoError(s.store.Create(s.ctx, disabled))
	s.Require().NoError(s.store.Create(s.ctx, none))

	got, err := s.store.GetContractWithSignatures(s.ctx, "0xdisabled", "")
	s.Require().NoError(err)
	s.Equal(models.TxDisabled, got.Tx.Kind())

	got, err = s.store.GetContractWithSignatures(s.ctx, "0xnone", "")
	s.Require().NoError(err)
	s.Equal(models.TxNone, got.Tx.Kind())
}

func (s *StoreSuite) TestAddSignatureUpdatesStatus() {
	s.Require().NoError(s.store.Create(s.ctx, s.newContract("0xc2", "core", 0)))

	status, err := s.store.AddSignature(s.ctx, s.newSignature("0xc2", "0xAAAA000000000000000000000000000000000001", time.Minute))
	s.Require().NoError(err)
	s.Equal(models.StatusPartialSigned, status)

	status, err = s.store.AddSignature(s.ctx, s.newSignature("0xc2", "0xaaaa000000000000000000000000000000000002", 2*time.Minute))
	s.Require().NoError(err)
	s.Equal(models.StatusFullySigned, status)

	got, err := s.store.GetContractWithSignatures(s.ctx, "0xc2", "core")
	s.Require().NoError(err)
	s.Equal(models.StatusFullySigned, got.Status)
	s.Require().Len(got.Signatures, 2)
	s.Equal("0xAAAA000000000000000000000000000000000001", got.Signatures[0].SignerAddress)
	s.Equal("0xaaaa000000000000000000000000000000000002", got.Signatures[1].SignerAddress)
	s.True(got.Signatures[0].HasEvidence())
	s.Equal(models.TxDisabled, got.Signatures[0].Tx.Kind())

	s.Run("fully signed contract rejects further signatures", func() {
		_, err := s.store.AddSignature(s.ctx, s.newSignature("0xc2", "0xaaaa000000000000000000000000000000000003", 3*time.Minute))
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *StoreSuite) TestAddSignatureRejectsDuplicateSigner() {
	s.Require().NoError(s.store.Create(s.ctx, s.newContract("0xc3", "core", 0)))
	_, err := s.store.AddSignature(s.ctx, s.newSignature("0xc3", "0xAAAA000000000000000000000000000000000001", time.Minute))
	s.Require().NoError(err)

	_, err = s.store.AddSignature(s.ctx, s.newSignature("0xc3", "0xaaaa000000000000000000000000000000000001", 2*time.Minute))
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreSuite) TestAddSignatureUnknownContract() {
	_, err := s.store.AddSignature(s.ctx, s.newSignature("0xmissing", "0x01", 0))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestFindSignature() {
	s.Require().NoError(s.store.Create(s.ctx, s.newContract("0xc4", "core", 0)))
	sig := s.newSignature("0xc4", "0xAAAA000000000000000000000000000000000001", time.Minute)
	_, err := s.store.AddSignature(s.ctx, sig)
	s.Require().NoError(err)

	found, err := s.store.FindSignature(s.ctx, "0xc4", "0xaaaa000000000000000000000000000000000001")
	s.Require().NoError(err)
	s.Equal(sig.ID, found.ID)

	_, err = s.store.FindSignature(s.ctx, "0xc4", "0xbbbb000000000000000000000000000000000001")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestEvidenceWithoutPayload() {
	s.Require().NoError(s.store.Create(s.ctx, s.newContract("0xc5", "core", 0)))
	sig := s.newSignature("0xc5", "0x01", time.Minute)
	sig.Evidence = nil
	_, err := s.store.AddSignature(s.ctx, sig)
	s.Require().NoError(err)

	got, err := s.store.GetContractWithSignatures(s.ctx, "0xc5", "")
	s.Require().NoError(err)
	s.Require().Len(got.Signatures, 1)
	s.False(got.Signatures[0].HasEvidence())
}

func (s *StoreSuite) TestListPaginatesNewestFirst() {
	for i := range 5 {
		tenant := "core"
		if i == 4 {
			tenant = "acme"
		}
		s.Require().NoError(s.store.Create(s.ctx, s.newContract(fmt.Sprintf("0xl%d", i), tenant, time.Duration(i)*time.Hour)))
	}
	_, err := s.store.AddSignature(s.ctx, s.newSignature("0xl0", "0x01", 0))
	s.Require().NoError(err)

	page, total, err := s.store.List(s.ctx, models.ListFilter{TenantID: "core", Limit: 2})
	s.Require().NoError(err)
	s.Equal(4, total)
	s.Require().Len(page, 2)
	s.Equal("0xl3", page[0].ContractID)
	s.Equal("0xl2", page[1].ContractID)

	page, _, err = s.store.List(s.ctx, models.ListFilter{TenantID: "core", Offset: 2, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal("0xl1", page[0].ContractID)
	s.Equal("0xl0", page[1].ContractID)
	s.Len(page[1].Signatures, 1)

	page, total, err = s.store.List(s.ctx, models.ListFilter{TenantID: "core", Status: models.StatusPartialSigned})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(page, 1)
	s.Equal("0xl0", page[0].ContractID)

	_, total, err = s.store.List(s.ctx, models.ListFilter{Offset: 50, Limit: 10})
	s.Require().NoError(err)
	s.Equal(5, total)
}

func (s *StoreSuite) TestReturnedContractsAreCopies() {
	s.Require().NoError(s.store.Create(s.ctx, s.newContract("0xc6", "core", 0)))
	got, err := s.store.GetContractWithSignatures(s.ctx, "0xc6", "")
	s.Require().NoError(err)
	got.Signers[0] = "mutated"
	got.Status = models.StatusFullySigned

	again, err := s.store.GetContractWithSignatures(s.ctx, "0xc6", "")
	s.Require().NoError(err)
	s.NotEqual("mutated", again.Signers[0])
	s.Equal(models.StatusCreated, again.Status)
}

func TestLockingTxRunsFn(t *testing.T) {
	var tx LockingTx
	called := false
	err := tx.RunInTx(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("expected fn to run without error, got called=%v err=%v", called, err)
	}
}
