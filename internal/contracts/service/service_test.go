package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"notary/internal/chain"
	"notary/internal/contracts/models"
	"notary/internal/contracts/service/mocks"
	tenantModels "notary/internal/tenant/models"
	dErrors "notary/pkg/domain-errors"
	"notary/pkg/hashing"
	audit "notary/pkg/platform/audit"
	"notary/pkg/platform/sentinel"
	"notary/pkg/requestcontext"
)

const (
	testContractID = "0x2222222222222222222222222222222222222222222222222222222222222222"
	testHashPDF    = "0x3333333333333333333333333333333333333333333333333333333333333333"
	testEvidence   = "0x4444444444444444444444444444444444444444444444444444444444444444"
	testTxHash     = "0x5555555555555555555555555555555555555555555555555555555555555555"
	testRegistry   = "0x00000000000000000000000000000000000000Aa"
	testSigner     = "0x00000000000000000000000000000000000000C3"
	testTenant     = "acme"
)

var fixedNow = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *mocks.MockStore
	registrar *mocks.MockRegistrar
	tenants   *mocks.MockTenantResolver
	auditor   *mocks.MockAuditPublisher
	service   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.store = mocks.NewMockStore(ctrl)
	s.registrar = mocks.NewMockRegistrar(ctrl)
	s.tenants = mocks.NewMockTenantResolver(ctrl)
	s.auditor = mocks.NewMockAuditPublisher(ctrl)
	s.service = New(s.store, s.registrar, s.tenants, WithAuditPublisher(s.auditor))

	ctx := requestcontext.WithTenantID(context.Background(), testTenant)
	ctx = requestcontext.WithTime(ctx, fixedNow)
	ctx = requestcontext.WithUserID(ctx, "user-1")
	s.ctx = requestcontext.WithRequestID(ctx, "req-1")
}

func (s *ServiceSuite) expectTenant() {
	s.tenants.EXPECT().Resolve(gomock.Any(), testTenant).
		Return(tenantModels.Resolved{ID: testTenant, ChainRegistryAddress: testRegistry}, nil)
}

func (s *ServiceSuite) existing(status models.Status) *models.Contract {
	return &models.Contract{
		ContractID:         testContractID,
		TenantID:           testTenant,
		HashPDF:            testHashPDF,
		Status:             status,
		RequiredSignatures: 2,
	}
}

func (s *ServiceSuite) TestCreate() {
	s.Run("registers and persists the contract", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, "").Return(nil, sentinel.ErrNotFound)
		s.expectTenant()
		s.registrar.EXPECT().RegisterCreate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, p chain.CreateParams) (models.TxRef, error) {
				s.Equal(testRegistry, p.Registry)
				s.Equal(testContractID, p.ContractID)
				s.Equal(testHashPDF, p.HashPDF)
				s.Equal([]string{testSigner}, p.Signers)
				return models.RecordedTransaction(testTxHash), nil
			})
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e audit.Event) error {
				s.Equal(string(audit.EventContractCreated), e.Action)
				s.Equal(testTenant, e.TenantID)
				s.Equal(testContractID, e.ContractID)
				s.Equal("recorded", e.Decision)
				s.Equal("req-1", e.RequestID)
				return nil
			})

		contract, err := s.service.Create(s.ctx, CreateRequest{
			ContractID: testContractID,
			TemplateID: 1,
			Version:    1,
			HashPDF:    testHashPDF,
			Pointer:    "uploads/lease.pdf",
			Signers:    []string{testSigner},
		})
		s.Require().NoError(err)
		s.Equal(models.StatusCreated, contract.Status)
		s.Equal(models.DefaultRequiredSignatures, contract.RequiredSignatures)
		s.Equal(testTenant, contract.TenantID)
		s.Equal("user-1", contract.CreatedBy)
		s.Equal(fixedNow, contract.CreatedAt)
		hash, ok := contract.Tx.Hash()
		s.True(ok)
		s.Equal(testTxHash, hash)
	})

	s.Run("persists disabled chain registration", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), gomock.Any(), "").Return(nil, sentinel.ErrNotFound)
		s.expectTenant()
		s.registrar.EXPECT().RegisterCreate(gomock.Any(), gomock.Any()).Return(models.DisabledTransaction(), nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e audit.Event) error {
				s.Equal("disabled", e.Decision)
				return nil
			})

		contract, err := s.service.Create(s.ctx, CreateRequest{HashPDF: testHashPDF, RequiredSignatures: 3})
		s.Require().NoError(err)
		s.Equal(models.TxDisabled, contract.Tx.Kind())
		s.Equal(3, contract.RequiredSignatures)
		s.True(hashing.IsBytes32(contract.ContractID))
	})

	s.Run("rejects invalid pdf hash", func() {
		s.SetupTest()
		_, err := s.service.Create(s.ctx, CreateRequest{HashPDF: "0x1234"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects malformed prefixed contract id", func() {
		s.SetupTest()
		_, err := s.service.Create(s.ctx, CreateRequest{ContractID: "0xnothex", HashPDF: testHashPDF})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("conflicts on an existing contract before touching the chain", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, "").Return(s.existing(models.StatusCreated), nil)

		_, err := s.service.Create(s.ctx, CreateRequest{ContractID: testContractID, HashPDF: testHashPDF})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("maps unavailable registry", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), gomock.Any(), "").Return(nil, sentinel.ErrNotFound)
		s.expectTenant()
		s.registrar.EXPECT().RegisterCreate(gomock.Any(), gomock.Any()).
			Return(models.TxRef{}, fmt.Errorf("%w: dial tcp", sentinel.ErrUnavailable))

		_, err := s.service.Create(s.ctx, CreateRequest{HashPDF: testHashPDF})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("fails closed when the audit event cannot be written", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), gomock.Any(), "").Return(nil, sentinel.ErrNotFound)
		s.expectTenant()
		s.registrar.EXPECT().RegisterCreate(gomock.Any(), gomock.Any()).Return(models.DisabledTransaction(), nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox down"))

		_, err := s.service.Create(s.ctx, CreateRequest{HashPDF: testHashPDF})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestSign() {
	evidence := json.RawMessage(`{"ip":"10.0.0.1","otp":123456}`)

	s.Run("records the signature and returns the new status", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, testTenant).Return(s.existing(models.StatusCreated), nil)
		s.store.EXPECT().FindSignature(gomock.Any(), testContractID, testSigner).Return(nil, sentinel.ErrNotFound)
		s.expectTenant()
		s.registrar.EXPECT().RegisterSigned(gomock.Any(), chain.SignedParams{
			Registry:      testRegistry,
			ContractID:    testContractID,
			SignerAddress: testSigner,
			HashEvidence:  testEvidence,
		}).Return(models.RecordedTransaction(testTxHash), nil)
		s.store.EXPECT().AddSignature(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, sig *models.Signature) (models.Status, error) {
				s.NotEqual(uuid.Nil, sig.ID)
				s.Equal(testEvidence, sig.EvidenceHash)
				s.Equal(map[string]any{"ip": "10.0.0.1", "otp": json.Number("123456")}, sig.Evidence)
				s.Equal(fixedNow, sig.SignedAt)
				return models.StatusPartialSigned, nil
			})
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e audit.Event) error {
				s.Equal(string(audit.EventContractSigned), e.Action)
				s.Equal(string(models.StatusPartialSigned), e.Decision)
				return nil
			})

		result, err := s.service.Sign(s.ctx, testContractID, SignRequest{
			SignerAddress: testSigner,
			HashEvidence:  testEvidence,
			Evidence:      evidence,
		})
		s.Require().NoError(err)
		s.Equal(models.StatusPartialSigned, result.Status)
		s.Equal(models.StatusPartialSigned, result.Contract.Status)
		s.Len(result.Contract.Signatures, 1)
	})

	s.Run("accepts a signature without evidence", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, testTenant).Return(s.existing(models.StatusPartialSigned), nil)
		s.store.EXPECT().FindSignature(gomock.Any(), testContractID, testSigner).Return(nil, sentinel.ErrNotFound)
		s.expectTenant()
		s.registrar.EXPECT().RegisterSigned(gomock.Any(), gomock.Any()).Return(models.DisabledTransaction(), nil)
		s.store.EXPECT().AddSignature(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, sig *models.Signature) (models.Status, error) {
				s.False(sig.HasEvidence())
				return models.StatusFullySigned, nil
			})
		s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

		result, err := s.service.Sign(s.ctx, testContractID, SignRequest{SignerAddress: testSigner, HashEvidence: testEvidence})
		s.Require().NoError(err)
		s.Equal(models.StatusFullySigned, result.Status)
	})

	s.Run("rejects invalid evidence hash", func() {
		s.SetupTest()
		_, err := s.service.Sign(s.ctx, testContractID, SignRequest{SignerAddress: testSigner, HashEvidence: "abc"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("not found outside the tenant", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, testTenant).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Sign(s.ctx, testContractID, SignRequest{SignerAddress: testSigner, HashEvidence: testEvidence})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects signing a fully signed contract", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, testTenant).Return(s.existing(models.StatusFullySigned), nil)

		_, err := s.service.Sign(s.ctx, testContractID, SignRequest{SignerAddress: testSigner, HashEvidence: testEvidence})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("rejects a repeat signer", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, testTenant).Return(s.existing(models.StatusPartialSigned), nil)
		s.store.EXPECT().FindSignature(gomock.Any(), testContractID, testSigner).Return(&models.Signature{}, nil)

		_, err := s.service.Sign(s.ctx, testContractID, SignRequest{SignerAddress: testSigner, HashEvidence: testEvidence})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("rejects malformed evidence json", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, testTenant).Return(s.existing(models.StatusCreated), nil)
		s.store.EXPECT().FindSignature(gomock.Any(), testContractID, testSigner).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Sign(s.ctx, testContractID, SignRequest{
			SignerAddress: testSigner,
			HashEvidence:  testEvidence,
			Evidence:      json.RawMessage(`{"ip":`),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("maps a concurrent fully signed transition", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, testTenant).Return(s.existing(models.StatusPartialSigned), nil)
		s.store.EXPECT().FindSignature(gomock.Any(), testContractID, testSigner).Return(nil, sentinel.ErrNotFound)
		s.expectTenant()
		s.registrar.EXPECT().RegisterSigned(gomock.Any(), gomock.Any()).Return(models.DisabledTransaction(), nil)
		s.store.EXPECT().AddSignature(gomock.Any(), gomock.Any()).Return(models.Status(""), sentinel.ErrInvalidState)

		_, err := s.service.Sign(s.ctx, testContractID, SignRequest{SignerAddress: testSigner, HashEvidence: testEvidence})
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("maps registry timeouts", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, testTenant).Return(s.existing(models.StatusCreated), nil)
		s.store.EXPECT().FindSignature(gomock.Any(), testContractID, testSigner).Return(nil, sentinel.ErrNotFound)
		s.expectTenant()
		s.registrar.EXPECT().RegisterSigned(gomock.Any(), gomock.Any()).Return(models.TxRef{}, context.DeadlineExceeded)

		_, err := s.service.Sign(s.ctx, testContractID, SignRequest{SignerAddress: testSigner, HashEvidence: testEvidence})
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func (s *ServiceSuite) TestGet() {
	s.Run("scopes lookups to the request tenant", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, testTenant).Return(s.existing(models.StatusCreated), nil)

		contract, err := s.service.Get(s.ctx, testContractID)
		s.Require().NoError(err)
		s.Equal(testContractID, contract.ContractID)
	})

	s.Run("falls back to the core tenant", func() {
		s.SetupTest()
		s.store.EXPECT().GetContractWithSignatures(gomock.Any(), testContractID, requestcontext.DefaultTenantID).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Get(context.Background(), testContractID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestList() {
	s.Run("applies default paging", func() {
		s.SetupTest()
		s.store.EXPECT().List(gomock.Any(), models.ListFilter{TenantID: testTenant, Offset: 0, Limit: 10}).
			Return([]*models.Contract{s.existing(models.StatusCreated)}, 21, nil)

		result, err := s.service.List(s.ctx, "", 0, 0)
		s.Require().NoError(err)
		s.Equal(1, result.Page)
		s.Equal(10, result.Limit)
		s.Equal(21, result.Total)
		s.Equal(3, result.TotalPages)
	})

	s.Run("caps the limit and filters by status", func() {
		s.SetupTest()
		s.store.EXPECT().List(gomock.Any(), models.ListFilter{TenantID: testTenant, Status: models.StatusFullySigned, Offset: 200, Limit: 100}).
			Return(nil, 0, nil)

		result, err := s.service.List(s.ctx, models.StatusFullySigned, 3, 500)
		s.Require().NoError(err)
		s.Equal(100, result.Limit)
		s.Equal(0, result.TotalPages)
	})

	s.Run("rejects unknown status", func() {
		s.SetupTest()
		_, err := s.service.List(s.ctx, "archived", 1, 10)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestWritesRunInsideTransaction() {
	ctrl := gomock.NewController(s.T())
	tx := mocks.NewMockTxRunner(ctrl)
	svc := New(s.store, s.registrar, s.tenants, WithAuditPublisher(s.auditor), WithTxRunner(tx))

	s.store.EXPECT().GetContractWithSignatures(gomock.Any(), gomock.Any(), "").Return(nil, sentinel.ErrNotFound)
	s.expectTenant()
	s.registrar.EXPECT().RegisterCreate(gomock.Any(), gomock.Any()).Return(models.DisabledTransaction(), nil)
	tx.EXPECT().RunInTx(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		})
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	_, err := svc.Create(s.ctx, CreateRequest{HashPDF: testHashPDF})
	s.Require().NoError(err)
}

func TestContractIDFor(t *testing.T) {
	assert.Equal(t, testContractID, ContractIDFor(testContractID))
	assert.Equal(t, hashing.IDToBytes32("lease-42"), ContractIDFor(" lease-42 "))

	generated := ContractIDFor("")
	require.True(t, hashing.IsBytes32(generated))
	assert.NotEqual(t, generated, ContractIDFor(""))
}
