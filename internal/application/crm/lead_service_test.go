package crm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/enterprisecrm/backend/internal/domain/crm"
	"github.com/enterprisecrm/backend/internal/domain/shared"
	"github.com/enterprisecrm/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockLeadRepository is a mock implementation of crm.LeadRepository
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) FindByID(ctx context.Context, id uuid.UUID) (*crm.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*crm.Lead), args.Error(1)
}

func (m *MockLeadRepository) FindAll(ctx context.Context, filter shared.Filter) ([]crm.Lead, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]crm.Lead), args.Error(1)
}

func (m *MockLeadRepository) Count(ctx context.Context, filter shared.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLeadRepository) Create(ctx context.Context, lead *crm.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

func (m *MockLeadRepository) Update(ctx context.Context, lead *crm.Lead) error {
	args := m.Called(ctx, lead)
	return args.Error(0)
}

// passthroughUnitOfWork runs fn on the caller's context and counts calls
type passthroughUnitOfWork struct {
	calls int
}

func (u *passthroughUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	u.calls++
	return fn(ctx)
}

// stubScorer returns a fixed score or error
type stubScorer struct {
	score int
	err   error
}

func (s stubScorer) Score(context.Context, *crm.Lead) (int, error) {
	return s.score, s.err
}

type leadServiceFixture struct {
	svc             *LeadService
	leadRepo        *MockLeadRepository
	customerRepo    *MockCustomerRepository
	opportunityRepo *MockOpportunityRepository
	uow             *passthroughUnitOfWork
	publisher       *recordingPublisher
}

func newLeadServiceFixture(scorer crm.LeadScorer) *leadServiceFixture {
	f := &leadServiceFixture{
		leadRepo:        new(MockLeadRepository),
		customerRepo:    new(MockCustomerRepository),
		opportunityRepo: new(MockOpportunityRepository),
		uow:             &passthroughUnitOfWork{},
		publisher:       &recordingPublisher{},
	}
	f.svc = NewLeadService(f.leadRepo, f.customerRepo, f.opportunityRepo, f.uow, scorer, f.publisher)
	return f
}

func newTestLead(t *testing.T, status crm.LeadStatus) *crm.Lead {
	t.Helper()
	by := uuid.New()
	lead, err := crm.NewLead("Alan", "Turing", crm.LeadSourceReferral, by)
	require.NoError(t, err)
	require.NoError(t, lead.UpdateDetails("Alan", "Turing", "Bletchley Park", "Cryptanalyst", by))
	require.NoError(t, lead.SetContact("alan@example.com", "+44 1908", by))
	switch status {
	case crm.LeadStatusContacted:
		require.NoError(t, lead.MarkContacted(by))
	case crm.LeadStatusQualified:
		require.NoError(t, lead.Qualify(by))
	case crm.LeadStatusUnqualified:
		require.NoError(t, lead.Disqualify("no budget", by))
	}
	lead.ClearDomainEvents()
	return lead
}

func TestLeadService_Create(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("scores the new lead", func(t *testing.T) {
		f := newLeadServiceFixture(stubScorer{score: 35})
		f.leadRepo.On("Create", ctx, mock.AnythingOfType("*crm.Lead")).Return(nil)

		resp, err := f.svc.Create(ctx, actorID, CreateLeadRequest{
			FirstName: "grace",
			LastName:  "hopper",
			Email:     "grace@navy.mil",
			Company:   "US Navy",
			Source:    "event",
		})

		require.NoError(t, err)
		assert.Equal(t, "Grace", resp.FirstName)
		assert.Equal(t, "US Navy", resp.Company)
		assert.Equal(t, "event", resp.Source)
		assert.Equal(t, string(crm.LeadStatusNew), resp.Status)
		assert.Equal(t, 35, resp.Score)
		assert.Equal(t, []string{crm.EventTypeLeadCreated}, f.publisher.types)
	})

	t.Run("scoring failure keeps zero score", func(t *testing.T) {
		f := newLeadServiceFixture(stubScorer{err: errors.New("bad rule")})
		f.leadRepo.On("Create", ctx, mock.Anything).Return(nil)

		resp, err := f.svc.Create(ctx, actorID, CreateLeadRequest{FirstName: "Grace", LastName: "Hopper"})

		require.NoError(t, err)
		assert.Equal(t, 0, resp.Score)
		assert.Equal(t, string(crm.LeadSourceOther), resp.Source)
	})

	t.Run("scorer output is clamped", func(t *testing.T) {
		f := newLeadServiceFixture(stubScorer{score: 250})
		f.leadRepo.On("Create", ctx, mock.Anything).Return(nil)

		resp, err := f.svc.Create(ctx, actorID, CreateLeadRequest{FirstName: "Grace", LastName: "Hopper"})

		require.NoError(t, err)
		assert.Equal(t, crm.MaxLeadScore, resp.Score)
	})
}

func TestLeadService_List(t *testing.T) {
	ctx := context.Background()
	f := newLeadServiceFixture(nil)

	matches := mock.MatchedBy(func(fl shared.Filter) bool {
		return fl.Filters["status"] == "qualified" && fl.Filters["source"] == "web" && fl.Filters["owner_id"] == nil
	})
	f.leadRepo.On("FindAll", ctx, matches).Return([]crm.Lead{*newTestLead(t, crm.LeadStatusQualified)}, nil)
	f.leadRepo.On("Count", ctx, matches).Return(int64(1), nil)

	page, err := f.svc.List(ctx, LeadListFilter{Status: "qualified", Source: "web"})

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Alan Turing", page.Items[0].FullName)
	assert.Equal(t, 1, page.TotalPages)
}

func TestLeadService_Update(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("updates and rescores", func(t *testing.T) {
		f := newLeadServiceFixture(stubScorer{score: 60})
		lead := newTestLead(t, crm.LeadStatusNew)
		f.leadRepo.On("FindByID", ctx, lead.ID).Return(lead, nil)
		f.leadRepo.On("Update", ctx, lead).Return(nil)

		title := "Director"
		source := "partner"
		resp, err := f.svc.Update(ctx, actorID, lead.ID, UpdateLeadRequest{Title: &title, Source: &source})

		require.NoError(t, err)
		assert.Equal(t, "Director", resp.Title)
		assert.Equal(t, "Bletchley Park", resp.Company)
		assert.Equal(t, "partner", resp.Source)
		assert.Equal(t, 60, resp.Score)
	})

	t.Run("converted lead is read only", func(t *testing.T) {
		f := newLeadServiceFixture(nil)
		lead := newTestLead(t, crm.LeadStatusQualified)
		require.NoError(t, lead.Convert(uuid.New(), nil, actorID))
		f.leadRepo.On("FindByID", ctx, lead.ID).Return(lead, nil)

		notes := "late edit"
		_, err := f.svc.Update(ctx, actorID, lead.ID, UpdateLeadRequest{Notes: &notes})

		assertDomainCode(t, err, shared.CodeInvalidState)
		f.leadRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("stale version", func(t *testing.T) {
		f := newLeadServiceFixture(nil)
		lead := newTestLead(t, crm.LeadStatusNew)
		f.leadRepo.On("FindByID", ctx, lead.ID).Return(lead, nil)

		version := lead.Version + 1
		_, err := f.svc.Update(ctx, actorID, lead.ID, UpdateLeadRequest{Version: &version})

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	})
}

func TestLeadService_StateMachine(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()
	f := newLeadServiceFixture(nil)
	lead := newTestLead(t, crm.LeadStatusNew)
	f.leadRepo.On("FindByID", ctx, lead.ID).Return(lead, nil)
	f.leadRepo.On("Update", ctx, lead).Return(nil)

	resp, err := f.svc.MarkContacted(ctx, actorID, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, string(crm.LeadStatusContacted), resp.Status)

	resp, err = f.svc.Disqualify(ctx, actorID, lead.ID, DisqualifyLeadRequest{Reason: "no budget"})
	require.NoError(t, err)
	assert.Equal(t, string(crm.LeadStatusUnqualified), resp.Status)
	assert.Equal(t, "no budget", resp.DisqualifyReason)

	// unqualified leads must be contacted again before qualifying
	_, err = f.svc.Qualify(ctx, actorID, lead.ID)
	assertDomainCode(t, err, shared.CodeInvalidState)

	_, err = f.svc.MarkContacted(ctx, actorID, lead.ID)
	require.NoError(t, err)
	resp, err = f.svc.Qualify(ctx, actorID, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, string(crm.LeadStatusQualified), resp.Status)
	assert.Empty(t, resp.DisqualifyReason)

	f.leadRepo.AssertNumberOfCalls(t, "Update", 4)
	assert.Len(t, f.publisher.types, 4)
}

func TestLeadService_StatusChangeLoggedAfterSave(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := logger.WithContext(context.Background(), zap.New(core))
	actorID := uuid.New()

	t.Run("failed save is not logged", func(t *testing.T) {
		f := newLeadServiceFixture(nil)
		lead := newTestLead(t, crm.LeadStatusNew)
		f.leadRepo.On("FindByID", ctx, lead.ID).Return(lead, nil)
		f.leadRepo.On("Update", ctx, lead).Return(shared.ErrConcurrencyConflict)

		_, err := f.svc.MarkContacted(ctx, actorID, lead.ID)

		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		assert.Zero(t, logs.FilterMessage("lead status changed").Len())
		assert.Empty(t, f.publisher.types)
	})

	t.Run("successful save is logged", func(t *testing.T) {
		f := newLeadServiceFixture(nil)
		lead := newTestLead(t, crm.LeadStatusNew)
		f.leadRepo.On("FindByID", ctx, lead.ID).Return(lead, nil)
		f.leadRepo.On("Update", ctx, lead).Return(nil)

		_, err := f.svc.MarkContacted(ctx, actorID, lead.ID)

		require.NoError(t, err)
		entries := logs.FilterMessage("lead status changed").All()
		require.Len(t, entries, 1)
		assert.Equal(t, string(crm.LeadStatusContacted), entries[0].ContextMap()["status"])
	})
}

func TestLeadService_Rescore(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()

	f := newLeadServiceFixture(stubScorer{score: 80})
	lead := newTestLead(t, crm.LeadStatusContacted)
	f.leadRepo.On("FindByID", ctx, lead.ID).Return(lead, nil)
	f.leadRepo.On("Update", ctx, lead).Return(nil)

	resp, err := f.svc.Rescore(ctx, actorID, lead.ID)

	require.NoError(t, err)
	assert.Equal(t, 80, resp.Score)

	converted := newTestLead(t, crm.LeadStatusQualified)
	require.NoError(t, converted.Convert(uuid.New(), nil, actorID))
	f.leadRepo.On("FindByID", ctx, converted.ID).Return(converted, nil)

	_, err = f.svc.Rescore(ctx, actorID, converted.ID)
	assertDomainCode(t, err, shared.CodeInvalidState)
}

func TestLeadService_Convert(t *testing.T) {
	// Convert runs inside its own span, so repositories see a derived context
	ctx := context.Background()
	actorID := uuid.New()

	t.Run("creates customer and opportunity in one unit of work", func(t *testing.T) {
		f := newLeadServiceFixture(nil)
		lead := newTestLead(t, crm.LeadStatusQualified)
		ownerID := uuid.New()
		lead.OwnerID = &ownerID
		closeDate := time.Now().Add(30 * 24 * time.Hour)
		amount := decimal.NewFromInt(12000)

		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
		f.customerRepo.On("ExistsByCode", mock.Anything, "turing").Return(false, nil)
		f.customerRepo.On("ExistsByEmail", mock.Anything, "alan@example.com", uuid.Nil).Return(false, nil)
		f.customerRepo.On("Create", mock.Anything, mock.AnythingOfType("*crm.Customer")).Return(nil)
		f.opportunityRepo.On("Create", mock.Anything, mock.AnythingOfType("*crm.Opportunity")).Return(nil)
		f.leadRepo.On("Update", mock.Anything, lead).Return(nil)

		resp, err := f.svc.Convert(ctx, actorID, lead.ID, ConvertLeadRequest{
			CustomerCode:      "turing",
			OpportunityName:   "Enigma decryption",
			OpportunityAmount: &amount,
			Currency:          "gbp",
			ExpectedCloseDate: &closeDate,
		})

		require.NoError(t, err)
		assert.Equal(t, 1, f.uow.calls)

		assert.Equal(t, "TURING", resp.Customer.Code)
		assert.Equal(t, "Alan", resp.Customer.FirstName)
		assert.Equal(t, "alan@example.com", resp.Customer.Email)
		assert.Equal(t, "Bletchley Park", resp.Customer.CompanyName)
		assert.Equal(t, &ownerID, resp.Customer.OwnerID)

		require.NotNil(t, resp.Opportunity)
		assert.Equal(t, resp.Customer.ID, resp.Opportunity.CustomerID)
		assert.True(t, amount.Equal(resp.Opportunity.Amount))
		assert.Equal(t, "GBP", resp.Opportunity.Currency)
		assert.Equal(t, &ownerID, resp.Opportunity.OwnerID)
		require.NotNil(t, resp.Opportunity.ExpectedCloseDate)

		assert.Equal(t, string(crm.LeadStatusConverted), resp.Lead.Status)
		assert.Equal(t, &resp.Customer.ID, resp.Lead.ConvertedCustomerID)
		assert.Equal(t, &resp.Opportunity.ID, resp.Lead.ConvertedOpportunityID)
		assert.NotNil(t, resp.Lead.ConvertedAt)

		assert.Contains(t, f.publisher.types, crm.EventTypeCustomerCreated)
		assert.Contains(t, f.publisher.types, crm.EventTypeOpportunityCreated)
		assert.Contains(t, f.publisher.types, crm.EventTypeLeadConverted)
	})

	t.Run("without opportunity", func(t *testing.T) {
		f := newLeadServiceFixture(nil)
		lead := newTestLead(t, crm.LeadStatusQualified)
		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
		f.customerRepo.On("ExistsByCode", mock.Anything, "AT-1").Return(false, nil)
		f.customerRepo.On("ExistsByEmail", mock.Anything, "alan@example.com", uuid.Nil).Return(false, nil)
		f.customerRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.leadRepo.On("Update", mock.Anything, lead).Return(nil)

		resp, err := f.svc.Convert(ctx, actorID, lead.ID, ConvertLeadRequest{CustomerCode: "AT-1"})

		require.NoError(t, err)
		assert.Nil(t, resp.Opportunity)
		assert.Nil(t, resp.Lead.ConvertedOpportunityID)
		f.opportunityRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("requires a qualified lead", func(t *testing.T) {
		f := newLeadServiceFixture(nil)
		lead := newTestLead(t, crm.LeadStatusContacted)
		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)

		_, err := f.svc.Convert(ctx, actorID, lead.ID, ConvertLeadRequest{CustomerCode: "AT-2"})

		assertDomainCode(t, err, shared.CodeInvalidState)
		f.customerRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate customer code", func(t *testing.T) {
		f := newLeadServiceFixture(nil)
		lead := newTestLead(t, crm.LeadStatusQualified)
		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
		f.customerRepo.On("ExistsByCode", mock.Anything, "AT-3").Return(true, nil)

		_, err := f.svc.Convert(ctx, actorID, lead.ID, ConvertLeadRequest{CustomerCode: "AT-3"})

		assertDomainCode(t, err, shared.CodeAlreadyExists)
		assert.Equal(t, crm.LeadStatusQualified, lead.Status)
	})

	t.Run("failure after customer creation is returned", func(t *testing.T) {
		f := newLeadServiceFixture(nil)
		lead := newTestLead(t, crm.LeadStatusQualified)
		f.leadRepo.On("FindByID", mock.Anything, lead.ID).Return(lead, nil)
		f.customerRepo.On("ExistsByCode", mock.Anything, "AT-4").Return(false, nil)
		f.customerRepo.On("ExistsByEmail", mock.Anything, "alan@example.com", uuid.Nil).Return(false, nil)
		f.customerRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.opportunityRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

		_, err := f.svc.Convert(ctx, actorID, lead.ID, ConvertLeadRequest{CustomerCode: "AT-4", OpportunityName: "Deal"})

		assert.EqualError(t, err, "insert failed")
		assert.Empty(t, f.publisher.types)
		f.leadRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})
}

func TestLeadService_Delete(t *testing.T) {
	ctx := context.Background()
	actorID := uuid.New()
	f := newLeadServiceFixture(nil)

	lead := newTestLead(t, crm.LeadStatusNew)
	f.leadRepo.On("FindByID", ctx, lead.ID).Return(lead, nil)
	f.leadRepo.On("Update", ctx, lead).Return(nil)
	require.NoError(t, f.svc.Delete(ctx, actorID, lead.ID))
	assert.True(t, lead.IsDeleted)
	assert.Equal(t, []string{crm.EventTypeLeadDeleted}, f.publisher.types)

	converted := newTestLead(t, crm.LeadStatusQualified)
	require.NoError(t, converted.Convert(uuid.New(), nil, actorID))
	f.leadRepo.On("FindByID", ctx, converted.ID).Return(converted, nil)
	err := f.svc.Delete(ctx, actorID, converted.ID)
	assertDomainCode(t, err, shared.CodeInvalidState)
	assert.Len(t, f.publisher.types, 1)
}

func TestLeadService_Delete_FailedSavePublishesNothing(t *testing.T) {
	ctx := context.Background()
	f := newLeadServiceFixture(nil)
	lead := newTestLead(t, crm.LeadStatusNew)
	f.leadRepo.On("FindByID", ctx, lead.ID).Return(lead, nil)
	f.leadRepo.On("Update", ctx, lead).Return(errors.New("db down"))

	require.Error(t, f.svc.Delete(ctx, uuid.New(), lead.ID))
	assert.Empty(t, f.publisher.types)
}
