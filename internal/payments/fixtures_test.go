package payments

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/payment-router/internal/adapter/mock"
	"github.com/yourorg/payment-router/internal/merchant"
	"github.com/yourorg/payment-router/internal/processor"
	"github.com/yourorg/payment-router/internal/router"
	"github.com/yourorg/payment-router/internal/router/circuitbreaker"
	"github.com/yourorg/payment-router/internal/storage"
	"github.com/yourorg/payment-router/internal/types"
	"github.com/yourorg/payment-router/internal/vault"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testMerchant = "merchant_1"

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	deps    *Deps
	store   *storage.MemoryStore
	account *merchant.Account
	ks      *merchant.KeyStore
}

func quietLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := httptest.NewServer(mock.NewSandbox(quietLogger()).Handler())
	t.Cleanup(srv.Close)

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{})
	transport := processor.NewHTTPTransport(srv.Client(), quietLogger()).WithRetry(0, 0)
	proc := processor.NewProcessor(transport, breaker, quietLogger(), mock.NewMockAdapter(srv.URL))

	ids, err := NewIDGenerator(1)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	require.NoError(t, store.InsertBusinessProfile(context.Background(), &types.BusinessProfile{
		ProfileID: "pro_default", MerchantID: testMerchant, ProfileName: "default", CreatedAt: fixedNow,
	}))

	return &fixture{
		deps: &Deps{
			Store:     store,
			Processor: proc,
			Router:    router.NewRouter(proc, breaker, quietLogger()),
			Vault:     vault.NewMemoryVault(),
			IDs:       ids,
			Logger:    quietLogger(),
			Now:       func() time.Time { return fixedNow },
		},
		store: store,
		account: &merchant.Account{
			MerchantID:       testMerchant,
			ReturnURL:        types.Ptr("https://shop.example/return"),
			DefaultProfileID: types.Ptr("pro_default"),
			StorageScheme:    types.StoragePostgresOnly,
			Routing:          router.RoutingConfig{Algorithm: router.AlgorithmPriority, Connectors: []string{mock.Name}},
			ConnectorAccounts: []merchant.ConnectorAccount{
				{Connector: mock.Name, AuthType: types.HeaderKey{APIKey: "dummy_key"}},
			},
		},
		ks: &merchant.KeyStore{MerchantID: testMerchant},
	}
}

// run drives op through every stage the way the orchestrator does.
func run[R any, D any](t *testing.T, f *fixture, op Operation[R, D], req *R) (D, error) {
	t.Helper()
	ctx := context.Background()
	var zero D

	vr, err := op.ValidateRequest(req, f.account)
	if err != nil {
		return zero, err
	}
	data, details, err := op.GetTrackers(ctx, f.deps, vr, req, f.account, f.ks)
	if err != nil {
		return zero, err
	}
	customer, err := op.GetOrCreateCustomerDetails(ctx, f.deps, data, details, f.ks)
	if err != nil {
		return zero, err
	}
	if err := op.MakePaymentMethodData(ctx, f.deps, data, f.ks); err != nil {
		return zero, err
	}
	if op.ShouldCallConnector(data) {
		choice, err := op.GetConnector(ctx, f.deps, req, data, f.account)
		if err != nil {
			return zero, err
		}
		if err := op.CallConnector(ctx, f.deps, data, choice, f.account); err != nil {
			return zero, err
		}
	}
	return op.UpdateTrackers(ctx, f.deps, data, customer, vr.StorageScheme)
}

func card(number string) *types.PaymentMethodDataJSON {
	return &types.PaymentMethodDataJSON{Data: types.Card{
		Number: types.Secret(number), ExpMonth: "03", ExpYear: "2030", CVC: "123",
	}}
}

func createRequest(number string, confirm bool, capture types.CaptureMethod) *PaymentsRequest {
	return &PaymentsRequest{
		Amount:            types.Ptr(int64(2500)),
		Currency:          types.Ptr(types.USD),
		Confirm:           types.Ptr(confirm),
		CaptureMethod:     types.Ptr(capture),
		PaymentMethod:     types.Ptr(types.MethodCard),
		PaymentMethodData: card(number),
	}
}

func createPayment(t *testing.T, f *fixture, req *PaymentsRequest) *PaymentData {
	t.Helper()
	data, err := run[PaymentsRequest, *PaymentData](t, f, PaymentCreate{}, req)
	require.NoError(t, err)
	return data
}

// seedPayment stores a payment in the given status without going through a connector.
func seedPayment(t *testing.T, f *fixture, id string, status types.IntentStatus) {
	t.Helper()
	intent := &types.PaymentIntent{
		PaymentID: id, MerchantID: testMerchant, Status: status, Amount: 1000, Currency: types.USD,
		ActiveAttemptID: AttemptID(id, 1), AttemptCount: 1, CreatedAt: fixedNow, ModifiedAt: fixedNow,
	}
	attempt := &types.PaymentAttempt{
		AttemptID: AttemptID(id, 1), PaymentID: id, MerchantID: testMerchant,
		Status: types.AttemptStarted, Amount: 1000, Currency: types.USD, CreatedAt: fixedNow, ModifiedAt: fixedNow,
	}
	_, _, err := f.store.Persist(context.Background(), intent, attempt, types.StoragePostgresOnly)
	require.NoError(t, err)
}
