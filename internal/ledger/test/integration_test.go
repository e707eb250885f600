package test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/gartstein/ledger/internal/ledger/controller"
	"github.com/gartstein/ledger/internal/ledger/db"
	"github.com/gartstein/ledger/internal/ledger/events"
	"github.com/gartstein/ledger/internal/ledger/models"
)

const topic = "contract_events_it"

type IntegrationTestSuite struct {
	suite.Suite
	dbRepo      *db.Repository
	kafkaReader *kafka.Reader
	producer    *events.Producer
	logger      *zap.Logger
	testTimeout time.Duration
}

func TestIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	s.logger = zap.NewNop()
	s.testTimeout = 20 * time.Second

	var dbErr error
	s.dbRepo, dbErr = initializeDBWithRetry()
	if dbErr != nil {
		s.T().Fatal("Database initialization failed:", dbErr)
	}
}

func initializeDBWithRetry() (*db.Repository, error) {
	cfg := &db.Config{
		Host:     "localhost",
		Port:     5432,
		User:     "test",
		Password: "test",
		DBName:   "test",
		SSLMode:  "disable",
	}

	var repo *db.Repository
	var err error

	err = backoff.Retry(func() error {
		repo, err = db.NewRepository(cfg)
		return err
	}, backoff.NewExponentialBackOff())

	return repo, err
}

func initializeKafkaWithRetry() (*events.Producer, *kafka.Reader, error) {
	kafkaBrokers := []string{"localhost:9092"}
	var producer *events.Producer
	var err error

	err = backoff.Retry(func() error {
		producer, err = events.NewProducer(kafkaBrokers, zap.NewNop(), topic)
		if err != nil || producer == nil {
			return fmt.Errorf("failed to create Kafka producer: %v", err)
		}
		return nil
	}, backoff.NewExponentialBackOff())
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka producer initialization failed: %w", err)
	}

	// Verify Kafka readiness using metadata instead of blocking on ReadMessage
	err = backoff.Retry(func() error {
		conn, err := kafka.Dial("tcp", kafkaBrokers[0])
		if err != nil {
			return err
		}
		defer conn.Close()

		partitions, err := conn.ReadPartitions(topic)
		if err != nil || len(partitions) == 0 {
			return fmt.Errorf("topic %s not found", topic)
		}
		return nil
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5))
	if err != nil {
		return nil, nil, fmt.Errorf("Kafka topic check failed: %w", err)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkaBrokers,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	return producer, reader, nil
}

func (s *IntegrationTestSuite) TearDownSuite() {
	if s.producer != nil {
		s.producer.Close()
	}
	if s.kafkaReader != nil {
		_ = s.kafkaReader.Close()
	}
	if s.dbRepo != nil {
		_ = s.dbRepo.Close()
	}
}

func (s *IntegrationTestSuite) SetupTest() {
	if s.dbRepo == nil {
		s.T().Fatal("Database connection not initialized")
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	if err := s.dbRepo.Exec(ctx,
		"TRUNCATE TABLE payments, milestones, contracts, organizations, contract_types, execution_stages, vat_rates, payment_methods CASCADE"); err != nil {
		s.T().Fatal("Failed to clean database:", err)
	}
}

func (s *IntegrationTestSuite) newService() *controller.LedgerService {
	var kafkaErr error
	s.producer, s.kafkaReader, kafkaErr = initializeKafkaWithRetry()
	if kafkaErr != nil {
		s.T().Fatal("Kafka initialization failed:", kafkaErr)
	}
	return controller.NewLedgerService(s.dbRepo, s.producer, s.logger)
}

func (s *IntegrationTestSuite) seedContract(ctx context.Context, svc *controller.LedgerService) (*models.Contract, uuid.UUID) {
	customer, err := svc.CreateOrganization(ctx, &models.Organization{Name: "Customer LLC", TaxID: "7701234567"})
	require.NoError(s.T(), err)
	contractor, err := svc.CreateOrganization(ctx, &models.Organization{Name: "Contractor LLC", TaxID: "7707654321"})
	require.NoError(s.T(), err)

	ctype := &models.ContractType{ID: uuid.New(), Name: "supply"}
	require.NoError(s.T(), s.dbRepo.CreateContractType(ctx, ctype))
	method := &models.PaymentMethod{ID: uuid.New(), Name: "wire transfer"}
	require.NoError(s.T(), s.dbRepo.CreatePaymentMethod(ctx, method))

	contract, err := svc.CreateContract(ctx, &models.Contract{
		Number:       "C-IT-1",
		CustomerID:   customer.ID,
		ContractorID: contractor.ID,
		TypeID:       ctype.ID,
		SignedAt:     time.Now(),
	})
	require.NoError(s.T(), err)
	return contract, method.ID
}

func (s *IntegrationTestSuite) TestLedgerFlow() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	svc := s.newService()
	contract, methodID := s.seedContract(ctx, svc)

	require.NoError(s.T(), svc.CreateMilestone(ctx, &models.Milestone{
		ContractID: contract.ID,
		No:         1,
		Amount:     decimal.RequireFromString("50000.00"),
		Advance:    decimal.RequireFromString("10000.00"),
	}))
	_, err := svc.CreatePayment(ctx, &models.Payment{
		ContractID: contract.ID,
		PaidAt:     time.Now(),
		Amount:     decimal.RequireFromString("10000.00"),
		MethodID:   methodID,
	})
	require.NoError(s.T(), err)

	fresh, err := svc.GetContract(ctx, contract.ID)
	require.NoError(s.T(), err)
	assert.True(s.T(), fresh.TotalAmount.Equal(decimal.RequireFromString("50000.00")))
	assert.True(s.T(), fresh.PaidAmount.Equal(decimal.RequireFromString("10000.00")))
	assert.True(s.T(), fresh.DebtAmount.Equal(decimal.RequireFromString("40000.00")))

	s.verifyKafkaEvent(ctx, contract.ID)
}

func (s *IntegrationTestSuite) TestDeleteContractCascade() {
	ctx, cancel := context.WithTimeout(context.Background(), s.testTimeout)
	defer cancel()

	svc := s.newService()
	contract, methodID := s.seedContract(ctx, svc)

	require.NoError(s.T(), svc.CreateMilestone(ctx, &models.Milestone{
		ContractID: contract.ID,
		No:         1,
		Amount:     decimal.RequireFromString("100.00"),
	}))
	_, err := svc.CreatePayment(ctx, &models.Payment{
		ContractID: contract.ID,
		PaidAt:     time.Now(),
		Amount:     decimal.RequireFromString("100.00"),
		MethodID:   methodID,
	})
	require.NoError(s.T(), err)

	require.NoError(s.T(), svc.DeleteContract(ctx, contract.ID))

	milestones, err := svc.ListMilestones(ctx, contract.ID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), milestones)
	payments, err := svc.ListPayments(ctx, contract.ID)
	require.NoError(s.T(), err)
	assert.Empty(s.T(), payments)
}

// verifyKafkaEvent waits for an event about the contract to land on the
// topic.
func (s *IntegrationTestSuite) verifyKafkaEvent(ctx context.Context, contractID uuid.UUID) {
	deadline, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for {
		msg, err := s.kafkaReader.ReadMessage(deadline)
		if err != nil {
			s.T().Fatal("did not receive contract event:", err)
		}
		var event events.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			continue
		}
		if event.Contract != nil && event.Contract.ID == contractID {
			return
		}
	}
}
