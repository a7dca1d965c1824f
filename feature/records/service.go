package records

import (
	"context"
	"fmt"

	"payment-reconciler/core/reconcile"
	"payment-reconciler/core/server"
	"payment-reconciler/core/utils"

	"go.uber.org/zap"
)

// Repository is the persistence the service needs.
type Repository interface {
	UpsertSales(ctx context.Context, sales []reconcile.SaleRecord) error
	UpsertSettlements(ctx context.Context, settlements []reconcile.SettlementRecord) error
	UpsertTerminal(ctx context.Context, terminalID, processor string) error
	GetSale(ctx context.Context, id string) (reconcile.SaleRecord, error)
	GetSettlement(ctx context.Context, id string) (reconcile.SettlementRecord, error)
}

// Service validates and stores incoming records.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a records service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// IngestSales validates every sale and stores the batch atomically.
func (s *Service) IngestSales(ctx context.Context, req SalesRequest) (int, error) {
	if err := server.Validate(req); err != nil {
		return 0, err
	}

	sales := make([]reconcile.SaleRecord, 0, len(req.Sales))
	for i, dto := range req.Sales {
		date, err := utils.ParseDate(dto.Date)
		if err != nil {
			return 0, &reconcile.ValidationError{Field: fmt.Sprintf("sales[%d].date", i), Message: err.Error()}
		}
		sale := reconcile.SaleRecord{
			ID:                dto.ID,
			TerminalID:        dto.TerminalID,
			Period:            dto.Period,
			Date:              date,
			GrossAmount:       dto.GrossAmount,
			NetAmount:         dto.NetAmount,
			PaymentMethod:     dto.PaymentMethod,
			ExternalReference: dto.ExternalReference,
			Description:       dto.Description,
			Status:            reconcile.StatusUnmatched,
		}
		if err := sale.Validate(); err != nil {
			return 0, indexed("sales", i, err)
		}
		sales = append(sales, sale)
	}

	if err := s.repo.UpsertSales(ctx, sales); err != nil {
		return 0, err
	}
	s.logger.Info("Sales ingested", zap.Int("count", len(sales)))
	return len(sales), nil
}

// IngestSettlements validates every settlement and stores the batch atomically.
func (s *Service) IngestSettlements(ctx context.Context, req SettlementsRequest) (int, error) {
	if err := server.Validate(req); err != nil {
		return 0, err
	}

	settlements := make([]reconcile.SettlementRecord, 0, len(req.Settlements))
	for i, dto := range req.Settlements {
		date, err := utils.ParseDate(dto.Date)
		if err != nil {
			return 0, &reconcile.ValidationError{Field: fmt.Sprintf("settlements[%d].date", i), Message: err.Error()}
		}
		st := reconcile.SettlementRecord{
			ID:                dto.ID,
			TerminalID:        dto.TerminalID,
			Period:            dto.Period,
			Date:              date,
			Amount:            dto.Amount,
			ExternalReference: dto.ExternalReference,
			Description:       dto.Description,
			Status:            reconcile.StatusUnmatched,
		}
		if err := st.Validate(); err != nil {
			return 0, indexed("settlements", i, err)
		}
		settlements = append(settlements, st)
	}

	if err := s.repo.UpsertSettlements(ctx, settlements); err != nil {
		return 0, err
	}
	s.logger.Info("Settlements ingested", zap.Int("count", len(settlements)))
	return len(settlements), nil
}

// SetProcessor assigns a terminal to a payment processor.
func (s *Service) SetProcessor(ctx context.Context, terminalID string, req TerminalRequest) error {
	if err := server.Validate(req); err != nil {
		return err
	}
	if terminalID == "" {
		return &reconcile.ValidationError{Field: "terminal_id", Message: "terminal id required"}
	}
	return s.repo.UpsertTerminal(ctx, terminalID, req.Processor)
}

// Sale returns a stored sale with its current match status.
func (s *Service) Sale(ctx context.Context, id string) (reconcile.SaleRecord, error) {
	return s.repo.GetSale(ctx, id)
}

// Settlement returns a stored settlement with its current match status.
func (s *Service) Settlement(ctx context.Context, id string) (reconcile.SettlementRecord, error) {
	return s.repo.GetSettlement(ctx, id)
}

// indexed prefixes a record validation error with the record's position in the batch.
func indexed(list string, i int, err error) error {
	if ve, ok := err.(*reconcile.ValidationError); ok {
		return &reconcile.ValidationError{Field: fmt.Sprintf("%s[%d].%s", list, i, ve.Field), Message: ve.Message}
	}
	return err
}
