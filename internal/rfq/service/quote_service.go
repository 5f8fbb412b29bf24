package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c1767673917/wlxj/internal/rfq/entity"
	"github.com/c1767673917/wlxj/internal/rfq/repository"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var (
	ErrOrderClosed = errors.New("订单已结束，无法报价")
	ErrNotInvited  = errors.New("未受邀参与该订单询价")
)

// QuoteService 报价服务
type QuoteService struct {
	quotes *repository.QuoteRepository
	orders *repository.OrderRepository
	logger *zap.Logger
}

func NewQuoteService(quotes *repository.QuoteRepository, orders *repository.OrderRepository, logger *zap.Logger) *QuoteService {
	return &QuoteService{quotes: quotes, orders: orders, logger: logger}
}

// SubmitInput 供应商提交报价入参
type SubmitInput struct {
	OrderID      uint
	SupplierID   uint
	Price        decimal.Decimal
	DeliveryTime string
	Remarks      string
}

// Submit 供应商提交或更新报价
// 同一供应商对同一订单仅保留一条报价，重复提交覆盖旧值并刷新时间
func (s *QuoteService) Submit(ctx context.Context, input SubmitInput) (*entity.Quote, error) {
	if err := entity.ValidateQuotePrice(input.Price); err != nil {
		return nil, err
	}

	order, err := s.orders.FindInvitedByID(ctx, input.OrderID, input.SupplierID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotInvited
		}
		return nil, err
	}
	if order.Status != entity.OrderStatusActive {
		return nil, ErrOrderClosed
	}

	quote, err := s.quotes.FindByOrderAndSupplier(ctx, input.OrderID, input.SupplierID)
	switch {
	case err == nil:
		quote.Price = input.Price
		quote.DeliveryTime = input.DeliveryTime
		quote.Remarks = input.Remarks
		quote.CreatedAt = time.Now()
	case errors.Is(err, repository.ErrNotFound):
		quote = &entity.Quote{
			OrderID:      input.OrderID,
			SupplierID:   input.SupplierID,
			Price:        input.Price,
			DeliveryTime: input.DeliveryTime,
			Remarks:      input.Remarks,
		}
	default:
		return nil, err
	}

	if err := s.quotes.Save(ctx, quote); err != nil {
		return nil, err
	}

	s.logger.Info("报价已提交",
		zap.String("order_no", order.OrderNo),
		zap.Uint("supplier_id", input.SupplierID),
		zap.String("price", input.Price.String()))
	return quote, nil
}

// ListByOrder 查询订单的全部报价，按价格升序
func (s *QuoteService) ListByOrder(ctx context.Context, orderID uint) ([]entity.Quote, error) {
	return s.quotes.ListByOrder(ctx, orderID)
}

// HistoryBySupplier 查询供应商历史报价
func (s *QuoteService) HistoryBySupplier(ctx context.Context, supplierID uint) ([]entity.Quote, error) {
	return s.quotes.ListBySupplier(ctx, supplierID)
}

// CountByOrder 订单已收到的报价数量
func (s *QuoteService) CountByOrder(ctx context.Context, orderID uint) (int64, error) {
	return s.quotes.CountByOrder(ctx, orderID)
}

// Summary 订单报价摘要
func (s *QuoteService) Summary(ctx context.Context, orderID uint) (*repository.QuoteSummary, error) {
	return s.quotes.Summary(ctx, orderID)
}

// CompareStats 订单报价比较统计
type CompareStats struct {
	Count    int             `json:"count"`
	MinPrice decimal.Decimal `json:"min_price"`
	MaxPrice decimal.Decimal `json:"max_price"`
	AvgPrice decimal.Decimal `json:"avg_price"`
	Range    decimal.Decimal `json:"range"`
}

// Compare 计算订单报价的最低、最高、均价与价差
func (s *QuoteService) Compare(ctx context.Context, orderID uint) ([]entity.Quote, *CompareStats, error) {
	quotes, err := s.quotes.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if len(quotes) == 0 {
		return quotes, nil, nil
	}

	// 列表已按价格升序
	min := quotes[0].Price
	max := quotes[len(quotes)-1].Price
	sum := decimal.Zero
	for _, q := range quotes {
		sum = sum.Add(q.Price)
	}
	avg := sum.DivRound(decimal.NewFromInt(int64(len(quotes))), 2)

	return quotes, &CompareStats{
		Count:    len(quotes),
		MinPrice: min,
		MaxPrice: max,
		AvgPrice: avg,
		Range:    max.Sub(min),
	}, nil
}

// ExportOrderQuotes 导出订单报价明细为xlsx
func (s *QuoteService) ExportOrderQuotes(ctx context.Context, order *entity.Order) (*excelize.File, string, error) {
	quotes, err := s.quotes.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	sheet := "报价明细"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"供应商", "报价(元)", "交货时间", "备注", "报价时间"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, q := range quotes {
		name := ""
		if q.Supplier != nil {
			name = q.Supplier.Name
		}
		values := []interface{}{
			name,
			q.Price.String(),
			q.DeliveryTime,
			q.Remarks,
			q.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("quotes_%s_%s.xlsx", order.OrderNo, time.Now().Format("20060102150405"))
	return f, filename, nil
}
