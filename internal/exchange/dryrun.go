package exchange

import (
	"context"
	"sync"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// DryRun оборачивает адаптер биржи: чтения идут на биржу,
// изменения (ордера, отмены, плечо, маржа) только логируются.
type DryRun struct {
	Exchange

	log *utils.Logger

	mu     sync.Mutex
	placed []*models.Order
}

// NewDryRun оборачивает адаптер
func NewDryRun(inner Exchange) *DryRun {
	return &DryRun{
		Exchange: inner,
		log:      utils.L().WithComponent("dryrun").WithExchange(inner.GetName()),
	}
}

func (d *DryRun) PlaceOrder(_ context.Context, order *models.Order) error {
	d.log.Info("dry run: order not sent",
		utils.OrderID(order.ID),
		utils.OrderKind(string(order.Kind)),
		utils.Symbol(order.Ticker),
		utils.Side(string(order.Side)),
		utils.String("type", string(order.Type)),
		utils.Quantity(order.Quantity),
		utils.Price(order.TriggerPrice),
		utils.Bool("close_position", order.ClosePosition),
	)

	d.mu.Lock()
	d.placed = append(d.placed, order)
	d.mu.Unlock()
	return nil
}

func (d *DryRun) CancelOrders(_ context.Context, ticker string, orderIDs []string) error {
	d.log.Info("dry run: orders not cancelled", utils.Symbol(ticker), utils.Any("order_ids", orderIDs))
	return nil
}

func (d *DryRun) UpdateLeverage(_ context.Context, ticker string, leverage int) error {
	d.log.Info("dry run: leverage not changed", utils.Symbol(ticker), utils.Int("leverage", leverage))
	return nil
}

func (d *DryRun) UpdateMarginType(_ context.Context, ticker string, marginType models.MarginType) error {
	d.log.Info("dry run: margin type not changed", utils.Symbol(ticker), utils.String("margin_type", string(marginType)))
	return nil
}

// Placed возвращает ордера, которые были бы отправлены
func (d *DryRun) Placed() []*models.Order {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.Order, len(d.placed))
	copy(out, d.placed)
	return out
}
