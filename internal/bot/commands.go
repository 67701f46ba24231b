package bot

import (
	"context"
	"fmt"
	"time"

	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// ============================================================
// Команды и их исполнитель
// ============================================================

// Command - шаг отправки на биржу
type Command interface {
	Name() string
	Execute(ctx context.Context) error
}

// CancelBotOrdersCommand отменяет открытые ордера бота по тикеру.
// Ручные ордера пользователя не трогаются.
type CancelBotOrdersCommand struct {
	Client exchange.Client
	Ticker string

	// Cancelled - сколько ордеров отменено, заполняется в Execute
	Cancelled int
}

func (c *CancelBotOrdersCommand) Name() string { return "cancel_bot_orders" }

func (c *CancelBotOrdersCommand) Execute(ctx context.Context) error {
	n, err := CancelBotOrders(ctx, c.Client, c.Ticker, nil)
	c.Cancelled = n
	return err
}

// CancelBotOrders отменяет ордера бота, прошедшие filter (nil - все).
// Возвращает число отменённых.
func CancelBotOrders(ctx context.Context, client exchange.Client, ticker string, filter func(models.OpenOrder) bool) (int, error) {
	open, err := client.GetOpenOrders(ctx, ticker)
	if err != nil {
		return 0, fmt.Errorf("get open orders %s: %w", ticker, err)
	}

	var ids []string
	for _, o := range open {
		if !o.IsBot() {
			continue
		}
		if filter != nil && !filter(o) {
			continue
		}
		ids = append(ids, o.OrderID)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	if err := client.CancelOrders(ctx, ticker, ids); err != nil {
		return 0, fmt.Errorf("cancel %d orders %s: %w", len(ids), ticker, err)
	}
	return len(ids), nil
}

// OrderCommand отправляет группу ордеров по порядку.
// Пустая группа - не ошибка.
type OrderCommand struct {
	Client exchange.Client
	Label  string
	Orders []*models.Order

	placed []*models.Order
}

func (c *OrderCommand) Name() string { return "place_" + c.Label }

func (c *OrderCommand) Execute(ctx context.Context) error {
	for _, order := range c.Orders {
		start := time.Now()
		err := c.Client.PlaceOrder(ctx, order)
		ExchangeCallLatency.WithLabelValues(c.Client.GetName(), "place_order").
			Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			OrdersRejected.WithLabelValues(c.Client.GetName(), string(order.Kind)).Inc()
			return fmt.Errorf("place %s: %w", order, err)
		}
		OrdersPlaced.WithLabelValues(c.Client.GetName(), string(order.Kind)).Inc()
		c.placed = append(c.placed, order)
	}
	return nil
}

// Placed - ордера, принятые биржей, включая часть группы до ошибки
func (c *OrderCommand) Placed() []*models.Order {
	return c.placed
}

// Invoker исполняет команды строго по очереди и останавливается
// на первой ошибке. Создаётся на каждый запрос.
type Invoker struct {
	commands []Command
	executed []Command
}

func NewInvoker(commands ...Command) *Invoker {
	return &Invoker{commands: commands}
}

func (i *Invoker) Add(cmd Command) {
	i.commands = append(i.commands, cmd)
}

func (i *Invoker) Run(ctx context.Context) error {
	log := utils.L().WithComponent("invoker")
	for _, cmd := range i.commands {
		if err := cmd.Execute(ctx); err != nil {
			log.Error("command failed", utils.String("command", cmd.Name()), utils.Err(err))
			return fmt.Errorf("%s: %w", cmd.Name(), err)
		}
		i.executed = append(i.executed, cmd)
	}
	return nil
}

// Executed - успешно исполненные команды в порядке исполнения
func (i *Invoker) Executed() []Command {
	out := make([]Command, len(i.executed))
	copy(out, i.executed)
	return out
}

// PlacedOrders - все ордера, которые успели уйти на биржу.
// После ошибки сюда попадает и начало упавшей группы.
func (i *Invoker) PlacedOrders() []*models.Order {
	var out []*models.Order
	for _, cmd := range i.commands {
		if oc, ok := cmd.(*OrderCommand); ok {
			out = append(out, oc.Placed()...)
		}
	}
	return out
}
