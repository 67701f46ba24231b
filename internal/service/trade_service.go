package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"tradebot/internal/bot"
	"tradebot/internal/config"
	"tradebot/internal/exchange"
	"tradebot/internal/models"
	"tradebot/internal/repository"
	"tradebot/internal/validation"
	"tradebot/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки сервиса
var (
	ErrJournalDisabled = errors.New("trade journal is disabled")

	// ErrUnsupportedUpdateSource - поле exchange в /order-update не распознано
	ErrUnsupportedUpdateSource = errors.New(`Request must include "exchange" property. Valid exchanges: BINANCE, TESTNET, BYBIT, BYBIT_TESTNET`)
)

// Ответы при отказе аутентификации
const (
	msgInvalidUser = "Invalid user"
	msgAuthFailed  = "Authentication Failed!"
)

// Метка результата для запросов, не прошедших аутентификацию
const resultUnauthorized = "unauthorized"

// journalTimeout - запись в журнал после ответа биржи,
// не зависит от дедлайна запроса
const journalTimeout = 5 * time.Second

// TradeService - обработка запросов /webhook, /exit, /order-update
//
// На каждый запрос:
// 1. Аутентификация по userId и полю auth
// 2. Нормализация и валидация тела
// 3. Адаптер биржи с ключами пользователя (testnet, dry run)
// 4. Обработчик торгового ядра с таймаутом запроса
// 5. Запись в журнал и рассылка подписчикам WebSocket
//
// Ответы всегда в форме {code, body} или {code, message}, ошибок наружу нет.
type TradeService struct {
	users       UserAuthenticator
	validator   *validation.Validator
	newExchange ExchangeFactory
	trading     config.TradingConfig

	// Журнал и рассылка необязательны (nil - выключены)
	journal     TradeJournalInterface
	broadcaster TradeBroadcaster

	log *utils.Logger
}

// NewTradeService создает сервис с адаптерами бирж по умолчанию
func NewTradeService(users UserAuthenticator, trading config.TradingConfig) *TradeService {
	return &TradeService{
		users:       users,
		validator:   validation.New(),
		newExchange: exchange.NewExchange,
		trading:     trading,
		log:         utils.L().WithComponent("trade_service"),
	}
}

// SetJournal подключает журнал сделок.
//
// Вызывается в main.go только при DB_ENABLED:
//
//	svc.SetJournal(repository.NewTradeRepository(db))
func (s *TradeService) SetJournal(journal TradeJournalInterface) {
	s.journal = journal
}

// SetBroadcaster устанавливает WebSocket hub для рассылки сделок
func (s *TradeService) SetBroadcaster(b TradeBroadcaster) {
	s.broadcaster = b
}

// SetExchangeFactory заменяет создание адаптеров бирж
func (s *TradeService) SetExchangeFactory(f ExchangeFactory) {
	s.newExchange = f
}

// Authenticate проверяет пользователя без обработки запроса (WebSocket, журнал)
func (s *TradeService) Authenticate(userID, auth string) error {
	_, err := s.users.Authenticate(userID, auth)
	return err
}

// ============================================================
// /webhook
// ============================================================

// HandleWebhook исполняет торговый сигнал
func (s *TradeService) HandleWebhook(ctx context.Context, userID string, p *models.WebhookPayload) *models.HandlerResponse {
	profile, denied := s.authenticate(models.TradeActionEntry, userID, p.Auth)
	if denied != nil {
		return denied
	}

	validation.NormalizeWebhook(p)
	if p.Risk.PortfolioRisk == nil {
		risk := s.trading.MaxPortfolioRisk
		p.Risk.PortfolioRisk = &risk
	}

	rec := newRecord(userID, models.TradeActionEntry, profile.ExchangeOr(s.trading.DefaultExchange), p.Position.Ticker)
	rec.Side = string(p.Position.Side)
	rec.IsTestPlatform = p.IsTestPlatform
	rec.IsDryRun = p.IsDryRun

	if err := s.validator.ValidateWebhook(p); err != nil {
		return s.reject(ctx, rec, err)
	}

	ex, err := s.connect(rec.Exchange, profile, p.IsTestPlatform, p.IsDryRun)
	if err != nil {
		return s.reject(ctx, rec, err)
	}

	reqCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	handler := &bot.WebhookHandler{
		Client:    ex,
		Markets:   ex,
		Payload:   p,
		ATRWindow: s.trading.ATRWindow,
	}
	resp, err := handler.Handle(reqCtx)
	if err != nil {
		// часть ордеров могла уйти до сбоя: журнал должен их знать
		if plan := handler.Plan(); plan != nil {
			for i, order := range plan.Placed {
				rec.Orders = append(rec.Orders, models.NewTradeOrderRecord(i+1, order))
			}
		}
		return s.reject(ctx, rec, err)
	}

	if plan := handler.Plan(); plan != nil {
		for i, order := range plan.Orders() {
			rec.Orders = append(rec.Orders, models.NewTradeOrderRecord(i+1, order))
		}
	}
	return s.complete(ctx, rec, models.TradeStatusPlaced, resp)
}

// ============================================================
// /exit
// ============================================================

// HandleExit закрывает позицию и ордера бота по сигналу выхода
func (s *TradeService) HandleExit(ctx context.Context, userID string, p *models.ExitPayload) *models.HandlerResponse {
	profile, denied := s.authenticate(models.TradeActionExit, userID, p.Auth)
	if denied != nil {
		return denied
	}

	p.Ticker = utils.NormalizeSymbol(p.Ticker)

	rec := newRecord(userID, models.TradeActionExit, profile.ExchangeOr(s.trading.DefaultExchange), p.Ticker)
	rec.Side = p.ExitSide
	rec.IsTestPlatform = p.IsTestPlatform
	rec.IsDryRun = p.IsDryRun

	if err := s.validator.ValidateExit(p); err != nil {
		return s.reject(ctx, rec, err)
	}

	ex, err := s.connect(rec.Exchange, profile, p.IsTestPlatform, p.IsDryRun)
	if err != nil {
		return s.reject(ctx, rec, err)
	}

	reqCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	handler := &bot.ExitHandler{Client: ex, Markets: ex, Payload: p, UserID: userID}
	resp, err := handler.Handle(reqCtx)
	if err != nil {
		return s.reject(ctx, rec, err)
	}

	status := models.TradeStatusPlaced
	if _, kept := resp.Body.(bot.MessageBody); kept {
		status = models.TradeStatusSkipped
	}
	return s.complete(ctx, rec, status, resp)
}

// ============================================================
// /order-update
// ============================================================

// HandleOrderUpdate обрабатывает событие ордера, пересланное с биржи
func (s *TradeService) HandleOrderUpdate(ctx context.Context, userID string, p *models.OrderUpdatePayload) *models.HandlerResponse {
	profile, denied := s.authenticate(models.TradeActionOrderUpdate, userID, p.Auth)
	if denied != nil {
		return denied
	}

	p.Order.Order.Symbol = utils.NormalizeSymbol(p.Order.Order.Symbol)

	rec := newRecord(userID, models.TradeActionOrderUpdate, "", p.Order.Order.Symbol)
	rec.Side = p.Order.Order.Side
	rec.IsDryRun = p.IsDryRun

	if err := s.validator.ValidateOrderUpdate(p); err != nil {
		return s.reject(ctx, rec, err)
	}

	name, testnet, err := exchange.ParseUpdateSource(p.Exchange)
	if err != nil {
		return s.reject(ctx, rec, ErrUnsupportedUpdateSource)
	}
	rec.Exchange = name
	rec.IsTestPlatform = testnet

	ex, err := s.connect(name, profile, testnet, p.IsDryRun)
	if err != nil {
		return s.reject(ctx, rec, err)
	}

	reqCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	handler := &bot.OrderUpdateHandler{Client: ex, Payload: p}
	resp, err := handler.Handle(reqCtx)
	if err != nil {
		return s.reject(ctx, rec, err)
	}

	status := models.TradeStatusSkipped
	if summary, ok := resp.Body.(*models.OrderUpdateSummary); ok && (summary.OrdersCancelled || summary.StopLossMoved) {
		status = models.TradeStatusPlaced
	}
	return s.complete(ctx, rec, status, resp)
}

// ============================================================
// Журнал
// ============================================================

// ListTrades возвращает последние сделки пользователя
func (s *TradeService) ListTrades(ctx context.Context, userID, auth string, filter models.TradeFilter) ([]*models.TradeRecord, error) {
	if err := s.Authenticate(userID, auth); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	filter.UserID = userID
	filter.Ticker = utils.NormalizeSymbol(filter.Ticker)
	return s.journal.List(ctx, filter)
}

// GetTrade возвращает сделку пользователя с ордерами.
// Чужая сделка неотличима от отсутствующей.
func (s *TradeService) GetTrade(ctx context.Context, userID, auth, id string) (*models.TradeRecord, error) {
	if err := s.Authenticate(userID, auth); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	trade, err := s.journal.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if trade.UserID != userID {
		return nil, repository.ErrTradeNotFound
	}
	return trade, nil
}

// ============================================================
// Внутренние методы
// ============================================================

func (s *TradeService) authenticate(action, userID, auth string) (config.UserProfile, *models.HandlerResponse) {
	profile, err := s.users.Authenticate(userID, auth)
	if err == nil {
		return profile, nil
	}

	bot.WebhookRequests.WithLabelValues(action, resultUnauthorized).Inc()
	s.log.Warn("request unauthorized",
		utils.UserID(userID),
		utils.String("action", action),
		utils.Err(err),
	)

	msg := msgAuthFailed
	if errors.Is(err, config.ErrUnknownUser) {
		msg = msgInvalidUser
	}
	return config.UserProfile{}, &models.HandlerResponse{Code: http.StatusUnauthorized, Message: msg}
}

func (s *TradeService) connect(name string, profile config.UserProfile, testnet, dryRun bool) (exchange.Exchange, error) {
	return s.newExchange(name, exchange.Options{
		Credentials: profile.Credentials(name, testnet),
		Testnet:     testnet,
		DryRun:      dryRun,
	})
}

func (s *TradeService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.trading.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.trading.RequestTimeout)
}

func newRecord(userID, action, exchangeName, ticker string) *models.TradeRecord {
	return &models.TradeRecord{
		ID:       uuid.NewString(),
		UserID:   userID,
		Action:   action,
		Exchange: exchangeName,
		Ticker:   ticker,
	}
}

// reject записывает отказ и возвращает 400
func (s *TradeService) reject(ctx context.Context, rec *models.TradeRecord, err error) *models.HandlerResponse {
	rec.Status = models.TradeStatusRejected
	rec.ErrorMessage = err.Error()

	fields := []utils.Field{
		utils.UserID(rec.UserID),
		utils.String("action", rec.Action),
		utils.Exchange(rec.Exchange),
		utils.Symbol(rec.Ticker),
		utils.Err(err),
	}
	if bot.IsRejection(err) || isClientError(err) {
		s.log.Warn("request rejected", fields...)
	} else {
		s.log.Error("request failed", fields...)
	}

	bot.WebhookRequests.WithLabelValues(rec.Action, rec.Status).Inc()
	s.publish(ctx, rec)

	if errors.Is(err, bot.ErrInvalidExitSide) || errors.Is(err, ErrUnsupportedUpdateSource) {
		return &models.HandlerResponse{Code: http.StatusBadRequest, Message: err.Error()}
	}
	return &models.HandlerResponse{Code: http.StatusBadRequest, Body: err.Error()}
}

// complete записывает успешную обработку и возвращает ответ обработчика
func (s *TradeService) complete(ctx context.Context, rec *models.TradeRecord, status string, resp *models.HandlerResponse) *models.HandlerResponse {
	rec.Status = status
	if summary, err := json.Marshal(resp.Body); err == nil {
		rec.Summary = summary
	} else {
		s.log.Warn("marshal summary", utils.Err(err))
	}

	bot.WebhookRequests.WithLabelValues(rec.Action, status).Inc()
	s.log.Info("request processed",
		utils.UserID(rec.UserID),
		utils.String("action", rec.Action),
		utils.Exchange(rec.Exchange),
		utils.Symbol(rec.Ticker),
		utils.String("status", status),
		utils.DryRun(rec.IsDryRun),
		utils.TestPlatform(rec.IsTestPlatform),
	)

	s.publish(ctx, rec)
	return resp
}

// publish пишет запись в журнал и рассылает её. Ошибка журнала не меняет ответ.
func (s *TradeService) publish(ctx context.Context, rec *models.TradeRecord) {
	if s.journal != nil {
		jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
		if err := s.journal.Create(jctx, rec); err != nil {
			s.log.Error("journal trade", utils.String("trade_id", rec.ID), utils.Err(err))
		}
		cancel()
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastTrade(rec)
	}
}

// isClientError - ошибка в данных запроса, а не сбой биржи
func isClientError(err error) bool {
	var verrs utils.ValidationErrors
	return errors.As(err, &verrs) ||
		errors.Is(err, bot.ErrInvalidExitSide) ||
		errors.Is(err, ErrUnsupportedUpdateSource)
}
