package api

import (
	"fmt"
	"net/http"
	"time"

	"kisquote/internal/domain/models"
	domrepo "kisquote/internal/domain/repository"
	"kisquote/internal/service/calendar"
	"kisquote/internal/usecase"
	xhttp "kisquote/pkg/http"
	xlogger "kisquote/pkg/logger"
	"kisquote/pkg/util"

	"github.com/labstack/echo/v4"
)

// maxBatchTickers caps one request's ticker count to protect the upstream
// provider's rate budget.
const maxBatchTickers = 10

// QuotesHandler exposes the batch quote and daily-close endpoints.
type QuotesHandler struct {
	logger   *xlogger.Logger
	quotes   *usecase.QuoteService
	calendar *calendar.Calendar
	store    domrepo.PriceStore
}

func NewQuotesHandler(
	logger *xlogger.Logger,
	quotes *usecase.QuoteService,
	cal *calendar.Calendar,
	store domrepo.PriceStore,
) *QuotesHandler {
	return &QuotesHandler{logger: logger, quotes: quotes, calendar: cal, store: store}
}

func (h *QuotesHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/quotes", h.Quotes)
	g.GET("/closes", h.Closes)
	e.GET("/health", h.Health)
}

// Quotes resolves current prices for up to maxBatchTickers tickers.
func (h *QuotesHandler) Quotes(c echo.Context) error {
	req := &models.QuotesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tickers, verr := h.parseTickers(req.Tickers)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res := h.quotes.GetBatch(c.Request().Context(), tickers)
	return xhttp.SuccessResponse(c, res)
}

// Closes returns daily closing prices for a trading date. A missing date
// means the previous business day.
func (h *QuotesHandler) Closes(c echo.Context) error {
	req := &models.ClosesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	tickers, verr := h.parseTickers(req.Tickers)
	if verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var date time.Time
	if req.Date == "" {
		prev, err := h.calendar.PreviousBusinessDay(time.Now().In(h.calendar.Location()))
		if err != nil {
			h.logger.Error("previous business day lookup failed", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.InternalError("calendar lookup failed").WithError(err))
		}
		date = prev
	} else {
		parsed, err := util.ParseYYYYMMDD(req.Date, h.calendar.Location())
		if err != nil {
			return xhttp.BadRequestResponse(c, []xhttp.ValidationError{{
				Code:    "ERR_DATE",
				Field:   "date",
				Message: "date must be a valid YYYYMMDD calendar date",
			}})
		}
		date = parsed
	}

	closes := h.quotes.GetHistoricalClose(c.Request().Context(), tickers, date)
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"date":   util.FormatYYYYMMDD(date),
		"closes": closes,
	})
}

// Health reports store reachability.
func (h *QuotesHandler) Health(c echo.Context) error {
	if err := h.store.Health(c.Request().Context()); err != nil {
		h.logger.Warn("health check failed", xlogger.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *QuotesHandler) parseTickers(raw string) ([]string, interface{}) {
	tickers := util.SplitCSV(raw)
	if len(tickers) == 0 {
		return nil, []xhttp.ValidationError{{
			Code:    "ERR_REQUIRED",
			Field:   "tickers",
			Message: "tickers must contain at least one ticker",
		}}
	}
	if len(tickers) > maxBatchTickers {
		return nil, []xhttp.ValidationError{{
			Code:    "ERR_MAX",
			Field:   "tickers",
			Message: fmt.Sprintf("tickers must contain at most %d tickers", maxBatchTickers),
			Params:  map[string]interface{}{"max": maxBatchTickers},
		}}
	}
	return tickers, nil
}
