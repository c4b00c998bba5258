package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"adnews/internal/history"
	"adnews/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

type CurrentRates interface {
	CurrentRates(ctx context.Context) ([]model.CurrentRate, error)
}

type SeriesProvider interface {
	Series(ctx context.Context, symbol, period string) ([]model.SeriesPoint, error)
}

type RatesHandler struct {
	rates   CurrentRates
	history SeriesProvider
	logger  *logrus.Logger
}

func NewRatesHandler(rates CurrentRates, history SeriesProvider, logger *logrus.Logger) *RatesHandler {
	return &RatesHandler{
		rates:   rates,
		history: history,
		logger:  logger,
	}
}

type rateResponse struct {
	Symbol    string    `json:"symbol"`
	Glyph     string    `json:"glyph"`
	Rate      string    `json:"rate"`
	UpdatedAt time.Time `json:"updated_at"`
	Provider  string    `json:"provider"`
}

func (h *RatesHandler) List(c *gin.Context) {
	current, err := h.rates.CurrentRates(c.Request.Context())
	if err != nil {
		h.logger.Errorf("Failed to get current rates: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve rates")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"rates": lo.Map(current, func(r model.CurrentRate, _ int) rateResponse {
			return rateResponse{
				Symbol:    r.Symbol,
				Glyph:     r.Glyph,
				Rate:      r.Rate.StringFixed(4),
				UpdatedAt: r.UpdatedAt,
				Provider:  r.Provider,
			}
		}),
	})
}

// History отдает ряд для графика, период по умолчанию day
func (h *RatesHandler) History(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	period := c.DefaultQuery("period", "day")

	series, err := h.history.Series(c.Request.Context(), symbol, period)
	switch {
	case errors.Is(err, history.ErrUnknownPeriod), errors.Is(err, history.ErrUnknownSymbol):
		fail(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		h.logger.WithField("symbol", symbol).Errorf("Failed to build series: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve history")
		return
	}

	if series == nil {
		series = []model.SeriesPoint{}
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"symbol": symbol,
		"period": period,
		"series": series,
	})
}
