package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/a772616239/AutoTrader-sub001/internal/contracts"
	"github.com/a772616239/AutoTrader-sub001/pkg/httputil"
	"github.com/a772616239/AutoTrader-sub001/pkg/logger"
)

// FundamentalsScraper pulls fundamentals off the public financials
// page when the API does not carry them.
type FundamentalsScraper struct {
	client  *httputil.Client
	logger  *logger.Logger
	baseURL string
}

// NewFundamentalsScraper creates the HTML fallback scraper.
func NewFundamentalsScraper(baseURL string, client *httputil.Client, log *logger.Logger) *FundamentalsScraper {
	return &FundamentalsScraper{
		client:  client,
		logger:  log.WithField("component", "fundamentals_scraper"),
		baseURL: baseURL,
	}
}

// Scrape fetches and parses the financial summary table for a
// symbol.
func (s *FundamentalsScraper) Scrape(ctx context.Context, symbol string) (*contracts.Fundamentals, error) {
	endpoint := fmt.Sprintf("%s/stocks/%s/financials", s.baseURL, symbol)

	resp, err := s.client.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	f := &contracts.Fundamentals{Symbol: symbol}
	found := 0

	doc.Find("table.financial-summary tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("th").First().Text())
		value := strings.TrimSpace(row.Find("td").First().Text())
		if label == "" || value == "" {
			return
		}

		switch strings.ToLower(label) {
		case "market cap":
			if v, ok := parseAbbreviated(value); ok {
				f.MarketCap = v
				found++
			}
		case "roe":
			if v, ok := parsePercent(value); ok {
				f.ROE = v
				found++
			}
		case "roa":
			if v, ok := parsePercent(value); ok {
				f.ROA = v
				found++
			}
		case "debt ratio", "debt/equity":
			if v, ok := parseNumber(value); ok {
				f.DebtRatio = v
				found++
			}
		case "revenue growth":
			if v, ok := parsePercent(value); ok {
				f.RevenueGrowth = v
				found++
			}
		case "net income growth":
			if v, ok := parsePercent(value); ok {
				f.NetIncomeGrowth = v
				found++
			}
		case "dividend yield":
			if v, ok := parsePercent(value); ok {
				f.DividendYield = v
				found++
			}
		case "sector":
			f.Sector = value
			found++
		}
	})

	if found == 0 {
		return nil, fmt.Errorf("no fundamentals found for %s", symbol)
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"fields": found,
	}).Debug("Scraped fundamentals")
	return f, nil
}

// parsePercent turns "12.5%" into 0.125.
func parsePercent(s string) (float64, bool) {
	v, ok := parseNumber(strings.TrimSuffix(s, "%"))
	if !ok {
		return 0, false
	}
	return v / 100, true
}

// parseAbbreviated turns "2.95T", "150.2B" or "800M" into a plain
// number.
func parseAbbreviated(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	multiplier := 1.0
	switch s[len(s)-1] {
	case 'T':
		multiplier = 1e12
		s = s[:len(s)-1]
	case 'B':
		multiplier = 1e9
		s = s[:len(s)-1]
	case 'M':
		multiplier = 1e6
		s = s[:len(s)-1]
	}

	v, ok := parseNumber(s)
	if !ok {
		return 0, false
	}
	return v * multiplier, true
}

func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimPrefix(s, "$")
	if s == "" || s == "-" || s == "N/A" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
