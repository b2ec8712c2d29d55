package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"BreadthSentinel/internal/model"
)

// FMPFetcher implements Fetcher using the Financial Modeling Prep v3 API.
type FMPFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewFMPFetcher creates a new FMP fetcher with optional proxy support.
func NewFMPFetcher(baseURL, apiKey, proxyURL string) *FMPFetcher {
	if baseURL == "" {
		baseURL = "https://financialmodelingprep.com/api/v3"
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &FMPFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *FMPFetcher) Name() string { return "fmp" }

type fmpConstituent struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Sector string `json:"sector"`
}

type fmpHistorical struct {
	Symbol     string `json:"symbol"`
	Historical []struct {
		Date  string  `json:"date"`
		Close float64 `json:"close"`
	} `json:"historical"`
}

func (f *FMPFetcher) get(endpoint string, out interface{}) error {
	u := fmt.Sprintf("%s/%s", f.BaseURL, endpoint)
	resp, err := f.Client.Get(u)
	if err != nil {
		return fmt.Errorf("fmp fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fmp read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fmp: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("fmp decode: %w", err)
	}
	return nil
}

// FetchConstituents returns the current S&P 500 membership list.
func (f *FMPFetcher) FetchConstituents() ([]model.Constituent, error) {
	var raw []fmpConstituent
	endpoint := fmt.Sprintf("sp500_constituent?apikey=%s", url.QueryEscape(f.APIKey))
	if err := f.get(endpoint, &raw); err != nil {
		return nil, &UpstreamError{Op: "constituents", Err: err}
	}
	if len(raw) == 0 {
		return nil, &UpstreamError{Op: "constituents", Err: fmt.Errorf("empty constituent list")}
	}
	cons := make([]model.Constituent, len(raw))
	for i, c := range raw {
		cons[i] = model.Constituent{Symbol: c.Symbol, Name: c.Name, Sector: c.Sector}
	}
	return cons, nil
}

// FetchDailyCloses returns up to days of end-of-day closes, oldest first.
// FMP returns history newest-first, so the result is re-sorted here even
// though engine-side sorting would also cover it.
func (f *FMPFetcher) FetchDailyCloses(symbol string, days int) ([]model.PricePoint, error) {
	var raw fmpHistorical
	endpoint := fmt.Sprintf("historical-price-full/%s?timeseries=%d&apikey=%s",
		url.PathEscape(symbol), days, url.QueryEscape(f.APIKey))
	if err := f.get(endpoint, &raw); err != nil {
		return nil, &UpstreamError{Op: "history", Symbol: symbol, Err: err}
	}

	points := make([]model.PricePoint, 0, len(raw.Historical))
	for _, h := range raw.Historical {
		if h.Date == "" || h.Close == 0 {
			continue // skip null bars (holidays etc.)
		}
		points = append(points, model.PricePoint{Date: h.Date, Close: h.Close})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date < points[j].Date })
	return points, nil
}
