package history

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"adnews/internal/fetch"
	"adnews/internal/model"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html/charset"
)

const cbrDateLayout = "02/01/2006"

// коды валют в справочнике ЦБ
var cbrCurrencyIDs = map[string]string{
	"USD": "R01235",
	"EUR": "R01239",
	"CNY": "R01375",
}

// CBRHistory reads daily rates for a date range from the central bank XML service.
type CBRHistory struct {
	client *fetch.Client
	url    string
}

func NewCBRHistory(client *fetch.Client, endpoint string) *CBRHistory {
	return &CBRHistory{client: client, url: endpoint}
}

type valCurs struct {
	XMLName xml.Name    `xml:"ValCurs"`
	Records []cbrRecord `xml:"Record"`
}

type cbrRecord struct {
	Date    string `xml:"Date,attr"`
	Nominal string `xml:"Nominal"`
	Value   string `xml:"Value"`
}

func (c *CBRHistory) Supports(symbol string) bool {
	_, ok := cbrCurrencyIDs[symbol]
	return ok
}

// Series returns one point per published day between from and to, oldest first.
func (c *CBRHistory) Series(ctx context.Context, symbol string, from, to time.Time) ([]model.SeriesPoint, error) {
	id, ok := cbrCurrencyIDs[symbol]
	if !ok {
		return nil, fmt.Errorf("no central bank code for %s", symbol)
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	q.Set("date_req1", from.Format(cbrDateLayout))
	q.Set("date_req2", to.Format(cbrDateLayout))
	q.Set("VAL_NM_RQ", id)
	u.RawQuery = q.Encode()

	body, err := c.client.Open(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	// ответ ЦБ в windows-1251
	decoder := xml.NewDecoder(body)
	decoder.CharsetReader = charset.NewReaderLabel

	var doc valCurs
	if err := decoder.Decode(&doc); err != nil {
		return nil, &fetch.DecodeError{URL: u.String(), Err: err}
	}

	points := make([]model.SeriesPoint, 0, len(doc.Records))
	for _, r := range doc.Records {
		value, err := parseCommaDecimal(r.Value)
		if err != nil {
			return nil, &fetch.DecodeError{URL: u.String(), Err: err}
		}

		nominal := decimal.NewFromInt(1)
		if strings.TrimSpace(r.Nominal) != "" {
			nominal, err = parseCommaDecimal(r.Nominal)
			if err != nil || nominal.IsZero() {
				return nil, &fetch.DecodeError{URL: u.String(), Err: fmt.Errorf("bad nominal %q", r.Nominal)}
			}
		}

		points = append(points, model.SeriesPoint{
			Label: r.Date,
			Value: value.Div(nominal).Round(4),
		})
	}

	return points, nil
}

func parseCommaDecimal(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
}
