package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
)

// bcbBaseURL is the SGS time-series endpoint of the Banco Central.
const bcbBaseURL = "https://api.bcb.gov.br/dados/serie/bcdata.sgs.%d/dados?formato=json"

// bcbDateLayout is how SGS renders observation dates.
const bcbDateLayout = "02/01/2006"

// BCBClient fetches series observations from the SGS API.
type BCBClient struct {
	fetcher *Fetcher
	baseURL string
}

func NewBCBClient(fetcher *Fetcher) *BCBClient {
	return &BCBClient{fetcher: fetcher, baseURL: bcbBaseURL}
}

type bcbObservation struct {
	Data  string `json:"data"`
	Valor string `json:"valor"`
}

// FetchSeries downloads one SGS series and returns it as a raw tall
// table with a data and a valor column. Values stay in the API's
// pt-BR rendering for the locale parser to handle downstream.
func (c *BCBClient) FetchSeries(ctx context.Context, name string, code int, since time.Time) (model.RawTable, error) {
	url := fmt.Sprintf(c.baseURL, code)
	if !since.IsZero() {
		url += "&dataInicial=" + since.Format(bcbDateLayout)
	}

	body, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return model.RawTable{}, eris.Wrapf(err, "bcb: fetch series %d", code)
	}

	var obs []bcbObservation
	if err := json.Unmarshal(body, &obs); err != nil {
		return model.RawTable{}, eris.Wrapf(err, "bcb: decode series %d", code)
	}

	rows := make([][]string, 0, len(obs)+1)
	rows = append(rows, []string{"data", "valor"})
	for _, o := range obs {
		rows = append(rows, []string{o.Data, o.Valor})
	}

	zap.L().Debug("bcb: fetched series",
		zap.Int("code", code),
		zap.Int("observations", len(obs)))
	return model.NewRawTable(name, url, rows), nil
}
