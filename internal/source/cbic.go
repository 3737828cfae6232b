package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/matheusoption-bit/construction-data-pipeline/internal/catalog"
	"github.com/matheusoption-bit/construction-data-pipeline/internal/model"
)

// cbicBaseURL is where CBIC publishes its statistical workbooks.
const cbicBaseURL = "http://www.cbicdados.com.br/media/anexos/"

// CBICClient downloads CBIC workbooks and extracts their rows. A
// Cache is optional; with one set, fresh downloads are skipped.
type CBICClient struct {
	fetcher *Fetcher
	cache   *Cache
	baseURL string
}

func NewCBICClient(fetcher *Fetcher, cache *Cache) *CBICClient {
	return &CBICClient{fetcher: fetcher, cache: cache, baseURL: cbicBaseURL}
}

// WorkbookURL builds the published file name for a catalog entry.
func (c *CBICClient) WorkbookURL(src catalog.CBICSource) string {
	return fmt.Sprintf("%stabela_%s_%s_%d.xlsx", c.baseURL, src.TableID, src.FileType, src.FileNumber)
}

// FetchTable downloads the workbook for src and returns the rows of
// its configured sheet (the first sheet when none is named).
func (c *CBICClient) FetchTable(ctx context.Context, name string, src catalog.CBICSource) (model.RawTable, error) {
	url := c.WorkbookURL(src)

	path, err := c.download(ctx, url)
	if err != nil {
		return model.RawTable{}, err
	}

	rows, err := readWorkbook(path, src.Sheet)
	if err != nil {
		return model.RawTable{}, eris.Wrapf(err, "cbic: read workbook %s", url)
	}

	zap.L().Debug("cbic: fetched table",
		zap.String("url", url),
		zap.Int("rows", len(rows)))
	return model.NewRawTable(name, url, rows), nil
}

func (c *CBICClient) download(ctx context.Context, url string) (string, error) {
	if c.cache != nil {
		path, err := c.cache.Get(ctx, url)
		if err != nil {
			return "", err
		}
		if path != "" {
			zap.L().Debug("cbic: cache hit", zap.String("url", url))
			return path, nil
		}
	}

	body, err := c.fetcher.Get(ctx, url)
	if err != nil {
		return "", eris.Wrapf(err, "cbic: download %s", url)
	}
	if c.cache != nil {
		return c.cache.Put(ctx, url, body)
	}

	tmp, err := writeTemp(body)
	if err != nil {
		return "", eris.Wrap(err, "cbic: stage download")
	}
	return tmp, nil
}

func readWorkbook(path, sheetName string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "open xlsx")
	}
	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("sheet %q not found", sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cellText(cell)
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

// cellText renders a cell the way the published workbooks display it.
// Typed numeric cells are re-rendered with a comma decimal so the
// downstream locale parser does not read their dot as a thousands
// separator.
func cellText(cell *xlsx.Cell) string {
	if cell.Type() == xlsx.CellTypeNumeric {
		if v, err := cell.Float(); err == nil {
			return strings.ReplaceAll(strconv.FormatFloat(v, 'f', -1, 64), ".", ",")
		}
	}
	return cell.String()
}
