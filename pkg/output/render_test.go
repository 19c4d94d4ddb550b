package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ilkoid/poncho-fmp/pkg/fmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) fmp.RecordSet {
	t.Helper()
	var rs fmp.RecordSet
	require.NoError(t, json.Unmarshal([]byte(body), &rs))
	return rs
}

// TestRender_RawWithPrecision — округление перед выводом структуры.
func TestRender_RawWithPrecision(t *testing.T) {
	rs := decode(t, `[{"date":"2024-01-01","value":3.14159}]`)

	out := Render(fmp.Records(rs), ModeJSON, Options{Precision: 2})
	b, err := json.Marshal(out.Data)
	require.NoError(t, err)
	assert.Equal(t, `[{"date":"2024-01-01","value":"3.14"}]`, string(b))
	assert.Equal(t, 1, out.Total)
	assert.Empty(t, out.Notice)
}

// TestRender_CompactRagged — compact без fields: заголовок a,b и "" для пропуска.
func TestRender_CompactRagged(t *testing.T) {
	rs := decode(t, `[{"a":1,"b":2},{"a":3}]`)

	out := Render(fmp.Records(rs), ModeCompact, DefaultOptions())
	c, ok := out.Data.(Compressed)
	require.True(t, ok)
	assert.Equal(t, [][]string{{"a", "b"}, {"1", "2"}, {"3", ""}}, c.Tuples)
	assert.Equal(t, `[["a","b"],["1","2"],["3",""]]`, out.String())
}

func TestRender_NoData(t *testing.T) {
	failure := fmp.Failure(&fmp.FetchError{Type: fmp.ErrRateLimit, StatusCode: 429})
	apiErr := fmp.Failure(&fmp.FetchError{Type: fmp.ErrAPIMessage, Message: "Invalid API KEY."})

	for _, mode := range []Mode{ModeJSON, ModeCompact, ModeMarkdown, ModeTSV} {
		t.Run(mode.String(), func(t *testing.T) {
			empty := Render(fmp.Empty(), mode, DefaultOptions())
			assert.Equal(t, NoDataText, empty.String())
			assert.NotNil(t, empty.Data)

			failed := Render(failure, mode, DefaultOptions())
			assert.Equal(t, "No data returned (rate_limit: "+fmp.ErrRateLimit.HumanMessage()+")", failed.String())
			assert.Nil(t, failed.Data)

			assert.Equal(t, "No data returned (api_error: Invalid API KEY.)", Render(apiErr, mode, DefaultOptions()).String())
		})
	}
}

func TestRender_Markdown(t *testing.T) {
	rs := decode(t, `[{"symbol":"AAPL","name":"Apple | Inc","price":189.5},{"symbol":"MSFT","price":410}]`)

	text := Render(fmp.Records(rs), ModeMarkdown, DefaultOptions()).String()
	lines := strings.Split(strings.TrimSpace(text), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], "|"))
	assert.Contains(t, lines[0], "symbol")
	assert.Contains(t, lines[0], "price")
	assert.Contains(t, lines[1], "---")
	assert.Contains(t, lines[2], `Apple \| Inc`)
	assert.Contains(t, lines[3], "MSFT")
	assert.Contains(t, lines[3], "410")
}

func TestRender_TSV(t *testing.T) {
	rs := decode(t, `[{"a":1,"b":"x"},{"a":2}]`)

	text := Render(fmp.Records(rs), ModeTSV, DefaultOptions()).String()
	assert.Equal(t, "a\tb\n1\tx\n2\t", text)
}

func TestRender_SingleRecord(t *testing.T) {
	var rec fmp.Record
	require.NoError(t, json.Unmarshal([]byte(`{"symbol":"AAPL","beta":1.2857}`), &rec))

	out := Render(fmp.Single(rec), ModeTSV, Options{Precision: 2})
	assert.Equal(t, "symbol\tbeta\nAAPL\t1.29", out.String())

	out = Render(fmp.Single(rec), ModeJSON, Options{Precision: 1})
	b, err := json.Marshal(out.Data)
	require.NoError(t, err)
	assert.Equal(t, `{"symbol":"AAPL","beta":"1.3"}`, string(b))
}

func TestRender_Value(t *testing.T) {
	res := fmp.Result{Kind: fmp.KindValue, Value: json.RawMessage(`["AAPL","MSFT"]`)}
	assert.Equal(t, `["AAPL","MSFT"]`, Render(res, ModeMarkdown, DefaultOptions()).String())
	assert.Equal(t, `["AAPL","MSFT"]`, Render(res, ModeCompact, DefaultOptions()).String())
}

// TestRender_Preview — большой набор сокращается до превью с пояснением.
func TestRender_Preview(t *testing.T) {
	var rs fmp.RecordSet
	for i := 0; i < 12; i++ {
		rs = append(rs, fmp.NewRecord("i", json.Number(fmt.Sprint(i))))
	}

	out := Render(fmp.Records(rs), ModeTSV, Options{Precision: NoPrecision, MaxRows: 10, PreviewRows: 3})
	assert.Equal(t, 12, out.Total)
	assert.Equal(t, 3, out.Shown)
	assert.Equal(t, "Returned 12 items. First 3 items:\ni\n0\n1\n2", out.String())

	out = Render(fmp.Records(rs), ModeTSV, Options{Precision: NoPrecision, MaxRows: 20, PreviewRows: 3})
	assert.Equal(t, 12, out.Shown)
	assert.Empty(t, out.Notice)
}

func TestRender_CellTruncation(t *testing.T) {
	rs := fmp.RecordSet{fmp.NewRecord("description", "abcdefghijklmnop", "s", "abc")}

	out := Render(fmp.Records(rs), ModeTSV, Options{Precision: NoPrecision, MaxCellWidth: 5})
	lines := strings.Split(out.String(), "\n")
	require.Len(t, lines, 2)

	cells := strings.Split(lines[1], "\t")
	require.Len(t, cells, 2)
	assert.True(t, strings.HasSuffix(cells[0], "…"))
	assert.LessOrEqual(t, utf8.RuneCountInString(cells[0]), 5)
	assert.Equal(t, "abc", cells[1])
	// Заголовок не обрезается
	assert.Equal(t, "description\ts", lines[0])
}

func TestRender_JSONPretty(t *testing.T) {
	rs := decode(t, `[{"name":"S&P 500","v":1}]`)
	text := Render(fmp.Records(rs), ModeJSON, DefaultOptions()).String()

	assert.Contains(t, text, `"S&P 500"`)
	assert.True(t, json.Valid([]byte(text)))
}
