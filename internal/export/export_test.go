package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiscalia/internal/domain"
	"fiscalia/internal/errs"
)

var sample = []domain.Case{
	{ID: 1, Description: "theft report", Status: domain.StatusPending, FiscalID: 2},
	{ID: 2, Description: "fraude", Status: domain.StatusClosed, FiscalID: 1},
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatText, f)

	f, err = ParseFormat(" CSV ")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	_, err = ParseFormat("pdf")
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestCasesCSVColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Cases(&buf, sample, FormatCSV))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id_caso,descripcion,estado,id_fiscal", lines[0])
	assert.Equal(t, "1,theft report,Pendiente,2", lines[1])
	assert.Equal(t, "2,fraude,Cerrado,1", lines[2])
}

func TestCasesOtherFormats(t *testing.T) {
	for _, f := range []Format{FormatText, FormatMarkdown, FormatHTML} {
		var buf bytes.Buffer
		require.NoError(t, Cases(&buf, sample, f), f)
		assert.Contains(t, buf.String(), "theft report", f)
		assert.Contains(t, buf.String(), "Cerrado", f)
	}
	var buf bytes.Buffer
	require.NoError(t, Cases(&buf, sample, FormatMarkdown))
	assert.True(t, strings.HasPrefix(buf.String(), "|"))
	buf.Reset()
	require.NoError(t, Cases(&buf, sample, FormatHTML))
	assert.Contains(t, buf.String(), "<table")
}

func TestCasesRejectsUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := Cases(&buf, sample, Format("xml"))
	assert.True(t, errs.IsKind(err, errs.KindValidation))
	assert.Zero(t, buf.Len())
}

func TestStatisticsFooterTotals(t *testing.T) {
	var buf bytes.Buffer
	rows := []domain.StatisticsRow{
		{FiscalID: 1, FiscalName: "A", TotalCases: 2, PendingCount: 1, ClosedCount: 1},
		{FiscalID: 2, FiscalName: "B", TotalCases: 1, InProcessCount: 1},
	}
	require.NoError(t, Statistics(&buf, rows, FormatCSV))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, ",total,3,1,1,1", lines[3])
}
